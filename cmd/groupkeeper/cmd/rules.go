package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/groupkeeper/groupkeeper/internal/core/db"
	"github.com/groupkeeper/groupkeeper/internal/lang"
	"github.com/groupkeeper/groupkeeper/internal/types"
)

var (
	rulesGroup    int64
	rulesPriority int
	rulesInactive bool
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage stored rules",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a group's rules",
	RunE:  runRulesList,
}

var rulesAddCmd = &cobra.Command{
	Use:   "add <script-file>",
	Short: "Add a rule from a script file",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesAdd,
}

var rulesDeleteCmd = &cobra.Command{
	Use:   "delete <rule-id>",
	Short: "Delete a rule by id",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesDelete,
}

var checkCmd = &cobra.Command{
	Use:   "check <script-file>",
	Short: "Validate a rule script without storing it",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(checkCmd)
	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesAddCmd)
	rulesCmd.AddCommand(rulesDeleteCmd)

	rulesCmd.PersistentFlags().Int64Var(&rulesGroup, "group", 0, "group id")
	rulesAddCmd.Flags().IntVar(&rulesPriority, "priority", 0, "rule priority (higher runs first)")
	rulesAddCmd.Flags().BoolVar(&rulesInactive, "inactive", false, "store the rule as inactive")
}

func openStore() (*db.Store, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	store, err := db.NewStore(database)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to create store: %w", err)
	}
	return store, func() { database.Close() }, nil
}

func runRulesList(cmd *cobra.Command, args []string) error {
	if rulesGroup == 0 {
		return fmt.Errorf("--group required")
	}
	store, closeDB, err := openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	rules, err := store.ListRules(cmd.Context(), rulesGroup)
	if err != nil {
		return err
	}
	for _, r := range rules {
		state := "active"
		if !r.IsActive {
			state = "inactive"
		}
		fmt.Printf("%s  pri=%-6d %-8s %s\n", r.ID, r.Priority, state, r.Name)
	}
	return nil
}

func runRulesAdd(cmd *cobra.Command, args []string) error {
	if rulesGroup == 0 {
		return fmt.Errorf("--group required")
	}
	script, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read script: %w", err)
	}

	// Strict parse up front so broken scripts never reach the store
	parsed, err := lang.ParseRuleStrict(string(script))
	if err != nil {
		return fmt.Errorf("script rejected: %w", err)
	}

	store, closeDB, err := openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	rule := &types.PersistedRule{
		GroupID:  rulesGroup,
		Name:     parsed.Name,
		Priority: rulesPriority,
		Script:   string(script),
		IsActive: !rulesInactive,
	}
	if parsed.Priority != 0 && !cmd.Flags().Changed("priority") {
		rule.Priority = parsed.Priority
	}
	if err := store.SaveRule(cmd.Context(), rule); err != nil {
		return err
	}
	fmt.Println(rule.ID)
	return nil
}

func runRulesDelete(cmd *cobra.Command, args []string) error {
	id, err := types.ParseRuleID(args[0])
	if err != nil {
		return fmt.Errorf("invalid rule id: %w", err)
	}
	store, closeDB, err := openStore()
	if err != nil {
		return err
	}
	defer closeDB()
	return store.DeleteRule(cmd.Context(), id)
}

func runCheck(cmd *cobra.Command, args []string) error {
	script, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read script: %w", err)
	}
	parsed, err := lang.ParseRuleStrict(string(script))
	if err != nil {
		return fmt.Errorf("script rejected: %w", err)
	}
	fmt.Printf("ok: trigger %q, %d branch(es)\n", parsed.When, len(parsed.Blocks))
	return nil
}
