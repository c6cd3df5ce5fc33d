package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	stateGroup int64
	logsLimit  int
)

var varsCmd = &cobra.Command{
	Use:   "vars",
	Short: "List a group's persistent script variables",
	RunE:  runVars,
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show a group's recent event log entries",
	RunE:  runLogs,
}

func init() {
	rootCmd.AddCommand(varsCmd)
	rootCmd.AddCommand(logsCmd)

	varsCmd.Flags().Int64Var(&stateGroup, "group", 0, "group id")
	logsCmd.Flags().Int64Var(&stateGroup, "group", 0, "group id")
	logsCmd.Flags().IntVar(&logsLimit, "limit", 50, "maximum entries to show")
}

func runVars(cmd *cobra.Command, args []string) error {
	if stateGroup == 0 {
		return fmt.Errorf("--group required")
	}
	store, closeDB, err := openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	vars, err := store.ListVariables(cmd.Context(), stateGroup)
	if err != nil {
		return err
	}
	for _, v := range vars {
		scope := "group"
		if v.UserID != nil {
			scope = fmt.Sprintf("user:%d", *v.UserID)
		}
		fmt.Printf("%-16s %s = %s\n", scope, v.Name, v.Value)
	}
	return nil
}

func runLogs(cmd *cobra.Command, args []string) error {
	if stateGroup == 0 {
		return fmt.Errorf("--group required")
	}
	store, closeDB, err := openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	entries, err := store.RecentLogs(cmd.Context(), stateGroup, logsLimit)
	if err != nil {
		return err
	}
	for _, e := range entries {
		when := time.Unix(e.CreatedAt, 0).UTC().Format(time.RFC3339)
		user := "-"
		if e.UserID != nil {
			user = fmt.Sprintf("%d", *e.UserID)
		}
		line := fmt.Sprintf("%s  %-8s user=%-12s", when, e.EventType, user)
		if e.Tag != nil {
			line += " [" + *e.Tag + "]"
		}
		if e.Message != nil {
			line += " " + *e.Message
		}
		fmt.Println(line)
	}
	return nil
}
