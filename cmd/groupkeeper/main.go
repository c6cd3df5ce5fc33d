package main

import (
	"os"

	"github.com/groupkeeper/groupkeeper/cmd/groupkeeper/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
