package main

import (
	"fmt"
	"os"

	"github.com/ignatij/taskflow/internal/cli"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "taskflow",
	Short: "Team task tracker: lifecycle, delegation and progress tracking",
}

func main() {
	cli.SetupCLI(rootCmd)
	cli.SetupServe(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
