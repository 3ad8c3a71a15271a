// Package cli implements the Kola command-line interface using Cobra.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "kola",
	Short: "Kola — learner progress accounting",
	Long: `Kola accounts for learner activity: hearts, XP, streaks,
daily challenges and achievements.

Run "kola serve" to start the HTTP API, or use the user and xp
commands to inspect learners directly from the configured store.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
