package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Conversational search over Hradec Králové region places",
	Long: `Rande chat answers Czech questions about places to visit by letting a
language model call a structured places search.

Without a subcommand the HTTP API is started (same as "server serve").`,
	Version:       fmt.Sprintf("%s (built %s, commit %s)", Version, BuildTime, GitCommit),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
