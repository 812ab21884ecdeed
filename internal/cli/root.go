// Package cli defines the callserver commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev" // set via ldflags at build time

var rootCmd = &cobra.Command{
	Use:   "callserver",
	Short: "Place outbound voice calls and capture the spoken answer",
	Long: `callserver places one outbound phone call at a time through Azure
Communication Services or Twilio, speaks a prompt, and records what the
callee says in reply.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(callCmd)
}
