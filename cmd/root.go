package cmd

import (
	"fmt"
	"os"

	"cursor-harvest/internal"
	"github.com/spf13/cobra"
)

var (
	verbose     bool
	storagePath string
	version     string = "dev"
	commit      string = "unknown"
	date        string = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cursor-harvest",
	Short: "Recover Cursor IDE chat history from its workspace databases",
	Long: `cursor-harvest scans Cursor's workspace storage databases, classifies
the stored values that are actually chat data, and rebuilds them into
projects, chats and dialogues.

The IDE stores conversations as schema-less JSON blobs under arbitrary
keys, in several incompatible shapes across product versions. This tool
recovers what it can recognize and never fabricates content: unknown
shapes yield nothing rather than placeholders.

Quick Start:
  cursor-harvest scan          # Scan databases and persist a snapshot
  cursor-harvest list          # List recovered projects and chats
  cursor-harvest show <chat>   # Print one chat's dialogues`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		internal.SetVerbose(verbose)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&storagePath, "storage", "", "Custom Cursor User directory to scan")

	// Set version template to ensure --version flag works
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}
