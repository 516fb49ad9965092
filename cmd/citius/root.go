package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for citius.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "citius",
		Short: "Search the Citius insolvency notices portal",
		Long: `citius queries the public insolvency notices of the Citius portal
(Portal Citius, Consultas CIRE) and exports every matching notice with its
full list of creditors.

Searches can be saved to a local history database and compared over time.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().String("log-format", "text", "Log format: text or json")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .citius.yaml in current or home directory)")
	cmd.PersistentFlags().String("db-dir", "",
		"Search history directory (default: XDG data directory)")

	cmd.AddCommand(NewSearchCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
