// Package app provides the entry point for the syncd status server.
package app

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:               "syncd",
	DisableAutoGenTag: true,
	Short:             "Synced-object status server",
	Long: `syncd hosts a synced-object registry and exposes a read-only HTTP
surface over the tracked objects: their mode, sync status and pending
properties. Objects are declared in a YAML manifest and persisted to a
file-backed store.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

// NewRootCmd creates the root command for syncd.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		panic(fmt.Sprintf("failed to bind debug flag: %v", err))
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	return rootCmd
}
