package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// addr is bound to the persistent --addr flag shared by every subcommand.
var addr string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "schema",
		Short:         "Schema registry client",
		Long:          "Command-line client for the schema registry RPC surface: names, definition, metadata, versions, add, add-version, update, validate.",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().StringVar(&addr, "addr", "http://localhost:3000", "registry HTTP address")

	cmd.AddCommand(namesCommand())
	cmd.AddCommand(metadataCommand())
	cmd.AddCommand(definitionCommand())
	cmd.AddCommand(versionsCommand())
	cmd.AddCommand(addCommand())
	cmd.AddCommand(addVersionCommand())
	cmd.AddCommand(updateCommand())
	cmd.AddCommand(validateCommand())

	return cmd
}
