package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aristath/cryptopilot/internal/server"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cryptopilot %s\n", server.Version)
		},
	}
}
