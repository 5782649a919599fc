package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/director"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of director",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "director version %s\n", strings.TrimSpace(director.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
