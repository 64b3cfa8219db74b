package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lyoneil/Botpress"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of botpress",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("botpress version %s\n", strings.TrimSpace(botpress.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
