package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the inkforge version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("inkforge", version)
	},
}
