package main

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "inkforge",
	Short: "Fact-checked long-form article pipeline",
	Long: `inkforge researches a topic, drafts a long-form article, verifies its
factual claims against their cited sources, and only distributes drafts
that pass the verification gate.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./inkforge.yaml)")
	rootCmd.AddCommand(workerCmd, runCmd, runsCmd, versionCmd)
}
