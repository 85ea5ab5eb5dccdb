package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"

	"github.com/inkforge/inkforge/internal/config"
	"github.com/inkforge/inkforge/internal/models"
	"github.com/inkforge/inkforge/internal/workflows"
)

var (
	runQuick  bool
	runWords  int
	runOutput string
	runNoWait bool
)

var runCmd = &cobra.Command{
	Use:   "run <topic>",
	Short: "Generate one article",
	Long: `Submits an article run for the given topic and waits for the result.
Exits non-zero unless the draft was approved by the verification gate.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return submitRun(cmd.Context(), strings.Join(args, " "))
	},
}

func init() {
	runCmd.Flags().BoolVar(&runQuick, "quick", false, "shorter article with a relaxed source floor")
	runCmd.Flags().IntVar(&runWords, "words", 0, "word target (default from config)")
	runCmd.Flags().StringVar(&runOutput, "output", "", "artifact directory (default from config)")
	runCmd.Flags().BoolVar(&runNoWait, "no-wait", false, "submit and exit without waiting")
}

func submitRun(ctx context.Context, topic string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	words := runWords
	if words <= 0 {
		words = cfg.Pipeline.WordTarget
		if runQuick {
			words = cfg.Pipeline.QuickWordTarget
		}
	}

	input := models.RunInput{
		Topic:         topic,
		WordTarget:    words,
		MaxIterations: cfg.Pipeline.MaxIterations,
		Quick:         runQuick,
		OutputDir:     runOutput,
	}

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		return fmt.Errorf("connect temporal: %w", err)
	}
	defer c.Close()

	runID := "inkforge-" + uuid.NewString()
	we, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        runID,
		TaskQueue: cfg.Temporal.TaskQueue,
	}, workflows.ArticleWorkflowName, input)
	if err != nil {
		return fmt.Errorf("start run: %w", err)
	}

	fmt.Printf("run submitted: %s\n", we.GetID())
	if runNoWait {
		return nil
	}

	var outcome models.RunOutcome
	if err := we.Get(ctx, &outcome); err != nil {
		return fmt.Errorf("run failed: %w", err)
	}
	printOutcome(outcome)

	if outcome.Status != models.RunStatusApproved {
		os.Exit(1)
	}
	return nil
}

func printOutcome(o models.RunOutcome) {
	fmt.Printf("status:     %s\n", o.Status)
	fmt.Printf("iterations: %d\n", o.Iterations)
	fmt.Printf("tokens:     %d\n", o.TokensUsed)
	fmt.Printf("cost:       $%.4f\n", o.CostUSD)
	if o.ArtifactDir != "" {
		fmt.Printf("artifacts:  %s\n", o.ArtifactDir)
	}
	if v := o.Validation; v != nil {
		fmt.Printf("verified:   %.0f%% of claims, %d live sources, %d citations\n",
			v.VerifiedRatio*100, v.LiveSources, v.CitationCount)
	}
	for _, r := range o.Reasons {
		fmt.Printf("reason:     %s\n", r)
	}
}
