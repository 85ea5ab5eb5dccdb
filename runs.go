package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inkforge/inkforge/internal/config"
	"github.com/inkforge/inkforge/internal/store"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent runs from the local history store",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		st, err := store.Open(cfg.Store.Path, zap.NewNop())
		if err != nil {
			return err
		}
		defer st.Close()

		recs, err := st.ListRuns(cmd.Context(), runsLimit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RUN ID\tSTATUS\tITER\tTOKENS\tCOST\tTOPIC")
		for _, r := range recs {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t$%.4f\t%s\n",
				r.RunID, r.Status, r.Iterations, r.TokensUsed, r.CostUSD, r.Topic)
		}
		return w.Flush()
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to list")
}
