package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"metis/pkg/metis"
)

type runOptions struct {
	Seed   int64
	Cycles int
	RunID  string
	Record []string
}

func newRunCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a scenario and record per-cycle statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			req := metis.RunRequest{
				ScenarioPath: args[0],
				RunID:        opts.RunID,
				Cycles:       opts.Cycles,
				Record:       opts.Record,
			}
			if cmd.Flags().Changed("seed") {
				seed := opts.Seed
				req.Seed = &seed
			}
			s, err := client.Run(cmd.Context(), req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				return writeJSON(out, s)
			}
			fmt.Fprintf(out, "run_id=%s scenario=%s seed=%d cycles=%d final_cycle=%d population=%d\n",
				s.RunID, s.Scenario, s.Seed, s.Cycles, s.FinalCycle, s.FinalPopulation)
			if s.ArtifactsDir != "" {
				fmt.Fprintf(out, "artifacts=%s\n", s.ArtifactsDir)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.Int64Var(&opts.Seed, "seed", 0, "override the scenario seed")
	flags.IntVar(&opts.Cycles, "cycles", 0, "override the scenario cycle count")
	flags.StringVar(&opts.RunID, "run-id", "", "run id (default: generated)")
	flags.StringSliceVar(&opts.Record, "record", nil, "statistics to record per cycle (default: all)")
	return cmd
}
