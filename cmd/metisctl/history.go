package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"metis/pkg/metis"
)

func newHistoryCommand(rootOpts *rootOptions) *cobra.Command {
	req := metis.HistoryRequest{}
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show the per-cycle statistics of a run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				req.RunID = args[0]
			}
			if req.RunID == "" {
				req.Latest = true
			}
			client, err := newClient(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			items, err := client.History(cmd.Context(), req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				return writeJSON(out, items)
			}
			for _, item := range items {
				fmt.Fprintf(out, "cycle=%d population=%d", item.Cycle, item.Population)
				keys := make([]string, 0, len(item.Values))
				for key := range item.Values {
					keys = append(keys, key)
				}
				sort.Strings(keys)
				for _, key := range keys {
					fmt.Fprintf(out, " %s=%s", key, item.Values[key])
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Key, "key", "", "show a single statistic")
	return cmd
}
