package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"metis/pkg/metis"
)

func newExportCommand(rootOpts *rootOptions) *cobra.Command {
	req := metis.ExportRequest{}
	cmd := &cobra.Command{
		Use:   "export [run-id]",
		Short: "Copy a run's artifacts to the exports directory",
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

			summary, err := client.Export(cmd.Context(), req)
			if err != nil {
				return err
			}
			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), summary)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported run_id=%s dir=%s\n", summary.RunID, summary.Directory)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.OutDir, "out", "", "export directory (default: --exports-dir)")
	return cmd
}
