package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type validationResult struct {
	Valid    bool   `json:"valid"`
	Scenario string `json:"scenario,omitempty"`
	Error    string `json:"error,omitempty"`
}

func newValidateCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <scenario.yaml>",
		Short: "Check a scenario against the schema without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			sc, verr := client.Validate(args[0])
			result := validationResult{Valid: verr == nil}
			if verr != nil {
				result.Error = verr.Error()
			} else {
				result.Scenario = sc.Name
			}

			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				if err := writeJSON(out, result); err != nil {
					return err
				}
			} else if result.Valid {
				fmt.Fprintf(out, "scenario %s is valid\n", result.Scenario)
			}
			return verr
		},
	}
}
