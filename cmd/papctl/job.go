package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/twizmwazin/pap/pkg/store"
)

func newJobCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Inspect and control jobs",
	}
	cmd.AddCommand(newJobGetCmd(flags))
	cmd.AddCommand(newJobListCmd(flags))
	cmd.AddCommand(newJobCancelCmd(flags))
	return cmd
}

func newJobGetCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a job's current status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var status store.JobStatus
			if err := newClient(resolveHost(flags)).do("GET", "/v1/jobs/"+args[0], nil, &status); err != nil {
				return err
			}
			return printJSON(status)
		},
	}
}

func newJobListCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List job ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var out struct {
				Jobs []uint32 `json:"jobs"`
			}
			if err := newClient(resolveHost(flags)).do("GET", "/v1/jobs", nil, &out); err != nil {
				return err
			}
			for _, id := range out.Jobs {
				fmt.Println(id)
			}
			return nil
		},
	}
}

func newJobCancelCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a job and all its steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClient(resolveHost(flags)).do("POST", "/v1/jobs/"+args[0]+"/_cancel", nil, nil)
		},
	}
}
