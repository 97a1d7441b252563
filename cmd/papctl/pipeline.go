package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	papconfig "github.com/twizmwazin/pap/pkg/config"
	"github.com/twizmwazin/pap/pkg/store"
)

func newPipelineCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Manage pipelines",
	}
	cmd.AddCommand(newPipelineSubmitCmd(flags))
	cmd.AddCommand(newPipelineGetCmd(flags))
	cmd.AddCommand(newPipelineListCmd(flags))
	cmd.AddCommand(newPipelineCancelCmd(flags))
	cmd.AddCommand(newPipelineDeleteCmd(flags))
	cmd.AddCommand(newPipelineSummaryCmd(flags))
	return cmd
}

func newPipelineSubmitCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "submit <config.yaml>",
		Short: "Submit a pipeline configuration for execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			cfg, err := papconfig.LoadConfig(f)
			if err != nil {
				return err
			}
			sub, err := papconfig.BuildSubmission(*cfg, filepath.Dir(args[0]))
			if err != nil {
				return err
			}

			body, err := json.Marshal(struct {
				Config store.Config      `json:"config"`
				Files  map[string][]byte `json:"files"`
			}{Config: sub.Config, Files: sub.Files})
			if err != nil {
				return err
			}

			var status store.PipelineStatus
			if err := newClient(resolveHost(flags)).do("POST", "/v1/pipelines", body, &status); err != nil {
				return err
			}
			fmt.Printf("pipeline %d submitted\n", status.ID)
			return nil
		},
	}
}

func newPipelineGetCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a pipeline's current status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return err
			}
			var status store.PipelineStatus
			if err := newClient(resolveHost(flags)).do("GET", fmt.Sprintf("/v1/pipelines/%d", id), nil, &status); err != nil {
				return err
			}
			return printJSON(status)
		},
	}
}

func newPipelineListCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pipeline ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var out struct {
				Pipelines []uint32 `json:"pipelines"`
			}
			if err := newClient(resolveHost(flags)).do("GET", "/v1/pipelines", nil, &out); err != nil {
				return err
			}
			for _, id := range out.Pipelines {
				fmt.Println(id)
			}
			return nil
		},
	}
}

func newPipelineCancelCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a pipeline and all its jobs and steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClient(resolveHost(flags)).do("POST", "/v1/pipelines/"+args[0]+"/_cancel", nil, nil)
		},
	}
}

func newPipelineDeleteCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a pipeline and all its jobs and steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClient(resolveHost(flags)).do("DELETE", "/v1/pipelines/"+args[0], nil, nil)
		},
	}
}

func newPipelineSummaryCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "summary <id>",
		Short: "Print a color-coded tree of a pipeline's jobs, steps, and logs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return err
			}
			c := newClient(resolveHost(flags))

			var pipeline store.PipelineStatus
			if err := c.do("GET", fmt.Sprintf("/v1/pipelines/%d", id), nil, &pipeline); err != nil {
				return err
			}

			jobs := make([]store.JobStatus, 0, len(pipeline.Jobs))
			for _, jobID := range pipeline.Jobs {
				var job store.JobStatus
				if err := c.do("GET", fmt.Sprintf("/v1/jobs/%d", jobID), nil, &job); err != nil {
					return err
				}
				jobs = append(jobs, job)
			}

			printSummary(pipeline, jobs)
			return nil
		},
	}
}

func printJSON(v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
