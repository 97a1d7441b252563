package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/twizmwazin/pap/pkg/store"
)

// printSummary renders a pipeline/job/step tree with each status
// color-coded the way a human scanning a long run wants to: green for
// Completed, red for Failed, yellow for Cancelled, and the default
// color (blue) for anything still Pending or Running.
func printSummary(pipeline store.PipelineStatus, jobs []store.JobStatus) {
	fmt.Printf("pipeline %d: %s\n", pipeline.ID, colorize(pipeline.Status))

	for _, job := range jobs {
		fmt.Printf("  job %d %q: %s\n", job.ID, job.Config.Name, colorize(job.Status))
		for _, step := range job.Steps {
			fmt.Printf("    step %d %q (%s): %s\n", step.ID, step.Config.Name, step.Config.Call, colorize(step.Status))
			if len(step.Log) > 0 {
				for _, line := range strings.Split(strings.TrimRight(string(step.Log), "\n"), "\n") {
					fmt.Printf("      %s\n", line)
				}
			}
		}
	}

	if pipeline.Error != nil {
		fmt.Printf("error: %s\n", color.RedString(*pipeline.Error))
	}
}

func colorize(status store.ExecutionStatus) string {
	switch status {
	case store.StatusCompleted:
		return color.GreenString(string(status))
	case store.StatusFailed:
		return color.RedString(string(status))
	case store.StatusCancelled:
		return color.YellowString(string(status))
	default:
		return color.BlueString(string(status))
	}
}
