package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLogCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Read step logs",
	}
	cmd.AddCommand(newLogGetCmd(flags))
	return cmd
}

func newLogGetCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get <step-id>",
		Short: "Print a step's accumulated log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := newClient(resolveHost(flags)).getRaw("/v1/steps/" + args[0] + "/log")
			if err != nil {
				return err
			}
			fmt.Print(string(body))
			return nil
		},
	}
}
