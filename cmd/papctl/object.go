package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newObjectCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "object",
		Short: "Read and write keyed blobs in a namespace",
	}
	cmd.AddCommand(newObjectGetCmd(flags))
	cmd.AddCommand(newObjectPutCmd(flags))
	return cmd
}

func newObjectGetCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get <namespace> <key>",
		Short: "Print an object's raw value to stdout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := hex.EncodeToString([]byte(args[1]))
			body, err := newClient(resolveHost(flags)).getRaw(fmt.Sprintf("/v1/objects/%s/%s", args[0], key))
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(body)
			return err
		},
	}
}

func newObjectPutCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "put <namespace> <key> <file>",
		Short: "Upload a file's contents as an object's value",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[2])
			if err != nil {
				return err
			}
			key := hex.EncodeToString([]byte(args[1]))
			return newClient(resolveHost(flags)).putRaw(fmt.Sprintf("/v1/objects/%s/%s", args[0], key), data)
		},
	}
}
