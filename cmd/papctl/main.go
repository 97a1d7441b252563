package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootFlags struct {
	host string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "papctl",
		Short:         "papctl controls a papd server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.host, "host", "H", "", "papd host:port (default 127.0.0.1:9090, or $PAP_HOST)")

	cmd.AddCommand(newPipelineCmd(flags))
	cmd.AddCommand(newJobCmd(flags))
	cmd.AddCommand(newLogCmd(flags))
	cmd.AddCommand(newObjectCmd(flags))

	return cmd
}

func resolveHost(flags *rootFlags) string {
	if flags.host != "" {
		return flags.host
	}
	if h := os.Getenv("PAP_HOST"); h != "" {
		return h
	}
	return "127.0.0.1:9090"
}
