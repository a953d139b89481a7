// Command reviewctl is the CLI client for a running reviewerd.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vibestudy/vibestudy-reviewer/internal/daemon"
	"github.com/vibestudy/vibestudy-reviewer/internal/version"
)

var serverURL string

func client() *daemon.Client {
	return daemon.NewClient(serverURL)
}

func main() {
	root := &cobra.Command{
		Use:           "reviewctl",
		Short:         "Client for the vibestudy review/grade daemon",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&serverURL, "server", "http://127.0.0.1:8080", "daemon base URL")

	root.AddCommand(healthCmd(), reviewCmd(), gradeCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check daemon liveness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client().Health(); err != nil {
				return err
			}
			fmt.Println("ok")
			return nil
		},
	}
}
