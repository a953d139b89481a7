package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func reviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Manage review jobs",
	}
	cmd.AddCommand(reviewStartCmd(), reviewGetCmd(), reviewStreamCmd(), reviewCancelCmd())
	return cmd
}

func reviewStartCmd() *cobra.Command {
	var stream bool
	cmd := &cobra.Command{
		Use:   "start <repo-url>",
		Short: "Start a review job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := client().StartReview(args[0])
			if err != nil {
				return err
			}
			fmt.Println(id)
			if stream {
				return client().StreamReview(id, printEvent)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&stream, "stream", false, "follow the event stream until completion")
	return cmd
}

func reviewGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a review job snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := client().GetReview(args[0])
			if err != nil {
				return err
			}
			return printJSON(snap)
		},
	}
}

func reviewStreamCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stream <id>",
		Short: "Follow a review job's event stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client().StreamReview(args[0], printEvent)
		},
	}
}

func reviewCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a running review job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client().CancelReview(args[0])
		},
	}
}

func printEvent(data []byte) {
	os.Stdout.Write(data)
	os.Stdout.Write([]byte("\n"))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
