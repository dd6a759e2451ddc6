package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/kirillkom/campus-notice-rag/internal/core/domain"
)

func deadLetterCMD() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deadletter",
		Short: "Inspect and replay notices that failed indexing",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List parked notices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openApp(cmd, true)
			if err != nil {
				return err
			}
			defer app.Close()

			letters, err := app.DeadLetters.List(cmd.Context())
			if err != nil {
				return err
			}
			return writeDeadLetters(cmd.OutOrStdout(), letters)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "replay",
		Short: "Republish parked notices to the index queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openApp(cmd, true)
			if err != nil {
				return err
			}
			defer app.Close()

			n, err := app.DeadLetters.Replay(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "replayed %d notices\n", n)
			return err
		},
	})
	return cmd
}

func writeDeadLetters(w io.Writer, letters []domain.DeadLetter) error {
	if len(letters) == 0 {
		_, err := fmt.Fprintln(w, "No parked notices.")
		return err
	}
	for _, letter := range letters {
		title := letter.Document.Title
		if title == "" {
			title = "untitled"
		}
		if _, err := fmt.Fprintf(w, "%s  %s  %s\n    %s\n", letter.FailedAt.Format(time.RFC3339), letter.Key, title, letter.Error); err != nil {
			return err
		}
	}
	return nil
}
