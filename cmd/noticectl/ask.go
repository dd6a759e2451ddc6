package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/campus-notice-rag/internal/core/domain"
)

func askCMD() *cobra.Command {
	var (
		sessionID string
		category  string
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question from the indexed notices",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd, false)
			if err != nil {
				return err
			}
			defer app.Close()

			question := strings.Join(args, " ")
			reply, err := app.Chat.Ask(cmd.Context(), domain.ChatRequest{
				SessionID: sessionID,
				Question:  question,
				Filter:    domain.SearchFilter{Category: category},
			})
			if err != nil {
				return err
			}

			answer, err := streamAnswer(cmd.OutOrStdout(), reply)
			if err != nil {
				return err
			}
			if err := app.Chat.Remember(cmd.Context(), reply.SessionID, question, answer); err != nil {
				app.Logger.Warn("session_remember_failed", "session_id", reply.SessionID, "error", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "continue a conversation session")
	cmd.Flags().StringVarP(&category, "category", "c", "", "notice type filter")
	return cmd
}

// streamAnswer copies the answer to w as it arrives, then prints sources.
// Partial output stays on w when the stream fails.
func streamAnswer(w io.Writer, reply *domain.ChatReply) (string, error) {
	var answer strings.Builder
	for delta, err := range reply.Stream {
		if err != nil {
			fmt.Fprintln(w)
			return answer.String(), fmt.Errorf("answer stream: %w", err)
		}
		answer.WriteString(delta)
		if _, err := io.WriteString(w, delta); err != nil {
			return answer.String(), err
		}
	}
	fmt.Fprintln(w)

	if reply.Retrieval.Diagnostic != "" {
		fmt.Fprintf(w, "\n! %s\n", reply.Retrieval.Diagnostic)
	}
	if lines := reply.Retrieval.SourceLines(3); len(lines) > 0 {
		fmt.Fprintln(w, "\nSources:")
		for _, line := range lines {
			fmt.Fprintf(w, "- %s\n", line)
		}
	}
	fmt.Fprintf(w, "\nconfidence: %s (%.2f)  session: %s\n", reply.Level, reply.Retrieval.Confidence, reply.SessionID)
	return answer.String(), nil
}
