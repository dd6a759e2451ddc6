package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/campus-notice-rag/internal/core/domain"
	"github.com/kirillkom/campus-notice-rag/internal/core/usecase"
)

const maxNoticeLine = 4 << 20

func publishCMD() *cobra.Command {
	return &cobra.Command{
		Use:   "publish [file|-]",
		Short: "Queue notices from a JSON lines file for the index worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd, true)
			if err != nil {
				return err
			}
			defer app.Close()

			in, closeIn, err := openInput(cmd, args[0])
			if err != nil {
				return err
			}
			defer closeIn()

			count := 0
			err = readNotices(in, func(line int, doc domain.Document) error {
				if _, err := app.Submitter.Submit(cmd.Context(), doc); err != nil {
					return fmt.Errorf("line %d: %w", line, err)
				}
				count++
				return nil
			})
			fmt.Fprintf(cmd.OutOrStdout(), "queued %d notices\n", count)
			return err
		},
	}
}

func indexCMD() *cobra.Command {
	var keepGoing bool

	cmd := &cobra.Command{
		Use:   "index [file|-]",
		Short: "Index notices from a JSON lines file directly, without the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd, false)
			if err != nil {
				return err
			}
			defer app.Close()

			in, closeIn, err := openInput(cmd, args[0])
			if err != nil {
				return err
			}
			defer closeIn()

			indexed, failed := 0, 0
			err = readNotices(in, func(line int, doc domain.Document) error {
				if doc.ID == "" {
					doc.ID = usecase.StableNoticeID(doc.OriginalID)
				}
				if err := app.Indexer.IndexNotice(cmd.Context(), doc); err != nil {
					if !keepGoing {
						return fmt.Errorf("line %d: %w", line, err)
					}
					failed++
					app.Logger.Warn("notice_index_failed", "line", line, "doc_id", doc.ID, "error", err)
					return nil
				}
				indexed++
				return nil
			})
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d notices, %d failed\n", indexed, failed)
			return err
		},
	}
	cmd.Flags().BoolVar(&keepGoing, "keep-going", false, "log failed notices and continue")
	return cmd
}

func openInput(cmd *cobra.Command, path string) (io.Reader, func(), error) {
	if path == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// readNotices decodes one notice per non-empty line and stops at the first
// error returned by fn or by decoding.
func readNotices(r io.Reader, fn func(line int, doc domain.Document) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxNoticeLine)

	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var doc domain.Document
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return fmt.Errorf("line %d: decode notice: %w", line, err)
		}
		if err := fn(line, doc); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}
