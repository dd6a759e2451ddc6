package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kirillkom/campus-notice-rag/internal/core/domain"
)

func searchCMD() *cobra.Command {
	var (
		category string
		k        int
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search notices and show re-ranking scores",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd, false)
			if err != nil {
				return err
			}
			defer app.Close()

			if k <= 0 {
				k = app.Config.RAGSearchK
			}
			result, err := app.Retriever.Retrieve(cmd.Context(), args[0], domain.SearchFilter{Category: category}, k)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			if asJSON {
				return writeSearchJSON(cmd.OutOrStdout(), result)
			}
			return writeSearchTable(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", "", "notice type filter (대학공지, 학과공지, 교과목/수강)")
	cmd.Flags().IntVarP(&k, "limit", "n", 0, "maximum number of notices (default RAG_SEARCH_K)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output results as JSON")
	return cmd
}

func writeSearchJSON(w io.Writer, result *domain.RetrievalResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func writeSearchTable(w io.Writer, result *domain.RetrievalResult) error {
	if result.Diagnostic != "" {
		fmt.Fprintf(w, "! %s\n", result.Diagnostic)
	}
	if len(result.Results) == 0 {
		_, err := fmt.Fprintln(w, "No notices found.")
		return err
	}

	for i, res := range result.Results {
		title := res.Document.Title
		if title == "" {
			title = res.Document.ID
		}
		fmt.Fprintf(w, "[%d] %s (%s) [%s]\n", i+1, title, res.Document.Date, res.Document.Category)
		fmt.Fprintf(w, "    final=%.3f semantic=%.3f recency=%.3f\n", res.FinalScore, res.SemanticSimilarity, res.RecencyWeight)
		if res.Document.URL != "" {
			fmt.Fprintf(w, "    %s\n", res.Document.URL)
		}
	}
	mode := ""
	if result.Degraded {
		mode = " (fragment fallback)"
	}
	_, err := fmt.Fprintf(w, "confidence: %.3f %s%s\n", result.Confidence, domain.ConfidenceLevelFor(result.Confidence), mode)
	return err
}
