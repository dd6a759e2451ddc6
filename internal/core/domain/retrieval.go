package domain

import (
	"fmt"
	"strings"
)

// SearchFilter restricts retrieval by notice type. Empty means unrestricted.
type SearchFilter struct {
	Category string
}

// Unrestricted reports whether the filter should be dropped before hitting the index.
func (f SearchFilter) Unrestricted() bool {
	switch strings.ToLower(strings.TrimSpace(f.Category)) {
	case "", "all", "전체":
		return true
	default:
		return false
	}
}

// Fragment is a child text span returned by the fragment index.
// Score is the raw distance reported by the index: lower is closer.
type Fragment struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Score    float64        `json:"score"`
}

// MetadataString returns the metadata value under key rendered as a string.
func (f Fragment) MetadataString(key string) string {
	v, ok := f.Metadata[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

type RankedResult struct {
	Document           Document `json:"document"`
	SemanticSimilarity float64  `json:"semantic_similarity"`
	RecencyWeight      float64  `json:"recency_weight"`
	FinalScore         float64  `json:"final_score"`
}

// RetrievalResult is the outcome of one retrieval. Degraded marks the raw fragment
// fallback; Diagnostic carries a user-visible message when an upstream failed.
type RetrievalResult struct {
	Results    []RankedResult `json:"results"`
	Confidence float64        `json:"confidence"`
	Degraded   bool           `json:"degraded,omitempty"`
	Diagnostic string         `json:"diagnostic,omitempty"`
}

func (r *RetrievalResult) Documents() []Document {
	if r == nil {
		return nil
	}
	out := make([]Document, 0, len(r.Results))
	for _, res := range r.Results {
		out = append(out, res.Document)
	}
	return out
}

// SourceLines formats up to limit results as "title (date) [type] - url".
func (r *RetrievalResult) SourceLines(limit int) []string {
	if r == nil {
		return nil
	}
	if limit <= 0 || limit > len(r.Results) {
		limit = len(r.Results)
	}
	out := make([]string, 0, limit)
	for _, res := range r.Results[:limit] {
		doc := res.Document
		line := doc.Title
		if line == "" {
			line = "untitled"
		}
		if doc.Date != "" {
			line += " (" + doc.Date + ")"
		}
		if doc.Category != "" {
			line += " [" + doc.Category + "]"
		}
		if doc.URL != "" {
			line += " - " + doc.URL
		}
		out = append(out, line)
	}
	return out
}
