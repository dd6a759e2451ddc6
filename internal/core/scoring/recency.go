package scoring

import (
	"math"
	"strings"
	"time"
)

const (
	DefaultDecayDays = 360.0
	NeutralRecency   = 0.5
	minRecency       = 0.1
	maxRecency       = 1.0
)

// RecencyScorer turns a raw document date into an exponential-decay weight in [0.1, 1].
type RecencyScorer struct {
	DecayDays float64
	Now       func() time.Time
}

func NewRecencyScorer(decayDays float64) RecencyScorer {
	if decayDays <= 0 {
		decayDays = DefaultDecayDays
	}
	return RecencyScorer{DecayDays: decayDays, Now: time.Now}
}

// Weight never panics. Dates in the future clamp to 1.0.
func (s RecencyScorer) Weight(raw string) (out Outcome) {
	defer func() {
		if recover() != nil {
			out = fallback(NeutralRecency)
		}
	}()

	trimmed := strings.TrimSpace(raw)
	if isAlwaysCurrent(trimmed) {
		return sentinel(maxRecency)
	}

	docDate, ok := ParseDocumentDate(trimmed)
	if !ok {
		return fallback(NeutralRecency)
	}

	decay := s.DecayDays
	if decay <= 0 || math.IsNaN(decay) {
		decay = DefaultDecayDays
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	current := now()
	docDate = time.Date(docDate.Year(), docDate.Month(), docDate.Day(), 0, 0, 0, 0, current.Location())

	ageDays := math.Floor(current.Sub(docDate).Hours() / 24)
	weight := math.Exp(-ageDays / decay)
	if math.IsNaN(weight) {
		return fallback(NeutralRecency)
	}
	return parsed(clamp(weight, minRecency, maxRecency))
}

// ParseDocumentDate accepts YYYY-MM-DD and YYYY.MM.DD (zero padding optional).
func ParseDocumentDate(raw string) (time.Time, bool) {
	normalized := strings.TrimSpace(strings.ReplaceAll(raw, ".", "-"))
	if normalized == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-1-2", normalized)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// NormalizeDate rewrites dotted dates to the dashed form used in metadata.
func NormalizeDate(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	return strings.ReplaceAll(trimmed, ".", "-")
}

// isAlwaysCurrent reports the markers ingestion writes for undated documents.
func isAlwaysCurrent(date string) bool {
	switch strings.ToLower(date) {
	case "", "always", "unknown", "unknown date", "none", "null":
		return true
	case "상시", "날짜미상":
		return true
	default:
		return false
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
