// Package scoring holds the pure ranking signals of the retrieval pipeline.
// Every helper is total: malformed input yields a Fallback outcome, never an error.
package scoring

type OutcomeKind int

const (
	// Parsed means the value was computed from well-formed input.
	Parsed OutcomeKind = iota
	// Sentinel means the input was a recognized marker with a fixed value.
	Sentinel
	// Fallback means the input could not be used and a neutral default was returned.
	Fallback
)

func (k OutcomeKind) String() string {
	switch k {
	case Parsed:
		return "parsed"
	case Sentinel:
		return "sentinel"
	case Fallback:
		return "fallback"
	default:
		return "unknown"
	}
}

type Outcome struct {
	Value float64
	Kind  OutcomeKind
}

func parsed(v float64) Outcome   { return Outcome{Value: v, Kind: Parsed} }
func sentinel(v float64) Outcome { return Outcome{Value: v, Kind: Sentinel} }
func fallback(v float64) Outcome { return Outcome{Value: v, Kind: Fallback} }

func (o Outcome) IsFallback() bool { return o.Kind == Fallback }
