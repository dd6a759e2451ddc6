package scoring

import "math"

const NeutralSimilarity = 0.5

// Similarity maps a raw index distance (lower is closer) into (0, 1].
func Similarity(score float64) Outcome {
	if math.IsNaN(score) || math.IsInf(score, 0) || score < 0 {
		return fallback(NeutralSimilarity)
	}
	return parsed(1 / (1 + score))
}
