package httpadapter

import (
	"net/http"
	"time"

	"github.com/kirillkom/campus-notice-rag/internal/core/domain"
)

type searchRequest struct {
	Query    string `json:"query"`
	Category string `json:"category"`
	K        int    `json:"k"`
}

type rerankScores struct {
	Semantic float64 `json:"semantic"`
	Recency  float64 `json:"recency"`
	Final    float64 `json:"final"`
}

type searchHit struct {
	Document domain.Document `json:"document"`
	Scores   rerankScores    `json:"scores"`
}

type searchResponse struct {
	Results    []searchHit            `json:"results"`
	Confidence float64                `json:"confidence"`
	Level      domain.ConfidenceLevel `json:"level"`
	Degraded   bool                   `json:"degraded,omitempty"`
	Diagnostic string                 `json:"diagnostic,omitempty"`
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, codeInvalidJSON, "invalid json")
		return
	}

	k := req.K
	if k <= 0 {
		k = rt.cfg.RAGSearchK
	}
	if k > maxSearchK {
		k = maxSearchK
	}

	started := time.Now()
	result, err := rt.retriever.Retrieve(r.Context(), req.Query, domain.SearchFilter{Category: req.Category}, k)
	if err != nil {
		writeError(w, err)
		return
	}
	rt.observeRAG("search", len(result.Results), started)

	writeJSON(w, http.StatusOK, toSearchResponse(result))
}

func toSearchResponse(result *domain.RetrievalResult) searchResponse {
	hits := make([]searchHit, 0, len(result.Results))
	for _, res := range result.Results {
		hits = append(hits, searchHit{
			Document: res.Document,
			Scores: rerankScores{
				Semantic: res.SemanticSimilarity,
				Recency:  res.RecencyWeight,
				Final:    res.FinalScore,
			},
		})
	}
	return searchResponse{
		Results:    hits,
		Confidence: result.Confidence,
		Level:      domain.ConfidenceLevelFor(result.Confidence),
		Degraded:   result.Degraded,
		Diagnostic: result.Diagnostic,
	}
}
