package usecase

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/campus-notice-rag/internal/core/domain"
	"github.com/kirillkom/campus-notice-rag/internal/core/ports"
	"github.com/kirillkom/campus-notice-rag/internal/core/scoring"
)

const (
	outcomeRanked   = "ranked"
	outcomeFallback = "fallback"
	outcomeEmpty    = "empty"
	outcomeError    = "error"
)

// ParentIDKeys are the fragment metadata keys that may reference the parent
// document, in lookup order.
var ParentIDKeys = []string{"doc_id", "parent_id", "parent", "document_id"}

const pseudoParentPrefix = "__child__:"

type RetrievalOptions struct {
	// Alpha weighs semantic similarity against recency in the final score.
	Alpha            float64
	DecayDays        float64
	OverFetchFactor  int
	ParentScanFactor int
	DefaultK         int
	IndexTimeout     time.Duration
	StoreTimeout     time.Duration
}

func DefaultRetrievalOptions() RetrievalOptions {
	return RetrievalOptions{
		Alpha:            0.75,
		DecayDays:        scoring.DefaultDecayDays,
		OverFetchFactor:  5,
		ParentScanFactor: 3,
		DefaultK:         20,
		IndexTimeout:     15 * time.Second,
		StoreTimeout:     10 * time.Second,
	}
}

func (o RetrievalOptions) normalize() RetrievalOptions {
	out := o
	def := DefaultRetrievalOptions()
	if out.Alpha < 0 || out.Alpha > 1 {
		out.Alpha = def.Alpha
	}
	if out.DecayDays <= 0 {
		out.DecayDays = def.DecayDays
	}
	if out.OverFetchFactor <= 0 {
		out.OverFetchFactor = def.OverFetchFactor
	}
	if out.ParentScanFactor <= 0 {
		out.ParentScanFactor = def.ParentScanFactor
	}
	if out.DefaultK <= 0 {
		out.DefaultK = def.DefaultK
	}
	return out
}

// RetrievalUseCase searches fragments, collapses them to parent documents and
// ranks parents by a blend of semantic similarity and recency.
type RetrievalUseCase struct {
	index    ports.FragmentIndex
	docs     ports.DocumentStore
	recency  scoring.RecencyScorer
	opts     RetrievalOptions
	observer ports.RetrievalObserver
	logger   *slog.Logger
}

func NewRetrievalUseCase(
	index ports.FragmentIndex,
	docs ports.DocumentStore,
	opts RetrievalOptions,
	observer ports.RetrievalObserver,
	logger *slog.Logger,
) *RetrievalUseCase {
	opts = opts.normalize()
	if logger == nil {
		logger = slog.Default()
	}
	return &RetrievalUseCase{
		index:    index,
		docs:     docs,
		recency:  scoring.NewRecencyScorer(opts.DecayDays),
		opts:     opts,
		observer: observer,
		logger:   logger,
	}
}

// Retrieve returns at most k ranked parent documents and the mean semantic
// similarity of the returned set. Upstream failures never surface as errors:
// they produce an empty result carrying a Diagnostic. Only an empty query is
// rejected.
func (uc *RetrievalUseCase) Retrieve(
	ctx context.Context,
	query string,
	filter domain.SearchFilter,
	k int,
) (*domain.RetrievalResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve", errors.New("query is required"))
	}
	if k <= 0 {
		k = uc.opts.DefaultK
	}
	if filter.Unrestricted() {
		filter = domain.SearchFilter{}
	}

	start := time.Now()
	result, outcome, err := uc.retrieveGuarded(ctx, query, filter, k)
	if err != nil {
		uc.logger.Error("retrieval_failed",
			"query", query,
			"category", filter.Category,
			"k", k,
			"error", err,
		)
		result = &domain.RetrievalResult{
			Results:    []domain.RankedResult{},
			Diagnostic: fmt.Sprintf("document search failed: %v", err),
		}
		outcome = outcomeError
	}

	uc.logger.Debug("retrieval_done",
		"outcome", outcome,
		"results", len(result.Results),
		"confidence", result.Confidence,
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)
	if uc.observer != nil {
		uc.observer.ObserveRetrieval(outcome, len(result.Results), result.Confidence, time.Since(start).Seconds())
	}
	return result, nil
}

func (uc *RetrievalUseCase) retrieveGuarded(
	ctx context.Context,
	query string,
	filter domain.SearchFilter,
	k int,
) (result *domain.RetrievalResult, outcome string, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, outcome, err = nil, outcomeError, fmt.Errorf("retrieval panic: %v", r)
		}
	}()
	return uc.retrieve(ctx, query, filter, k)
}

func (uc *RetrievalUseCase) retrieve(
	ctx context.Context,
	query string,
	filter domain.SearchFilter,
	k int,
) (*domain.RetrievalResult, string, error) {
	fragments, err := uc.searchFragments(ctx, query, k*uc.opts.OverFetchFactor, filter)
	if err != nil {
		return nil, outcomeError, err
	}
	if len(fragments) == 0 {
		return &domain.RetrievalResult{Results: []domain.RankedResult{}}, outcomeEmpty, nil
	}

	groups := groupByParent(fragments, k*uc.opts.ParentScanFactor)

	parents, err := uc.loadParents(ctx, groups.order)
	if err != nil {
		return nil, outcomeError, err
	}

	candidates := make([]domain.RankedResult, 0, len(groups.order))
	for i, parentID := range groups.order {
		doc := parents[i]
		if doc == nil {
			continue
		}
		semantic := groups.best[parentID]
		recency := uc.recency.Weight(doc.Date).Value
		candidates = append(candidates, domain.RankedResult{
			Document:           *doc,
			SemanticSimilarity: semantic,
			RecencyWeight:      recency,
			FinalScore:         BlendScore(uc.opts.Alpha, semantic, recency),
		})
	}

	if len(candidates) == 0 {
		uc.logger.Warn("retrieval_parent_miss",
			"parents", len(groups.order),
			"fragments", len(fragments),
		)
		return uc.fragmentFallback(fragments, k), outcomeFallback, nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].FinalScore > candidates[j].FinalScore
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	return &domain.RetrievalResult{
		Results:    candidates,
		Confidence: meanSemantic(candidates),
	}, outcomeRanked, nil
}

func (uc *RetrievalUseCase) searchFragments(
	ctx context.Context,
	query string,
	topN int,
	filter domain.SearchFilter,
) ([]domain.Fragment, error) {
	if uc.opts.IndexTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.opts.IndexTimeout)
		defer cancel()
	}
	fragments, err := uc.index.Search(ctx, query, topN, filter)
	if err != nil {
		return nil, fmt.Errorf("search fragments: %w", err)
	}
	return fragments, nil
}

func (uc *RetrievalUseCase) loadParents(ctx context.Context, ids []string) ([]*domain.Document, error) {
	if uc.opts.StoreTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.opts.StoreTimeout)
		defer cancel()
	}
	docs, err := uc.docs.BatchGet(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load parent documents: %w", err)
	}
	if len(docs) != len(ids) {
		return nil, fmt.Errorf("load parent documents: got %d entries for %d ids", len(docs), len(ids))
	}
	return docs, nil
}

// fragmentFallback treats the first k raw fragments as the result set, in
// index order, when no parent could be resolved.
func (uc *RetrievalUseCase) fragmentFallback(fragments []domain.Fragment, k int) *domain.RetrievalResult {
	if len(fragments) > k {
		fragments = fragments[:k]
	}
	results := make([]domain.RankedResult, 0, len(fragments))
	for _, fragment := range fragments {
		doc := documentFromFragment(fragment)
		semantic := scoring.Similarity(fragment.Score).Value
		results = append(results, domain.RankedResult{
			Document:           doc,
			SemanticSimilarity: semantic,
			RecencyWeight:      uc.recency.Weight(doc.Date).Value,
			FinalScore:         semantic,
		})
	}
	return &domain.RetrievalResult{
		Results:    results,
		Confidence: meanSemantic(results),
		Degraded:   true,
	}
}

// BlendScore is the convex combination used for ranking only.
func BlendScore(alpha, semantic, recency float64) float64 {
	return alpha*semantic + (1-alpha)*recency
}

type parentGroups struct {
	order []string
	best  map[string]float64
}

// groupByParent keeps the best similarity per parent in first-seen order and
// stops scanning once maxParents distinct parents were collected. Fragments past
// that point are never examined, even if they would outrank collected parents.
func groupByParent(fragments []domain.Fragment, maxParents int) parentGroups {
	groups := parentGroups{
		order: make([]string, 0, maxParents),
		best:  make(map[string]float64, maxParents),
	}
	for _, fragment := range fragments {
		parentID := ResolveParentID(fragment)
		similarity := scoring.Similarity(fragment.Score).Value

		current, seen := groups.best[parentID]
		switch {
		case !seen:
			groups.best[parentID] = similarity
			groups.order = append(groups.order, parentID)
		case similarity > current:
			groups.best[parentID] = similarity
		}

		if len(groups.order) >= maxParents {
			break
		}
	}
	return groups
}

// FirstMetadataValue returns the value of the first key present with a
// non-empty value.
func FirstMetadataValue(metadata map[string]any, keys []string) (string, bool) {
	for _, key := range keys {
		v, ok := metadata[key]
		if !ok || v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			s = fmt.Sprintf("%v", v)
		}
		if s != "" {
			return s, true
		}
	}
	return "", false
}

// ResolveParentID returns the fragment's parent id, or a pseudo id derived from
// the fragment text when no parent reference is present. Two fragments with
// identical text share the pseudo id.
func ResolveParentID(fragment domain.Fragment) string {
	if id, ok := FirstMetadataValue(fragment.Metadata, ParentIDKeys); ok {
		return id
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(fragment.Text))
	return pseudoParentPrefix + strconv.FormatUint(h.Sum64(), 16)
}

func documentFromFragment(fragment domain.Fragment) domain.Document {
	return domain.Document{
		ID:         ResolveParentID(fragment),
		Title:      fragment.MetadataString("title"),
		Body:       fragment.Text,
		Date:       fragment.MetadataString("date"),
		URL:        fragment.MetadataString("url"),
		Category:   fragment.MetadataString("notice_type"),
		Department: fragment.MetadataString("department"),
	}
}

func meanSemantic(results []domain.RankedResult) float64 {
	if len(results) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range results {
		sum += r.SemanticSimilarity
	}
	return sum / float64(len(results))
}
