package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/campus-notice-rag/internal/core/domain"
	"github.com/kirillkom/campus-notice-rag/internal/core/ports"
	"github.com/kirillkom/campus-notice-rag/internal/infrastructure/resilience"
)

const (
	payloadText       = "text"
	payloadChunkIndex = "chunk_index"
	filterKey         = "notice_type"
)

var pointNamespace = uuid.MustParse("6f1c2b9e-52a4-4a0e-9c39-0c1f8a7d3e10")

// Client is a fragment index backed by a Qdrant collection with cosine
// distance. Search reports distances (1 - cosine), lower is closer.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	embedder   ports.Embedder
	executor   *resilience.Executor

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string, embedder ports.Embedder, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		embedder:   embedder,
		executor:   executor,
	}
}

func (c *Client) Search(ctx context.Context, query string, topN int, filter domain.SearchFilter) ([]domain.Fragment, error) {
	vector, err := c.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	out, err := resilience.Do(ctx, c.executor, "qdrant.search", func(callCtx context.Context) ([]domain.Fragment, error) {
		return c.search(callCtx, vector, topN, filter)
	}, classifyQdrantError)
	if err != nil {
		return nil, wrapTemporaryIfNeeded("qdrant search", err)
	}
	return out, nil
}

func (c *Client) search(ctx context.Context, vector []float32, topN int, filter domain.SearchFilter) ([]domain.Fragment, error) {
	reqBody := map[string]any{
		"vector":       vector,
		"limit":        topN,
		"with_payload": true,
	}
	if !filter.Unrestricted() {
		reqBody["filter"] = matchFilter(filterKey, filter.Category)
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	status, err := c.doJSON(ctx, http.MethodPost, "/collections/"+c.collection+"/points/search", reqBody, &searchResp, "search")
	if status == http.StatusNotFound {
		// Nothing was indexed yet.
		return []domain.Fragment{}, nil
	}
	if err != nil {
		return nil, err
	}

	out := make([]domain.Fragment, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		metadata := make(map[string]any, len(r.Payload))
		for k, v := range r.Payload {
			if k == payloadText {
				continue
			}
			metadata[k] = v
		}
		out = append(out, domain.Fragment{
			Text:     getStringPayload(r.Payload, payloadText),
			Metadata: metadata,
			Score:    cosineDistance(r.Score),
		})
	}
	return out, nil
}

// IndexFragments replaces every point of the document with the given fragments.
func (c *Client) IndexFragments(ctx context.Context, doc *domain.Document, fragments []string, vectors [][]float32) error {
	if len(fragments) == 0 || len(vectors) == 0 {
		return nil
	}
	if len(fragments) != len(vectors) {
		return fmt.Errorf("fragments/vectors mismatch")
	}

	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	points := make([]point, 0, len(fragments))
	for i := range fragments {
		payload := doc.Metadata()
		payload[payloadText] = fragments[i]
		payload[payloadChunkIndex] = i
		points = append(points, point{
			ID:      PointID(doc.ID, i),
			Vector:  vectors[i],
			Payload: payload,
		})
	}

	err := c.execute(ctx, "qdrant.upsert", func(callCtx context.Context) error {
		deleteBody := map[string]any{"filter": matchFilter("doc_id", doc.ID)}
		if _, err := c.doJSON(callCtx, http.MethodPost, "/collections/"+c.collection+"/points/delete?wait=true", deleteBody, nil, "delete"); err != nil {
			return err
		}
		_, err := c.doJSON(callCtx, http.MethodPut, "/collections/"+c.collection+"/points?wait=true", map[string]any{"points": points}, nil, "upsert")
		return err
	})
	return wrapTemporaryIfNeeded("qdrant upsert", err)
}

// PointID is deterministic so re-indexing a document overwrites its points.
func PointID(docID string, index int) string {
	return uuid.NewSHA1(pointNamespace, []byte(docID+"#"+strconv.Itoa(index))).String()
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}

	status, err := c.doJSON(ctx, http.MethodPut, "/collections/"+c.collection, reqBody, nil, "ensure collection")
	// 409 if the collection already exists (depends on version/config).
	if status == http.StatusConflict {
		c.markCollectionEnsured(vectorSize)
		return nil
	}
	if err != nil {
		return err
	}
	c.markCollectionEnsured(vectorSize)
	return nil
}

func (c *Client) markCollectionEnsured(vectorSize int) {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
}

func (c *Client) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	return c.executor.Execute(ctx, operation, fn, classifyQdrantError)
}

// doJSON returns the response status alongside any error so callers can
// special-case statuses such as 404 and 409.
func (c *Client) doJSON(ctx context.Context, method, path string, payload any, out any, operation string) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal %s body: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return resp.StatusCode, &resilience.StatusError{
			Upstream:   upstream,
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(raw),
		}
	}
	if out == nil {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode %s response: %w", operation, err)
	}
	return resp.StatusCode, nil
}

func matchFilter(key, value string) map[string]any {
	return map[string]any{
		"must": []map[string]any{
			{
				"key": key,
				"match": map[string]any{
					"value": value,
				},
			},
		},
	}
}

// cosineDistance maps a cosine similarity score onto a non-negative distance.
func cosineDistance(score float64) float64 {
	d := 1 - score
	if d < 0 {
		return 0
	}
	return d
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
