package ollama

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/campus-notice-rag/internal/core/domain"
	"github.com/kirillkom/campus-notice-rag/internal/infrastructure/resilience"
)

type Client struct {
	baseURL      string
	genModel     string
	embedModel   string
	temperature  float64
	httpClient   *http.Client
	streamClient *http.Client
	executor     *resilience.Executor
}

func New(baseURL, genModel, embedModel string) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		genModel:    genModel,
		embedModel:  embedModel,
		temperature: 0.1,
		httpClient:  &http.Client{Timeout: 120 * time.Second},
		// Streams are bounded by the request context instead.
		streamClient: &http.Client{},
	}
}

// WithExecutor routes requests through the retry/circuit-breaker executor.
func (c *Client) WithExecutor(executor *resilience.Executor) *Client {
	c.executor = executor
	return c
}

func (c *Client) WithTemperature(temperature float64) *Client {
	c.temperature = temperature
	return c
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	err := e.client.execute(ctx, "ollama.embed", func(callCtx context.Context) error {
		return e.client.postJSON(callCtx, "/api/embed", request, &response, "embed")
	})
	if err != nil {
		return nil, wrapTemporaryIfNeeded("ollama embed", err)
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

// ChatModel streams answers from /api/chat.
type ChatModel struct {
	client *Client
}

func NewChatModel(client *Client) *ChatModel {
	return &ChatModel{client: client}
}

func (m *ChatModel) Stream(ctx context.Context, prompt domain.PromptContext) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		request := map[string]any{
			"model":    m.client.genModel,
			"messages": buildChatMessages(prompt),
			"stream":   true,
			"options": map[string]any{
				"temperature": m.client.temperature,
			},
		}

		resp, err := resilience.Do(ctx, m.client.executor, "ollama.chat", func(callCtx context.Context) (*http.Response, error) {
			return m.client.openStream(callCtx, "/api/chat", request, "chat")
		}, classifyOllamaError)
		if err != nil {
			yield("", wrapTemporaryIfNeeded("ollama chat", err))
			return
		}
		defer resp.Body.Close()

		for chunk, err := range decodeChatStream(resp.Body) {
			if !yield(chunk, err) || err != nil {
				return
			}
		}
	}
}

func (c *Client) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	return c.executor.Execute(ctx, operation, fn, classifyOllamaError)
}
