package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"sort"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/kirillkom/campus-notice-rag/internal/core/domain"
	"github.com/kirillkom/campus-notice-rag/internal/infrastructure/resilience"
)

// Client talks to any OpenAI-compatible endpoint for chat streaming and embeddings.
type Client struct {
	client         *goopenai.Client
	model          string
	embeddingModel string
	temperature    float32
	executor       *resilience.Executor
}

func New(apiKey, baseURL, model, embeddingModel string) *Client {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{
		client:         goopenai.NewClientWithConfig(cfg),
		model:          model,
		embeddingModel: embeddingModel,
		temperature:    0.1,
	}
}

func (c *Client) WithExecutor(executor *resilience.Executor) *Client {
	c.executor = executor
	return c
}

func (c *Client) WithTemperature(temperature float32) *Client {
	c.temperature = temperature
	return c
}

func (c *Client) Stream(ctx context.Context, prompt domain.PromptContext) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		req := goopenai.ChatCompletionRequest{
			Model:       c.model,
			Messages:    buildMessages(prompt),
			Temperature: c.temperature,
			Stream:      true,
		}

		stream, err := resilience.Do(ctx, c.executor, "openai.chat", func(callCtx context.Context) (*goopenai.ChatCompletionStream, error) {
			return c.client.CreateChatCompletionStream(callCtx, req)
		}, classifyOpenAIError)
		if err != nil {
			yield("", wrapTemporaryIfNeeded("openai chat", err))
			return
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", fmt.Errorf("openai chat stream: %w", err))
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			if delta := resp.Choices[0].Delta.Content; delta != "" {
				if !yield(delta, nil) {
					return
				}
			}
		}
	}
}

func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := resilience.Do(ctx, c.executor, "openai.embed", func(callCtx context.Context) (goopenai.EmbeddingResponse, error) {
		return c.client.CreateEmbeddings(callCtx, goopenai.EmbeddingRequest{
			Input: texts,
			Model: goopenai.EmbeddingModel(c.embeddingModel),
		})
	}, classifyOpenAIError)
	if err != nil {
		return nil, wrapTemporaryIfNeeded("openai embed", err)
	}

	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	out := make([][]float32, 0, len(data))
	for _, item := range data {
		out = append(out, item.Embedding)
	}
	return out, nil
}

func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

func buildMessages(prompt domain.PromptContext) []goopenai.ChatCompletionMessage {
	messages := make([]goopenai.ChatCompletionMessage, 0, len(prompt.History)+2)
	if prompt.SystemInstructions != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: prompt.SystemInstructions,
		})
	}
	for _, turn := range prompt.History {
		role := goopenai.ChatMessageRoleUser
		if turn.Role == domain.RoleAssistant {
			role = goopenai.ChatMessageRoleAssistant
		}
		messages = append(messages, goopenai.ChatCompletionMessage{Role: role, Content: turn.Content})
	}
	messages = append(messages, goopenai.ChatCompletionMessage{
		Role:    goopenai.ChatMessageRoleUser,
		Content: prompt.UserMessage(),
	})
	return messages
}
