package openai

import (
	"errors"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/kirillkom/campus-notice-rag/internal/infrastructure/resilience"
)

// classifyOpenAIError reads the status carried by go-openai's error types
// and defers everything else to the shared rules.
func classifyOpenAIError(err error) resilience.ErrorClassification {
	return resilience.ClassifyWith(err, func(err error) (resilience.ErrorClassification, bool) {
		var apiErr *goopenai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
			return resilience.ClassifyStatus(apiErr.HTTPStatusCode), true
		}
		var reqErr *goopenai.RequestError
		if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
			return resilience.ClassifyStatus(reqErr.HTTPStatusCode), true
		}
		return resilience.ErrorClassification{}, false
	})
}

func wrapTemporaryIfNeeded(operation string, err error) error {
	return resilience.MarkTemporary(operation, err, classifyOpenAIError)
}
