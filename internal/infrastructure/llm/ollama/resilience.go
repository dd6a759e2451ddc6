package ollama

import "github.com/kirillkom/campus-notice-rag/internal/infrastructure/resilience"

const upstream = "ollama"

func classifyOllamaError(err error) resilience.ErrorClassification {
	return resilience.Classify(err)
}

func wrapTemporaryIfNeeded(operation string, err error) error {
	return resilience.MarkTemporary(operation, err, classifyOllamaError)
}
