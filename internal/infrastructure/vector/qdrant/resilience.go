package qdrant

import "github.com/kirillkom/campus-notice-rag/internal/infrastructure/resilience"

const upstream = "qdrant"

func classifyQdrantError(err error) resilience.ErrorClassification {
	return resilience.Classify(err)
}

func wrapTemporaryIfNeeded(operation string, err error) error {
	return resilience.MarkTemporary(operation, err, classifyQdrantError)
}
