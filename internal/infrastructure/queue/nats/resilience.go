package nats

import (
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/campus-notice-rag/internal/infrastructure/resilience"
)

var retryableNATS = []error{
	nats.ErrNoServers,
	nats.ErrTimeout,
	nats.ErrConnectionClosed,
	nats.ErrDisconnected,
	nats.ErrNoResponders,
}

func classifyNATSError(err error) resilience.ErrorClassification {
	return resilience.ClassifyWith(err, func(err error) (resilience.ErrorClassification, bool) {
		for _, target := range retryableNATS {
			if errors.Is(err, target) {
				return resilience.ErrorClassification{Retryable: true, RecordFailure: true}, true
			}
		}
		return resilience.ErrorClassification{}, false
	})
}

func wrapTemporaryIfNeeded(err error) error {
	return resilience.MarkTemporary("nats publish", err, classifyNATSError)
}
