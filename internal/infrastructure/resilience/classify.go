package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/campus-notice-rag/internal/core/domain"
)

var (
	transient = ErrorClassification{Retryable: true, RecordFailure: true}
	permanent = ErrorClassification{Retryable: false, RecordFailure: true}
	rejected  = ErrorClassification{Retryable: false, RecordFailure: false}
)

// StatusError is a non-2xx reply from an HTTP upstream.
type StatusError struct {
	Upstream   string
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e == nil {
		return "upstream status error"
	}
	msg := fmt.Sprintf("%s %s status: %s", e.Upstream, e.Operation, e.Status)
	if body := strings.TrimSpace(e.Body); body != "" {
		msg += ": " + body
	}
	return msg
}

// RetryableStatus reports whether an HTTP status is worth another attempt.
func RetryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// ClassifyStatus classifies an HTTP status. A non-retryable status is
// the caller's fault and does not count against the breaker.
func ClassifyStatus(code int) ErrorClassification {
	if RetryableStatus(code) {
		return transient
	}
	return rejected
}

// Classify applies the rules shared by every upstream. Cancellation is
// neither retried nor recorded, open circuits and network errors are
// retried, StatusError goes through ClassifyStatus, and anything else
// fails once and counts against the breaker.
func Classify(err error) ErrorClassification {
	return ClassifyWith(err, nil)
}

// ClassifyWith runs match before the shared rules that follow
// cancellation and open-circuit checks, letting an adapter recognise its
// own client errors.
func ClassifyWith(err error, match func(error) (ErrorClassification, bool)) ErrorClassification {
	switch {
	case err == nil:
		return ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return rejected
	case IsCircuitOpen(err):
		return transient
	}
	if match != nil {
		if class, ok := match(err); ok {
			return class
		}
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return ClassifyStatus(statusErr.StatusCode)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return transient
	}
	return permanent
}

// MarkTemporary tags err with domain.ErrTemporary when classifier says
// it is retryable or the circuit is open, so callers above the adapter
// can report "try again later" without knowing the upstream.
func MarkTemporary(operation string, err error, classifier ErrorClassifier) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifier == nil {
		classifier = Classify
	}
	if classifier(err).Retryable || IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
