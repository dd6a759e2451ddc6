package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/campus-notice-rag/internal/core/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClassification
	}{
		{name: "nil", err: nil, want: ErrorClassification{}},
		{name: "canceled", err: fmt.Errorf("call: %w", context.Canceled), want: rejected},
		{name: "deadline", err: context.DeadlineExceeded, want: rejected},
		{name: "open circuit", err: gobreaker.ErrOpenState, want: transient},
		{name: "503", err: &StatusError{Upstream: "qdrant", StatusCode: 503}, want: transient},
		{name: "429", err: &StatusError{Upstream: "ollama", StatusCode: 429}, want: transient},
		{name: "400", err: &StatusError{Upstream: "qdrant", StatusCode: 400}, want: rejected},
		{name: "network", err: &net.OpError{Op: "dial", Err: errors.New("refused")}, want: transient},
		{name: "other", err: errors.New("decode"), want: permanent},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err); got != tc.want {
				t.Fatalf("Classify(%v) = %+v, want %+v", tc.err, got, tc.want)
			}
		})
	}
}

func TestClassifyWithMatcherRunsAfterCancellation(t *testing.T) {
	errQuota := errors.New("quota")
	match := func(err error) (ErrorClassification, bool) {
		if errors.Is(err, errQuota) {
			return transient, true
		}
		return ErrorClassification{}, false
	}

	if got := ClassifyWith(errQuota, match); got != transient {
		t.Fatalf("expected matcher result, got %+v", got)
	}
	if got := ClassifyWith(errors.Join(context.Canceled, errQuota), match); got != rejected {
		t.Fatalf("cancellation must win over matcher, got %+v", got)
	}
	if got := ClassifyWith(errors.New("other"), match); got != permanent {
		t.Fatalf("expected shared rules on no match, got %+v", got)
	}
}

func TestMarkTemporary(t *testing.T) {
	statusErr := &StatusError{Upstream: "qdrant", Operation: "search", StatusCode: 502, Status: "502 Bad Gateway"}
	err := MarkTemporary("qdrant search", statusErr, nil)
	if !errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary, got %v", err)
	}
	if again := MarkTemporary("qdrant search", err, nil); again != err {
		t.Fatalf("expected already-temporary error untouched, got %v", again)
	}

	plain := errors.New("bad payload")
	if got := MarkTemporary("qdrant search", plain, nil); got != plain {
		t.Fatalf("expected permanent error untouched, got %v", got)
	}
	if got := MarkTemporary("qdrant search", nil, nil); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestStatusErrorMessage(t *testing.T) {
	err := &StatusError{Upstream: "ollama", Operation: "chat", StatusCode: 500, Status: "500 Internal Server Error", Body: " model crashed\n"}
	if got := err.Error(); got != "ollama chat status: 500 Internal Server Error: model crashed" {
		t.Fatalf("unexpected message %q", got)
	}
	err.Body = ""
	if got := err.Error(); strings.HasSuffix(got, ":") {
		t.Fatalf("unexpected trailing colon in %q", got)
	}
}

func TestConfigBackoffIsCapped(t *testing.T) {
	cfg := Config{RetryInitialBackoff: 10 * time.Millisecond, RetryMaxBackoff: 35 * time.Millisecond, RetryMultiplier: 2}.normalize()
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 35 * time.Millisecond, 35 * time.Millisecond}
	for i, w := range want {
		if got := cfg.backoff(i + 1); got != w {
			t.Fatalf("backoff(%d) = %s, want %s", i+1, got, w)
		}
	}
}

func TestConfigNormalizeFillsDefaults(t *testing.T) {
	cfg := Config{RetryInitialBackoff: time.Second, BreakerFailureRatio: 2}.normalize()
	def := DefaultConfig()
	if cfg.RetryMaxAttempts != def.RetryMaxAttempts {
		t.Fatalf("expected default attempts, got %d", cfg.RetryMaxAttempts)
	}
	if cfg.RetryMaxBackoff != time.Second {
		t.Fatalf("max backoff must not be below initial, got %s", cfg.RetryMaxBackoff)
	}
	if cfg.BreakerFailureRatio != def.BreakerFailureRatio {
		t.Fatalf("expected default ratio, got %v", cfg.BreakerFailureRatio)
	}
	if cfg.BreakerEnabled {
		t.Fatalf("breaker flag must be kept as given")
	}
}
