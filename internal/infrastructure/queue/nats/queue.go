package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/campus-notice-rag/internal/core/domain"
	"github.com/kirillkom/campus-notice-rag/internal/infrastructure/resilience"
)

const (
	workerQueueGroup = "notice-indexers"
	headerNoticeID   = "Notice-Id"
	headerOriginalID = "Notice-Original-Id"
	contentTypeJSON  = "application/json"
)

// Queue carries JSON-encoded notices from publishers to index workers.
// Workers share a queue group, so each notice is indexed once.
type Queue struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
	logger   *slog.Logger
}

type Options struct {
	ConnectTimeout     time.Duration
	ReconnectWait      time.Duration
	MaxReconnects      int
	FailFast           bool
	ResilienceExecutor *resilience.Executor
	Logger             *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 2 * time.Second
	}
	if o.ReconnectWait <= 0 {
		o.ReconnectWait = 2 * time.Second
	}
	if o.MaxReconnects <= 0 {
		o.MaxReconnects = 60
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// New connects to url. Unless FailFast is set the connection keeps
// retrying in the background, so the API can start before NATS does.
func New(url, subject string, options Options) (*Queue, error) {
	opts := options.withDefaults()
	logger := opts.Logger

	conn, err := nats.Connect(
		url,
		nats.Name("campus-notice-rag"),
		nats.Timeout(opts.ConnectTimeout),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.MaxReconnects(opts.MaxReconnects),
		nats.RetryOnFailedConnect(!opts.FailFast),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{conn: conn, subject: subject, executor: opts.ResilienceExecutor, logger: logger}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishNotice(ctx context.Context, doc domain.Document) error {
	msg, err := newNoticeMsg(q.subject, doc)
	if err != nil {
		return err
	}
	err = q.executor.Execute(ctx, "nats.publish", func(context.Context) error {
		if err := q.conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}, classifyNATSError)
	return wrapTemporaryIfNeeded(err)
}

// SubscribeNotices blocks until ctx is done, then drains the subscription.
// Handler errors are logged; redelivery is the handler's concern.
func (q *Queue) SubscribeNotices(ctx context.Context, handler func(context.Context, domain.Document) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, workerQueueGroup, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		doc, err := noticeFromMsg(msg)
		if err != nil {
			q.logger.Error("notice_decode_failed",
				"subject", msg.Subject,
				"notice_id", msg.Header.Get(headerNoticeID),
				"bytes", len(msg.Data),
				"error", err,
			)
			return
		}
		if err := handler(ctx, doc); err != nil {
			q.logger.Error("notice_handler_failed", "doc_id", doc.ID, "original_id", doc.OriginalID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func newNoticeMsg(subject string, doc domain.Document) (*nats.Msg, error) {
	data, err := encodeNotice(doc)
	if err != nil {
		return nil, err
	}
	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set("Content-Type", contentTypeJSON)
	if doc.ID != "" {
		msg.Header.Set(headerNoticeID, doc.ID)
	}
	if doc.OriginalID != "" {
		msg.Header.Set(headerOriginalID, doc.OriginalID)
	}
	return msg, nil
}

// noticeFromMsg decodes the body and fills ids the body omitted from the
// message headers.
func noticeFromMsg(msg *nats.Msg) (domain.Document, error) {
	var doc domain.Document
	if err := json.Unmarshal(msg.Data, &doc); err != nil {
		return domain.Document{}, fmt.Errorf("unmarshal notice: %w", err)
	}
	if doc.ID == "" {
		doc.ID = msg.Header.Get(headerNoticeID)
	}
	if doc.OriginalID == "" {
		doc.OriginalID = msg.Header.Get(headerOriginalID)
	}
	if doc.ID == "" && doc.OriginalID == "" {
		return domain.Document{}, domain.WrapError(domain.ErrInvalidInput, "decode notice", errors.New("notice has no id"))
	}
	return doc, nil
}

func encodeNotice(doc domain.Document) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal notice: %w", err)
	}
	return data, nil
}
