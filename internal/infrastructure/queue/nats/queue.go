package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/coaching-kb/internal/core/domain"
	"github.com/kirillkom/coaching-kb/internal/infrastructure/resilience"
)

type Subjects struct {
	DocumentIngested    string
	Suggestions         string
	AcceptedSuggestions string
}

func (s Subjects) withDefaults() Subjects {
	if s.DocumentIngested == "" {
		s.DocumentIngested = "documents.ingested"
	}
	if s.Suggestions == "" {
		s.Suggestions = "coaching.suggestions"
	}
	if s.AcceptedSuggestions == "" {
		s.AcceptedSuggestions = "coaching.suggestions.accepted"
	}
	return s
}

// Queue carries document ingestion events and the live suggestion stream.
type Queue struct {
	conn     *nats.Conn
	subjects Subjects
	executor *resilience.Executor
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func New(url string, subjects Subjects) (*Queue, error) {
	return NewWithOptions(url, subjects, Options{})
}

func NewWithOptions(url string, subjects Subjects, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("coaching-kb"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:     conn,
		subjects: subjects.withDefaults(),
		executor: options.ResilienceExecutor,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) publish(ctx context.Context, operation, subject string, payload []byte) error {
	call := func(_ context.Context) error {
		if err := q.conn.Publish(subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	var err error
	if q.executor != nil {
		err = q.executor.Execute(ctx, operation, call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(operation, err)
	}
	return nil
}

func (q *Queue) PublishDocumentIngested(ctx context.Context, documentID string) error {
	return q.publish(ctx, "nats.publish", q.subjects.DocumentIngested, []byte(documentID))
}

// SubscribeDocumentIngested joins the "workers" queue group so each event is processed once.
func (q *Queue) SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := q.conn.QueueSubscribe(q.subjects.DocumentIngested, "workers", func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		documentID := strings.TrimSpace(string(msg.Data))
		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, documentID); err != nil {
			slog.Error("worker_handler_failed", "document_id", documentID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	return q.serve(ctx, sub)
}

func (q *Queue) PublishAcceptedSuggestion(ctx context.Context, suggestion domain.Suggestion) error {
	payload, err := json.Marshal(suggestion)
	if err != nil {
		return fmt.Errorf("marshal suggestion: %w", err)
	}
	return q.publish(ctx, "nats.publish_suggestion", q.subjects.AcceptedSuggestions, payload)
}

// SubscribeSuggestions uses a plain subscription: NATS delivers one subscriber's
// messages in publish order, which the dedup engine relies on.
func (q *Queue) SubscribeSuggestions(ctx context.Context, handler func(context.Context, domain.Suggestion) error) error {
	sub, err := q.conn.Subscribe(q.subjects.Suggestions, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		suggestion, err := DecodeSuggestion(msg.Data)
		if err != nil {
			slog.Warn("suggestion_decode_failed", "subject", msg.Subject, "error", err)
			return
		}
		if err := handler(ctx, suggestion); err != nil {
			slog.Error("suggestion_handler_failed", "stream_id", suggestion.StreamID, "suggestion_id", suggestion.ID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe suggestions: %w", err)
	}
	return q.serve(ctx, sub)
}

func (q *Queue) serve(ctx context.Context, sub *nats.Subscription) error {
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

// DecodeSuggestion parses a suggestion message. Messages without text are rejected.
func DecodeSuggestion(data []byte) (domain.Suggestion, error) {
	var s domain.Suggestion
	if err := json.Unmarshal(data, &s); err != nil {
		return domain.Suggestion{}, domain.WrapError(domain.ErrInvalidInput, "decode suggestion", err)
	}
	if strings.TrimSpace(s.Text) == "" {
		return domain.Suggestion{}, domain.WrapError(domain.ErrInvalidInput, "decode suggestion", errors.New("suggestion_text is empty"))
	}
	if s.StreamID == "" {
		s.StreamID = "default"
	}
	return s, nil
}
