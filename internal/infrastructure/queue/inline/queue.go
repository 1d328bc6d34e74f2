// Package inline delivers document events synchronously inside the publishing call.
package inline

import (
	"context"
	"errors"
	"sync"

	"github.com/kirillkom/coaching-kb/internal/core/domain"
)

type Queue struct {
	mu      sync.RWMutex
	handler func(context.Context, string) error
}

func New() *Queue {
	return &Queue{}
}

// Bind installs the handler without blocking, for callers that process on publish.
func (q *Queue) Bind(handler func(context.Context, string) error) {
	q.mu.Lock()
	q.handler = handler
	q.mu.Unlock()
}

// PublishDocumentIngested runs the bound handler before returning. With no
// handler bound the event is dropped.
func (q *Queue) PublishDocumentIngested(ctx context.Context, documentID string) error {
	q.mu.RLock()
	handler := q.handler
	q.mu.RUnlock()
	if handler == nil {
		return nil
	}
	return handler(ctx, documentID)
}

// SubscribeDocumentIngested binds the handler and blocks until ctx ends.
func (q *Queue) SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error {
	if handler == nil {
		return domain.WrapError(domain.ErrInvalidInput, "subscribe inline queue", errors.New("handler is nil"))
	}
	q.Bind(handler)
	<-ctx.Done()
	q.Bind(nil)
	return nil
}

func (q *Queue) Close() {
	q.Bind(nil)
}
