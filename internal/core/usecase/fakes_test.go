package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/kirillkom/coaching-kb/internal/core/domain"
)

type storeFake struct {
	mu      sync.Mutex
	data    map[string][]byte
	setErr  map[string]error
	listErr error

	// honorCtx makes Get fail on a done context like the network-backed stores.
	honorCtx bool
}

func newStoreFake() *storeFake {
	return &storeFake{data: map[string][]byte{}, setErr: map[string]error{}}
}

func (f *storeFake) Get(ctx context.Context, key string) ([]byte, error) {
	if f.honorCtx && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get "+key, errors.New("missing key"))
	}
	return append([]byte(nil), v...), nil
}

func (f *storeFake) Set(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for prefix, err := range f.setErr {
		if strings.HasPrefix(key, prefix) {
			return err
		}
	}
	f.data[key] = append([]byte(nil), value...)
	return nil
}

func (f *storeFake) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

func (f *storeFake) List(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	keys := make([]string, 0, len(f.data))
	for k := range f.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (f *storeFake) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[key]
	return ok
}

type queueFake struct {
	published []string
	err       error
}

func (f *queueFake) PublishDocumentIngested(_ context.Context, documentID string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, documentID)
	return nil
}

func (f *queueFake) SubscribeDocumentIngested(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

type textExtractorFake struct {
	err error
}

func (f *textExtractorFake) Extract(_ context.Context, _, _ string, raw []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return string(raw), nil
}
