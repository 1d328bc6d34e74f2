package memory

import (
	"context"
	"testing"

	"github.com/kirillkom/coaching-kb/internal/core/domain"
)

func TestStoreRoundTripAndCopies(t *testing.T) {
	ctx := context.Background()
	s := New()

	value := []byte(`{"id":"a"}`)
	if err := s.Set(ctx, "documents/a", value); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	value[0] = 'X'

	got, err := s.Get(ctx, "documents/a")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != `{"id":"a"}` {
		t.Fatalf("stored value was aliased: %q", got)
	}

	_ = s.Set(ctx, "analyses/a", []byte("{}"))
	keys, _ := s.List(ctx)
	if len(keys) != 2 || keys[0] != "analyses/a" || keys[1] != "documents/a" {
		t.Fatalf("unexpected keys: %v", keys)
	}

	if err := s.Delete(ctx, "documents/a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := s.Delete(ctx, "documents/a"); err != nil {
		t.Fatalf("second Delete() error = %v", err)
	}
	if _, err := s.Get(ctx, "documents/a"); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
