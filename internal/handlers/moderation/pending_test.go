package moderation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iamwavecut/ngwarden/internal/db"
	errs "github.com/iamwavecut/ngwarden/internal/errors"
)

type memoryPendingStore struct {
	mu      sync.Mutex
	reviews map[int64]db.PendingReview
}

func (m *memoryPendingStore) PutPendingReview(_ context.Context, review *db.PendingReview) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reviews[review.ReviewMessageID] = *review
	return nil
}

func (m *memoryPendingStore) TakePendingReview(_ context.Context, id int64) (*db.PendingReview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	review, ok := m.reviews[id]
	if !ok {
		return nil, nil
	}
	delete(m.reviews, id)
	return &review, nil
}

func TestPendingRegistriesAreReadOnce(t *testing.T) {
	t.Parallel()

	registries := map[string]PendingRegistry{
		"memory": NewMemoryPending(),
		"store":  NewStorePending(&memoryPendingStore{reviews: map[int64]db.PendingReview{}}),
	}
	for name, registry := range registries {
		registry := registry
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			want := PendingEntry{OriginChatID: -100, UserID: 7, UserName: "bob", MediaKind: "photo", CreatedAt: time.Unix(1700000000, 0).UTC()}
			if err := registry.Put(ctx, 55, want); err != nil {
				t.Fatalf("put: %v", err)
			}
			got, err := registry.Take(ctx, 55)
			if err != nil {
				t.Fatalf("take: %v", err)
			}
			if *got != want {
				t.Fatalf("got %#v want %#v", *got, want)
			}
			if _, err := registry.Take(ctx, 55); !errors.Is(err, errs.ErrNotFound) {
				t.Fatalf("second take must report not found, got %v", err)
			}
		})
	}
}

func TestMemoryPendingConcurrentTake(t *testing.T) {
	t.Parallel()

	registry := NewMemoryPending()
	ctx := context.Background()
	if err := registry.Put(ctx, 1, PendingEntry{OriginChatID: -1}); err != nil {
		t.Fatalf("put: %v", err)
	}

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := registry.Take(ctx, 1); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Fatalf("expected exactly one successful take, got %d", wins.Load())
	}
	if registry.Len() != 0 {
		t.Fatalf("registry must be empty")
	}
}

func TestPendingKey(t *testing.T) {
	t.Parallel()

	if got := pendingKey(42); got != "ngwarden/pending/42" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestNewRedisPendingRejectsBadURL(t *testing.T) {
	t.Parallel()

	if _, err := NewRedisPending(context.Background(), "not-a-url", time.Hour); err == nil {
		t.Fatalf("expected url parse error")
	}
}
