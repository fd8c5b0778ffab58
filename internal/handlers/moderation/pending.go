package moderation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/iamwavecut/ngwarden/internal/db"
	errs "github.com/iamwavecut/ngwarden/internal/errors"
)

// PendingEntry is media withheld until the reviewer decides on it.
type PendingEntry struct {
	OriginChatID int64     `json:"origin_chat_id"`
	UserID       int64     `json:"user_id"`
	UserName     string    `json:"user_name"`
	MediaKind    string    `json:"media_kind"`
	CreatedAt    time.Time `json:"created_at"`
}

// PendingRegistry maps a forwarded review copy to its origin. Take removes the
// entry in the same step it is read, and reports errs.ErrNotFound once it is
// gone.
type PendingRegistry interface {
	Put(ctx context.Context, reviewMessageID int, entry PendingEntry) error
	Take(ctx context.Context, reviewMessageID int) (*PendingEntry, error)
}

// MemoryPending keeps entries in process memory; they are lost on restart.
type MemoryPending struct {
	mu      sync.Mutex
	entries map[int]PendingEntry
}

var _ PendingRegistry = (*MemoryPending)(nil)

func NewMemoryPending() *MemoryPending {
	return &MemoryPending{entries: make(map[int]PendingEntry)}
}

func (m *MemoryPending) Put(_ context.Context, reviewMessageID int, entry PendingEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[reviewMessageID] = entry
	return nil
}

func (m *MemoryPending) Take(_ context.Context, reviewMessageID int) (*PendingEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[reviewMessageID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	delete(m.entries, reviewMessageID)
	return &entry, nil
}

func (m *MemoryPending) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

type pendingStore interface {
	PutPendingReview(ctx context.Context, review *db.PendingReview) error
	TakePendingReview(ctx context.Context, reviewMessageID int64) (*db.PendingReview, error)
}

// StorePending persists entries in the pending_reviews table.
type StorePending struct {
	store pendingStore
}

var _ PendingRegistry = (*StorePending)(nil)

func NewStorePending(store pendingStore) *StorePending {
	return &StorePending{store: store}
}

func (s *StorePending) Put(ctx context.Context, reviewMessageID int, entry PendingEntry) error {
	return s.store.PutPendingReview(ctx, &db.PendingReview{
		ReviewMessageID: int64(reviewMessageID),
		OriginChatID:    entry.OriginChatID,
		UserID:          entry.UserID,
		UserName:        entry.UserName,
		MediaKind:       entry.MediaKind,
		CreatedAt:       entry.CreatedAt,
	})
}

func (s *StorePending) Take(ctx context.Context, reviewMessageID int) (*PendingEntry, error) {
	review, err := s.store.TakePendingReview(ctx, int64(reviewMessageID))
	if err != nil {
		return nil, err
	}
	if review == nil {
		return nil, errs.ErrNotFound
	}
	return &PendingEntry{
		OriginChatID: review.OriginChatID,
		UserID:       review.UserID,
		UserName:     review.UserName,
		MediaKind:    review.MediaKind,
		CreatedAt:    review.CreatedAt,
	}, nil
}

// RedisPending stores entries as JSON values with an expiry.
type RedisPending struct {
	client *redis.Client
	ttl    time.Duration
}

var _ PendingRegistry = (*RedisPending)(nil)

func NewRedisPending(ctx context.Context, redisURL string, ttl time.Duration) (*RedisPending, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisPending{client: client, ttl: ttl}, nil
}

func pendingKey(reviewMessageID int) string {
	return "ngwarden/pending/" + strconv.Itoa(reviewMessageID)
}

func (r *RedisPending) Put(ctx context.Context, reviewMessageID int, entry PendingEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode pending entry: %w", err)
	}
	if err := r.client.Set(ctx, pendingKey(reviewMessageID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("%w: redis set: %w", errs.ErrStoreFailure, err)
	}
	return nil
}

func (r *RedisPending) Take(ctx context.Context, reviewMessageID int) (*PendingEntry, error) {
	raw, err := r.client.GetDel(ctx, pendingKey(reviewMessageID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: redis getdel: %w", errs.ErrStoreFailure, err)
	}
	entry := &PendingEntry{}
	if err := json.Unmarshal(raw, entry); err != nil {
		return nil, fmt.Errorf("decode pending entry: %w", err)
	}
	return entry, nil
}

func (r *RedisPending) Close() error {
	return r.client.Close()
}
