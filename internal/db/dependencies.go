package db

import "context"

type Client interface {
	Close() error

	EnsureUser(ctx context.Context, userID int64, userName string) error
	GetUser(ctx context.Context, userID int64) (*User, error)
	IncrementWarnings(ctx context.Context, userID int64, userName string) (int, error)
	ResetWarnings(ctx context.Context, userID int64) error

	ListBannedWords(ctx context.Context) ([]string, error)
	AddBannedWord(ctx context.Context, word string) (bool, error)
	RemoveBannedWord(ctx context.Context, word string) (bool, error)
	SeedBannedWords(ctx context.Context, words []string) (int, error)

	PutPendingReview(ctx context.Context, review *PendingReview) error
	TakePendingReview(ctx context.Context, reviewMessageID int64) (*PendingReview, error)
	CountPendingReviews(ctx context.Context) (int, error)
}
