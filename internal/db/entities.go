package db

import (
	"time"
)

type (
	// User is a member observed in a moderated chat.
	User struct {
		ID        int64     `db:"id"`
		UserName  string    `db:"username"`
		WarnCount int       `db:"warn_count"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}

	BannedWord struct {
		Word      string    `db:"word"`
		CreatedAt time.Time `db:"created_at"`
	}

	// PendingReview is media waiting for a reviewer decision, keyed by the
	// id of the forwarded copy in the reviewer chat.
	PendingReview struct {
		ReviewMessageID int64     `db:"review_message_id"`
		OriginChatID    int64     `db:"origin_chat_id"`
		UserID          int64     `db:"user_id"`
		UserName        string    `db:"user_name"`
		MediaKind       string    `db:"media_kind"`
		CreatedAt       time.Time `db:"created_at"`
	}
)
