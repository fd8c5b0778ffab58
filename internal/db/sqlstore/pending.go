package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iamwavecut/ngwarden/internal/db"
)

func (c *sqlClient) PutPendingReview(ctx context.Context, review *db.PendingReview) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := `
		INSERT INTO pending_reviews (review_message_id, origin_chat_id, user_id, user_name, media_kind, created_at)
		VALUES (:review_message_id, :origin_chat_id, :user_id, :user_name, :media_kind, :created_at)
		ON CONFLICT (review_message_id) DO UPDATE SET
			origin_chat_id = excluded.origin_chat_id,
			user_id = excluded.user_id,
			user_name = excluded.user_name,
			media_kind = excluded.media_kind,
			created_at = excluded.created_at
	`
	if _, err := c.db.NamedExecContext(ctx, query, review); err != nil {
		return storeErr("put pending review", err)
	}
	return nil
}

// TakePendingReview deletes and returns the entry in one statement, so only
// one caller can ever observe it. A missing entry yields nil without error.
func (c *sqlClient) TakePendingReview(ctx context.Context, reviewMessageID int64) (*db.PendingReview, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	review := &db.PendingReview{}
	query := c.rebind(`
		DELETE FROM pending_reviews WHERE review_message_id = ?
		RETURNING review_message_id, origin_chat_id, user_id, user_name, media_kind, created_at
	`)
	if err := c.db.GetContext(ctx, review, query, reviewMessageID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storeErr("take pending review", err)
	}
	return review, nil
}

func (c *sqlClient) CountPendingReviews(ctx context.Context) (int, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var count int
	if err := c.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM pending_reviews`); err != nil {
		return 0, storeErr("count pending reviews", err)
	}
	return count, nil
}
