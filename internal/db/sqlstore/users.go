package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iamwavecut/tool"

	"github.com/iamwavecut/ngwarden/internal/db"
)

func (c *sqlClient) EnsureUser(ctx context.Context, userID int64, userName string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now().UTC()
	query := c.rebind(`
		INSERT INTO users (id, username, warn_count, created_at, updated_at)
		VALUES (?, ?, 0, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			username = excluded.username,
			updated_at = excluded.updated_at
		WHERE excluded.username <> '' AND users.username <> excluded.username
	`)
	if _, err := c.db.ExecContext(ctx, query, userID, userName, now, now); err != nil {
		return storeErr("ensure user", err)
	}
	return nil
}

func (c *sqlClient) GetUser(ctx context.Context, userID int64) (*db.User, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	user := &db.User{}
	query := c.rebind(`SELECT id, username, warn_count, created_at, updated_at FROM users WHERE id = ?`)
	if err := c.db.GetContext(ctx, user, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storeErr("get user", err)
	}
	return user, nil
}

// IncrementWarnings bumps the counter in a single statement and returns the
// new value. Unknown users are created with a count of one.
func (c *sqlClient) IncrementWarnings(ctx context.Context, userID int64, userName string) (int, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now().UTC()
	query := c.rebind(`
		INSERT INTO users (id, username, warn_count, created_at, updated_at)
		VALUES (?, ?, 1, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			warn_count = users.warn_count + 1,
			updated_at = excluded.updated_at
		RETURNING warn_count
	`)
	var count int
	if err := c.db.GetContext(ctx, &count, query, userID, userName, now, now); err != nil {
		return 0, storeErr("increment warnings", err)
	}
	return count, nil
}

func (c *sqlClient) ResetWarnings(ctx context.Context, userID int64) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := c.rebind(`UPDATE users SET warn_count = 0, updated_at = ? WHERE id = ?`)
	if err := tool.Err(c.db.ExecContext(ctx, query, time.Now().UTC(), userID)); err != nil {
		return storeErr("reset warnings", err)
	}
	return nil
}
