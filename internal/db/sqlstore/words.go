package sqlstore

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

func (c *sqlClient) ListBannedWords(ctx context.Context) ([]string, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	words := make([]string, 0)
	if err := c.db.SelectContext(ctx, &words, `SELECT word FROM banned_words ORDER BY word`); err != nil {
		return nil, storeErr("list banned words", err)
	}
	return words, nil
}

// AddBannedWord reports false when the word was already present.
func (c *sqlClient) AddBannedWord(ctx context.Context, word string) (bool, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := c.rebind(`INSERT INTO banned_words (word, created_at) VALUES (?, ?) ON CONFLICT (word) DO NOTHING`)
	res, err := c.db.ExecContext(ctx, query, normalizeWord(word), time.Now().UTC())
	if err != nil {
		return false, storeErr("add banned word", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storeErr("add banned word", err)
	}
	return n > 0, nil
}

func (c *sqlClient) RemoveBannedWord(ctx context.Context, word string) (bool, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	res, err := c.db.ExecContext(ctx, c.rebind(`DELETE FROM banned_words WHERE word = ?`), normalizeWord(word))
	if err != nil {
		return false, storeErr("remove banned word", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storeErr("remove banned word", err)
	}
	return n > 0, nil
}

// SeedBannedWords fills an empty table with words. A table that already has
// rows is left untouched and zero is returned.
func (c *sqlClient) SeedBannedWords(ctx context.Context, words []string) (int, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, storeErr("seed banned words", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existing int
	if err := tx.GetContext(ctx, &existing, `SELECT COUNT(*) FROM banned_words`); err != nil {
		return 0, storeErr("seed banned words", err)
	}
	if existing > 0 {
		return 0, nil
	}

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(`INSERT INTO banned_words (word, created_at) VALUES (?, ?) ON CONFLICT (word) DO NOTHING`))
	if err != nil {
		return 0, storeErr("seed banned words", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now().UTC()
	inserted := 0
	for _, word := range words {
		word = normalizeWord(word)
		if word == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, word, now); err != nil {
			return 0, storeErr("seed banned words", err)
		}
		inserted++
	}
	if err := tx.Commit(); err != nil {
		return 0, storeErr("seed banned words", err)
	}
	log.WithField("object", "sqlClient").WithField("count", inserted).Info("seeded banned words")
	return inserted, nil
}
