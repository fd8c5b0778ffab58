package moderation

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/ngwarden/internal/utils/text"
)

type wordStore interface {
	ListBannedWords(ctx context.Context) ([]string, error)
	AddBannedWord(ctx context.Context, word string) (bool, error)
	RemoveBannedWord(ctx context.Context, word string) (bool, error)
	SeedBannedWords(ctx context.Context, words []string) (int, error)
}

// FindViolation returns the first banned word contained in s, either
// verbatim (case-insensitive) or after both sides are normalized.
func FindViolation(s string, words []string) (string, bool) {
	if s == "" || len(words) == 0 {
		return "", false
	}
	lower := strings.ToLower(s)
	normalized := text.Normalize(s)
	for _, word := range words {
		w := strings.ToLower(strings.TrimSpace(word))
		if w == "" {
			continue
		}
		if strings.Contains(lower, w) {
			return word, true
		}
		if nw := text.Normalize(w); nw != "" && strings.Contains(normalized, nw) {
			return word, true
		}
	}
	return "", false
}

// WordFilter caches the banned-word table. The cache is reloaded whenever it
// is empty; mutations go to the store first and reach the cache only on
// success.
type WordFilter struct {
	store wordStore
	seed  []string

	mu    sync.RWMutex
	words []string
}

func NewWordFilter(store wordStore, seed []string) *WordFilter {
	return &WordFilter{store: store, seed: seed}
}

func (f *WordFilter) Start(ctx context.Context) error {
	entry := f.getLogEntry().WithField("method", "Start")
	if len(f.seed) > 0 {
		inserted, err := f.store.SeedBannedWords(ctx, f.seed)
		if err != nil {
			return fmt.Errorf("seed banned words: %w", err)
		}
		if inserted > 0 {
			entry.WithField("count", inserted).Info("seeded default banned words")
		}
	}
	words, err := f.Words(ctx)
	if err != nil {
		return err
	}
	entry.WithField("count", len(words)).Debug("banned words loaded")
	return nil
}

func (f *WordFilter) Stop(_ context.Context) error {
	f.mu.Lock()
	f.words = nil
	f.mu.Unlock()
	return nil
}

// Words returns the cached words. The returned slice must not be modified.
func (f *WordFilter) Words(ctx context.Context) ([]string, error) {
	f.mu.RLock()
	words := f.words
	f.mu.RUnlock()
	if len(words) > 0 {
		return words, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.words) > 0 {
		return f.words, nil
	}
	loaded, err := f.store.ListBannedWords(ctx)
	if err != nil {
		return nil, fmt.Errorf("load banned words: %w", err)
	}
	f.words = slices.Clip(loaded)
	return f.words, nil
}

// Add reports false when the word was already banned.
func (f *WordFilter) Add(ctx context.Context, word string) (bool, error) {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return false, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	added, err := f.store.AddBannedWord(ctx, word)
	if err != nil {
		return false, err
	}
	if len(f.words) > 0 && !slices.Contains(f.words, word) {
		f.words = append(slices.Clip(f.words), word)
	}
	return added, nil
}

// Remove reports false when the word was not banned.
func (f *WordFilter) Remove(ctx context.Context, word string) (bool, error) {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return false, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	removed, err := f.store.RemoveBannedWord(ctx, word)
	if err != nil {
		return false, err
	}
	f.words = slices.DeleteFunc(slices.Clone(f.words), func(w string) bool { return w == word })
	return removed, nil
}

func (f *WordFilter) Check(ctx context.Context, s string) (string, bool, error) {
	words, err := f.Words(ctx)
	if err != nil {
		return "", false, err
	}
	word, found := FindViolation(s, words)
	return word, found, nil
}

func (f *WordFilter) getLogEntry() *log.Entry {
	return log.WithField("object", "WordFilter")
}
