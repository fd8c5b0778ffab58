package adapters

import (
	"context"

	"github.com/iamwavecut/ngwarden/internal/adapters/llm"
)

// Classifier inspects media bytes and returns a moderation verdict.
type Classifier interface {
	// Scan classifies data of the given MIME type against the policy and
	// the supplied banned words.
	Scan(ctx context.Context, data []byte, mimeType string, bannedWords []string) (llm.Verdict, error)
}
