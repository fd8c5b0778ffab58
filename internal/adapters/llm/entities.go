package llm

import (
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
)

type (
	Action   string
	Category string
)

const (
	ActionAllow Action = "ALLOW"
	ActionBlock Action = "BLOCK"

	CategoryNone Category = "NONE"
	CategoryLink Category = "LINK"
	CategoryWord Category = "WORD"
	CategoryNSFW Category = "NSFW"
)

// Verdict is the decision returned by a content classifier.
type Verdict struct {
	Action   Action   `json:"action"`
	Category Category `json:"violation"`
	Reason   string   `json:"reason"`
}

func (v Verdict) Blocked() bool {
	return v.Action == ActionBlock
}

type GenerationParameters struct {
	Temperature      float32
	TopK             int32
	TopP             float32
	MaxOutputTokens  int32
	ResponseMIMEType string
}

// ScanParameters favour repeatable answers over creative ones.
var ScanParameters = GenerationParameters{
	Temperature:      0.1,
	TopK:             1,
	TopP:             0.95,
	MaxOutputTokens:  256,
	ResponseMIMEType: "application/json",
}

// ParseVerdict decodes a classifier reply. Markdown code fences around the
// JSON body are tolerated; unknown actions are rejected.
func ParseVerdict(raw string) (Verdict, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var v Verdict
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return Verdict{}, fmt.Errorf("decode verdict: %w", err)
	}

	v.Action = Action(strings.ToUpper(strings.TrimSpace(string(v.Action))))
	v.Category = Category(strings.ToUpper(strings.TrimSpace(string(v.Category))))
	v.Reason = strings.TrimSpace(v.Reason)

	switch v.Action {
	case ActionAllow:
		v.Category = CategoryNone
	case ActionBlock:
		switch v.Category {
		case CategoryLink, CategoryWord, CategoryNSFW:
		default:
			v.Category = CategoryNSFW
		}
	default:
		return Verdict{}, fmt.Errorf("unknown verdict action %q", v.Action)
	}
	return v, nil
}

// ScanPrompt is the instruction sent alongside the media bytes.
func ScanPrompt(bannedWords []string) string {
	return fmt.Sprintf(`You are a strict moderator of a Telegram group.
Analyze the attached content (image, video, sticker or animation).

Block the content when any of these is true:
1. It shows a URL, a QR code or a Telegram link (t.me), even partially or obfuscated.
2. It contains text or speech matching any of these words: [%s].
3. It contains nudity, pornography, gore or violence.

Reply with JSON only:
{"action": "BLOCK" or "ALLOW", "reason": "short explanation", "violation": "LINK", "WORD", "NSFW" or "NONE"}`,
		strings.Join(bannedWords, ", "))
}
