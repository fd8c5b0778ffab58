package moderation

import (
	"strings"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/iamwavecut/ngwarden/internal/bot"
	"github.com/iamwavecut/ngwarden/internal/utils/text"
)

var (
	urlKeywords = []string{"http://", "https://", "www.", ".com", ".ir", ".net", ".org", "t.me", "bit.ly"}

	skeletonPrefixes = []string{"http", "https", "www", "tme"}
	skeletonSites    = []string{
		"google", "gogle", "youtube", "yotube", "instagram", "telegram",
		"whatsapp", "discord", "sex", "porn", "xxx",
	}
	skeletonExtensions = []string{"com", "ir", "net", "org", "xyz", "tk", "info", "io", "me", "site"}

	linkSeparators = `./\_`
)

// HasLink reports whether msg carries a link in its text or caption,
// obfuscated or not.
func HasLink(msg *api.Message) bool {
	if msg == nil {
		return false
	}
	for _, entities := range [][]api.MessageEntity{msg.Entities, msg.CaptionEntities} {
		for _, entity := range entities {
			if entity.Type == "url" || entity.Type == "text_link" {
				return true
			}
		}
	}
	return TextHasLink(bot.MessageText(msg))
}

func TextHasLink(s string) bool {
	if s == "" {
		return false
	}

	lower := strings.ToLower(s)
	for _, keyword := range urlKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}

	raw, collapsed := text.LetterSkeleton(s)
	if raw == "" {
		return false
	}
	hasSeparator := strings.ContainsAny(s, linkSeparators)
	for _, skeleton := range []string{raw, collapsed} {
		if skeletonHasLink(skeleton, hasSeparator) {
			return true
		}
	}
	return false
}

func skeletonHasLink(skeleton string, hasSeparator bool) bool {
	for _, prefix := range skeletonPrefixes {
		if strings.Contains(skeleton, prefix) {
			return true
		}
	}
	for _, site := range skeletonSites {
		if !strings.Contains(skeleton, site) {
			continue
		}
		for _, ext := range skeletonExtensions {
			if strings.Contains(skeleton, site+ext) {
				return true
			}
		}
	}
	if hasSeparator {
		for _, ext := range skeletonExtensions {
			if strings.HasSuffix(skeleton, ext) && len(skeleton) > len(ext)+2 {
				return true
			}
		}
	}
	return false
}
