package moderation

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/iamwavecut/tool"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/ngwarden/internal/adapters/llm"
	"github.com/iamwavecut/ngwarden/internal/bot"
	"github.com/iamwavecut/ngwarden/internal/config"
	"github.com/iamwavecut/ngwarden/internal/i18n"
	"github.com/iamwavecut/ngwarden/internal/observability"
)

// CategoryManual marks offenses reported by an admin with /warn.
const CategoryManual llm.Category = "MANUAL"

type Action string

const (
	ActionWarned         Action = "warned"
	ActionRestricted     Action = "restricted"
	ActionBanned         Action = "banned"
	ActionRestrictFailed Action = "restrict_failed"
)

type punishTransport interface {
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	SendMessage(ctx context.Context, chatID int64, text string) (int, error)
	RestrictMember(ctx context.Context, chatID, userID int64, permissions bot.Permissions) error
	BanMember(ctx context.Context, chatID, userID int64) error
}

type warnStore interface {
	IncrementWarnings(ctx context.Context, userID int64, userName string) (int, error)
}

type deferrer interface {
	After(delay time.Duration, task func(ctx context.Context))
}

// Offense is a confirmed violation. MessageID is zero when there is no
// message left to remove.
type Offense struct {
	ChatID    int64
	MessageID int
	UserID    int64
	UserName  string
	Category  llm.Category
	Detail    string
}

type PunishmentResult struct {
	MessageDeleted bool
	WarnCount      int
	Action         Action
	NoticeID       int
}

// Punisher escalates offenses: every offense costs one warning, and reaching
// the threshold removes the member's ability to post.
type Punisher struct {
	transport punishTransport
	store     warnStore
	scheduler deferrer
	audit     *observability.Audit
	config    config.Moderation
	lang      string
}

func NewPunisher(transport punishTransport, store warnStore, scheduler deferrer, audit *observability.Audit, cfg config.Moderation, lang string) *Punisher {
	if cfg.WarnThreshold <= 0 {
		cfg.WarnThreshold = 3
	}
	return &Punisher{
		transport: transport,
		store:     store,
		scheduler: scheduler,
		audit:     audit,
		config:    cfg,
		lang:      lang,
	}
}

func (p *Punisher) Threshold() int {
	return p.config.WarnThreshold
}

func (p *Punisher) Punish(ctx context.Context, offense Offense) (*PunishmentResult, error) {
	entry := p.getLogEntry().WithFields(log.Fields{
		"method":   "Punish",
		"chat_id":  offense.ChatID,
		"user_id":  offense.UserID,
		"category": offense.Category,
	})
	result := &PunishmentResult{}
	observability.RecordViolation(string(offense.Category))

	if offense.MessageID != 0 {
		if err := p.transport.DeleteMessage(ctx, offense.ChatID, offense.MessageID); err != nil {
			entry.WithField("error", err.Error()).Warn("failed to delete offending message")
		} else {
			result.MessageDeleted = true
		}
	}

	count, err := p.store.IncrementWarnings(ctx, offense.UserID, offense.UserName)
	if err != nil {
		entry.WithField("error", err.Error()).Error("failed to increment warnings")
		return result, fmt.Errorf("increment warnings: %w", err)
	}
	result.WarnCount = count

	vars := map[string]any{
		"user":      Mention(offense.UserID, offense.UserName),
		"reason":    i18n.Get(reasonKey(offense.Category), p.lang),
		"count":     count,
		"threshold": p.config.WarnThreshold,
		"remaining": p.config.WarnThreshold - count,
		"detail":    html.EscapeString(offense.Detail),
	}

	var notice string
	switch {
	case count < p.config.WarnThreshold:
		result.Action = ActionWarned
		notice = tool.ExecTemplate(i18n.Get("🚫 {{ .user }}, {{ .reason }} is not allowed.\n⚠️ Warning {{ .count }}/{{ .threshold }}, {{ .remaining }} left.", p.lang), vars)
	default:
		action, err := p.enforce(ctx, offense.ChatID, offense.UserID)
		if err != nil {
			entry.WithField("error", err.Error()).Warn("failed to enforce final warning")
			result.Action = ActionRestrictFailed
			notice = tool.ExecTemplate(i18n.Get("🚫 Final warning for {{ .user }} ({{ .count }}/{{ .threshold }}): I lack the rights to restrict them.", p.lang), vars)
			break
		}
		result.Action = action
		if action == ActionBanned {
			notice = tool.ExecTemplate(i18n.Get("🚫 {{ .user }} was banned for {{ .reason }} after {{ .count }} warnings.", p.lang), vars)
		} else {
			notice = tool.ExecTemplate(i18n.Get("🚫 {{ .user }} was muted for {{ .reason }} after {{ .count }} warnings.", p.lang), vars)
		}
	}
	// The banned word itself is not repeated back to the chat.
	if offense.Detail != "" && offense.Category != llm.CategoryWord {
		notice += "\n" + tool.ExecTemplate(i18n.Get("ℹ️ Reason: {{ .detail }}", p.lang), vars)
	}
	observability.RecordPunishment(string(result.Action))
	p.audit.Record(observability.AuditEntry{
		Event:     "punishment",
		ChatID:    offense.ChatID,
		UserID:    offense.UserID,
		MessageID: offense.MessageID,
		Action:    string(result.Action),
		Category:  string(offense.Category),
		Reason:    offense.Detail,
		WarnCount: count,
	})
	entry.WithFields(log.Fields{"warn_count": count, "action": result.Action}).Info("offense punished")

	result.NoticeID = p.Notify(ctx, offense.ChatID, notice, p.config.NoticeTTL)
	return result, nil
}

func (p *Punisher) enforce(ctx context.Context, chatID, userID int64) (Action, error) {
	if p.config.PunishMode == config.PunishModeBan {
		return ActionBanned, p.transport.BanMember(ctx, chatID, userID)
	}
	return ActionRestricted, p.transport.RestrictMember(ctx, chatID, userID, bot.MutedPermissions)
}

// Notify sends a transient notice and schedules its removal. It returns the
// notice id, or zero when sending failed.
func (p *Punisher) Notify(ctx context.Context, chatID int64, text string, ttl time.Duration) int {
	noticeID, err := p.transport.SendMessage(ctx, chatID, text)
	if err != nil {
		p.getLogEntry().WithField("method", "Notify").WithField("error", err.Error()).Warn("failed to send notice")
		return 0
	}
	p.DeleteLater(chatID, noticeID, ttl)
	return noticeID
}

func (p *Punisher) DeleteLater(chatID int64, messageID int, ttl time.Duration) {
	if messageID == 0 || p.scheduler == nil {
		return
	}
	p.scheduler.After(ttl, func(ctx context.Context) {
		if err := p.transport.DeleteMessage(ctx, chatID, messageID); err != nil {
			p.getLogEntry().WithField("error", err.Error()).Debug("transient message already gone")
		}
	})
}

// Mention renders an HTML link to the user that works without a username.
func Mention(userID int64, name string) string {
	if name == "" {
		name = fmt.Sprintf("id%d", userID)
	}
	return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, userID, html.EscapeString(name))
}

func reasonKey(category llm.Category) string {
	switch category {
	case llm.CategoryLink:
		return "sending links"
	case llm.CategoryWord:
		return "using banned words"
	case llm.CategoryNSFW:
		return "sending inappropriate media"
	default:
		return "breaking the group rules"
	}
}

func (p *Punisher) getLogEntry() *log.Entry {
	return log.WithField("object", "Punisher")
}
