package chat

import (
	"context"
	"fmt"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/iamwavecut/ngwarden/internal/adapters/llm"
	"github.com/iamwavecut/ngwarden/internal/bot"
	"github.com/iamwavecut/ngwarden/internal/db"
	"github.com/iamwavecut/ngwarden/internal/handlers/moderation"
	"github.com/iamwavecut/ngwarden/internal/observability"
)

type Stage string

const (
	StageAdminBypass Stage = "admin_bypass"
	StageLinkCheck   Stage = "link_check"
	StageWordCheck   Stage = "word_check"
	StageMediaCheck  Stage = "media_check"
	StageAllowed     Stage = "allowed"

	maxLastResults = 1000
)

// ProcessingResult is what /skipreason reports about a message. The message
// content itself is never kept.
type ProcessingResult struct {
	Stage     Stage
	Violation llm.Category
	Detail    string
	Action    string
	WarnCount int
	At        time.Time
}

type resultKey struct {
	chatID    int64
	messageID int
}

type reactorTransport interface {
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	ReplyMessage(ctx context.Context, chatID int64, replyTo int, text string) (int, error)
	RestrictMember(ctx context.Context, chatID, userID int64, permissions bot.Permissions) error
	BanMember(ctx context.Context, chatID, userID int64) error
}

type reactorStore interface {
	EnsureUser(ctx context.Context, userID int64, userName string) error
	GetUser(ctx context.Context, userID int64) (*db.User, error)
	ResetWarnings(ctx context.Context, userID int64) error
}

type adminChecker interface {
	IsAdmin(ctx context.Context, chatID, userID int64) bool
	IsAdminMessage(ctx context.Context, msg *api.Message) bool
}

type wordFilter interface {
	Check(ctx context.Context, s string) (string, bool, error)
	Add(ctx context.Context, word string) (bool, error)
	Remove(ctx context.Context, word string) (bool, error)
}

type mediaPipeline interface {
	IsReview(msg *api.Message) bool
	HandleReview(ctx context.Context, msg *api.Message) (moderation.Decision, error)
	HandleMedia(ctx context.Context, msg *api.Message) (moderation.MediaOutcome, error)
}

// Reactor routes every group message through the moderation checks.
type Reactor struct {
	transport reactorTransport
	store     reactorStore
	admins    adminChecker
	words     wordFilter
	punisher  *moderation.Punisher
	media     mediaPipeline
	results   *lru.Cache[resultKey, *ProcessingResult]
	noticeTTL time.Duration
	lang      string
}

var _ bot.Handler = (*Reactor)(nil)

func NewReactor(
	transport reactorTransport,
	store reactorStore,
	admins adminChecker,
	words wordFilter,
	punisher *moderation.Punisher,
	media mediaPipeline,
	noticeTTL time.Duration,
	lang string,
) *Reactor {
	results, _ := lru.New[resultKey, *ProcessingResult](maxLastResults)
	r := &Reactor{
		transport: transport,
		store:     store,
		admins:    admins,
		words:     words,
		punisher:  punisher,
		media:     media,
		results:   results,
		noticeTTL: noticeTTL,
		lang:      lang,
	}
	r.getLogEntry().Debug("created new reactor")
	return r
}

func (r *Reactor) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}
	if u == nil {
		return false, errors.New("nil update")
	}

	msg, edited := u.Message, false
	if msg == nil {
		msg, edited = u.EditedMessage, true
	}
	if msg == nil || chat == nil || user == nil {
		return true, nil
	}

	ctx, span := observability.StartSpan(ctx, "reactor.handle")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("chat_id", chat.ID),
		attribute.Int64("user_id", user.ID),
		attribute.Bool("edited", edited),
		attribute.String("message_type", string(bot.GetMessageType(msg))),
	)

	if chat.IsPrivate() {
		if r.media.IsReview(msg) {
			if _, err := r.media.HandleReview(ctx, msg); err != nil {
				return true, errors.WithMessage(err, "review")
			}
		}
		return true, nil
	}
	if !chat.IsGroup() && !chat.IsSuperGroup() {
		return true, nil
	}

	if err := r.store.EnsureUser(ctx, user.ID, bot.GetUN(user)); err != nil {
		r.getLogEntry().WithField("method", "Handle").WithField("error", err.Error()).Warn("failed to record user")
	}

	// Commands from non-admins are moderated like any other text first.
	isCommand := !edited && msg.IsCommand()
	if isCommand && r.admins.IsAdminMessage(ctx, msg) {
		if err := r.handleCommand(ctx, msg, chat, user); err != nil {
			return true, errors.WithMessage(err, "command")
		}
		return true, nil
	}

	result, err := r.moderate(ctx, msg)
	if result != nil {
		result.At = time.Now()
		r.results.Add(resultKey{chatID: chat.ID, messageID: msg.MessageID}, result)
		span.SetAttributes(attribute.String("stage", string(result.Stage)))
	}
	if err != nil {
		return true, errors.WithMessage(err, "moderate")
	}
	if isCommand && result != nil && result.Stage == StageAllowed {
		if err := r.handleCommand(ctx, msg, chat, user); err != nil {
			return true, errors.WithMessage(err, "command")
		}
	}
	return true, nil
}

// moderate runs the checks in priority order: admin bypass, links, banned
// words, then media.
func (r *Reactor) moderate(ctx context.Context, msg *api.Message) (*ProcessingResult, error) {
	entry := r.getLogEntry().WithFields(log.Fields{
		"method":     "moderate",
		"chat_id":    msg.Chat.ID,
		"message_id": msg.MessageID,
	})

	if r.admins.IsAdminMessage(ctx, msg) {
		return &ProcessingResult{Stage: StageAdminBypass, Action: "none"}, nil
	}
	if msg.From == nil {
		return &ProcessingResult{Stage: StageAllowed, Action: "none"}, nil
	}

	if moderation.HasLink(msg) {
		return r.punish(ctx, msg, StageLinkCheck, llm.CategoryLink, "")
	}

	if text := bot.MessageText(msg); text != "" {
		word, found, err := r.words.Check(ctx, text)
		switch {
		case err != nil:
			entry.WithField("error", err.Error()).Error("banned word check failed")
		case found:
			return r.punish(ctx, msg, StageWordCheck, llm.CategoryWord, word)
		}
	}

	if _, ok := moderation.MediaOf(msg); ok {
		outcome, err := r.media.HandleMedia(ctx, msg)
		return &ProcessingResult{Stage: StageMediaCheck, Action: string(outcome)}, err
	}

	return &ProcessingResult{Stage: StageAllowed, Action: "none"}, nil
}

func (r *Reactor) punish(ctx context.Context, msg *api.Message, stage Stage, category llm.Category, detail string) (*ProcessingResult, error) {
	res, err := r.punisher.Punish(ctx, moderation.Offense{
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		UserID:    msg.From.ID,
		UserName:  bot.GetFullName(msg.From),
		Category:  category,
		Detail:    detail,
	})
	result := &ProcessingResult{Stage: stage, Violation: category, Detail: detail}
	if res != nil {
		result.Action = string(res.Action)
		result.WarnCount = res.WarnCount
	}
	if err != nil {
		return result, fmt.Errorf("punish %s: %w", category, err)
	}
	return result, nil
}

// LastResult returns the processing result of a recent message, if any.
func (r *Reactor) LastResult(chatID int64, messageID int) *ProcessingResult {
	result, ok := r.results.Get(resultKey{chatID: chatID, messageID: messageID})
	if !ok {
		return nil
	}
	return result
}

func (r *Reactor) getLogEntry() *log.Entry {
	return log.WithField("object", "Reactor")
}
