package moderation

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/iamwavecut/tool"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/ngwarden/internal/adapters"
	"github.com/iamwavecut/ngwarden/internal/adapters/llm"
	"github.com/iamwavecut/ngwarden/internal/bot"
	"github.com/iamwavecut/ngwarden/internal/config"
	errs "github.com/iamwavecut/ngwarden/internal/errors"
	"github.com/iamwavecut/ngwarden/internal/i18n"
	"github.com/iamwavecut/ngwarden/internal/observability"
)

type MediaOutcome string

const (
	MediaSkipped       MediaOutcome = "skipped"
	MediaAllowed       MediaOutcome = "allowed"
	MediaBlocked       MediaOutcome = "blocked"
	MediaSentForReview MediaOutcome = "sent_for_review"
	MediaRemoved       MediaOutcome = "removed"
)

type Decision int

const (
	DecisionNone Decision = iota
	DecisionApprove
	DecisionReject
)

var (
	approveKeywords = []string{"approve", "yes", "تایید", "✅"}
	rejectKeywords  = []string{"reject", "رد", "❌"}
)

type approvalTransport interface {
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	SendMessage(ctx context.Context, chatID int64, text string) (int, error)
	ReplyMessage(ctx context.Context, chatID int64, replyTo int, text string) (int, error)
	ForwardMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) (int, error)
	CopyMessage(ctx context.Context, toChatID, fromChatID int64, messageID int, caption string) (int, error)
	DownloadFile(ctx context.Context, fileID string, maxBytes int64) ([]byte, error)
}

type wordSource interface {
	Words(ctx context.Context) ([]string, error)
}

// Media describes the scannable part of a message.
type Media struct {
	Kind     string
	FileID   string
	Size     int64
	MIMEType string
}

// MediaOf extracts photos, videos, stickers and animations. Other content
// kinds report false.
func MediaOf(msg *api.Message) (Media, bool) {
	if msg == nil {
		return Media{}, false
	}
	switch {
	case msg.Animation != nil:
		return Media{
			Kind:     "animation",
			FileID:   msg.Animation.FileID,
			Size:     int64(msg.Animation.FileSize),
			MIMEType: orDefault(msg.Animation.MimeType, "video/mp4"),
		}, true
	case len(msg.Photo) > 0:
		largest := msg.Photo[len(msg.Photo)-1]
		return Media{
			Kind:     "photo",
			FileID:   largest.FileID,
			Size:     int64(largest.FileSize),
			MIMEType: "image/jpeg",
		}, true
	case msg.Video != nil:
		return Media{
			Kind:     "video",
			FileID:   msg.Video.FileID,
			Size:     int64(msg.Video.FileSize),
			MIMEType: orDefault(msg.Video.MimeType, "video/mp4"),
		}, true
	case msg.Sticker != nil:
		mime := "image/webp"
		switch {
		case msg.Sticker.IsAnimated:
			mime = "application/x-tgsticker"
		case msg.Sticker.IsVideo:
			mime = "video/webm"
		}
		return Media{
			Kind:     "sticker",
			FileID:   msg.Sticker.FileID,
			Size:     int64(msg.Sticker.FileSize),
			MIMEType: mime,
		}, true
	}
	return Media{}, false
}

// ApprovalPipeline decides on media. The classifier answers when it can;
// everything it cannot judge is withheld and handed to the reviewer.
type ApprovalPipeline struct {
	transport  approvalTransport
	classifier adapters.Classifier
	words      wordSource
	punisher   *Punisher
	pending    PendingRegistry
	audit      *observability.Audit
	config     config.Review
	lang       string
}

func NewApprovalPipeline(
	transport approvalTransport,
	classifier adapters.Classifier,
	words wordSource,
	punisher *Punisher,
	pending PendingRegistry,
	audit *observability.Audit,
	cfg config.Review,
	lang string,
) *ApprovalPipeline {
	return &ApprovalPipeline{
		transport:  transport,
		classifier: classifier,
		words:      words,
		punisher:   punisher,
		pending:    pending,
		audit:      audit,
		config:     cfg,
		lang:       lang,
	}
}

func (a *ApprovalPipeline) ReviewerID() int64 {
	return a.config.ReviewerID
}

// HandleMedia expects a message from a non-admin sender.
func (a *ApprovalPipeline) HandleMedia(ctx context.Context, msg *api.Message) (MediaOutcome, error) {
	media, ok := MediaOf(msg)
	if !ok || msg.From == nil {
		return MediaSkipped, nil
	}
	entry := a.getLogEntry().WithFields(log.Fields{
		"method":  "HandleMedia",
		"chat_id": msg.Chat.ID,
		"user_id": msg.From.ID,
		"kind":    media.Kind,
	})

	if a.classifier != nil && (a.config.MaxScanBytes <= 0 || media.Size <= a.config.MaxScanBytes) {
		verdict, err := a.scan(ctx, media)
		if err == nil {
			observability.RecordVerdict(string(verdict.Action))
			a.audit.Record(observability.AuditEntry{
				Event:     "classifier_verdict",
				ChatID:    msg.Chat.ID,
				UserID:    msg.From.ID,
				MessageID: msg.MessageID,
				Action:    string(verdict.Action),
				Category:  string(verdict.Category),
				Reason:    verdict.Reason,
			})
			if !verdict.Blocked() {
				entry.Debug("media allowed")
				return MediaAllowed, nil
			}
			entry.WithField("category", verdict.Category).WithField("reason", verdict.Reason).Info("media blocked")
			_, err := a.punisher.Punish(ctx, Offense{
				ChatID:    msg.Chat.ID,
				MessageID: msg.MessageID,
				UserID:    msg.From.ID,
				UserName:  bot.GetFullName(msg.From),
				Category:  verdict.Category,
				Detail:    verdict.Reason,
			})
			return MediaBlocked, err
		}
		observability.RecordVerdict("unavailable")
		entry.WithField("error", err.Error()).Warn("classifier unavailable, falling back to review")
	} else if a.classifier != nil {
		entry.WithField("size", media.Size).Debug("media too large to scan")
	}

	return a.withhold(ctx, msg, media)
}

func (a *ApprovalPipeline) scan(ctx context.Context, media Media) (llm.Verdict, error) {
	if a.config.ClassifyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.ClassifyTimeout)
		defer cancel()
	}

	var words []string
	if a.words != nil {
		var err error
		if words, err = a.words.Words(ctx); err != nil {
			a.getLogEntry().WithField("error", err.Error()).Warn("scanning without banned words")
		}
	}

	data, err := a.transport.DownloadFile(ctx, media.FileID, a.config.MaxScanBytes)
	if err != nil {
		return llm.Verdict{}, fmt.Errorf("%w: download: %w", errs.ErrClassifierUnavailable, err)
	}
	verdict, err := a.classifier.Scan(ctx, data, media.MIMEType, words)
	if err != nil {
		return llm.Verdict{}, fmt.Errorf("%w: %w", errs.ErrClassifierUnavailable, err)
	}
	return verdict, nil
}

// withhold removes the media from the chat and, when a reviewer is
// configured, parks it for a manual decision.
func (a *ApprovalPipeline) withhold(ctx context.Context, msg *api.Message, media Media) (MediaOutcome, error) {
	entry := a.getLogEntry().WithFields(log.Fields{
		"method":  "withhold",
		"chat_id": msg.Chat.ID,
		"user_id": msg.From.ID,
	})
	userName := bot.GetFullName(msg.From)
	vars := map[string]any{
		"user": Mention(msg.From.ID, userName),
		"chat": html.EscapeString(orDefault(msg.Chat.Title, fmt.Sprint(msg.Chat.ID))),
		"kind": i18n.Get(media.Kind, a.lang),
	}

	if a.config.ReviewerID == 0 {
		a.deleteOriginal(ctx, msg)
		a.notifyRemoved(ctx, msg, vars)
		return MediaRemoved, nil
	}

	reviewID, err := a.transport.ForwardMessage(ctx, a.config.ReviewerID, msg.Chat.ID, msg.MessageID)
	if err != nil {
		entry.WithField("error", err.Error()).Error("failed to forward media for review")
		a.deleteOriginal(ctx, msg)
		a.notifyRemoved(ctx, msg, vars)
		return MediaRemoved, nil
	}
	a.deleteOriginal(ctx, msg)

	if err := a.pending.Put(ctx, reviewID, PendingEntry{
		OriginChatID: msg.Chat.ID,
		UserID:       msg.From.ID,
		UserName:     userName,
		MediaKind:    media.Kind,
		CreatedAt:    time.Now().UTC(),
	}); err != nil {
		entry.WithField("error", err.Error()).Error("failed to register pending review")
		if delErr := a.transport.DeleteMessage(ctx, a.config.ReviewerID, reviewID); delErr != nil {
			entry.WithField("error", delErr.Error()).Warn("failed to delete orphaned review copy")
		}
		a.notifyRemoved(ctx, msg, vars)
		return MediaRemoved, fmt.Errorf("register pending review: %w", err)
	}
	observability.AddPendingReviews(1)

	prompt := tool.ExecTemplate(i18n.Get("📩 <b>Media for review</b>\nUser: {{ .user }}\nChat: {{ .chat }}\n\nReply to the forwarded message with approve or reject.", a.lang), vars)
	if _, err := a.transport.ReplyMessage(ctx, a.config.ReviewerID, reviewID, prompt); err != nil {
		entry.WithField("error", err.Error()).Warn("failed to prompt reviewer")
	}
	a.punisher.Notify(ctx, msg.Chat.ID, tool.ExecTemplate(i18n.Get("🔒 {{ .user }}, your {{ .kind }} was sent for admin review.", a.lang), vars), a.config.NoticeTTL)
	entry.WithField("review_message_id", reviewID).Info("media sent for review")
	return MediaSentForReview, nil
}

func (a *ApprovalPipeline) notifyRemoved(ctx context.Context, msg *api.Message, vars map[string]any) {
	text := tool.ExecTemplate(i18n.Get("🔒 {{ .user }}, media could not be checked and was removed.", a.lang), vars)
	a.punisher.Notify(ctx, msg.Chat.ID, text, a.config.NoticeTTL)
}

func (a *ApprovalPipeline) deleteOriginal(ctx context.Context, msg *api.Message) {
	if err := a.transport.DeleteMessage(ctx, msg.Chat.ID, msg.MessageID); err != nil {
		a.getLogEntry().WithField("error", err.Error()).Warn("failed to delete withheld media")
	}
}

// IsReview reports whether msg is the reviewer replying in private.
func (a *ApprovalPipeline) IsReview(msg *api.Message) bool {
	return a.config.ReviewerID != 0 &&
		msg != nil &&
		msg.From != nil &&
		msg.From.ID == a.config.ReviewerID &&
		msg.Chat.ID == a.config.ReviewerID &&
		msg.ReplyToMessage != nil
}

// HandleReview resolves a pending entry from a reviewer reply. Each entry
// can be resolved once.
func (a *ApprovalPipeline) HandleReview(ctx context.Context, msg *api.Message) (Decision, error) {
	if !a.IsReview(msg) {
		return DecisionNone, nil
	}
	reviewID := msg.ReplyToMessage.MessageID
	entry := a.getLogEntry().WithField("method", "HandleReview").WithField("review_message_id", reviewID)

	decision := ParseDecision(msg.Text)
	if decision == DecisionNone {
		a.replyReviewer(ctx, msg, i18n.Get("Reply with approve or reject.", a.lang))
		return DecisionNone, nil
	}

	pending, err := a.pending.Take(ctx, reviewID)
	if errors.Is(err, errs.ErrNotFound) {
		a.replyReviewer(ctx, msg, i18n.Get("❓ No pending media found for this message.", a.lang))
		return decision, nil
	}
	if err != nil {
		entry.WithField("error", err.Error()).Error("failed to take pending review")
		a.replyReviewer(ctx, msg, i18n.Get("❌ Failed to process the decision.", a.lang))
		return decision, err
	}
	observability.AddPendingReviews(-1)

	vars := map[string]any{
		"user": Mention(pending.UserID, pending.UserName),
		"kind": i18n.Get(pending.MediaKind, a.lang),
	}

	switch decision {
	case DecisionApprove:
		caption := tool.ExecTemplate(i18n.Get("✅ Approved by admin review. Sent by {{ .user }}", a.lang), vars)
		if _, err := a.transport.CopyMessage(ctx, pending.OriginChatID, a.config.ReviewerID, reviewID, caption); err != nil {
			entry.WithField("error", err.Error()).Error("failed to repost approved media")
			if putErr := a.pending.Put(ctx, reviewID, *pending); putErr == nil {
				observability.AddPendingReviews(1)
			}
			a.replyReviewer(ctx, msg, i18n.Get("❌ Failed to process the decision.", a.lang))
			return decision, fmt.Errorf("repost approved media: %w", err)
		}
		a.replyReviewer(ctx, msg, i18n.Get("✅ Approved and posted.", a.lang))
	case DecisionReject:
		a.punisher.Notify(ctx, pending.OriginChatID, tool.ExecTemplate(i18n.Get("🚫 The {{ .kind }} from {{ .user }} was rejected by admin review.", a.lang), vars), a.config.NoticeTTL)
		a.replyReviewer(ctx, msg, i18n.Get("🚫 Rejected.", a.lang))
	}

	a.audit.Record(observability.AuditEntry{
		Event:  "review",
		ChatID: pending.OriginChatID,
		UserID: pending.UserID,
		Action: decisionName(decision),
	})
	entry.WithField("decision", decisionName(decision)).Info("review resolved")
	return decision, nil
}

func (a *ApprovalPipeline) replyReviewer(ctx context.Context, msg *api.Message, text string) {
	if _, err := a.transport.ReplyMessage(ctx, msg.Chat.ID, msg.MessageID, text); err != nil {
		a.getLogEntry().WithField("error", err.Error()).Warn("failed to reply to reviewer")
	}
}

// ParseDecision only accepts a reply made of a single keyword.
func ParseDecision(s string) Decision {
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) != 1 {
		return DecisionNone
	}
	switch word := strings.Trim(fields[0], ".!,"); {
	case tool.In(word, approveKeywords...):
		return DecisionApprove
	case tool.In(word, rejectKeywords...):
		return DecisionReject
	}
	return DecisionNone
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func decisionName(d Decision) string {
	switch d {
	case DecisionApprove:
		return "approve"
	case DecisionReject:
		return "reject"
	default:
		return "none"
	}
}

func (a *ApprovalPipeline) getLogEntry() *log.Entry {
	return log.WithField("object", "ApprovalPipeline")
}
