package chat

import (
	"context"
	"fmt"
	"html"
	"strings"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/iamwavecut/tool"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/ngwarden/internal/bot"
	"github.com/iamwavecut/ngwarden/internal/handlers/moderation"
	"github.com/iamwavecut/ngwarden/internal/i18n"
	"github.com/iamwavecut/ngwarden/internal/observability"
)

type commandHandler func(ctx context.Context, msg *api.Message, chat *api.Chat) error

type command struct {
	handler    commandHandler
	adminOnly  bool
	needsReply bool
}

func (r *Reactor) commands() map[string]command {
	return map[string]command{
		"warn":       {handler: r.warnCommand, adminOnly: true, needsReply: true},
		"ban":        {handler: r.banCommand, adminOnly: true, needsReply: true},
		"unmute":     {handler: r.unmuteCommand, adminOnly: true, needsReply: true},
		"resetwarn":  {handler: r.resetWarnCommand, adminOnly: true, needsReply: true},
		"skipreason": {handler: r.skipReasonCommand, adminOnly: true, needsReply: true},
		"addword":    {handler: r.addWordCommand, adminOnly: true},
		"delword":    {handler: r.delWordCommand, adminOnly: true},
		"stats":      {handler: r.statsCommand},
	}
}

func (r *Reactor) handleCommand(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User) error {
	cmd, ok := r.commands()[strings.ToLower(msg.Command())]
	if !ok {
		return nil
	}
	entry := r.getLogEntry().WithFields(log.Fields{
		"method":  "handleCommand",
		"command": msg.Command(),
		"chat_id": chat.ID,
		"user_id": user.ID,
	})

	r.punisher.DeleteLater(chat.ID, msg.MessageID, r.noticeTTL)

	if cmd.adminOnly && !r.admins.IsAdminMessage(ctx, msg) {
		entry.Debug("command rejected for non-admin")
		r.notice(ctx, msg, i18n.Get("❌ Only admins can use this command.", r.lang))
		return nil
	}
	if cmd.needsReply && (msg.ReplyToMessage == nil || msg.ReplyToMessage.From == nil) {
		r.notice(ctx, msg, i18n.Get("⚠️ Reply to a user's message to use this command.", r.lang))
		return nil
	}
	return cmd.handler(ctx, msg, chat)
}

func (r *Reactor) warnCommand(ctx context.Context, msg *api.Message, chat *api.Chat) error {
	target := msg.ReplyToMessage
	if r.admins.IsAdmin(ctx, chat.ID, target.From.ID) {
		r.notice(ctx, msg, i18n.Get("Admins cannot be warned.", r.lang))
		return nil
	}
	if _, err := r.punisher.Punish(ctx, moderation.Offense{
		ChatID:    chat.ID,
		MessageID: target.MessageID,
		UserID:    target.From.ID,
		UserName:  bot.GetFullName(target.From),
		Category:  moderation.CategoryManual,
	}); err != nil {
		r.notice(ctx, msg, i18n.Get("❌ Failed to add a warning.", r.lang))
		return fmt.Errorf("manual warning: %w", err)
	}
	return nil
}

func (r *Reactor) banCommand(ctx context.Context, msg *api.Message, chat *api.Chat) error {
	target := msg.ReplyToMessage
	vars := map[string]any{"user": moderation.Mention(target.From.ID, bot.GetFullName(target.From))}
	if err := r.transport.BanMember(ctx, chat.ID, target.From.ID); err != nil {
		r.getLogEntry().WithField("method", "banCommand").WithField("error", err.Error()).Warn("ban failed")
		r.notice(ctx, msg, i18n.Get("❌ I don't have enough rights to ban this user.", r.lang))
		return nil
	}
	observability.RecordPunishment(string(moderation.ActionBanned))
	if err := r.transport.DeleteMessage(ctx, chat.ID, target.MessageID); err != nil {
		r.getLogEntry().WithField("method", "banCommand").WithField("error", err.Error()).Debug("target message already gone")
	}
	r.notice(ctx, msg, tool.ExecTemplate(i18n.Get("🚫 {{ .user }} was banned by an admin.", r.lang), vars))
	return nil
}

func (r *Reactor) unmuteCommand(ctx context.Context, msg *api.Message, chat *api.Chat) error {
	target := msg.ReplyToMessage
	vars := map[string]any{"user": moderation.Mention(target.From.ID, bot.GetFullName(target.From))}
	if err := r.transport.RestrictMember(ctx, chat.ID, target.From.ID, bot.FullPermissions); err != nil {
		r.getLogEntry().WithField("method", "unmuteCommand").WithField("error", err.Error()).Warn("unmute failed")
		r.notice(ctx, msg, i18n.Get("❌ I don't have enough rights to unmute this user.", r.lang))
		return nil
	}
	r.notice(ctx, msg, tool.ExecTemplate(i18n.Get("✅ {{ .user }} can write again.", r.lang), vars))
	return nil
}

func (r *Reactor) resetWarnCommand(ctx context.Context, msg *api.Message, _ *api.Chat) error {
	target := msg.ReplyToMessage
	vars := map[string]any{"user": moderation.Mention(target.From.ID, bot.GetFullName(target.From))}
	if err := r.store.ResetWarnings(ctx, target.From.ID); err != nil {
		r.notice(ctx, msg, i18n.Get("❌ Failed to reset warnings.", r.lang))
		return fmt.Errorf("reset warnings: %w", err)
	}
	r.notice(ctx, msg, tool.ExecTemplate(i18n.Get("✅ Warnings of {{ .user }} were reset.", r.lang), vars))
	return nil
}

func (r *Reactor) addWordCommand(ctx context.Context, msg *api.Message, _ *api.Chat) error {
	word := strings.TrimSpace(msg.CommandArguments())
	if word == "" {
		r.notice(ctx, msg, i18n.Get("⚠️ Usage: /addword <word>", r.lang))
		return nil
	}
	added, err := r.words.Add(ctx, word)
	if err != nil {
		r.notice(ctx, msg, i18n.Get("❌ Failed to add the word.", r.lang))
		return fmt.Errorf("add banned word: %w", err)
	}
	vars := map[string]any{"word": html.EscapeString(word)}
	if !added {
		r.notice(ctx, msg, tool.ExecTemplate(i18n.Get("⚠️ \"{{ .word }}\" is already banned.", r.lang), vars))
		return nil
	}
	r.notice(ctx, msg, tool.ExecTemplate(i18n.Get("✅ \"{{ .word }}\" was added to banned words.", r.lang), vars))
	return nil
}

func (r *Reactor) delWordCommand(ctx context.Context, msg *api.Message, _ *api.Chat) error {
	word := strings.TrimSpace(msg.CommandArguments())
	if word == "" {
		r.notice(ctx, msg, i18n.Get("⚠️ Usage: /delword <word>", r.lang))
		return nil
	}
	removed, err := r.words.Remove(ctx, word)
	if err != nil {
		r.notice(ctx, msg, i18n.Get("❌ Failed to remove the word.", r.lang))
		return fmt.Errorf("remove banned word: %w", err)
	}
	vars := map[string]any{"word": html.EscapeString(word)}
	if !removed {
		r.notice(ctx, msg, tool.ExecTemplate(i18n.Get("⚠️ \"{{ .word }}\" is not in the list.", r.lang), vars))
		return nil
	}
	r.notice(ctx, msg, tool.ExecTemplate(i18n.Get("✅ \"{{ .word }}\" was removed from banned words.", r.lang), vars))
	return nil
}

// statsCommand shows the sender's own standing. Admins may reply to a
// message to see someone else's.
func (r *Reactor) statsCommand(ctx context.Context, msg *api.Message, _ *api.Chat) error {
	target := msg.From
	if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil && r.admins.IsAdminMessage(ctx, msg) {
		target = msg.ReplyToMessage.From
	}
	if target == nil {
		return nil
	}
	user, err := r.store.GetUser(ctx, target.ID)
	if err != nil {
		r.notice(ctx, msg, i18n.Get("❌ Failed to load statistics.", r.lang))
		return fmt.Errorf("get user: %w", err)
	}
	count := 0
	if user != nil {
		count = user.WarnCount
	}
	threshold := r.punisher.Threshold()
	status := i18n.Get("clean", r.lang)
	switch {
	case count >= threshold:
		status = i18n.Get("restricted", r.lang)
	case count > 0:
		status = i18n.Get("warned", r.lang)
	}
	r.notice(ctx, msg, tool.ExecTemplate(i18n.Get("📊 {{ .user }}\nWarnings: {{ .count }}/{{ .threshold }}\nStatus: {{ .status }}", r.lang), map[string]any{
		"user":      moderation.Mention(target.ID, bot.GetFullName(target)),
		"count":     count,
		"threshold": threshold,
		"status":    status,
	}))
	return nil
}

func (r *Reactor) skipReasonCommand(ctx context.Context, msg *api.Message, chat *api.Chat) error {
	result := r.LastResult(chat.ID, msg.ReplyToMessage.MessageID)
	if result == nil {
		r.notice(ctx, msg, i18n.Get("No processing information available for this message.", r.lang))
		return nil
	}
	response := fmt.Sprintf("Stage: %s\nAction: %s", result.Stage, result.Action)
	if result.Violation != "" {
		response += fmt.Sprintf("\nViolation: %s", result.Violation)
	}
	if result.WarnCount > 0 {
		response += fmt.Sprintf("\nWarnings: %d", result.WarnCount)
	}
	r.notice(ctx, msg, response)
	return nil
}

// notice replies to msg with a transient message.
func (r *Reactor) notice(ctx context.Context, msg *api.Message, text string) {
	id, err := r.transport.ReplyMessage(ctx, msg.Chat.ID, msg.MessageID, text)
	if err != nil {
		r.getLogEntry().WithField("method", "notice").WithField("error", err.Error()).Warn("failed to send notice")
		return
	}
	r.punisher.DeleteLater(msg.Chat.ID, id, r.noticeTTL)
}
