package permissions

import (
	"context"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/ngwarden/internal/bot"
)

type roleSource interface {
	MemberRole(ctx context.Context, chatID, userID int64) (bot.MemberRole, error)
}

// AdminChecker answers whether a sender is exempt from moderation. The role
// is queried on every call so promotions and demotions apply immediately.
type AdminChecker struct {
	roles roleSource
}

func NewAdminChecker(roles roleSource) *AdminChecker {
	return &AdminChecker{roles: roles}
}

// IsAdmin reports false when the role lookup fails.
func (c *AdminChecker) IsAdmin(ctx context.Context, chatID, userID int64) bool {
	role, err := c.roles.MemberRole(ctx, chatID, userID)
	if err != nil {
		log.WithFields(log.Fields{
			"object":  "AdminChecker",
			"method":  "IsAdmin",
			"chat_id": chatID,
			"user_id": userID,
			"error":   err.Error(),
		}).Warn("role lookup failed, treating as non-admin")
		return false
	}
	return role.IsAdmin()
}

// IsAdminMessage also covers messages posted anonymously on behalf of the
// group itself and automatic forwards from the linked channel.
func (c *AdminChecker) IsAdminMessage(ctx context.Context, msg *api.Message) bool {
	if msg == nil {
		return false
	}
	if IsAnonymousAdmin(msg) || IsLinkedChannelAutoForward(msg) {
		return true
	}
	if msg.From == nil {
		return false
	}
	return c.IsAdmin(ctx, msg.Chat.ID, msg.From.ID)
}

func IsAnonymousAdmin(msg *api.Message) bool {
	return msg != nil && msg.SenderChat != nil && msg.SenderChat.ID == msg.Chat.ID
}

func IsLinkedChannelAutoForward(msg *api.Message) bool {
	if msg == nil || !msg.IsAutomaticForward || msg.SenderChat == nil {
		return false
	}
	return msg.SenderChat.Type == "channel"
}
