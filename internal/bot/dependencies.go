package bot

import (
	"context"

	api "github.com/OvyFlash/telegram-bot-api"
)

// Transport is the subset of chat platform operations the moderation core
// relies on. Message ids returned are ids of the newly sent messages.
type Transport interface {
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	SendMessage(ctx context.Context, chatID int64, text string) (int, error)
	ReplyMessage(ctx context.Context, chatID int64, replyTo int, text string) (int, error)
	ForwardMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) (int, error)
	CopyMessage(ctx context.Context, toChatID, fromChatID int64, messageID int, caption string) (int, error)
	RestrictMember(ctx context.Context, chatID, userID int64, permissions Permissions) error
	BanMember(ctx context.Context, chatID, userID int64) error
	MemberRole(ctx context.Context, chatID, userID int64) (MemberRole, error)
	DownloadFile(ctx context.Context, fileID string, maxBytes int64) ([]byte, error)
}

// Handler defines the interface for all update handlers in the system
type Handler interface {
	Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (proceed bool, err error)
}
