package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	api "github.com/OvyFlash/telegram-bot-api"
	"golang.org/x/time/rate"

	"github.com/iamwavecut/ngwarden/internal/bot"
	errs "github.com/iamwavecut/ngwarden/internal/errors"
)

// Operations implements bot.Transport on top of the Bot API client.
type Operations struct {
	bot     *api.BotAPI
	limiter *rate.Limiter
	client  *http.Client
}

var _ bot.Transport = (*Operations)(nil)

// NewOperations creates a new Operations instance. Outbound calls are
// throttled to rps requests per second.
func NewOperations(botAPI *api.BotAPI, rps float64, client *http.Client) *Operations {
	if client == nil {
		client = http.DefaultClient
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Operations{
		bot:     botAPI,
		limiter: rate.NewLimiter(limit, 5),
		client:  client,
	}
}

func (o *Operations) wait(ctx context.Context) error {
	if err := o.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

func (o *Operations) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if err := o.wait(ctx); err != nil {
		return err
	}
	if _, err := o.bot.Request(api.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

func (o *Operations) SendMessage(ctx context.Context, chatID int64, text string) (int, error) {
	msg := api.NewMessage(chatID, text)
	msg.ParseMode = api.ModeHTML
	msg.LinkPreviewOptions.IsDisabled = true
	return o.send(ctx, msg)
}

func (o *Operations) ReplyMessage(ctx context.Context, chatID int64, replyTo int, text string) (int, error) {
	msg := api.NewMessage(chatID, text)
	msg.ParseMode = api.ModeHTML
	msg.LinkPreviewOptions.IsDisabled = true
	msg.ReplyParameters.MessageID = replyTo
	msg.ReplyParameters.ChatID = chatID
	msg.ReplyParameters.AllowSendingWithoutReply = true
	return o.send(ctx, msg)
}

func (o *Operations) ForwardMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) (int, error) {
	return o.send(ctx, api.NewForward(toChatID, fromChatID, messageID))
}

func (o *Operations) CopyMessage(ctx context.Context, toChatID, fromChatID int64, messageID int, caption string) (int, error) {
	if err := o.wait(ctx); err != nil {
		return 0, err
	}
	cfg := api.NewCopyMessage(toChatID, fromChatID, messageID)
	cfg.Caption = caption
	cfg.ParseMode = api.ModeHTML
	id, err := o.bot.CopyMessage(cfg)
	if err != nil {
		return 0, fmt.Errorf("failed to copy message: %w", withPrivilegeError(err))
	}
	return id.MessageID, nil
}

func (o *Operations) RestrictMember(ctx context.Context, chatID, userID int64, permissions bot.Permissions) error {
	if err := o.wait(ctx); err != nil {
		return err
	}
	config := api.RestrictChatMemberConfig{
		ChatMemberConfig: api.ChatMemberConfig{
			ChatConfig: api.ChatConfig{
				ChatID: chatID,
			},
			UserID: userID,
		},
		Permissions: &api.ChatPermissions{
			CanSendMessages:       permissions.CanSendMessages,
			CanSendAudios:         permissions.CanSendMedia,
			CanSendDocuments:      permissions.CanSendMedia,
			CanSendPhotos:         permissions.CanSendMedia,
			CanSendVideos:         permissions.CanSendMedia,
			CanSendVideoNotes:     permissions.CanSendMedia,
			CanSendVoiceNotes:     permissions.CanSendMedia,
			CanSendPolls:          permissions.CanSendPolls,
			CanSendOtherMessages:  permissions.CanSendOtherMessages,
			CanAddWebPagePreviews: permissions.CanAddWebPagePreviews,
			CanInviteUsers:        permissions.CanInviteUsers,
		},
	}
	if _, err := o.bot.Request(config); err != nil {
		return fmt.Errorf("failed to restrict user: %w", withPrivilegeError(err))
	}
	return nil
}

func (o *Operations) BanMember(ctx context.Context, chatID, userID int64) error {
	if err := o.wait(ctx); err != nil {
		return err
	}
	config := api.BanChatMemberConfig{
		ChatMemberConfig: api.ChatMemberConfig{
			ChatConfig: api.ChatConfig{
				ChatID: chatID,
			},
			UserID: userID,
		},
		RevokeMessages: true,
	}
	if _, err := o.bot.Request(config); err != nil {
		return fmt.Errorf("failed to ban user: %w", withPrivilegeError(err))
	}
	return nil
}

func (o *Operations) MemberRole(ctx context.Context, chatID, userID int64) (bot.MemberRole, error) {
	if err := o.wait(ctx); err != nil {
		return bot.RoleUnknown, err
	}
	member, err := o.bot.GetChatMember(api.GetChatMemberConfig{
		ChatConfigWithUser: api.ChatConfigWithUser{
			ChatConfig: api.ChatConfig{
				ChatID: chatID,
			},
			UserID: userID,
		},
	})
	if err != nil {
		return bot.RoleUnknown, fmt.Errorf("failed to get chat member: %w", err)
	}
	return RoleOf(&member), nil
}

// DownloadFile fetches a file body, refusing anything above maxBytes.
func (o *Operations) DownloadFile(ctx context.Context, fileID string, maxBytes int64) ([]byte, error) {
	if err := o.wait(ctx); err != nil {
		return nil, err
	}
	url, err := o.bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve file url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download file: unexpected status %d", resp.StatusCode)
	}
	if maxBytes > 0 && resp.ContentLength > maxBytes {
		return nil, fmt.Errorf("file is %d bytes, limit %d: %w", resp.ContentLength, maxBytes, errs.ErrInvalidInput)
	}

	var reader io.Reader = resp.Body
	if maxBytes > 0 {
		reader = io.LimitReader(resp.Body, maxBytes+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if maxBytes > 0 && int64(len(body)) > maxBytes {
		return nil, fmt.Errorf("file exceeds %d bytes: %w", maxBytes, errs.ErrInvalidInput)
	}
	return body, nil
}

func (o *Operations) send(ctx context.Context, c api.Chattable) (int, error) {
	if err := o.wait(ctx); err != nil {
		return 0, err
	}
	sent, err := o.bot.Send(c)
	if err != nil {
		return 0, fmt.Errorf("failed to send message: %w", withPrivilegeError(err))
	}
	return sent.MessageID, nil
}

// RoleOf maps a chat member status onto a bot.MemberRole.
func RoleOf(member *api.ChatMember) bot.MemberRole {
	if member == nil {
		return bot.RoleUnknown
	}
	switch {
	case member.IsCreator():
		return bot.RoleCreator
	case member.IsAdministrator():
		return bot.RoleAdministrator
	case member.WasKicked():
		return bot.RoleKicked
	case member.HasLeft():
		return bot.RoleLeft
	case member.Status == "restricted":
		return bot.RoleRestricted
	case member.Status == "member":
		return bot.RoleMember
	}
	return bot.RoleUnknown
}

func withPrivilegeError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "not enough rights") || strings.Contains(msg, "need administrator rights") {
		return fmt.Errorf("%w: %w", errs.ErrNoPrivileges, err)
	}
	return err
}
