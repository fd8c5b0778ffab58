package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
)

type handlerStub struct {
	proceed bool
	err     error
	calls   int
}

func (h *handlerStub) Handle(_ context.Context, _ *api.Update, _ *api.Chat, _ *api.User) (bool, error) {
	h.calls++
	return h.proceed, h.err
}

func freshUpdate() *api.Update {
	return &api.Update{
		Message: &api.Message{
			MessageID: 1,
			Date:      int(time.Now().Unix()),
			Chat:      api.Chat{ID: -100, Type: "supergroup"},
			From:      &api.User{ID: 7},
			Text:      "hello",
		},
	}
}

func TestProcessStopsWhenHandlerDoesNotProceed(t *testing.T) {
	t.Parallel()

	first := &handlerStub{proceed: false}
	second := &handlerStub{proceed: true}
	up := NewUpdateProcessor(first, nil, second)

	var processed time.Time
	up.OnProcessed(func(ts time.Time) { processed = ts })

	if err := up.Process(context.Background(), freshUpdate()); err != nil {
		t.Fatalf("process: %v", err)
	}
	if first.calls != 1 || second.calls != 0 {
		t.Fatalf("unexpected calls: first=%d second=%d", first.calls, second.calls)
	}
	if processed.IsZero() {
		t.Fatalf("expected processed callback")
	}
}

func TestProcessSkipsOutdatedUpdates(t *testing.T) {
	t.Parallel()

	h := &handlerStub{proceed: true}
	up := NewUpdateProcessor(h)

	u := freshUpdate()
	u.Message.Date = int(time.Now().Add(-2 * UpdateTimeout).Unix())
	if err := up.Process(context.Background(), u); err != nil {
		t.Fatalf("process: %v", err)
	}
	if h.calls != 0 {
		t.Fatalf("outdated update must not reach handlers")
	}
}

func TestProcessWrapsHandlerError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	up := NewUpdateProcessor(&handlerStub{err: boom})
	err := up.Process(context.Background(), freshUpdate())
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped handler error, got %v", err)
	}
	if err := up.Process(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil update")
	}
}

func TestGetMessageType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		msg  *api.Message
		want MessageType
	}{
		{name: "text", msg: &api.Message{Text: "hi"}, want: MessageTypeText},
		{name: "photo", msg: &api.Message{Photo: []api.PhotoSize{{FileID: "p"}}}, want: MessageTypePhoto},
		{name: "animation-wins-over-document", msg: &api.Message{Animation: &api.Animation{FileID: "a"}, Document: &api.Document{FileID: "a"}}, want: MessageTypeAnimation},
		{name: "sticker", msg: &api.Message{Sticker: &api.Sticker{FileID: "s"}}, want: MessageTypeSticker},
		{name: "empty", msg: &api.Message{}, want: MessageTypeOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := GetMessageType(tt.msg); got != tt.want {
				t.Fatalf("GetMessageType() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetUN(t *testing.T) {
	t.Parallel()

	if got := GetUN(&api.User{FirstName: "Ali", LastName: "Rezaei"}); got != "Ali Rezaei" {
		t.Fatalf("unexpected fallback name: %q", got)
	}
	if got := GetUN(&api.User{UserName: "ali", FirstName: "Ali"}); got != "ali" {
		t.Fatalf("unexpected username: %q", got)
	}
	if got := GetUN(nil); got != "" {
		t.Fatalf("expected empty name for nil user")
	}
}
