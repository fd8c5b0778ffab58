package moderation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/iamwavecut/ngwarden/internal/adapters/llm"
	"github.com/iamwavecut/ngwarden/internal/bot"
	"github.com/iamwavecut/ngwarden/internal/config"
	"github.com/iamwavecut/ngwarden/internal/observability"
)

type sentMessage struct {
	ChatID  int64
	ReplyTo int
	Text    string
	ID      int
}

type copiedMessage struct {
	ToChatID   int64
	FromChatID int64
	MessageID  int
	Caption    string
}

type stubTransport struct {
	mu sync.Mutex

	nextID     int
	deleted    [][2]int64
	sent       []sentMessage
	forwarded  []int
	forwardIDs []int
	copied     []copiedMessage
	restricted []int64
	banned     []int64
	files      map[string][]byte

	deleteErr   error
	restrictErr error
	forwardErr  error
	copyErr     error
	downloadErr error
}

func newStubTransport() *stubTransport {
	return &stubTransport{nextID: 1000, files: map[string][]byte{}}
}

func (s *stubTransport) id() int {
	s.nextID++
	return s.nextID
}

func (s *stubTransport) DeleteMessage(_ context.Context, chatID int64, messageID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = append(s.deleted, [2]int64{chatID, int64(messageID)})
	return nil
}

func (s *stubTransport) SendMessage(_ context.Context, chatID int64, text string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	s.sent = append(s.sent, sentMessage{ChatID: chatID, Text: text, ID: id})
	return id, nil
}

func (s *stubTransport) ReplyMessage(_ context.Context, chatID int64, replyTo int, text string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	s.sent = append(s.sent, sentMessage{ChatID: chatID, ReplyTo: replyTo, Text: text, ID: id})
	return id, nil
}

func (s *stubTransport) ForwardMessage(_ context.Context, _, _ int64, messageID int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.forwardErr != nil {
		return 0, s.forwardErr
	}
	id := s.id()
	s.forwarded = append(s.forwarded, messageID)
	s.forwardIDs = append(s.forwardIDs, id)
	return id, nil
}

func (s *stubTransport) CopyMessage(_ context.Context, toChatID, fromChatID int64, messageID int, caption string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.copyErr != nil {
		return 0, s.copyErr
	}
	s.copied = append(s.copied, copiedMessage{ToChatID: toChatID, FromChatID: fromChatID, MessageID: messageID, Caption: caption})
	return s.id(), nil
}

func (s *stubTransport) RestrictMember(_ context.Context, _, userID int64, _ bot.Permissions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.restrictErr != nil {
		return s.restrictErr
	}
	s.restricted = append(s.restricted, userID)
	return nil
}

func (s *stubTransport) BanMember(_ context.Context, _, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.restrictErr != nil {
		return s.restrictErr
	}
	s.banned = append(s.banned, userID)
	return nil
}

func (s *stubTransport) DownloadFile(_ context.Context, fileID string, _ int64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.downloadErr != nil {
		return nil, s.downloadErr
	}
	return s.files[fileID], nil
}

func (s *stubTransport) sentTo(chatID int64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, m := range s.sent {
		if m.ChatID == chatID {
			out = append(out, m.Text)
		}
	}
	return out
}

func (s *stubTransport) forwardedID(t *testing.T) int {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.forwardIDs) != 1 {
		t.Fatalf("expected one forwarded copy, got %d", len(s.forwardIDs))
	}
	return s.forwardIDs[0]
}

func (s *stubTransport) wasDeleted(chatID int64, messageID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.deleted {
		if d[0] == chatID && d[1] == int64(messageID) {
			return true
		}
	}
	return false
}

type stubWarnStore struct {
	mu       sync.Mutex
	warnings map[int64]int
	err      error
}

func newStubWarnStore() *stubWarnStore {
	return &stubWarnStore{warnings: map[int64]int{}}
}

func (s *stubWarnStore) IncrementWarnings(_ context.Context, userID int64, _ string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	s.warnings[userID]++
	return s.warnings[userID], nil
}

type stubClassifier struct {
	mu      sync.Mutex
	verdict llm.Verdict
	err     error
	delay   time.Duration
	calls   int
}

func (c *stubClassifier) Scan(ctx context.Context, _ []byte, _ string, _ []string) (llm.Verdict, error) {
	c.mu.Lock()
	c.calls++
	verdict, err, delay := c.verdict, c.err, c.delay
	c.mu.Unlock()
	if delay > 0 {
		select {
		case <-ctx.Done():
			return llm.Verdict{}, ctx.Err()
		case <-time.After(delay):
		}
	}
	return verdict, err
}

type staticWords []string

func (w staticWords) Words(context.Context) ([]string, error) {
	return w, nil
}

type recordingScheduler struct {
	mu    sync.Mutex
	tasks []time.Duration
}

func (r *recordingScheduler) After(delay time.Duration, _ func(ctx context.Context)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, delay)
}

func (r *recordingScheduler) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

var errStub = errors.New("stub failure")

func testModerationConfig() config.Moderation {
	return config.Moderation{
		WarnThreshold: 3,
		PunishMode:    config.PunishModeRestrict,
		NoticeTTL:     5 * time.Second,
	}
}

func newTestPunisher(transport *stubTransport, store *stubWarnStore, scheduler deferrer) *Punisher {
	return NewPunisher(transport, store, scheduler, observability.NewNopAudit(), testModerationConfig(), "en")
}

func containsAny(texts []string, sub string) bool {
	for _, t := range texts {
		if strings.Contains(t, sub) {
			return true
		}
	}
	return false
}
