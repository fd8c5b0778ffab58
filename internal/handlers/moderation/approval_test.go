package moderation

import (
	"context"
	"strings"
	"testing"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/iamwavecut/ngwarden/internal/adapters"
	"github.com/iamwavecut/ngwarden/internal/adapters/llm"
	"github.com/iamwavecut/ngwarden/internal/config"
	errs "github.com/iamwavecut/ngwarden/internal/errors"
	"github.com/iamwavecut/ngwarden/internal/observability"
)

const (
	testChatID     int64 = -100
	testReviewerID int64 = 900
	testUserID     int64 = 7
)

type approvalFixture struct {
	transport *stubTransport
	store     *stubWarnStore
	pending   *MemoryPending
	pipeline  *ApprovalPipeline
}

func newApprovalFixture(classifier adapters.Classifier, reviewerID int64) *approvalFixture {
	transport := newStubTransport()
	transport.files["photo-big"] = []byte{0xff, 0xd8, 0xff}
	store := newStubWarnStore()
	pending := NewMemoryPending()
	punisher := newTestPunisher(transport, store, &recordingScheduler{})
	cfg := config.Review{
		ReviewerID:      reviewerID,
		NoticeTTL:       30 * time.Second,
		MaxScanBytes:    1024,
		ClassifyTimeout: 200 * time.Millisecond,
	}
	return &approvalFixture{
		transport: transport,
		store:     store,
		pending:   pending,
		pipeline:  NewApprovalPipeline(transport, classifier, staticWords{"spam"}, punisher, pending, observability.NewNopAudit(), cfg, "en"),
	}
}

func photoMessage(messageID int, oversized bool) *api.Message {
	big := api.PhotoSize{FileID: "photo-big", FileSize: 100}
	if oversized {
		big.FileSize = 4096
	}
	return &api.Message{
		MessageID: messageID,
		From:      &api.User{ID: testUserID, FirstName: "Bob"},
		Chat:      api.Chat{ID: testChatID, Type: "supergroup", Title: "Group"},
		Photo: []api.PhotoSize{
			{FileID: "photo-small", FileSize: 10},
			big,
		},
	}
}

func reviewReply(reviewMessageID, messageID int, text string) *api.Message {
	return &api.Message{
		MessageID:      messageID,
		From:           &api.User{ID: testReviewerID},
		Chat:           api.Chat{ID: testReviewerID, Type: "private"},
		Text:           text,
		ReplyToMessage: &api.Message{MessageID: reviewMessageID},
	}
}

func TestMediaUnavailableClassifierThenApprove(t *testing.T) {
	t.Parallel()

	f := newApprovalFixture(nil, testReviewerID)
	ctx := context.Background()

	outcome, err := f.pipeline.HandleMedia(ctx, photoMessage(5, false))
	if err != nil {
		t.Fatalf("handle media: %v", err)
	}
	if outcome != MediaSentForReview {
		t.Fatalf("unexpected outcome %s", outcome)
	}
	if !f.transport.wasDeleted(testChatID, 5) {
		t.Fatalf("original media must be deleted")
	}
	if len(f.transport.forwarded) != 1 || f.pending.Len() != 1 {
		t.Fatalf("expected one forward and one pending entry")
	}
	if !containsAny(f.transport.sentTo(testChatID), "sent for admin review") {
		t.Fatalf("user must be told about the review: %q", f.transport.sentTo(testChatID))
	}
	if !containsAny(f.transport.sentTo(testReviewerID), "Media for review") {
		t.Fatalf("reviewer must be prompted")
	}

	reviewID := f.transport.forwardedID(t)
	decision, err := f.pipeline.HandleReview(ctx, reviewReply(reviewID, 77, "approve"))
	if err != nil {
		t.Fatalf("handle review: %v", err)
	}
	if decision != DecisionApprove {
		t.Fatalf("unexpected decision %v", decision)
	}
	if len(f.transport.copied) != 1 {
		t.Fatalf("expected one repost, got %d", len(f.transport.copied))
	}
	copied := f.transport.copied[0]
	if copied.ToChatID != testChatID || copied.FromChatID != testReviewerID || copied.MessageID != reviewID {
		t.Fatalf("unexpected copy: %#v", copied)
	}
	if !strings.Contains(copied.Caption, "Approved") {
		t.Fatalf("repost must attribute review: %q", copied.Caption)
	}
	if f.pending.Len() != 0 {
		t.Fatalf("pending entry must be removed")
	}

	decision, err = f.pipeline.HandleReview(ctx, reviewReply(reviewID, 78, "approve"))
	if err != nil {
		t.Fatalf("second review: %v", err)
	}
	if decision != DecisionApprove || len(f.transport.copied) != 1 {
		t.Fatalf("second approval must not repost")
	}
	if !containsAny(f.transport.sentTo(testReviewerID), "No pending media") {
		t.Fatalf("second approval must report not found")
	}
}

func TestMediaReject(t *testing.T) {
	t.Parallel()

	f := newApprovalFixture(&stubClassifier{err: errs.ErrClassifierUnavailable}, testReviewerID)
	ctx := context.Background()

	if _, err := f.pipeline.HandleMedia(ctx, photoMessage(5, false)); err != nil {
		t.Fatalf("handle media: %v", err)
	}
	reviewID := f.transport.forwardedID(t)

	decision, err := f.pipeline.HandleReview(ctx, reviewReply(reviewID, 80, "رد"))
	if err != nil || decision != DecisionReject {
		t.Fatalf("unexpected review result: %v %v", decision, err)
	}
	if len(f.transport.copied) != 0 {
		t.Fatalf("rejected media must not be reposted")
	}
	if !containsAny(f.transport.sentTo(testChatID), "rejected by admin review") {
		t.Fatalf("origin chat must be told: %q", f.transport.sentTo(testChatID))
	}
}

func TestMediaClassifierVerdicts(t *testing.T) {
	t.Parallel()

	t.Run("allow", func(t *testing.T) {
		t.Parallel()
		classifier := &stubClassifier{verdict: llm.Verdict{Action: llm.ActionAllow, Category: llm.CategoryNone}}
		f := newApprovalFixture(classifier, testReviewerID)
		outcome, err := f.pipeline.HandleMedia(context.Background(), photoMessage(5, false))
		if err != nil || outcome != MediaAllowed {
			t.Fatalf("unexpected: %s %v", outcome, err)
		}
		if len(f.transport.deleted) != 0 || len(f.transport.sent) != 0 {
			t.Fatalf("allowed media must be left alone")
		}
	})

	t.Run("block", func(t *testing.T) {
		t.Parallel()
		classifier := &stubClassifier{verdict: llm.Verdict{Action: llm.ActionBlock, Category: llm.CategoryNSFW, Reason: "nudity"}}
		f := newApprovalFixture(classifier, testReviewerID)
		outcome, err := f.pipeline.HandleMedia(context.Background(), photoMessage(5, false))
		if err != nil || outcome != MediaBlocked {
			t.Fatalf("unexpected: %s %v", outcome, err)
		}
		if !f.transport.wasDeleted(testChatID, 5) || f.store.warnings[testUserID] != 1 {
			t.Fatalf("blocked media must be deleted and counted")
		}
		if len(f.transport.forwarded) != 0 {
			t.Fatalf("blocked media must not go to review")
		}
	})

	t.Run("timeout falls back to review", func(t *testing.T) {
		t.Parallel()
		classifier := &stubClassifier{delay: time.Second, verdict: llm.Verdict{Action: llm.ActionAllow}}
		f := newApprovalFixture(classifier, testReviewerID)
		started := time.Now()
		outcome, err := f.pipeline.HandleMedia(context.Background(), photoMessage(5, false))
		if err != nil || outcome != MediaSentForReview {
			t.Fatalf("unexpected: %s %v", outcome, err)
		}
		if time.Since(started) > 900*time.Millisecond {
			t.Fatalf("classifier timeout not enforced")
		}
	})

	t.Run("oversized skips classifier", func(t *testing.T) {
		t.Parallel()
		classifier := &stubClassifier{verdict: llm.Verdict{Action: llm.ActionAllow}}
		f := newApprovalFixture(classifier, testReviewerID)
		outcome, err := f.pipeline.HandleMedia(context.Background(), photoMessage(5, true))
		if err != nil || outcome != MediaSentForReview {
			t.Fatalf("unexpected: %s %v", outcome, err)
		}
		if classifier.calls != 0 {
			t.Fatalf("oversized media must not be scanned")
		}
	})
}

func TestMediaWithoutReviewerIsRemoved(t *testing.T) {
	t.Parallel()

	f := newApprovalFixture(nil, 0)
	outcome, err := f.pipeline.HandleMedia(context.Background(), photoMessage(5, false))
	if err != nil || outcome != MediaRemoved {
		t.Fatalf("unexpected: %s %v", outcome, err)
	}
	if !f.transport.wasDeleted(testChatID, 5) || f.pending.Len() != 0 {
		t.Fatalf("media must be removed without a pending entry")
	}
	if !containsAny(f.transport.sentTo(testChatID), "could not be checked") {
		t.Fatalf("user must be told about the removal")
	}
}

type failingPending struct{}

func (failingPending) Put(context.Context, int, PendingEntry) error { return errStub }

func (failingPending) Take(context.Context, int) (*PendingEntry, error) { return nil, errStub }

func TestWithholdFailuresAreVisible(t *testing.T) {
	t.Parallel()

	t.Run("forward failure", func(t *testing.T) {
		t.Parallel()
		f := newApprovalFixture(nil, testReviewerID)
		f.transport.forwardErr = errStub
		outcome, err := f.pipeline.HandleMedia(context.Background(), photoMessage(5, false))
		if err != nil || outcome != MediaRemoved {
			t.Fatalf("unexpected: %s %v", outcome, err)
		}
		if !f.transport.wasDeleted(testChatID, 5) {
			t.Fatalf("original media must be deleted")
		}
		if !containsAny(f.transport.sentTo(testChatID), "could not be checked") {
			t.Fatalf("user must be told about the removal: %q", f.transport.sentTo(testChatID))
		}
	})

	t.Run("pending registry failure", func(t *testing.T) {
		t.Parallel()
		f := newApprovalFixture(nil, testReviewerID)
		f.pipeline.pending = failingPending{}
		outcome, err := f.pipeline.HandleMedia(context.Background(), photoMessage(5, false))
		if err == nil || outcome != MediaRemoved {
			t.Fatalf("unexpected: %s %v", outcome, err)
		}
		if len(f.transport.forwardIDs) != 1 || !f.transport.wasDeleted(testReviewerID, f.transport.forwardIDs[0]) {
			t.Fatalf("orphaned review copy must be deleted")
		}
		if len(f.transport.sentTo(testReviewerID)) != 0 {
			t.Fatalf("reviewer must not be prompted without a pending entry")
		}
		if !containsAny(f.transport.sentTo(testChatID), "could not be checked") {
			t.Fatalf("user must be told about the removal: %q", f.transport.sentTo(testChatID))
		}
	})
}

func TestHandleReviewIgnoresStrangers(t *testing.T) {
	t.Parallel()

	f := newApprovalFixture(nil, testReviewerID)
	msg := reviewReply(1, 2, "approve")
	msg.From = &api.User{ID: 12345}
	decision, err := f.pipeline.HandleReview(context.Background(), msg)
	if err != nil || decision != DecisionNone || len(f.transport.sent) != 0 {
		t.Fatalf("non-reviewer replies must be ignored")
	}
}

func TestParseDecision(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Decision
	}{
		{"approve", DecisionApprove},
		{"Yes!", DecisionApprove},
		{"تایید", DecisionApprove},
		{"✅", DecisionApprove},
		{" reject. ", DecisionReject},
		{"رد", DecisionReject},
		{"❌", DecisionReject},
		{"reject please", DecisionNone},
		{"approve it", DecisionNone},
		{"no idea, checking", DecisionNone},
		{"no", DecisionNone},
		{"ok", DecisionNone},
		{"not sure", DecisionNone},
		{"", DecisionNone},
	}
	for _, tt := range tests {
		if got := ParseDecision(tt.in); got != tt.want {
			t.Errorf("ParseDecision(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestMediaOf(t *testing.T) {
	t.Parallel()

	media, ok := MediaOf(photoMessage(1, false))
	if !ok || media.FileID != "photo-big" || media.Size != 100 || media.MIMEType != "image/jpeg" {
		t.Fatalf("unexpected photo media: %#v", media)
	}

	sticker, ok := MediaOf(&api.Message{Sticker: &api.Sticker{FileID: "s", IsVideo: true}})
	if !ok || sticker.MIMEType != "video/webm" || sticker.Kind != "sticker" {
		t.Fatalf("unexpected sticker media: %#v", sticker)
	}

	if _, ok := MediaOf(&api.Message{Text: "hi"}); ok {
		t.Fatalf("text is not media")
	}
}
