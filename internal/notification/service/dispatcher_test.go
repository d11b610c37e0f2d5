package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smallbiznis/coverdesk/internal/config"
	"github.com/smallbiznis/coverdesk/internal/notification/domain"
	"github.com/smallbiznis/coverdesk/internal/notification/repository"
	"github.com/smallbiznis/coverdesk/internal/providers/email"
	"github.com/smallbiznis/coverdesk/internal/testutil/fixture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProvider struct {
	mu   sync.Mutex
	sent []email.Message
	err  error
}

func (p *recordingProvider) Send(ctx context.Context, msg email.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, msg)
	return nil
}

type harness struct {
	env        *fixture.Env
	repo       domain.Repository
	provider   *recordingProvider
	dispatcher *Dispatcher
	inbox      domain.Inbox
}

func newHarness(t *testing.T) *harness {
	env := fixture.New(t)
	repo := repository.Provide()
	provider := &recordingProvider{}

	var cfg config.Config
	cfg.SMTP.BaseURL = "https://desk.example.com"

	return &harness{
		env:      env,
		repo:     repo,
		provider: provider,
		dispatcher: NewDispatcher(DispatcherParams{
			DB:       env.DB,
			Log:      env.Log,
			GenID:    env.Node,
			Clock:    env.Clock,
			Config:   cfg,
			Repo:     repo,
			UserRepo: env.Users,
			Email:    provider,
		}),
		inbox: NewInbox(InboxParams{DB: env.DB, Clock: env.Clock, Repo: repo}),
	}
}

func (h *harness) message(title string) domain.Message {
	return domain.Message{
		Recipient:         h.env.Manager.ID,
		Type:              domain.TypeClaimDocumentDeadline,
		Title:             title,
		Message:           "  documents are due  ",
		Link:              "/claims/42",
		RelatedObjectType: "claim",
		RelatedObjectID:   42,
	}
}

func TestNotifyStoresAndEmails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	delivered := h.dispatcher.Notify(ctx, h.message("Claim needs documents"))
	assert.Equal(t, 1, delivered)

	resp, err := h.inbox.List(ctx, h.env.Manager.ID, domain.ListNotificationRequest{})
	require.NoError(t, err)
	require.Len(t, resp.Notifications, 1)
	n := resp.Notifications[0]
	assert.Equal(t, "documents are due", n.Message)
	assert.Equal(t, domain.PriorityNormal, n.Priority)
	assert.False(t, n.IsRead)
	require.NotNil(t, n.RelatedObjectID)
	assert.EqualValues(t, 42, *n.RelatedObjectID)

	require.Len(t, h.provider.sent, 1)
	sent := h.provider.sent[0]
	assert.Equal(t, []string{"manager@example.com"}, sent.To)
	assert.Equal(t, "Claim needs documents", sent.Subject)
	assert.Contains(t, sent.Text, "https://desk.example.com/claims/42")
}

func TestNotifySkipsInvalidRecipient(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	bad := h.message("nobody")
	bad.Recipient = 0
	delivered := h.dispatcher.Notify(ctx, bad, h.message("somebody"))
	assert.Equal(t, 1, delivered)

	count, err := h.inbox.UnreadCount(ctx, h.env.Manager.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestEmailFailureKeepsInboxRow(t *testing.T) {
	h := newHarness(t)
	h.provider.err = errors.New("smtp down")

	delivered := h.dispatcher.Notify(context.Background(), h.message("still stored"))
	assert.Equal(t, 1, delivered)

	count, err := h.inbox.UnreadCount(context.Background(), h.env.Manager.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestNotifyOnceDeduplicatesWithinDay(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	sent, err := h.dispatcher.NotifyOnce(ctx, h.message("first"))
	require.NoError(t, err)
	assert.True(t, sent)

	sent, err = h.dispatcher.NotifyOnce(ctx, h.message("again"))
	require.NoError(t, err)
	assert.False(t, sent)

	other := h.message("other claim")
	other.RelatedObjectID = 43
	sent, err = h.dispatcher.NotifyOnce(ctx, other)
	require.NoError(t, err)
	assert.True(t, sent)

	h.env.Clock.Advance(24 * time.Hour)
	sent, err = h.dispatcher.NotifyOnce(ctx, h.message("next day"))
	require.NoError(t, err)
	assert.True(t, sent)

	count, err := h.inbox.UnreadCount(ctx, h.env.Manager.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)
}

func TestInboxReadFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		h.dispatcher.Notify(ctx, h.message("note"))
	}
	resp, err := h.inbox.List(ctx, h.env.Manager.ID, domain.ListNotificationRequest{})
	require.NoError(t, err)
	require.Len(t, resp.Notifications, 3)

	first := resp.Notifications[0]
	_, err = h.inbox.MarkRead(ctx, h.env.Requester.ID, first.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	read, err := h.inbox.MarkRead(ctx, h.env.Manager.ID, first.ID)
	require.NoError(t, err)
	assert.True(t, read.IsRead)
	require.NotNil(t, read.ReadAt)

	unread, err := h.inbox.List(ctx, h.env.Manager.ID, domain.ListNotificationRequest{UnreadOnly: true})
	require.NoError(t, err)
	assert.Len(t, unread.Notifications, 2)

	n, err := h.inbox.MarkAllRead(ctx, h.env.Manager.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	count, err := h.inbox.UnreadCount(ctx, h.env.Manager.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestInboxPaginates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		h.dispatcher.Notify(ctx, h.message("note"))
	}
	req := domain.ListNotificationRequest{}
	req.PageSize = 2

	page, err := h.inbox.List(ctx, h.env.Manager.ID, req)
	require.NoError(t, err)
	require.Len(t, page.Notifications, 2)
	require.True(t, page.PageInfo.HasMore)

	seen := map[int64]bool{}
	for _, n := range page.Notifications {
		seen[n.ID.Int64()] = true
	}
	for page.PageInfo.HasMore {
		req.PageToken = page.PageInfo.NextPageToken
		page, err = h.inbox.List(ctx, h.env.Manager.ID, req)
		require.NoError(t, err)
		for _, n := range page.Notifications {
			assert.False(t, seen[n.ID.Int64()])
			seen[n.ID.Int64()] = true
		}
	}
	assert.Len(t, seen, 5)

	req.PageToken = "not-a-token"
	_, err = h.inbox.List(ctx, h.env.Manager.ID, req)
	assert.Error(t, err)
}
