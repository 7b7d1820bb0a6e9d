package messaging

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domainmessage "tradepost/internal/domain/message"
	domainuser "tradepost/internal/domain/user"
	"tradepost/internal/infra/storage/memory"
)

type eventRecorder struct {
	created []domainmessage.Message
	read    []domainmessage.Message
	fail    bool
}

func (r *eventRecorder) MessageCreated(ctx context.Context, msg domainmessage.Message) error {
	if r.fail {
		return errors.New("broker down")
	}
	r.created = append(r.created, msg)
	return nil
}

func (r *eventRecorder) MessageRead(ctx context.Context, msg domainmessage.Message) error {
	if r.fail {
		return errors.New("broker down")
	}
	r.read = append(r.read, msg)
	return nil
}

type staticPresence map[string]bool

func (p staticPresence) IsOnline(ctx context.Context, userID string) bool {
	return p[userID]
}

type fixture struct {
	service   *Service
	store     *memory.MessageStore
	directory *memory.UserDirectory
	events    *eventRecorder
	clock     *time.Time
}

func newFixture(t *testing.T, presence Presence) fixture {
	t.Helper()
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	clock := &now
	store := memory.NewMessageStore().WithClock(func() time.Time { return *clock })
	directory := memory.NewUserDirectory()
	for _, id := range []string{"u1", "u2", "u3"} {
		directory.Put(domainuser.PublicProfile{
			ID:          id,
			Username:    id,
			DisplayName: "User " + id,
		})
	}
	events := &eventRecorder{}
	logger := slog.New(slog.DiscardHandler)
	return fixture{
		service:   NewService(store, directory, presence, events, logger),
		store:     store,
		directory: directory,
		events:    events,
		clock:     clock,
	}
}

func (f fixture) at(t *testing.T, when time.Time, sender, receiver, content string) *domainmessage.Message {
	t.Helper()
	*f.clock = when
	msg, err := f.service.SendMessage(context.Background(), sender, receiver, content)
	require.NoError(t, err)
	return msg
}

func TestSendMessage_RejectsSelfMessage(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.service.SendMessage(context.Background(), "u1", "u1", "hi")
	require.ErrorIs(t, err, domainmessage.ErrSelfMessage)
	require.ErrorIs(t, err, domainmessage.ErrValidation)
	require.Empty(t, f.events.created)
}

func TestSendMessage_RejectsEmptyContent(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.service.SendMessage(context.Background(), "u1", "u2", "   ")
	require.ErrorIs(t, err, domainmessage.ErrEmptyContent)
}

func TestSendMessage_PersistsAndPublishes(t *testing.T) {
	f := newFixture(t, nil)
	msg, err := f.service.SendMessage(context.Background(), "u1", "u2", "hello")
	require.NoError(t, err)
	require.False(t, msg.IsRead)

	stored, err := f.store.ByID(context.Background(), msg.ID)
	require.NoError(t, err)
	require.Equal(t, msg, stored)

	require.Len(t, f.events.created, 1)
	require.Equal(t, msg.ID, f.events.created[0].ID)
}

func TestSendMessage_PublishFailureDoesNotFailTheCall(t *testing.T) {
	f := newFixture(t, nil)
	f.events.fail = true
	msg, err := f.service.SendMessage(context.Background(), "u1", "u2", "hello")
	require.NoError(t, err)

	_, err = f.store.ByID(context.Background(), msg.ID)
	require.NoError(t, err)
}

func TestMarkMessageRead_OnlyReceiverMayRead(t *testing.T) {
	f := newFixture(t, nil)
	msg := f.at(t, *f.clock, "u1", "u2", "hello")

	_, err := f.service.MarkMessageRead(context.Background(), msg.ID, "u1")
	require.ErrorIs(t, err, ErrNotReceiver)

	_, err = f.service.MarkMessageRead(context.Background(), msg.ID, "u3")
	require.ErrorIs(t, err, ErrNotReceiver)
}

func TestMarkMessageRead_IdempotentAndPublishesOnce(t *testing.T) {
	f := newFixture(t, nil)
	msg := f.at(t, *f.clock, "u1", "u2", "hello")

	once, err := f.service.MarkMessageRead(context.Background(), msg.ID, "u2")
	require.NoError(t, err)
	require.True(t, once.IsRead)

	twice, err := f.service.MarkMessageRead(context.Background(), msg.ID, "u2")
	require.NoError(t, err)
	require.Equal(t, once, twice)

	// the transition happened once, so exactly one event
	require.Len(t, f.events.read, 1)
}

func TestMarkMessageRead_NotFound(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.service.MarkMessageRead(context.Background(), 99, "u1")
	require.ErrorIs(t, err, domainmessage.ErrNotFound)
}

func TestGetConversations_GroupsByCounterpart(t *testing.T) {
	f := newFixture(t, nil)
	base := *f.clock
	f.at(t, base, "u1", "u2", "hi")
	f.at(t, base.Add(time.Second), "u2", "u1", "hey")
	f.at(t, base.Add(2*time.Second), "u1", "u3", "yo")

	conversations, err := f.service.GetConversations(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, conversations, 2)

	// most recent activity first
	require.Equal(t, "u3", conversations[0].Counterpart.ID)
	require.Equal(t, "yo", conversations[0].LastMessage.Content)
	require.Equal(t, 0, conversations[0].UnreadCount)

	require.Equal(t, "u2", conversations[1].Counterpart.ID)
	require.Equal(t, "hey", conversations[1].LastMessage.Content)
	require.Equal(t, 1, conversations[1].UnreadCount)
}

func TestGetConversations_EndToEndScenario(t *testing.T) {
	f := newFixture(t, nil)
	base := *f.clock
	f.at(t, base.Add(100*time.Second), "u1", "u2", "hello")
	hiBack := f.at(t, base.Add(200*time.Second), "u2", "u1", "hi back")
	f.at(t, base.Add(150*time.Second), "u1", "u3", "yo")

	conversations, err := f.service.GetConversations(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, conversations, 2)

	require.Equal(t, "u2", conversations[0].Counterpart.ID)
	require.Equal(t, "hi back", conversations[0].LastMessage.Content)
	require.Equal(t, 1, conversations[0].UnreadCount)
	require.Equal(t, base.Add(200*time.Second), conversations[0].UpdatedAt)

	require.Equal(t, "u3", conversations[1].Counterpart.ID)
	require.Equal(t, "yo", conversations[1].LastMessage.Content)
	require.Equal(t, 0, conversations[1].UnreadCount)

	_, err = f.service.MarkMessageRead(context.Background(), hiBack.ID, "u1")
	require.NoError(t, err)

	count, err := f.service.GetUnreadCount(context.Background(), "u1")
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestGetConversations_TieBreakPrefersHigherID(t *testing.T) {
	f := newFixture(t, nil)
	when := *f.clock
	f.at(t, when, "u1", "u2", "first")
	f.at(t, when, "u2", "u1", "second") // same timestamp, higher id

	conversations, err := f.service.GetConversations(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, conversations, 1)
	require.Equal(t, "second", conversations[0].LastMessage.Content)
}

func TestGetConversations_DropsUnresolvableCounterparts(t *testing.T) {
	f := newFixture(t, nil)
	base := *f.clock
	f.at(t, base, "u1", "u2", "hi")
	f.at(t, base.Add(time.Second), "u1", "u3", "yo")
	f.directory.Remove("u3")

	conversations, err := f.service.GetConversations(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, conversations, 1)
	require.Equal(t, "u2", conversations[0].Counterpart.ID)
}

func TestGetConversations_UnreadSumMatchesGlobalCount(t *testing.T) {
	f := newFixture(t, nil)
	base := *f.clock
	f.at(t, base, "u2", "u1", "a")
	f.at(t, base.Add(time.Second), "u2", "u1", "b")
	read := f.at(t, base.Add(2*time.Second), "u3", "u1", "c")
	f.at(t, base.Add(3*time.Second), "u3", "u1", "d")
	f.at(t, base.Add(4*time.Second), "u1", "u2", "outbound")
	_, err := f.service.MarkMessageRead(context.Background(), read.ID, "u1")
	require.NoError(t, err)

	conversations, err := f.service.GetConversations(context.Background(), "u1")
	require.NoError(t, err)
	var sum int64
	for _, conv := range conversations {
		sum += int64(conv.UnreadCount)
	}

	global, err := f.service.GetUnreadCount(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, global, sum)
	require.Equal(t, int64(3), global)
}

func TestGetConversations_DecoratesPresence(t *testing.T) {
	f := newFixture(t, staticPresence{"u2": true})
	base := *f.clock
	f.at(t, base, "u1", "u2", "hi")
	f.at(t, base.Add(time.Second), "u1", "u3", "yo")

	conversations, err := f.service.GetConversations(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, conversations, 2)
	byID := map[string]Conversation{}
	for _, conv := range conversations {
		byID[conv.Counterpart.ID] = conv
	}
	require.True(t, byID["u2"].IsOnline)
	require.False(t, byID["u3"].IsOnline)
}

func TestGetConversations_EmptyLogYieldsEmptyList(t *testing.T) {
	f := newFixture(t, nil)
	conversations, err := f.service.GetConversations(context.Background(), "u1")
	require.NoError(t, err)
	require.Empty(t, conversations)
}

func TestListThread_ReturnsBothDirectionsOldestFirst(t *testing.T) {
	f := newFixture(t, nil)
	base := *f.clock
	f.at(t, base, "u1", "u2", "hi")
	f.at(t, base.Add(time.Second), "u2", "u1", "hey")
	f.at(t, base.Add(2*time.Second), "u1", "u3", "yo")

	thread, err := f.service.ListThread(context.Background(), "u1", "u2")
	require.NoError(t, err)
	require.Len(t, thread, 2)
	require.Equal(t, "hi", thread[0].Content)
	require.Equal(t, "hey", thread[1].Content)
}
