// Package messaging is the direct-message core: it owns the write path for
// messages and the read-side projections (conversation list, unread counts)
// the API and UI layers consume.
package messaging

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	domainmessage "tradepost/internal/domain/message"
	domainuser "tradepost/internal/domain/user"
)

// ErrNotReceiver rejects a mark-read attempt by anyone but the addressee.
var ErrNotReceiver = errors.New("messaging: only the receiver can mark a message read")

// Presence answers whether a user currently has a live connection.
// Supplied by the platform's realtime tier; nil means nobody is online.
type Presence interface {
	IsOnline(ctx context.Context, userID string) bool
}

// Events receives message lifecycle notifications. Publication is best
// effort: a failure is logged by the service and never fails the operation.
type Events interface {
	MessageCreated(ctx context.Context, msg domainmessage.Message) error
	MessageRead(ctx context.Context, msg domainmessage.Message) error
}

// Conversation is a derived view for one viewer: everything exchanged with a
// single counterpart, collapsed to what the conversation list renders.
// It is never persisted and is recomputed from the store on every call.
type Conversation struct {
	Counterpart domainuser.PublicProfile
	LastMessage domainmessage.Message
	UnreadCount int
	UpdatedAt   time.Time
	IsOnline    bool
}

// Service is the synchronous read/write layer over the message store.
// It holds no mutable state of its own and is safe for concurrent use.
type Service struct {
	store     domainmessage.Store
	directory domainuser.Directory
	presence  Presence
	events    Events
	logger    *slog.Logger
}

// NewService wires the core. presence and events may be nil.
func NewService(store domainmessage.Store, directory domainuser.Directory, presence Presence, events Events, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		directory: directory,
		presence:  presence,
		events:    events,
		logger:    logger,
	}
}

// SendMessage validates and persists a new message from sender to receiver.
func (s *Service) SendMessage(ctx context.Context, senderID, receiverID, content string) (*domainmessage.Message, error) {
	draft, err := domainmessage.NewDraft(senderID, receiverID, content)
	if err != nil {
		return nil, err
	}
	msg, err := s.store.Create(ctx, draft)
	if err != nil {
		return nil, err
	}
	if s.events != nil {
		if err := s.events.MessageCreated(ctx, *msg); err != nil {
			s.logger.Warn("message.created publish failed", "error", err, "message_id", msg.ID)
		}
	}
	return msg, nil
}

// MarkMessageRead flips the read flag of a single message. Only the
// receiver may do so; repeating the call is a no-op success.
func (s *Service) MarkMessageRead(ctx context.Context, id domainmessage.ID, readerID string) (*domainmessage.Message, error) {
	current, err := s.store.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.ReceiverID != readerID {
		return nil, ErrNotReceiver
	}
	if current.IsRead {
		return current, nil
	}
	msg, err := s.store.MarkRead(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.events != nil {
		if err := s.events.MessageRead(ctx, *msg); err != nil {
			s.logger.Warn("message.read publish failed", "error", err, "message_id", msg.ID)
		}
	}
	return msg, nil
}

// GetConversations builds the viewer's conversation list: one entry per
// distinct counterpart, most recent activity first. The store is hit exactly
// once; grouping happens in memory over that single fetch. Counterparts the
// directory cannot resolve are dropped from the result, not surfaced as
// broken rows.
func (s *Service) GetConversations(ctx context.Context, userID string) ([]Conversation, error) {
	messages, err := s.store.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	type group struct {
		last   domainmessage.Message
		unread int
	}
	groups := make(map[string]*group)
	for _, msg := range messages {
		counterpart := msg.SenderID
		if counterpart == userID {
			counterpart = msg.ReceiverID
		}
		g, ok := groups[counterpart]
		if !ok {
			g = &group{last: msg}
			groups[counterpart] = g
		} else if g.last.Before(msg) {
			g.last = msg
		}
		if msg.ReceiverID == userID && !msg.IsRead {
			g.unread++
		}
	}

	conversations := make([]Conversation, 0, len(groups))
	for counterpart, g := range groups {
		profile, err := s.directory.PublicProfile(ctx, counterpart)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			level := slog.LevelDebug
			if !errors.Is(err, domainuser.ErrNotFound) {
				level = slog.LevelWarn
			}
			s.logger.Log(ctx, level, "counterpart dropped from conversation list",
				"error", err, "counterpart_id", counterpart, "user_id", userID)
			continue
		}
		conversations = append(conversations, Conversation{
			Counterpart: *profile,
			LastMessage: g.last,
			UnreadCount: g.unread,
			UpdatedAt:   g.last.CreatedAt,
			IsOnline:    s.isOnline(ctx, counterpart),
		})
	}

	sort.Slice(conversations, func(i, j int) bool {
		return conversations[j].LastMessage.Before(conversations[i].LastMessage)
	})
	return conversations, nil
}

// GetUnreadCount returns the user's platform-wide unread total.
func (s *Service) GetUnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.store.CountUnread(ctx, userID)
}

// ListThread returns the full two-way thread between the viewer and another
// user, oldest first.
func (s *Service) ListThread(ctx context.Context, userID, otherID string) ([]domainmessage.Message, error) {
	return s.store.ListBetween(ctx, userID, otherID)
}

func (s *Service) isOnline(ctx context.Context, userID string) bool {
	if s.presence == nil {
		return false
	}
	return s.presence.IsOnline(ctx, userID)
}
