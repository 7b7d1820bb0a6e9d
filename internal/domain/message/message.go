package message

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrValidation is the root of all input validation failures.
	ErrValidation = errors.New("message: validation failed")
	// ErrSelfMessage rejects messages a user addresses to themselves.
	ErrSelfMessage = fmt.Errorf("%w: sender and receiver are the same user", ErrValidation)
	// ErrEmptyContent rejects empty or whitespace-only payloads.
	ErrEmptyContent = fmt.Errorf("%w: content is empty", ErrValidation)
	// ErrSenderRequired rejects drafts without a sender.
	ErrSenderRequired = fmt.Errorf("%w: sender id is required", ErrValidation)
	// ErrReceiverRequired rejects drafts without a receiver.
	ErrReceiverRequired = fmt.Errorf("%w: receiver id is required", ErrValidation)
	// ErrNotFound is returned when a message id does not exist.
	ErrNotFound = errors.New("message: not found")
)

// ID is assigned by the store, strictly increasing per store instance.
type ID int64

// Message is a single point-to-point record. The log is append-only except for
// the IsRead flag, which transitions false -> true exactly once.
type Message struct {
	ID         ID
	SenderID   string
	ReceiverID string
	Content    string
	IsRead     bool
	CreatedAt  time.Time
}

// Before reports whether m precedes other in thread order. CreatedAt is the
// ordering key; identical timestamps fall back to the store-assigned id.
func (m Message) Before(other Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID < other.ID
}

// Draft is a validated, not-yet-persisted message.
type Draft struct {
	SenderID   string
	ReceiverID string
	Content    string
}

// NewDraft validates sender, receiver and content before anything touches the store.
func NewDraft(senderID, receiverID, content string) (Draft, error) {
	senderID = strings.TrimSpace(senderID)
	receiverID = strings.TrimSpace(receiverID)
	if senderID == "" {
		return Draft{}, ErrSenderRequired
	}
	if receiverID == "" {
		return Draft{}, ErrReceiverRequired
	}
	if senderID == receiverID {
		return Draft{}, ErrSelfMessage
	}
	if strings.TrimSpace(content) == "" {
		return Draft{}, ErrEmptyContent
	}
	return Draft{SenderID: senderID, ReceiverID: receiverID, Content: content}, nil
}

// Store is the durable message log. It knows nothing about conversations;
// those are derived read-side views over the records it returns.
type Store interface {
	// ByID returns the message or ErrNotFound.
	ByID(ctx context.Context, id ID) (*Message, error)
	// ListForUser returns every message the user sent or received,
	// ascending by (CreatedAt, ID).
	ListForUser(ctx context.Context, userID string) ([]Message, error)
	// ListBetween returns messages in either direction between the pair,
	// same ordering as ListForUser.
	ListBetween(ctx context.Context, userA, userB string) ([]Message, error)
	// Create persists the draft with IsRead=false, CreatedAt=now and the
	// next monotonic id, and returns the stored record.
	Create(ctx context.Context, draft Draft) (*Message, error)
	// MarkRead flips IsRead to true. Idempotent: marking an already-read
	// message succeeds and returns it unchanged. ErrNotFound if absent.
	MarkRead(ctx context.Context, id ID) (*Message, error)
	// CountUnread returns the number of messages addressed to the user
	// that are still unread.
	CountUnread(ctx context.Context, userID string) (int64, error)
}
