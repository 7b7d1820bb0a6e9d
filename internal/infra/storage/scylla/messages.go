package scylla

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gocql/gocql"

	domainmessage "tradepost/internal/domain/message"
)

const sequenceName = "messages"

// allocation retries before giving up on a contended sequence row.
const maxSequenceAttempts = 10

// MessageStore wraps Scylla queries for the direct-message log. Each message
// lives in the base table keyed by id and in one partition per participant so
// thread listings never scan the whole log.
type MessageStore struct {
	session *gocql.Session
	logger  *slog.Logger
}

// NewMessageStore builds a MessageStore.
func NewMessageStore(session *gocql.Session, logger *slog.Logger) *MessageStore {
	return &MessageStore{session: session, logger: logger}
}

func (s *MessageStore) ByID(ctx context.Context, id domainmessage.ID) (*domainmessage.Message, error) {
	if s.session == nil {
		return nil, errors.New("scylla session not initialized")
	}
	var row domainmessage.Message
	err := s.session.
		Query(`SELECT id, sender_id, receiver_id, content, is_read, created_at FROM messages WHERE id = ? LIMIT 1`, int64(id)).
		WithContext(ctx).
		Consistency(gocql.One).
		Scan(&row.ID, &row.SenderID, &row.ReceiverID, &row.Content, &row.IsRead, &row.CreatedAt)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, domainmessage.ErrNotFound
		}
		return nil, err
	}
	row.CreatedAt = row.CreatedAt.UTC()
	return &row, nil
}

func (s *MessageStore) ListForUser(ctx context.Context, userID string) ([]domainmessage.Message, error) {
	if s.session == nil {
		return nil, errors.New("scylla session not initialized")
	}
	iter := s.session.
		Query(`SELECT id, sender_id, receiver_id, content, is_read, created_at FROM messages_by_user WHERE user_id = ?`, userID).
		WithContext(ctx).
		Consistency(gocql.One).
		Iter()
	return drainMessages(iter)
}

func (s *MessageStore) ListBetween(ctx context.Context, userA, userB string) ([]domainmessage.Message, error) {
	all, err := s.ListForUser(ctx, userA)
	if err != nil {
		return nil, err
	}
	between := make([]domainmessage.Message, 0, len(all))
	for _, msg := range all {
		if (msg.SenderID == userA && msg.ReceiverID == userB) ||
			(msg.SenderID == userB && msg.ReceiverID == userA) {
			between = append(between, msg)
		}
	}
	return between, nil
}

func (s *MessageStore) Create(ctx context.Context, draft domainmessage.Draft) (*domainmessage.Message, error) {
	if s.session == nil {
		return nil, errors.New("scylla session not initialized")
	}
	id, err := s.nextID(ctx)
	if err != nil {
		return nil, fmt.Errorf("allocate message id: %w", err)
	}
	msg := &domainmessage.Message{
		ID:         domainmessage.ID(id),
		SenderID:   draft.SenderID,
		ReceiverID: draft.ReceiverID,
		Content:    draft.Content,
		IsRead:     false,
		CreatedAt:  time.Now().UTC().Truncate(time.Millisecond),
	}
	if err := s.session.
		Query(`INSERT INTO messages (id, sender_id, receiver_id, content, is_read, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			id, msg.SenderID, msg.ReceiverID, msg.Content, msg.IsRead, msg.CreatedAt).
		WithContext(ctx).
		Consistency(gocql.Quorum).
		Exec(); err != nil {
		return nil, err
	}
	for _, participant := range []string{msg.SenderID, msg.ReceiverID} {
		if err := s.session.
			Query(`INSERT INTO messages_by_user (user_id, created_at, id, sender_id, receiver_id, content, is_read) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				participant, msg.CreatedAt, id, msg.SenderID, msg.ReceiverID, msg.Content, msg.IsRead).
			WithContext(ctx).
			Consistency(gocql.Quorum).
			Exec(); err != nil {
			return nil, fmt.Errorf("index message for %s: %w", participant, err)
		}
	}
	return msg, nil
}

func (s *MessageStore) MarkRead(ctx context.Context, id domainmessage.ID) (*domainmessage.Message, error) {
	current, err := s.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.IsRead {
		return current, nil
	}
	if err := s.session.
		Query(`UPDATE messages SET is_read = true WHERE id = ?`, int64(id)).
		WithContext(ctx).
		Consistency(gocql.Quorum).
		Exec(); err != nil {
		return nil, err
	}
	for _, participant := range []string{current.SenderID, current.ReceiverID} {
		if err := s.session.
			Query(`UPDATE messages_by_user SET is_read = true WHERE user_id = ? AND created_at = ? AND id = ?`,
				participant, current.CreatedAt, int64(id)).
			WithContext(ctx).
			Consistency(gocql.Quorum).
			Exec(); err != nil && s.logger != nil {
			s.logger.Warn("failed to update read flag in user partition", "error", err, "user_id", participant, "message_id", id)
		}
	}
	current.IsRead = true
	return current, nil
}

func (s *MessageStore) CountUnread(ctx context.Context, userID string) (int64, error) {
	if s.session == nil {
		return 0, errors.New("scylla session not initialized")
	}
	var count int64
	err := s.session.
		Query(`SELECT COUNT(*) FROM messages_by_user WHERE user_id = ? AND receiver_id = ? AND is_read = false ALLOW FILTERING`,
			userID, userID).
		WithContext(ctx).
		Consistency(gocql.One).
		Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// nextID bumps the shared sequence with a lightweight transaction, retrying
// on contention so ids stay strictly increasing across instances.
func (s *MessageStore) nextID(ctx context.Context) (int64, error) {
	for attempt := 0; attempt < maxSequenceAttempts; attempt++ {
		var current int64
		err := s.session.
			Query(`SELECT value FROM message_seq WHERE name = ?`, sequenceName).
			WithContext(ctx).
			Consistency(gocql.Quorum).
			Scan(&current)
		if errors.Is(err, gocql.ErrNotFound) {
			applied, err := s.session.
				Query(`INSERT INTO message_seq (name, value) VALUES (?, 1) IF NOT EXISTS`, sequenceName).
				WithContext(ctx).
				MapScanCAS(map[string]interface{}{})
			if err != nil {
				return 0, err
			}
			if applied {
				return 1, nil
			}
			continue
		}
		if err != nil {
			return 0, err
		}
		next := current + 1
		applied, err := s.session.
			Query(`UPDATE message_seq SET value = ? WHERE name = ? IF value = ?`, next, sequenceName, current).
			WithContext(ctx).
			MapScanCAS(map[string]interface{}{})
		if err != nil {
			return 0, err
		}
		if applied {
			return next, nil
		}
	}
	return 0, errors.New("scylla: message id sequence contention")
}

func drainMessages(iter *gocql.Iter) ([]domainmessage.Message, error) {
	messages := make([]domainmessage.Message, 0)
	var row domainmessage.Message
	for iter.Scan(&row.ID, &row.SenderID, &row.ReceiverID, &row.Content, &row.IsRead, &row.CreatedAt) {
		row.CreatedAt = row.CreatedAt.UTC()
		messages = append(messages, row)
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return messages, nil
}

var _ domainmessage.Store = (*MessageStore)(nil)
