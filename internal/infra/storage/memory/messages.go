package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	domainmessage "tradepost/internal/domain/message"
)

// MessageStore keeps the message log in memory. Used by tests and dev mode.
type MessageStore struct {
	mu     sync.RWMutex
	items  map[domainmessage.ID]*domainmessage.Message
	nextID domainmessage.ID
	now    func() time.Time
}

// NewMessageStore builds an empty store.
func NewMessageStore() *MessageStore {
	return &MessageStore{
		items:  make(map[domainmessage.ID]*domainmessage.Message),
		nextID: 1,
		now:    time.Now,
	}
}

// WithClock overrides the creation clock. Test hook.
func (s *MessageStore) WithClock(now func() time.Time) *MessageStore {
	s.now = now
	return s
}

func (s *MessageStore) ByID(ctx context.Context, id domainmessage.ID) (*domainmessage.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.items[id]
	if !ok {
		return nil, domainmessage.ErrNotFound
	}
	return cloneMessage(msg), nil
}

func (s *MessageStore) ListForUser(ctx context.Context, userID string) ([]domainmessage.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(ctx, func(m *domainmessage.Message) bool {
		return m.SenderID == userID || m.ReceiverID == userID
	})
}

func (s *MessageStore) ListBetween(ctx context.Context, userA, userB string) ([]domainmessage.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(ctx, func(m *domainmessage.Message) bool {
		return (m.SenderID == userA && m.ReceiverID == userB) ||
			(m.SenderID == userB && m.ReceiverID == userA)
	})
}

func (s *MessageStore) Create(ctx context.Context, draft domainmessage.Draft) (*domainmessage.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := &domainmessage.Message{
		ID:         s.nextID,
		SenderID:   draft.SenderID,
		ReceiverID: draft.ReceiverID,
		Content:    draft.Content,
		IsRead:     false,
		CreatedAt:  s.now().UTC(),
	}
	s.items[msg.ID] = msg
	s.nextID++
	return cloneMessage(msg), nil
}

func (s *MessageStore) MarkRead(ctx context.Context, id domainmessage.ID) (*domainmessage.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.items[id]
	if !ok {
		return nil, domainmessage.ErrNotFound
	}
	msg.IsRead = true
	return cloneMessage(msg), nil
}

func (s *MessageStore) CountUnread(ctx context.Context, userID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, msg := range s.items {
		if msg.ReceiverID == userID && !msg.IsRead {
			count++
		}
	}
	return count, nil
}

func (s *MessageStore) collect(ctx context.Context, match func(*domainmessage.Message) bool) ([]domainmessage.Message, error) {
	result := make([]domainmessage.Message, 0)
	for _, msg := range s.items {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if match(msg) {
			result = append(result, *msg)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Before(result[j])
	})
	return result, nil
}

func cloneMessage(m *domainmessage.Message) *domainmessage.Message {
	if m == nil {
		return nil
	}
	copied := *m
	return &copied
}

var _ domainmessage.Store = (*MessageStore)(nil)
