package dto

import (
	"time"

	"tradepost/internal/app/messaging"
	domainmessage "tradepost/internal/domain/message"
	domainuser "tradepost/internal/domain/user"
)

// Message is the wire shape of a single direct message.
type Message struct {
	ID         int64     `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	IsRead     bool      `json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`
}

// Participant is the public projection of a conversation counterpart.
type Participant struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	IsOnline    bool   `json:"is_online"`
}

// Conversation is one row of the conversation list.
type Conversation struct {
	Participant Participant `json:"participant"`
	LastMessage Message     `json:"last_message"`
	UnreadCount int         `json:"unread_count"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// ConversationList wraps the ordered collection.
type ConversationList struct {
	Items []Conversation `json:"items"`
}

// MessageList wraps an ordered thread.
type MessageList struct {
	Items []Message `json:"items"`
}

// UnreadCount carries the scalar unread total.
type UnreadCount struct {
	Count int64 `json:"count"`
}

func MapMessage(msg *domainmessage.Message) Message {
	if msg == nil {
		return Message{}
	}
	return Message{
		ID:         int64(msg.ID),
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		Content:    msg.Content,
		IsRead:     msg.IsRead,
		CreatedAt:  msg.CreatedAt,
	}
}

func MapMessageList(messages []domainmessage.Message) MessageList {
	list := MessageList{Items: make([]Message, 0, len(messages))}
	for i := range messages {
		list.Items = append(list.Items, MapMessage(&messages[i]))
	}
	return list
}

func MapParticipant(profile domainuser.PublicProfile, online bool) Participant {
	return Participant{
		ID:          profile.ID,
		Username:    profile.Username,
		DisplayName: profile.DisplayName,
		AvatarURL:   profile.AvatarURL,
		IsOnline:    online,
	}
}

func MapConversation(conv messaging.Conversation) Conversation {
	last := conv.LastMessage
	return Conversation{
		Participant: MapParticipant(conv.Counterpart, conv.IsOnline),
		LastMessage: MapMessage(&last),
		UnreadCount: conv.UnreadCount,
		UpdatedAt:   conv.UpdatedAt,
	}
}

func MapConversationList(conversations []messaging.Conversation) ConversationList {
	list := ConversationList{Items: make([]Conversation, 0, len(conversations))}
	for _, conv := range conversations {
		list.Items = append(list.Items, MapConversation(conv))
	}
	return list
}
