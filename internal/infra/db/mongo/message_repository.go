package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainmessage "tradepost/internal/domain/message"
)

const messageSequence = "messages"

// MessageRepository persists the direct-message log in Mongo. Message ids
// come from a counters collection so they stay strictly increasing across
// application instances.
type MessageRepository struct {
	col      *mongo.Collection
	counters *mongo.Collection
}

func NewMessageRepository(db *mongo.Database) *MessageRepository {
	repo := &MessageRepository{
		col:      db.Collection("messages"),
		counters: db.Collection("counters"),
	}
	repo.ensureIndexes()
	return repo
}

func (r *MessageRepository) ensureIndexes() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, _ = r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "sender_id", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "receiver_id", Value: 1}, {Key: "is_read", Value: 1}}},
	})
}

func (r *MessageRepository) ByID(ctx context.Context, id domainmessage.ID) (*domainmessage.Message, error) {
	var doc messageDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": int64(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainmessage.ErrNotFound
		}
		return nil, err
	}
	msg := doc.toDomain()
	return &msg, nil
}

func (r *MessageRepository) ListForUser(ctx context.Context, userID string) ([]domainmessage.Message, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"sender_id": userID},
		bson.M{"receiver_id": userID},
	}}
	return r.list(ctx, filter)
}

func (r *MessageRepository) ListBetween(ctx context.Context, userA, userB string) ([]domainmessage.Message, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"sender_id": userA, "receiver_id": userB},
		bson.M{"sender_id": userB, "receiver_id": userA},
	}}
	return r.list(ctx, filter)
}

func (r *MessageRepository) list(ctx context.Context, filter bson.M) ([]domainmessage.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	messages := make([]domainmessage.Message, 0)
	for cur.Next(ctx) {
		var doc messageDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		messages = append(messages, doc.toDomain())
	}
	return messages, cur.Err()
}

func (r *MessageRepository) Create(ctx context.Context, draft domainmessage.Draft) (*domainmessage.Message, error) {
	id, err := r.nextID(ctx)
	if err != nil {
		return nil, fmt.Errorf("allocate message id: %w", err)
	}
	doc := messageDocument{
		ID:         id,
		SenderID:   draft.SenderID,
		ReceiverID: draft.ReceiverID,
		Content:    draft.Content,
		IsRead:     false,
		CreatedAt:  time.Now().UTC().UnixMilli(),
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return nil, err
	}
	msg := doc.toDomain()
	return &msg, nil
}

func (r *MessageRepository) MarkRead(ctx context.Context, id domainmessage.ID) (*domainmessage.Message, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc messageDocument
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"_id": int64(id)},
		bson.M{"$set": bson.M{"is_read": true}},
		opts,
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainmessage.ErrNotFound
		}
		return nil, err
	}
	msg := doc.toDomain()
	return &msg, nil
}

func (r *MessageRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{"receiver_id": userID, "is_read": false})
}

func (r *MessageRepository) nextID(ctx context.Context) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)
	var counter struct {
		Value int64 `bson:"value"`
	}
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": messageSequence},
		bson.M{"$inc": bson.M{"value": int64(1)}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, err
	}
	return counter.Value, nil
}

type messageDocument struct {
	ID         int64  `bson:"_id"`
	SenderID   string `bson:"sender_id"`
	ReceiverID string `bson:"receiver_id"`
	Content    string `bson:"content"`
	IsRead     bool   `bson:"is_read"`
	CreatedAt  int64  `bson:"created_at"`
}

func (d messageDocument) toDomain() domainmessage.Message {
	return domainmessage.Message{
		ID:         domainmessage.ID(d.ID),
		SenderID:   d.SenderID,
		ReceiverID: d.ReceiverID,
		Content:    d.Content,
		IsRead:     d.IsRead,
		CreatedAt:  time.UnixMilli(d.CreatedAt).UTC(),
	}
}

var _ domainmessage.Store = (*MessageRepository)(nil)
