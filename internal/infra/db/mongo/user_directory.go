package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainuser "tradepost/internal/domain/user"
)

// UserDirectory reads public profile projections from the platform's users
// collection. The projection keeps credentials and private fields out of the
// messaging core entirely.
type UserDirectory struct {
	col *mongo.Collection
}

func NewUserDirectory(db *mongo.Database) *UserDirectory {
	return &UserDirectory{col: db.Collection("users")}
}

func (d *UserDirectory) PublicProfile(ctx context.Context, id string) (*domainuser.PublicProfile, error) {
	opts := options.FindOne().SetProjection(bson.M{"username": 1, "display_name": 1, "avatar_url": 1})
	var doc struct {
		ID          string `bson:"_id"`
		Username    string `bson:"username"`
		DisplayName string `bson:"display_name"`
		AvatarURL   string `bson:"avatar_url"`
	}
	if err := d.col.FindOne(ctx, bson.M{"_id": id}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainuser.ErrNotFound
		}
		return nil, err
	}
	return &domainuser.PublicProfile{
		ID:          doc.ID,
		Username:    doc.Username,
		DisplayName: doc.DisplayName,
		AvatarURL:   doc.AvatarURL,
	}, nil
}

var _ domainuser.Directory = (*UserDirectory)(nil)
