package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/anonto42/nano-chat/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MessageRepository stores one kind of message (group or direct). ScopeID is
// the channel id for group messages and the conversation id for direct ones.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg *models.Message) error
	GetMessageByID(ctx context.Context, id string) (*models.Message, error)
	UpdateMessage(ctx context.Context, msg *models.Message) error
	MarkHasReply(ctx context.Context, id string) error
	ListByScope(ctx context.Context, scopeID uint, skip, limit int64) ([]models.Message, error)
	CountByScope(ctx context.Context, scopeID uint) (int64, error)
	DeleteByScope(ctx context.Context, scopeID uint) error
}

// MongoMessageRepository implements MessageRepository for MongoDB
type MongoMessageRepository struct {
	collection *mongo.Collection
}

// NewMongoMessageRepository creates a repository over the named collection
// ("group_messages" or "direct_messages").
func NewMongoMessageRepository(db *mongo.Database, collection string) *MongoMessageRepository {
	return &MongoMessageRepository{collection: db.Collection(collection)}
}

// EnsureIndexes creates the (scope_id, created_at) index used by pagination.
func (r *MongoMessageRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "scope_id", Value: 1}, {Key: "created_at", Value: 1}},
	})
	return err
}

func (r *MongoMessageRepository) CreateMessage(ctx context.Context, msg *models.Message) error {
	msg.ID = primitive.NewObjectID()
	msg.CreatedAt = time.Now()
	msg.UpdatedAt = msg.CreatedAt
	_, err := r.collection.InsertOne(ctx, msg)
	return translate(err)
}

func (r *MongoMessageRepository) GetMessageByID(ctx context.Context, id string) (*models.Message, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	var msg models.Message
	if err := r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&msg); err != nil {
		return nil, translate(err)
	}
	return &msg, nil
}

// UpdateMessage writes content, media and the edit/delete markers.
func (r *MongoMessageRepository) UpdateMessage(ctx context.Context, msg *models.Message) error {
	msg.UpdatedAt = time.Now()
	update := bson.M{
		"$set": bson.M{
			"content":    msg.Content,
			"image_url":  msg.ImageURL,
			"file_url":   msg.FileURL,
			"is_edited":  msg.IsEdited,
			"edited_by":  msg.EditedBy,
			"is_deleted": msg.IsDeleted,
			"deleted_by": msg.DeletedBy,
			"updated_at": msg.UpdatedAt,
		},
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": msg.ID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoMessageRepository) MarkHasReply(ctx context.Context, id string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid message ID format: %w", err)
	}
	_, err = r.collection.UpdateOne(ctx, bson.M{"_id": objID}, bson.M{"$set": bson.M{"has_reply": true}})
	return err
}

// ListByScope returns a page of the scope ordered oldest first.
func (r *MongoMessageRepository) ListByScope(ctx context.Context, scopeID uint, skip, limit int64) ([]models.Message, error) {
	messages := []models.Message{}
	findOptions := options.Find().
		SetSkip(skip).
		SetLimit(limit).
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"scope_id": scopeID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *MongoMessageRepository) CountByScope(ctx context.Context, scopeID uint) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"scope_id": scopeID})
}

func (r *MongoMessageRepository) DeleteByScope(ctx context.Context, scopeID uint) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"scope_id": scopeID})
	return err
}
