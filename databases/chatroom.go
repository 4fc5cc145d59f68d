package databases

// go generate: mockery --name ChatRoomDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/connecmaq/marketplace-api/models"
)

const chatRoomName = "chatrooms"

// ChatRoomDatabase contains the methods to use with the chat room database
type ChatRoomDatabase interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.ChatRoom, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.ChatRoom, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
	InsertOne(ctx context.Context, room models.ChatRoom) (InsertOneResultHelper, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

type chatRoomDatabase struct {
	db DatabaseHelper
}

// NewChatRoomDatabase initializes a new instance of chat room database with the provided db connection
func NewChatRoomDatabase(db DatabaseHelper) ChatRoomDatabase {
	return &chatRoomDatabase{
		db: db,
	}
}

func (c *chatRoomDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.ChatRoom, error) {
	room := &models.ChatRoom{}
	err := c.db.Collection(chatRoomName).FindOne(ctx, filter, opts...).Decode(&room)
	if err != nil {
		return nil, err
	}
	return room, nil
}

func (c *chatRoomDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.ChatRoom, error) {
	var rooms []models.ChatRoom
	cur, err := c.db.Collection(chatRoomName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	err = cur.All(ctx, &rooms)
	if err != nil {
		return nil, err
	}
	return rooms, nil
}

func (c *chatRoomDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return c.db.Collection(chatRoomName).CountDocuments(ctx, filter, opts...)
}

func (c *chatRoomDatabase) InsertOne(ctx context.Context, room models.ChatRoom) (InsertOneResultHelper, error) {
	return c.db.Collection(chatRoomName).InsertOne(ctx, room)
}

func (c *chatRoomDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return c.db.Collection(chatRoomName).UpdateOne(ctx, filter, update, opts...)
}
