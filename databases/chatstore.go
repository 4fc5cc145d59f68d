package databases

// go generate: mockery --name ChatStore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/connecmaq/marketplace-api/chat"
	"github.com/connecmaq/marketplace-api/models"
)

// ChatStore is the mongo backed membership store used by the chat socket and the chat
// REST handlers
type ChatStore interface {
	chat.Store
	// CreateRoom creates a room for the given users, duplicates removed
	CreateRoom(ctx context.Context, participants []int64) (*models.ChatRoom, error)
	// MarkRoomRead marks every unread message in the room not written by readerID
	MarkRoomRead(ctx context.Context, roomID, readerID int64) (int64, error)
}

type chatStore struct {
	rooms    ChatRoomDatabase
	messages MessageDatabase
	users    UserDatabase
	counters CounterDatabase
	now      func() time.Time
}

// NewChatStore initializes a new chat store on top of the provided db connection
func NewChatStore(db DatabaseHelper) ChatStore {
	return &chatStore{
		rooms:    NewChatRoomDatabase(db),
		messages: NewMessageDatabase(db),
		users:    NewUserDatabase(db),
		counters: NewCounterDatabase(db),
		now:      time.Now,
	}
}

// timestamps are stored with millisecond precision, so round before handing them out
func (c *chatStore) timestamp() time.Time {
	return c.now().UTC().Truncate(time.Millisecond)
}

func (c *chatStore) IsParticipant(ctx context.Context, roomID, userID int64) (bool, error) {
	count, err := c.rooms.CountDocuments(ctx, bson.M{"_id": roomID, "participants": userID})
	if err != nil {
		return false, fmt.Errorf("failed to check participant %d of room %d: %w", userID, roomID, err)
	}
	return count > 0, nil
}

func (c *chatStore) CreateMessage(ctx context.Context, roomID, authorID int64, text string) (*models.Message, error) {
	room, err := c.rooms.FindOne(ctx, bson.M{"_id": roomID})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, chat.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chat room %d: %w", roomID, err)
	}

	authors, err := c.users.CountDocuments(ctx, bson.M{"_id": authorID})
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", authorID, err)
	}
	if authors == 0 {
		return nil, chat.ErrUserNotFound
	}
	if !room.HasParticipant(authorID) {
		return nil, chat.ErrNotParticipant
	}

	id, err := c.counters.Next(ctx, messageName)
	if err != nil {
		return nil, err
	}

	msg := models.Message{
		ID:        id,
		RoomID:    roomID,
		AuthorID:  authorID,
		Content:   text,
		Timestamp: c.timestamp(),
		Read:      false,
	}
	if _, err := c.messages.InsertOne(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}

	_, err = c.rooms.UpdateOne(ctx, bson.M{"_id": roomID}, bson.M{"$set": bson.M{"updatedAt": msg.Timestamp}})
	if err != nil {
		// the message is stored, a stale activity time only affects room ordering
		zap.S().Warnw("failed to update chat room activity", "roomID", roomID, "error", err)
	}
	return &msg, nil
}

func (c *chatStore) FindMessage(ctx context.Context, messageID int64) (*models.Message, error) {
	msg, err := c.messages.FindOne(ctx, bson.M{"_id": messageID})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, chat.ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message %d: %w", messageID, err)
	}
	return msg, nil
}

func (c *chatStore) MarkRead(ctx context.Context, messageID, readerID int64) (bool, error) {
	res, err := c.messages.UpdateOne(ctx,
		bson.M{"_id": messageID, "author": bson.M{"$ne": readerID}, "read": false},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark message %d read: %w", messageID, err)
	}
	return res.ModifiedCount > 0, nil
}

func (c *chatStore) MarkRoomRead(ctx context.Context, roomID, readerID int64) (int64, error) {
	res, err := c.messages.UpdateMany(ctx,
		bson.M{"room": roomID, "author": bson.M{"$ne": readerID}, "read": false},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark room %d read: %w", roomID, err)
	}
	return res.ModifiedCount, nil
}

func (c *chatStore) FindOrCreateRoom(ctx context.Context, userA, userB int64) (*models.ChatRoom, error) {
	if userA == userB {
		return nil, chat.ErrInvalidParticipants
	}

	room, err := c.rooms.FindOne(ctx, bson.M{"participants": bson.M{"$all": []int64{userA, userB}, "$size": 2}})
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to find chat room for %d and %d: %w", userA, userB, err)
	}

	return c.CreateRoom(ctx, []int64{userA, userB})
}

func (c *chatStore) CreateRoom(ctx context.Context, participants []int64) (*models.ChatRoom, error) {
	ids := uniqueIDs(participants)
	if len(ids) < 2 {
		return nil, chat.ErrInvalidParticipants
	}

	found, err := c.users.CountDocuments(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	if found != int64(len(ids)) {
		return nil, chat.ErrUserNotFound
	}

	id, err := c.counters.Next(ctx, chatRoomName)
	if err != nil {
		return nil, err
	}

	now := c.timestamp()
	room := models.ChatRoom{
		ID:           id,
		Participants: ids,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := c.rooms.InsertOne(ctx, room); err != nil {
		return nil, fmt.Errorf("failed to insert chat room: %w", err)
	}
	return &room, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
