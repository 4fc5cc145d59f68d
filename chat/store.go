package chat

// go generate: mockery --name Store

import (
	"context"
	"errors"

	"github.com/connecmaq/marketplace-api/models"
)

var (
	// ErrRoomNotFound is returned when a room id does not resolve to a room
	ErrRoomNotFound = errors.New("chat room not found")
	// ErrUserNotFound is returned when a user id does not resolve to a user
	ErrUserNotFound = errors.New("user not found")
	// ErrMessageNotFound is returned when a message id does not resolve to a message
	ErrMessageNotFound = errors.New("message not found")
	// ErrNotParticipant is returned when a user writes to a room they do not belong to
	ErrNotParticipant = errors.New("user is not a participant of the chat room")
	// ErrInvalidParticipants is returned when a room would not have two distinct members
	ErrInvalidParticipants = errors.New("a chat room needs at least two distinct participants")
)

// Store is the durable membership and message log the connection handler relies on.
// Implementations are expected to make single-document writes atomic.
type Store interface {
	// IsParticipant reports whether userID is in the participant set of roomID. An
	// unknown room is not an error, it simply has no participants.
	IsParticipant(ctx context.Context, roomID, userID int64) (bool, error)

	// CreateMessage persists an unread message authored by authorID and bumps the
	// room's last-activity time.
	CreateMessage(ctx context.Context, roomID, authorID int64, text string) (*models.Message, error)

	// FindMessage returns ErrMessageNotFound for unknown ids.
	FindMessage(ctx context.Context, messageID int64) (*models.Message, error)

	// MarkRead flips the read flag on behalf of readerID and reports whether anything
	// changed. The author, an unknown id, or an already read message all yield false.
	MarkRead(ctx context.Context, messageID, readerID int64) (bool, error)

	// FindOrCreateRoom returns the room whose participants are exactly {userA, userB},
	// creating it when none exists.
	FindOrCreateRoom(ctx context.Context, userA, userB int64) (*models.ChatRoom, error)
}
