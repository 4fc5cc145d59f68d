package models

import "time"

// ChatRoom holds the structure for the chatrooms collection in mongo
type ChatRoom struct {
	ID           int64     `json:"id" bson:"_id"`
	Participants []int64   `json:"participants" bson:"participants"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt" bson:"updatedAt"`
}

// HasParticipant reports whether userID belongs to the room
func (c ChatRoom) HasParticipant(userID int64) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// ChatRoomSummary is a room as listed for one user
type ChatRoomSummary struct {
	ChatRoom
	LastMessage *Message `json:"lastMessage"`
	UnreadCount int64    `json:"unreadCount"`
}

// ChatRoomDetail is a room with its participants and full message history
type ChatRoomDetail struct {
	ID           int64     `json:"id"`
	Participants []User    `json:"participants"`
	Messages     []Message `json:"messages"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// CreateChatRoomRequest is the payload for creating a room with an explicit participant list
type CreateChatRoomRequest struct {
	ParticipantIDs []int64 `json:"participantIds" validate:"dive,gt=0"`
}

// FindOrCreateChatRoomRequest is the payload for opening a two-party room
type FindOrCreateChatRoomRequest struct {
	OtherUserID int64 `json:"otherUserId" validate:"required,gt=0"`
}

// MarkRoomReadRequest is the payload for marking a whole room as read
type MarkRoomReadRequest struct {
	RoomID int64 `json:"roomId" validate:"required,gt=0"`
}
