package models

import "time"

// Message holds the structure for the messages collection in mongo
type Message struct {
	ID        int64     `json:"id" bson:"_id"`
	RoomID    int64     `json:"room" bson:"room"`
	AuthorID  int64     `json:"authorId" bson:"author"`
	Content   string    `json:"content" bson:"content"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
	Read      bool      `json:"read" bson:"read"`
}

// CreateMessageRequest is the payload for posting a message without a socket
type CreateMessageRequest struct {
	RoomID  int64  `json:"room" validate:"required,gt=0"`
	Content string `json:"content" validate:"required"`
}
