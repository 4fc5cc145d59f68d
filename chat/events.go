package chat

import (
	"encoding/json"
	"time"

	"github.com/connecmaq/marketplace-api/models"
)

// Event kinds understood on the wire
const (
	EventChatMessage = "chat_message"
	EventReadReceipt = "read_receipt"
)

// inboundEvent is the union of every client event. Pointer fields distinguish a
// missing field from a zero value.
type inboundEvent struct {
	Type      string  `json:"type"`
	Message   *string `json:"message"`
	MessageID *int64  `json:"message_id"`
}

// ChatMessageEvent is broadcast once a message has been persisted
type ChatMessageEvent struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	MessageID   int64  `json:"message_id"`
	AuthorID    int64  `json:"author_id"`
	AuthorEmail string `json:"author_email"`
	AuthorName  string `json:"author_name"`
	Timestamp   string `json:"timestamp"`
}

// ReadReceiptEvent is broadcast once a message has been marked read
type ReadReceiptEvent struct {
	Type      string `json:"type"`
	MessageID int64  `json:"message_id"`
	ReaderID  int64  `json:"reader_id"`
}

// NewChatMessageEvent builds the broadcast for a persisted message written by author
func NewChatMessageEvent(msg *models.Message, author models.User) ChatMessageEvent {
	return ChatMessageEvent{
		Type:        EventChatMessage,
		Message:     msg.Content,
		MessageID:   msg.ID,
		AuthorID:    author.ID,
		AuthorEmail: author.Details.Email,
		AuthorName:  author.DisplayName(),
		Timestamp:   msg.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

// NewReadReceiptEvent builds the broadcast for a message read by readerID
func NewReadReceiptEvent(messageID, readerID int64) ReadReceiptEvent {
	return ReadReceiptEvent{
		Type:      EventReadReceipt,
		MessageID: messageID,
		ReaderID:  readerID,
	}
}

func encode(event interface{}) ([]byte, error) {
	return json.Marshal(event)
}
