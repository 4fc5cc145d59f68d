package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/connecmaq/marketplace-api/api"
	"github.com/connecmaq/marketplace-api/chat"
	"github.com/connecmaq/marketplace-api/config"
	"github.com/connecmaq/marketplace-api/databases"
	"github.com/connecmaq/marketplace-api/models"
)

var (
	errRoomNotVisible    = errors.New("chat room does not exist or the user is not a participant")
	errMessageNotVisible = errors.New("message does not exist or the user is not a participant")
	errSelfChat          = errors.New("cannot open a chat room with yourself")
)

// Chat exists for dependency injection purposes
type Chat struct {
	Rooms    databases.ChatRoomDatabase
	Messages databases.MessageDatabase
	Users    databases.UserDatabase
	Store    databases.ChatStore
	Registry *chat.Registry
}

type markRoomReadResponse struct {
	RoomID  int64 `json:"roomId"`
	Updated int64 `json:"updated"`
}

func unreadFilter(roomID, readerID int64) bson.M {
	return bson.M{"room": roomID, "author": bson.M{"$ne": readerID}, "read": false}
}

// ChatRoomsHandler lists the rooms of the current user, most recent activity first
func (c Chat) ChatRoomsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	rooms, err := c.Rooms.Find(ctx, bson.M{"participants": user.ID},
		options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}, {Key: "_id", Value: -1}}))
	if err != nil {
		config.ErrorStatus("failed to get chat rooms", http.StatusInternalServerError, w, err)
		return
	}

	summaries := make([]models.ChatRoomSummary, 0, len(rooms))
	for _, room := range rooms {
		last, err := c.Messages.Find(ctx, bson.M{"room": room.ID},
			options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).SetLimit(1))
		if err != nil {
			config.ErrorStatus("failed to get last message", http.StatusInternalServerError, w, err)
			return
		}
		unread, err := c.Messages.CountDocuments(ctx, unreadFilter(room.ID, user.ID))
		if err != nil {
			config.ErrorStatus("failed to count unread messages", http.StatusInternalServerError, w, err)
			return
		}

		summary := models.ChatRoomSummary{ChatRoom: room, UnreadCount: unread}
		if len(last) > 0 {
			summary.LastMessage = &last[0]
		}
		summaries = append(summaries, summary)
	}

	writeJSON(w, http.StatusOK, summaries)
}

// CreateChatRoomHandler creates a room for the listed users and the current user
func (c Chat) CreateChatRoomHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.CreateChatRoomRequest
	if err := decodeBody(r, &req); err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	room, err := c.Store.CreateRoom(ctx, append(req.ParticipantIDs, user.ID))
	switch {
	case errors.Is(err, chat.ErrInvalidParticipants):
		config.ErrorStatus("a chat room needs another participant", http.StatusBadRequest, w, err)
		return
	case errors.Is(err, chat.ErrUserNotFound):
		config.ErrorStatus("participant not found", http.StatusNotFound, w, err)
		return
	case err != nil:
		config.ErrorStatus("failed to create chat room", http.StatusInternalServerError, w, err)
		return
	}

	c.writeRoomDetail(ctx, w, http.StatusCreated, room)
}

// FindOrCreateChatRoomHandler returns the two-party room between the current user and
// otherUserId, creating it when it does not exist yet
func (c Chat) FindOrCreateChatRoomHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.FindOrCreateChatRoomRequest
	if err := decodeBody(r, &req); err != nil {
		config.ErrorStatus("otherUserId is required", http.StatusBadRequest, w, err)
		return
	}
	if req.OtherUserID == user.ID {
		config.ErrorStatus("otherUserId must be another user", http.StatusBadRequest, w, errSelfChat)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	room, err := c.Store.FindOrCreateRoom(ctx, user.ID, req.OtherUserID)
	if errors.Is(err, chat.ErrUserNotFound) {
		config.ErrorStatus("user not found", http.StatusNotFound, w, err)
		return
	}
	if err != nil {
		config.ErrorStatus("failed to find or create chat room", http.StatusInternalServerError, w, err)
		return
	}

	c.writeRoomDetail(ctx, w, http.StatusOK, room)
}

// ChatRoomHandler returns a room with its participants and full history
func (c Chat) ChatRoomHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	roomID, err := pathID(r, "room_id")
	if err != nil {
		config.ErrorStatus("invalid chat room id", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	room, err := c.Rooms.FindOne(ctx, bson.M{"_id": roomID, "participants": user.ID})
	if errors.Is(err, mongo.ErrNoDocuments) {
		config.ErrorStatus("chat room not found", http.StatusNotFound, w, errRoomNotVisible)
		return
	}
	if err != nil {
		config.ErrorStatus("failed to get chat room", http.StatusInternalServerError, w, err)
		return
	}

	c.writeRoomDetail(ctx, w, http.StatusOK, room)
}

func (c Chat) writeRoomDetail(ctx context.Context, w http.ResponseWriter, status int, room *models.ChatRoom) {
	users, err := c.Users.Find(ctx, bson.M{"_id": bson.M{"$in": room.Participants}})
	if err != nil {
		config.ErrorStatus("failed to get participants", http.StatusInternalServerError, w, err)
		return
	}
	messages, err := c.Messages.Find(ctx, bson.M{"room": room.ID},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		config.ErrorStatus("failed to get messages", http.StatusInternalServerError, w, err)
		return
	}

	detail := models.ChatRoomDetail{
		ID:           room.ID,
		Participants: users,
		Messages:     messages,
		CreatedAt:    room.CreatedAt,
		UpdatedAt:    room.UpdatedAt,
	}
	if detail.Participants == nil {
		detail.Participants = []models.User{}
	}
	if detail.Messages == nil {
		detail.Messages = []models.Message{}
	}
	writeJSON(w, status, detail)
}

// MessagesHandler returns a page of history, oldest first. Without ?room= it covers every
// room of the current user.
func (c Chat) MessagesHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	var filter bson.M
	if raw := r.URL.Query().Get("room"); raw != "" {
		roomID, err := parseID(raw)
		if err != nil {
			config.ErrorStatus("invalid chat room id", http.StatusBadRequest, w, err)
			return
		}
		member, err := c.Store.IsParticipant(ctx, roomID, user.ID)
		if err != nil {
			config.ErrorStatus("failed to check chat room membership", http.StatusInternalServerError, w, err)
			return
		}
		if !member {
			config.ErrorStatus("chat room not found", http.StatusNotFound, w, errRoomNotVisible)
			return
		}
		filter = bson.M{"room": roomID}
	} else {
		rooms, err := c.Rooms.Find(ctx, bson.M{"participants": user.ID})
		if err != nil {
			config.ErrorStatus("failed to get chat rooms", http.StatusInternalServerError, w, err)
			return
		}
		ids := make([]int64, 0, len(rooms))
		for _, room := range rooms {
			ids = append(ids, room.ID)
		}
		filter = bson.M{"room": bson.M{"$in": ids}}
	}

	opts := databases.Paginate(pageParams(r)).
		SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}})
	messages, err := c.Messages.Find(ctx, filter, opts)
	if err != nil {
		config.ErrorStatus("failed to get messages", http.StatusInternalServerError, w, err)
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	writeJSON(w, http.StatusOK, messages)
}

// SendMessageHandler posts a message as the current user. The message is stored before
// it is broadcast to the room's live sessions.
func (c Chat) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.CreateMessageRequest
	if err := decodeBody(r, &req); err != nil {
		config.ErrorStatus("room and content are required", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	msg, err := c.Store.CreateMessage(ctx, req.RoomID, user.ID, req.Content)
	if errors.Is(err, chat.ErrRoomNotFound) || errors.Is(err, chat.ErrNotParticipant) {
		config.ErrorStatus("chat room not found", http.StatusNotFound, w, errRoomNotVisible)
		return
	}
	if err != nil {
		config.ErrorStatus("failed to create message", http.StatusInternalServerError, w, err)
		return
	}

	if _, err := c.Registry.Publish(msg.RoomID, chat.NewChatMessageEvent(msg, user)); err != nil {
		zap.S().Errorw("failed to broadcast chat message", "roomID", msg.RoomID, "messageID", msg.ID, "error", err)
	}

	writeJSON(w, http.StatusCreated, msg)
}

// MarkReadHandler marks a message as read by the current user and tells the room's live
// sessions about it. Authors marking their own message get it back unchanged.
func (c Chat) MarkReadHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	messageID, err := pathID(r, "message_id")
	if err != nil {
		config.ErrorStatus("invalid message id", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	msg, err := c.Store.FindMessage(ctx, messageID)
	if errors.Is(err, chat.ErrMessageNotFound) {
		config.ErrorStatus("message not found", http.StatusNotFound, w, errMessageNotVisible)
		return
	}
	if err != nil {
		config.ErrorStatus("failed to get message", http.StatusInternalServerError, w, err)
		return
	}

	member, err := c.Store.IsParticipant(ctx, msg.RoomID, user.ID)
	if err != nil {
		config.ErrorStatus("failed to check chat room membership", http.StatusInternalServerError, w, err)
		return
	}
	if !member {
		config.ErrorStatus("message not found", http.StatusNotFound, w, errMessageNotVisible)
		return
	}

	if msg.AuthorID != user.ID {
		if _, err := c.Store.MarkRead(ctx, msg.ID, user.ID); err != nil {
			config.ErrorStatus("failed to mark message read", http.StatusInternalServerError, w, err)
			return
		}
		msg.Read = true
		if _, err := c.Registry.Publish(msg.RoomID, chat.NewReadReceiptEvent(msg.ID, user.ID)); err != nil {
			zap.S().Errorw("failed to broadcast read receipt", "roomID", msg.RoomID, "messageID", msg.ID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, msg)
}

// MarkRoomReadHandler marks every unread message in a room not written by the current
// user as read
func (c Chat) MarkRoomReadHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.MarkRoomReadRequest
	if err := decodeBody(r, &req); err != nil {
		config.ErrorStatus("roomId is required", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	member, err := c.Store.IsParticipant(ctx, req.RoomID, user.ID)
	if err != nil {
		config.ErrorStatus("failed to check chat room membership", http.StatusInternalServerError, w, err)
		return
	}
	if !member {
		config.ErrorStatus("chat room not found", http.StatusNotFound, w, errRoomNotVisible)
		return
	}

	updated, err := c.Store.MarkRoomRead(ctx, req.RoomID, user.ID)
	if err != nil {
		config.ErrorStatus("failed to mark chat room read", http.StatusInternalServerError, w, err)
		return
	}

	writeJSON(w, http.StatusOK, markRoomReadResponse{RoomID: req.RoomID, Updated: updated})
}
