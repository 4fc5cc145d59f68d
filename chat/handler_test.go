package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connecmaq/marketplace-api/models"
)

// memStore is an in-memory Store with the same semantics as the mongo one
type memStore struct {
	mu         sync.Mutex
	users      map[int64]models.User
	rooms      map[int64]*models.ChatRoom
	messages   map[int64]*models.Message
	nextRoom   int64
	nextMsg    int64
	failCreate error
	failCheck  error
}

func newMemStore(users ...models.User) *memStore {
	s := &memStore{
		users:    make(map[int64]models.User),
		rooms:    make(map[int64]*models.ChatRoom),
		messages: make(map[int64]*models.Message),
	}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *memStore) addRoom(id int64, participants ...int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	s.rooms[id] = &models.ChatRoom{ID: id, Participants: participants, CreatedAt: now, UpdatedAt: now}
	if id > s.nextRoom {
		s.nextRoom = id
	}
}

// failNextCreate makes the next CreateMessage call fail with err
func (s *memStore) failNextCreate(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCreate = err
}

func (s *memStore) messagesIn(roomID int64) []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Message
	for id := int64(1); id <= s.nextMsg; id++ {
		if m, ok := s.messages[id]; ok && m.RoomID == roomID {
			out = append(out, *m)
		}
	}
	return out
}

func (s *memStore) message(id int64) models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.messages[id]
}

func (s *memStore) IsParticipant(_ context.Context, roomID, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCheck != nil {
		return false, s.failCheck
	}
	room, ok := s.rooms[roomID]
	return ok && room.HasParticipant(userID), nil
}

func (s *memStore) CreateMessage(_ context.Context, roomID, authorID int64, text string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failCreate; err != nil {
		s.failCreate = nil
		return nil, err
	}
	room, ok := s.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if _, ok := s.users[authorID]; !ok {
		return nil, ErrUserNotFound
	}
	if !room.HasParticipant(authorID) {
		return nil, ErrNotParticipant
	}
	s.nextMsg++
	msg := &models.Message{ID: s.nextMsg, RoomID: roomID, AuthorID: authorID, Content: text, Timestamp: time.Now().UTC()}
	s.messages[msg.ID] = msg
	room.UpdatedAt = msg.Timestamp
	out := *msg
	return &out, nil
}

func (s *memStore) FindMessage(_ context.Context, messageID int64) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[messageID]
	if !ok {
		return nil, ErrMessageNotFound
	}
	out := *msg
	return &out, nil
}

func (s *memStore) MarkRead(_ context.Context, messageID, readerID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[messageID]
	if !ok || msg.AuthorID == readerID || msg.Read {
		return false, nil
	}
	msg.Read = true
	return true, nil
}

func (s *memStore) FindOrCreateRoom(_ context.Context, userA, userB int64) (*models.ChatRoom, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, room := range s.rooms {
		if len(room.Participants) == 2 && room.HasParticipant(userA) && room.HasParticipant(userB) {
			out := *room
			return &out, nil
		}
	}
	s.nextRoom++
	room := &models.ChatRoom{ID: s.nextRoom, Participants: []int64{userA, userB}}
	s.rooms[room.ID] = room
	out := *room
	return &out, nil
}

type identityKey struct{}

func testIdentity(ctx context.Context) (models.User, bool) {
	u, ok := ctx.Value(identityKey{}).(models.User)
	return u, ok
}

// withTestUser stands in for the auth middleware: the X-User-ID header names the caller
func withTestUser(store *memStore, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, err := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64); err == nil {
			store.mu.Lock()
			u, ok := store.users[id]
			store.mu.Unlock()
			if ok {
				r = r.WithContext(context.WithValue(r.Context(), identityKey{}, u))
			}
		}
		next.ServeHTTP(w, r)
	})
}

var (
	alice = models.User{ID: 1, Details: models.UserDetails{Email: "alice@constructora.cl", Username: "alice", FirstName: "Alice", LastName: "Rojas", IsConstructor: true}}
	bruno = models.User{ID: 2, Details: models.UserDetails{Email: "bruno@gruas.cl", Username: "bruno", IsProvider: true}}
	carla = models.User{ID: 3, Details: models.UserDetails{Email: "carla@otra.cl", Username: "carla"}}
)

type harness struct {
	t       *testing.T
	store   *memStore
	handler *Handler
	server  *httptest.Server
}

func newHarness(t *testing.T) *harness {
	store := newMemStore(alice, bruno, carla)
	store.addRoom(42, alice.ID, bruno.ID)

	h := NewHandler(NewRegistry(), store, testIdentity, nil)
	r := mux.NewRouter()
	r.Handle("/ws/chat/{room_id:[0-9]+}/", withTestUser(store, h))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &harness{t: t, store: store, handler: h, server: srv}
}

func (h *harness) dial(roomID, userID int64) (*websocket.Conn, *http.Response, error) {
	u := "ws" + strings.TrimPrefix(h.server.URL, "http") + fmt.Sprintf("/ws/chat/%d/", roomID)
	header := http.Header{}
	if userID != 0 {
		header.Set("X-User-ID", strconv.FormatInt(userID, 10))
	}
	return websocket.DefaultDialer.Dial(u, header)
}

// connect dials and waits until the server has registered the session
func (h *harness) connect(roomID, userID int64) *websocket.Conn {
	before := h.handler.Registry.SessionCount(roomID)
	ws, _, err := h.dial(roomID, userID)
	require.NoError(h.t, err)
	h.t.Cleanup(func() { ws.Close() })
	require.Eventually(h.t, func() bool {
		return h.handler.Registry.SessionCount(roomID) == before+1
	}, 2*time.Second, 10*time.Millisecond)
	return ws
}

func send(t *testing.T, ws *websocket.Conn, frame string) {
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func readEvent(t *testing.T, ws *websocket.Conn) map[string]interface{} {
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	var ev map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func TestHandler_ChatMessageIsPersistedAndEchoedToEveryone(t *testing.T) {
	h := newHarness(t)
	a := h.connect(42, alice.ID)
	b := h.connect(42, bruno.ID)

	send(t, a, `{"type":"chat_message","message":"hello"}`)

	for _, ws := range []*websocket.Conn{a, b} {
		ev := readEvent(t, ws)
		assert.Equal(t, "chat_message", ev["type"])
		assert.Equal(t, "hello", ev["message"])
		assert.Equal(t, float64(alice.ID), ev["author_id"])
		assert.Equal(t, "alice@constructora.cl", ev["author_email"])
		assert.Equal(t, "Alice Rojas", ev["author_name"])
		assert.Equal(t, float64(1), ev["message_id"])

		ts, err := time.Parse(time.RFC3339Nano, ev["timestamp"].(string))
		require.NoError(t, err)
		assert.Equal(t, h.store.message(1).Timestamp, ts.UTC())
	}

	msgs := h.store.messagesIn(42)
	require.Len(t, msgs, 1)
	assert.Equal(t, alice.ID, msgs[0].AuthorID)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.False(t, msgs[0].Read)
}

func TestHandler_AuthorNameFallsBackToUsername(t *testing.T) {
	h := newHarness(t)
	b := h.connect(42, bruno.ID)

	send(t, b, `{"type":"chat_message","message":"disponible mañana"}`)

	ev := readEvent(t, b)
	assert.Equal(t, "bruno", ev["author_name"])
}

func TestHandler_ReadReceiptMarksAndBroadcasts(t *testing.T) {
	h := newHarness(t)
	a := h.connect(42, alice.ID)
	b := h.connect(42, bruno.ID)

	send(t, a, `{"type":"chat_message","message":"hello"}`)
	readEvent(t, a)
	id := readEvent(t, b)["message_id"].(float64)

	send(t, b, fmt.Sprintf(`{"type":"read_receipt","message_id":%d}`, int64(id)))

	for _, ws := range []*websocket.Conn{a, b} {
		ev := readEvent(t, ws)
		assert.Equal(t, "read_receipt", ev["type"])
		assert.Equal(t, id, ev["message_id"])
		assert.Equal(t, float64(bruno.ID), ev["reader_id"])
	}
	assert.True(t, h.store.message(int64(id)).Read)
}

func TestHandler_AuthorCannotMarkOwnMessageRead(t *testing.T) {
	h := newHarness(t)
	a := h.connect(42, alice.ID)

	send(t, a, `{"type":"chat_message","message":"hello"}`)
	readEvent(t, a)

	send(t, a, `{"type":"read_receipt","message_id":1}`)
	send(t, a, `{"type":"read_receipt","message_id":1}`)
	send(t, a, `{"type":"chat_message","message":"after"}`)

	// the next frame is the second message, so no receipt was broadcast
	ev := readEvent(t, a)
	assert.Equal(t, "chat_message", ev["type"])
	assert.Equal(t, "after", ev["message"])
	assert.False(t, h.store.message(1).Read)
}

func TestHandler_RepeatedReadReceiptIsBroadcastAgain(t *testing.T) {
	h := newHarness(t)
	a := h.connect(42, alice.ID)
	b := h.connect(42, bruno.ID)

	send(t, a, `{"type":"chat_message","message":"hello"}`)
	readEvent(t, a)
	readEvent(t, b)

	send(t, b, `{"type":"read_receipt","message_id":1}`)
	assert.Equal(t, "read_receipt", readEvent(t, a)["type"])
	assert.Equal(t, "read_receipt", readEvent(t, b)["type"])

	// already read, so nothing changes but the room still hears about it
	send(t, b, `{"type":"read_receipt","message_id":1}`)
	send(t, b, `{"type":"chat_message","message":"ok"}`)

	ev := readEvent(t, a)
	assert.Equal(t, "read_receipt", ev["type"])
	assert.Equal(t, float64(1), ev["message_id"])
	assert.Equal(t, float64(bruno.ID), ev["reader_id"])
	assert.Equal(t, "chat_message", readEvent(t, a)["type"])

	assert.Equal(t, "read_receipt", readEvent(t, b)["type"])
	assert.Equal(t, "chat_message", readEvent(t, b)["type"])
	assert.True(t, h.store.message(1).Read)
}

func TestHandler_IgnoredFramesKeepConnectionOpen(t *testing.T) {
	h := newHarness(t)
	a := h.connect(42, alice.ID)

	send(t, a, `{"type":"chat_message","message":""}`)
	send(t, a, `{"type":"chat_message"}`)
	send(t, a, `not json at all`)
	send(t, a, `{"type":"typing"}`)
	send(t, a, `{"message":"no type"}`)
	send(t, a, `{"type":"read_receipt"}`)
	send(t, a, `{"type":"read_receipt","message_id":"1"}`)
	send(t, a, `{"type":"read_receipt","message_id":999}`)
	send(t, a, `{"type":"chat_message","message":"still here"}`)

	ev := readEvent(t, a)
	assert.Equal(t, "still here", ev["message"])
	assert.Len(t, h.store.messagesIn(42), 1)
}

func TestHandler_PersistenceFailureDropsOnlyThatEvent(t *testing.T) {
	h := newHarness(t)
	a := h.connect(42, alice.ID)

	h.store.failNextCreate(errors.New("mocked-error"))
	send(t, a, `{"type":"chat_message","message":"lost"}`)
	send(t, a, `{"type":"chat_message","message":"kept"}`)

	ev := readEvent(t, a)
	assert.Equal(t, "kept", ev["message"])

	msgs := h.store.messagesIn(42)
	require.Len(t, msgs, 1)
	assert.Equal(t, "kept", msgs[0].Content)
}

func TestHandler_RefusesNonParticipant(t *testing.T) {
	h := newHarness(t)

	ws, resp, err := h.dial(42, carla.ID)
	require.Error(t, err)
	assert.Nil(t, ws)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, h.handler.Registry.Rooms())
}

func TestHandler_RefusesUnknownRoom(t *testing.T) {
	h := newHarness(t)

	_, resp, err := h.dial(1000, alice.ID)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, h.handler.Registry.Rooms())
}

func TestHandler_RefusesMissingIdentity(t *testing.T) {
	h := newHarness(t)

	_, resp, err := h.dial(42, 0)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, h.handler.Registry.Rooms())
}

func TestHandler_RefusesWhenMembershipCheckFails(t *testing.T) {
	h := newHarness(t)
	h.store.mu.Lock()
	h.store.failCheck = errors.New("mocked-error")
	h.store.mu.Unlock()

	_, resp, err := h.dial(42, alice.ID)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, 0, h.handler.Registry.Rooms())
}

func TestHandler_CloseAllSendsNormalClosure(t *testing.T) {
	h := newHarness(t)
	a := h.connect(42, alice.ID)
	b := h.connect(42, bruno.ID)

	assert.Equal(t, 2, h.handler.Registry.CloseAll())

	for _, ws := range []*websocket.Conn{a, b} {
		require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, _, err := ws.ReadMessage()
		assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	}
	require.Eventually(t, func() bool {
		return h.handler.Registry.Rooms() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHandler_DisconnectUnregisters(t *testing.T) {
	h := newHarness(t)
	a := h.connect(42, alice.ID)
	b := h.connect(42, bruno.ID)
	assert.Equal(t, 2, h.handler.Registry.SessionCount(42))

	require.NoError(t, a.Close())
	require.Eventually(t, func() bool {
		return h.handler.Registry.SessionCount(42) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// the remaining participant keeps chatting
	send(t, b, `{"type":"chat_message","message":"sigues ahí?"}`)
	assert.Equal(t, "sigues ahí?", readEvent(t, b)["message"])

	require.NoError(t, b.Close())
	require.Eventually(t, func() bool {
		return h.handler.Registry.Rooms() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestConn_ReadReceiptForAnotherRoomIsIgnored(t *testing.T) {
	store := newMemStore(alice, bruno)
	store.addRoom(42, alice.ID, bruno.ID)
	store.addRoom(43, alice.ID, bruno.ID)
	msg, err := store.CreateMessage(context.Background(), 43, alice.ID, "other room")
	require.NoError(t, err)

	h := &Handler{Registry: NewRegistry(), Store: store, StoreTimeout: time.Second}
	s := newFakeSession("b", bruno.ID)
	c := newConn(h, context.Background(), 42, bruno, s)
	c.open()

	c.handle([]byte(fmt.Sprintf(`{"type":"read_receipt","message_id":%d}`, msg.ID)))

	assert.Empty(t, s.received())
	assert.False(t, store.message(msg.ID).Read)
}

func TestConn_ClosedConnectionProcessesNothing(t *testing.T) {
	store := newMemStore(alice, bruno)
	store.addRoom(42, alice.ID, bruno.ID)

	h := &Handler{Registry: NewRegistry(), Store: store, StoreTimeout: time.Second}
	s := newFakeSession("a", alice.ID)
	c := newConn(h, context.Background(), 42, alice, s)
	c.open()
	c.close()
	c.close()

	c.handle([]byte(`{"type":"chat_message","message":"late"}`))

	assert.Empty(t, store.messagesIn(42))
	assert.Equal(t, 0, h.Registry.Rooms())
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://connecmaq.cl"})

	req := httptest.NewRequest(http.MethodGet, "/ws/chat/42/", nil)
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://connecmaq.cl")
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, check(req))

	assert.True(t, originChecker(nil)(req))
}
