package chat

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/connecmaq/marketplace-api/config"
	"github.com/connecmaq/marketplace-api/models"
)

// IdentityFunc returns the user an upstream authentication layer attached to ctx
type IdentityFunc func(ctx context.Context) (models.User, bool)

var (
	errNoIdentity   = errors.New("no authenticated identity on the connection")
	errInvalidRoom  = errors.New("room id must be a positive integer")
	errNotInTheRoom = errors.New("identity is not a participant of the room")
)

// Handler accepts socket connections on /ws/chat/{room_id}/ and runs one connection
// state machine per client until it disconnects.
type Handler struct {
	Registry *Registry
	Store    Store
	Identity IdentityFunc
	Upgrader websocket.Upgrader
	Socket   SocketConfig
	// StoreTimeout bounds every persistence round trip made on behalf of a client
	StoreTimeout time.Duration
}

// NewHandler wires a handler with production socket settings. An empty
// allowedOrigins accepts any origin.
func NewHandler(registry *Registry, store Store, identity IdentityFunc, allowedOrigins []string) *Handler {
	return &Handler{
		Registry: registry,
		Store:    store,
		Identity: identity,
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		Socket:       DefaultSocketConfig(),
		StoreTimeout: 10 * time.Second,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		_, ok := set[u.Scheme+"://"+u.Host]
		return ok
	}
}

// ServeHTTP authorises the connection, upgrades it and blocks until it is closed
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	roomID, err := strconv.ParseInt(mux.Vars(r)["room_id"], 10, 64)
	if err != nil || roomID <= 0 {
		config.ErrorStatus("invalid chat room", http.StatusBadRequest, w, errInvalidRoom)
		return
	}

	user, ok := h.Identity(r.Context())
	if !ok {
		config.ErrorStatus("unauthorized", http.StatusUnauthorized, w, errNoIdentity)
		return
	}

	// persistence must not be cut short by the client going away mid-write
	base := context.WithoutCancel(r.Context())

	ctx, cancel := context.WithTimeout(base, h.StoreTimeout)
	member, err := h.Store.IsParticipant(ctx, roomID, user.ID)
	cancel()
	if err != nil {
		config.ErrorStatus("failed to check chat room membership", http.StatusInternalServerError, w, err)
		return
	}
	if !member {
		zap.S().Infow("chat connection refused",
			"roomID", roomID,
			"userID", user.ID)
		config.ErrorStatus("forbidden", http.StatusForbidden, w, errNotInTheRoom)
		return
	}

	ws, err := h.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already replied to the client
		zap.S().Warnw("chat websocket upgrade failed", "roomID", roomID, "userID", user.ID, "error", err)
		return
	}

	s := newSession(ws, user.ID, h.Socket)
	c := newConn(h, base, roomID, user, s)
	c.open()
	go s.writePump()

	c.readLoop(ws)
	c.close()
}
