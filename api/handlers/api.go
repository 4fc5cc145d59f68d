package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/connecmaq/marketplace-api/api"
	"github.com/connecmaq/marketplace-api/chat"
	"github.com/connecmaq/marketplace-api/config"
	"github.com/connecmaq/marketplace-api/databases"
	"github.com/connecmaq/marketplace-api/models"
)

// RequestTimeout bounds every REST request. The socket route is not covered.
const RequestTimeout = 30 * time.Second

// App stores the router and db connection, so it can be reused
type App struct {
	Router   *mux.Router
	Config   config.Config
	Registry *chat.Registry
	client   databases.ClientHelper
	dbHelper databases.DatabaseHelper
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	if a.Registry == nil {
		a.Registry = chat.NewRegistry()
	}

	userDB := databases.NewUserDatabase(a.dbHelper)
	store := databases.NewChatStore(a.dbHelper)

	// setup go-guardian for middleware
	m := &api.MiddlewareDB{DB: userDB, Tokens: api.NewTokenIssuer(a.Config.JWTSecret)}
	m.SetupGoGuardian()

	u := User{DB: userDB, Counters: databases.NewCounterDatabase(a.dbHelper)}
	c := Chat{
		Rooms:    databases.NewChatRoomDatabase(a.dbHelper),
		Messages: databases.NewMessageDatabase(a.dbHelper),
		Users:    userDB,
		Store:    store,
		Registry: a.Registry,
	}
	socket := chat.NewHandler(a.Registry, store, api.UserFromContext, a.Config.AllowedOrigins)

	r := mux.NewRouter()
	r.Use(api.RequestLogger)

	// healthchex
	r.HandleFunc("/health", a.healthCheckHandler).Methods("GET")

	r.Handle("/ws/chat/{room_id:[0-9]+}/", m.WebsocketMiddleware(socket)).Methods("GET")

	apiCreate := r.PathPrefix("/api/v1").Subrouter()
	apiCreate.Use(api.TimeoutMiddleware(RequestTimeout))

	apiCreate.Handle("/auth/token", http.HandlerFunc(m.CreateToken)).Methods("POST")
	apiCreate.Handle("/auth/logout", m.Middleware(http.HandlerFunc(m.RevokeToken))).Methods("DELETE")

	apiCreate.Handle("/user/create-user", http.HandlerFunc(u.UserCreateHandler)).Methods("POST")
	apiCreate.Handle("/user/check-user", http.HandlerFunc(u.UserCheckEmailHandler)).Methods("POST")
	apiCreate.Handle("/user/me", m.Middleware(http.HandlerFunc(u.CurrentUserHandler))).Methods("GET")
	apiCreate.Handle("/user/{user_id:[0-9]+}", m.Middleware(http.HandlerFunc(u.UserHandler))).Methods("GET")

	apiCreate.Handle("/chat-rooms", m.Middleware(http.HandlerFunc(c.ChatRoomsHandler))).Methods("GET")
	apiCreate.Handle("/chat-rooms", m.Middleware(http.HandlerFunc(c.CreateChatRoomHandler))).Methods("POST")
	apiCreate.Handle("/chat-rooms/find-or-create", m.Middleware(http.HandlerFunc(c.FindOrCreateChatRoomHandler))).Methods("POST")
	apiCreate.Handle("/chat-rooms/{room_id:[0-9]+}", m.Middleware(http.HandlerFunc(c.ChatRoomHandler))).Methods("GET")

	apiCreate.Handle("/messages", m.Middleware(http.HandlerFunc(c.MessagesHandler))).Methods("GET")
	apiCreate.Handle("/messages", m.Middleware(http.HandlerFunc(c.SendMessageHandler))).Methods("POST")
	apiCreate.Handle("/messages/mark-room-read", m.Middleware(http.HandlerFunc(c.MarkRoomReadHandler))).Methods("POST")
	apiCreate.Handle("/messages/{message_id:[0-9]+}/mark-read", m.Middleware(http.HandlerFunc(c.MarkReadHandler))).Methods("POST")

	return r
}

// Initialize is invoked by the serve command to connect with the database and create a router
func (a *App) Initialize() error {
	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().Errorw("failed to create new client", "error", err)
		return err
	}

	a.client = client
	a.dbHelper = databases.NewDatabase(&a.Config, client)
	err = client.Connect()
	if err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().Errorw("failed to connect to database", "error", err)
		return err
	}
	zap.S().Info("marketplace-api has connected to the database")

	// initialize api router
	a.initializeRoutes()
	return nil
}

// DB returns the database the app was initialized with
func (a *App) DB() databases.DatabaseHelper {
	return a.dbHelper
}

// Client returns the database client the app was initialized with
func (a *App) Client() databases.ClientHelper {
	return a.client
}

// CloseSessions sends a normal close frame to every live chat socket. http.Server does not
// track hijacked connections, so the serve command runs this on shutdown.
func (a *App) CloseSessions() {
	if a.Registry == nil {
		return
	}
	n := a.Registry.CloseAll()
	zap.S().Infow("closing live chat sessions", "sessions", n)
}

// Disconnect closes the database client
func (a *App) Disconnect(ctx context.Context) error {
	if a.client == nil {
		return nil
	}
	return a.client.Disconnect(ctx)
}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

func (a *App) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, http.StatusOK, models.HealthCheckResponse{
		Alive:     true,
		LiveRooms: a.Registry.Rooms(),
	})
}
