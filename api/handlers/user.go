package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"github.com/connecmaq/marketplace-api/api"
	"github.com/connecmaq/marketplace-api/config"
	"github.com/connecmaq/marketplace-api/databases"
	"github.com/connecmaq/marketplace-api/models"
)

var (
	errDuplicateEmail    = errors.New("duplicate email")
	errDuplicateUsername = errors.New("duplicate username")
)

// User exists for dependency injection purposes
type User struct {
	DB       databases.UserDatabase
	Counters databases.CounterDatabase
}

type checkEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// UserCreateHandler registers a new constructor or provider account
func (u User) UserCreateHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var req models.CreateUserRequest
	if err := decodeBody(r, &req); err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	// check if the user already exists
	count, err := u.DB.CountDocuments(ctx, bson.M{"user.email": email})
	if err != nil {
		config.ErrorStatus("failed to check email", http.StatusInternalServerError, w, err)
		return
	}
	if count > 0 {
		config.ErrorStatus("email already exists", http.StatusConflict, w, errDuplicateEmail)
		return
	}
	count, err = u.DB.CountDocuments(ctx, bson.M{"user.username": req.Username})
	if err != nil {
		config.ErrorStatus("failed to check username", http.StatusInternalServerError, w, err)
		return
	}
	if count > 0 {
		config.ErrorStatus("username already exists", http.StatusConflict, w, errDuplicateUsername)
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		config.ErrorStatus("failed to hash password", http.StatusInternalServerError, w, err)
		return
	}

	id, err := u.Counters.Next(ctx, databases.UserSequence)
	if err != nil {
		config.ErrorStatus("failed to create user", http.StatusInternalServerError, w, err)
		return
	}

	user := models.User{
		ID: id,
		Details: models.UserDetails{
			Email:         email,
			Username:      req.Username,
			FirstName:     req.FirstName,
			LastName:      req.LastName,
			Password:      string(hashedPassword),
			IsConstructor: req.IsConstructor,
			IsProvider:    req.IsProvider,
			CreatedAt:     time.Now().UTC().Truncate(time.Millisecond),
		},
	}
	if _, err := u.DB.InsertOne(ctx, user); err != nil {
		config.ErrorStatus("failed to insert user", http.StatusInternalServerError, w, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// UserCheckEmailHandler checks if an email exists using POST
func (u User) UserCheckEmailHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var req checkEmailRequest
	if err := decodeBody(r, &req); err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	count, err := u.DB.CountDocuments(ctx, bson.M{"user.email": strings.ToLower(strings.TrimSpace(req.Email))})
	if err != nil {
		config.ErrorStatus("failed to check email", http.StatusInternalServerError, w, err)
		return
	}
	if count > 0 {
		config.ErrorStatus("email already exists", http.StatusConflict, w, errDuplicateEmail)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// CurrentUserHandler returns the authenticated user
func (u User) CurrentUserHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UserHandler returns a single user by id
func (u User) UserHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	id, err := pathID(r, "user_id")
	if err != nil {
		config.ErrorStatus("invalid user id", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	user, err := u.DB.FindOne(ctx, bson.M{"_id": id})
	if errors.Is(err, mongo.ErrNoDocuments) {
		config.ErrorStatus("user not found", http.StatusNotFound, w, err)
		return
	}
	if err != nil {
		config.ErrorStatus("failed to get user by ID", http.StatusInternalServerError, w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
