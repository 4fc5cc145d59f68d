package handlers_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"github.com/connecmaq/marketplace-api/api/handlers"
	"github.com/connecmaq/marketplace-api/databases/mocks"
	"github.com/connecmaq/marketplace-api/models"
)

const newUserBody = `{
	"email": " Diego@Example.com ",
	"username": "diego",
	"password": "grua-horquilla-99",
	"firstName": "Diego",
	"lastName": "Paredes",
	"isProvider": true
}`

func TestUser_UserCreateHandler(t *testing.T) {
	users := &mocks.UserDatabase{}
	counters := &mocks.CounterDatabase{}

	users.On("CountDocuments", mock.Anything, bson.M{"user.email": "diego@example.com"}).Return(int64(0), nil)
	users.On("CountDocuments", mock.Anything, bson.M{"user.username": "diego"}).Return(int64(0), nil)
	counters.On("Next", mock.Anything, "users").Return(int64(5), nil)
	users.On("InsertOne", mock.Anything, mock.MatchedBy(func(u models.User) bool {
		return u.ID == 5 &&
			u.Details.Email == "diego@example.com" &&
			u.Details.IsProvider &&
			bcrypt.CompareHashAndPassword([]byte(u.Details.Password), []byte("grua-horquilla-99")) == nil
	})).Return(&mocks.InsertOneResultHelper{}, nil)

	u := handlers.User{DB: users, Counters: counters}
	rr := httptest.NewRecorder()
	http.HandlerFunc(u.UserCreateHandler).ServeHTTP(rr, httptest.NewRequest("POST", "/api/v1/user/create-user", strings.NewReader(newUserBody)))

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var got models.User
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, int64(5), got.ID)
	assert.Equal(t, "Diego Paredes", got.DisplayName())
	assert.NotContains(t, rr.Body.String(), "password")
	users.AssertExpectations(t)
}

func TestUser_UserCreateHandlerDuplicateEmail(t *testing.T) {
	users := &mocks.UserDatabase{}
	users.On("CountDocuments", mock.Anything, bson.M{"user.email": "diego@example.com"}).Return(int64(1), nil)

	u := handlers.User{DB: users, Counters: &mocks.CounterDatabase{}}
	rr := httptest.NewRecorder()
	http.HandlerFunc(u.UserCreateHandler).ServeHTTP(rr, httptest.NewRequest("POST", "/api/v1/user/create-user", strings.NewReader(newUserBody)))

	assert.Equal(t, http.StatusConflict, rr.Code)

	expected := models.ErrorMessageResponse{Response: models.MessageError{Message: "email already exists", Error: "duplicate email"}}
	b, _ := json.Marshal(expected)
	assert.Equal(t, string(b), rr.Body.String())
}

func TestUser_UserCreateHandlerValidation(t *testing.T) {
	u := handlers.User{DB: &mocks.UserDatabase{}, Counters: &mocks.CounterDatabase{}}

	for name, body := range map[string]string{
		"malformed json": `{"email":`,
		"bad email":      `{"email":"nope","username":"diego","password":"grua-horquilla-99"}`,
		"short password": `{"email":"diego@example.com","username":"diego","password":"123"}`,
		"no username":    `{"email":"diego@example.com","password":"grua-horquilla-99"}`,
	} {
		t.Run(name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			http.HandlerFunc(u.UserCreateHandler).ServeHTTP(rr, httptest.NewRequest("POST", "/api/v1/user/create-user", strings.NewReader(body)))
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestUser_UserCheckEmailHandler(t *testing.T) {
	users := &mocks.UserDatabase{}
	users.On("CountDocuments", mock.Anything, bson.M{"user.email": "alice@example.com"}).Return(int64(1), nil)
	users.On("CountDocuments", mock.Anything, bson.M{"user.email": "new@example.com"}).Return(int64(0), nil)
	users.On("CountDocuments", mock.Anything, bson.M{"user.email": "broken@example.com"}).Return(int64(0), errors.New("mocked-error"))

	u := handlers.User{DB: users}
	check := func(body string) int {
		rr := httptest.NewRecorder()
		http.HandlerFunc(u.UserCheckEmailHandler).ServeHTTP(rr, httptest.NewRequest("POST", "/api/v1/user/check-user", strings.NewReader(body)))
		return rr.Code
	}

	assert.Equal(t, http.StatusConflict, check(`{"email":"alice@example.com"}`))
	assert.Equal(t, http.StatusOK, check(`{"email":"new@example.com"}`))
	assert.Equal(t, http.StatusInternalServerError, check(`{"email":"broken@example.com"}`))
	assert.Equal(t, http.StatusBadRequest, check(`{}`))
}

func TestUser_CurrentUserHandler(t *testing.T) {
	u := handlers.User{}

	rr := httptest.NewRecorder()
	http.HandlerFunc(u.CurrentUserHandler).ServeHTTP(rr, asUser(httptest.NewRequest("GET", "/api/v1/user/me", nil), alice))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"email":"alice@example.com"`)

	rr = httptest.NewRecorder()
	http.HandlerFunc(u.CurrentUserHandler).ServeHTTP(rr, httptest.NewRequest("GET", "/api/v1/user/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestUser_UserHandler(t *testing.T) {
	users := &mocks.UserDatabase{}
	users.On("FindOne", mock.Anything, bson.M{"_id": int64(2)}).Return(&bruno, nil)
	users.On("FindOne", mock.Anything, bson.M{"_id": int64(9)}).Return(nil, mongo.ErrNoDocuments)
	users.On("FindOne", mock.Anything, bson.M{"_id": int64(8)}).Return(nil, errors.New("mocked-error"))

	u := handlers.User{DB: users}
	get := func(id string) *httptest.ResponseRecorder {
		req := mux.SetURLVars(httptest.NewRequest("GET", "/api/v1/user/"+id, nil), map[string]string{"user_id": id})
		rr := httptest.NewRecorder()
		http.HandlerFunc(u.UserHandler).ServeHTTP(rr, req)
		return rr
	}

	rr := get("2")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"username":"bruno"`)

	assert.Equal(t, http.StatusNotFound, get("9").Code)
	assert.Equal(t, http.StatusInternalServerError, get("8").Code)
	assert.Equal(t, http.StatusBadRequest, get("asdf").Code)
}
