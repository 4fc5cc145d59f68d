package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/connecmaq/marketplace-api/api"
	"github.com/connecmaq/marketplace-api/config"
	"github.com/connecmaq/marketplace-api/models"
)

var validate = validator.New()

var (
	errNoUser    = errors.New("no authenticated user on the request")
	errInvalidID = errors.New("id must be a positive integer")
)

// decodeBody decodes the JSON request body into v and runs its validate tags
func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return err
	}
	return validate.Struct(v)
}

// pathID reads a positive numeric route variable
func pathID(r *http.Request, name string) (int64, error) {
	return parseID(mux.Vars(r)[name])
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}

// pageParams reads the limit and page query params, zero when missing
func pageParams(r *http.Request) (limit, page int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	return limit, page
}

// currentUser returns the user the auth middleware attached, writing a 401 when absent
func currentUser(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	user, ok := api.UserFromContext(r.Context())
	if !ok {
		config.ErrorStatus("unauthorized", http.StatusUnauthorized, w, errNoUser)
	}
	return user, ok
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(status)
	w.Write(b)
}
