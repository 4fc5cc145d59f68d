package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shaj13/go-guardian/auth"
	"github.com/shaj13/go-guardian/auth/strategies/basic"
	"github.com/shaj13/go-guardian/auth/strategies/bearer"
	"github.com/shaj13/go-guardian/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/connecmaq/marketplace-api/config"
	"github.com/connecmaq/marketplace-api/databases"
)

const expiresExtension = "expires"

var (
	errInvalidCredentials = errors.New("invalid credentials")
	errTokenRevoked       = errors.New("token has been revoked")
	errTokenExpired       = errors.New("token has expired")
	errMissingBearer      = errors.New("missing bearer token")
)

// MiddlewareDB holds the user database and the go-guardian authenticator built on top of it
type MiddlewareDB struct {
	DB     databases.UserDatabase
	Tokens *TokenIssuer

	authenticator auth.Authenticator
	cache         store.Cache
	revoked       store.Cache
}

// SetupGoGuardian sets up the go-guardian strategies. Basic auth checks the stored bcrypt
// hash, bearer auth accepts tokens signed by Tokens.
func (m *MiddlewareDB) SetupGoGuardian() {
	m.authenticator = auth.New()
	m.cache = store.NewFIFO(context.Background(), TokenTTL)
	m.revoked = store.NewFIFO(context.Background(), TokenTTL)

	basicStrategy := basic.New(m.ValidateUser, m.cache)
	tokenStrategy := bearer.New(m.ValidateToken, m.cache)

	m.authenticator.EnableStrategy(basic.StrategyKey, basicStrategy)
	m.authenticator.EnableStrategy(bearer.CachedStrategyKey, tokenStrategy)
}

// ValidateUser validates an email and password pair
func (m *MiddlewareDB) ValidateUser(ctx context.Context, r *http.Request, email, password string) (auth.Info, error) {
	user, err := m.DB.FindOne(ctx, bson.M{"user.email": email})
	if err != nil {
		return nil, errInvalidCredentials
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.Details.Password), []byte(password))
	if err != nil {
		return nil, errInvalidCredentials
	}

	return auth.NewDefaultUser(user.Details.Email, strconv.FormatInt(user.ID, 10), nil, nil), nil
}

// ValidateToken is called for bearer tokens missing from the cache
func (m *MiddlewareDB) ValidateToken(ctx context.Context, r *http.Request, token string) (auth.Info, error) {
	if _, ok, _ := m.revoked.Load(token, r); ok {
		return nil, errTokenRevoked
	}

	id, expires, err := m.Tokens.Parse(token)
	if err != nil {
		return nil, err
	}

	user, err := m.DB.FindOne(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	return tokenInfo(user.Details.Email, id, expires), nil
}

func tokenInfo(email string, id int64, expires time.Time) auth.Info {
	return auth.NewDefaultUser(email, strconv.FormatInt(id, 10), nil, map[string][]string{
		expiresExtension: {strconv.FormatInt(expires.Unix(), 10)},
	})
}

// authenticate runs the enabled strategies and loads the matching user
func (m *MiddlewareDB) authenticate(r *http.Request) (*http.Request, error) {
	info, err := m.authenticator.Authenticate(r)
	if err != nil {
		return r, err
	}

	// cached bearer entries can outlive the token they were built from
	if exp := info.Extensions()[expiresExtension]; len(exp) == 1 {
		unix, err := strconv.ParseInt(exp[0], 10, 64)
		if err != nil || time.Now().Unix() >= unix {
			return r, errTokenExpired
		}
	}

	id, err := strconv.ParseInt(info.ID(), 10, 64)
	if err != nil {
		return r, err
	}

	ctx, cancel := WithQueryTimeout(r.Context())
	defer cancel()
	user, err := m.DB.FindOne(ctx, bson.M{"_id": id})
	if err != nil {
		return r, fmt.Errorf("failed to get user %d: %w", id, err)
	}

	return r.WithContext(WithUser(r.Context(), *user)), nil
}

// Middleware rejects requests without valid credentials and attaches the user to the
// request context
func (m *MiddlewareDB) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		authed, err := m.authenticate(r)
		if err != nil {
			zap.S().Infow("unauthorized",
				"url", r.URL.Path,
				"error", err)
			config.ErrorStatus("unauthorized", http.StatusUnauthorized, w, err)
			return
		}
		next.ServeHTTP(w, authed)
	})
}

// WebsocketMiddleware authenticates socket upgrades. Browsers cannot set headers on a
// socket handshake so the bearer token may also be passed as ?token=. Requests that fail
// authentication are passed on without a user and refused by the socket handler.
func (m *MiddlewareDB) WebsocketMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			if token := r.URL.Query().Get("token"); token != "" {
				r.Header.Set("Authorization", "Bearer "+token)
			}
		}

		authed, err := m.authenticate(r)
		if err != nil {
			zap.S().Debugw("unauthenticated socket handshake", "url", r.URL.Path, "error", err)
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, authed)
	})
}

// CreateToken exchanges basic auth credentials for a bearer token
func (m *MiddlewareDB) CreateToken(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	email, password, ok := r.BasicAuth()
	if !ok {
		config.ErrorStatus("basic auth failed", http.StatusUnauthorized, w, errInvalidCredentials)
		return
	}

	info, err := m.ValidateUser(r.Context(), r, email, password)
	if err != nil {
		config.ErrorStatus("basic auth failed", http.StatusUnauthorized, w, err)
		return
	}
	id, _ := strconv.ParseInt(info.ID(), 10, 64)

	token, expires, err := m.Tokens.Issue(id)
	if err != nil {
		config.ErrorStatus("failed to create token", http.StatusInternalServerError, w, err)
		return
	}

	tokenStrategy := m.authenticator.Strategy(bearer.CachedStrategyKey)
	if err := auth.Append(tokenStrategy, token, tokenInfo(email, id, expires), r); err != nil {
		zap.S().Warnw("failed to cache token", "userID", id, "error", err)
	}

	b, err := json.Marshal(map[string]interface{}{
		"token": token,
		"id":    id,
	})
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// RevokeToken revokes the bearer token used on the request
func (m *MiddlewareDB) RevokeToken(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		config.ErrorStatus("failed to revoke token", http.StatusBadRequest, w, errMissingBearer)
		return
	}

	if err := m.revoked.Store(token, true, r); err != nil {
		config.ErrorStatus("failed to revoke token", http.StatusInternalServerError, w, err)
		return
	}
	tokenStrategy := m.authenticator.Strategy(bearer.CachedStrategyKey)
	if err := auth.Revoke(tokenStrategy, token, r); err != nil {
		zap.S().Warnw("failed to drop token from cache", "error", err)
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"revoked": true}`))
}
