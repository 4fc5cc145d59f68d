package models

import (
	"strings"
	"time"
)

// User holds the structure for the user collection in mongo
type User struct {
	ID      int64       `json:"id" bson:"_id"`
	Details UserDetails `json:"user" bson:"user"`
}

// UserDetails holds the structure for the inner user structure as defined in the user collection in mongo
type UserDetails struct {
	Email         string    `json:"email" bson:"email"`
	Username      string    `json:"username" bson:"username"`
	FirstName     string    `json:"firstName" bson:"firstName"`
	LastName      string    `json:"lastName" bson:"lastName"`
	Password      string    `json:"-" bson:"password"`
	IsConstructor bool      `json:"isConstructor" bson:"isConstructor"`
	IsProvider    bool      `json:"isProvider" bson:"isProvider"`
	CreatedAt     time.Time `json:"createdAt" bson:"createdAt"`
}

// DisplayName is the full name of the user, or the username when no name was given
func (u User) DisplayName() string {
	name := strings.TrimSpace(u.Details.FirstName + " " + u.Details.LastName)
	if name == "" {
		return u.Details.Username
	}
	return name
}

// CreateUserRequest is the registration payload
type CreateUserRequest struct {
	Email         string `json:"email" validate:"required,email"`
	Username      string `json:"username" validate:"required,min=3,max=150"`
	Password      string `json:"password" validate:"required,min=8"`
	FirstName     string `json:"firstName" validate:"max=150"`
	LastName      string `json:"lastName" validate:"max=150"`
	IsConstructor bool   `json:"isConstructor"`
	IsProvider    bool   `json:"isProvider"`
}
