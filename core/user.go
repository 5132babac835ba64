package core

import (
	"context"
	"time"
)

// Status is the presence state of a user.
type Status string

const (
	StatusOnline  Status = "online"
	StatusAway    Status = "away"
	StatusBusy    Status = "busy"
	StatusOffline Status = "offline"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOnline, StatusAway, StatusBusy, StatusOffline:
		return true
	}
	return false
}

type User struct {
	Name     string `json:"name" validate:"required,max=64"`
	Username string `json:"username" validate:"required,alphanum,min=3,max=32"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type UserWithoutSecrets struct {
	Name       string    `json:"name"`
	Username   string    `json:"username"`
	Status     Status    `json:"status"`
	LastActive time.Time `json:"lastActive"`
}

var ErrConflictedUser = NewError(ErrConflict, "user already exists")

type GetUsersOptions struct {
	Q      string
	Limit  int
	Offset int
	// Exclude is left out of the results, usually the caller.
	Exclude string
}

type UserStore interface {
	CreateUser(ctx context.Context, user User) error

	// GetUserByUsername returns nil if the user does not exist.
	GetUserByUsername(ctx context.Context, username string) (*UserWithoutSecrets, error)

	GetUsersByUsernames(ctx context.Context, usernames ...string) ([]UserWithoutSecrets, error)

	ComparePassword(ctx context.Context, username, password string) (bool, error)

	GetUsers(ctx context.Context, opts *GetUsersOptions) ([]UserWithoutSecrets, error)

	// UpdatePresence persists a presence transition.
	UpdatePresence(ctx context.Context, username string, status Status, lastActive time.Time) error
}
