// Package repository declares the persistence ports used by the services.
//
// Getters return (nil, nil) when nothing matches. Implementations must be
// safe for concurrent use.
package repository

import (
	"context"
	"errors"

	"codeshare/internal/models"
)

var (
	ErrDuplicateUsername = errors.New("username already taken")
	ErrDuplicateEmail    = errors.New("email already registered")
	ErrInvalidRole       = errors.New("unknown role")
	// ErrCodeTaken tells the caller to draw another share code.
	ErrCodeTaken = errors.New("share code already taken")
)

type CreateUserParams struct {
	Username     string
	Email        string
	PasswordHash string
	Role         models.Role
}

type UserRepository interface {
	CreateUser(ctx context.Context, arg CreateUserParams) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	// PromoteUser grants the admin role to username in one atomic step.
	// The user is nil if none matches; changed is false if it already was an
	// admin.
	PromoteUser(ctx context.Context, username string) (user *models.User, changed bool, err error)
	ListUsers(ctx context.Context) ([]models.User, error)
	CountUsers(ctx context.Context) (int64, error)
}

type ShareRepository interface {
	// CreateShare inserts share only if its code is unused, as one atomic
	// step. It returns ErrCodeTaken otherwise. CreatedAt is set by the store.
	CreateShare(ctx context.Context, share *models.Share) (*models.Share, error)
	GetShareByCode(ctx context.Context, code string) (*models.Share, error)
	// IncrementDownloads adds exactly one and returns the updated share.
	IncrementDownloads(ctx context.Context, code string) (*models.Share, error)
	// ListSharesByOwner returns newest first.
	ListSharesByOwner(ctx context.Context, ownerID int64) ([]models.Share, error)
	ListAllShares(ctx context.Context) ([]models.ShareWithOwner, error)
	DeleteShare(ctx context.Context, code string) (bool, error)
	CountShares(ctx context.Context) (models.ShareCounts, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}
