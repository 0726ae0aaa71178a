package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rentwise/rentwise-server/internal/domain"
	domainerrors "github.com/rentwise/rentwise-server/internal/errors"
	"github.com/rentwise/rentwise-server/internal/id"
	"github.com/rentwise/rentwise-server/internal/store"
)

// UserDirectory resolves users for the rest of the system. The API never
// mutates it; accounts are provisioned out of band with Provision.
type UserDirectory struct {
	store   store.UserStore
	logger  *slog.Logger
	timeout time.Duration
}

var _ UserLookup = (*UserDirectory)(nil)

// NewUserDirectory creates a new user directory.
func NewUserDirectory(store store.UserStore, logger *slog.Logger, timeout time.Duration) *UserDirectory {
	if timeout <= 0 {
		timeout = DefaultStorageTimeout
	}
	return &UserDirectory{store: store, logger: logger, timeout: timeout}
}

// ProvisionUserRequest describes a new directory entry.
type ProvisionUserRequest struct {
	DisplayName string      `json:"displayName" validate:"max=100"`
	Email       string      `json:"email" validate:"required,email"`
	Role        domain.Role `json:"role" validate:"required,oneof=landlord tenant admin"`
}

// GetUser returns the user with the given id.
func (d *UserDirectory) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	u, err := storageCall(ctx, d.timeout, func(ctx context.Context) (*domain.User, error) {
		return d.store.GetUser(ctx, userID)
	})
	if err != nil {
		return nil, translateStoreError(err, "user not found")
	}
	return u, nil
}

// GetUserByEmail returns the user with the given email.
func (d *UserDirectory) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := storageCall(ctx, d.timeout, func(ctx context.Context) (*domain.User, error) {
		return d.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	})
	if err != nil {
		return nil, translateStoreError(err, "user not found")
	}
	return u, nil
}

// ListUsers returns every user.
func (d *UserDirectory) ListUsers(ctx context.Context) ([]*domain.User, error) {
	users, err := storageCall(ctx, d.timeout, d.store.ListUsers)
	if err != nil {
		return nil, translateStoreError(err, "users not found")
	}
	return users, nil
}

// Provision adds a user to the directory.
func (d *UserDirectory) Provision(ctx context.Context, req ProvisionUserRequest) (*domain.User, error) {
	req.DisplayName = normalizeText(req.DisplayName)
	req.Email = strings.TrimSpace(req.Email)
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	userID, err := id.Generate(id.PrefixUser)
	if err != nil {
		return nil, fmt.Errorf("generate user ID: %w", err)
	}

	u := &domain.User{
		ID:          userID,
		DisplayName: req.DisplayName,
		Email:       req.Email,
		Role:        req.Role,
		CreatedAt:   time.Now(),
	}
	err = storageExec(ctx, d.timeout, func(ctx context.Context) error {
		return d.store.CreateUser(ctx, u)
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		return nil, domainerrors.Conflict("a user with this email already exists")
	}
	if err != nil {
		return nil, translateStoreError(err, "user not found")
	}

	d.logger.Info("user provisioned", "user_id", u.ID, "role", u.Role)
	return u, nil
}
