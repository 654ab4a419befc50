package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid/v5"
	"golang.org/x/crypto/bcrypt"

	"drdesk/core/store"
	"drdesk/core/utils"
)

type contextKey string

const UserContextKey contextKey = "drdesk_user"

var ErrInvalidCredentials = errors.New("invalid credentials")

// Authenticator checks credentials against the users table.
type Authenticator struct {
	users  store.UsersStore
	logger *utils.Logger
}

func NewAuthenticator(users store.UsersStore, logger *utils.Logger) *Authenticator {
	return &Authenticator{users: users, logger: logger}
}

func (a *Authenticator) Verify(ctx context.Context, username, password string) (*store.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := a.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// EnsureUser creates the account unless the username is already taken.
func (a *Authenticator) EnsureUser(ctx context.Context, username, password, department string, roles []string) (*store.User, bool, error) {
	existing, err := a.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, false, err
	}
	user := &store.User{
		UserID:       uuid.Must(uuid.NewV4()).String(),
		Username:     username,
		PasswordHash: hash,
		Department:   department,
		Roles:        roles,
		CreatedAt:    utils.NowUTC(),
	}
	if err := a.users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			existing, err = a.users.FindByUsername(ctx, username)
			return existing, false, err
		}
		return nil, false, err
	}
	a.logger.Printf("user %s created with roles %v", user.Username, roles)
	return user, true, nil
}

func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("empty password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func UserFromContext(ctx context.Context) (*store.User, bool) {
	u, ok := ctx.Value(UserContextKey).(*store.User)
	return u, ok && u != nil
}

func WithUser(ctx context.Context, u *store.User) context.Context {
	return context.WithValue(ctx, UserContextKey, u)
}
