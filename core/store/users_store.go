package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type User struct {
	UserID       string    `json:"user_id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Department   string    `json:"department"`
	Roles        []string  `json:"roles"`
	CreatedAt    time.Time `json:"created_at"`
}

type UsersStore interface {
	Create(ctx context.Context, user *User) error
	FindByUsername(ctx context.Context, username string) (*User, error)
}

type usersStore struct {
	db *DB
}

func NewUsersStore(db *DB) UsersStore {
	return &usersStore{db: db}
}

func (s *usersStore) Create(ctx context.Context, user *User) error {
	roles, err := json.Marshal(normalizeRoles(user.Roles))
	if err != nil {
		return err
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users(user_id, username, password_hash, department, roles, created_at)
		VALUES(?,?,?,?,?,?)`,
		user.UserID, strings.ToLower(strings.TrimSpace(user.Username)), user.PasswordHash, user.Department, string(roles), user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("create user %s: %w", user.Username, err)
	}
	return nil
}

func (s *usersStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, username, password_hash, department, roles, created_at
		FROM users WHERE username=?`, strings.ToLower(strings.TrimSpace(username)))
	var u User
	var rolesRaw string
	if err := row.Scan(&u.UserID, &u.Username, &u.PasswordHash, &u.Department, &rolesRaw, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find user %s: %w", username, err)
	}
	if err := json.Unmarshal([]byte(rolesRaw), &u.Roles); err != nil {
		return nil, fmt.Errorf("decode roles of %s: %w", u.Username, err)
	}
	u.Roles = normalizeRoles(u.Roles)
	return &u, nil
}

func normalizeRoles(roles []string) []string {
	out := make([]string, 0, len(roles))
	seen := map[string]struct{}{}
	for _, r := range roles {
		r = strings.ToLower(strings.TrimSpace(r))
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
