package user

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/PressureTank/watchlist/backend/common"
)

// MaxNameLength is the longest display name accepted, in characters.
const MaxNameLength = 20

// DefaultAdminName is the display name given to an admin created by the bootstrap.
const DefaultAdminName = "Admin"

// User represents the watchlist admin.
type User struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Username       string `json:"username"`
	PasswordHash   string `json:"-"`
	IsAdmin        bool   `json:"is_admin"`
	SessionVersion int64  `json:"-"`
}

// Database is the persistence the user service needs.
type Database interface {
	GetAdmin(ctx context.Context) (*User, error)
	GetUserByID(ctx context.Context, id int64) (*User, error)
	UpdateUserName(ctx context.Context, id int64, name string) error
	IncrementSessionVersion(ctx context.Context, id int64) (int64, error)
	SaveAdmin(ctx context.Context, username, passwordHash string) (*User, error)
}

// ValidateName reports whether name is usable as a display name.
func ValidateName(name string) error {
	if name == "" || utf8.RuneCountInString(name) > MaxNameLength {
		return fmt.Errorf("%w: name must be 1-%d characters", common.ErrInvalidInput, MaxNameLength)
	}
	return nil
}

type ctxKey struct{}

// NewContext returns a copy of ctx carrying the authenticated user.
func NewContext(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// FromContext returns the authenticated user stored in ctx, if any.
func FromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(ctxKey{}).(*User)
	return u, ok && u != nil
}
