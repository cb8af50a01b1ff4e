package user

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/PressureTank/watchlist/backend/common"
)

// Service implements login, logout, the session check and the settings
// update for the single admin.
type Service struct {
	db     Database
	cost   int
	logger *zap.Logger

	// compared against on username mismatch so both failure paths cost a bcrypt check
	dummyHash []byte
}

// NewService creates a Service hashing passwords with the given bcrypt cost.
func NewService(db Database, cost int, logger *zap.Logger) *Service {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("watchlist-dummy-password"), cost)
	if err != nil {
		// only possible for a cost outside bcrypt's range
		panic(fmt.Sprintf("user: invalid bcrypt cost %d: %v", cost, err))
	}
	return &Service{
		db:        db,
		cost:      cost,
		logger:    logger,
		dummyHash: dummy,
	}
}

// Login checks username and password against the admin account.
func (s *Service) Login(ctx context.Context, username, password string) (*User, error) {
	if username == "" || password == "" {
		return nil, common.ErrInvalidInput
	}

	admin, err := s.db.GetAdmin(ctx)
	if errors.Is(err, common.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return nil, common.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load admin: %w", err)
	}

	hash := []byte(admin.PasswordHash)
	if admin.Username != username || admin.PasswordHash == "" {
		hash = s.dummyHash
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil || admin.Username != username {
		s.logger.Info("login rejected", zap.String("username", username))
		return nil, common.ErrInvalidCredentials
	}

	s.logger.Info("login succeeded", zap.Int64("user_id", admin.ID))
	return admin, nil
}

// Logout invalidates every session issued for u so far.
func (s *Service) Logout(ctx context.Context, u *User) error {
	if u == nil {
		return nil
	}
	if _, err := s.db.IncrementSessionVersion(ctx, u.ID); err != nil && !errors.Is(err, common.ErrNotFound) {
		return fmt.Errorf("failed to invalidate sessions: %w", err)
	}
	return nil
}

// Authorize resolves a session's user id and version to the user it belongs to.
func (s *Service) Authorize(ctx context.Context, id, version int64) (*User, error) {
	u, err := s.db.GetUserByID(ctx, id)
	if errors.Is(err, common.ErrNotFound) {
		return nil, common.ErrUnauthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session user: %w", err)
	}
	if !u.IsAdmin || u.SessionVersion != version {
		return nil, common.ErrUnauthenticated
	}
	return u, nil
}

// UpdateName changes the display name of the user with the given id.
func (s *Service) UpdateName(ctx context.Context, id int64, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	return s.db.UpdateUserName(ctx, id, name)
}

// Admin returns the admin account, or common.ErrNotFound before bootstrap.
func (s *Service) Admin(ctx context.Context) (*User, error) {
	return s.db.GetAdmin(ctx)
}

// SetAdmin creates the admin or resets its credentials.
func (s *Service) SetAdmin(ctx context.Context, username, password string) (*User, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", common.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u, err := s.db.SaveAdmin(ctx, username, string(hash))
	if err != nil {
		return nil, err
	}
	s.logger.Info("admin credentials saved", zap.Int64("user_id", u.ID), zap.String("username", u.Username))
	return u, nil
}
