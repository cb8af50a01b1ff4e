package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/PressureTank/watchlist/backend/common"
	"github.com/PressureTank/watchlist/backend/movie"
	"github.com/PressureTank/watchlist/backend/user"
)

// DBTX is the subset of database/sql shared by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteDB stores users and movies. It satisfies both user.Database and movie.Database.
type SQLiteDB struct {
	db     DBTX
	conn   *sql.DB // nil when bound to a transaction
	logger *zap.Logger
}

var (
	_ user.Database  = (*SQLiteDB)(nil)
	_ movie.Database = (*SQLiteDB)(nil)
)

func NewSQLiteDB(db *sql.DB, logger *zap.Logger) *SQLiteDB {
	return &SQLiteDB{
		db:     db,
		conn:   db,
		logger: logger,
	}
}

// WithTx runs fn against a transaction-bound copy of s, committing when fn
// returns nil and rolling back on error or panic. Nested calls reuse the
// outer transaction.
func (s *SQLiteDB) WithTx(ctx context.Context, fn func(tx *SQLiteDB) error) (err error) {
	if s.conn == nil {
		return fn(s)
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("Error starting transaction", zap.Error(err))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if err = tx.Commit(); err != nil {
			s.logger.Error("Error committing transaction", zap.Error(err))
		}
	}()

	return fn(&SQLiteDB{db: tx, logger: s.logger})
}

func (s *SQLiteDB) ListMovies(ctx context.Context) ([]movie.Movie, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, title, year FROM movies ORDER BY id")
	if err != nil {
		s.logger.Error("Error fetching movies from database", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	movies := []movie.Movie{}
	for rows.Next() {
		var m movie.Movie
		if err := rows.Scan(&m.ID, &m.Title, &m.Year); err != nil {
			s.logger.Error("Error scanning movie row", zap.Error(err))
			return nil, err
		}
		movies = append(movies, m)
	}
	if err := rows.Err(); err != nil {
		s.logger.Error("Error iterating movie rows", zap.Error(err))
		return nil, err
	}

	return movies, nil
}

func (s *SQLiteDB) GetMovie(ctx context.Context, id int64) (*movie.Movie, error) {
	var m movie.Movie
	err := s.db.QueryRowContext(ctx, "SELECT id, title, year FROM movies WHERE id=?", id).
		Scan(&m.ID, &m.Title, &m.Year)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("movie %d: %w", id, common.ErrNotFound)
	} else if err != nil {
		s.logger.Error("Error fetching movie from database", zap.Int64("movie_id", id), zap.Error(err))
		return nil, err
	}
	return &m, nil
}

func (s *SQLiteDB) CreateMovie(ctx context.Context, title, year string) (*movie.Movie, error) {
	res, err := s.db.ExecContext(ctx, "INSERT INTO movies (title, year) VALUES (?, ?)", title, year)
	if err != nil {
		s.logger.Error("Error inserting movie into database", zap.Error(err))
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		s.logger.Error("Error reading inserted movie id", zap.Error(err))
		return nil, err
	}
	return &movie.Movie{ID: id, Title: title, Year: year}, nil
}

func (s *SQLiteDB) UpdateMovie(ctx context.Context, id int64, title, year string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE movies SET title=?, year=? WHERE id=?", title, year, id)
	if err != nil {
		s.logger.Error("Error updating movie in database", zap.Int64("movie_id", id), zap.Error(err))
		return err
	}
	return s.expectOneRow(res, "movie", id)
}

func (s *SQLiteDB) DeleteMovie(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM movies WHERE id=?", id)
	if err != nil {
		s.logger.Error("Error deleting movie from database", zap.Int64("movie_id", id), zap.Error(err))
		return err
	}
	return s.expectOneRow(res, "movie", id)
}

const userColumns = "id, name, username, password_hash, is_admin, session_version"

func (s *SQLiteDB) scanUser(row *sql.Row) (*user.User, error) {
	var u user.User
	err := row.Scan(&u.ID, &u.Name, &u.Username, &u.PasswordHash, &u.IsAdmin, &u.SessionVersion)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetAdmin returns the user flagged as admin.
func (s *SQLiteDB) GetAdmin(ctx context.Context) (*user.User, error) {
	u, err := s.scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE is_admin=1"))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("admin: %w", common.ErrNotFound)
	} else if err != nil {
		s.logger.Error("Error fetching admin from database", zap.Error(err))
		return nil, err
	}
	return u, nil
}

func (s *SQLiteDB) GetUserByID(ctx context.Context, id int64) (*user.User, error) {
	u, err := s.scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id=?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, common.ErrNotFound)
	} else if err != nil {
		s.logger.Error("Error fetching user from database", zap.Int64("user_id", id), zap.Error(err))
		return nil, err
	}
	return u, nil
}

func (s *SQLiteDB) UpdateUserName(ctx context.Context, id int64, name string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE users SET name=? WHERE id=?", name, id)
	if err != nil {
		s.logger.Error("Error updating user name", zap.Int64("user_id", id), zap.Error(err))
		return err
	}
	return s.expectOneRow(res, "user", id)
}

// IncrementSessionVersion bumps and returns the user's session version.
func (s *SQLiteDB) IncrementSessionVersion(ctx context.Context, id int64) (int64, error) {
	var version int64
	err := s.db.QueryRowContext(ctx,
		"UPDATE users SET session_version = session_version + 1 WHERE id=? RETURNING session_version", id).
		Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("user %d: %w", id, common.ErrNotFound)
	} else if err != nil {
		s.logger.Error("Error incrementing session version", zap.Int64("user_id", id), zap.Error(err))
		return 0, err
	}
	return version, nil
}

// SaveAdmin creates the admin with the given credentials, or replaces the
// credentials of the existing admin and invalidates its sessions.
func (s *SQLiteDB) SaveAdmin(ctx context.Context, username, passwordHash string) (*user.User, error) {
	var saved *user.User
	err := s.WithTx(ctx, func(tx *SQLiteDB) error {
		admin, err := tx.GetAdmin(ctx)
		switch {
		case errors.Is(err, common.ErrNotFound):
			admin = &user.User{Name: user.DefaultAdminName, IsAdmin: true}
			if err := tx.insertUser(ctx, admin); err != nil {
				return err
			}
		case err != nil:
			return err
		}

		_, err = tx.db.ExecContext(ctx,
			"UPDATE users SET username=?, password_hash=?, session_version = session_version + 1 WHERE id=?",
			username, passwordHash, admin.ID)
		if err != nil {
			s.logger.Error("Error updating admin credentials", zap.Error(err))
			return err
		}

		saved, err = tx.GetUserByID(ctx, admin.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// EnsureAdmin sets the admin's display name, creating an admin without
// credentials when none exists yet.
func (s *SQLiteDB) EnsureAdmin(ctx context.Context, name string) (*user.User, error) {
	var admin *user.User
	err := s.WithTx(ctx, func(tx *SQLiteDB) error {
		var err error
		admin, err = tx.GetAdmin(ctx)
		if errors.Is(err, common.ErrNotFound) {
			admin = &user.User{Name: name, IsAdmin: true}
			return tx.insertUser(ctx, admin)
		}
		if err != nil {
			return err
		}
		admin.Name = name
		return tx.UpdateUserName(ctx, admin.ID, name)
	})
	if err != nil {
		return nil, err
	}
	return admin, nil
}

func (s *SQLiteDB) insertUser(ctx context.Context, u *user.User) error {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO users (name, username, password_hash, is_admin) VALUES (?, ?, ?, ?)",
		u.Name, u.Username, u.PasswordHash, u.IsAdmin)
	if err != nil {
		s.logger.Error("Error inserting user into database", zap.Error(err))
		return err
	}
	if u.ID, err = res.LastInsertId(); err != nil {
		s.logger.Error("Error reading inserted user id", zap.Error(err))
		return err
	}
	return nil
}

func (s *SQLiteDB) expectOneRow(res sql.Result, kind string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		s.logger.Error("Error reading affected rows", zap.Error(err))
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", kind, id, common.ErrNotFound)
	}
	return nil
}
