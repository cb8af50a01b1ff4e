package movie

import (
	"context"

	"go.uber.org/zap"
)

// Service implements the watchlist CRUD operations.
type Service struct {
	db     Database
	logger *zap.Logger
}

// NewService creates a Service backed by db.
func NewService(db Database, logger *zap.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// List returns every movie in insertion order.
func (s *Service) List(ctx context.Context) ([]Movie, error) {
	return s.db.ListMovies(ctx)
}

// Create validates and stores a new movie.
func (s *Service) Create(ctx context.Context, title, year string) (*Movie, error) {
	if err := Validate(title, year); err != nil {
		return nil, err
	}
	m, err := s.db.CreateMovie(ctx, title, year)
	if err != nil {
		return nil, err
	}
	s.logger.Info("movie created", zap.Int64("movie_id", m.ID), zap.String("title", m.Title))
	return m, nil
}

// Get returns the movie with the given id or common.ErrNotFound.
func (s *Service) Get(ctx context.Context, id int64) (*Movie, error) {
	return s.db.GetMovie(ctx, id)
}

// Edit validates and overwrites the title and year of an existing movie.
func (s *Service) Edit(ctx context.Context, id int64, title, year string) error {
	if err := Validate(title, year); err != nil {
		return err
	}
	if err := s.db.UpdateMovie(ctx, id, title, year); err != nil {
		return err
	}
	s.logger.Info("movie updated", zap.Int64("movie_id", id))
	return nil
}

// Delete removes the movie with the given id.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.db.DeleteMovie(ctx, id); err != nil {
		return err
	}
	s.logger.Info("movie deleted", zap.Int64("movie_id", id))
	return nil
}
