package movie

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/PressureTank/watchlist/backend/common"
)

// Field limits, in characters.
const (
	MaxTitleLength = 60
	MaxYearLength  = 4
)

// Movie represents a watchlist entry.
type Movie struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Year  string `json:"year"`
}

// Database is the persistence the movie service needs.
type Database interface {
	ListMovies(ctx context.Context) ([]Movie, error)
	GetMovie(ctx context.Context, id int64) (*Movie, error)
	CreateMovie(ctx context.Context, title, year string) (*Movie, error)
	UpdateMovie(ctx context.Context, id int64, title, year string) error
	DeleteMovie(ctx context.Context, id int64) error
}

// Validate checks title and year lengths. The year is not required to be numeric.
func Validate(title, year string) error {
	if title == "" || utf8.RuneCountInString(title) > MaxTitleLength {
		return fmt.Errorf("%w: title must be 1-%d characters", common.ErrInvalidInput, MaxTitleLength)
	}
	if year == "" || utf8.RuneCountInString(year) > MaxYearLength {
		return fmt.Errorf("%w: year must be 1-%d characters", common.ErrInvalidInput, MaxYearLength)
	}
	return nil
}
