package repository

import (
	"context"
	"errors"

	"github.com/garnizeh/feedback/pkg/models"
)

// Repository interfaces for domain entities. These are the public contracts
// consumers should depend on; concrete implementations live under internal/.
//
// Lookups report "not found" as a nil record with a nil error.

// ErrDuplicate is returned when a unique field (username, email) is taken.
var ErrDuplicate = errors.New("duplicate record")

type FeedbackRepo interface {
	// GetFeedback returns every record, most recent first.
	GetFeedback(ctx context.Context) ([]models.Feedback, error)
	GetFeedbackByID(ctx context.Context, id int64) (*models.Feedback, error)
	// CreateFeedback stores in with a fresh id and timestamp. Nil metadata is
	// stored as null.
	CreateFeedback(ctx context.Context, in models.FeedbackInput, ipAddress, userAgent *string) (*models.Feedback, error)
	UpdateFeedback(ctx context.Context, id int64, patch models.FeedbackPatch) (*models.Feedback, error)
	// DeleteFeedback reports whether a record was removed.
	DeleteFeedback(ctx context.Context, id int64) (bool, error)
}

type UserRepo interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, in models.UserInput) (*models.User, error)
}

// Storage is the full backing store selected at startup.
type Storage interface {
	FeedbackRepo
	UserRepo

	// Kind names the backing medium: "memory", "postgres" or "sqlite".
	Kind() string
	Close() error
}
