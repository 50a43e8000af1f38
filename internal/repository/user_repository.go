package repository

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/persistence"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// UserRepository defines persistence access for accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
}

type userRepository struct {
	table *persistence.Table[domain.User]
}

// NewUserRepository returns a repository backed by the JSON-lines file at path.
func NewUserRepository(path string, logger *zap.Logger) UserRepository {
	return &userRepository{table: persistence.NewTable[domain.User](path, logger)}
}

// Create assigns the next id and appends the user. Username uniqueness is
// checked here as well so two registrations cannot share a name.
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	var maxID int64
	for existing, err := range r.table.All(ctx) {
		if err != nil {
			return err
		}
		if existing.Username == user.Username {
			return apperrors.NewDuplicateUsername(user.Username)
		}
		maxID = max(maxID, existing.ID)
	}
	user.ID = maxID + 1
	return r.table.Append(ctx, *user)
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, found, err := r.table.Find(ctx, func(u domain.User) bool { return u.ID == id })
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.NewNotFound("user", map[string]any{"id": id})
	}
	return &user, nil
}

// GetByUsername matches the stored username exactly.
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	user, found, err := r.table.Find(ctx, func(u domain.User) bool { return u.Username == username })
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.NewNotFound("user", map[string]any{"username": username})
	}
	return &user, nil
}

func (r *userRepository) List(ctx context.Context) ([]domain.User, error) {
	return r.table.List(ctx)
}
