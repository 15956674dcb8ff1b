package practice

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no practice matches the given id.
var ErrNotFound = errors.New("practice not found")

type Repository interface {
	Create(ctx context.Context, p *Practice) error
	Get(ctx context.Context, id uuid.UUID) (*Practice, error)
	Update(ctx context.Context, p *Practice) error
	List(ctx context.Context, limit, offset int) ([]*Practice, int, error)
}
