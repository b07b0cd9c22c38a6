package intervention

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists interventions. Writes join the transaction bound to ctx.
type Repository interface {
	Create(ctx context.Context, iv *Intervention) error
	Get(ctx context.Context, id uuid.UUID) (*Intervention, error)
	// GetForUpdate locks the row until the enclosing transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Intervention, error)
	GetDetail(ctx context.Context, id uuid.UUID) (*Detail, error)
	// Update writes iv if its VersionID still matches the stored row and
	// advances VersionID. A stale version is a conflict.
	Update(ctx context.Context, iv *Intervention) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*Detail, int, error)
	Stats(ctx context.Context, f Filter) (*Stats, error)
}
