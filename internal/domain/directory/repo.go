package directory

import (
	"context"

	"github.com/google/uuid"
)

// Directory looks up externally owned records by id. Missing records are
// reported as apperror NotFound.
type Directory interface {
	Patient(ctx context.Context, id uuid.UUID) (*Patient, error)
	Device(ctx context.Context, id uuid.UUID) (*Device, error)
	Technician(ctx context.Context, id uuid.UUID) (*Technician, error)
}
