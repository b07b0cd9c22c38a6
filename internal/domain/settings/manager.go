package settings

import (
	"context"

	"github.com/google/uuid"

	"github.com/oxycare/oxycare/internal/platform/apperror"
)

// Manager owns the attach/detach lifecycle of the settings record linked to
// an intervention. Callers run it inside the intervention's transaction.
type Manager struct {
	repo Repository
}

func NewManager(repo Repository) *Manager {
	return &Manager{repo: repo}
}

// Attach creates the record when current is nil, otherwise merges the
// supplied params into the existing one. The record always follows deviceID.
// With nothing to attach it returns (nil, nil).
func (m *Manager) Attach(ctx context.Context, current *uuid.UUID, deviceID uuid.UUID, p Params) (*Record, error) {
	if v := p.Validate(); len(v) > 0 {
		return nil, apperror.Validation(v...)
	}

	if current == nil {
		if p.IsEmpty() {
			return nil, nil
		}
		rec := &Record{DeviceID: deviceID}
		rec.Apply(p)
		if err := m.repo.Create(ctx, rec); err != nil {
			return nil, err
		}
		return rec, nil
	}

	rec, err := m.repo.GetByID(ctx, *current)
	if err != nil {
		return nil, err
	}
	if p.IsEmpty() && rec.DeviceID == deviceID {
		return rec, nil
	}
	rec.Apply(p)
	rec.DeviceID = deviceID
	if err := m.repo.Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Detach deletes the linked record. A nil reference is a no-op.
func (m *Manager) Detach(ctx context.Context, current *uuid.UUID) error {
	if current == nil {
		return nil
	}
	return m.repo.Delete(ctx, *current)
}

// Get loads a record by id.
func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	return m.repo.GetByID(ctx, id)
}
