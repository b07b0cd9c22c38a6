package intervention

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/oxycare/oxycare/internal/domain/directory"
	"github.com/oxycare/oxycare/internal/domain/settings"
	"github.com/oxycare/oxycare/internal/platform/apperror"
	"github.com/oxycare/oxycare/internal/platform/auth"
	"github.com/oxycare/oxycare/internal/platform/events"
	"github.com/oxycare/oxycare/internal/platform/metrics"
	"github.com/oxycare/oxycare/pkg/pagination"
)

// TxRunner runs a unit of work in one database transaction.
// *db.TxManager satisfies it.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	WithReadTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service is the role-scoped entry point for intervention reads and writes.
// Every write validates in memory, then persists inside one transaction.
type Service struct {
	repo     Repository
	dir      directory.Directory
	settings *settings.Manager
	tx       TxRunner
	events   events.Publisher
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, dir directory.Directory, sm *settings.Manager, tx TxRunner, pub events.Publisher, logger zerolog.Logger) *Service {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &Service{
		repo:     repo,
		dir:      dir,
		settings: sm,
		tx:       tx,
		events:   pub,
		logger:   logger.With().Str("component", "intervention").Logger(),
		now:      time.Now,
	}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func principal(ctx context.Context) (auth.Principal, error) {
	p, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return auth.Principal{}, apperror.Unauthenticated("authentication required")
	}
	return p, nil
}

// authorize lets admins through and technicians only onto their own records.
func authorize(p auth.Principal, iv *Intervention) error {
	if p.IsAdmin() || iv.TechnicianID == p.UserID {
		return nil
	}
	return apperror.Forbidden("intervention is assigned to another technician")
}

// scope pins technician callers to their own interventions.
func scope(p auth.Principal, f Filter) Filter {
	if !p.IsAdmin() {
		id := p.UserID
		f.TechnicianID = &id
	}
	return f
}

func (s *Service) List(ctx context.Context, f Filter, page pagination.Params) (pagination.Page[*Detail], error) {
	p, err := principal(ctx)
	if err != nil {
		return pagination.Page[*Detail]{}, err
	}
	f = scope(p, f)

	var (
		items []*Detail
		total int
	)
	err = s.tx.WithReadTx(ctx, func(ctx context.Context) error {
		var err error
		items, total, err = s.repo.List(ctx, f, page.Limit(), page.Offset())
		return err
	})
	if err != nil {
		return pagination.Page[*Detail]{}, err
	}
	return pagination.NewPage(items, total, page), nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Detail, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	var d *Detail
	err = s.tx.WithReadTx(ctx, func(ctx context.Context) error {
		var err error
		d, err = s.repo.GetDetail(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := authorize(p, d.Intervention); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) Stats(ctx context.Context, f Filter) (*Stats, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	f = scope(p, f)
	var st *Stats
	err = s.tx.WithReadTx(ctx, func(ctx context.Context) error {
		var err error
		st, err = s.repo.Stats(ctx, f)
		return err
	})
	return st, err
}

// Create validates and stores a new intervention. Status defaults to
// Scheduled; a technician caller is always the assigned technician.
func (s *Service) Create(ctx context.Context, in Payload) (*Detail, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	if !p.IsAdmin() && in.TechnicianID.Set && (in.TechnicianID.Null || in.TechnicianID.Value != p.UserID) {
		return nil, apperror.Forbidden("technicians can only create their own interventions")
	}

	iv := &Intervention{Status: StatusScheduled}
	in.applyTo(iv)
	if !p.IsAdmin() {
		iv.TechnicianID = p.UserID
	}

	now := s.now().UTC()
	if err := s.check(nil, iv, in.Settings, now); err != nil {
		return nil, err
	}

	var out *Detail
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.checkRefs(ctx, nil, iv); err != nil {
			return err
		}
		if in.Settings != nil {
			rec, err := s.settings.Attach(ctx, nil, iv.DeviceID, *in.Settings)
			if err != nil {
				return err
			}
			if rec != nil {
				iv.SettingsID = &rec.ID
			}
		}
		if err := s.repo.Create(ctx, iv); err != nil {
			return err
		}
		var err error
		out, err = s.repo.GetDetail(ctx, iv.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("intervention_id", iv.ID.String()).Str("status", string(iv.Status)).Msg("intervention created")
	s.statusChanged(ctx, p, iv, "")
	return out, nil
}

// Update merges the supplied fields into the stored record. Fields absent
// from the payload keep their value.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in Payload) (*Detail, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}

	var (
		out  *Detail
		prev *Intervention
		next *Intervention
	)
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		prev, err = s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := authorize(p, prev); err != nil {
			return err
		}
		if !p.IsAdmin() && in.TechnicianID.Set && (in.TechnicianID.Null || in.TechnicianID.Value != p.UserID) {
			return apperror.Forbidden("technicians cannot reassign interventions")
		}
		if in.VersionID != nil && *in.VersionID != prev.VersionID {
			return apperror.Conflict("intervention was modified since it was read", nil)
		}

		next = prev.Clone()
		if in.Status.Set && !in.Status.Null && in.Status.Value != prev.Status {
			leave(next, prev.Status)
		}
		in.applyTo(next)

		if err := s.check(prev, next, in.Settings, s.now().UTC()); err != nil {
			return err
		}
		if err := s.checkRefs(ctx, prev, next); err != nil {
			return err
		}
		if err := s.syncSettings(ctx, prev, next, in.Settings); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, next); err != nil {
			return err
		}
		out, err = s.repo.GetDetail(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	if next.Status != prev.Status {
		s.statusChanged(ctx, p, next, prev.Status)
	}
	return out, nil
}

// ChangeStatus runs a status-only change through the same path as Update.
func (s *Service) ChangeStatus(ctx context.Context, id uuid.UUID, in StatusPayload) (*Detail, error) {
	if !in.Status.Set || in.Status.Null {
		return nil, apperror.Validation(required("status", "is required"))
	}
	return s.Update(ctx, id, in.Payload())
}

// Delete removes the intervention and its settings record.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	p, err := principal(ctx)
	if err != nil {
		return err
	}
	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		prev, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := authorize(p, prev); err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, id); err != nil {
			return err
		}
		return s.settings.Detach(ctx, prev.SettingsID)
	})
}

// UpsertSettings creates or merges the settings record of an intervention.
func (s *Service) UpsertSettings(ctx context.Context, id uuid.UUID, params settings.Params) (*settings.Record, error) {
	var rec *settings.Record
	err := s.mutate(ctx, id, func(ctx context.Context, iv *Intervention) error {
		if iv.SettingsID == nil && params.IsEmpty() {
			return apperror.Validation(required("settings", "at least one setting is required"))
		}
		var err error
		rec, err = s.settings.Attach(ctx, iv.SettingsID, iv.DeviceID, params)
		if err != nil {
			return err
		}
		iv.SettingsID = &rec.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ClearSettings detaches and deletes the settings record.
func (s *Service) ClearSettings(ctx context.Context, id uuid.UUID) error {
	var detached *uuid.UUID
	_, err := s.mutateDetail(ctx, id, func(ctx context.Context, iv *Intervention) error {
		if iv.SettingsID == nil {
			return apperror.NotFound("settings record", nil)
		}
		detached, iv.SettingsID = iv.SettingsID, nil
		return nil
	}, func(ctx context.Context) error {
		return s.settings.Detach(ctx, detached)
	})
	return err
}

// AddPhotos appends photo references, skipping ones already recorded.
func (s *Service) AddPhotos(ctx context.Context, id uuid.UUID, refs []string) (*Detail, error) {
	if len(refs) == 0 {
		return nil, apperror.Validation(required("photos", "at least one photo reference is required"))
	}
	var clean []string
	for _, r := range refs {
		r = strings.TrimSpace(r)
		if r == "" {
			return nil, apperror.Validation(required("photos", "photo reference must not be empty"))
		}
		clean = append(clean, r)
	}
	return s.mutateDetail(ctx, id, func(_ context.Context, iv *Intervention) error {
		for _, r := range clean {
			if !member(iv.Photos, r) {
				iv.Photos = append(iv.Photos, r)
			}
		}
		return nil
	}, nil)
}

// SetSignature records the technician signature of a completed intervention.
func (s *Service) SetSignature(ctx context.Context, id uuid.UUID, ref string) (*Detail, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, apperror.Validation(required("technician_signature", "is required"))
	}
	return s.mutateDetail(ctx, id, func(_ context.Context, iv *Intervention) error {
		if err := requireCompleted(iv, "a signature"); err != nil {
			return err
		}
		iv.TechnicianSignature = &ref
		return nil
	}, nil)
}

// RecordReport stores the location of the generated report document.
func (s *Service) RecordReport(ctx context.Context, id uuid.UUID, url string) error {
	return s.mutate(ctx, id, func(_ context.Context, iv *Intervention) error {
		if err := requireCompleted(iv, "a report"); err != nil {
			return err
		}
		iv.ReportURL = &url
		return nil
	})
}

func requireCompleted(iv *Intervention, what string) error {
	if iv.Status == StatusCompleted {
		return nil
	}
	return apperror.Validation(apperror.Violation{
		Field:   "status",
		Code:    "invalid_state",
		Message: what + " can only be recorded once the intervention is Completed",
	})
}

func (s *Service) mutate(ctx context.Context, id uuid.UUID, fn func(ctx context.Context, iv *Intervention) error) error {
	_, err := s.mutateDetail(ctx, id, fn, nil)
	return err
}

// mutateDetail loads, authorizes, edits and saves one intervention in a
// transaction. after runs once the row is written, still inside it.
func (s *Service) mutateDetail(ctx context.Context, id uuid.UUID, fn func(ctx context.Context, iv *Intervention) error, after func(ctx context.Context) error) (*Detail, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	var out *Detail
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		prev, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := authorize(p, prev); err != nil {
			return err
		}
		next := prev.Clone()
		if err := fn(ctx, next); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, next); err != nil {
			return err
		}
		if after != nil {
			if err := after(ctx); err != nil {
				return err
			}
		}
		out, err = s.repo.GetDetail(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// check applies the status side effects to next and validates the result.
// Nothing is written when it fails.
func (s *Service) check(prev, next *Intervention, sp *settings.Params, now time.Time) error {
	var violations []apperror.Violation
	tr, tv := TransitionFor(next.Status, next.CancellationReason, next.RescheduledAt)
	violations = append(violations, tv...)
	if tr != nil && entering(prev, next) {
		tr.apply(next, now)
	}
	violations = append(violations, Validate(prev, next, now)...)
	if sp != nil {
		violations = append(violations, sp.Validate()...)
	}
	violations = dedupe(violations)
	if len(violations) == 0 {
		return nil
	}
	for _, v := range violations {
		metrics.ValidationFailuresTotal.WithLabelValues(v.Code).Inc()
	}
	return apperror.Validation(violations...)
}

// entering reports whether next moves into its status, or moves the
// reschedule date, so that the status side effects are due. Edits made while
// the status stays put are kept as sent.
func entering(prev, next *Intervention) bool {
	if prev == nil || prev.Status != next.Status {
		return true
	}
	return next.Status == StatusRescheduled && next.RescheduledAt != nil && rescheduleChanged(prev, next)
}

// checkRefs resolves every reference that is new or changed.
func (s *Service) checkRefs(ctx context.Context, prev, next *Intervention) error {
	if prev == nil || prev.PatientID != next.PatientID {
		if _, err := s.dir.Patient(ctx, next.PatientID); err != nil {
			return err
		}
	}
	if prev == nil || prev.DeviceID != next.DeviceID {
		if _, err := s.dir.Device(ctx, next.DeviceID); err != nil {
			return err
		}
	}
	if prev == nil || prev.TechnicianID != next.TechnicianID {
		if _, err := s.dir.Technician(ctx, next.TechnicianID); err != nil {
			return err
		}
	}
	return nil
}

// syncSettings applies supplied settings and keeps an attached record on
// the intervention's current device.
func (s *Service) syncSettings(ctx context.Context, prev, next *Intervention, sp *settings.Params) error {
	deviceMoved := prev.DeviceID != next.DeviceID && next.SettingsID != nil
	if sp == nil && !deviceMoved {
		return nil
	}
	var params settings.Params
	if sp != nil {
		params = *sp
	}
	rec, err := s.settings.Attach(ctx, next.SettingsID, next.DeviceID, params)
	if err != nil {
		return err
	}
	if rec != nil {
		next.SettingsID = &rec.ID
	}
	return nil
}

// statusChanged is called after commit. Broker failures are logged only;
// the write has already succeeded.
func (s *Service) statusChanged(ctx context.Context, p auth.Principal, iv *Intervention, from Status) {
	fromLabel := string(from)
	if fromLabel == "" {
		fromLabel = "none"
	}
	metrics.StatusTransitionsTotal.WithLabelValues(fromLabel, string(iv.Status)).Inc()

	evt := events.Event{
		ID:          uuid.New(),
		Type:        events.TypeStatusChanged,
		AggregateID: iv.ID,
		OccurredAt:  s.now().UTC(),
		Payload: events.StatusChanged{
			InterventionID: iv.ID,
			From:           string(from),
			To:             string(iv.Status),
			TechnicianID:   iv.TechnicianID,
			PatientID:      iv.PatientID,
			ChangedBy:      p.UserID,
		},
	}
	if err := s.events.Publish(ctx, evt); err != nil {
		s.logger.Warn().Err(err).
			Str("intervention_id", iv.ID.String()).
			Str("to", string(iv.Status)).
			Msg("failed to publish status change")
	}
}
