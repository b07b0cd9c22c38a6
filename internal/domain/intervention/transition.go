package intervention

import (
	"strings"
	"time"

	"github.com/oxycare/oxycare/internal/platform/apperror"
)

// Transition is the entry into a status together with the companion data
// that status requires. The set of variants is closed.
type Transition interface {
	Target() Status
	apply(iv *Intervention, now time.Time)
}

type (
	ToScheduled     struct{}
	ToInProgress    struct{}
	ToCompleted     struct{}
	ToPatientAbsent struct{}
	ToPartial       struct{}
	ToCancelled     struct{ Reason string }
	ToRescheduled   struct{ At time.Time }
)

func (ToScheduled) Target() Status     { return StatusScheduled }
func (ToInProgress) Target() Status    { return StatusInProgress }
func (ToCompleted) Target() Status     { return StatusCompleted }
func (ToPatientAbsent) Target() Status { return StatusPatientAbsent }
func (ToPartial) Target() Status       { return StatusPartial }
func (ToCancelled) Target() Status     { return StatusCancelled }
func (ToRescheduled) Target() Status   { return StatusRescheduled }

func (ToScheduled) apply(*Intervention, time.Time)     {}
func (ToInProgress) apply(*Intervention, time.Time)    {}
func (ToPatientAbsent) apply(*Intervention, time.Time) {}
func (ToPartial) apply(*Intervention, time.Time)       {}

// actual_at is stamped only when missing.
func (ToCompleted) apply(iv *Intervention, now time.Time) {
	if iv.ActualAt == nil {
		t := now
		iv.ActualAt = &t
	}
}

func (t ToCancelled) apply(iv *Intervention, _ time.Time) {
	r := t.Reason
	iv.CancellationReason = &r
}

// The new date replaces the planned one.
func (t ToRescheduled) apply(iv *Intervention, _ time.Time) {
	at := t.At
	iv.RescheduledAt = &at
	iv.ScheduledAt = at
}

// TransitionFor builds the variant for status from the candidate's companion
// fields. A nil transition comes back with at least one violation.
func TransitionFor(status Status, reason *string, at *time.Time) (Transition, []apperror.Violation) {
	switch status {
	case StatusScheduled:
		return ToScheduled{}, nil
	case StatusInProgress:
		return ToInProgress{}, nil
	case StatusCompleted:
		return ToCompleted{}, nil
	case StatusPatientAbsent:
		return ToPatientAbsent{}, nil
	case StatusPartial:
		return ToPartial{}, nil
	case StatusCancelled:
		if reason == nil || strings.TrimSpace(*reason) == "" {
			return nil, []apperror.Violation{required("cancellation_reason", "is required when status is Cancelled")}
		}
		return ToCancelled{Reason: strings.TrimSpace(*reason)}, nil
	case StatusRescheduled:
		if at == nil || at.IsZero() {
			return nil, []apperror.Violation{required("rescheduled_at", "is required when status is Rescheduled")}
		}
		return ToRescheduled{At: *at}, nil
	case "":
		return nil, []apperror.Violation{required("status", "is required")}
	default:
		return nil, []apperror.Violation{invalid("status", string(status))}
	}
}

// leave clears the companion fields owned by the status being left so the
// stored record never carries a reason or date for a status it no longer has.
func leave(iv *Intervention, from Status) {
	switch from {
	case StatusCancelled:
		iv.CancellationReason = nil
	case StatusRescheduled:
		iv.RescheduledAt = nil
	}
}
