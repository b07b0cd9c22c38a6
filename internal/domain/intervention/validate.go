package intervention

import (
	"bytes"
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oxycare/oxycare/internal/platform/apperror"
)

// Violation codes returned in the 422 details list.
const (
	CodeRequired    = "required"
	CodeInvalid     = "invalid"
	CodeNotAllowed  = "not_allowed"
	CodeNotInFuture = "not_in_future"
	CodeInvalidKey  = "invalid_key"
)

func required(field, msg string) apperror.Violation {
	return apperror.Violation{Field: field, Code: CodeRequired, Message: msg}
}

func invalid(field, value string) apperror.Violation {
	return apperror.Violation{Field: field, Code: CodeInvalid, Message: fmt.Sprintf("unknown value %q", value)}
}

func notAllowed(field, msg string) apperror.Violation {
	return apperror.Violation{Field: field, Code: CodeNotAllowed, Message: msg}
}

// Validate checks a candidate intervention against the treatment-dependent
// field rules. prev is the stored version (nil on create) and now is the
// validation instant. It does not modify iv and returns every violation found.
func Validate(prev, iv *Intervention, now time.Time) []apperror.Violation {
	var out []apperror.Violation
	add := func(v ...apperror.Violation) { out = append(out, v...) }

	for _, ref := range []struct {
		field string
		id    uuid.UUID
	}{
		{"patient_id", iv.PatientID},
		{"device_id", iv.DeviceID},
		{"technician_id", iv.TechnicianID},
	} {
		if ref.id == uuid.Nil {
			add(required(ref.field, "is required"))
		}
	}
	if iv.ScheduledAt.IsZero() {
		add(required("scheduled_at", "is required"))
	}

	treatmentOK := false
	switch {
	case iv.Treatment == "":
		add(required("treatment", "is required"))
	case !iv.Treatment.Valid():
		add(invalid("treatment", string(iv.Treatment)))
	default:
		treatmentOK = true
	}

	switch {
	case iv.InterventionType == "":
		add(required("intervention_type", "is required"))
	case !iv.InterventionType.Valid():
		add(invalid("intervention_type", string(iv.InterventionType)))
	case treatmentOK && !member(AllowedTypes(iv.Treatment), iv.InterventionType):
		add(notAllowed("intervention_type",
			fmt.Sprintf("%s is not allowed for treatment %s", iv.InterventionType, iv.Treatment)))
	}

	switch {
	case iv.Status == "":
		add(required("status", "is required"))
	case !iv.Status.Valid():
		add(invalid("status", string(iv.Status)))
	}

	if iv.EquipmentState != nil && !iv.EquipmentState.Valid() {
		add(invalid("equipment_state", string(*iv.EquipmentState)))
	}

	if treatmentOK {
		add(conditional(iv)...)
		add(checklistKeys(iv)...)
	}
	add(companions(prev, iv, now)...)

	for _, key := range slices.Sorted(maps.Keys(iv.ConsumablesUsed)) {
		if !member(Consumables, key) {
			add(apperror.Violation{Field: "consumables_used." + string(key), Code: CodeInvalidKey, Message: "unknown consumable"})
		}
	}
	for _, name := range slices.Sorted(maps.Keys(iv.Parameters)) {
		v := iv.Parameters[name]
		if strings.TrimSpace(name) == "" {
			add(apperror.Violation{Field: "parameters", Code: CodeInvalidKey, Message: "parameter name must not be empty"})
			continue
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			add(apperror.Violation{Field: "parameters." + name, Code: CodeInvalid, Message: "must be a finite number"})
		}
	}
	for i, ref := range iv.Photos {
		if strings.TrimSpace(ref) == "" {
			add(apperror.Violation{Field: fmt.Sprintf("photos[%d]", i), Code: CodeRequired, Message: "photo reference must not be empty"})
		}
	}
	if !isObjectOrNull(iv.ActionsPerformed) {
		add(apperror.Violation{Field: "actions_performed", Code: CodeInvalid, Message: "must be a JSON object"})
	}
	if !isObjectOrNull(iv.AccessoriesUsed) {
		add(apperror.Violation{Field: "accessories_used", Code: CodeInvalid, Message: "must be a JSON object"})
	}

	return dedupe(out)
}

// conditional rejects treatment-specific fields outside their treatment and
// unknown values inside it.
func conditional(iv *Intervention) []apperror.Violation {
	var out []apperror.Violation
	check := func(field string, enabled, valid bool, value string) {
		if !enabled {
			out = append(out, notAllowed(field, fmt.Sprintf("must be empty for treatment %s", iv.Treatment)))
			return
		}
		if !valid {
			out = append(out, invalid(field, value))
		}
	}
	if c := iv.ConcentratorType; c != nil {
		check("concentrator_type", iv.Treatment.UsesConcentrator(), c.Valid(), string(*c))
	}
	if m := iv.VentilationMode; m != nil {
		check("ventilation_mode", iv.Treatment.UsesVentilation(), m.Valid(), string(*m))
	}
	if m := iv.MaskType; m != nil {
		check("mask_type", iv.Treatment.UsesVentilation(), m.Valid(), string(*m))
	}
	return out
}

func checklistKeys(iv *Intervention) []apperror.Violation {
	var out []apperror.Violation
	allowedChecks := SafetyChecksFor(iv.Treatment)
	for _, key := range slices.Sorted(maps.Keys(iv.SafetyChecks)) {
		if !member(allowedChecks, key) {
			out = append(out, apperror.Violation{
				Field:   "safety_checks." + string(key),
				Code:    CodeInvalidKey,
				Message: fmt.Sprintf("not a safety check for treatment %s", iv.Treatment),
			})
		}
	}
	allowedTests := DeviceTestsFor(iv.Treatment)
	for _, key := range slices.Sorted(maps.Keys(iv.TestsPerformed)) {
		if !member(allowedTests, key) {
			out = append(out, apperror.Violation{
				Field:   "tests_performed." + string(key),
				Code:    CodeInvalidKey,
				Message: fmt.Sprintf("not a test for treatment %s", iv.Treatment),
			})
		}
	}
	return out
}

// companions enforces the fields tied to a status: a cancellation reason
// only while Cancelled, a new date only while Rescheduled, and actual_at
// once Completed.
func companions(prev, iv *Intervention, now time.Time) []apperror.Violation {
	var out []apperror.Violation

	hasReason := iv.CancellationReason != nil && strings.TrimSpace(*iv.CancellationReason) != ""
	switch {
	case iv.Status == StatusCancelled && !hasReason:
		out = append(out, required("cancellation_reason", "is required when status is Cancelled"))
	case iv.Status != StatusCancelled && iv.CancellationReason != nil:
		out = append(out, notAllowed("cancellation_reason", "is only allowed when status is Cancelled"))
	}

	switch {
	case iv.Status == StatusRescheduled && iv.RescheduledAt == nil:
		out = append(out, required("rescheduled_at", "is required when status is Rescheduled"))
	case iv.Status != StatusRescheduled && iv.RescheduledAt != nil:
		out = append(out, notAllowed("rescheduled_at", "is only allowed when status is Rescheduled"))
	case iv.RescheduledAt != nil && rescheduleChanged(prev, iv) && !iv.RescheduledAt.After(now):
		out = append(out, apperror.Violation{Field: "rescheduled_at", Code: CodeNotInFuture, Message: "must be in the future"})
	}

	if iv.Status == StatusCompleted && iv.ActualAt == nil {
		out = append(out, required("actual_at", "is required when status is Completed"))
	}
	return out
}

// An unchanged stored date is not re-checked against the clock.
func rescheduleChanged(prev, iv *Intervention) bool {
	if prev == nil || prev.RescheduledAt == nil || prev.Status != StatusRescheduled {
		return true
	}
	return !prev.RescheduledAt.Equal(*iv.RescheduledAt)
}

func isObjectOrNull(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return true
	}
	return raw[0] == '{'
}

func dedupe(in []apperror.Violation) []apperror.Violation {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, v := range in {
		k := v.Field + "\x00" + v.Code
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, v)
	}
	return out
}
