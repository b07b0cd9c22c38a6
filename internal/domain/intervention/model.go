package intervention

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oxycare/oxycare/internal/domain/directory"
	"github.com/oxycare/oxycare/internal/domain/settings"
)

// Intervention is one scheduled or performed technician visit.
type Intervention struct {
	ID           uuid.UUID  `json:"id"`
	PatientID    uuid.UUID  `json:"patient_id"`
	DeviceID     uuid.UUID  `json:"device_id"`
	TechnicianID uuid.UUID  `json:"technician_id"`
	SettingsID   *uuid.UUID `json:"settings_id"`

	Treatment        Treatment         `json:"treatment"`
	InterventionType InterventionType  `json:"intervention_type"`
	ScheduledAt      time.Time         `json:"scheduled_at"`
	ActualAt         *time.Time        `json:"actual_at"`
	Location         *string           `json:"location"`
	EquipmentState   *EquipmentState   `json:"equipment_state"`
	ConcentratorType *ConcentratorType `json:"concentrator_type"`
	VentilationMode  *VentilationMode  `json:"ventilation_mode"`
	MaskType         *MaskType         `json:"mask_type"`
	Status           Status            `json:"status"`

	ActionsPerformed json.RawMessage      `json:"actions_performed"`
	AccessoriesUsed  json.RawMessage      `json:"accessories_used"`
	SafetyChecks     map[SafetyCheck]bool `json:"safety_checks"`
	TestsPerformed   map[DeviceTest]bool  `json:"tests_performed"`
	ConsumablesUsed  map[Consumable]bool  `json:"consumables_used"`
	Parameters       map[string]float64   `json:"parameters"`
	Photos           []string             `json:"photos"`

	TechnicianSignature   *string    `json:"technician_signature"`
	ReportURL             *string    `json:"report_url"`
	Remarks               *string    `json:"remarks"`
	CancellationReason    *string    `json:"cancellation_reason"`
	RescheduledAt         *time.Time `json:"rescheduled_at"`
	PreventiveMaintenance bool       `json:"preventive_maintenance"`
	NextMaintenanceAt     *time.Time `json:"next_maintenance_at"`

	VersionID int       `json:"version_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy so a candidate can be edited without touching
// the stored snapshot.
func (iv *Intervention) Clone() *Intervention {
	c := *iv
	c.SettingsID = clonePtr(iv.SettingsID)
	c.ActualAt = clonePtr(iv.ActualAt)
	c.Location = clonePtr(iv.Location)
	c.EquipmentState = clonePtr(iv.EquipmentState)
	c.ConcentratorType = clonePtr(iv.ConcentratorType)
	c.VentilationMode = clonePtr(iv.VentilationMode)
	c.MaskType = clonePtr(iv.MaskType)
	c.TechnicianSignature = clonePtr(iv.TechnicianSignature)
	c.ReportURL = clonePtr(iv.ReportURL)
	c.Remarks = clonePtr(iv.Remarks)
	c.CancellationReason = clonePtr(iv.CancellationReason)
	c.RescheduledAt = clonePtr(iv.RescheduledAt)
	c.NextMaintenanceAt = clonePtr(iv.NextMaintenanceAt)
	c.ActionsPerformed = append(json.RawMessage(nil), iv.ActionsPerformed...)
	c.AccessoriesUsed = append(json.RawMessage(nil), iv.AccessoriesUsed...)
	c.SafetyChecks = cloneMap(iv.SafetyChecks)
	c.TestsPerformed = cloneMap(iv.TestsPerformed)
	c.ConsumablesUsed = cloneMap(iv.ConsumablesUsed)
	c.Parameters = cloneMap(iv.Parameters)
	c.Photos = append([]string(nil), iv.Photos...)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return nil
	}
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Detail is an intervention with its related records resolved.
type Detail struct {
	*Intervention
	Patient    *directory.Patient    `json:"patient,omitempty"`
	Device     *directory.Device     `json:"device,omitempty"`
	Technician *directory.Technician `json:"technician,omitempty"`
	Settings   *settings.Record      `json:"settings,omitempty"`
}

// Payload is a create or partial-update request body. Only fields present in
// the JSON document are applied; an explicit null clears the field.
type Payload struct {
	PatientID    Field[uuid.UUID] `json:"patient_id"`
	DeviceID     Field[uuid.UUID] `json:"device_id"`
	TechnicianID Field[uuid.UUID] `json:"technician_id"`

	Treatment        Field[Treatment]        `json:"treatment"`
	InterventionType Field[InterventionType] `json:"intervention_type"`
	ScheduledAt      Field[DateTime]         `json:"scheduled_at"`
	ActualAt         Field[DateTime]         `json:"actual_at"`
	Location         Field[string]           `json:"location"`
	EquipmentState   Field[EquipmentState]   `json:"equipment_state"`
	ConcentratorType Field[ConcentratorType] `json:"concentrator_type"`
	VentilationMode  Field[VentilationMode]  `json:"ventilation_mode"`
	MaskType         Field[MaskType]         `json:"mask_type"`
	Status           Field[Status]           `json:"status"`

	ActionsPerformed Field[json.RawMessage]      `json:"actions_performed"`
	AccessoriesUsed  Field[json.RawMessage]      `json:"accessories_used"`
	SafetyChecks     Field[map[SafetyCheck]bool] `json:"safety_checks"`
	TestsPerformed   Field[map[DeviceTest]bool]  `json:"tests_performed"`
	ConsumablesUsed  Field[map[Consumable]bool]  `json:"consumables_used"`
	Parameters       Field[map[string]float64]   `json:"parameters"`
	Photos           Field[[]string]             `json:"photos"`

	TechnicianSignature   Field[string]   `json:"technician_signature"`
	Remarks               Field[string]   `json:"remarks"`
	CancellationReason    Field[string]   `json:"cancellation_reason"`
	RescheduledAt         Field[DateTime] `json:"rescheduled_at"`
	PreventiveMaintenance Field[bool]     `json:"preventive_maintenance"`
	NextMaintenanceAt     Field[DateTime] `json:"next_maintenance_at"`

	Settings  *settings.Params `json:"settings"`
	VersionID *int             `json:"version_id"`
}

// StatusPayload is the body of the status-only endpoint.
type StatusPayload struct {
	Status             Field[Status]   `json:"status"`
	CancellationReason Field[string]   `json:"cancellation_reason"`
	RescheduledAt      Field[DateTime] `json:"rescheduled_at"`
	VersionID          *int            `json:"version_id"`
}

// Payload converts the status body into a partial update.
func (s StatusPayload) Payload() Payload {
	return Payload{
		Status:             s.Status,
		CancellationReason: s.CancellationReason,
		RescheduledAt:      s.RescheduledAt,
		VersionID:          s.VersionID,
	}
}

// applyTo merges every supplied field into iv.
func (p *Payload) applyTo(iv *Intervention) {
	setValue(p.PatientID, &iv.PatientID)
	setValue(p.DeviceID, &iv.DeviceID)
	setValue(p.TechnicianID, &iv.TechnicianID)
	setValue(p.Treatment, &iv.Treatment)
	setValue(p.InterventionType, &iv.InterventionType)
	if p.ScheduledAt.Set {
		iv.ScheduledAt = p.ScheduledAt.Value.Time
		if p.ScheduledAt.Null {
			iv.ScheduledAt = time.Time{}
		}
	}
	setTime(p.ActualAt, &iv.ActualAt)
	setText(p.Location, &iv.Location)
	setPtr(p.EquipmentState, &iv.EquipmentState)
	setPtr(p.ConcentratorType, &iv.ConcentratorType)
	setPtr(p.VentilationMode, &iv.VentilationMode)
	setPtr(p.MaskType, &iv.MaskType)
	setValue(p.Status, &iv.Status)
	setValue(p.ActionsPerformed, &iv.ActionsPerformed)
	setValue(p.AccessoriesUsed, &iv.AccessoriesUsed)
	setValue(p.SafetyChecks, &iv.SafetyChecks)
	setValue(p.TestsPerformed, &iv.TestsPerformed)
	setValue(p.ConsumablesUsed, &iv.ConsumablesUsed)
	setValue(p.Parameters, &iv.Parameters)
	setValue(p.Photos, &iv.Photos)
	setText(p.TechnicianSignature, &iv.TechnicianSignature)
	setText(p.Remarks, &iv.Remarks)
	setText(p.CancellationReason, &iv.CancellationReason)
	setTime(p.RescheduledAt, &iv.RescheduledAt)
	setValue(p.PreventiveMaintenance, &iv.PreventiveMaintenance)
	setTime(p.NextMaintenanceAt, &iv.NextMaintenanceAt)
}

func setValue[T any](f Field[T], dst *T) {
	if !f.Set {
		return
	}
	if f.Null {
		var zero T
		*dst = zero
		return
	}
	*dst = f.Value
}

func setPtr[T any](f Field[T], dst **T) {
	if !f.Set {
		return
	}
	if f.Null {
		*dst = nil
		return
	}
	v := f.Value
	*dst = &v
}

// setText treats blank strings as absent.
func setText(f Field[string], dst **string) {
	if !f.Set {
		return
	}
	s := strings.TrimSpace(f.Value)
	if f.Null || s == "" {
		*dst = nil
		return
	}
	*dst = &s
}

func setTime(f Field[DateTime], dst **time.Time) {
	if !f.Set {
		return
	}
	if f.Null {
		*dst = nil
		return
	}
	t := f.Value.Time
	*dst = &t
}

// Filter narrows a list or statistics query. Nil fields are ignored.
type Filter struct {
	Search       string
	TechnicianID *uuid.UUID
	Status       *Status
	Type         *InterventionType
	Treatment    *Treatment
	PatientID    *uuid.UUID
	DeviceID     *uuid.UUID
	From         *time.Time
	To           *time.Time
}

// Stats summarises the interventions matching a filter.
type Stats struct {
	Total       int                      `json:"total"`
	ByStatus    map[Status]int           `json:"par_statut"`
	ByTreatment map[Treatment]int        `json:"par_traitement"`
	ByType      map[InterventionType]int `json:"par_type"`
}
