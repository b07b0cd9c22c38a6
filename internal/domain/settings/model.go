// Package settings manages the device settings record that may be attached
// to an intervention.
package settings

import (
	"time"

	"github.com/google/uuid"
)

// Record holds the operating parameters captured for one device.
type Record struct {
	ID                uuid.UUID `json:"id"`
	DeviceID          uuid.UUID `json:"device_id"`
	MaxPressure       *float64  `json:"max_pressure,omitempty"`
	MinPressure       *float64  `json:"min_pressure,omitempty"`
	RampPressure      *float64  `json:"ramp_pressure,omitempty"`
	Humidity          *float64  `json:"humidity,omitempty"`
	ExpiratoryReserve *float64  `json:"expiratory_reserve,omitempty"`
	Comment           *string   `json:"comment,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// HasValues reports whether any parameter or the comment is set.
func (r *Record) HasValues() bool {
	return r.MaxPressure != nil || r.MinPressure != nil || r.RampPressure != nil ||
		r.Humidity != nil || r.ExpiratoryReserve != nil || (r.Comment != nil && *r.Comment != "")
}

// Params is a partial settings payload. Nil fields are left unchanged.
type Params struct {
	MaxPressure       *float64 `json:"max_pressure"`
	MinPressure       *float64 `json:"min_pressure"`
	RampPressure      *float64 `json:"ramp_pressure"`
	Humidity          *float64 `json:"humidity"`
	ExpiratoryReserve *float64 `json:"expiratory_reserve"`
	Comment           *string  `json:"comment"`
}

func (p Params) IsEmpty() bool {
	return p.MaxPressure == nil && p.MinPressure == nil && p.RampPressure == nil &&
		p.Humidity == nil && p.ExpiratoryReserve == nil && p.Comment == nil
}

// Apply merges the supplied fields into r.
func (r *Record) Apply(p Params) {
	if p.MaxPressure != nil {
		r.MaxPressure = p.MaxPressure
	}
	if p.MinPressure != nil {
		r.MinPressure = p.MinPressure
	}
	if p.RampPressure != nil {
		r.RampPressure = p.RampPressure
	}
	if p.Humidity != nil {
		r.Humidity = p.Humidity
	}
	if p.ExpiratoryReserve != nil {
		r.ExpiratoryReserve = p.ExpiratoryReserve
	}
	if p.Comment != nil {
		r.Comment = p.Comment
	}
}
