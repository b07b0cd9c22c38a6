package settings

import (
	"fmt"
	"math"

	"github.com/oxycare/oxycare/internal/platform/apperror"
)

const (
	HumidityMin          = 0
	HumidityMax          = 5
	ExpiratoryReserveMin = 0
	ExpiratoryReserveMax = 3
)

// Validate checks the numeric bounds of every supplied field.
func (p Params) Validate() []apperror.Violation {
	var out []apperror.Violation

	nonNegative := func(field string, v *float64) {
		if v == nil {
			return
		}
		if !finite(*v) || *v < 0 {
			out = append(out, apperror.Violation{Field: field, Code: "out_of_range", Message: "must be a number >= 0"})
		}
	}
	between := func(field string, v *float64, lo, hi float64) {
		if v == nil {
			return
		}
		if !finite(*v) || *v < lo || *v > hi {
			out = append(out, apperror.Violation{
				Field:   field,
				Code:    "out_of_range",
				Message: fmt.Sprintf("must be between %g and %g", lo, hi),
			})
		}
	}

	nonNegative("settings.max_pressure", p.MaxPressure)
	nonNegative("settings.min_pressure", p.MinPressure)
	nonNegative("settings.ramp_pressure", p.RampPressure)
	between("settings.humidity", p.Humidity, HumidityMin, HumidityMax)
	between("settings.expiratory_reserve", p.ExpiratoryReserve, ExpiratoryReserveMin, ExpiratoryReserveMax)
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
