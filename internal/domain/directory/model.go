// Package directory resolves the patients, devices and technicians an
// intervention refers to. Those records are administered elsewhere; this
// package only reads them.
package directory

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Patient struct {
	ID        uuid.UUID  `json:"id"`
	Code      *string    `json:"patient_code,omitempty"`
	LastName  *string    `json:"last_name,omitempty"`
	FirstName *string    `json:"first_name,omitempty"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
	Phone     *string    `json:"phone,omitempty"`
	Address   *string    `json:"address,omitempty"`
	City      *string    `json:"city,omitempty"`
	Insurer   *string    `json:"insurer,omitempty"`
}

func (p *Patient) FullName() string {
	return joinName(p.FirstName, p.LastName)
}

type Device struct {
	ID           uuid.UUID  `json:"id"`
	PatientID    *uuid.UUID `json:"patient_id,omitempty"`
	Designation  *string    `json:"designation,omitempty"`
	Reference    *string    `json:"reference,omitempty"`
	SerialNumber *string    `json:"serial_number,omitempty"`
	Status       string     `json:"status"`
}

type Technician struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	LastName  *string   `json:"last_name,omitempty"`
	FirstName *string   `json:"first_name,omitempty"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
}

// FullName falls back to the username when no name is on file.
func (t *Technician) FullName() string {
	if n := joinName(t.FirstName, t.LastName); n != "" {
		return n
	}
	return t.Username
}

func joinName(first, last *string) string {
	var parts []string
	for _, p := range []*string{first, last} {
		if p != nil && strings.TrimSpace(*p) != "" {
			parts = append(parts, strings.TrimSpace(*p))
		}
	}
	return strings.Join(parts, " ")
}
