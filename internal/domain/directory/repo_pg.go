package directory

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oxycare/oxycare/internal/platform/db"
)

type directoryPG struct{ pool *pgxpool.Pool }

func NewDirectoryPG(pool *pgxpool.Pool) Directory {
	return &directoryPG{pool: pool}
}

func (r *directoryPG) Patient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	var p Patient
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id, patient_code, last_name, first_name, birth_date, phone, address, city, insurer
		FROM patients WHERE id = $1`, id).
		Scan(&p.ID, &p.Code, &p.LastName, &p.FirstName, &p.BirthDate, &p.Phone, &p.Address, &p.City, &p.Insurer)
	if err != nil {
		return nil, db.MapError(err, "patient")
	}
	return &p, nil
}

func (r *directoryPG) Device(ctx context.Context, id uuid.UUID) (*Device, error) {
	var d Device
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id, patient_id, designation, reference, serial_number, status
		FROM devices WHERE id = $1`, id).
		Scan(&d.ID, &d.PatientID, &d.Designation, &d.Reference, &d.SerialNumber, &d.Status)
	if err != nil {
		return nil, db.MapError(err, "device")
	}
	return &d, nil
}

func (r *directoryPG) Technician(ctx context.Context, id uuid.UUID) (*Technician, error) {
	var t Technician
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id, username, last_name, first_name, role, active
		FROM users WHERE id = $1`, id).
		Scan(&t.ID, &t.Username, &t.LastName, &t.FirstName, &t.Role, &t.Active)
	if err != nil {
		return nil, db.MapError(err, "technician")
	}
	return &t, nil
}
