package settings

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oxycare/oxycare/internal/platform/apperror"
	"github.com/oxycare/oxycare/internal/platform/db"
)

type settingsRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &settingsRepoPG{pool: pool}
}

const settingsCols = `id, device_id, max_pressure, min_pressure, ramp_pressure,
	humidity, expiratory_reserve, comment, created_at, updated_at`

func scanRecord(row pgx.Row) (*Record, error) {
	var r Record
	err := row.Scan(&r.ID, &r.DeviceID, &r.MaxPressure, &r.MinPressure, &r.RampPressure,
		&r.Humidity, &r.ExpiratoryReserve, &r.Comment, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, db.MapError(err, "settings record")
	}
	return &r, nil
}

func (s *settingsRepoPG) Create(ctx context.Context, r *Record) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	err := db.Conn(ctx, s.pool).QueryRow(ctx, `
		INSERT INTO settings_records (id, device_id, max_pressure, min_pressure, ramp_pressure,
			humidity, expiratory_reserve, comment)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		r.ID, r.DeviceID, r.MaxPressure, r.MinPressure, r.RampPressure,
		r.Humidity, r.ExpiratoryReserve, r.Comment).Scan(&r.CreatedAt, &r.UpdatedAt)
	return db.MapError(err, "device")
}

func (s *settingsRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	return scanRecord(db.Conn(ctx, s.pool).QueryRow(ctx,
		`SELECT `+settingsCols+` FROM settings_records WHERE id = $1`, id))
}

func (s *settingsRepoPG) Update(ctx context.Context, r *Record) error {
	err := db.Conn(ctx, s.pool).QueryRow(ctx, `
		UPDATE settings_records SET device_id=$2, max_pressure=$3, min_pressure=$4, ramp_pressure=$5,
			humidity=$6, expiratory_reserve=$7, comment=$8, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		r.ID, r.DeviceID, r.MaxPressure, r.MinPressure, r.RampPressure,
		r.Humidity, r.ExpiratoryReserve, r.Comment).Scan(&r.UpdatedAt)
	return db.MapError(err, "settings record")
}

func (s *settingsRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, s.pool).Exec(ctx, `DELETE FROM settings_records WHERE id = $1`, id)
	if err != nil {
		return db.MapError(err, "settings record")
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("settings record", id)
	}
	return nil
}
