package intervention

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oxycare/oxycare/internal/domain/directory"
	"github.com/oxycare/oxycare/internal/domain/settings"
	"github.com/oxycare/oxycare/internal/platform/apperror"
	"github.com/oxycare/oxycare/internal/platform/db"
)

type interventionRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &interventionRepoPG{pool: pool}
}

const interventionCols = `i.id, i.patient_id, i.device_id, i.technician_id, i.settings_id,
	COALESCE(i.treatment, ''), i.intervention_type, i.scheduled_at, i.actual_at, i.location,
	i.equipment_state, i.concentrator_type, i.ventilation_mode, i.mask_type, i.status,
	i.actions_performed, i.accessories_used, i.safety_checks, i.tests_performed,
	i.consumables_used, i.parameters, i.photos,
	i.technician_signature, i.report_url, i.remarks, i.cancellation_reason, i.rescheduled_at,
	i.preventive_maintenance, i.next_maintenance_at, i.version_id, i.created_at, i.updated_at`

const relatedCols = `p.id, p.patient_code, p.last_name, p.first_name, p.birth_date, p.phone,
	p.address, p.city, p.insurer,
	d.id, d.patient_id, d.designation, d.reference, d.serial_number, d.status,
	u.id, u.username, u.last_name, u.first_name, u.role, u.active,
	s.id, s.device_id, s.max_pressure, s.min_pressure, s.ramp_pressure, s.humidity,
	s.expiratory_reserve, s.comment, s.created_at, s.updated_at`

const detailFrom = `FROM interventions i
	JOIN patients p ON p.id = i.patient_id
	JOIN devices d ON d.id = i.device_id
	JOIN users u ON u.id = i.technician_id
	LEFT JOIN settings_records s ON s.id = i.settings_id`

func interventionDest(iv *Intervention) []interface{} {
	return []interface{}{&iv.ID, &iv.PatientID, &iv.DeviceID, &iv.TechnicianID, &iv.SettingsID,
		&iv.Treatment, &iv.InterventionType, &iv.ScheduledAt, &iv.ActualAt, &iv.Location,
		&iv.EquipmentState, &iv.ConcentratorType, &iv.VentilationMode, &iv.MaskType, &iv.Status,
		&iv.ActionsPerformed, &iv.AccessoriesUsed, &iv.SafetyChecks, &iv.TestsPerformed,
		&iv.ConsumablesUsed, &iv.Parameters, &iv.Photos,
		&iv.TechnicianSignature, &iv.ReportURL, &iv.Remarks, &iv.CancellationReason, &iv.RescheduledAt,
		&iv.PreventiveMaintenance, &iv.NextMaintenanceAt, &iv.VersionID, &iv.CreatedAt, &iv.UpdatedAt}
}

func scanIntervention(row pgx.Row) (*Intervention, error) {
	var iv Intervention
	if err := row.Scan(interventionDest(&iv)...); err != nil {
		return nil, db.MapError(err, "intervention")
	}
	return &iv, nil
}

// settingsRow holds the nullable side of the settings LEFT JOIN.
type settingsRow struct {
	id, deviceID         *uuid.UUID
	createdAt, updatedAt *time.Time
	rec                  settings.Record
}

func (s *settingsRow) record() *settings.Record {
	if s.id == nil {
		return nil
	}
	r := s.rec
	r.ID = *s.id
	if s.deviceID != nil {
		r.DeviceID = *s.deviceID
	}
	if s.createdAt != nil {
		r.CreatedAt = *s.createdAt
	}
	if s.updatedAt != nil {
		r.UpdatedAt = *s.updatedAt
	}
	return &r
}

func scanDetail(row pgx.Row) (*Detail, error) {
	var (
		iv Intervention
		p  directory.Patient
		d  directory.Device
		u  directory.Technician
		s  settingsRow
	)
	dest := interventionDest(&iv)
	dest = append(dest,
		&p.ID, &p.Code, &p.LastName, &p.FirstName, &p.BirthDate, &p.Phone,
		&p.Address, &p.City, &p.Insurer,
		&d.ID, &d.PatientID, &d.Designation, &d.Reference, &d.SerialNumber, &d.Status,
		&u.ID, &u.Username, &u.LastName, &u.FirstName, &u.Role, &u.Active,
		&s.id, &s.deviceID, &s.rec.MaxPressure, &s.rec.MinPressure, &s.rec.RampPressure, &s.rec.Humidity,
		&s.rec.ExpiratoryReserve, &s.rec.Comment, &s.createdAt, &s.updatedAt)
	if err := row.Scan(dest...); err != nil {
		return nil, db.MapError(err, "intervention")
	}
	return &Detail{Intervention: &iv, Patient: &p, Device: &d, Technician: &u, Settings: s.record()}, nil
}

func (r *interventionRepoPG) Create(ctx context.Context, iv *Intervention) error {
	if iv.ID == uuid.Nil {
		iv.ID = uuid.New()
	}
	if iv.VersionID == 0 {
		iv.VersionID = 1
	}
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO interventions (id, patient_id, device_id, technician_id, settings_id,
			treatment, intervention_type, scheduled_at, actual_at, location,
			equipment_state, concentrator_type, ventilation_mode, mask_type, status,
			actions_performed, accessories_used, safety_checks, tests_performed,
			consumables_used, parameters, photos,
			technician_signature, report_url, remarks, cancellation_reason, rescheduled_at,
			preventive_maintenance, next_maintenance_at, version_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,
			$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30)
		RETURNING created_at, updated_at`,
		iv.ID, iv.PatientID, iv.DeviceID, iv.TechnicianID, iv.SettingsID,
		iv.Treatment, iv.InterventionType, iv.ScheduledAt, iv.ActualAt, iv.Location,
		iv.EquipmentState, iv.ConcentratorType, iv.VentilationMode, iv.MaskType, iv.Status,
		iv.ActionsPerformed, iv.AccessoriesUsed, iv.SafetyChecks, iv.TestsPerformed,
		iv.ConsumablesUsed, iv.Parameters, nonNilPhotos(iv.Photos),
		iv.TechnicianSignature, iv.ReportURL, iv.Remarks, iv.CancellationReason, iv.RescheduledAt,
		iv.PreventiveMaintenance, iv.NextMaintenanceAt, iv.VersionID).
		Scan(&iv.CreatedAt, &iv.UpdatedAt)
	return db.MapError(err, "intervention")
}

func (r *interventionRepoPG) Get(ctx context.Context, id uuid.UUID) (*Intervention, error) {
	return scanIntervention(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+interventionCols+` FROM interventions i WHERE i.id = $1`, id))
}

func (r *interventionRepoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Intervention, error) {
	return scanIntervention(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+interventionCols+` FROM interventions i WHERE i.id = $1 FOR UPDATE`, id))
}

func (r *interventionRepoPG) GetDetail(ctx context.Context, id uuid.UUID) (*Detail, error) {
	return scanDetail(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+interventionCols+`, `+relatedCols+` `+detailFrom+` WHERE i.id = $1`, id))
}

func (r *interventionRepoPG) Update(ctx context.Context, iv *Intervention) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE interventions SET patient_id=$2, device_id=$3, technician_id=$4, settings_id=$5,
			treatment=$6, intervention_type=$7, scheduled_at=$8, actual_at=$9, location=$10,
			equipment_state=$11, concentrator_type=$12, ventilation_mode=$13, mask_type=$14, status=$15,
			actions_performed=$16, accessories_used=$17, safety_checks=$18, tests_performed=$19,
			consumables_used=$20, parameters=$21, photos=$22,
			technician_signature=$23, report_url=$24, remarks=$25, cancellation_reason=$26,
			rescheduled_at=$27, preventive_maintenance=$28, next_maintenance_at=$29,
			version_id = version_id + 1, updated_at = NOW()
		WHERE id = $1 AND version_id = $30
		RETURNING version_id, updated_at`,
		iv.ID, iv.PatientID, iv.DeviceID, iv.TechnicianID, iv.SettingsID,
		iv.Treatment, iv.InterventionType, iv.ScheduledAt, iv.ActualAt, iv.Location,
		iv.EquipmentState, iv.ConcentratorType, iv.VentilationMode, iv.MaskType, iv.Status,
		iv.ActionsPerformed, iv.AccessoriesUsed, iv.SafetyChecks, iv.TestsPerformed,
		iv.ConsumablesUsed, iv.Parameters, nonNilPhotos(iv.Photos),
		iv.TechnicianSignature, iv.ReportURL, iv.Remarks, iv.CancellationReason,
		iv.RescheduledAt, iv.PreventiveMaintenance, iv.NextMaintenanceAt,
		iv.VersionID).
		Scan(&iv.VersionID, &iv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.Conflict("intervention was modified by another request", err)
	}
	return db.MapError(err, "intervention")
}

func (r *interventionRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM interventions WHERE id = $1`, id)
	if err != nil {
		return db.MapError(err, "intervention")
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("intervention", id)
	}
	return nil
}

func (r *interventionRepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Detail, int, error) {
	where, args := whereClause(f)
	conn := db.Conn(ctx, r.pool)

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) `+detailFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, db.MapError(err, "intervention")
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT %s, %s %s%s ORDER BY i.scheduled_at DESC, i.id DESC LIMIT $%d OFFSET $%d`,
		interventionCols, relatedCols, detailFrom, where, n+1, n+2)
	rows, err := conn.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, db.MapError(err, "intervention")
	}
	defer rows.Close()

	var items []*Detail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, db.MapError(err, "intervention")
	}
	return items, total, nil
}

func (r *interventionRepoPG) Stats(ctx context.Context, f Filter) (*Stats, error) {
	where, args := whereClause(f)
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT i.status, COALESCE(i.treatment, ''), i.intervention_type, COUNT(*) `+detailFrom+where+`
		GROUP BY i.status, i.treatment, i.intervention_type`, args...)
	if err != nil {
		return nil, db.MapError(err, "intervention")
	}
	defer rows.Close()

	st := newStats()
	for rows.Next() {
		var (
			status    Status
			treatment Treatment
			typ       InterventionType
			count     int
		)
		if err := rows.Scan(&status, &treatment, &typ, &count); err != nil {
			return nil, db.MapError(err, "intervention")
		}
		st.add(status, treatment, typ, count)
	}
	if err := rows.Err(); err != nil {
		return nil, db.MapError(err, "intervention")
	}
	return st, nil
}

func newStats() *Stats {
	return &Stats{
		ByStatus:    map[Status]int{},
		ByTreatment: map[Treatment]int{},
		ByType:      map[InterventionType]int{},
	}
}

func (s *Stats) add(status Status, treatment Treatment, typ InterventionType, n int) {
	s.Total += n
	s.ByStatus[status] += n
	if treatment != "" {
		s.ByTreatment[treatment] += n
	}
	s.ByType[typ] += n
}

// whereClause renders f as a SQL WHERE clause over the detail joins.
func whereClause(f Filter) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.TechnicianID != nil {
		conds = append(conds, "i.technician_id = "+arg(*f.TechnicianID))
	}
	if f.Status != nil {
		conds = append(conds, "i.status = "+arg(string(*f.Status)))
	}
	if f.Type != nil {
		conds = append(conds, "i.intervention_type = "+arg(string(*f.Type)))
	}
	if f.Treatment != nil {
		conds = append(conds, "i.treatment = "+arg(string(*f.Treatment)))
	}
	if f.PatientID != nil {
		conds = append(conds, "i.patient_id = "+arg(*f.PatientID))
	}
	if f.DeviceID != nil {
		conds = append(conds, "i.device_id = "+arg(*f.DeviceID))
	}
	if f.From != nil {
		conds = append(conds, "i.scheduled_at >= "+arg(*f.From))
	}
	if f.To != nil {
		conds = append(conds, "i.scheduled_at <= "+arg(*f.To))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		p := arg("%" + escapeLike(s) + "%")
		var ors []string
		for _, col := range []string{
			"p.first_name", "p.last_name", "concat_ws(' ', p.first_name, p.last_name)",
			"d.designation", "d.reference",
			"u.first_name", "u.last_name", "u.username",
		} {
			ors = append(ors, col+" ILIKE "+p)
		}
		conds = append(conds, "("+strings.Join(ors, " OR ")+")")
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func nonNilPhotos(p []string) []string {
	if p == nil {
		return []string{}
	}
	return p
}
