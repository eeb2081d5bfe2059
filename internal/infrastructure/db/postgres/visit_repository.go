package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dentalcare/clinic-visits/internal/core/domain"
	"github.com/dentalcare/clinic-visits/internal/core/ports"
)

const visitSelect = `
	SELECT v.id, v.title, v.start_time, v.end_time, v.type, v.status, v.notes,
	       v.patient_id, v.clinic_id, v.created_at, v.updated_at,
	       p.name, p.email, c.name, c.email
	FROM visits v
	JOIN users p ON p.id = v.patient_id
	JOIN users c ON c.id = v.clinic_id`

type VisitRepository struct {
	pool *pgxpool.Pool
}

func NewVisitRepository(pool *pgxpool.Pool) *VisitRepository {
	return &VisitRepository{pool: pool}
}

func scanVisit(row pgx.Row) (*domain.Visit, error) {
	var (
		v            domain.Visit
		typ, status  string
		patient, cli domain.Party
	)
	err := row.Scan(
		&v.ID, &v.Title, &v.StartTime, &v.EndTime, &typ, &status, &v.Notes,
		&v.PatientID, &v.ClinicID, &v.CreatedAt, &v.UpdatedAt,
		&patient.Name, &patient.Email, &cli.Name, &cli.Email,
	)
	if err != nil {
		return nil, err
	}
	v.Type = domain.VisitType(typ)
	v.Status = domain.VisitStatus(status)
	v.StartTime, v.EndTime = v.StartTime.UTC(), v.EndTime.UTC()
	v.CreatedAt, v.UpdatedAt = v.CreatedAt.UTC(), v.UpdatedAt.UTC()
	patient.ID, cli.ID = v.PatientID, v.ClinicID
	v.Patient, v.Clinic = &patient, &cli
	return &v, nil
}

// writeErr maps constraint violations raised by inserts and updates.
func writeErr(op string, err error) error {
	if pgCode(err) == codeExclusionViolation {
		return domain.ErrSchedulingConflict
	}
	return fmt.Errorf("%s visit: %w", op, err)
}

func (r *VisitRepository) Create(ctx context.Context, v *domain.Visit) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err := r.pool.QueryRow(ctx, `
		INSERT INTO visits (title, start_time, end_time, type, status, notes, patient_id, clinic_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		v.Title, v.StartTime, v.EndTime, string(v.Type), string(v.Status), v.Notes,
		v.PatientID, v.ClinicID, v.CreatedAt, v.UpdatedAt,
	).Scan(&v.ID)
	if err != nil {
		return writeErr("insert", err)
	}
	return nil
}

func (r *VisitRepository) FindByID(ctx context.Context, id int64) (*domain.Visit, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	v, err := scanVisit(r.pool.QueryRow(ctx, visitSelect+` WHERE v.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("visit %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("find visit: %w", err)
	}
	return v, nil
}

func (r *VisitRepository) List(ctx context.Context, f ports.VisitFilter) ([]*domain.Visit, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.ClinicID != nil {
		add("v.clinic_id = $%d", *f.ClinicID)
	}
	if f.PatientID != nil {
		add("v.patient_id = $%d", *f.PatientID)
	}
	if f.StartFrom != nil {
		add("v.start_time >= $%d", *f.StartFrom)
	}
	if f.EndTo != nil {
		add("v.end_time <= $%d", *f.EndTo)
	}
	query := visitSelect
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	return r.query(ctx, query+` ORDER BY v.start_time, v.id`, args...)
}

func (r *VisitRepository) FindOverlapping(ctx context.Context, clinicID int64, iv domain.Interval, excludeID int64) ([]*domain.Visit, error) {
	return r.query(ctx, visitSelect+`
		WHERE v.clinic_id = $1 AND v.start_time < $3 AND v.end_time > $2 AND v.id <> $4
		ORDER BY v.start_time`,
		clinicID, iv.Start, iv.End, excludeID,
	)
}

func (r *VisitRepository) query(ctx context.Context, sql string, args ...any) ([]*domain.Visit, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list visits: %w", err)
	}
	defer rows.Close()

	visits := make([]*domain.Visit, 0)
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan visit: %w", err)
		}
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

// visitAssignments returns the SET list and its arguments for a partial
// update. $1 is reserved for the visit id.
func visitAssignments(v *domain.Visit, fields []ports.VisitField) (string, []any, error) {
	args := []any{v.ID}
	var sets []string
	add := func(col string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	for _, f := range fields {
		switch f {
		case ports.VisitFieldTitle:
			add("title", v.Title)
		case ports.VisitFieldSchedule:
			add("start_time", v.StartTime)
			add("end_time", v.EndTime)
		case ports.VisitFieldType:
			add("type", string(v.Type))
		case ports.VisitFieldStatus:
			add("status", string(v.Status))
		case ports.VisitFieldNotes:
			add("notes", v.Notes)
		case ports.VisitFieldPatient:
			add("patient_id", v.PatientID)
		case ports.VisitFieldClinic:
			add("clinic_id", v.ClinicID)
		default:
			return "", nil, fmt.Errorf("update visit: unknown field %q", f)
		}
	}
	add("updated_at", v.UpdatedAt)
	return strings.Join(sets, ", "), args, nil
}

func (r *VisitRepository) Update(ctx context.Context, v *domain.Visit, fields []ports.VisitField) error {
	sets, args, err := visitAssignments(v, fields)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, "UPDATE visits SET "+sets+" WHERE id = $1", args...)
	if err != nil {
		return writeErr("update", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("visit %d: %w", v.ID, domain.ErrNotFound)
	}
	return nil
}

func (r *VisitRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `DELETE FROM visits WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete visit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("visit %d: %w", id, domain.ErrNotFound)
	}
	return nil
}
