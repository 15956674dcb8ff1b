package therapist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/moonraker/engage/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if conn := db.ConnFromContext(ctx); conn != nil {
		return conn
	}
	return r.pool
}

const therapistCols = `id, practice_id, email, password_hash, first_name, last_name, role,
	license_type, license_number, license_state, status, created_at, updated_at`

const noteCols = `id, practice_id, therapist_id, patient_id, session_date, content,
	risk_assessment, next_session_plan, created_at`

func (r *repoPG) Create(ctx context.Context, t *Therapist) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	query := fmt.Sprintf(`
		INSERT INTO therapist (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`, therapistCols)

	_, err := r.conn(ctx).Exec(ctx, query,
		t.ID, t.PracticeID, t.Email, t.PasswordHash, t.FirstName, t.LastName,
		t.Role, t.LicenseType, t.LicenseNumber, t.LicenseState, t.Status,
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert therapist: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, practiceID string, id uuid.UUID) (*Therapist, error) {
	query := fmt.Sprintf(`SELECT %s FROM therapist WHERE id = $1 AND practice_id = $2`, therapistCols)
	return scanTherapist(r.conn(ctx).QueryRow(ctx, query, id, practiceID))
}

func (r *repoPG) GetByEmail(ctx context.Context, email string) (*Therapist, error) {
	query := fmt.Sprintf(`SELECT %s FROM therapist WHERE lower(email) = lower($1)`, therapistCols)
	return scanTherapist(r.conn(ctx).QueryRow(ctx, query, email))
}

func (r *repoPG) Update(ctx context.Context, t *Therapist) error {
	t.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE therapist SET
			email = $1, password_hash = $2, first_name = $3, last_name = $4,
			role = $5, license_type = $6, license_number = $7, license_state = $8,
			status = $9, updated_at = $10
		WHERE id = $11 AND practice_id = $12`

	tag, err := r.conn(ctx).Exec(ctx, query,
		t.Email, t.PasswordHash, t.FirstName, t.LastName, t.Role,
		t.LicenseType, t.LicenseNumber, t.LicenseState, t.Status,
		t.UpdatedAt, t.ID, t.PracticeID,
	)
	if err != nil {
		return fmt.Errorf("update therapist: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, practiceID string, limit, offset int) ([]*Therapist, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM therapist WHERE practice_id = $1`
	if err := r.conn(ctx).QueryRow(ctx, countQuery, practiceID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count therapists: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM therapist
		WHERE practice_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, therapistCols)

	rows, err := r.conn(ctx).Query(ctx, query, practiceID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list therapists: %w", err)
	}
	defer rows.Close()

	var therapists []*Therapist
	for rows.Next() {
		var t Therapist
		if err := rows.Scan(
			&t.ID, &t.PracticeID, &t.Email, &t.PasswordHash, &t.FirstName,
			&t.LastName, &t.Role, &t.LicenseType, &t.LicenseNumber,
			&t.LicenseState, &t.Status, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan therapist: %w", err)
		}
		therapists = append(therapists, &t)
	}
	return therapists, total, rows.Err()
}

func (r *repoPG) CreateNote(ctx context.Context, n *SessionNote) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	query := fmt.Sprintf(`
		INSERT INTO session_note (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`, noteCols)

	_, err := r.conn(ctx).Exec(ctx, query,
		n.ID, n.PracticeID, n.TherapistID, n.PatientID, n.SessionDate,
		n.Content, n.RiskAssessment, n.NextSessionPlan, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session note: %w", err)
	}
	return nil
}

func (r *repoPG) ListNotes(ctx context.Context, practiceID string, patientID uuid.UUID, limit int) ([]*SessionNote, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM session_note
		WHERE practice_id = $1 AND patient_id = $2
		ORDER BY session_date DESC, created_at DESC
		LIMIT $3`, noteCols)

	rows, err := r.conn(ctx).Query(ctx, query, practiceID, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("list session notes: %w", err)
	}
	defer rows.Close()

	var notes []*SessionNote
	for rows.Next() {
		var n SessionNote
		if err := rows.Scan(
			&n.ID, &n.PracticeID, &n.TherapistID, &n.PatientID, &n.SessionDate,
			&n.Content, &n.RiskAssessment, &n.NextSessionPlan, &n.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan session note: %w", err)
		}
		notes = append(notes, &n)
	}
	return notes, rows.Err()
}

func scanTherapist(row pgx.Row) (*Therapist, error) {
	var t Therapist
	err := row.Scan(
		&t.ID, &t.PracticeID, &t.Email, &t.PasswordHash, &t.FirstName,
		&t.LastName, &t.Role, &t.LicenseType, &t.LicenseNumber,
		&t.LicenseState, &t.Status, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan therapist: %w", err)
	}
	return &t, nil
}
