package patient

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

const patientCols = `id, practice_id, therapist_id, first_name, last_name, email, phone,
	emergency_contact_name, emergency_contact_phone, crm_contact_id, consent_status,
	consent_updated_at, risk_level, created_at, updated_at`

const alertCols = `id, practice_id, patient_id, alert_type, severity, summary,
	recommended_action, status, created_at, acknowledged_at`

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	query := fmt.Sprintf(`
		INSERT INTO patient (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`, patientCols)

	_, err := r.conn(ctx).Exec(ctx, query,
		p.ID, p.PracticeID, p.TherapistID, p.FirstName, p.LastName, p.Email,
		p.Phone, p.EmergencyContactName, p.EmergencyContactPhone, p.CRMContactID,
		p.ConsentStatus, p.ConsentUpdatedAt, p.RiskLevel, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, practiceID string, id uuid.UUID) (*Patient, error) {
	query := fmt.Sprintf(`SELECT %s FROM patient WHERE id = $1 AND practice_id = $2`, patientCols)
	return scanPatient(r.conn(ctx).QueryRow(ctx, query, id, practiceID))
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	p.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE patient SET
			therapist_id = $1, first_name = $2, last_name = $3, email = $4,
			phone = $5, emergency_contact_name = $6, emergency_contact_phone = $7,
			crm_contact_id = $8, consent_status = $9, consent_updated_at = $10,
			risk_level = $11, updated_at = $12
		WHERE id = $13 AND practice_id = $14`

	tag, err := r.conn(ctx).Exec(ctx, query,
		p.TherapistID, p.FirstName, p.LastName, p.Email, p.Phone,
		p.EmergencyContactName, p.EmergencyContactPhone, p.CRMContactID,
		p.ConsentStatus, p.ConsentUpdatedAt, p.RiskLevel, p.UpdatedAt, p.ID, p.PracticeID,
	)
	if err != nil {
		return fmt.Errorf("update patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, practiceID string, limit, offset int) ([]*Patient, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM patient WHERE practice_id = $1`
	if err := r.conn(ctx).QueryRow(ctx, countQuery, practiceID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM patient
		WHERE practice_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, patientCols)

	rows, err := r.conn(ctx).Query(ctx, query, practiceID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()
	return collectPatients(rows, total)
}

func (r *repoPG) ListByTherapist(ctx context.Context, practiceID, therapistID string, limit, offset int) ([]*Patient, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM patient WHERE practice_id = $1 AND therapist_id = $2`
	if err := r.conn(ctx).QueryRow(ctx, countQuery, practiceID, therapistID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count patients by therapist: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM patient
		WHERE practice_id = $1 AND therapist_id = $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`, patientCols)

	rows, err := r.conn(ctx).Query(ctx, query, practiceID, therapistID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list patients by therapist: %w", err)
	}
	defer rows.Close()
	return collectPatients(rows, total)
}

func (r *repoPG) CountByConsent(ctx context.Context, practiceID string) (map[string]int, error) {
	query := `
		SELECT consent_status, COUNT(*) FROM patient
		WHERE practice_id = $1
		GROUP BY consent_status`

	rows, err := r.conn(ctx).Query(ctx, query, practiceID)
	if err != nil {
		return nil, fmt.Errorf("count by consent: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan consent count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func (r *repoPG) CreateAlert(ctx context.Context, a *CrisisAlert) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	query := fmt.Sprintf(`
		INSERT INTO crisis_alert (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`, alertCols)

	_, err := r.conn(ctx).Exec(ctx, query,
		a.ID, a.PracticeID, a.PatientID, a.AlertType, a.Severity, a.Summary,
		a.RecommendedAction, a.Status, a.CreatedAt, a.AcknowledgedAt,
	)
	if err != nil {
		return fmt.Errorf("insert crisis alert: %w", err)
	}
	return nil
}

func (r *repoPG) GetAlert(ctx context.Context, practiceID string, id uuid.UUID) (*CrisisAlert, error) {
	query := fmt.Sprintf(`SELECT %s FROM crisis_alert WHERE id = $1 AND practice_id = $2`, alertCols)
	return scanAlert(r.conn(ctx).QueryRow(ctx, query, id, practiceID))
}

func (r *repoPG) UpdateAlert(ctx context.Context, a *CrisisAlert) error {
	query := `
		UPDATE crisis_alert SET status = $1, acknowledged_at = $2
		WHERE id = $3 AND practice_id = $4`

	tag, err := r.conn(ctx).Exec(ctx, query, a.Status, a.AcknowledgedAt, a.ID, a.PracticeID)
	if err != nil {
		return fmt.Errorf("update crisis alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlertNotFound
	}
	return nil
}

func (r *repoPG) ListAlerts(ctx context.Context, practiceID, status string, limit, offset int) ([]*CrisisAlert, int, error) {
	where := `WHERE practice_id = $1`
	args := []interface{}{practiceID}
	if status != "" {
		where += ` AND status = $2`
		args = append(args, status)
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM crisis_alert ` + where
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count crisis alerts: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM crisis_alert %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, alertCols, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list crisis alerts: %w", err)
	}
	defer rows.Close()
	return collectAlerts(rows, total)
}

func (r *repoPG) ListAlertsByPatient(ctx context.Context, practiceID string, patientID uuid.UUID, limit int) ([]*CrisisAlert, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM crisis_alert
		WHERE practice_id = $1 AND patient_id = $2
		ORDER BY created_at DESC
		LIMIT $3`, alertCols)

	rows, err := r.conn(ctx).Query(ctx, query, practiceID, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("list alerts by patient: %w", err)
	}
	defer rows.Close()
	alerts, _, err := collectAlerts(rows, 0)
	return alerts, err
}

func (r *repoPG) CountAlertsSince(ctx context.Context, practiceID string, since time.Time) (int, error) {
	var total int
	query := `SELECT COUNT(*) FROM crisis_alert WHERE practice_id = $1 AND created_at >= $2`
	if err := r.conn(ctx).QueryRow(ctx, query, practiceID, since).Scan(&total); err != nil {
		return 0, fmt.Errorf("count crisis alerts since: %w", err)
	}
	return total, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID, &p.PracticeID, &p.TherapistID, &p.FirstName, &p.LastName,
		&p.Email, &p.Phone, &p.EmergencyContactName, &p.EmergencyContactPhone,
		&p.CRMContactID, &p.ConsentStatus, &p.ConsentUpdatedAt, &p.RiskLevel,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan patient: %w", err)
	}
	return &p, nil
}

func collectPatients(rows pgx.Rows, total int) ([]*Patient, int, error) {
	var patients []*Patient
	for rows.Next() {
		var p Patient
		if err := rows.Scan(
			&p.ID, &p.PracticeID, &p.TherapistID, &p.FirstName, &p.LastName,
			&p.Email, &p.Phone, &p.EmergencyContactName, &p.EmergencyContactPhone,
			&p.CRMContactID, &p.ConsentStatus, &p.ConsentUpdatedAt, &p.RiskLevel,
			&p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan patient: %w", err)
		}
		patients = append(patients, &p)
	}
	return patients, total, rows.Err()
}

func scanAlert(row pgx.Row) (*CrisisAlert, error) {
	var a CrisisAlert
	err := row.Scan(
		&a.ID, &a.PracticeID, &a.PatientID, &a.AlertType, &a.Severity,
		&a.Summary, &a.RecommendedAction, &a.Status, &a.CreatedAt, &a.AcknowledgedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAlertNotFound
		}
		return nil, fmt.Errorf("scan crisis alert: %w", err)
	}
	return &a, nil
}

func collectAlerts(rows pgx.Rows, total int) ([]*CrisisAlert, int, error) {
	var alerts []*CrisisAlert
	for rows.Next() {
		var a CrisisAlert
		if err := rows.Scan(
			&a.ID, &a.PracticeID, &a.PatientID, &a.AlertType, &a.Severity,
			&a.Summary, &a.RecommendedAction, &a.Status, &a.CreatedAt, &a.AcknowledgedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan crisis alert: %w", err)
		}
		alerts = append(alerts, &a)
	}
	return alerts, total, rows.Err()
}
