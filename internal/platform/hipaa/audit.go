package hipaa

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/moonraker/engage/internal/platform/db"
)

// AccessLog is one row in the audit_log table: who touched which patient
// data, from where, and what came of it. Patient identifiers are stored in
// anonymized form only.
type AccessLog struct {
	ID           uuid.UUID `json:"id"`
	PracticeID   string    `json:"practice_id"`
	UserID       string    `json:"user_id"`
	Role         string    `json:"role"`
	ResourceType string    `json:"resource_type"`
	PatientID    string    `json:"patient_id"` // anonymized handle, never a raw ID
	Action       string    `json:"action"`     // read, create, update, delete
	IPAddress    string    `json:"ip_address"`
	UserAgent    string    `json:"user_agent"`
	RequestID    string    `json:"request_id"`
	StatusCode   int       `json:"status_code"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// AuditLogger writes access log entries to the database.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger creates a new AuditLogger backed by the given connection pool.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// LogAccess writes an access entry to the audit_log table. It uses the
// request-scoped connection from context when available, falling back to
// pool.Acquire.
func (a *AuditLogger) LogAccess(ctx context.Context, entry *AccessLog) error {
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}

	const query = `
		INSERT INTO audit_log (
			practice_id, user_id, role, resource_type, patient_id,
			action, ip_address, user_agent, request_id, status_code, occurred_at
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
		) RETURNING id`

	args := []any{
		entry.PracticeID, entry.UserID, entry.Role, entry.ResourceType, entry.PatientID,
		entry.Action, entry.IPAddress, entry.UserAgent, entry.RequestID, entry.StatusCode, entry.OccurredAt,
	}

	conn := db.ConnFromContext(ctx)
	if conn != nil {
		return conn.QueryRow(ctx, query, args...).Scan(&entry.ID)
	}

	poolConn, err := a.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("audit log: acquire connection: %w", err)
	}
	defer poolConn.Release()

	return poolConn.QueryRow(ctx, query, args...).Scan(&entry.ID)
}

// ListByPatient returns the most recent access entries for an anonymized
// patient ID within a practice, newest first.
func (a *AuditLogger) ListByPatient(ctx context.Context, practiceID, patientID string, limit int) ([]AccessLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	const query = `
		SELECT id, practice_id, user_id, role, resource_type, patient_id,
		       action, ip_address, user_agent, request_id, status_code, occurred_at
		FROM audit_log
		WHERE practice_id = $1 AND patient_id = $2
		ORDER BY occurred_at DESC
		LIMIT $3`

	poolConn, err := a.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit log: acquire connection: %w", err)
	}
	defer poolConn.Release()

	rows, err := poolConn.Query(ctx, query, practiceID, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("audit log: query: %w", err)
	}
	defer rows.Close()

	var entries []AccessLog
	for rows.Next() {
		var e AccessLog
		if err := rows.Scan(
			&e.ID, &e.PracticeID, &e.UserID, &e.Role, &e.ResourceType, &e.PatientID,
			&e.Action, &e.IPAddress, &e.UserAgent, &e.RequestID, &e.StatusCode, &e.OccurredAt,
		); err != nil {
			return nil, fmt.Errorf("audit log: scan: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PurgeOlderThan deletes audit entries older than the cutoff and returns the
// number of rows removed. Called by the retention sweeper.
func (a *AuditLogger) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	poolConn, err := a.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("audit purge: acquire connection: %w", err)
	}
	defer poolConn.Release()

	tag, err := poolConn.Exec(ctx, `DELETE FROM audit_log WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("audit purge: %w", err)
	}
	return tag.RowsAffected(), nil
}
