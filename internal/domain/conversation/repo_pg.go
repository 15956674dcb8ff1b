package conversation

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

// querier abstracts pool, pinned conn and transaction.
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

const convCols = `id, practice_id, session_id, bot, contact_id, contact_name, patient_id,
	status, outcome, topic, last_message, message_count, started_at, ended_at,
	created_at, updated_at`

const msgCols = `id, conversation_id, practice_id, sender, body, risk_level, created_at`

func (r *repoPG) Create(ctx context.Context, conv *Conversation) error {
	if conv.ID == uuid.Nil {
		conv.ID = uuid.New()
	}
	now := time.Now().UTC()
	conv.CreatedAt = now
	conv.UpdatedAt = now

	query := fmt.Sprintf(`
		INSERT INTO conversation (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`, convCols)

	_, err := r.conn(ctx).Exec(ctx, query,
		conv.ID, conv.PracticeID, conv.SessionID, conv.Bot, conv.ContactID,
		conv.ContactName, conv.PatientID, conv.Status, conv.Outcome, conv.Topic,
		conv.LastMessage, conv.MessageCount, conv.StartedAt, conv.EndedAt,
		conv.CreatedAt, conv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, practiceID string, id uuid.UUID) (*Conversation, error) {
	query := fmt.Sprintf(`SELECT %s FROM conversation WHERE id = $1 AND practice_id = $2`, convCols)
	return scanConv(r.conn(ctx).QueryRow(ctx, query, id, practiceID))
}

func (r *repoPG) GetBySession(ctx context.Context, practiceID, sessionID string) (*Conversation, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM conversation
		WHERE session_id = $1 AND practice_id = $2
		ORDER BY started_at DESC LIMIT 1`, convCols)
	return scanConv(r.conn(ctx).QueryRow(ctx, query, sessionID, practiceID))
}

func (r *repoPG) Update(ctx context.Context, conv *Conversation) error {
	conv.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE conversation SET
			contact_id = $1, contact_name = $2, patient_id = $3, status = $4,
			outcome = $5, topic = $6, last_message = $7, message_count = $8,
			ended_at = $9, updated_at = $10
		WHERE id = $11 AND practice_id = $12`

	tag, err := r.conn(ctx).Exec(ctx, query,
		conv.ContactID, conv.ContactName, conv.PatientID, conv.Status,
		conv.Outcome, conv.Topic, conv.LastMessage, conv.MessageCount,
		conv.EndedAt, conv.UpdatedAt, conv.ID, conv.PracticeID,
	)
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, practiceID string, limit, offset int) ([]*Conversation, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM conversation WHERE practice_id = $1`
	if err := r.conn(ctx).QueryRow(ctx, countQuery, practiceID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count conversations: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM conversation
		WHERE practice_id = $1
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3`, convCols)

	rows, err := r.conn(ctx).Query(ctx, query, practiceID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()
	return collectConvs(rows, total)
}

func (r *repoPG) ListByPatient(ctx context.Context, practiceID, patientID string, limit, offset int) ([]*Conversation, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM conversation WHERE practice_id = $1 AND patient_id = $2`
	if err := r.conn(ctx).QueryRow(ctx, countQuery, practiceID, patientID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count conversations: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM conversation
		WHERE practice_id = $1 AND patient_id = $2
		ORDER BY started_at DESC
		LIMIT $3 OFFSET $4`, convCols)

	rows, err := r.conn(ctx).Query(ctx, query, practiceID, patientID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list conversations by patient: %w", err)
	}
	defer rows.Close()
	return collectConvs(rows, total)
}

func (r *repoPG) Recent(ctx context.Context, practiceID string, n int) ([]*Conversation, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM conversation
		WHERE practice_id = $1
		ORDER BY started_at DESC
		LIMIT $2`, convCols)

	rows, err := r.conn(ctx).Query(ctx, query, practiceID, n)
	if err != nil {
		return nil, fmt.Errorf("recent conversations: %w", err)
	}
	defer rows.Close()
	convs, _, err := collectConvs(rows, 0)
	return convs, err
}

func (r *repoPG) CountSince(ctx context.Context, practiceID string, since time.Time) (int, error) {
	var total int
	query := `SELECT COUNT(*) FROM conversation WHERE practice_id = $1 AND started_at >= $2`
	if err := r.conn(ctx).QueryRow(ctx, query, practiceID, since).Scan(&total); err != nil {
		return 0, fmt.Errorf("count conversations since: %w", err)
	}
	return total, nil
}

func (r *repoPG) CountOutcomeSince(ctx context.Context, practiceID, outcome string, since time.Time) (int, error) {
	var total int
	query := `SELECT COUNT(*) FROM conversation WHERE practice_id = $1 AND outcome = $2 AND started_at >= $3`
	if err := r.conn(ctx).QueryRow(ctx, query, practiceID, outcome, since).Scan(&total); err != nil {
		return 0, fmt.Errorf("count conversations by outcome: %w", err)
	}
	return total, nil
}

func (r *repoPG) AddMessage(ctx context.Context, msg *Message) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	query := fmt.Sprintf(`
		INSERT INTO conversation_message (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`, msgCols)

	_, err := r.conn(ctx).Exec(ctx, query,
		msg.ID, msg.ConversationID, msg.PracticeID, msg.Sender, msg.Body,
		msg.RiskLevel, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (r *repoPG) Messages(ctx context.Context, practiceID string, conversationID uuid.UUID, limit int) ([]*Message, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM conversation_message
		WHERE conversation_id = $1 AND practice_id = $2
		ORDER BY created_at ASC
		LIMIT $3`, msgCols)

	rows, err := r.conn(ctx).Query(ctx, query, conversationID, practiceID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(
			&m.ID, &m.ConversationID, &m.PracticeID, &m.Sender, &m.Body,
			&m.RiskLevel, &m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}

func scanConv(row pgx.Row) (*Conversation, error) {
	var c Conversation
	err := row.Scan(
		&c.ID, &c.PracticeID, &c.SessionID, &c.Bot, &c.ContactID, &c.ContactName,
		&c.PatientID, &c.Status, &c.Outcome, &c.Topic, &c.LastMessage,
		&c.MessageCount, &c.StartedAt, &c.EndedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	return &c, nil
}

func collectConvs(rows pgx.Rows, total int) ([]*Conversation, int, error) {
	var convs []*Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(
			&c.ID, &c.PracticeID, &c.SessionID, &c.Bot, &c.ContactID, &c.ContactName,
			&c.PatientID, &c.Status, &c.Outcome, &c.Topic, &c.LastMessage,
			&c.MessageCount, &c.StartedAt, &c.EndedAt, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan conversation: %w", err)
		}
		convs = append(convs, &c)
	}
	return convs, total, rows.Err()
}
