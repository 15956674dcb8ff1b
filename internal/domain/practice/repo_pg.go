package practice

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

const practiceCols = `id, crm_location_id, name, email, phone, website, hours_of_operation,
	team_size, service_delivery, accepts_insurance, branding_config, appointment_config,
	bot_instructions, services_config, locations, knowledge_base, status,
	onboarding_completed, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, p *Practice) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	query := fmt.Sprintf(`
		INSERT INTO practice (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`, practiceCols)

	_, err := r.conn(ctx).Exec(ctx, query,
		p.ID, p.CRMLocationID, p.Name, p.Email, p.Phone, p.Website, p.HoursOfOperation,
		p.TeamSize, p.ServiceDelivery, p.AcceptsInsurance, p.Branding, p.Appointments,
		p.Instructions, p.Services, p.Locations, p.KnowledgeBase, p.Status,
		p.OnboardingCompleted, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert practice: %w", err)
	}
	return nil
}

func (r *repoPG) Get(ctx context.Context, id uuid.UUID) (*Practice, error) {
	query := fmt.Sprintf(`SELECT %s FROM practice WHERE id = $1`, practiceCols)
	return scanPractice(r.conn(ctx).QueryRow(ctx, query, id))
}

func (r *repoPG) Update(ctx context.Context, p *Practice) error {
	p.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE practice SET
			crm_location_id = $1, name = $2, email = $3, phone = $4, website = $5,
			hours_of_operation = $6, team_size = $7, service_delivery = $8,
			accepts_insurance = $9, branding_config = $10, appointment_config = $11,
			bot_instructions = $12, services_config = $13, locations = $14,
			knowledge_base = $15, status = $16, onboarding_completed = $17,
			updated_at = $18
		WHERE id = $19`

	tag, err := r.conn(ctx).Exec(ctx, query,
		p.CRMLocationID, p.Name, p.Email, p.Phone, p.Website,
		p.HoursOfOperation, p.TeamSize, p.ServiceDelivery,
		p.AcceptsInsurance, p.Branding, p.Appointments,
		p.Instructions, p.Services, p.Locations,
		p.KnowledgeBase, p.Status, p.OnboardingCompleted,
		p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update practice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Practice, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM practice`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count practices: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM practice
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, practiceCols)

	rows, err := r.conn(ctx).Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list practices: %w", err)
	}
	defer rows.Close()

	var practices []*Practice
	for rows.Next() {
		p, err := collectPractice(rows)
		if err != nil {
			return nil, 0, err
		}
		practices = append(practices, p)
	}
	return practices, total, rows.Err()
}

func scanPractice(row pgx.Row) (*Practice, error) {
	p, err := collectPractice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func collectPractice(row pgx.Row) (*Practice, error) {
	var p Practice
	err := row.Scan(
		&p.ID, &p.CRMLocationID, &p.Name, &p.Email, &p.Phone, &p.Website, &p.HoursOfOperation,
		&p.TeamSize, &p.ServiceDelivery, &p.AcceptsInsurance, &p.Branding, &p.Appointments,
		&p.Instructions, &p.Services, &p.Locations, &p.KnowledgeBase, &p.Status,
		&p.OnboardingCompleted, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan practice: %w", err)
	}
	return &p, nil
}
