package db

import (
	"context"
	"fmt"
	"net/http"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	PracticeIDKey contextKey = "practice_id"
	DBConnKey     contextKey = "db_conn"
	DBTxKey       contextKey = "db_tx"
)

// Practice IDs are UUIDs or slugs; anything else is rejected before it can
// reach a query.
var practiceIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// PracticeScope resolves which practice a request operates on and stores it
// in both the request context and the echo context. All rows are scoped by
// practice_id in a single schema, so resolution is purely an identity
// question — no connection or search path switching happens here.
func PracticeScope(defaultPractice string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			practiceID := extractPracticeID(c, defaultPractice)

			if practiceID != "" && !practiceIDPattern.MatchString(practiceID) {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid practice identifier")
			}

			ctx := context.WithValue(c.Request().Context(), PracticeIDKey, practiceID)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("practice_id", practiceID)

			return next(c)
		}
	}
}

func extractPracticeID(c echo.Context, defaultPractice string) string {
	// 1. JWT claim (set by auth middleware)
	if pid, ok := c.Get("jwt_practice_id").(string); ok && pid != "" {
		return pid
	}

	// 2. X-Practice-ID header (widget requests carry the embedding practice)
	if pid := c.Request().Header.Get("X-Practice-ID"); pid != "" {
		return pid
	}

	// 3. Query parameter
	if pid := c.QueryParam("practice_id"); pid != "" {
		return pid
	}

	return defaultPractice
}

// PracticeFromContext retrieves the practice ID from context.
func PracticeFromContext(ctx context.Context) string {
	pid, _ := ctx.Value(PracticeIDKey).(string)
	return pid
}

// ConnFromContext retrieves a pinned database connection from context, if a
// caller acquired one for the duration of a request.
func ConnFromContext(ctx context.Context) *pgxpool.Conn {
	conn, _ := ctx.Value(DBConnKey).(*pgxpool.Conn)
	return conn
}

// ContextWithConn returns a context carrying a pinned connection.
func ContextWithConn(ctx context.Context, conn *pgxpool.Conn) context.Context {
	return context.WithValue(ctx, DBConnKey, conn)
}

// TxFromContext retrieves an open transaction from context. Repositories
// check this first so multi-statement operations share one transaction.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(DBTxKey).(pgx.Tx)
	return tx
}

// ContextWithTx returns a context carrying an open transaction.
func ContextWithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, DBTxKey, tx)
}

// WithTx runs fn inside a transaction. The transaction is stored in the
// context passed to fn, so repository calls made through that context join
// it. Rolls back on error or panic, commits otherwise.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ContextWithTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
