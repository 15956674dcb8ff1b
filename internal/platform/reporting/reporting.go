// Package reporting exposes predefined SQL measures over conversation and
// patient data. Every measure is scoped to the caller's practice.
package reporting

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/moonraker/engage/internal/platform/auth"
)

// MeasureDefinition defines a reporting measure with its SQL query. Queries
// take the practice id as $1.
type MeasureDefinition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	SQL         string `json:"-"`
}

// MeasureReport holds the results of evaluating a measure.
type MeasureReport struct {
	MeasureID   string                   `json:"measure_id"`
	MeasureName string                   `json:"measure_name"`
	PracticeID  string                   `json:"practice_id"`
	GeneratedAt time.Time                `json:"generated_at"`
	Results     []map[string]interface{} `json:"results"`
}

// PredefinedMeasures is the list of available reporting measures.
var PredefinedMeasures = []MeasureDefinition{
	{
		ID:          "conversations-per-week",
		Name:        "Conversations per Week",
		Description: "Weekly conversation volume over the last 12 weeks",
		SQL: `SELECT date_trunc('week', started_at) AS week, COUNT(*) AS total
FROM conversation
WHERE practice_id = $1 AND started_at > now() - interval '12 weeks'
GROUP BY week ORDER BY week DESC`,
	},
	{
		ID:          "bookings-per-month",
		Name:        "Bookings per Month",
		Description: "Monthly count of conversations that ended in a booked appointment",
		SQL: `SELECT date_trunc('month', started_at) AS month, COUNT(*) AS total
FROM conversation
WHERE practice_id = $1 AND outcome = 'booked'
GROUP BY month ORDER BY month DESC`,
	},
	{
		ID:          "topic-share",
		Name:        "Topic Share",
		Description: "Conversation counts grouped by detected topic",
		SQL: `SELECT COALESCE(topic, 'Other') AS topic, COUNT(*) AS total
FROM conversation
WHERE practice_id = $1
GROUP BY topic ORDER BY total DESC`,
	},
	{
		ID:          "consent-funnel",
		Name:        "Consent Funnel",
		Description: "Patient counts by AI support consent status",
		SQL: `SELECT consent_status, COUNT(*) AS total
FROM patient
WHERE practice_id = $1
GROUP BY consent_status ORDER BY total DESC`,
	},
	{
		ID:          "crisis-alert-volume",
		Name:        "Crisis Alert Volume",
		Description: "Crisis alerts grouped by alert type over the last 90 days",
		SQL: `SELECT alert_type, COUNT(*) AS total
FROM crisis_alert
WHERE practice_id = $1 AND created_at > now() - interval '90 days'
GROUP BY alert_type ORDER BY total DESC`,
	},
}

// Handler provides HTTP handlers for the reporting API.
type Handler struct {
	pool *pgxpool.Pool
}

// NewHandler creates a new reporting handler.
func NewHandler(pool *pgxpool.Pool) *Handler {
	return &Handler{pool: pool}
}

// RegisterRoutes registers the reporting API routes.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	reportGroup := api.Group("/reports", auth.RequireRole("owner", "therapist"))
	reportGroup.GET("/measures", h.ListMeasures)
	reportGroup.GET("/measures/:id/evaluate", h.EvaluateMeasure)
}

// ListMeasures returns all available measure definitions.
func (h *Handler) ListMeasures(c echo.Context) error {
	return c.JSON(http.StatusOK, PredefinedMeasures)
}

// EvaluateMeasure executes a measure's SQL for the caller's practice and
// returns the results.
func (h *Handler) EvaluateMeasure(c echo.Context) error {
	measure := FindMeasure(c.Param("id"))
	if measure == nil {
		return echo.NewHTTPError(http.StatusNotFound, "measure not found")
	}

	practiceID := auth.PracticeIDFromContext(c.Request().Context())
	if practiceID == "" {
		return echo.NewHTTPError(http.StatusForbidden, "practice context required")
	}

	results, err := h.executeSQL(c.Request().Context(), measure.SQL, practiceID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("query failed: %v", err))
	}

	report := MeasureReport{
		MeasureID:   measure.ID,
		MeasureName: measure.Name,
		PracticeID:  practiceID,
		GeneratedAt: time.Now(),
		Results:     results,
	}

	return c.JSON(http.StatusOK, report)
}

// executeSQL runs a SQL query and returns results as a slice of maps.
func (h *Handler) executeSQL(ctx context.Context, sql string, args ...interface{}) ([]map[string]interface{}, error) {
	rows, err := h.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	var results []map[string]interface{}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}

		row := make(map[string]interface{}, len(fieldDescs))
		for i, fd := range fieldDescs {
			row[string(fd.Name)] = values[i]
		}
		results = append(results, row)
	}

	if results == nil {
		results = []map[string]interface{}{}
	}

	return results, nil
}

// FindMeasure looks up a measure by ID.
func FindMeasure(id string) *MeasureDefinition {
	for i := range PredefinedMeasures {
		if PredefinedMeasures[i].ID == id {
			return &PredefinedMeasures[i]
		}
	}
	return nil
}
