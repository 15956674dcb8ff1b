// Package analytics aggregates in-process usage metrics: API request
// latencies per endpoint and chatbot activity per practice and per bot.
// Counters are approximate and reset on restart; durable reporting lives in
// the warehouse consumers downstream of the event stream.
package analytics

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/moonraker/engage/internal/platform/auth"
)

// Bot names recorded against chat metrics.
const (
	BotSales   = "sales"
	BotSupport = "support"
)

// ---------------------------------------------------------------------------
// Core metric types
// ---------------------------------------------------------------------------

// RequestMetric captures a single API request's metadata.
type RequestMetric struct {
	Timestamp    time.Time     `json:"timestamp"`
	Method       string        `json:"method"`
	Path         string        `json:"path"`
	StatusCode   int           `json:"status_code"`
	Duration     time.Duration `json:"duration"`
	PracticeID   string        `json:"practice_id"`
	RequestSize  int64         `json:"request_size"`
	ResponseSize int64         `json:"response_size"`
}

// ChatMetric captures a single bot exchange.
type ChatMetric struct {
	Timestamp  time.Time     `json:"timestamp"`
	Bot        string        `json:"bot"`
	PracticeID string        `json:"practice_id"`
	Intent     string        `json:"intent,omitempty"`
	Risk       string        `json:"risk,omitempty"`
	Duration   time.Duration `json:"duration"`
	Escalated  bool          `json:"escalated"`
}

// ---------------------------------------------------------------------------
// Internal counter types
// ---------------------------------------------------------------------------

type endpointStats struct {
	Path          string
	TotalRequests int64
	TotalErrors   int64
	TotalDuration int64 // nanoseconds
	StatusCounts  map[int]int64
	mu            sync.Mutex
}

type practiceStats struct {
	PracticeID     string
	TotalMessages  int64
	TotalErrors    int64
	Escalations    int64
	LastActivityAt time.Time
	mu             sync.Mutex
}

type botStats struct {
	Bot           string
	TotalMessages int64
	TotalDuration int64 // nanoseconds
	IntentCounts  map[string]int64
	RiskCounts    map[string]int64
	Escalations   int64
	mu            sync.Mutex
}

// ---------------------------------------------------------------------------
// Summary types (returned by query methods)
// ---------------------------------------------------------------------------

// EndpointSummary provides aggregated statistics for a single API endpoint.
type EndpointSummary struct {
	Path            string        `json:"path"`
	TotalRequests   int64         `json:"total_requests"`
	ErrorRate       float64       `json:"error_rate"`
	AvgLatency      time.Duration `json:"avg_latency"`
	StatusBreakdown map[int]int64 `json:"status_breakdown"`
}

// PracticeSummary provides aggregated chat activity for a single practice.
type PracticeSummary struct {
	PracticeID    string    `json:"practice_id"`
	TotalMessages int64     `json:"total_messages"`
	Escalations   int64     `json:"escalations"`
	LastActivity  time.Time `json:"last_activity"`
}

// BotSummary provides the per-bot breakdown of intents and risk levels.
type BotSummary struct {
	Bot           string           `json:"bot"`
	TotalMessages int64            `json:"total_messages"`
	AvgLatency    time.Duration    `json:"avg_latency"`
	IntentCounts  map[string]int64 `json:"intent_counts"`
	RiskCounts    map[string]int64 `json:"risk_counts"`
	Escalations   int64            `json:"escalations"`
}

// Overview provides a high-level summary of platform usage.
type Overview struct {
	TotalRequests    int64              `json:"total_requests"`
	TotalErrors      int64              `json:"total_errors"`
	ErrorRate        float64            `json:"error_rate"`
	AvgLatency       time.Duration      `json:"avg_latency"`
	TotalChats       int64              `json:"total_chats"`
	TotalEscalations int64              `json:"total_escalations"`
	UniquePractices  int                `json:"unique_practices"`
	TopEndpoints     []*EndpointSummary `json:"top_endpoints"`
	TopPractices     []*PracticeSummary `json:"top_practices"`
}

// TimeSeriesBucket holds aggregated chat metrics for a single time bucket.
type TimeSeriesBucket struct {
	Timestamp    time.Time     `json:"timestamp"`
	MessageCount int64         `json:"message_count"`
	Escalations  int64         `json:"escalations"`
	AvgLatency   time.Duration `json:"avg_latency"`
}

// ---------------------------------------------------------------------------
// Tracker — the main thread-safe aggregator
// ---------------------------------------------------------------------------

// Tracker provides thread-safe usage tracking with an append-only ring
// buffer for chat metrics and per-endpoint, per-practice, and per-bot
// counters.
type Tracker struct {
	chats            []*ChatMetric
	maxChats         int
	writePos         int
	full             bool
	endpointCounters map[string]*endpointStats
	practiceCounters map[string]*practiceStats
	botCounters      map[string]*botStats
	mu               sync.RWMutex
	totalRequests    int64
	totalErrors      int64
	totalDuration    int64 // nanoseconds
	totalChats       int64
	totalEscalations int64
}

// NewTracker creates a Tracker with the given chat ring buffer capacity.
func NewTracker(maxChats int) *Tracker {
	if maxChats <= 0 {
		maxChats = 100000
	}
	return &Tracker{
		chats:            make([]*ChatMetric, 0, maxChats),
		maxChats:         maxChats,
		endpointCounters: make(map[string]*endpointStats),
		practiceCounters: make(map[string]*practiceStats),
		botCounters:      make(map[string]*botStats),
	}
}

// RecordRequest updates the API request counters.
func (t *Tracker) RecordRequest(metric *RequestMetric) {
	isError := metric.StatusCode >= 400

	atomic.AddInt64(&t.totalRequests, 1)
	if isError {
		atomic.AddInt64(&t.totalErrors, 1)
	}
	atomic.AddInt64(&t.totalDuration, int64(metric.Duration))

	t.mu.Lock()
	ep, ok := t.endpointCounters[metric.Path]
	if !ok {
		ep = &endpointStats{
			Path:         metric.Path,
			StatusCounts: make(map[int]int64),
		}
		t.endpointCounters[metric.Path] = ep
	}
	t.mu.Unlock()

	// Per-endpoint mutex to reduce contention.
	ep.mu.Lock()
	ep.TotalRequests++
	if isError {
		ep.TotalErrors++
	}
	ep.TotalDuration += int64(metric.Duration)
	ep.StatusCounts[metric.StatusCode]++
	ep.mu.Unlock()
}

// RecordChat appends a chat metric to the ring buffer and updates the
// per-practice and per-bot counters.
func (t *Tracker) RecordChat(metric *ChatMetric) {
	atomic.AddInt64(&t.totalChats, 1)
	if metric.Escalated {
		atomic.AddInt64(&t.totalEscalations, 1)
	}

	t.mu.Lock()

	// Ring buffer insert.
	if t.full {
		t.chats[t.writePos] = metric
	} else if len(t.chats) < t.maxChats {
		t.chats = append(t.chats, metric)
	}
	t.writePos++
	if t.writePos >= t.maxChats {
		t.writePos = 0
		t.full = true
	}

	var ps *practiceStats
	if metric.PracticeID != "" {
		var ok bool
		ps, ok = t.practiceCounters[metric.PracticeID]
		if !ok {
			ps = &practiceStats{PracticeID: metric.PracticeID}
			t.practiceCounters[metric.PracticeID] = ps
		}
	}

	var bs *botStats
	if metric.Bot != "" {
		var ok bool
		bs, ok = t.botCounters[metric.Bot]
		if !ok {
			bs = &botStats{
				Bot:          metric.Bot,
				IntentCounts: make(map[string]int64),
				RiskCounts:   make(map[string]int64),
			}
			t.botCounters[metric.Bot] = bs
		}
	}

	t.mu.Unlock()

	if ps != nil {
		ps.mu.Lock()
		ps.TotalMessages++
		if metric.Escalated {
			ps.Escalations++
		}
		ps.LastActivityAt = metric.Timestamp
		ps.mu.Unlock()
	}

	if bs != nil {
		bs.mu.Lock()
		bs.TotalMessages++
		bs.TotalDuration += int64(metric.Duration)
		if metric.Intent != "" {
			bs.IntentCounts[metric.Intent]++
		}
		if metric.Risk != "" {
			bs.RiskCounts[metric.Risk]++
		}
		if metric.Escalated {
			bs.Escalations++
		}
		bs.mu.Unlock()
	}
}

// ---------------------------------------------------------------------------
// Query methods
// ---------------------------------------------------------------------------

// EndpointStats returns aggregated stats for a single endpoint path.
func (t *Tracker) EndpointStats(path string) *EndpointSummary {
	t.mu.RLock()
	ep, ok := t.endpointCounters[path]
	t.mu.RUnlock()
	if !ok {
		return nil
	}
	return buildEndpointSummary(ep)
}

// PracticeStats returns aggregated chat activity for a single practice.
func (t *Tracker) PracticeStats(practiceID string) *PracticeSummary {
	t.mu.RLock()
	ps, ok := t.practiceCounters[practiceID]
	t.mu.RUnlock()
	if !ok {
		return nil
	}
	return buildPracticeSummary(ps)
}

// BotStats returns the intent and risk breakdown for one bot.
func (t *Tracker) BotStats(bot string) *BotSummary {
	t.mu.RLock()
	bs, ok := t.botCounters[bot]
	t.mu.RUnlock()
	if !ok {
		return nil
	}

	bs.mu.Lock()
	defer bs.mu.Unlock()

	var avg time.Duration
	if bs.TotalMessages > 0 {
		avg = time.Duration(bs.TotalDuration / bs.TotalMessages)
	}
	intents := make(map[string]int64, len(bs.IntentCounts))
	for k, v := range bs.IntentCounts {
		intents[k] = v
	}
	risks := make(map[string]int64, len(bs.RiskCounts))
	for k, v := range bs.RiskCounts {
		risks[k] = v
	}
	return &BotSummary{
		Bot:           bs.Bot,
		TotalMessages: bs.TotalMessages,
		AvgLatency:    avg,
		IntentCounts:  intents,
		RiskCounts:    risks,
		Escalations:   bs.Escalations,
	}
}

// GetOverview returns a high-level usage summary.
func (t *Tracker) GetOverview() *Overview {
	total := atomic.LoadInt64(&t.totalRequests)
	errors := atomic.LoadInt64(&t.totalErrors)
	dur := atomic.LoadInt64(&t.totalDuration)

	var errorRate float64
	if total > 0 {
		errorRate = float64(errors) / float64(total)
	}

	var avgLatency time.Duration
	if total > 0 {
		avgLatency = time.Duration(dur / total)
	}

	t.mu.RLock()
	uniquePractices := len(t.practiceCounters)
	t.mu.RUnlock()

	return &Overview{
		TotalRequests:    total,
		TotalErrors:      errors,
		ErrorRate:        errorRate,
		AvgLatency:       avgLatency,
		TotalChats:       atomic.LoadInt64(&t.totalChats),
		TotalEscalations: atomic.LoadInt64(&t.totalEscalations),
		UniquePractices:  uniquePractices,
		TopEndpoints:     t.TopEndpoints(5),
		TopPractices:     t.TopPractices(5),
	}
}

// TopEndpoints returns the top N endpoints sorted by request count.
func (t *Tracker) TopEndpoints(limit int) []*EndpointSummary {
	t.mu.RLock()
	summaries := make([]*EndpointSummary, 0, len(t.endpointCounters))
	for _, ep := range t.endpointCounters {
		summaries = append(summaries, buildEndpointSummary(ep))
	}
	t.mu.RUnlock()

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].TotalRequests > summaries[j].TotalRequests
	})

	if limit > len(summaries) {
		limit = len(summaries)
	}
	return summaries[:limit]
}

// TopPractices returns the top N practices sorted by message count.
func (t *Tracker) TopPractices(limit int) []*PracticeSummary {
	t.mu.RLock()
	summaries := make([]*PracticeSummary, 0, len(t.practiceCounters))
	for _, ps := range t.practiceCounters {
		summaries = append(summaries, buildPracticeSummary(ps))
	}
	t.mu.RUnlock()

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].TotalMessages > summaries[j].TotalMessages
	})

	if limit > len(summaries) {
		limit = len(summaries)
	}
	return summaries[:limit]
}

// TimeSeries returns chat counts bucketed by the given interval over the
// specified lookback duration, optionally filtered by practice.
func (t *Tracker) TimeSeries(practiceID string, interval, duration time.Duration) []*TimeSeriesBucket {
	now := time.Now()
	start := now.Add(-duration).Truncate(interval)
	numBuckets := int(duration/interval) + 1

	buckets := make([]*TimeSeriesBucket, numBuckets)
	for i := 0; i < numBuckets; i++ {
		buckets[i] = &TimeSeriesBucket{
			Timestamp: start.Add(time.Duration(i) * interval),
		}
	}

	t.mu.RLock()
	chatsCopy := make([]*ChatMetric, len(t.chats))
	copy(chatsCopy, t.chats)
	t.mu.RUnlock()

	for _, m := range chatsCopy {
		if m == nil {
			continue
		}
		if practiceID != "" && m.PracticeID != practiceID {
			continue
		}
		if m.Timestamp.Before(start) || m.Timestamp.After(now) {
			continue
		}
		idx := int(m.Timestamp.Sub(start) / interval)
		if idx < 0 || idx >= numBuckets {
			continue
		}
		buckets[idx].MessageCount++
		if m.Escalated {
			buckets[idx].Escalations++
		}
		buckets[idx].AvgLatency += m.Duration // accumulate, averaged below
	}

	for _, b := range buckets {
		if b.MessageCount > 0 {
			b.AvgLatency = time.Duration(int64(b.AvgLatency) / b.MessageCount)
		}
	}

	return buckets
}

// ErrorRate returns the overall API error rate as a float between 0 and 1.
func (t *Tracker) ErrorRate() float64 {
	total := atomic.LoadInt64(&t.totalRequests)
	errors := atomic.LoadInt64(&t.totalErrors)
	if total == 0 {
		return 0
	}
	return float64(errors) / float64(total)
}

// AverageLatency returns the average API request duration.
func (t *Tracker) AverageLatency() time.Duration {
	total := atomic.LoadInt64(&t.totalRequests)
	dur := atomic.LoadInt64(&t.totalDuration)
	if total == 0 {
		return 0
	}
	return time.Duration(dur / total)
}

// ---------------------------------------------------------------------------
// Internal helpers
// ---------------------------------------------------------------------------

func buildEndpointSummary(ep *endpointStats) *EndpointSummary {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	var errorRate float64
	if ep.TotalRequests > 0 {
		errorRate = float64(ep.TotalErrors) / float64(ep.TotalRequests)
	}

	var avgLatency time.Duration
	if ep.TotalRequests > 0 {
		avgLatency = time.Duration(ep.TotalDuration / ep.TotalRequests)
	}

	statusBreakdown := make(map[int]int64, len(ep.StatusCounts))
	for code, count := range ep.StatusCounts {
		statusBreakdown[code] = count
	}

	return &EndpointSummary{
		Path:            ep.Path,
		TotalRequests:   ep.TotalRequests,
		ErrorRate:       errorRate,
		AvgLatency:      avgLatency,
		StatusBreakdown: statusBreakdown,
	}
}

func buildPracticeSummary(ps *practiceStats) *PracticeSummary {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	return &PracticeSummary{
		PracticeID:    ps.PracticeID,
		TotalMessages: ps.TotalMessages,
		Escalations:   ps.Escalations,
		LastActivity:  ps.LastActivityAt,
	}
}

// ---------------------------------------------------------------------------
// Echo middleware
// ---------------------------------------------------------------------------

// Middleware returns Echo middleware that records every request into the
// provided Tracker.
func Middleware(tracker *Tracker) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			path := req.URL.Path

			err := next(c)

			duration := time.Since(start)
			resp := c.Response()

			var requestSize int64
			if req.ContentLength > 0 {
				requestSize = req.ContentLength
			}

			tracker.RecordRequest(&RequestMetric{
				Timestamp:    start,
				Method:       req.Method,
				Path:         path,
				StatusCode:   resp.Status,
				Duration:     duration,
				PracticeID:   auth.PracticeIDFromContext(req.Context()),
				RequestSize:  requestSize,
				ResponseSize: resp.Size,
			})

			return err
		}
	}
}

// ---------------------------------------------------------------------------
// Echo HTTP handler
// ---------------------------------------------------------------------------

// Handler provides HTTP endpoints for querying usage analytics.
type Handler struct {
	tracker *Tracker
}

// NewHandler creates a new handler backed by the given tracker.
func NewHandler(tracker *Tracker) *Handler {
	return &Handler{tracker: tracker}
}

// RegisterRoutes registers the analytics admin endpoints on the provided
// group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/analytics/overview", h.HandleOverview)
	g.GET("/analytics/endpoints", h.HandleTopEndpoints)
	g.GET("/analytics/practices", h.HandleTopPractices)
	g.GET("/analytics/practices/:id", h.HandlePracticeStats)
	g.GET("/analytics/bots/:bot", h.HandleBotStats)
	g.GET("/analytics/timeseries", h.HandleTimeSeries)
}

// HandleOverview returns overall usage statistics.
func (h *Handler) HandleOverview(c echo.Context) error {
	return c.JSON(http.StatusOK, h.tracker.GetOverview())
}

// HandleTopEndpoints returns the top endpoints sorted by request count.
func (h *Handler) HandleTopEndpoints(c echo.Context) error {
	limit := 20
	if l := c.QueryParam("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	return c.JSON(http.StatusOK, h.tracker.TopEndpoints(limit))
}

// HandleTopPractices returns the top practices sorted by chat volume.
func (h *Handler) HandleTopPractices(c echo.Context) error {
	limit := 20
	if l := c.QueryParam("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	return c.JSON(http.StatusOK, h.tracker.TopPractices(limit))
}

// HandlePracticeStats returns chat activity for a specific practice.
func (h *Handler) HandlePracticeStats(c echo.Context) error {
	summary := h.tracker.PracticeStats(c.Param("id"))
	if summary == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "practice not found"})
	}
	return c.JSON(http.StatusOK, summary)
}

// HandleBotStats returns the intent/risk breakdown for one bot.
func (h *Handler) HandleBotStats(c echo.Context) error {
	summary := h.tracker.BotStats(c.Param("bot"))
	if summary == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "bot not found"})
	}
	return c.JSON(http.StatusOK, summary)
}

// HandleTimeSeries returns time-bucketed chat counts.
func (h *Handler) HandleTimeSeries(c echo.Context) error {
	interval := parseDurationParam(c.QueryParam("interval"), time.Minute)
	duration := parseDurationParam(c.QueryParam("duration"), time.Hour)
	practiceID := c.QueryParam("practice_id")

	return c.JSON(http.StatusOK, h.tracker.TimeSeries(practiceID, interval, duration))
}

// parseDurationParam parses a duration string like "1m", "5m", "1h", "24h",
// "7d" into a time.Duration.
func parseDurationParam(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}

	// Handle "d" suffix for days.
	if strings.HasSuffix(s, "d") {
		numStr := strings.TrimSuffix(s, "d")
		if n, err := strconv.Atoi(numStr); err == nil {
			return time.Duration(n) * 24 * time.Hour
		}
		return defaultVal
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}
