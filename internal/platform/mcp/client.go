// Package mcp implements the JSON-RPC "tools/call" protocol spoken by the
// GoHighLevel MCP server. The client hides CRM internals behind typed,
// therapy-focused wrappers so the rest of the platform never sees raw CRM
// shapes. Calls are single-attempt with a fixed timeout: chat handlers fall
// back to canned responses on failure rather than making a visitor wait on
// retries.
package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultTimeout = 30 * time.Second

	// maxResponseBytes caps how much of an MCP response is read. A full
	// contact search (limit 100) fits comfortably.
	maxResponseBytes = 4 << 20

	callLogCapacity = 100
)

// ErrNotConfigured is returned when the client is missing its server URL,
// API key, or location id. Callers treat it as the signal to serve demo data.
var ErrNotConfigured = errors.New("mcp client not configured")

// MCPError is a JSON-RPC error object returned by the MCP server.
type MCPError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *MCPError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("mcp error %d: %s", e.Code, e.Message)
	}
	return "mcp error: " + e.Message
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      string    `json:"id"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
}

type rpcParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *MCPError       `json:"error"`
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout overrides the default 30s request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// Client talks to a GoHighLevel MCP server on behalf of one location.
type Client struct {
	baseURL    string
	apiKey     string
	locationID string
	httpClient *http.Client
	logger     zerolog.Logger
	calls      *CallLog
}

// NewClient creates an MCP client. An empty baseURL, apiKey, or locationID
// leaves the client unconfigured; every call then returns ErrNotConfigured.
func NewClient(baseURL, apiKey, locationID string, logger zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		locationID: locationID,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger.With().Str("component", "mcp-client").Logger(),
		calls:      NewCallLog(callLogCapacity),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Configured reports whether the client can reach a real MCP server.
// When false, callers fall back to demo data.
func (c *Client) Configured() bool {
	return c.baseURL != "" && c.apiKey != "" && c.locationID != ""
}

// RecentCalls returns up to n recent call records, newest first.
func (c *Client) RecentCalls(n int) []CallRecord {
	return c.calls.Recent(n)
}

// CallTool invokes a named tool on the MCP server. The location id and a
// bearer authorization are injected into the tool arguments, matching what
// the MCP server expects. The raw JSON-RPC result member is returned.
func (c *Client) CallTool(ctx context.Context, tool string, args map[string]interface{}) (json.RawMessage, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	merged := make(map[string]interface{}, len(args)+2)
	for k, v := range args {
		merged[k] = v
	}
	merged["authorization"] = "Bearer " + c.apiKey
	merged["locationId"] = c.locationID

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      fmt.Sprintf("req_%d", time.Now().UnixNano()),
		Method:  "tools/call",
		Params:  rpcParams{Name: tool, Arguments: merged},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal mcp request: %w", err)
	}

	start := time.Now()
	result, err := c.post(ctx, body)
	elapsed := time.Since(start)

	rec := CallRecord{Tool: tool, Duration: elapsed, At: start.UTC()}
	if err != nil {
		rec.Error = err.Error()
	}
	c.calls.Record(rec)

	if err != nil {
		c.logger.Warn().Err(err).Str("tool", tool).Dur("elapsed", elapsed).Msg("mcp call failed")
		return nil, err
	}
	c.logger.Debug().Str("tool", tool).Dur("elapsed", elapsed).Msg("mcp call ok")
	return result, nil
}

func (c *Client) post(ctx context.Context, body []byte) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/mcp", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build mcp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mcp request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read mcp response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mcp request failed: %d", resp.StatusCode)
	}

	var rr rpcResponse
	if err := json.Unmarshal(raw, &rr); err != nil {
		return nil, fmt.Errorf("decode mcp response: %w", err)
	}
	if rr.Error != nil {
		return nil, rr.Error
	}
	return rr.Result, nil
}
