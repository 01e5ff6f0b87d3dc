package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/miguelemosreverte/otbr-web/internal/protocol"
)

// ServiceClient talks to a running otbr-web dashboard.
type ServiceClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewServiceClient creates a client for the dashboard at addr.
func NewServiceClient(addr string, timeout time.Duration) (*ServiceClient, error) {
	if addr == "" {
		addr = "127.0.0.1:8080"
	}
	normalized, err := normalizeBaseURL(addr)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ServiceClient{
		baseURL:    normalized,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// get fetches a JSON document from the dashboard.
func (c *ServiceClient) get(ctx context.Context, path string, query url.Values, result interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to dashboard at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Path: path, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	if raw, ok := result.(*json.RawMessage); ok {
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		*raw = data
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// Health retrieves the dashboard status.
func (c *ServiceClient) Health(ctx context.Context) (*protocol.HealthResult, error) {
	var result protocol.HealthResult
	if err := c.get(ctx, "/healthz", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Logs retrieves logs with Splunk-like query parameters.
func (c *ServiceClient) Logs(ctx context.Context, params protocol.LogsParams) (*protocol.LogsResult, error) {
	q := url.Values{}
	if params.Earliest != "" {
		q.Set("earliest", params.Earliest)
	}
	if params.Latest != "" {
		q.Set("latest", params.Latest)
	}
	if len(params.Levels) > 0 {
		q.Set("level", strings.Join(params.Levels, ","))
	}
	if len(params.Components) > 0 {
		q.Set("component", strings.Join(params.Components, ","))
	}
	if params.Search != "" {
		q.Set("search", params.Search)
	}
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}

	var result protocol.LogsResult
	if err := c.get(ctx, "/api/logs", q, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Snapshots lists stored topology snapshots.
func (c *ServiceClient) Snapshots(ctx context.Context, earliest string, limit int) (*protocol.SnapshotsResult, error) {
	q := url.Values{}
	if earliest != "" {
		q.Set("earliest", earliest)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var result protocol.SnapshotsResult
	if err := c.get(ctx, "/api/snapshots", q, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Snapshot returns the graph JSON of one snapshot.
func (c *ServiceClient) Snapshot(ctx context.Context, id string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.get(ctx, "/api/snapshots/"+url.PathEscape(id), nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Lifecycle retrieves recent lifecycle events.
func (c *ServiceClient) Lifecycle(ctx context.Context, limit int) (*protocol.LifecycleResult, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var result protocol.LifecycleResult
	if err := c.get(ctx, "/api/lifecycle", q, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Storage retrieves storage statistics of the dashboard database.
func (c *ServiceClient) Storage(ctx context.Context) (*protocol.StorageResult, error) {
	var result protocol.StorageResult
	if err := c.get(ctx, "/api/storage", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// FollowLogs streams log entries to fn until ctx is cancelled or the
// dashboard closes the connection. The last tail entries are sent first.
func (c *ServiceClient) FollowLogs(ctx context.Context, params protocol.LogsParams, tail int, fn func(protocol.LogEntry)) error {
	u, err := url.Parse(c.baseURL + "/api/logs/live")
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	q := url.Values{}
	q.Set("tail", strconv.Itoa(tail))
	if len(params.Levels) > 0 {
		q.Set("level", strings.Join(params.Levels, ","))
	}
	if len(params.Components) > 0 {
		q.Set("component", strings.Join(params.Components, ","))
	}
	u.RawQuery = q.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return &APIError{Path: "/api/logs/live", StatusCode: resp.StatusCode, Message: resp.Status}
		}
		return fmt.Errorf("failed to connect to dashboard at %s: %w", c.baseURL, err)
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		var entry protocol.LogEntry
		if err := conn.ReadJSON(&entry); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("log stream closed: %w", err)
		}
		fn(entry)
	}
}
