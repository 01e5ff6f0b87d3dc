// Package cli implements HTTP clients for the border router REST API and
// the dashboard service.
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/miguelemosreverte/otbr-web/internal/protocol"
	"github.com/miguelemosreverte/otbr-web/internal/topology"
)

// DefaultTimeout bounds a single request when none is configured.
const DefaultTimeout = 10 * time.Second

// maxResponseSize caps response bodies (diagnostics of large meshes included).
const maxResponseSize = 10 * 1024 * 1024

// APIError is returned when the border router answers with a non-2xx status
// or a non-zero envelope error code.
type APIError struct {
	Path       string
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: border router error %d: %s", e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Path, e.StatusCode, e.Message)
}

// IsAPIError reports whether err came from the remote side rather than the
// transport.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

// Client talks to a border router's REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// NewClient creates a client for the border router at baseURL. A missing
// scheme defaults to http.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	normalized, err := normalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL:    normalized,
		httpClient: &http.Client{},
		timeout:    timeout,
	}, nil
}

// BaseURL returns the normalized border router address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("border router address is empty")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid border router address %q: %w", raw, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid border router address %q: no host", raw)
	}
	return strings.TrimRight(u.String(), "/"), nil
}

// call sends a request and unwraps the response envelope into result.
func (c *Client) call(ctx context.Context, method, path string, params, result interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("failed to marshal params: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach border router: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Path: path, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}

	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if env.Error != protocol.CodeOK {
		return &APIError{Path: path, StatusCode: resp.StatusCode, Code: env.Error, Message: env.Message}
	}

	if result == nil {
		return nil
	}
	if len(env.Result) == 0 || string(env.Result) == "null" {
		return &APIError{Path: path, StatusCode: resp.StatusCode, Message: "empty result"}
	}
	if err := json.Unmarshal(env.Result, result); err != nil {
		return fmt.Errorf("failed to parse result: %w", err)
	}
	return nil
}

// NodeInformation fetches the node information of the border router.
func (c *Client) NodeInformation(ctx context.Context) (*topology.NodeInfo, error) {
	var info topology.NodeInfo
	if err := c.call(ctx, http.MethodGet, "/node_information", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Diagnostics fetches the diagnostic records of every reachable device.
func (c *Client) Diagnostics(ctx context.Context) ([]topology.DiagnosticRecord, error) {
	var raw json.RawMessage
	if err := c.call(ctx, http.MethodGet, "/topology", nil, &raw); err != nil {
		return nil, err
	}
	records, err := topology.DecodeDiagnostics(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse diagnostics: %w", err)
	}
	return records, nil
}

// Properties fetches the status properties.
func (c *Client) Properties(ctx context.Context) (protocol.Properties, error) {
	var props protocol.Properties
	if err := c.call(ctx, http.MethodGet, "/get_properties", nil, &props); err != nil {
		return nil, err
	}
	return props, nil
}

// AvailableNetworks scans for joinable networks.
func (c *Client) AvailableNetworks(ctx context.Context) ([]protocol.AvailableNetwork, error) {
	var networks []protocol.AvailableNetwork
	if err := c.call(ctx, http.MethodGet, "/available_network", nil, &networks); err != nil {
		return nil, err
	}
	if networks == nil {
		networks = []protocol.AvailableNetwork{}
	}
	return networks, nil
}

// FormNetwork forms a new network. Params are validated first.
func (c *Client) FormNetwork(ctx context.Context, params protocol.FormParams) error {
	if err := protocol.ValidateForm(&params); err != nil {
		return err
	}
	return c.call(ctx, http.MethodPost, "/form_network", params, nil)
}

// JoinNetwork joins a scanned network. Params are validated first.
func (c *Client) JoinNetwork(ctx context.Context, params protocol.JoinParams) error {
	if err := protocol.ValidateJoin(&params); err != nil {
		return err
	}
	return c.call(ctx, http.MethodPost, "/join_network", params, nil)
}

// AddPrefix adds an on-mesh prefix.
func (c *Client) AddPrefix(ctx context.Context, params protocol.PrefixParams) error {
	if err := protocol.ValidatePrefix(&params); err != nil {
		return err
	}
	return c.call(ctx, http.MethodPost, "/add_prefix", params, nil)
}

// DeletePrefix removes an on-mesh prefix.
func (c *Client) DeletePrefix(ctx context.Context, params protocol.PrefixParams) error {
	if err := protocol.ValidatePrefix(&params); err != nil {
		return err
	}
	return c.call(ctx, http.MethodPost, "/delete_prefix", params, nil)
}

// Commission starts the commissioner for a joiner with the given PSKd.
func (c *Client) Commission(ctx context.Context, params protocol.CommissionParams) error {
	if err := protocol.ValidateCommission(&params); err != nil {
		return err
	}
	return c.call(ctx, http.MethodPost, "/commission", params, nil)
}
