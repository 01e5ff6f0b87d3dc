package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/miguelemosreverte/otbr-web/internal/protocol"
)

// ErrNoDataset is returned when the node has no dataset of the requested kind.
var ErrNoDataset = errors.New("dataset not present")

const (
	contentJSON  = "application/json"
	contentPlain = "text/plain"
)

// nodeRequest is one call to the OpenThread node API.
type nodeRequest struct {
	method      string
	path        string
	accept      string
	contentType string
	body        []byte
}

// node sends a request to the OpenThread node API. Unlike the GUI endpoints
// it reports failures through the status code only.
func (c *Client) node(ctx context.Context, nr nodeRequest) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if nr.body != nil {
		body = bytes.NewReader(nr.body)
	}
	req, err := http.NewRequestWithContext(ctx, nr.method, c.baseURL+nr.path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if nr.accept == "" {
		nr.accept = contentJSON
	}
	req.Header.Set("Accept", nr.accept)
	if nr.body != nil {
		req.Header.Set("Content-Type", nr.contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to reach border router: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(data))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return resp.StatusCode, nil, &APIError{Path: nr.path, StatusCode: resp.StatusCode, Message: msg}
	}
	return resp.StatusCode, data, nil
}

// NodeState returns the device role: disabled, detached, child, router or
// leader.
func (c *Client) NodeState(ctx context.Context) (string, error) {
	_, data, err := c.node(ctx, nodeRequest{method: http.MethodGet, path: "/node/state"})
	if err != nil {
		return "", err
	}
	var state string
	if err := json.Unmarshal(data, &state); err != nil {
		return "", fmt.Errorf("failed to parse node state: %w", err)
	}
	return state, nil
}

// SetNodeState enables or disables the Thread interface.
func (c *Client) SetNodeState(ctx context.Context, state string) error {
	if err := protocol.ValidateNodeState(state); err != nil {
		return err
	}
	body, _ := json.Marshal(state)
	_, _, err := c.node(ctx, nodeRequest{
		method:      http.MethodPut,
		path:        "/node/state",
		contentType: contentJSON,
		body:        body,
	})
	return err
}

// ResetNode stops Thread and erases the node's persistent network data.
// The border router answers 409 while the node cannot be reset.
func (c *Client) ResetNode(ctx context.Context) error {
	_, _, err := c.node(ctx, nodeRequest{method: http.MethodDelete, path: "/node"})
	return err
}

func datasetPath(kind string) string {
	return "/node/dataset/" + kind
}

// getDataset fetches a dataset as JSON into result, or ErrNoDataset.
func (c *Client) getDataset(ctx context.Context, kind string, result interface{}) error {
	status, data, err := c.node(ctx, nodeRequest{method: http.MethodGet, path: datasetPath(kind)})
	if err != nil {
		return err
	}
	if status == http.StatusNoContent || len(bytes.TrimSpace(data)) == 0 {
		return ErrNoDataset
	}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("failed to parse %s dataset: %w", kind, err)
	}
	return nil
}

// ActiveDataset returns the active operational dataset.
func (c *Client) ActiveDataset(ctx context.Context) (*protocol.ActiveDataset, error) {
	var ds protocol.ActiveDataset
	if err := c.getDataset(ctx, protocol.DatasetActive, &ds); err != nil {
		return nil, err
	}
	return &ds, nil
}

// PendingDataset returns the pending operational dataset.
func (c *Client) PendingDataset(ctx context.Context) (*protocol.PendingDataset, error) {
	var ds protocol.PendingDataset
	if err := c.getDataset(ctx, protocol.DatasetPending, &ds); err != nil {
		return nil, err
	}
	return &ds, nil
}

// DatasetTLVs returns a dataset as its hex encoded TLVs.
func (c *Client) DatasetTLVs(ctx context.Context, kind string) (string, error) {
	if err := protocol.ValidateDatasetKind(kind); err != nil {
		return "", err
	}
	status, data, err := c.node(ctx, nodeRequest{method: http.MethodGet, path: datasetPath(kind), accept: contentPlain})
	if err != nil {
		return "", err
	}
	tlvs := strings.TrimSpace(string(data))
	if status == http.StatusNoContent || tlvs == "" {
		return "", ErrNoDataset
	}
	return tlvs, nil
}

// putDataset reports whether the border router created a new dataset (201)
// instead of updating the existing one.
func (c *Client) putDataset(ctx context.Context, kind, contentType string, body []byte) (bool, error) {
	status, _, err := c.node(ctx, nodeRequest{
		method:      http.MethodPut,
		path:        datasetPath(kind),
		contentType: contentType,
		body:        body,
	})
	if err != nil {
		return false, err
	}
	return status == http.StatusCreated, nil
}

// SetActiveDataset merges ds into the active dataset. The node must be
// disabled first.
func (c *Client) SetActiveDataset(ctx context.Context, ds protocol.ActiveDataset) (bool, error) {
	if err := protocol.ValidateActiveDataset(&ds); err != nil {
		return false, err
	}
	body, err := json.Marshal(ds)
	if err != nil {
		return false, fmt.Errorf("failed to marshal dataset: %w", err)
	}
	return c.putDataset(ctx, protocol.DatasetActive, contentJSON, body)
}

// SetPendingDataset merges ds into the pending dataset.
func (c *Client) SetPendingDataset(ctx context.Context, ds protocol.PendingDataset) (bool, error) {
	if err := protocol.ValidatePendingDataset(&ds); err != nil {
		return false, err
	}
	body, err := json.Marshal(ds)
	if err != nil {
		return false, fmt.Errorf("failed to marshal dataset: %w", err)
	}
	return c.putDataset(ctx, protocol.DatasetPending, contentJSON, body)
}

// SetDatasetTLVs merges hex encoded TLVs into the dataset of the given kind.
func (c *Client) SetDatasetTLVs(ctx context.Context, kind, tlvs string) (bool, error) {
	if err := protocol.ValidateDatasetKind(kind); err != nil {
		return false, err
	}
	tlvs = strings.TrimSpace(tlvs)
	if err := protocol.ValidateDatasetTLVs(tlvs); err != nil {
		return false, err
	}
	return c.putDataset(ctx, kind, contentPlain, []byte(tlvs))
}
