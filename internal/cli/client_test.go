package cli

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miguelemosreverte/otbr-web/internal/protocol"
	"github.com/miguelemosreverte/otbr-web/internal/topology"
)

func envelope(t *testing.T, w http.ResponseWriter, code int, result any, message string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	raw, err := json.Marshal(result)
	require.NoError(t, err)
	require.NoError(t, json.NewEncoder(w).Encode(protocol.Envelope{Error: code, Result: raw, Message: message}))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL, time.Second)
	require.NoError(t, err)
	return c
}

func TestNewClientNormalizesAddress(t *testing.T) {
	c, err := NewClient("192.168.4.1/", 0)
	require.NoError(t, err)
	assert.Equal(t, "http://192.168.4.1", c.BaseURL())

	_, err = NewClient("", 0)
	assert.Error(t, err)
}

func TestClientFetchesTopologyPair(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		switch r.URL.Path {
		case "/node_information":
			envelope(t, w, 0, map[string]any{
				"NetworkName": "OpenThread-ESP",
				"Rloc16":      1024,
				"LeaderData":  map[string]any{"LeaderRouterId": 1},
			}, "Get Node: Success")
		case "/topology":
			envelope(t, w, 0, []map[string]any{
				{"Rloc16": 1024, "ChildTable": []any{}},
				{"Rloc16": 1025, "Mode": "rn"},
			}, "Topology: Success")
		default:
			http.NotFound(w, r)
		}
	})

	ctx := context.Background()
	info, err := c.NodeInformation(ctx)
	require.NoError(t, err)
	assert.Equal(t, "OpenThread-ESP", info.NetworkName)
	assert.Equal(t, uint16(1024), info.Rloc16)

	diags, err := c.Diagnostics(ctx)
	require.NoError(t, err)
	require.Len(t, diags, 2)
	assert.True(t, diags[0].IsRouter())
	assert.False(t, diags[1].IsRouter())
}

func TestClientSurfacesEnvelopeErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		envelope(t, w, 1, nil, "Topology: Failure")
	})

	_, err := c.Diagnostics(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 1, apiErr.Code)
	assert.Equal(t, "Topology: Failure", apiErr.Message)
	assert.Equal(t, "/topology", apiErr.Path)
}

func TestClientSurfacesHTTPErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	})

	_, err := c.Properties(context.Background())
	require.Error(t, err)
	assert.True(t, IsAPIError(err))
	assert.Contains(t, err.Error(), "HTTP 503")
}

func TestClientMissingRloc16(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		envelope(t, w, 0, map[string]any{"NetworkName": "x"}, "Get Node: Success")
	})

	_, err := c.NodeInformation(context.Background())
	assert.ErrorIs(t, err, topology.ErrMissingRloc16)
}

func TestClientPostsValidatedParams(t *testing.T) {
	var got protocol.PrefixParams
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/add_prefix", r.URL.Path)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &got))
		envelope(t, w, 0, "success", "Add Prefix: Success")
	})

	err := c.AddPrefix(context.Background(), protocol.PrefixParams{Prefix: "fd00:1::", DefaultRoute: true})
	require.NoError(t, err)
	assert.Equal(t, "fd00:1::/64", got.Prefix)
	assert.True(t, bool(got.DefaultRoute))
}

func TestClientRequestBodiesMatchBorderRouter(t *testing.T) {
	bodies := map[string]string{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		bodies[r.URL.Path] = string(body)
		envelope(t, w, 0, "success", "Success")
	})

	ctx := context.Background()
	require.NoError(t, c.FormNetwork(ctx, protocol.FormParams{
		NetworkName: "OpenThread",
		Channel:     15,
		PanID:       "0x1234",
		ExtPanID:    "1111111122222222",
		NetworkKey:  "00112233445566778899aabbccddeeff",
	}))
	require.NoError(t, c.JoinNetwork(ctx, protocol.JoinParams{
		Index:          2,
		CredentialType: protocol.CredentialPSKd,
		NetworkKey:     "00112233445566778899aabbccddeeff",
		PSKd:           "J01NME",
		Prefix:         "fd11:22::",
		DefaultRoute:   true,
	}))

	assert.JSONEq(t, `{
		"networkName":"OpenThread","channel":15,"panId":"0x1234","extPanId":"1111111122222222",
		"networkKey":"00112233445566778899aabbccddeeff","defaultRoute":0
	}`, bodies["/form_network"])
	assert.JSONEq(t, `{
		"index":2,"credentialType":"pskdType","networkKey":"00112233445566778899aabbccddeeff",
		"pskd":"J01NME","prefix":"fd11:22::/64","defaultRoute":1
	}`, bodies["/join_network"])
}

func TestClientRejectsJoinWithoutBothCredentials(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	err := c.JoinNetwork(context.Background(), protocol.JoinParams{
		CredentialType: protocol.CredentialPSKd,
		PSKd:           "J01NME",
		Prefix:         "fd11:22::",
	})
	require.Error(t, err)
	assert.True(t, protocol.IsValidationError(err))
	assert.False(t, called)
}

func TestClientRejectsInvalidParamsLocally(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	err := c.FormNetwork(context.Background(), protocol.FormParams{NetworkName: "x", Channel: 40})
	require.Error(t, err)
	assert.True(t, protocol.IsValidationError(err))
	assert.False(t, called)
}

func TestClientScanAndProperties(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/available_network":
			envelope(t, w, 0, []protocol.AvailableNetwork{
				{ID: 0, NetworkName: "OpenThread-ESP", ExtPanID: "dead00beef00cafe", PanID: "0x1234", Channel: 15, RSSI: -40, LinkQuality: 3},
			}, "Scan: Success")
		case "/get_properties":
			envelope(t, w, 0, map[string]any{"Network:Name": "OpenThread-ESP", "RCP:Channel": 15}, "Get Properties: Success")
		}
	})

	networks, err := c.AvailableNetworks(context.Background())
	require.NoError(t, err)
	require.Len(t, networks, 1)
	assert.Equal(t, 15, networks[0].Channel)

	props, err := c.Properties(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "15", props["RCP:Channel"])
}

func TestClientHonorsContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.NodeInformation(ctx)
	require.Error(t, err)
	assert.False(t, IsAPIError(err))
}

func TestServiceClientLogs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/logs", r.URL.Path)
		assert.Equal(t, "-1h", r.URL.Query().Get("earliest"))
		assert.Equal(t, "ERROR,WARN", r.URL.Query().Get("level"))
		json.NewEncoder(w).Encode(protocol.LogsResult{
			Entries:    []protocol.LogEntry{{ID: 1, Level: "ERROR", Component: "poller", Message: "fetch failed"}},
			TotalCount: 1,
		})
	}))
	defer srv.Close()

	c, err := NewServiceClient(srv.URL, time.Second)
	require.NoError(t, err)

	result, err := c.Logs(context.Background(), protocol.LogsParams{Earliest: "-1h", Levels: []string{"ERROR", "WARN"}})
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, "poller", result.Entries[0].Component)
}

func TestServiceClientSnapshotRaw(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/snapshots/abc", r.URL.Path)
		w.Write([]byte(`{"nodes":[],"links":[]}`))
	}))
	defer srv.Close()

	c, err := NewServiceClient(srv.URL, time.Second)
	require.NoError(t, err)

	raw, err := c.Snapshot(context.Background(), "abc")
	require.NoError(t, err)
	assert.JSONEq(t, `{"nodes":[],"links":[]}`, string(raw))
}
