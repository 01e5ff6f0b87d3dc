package ui

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miguelemosreverte/otbr-web/internal/cli"
	"github.com/miguelemosreverte/otbr-web/internal/metrics"
	"github.com/miguelemosreverte/otbr-web/internal/poller"
	"github.com/miguelemosreverte/otbr-web/internal/protocol"
	"github.com/miguelemosreverte/otbr-web/internal/store"
	"github.com/miguelemosreverte/otbr-web/internal/topology"
)

const diagnosticsJSON = `[
	{"Rloc16": 0, "ExtAddress": "aa00000000000001", "LeaderData": {"LeaderRouterId": 0},
	 "Route": {"RouteData": [{"RouteId": 1, "LinkQualityIn": 3, "LinkQualityOut": 3}]}, "ChildTable": []},
	{"Rloc16": 1024, "ExtAddress": "aa00000000000002", "LeaderData": {"LeaderRouterId": 0},
	 "Route": {"RouteData": [{"RouteId": 0, "LinkQualityIn": 3, "LinkQualityOut": 3}]},
	 "ChildTable": [{"ChildId": 1, "Timeout": 240, "Mode": "rn"}]}
]`

// fakeBorderRouter answers the border router REST endpoints.
func fakeBorderRouter(t *testing.T) *httptest.Server {
	t.Helper()
	reply := func(w http.ResponseWriter, code int, result string, message string) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(protocol.Envelope{Error: code, Result: json.RawMessage(result), Message: message})
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/node_information":
			reply(w, protocol.CodeOK, `{"NetworkName":"OpenThread-ESP","Rloc16":0,"State":4,"NumOfRouter":2}`, "Get Node: Success")
		case "/topology":
			reply(w, protocol.CodeOK, diagnosticsJSON, "Topology: Success")
		case "/get_properties":
			reply(w, protocol.CodeOK, `{"Network:Name":"OpenThread-ESP","Network:PANID":"0x1234"}`, "Get Properties: Success")
		case "/available_network":
			reply(w, protocol.CodeOK, `[{"id":0,"nn":"OpenThread-ESP","ch":15}]`, "Networks: Success")
		case "/form_network":
			reply(w, protocol.CodeFailed, `null`, "Form operation failed: already active")
		case "/add_prefix", "/delete_prefix", "/commission":
			reply(w, protocol.CodeOK, `null`, "Success")
		case "/node":
			w.WriteHeader(http.StatusConflict)
		case "/node/state":
			if r.Method == http.MethodPut {
				return
			}
			w.Write([]byte(`"leader"`))
		case "/node/dataset/active":
			switch {
			case r.Method == http.MethodPut:
				w.WriteHeader(http.StatusConflict)
			case r.Header.Get("Accept") == "text/plain":
				w.Write([]byte("0e08000000000001000000030000"))
			default:
				w.Write([]byte(`{"NetworkName":"OpenThread-ESP","Channel":15,"PanId":4660}`))
			}
		case "/node/dataset/pending":
			if r.Method == http.MethodPut {
				w.WriteHeader(http.StatusCreated)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

type fixture struct {
	server  *httptest.Server
	tracker *topology.Tracker
	poller  *poller.Poller
	store   *store.Store
}

func newFixture(t *testing.T, withStore bool) *fixture {
	t.Helper()
	br := fakeBorderRouter(t)
	client, err := cli.NewClient(br.URL, time.Second)
	require.NoError(t, err)

	logger := store.NewLogger(nil, "ui")
	logger.SetOutput(io.Discard)

	f := &fixture{tracker: topology.NewTracker()}
	opts := []poller.Option{poller.WithLogger(logger)}
	if withStore {
		f.store, err = store.Open(t.TempDir(), store.Options{MaintenanceEvery: time.Hour})
		require.NoError(t, err)
		t.Cleanup(func() { f.store.Close() })
		opts = append(opts, poller.WithSnapshots(f.store))
	}
	f.poller = poller.New(client, f.tracker, opts...)

	s := NewServer(Options{
		BorderRouter: br.URL,
		Version:      "test",
		Router:       client,
		Poller:       f.poller,
		Tracker:      f.tracker,
		Store:        f.store,
		Metrics:      metrics.NewRegistry(),
		Logger:       logger,
	})
	f.server = httptest.NewServer(s.Handler())
	t.Cleanup(f.server.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, f.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func TestTopologyNotReadyBeforeFirstBuild(t *testing.T) {
	f := newFixture(t, false)

	status, _ := f.do(t, "GET", "/api/topology", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)

	status, _ = f.do(t, "GET", "/api/topology/selected", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)

	status, _ = f.do(t, "POST", "/api/topology/selected?rloc16=0x0400", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestRefreshAndServeTopology(t *testing.T) {
	f := newFixture(t, false)

	status, body := f.do(t, "POST", "/api/topology/refresh", "")
	require.Equal(t, http.StatusOK, status, body)

	status, body = f.do(t, "GET", "/api/topology", "")
	require.Equal(t, http.StatusOK, status)

	var graph struct {
		Nodes        []map[string]any `json:"nodes"`
		Links        []map[string]any `json:"links"`
		NetworkName  string           `json:"networkName"`
		LeaderHex    string           `json:"leaderHex"`
		RouterCount  int              `json:"routerCount"`
		SelectedNode map[string]any   `json:"selectedNode"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &graph))
	assert.Equal(t, "OpenThread-ESP", graph.NetworkName)
	assert.Equal(t, "0x0", graph.LeaderHex)
	assert.Equal(t, 2, graph.RouterCount)
	assert.Len(t, graph.Nodes, 3)
	assert.Len(t, graph.Links, 2)
	assert.Equal(t, "0x0000", graph.SelectedNode["Rloc16"])
	assert.Equal(t, "Leader", graph.SelectedNode["Role"])
}

func TestSelectNode(t *testing.T) {
	f := newFixture(t, false)
	status, _ := f.do(t, "POST", "/api/topology/refresh", "")
	require.Equal(t, http.StatusOK, status)

	status, body := f.do(t, "POST", "/api/topology/selected?rloc16=0x0401", "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Contains(t, body, `"Rloc16":"0x0401"`)
	assert.Contains(t, body, `"hops":2`)

	status, body = f.do(t, "GET", "/api/topology", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"selectedNode":{"Rloc16":"0x0401"`)

	status, _ = f.do(t, "POST", "/api/topology/selected", `{"rloc16":"0x7c00"}`)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = f.do(t, "POST", "/api/topology/selected?rloc16=0xzz", "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = f.do(t, "POST", "/api/topology/selected", `{"rloc16":"auto"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"Rloc16":"0x0000"`)
	assert.Contains(t, body, `"hops":0`)
}

func TestProxyOperations(t *testing.T) {
	f := newFixture(t, false)

	status, body := f.do(t, "GET", "/api/status", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"Network:PANID":"0x1234"`)

	status, body = f.do(t, "GET", "/api/scan", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"nn":"OpenThread-ESP"`)

	status, _ = f.do(t, "POST", "/api/prefix", `{"prefix":"fd11:22::","defaultRoute":true}`)
	assert.Equal(t, http.StatusOK, status)

	status, _ = f.do(t, "DELETE", "/api/prefix", `{"prefix":"fd11:22::/64"}`)
	assert.Equal(t, http.StatusOK, status)

	status, _ = f.do(t, "POST", "/api/commission", `{"pskd":"J01NME"}`)
	assert.Equal(t, http.StatusOK, status)
}

func TestProxyErrors(t *testing.T) {
	f := newFixture(t, false)

	// rejected locally
	status, body := f.do(t, "POST", "/api/form", `{"networkName":"OpenThread","channel":30,"panId":"0x1234",
		"extPanId":"1111111122222222","networkKey":"00112233445566778899aabbccddeeff"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body, "channel")

	// rejected by the border router
	status, body = f.do(t, "POST", "/api/form", `{"networkName":"OpenThread","channel":15,"panId":"0x1234",
		"extPanId":"1111111122222222","networkKey":"00112233445566778899aabbccddeeff"}`)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Contains(t, body, "already active")

	status, _ = f.do(t, "POST", "/api/commission", `not json`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestHistoryWithoutStore(t *testing.T) {
	f := newFixture(t, false)

	for _, path := range []string{"/api/logs", "/api/snapshots", "/api/snapshots/abc", "/api/lifecycle"} {
		status, _ := f.do(t, "GET", path, "")
		assert.Equal(t, http.StatusServiceUnavailable, status, path)
	}
}

func TestSnapshotsAndLogs(t *testing.T) {
	f := newFixture(t, true)
	status, _ := f.do(t, "POST", "/api/topology/refresh", "")
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, f.store.WriteLog("WARN", "poller", "slow border router", ""))

	status, body := f.do(t, "GET", "/api/snapshots?earliest=-1h", "")
	require.Equal(t, http.StatusOK, status)
	var list protocol.SnapshotsResult
	require.NoError(t, json.Unmarshal([]byte(body), &list))
	require.Len(t, list.Snapshots, 1)
	assert.Equal(t, 2, list.Snapshots[0].RouterCount)

	status, body = f.do(t, "GET", "/api/snapshots/"+list.Snapshots[0].ID, "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"networkName":"OpenThread-ESP"`)

	status, _ = f.do(t, "GET", "/api/snapshots/missing", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, body = f.do(t, "GET", "/api/logs?level=WARN&component=poller", "")
	require.Equal(t, http.StatusOK, status)
	var logs protocol.LogsResult
	require.NoError(t, json.Unmarshal([]byte(body), &logs))
	require.Len(t, logs.Entries, 1)
	assert.Equal(t, "slow border router", logs.Entries[0].Message)

	status, _ = f.do(t, "GET", "/api/logs?earliest=yesterdayish", "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t, false)

	status, body := f.do(t, "GET", "/healthz", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"status":"starting"`)

	f.do(t, "POST", "/api/topology/refresh", "")
	f.do(t, "GET", "/api/topology", "")

	status, body = f.do(t, "GET", "/healthz", "")
	require.Equal(t, http.StatusOK, status)
	var health protocol.HealthResult
	require.NoError(t, json.Unmarshal([]byte(body), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 3, health.NodeCount)
	assert.Equal(t, uint64(1), health.Generation)

	status, body = f.do(t, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `otbr_http_requests_total{method="GET",path="/api/topology",status="200"} 1`)
}

func TestIndexPage(t *testing.T) {
	f := newFixture(t, false)
	status, body := f.do(t, "GET", "/", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Thread Topology")
	assert.Contains(t, body, "otbr-web test")

	status, _ = f.do(t, "GET", "/nope", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestLiveStreamsGraphsAndSelection(t *testing.T) {
	f := newFixture(t, false)
	status, _ := f.do(t, "POST", "/api/topology/refresh", "")
	require.Equal(t, http.StatusOK, status)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/api/live"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), `"networkName":"OpenThread-ESP"`)

	require.NoError(t, conn.WriteJSON(protocol.SelectParams{Rloc16: "0x0400"}))

	var update struct {
		SelectedNode struct {
			Rloc16 string `json:"Rloc16"`
			Role   string `json:"Role"`
		} `json:"selectedNode"`
	}
	require.NoError(t, conn.ReadJSON(&update))
	assert.Equal(t, "0x0400", update.SelectedNode.Rloc16)
	assert.Equal(t, "Router", update.SelectedNode.Role)
}
