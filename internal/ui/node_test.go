package ui

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miguelemosreverte/otbr-web/internal/cli"
	"github.com/miguelemosreverte/otbr-web/internal/protocol"
)

func TestNodeStateAndReset(t *testing.T) {
	f := newFixture(t, false)

	status, body := f.do(t, "GET", "/api/node/state", "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"state":"leader"}`, body)

	status, body = f.do(t, "PUT", "/api/node/state", `{"state":"disable"}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.Contains(t, body, `"state":"leader"`)

	status, body = f.do(t, "PUT", "/api/node/state", `{"state":"reboot"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body, "state")

	status, _ = f.do(t, "DELETE", "/api/node", "")
	assert.Equal(t, http.StatusConflict, status)
}

func TestDatasets(t *testing.T) {
	f := newFixture(t, false)

	status, body := f.do(t, "GET", "/api/dataset/active", "")
	require.Equal(t, http.StatusOK, status)
	var ds protocol.ActiveDataset
	require.NoError(t, json.Unmarshal([]byte(body), &ds))
	assert.Equal(t, "OpenThread-ESP", ds.NetworkName)
	require.NotNil(t, ds.PanID)
	assert.Equal(t, uint16(0x1234), *ds.PanID)

	status, body = f.do(t, "GET", "/api/dataset/active/tlvs", "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"tlvs":"0e08000000000001000000030000"}`, body)

	status, _ = f.do(t, "GET", "/api/dataset/pending", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = f.do(t, "GET", "/api/dataset/current", "")
	assert.Equal(t, http.StatusBadRequest, status)

	// active dataset is locked while Thread runs
	status, _ = f.do(t, "PUT", "/api/dataset/active", `{"Channel":20}`)
	assert.Equal(t, http.StatusConflict, status)

	status, body = f.do(t, "PUT", "/api/dataset/pending", `{"ActiveDataset":{"Channel":20},"Delay":30000}`)
	require.Equal(t, http.StatusCreated, status, body)
	assert.JSONEq(t, `{"status":"ok","created":true}`, body)

	status, _ = f.do(t, "PUT", "/api/dataset/pending", `{"ActiveDataset":{"Channel":30}}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = f.do(t, "PUT", "/api/dataset/pending/tlvs", `{"tlvs":"0e0"}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestNodeDetails(t *testing.T) {
	f := newFixture(t, false)

	status, _ := f.do(t, "GET", "/api/topology/nodes/0x0401", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)

	status, _ = f.do(t, "POST", "/api/topology/refresh", "")
	require.Equal(t, http.StatusOK, status)

	status, body := f.do(t, "GET", "/api/topology/nodes/0x0401", "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Contains(t, body, `"Rloc16":"0x0401"`)
	assert.Contains(t, body, `"hops":2`)

	// selection is untouched
	status, body = f.do(t, "GET", "/api/topology/selected", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"Rloc16":"0x0000"`)

	status, _ = f.do(t, "GET", "/api/topology/nodes/0x7c00", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = f.do(t, "GET", "/api/topology/nodes/router", "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestStorageAndLatestSnapshot(t *testing.T) {
	f := newFixture(t, false)
	for _, path := range []string{"/api/storage", "/api/snapshots/latest", "/api/logs/live"} {
		status, _ := f.do(t, "GET", path, "")
		assert.Equal(t, http.StatusServiceUnavailable, status, path)
	}

	f = newFixture(t, true)
	status, _ := f.do(t, "GET", "/api/snapshots/latest", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = f.do(t, "POST", "/api/topology/refresh", "")
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, f.store.WriteLog("INFO", "poller", "refreshed", ""))

	resp, err := http.Get(f.server.URL + "/api/snapshots/latest")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Snapshot-Id"))
	var graph struct {
		RouterCount int `json:"routerCount"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&graph))
	assert.Equal(t, 2, graph.RouterCount)

	status, body := f.do(t, "GET", "/api/storage", "")
	require.Equal(t, http.StatusOK, status)
	var stats protocol.StorageResult
	require.NoError(t, json.Unmarshal([]byte(body), &stats))
	assert.Equal(t, int64(1), stats.SnapshotCount)
	assert.Equal(t, int64(1), stats.LogCount)
	assert.Positive(t, stats.SnapshotPayloadBytes)

	status, body = f.do(t, "GET", "/healthz", "")
	require.Equal(t, http.StatusOK, status)
	var health protocol.HealthResult
	require.NoError(t, json.Unmarshal([]byte(body), &health))
	assert.WithinDuration(t, time.Now(), health.LastSuccess, 5*time.Second)
}

func TestLiveLogsReplayThenStream(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, f.store.WriteLog("INFO", "poller", "first", ""))
	require.NoError(t, f.store.WriteLog("WARN", "poller", "second", ""))
	require.NoError(t, f.store.WriteLog("WARN", "ui", "other component", ""))

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/api/logs/live?tail=5&component=poller"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var entry protocol.LogEntry
	require.NoError(t, conn.ReadJSON(&entry))
	assert.Equal(t, "first", entry.Message)
	require.NoError(t, conn.ReadJSON(&entry))
	assert.Equal(t, "second", entry.Message)

	require.NoError(t, f.store.WriteLog("ERROR", "ui", "filtered out", ""))
	require.NoError(t, f.store.WriteLog("ERROR", "poller", "border router unreachable", ""))
	require.NoError(t, conn.ReadJSON(&entry))
	assert.Equal(t, "border router unreachable", entry.Message)
	assert.Equal(t, "ERROR", entry.Level)

	_, _, err = websocket.DefaultDialer.Dial(strings.Replace(url, "tail=5", "tail=-1", 1), nil)
	assert.Error(t, err)
}

func TestFollowLogsClient(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, f.store.WriteLog("WARN", "poller", "backlog", ""))

	client, err := cli.NewServiceClient(f.server.URL, time.Second)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	got := make(chan string, 4)
	done := make(chan error, 1)
	go func() {
		done <- client.FollowLogs(ctx, protocol.LogsParams{Levels: []string{"warn"}}, 10, func(e protocol.LogEntry) {
			got <- e.Message
		})
	}()

	assert.Equal(t, "backlog", <-got)
	require.NoError(t, f.store.WriteLog("INFO", "poller", "too quiet", ""))
	require.NoError(t, f.store.WriteLog("WARN", "poller", "live", ""))
	assert.Equal(t, "live", <-got)

	cancel()
	assert.NoError(t, <-done)
}
