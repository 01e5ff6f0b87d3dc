package store

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), Options{MaintenanceEvery: time.Hour})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := newTestStore(t)
	graph := []byte(`{"nodes":[{"Rloc16":"0x0400","Role":"Leader"}],"links":[],"networkName":"OpenThread-ESP","leaderHex":"0x1","routerCount":1,"selectedNode":"Unknown"}`)

	id, err := s.WriteSnapshot(Snapshot{NetworkName: "OpenThread-ESP", LeaderHex: "0x1", RouterCount: 1, NodeCount: 1}, graph)
	require.NoError(t, err)
	assert.Len(t, id, 36)

	meta, payload, err := s.GetSnapshot(id)
	require.NoError(t, err)
	assert.Equal(t, graph, payload)
	assert.Equal(t, "OpenThread-ESP", meta.NetworkName)
	assert.Equal(t, len(graph), meta.SizeBytes)
	assert.False(t, meta.Timestamp.IsZero())

	_, _, err = s.GetSnapshot("missing")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestSnapshotIsCompressed(t *testing.T) {
	s := newTestStore(t)
	graph := []byte(`{"nodes":[` + strings.Repeat(`{"Rloc16":"0x0401","RouteId":1,"Role":"Child"},`, 200) + `{}]}`)

	_, err := s.WriteSnapshot(Snapshot{NetworkName: "n"}, graph)
	require.NoError(t, err)

	stats, err := s.GetStorageStats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats["snapshot_count"])
	assert.Less(t, stats["snapshot_payload_bytes"].(int64), int64(len(graph)))
}

func TestQuerySnapshotsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		_, err := s.WriteSnapshot(Snapshot{
			Timestamp:   base.Add(time.Duration(i) * time.Minute),
			NetworkName: "OpenThread-ESP",
			RouterCount: i,
		}, []byte(`{}`))
		require.NoError(t, err)
	}

	result, err := s.QuerySnapshots(&SnapshotQuery{Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(5), result.TotalCount)
	assert.True(t, result.HasMore)
	require.Len(t, result.Snapshots, 3)
	assert.Equal(t, 4, result.Snapshots[0].RouterCount)
	assert.Equal(t, 2, result.Snapshots[2].RouterCount)

	tr := &TimeRange{Start: base.Add(90 * time.Second), End: time.Now()}
	result, err = s.QuerySnapshots(&SnapshotQuery{TimeRange: tr})
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.TotalCount)
	assert.False(t, result.HasMore)

	meta, _, err := s.LatestSnapshot()
	require.NoError(t, err)
	assert.Equal(t, 4, meta.RouterCount)
}

func TestSnapshotRetention(t *testing.T) {
	s := newTestStore(t)
	_, err := s.WriteSnapshot(Snapshot{Timestamp: time.Now().Add(-48 * time.Hour)}, []byte(`{}`))
	require.NoError(t, err)
	fresh, err := s.WriteSnapshot(Snapshot{}, []byte(`{}`))
	require.NoError(t, err)

	s.enforceRetention(time.Now())

	result, err := s.QuerySnapshots(&SnapshotQuery{})
	require.NoError(t, err)
	require.Len(t, result.Snapshots, 1)
	assert.Equal(t, fresh, result.Snapshots[0].ID)
}

func TestQueryLogsFilters(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.WriteLog("INFO", "poller", "built topology with 3 nodes", ""))
	require.NoError(t, s.WriteLog("ERROR", "poller", "fetch diagnostics failed", `{"endpoint":"/topology"}`))
	require.NoError(t, s.WriteLog("WARN", "ui", "websocket client dropped", ""))

	result, err := s.QueryLogs(&LogQuery{Levels: []string{"error"}})
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, `{"endpoint":"/topology"}`, result.Entries[0].Fields)

	result, err = s.QueryLogs(&LogQuery{Components: []string{"poller"}, Search: "topology"})
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, "INFO", result.Entries[0].Level)

	entries, err := s.Tail(2, nil, nil)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "ui", entries[0].Component)
}

func TestLogSubscribers(t *testing.T) {
	s := newTestStore(t)
	ch := s.SubscribeLogs()

	require.NoError(t, s.WriteLog("INFO", "node", "started", ""))

	select {
	case entry := <-ch:
		assert.Equal(t, "started", entry.Message)
		assert.NotZero(t, entry.ID)
	case <-time.After(time.Second):
		t.Fatal("no log entry delivered")
	}

	s.UnsubscribeLogs(ch)
	s.UnsubscribeLogs(ch)
}

func TestLifecycleEvents(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.WriteLifecycleEvent("START", "service started", 0, "v1.0.0"))
	require.NoError(t, s.WriteLifecycleEvent("STOP", "signal: terminated", 12.5, "v1.0.0"))

	events, err := s.GetLifecycleEvents(10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "STOP", events[0].Event)
	assert.Equal(t, 12.5, events[0].UptimeSeconds)
}

func TestLoggerLevelsAndFields(t *testing.T) {
	s := newTestStore(t)
	var out bytes.Buffer

	logger := NewLogger(s, "poller")
	logger.SetOutput(&out)
	logger.SetLevel(LevelWarn)

	logger.Info("ignored")
	logger.WithField("endpoint", "/topology").Error("fetch failed: %s", "timeout")

	assert.NotContains(t, out.String(), "ignored")
	assert.Contains(t, out.String(), `[poller] [ERROR] fetch failed: timeout {"endpoint":"/topology"}`)

	entries, err := s.Tail(10, nil, nil)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ERROR", entries[0].Level)

	ui := logger.Component("ui")
	ui.Warn("slow client")
	entries, err = s.Tail(10, nil, []string{"ui"})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, LevelWarn, lvl)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}

func TestLogWriterExtractsComponent(t *testing.T) {
	s := newTestStore(t)
	w := NewLogWriter(s, "main", "INFO")
	w.out = &bytes.Buffer{}

	_, err := w.Write([]byte("2024/01/15 14:30:00 [poller] Refresh failed: connection refused\n"))
	require.NoError(t, err)

	entries, err := s.Tail(1, nil, nil)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "poller", entries[0].Component)
	assert.Equal(t, "ERROR", entries[0].Level)
	assert.Equal(t, "Refresh failed: connection refused", entries[0].Message)
}
