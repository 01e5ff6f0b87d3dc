package node

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miguelemosreverte/otbr-web/internal/config"
	"github.com/miguelemosreverte/otbr-web/internal/protocol"
	"github.com/miguelemosreverte/otbr-web/internal/store"
)

func fakeBorderRouter(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var result string
		switch r.URL.Path {
		case "/node_information":
			result = `{"NetworkName":"OpenThread-ESP","Rloc16":1024}`
		case "/topology":
			result = `[{"Rloc16":1024,"LeaderData":{"LeaderRouterId":1},"ChildTable":[{"ChildId":3,"Timeout":240,"Mode":"rn"}]}]`
		default:
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(protocol.Envelope{Result: json.RawMessage(result), Message: "Success"})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.PollInterval = time.Millisecond
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestDaemonRunAndStop(t *testing.T) {
	br := fakeBorderRouter(t)
	dataDir := t.TempDir()

	cfg := config.Defaults()
	cfg.BorderRouter = br.URL
	cfg.Listen = "127.0.0.1:0"
	cfg.PollInterval = time.Second
	cfg.DataDir = dataDir

	d, err := New(cfg)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- d.Run() }()

	require.Eventually(t, func() bool {
		return d.Tracker().Generation() >= 1
	}, 5*time.Second, 20*time.Millisecond)

	g := d.Tracker().Current()
	require.NotNil(t, g)
	assert.Equal(t, 1, g.RouterCount)
	assert.Len(t, g.Nodes, 2)
	assert.Equal(t, "0x1", g.LeaderHex)

	d.Stop()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after Stop")
	}

	s, err := store.New(dataDir)
	require.NoError(t, err)
	defer s.Close()

	events, err := s.GetLifecycleEvents(10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventStop, events[0].Event)
	assert.Equal(t, "stopped", events[0].Reason)
	assert.Equal(t, EventStart, events[1].Event)

	meta, _, err := s.LatestSnapshot()
	require.NoError(t, err)
	assert.Equal(t, "OpenThread-ESP", meta.NetworkName)
}
