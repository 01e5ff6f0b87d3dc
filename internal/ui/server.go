// Package ui provides the web dashboard for the Thread network topology.
package ui

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/miguelemosreverte/otbr-web/internal/cli"
	"github.com/miguelemosreverte/otbr-web/internal/metrics"
	"github.com/miguelemosreverte/otbr-web/internal/poller"
	"github.com/miguelemosreverte/otbr-web/internal/protocol"
	"github.com/miguelemosreverte/otbr-web/internal/store"
	"github.com/miguelemosreverte/otbr-web/internal/topology"
)

// BorderRouter is the part of the border router REST client the dashboard
// proxies. *cli.Client implements it.
type BorderRouter interface {
	Properties(ctx context.Context) (protocol.Properties, error)
	AvailableNetworks(ctx context.Context) ([]protocol.AvailableNetwork, error)
	FormNetwork(ctx context.Context, params protocol.FormParams) error
	JoinNetwork(ctx context.Context, params protocol.JoinParams) error
	AddPrefix(ctx context.Context, params protocol.PrefixParams) error
	DeletePrefix(ctx context.Context, params protocol.PrefixParams) error
	Commission(ctx context.Context, params protocol.CommissionParams) error

	NodeState(ctx context.Context) (string, error)
	SetNodeState(ctx context.Context, state string) error
	ResetNode(ctx context.Context) error
	ActiveDataset(ctx context.Context) (*protocol.ActiveDataset, error)
	PendingDataset(ctx context.Context) (*protocol.PendingDataset, error)
	DatasetTLVs(ctx context.Context, kind string) (string, error)
	SetActiveDataset(ctx context.Context, ds protocol.ActiveDataset) (bool, error)
	SetPendingDataset(ctx context.Context, ds protocol.PendingDataset) (bool, error)
	SetDatasetTLVs(ctx context.Context, kind, tlvs string) (bool, error)
}

// Options configures a Server. Store and Metrics are optional.
type Options struct {
	Listen       string
	BorderRouter string
	Version      string

	Router  BorderRouter
	Poller  *poller.Poller
	Tracker *topology.Tracker
	Store   *store.Store
	Metrics *metrics.Registry
	Logger  *store.Logger
}

// Server serves the web dashboard and its JSON API.
type Server struct {
	listenAddr   string
	borderRouter string
	version      string
	startTime    time.Time

	router  BorderRouter
	poller  *poller.Poller
	tracker *topology.Tracker
	store   *store.Store
	metrics *metrics.Registry
	logger  *store.Logger

	httpServer *http.Server
}

// NewServer creates a new UI server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = store.NewLogger(opts.Store, "ui")
	}
	s := &Server{
		listenAddr:   opts.Listen,
		borderRouter: opts.BorderRouter,
		version:      opts.Version,
		startTime:    time.Now(),
		router:       opts.Router,
		poller:       opts.Poller,
		tracker:      opts.Tracker,
		store:        opts.Store,
		metrics:      opts.Metrics,
		logger:       logger,
	}
	s.httpServer = &http.Server{
		Addr:              s.listenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the dashboard routes wrapped with request metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)

	// Topology
	mux.HandleFunc("GET /api/topology", s.handleTopology)
	mux.HandleFunc("POST /api/topology/refresh", s.handleRefresh)
	mux.HandleFunc("GET /api/topology/selected", s.handleSelected)
	mux.HandleFunc("POST /api/topology/selected", s.handleSelect)
	mux.HandleFunc("GET /api/topology/nodes/{rloc16}", s.handleNode)
	mux.HandleFunc("GET /api/live", s.handleLive)

	// Border router proxy
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/scan", s.handleScan)
	mux.HandleFunc("POST /api/form", s.handleForm)
	mux.HandleFunc("POST /api/join", s.handleJoin)
	mux.HandleFunc("POST /api/prefix", s.handleAddPrefix)
	mux.HandleFunc("DELETE /api/prefix", s.handleDeletePrefix)
	mux.HandleFunc("POST /api/commission", s.handleCommission)

	// OpenThread node
	mux.HandleFunc("GET /api/node/state", s.handleNodeState)
	mux.HandleFunc("PUT /api/node/state", s.handleSetNodeState)
	mux.HandleFunc("DELETE /api/node", s.handleResetNode)
	mux.HandleFunc("GET /api/dataset/{kind}", s.handleDataset)
	mux.HandleFunc("PUT /api/dataset/{kind}", s.handleSetDataset)
	mux.HandleFunc("GET /api/dataset/{kind}/tlvs", s.handleDatasetTLVs)
	mux.HandleFunc("PUT /api/dataset/{kind}/tlvs", s.handleSetDatasetTLVs)

	// History
	mux.HandleFunc("GET /api/logs", s.handleLogs)
	mux.HandleFunc("GET /api/logs/live", s.handleLiveLogs)
	mux.HandleFunc("GET /api/snapshots", s.handleSnapshots)
	mux.HandleFunc("GET /api/snapshots/latest", s.handleLatestSnapshot)
	mux.HandleFunc("GET /api/snapshots/{id}", s.handleSnapshot)
	mux.HandleFunc("GET /api/lifecycle", s.handleLifecycle)
	mux.HandleFunc("GET /api/storage", s.handleStorage)

	// Ops
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	return s.instrument(mux)
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	fmt.Printf("\n")
	fmt.Printf("  Thread Topology Dashboard starting...\n")
	fmt.Printf("  ────────────────────────────────────────\n")
	fmt.Printf("  URL:           http://%s\n", displayAddr(s.listenAddr))
	fmt.Printf("  Border router: %s\n", s.borderRouter)
	fmt.Printf("  ────────────────────────────────────────\n")
	fmt.Printf("  Press Ctrl+C to stop\n\n")

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func displayAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeRouterError maps a proxied call failure to a status code. Conflicts
// reported by the node API (wrong device state) are passed through.
func writeRouterError(w http.ResponseWriter, err error) {
	var apiErr *cli.APIError
	switch {
	case protocol.IsValidationError(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, cli.ErrNoDataset):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict:
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, context.DeadlineExceeded):
		http.Error(w, "border router timed out", http.StatusGatewayTimeout)
	default:
		http.Error(w, err.Error(), http.StatusBadGateway)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	indexTemplate.Execute(w, map[string]string{
		"Version":      s.version,
		"BorderRouter": s.borderRouter,
	})
}

var indexTemplate = template.Must(template.New("index").Parse(indexHTML))

func (s *Server) handleTopology(w http.ResponseWriter, r *http.Request) {
	g := s.tracker.Current()
	if g == nil {
		http.Error(w, topology.ErrNotReady.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	g, err := s.poller.Refresh(r.Context())
	if err != nil {
		writeRouterError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// selectedView is a selected node with its distance from the border router.
type selectedView struct {
	Node *topology.GraphNode `json:"node"`
	Hops int                 `json:"hops"`
}

func (s *Server) handleSelected(w http.ResponseWriter, r *http.Request) {
	node := s.tracker.Selected()
	if node == nil {
		http.Error(w, topology.ErrNotReady.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, selectedView{Node: node, Hops: s.tracker.Hops(node.Rloc16)})
}

func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	rloc16, err := topology.ParseRloc16(r.PathValue("rloc16"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if s.tracker.Current() == nil {
		http.Error(w, topology.ErrNotReady.Error(), http.StatusServiceUnavailable)
		return
	}
	node := s.tracker.Node(rloc16)
	if node == nil {
		http.Error(w, topology.ErrNodeNotFound.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, selectedView{Node: node, Hops: s.tracker.Hops(rloc16)})
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("rloc16")
	if raw == "" && r.ContentLength != 0 {
		var params protocol.SelectParams
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		raw = params.Rloc16
	}

	if err := s.selectNode(raw); err != nil {
		switch {
		case errors.Is(err, topology.ErrNotReady):
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
		case errors.Is(err, topology.ErrNodeNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		default:
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
		return
	}
	s.poller.Publish()
	s.handleSelected(w, r)
}

// selectNode pins the detail node. An empty value or "auto" follows the
// border router again.
func (s *Server) selectNode(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "auto" {
		s.tracker.ClearSelection()
		return nil
	}
	rloc16, err := topology.ParseRloc16(raw)
	if err != nil {
		return err
	}
	return s.tracker.Select(rloc16)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	props, err := s.router.Properties(r.Context())
	if err != nil {
		writeRouterError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, props)
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	networks, err := s.router.AvailableNetworks(r.Context())
	if err != nil {
		writeRouterError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, networks)
}

// proxy decodes the request body into params and forwards it with call.
func proxy[T any](s *Server, w http.ResponseWriter, r *http.Request, operation string, call func(context.Context, T) error) {
	var params T
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := call(r.Context(), params); err != nil {
		s.logger.WithField("operation", operation).Warn("Border router request failed: %v", err)
		writeRouterError(w, err)
		return
	}
	s.logger.Info("%s succeeded", operation)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": operation + " succeeded"})
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	proxy(s, w, r, "Form network", s.router.FormNetwork)
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	proxy(s, w, r, "Join network", s.router.JoinNetwork)
}

func (s *Server) handleAddPrefix(w http.ResponseWriter, r *http.Request) {
	proxy(s, w, r, "Add prefix", s.router.AddPrefix)
}

func (s *Server) handleDeletePrefix(w http.ResponseWriter, r *http.Request) {
	proxy(s, w, r, "Delete prefix", s.router.DeletePrefix)
}

func (s *Server) handleCommission(w http.ResponseWriter, r *http.Request) {
	proxy(s, w, r, "Commission", s.router.Commission)
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "storage not available", http.StatusServiceUnavailable)
		return
	}

	q := r.URL.Query()
	earliest := q.Get("earliest")
	if earliest == "" {
		earliest = "-15m"
	}
	tr, err := store.ParseTimeRange(earliest, q.Get("latest"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	limit := 100
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
	}

	result, err := s.store.QueryLogs(&store.LogQuery{
		TimeRange:  tr,
		Levels:     splitList(q.Get("level")),
		Components: splitList(q.Get("component")),
		Search:     q.Get("search"),
		Limit:      limit,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	out := protocol.LogsResult{
		Entries:    make([]protocol.LogEntry, len(result.Entries)),
		TotalCount: result.TotalCount,
		HasMore:    result.HasMore,
	}
	for i, e := range result.Entries {
		out.Entries[i] = protocol.LogEntry{
			ID:        e.ID,
			Timestamp: e.Timestamp.Format(time.RFC3339),
			Level:     e.Level,
			Component: e.Component,
			Message:   e.Message,
			Fields:    e.Fields,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "storage not available", http.StatusServiceUnavailable)
		return
	}

	q := r.URL.Query()
	query := &store.SnapshotQuery{NetworkName: q.Get("network"), Limit: 50}
	if earliest := q.Get("earliest"); earliest != "" {
		tr, err := store.ParseTimeRange(earliest, q.Get("latest"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		query.TimeRange = tr
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		query.Limit = limit
	}

	result, err := s.store.QuerySnapshots(query)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	out := protocol.SnapshotsResult{
		Snapshots:  make([]protocol.SnapshotInfo, len(result.Snapshots)),
		TotalCount: result.TotalCount,
		HasMore:    result.HasMore,
	}
	for i, snap := range result.Snapshots {
		out.Snapshots[i] = protocol.SnapshotInfo{
			ID:          snap.ID,
			Timestamp:   snap.Timestamp.Format(time.RFC3339),
			NetworkName: snap.NetworkName,
			LeaderHex:   snap.LeaderHex,
			RouterCount: snap.RouterCount,
			NodeCount:   snap.NodeCount,
			LinkCount:   snap.LinkCount,
			SizeBytes:   snap.SizeBytes,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "storage not available", http.StatusServiceUnavailable)
		return
	}

	_, payload, err := s.store.GetSnapshot(r.PathValue("id"))
	if errors.Is(err, store.ErrSnapshotNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(payload)
}

func (s *Server) handleLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "storage not available", http.StatusServiceUnavailable)
		return
	}

	meta, payload, err := s.store.LatestSnapshot()
	if errors.Is(err, store.ErrSnapshotNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Snapshot-Id", meta.ID)
	w.Write(payload)
}

func (s *Server) handleStorage(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "storage not available", http.StatusServiceUnavailable)
		return
	}

	stats, err := s.store.GetStorageStats()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleLifecycle(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "storage not available", http.StatusServiceUnavailable)
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	events, err := s.store.GetLifecycleEvents(limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	out := protocol.LifecycleResult{Events: make([]protocol.LifecycleEvent, len(events))}
	for i, e := range events {
		out.Events[i] = protocol.LifecycleEvent{
			ID:            e.ID,
			Timestamp:     e.Timestamp.Format(time.RFC3339),
			Event:         e.Event,
			Reason:        e.Reason,
			UptimeSeconds: e.UptimeSeconds,
			Version:       e.Version,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(s.startTime)
	result := protocol.HealthResult{
		Status:       "starting",
		Version:      s.version,
		Uptime:       uptime,
		UptimeStr:    store.FormatDuration(uptime),
		BorderRouter: s.borderRouter,
		Generation:   s.tracker.Generation(),
		UpdatedAt:    s.tracker.UpdatedAt(),
		LastSuccess:  s.poller.LastSuccess(),
	}

	if g := s.tracker.Current(); g != nil {
		result.Status = "ok"
		result.RouterCount = g.RouterCount
		result.NodeCount = len(g.Nodes)
	}
	if err := s.poller.LastError(); err != nil {
		result.Status = "degraded"
		result.LastError = err.Error()
	}

	writeJSON(w, http.StatusOK, result)
}

// statusRecorder captures the response status for request metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the WebSocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// instrument records every request, labelled by route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	if s.metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		path := r.Pattern
		if i := strings.IndexByte(path, ' '); i >= 0 {
			path = path[i+1:]
		}
		if path == "" {
			path = "unmatched"
		}
		s.metrics.RecordHTTPRequest(r.Method, path, strconv.Itoa(rec.status), time.Since(start))
	})
}

var _ BorderRouter = (*cli.Client)(nil)
