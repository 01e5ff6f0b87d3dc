package protocol

import "time"

// Dashboard service API types, shared by the HTTP server and the CLI.

// HealthResult is returned by /healthz.
type HealthResult struct {
	Status       string        `json:"status"`
	Version      string        `json:"version"`
	Uptime       time.Duration `json:"uptime"`
	UptimeStr    string        `json:"uptime_str"`
	BorderRouter string        `json:"border_router"`
	Generation   uint64        `json:"generation"`
	UpdatedAt    time.Time     `json:"updated_at,omitempty"`
	LastSuccess  time.Time     `json:"last_success,omitempty"`
	RouterCount  int           `json:"router_count"`
	NodeCount    int           `json:"node_count"`
	LastError    string        `json:"last_error,omitempty"`
}

// LogsParams are the query parameters of /api/logs.
type LogsParams struct {
	Earliest   string   `json:"earliest,omitempty"`   // Splunk-like: -1h, -30m, @d
	Latest     string   `json:"latest,omitempty"`     // Splunk-like: now, -5m
	Levels     []string `json:"levels,omitempty"`     // DEBUG, INFO, WARN, ERROR
	Components []string `json:"components,omitempty"` // poller, ui, node, etc.
	Search     string   `json:"search,omitempty"`     // Full-text search
	Limit      int      `json:"limit,omitempty"`
}

// LogEntry represents a single log entry.
type LogEntry struct {
	ID        int64  `json:"id"`
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Component string `json:"component"`
	Message   string `json:"message"`
	Fields    string `json:"fields,omitempty"`
}

// LogsResult is returned by /api/logs.
type LogsResult struct {
	Entries    []LogEntry `json:"entries"`
	TotalCount int64      `json:"total_count"`
	HasMore    bool       `json:"has_more"`
}

// SnapshotInfo describes a stored topology snapshot without its payload.
type SnapshotInfo struct {
	ID          string `json:"id"`
	Timestamp   string `json:"timestamp"`
	NetworkName string `json:"network_name"`
	LeaderHex   string `json:"leader_hex"`
	RouterCount int    `json:"router_count"`
	NodeCount   int    `json:"node_count"`
	LinkCount   int    `json:"link_count"`
	SizeBytes   int    `json:"size_bytes"`
}

// SnapshotsResult is returned by /api/snapshots.
type SnapshotsResult struct {
	Snapshots  []SnapshotInfo `json:"snapshots"`
	TotalCount int64          `json:"total_count"`
	HasMore    bool           `json:"has_more"`
}

// LifecycleEvent represents a service lifecycle event (start, stop, crash).
type LifecycleEvent struct {
	ID            int64   `json:"id"`
	Timestamp     string  `json:"timestamp"`
	Event         string  `json:"event"`  // START, STOP, SIGNAL
	Reason        string  `json:"reason"` // Detailed reason
	UptimeSeconds float64 `json:"uptime_seconds"`
	Version       string  `json:"version"`
}

// LifecycleResult is returned by /api/lifecycle, newest first.
type LifecycleResult struct {
	Events []LifecycleEvent `json:"events"`
}

// SelectParams changes the node shown in the detail panel.
type SelectParams struct {
	Rloc16 string `json:"rloc16"`
}

// NodeStateParams is the body of PUT /api/node/state.
type NodeStateParams struct {
	State string `json:"state"`
}

// NodeStateResult is returned by /api/node/state.
type NodeStateResult struct {
	State string `json:"state"`
}

// DatasetTLVs carries a hex encoded dataset.
type DatasetTLVs struct {
	TLVs string `json:"tlvs"`
}

// DatasetUpdateResult is returned by PUT /api/dataset/{kind}.
type DatasetUpdateResult struct {
	Status  string `json:"status"`
	Created bool   `json:"created"`
}

// StorageResult is returned by /api/storage.
type StorageResult struct {
	DBSizeBytes          int64   `json:"db_size_bytes"`
	DBSizeMB             float64 `json:"db_size_mb"`
	LogCount             int64   `json:"log_count"`
	SnapshotCount        int64   `json:"snapshot_count"`
	SnapshotPayloadBytes int64   `json:"snapshot_payload_bytes"`
}
