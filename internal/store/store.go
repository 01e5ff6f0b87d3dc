// Package store provides SQLite-based storage for service logs and topology
// snapshots with Splunk-like querying.
package store

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	// DefaultMaxStorageBytes is the default storage size cap (50MB)
	DefaultMaxStorageBytes = 50 * 1024 * 1024

	// DefaultSnapshotRetention is how long topology snapshots are kept
	DefaultSnapshotRetention = 24 * time.Hour

	// DefaultLogsRetention is default log retention (7 days, subject to size limit)
	DefaultLogsRetention = 7 * 24 * time.Hour

	dbFileName = "otbr-web.db"
)

// Options tunes retention. Zero values fall back to the defaults.
type Options struct {
	SnapshotRetention time.Duration
	LogsRetention     time.Duration
	MaxStorageBytes   int64
	MaintenanceEvery  time.Duration
}

func (o Options) withDefaults() Options {
	if o.SnapshotRetention <= 0 {
		o.SnapshotRetention = DefaultSnapshotRetention
	}
	if o.LogsRetention <= 0 {
		o.LogsRetention = DefaultLogsRetention
	}
	if o.MaxStorageBytes <= 0 {
		o.MaxStorageBytes = DefaultMaxStorageBytes
	}
	if o.MaintenanceEvery <= 0 {
		o.MaintenanceEvery = time.Minute
	}
	return o
}

// Store manages SQLite storage for logs, snapshots and lifecycle events.
type Store struct {
	db        *sql.DB
	dbPath    string
	opts      Options
	mu        sync.RWMutex
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once

	// Subscribers for real-time streaming
	logSubs   map[chan *LogEntry]struct{}
	logSubsMu sync.RWMutex
}

// LogEntry represents a single log entry.
type LogEntry struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"` // DEBUG, INFO, WARN, ERROR
	Component string    `json:"component"`
	Message   string    `json:"message"`
	Fields    string    `json:"fields,omitempty"` // JSON-encoded extra fields
}

// New creates a store in dataDir with default retention.
func New(dataDir string) (*Store, error) {
	return Open(dataDir, Options{})
}

// Open creates a store in dataDir.
func Open(dataDir string, opts Options) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, dbFileName)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{
		db:       db,
		dbPath:   dbPath,
		opts:     opts.withDefaults(),
		stopChan: make(chan struct{}),
		logSubs:  make(map[chan *LogEntry]struct{}),
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	s.wg.Add(1)
	go s.maintenanceLoop()

	log.Printf("[store] Initialized SQLite store at %s", dbPath)
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp INTEGER NOT NULL,  -- Unix timestamp in milliseconds
		level TEXT NOT NULL,
		component TEXT NOT NULL,
		message TEXT NOT NULL,
		fields TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON logs(timestamp);
	CREATE INDEX IF NOT EXISTS idx_logs_level ON logs(level);
	CREATE INDEX IF NOT EXISTS idx_logs_component ON logs(component);

	-- Topology snapshots, graph JSON compressed with snappy
	CREATE TABLE IF NOT EXISTS snapshots (
		id TEXT PRIMARY KEY,
		timestamp INTEGER NOT NULL,
		network_name TEXT NOT NULL,
		leader_hex TEXT NOT NULL,
		router_count INTEGER NOT NULL,
		node_count INTEGER NOT NULL,
		link_count INTEGER NOT NULL,
		raw_size INTEGER NOT NULL,
		payload BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_snapshots_timestamp ON snapshots(timestamp);

	CREATE TABLE IF NOT EXISTS lifecycle (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp INTEGER NOT NULL,
		event TEXT NOT NULL,      -- START, STOP, SIGNAL
		reason TEXT,
		uptime_seconds REAL,
		version TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_lifecycle_timestamp ON lifecycle(timestamp);
	`
	_, err := s.db.Exec(schema)
	return err
}

// WriteLog writes a log entry.
func (s *Store) WriteLog(level, component, message, fields string) error {
	entry := &LogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Component: component,
		Message:   message,
		Fields:    fields,
	}

	s.mu.Lock()
	res, err := s.db.Exec(
		"INSERT INTO logs (timestamp, level, component, message, fields) VALUES (?, ?, ?, ?, ?)",
		entry.Timestamp.UnixMilli(), level, component, message, fields,
	)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	entry.ID, _ = res.LastInsertId()

	s.notifyLogSubscribers(entry)
	return nil
}

// SubscribeLogs returns a channel for real-time log streaming.
func (s *Store) SubscribeLogs() chan *LogEntry {
	ch := make(chan *LogEntry, 100)
	s.logSubsMu.Lock()
	s.logSubs[ch] = struct{}{}
	s.logSubsMu.Unlock()
	return ch
}

// UnsubscribeLogs removes a log subscription.
func (s *Store) UnsubscribeLogs(ch chan *LogEntry) {
	s.logSubsMu.Lock()
	if _, ok := s.logSubs[ch]; ok {
		delete(s.logSubs, ch)
		close(ch)
	}
	s.logSubsMu.Unlock()
}

func (s *Store) notifyLogSubscribers(entry *LogEntry) {
	s.logSubsMu.RLock()
	defer s.logSubsMu.RUnlock()

	for ch := range s.logSubs {
		select {
		case ch <- entry:
		default:
			// Drop if buffer full
		}
	}
}

// Close closes the store. Safe to call multiple times.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *Store) maintenanceLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.MaintenanceEvery)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.enforceRetention(time.Now())
			s.enforceStorageLimit()
		}
	}
}

func (s *Store) enforceRetention(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-s.opts.SnapshotRetention).UnixMilli()
	if _, err := s.db.Exec("DELETE FROM snapshots WHERE timestamp < ?", cutoff); err != nil {
		log.Printf("[store] Snapshot retention failed: %v", err)
	}

	cutoff = now.Add(-s.opts.LogsRetention).UnixMilli()
	if _, err := s.db.Exec("DELETE FROM logs WHERE timestamp < ?", cutoff); err != nil {
		log.Printf("[store] Log retention failed: %v", err)
	}
}

func (s *Store) enforceStorageLimit() {
	info, err := os.Stat(s.dbPath)
	if err != nil {
		return
	}
	if info.Size() < s.opts.MaxStorageBytes {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	log.Printf("[store] Storage limit reached (%d bytes), evicting old data", info.Size())

	// Delete oldest 20% of snapshots and logs
	s.db.Exec(`
		DELETE FROM snapshots WHERE id IN (
			SELECT id FROM snapshots ORDER BY timestamp ASC LIMIT (SELECT COUNT(*) / 5 FROM snapshots)
		)
	`)
	s.db.Exec(`
		DELETE FROM logs WHERE id IN (
			SELECT id FROM logs ORDER BY timestamp ASC LIMIT (SELECT COUNT(*) / 5 FROM logs)
		)
	`)

	s.db.Exec("VACUUM")
}

// LifecycleEvent represents a service lifecycle event.
type LifecycleEvent struct {
	ID            int64     `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	Event         string    `json:"event"`  // START, STOP, SIGNAL
	Reason        string    `json:"reason"` // Detailed reason or signal name
	UptimeSeconds float64   `json:"uptime_seconds"`
	Version       string    `json:"version"`
}

// WriteLifecycleEvent records a lifecycle event.
func (s *Store) WriteLifecycleEvent(event, reason string, uptimeSeconds float64, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"INSERT INTO lifecycle (timestamp, event, reason, uptime_seconds, version) VALUES (?, ?, ?, ?, ?)",
		time.Now().UnixMilli(), event, reason, uptimeSeconds, version,
	)
	return err
}

// GetLifecycleEvents returns recent lifecycle events, newest first.
func (s *Store) GetLifecycleEvents(limit int) ([]LifecycleEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, timestamp, event, reason, uptime_seconds, version
		FROM lifecycle
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []LifecycleEvent
	for rows.Next() {
		var e LifecycleEvent
		var tsMs int64
		var reason, version sql.NullString
		var uptime sql.NullFloat64
		if err := rows.Scan(&e.ID, &tsMs, &e.Event, &reason, &uptime, &version); err != nil {
			return nil, err
		}
		e.Timestamp = time.UnixMilli(tsMs)
		e.Reason = reason.String
		e.UptimeSeconds = uptime.Float64
		e.Version = version.String
		events = append(events, e)
	}
	return events, rows.Err()
}

// GetStorageStats returns storage statistics.
func (s *Store) GetStorageStats() (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]interface{})

	info, err := os.Stat(s.dbPath)
	if err == nil {
		stats["db_size_bytes"] = info.Size()
		stats["db_size_mb"] = float64(info.Size()) / (1024 * 1024)
	}

	var count int64
	if err := s.db.QueryRow("SELECT COUNT(*) FROM logs").Scan(&count); err != nil {
		return nil, err
	}
	stats["log_count"] = count

	if err := s.db.QueryRow("SELECT COUNT(*) FROM snapshots").Scan(&count); err != nil {
		return nil, err
	}
	stats["snapshot_count"] = count

	var payload sql.NullInt64
	s.db.QueryRow("SELECT SUM(LENGTH(payload)) FROM snapshots").Scan(&payload)
	stats["snapshot_payload_bytes"] = payload.Int64

	return stats, nil
}
