package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang/snappy"
	"github.com/google/uuid"
)

// ErrSnapshotNotFound is returned by GetSnapshot for an unknown id.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Snapshot is the metadata of a stored topology graph.
type Snapshot struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	NetworkName string    `json:"network_name"`
	LeaderHex   string    `json:"leader_hex"`
	RouterCount int       `json:"router_count"`
	NodeCount   int       `json:"node_count"`
	LinkCount   int       `json:"link_count"`
	SizeBytes   int       `json:"size_bytes"` // uncompressed graph JSON
}

// WriteSnapshot stores graphJSON under a new id. ID and Timestamp of meta
// are filled in when empty.
func (s *Store) WriteSnapshot(meta Snapshot, graphJSON []byte) (string, error) {
	if meta.ID == "" {
		meta.ID = uuid.New().String()
	}
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	payload := snappy.Encode(nil, graphJSON)

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO snapshots (id, timestamp, network_name, leader_hex, router_count, node_count, link_count, raw_size, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		meta.ID, meta.Timestamp.UnixMilli(), meta.NetworkName, meta.LeaderHex,
		meta.RouterCount, meta.NodeCount, meta.LinkCount, len(graphJSON), payload,
	)
	if err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}
	return meta.ID, nil
}

// GetSnapshot returns the metadata and decompressed graph JSON of a snapshot.
func (s *Store) GetSnapshot(id string) (*Snapshot, []byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var meta Snapshot
	var tsMs int64
	var payload []byte
	err := s.db.QueryRow(`
		SELECT id, timestamp, network_name, leader_hex, router_count, node_count, link_count, raw_size, payload
		FROM snapshots WHERE id = ?`, id,
	).Scan(&meta.ID, &tsMs, &meta.NetworkName, &meta.LeaderHex,
		&meta.RouterCount, &meta.NodeCount, &meta.LinkCount, &meta.SizeBytes, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	meta.Timestamp = time.UnixMilli(tsMs)

	graphJSON, err := snappy.Decode(nil, payload)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decompress snapshot %s: %w", id, err)
	}
	return &meta, graphJSON, nil
}

// LatestSnapshot returns the most recent snapshot, or ErrSnapshotNotFound.
func (s *Store) LatestSnapshot() (*Snapshot, []byte, error) {
	s.mu.RLock()
	var id string
	err := s.db.QueryRow("SELECT id FROM snapshots ORDER BY timestamp DESC LIMIT 1").Scan(&id)
	s.mu.RUnlock()
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return s.GetSnapshot(id)
}
