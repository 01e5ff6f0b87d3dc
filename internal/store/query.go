package store

import (
	"fmt"
	"strings"
	"time"
)

const (
	defaultQueryLimit = 1000
	maxQueryLimit     = 10000
)

// LogQuery represents a query for logs.
type LogQuery struct {
	TimeRange  *TimeRange
	Levels     []string // Filter by log levels
	Components []string // Filter by components
	Search     string   // Full-text search in message
	Limit      int      // Max results (default 1000)
	Offset     int      // Pagination offset
	Reverse    bool     // If true, oldest first; default is newest first
}

// LogQueryResult contains query results.
type LogQueryResult struct {
	Entries    []*LogEntry `json:"entries"`
	TotalCount int64       `json:"total_count"`
	HasMore    bool        `json:"has_more"`
}

// SnapshotQuery selects snapshot metadata, newest first.
type SnapshotQuery struct {
	TimeRange   *TimeRange
	NetworkName string
	Limit       int
	Offset      int
}

// SnapshotQueryResult contains snapshot metadata.
type SnapshotQueryResult struct {
	Snapshots  []*Snapshot `json:"snapshots"`
	TotalCount int64       `json:"total_count"`
	HasMore    bool        `json:"has_more"`
}

// where accumulates SQL conditions and their arguments.
type where struct {
	conditions []string
	args       []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conditions = append(w.conditions, cond)
	w.args = append(w.args, args...)
}

func (w *where) in(column string, values []string, normalize func(string) string) {
	if len(values) == 0 {
		return
	}
	placeholders := make([]string, len(values))
	for i, v := range values {
		placeholders[i] = "?"
		if normalize != nil {
			v = normalize(v)
		}
		w.args = append(w.args, v)
	}
	w.conditions = append(w.conditions, fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ",")))
}

func (w *where) timeRange(tr *TimeRange) {
	if tr != nil {
		w.add("timestamp >= ? AND timestamp <= ?", tr.Start.UnixMilli(), tr.End.UnixMilli())
	}
}

func (w *where) String() string {
	if len(w.conditions) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(w.conditions, " AND ")
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultQueryLimit
	}
	if limit > maxQueryLimit {
		return maxQueryLimit
	}
	return limit
}

// QueryLogs queries logs with filters.
func (s *Store) QueryLogs(q *LogQuery) (*LogQueryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := clampLimit(q.Limit)

	var w where
	w.timeRange(q.TimeRange)
	w.in("level", q.Levels, strings.ToUpper)
	w.in("component", q.Components, nil)
	if q.Search != "" {
		w.add("message LIKE ?", "%"+q.Search+"%")
	}

	var totalCount int64
	if err := s.db.QueryRow("SELECT COUNT(*) FROM logs "+w.String(), w.args...).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("count failed: %w", err)
	}

	order := "DESC"
	if q.Reverse {
		order = "ASC"
	}
	selectQuery := fmt.Sprintf(
		"SELECT id, timestamp, level, component, message, fields FROM logs %s ORDER BY timestamp %s, id %s LIMIT ? OFFSET ?",
		w.String(), order, order,
	)
	args := append(w.args, limit+1, q.Offset) // +1 to check if there are more

	rows, err := s.db.Query(selectQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	entries := []*LogEntry{}
	for rows.Next() {
		var e LogEntry
		var ts int64
		var fields *string
		if err := rows.Scan(&e.ID, &ts, &e.Level, &e.Component, &e.Message, &fields); err != nil {
			continue
		}
		e.Timestamp = time.UnixMilli(ts)
		if fields != nil {
			e.Fields = *fields
		}
		entries = append(entries, &e)
	}

	hasMore := len(entries) > limit
	if hasMore {
		entries = entries[:limit]
	}

	return &LogQueryResult{
		Entries:    entries,
		TotalCount: totalCount,
		HasMore:    hasMore,
	}, nil
}

// Tail returns the latest N log entries, optionally filtered.
func (s *Store) Tail(n int, levels []string, components []string) ([]*LogEntry, error) {
	result, err := s.QueryLogs(&LogQuery{
		Limit:      n,
		Levels:     levels,
		Components: components,
	})
	if err != nil {
		return nil, err
	}
	return result.Entries, nil
}

// QuerySnapshots lists snapshot metadata, newest first.
func (s *Store) QuerySnapshots(q *SnapshotQuery) (*SnapshotQueryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := clampLimit(q.Limit)

	var w where
	w.timeRange(q.TimeRange)
	if q.NetworkName != "" {
		w.add("network_name = ?", q.NetworkName)
	}

	var totalCount int64
	if err := s.db.QueryRow("SELECT COUNT(*) FROM snapshots "+w.String(), w.args...).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("count failed: %w", err)
	}

	selectQuery := fmt.Sprintf(`
		SELECT id, timestamp, network_name, leader_hex, router_count, node_count, link_count, raw_size
		FROM snapshots %s ORDER BY timestamp DESC LIMIT ? OFFSET ?`, w.String())
	args := append(w.args, limit+1, q.Offset)

	rows, err := s.db.Query(selectQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	snapshots := []*Snapshot{}
	for rows.Next() {
		var snap Snapshot
		var ts int64
		if err := rows.Scan(&snap.ID, &ts, &snap.NetworkName, &snap.LeaderHex,
			&snap.RouterCount, &snap.NodeCount, &snap.LinkCount, &snap.SizeBytes); err != nil {
			continue
		}
		snap.Timestamp = time.UnixMilli(ts)
		snapshots = append(snapshots, &snap)
	}

	hasMore := len(snapshots) > limit
	if hasMore {
		snapshots = snapshots[:limit]
	}

	return &SnapshotQueryResult{
		Snapshots:  snapshots,
		TotalCount: totalCount,
		HasMore:    hasMore,
	}, nil
}
