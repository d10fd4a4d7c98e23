// Package history records instance status transitions and resource samples
// into a local sqlite database, so dashboards can chart an instance's past
// without this layer holding anything in memory.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/craftd/craftd/internal/runtime"
)

const schema = `
CREATE TABLE IF NOT EXISTS server_status (
	server_name TEXT NOT NULL,
	status TEXT NOT NULL,
	changed_at TIMESTAMP NOT NULL,
	PRIMARY KEY (server_name, changed_at)
);

CREATE TABLE IF NOT EXISTS server_metrics (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	server_name TEXT NOT NULL,
	cpu_percent REAL NOT NULL,
	memory_used_bytes INTEGER NOT NULL,
	memory_limit_bytes INTEGER NOT NULL,
	network_rx_bytes INTEGER NOT NULL,
	network_tx_bytes INTEGER NOT NULL,
	sampled_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_metrics_server_time
	ON server_metrics(server_name, sampled_at DESC);
`

// Recorder persists lifecycle and metrics history. A nil Recorder is valid
// and drops everything.
type Recorder struct {
	db *sql.DB
}

// Open creates (or opens) the history database at dbPath and applies the
// schema.
func Open(dbPath string) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	dsn, err := buildDSN(dbPath)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply history schema: %w", err)
	}
	return &Recorder{db: db}, nil
}

func buildDSN(dbPath string) (string, error) {
	absPath, err := filepath.Abs(dbPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve history path: %w", err)
	}
	absPath = strings.ReplaceAll(absPath, "\\", "/")
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", absPath), nil
}

// RecordStatus stores one lifecycle transition.
func (r *Recorder) RecordStatus(name string, status runtime.Status) error {
	if r == nil {
		return nil
	}
	_, err := r.db.Exec(
		`INSERT OR REPLACE INTO server_status (server_name, status, changed_at) VALUES (?, ?, ?)`,
		name, string(status), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to record status: %w", err)
	}
	return nil
}

// RecordSample stores one resource sample.
func (r *Recorder) RecordSample(name string, usage *runtime.ResourceUsage) error {
	if r == nil || usage == nil {
		return nil
	}
	_, err := r.db.Exec(
		`INSERT INTO server_metrics (server_name, cpu_percent, memory_used_bytes,
			memory_limit_bytes, network_rx_bytes, network_tx_bytes, sampled_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		name, usage.CPUPercent, usage.MemoryUsedBytes, usage.MemoryLimitBytes,
		usage.NetworkRxBytes, usage.NetworkTxBytes,
		usage.SampledAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to record sample: %w", err)
	}
	return nil
}

// Sample is one stored metrics row.
type Sample struct {
	CPUPercent       float64
	MemoryUsedBytes  uint64
	MemoryLimitBytes uint64
	NetworkRxBytes   uint64
	NetworkTxBytes   uint64
	SampledAt        time.Time
}

// Samples returns up to limit samples for an instance, newest first.
func (r *Recorder) Samples(name string, limit int) ([]Sample, error) {
	if r == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(
		`SELECT cpu_percent, memory_used_bytes, memory_limit_bytes,
			network_rx_bytes, network_tx_bytes, sampled_at
		 FROM server_metrics WHERE server_name = ?
		 ORDER BY sampled_at DESC LIMIT ?`, name, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var s Sample
		var ts string
		if err := rows.Scan(&s.CPUPercent, &s.MemoryUsedBytes, &s.MemoryLimitBytes,
			&s.NetworkRxBytes, &s.NetworkTxBytes, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			s.SampledAt = parsed
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// Cleanup removes samples and status rows older than the retention window.
func (r *Recorder) Cleanup(retention time.Duration) error {
	if r == nil {
		return nil
	}
	cutoff := time.Now().UTC().Add(-retention).Format(time.RFC3339Nano)
	if _, err := r.db.Exec(`DELETE FROM server_metrics WHERE sampled_at < ?`, cutoff); err != nil {
		return fmt.Errorf("failed to clean up metrics: %w", err)
	}
	if _, err := r.db.Exec(`DELETE FROM server_status WHERE changed_at < ?`, cutoff); err != nil {
		return fmt.Errorf("failed to clean up status history: %w", err)
	}
	return nil
}

// Close releases the database.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	return r.db.Close()
}
