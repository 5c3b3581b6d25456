package tracedir

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"retrace/pkg/trace"
	"retrace/pkg/tracee"
)

const indexSchema = `
CREATE TABLE IF NOT EXISTS session (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS event (
	seq INTEGER PRIMARY KEY,
	logical INTEGER NOT NULL,
	kind INTEGER NOT NULL,
	offset INTEGER NOT NULL,
	retired_branches INTEGER NOT NULL,
	syscall_no INTEGER,
	syscall_result INTEGER
);

CREATE INDEX IF NOT EXISTS idx_event_logical ON event(logical, seq);
CREATE INDEX IF NOT EXISTS idx_event_kind ON event(kind);
`

// Index is a queryable SQLite index over a trace's events file, letting
// `retrace stat`-style tooling answer questions like "where does tid 3's
// event stream begin" or "how many syscalls of kind X occurred" without
// replaying. Adapted from the teacher's pkg/db.Store, which served the same
// "durable index alongside an append-only store" role for the overlay
// filesystem's chunked file content.
type Index struct {
	db *sql.DB
}

// IndexConfig configures the index database connection.
type IndexConfig struct {
	Path        string
	BusyTimeout time.Duration
}

// DefaultIndexConfig returns sensible defaults for path.
func DefaultIndexConfig(path string) IndexConfig {
	return IndexConfig{Path: path, BusyTimeout: 5 * time.Second}
}

// OpenIndex opens or creates the event index at cfg.Path.
func OpenIndex(cfg IndexConfig) (*Index, error) {
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=%d&_foreign_keys=on&_synchronous=NORMAL",
		cfg.Path, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("tracedir: open index: %w", err)
	}
	db.SetMaxOpenConns(1)

	idx := &Index{db: db}
	if err := idx.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

func (idx *Index) initSchema() error {
	if _, err := idx.db.Exec(indexSchema); err != nil {
		return fmt.Errorf("tracedir: init index schema: %w", err)
	}
	return nil
}

// Close closes the index database.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// PutSessionInfo records session-level metadata (session id, architecture,
// start time) as simple key/value rows.
func (idx *Index) PutSessionInfo(h trace.Header) error {
	rows := [][2]string{
		{"session_id", h.SessionID.String()},
		{"arch", h.Arch.String()},
		{"start_unix_nano", fmt.Sprintf("%d", h.StartUnixNano)},
	}
	for _, r := range rows {
		if _, err := idx.db.Exec(`INSERT OR REPLACE INTO session (key, value) VALUES (?, ?)`, r[0], r[1]); err != nil {
			return fmt.Errorf("tracedir: put session info %s: %w", r[0], err)
		}
	}
	return nil
}

// IndexRecord appends one row describing a record already written to the
// events file at the given byte offset.
func (idx *Index) IndexRecord(r *trace.Record, offset int64) error {
	_, err := idx.db.Exec(
		`INSERT OR REPLACE INTO event (seq, logical, kind, offset, retired_branches, syscall_no, syscall_result)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.Seq, uint32(r.Logical), uint8(r.Kind), offset, r.RetiredBranches,
		sql.NullInt64{Int64: int64(r.SyscallNo), Valid: r.Kind == trace.KindSyscallEntry},
		sql.NullInt64{Int64: r.SyscallResult, Valid: r.Kind == trace.KindSyscallExit},
	)
	if err != nil {
		return fmt.Errorf("tracedir: index record seq %d: %w", r.Seq, err)
	}
	return nil
}

// FirstOffset returns the byte offset of ltid's first event, for seeking a
// replay directly to it.
func (idx *Index) FirstOffset(ltid tracee.LogicalTID) (int64, error) {
	var offset int64
	err := idx.db.QueryRow(
		`SELECT offset FROM event WHERE logical = ? ORDER BY seq ASC LIMIT 1`, uint32(ltid),
	).Scan(&offset)
	if err != nil {
		return 0, fmt.Errorf("tracedir: first offset for tid %d: %w", ltid, err)
	}
	return offset, nil
}

// CountByKind returns how many events of kind k occurred.
func (idx *Index) CountByKind(k trace.Kind) (int64, error) {
	var n int64
	err := idx.db.QueryRow(`SELECT COUNT(*) FROM event WHERE kind = ?`, uint8(k)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("tracedir: count kind %s: %w", k, err)
	}
	return n, nil
}
