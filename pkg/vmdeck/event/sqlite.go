package event

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteDeadLetterStore persists dead-lettered events to SQLite so they
// survive restarts of the desktop backend. It is selected when the bus is
// configured with a dead letter file path.
type SQLiteDeadLetterStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	max    int
	closed bool
}

var _ DeadLetterStore = (*SQLiteDeadLetterStore)(nil)

// NewSQLiteDeadLetterStore opens (or creates) the store at path.
// Use a file path like "./deadletter.db"; max bounds the queue size.
func NewSQLiteDeadLetterStore(path string, max int) (*SQLiteDeadLetterStore, error) {
	if max <= 0 {
		max = DefaultConfig.MaxDeadLetters
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open dead letter store: %w", err)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS dead_letters (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id TEXT NOT NULL,
			retry_count INTEGER NOT NULL,
			max_retries INTEGER NOT NULL,
			dead_letter_at TEXT NOT NULL,
			data BLOB NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_dead_letters_event_id
		ON dead_letters(event_id)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &SQLiteDeadLetterStore{db: db, max: max}, nil
}

// Append implements DeadLetterStore.
func (s *SQLiteDeadLetterStore) Append(dle DeadLetterEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrBusClosed
	}

	data, err := json.Marshal(dle)
	if err != nil {
		return &EventError{EventID: dle.Event.ID, Op: "dead-letter", Message: "encode entry", Err: err}
	}

	_, err = s.db.Exec(`
		INSERT INTO dead_letters (event_id, retry_count, max_retries, dead_letter_at, data)
		VALUES (?, ?, ?, ?, ?)
	`, dle.Event.ID, dle.Event.RetryCount, dle.Event.MaxRetries,
		dle.DeadLetteredAt.UTC().Format(time.RFC3339Nano), data)
	if err != nil {
		return fmt.Errorf("append dead letter: %w", err)
	}

	// FIFO eviction past capacity.
	_, err = s.db.Exec(`
		DELETE FROM dead_letters WHERE seq IN (
			SELECT seq FROM dead_letters ORDER BY seq
			LIMIT MAX((SELECT COUNT(*) FROM dead_letters) - ?, 0)
		)
	`, s.max)
	if err != nil {
		return fmt.Errorf("evict dead letters: %w", err)
	}
	return nil
}

// List implements DeadLetterStore.
func (s *SQLiteDeadLetterStore) List(limit int) ([]DeadLetterEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrBusClosed
	}
	if limit <= 0 {
		limit = -1 // SQLite treats a negative LIMIT as unbounded
	}

	rows, err := s.db.Query(`
		SELECT data FROM dead_letters ORDER BY seq DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	defer rows.Close()

	return scanDeadLetters(rows)
}

// TakeRetryable implements DeadLetterStore.
func (s *SQLiteDeadLetterStore) TakeRetryable(limit int) ([]DeadLetterEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrBusClosed
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.Query(`
		SELECT seq, data FROM dead_letters
		WHERE retry_count < max_retries
		ORDER BY seq LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("select retryable: %w", err)
	}

	var seqs []int64
	var taken []DeadLetterEvent
	for rows.Next() {
		var seq int64
		var data []byte
		if err := rows.Scan(&seq, &data); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan retryable: %w", err)
		}
		var dle DeadLetterEvent
		if err := json.Unmarshal(data, &dle); err != nil {
			rows.Close()
			return nil, fmt.Errorf("decode retryable: %w", err)
		}
		seqs = append(seqs, seq)
		taken = append(taken, dle)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate retryable: %w", err)
	}
	rows.Close()

	for _, seq := range seqs {
		if _, err := s.db.Exec(`DELETE FROM dead_letters WHERE seq = ?`, seq); err != nil {
			return nil, fmt.Errorf("remove retryable: %w", err)
		}
	}
	return taken, nil
}

// Clear implements DeadLetterStore.
func (s *SQLiteDeadLetterStore) Clear() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrBusClosed
	}

	res, err := s.db.Exec(`DELETE FROM dead_letters`)
	if err != nil {
		return 0, fmt.Errorf("clear dead letters: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// PurgeOlderThan implements DeadLetterStore.
func (s *SQLiteDeadLetterStore) PurgeOlderThan(cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrBusClosed
	}

	res, err := s.db.Exec(`
		DELETE FROM dead_letters WHERE dead_letter_at < ?
	`, cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("purge dead letters: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Len implements DeadLetterStore.
func (s *SQLiteDeadLetterStore) Len() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrBusClosed
	}

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM dead_letters`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count dead letters: %w", err)
	}
	return n, nil
}

// Close implements DeadLetterStore.
func (s *SQLiteDeadLetterStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func scanDeadLetters(rows *sql.Rows) ([]DeadLetterEvent, error) {
	var out []DeadLetterEvent
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		var dle DeadLetterEvent
		if err := json.Unmarshal(data, &dle); err != nil {
			return nil, fmt.Errorf("decode dead letter: %w", err)
		}
		out = append(out, dle)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dead letters: %w", err)
	}
	return out, nil
}
