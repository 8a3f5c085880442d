// Package history keeps a local log of findings (resolved offsets, triage
// runs, bad character sets) in a SQLite database.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Kind classifies a finding.
type Kind string

const (
	KindOffset   Kind = "offset"
	KindTriage   Kind = "triage"
	KindBadchars Kind = "badchars"
)

// ErrUnknownKind is returned for kinds outside the known set.
var ErrUnknownKind = errors.New("unknown finding kind")

// ParseKind validates a kind name. The empty string is allowed and means
// "any kind" when listing.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(s)); k {
	case "", KindOffset, KindTriage, KindBadchars:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Finding is one recorded result.
type Finding struct {
	ID      string          `json:"id"`
	Kind    Kind            `json:"kind"`
	Target  string          `json:"target"`
	Summary string          `json:"summary"`
	Detail  json.RawMessage `json:"detail,omitempty"`
	Created time.Time       `json:"created_at"`
}

// Store is the findings database.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
	now  func() time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS findings (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	target TEXT NOT NULL,
	summary TEXT NOT NULL,
	detail TEXT,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_findings_kind ON findings(kind);
CREATE INDEX IF NOT EXISTS idx_findings_created ON findings(created_at);
`

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &Store{db: db, path: path, now: time.Now}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Record stores a finding. detail is marshalled to JSON; nil stores none.
// ID and Created are filled in on the returned copy.
func (s *Store) Record(ctx context.Context, kind Kind, target, summary string, detail any) (Finding, error) {
	if kind == "" {
		return Finding{}, fmt.Errorf("%w: empty", ErrUnknownKind)
	}
	if _, err := ParseKind(string(kind)); err != nil {
		return Finding{}, err
	}

	var raw json.RawMessage
	if detail != nil {
		data, err := json.Marshal(detail)
		if err != nil {
			return Finding{}, fmt.Errorf("marshaling detail: %w", err)
		}
		raw = data
	}

	f := Finding{
		ID:      uuid.NewString(),
		Kind:    kind,
		Target:  target,
		Summary: summary,
		Detail:  raw,
		Created: s.now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO findings (id, kind, target, summary, detail, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		f.ID, string(f.Kind), f.Target, f.Summary, nullableJSON(raw), f.Created.UnixNano())
	if err != nil {
		return Finding{}, fmt.Errorf("recording finding: %w", err)
	}
	return f, nil
}

// List returns the newest findings first. A zero limit means no limit and
// an empty kind matches every kind.
func (s *Store) List(ctx context.Context, limit int, kind Kind) ([]Finding, error) {
	query := `SELECT id, kind, target, summary, detail, created_at FROM findings`
	var args []any
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY created_at DESC, rowid DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing findings: %w", err)
	}
	defer rows.Close()

	var out []Finding
	for rows.Next() {
		var (
			f       Finding
			k       string
			detail  sql.NullString
			created int64
		)
		if err := rows.Scan(&f.ID, &k, &f.Target, &f.Summary, &detail, &created); err != nil {
			return nil, fmt.Errorf("scanning finding: %w", err)
		}
		f.Kind = Kind(k)
		if detail.Valid {
			f.Detail = json.RawMessage(detail.String)
		}
		f.Created = time.Unix(0, created).UTC()
		out = append(out, f)
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func nullableJSON(raw json.RawMessage) any {
	if raw == nil {
		return nil
	}
	return string(raw)
}
