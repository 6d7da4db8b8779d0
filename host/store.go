// Package host is the reference embedding of the annotation cores: a
// sqlite-backed transcript store, an avatar library and a polling watcher
// feeding the scheduler. The cores never depend on anything in here.
package host

import (
	"fmt"
	"sync"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const storeSchema = `
CREATE TABLE IF NOT EXISTS messages (
	id        INTEGER PRIMARY KEY,
	raw       TEXT NOT NULL DEFAULT '',
	rendered  TEXT NOT NULL DEFAULT '',
	streaming INTEGER NOT NULL DEFAULT 0,
	revision  INTEGER NOT NULL DEFAULT 0
);
`

// Store keeps per-message raw source text and rendered HTML keyed by integer
// message index. Every write bumps a store-wide revision so the watcher can
// ask "what changed since" cheaply.
type Store struct {
	mu   sync.Mutex
	conn *sqlite.Conn
	rev  int64
}

// OpenStore opens or creates a transcript database. Pass ":memory:" for an
// ephemeral store.
func OpenStore(path string) (*Store, error) {
	flags := sqlite.OpenReadWrite | sqlite.OpenCreate
	if path == ":memory:" {
		flags |= sqlite.OpenMemory
	}
	conn, err := sqlite.OpenConn(path, flags)
	if err != nil {
		return nil, fmt.Errorf("unable to open transcript store: %w", err)
	}
	if err := sqlitex.ExecuteScript(conn, storeSchema, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to prepare transcript schema: %w", err)
	}

	s := &Store{conn: conn}
	err = sqlitex.Execute(conn, `SELECT COALESCE(MAX(revision), 0) FROM messages`,
		&sqlitex.ExecOptions{ResultFunc: func(stmt *sqlite.Stmt) error {
			s.rev = stmt.ColumnInt64(0)
			return nil
		}})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to read store revision: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// PutMessage inserts or replaces one message.
func (s *Store) PutMessage(id int, raw, rendered string, streaming bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rev++
	return sqlitex.Execute(s.conn,
		`INSERT INTO messages (id, raw, rendered, streaming, revision) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET raw=excluded.raw, rendered=excluded.rendered,
		 streaming=excluded.streaming, revision=excluded.revision`,
		&sqlitex.ExecOptions{Args: []any{id, raw, rendered, boolToInt(streaming), s.rev}})
}

// UpdateRendered replaces the rendered HTML of a message without touching
// its source text, used to persist annotated output.
func (s *Store) UpdateRendered(id int, rendered string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rev++
	return sqlitex.Execute(s.conn,
		`UPDATE messages SET rendered=?, revision=? WHERE id=?`,
		&sqlitex.ExecOptions{Args: []any{rendered, s.rev, id}})
}

// SetStreaming flips the streaming flag on the tail message.
func (s *Store) SetStreaming(id int, streaming bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rev++
	return sqlitex.Execute(s.conn,
		`UPDATE messages SET streaming=?, revision=? WHERE id=?`,
		&sqlitex.ExecOptions{Args: []any{boolToInt(streaming), s.rev, id}})
}

// RawText returns the raw source text of a message, empty when absent.
func (s *Store) RawText(id int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var raw string
	err := sqlitex.Execute(s.conn, `SELECT raw FROM messages WHERE id=?`,
		&sqlitex.ExecOptions{
			Args: []any{id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				raw = stmt.ColumnText(0)
				return nil
			}})
	return raw, err
}

// RenderedHTML returns the rendered markup of a message, empty when the host
// has not rendered it yet.
func (s *Store) RenderedHTML(id int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rendered string
	err := sqlitex.Execute(s.conn, `SELECT rendered FROM messages WHERE id=?`,
		&sqlitex.ExecOptions{
			Args: []any{id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				rendered = stmt.ColumnText(0)
				return nil
			}})
	return rendered, err
}

// RenderedRevision returns the rendered markup of a message together with
// the revision it was written at, for cache invalidation.
func (s *Store) RenderedRevision(id int) (string, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		rendered string
		rev      int64
	)
	err := sqlitex.Execute(s.conn, `SELECT rendered, revision FROM messages WHERE id=?`,
		&sqlitex.ExecOptions{
			Args: []any{id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				rendered = stmt.ColumnText(0)
				rev = stmt.ColumnInt64(1)
				return nil
			}})
	return rendered, rev, err
}

// MessageIDs returns all message indexes in order.
func (s *Store) MessageIDs() ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int
	err := sqlitex.Execute(s.conn, `SELECT id FROM messages ORDER BY id`,
		&sqlitex.ExecOptions{ResultFunc: func(stmt *sqlite.Stmt) error {
			ids = append(ids, stmt.ColumnInt(0))
			return nil
		}})
	return ids, err
}

// Streaming reports whether any message is still being streamed into.
func (s *Store) Streaming() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	streaming := false
	err := sqlitex.Execute(s.conn, `SELECT COUNT(*) FROM messages WHERE streaming<>0`,
		&sqlitex.ExecOptions{ResultFunc: func(stmt *sqlite.Stmt) error {
			streaming = stmt.ColumnInt(0) > 0
			return nil
		}})
	return streaming, err
}

// ChangedSince returns ids of messages written after the given revision and
// the current store revision to poll from next time.
func (s *Store) ChangedSince(rev int64) ([]int, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int
	err := sqlitex.Execute(s.conn,
		`SELECT id FROM messages WHERE revision>? ORDER BY id`,
		&sqlitex.ExecOptions{
			Args: []any{rev},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				ids = append(ids, stmt.ColumnInt(0))
				return nil
			}})
	return ids, s.rev, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
