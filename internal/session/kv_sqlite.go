// internal/session/kv_sqlite.go
//
// SQLite-backed KV implementation. Rows live in the kv table created by the
// sql/ migrations; upserts keep each key single-row so a read-modify-persist
// of one key is a single statement.

package session

import "database/sql"

type sqliteKV struct {
	db *sql.DB
}

// NewSQLiteKV constructs a KV backed by the kv table of db.
func NewSQLiteKV(db *sql.DB) KV {
	return &sqliteKV{db: db}
}

func (s *sqliteKV) Get(key string) (string, bool, error) {
	var v string
	err := s.db.QueryRow(`SELECT v FROM kv WHERE k=?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *sqliteKV) Set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO kv (k, v) VALUES (?,?) ON CONFLICT(k) DO UPDATE SET v=excluded.v`,
		key, value,
	)
	return err
}

func (s *sqliteKV) Remove(key string) error {
	_, err := s.db.Exec(`DELETE FROM kv WHERE k=?`, key)
	return err
}
