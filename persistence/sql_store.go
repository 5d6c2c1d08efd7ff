package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// dialect captures the SQL differences between the journal backends
type dialect struct {
	driver         string
	initStatements []string
	idColumn       string
	placeholder    func(position int) string
}

// SQLStore records journal entries in a SQL table
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

func openSQLStore(d dialect, dataSource string) (*SQLStore, error) {
	db, err := sql.Open(d.driver, dataSource)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	for _, stmt := range d.initStatements {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run %q: %w", stmt, err)
		}
	}

	store := &SQLStore{db: db, dialect: d}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLStore) initSchema() error {
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS journal (
		id %s,
		recorded_at BIGINT NOT NULL,
		kind TEXT NOT NULL,
		player_id INTEGER NOT NULL DEFAULT 0,
		actor TEXT NOT NULL DEFAULT '',
		detail TEXT NOT NULL DEFAULT ''
	)`, s.dialect.idColumn)
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	_, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_journal_kind ON journal(kind)`)
	return err
}

// Record appends an entry
func (s *SQLStore) Record(ctx context.Context, entry Entry) error {
	p := s.dialect.placeholder
	query := fmt.Sprintf(`INSERT INTO journal (recorded_at, kind, player_id, actor, detail) VALUES (%s, %s, %s, %s, %s)`,
		p(1), p(2), p(3), p(4), p(5))
	if _, err := s.db.ExecContext(ctx, query, entry.Time.UnixMilli(), entry.Kind, entry.PlayerID, entry.Actor, entry.Detail); err != nil {
		return fmt.Errorf("failed to record %s entry: %w", entry.Kind, err)
	}
	return nil
}

// Recent returns up to limit of the latest entries, oldest first
func (s *SQLStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	query := fmt.Sprintf(`SELECT id, recorded_at, kind, player_id, actor, detail FROM journal ORDER BY id DESC LIMIT %s`,
		s.dialect.placeholder(1))
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var millis int64
		if err := rows.Scan(&e.ID, &millis, &e.Kind, &e.PlayerID, &e.Actor, &e.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan journal row: %w", err)
		}
		e.Time = time.UnixMilli(millis).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	return s.db.Close()
}
