package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "modernc.org/sqlite"

	"github.com/davidahmann/counterpoint/internal/tablestore"
)

// stampLayout is fixed width so text order in created_at matches time order.
const stampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store keeps rows of one logical table in SQLite, properties as a JSON document.
type Store struct {
	db    *sql.DB
	table string
	now   func() time.Time
}

func OpenSQLite(dsn string, table string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(db, table), nil
}

func New(db *sql.DB, table string) *Store {
	return &Store{db: db, table: table, now: time.Now}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) DB() *sql.DB {
	return s.db
}

// EnsureTable applies migrations and registers the logical table.
func (s *Store) EnsureTable(ctx context.Context) error {
	if err := tablestore.Migrate(ctx, s.db, tablestore.DBSQLite); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO tables(table_name, created_at) VALUES(?, ?) ON CONFLICT(table_name) DO NOTHING`,
		s.table, s.now().UTC().Format(stampLayout))
	return err
}

func (s *Store) Upsert(ctx context.Context, row tablestore.Row) error {
	if err := row.Validate(); err != nil {
		return err
	}
	body, err := json.Marshal(tablestore.StripReserved(row.Properties))
	if err != nil {
		return err
	}
	now := s.now().UTC().Format(stampLayout)
	_, err = s.db.ExecContext(ctx, `INSERT INTO table_rows(table_name, partition_key, row_key, properties_json, created_at, updated_at)
VALUES(?, ?, ?, ?, ?, ?)
ON CONFLICT(table_name, partition_key, row_key) DO UPDATE SET
  properties_json = excluded.properties_json,
  updated_at = excluded.updated_at`,
		s.table, row.PartitionKey, row.RowKey, string(body), now, now)
	return err
}

func (s *Store) Query(ctx context.Context, partition string) ([]tablestore.Row, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT partition_key, row_key, properties_json
FROM table_rows
WHERE table_name = ? AND partition_key = ?
ORDER BY created_at ASC, row_key ASC`, s.table, partition)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []tablestore.Row{}
	for rows.Next() {
		var row tablestore.Row
		var body string
		if err := rows.Scan(&row.PartitionKey, &row.RowKey, &body); err != nil {
			return nil, err
		}
		props := map[string]any{}
		if err := json.Unmarshal([]byte(body), &props); err != nil {
			return nil, err
		}
		row.Properties = tablestore.StripReserved(props)
		out = append(out, row)
	}
	return out, rows.Err()
}
