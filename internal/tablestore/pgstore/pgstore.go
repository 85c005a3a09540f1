package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/lib/pq"

	"github.com/davidahmann/counterpoint/internal/tablestore"
)

// Store keeps rows of one logical table in Postgres, properties as JSONB.
type Store struct {
	db    *sql.DB
	table string
	now   func() time.Time
}

func OpenPostgres(dsn string, table string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
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

func (s *Store) EnsureTable(ctx context.Context) error {
	if err := tablestore.Migrate(ctx, s.db, tablestore.DBPostgres); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO counterpoint_tables(table_name, created_at) VALUES($1, $2) ON CONFLICT(table_name) DO NOTHING`,
		s.table, s.now().UTC())
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
	now := s.now().UTC()
	_, err = s.db.ExecContext(ctx, `INSERT INTO counterpoint_table_rows(table_name, partition_key, row_key, properties, created_at, updated_at)
VALUES($1, $2, $3, $4::jsonb, $5, $6)
ON CONFLICT(table_name, partition_key, row_key) DO UPDATE SET
  properties = EXCLUDED.properties,
  updated_at = EXCLUDED.updated_at`,
		s.table, row.PartitionKey, row.RowKey, string(body), now, now)
	return err
}

func (s *Store) Query(ctx context.Context, partition string) ([]tablestore.Row, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT partition_key, row_key, properties::text
FROM counterpoint_table_rows
WHERE table_name = $1 AND partition_key = $2
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
