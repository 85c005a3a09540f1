package sqlstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/davidahmann/counterpoint/internal/tablestore"
)

func openTestStore(t *testing.T, table string) *Store {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	s, err := OpenSQLite(dsn, table)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.EnsureTable(context.Background()); err != nil {
		t.Fatalf("ensure table: %v", err)
	}
	return s
}

func TestStoreUpsertAndQuery(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, "MyNewTable")

	tick := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}

	rows := []tablestore.Row{
		{PartitionKey: "SessionDataPartition", RowKey: "b", Properties: map[string]any{"sentiment": "Negative", "negative_score": 0.8}},
		{PartitionKey: "SessionDataPartition", RowKey: "a", Properties: map[string]any{"sentiment": "Positive", "negative_score": 0.1}},
		{PartitionKey: "ModerationPartition", RowKey: "c", Properties: map[string]any{"suggested_action": "Reject"}},
	}
	for _, row := range rows {
		if err := s.Upsert(ctx, row); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	got, err := s.Query(ctx, "SessionDataPartition")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if got[0].RowKey != "b" || got[1].RowKey != "a" {
		t.Fatalf("expected insertion order, got %s, %s", got[0].RowKey, got[1].RowKey)
	}
	if got[0].Properties["negative_score"] != 0.8 {
		t.Fatalf("unexpected properties: %v", got[0].Properties)
	}

	if err := s.Upsert(ctx, tablestore.Row{PartitionKey: "SessionDataPartition", RowKey: "b", Properties: map[string]any{"sentiment": "Neutral"}}); err != nil {
		t.Fatalf("upsert replace: %v", err)
	}
	got, err = s.Query(ctx, "SessionDataPartition")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 || got[0].Properties["sentiment"] != "Neutral" {
		t.Fatalf("expected replaced row in place, got %+v", got)
	}
	if _, ok := got[0].Properties["negative_score"]; ok {
		t.Fatalf("upsert should replace the whole entity")
	}
}

func TestStoreTablesAreIsolated(t *testing.T) {
	ctx := context.Background()
	a := openTestStore(t, "TableA")
	b := New(a.DB(), "TableB")
	if err := b.EnsureTable(ctx); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	if err := a.Upsert(ctx, tablestore.Row{PartitionKey: "P", RowKey: "1", Properties: map[string]any{"v": "a"}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := b.Query(ctx, "P")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no rows in TableB, got %d", len(got))
	}
}

func TestStoreRejectsInvalidRow(t *testing.T) {
	s := openTestStore(t, "T")
	if err := s.Upsert(context.Background(), tablestore.Row{PartitionKey: "P"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestQueryKeepsSubSecondInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, "MyNewTable")

	stamps := []time.Time{
		time.Date(2024, 11, 1, 0, 0, 5, 0, time.UTC),
		time.Date(2024, 11, 1, 0, 0, 5, 100_000_000, time.UTC),
		time.Date(2024, 11, 1, 0, 0, 5, 120_000_000, time.UTC),
		time.Date(2024, 11, 1, 0, 0, 5, 500_000_000, time.UTC),
	}
	keys := []string{"d", "c", "b", "a"}
	for i, key := range keys {
		at := stamps[i]
		s.now = func() time.Time { return at }
		if err := s.Upsert(ctx, tablestore.Row{PartitionKey: "SessionDataPartition", RowKey: key, Properties: map[string]any{"Text": key}}); err != nil {
			t.Fatalf("upsert %s: %v", key, err)
		}
	}

	got, err := s.Query(ctx, "SessionDataPartition")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != len(keys) {
		t.Fatalf("expected %d rows, got %d", len(keys), len(got))
	}
	for i, key := range keys {
		if got[i].RowKey != key {
			t.Fatalf("position %d: expected %s, got %s", i, key, got[i].RowKey)
		}
	}
}
