package tablestore

import (
	"context"
	"errors"
	"testing"
)

func TestRowValidate(t *testing.T) {
	if err := (Row{RowKey: "r"}).Validate(); !errors.Is(err, ErrMissingKey) {
		t.Fatalf("expected ErrMissingKey, got %v", err)
	}
	row := Row{PartitionKey: "p", RowKey: "r", Properties: map[string]any{"nested": []string{"a"}}}
	if err := row.Validate(); !errors.Is(err, ErrUnsupportedValue) {
		t.Fatalf("expected ErrUnsupportedValue, got %v", err)
	}
	row.Properties = map[string]any{"s": "x", "f": 0.5, "i": int64(2), "b": true, "n": nil}
	if err := row.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewRowKeyUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		key := NewRowKey()
		if seen[key] {
			t.Fatalf("duplicate row key %s", key)
		}
		seen[key] = true
	}
}

func TestStripReserved(t *testing.T) {
	got := StripReserved(map[string]any{
		"PartitionKey":   "p",
		"RowKey":         "r",
		"odata.metadata": "m",
		"odata.etag":     "e",
		"Timestamp":      "t",
		"sentiment":      "Positive",
	})
	if len(got) != 1 || got["sentiment"] != "Positive" {
		t.Fatalf("unexpected properties: %v", got)
	}
}

func TestInMemoryStoreUpsertAndQuery(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	if err := s.EnsureTable(ctx); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	if err := s.Upsert(ctx, Row{PartitionKey: "A", RowKey: "1", Properties: map[string]any{"v": "one"}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.Upsert(ctx, Row{PartitionKey: "B", RowKey: "2", Properties: map[string]any{"v": "two"}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.Upsert(ctx, Row{PartitionKey: "A", RowKey: "3", Properties: map[string]any{"v": "three", "RowKey": "spoof"}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.Upsert(ctx, Row{PartitionKey: "A", RowKey: "1", Properties: map[string]any{"v": "uno"}}); err != nil {
		t.Fatalf("upsert replace: %v", err)
	}

	rows, err := s.Query(ctx, "A")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].RowKey != "1" || rows[0].Properties["v"] != "uno" {
		t.Fatalf("expected replaced row first, got %+v", rows[0])
	}
	if _, ok := rows[1].Properties["RowKey"]; ok {
		t.Fatalf("reserved key leaked into properties")
	}

	if err := s.Upsert(ctx, Row{PartitionKey: "A"}); err == nil {
		t.Fatalf("expected validation error")
	}
}
