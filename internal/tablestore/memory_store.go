package tablestore

import (
	"context"
	"sync"
)

type InMemoryStore struct {
	mu sync.Mutex

	order []string
	rows  map[string]Row
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{rows: make(map[string]Row)}
}

func (s *InMemoryStore) EnsureTable(context.Context) error { return nil }

func (s *InMemoryStore) Upsert(_ context.Context, row Row) error {
	if err := row.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := row.PartitionKey + "\x00" + row.RowKey
	if _, ok := s.rows[key]; !ok {
		s.order = append(s.order, key)
	}
	s.rows[key] = Row{
		PartitionKey: row.PartitionKey,
		RowKey:       row.RowKey,
		Properties:   StripReserved(row.Properties),
	}
	return nil
}

func (s *InMemoryStore) Query(_ context.Context, partition string) ([]Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []Row{}
	for _, key := range s.order {
		row := s.rows[key]
		if row.PartitionKey != partition {
			continue
		}
		out = append(out, Row{
			PartitionKey: row.PartitionKey,
			RowKey:       row.RowKey,
			Properties:   StripReserved(row.Properties),
		})
	}
	return out, nil
}
