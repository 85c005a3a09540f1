package tablestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrMissingKey       = errors.New("partition key and row key are required")
	ErrUnsupportedValue = errors.New("unsupported property value")
)

// Row is one schema-less entity: a partition, a unique row key and flat properties.
type Row struct {
	PartitionKey string
	RowKey       string
	Properties   map[string]any
}

// Store is a row-oriented table: upsert by key, query by partition.
type Store interface {
	EnsureTable(ctx context.Context) error
	Upsert(ctx context.Context, row Row) error
	Query(ctx context.Context, partition string) ([]Row, error)
}

const (
	KeyPartition = "PartitionKey"
	KeyRow       = "RowKey"
)

// reserved are service-managed keys that never surface as properties.
var reserved = map[string]struct{}{
	KeyPartition:     {},
	KeyRow:           {},
	"Timestamp":      {},
	"odata.metadata": {},
	"odata.etag":     {},
}

func IsReserved(key string) bool {
	_, ok := reserved[key]
	return ok
}

// NewRowKey returns a fresh random row key.
func NewRowKey() string {
	return uuid.NewString()
}

// Validate checks keys and that every property is a flat primitive.
func (r Row) Validate() error {
	if r.PartitionKey == "" || r.RowKey == "" {
		return ErrMissingKey
	}
	for key, value := range r.Properties {
		switch value.(type) {
		case nil, string, bool, int, int32, int64, float32, float64:
		default:
			return fmt.Errorf("%w: %s is %T", ErrUnsupportedValue, key, value)
		}
	}
	return nil
}

// StripReserved copies props without service-managed keys.
func StripReserved(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for key, value := range props {
		if IsReserved(key) {
			continue
		}
		out[key] = value
	}
	return out
}
