package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/davidahmann/counterpoint/internal/tablestore"
)

const keyPrefix = "counterpoint"

// Store keeps each partition as a hash of msgpack rows plus a sorted set
// that remembers first-insert order.
type Store struct {
	client redis.UniversalClient
	table  string
	now    func() time.Time
}

// Open parses a redis:// URL.
func Open(dsn string, table string) (*Store, error) {
	opts, err := redis.ParseURL(dsn)
	if err != nil {
		return nil, err
	}
	return New(redis.NewClient(opts), table), nil
}

func New(client redis.UniversalClient, table string) *Store {
	return &Store{client: client, table: table, now: time.Now}
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) EnsureTable(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return err
	}
	return s.client.SAdd(ctx, tablesKey(), s.table).Err()
}

func (s *Store) Upsert(ctx context.Context, row tablestore.Row) error {
	if err := row.Validate(); err != nil {
		return err
	}
	body, err := encodeRow(row)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.rowsKey(row.PartitionKey), row.RowKey, body)
		pipe.ZAddNX(ctx, s.orderKey(row.PartitionKey), redis.Z{Score: float64(s.now().UnixNano()), Member: row.RowKey})
		return nil
	})
	return err
}

func (s *Store) Query(ctx context.Context, partition string) ([]tablestore.Row, error) {
	keys, err := s.client.ZRange(ctx, s.orderKey(partition), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := []tablestore.Row{}
	if len(keys) == 0 {
		return out, nil
	}
	values, err := s.client.HMGet(ctx, s.rowsKey(partition), keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}
		props, err := decodeProperties([]byte(raw))
		if err != nil {
			return nil, err
		}
		out = append(out, tablestore.Row{PartitionKey: partition, RowKey: keys[i], Properties: props})
	}
	return out, nil
}

func tablesKey() string {
	return keyPrefix + ":tables"
}

func (s *Store) rowsKey(partition string) string {
	return fmt.Sprintf("%s:%s:%s:rows", keyPrefix, s.table, partition)
}

func (s *Store) orderKey(partition string) string {
	return fmt.Sprintf("%s:%s:%s:order", keyPrefix, s.table, partition)
}

func encodeRow(row tablestore.Row) ([]byte, error) {
	return msgpack.Marshal(tablestore.StripReserved(row.Properties))
}

func decodeProperties(raw []byte) (map[string]any, error) {
	var props map[string]any
	if err := msgpack.Unmarshal(raw, &props); err != nil {
		return nil, err
	}
	return tablestore.StripReserved(props), nil
}
