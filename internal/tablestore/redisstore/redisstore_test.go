package redisstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidahmann/counterpoint/internal/tablestore"
)

func TestRowCodec(t *testing.T) {
	raw, err := encodeRow(tablestore.Row{
		PartitionKey: "p",
		RowKey:       "r",
		Properties: map[string]any{
			"Text":           "hello",
			"negative_score": 0.8,
			"RowKey":         "dropped",
		},
	})
	require.NoError(t, err)

	props, err := decodeProperties(raw)
	require.NoError(t, err)
	assert.Equal(t, "hello", props["Text"])
	assert.Equal(t, 0.8, props["negative_score"])
	assert.NotContains(t, props, "RowKey")
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := decodeProperties([]byte{0xc1})
	assert.Error(t, err)
}

func TestKeysAreScopedByTableAndPartition(t *testing.T) {
	s := &Store{table: "MyNewTable"}
	assert.Equal(t, "counterpoint:MyNewTable:SessionDataPartition:rows", s.rowsKey("SessionDataPartition"))
	assert.Equal(t, "counterpoint:MyNewTable:SessionDataPartition:order", s.orderKey("SessionDataPartition"))
	assert.NotEqual(t, s.rowsKey("a"), s.orderKey("a"))
}

func TestOpenRejectsBadURL(t *testing.T) {
	_, err := Open("not a url", "t")
	assert.Error(t, err)
}
