package aztable

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidahmann/counterpoint/internal/tablestore"
)

type fakeClient struct {
	createErr error
	upserted  [][]byte
	pages     [][][]byte
	filter    string
}

func (f *fakeClient) CreateTable(context.Context, *aztables.CreateTableOptions) (aztables.CreateTableResponse, error) {
	return aztables.CreateTableResponse{}, f.createErr
}

func (f *fakeClient) UpsertEntity(_ context.Context, entity []byte, _ *aztables.UpsertEntityOptions) (aztables.UpsertEntityResponse, error) {
	f.upserted = append(f.upserted, entity)
	return aztables.UpsertEntityResponse{}, nil
}

func (f *fakeClient) NewListEntitiesPager(options *aztables.ListEntitiesOptions) *runtime.Pager[aztables.ListEntitiesResponse] {
	if options != nil && options.Filter != nil {
		f.filter = *options.Filter
	}
	next := 0
	return runtime.NewPager(runtime.PagingHandler[aztables.ListEntitiesResponse]{
		More: func(aztables.ListEntitiesResponse) bool {
			return next < len(f.pages)
		},
		Fetcher: func(context.Context, *aztables.ListEntitiesResponse) (aztables.ListEntitiesResponse, error) {
			if next >= len(f.pages) {
				return aztables.ListEntitiesResponse{}, nil
			}
			page := f.pages[next]
			next++
			return aztables.ListEntitiesResponse{Entities: page}, nil
		},
	})
}

func TestEnsureTableToleratesExisting(t *testing.T) {
	exists := &azcore.ResponseError{ErrorCode: string(aztables.TableAlreadyExists), StatusCode: http.StatusConflict}
	s := &Store{client: &fakeClient{createErr: exists}}
	require.NoError(t, s.EnsureTable(context.Background()))

	s = &Store{client: &fakeClient{createErr: errors.New("forbidden")}}
	require.Error(t, s.EnsureTable(context.Background()))
}

func TestUpsertEncodesKeysAndDoubles(t *testing.T) {
	fake := &fakeClient{}
	s := &Store{client: fake}

	err := s.Upsert(context.Background(), tablestore.Row{
		PartitionKey: "SessionDataPartition",
		RowKey:       "r1",
		Properties:   map[string]any{"Text": "hi", "positive_score": 1.0},
	})
	require.NoError(t, err)
	require.Len(t, fake.upserted, 1)

	var entity map[string]any
	require.NoError(t, json.Unmarshal(fake.upserted[0], &entity))
	assert.Equal(t, "SessionDataPartition", entity["PartitionKey"])
	assert.Equal(t, "r1", entity["RowKey"])
	assert.Equal(t, "Edm.Double", entity["positive_score@odata.type"])
	assert.NotContains(t, entity, "Text@odata.type")
}

func TestQueryStripsServiceKeys(t *testing.T) {
	fake := &fakeClient{pages: [][][]byte{
		{[]byte(`{"odata.metadata":"m","odata.etag":"e","Timestamp":"2024-11-01T00:00:00Z","PartitionKey":"p","RowKey":"a","Text":"one","negative_score@odata.type":"Edm.Double","negative_score":0.7}`)},
		{[]byte(`{"PartitionKey":"p","RowKey":"b","Text":"two"}`)},
	}}
	s := &Store{client: fake}

	rows, err := s.Query(context.Background(), "p")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "PartitionKey eq 'p'", fake.filter)
	assert.Equal(t, "a", rows[0].RowKey)
	assert.Equal(t, map[string]any{"Text": "one", "negative_score": 0.7}, rows[0].Properties)
	assert.Equal(t, "two", rows[1].Properties["Text"])
}

func TestPartitionFilterEscapesQuotes(t *testing.T) {
	assert.Equal(t, "PartitionKey eq 'o''brien'", partitionFilter("o'brien"))
}
