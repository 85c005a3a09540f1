package aztable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"github.com/davidahmann/counterpoint/internal/tablestore"
)

// tableClient is the subset of *aztables.Client the store uses.
type tableClient interface {
	CreateTable(ctx context.Context, options *aztables.CreateTableOptions) (aztables.CreateTableResponse, error)
	UpsertEntity(ctx context.Context, entity []byte, options *aztables.UpsertEntityOptions) (aztables.UpsertEntityResponse, error)
	NewListEntitiesPager(options *aztables.ListEntitiesOptions) *runtime.Pager[aztables.ListEntitiesResponse]
}

// Store keeps rows in an Azure Storage table.
type Store struct {
	client tableClient
}

// Open connects with a storage connection string.
func Open(connString string, table string) (*Store, error) {
	svc, err := aztables.NewServiceClientFromConnectionString(connString, nil)
	if err != nil {
		return nil, err
	}
	return &Store{client: svc.NewClient(table)}, nil
}

// EnsureTable creates the table; an existing one is fine.
func (s *Store) EnsureTable(ctx context.Context) error {
	_, err := s.client.CreateTable(ctx, nil)
	if err == nil || isTableExists(err) {
		return nil
	}
	return err
}

func (s *Store) Upsert(ctx context.Context, row tablestore.Row) error {
	if err := row.Validate(); err != nil {
		return err
	}
	entity, err := encodeEntity(row)
	if err != nil {
		return err
	}
	_, err = s.client.UpsertEntity(ctx, entity, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace})
	return err
}

func (s *Store) Query(ctx context.Context, partition string) ([]tablestore.Row, error) {
	filter := partitionFilter(partition)
	pager := s.client.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})

	out := []tablestore.Row{}
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range page.Entities {
			row, err := decodeEntity(raw)
			if err != nil {
				return nil, err
			}
			out = append(out, row)
		}
	}
	return out, nil
}

func isTableExists(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.ErrorCode == string(aztables.TableAlreadyExists)
}

// partitionFilter builds an OData filter; single quotes are doubled.
func partitionFilter(partition string) string {
	return fmt.Sprintf("PartitionKey eq '%s'", strings.ReplaceAll(partition, "'", "''"))
}

func encodeEntity(row tablestore.Row) ([]byte, error) {
	props := tablestore.StripReserved(row.Properties)
	entity := make(map[string]any, len(props)+2)
	for key, value := range props {
		entity[key] = value
		switch value.(type) {
		case float32, float64:
			// A whole float would otherwise be typed as Int32 by the service.
			entity[key+"@odata.type"] = "Edm.Double"
		}
	}
	entity[tablestore.KeyPartition] = row.PartitionKey
	entity[tablestore.KeyRow] = row.RowKey
	return json.Marshal(entity)
}

func decodeEntity(raw []byte) (tablestore.Row, error) {
	var entity map[string]any
	if err := json.Unmarshal(raw, &entity); err != nil {
		return tablestore.Row{}, err
	}
	row := tablestore.Row{Properties: map[string]any{}}
	row.PartitionKey, _ = entity[tablestore.KeyPartition].(string)
	row.RowKey, _ = entity[tablestore.KeyRow].(string)
	for key, value := range entity {
		if tablestore.IsReserved(key) || strings.Contains(key, "@odata.") {
			continue
		}
		row.Properties[key] = value
	}
	return row, nil
}
