package database

import (
	"context"
	"fmt"

	"cloud.google.com/go/datastore"

	"github.com/locvowork/employee_management_sample/exportgateway/internal/domain"
)

const productInfoKind = "ProductInfo"

// DatastoreClient wraps the cloud datastore client
type DatastoreClient struct {
	client *datastore.Client
}

// NewDatastoreClient connects to the given project. The emulator is used
// when DATASTORE_EMULATOR_HOST is set.
func NewDatastoreClient(ctx context.Context, projectID string) (*DatastoreClient, error) {
	client, err := datastore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Datastore client: %w", err)
	}
	return &DatastoreClient{client: client}, nil
}

// Close releases the underlying connection.
func (dc *DatastoreClient) Close() error {
	if dc == nil || dc.client == nil {
		return nil
	}
	return dc.client.Close()
}

// GetProductInfoByBrand retrieves all ProductInfo for a brand ordered by
// product ID.
func (dc *DatastoreClient) GetProductInfoByBrand(ctx context.Context, brand string) ([]domain.ProductInfo, error) {
	if dc == nil || dc.client == nil {
		return nil, fmt.Errorf("datastore client is nil")
	}

	var result []domain.ProductInfo
	if _, err := dc.client.GetAll(ctx, productInfoQuery(brand), &result); err != nil {
		return nil, fmt.Errorf("query product info for %q: %w", brand, err)
	}
	return result, nil
}

func productInfoQuery(brand string) *datastore.Query {
	return datastore.NewQuery(productInfoKind).
		FilterField("Brand", "=", brand).
		Order("ID")
}
