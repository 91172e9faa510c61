package database

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/olivere/elastic/v7"

	"github.com/locvowork/employee_management_sample/exportgateway/internal/domain"
)

const (
	employeeIndex   = "employees"
	scrollBatchSize = 500
)

// ElasticSearchClient wraps olivere/elastic client.
type ElasticSearchClient struct {
	client *elastic.Client
}

// NewElasticSearchClient creates a new client for Elasticsearch 7.x.
// Sniffing must stay off behind Docker or a cloud proxy.
func NewElasticSearchClient(url string, sniff bool) (*ElasticSearchClient, error) {
	client, err := elastic.NewClient(
		elastic.SetURL(url),
		elastic.SetSniff(sniff),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}
	return &ElasticSearchClient{client: client}, nil
}

// SearchEmployeesByName performs a full-text match on first_name or last_name.
func (es *ElasticSearchClient) SearchEmployeesByName(ctx context.Context, name string, size int) ([]domain.EmployeeDocument, error) {
	if size <= 0 {
		size = 100
	}
	searchResult, err := es.client.Search().
		Index(employeeIndex).
		Query(elastic.NewMultiMatchQuery(name, "first_name", "last_name")).
		Sort("emp_no", true).
		Size(size).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	return decodeHits(searchResult.Hits)
}

// ScrollAllEmployees walks the whole index in _doc order and hands each
// batch to fn. An error from fn stops the scroll.
func (es *ElasticSearchClient) ScrollAllEmployees(ctx context.Context, fn func([]domain.EmployeeDocument) error) error {
	scroll := es.client.Scroll(employeeIndex).
		Size(scrollBatchSize).
		KeepAlive("2m").
		Sort("_doc", true)
	defer scroll.Clear(context.Background())

	for {
		results, err := scroll.Do(ctx)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("scroll error: %w", err)
		}
		docs, err := decodeHits(results.Hits)
		if err != nil {
			return err
		}
		if err := fn(docs); err != nil {
			return err
		}
	}
}

func decodeHits(hits *elastic.SearchHits) ([]domain.EmployeeDocument, error) {
	if hits == nil {
		return nil, nil
	}
	docs := make([]domain.EmployeeDocument, 0, len(hits.Hits))
	for _, hit := range hits.Hits {
		var doc domain.EmployeeDocument
		if err := json.Unmarshal(hit.Source, &doc); err != nil {
			return nil, fmt.Errorf("decode employee hit %s: %w", hit.Id, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
