package domain

import (
	"context"
	"time"
)

// CurrentToDate marks the open-ended row of a history table.
var CurrentToDate = time.Date(9999, time.January, 1, 0, 0, 0, 0, time.UTC)

// EmployeeFilter defines criteria for listing employees
type EmployeeFilter struct {
	Gender      string
	HiredAfter  time.Time
	HiredBefore time.Time
	Limit       int
	Offset      int
}

// EmployeeRepository reads the relational report data.
type EmployeeRepository interface {
	ListDepartments(ctx context.Context) ([]DepartmentSummary, error)
	ListEmployeesByDepartment(ctx context.Context, deptNo string, filter EmployeeFilter) ([]EmployeeRow, error)
	ListEmployees(ctx context.Context, filter EmployeeFilter) ([]EmployeeRow, error)
}

// EmployeeSearcher finds employees in the search index.
type EmployeeSearcher interface {
	SearchEmployeesByName(ctx context.Context, name string, size int) ([]EmployeeDocument, error)
	ScrollAllEmployees(ctx context.Context, fn func([]EmployeeDocument) error) error
}

// ProductInfoStore reads product info documents.
type ProductInfoStore interface {
	GetProductInfoByBrand(ctx context.Context, brand string) ([]ProductInfo, error)
}
