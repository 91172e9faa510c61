package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/locvowork/employee_management_sample/exportgateway/internal/domain"
	"github.com/locvowork/employee_management_sample/exportgateway/internal/logger"
	"github.com/locvowork/employee_management_sample/exportgateway/pkg/tabexport"
	"github.com/locvowork/employee_management_sample/exportgateway/pkg/tabexport/sqlsource"
)

// ErrSourceUnavailable is returned when the backend a report reads from was
// not configured or failed to start.
var ErrSourceUnavailable = errors.New("data source unavailable")

// departmentFetchLimit bounds concurrent per-department employee queries.
const departmentFetchLimit = 4

// ReportService turns domain data into export artifacts.
type ReportService struct {
	employees domain.EmployeeRepository
	searcher  domain.EmployeeSearcher
	products  domain.ProductInfoStore
	db        sqlsource.DB
	defaults  ExportOptions
	coordOpts []tabexport.Option
}

// ReportServiceOption wires an optional backend.
type ReportServiceOption func(*ReportService)

// WithSearcher enables the search export.
func WithSearcher(s domain.EmployeeSearcher) ReportServiceOption {
	return func(rs *ReportService) { rs.searcher = s }
}

// WithProductStore enables the product info export.
func WithProductStore(p domain.ProductInfoStore) ReportServiceOption {
	return func(rs *ReportService) { rs.products = p }
}

// WithQueryDB enables template queries.
func WithQueryDB(db sqlsource.DB) ReportServiceOption {
	return func(rs *ReportService) { rs.db = db }
}

// WithCoordinatorOptions passes extra options to every export run.
func WithCoordinatorOptions(opts ...tabexport.Option) ReportServiceOption {
	return func(rs *ReportService) { rs.coordOpts = append(rs.coordOpts, opts...) }
}

// NewReportService creates a ReportService. defaults fill whatever neither
// the request nor a template sets.
func NewReportService(employees domain.EmployeeRepository, defaults ExportOptions, opts ...ReportServiceOption) *ReportService {
	rs := &ReportService{employees: employees, defaults: defaults}
	for _, opt := range opts {
		opt(rs)
	}
	return rs
}

// HasSearcher reports whether the search export is available.
func (s *ReportService) HasSearcher() bool { return s.searcher != nil }

// HasProductStore reports whether the product export is available.
func (s *ReportService) HasProductStore() bool { return s.products != nil }

// HasQueryDB reports whether template queries can run.
func (s *ReportService) HasQueryDB() bool { return s.db != nil }

func (s *ReportService) run(ctx context.Context, cfg *tabexport.ExportConfig, opts ExportOptions) (*tabexport.Document, error) {
	if err := opts.apply(cfg, s.defaults); err != nil {
		return nil, err
	}
	coordOpts := []tabexport.Option{tabexport.WithLogger(logger.FromContext(ctx))}
	delimiter := opts.Delimiter
	if delimiter == 0 {
		delimiter = s.defaults.Delimiter
	}
	if delimiter != 0 {
		coordOpts = append(coordOpts, tabexport.WithDelimiter(delimiter))
	}
	coordOpts = append(coordOpts, s.coordOpts...)

	coord := tabexport.NewCoordinator(cfg, coordOpts...)
	if err := coord.Preprocess(); err != nil {
		return nil, err
	}
	doc, err := coord.Build(ctx)
	if err != nil {
		return nil, err
	}
	logger.InfoLog(ctx, "export %s built (%d bytes)", doc.FileName, doc.Size())
	return doc, nil
}

// departmentLine is one row of the department tree: either a department or
// one of its employees.
type departmentLine struct {
	dept *domain.DepartmentSummary
	emp  *domain.EmployeeRow
}

var departmentLineAccessors = map[string]func(departmentLine) interface{}{
	"name": func(l departmentLine) interface{} {
		if l.dept != nil {
			return l.dept.DeptNo + " " + l.dept.DeptName
		}
		return l.emp.LastName + ", " + l.emp.FirstName
	},
	"emp_no": func(l departmentLine) interface{} {
		if l.emp == nil {
			return nil
		}
		return l.emp.EmpNo
	},
	"title": func(l departmentLine) interface{} {
		if l.emp == nil {
			return nil
		}
		return l.emp.Title
	},
	"hire_date": func(l departmentLine) interface{} {
		if l.emp == nil {
			return nil
		}
		return l.emp.HireDate
	},
	"salary": func(l departmentLine) interface{} {
		if l.dept != nil {
			return l.dept.Total
		}
		return l.emp.Salary
	},
}

var summaryAccessors = map[string]func(domain.DepartmentSummary) interface{}{
	"dept_no":   func(d domain.DepartmentSummary) interface{} { return d.DeptNo },
	"dept_name": func(d domain.DepartmentSummary) interface{} { return d.DeptName },
	"headcount": func(d domain.DepartmentSummary) interface{} { return d.Headcount },
	"total":     func(d domain.DepartmentSummary) interface{} { return d.Total },
	"average":   func(d domain.DepartmentSummary) interface{} { return d.Average },
}

// ExportDepartmentReport exports every department with its current staff
// followed by a salary summary.
func (s *ReportService) ExportDepartmentReport(ctx context.Context, filter domain.EmployeeFilter, opts ExportOptions) (*tabexport.Document, error) {
	depts, err := s.employees.ListDepartments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}

	staff := make([][]domain.EmployeeRow, len(depts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(departmentFetchLimit)
	for i := range depts {
		i := i
		g.Go(func() error {
			rows, err := s.employees.ListEmployeesByDepartment(gctx, depts[i].DeptNo, filter)
			if err != nil {
				return fmt.Errorf("list employees of %s: %w", depts[i].DeptNo, err)
			}
			staff[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var (
		roots     []*tabexport.TreeNode
		headcount int
		total     int64
	)
	for i := range depts {
		node := &tabexport.TreeNode{Item: departmentLine{dept: &depts[i]}}
		for j := range staff[i] {
			node.Children = append(node.Children, &tabexport.TreeNode{Item: departmentLine{emp: &staff[i][j]}})
		}
		roots = append(roots, node)
		headcount += depts[i].Headcount
		total += depts[i].Total
	}

	freeze := 1
	cfg := &tabexport.ExportConfig{
		Sheets: []*tabexport.SheetConfig{{
			Name:  "Departments",
			Title: "Department report",
			HeaderInfo: tabexport.OrderedPairs{
				{Caption: "Departments", Value: strconv.Itoa(len(depts))},
				{Caption: "Employees", Value: strconv.Itoa(headcount)},
			},
			FilterInfo: filterInfo(filter),
			Components: []*tabexport.ComponentConfig{
				{
					ID:     "staff",
					Source: tabexport.NewTreeSource(roots, tabexport.NewSliceSource([]departmentLine(nil), departmentLineAccessors)),
					Columns: []*tabexport.ColumnBinding{
						{Key: "name", Header: "Department / Employee"},
						{Key: "emp_no", Header: "No.", Type: tabexport.TypeInteger},
						{Key: "title", Header: "Title"},
						{Key: "hire_date", Header: "Hired", Type: tabexport.TypeDate},
						{Key: "salary", Header: "Salary", Type: tabexport.TypeLong, ThousandsSeparator: true},
					},
					HeaderRows:   []tabexport.HeaderRowConfig{{}},
					FreezeColumn: &freeze,
				},
				{
					ID:     "summary",
					Source: tabexport.NewSliceSource(depts, summaryAccessors),
					Columns: []*tabexport.ColumnBinding{
						{Key: "dept_no", Header: "No."},
						{Key: "dept_name", Header: "Department"},
						{Key: "headcount", Header: "Headcount", Type: tabexport.TypeInteger},
						{Key: "total", Header: "Total", Type: tabexport.TypeLong, ThousandsSeparator: true},
						{Key: "average", Header: "Average", Type: tabexport.TypeDouble, ThousandsSeparator: true},
					},
					HeaderRows: []tabexport.HeaderRowConfig{
						{MergeGroups: []tabexport.MergeGroup{{StartKey: "headcount", EndKey: "average", Caption: "Current salaries"}}},
						{},
					},
					FooterRows: []tabexport.HeaderRowConfig{{
						Captions: []string{"Total", "", strconv.Itoa(headcount), strconv.FormatInt(total, 10), ""},
					}},
				},
			},
		}},
	}
	return s.run(ctx, cfg, opts)
}

func filterInfo(f domain.EmployeeFilter) tabexport.OrderedPairs {
	var pairs tabexport.OrderedPairs
	if f.Gender != "" {
		pairs = append(pairs, tabexport.KeyValue{Caption: "Gender", Value: f.Gender})
	}
	if !f.HiredAfter.IsZero() {
		pairs = append(pairs, tabexport.KeyValue{Caption: "Hired from", Value: f.HiredAfter.Format("2006-01-02")})
	}
	if !f.HiredBefore.IsZero() {
		pairs = append(pairs, tabexport.KeyValue{Caption: "Hired before", Value: f.HiredBefore.Format("2006-01-02")})
	}
	return pairs
}

var employeeRowAccessors = map[string]func(domain.EmployeeRow) interface{}{
	"emp_no":     func(e domain.EmployeeRow) interface{} { return e.EmpNo },
	"first_name": func(e domain.EmployeeRow) interface{} { return e.FirstName },
	"last_name":  func(e domain.EmployeeRow) interface{} { return e.LastName },
	"gender":     func(e domain.EmployeeRow) interface{} { return e.Gender },
	"dept_name":  func(e domain.EmployeeRow) interface{} { return e.DeptName },
	"title":      func(e domain.EmployeeRow) interface{} { return e.Title },
	"hire_date":  func(e domain.EmployeeRow) interface{} { return e.HireDate },
	"salary":     func(e domain.EmployeeRow) interface{} { return e.Salary },
}

// ExportEmployees exports the current employees matching filter as one list.
func (s *ReportService) ExportEmployees(ctx context.Context, filter domain.EmployeeFilter, opts ExportOptions) (*tabexport.Document, error) {
	rows, err := s.employees.ListEmployees(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}

	cfg := &tabexport.ExportConfig{
		Sheets: []*tabexport.SheetConfig{{
			Name:       "Staff",
			Title:      "Employee list",
			FilterInfo: filterInfo(filter),
			HeaderInfo: tabexport.OrderedPairs{{Caption: "Employees", Value: strconv.Itoa(len(rows))}},
			Components: []*tabexport.ComponentConfig{{
				ID:         "staff",
				Source:     tabexport.NewSliceSource(rows, employeeRowAccessors),
				Columns:    employeeColumns(),
				HeaderRows: []tabexport.HeaderRowConfig{{}},
			}},
		}},
	}
	return s.run(ctx, cfg, opts)
}

func employeeColumns() []*tabexport.ColumnBinding {
	return []*tabexport.ColumnBinding{
		{Key: "emp_no", Header: "No.", Type: tabexport.TypeInteger},
		{Key: "first_name", Header: "First name"},
		{Key: "last_name", Header: "Last name"},
		{Key: "gender", Header: "Gender"},
		{Key: "dept_name", Header: "Department"},
		{Key: "title", Header: "Title"},
		{Key: "hire_date", Header: "Hired", Type: tabexport.TypeDate},
		{Key: "salary", Header: "Salary", Type: tabexport.TypeInteger, ThousandsSeparator: true},
	}
}

var employeeDocumentAccessors = map[string]func(domain.EmployeeDocument) interface{}{
	"emp_no":     func(d domain.EmployeeDocument) interface{} { return d.EmpNo },
	"first_name": func(d domain.EmployeeDocument) interface{} { return d.FirstName },
	"last_name":  func(d domain.EmployeeDocument) interface{} { return d.LastName },
	"gender":     func(d domain.EmployeeDocument) interface{} { return d.Gender },
	"dept_name":  func(d domain.EmployeeDocument) interface{} { return d.DeptName },
	"title":      func(d domain.EmployeeDocument) interface{} { return d.Title },
	"hire_date":  func(d domain.EmployeeDocument) interface{} { return d.HireDate },
	"salary":     func(d domain.EmployeeDocument) interface{} { return d.Salary },
}

// ExportEmployeeSearch exports the employees matching query. An empty query
// exports the whole index.
func (s *ReportService) ExportEmployeeSearch(ctx context.Context, query string, opts ExportOptions) (*tabexport.Document, error) {
	if s.searcher == nil {
		return nil, fmt.Errorf("employee search: %w", ErrSourceUnavailable)
	}

	var docs []domain.EmployeeDocument
	if query == "" {
		err := s.searcher.ScrollAllEmployees(ctx, func(batch []domain.EmployeeDocument) error {
			docs = append(docs, batch...)
			logger.DebugLog(ctx, "scrolled %d employees", len(docs))
			return nil
		})
		if err != nil {
			return nil, err
		}
	} else {
		var err error
		if docs, err = s.searcher.SearchEmployeesByName(ctx, query, 1000); err != nil {
			return nil, err
		}
	}

	shown := query
	if shown == "" {
		shown = "*"
	}
	cfg := &tabexport.ExportConfig{
		Sheets: []*tabexport.SheetConfig{{
			Name:       "Employees",
			Title:      "Employee search",
			FilterInfo: tabexport.OrderedPairs{{Caption: "Query", Value: shown}},
			HeaderInfo: tabexport.OrderedPairs{{Caption: "Matches", Value: strconv.Itoa(len(docs))}},
			Components: []*tabexport.ComponentConfig{{
				ID:         "employees",
				Source:     tabexport.NewSliceSource(docs, employeeDocumentAccessors),
				Columns:    employeeColumns(),
				HeaderRows: []tabexport.HeaderRowConfig{{}},
			}},
		}},
	}
	return s.run(ctx, cfg, opts)
}

var productInfoAccessors = map[string]func(domain.ProductInfo) interface{}{
	"id":         func(p domain.ProductInfo) interface{} { return p.ID },
	"brand":      func(p domain.ProductInfo) interface{} { return p.Brand },
	"country":    func(p domain.ProductInfo) interface{} { return p.Country },
	"place":      func(p domain.ProductInfo) interface{} { return p.Place },
	"year":       func(p domain.ProductInfo) interface{} { return p.Year },
	"sub_number": func(p domain.ProductInfo) interface{} { return p.SubNumber },
}

// ExportProductInfo exports the product info documents of one brand.
func (s *ReportService) ExportProductInfo(ctx context.Context, brand string, opts ExportOptions) (*tabexport.Document, error) {
	if s.products == nil {
		return nil, fmt.Errorf("product info: %w", ErrSourceUnavailable)
	}
	infos, err := s.products.GetProductInfoByBrand(ctx, brand)
	if err != nil {
		return nil, err
	}

	cfg := &tabexport.ExportConfig{
		Sheets: []*tabexport.SheetConfig{{
			Name:       "Products",
			Title:      "Product info",
			FilterInfo: tabexport.OrderedPairs{{Caption: "Brand", Value: brand}},
			Components: []*tabexport.ComponentConfig{{
				ID:     "products",
				Source: tabexport.NewSliceSource(infos, productInfoAccessors),
				Columns: []*tabexport.ColumnBinding{
					{Key: "id", Header: "ID", Type: tabexport.TypeLong},
					{Key: "brand", Header: "Brand"},
					{Key: "country", Header: "Country"},
					{Key: "place", Header: "Place"},
					{Key: "year", Header: "Year", Type: tabexport.TypeInteger},
					{Key: "sub_number", Header: "Sub number", Type: tabexport.TypeInteger},
				},
				HeaderRows: []tabexport.HeaderRowConfig{{}},
			}},
		}},
	}
	return s.run(ctx, cfg, opts)
}

// ExportTemplate binds JSON rows to the components of tmpl by component ID.
// Components without rows export empty.
func (s *ReportService) ExportTemplate(ctx context.Context, tmpl *tabexport.ExportConfig, rows map[string][]map[string]interface{}, opts ExportOptions) (*tabexport.Document, error) {
	for id := range rows {
		if tmpl.Component(id) == nil {
			return nil, &tabexport.ConfigurationError{Field: "rows", Err: fmt.Errorf("no component %q in template", id)}
		}
	}
	for _, comp := range tmpl.Components() {
		if comp.Source == nil {
			comp.Source = tabexport.NewMapSource(rows[comp.ID])
		}
	}
	return s.run(ctx, tmpl, opts)
}

// ExportQuery runs the query of every template component and exports the
// results. Components without columns take them from the result set.
func (s *ReportService) ExportQuery(ctx context.Context, tmpl *tabexport.ExportConfig, opts ExportOptions) (*tabexport.Document, error) {
	if s.db == nil {
		return nil, fmt.Errorf("template query: %w", ErrSourceUnavailable)
	}
	for _, comp := range tmpl.Components() {
		if comp.Source != nil {
			continue
		}
		if comp.Query == "" {
			return nil, &tabexport.ConfigurationError{Field: comp.ID, Err: errors.New("component has neither query nor rows")}
		}
		src, err := sqlsource.Query(ctx, s.db, comp.Query)
		if err != nil {
			return nil, fmt.Errorf("component %s: %w", comp.ID, err)
		}
		comp.Source = src
		if len(comp.Columns) == 0 {
			comp.Columns = src.Bindings()
		}
	}
	return s.run(ctx, tmpl, opts)
}
