package service

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/locvowork/employee_management_sample/exportgateway/internal/domain"
	"github.com/locvowork/employee_management_sample/exportgateway/pkg/tabexport"
)

var hired = time.Date(2020, time.January, 2, 0, 0, 0, 0, time.UTC)

type fakeRepo struct {
	mu      sync.Mutex
	depts   []domain.DepartmentSummary
	staff   map[string][]domain.EmployeeRow
	filters []domain.EmployeeFilter
	err     error
}

func (r *fakeRepo) ListDepartments(context.Context) ([]domain.DepartmentSummary, error) {
	return r.depts, r.err
}

func (r *fakeRepo) ListEmployeesByDepartment(_ context.Context, deptNo string, filter domain.EmployeeFilter) ([]domain.EmployeeRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filters = append(r.filters, filter)
	return r.staff[deptNo], nil
}

func (r *fakeRepo) ListEmployees(_ context.Context, filter domain.EmployeeFilter) ([]domain.EmployeeRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filters = append(r.filters, filter)
	if r.err != nil {
		return nil, r.err
	}
	var out []domain.EmployeeRow
	for _, rows := range r.staff {
		out = append(out, rows...)
	}
	return out, nil
}

func employee(no int, first, last string, salary int) domain.EmployeeRow {
	return domain.EmployeeRow{
		Employee: domain.Employee{EmpNo: no, FirstName: first, LastName: last, HireDate: hired},
		Title:    "Eng",
		Salary:   salary,
	}
}

func departmentRepo() *fakeRepo {
	return &fakeRepo{
		depts: []domain.DepartmentSummary{
			{Department: domain.Department{DeptNo: "d001", DeptName: "Marketing"}, Headcount: 2, Total: 150000, Average: 75000},
			{Department: domain.Department{DeptNo: "d002", DeptName: "Finance"}},
		},
		staff: map[string][]domain.EmployeeRow{
			"d001": {employee(1, "Ada", "Lovelace", 80000), employee(2, "Grace", "Hopper", 70000)},
		},
	}
}

var csvDefaults = ExportOptions{Type: tabexport.ExportTypeCSV, Locale: "en", GeneratedBy: "system"}

func text(t *testing.T, doc *tabexport.Document) string {
	t.Helper()
	data, err := doc.Bytes()
	require.NoError(t, err)
	return string(data)
}

func TestExportDepartmentReport_Flat(t *testing.T) {
	repo := departmentRepo()
	svc := NewReportService(repo, csvDefaults)

	doc, err := svc.ExportDepartmentReport(context.Background(), domain.EmployeeFilter{Gender: "F"}, ExportOptions{})
	require.NoError(t, err)

	assert.Equal(t, tabexport.ExportTypeCSV, doc.Type)
	assert.Equal(t, ""+
		"name;emp_no;title;hire_date;salary\n"+
		"d001 Marketing;;;;150,000\n"+
		"Lovelace, Ada;1;Eng;Thu, 02.01.2020;80,000\n"+
		"Hopper, Grace;2;Eng;Thu, 02.01.2020;70,000\n"+
		"d002 Finance;;;;0\n"+
		"dept_no;dept_name;headcount;total;average\n"+
		"d001;Marketing;2;150,000;75,000.00\n"+
		"d002;Finance;0;0;0.00\n", text(t, doc))

	require.Len(t, repo.filters, 2)
	assert.Equal(t, "F", repo.filters[0].Gender)
}

func TestExportDepartmentReport_Workbook(t *testing.T) {
	svc := NewReportService(departmentRepo(), csvDefaults)

	doc, err := svc.ExportDepartmentReport(context.Background(), domain.EmployeeFilter{}, ExportOptions{Type: tabexport.ExportTypeXLSX, FileName: "departments"})
	require.NoError(t, err)
	assert.Regexp(t, `^departments_\d{4}_\d{1,2}_\d{1,2}\.xlsx$`, doc.FileName)

	data, err := doc.Bytes()
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	title, err := f.GetCellValue("Departments", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Report Name: Department report", title)

	merges, err := f.GetMergeCells("Departments")
	require.NoError(t, err)
	var captions []string
	for _, m := range merges {
		captions = append(captions, m.GetCellValue())
	}
	assert.Contains(t, captions, "Current salaries")
}

func TestExportDepartmentReport_RepositoryError(t *testing.T) {
	svc := NewReportService(&fakeRepo{err: errors.New("db down")}, csvDefaults)
	_, err := svc.ExportDepartmentReport(context.Background(), domain.EmployeeFilter{}, ExportOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

type fakeSearcher struct {
	docs     []domain.EmployeeDocument
	scrolled bool
	query    string
}

func (s *fakeSearcher) SearchEmployeesByName(_ context.Context, name string, _ int) ([]domain.EmployeeDocument, error) {
	s.query = name
	return s.docs[:1], nil
}

func (s *fakeSearcher) ScrollAllEmployees(_ context.Context, fn func([]domain.EmployeeDocument) error) error {
	s.scrolled = true
	for _, d := range s.docs {
		if err := fn([]domain.EmployeeDocument{d}); err != nil {
			return err
		}
	}
	return nil
}

func TestExportEmployeeSearch(t *testing.T) {
	searcher := &fakeSearcher{docs: []domain.EmployeeDocument{
		{EmpNo: 1, FirstName: "Ada", LastName: "Lovelace", Salary: 1234567, HireDate: hired},
		{EmpNo: 2, FirstName: "Grace", LastName: "Hopper"},
	}}
	svc := NewReportService(&fakeRepo{}, csvDefaults, WithSearcher(searcher))

	doc, err := svc.ExportEmployeeSearch(context.Background(), "ada", ExportOptions{Locale: "de", Delimiter: ','})
	require.NoError(t, err)
	assert.Equal(t, "ada", searcher.query)
	assert.Equal(t, ""+
		"emp_no,first_name,last_name,gender,dept_name,title,hire_date,salary\n"+
		"1,Ada,Lovelace,,,,\"Do, 02.01.2020\",1.234.567\n", text(t, doc))

	doc, err = svc.ExportEmployeeSearch(context.Background(), "", ExportOptions{})
	require.NoError(t, err)
	assert.True(t, searcher.scrolled)
	assert.Contains(t, text(t, doc), "2;Grace;Hopper")
}

func TestExportEmployeeSearch_Unavailable(t *testing.T) {
	svc := NewReportService(&fakeRepo{}, csvDefaults)
	_, err := svc.ExportEmployeeSearch(context.Background(), "ada", ExportOptions{})
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.False(t, svc.HasSearcher())
}

type fakeStore struct{ infos []domain.ProductInfo }

func (s fakeStore) GetProductInfoByBrand(_ context.Context, brand string) ([]domain.ProductInfo, error) {
	var out []domain.ProductInfo
	for _, p := range s.infos {
		if p.Brand == brand {
			out = append(out, p)
		}
	}
	return out, nil
}

func TestExportProductInfo(t *testing.T) {
	store := fakeStore{infos: []domain.ProductInfo{
		{ID: 7, Brand: "Sony", Country: "Japan", Place: "Tokyo", Year: 2021, SubNumber: 3},
		{ID: 8, Brand: "LG", Country: "Korea"},
	}}
	svc := NewReportService(&fakeRepo{}, csvDefaults, WithProductStore(store))

	doc, err := svc.ExportProductInfo(context.Background(), "Sony", ExportOptions{})
	require.NoError(t, err)
	assert.Equal(t, "id;brand;country;place;year;sub_number\n7;Sony;Japan;Tokyo;2021;3\n", text(t, doc))

	_, err = NewReportService(&fakeRepo{}, csvDefaults).ExportProductInfo(context.Background(), "Sony", ExportOptions{})
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

const rowsTemplate = `
type: xlsx
sheets:
  - name: People
    components:
      - id: people
        header_keys: [Name, Age]
        columns:
          - key: name
          - key: age
            type: int
`

func TestExportTemplate(t *testing.T) {
	tmpl, err := tabexport.LoadTemplateFromString(rowsTemplate)
	require.NoError(t, err)
	svc := NewReportService(&fakeRepo{}, csvDefaults)

	doc, err := svc.ExportTemplate(context.Background(), tmpl, map[string][]map[string]interface{}{
		"people": {{"name": "Ada", "age": float64(36)}},
	}, ExportOptions{Type: tabexport.ExportTypeCSV})
	require.NoError(t, err)
	assert.Equal(t, "Name;Age\nAda;36\n", text(t, doc), "the request type wins over the template")
}

func TestExportTemplate_UnknownComponent(t *testing.T) {
	tmpl, err := tabexport.LoadTemplateFromString(rowsTemplate)
	require.NoError(t, err)

	_, err = NewReportService(&fakeRepo{}, csvDefaults).ExportTemplate(context.Background(), tmpl,
		map[string][]map[string]interface{}{"ghosts": nil}, ExportOptions{})
	var cfgErr *tabexport.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

const queryTemplate = `
type: csv
sheets:
  - name: Titles
    components:
      - id: titles
        query: SELECT title, count(*) AS n FROM titles GROUP BY title
        header_rows: [{}]
`

func TestExportQuery(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectQuery("SELECT title, count(*) AS n FROM titles GROUP BY title").
		WillReturnRows(mock.NewRowsWithColumnDefinition(
			sqlmock.NewColumn("title").OfType("VARCHAR", ""),
			sqlmock.NewColumn("n").OfType("INT8", int64(0)),
		).
			AddRow([]byte("Engineer"), int64(115003)).
			AddRow([]byte("Staff"), int64(107391)))

	tmpl, err := tabexport.LoadTemplateFromString(queryTemplate)
	require.NoError(t, err)
	svc := NewReportService(&fakeRepo{}, ExportOptions{}, WithQueryDB(db))

	doc, err := svc.ExportQuery(context.Background(), tmpl, ExportOptions{})
	require.NoError(t, err)
	assert.Equal(t, "title;n\nEngineer;115003\nStaff;107391\n", text(t, doc))
	assert.NoError(t, mock.ExpectationsWereMet())
}

const averageTemplate = `
type: csv
sheets:
  - name: Averages
    components:
      - id: averages
        query: SELECT dept_name, avg(salary) AS average FROM salaries GROUP BY dept_name
        columns:
          - key: dept_name
          - key: average
            type: bigdecimal
            thousands_separator: true
        header_rows: [{}]
`

func TestExportQuery_NumericUnderGerman(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectQuery("SELECT dept_name, avg(salary) AS average FROM salaries GROUP BY dept_name").
		WillReturnRows(mock.NewRowsWithColumnDefinition(
			sqlmock.NewColumn("dept_name").OfType("VARCHAR", ""),
			sqlmock.NewColumn("average").OfType("NUMERIC", ""),
		).AddRow([]byte("Sales"), []byte("81234.5600000000")))

	tmpl, err := tabexport.LoadTemplateFromString(averageTemplate)
	require.NoError(t, err)
	svc := NewReportService(&fakeRepo{}, ExportOptions{}, WithQueryDB(db))

	doc, err := svc.ExportQuery(context.Background(), tmpl, ExportOptions{Locale: "de"})
	require.NoError(t, err)
	assert.Equal(t, "dept_name;average\nSales;81.234,56\n", text(t, doc))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExportQuery_Unavailable(t *testing.T) {
	tmpl, err := tabexport.LoadTemplateFromString(queryTemplate)
	require.NoError(t, err)
	_, err = NewReportService(&fakeRepo{}, csvDefaults).ExportQuery(context.Background(), tmpl, ExportOptions{})
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestParseExportOptions(t *testing.T) {
	opts, err := ParseExportOptions("flat", "de", "report", "hr", "|")
	require.NoError(t, err)
	assert.Equal(t, ExportOptions{Type: tabexport.ExportTypeCSV, Locale: "de", FileName: "report", GeneratedBy: "hr", Delimiter: '|'}, opts)

	opts, err = ParseExportOptions("", "", "", "", "")
	require.NoError(t, err)
	assert.Equal(t, ExportOptions{}, opts)

	_, err = ParseExportOptions("pdf", "", "", "", "")
	assert.Error(t, err)
	_, err = ParseExportOptions("", "", "", "", ";;")
	assert.Error(t, err)
	_, err = ParseExportOptions("", "not a locale!", "", "", "")
	assert.Error(t, err)
}

func TestExportOptions_Apply(t *testing.T) {
	defaults := ExportOptions{Type: tabexport.ExportTypeXLSX, Locale: "en", GeneratedBy: "system", FileName: "fallback"}

	cfg := &tabexport.ExportConfig{Type: tabexport.ExportTypeCSV, Locale: tabexport.German}
	require.NoError(t, ExportOptions{}.apply(cfg, defaults))
	assert.Equal(t, tabexport.ExportTypeCSV, cfg.Type, "template values survive")
	assert.Equal(t, tabexport.German, cfg.Locale)
	assert.Equal(t, "system", cfg.GeneratedBy)
	assert.Equal(t, "fallback", cfg.FileName)

	require.NoError(t, ExportOptions{Type: tabexport.ExportTypeXLS, Locale: "en"}.apply(cfg, defaults))
	assert.Equal(t, tabexport.ExportTypeXLS, cfg.Type)
	assert.Equal(t, "en", cfg.Locale.String())
}

func TestExportEmployees(t *testing.T) {
	repo := &fakeRepo{staff: map[string][]domain.EmployeeRow{
		"d001": {employee(1, "Ada", "Lovelace", 80000)},
	}}
	svc := NewReportService(repo, csvDefaults)

	filter := domain.EmployeeFilter{Gender: "F", Limit: 10}
	doc, err := svc.ExportEmployees(context.Background(), filter, ExportOptions{})
	require.NoError(t, err)

	assert.Equal(t, ""+
		"emp_no;first_name;last_name;gender;dept_name;title;hire_date;salary\n"+
		"1;Ada;Lovelace;;;Eng;Thu, 02.01.2020;80,000\n", text(t, doc))
	assert.Equal(t, []domain.EmployeeFilter{filter}, repo.filters)
}

func TestExportEmployees_RepositoryError(t *testing.T) {
	svc := NewReportService(&fakeRepo{err: errors.New("db down")}, csvDefaults)
	_, err := svc.ExportEmployees(context.Background(), domain.EmployeeFilter{}, ExportOptions{})
	assert.ErrorContains(t, err, "db down")
}
