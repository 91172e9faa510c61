package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/locvowork/employee_management_sample/exportgateway/internal/domain"
	"github.com/locvowork/employee_management_sample/exportgateway/internal/repository/builder"
)

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

type employeeRepository struct {
	db Querier
}

// NewEmployeeRepository creates a new instance of EmployeeRepository
func NewEmployeeRepository(db Querier) domain.EmployeeRepository {
	return &employeeRepository{db: db}
}

var employeeRowColumns = []string{
	"e.emp_no", "e.birth_date", "e.first_name", "e.last_name", "e.gender", "e.hire_date",
	"d.dept_no", "d.dept_name", "COALESCE(t.title, '')", "COALESCE(s.salary, 0)",
}

// employeeRows selects current department assignments with the current
// title and salary of each employee.
func employeeRows() *builder.SelectBuilder {
	return builder.NewSelectBuilder().
		Select(employeeRowColumns...).
		From("employees e").
		Join("INNER", "dept_emp de", "de.emp_no = e.emp_no").
		Join("INNER", "departments d", "d.dept_no = de.dept_no").
		Join("LEFT", "titles t", "t.emp_no = e.emp_no AND t.to_date = de.to_date").
		Join("LEFT", "salaries s", "s.emp_no = e.emp_no AND s.to_date = de.to_date").
		Where("de.to_date = ?", domain.CurrentToDate)
}

func applyFilter(b *builder.SelectBuilder, filter domain.EmployeeFilter) {
	if filter.Gender != "" {
		b.Where("e.gender = ?", filter.Gender)
	}
	if !filter.HiredAfter.IsZero() {
		b.Where("e.hire_date >= ?", filter.HiredAfter)
	}
	if !filter.HiredBefore.IsZero() {
		b.Where("e.hire_date < ?", filter.HiredBefore)
	}
	if filter.Limit > 0 {
		b.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		b.Offset(filter.Offset)
	}
}

func (r *employeeRepository) ListDepartments(ctx context.Context) ([]domain.DepartmentSummary, error) {
	query, args := builder.NewSelectBuilder().
		Select("d.dept_no", "d.dept_name", "COUNT(s.emp_no)", "COALESCE(SUM(s.salary), 0)", "COALESCE(AVG(s.salary), 0)").
		From("departments d").
		Join("LEFT", "dept_emp de", "de.dept_no = d.dept_no AND de.to_date = ?", domain.CurrentToDate).
		Join("LEFT", "salaries s", "s.emp_no = de.emp_no AND s.to_date = de.to_date").
		GroupBy("d.dept_no", "d.dept_name").
		OrderBy("d.dept_no ASC").
		Build()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing departments: %w", err)
	}
	defer rows.Close()

	var out []domain.DepartmentSummary
	for rows.Next() {
		var d domain.DepartmentSummary
		if err := rows.Scan(&d.DeptNo, &d.DeptName, &d.Headcount, &d.Total, &d.Average); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *employeeRepository) ListEmployeesByDepartment(ctx context.Context, deptNo string, filter domain.EmployeeFilter) ([]domain.EmployeeRow, error) {
	b := employeeRows().Where("d.dept_no = ?", deptNo).OrderBy("e.emp_no ASC")
	applyFilter(b, filter)
	return r.queryEmployees(ctx, b)
}

func (r *employeeRepository) ListEmployees(ctx context.Context, filter domain.EmployeeFilter) ([]domain.EmployeeRow, error) {
	b := employeeRows().OrderBy("d.dept_no ASC").OrderBy("e.emp_no ASC")
	applyFilter(b, filter)
	return r.queryEmployees(ctx, b)
}

func (r *employeeRepository) queryEmployees(ctx context.Context, b *builder.SelectBuilder) ([]domain.EmployeeRow, error) {
	query, args := b.Build()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing employees: %w", err)
	}
	defer rows.Close()

	var out []domain.EmployeeRow
	for rows.Next() {
		var e domain.EmployeeRow
		if err := rows.Scan(&e.EmpNo, &e.BirthDate, &e.FirstName, &e.LastName, &e.Gender, &e.HireDate,
			&e.DeptNo, &e.DeptName, &e.Title, &e.Salary); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
