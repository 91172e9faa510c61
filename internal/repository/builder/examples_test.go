package builder_test

import (
	"fmt"

	"github.com/locvowork/employee_management_sample/exportgateway/internal/repository/builder"
)

func Example_departmentEmployees() {
	qb := builder.NewSelectBuilder().
		Select("e.emp_no", "e.first_name", "e.last_name").
		From("employees e").
		Join("INNER", "dept_emp de", "de.emp_no = e.emp_no").
		Where("de.dept_no = ?", "d005").
		OrderBy("e.emp_no ASC").
		Limit(100)

	sql, args := qb.Build()
	fmt.Println("SQL:", sql)
	fmt.Printf("Args: %v\n", args)

	// Output:
	// SQL: SELECT e.emp_no, e.first_name, e.last_name FROM employees e INNER JOIN dept_emp de ON de.emp_no = e.emp_no WHERE de.dept_no = $1 ORDER BY e.emp_no ASC LIMIT 100
	// Args: [d005]
}

func Example_nameSearch() {
	qb := builder.NewSelectBuilder().
		Select("emp_no").
		From("employees").
		WhereAny(func(g *builder.SelectBuilder) {
			g.Where("first_name ILIKE ?", "Geo%").Where("last_name ILIKE ?", "Geo%")
		})

	sql, args := qb.Build()
	fmt.Println("SQL:", sql)
	fmt.Printf("Args: %v\n", args)

	// Output:
	// SQL: SELECT emp_no FROM employees WHERE (first_name ILIKE $1 OR last_name ILIKE $2)
	// Args: [Geo% Geo%]
}
