package domain

import "time"

// Employee represents the employees table
type Employee struct {
	EmpNo     int       `json:"emp_no" db:"emp_no"`
	BirthDate time.Time `json:"birth_date" db:"birth_date"`
	FirstName string    `json:"first_name" db:"first_name"`
	LastName  string    `json:"last_name" db:"last_name"`
	Gender    string    `json:"gender" db:"gender"`
	HireDate  time.Time `json:"hire_date" db:"hire_date"`
}

// Department represents the departments table
type Department struct {
	DeptNo   string `json:"dept_no" db:"dept_no"`
	DeptName string `json:"dept_name" db:"dept_name"`
}

// EmployeeRow is one exported employee with the current title and salary
// joined in.
type EmployeeRow struct {
	Employee
	DeptNo   string `json:"dept_no" db:"dept_no"`
	DeptName string `json:"dept_name" db:"dept_name"`
	Title    string `json:"title" db:"title"`
	Salary   int    `json:"salary" db:"salary"`
}

// DepartmentSummary aggregates the current salaries of one department.
type DepartmentSummary struct {
	Department
	Headcount int     `json:"headcount" db:"headcount"`
	Total     int64   `json:"total" db:"total"`
	Average   float64 `json:"average" db:"average"`
}

// ProductInfo represents the product info document in GCP Datastore ONLY
type ProductInfo struct {
	ID        int64  `datastore:"ID" json:"id"`
	Brand     string `datastore:"Brand" json:"brand"`
	Country   string `datastore:"Country" json:"country"`
	Place     string `datastore:"Place" json:"place"`
	Year      int    `datastore:"Year" json:"year"`
	SubNumber int    `datastore:"SubNumber" json:"sub_number"`
}

// EmployeeDocument is the employee document indexed in Elasticsearch.
type EmployeeDocument struct {
	EmpNo     int       `json:"emp_no"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Gender    string    `json:"gender"`
	HireDate  time.Time `json:"hire_date"`
	DeptName  string    `json:"dept_name"`
	Title     string    `json:"title"`
	Salary    int       `json:"salary"`
}
