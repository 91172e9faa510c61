package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectBuilder(t *testing.T) {
	t.Run("Select", func(t *testing.T) {
		query, args := NewSelectBuilder().Select("id", "name").From("users").Where("id = ?", 1).Build()
		assert.Equal(t, "SELECT id, name FROM users WHERE id = $1", query)
		assert.Equal(t, []interface{}{1}, args)
	})

	t.Run("No conditions", func(t *testing.T) {
		query, args := NewSelectBuilder().Select("dept_no").From("departments").OrderBy("dept_no").Build()
		assert.Equal(t, "SELECT dept_no FROM departments ORDER BY dept_no", query)
		assert.Empty(t, args)
	})

	t.Run("Joins, grouping and paging", func(t *testing.T) {
		query, args := NewSelectBuilder().
			Select("d.dept_no", "COUNT(*)", "SUM(s.salary)").
			From("departments d").
			Join("INNER", "dept_emp de", "de.dept_no = d.dept_no").
			Join("LEFT", "salaries s", "s.emp_no = de.emp_no").
			Where("de.to_date = ?", "9999-01-01").
			Where("s.to_date = ?", "9999-01-01").
			GroupBy("d.dept_no").
			OrderBy("d.dept_no ASC").
			Limit(10).
			Offset(20).
			Build()
		assert.Equal(t, "SELECT d.dept_no, COUNT(*), SUM(s.salary) FROM departments d"+
			" INNER JOIN dept_emp de ON de.dept_no = d.dept_no"+
			" LEFT JOIN salaries s ON s.emp_no = de.emp_no"+
			" WHERE de.to_date = $1 AND s.to_date = $2"+
			" GROUP BY d.dept_no ORDER BY d.dept_no ASC LIMIT 10 OFFSET 20", query)
		assert.Equal(t, []interface{}{"9999-01-01", "9999-01-01"}, args)
	})

	t.Run("WhereAny", func(t *testing.T) {
		query, args := NewSelectBuilder().
			Select("emp_no").
			From("employees").
			Where("gender = ?", "F").
			WhereAny(func(g *SelectBuilder) {
				g.Where("first_name ILIKE ?", "%ada%").Where("last_name ILIKE ?", "%ada%")
			}).
			Where("hire_date > ?", "2000-01-01").
			Build()
		assert.Equal(t, "SELECT emp_no FROM employees WHERE gender = $1 AND (first_name ILIKE $2 OR last_name ILIKE $3) AND hire_date > $4", query)
		assert.Equal(t, []interface{}{"F", "%ada%", "%ada%", "2000-01-01"}, args)
	})

	t.Run("Empty WhereAny", func(t *testing.T) {
		query, _ := NewSelectBuilder().Select("1").From("t").WhereAny(func(*SelectBuilder) {}).Build()
		assert.Equal(t, "SELECT 1 FROM t", query)
	})
}

func TestSelectBuilder_BuildSafe(t *testing.T) {
	_, args, err := NewSelectBuilder().Select("1").From("t").Where("a = ? AND b = ?", 1, 2).BuildSafe()
	require.NoError(t, err)
	assert.Len(t, args, 2)

	_, _, err = NewSelectBuilder().Select("1").From("t").Where("a = ?", 1, 2).BuildSafe()
	assert.Error(t, err)
}

func TestSelectBuilder_JoinArgs(t *testing.T) {
	query, args, err := NewSelectBuilder().
		Select("d.dept_no").
		From("departments d").
		Join("LEFT", "dept_emp de", "de.dept_no = d.dept_no AND de.to_date = ?", "9999-01-01").
		Where("d.dept_name <> ?", "").
		BuildSafe()
	require.NoError(t, err)
	assert.Equal(t, "SELECT d.dept_no FROM departments d LEFT JOIN dept_emp de ON de.dept_no = d.dept_no AND de.to_date = $1 WHERE d.dept_name <> $2", query)
	assert.Equal(t, []interface{}{"9999-01-01", ""}, args)
}
