package querybuilder

import (
	"fmt"
	"strings"
)

// QueryBuilder assembles simple SELECT and INSERT statements with
// `?` placeholders. Callers rebind for their driver.
type QueryBuilder interface {
	Select(cols ...string) QueryBuilder
	From(table string) QueryBuilder
	Where(clause string, args ...interface{}) QueryBuilder
	And(clause string, args ...interface{}) QueryBuilder
	OrderBy(col string, asc bool) QueryBuilder

	Insert(cols ...string) QueryBuilder
	Into(table string) QueryBuilder
	Values(values ...interface{}) QueryBuilder
	OnConflict(cols ...string) QueryBuilder
	DoNothing() QueryBuilder
	DoUpdateExclude(cols ...string) QueryBuilder

	Build() (string, []interface{})
}

type condition struct {
	clause string
	args   []interface{}
}

type queryBuilder struct {
	schema     string
	table      string
	cols       []string
	conditions []condition
	orderBy    []string

	isInsert    bool
	rows        [][]interface{}
	onConflict  []string
	doNothing   bool
	excludeCols []string
}

// NewQueryBuilder creates a builder for tables in the given schema
func NewQueryBuilder(schema string) QueryBuilder {
	return &queryBuilder{schema: schema}
}

func (q *queryBuilder) Select(cols ...string) QueryBuilder {
	q.cols = append(q.cols, cols...)
	return q
}

func (q *queryBuilder) From(table string) QueryBuilder {
	q.table = table
	return q
}

func (q *queryBuilder) Where(clause string, args ...interface{}) QueryBuilder {
	q.conditions = append(q.conditions, condition{clause: clause, args: args})
	return q
}

func (q *queryBuilder) And(clause string, args ...interface{}) QueryBuilder {
	return q.Where(clause, args...)
}

func (q *queryBuilder) OrderBy(col string, asc bool) QueryBuilder {
	dir := "ASC"
	if !asc {
		dir = "DESC"
	}
	q.orderBy = append(q.orderBy, fmt.Sprintf("%s %s", col, dir))
	return q
}

func (q *queryBuilder) Insert(cols ...string) QueryBuilder {
	q.isInsert = true
	q.cols = cols
	return q
}

func (q *queryBuilder) Into(table string) QueryBuilder {
	q.table = table
	return q
}

// Values appends one row; call repeatedly for a multi-row insert
func (q *queryBuilder) Values(values ...interface{}) QueryBuilder {
	q.rows = append(q.rows, values)
	return q
}

func (q *queryBuilder) OnConflict(cols ...string) QueryBuilder {
	q.onConflict = cols
	return q
}

func (q *queryBuilder) DoNothing() QueryBuilder {
	q.doNothing = true
	return q
}

// DoUpdateExclude upserts every insert column except the given ones
// (typically the conflict key) from the EXCLUDED row
func (q *queryBuilder) DoUpdateExclude(cols ...string) QueryBuilder {
	q.excludeCols = cols
	return q
}

func (q *queryBuilder) Build() (string, []interface{}) {
	if q.isInsert {
		return q.buildInsert()
	}
	return q.buildSelect()
}

func (q *queryBuilder) qualifiedTable() string {
	if q.schema == "" {
		return q.table
	}
	return fmt.Sprintf("%s.%s", q.schema, q.table)
}

func (q *queryBuilder) buildSelect() (string, []interface{}) {
	var sb strings.Builder
	var args []interface{}

	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(q.cols, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(q.qualifiedTable())

	for i, cond := range q.conditions {
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		sb.WriteString(cond.clause)
		args = append(args, cond.args...)
	}
	if len(q.orderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(q.orderBy, ", "))
	}
	return sb.String(), args
}

func (q *queryBuilder) buildInsert() (string, []interface{}) {
	var sb strings.Builder
	var args []interface{}

	sb.WriteString("INSERT INTO ")
	sb.WriteString(q.qualifiedTable())
	sb.WriteString(" (")
	sb.WriteString(strings.Join(q.cols, ", "))
	sb.WriteString(") VALUES ")

	placeholders := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(q.cols)), ", ") + ")"
	rowParts := make([]string, 0, len(q.rows))
	for _, row := range q.rows {
		rowParts = append(rowParts, placeholders)
		args = append(args, row...)
	}
	sb.WriteString(strings.Join(rowParts, ", "))

	if len(q.onConflict) > 0 {
		sb.WriteString(" ON CONFLICT (")
		sb.WriteString(strings.Join(q.onConflict, ", "))
		sb.WriteString(")")
		switch {
		case q.doNothing:
			sb.WriteString(" DO NOTHING")
		case len(q.excludeCols) > 0 || len(q.onConflict) > 0:
			excluded := make(map[string]bool, len(q.excludeCols))
			for _, col := range q.excludeCols {
				excluded[col] = true
			}
			var sets []string
			for _, col := range q.cols {
				if excluded[col] {
					continue
				}
				sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
			}
			sb.WriteString(" DO UPDATE SET ")
			sb.WriteString(strings.Join(sets, ", "))
		}
	}
	return sb.String(), args
}
