package db

import (
	"fmt"
	"reflect"
	"strings"
)

// SQL statement builder used by the repositories.
//
// SECURITY WARNING:
// Table and column names are written into the statement verbatim. They must come
// from trusted schema definitions, never from user input. Values are always bound
// through "?" placeholders, which GORM rewrites for the active dialect.

// Operator represents SQL comparison operators
type Operator string

const (
	Equal       Operator = "="
	NotEqual    Operator = "!="
	GreaterThan Operator = ">"
	LessThan    Operator = "<"
	Like        Operator = "LIKE"
	In          Operator = "IN"
	IsNull      Operator = "IS NULL"
	IsNotNull   Operator = "IS NOT NULL"
)

// ColumnType is a dialect neutral column type
type ColumnType string

const (
	ColumnInteger ColumnType = "integer"
	ColumnText    ColumnType = "text"
)

// ColumnDef describes a non-key column
type ColumnDef struct {
	Name string
	Type ColumnType
}

// ForeignKeyDef describes a FOREIGN KEY ... REFERENCES constraint
type ForeignKeyDef struct {
	Column    string
	RefTable  string
	RefColumn string
}

// Condition represents a WHERE clause condition
type Condition struct {
	Field    string
	Operator Operator
	Value    interface{}
}

// Builder helps build SQL statements for one table
type Builder struct {
	table      string
	driver     Driver
	selectCols []string
	where      []Condition
	orderBy    []string
	limit      int
}

// NewBuilder creates a new statement builder for table
func NewBuilder(table string, driver Driver) *Builder {
	return &Builder{
		table:      table,
		driver:     driver,
		selectCols: []string{"*"},
	}
}

// Select sets the columns to select
func (b *Builder) Select(cols ...string) *Builder {
	b.selectCols = cols
	return b
}

// Where adds an AND-ed WHERE condition
func (b *Builder) Where(field string, operator Operator, value interface{}) *Builder {
	b.where = append(b.where, Condition{
		Field:    field,
		Operator: operator,
		Value:    value,
	})
	return b
}

// OrderBy adds an ORDER BY clause
func (b *Builder) OrderBy(field string, desc bool) *Builder {
	order := field
	if desc {
		order += " DESC"
	} else {
		order += " ASC"
	}
	b.orderBy = append(b.orderBy, order)
	return b
}

// Limit sets the LIMIT clause
// Negative values are normalized to 0
func (b *Builder) Limit(limit int) *Builder {
	if limit < 0 {
		limit = 0
	}
	b.limit = limit
	return b
}

// BuildSelect builds a SELECT query
func (b *Builder) BuildSelect() (string, []interface{}) {
	var query strings.Builder
	var args []interface{}

	query.WriteString("SELECT ")
	query.WriteString(strings.Join(b.selectCols, ", "))
	query.WriteString(" FROM ")
	query.WriteString(b.table)

	if len(b.where) > 0 {
		conditions := make([]string, 0, len(b.where))
		for _, cond := range b.where {
			condSQL, condArgs := b.buildCondition(cond)
			conditions = append(conditions, condSQL)
			args = append(args, condArgs...)
		}
		query.WriteString(" WHERE ")
		query.WriteString(strings.Join(conditions, " AND "))
	}

	if len(b.orderBy) > 0 {
		query.WriteString(" ORDER BY ")
		query.WriteString(strings.Join(b.orderBy, ", "))
	}

	if b.limit > 0 {
		query.WriteString(fmt.Sprintf(" LIMIT %d", b.limit))
	}

	return query.String(), args
}

// buildCondition builds SQL for a single condition
func (b *Builder) buildCondition(cond Condition) (string, []interface{}) {
	switch cond.Operator {
	case IsNull, IsNotNull:
		return fmt.Sprintf("%s %s", cond.Field, cond.Operator), nil
	case In:
		return b.buildInCondition(cond)
	default:
		return fmt.Sprintf("%s %s ?", cond.Field, cond.Operator), []interface{}{cond.Value}
	}
}

// buildInCondition expands one placeholder per element
func (b *Builder) buildInCondition(cond Condition) (string, []interface{}) {
	if cond.Value == nil {
		return "1 = 0", nil
	}

	v := reflect.ValueOf(cond.Value)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return fmt.Sprintf("%s IN (?)", cond.Field), []interface{}{cond.Value}
	}
	if v.Len() == 0 {
		return "1 = 0", nil
	}

	placeholders := make([]string, v.Len())
	args := make([]interface{}, v.Len())
	for i := 0; i < v.Len(); i++ {
		placeholders[i] = "?"
		args[i] = v.Index(i).Interface()
	}
	return fmt.Sprintf("%s IN (%s)", cond.Field, strings.Join(placeholders, ", ")), args
}

// BuildUpdate builds an UPDATE query setting every column, keyed on whereField
func (b *Builder) BuildUpdate(columns []string, whereField string) string {
	var query strings.Builder
	query.WriteString("UPDATE ")
	query.WriteString(b.table)
	query.WriteString(" SET ")

	setClauses := make([]string, len(columns))
	for i, col := range columns {
		setClauses[i] = col + " = ?"
	}
	query.WriteString(strings.Join(setClauses, ", "))

	if whereField != "" {
		query.WriteString(" WHERE ")
		query.WriteString(whereField)
		query.WriteString(" = ?")
	}
	return query.String()
}

// BuildDelete builds a DELETE query
func (b *Builder) BuildDelete(whereField string) string {
	query := fmt.Sprintf("DELETE FROM %s", b.table)
	if whereField != "" {
		query += fmt.Sprintf(" WHERE %s = ?", whereField)
	}
	return query
}

// BuildCreateTable builds an idempotent CREATE TABLE statement with an
// auto-assigned integer primary key named pk.
func (b *Builder) BuildCreateTable(pk string, columns []ColumnDef, foreignKeys []ForeignKeyDef) string {
	defs := make([]string, 0, 1+len(columns)+len(foreignKeys))
	defs = append(defs, pk+" "+b.primaryKeyType())
	for _, col := range columns {
		defs = append(defs, col.Name+" "+b.columnType(col.Type))
	}
	for _, fk := range foreignKeys {
		defs = append(defs, fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)", fk.Column, fk.RefTable, fk.RefColumn))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", b.table, strings.Join(defs, ", "))
}

// BuildDropTable builds an idempotent DROP TABLE statement
func (b *Builder) BuildDropTable() string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", b.table)
}

func (b *Builder) primaryKeyType() string {
	switch b.driver {
	case DriverMySQL:
		return "BIGINT AUTO_INCREMENT PRIMARY KEY"
	case DriverPostgres:
		return "BIGSERIAL PRIMARY KEY"
	default:
		// INTEGER PRIMARY KEY aliases sqlite's rowid
		return "INTEGER PRIMARY KEY"
	}
}

func (b *Builder) columnType(t ColumnType) string {
	switch t {
	case ColumnInteger:
		if b.driver == DriverSQLite {
			return "INTEGER"
		}
		return "BIGINT"
	default:
		return "TEXT"
	}
}
