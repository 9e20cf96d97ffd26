package repository

import (
	"strings"
	"unicode"

	"github.com/ammar0144/orgmap/pkg/db"
	"github.com/gertd/go-pluralize"
)

// Entity is the contract every mapped type fulfils through its pointer.
// A primary key of 0 means the instance has no row yet.
type Entity interface {
	// TableName returns the database table name for this entity
	TableName() string

	// GetPrimaryKeyValue returns the store-assigned id, or 0 when unsaved
	GetPrimaryKeyValue() int64

	// SetPrimaryKeyValue assigns or clears (0) the id
	SetPrimaryKeyValue(id int64)

	// Fields returns pointers to the non-key attributes, in Schema.Columns order
	Fields() []interface{}
}

// Record ties an entity struct T to its pointer type P so repositories can
// allocate fresh instances.
type Record[T any] interface {
	*T
	Entity
}

// Scanner is a single raw row: *sql.Row and *sql.Rows both satisfy it.
// Columns are expected in table order: primary key first, then Schema.Columns.
type Scanner interface {
	Scan(dest ...interface{}) error
}

// Schema describes the table an entity maps to
type Schema struct {
	Table       string
	PrimaryKey  string // Defaults to "id"
	Columns     []db.ColumnDef
	ForeignKeys []db.ForeignKeyDef
}

// ColumnNames returns the non-key column names in order
func (s Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		names[i] = col.Name
	}
	return names
}

// SelectColumns returns the primary key followed by every column
func (s Schema) SelectColumns() []string {
	return append([]string{s.PrimaryKey}, s.ColumnNames()...)
}

func (s Schema) withDefaults() Schema {
	if s.PrimaryKey == "" {
		s.PrimaryKey = "id"
	}
	return s
}

var pluralizer = pluralize.NewClient()

// TableNameFor derives the conventional table name for a Go type name:
// snake_case, pluralized on the last word ("Department" -> "departments",
// "JobCategory" -> "job_categories").
func TableNameFor(typeName string) string {
	var words []string
	var current strings.Builder
	for i, r := range typeName {
		if unicode.IsUpper(r) && i > 0 && current.Len() > 0 {
			words = append(words, current.String())
			current.Reset()
		}
		current.WriteRune(unicode.ToLower(r))
	}
	if current.Len() > 0 {
		words = append(words, current.String())
	}
	if len(words) == 0 {
		return ""
	}

	last := len(words) - 1
	words[last] = pluralizer.Plural(words[last])
	return strings.Join(words, "_")
}
