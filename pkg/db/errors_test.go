package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsForeignKeyViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
		{name: "gorm translated", err: fmt.Errorf("insert: %w", gorm.ErrForeignKeyViolated), want: true},
		{
			name: "sqlite foreign key",
			err:  sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintForeignKey},
			want: true,
		},
		{
			name: "sqlite unique",
			err:  sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique},
			want: false,
		},
		{name: "mysql missing parent", err: &mysql.MySQLError{Number: 1452}, want: true},
		{name: "mysql referenced parent", err: fmt.Errorf("delete: %w", &mysql.MySQLError{Number: 1451}), want: true},
		{name: "mysql duplicate", err: &mysql.MySQLError{Number: 1062}, want: false},
		{name: "postgres foreign key", err: &pgconn.PgError{Code: "23503"}, want: true},
		{name: "postgres unique", err: &pgconn.PgError{Code: "23505"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsForeignKeyViolation(tt.err))
		})
	}
}
