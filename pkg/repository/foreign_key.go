package repository

import (
	"database/sql"
	"database/sql/driver"
)

// ForeignKey is a nullable reference to another table's id.
// 0 is stored as NULL and NULL reads back as 0.
type ForeignKey int64

// Value implements driver.Valuer
func (k ForeignKey) Value() (driver.Value, error) {
	if k == 0 {
		return nil, nil
	}
	return int64(k), nil
}

// Scan implements sql.Scanner
func (k *ForeignKey) Scan(src interface{}) error {
	var n sql.NullInt64
	if err := n.Scan(src); err != nil {
		return err
	}
	*k = ForeignKey(n.Int64)
	return nil
}

// IsSet reports whether the key references a row
func (k ForeignKey) IsSet() bool {
	return k != 0
}
