package repository

import (
	"context"

	"github.com/ammar0144/orgmap/pkg/db"
)

// Repository defines the mapping operations available for an entity pointer type P
type Repository[P Entity] interface {
	// Schema lifecycle
	CreateTable(ctx context.Context) error
	DropTable(ctx context.Context) error
	TableExists(ctx context.Context) bool

	// Instance lifecycle
	Save(ctx context.Context, entity P) error
	Update(ctx context.Context, entity P) error
	Delete(ctx context.Context, entity P) error

	// Retrieval (every row passes through InstanceFromDB)
	InstanceFromDB(row Scanner) (P, error)
	FindByID(ctx context.Context, id int64) (P, error)
	GetAll(ctx context.Context) ([]P, error)
	FindWhere(ctx context.Context, field string, operator db.Operator, value interface{}) ([]P, error)
}
