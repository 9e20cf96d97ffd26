// Package orgmap maps employees and departments onto a relational database,
// guaranteeing one live object per row within a session.
package orgmap

import (
	"context"
	"errors"
	"fmt"

	"github.com/ammar0144/orgmap/pkg/company"
	"github.com/ammar0144/orgmap/pkg/db"
	"github.com/ammar0144/orgmap/pkg/redis"
	"github.com/ammar0144/orgmap/pkg/repository"
	"github.com/rs/zerolog"
)

// DBConfig represents database configuration
type DBConfig = db.Config

// RedisConfig represents Redis row cache configuration
type RedisConfig = redis.Config

// Entity interface that all mapped types implement
type Entity = repository.Entity

// Department and Employee are the mapped entities
type (
	Department = company.Department
	Employee   = company.Employee
)

// Store bundles a database connection, an optional row cache and one session
// with its repositories.
type Store struct {
	DB          *db.Manager
	Cache       *redis.Manager
	Session     *repository.Session
	Departments *company.Departments
	Employees   *company.Employees
}

// Open connects to the database and, when cacheConfig is non-nil and enabled,
// to Redis. Both share log.
func Open(dbConfig *DBConfig, cacheConfig *RedisConfig, log zerolog.Logger) (*Store, error) {
	manager, err := db.NewManager(dbConfig, db.WithLogger(log))
	if err != nil {
		return nil, err
	}

	var cache *redis.Manager
	if cacheConfig != nil && cacheConfig.Enabled {
		cache, err = redis.NewManager(cacheConfig)
		if err != nil {
			_ = manager.Close()
			return nil, err
		}
	}

	session := repository.NewSession(manager, repository.WithCache(cache), repository.WithLogger(log))
	departments := company.NewDepartments(session)

	return &Store{
		DB:          manager,
		Cache:       cache,
		Session:     session,
		Departments: departments,
		Employees:   company.NewEmployees(session, departments),
	}, nil
}

// OpenMemory opens a throwaway in-memory sqlite store without a cache
func OpenMemory() (*Store, error) {
	return Open(db.DefaultSQLiteConfig(db.MemoryPath), nil, zerolog.Nop())
}

// CreateTables creates departments then employees
func (s *Store) CreateTables(ctx context.Context) error {
	if err := s.Departments.CreateTable(ctx); err != nil {
		return err
	}
	return s.Employees.CreateTable(ctx)
}

// DropTables drops employees then departments
func (s *Store) DropTables(ctx context.Context) error {
	if err := s.Employees.DropTable(ctx); err != nil {
		return err
	}
	return s.Departments.DropTable(ctx)
}

// Close releases the cache and database connections
func (s *Store) Close() error {
	var errs []error
	if s.Cache != nil {
		if err := s.Cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cache: %w", err))
		}
	}
	if err := s.DB.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}
	return errors.Join(errs...)
}
