package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strconv"

	"github.com/ammar0144/orgmap/pkg/db"
	"github.com/ammar0144/orgmap/pkg/redis"

	lru "github.com/hashicorp/golang-lru/v2"
	"gorm.io/gorm"
)

const statementCacheSize = 16

// GenericRepository maps rows of one table to instances of T.
// Every row it reads goes through InstanceFromDB, so a session never hands out
// two objects for the same id.
type GenericRepository[T any, P Record[T]] struct {
	session    *Session
	schema     Schema
	statements *lru.Cache[string, string]
	keys       redis.Keyspace
}

// NewGenericRepository creates a repository for T inside session.
// An empty schema table name falls back to the entity's TableName().
func NewGenericRepository[T any, P Record[T]](session *Session, schema Schema) *GenericRepository[T, P] {
	schema = schema.withDefaults()
	if schema.Table == "" {
		schema.Table = P(new(T)).TableName()
	}
	if schema.Table == "" {
		panic(fmt.Sprintf("entity type %T has no table name", new(T)))
	}
	if n := len(P(new(T)).Fields()); n != len(schema.Columns) {
		panic(fmt.Sprintf("entity type %T exposes %d fields for %d columns", new(T), n, len(schema.Columns)))
	}

	statements, err := lru.New[string, string](statementCacheSize)
	if err != nil {
		panic(err)
	}

	r := &GenericRepository[T, P]{
		session:    session,
		schema:     schema,
		statements: statements,
		keys:       redis.Keyspace{Table: schema.Table},
	}
	if session.cache != nil {
		r.keys.Database = session.db.CurrentDatabase()
	}
	return r
}

// Schema returns the table description
func (r *GenericRepository[T, P]) Schema() Schema {
	return r.schema
}

// Session returns the owning session
func (r *GenericRepository[T, P]) Session() *Session {
	return r.session
}

// ============================================================================
// SCHEMA LIFECYCLE
// ============================================================================

// CreateTable creates the table and its foreign keys if it does not exist
func (r *GenericRepository[T, P]) CreateTable(ctx context.Context) error {
	ctx, cancel := r.session.db.WithQueryTimeout(ctx)
	defer cancel()

	query := r.statement("create_table", func(b *db.Builder) string {
		return b.BuildCreateTable(r.schema.PrimaryKey, r.schema.Columns, r.schema.ForeignKeys)
	})
	if err := r.conn(ctx).Exec(query).Error; err != nil {
		return fmt.Errorf("create table %s: %w", r.schema.Table, err)
	}

	r.session.log.Debug().Str("table", r.schema.Table).Msg("table created")
	return nil
}

// DropTable drops the table if it exists and forgets its tracked instances
func (r *GenericRepository[T, P]) DropTable(ctx context.Context) error {
	ctx, cancel := r.session.db.WithQueryTimeout(ctx)
	defer cancel()

	query := r.statement("drop_table", func(b *db.Builder) string {
		return b.BuildDropTable()
	})
	if err := r.conn(ctx).Exec(query).Error; err != nil {
		return fmt.Errorf("drop table %s: %w", r.schema.Table, err)
	}

	r.session.clearTable(r.schema.Table)
	r.invalidateCache(ctx)
	r.session.log.Debug().Str("table", r.schema.Table).Msg("table dropped")
	return nil
}

// TableExists reports whether the table is present in the database
func (r *GenericRepository[T, P]) TableExists(ctx context.Context) bool {
	return r.conn(ctx).Migrator().HasTable(r.schema.Table)
}

// ============================================================================
// WRITE OPERATIONS
// ============================================================================

// Save inserts a new row from the instance's attributes, assigns the generated
// id and starts tracking the instance.
func (r *GenericRepository[T, P]) Save(ctx context.Context, entity P) error {
	if entity == nil {
		return ErrNilRecord
	}
	if id := entity.GetPrimaryKeyValue(); id != 0 {
		return fmt.Errorf("save %s id %d: %w", r.schema.Table, id, ErrAlreadyPersisted)
	}

	ctx, cancel := r.session.db.WithQueryTimeout(ctx)
	defer cancel()

	if err := r.conn(ctx).Create(entity).Error; err != nil {
		return fmt.Errorf("insert into %s: %w", r.schema.Table, err)
	}

	r.session.register(r.schema.Table, entity)
	r.invalidateCache(ctx)
	r.session.log.Debug().Str("table", r.schema.Table).Int64("id", entity.GetPrimaryKeyValue()).Msg("row inserted")
	return nil
}

// Update writes every attribute of the instance to its row
func (r *GenericRepository[T, P]) Update(ctx context.Context, entity P) error {
	if entity == nil {
		return ErrNilRecord
	}
	id := entity.GetPrimaryKeyValue()
	if id == 0 {
		return fmt.Errorf("update %s: %w", r.schema.Table, ErrNotPersisted)
	}

	ctx, cancel := r.session.db.WithQueryTimeout(ctx)
	defer cancel()

	query := r.statement("update", func(b *db.Builder) string {
		return b.BuildUpdate(r.schema.ColumnNames(), r.schema.PrimaryKey)
	})
	args := append(fieldValues(entity), id)

	result := r.conn(ctx).Exec(query, args...)
	if result.Error != nil {
		return fmt.Errorf("update %s id %d: %w", r.schema.Table, id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("update %s id %d: %w", r.schema.Table, id, ErrNoRows)
	}

	r.invalidateCache(ctx)
	r.session.log.Debug().Str("table", r.schema.Table).Int64("id", id).Msg("row updated")
	return nil
}

// Delete removes the instance's row, stops tracking it and clears its id.
// The remaining attributes are left as they were.
func (r *GenericRepository[T, P]) Delete(ctx context.Context, entity P) error {
	if entity == nil {
		return ErrNilRecord
	}
	id := entity.GetPrimaryKeyValue()
	if id == 0 {
		return fmt.Errorf("delete %s: %w", r.schema.Table, ErrNotPersisted)
	}

	ctx, cancel := r.session.db.WithQueryTimeout(ctx)
	defer cancel()

	query := r.statement("delete", func(b *db.Builder) string {
		return b.BuildDelete(r.schema.PrimaryKey)
	})

	result := r.conn(ctx).Exec(query, id)
	if result.Error != nil {
		return fmt.Errorf("delete %s id %d: %w", r.schema.Table, id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("delete %s id %d: %w", r.schema.Table, id, ErrNoRows)
	}

	r.session.evict(r.schema.Table, id)
	entity.SetPrimaryKeyValue(0)
	r.invalidateCache(ctx)
	r.session.log.Debug().Str("table", r.schema.Table).Int64("id", id).Msg("row deleted")
	return nil
}

// ============================================================================
// READ OPERATIONS
// ============================================================================

// InstanceFromDB turns one raw row into the session's instance for that id.
// A tracked instance is refreshed in place; otherwise a new one is tracked.
func (r *GenericRepository[T, P]) InstanceFromDB(row Scanner) (P, error) {
	scratch := P(new(T))

	var id int64
	dest := append([]interface{}{&id}, scratch.Fields()...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	scratch.SetPrimaryKeyValue(id)

	return r.adopt(scratch), nil
}

// FindByID returns the instance for id, or nil when no row has that id
func (r *GenericRepository[T, P]) FindByID(ctx context.Context, id int64) (P, error) {
	ctx, cancel := r.session.db.WithQueryTimeout(ctx)
	defer cancel()

	cacheKey := r.keys.Key("find_by_id", strconv.FormatInt(id, 10))

	if r.session.cache != nil {
		scratch := P(new(T))
		if err := r.session.cache.Load(ctx, cacheKey, scratch); err == nil {
			return r.adopt(scratch), nil
		} else if !redis.IsMiss(err) {
			r.session.log.Warn().Err(err).Str("key", cacheKey).Msg("row cache read failed")
		}
	}

	query := r.statement("find_by_id", func(b *db.Builder) string {
		q, _ := b.Select(r.schema.SelectColumns()...).Where(r.schema.PrimaryKey, db.Equal, nil).BuildSelect()
		return q
	})

	entity, err := r.InstanceFromDB(r.conn(ctx).Raw(query, id).Row())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find %s id %d: %w", r.schema.Table, id, err)
	}

	r.storeCache(ctx, cacheKey, entity)
	return entity, nil
}

// GetAll returns one instance per row, ordered by primary key
func (r *GenericRepository[T, P]) GetAll(ctx context.Context) ([]P, error) {
	query := r.statement("get_all", func(b *db.Builder) string {
		q, _ := b.Select(r.schema.SelectColumns()...).OrderBy(r.schema.PrimaryKey, false).BuildSelect()
		return q
	})
	return r.list(ctx, r.keys.Key("get_all"), query)
}

// FindWhere returns the instances whose field matches, ordered by primary key.
// field must be a trusted column name.
func (r *GenericRepository[T, P]) FindWhere(ctx context.Context, field string, operator db.Operator, value interface{}) ([]P, error) {
	query, args := r.newBuilder().
		Select(r.schema.SelectColumns()...).
		Where(field, operator, value).
		OrderBy(r.schema.PrimaryKey, false).
		BuildSelect()
	return r.list(ctx, r.keys.QueryKey("find_where", query, args), query, args...)
}

func (r *GenericRepository[T, P]) list(ctx context.Context, cacheKey, query string, args ...interface{}) ([]P, error) {
	ctx, cancel := r.session.db.WithQueryTimeout(ctx)
	defer cancel()

	if r.session.cache != nil {
		var cached []T
		if err := r.session.cache.Load(ctx, cacheKey, &cached); err == nil {
			entities := make([]P, 0, len(cached))
			for i := range cached {
				entities = append(entities, r.adopt(P(&cached[i])))
			}
			return entities, nil
		} else if !redis.IsMiss(err) {
			r.session.log.Warn().Err(err).Str("key", cacheKey).Msg("row cache read failed")
		}
	}

	rows, err := r.conn(ctx).Raw(query, args...).Rows()
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", r.schema.Table, err)
	}
	defer rows.Close()

	entities := make([]P, 0)
	for rows.Next() {
		entity, err := r.InstanceFromDB(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", r.schema.Table, err)
		}
		entities = append(entities, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", r.schema.Table, err)
	}

	r.storeCache(ctx, cacheKey, entities)
	return entities, nil
}

// ============================================================================
// HELPER METHODS
// ============================================================================

// adopt returns the tracked instance for scratch's id, refreshed from scratch,
// or starts tracking scratch itself.
func (r *GenericRepository[T, P]) adopt(scratch P) P {
	id := scratch.GetPrimaryKeyValue()
	if existing, ok := r.session.Lookup(r.schema.Table, id); ok {
		if live, ok := existing.(P); ok {
			*live = *scratch
			return live
		}
	}
	r.session.register(r.schema.Table, scratch)
	return scratch
}

func (r *GenericRepository[T, P]) conn(ctx context.Context) *gorm.DB {
	return r.session.db.DB().WithContext(ctx)
}

func (r *GenericRepository[T, P]) newBuilder() *db.Builder {
	return db.NewBuilder(r.schema.Table, r.session.db.Driver())
}

// statement returns a fixed statement, building it on first use
func (r *GenericRepository[T, P]) statement(name string, build func(b *db.Builder) string) string {
	if query, ok := r.statements.Get(name); ok {
		return query
	}
	query := build(r.newBuilder())
	r.statements.Add(name, query)
	return query
}

// invalidateCache drops every cached read of this table (best effort)
func (r *GenericRepository[T, P]) invalidateCache(ctx context.Context) {
	if r.session.cache == nil {
		return
	}
	pattern := r.keys.Pattern()
	if _, err := r.session.cache.Purge(ctx, pattern); err != nil {
		r.session.log.Warn().Err(err).Str("pattern", pattern).Msg("row cache invalidation failed")
	}
}

// storeCache writes value under key (best effort)
func (r *GenericRepository[T, P]) storeCache(ctx context.Context, key string, value interface{}) {
	if r.session.cache == nil {
		return
	}
	if err := r.session.cache.Store(ctx, key, value); err != nil {
		r.session.log.Warn().Err(err).Str("key", key).Msg("row cache write failed")
	}
}

// fieldValues dereferences the entity's field pointers into bind values
func fieldValues(entity Entity) []interface{} {
	fields := entity.Fields()
	values := make([]interface{}, len(fields))
	for i, f := range fields {
		values[i] = reflect.ValueOf(f).Elem().Interface()
	}
	return values
}
