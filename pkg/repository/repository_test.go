package repository

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/ammar0144/orgmap/pkg/db"
	"github.com/ammar0144/orgmap/pkg/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	ID   int64  `gorm:"column:id;primaryKey" msgpack:"id"`
	Name string `gorm:"column:name" msgpack:"name"`
	Size int64  `gorm:"column:size" msgpack:"size"`
}

var widgetSchema = Schema{
	Columns: []db.ColumnDef{
		{Name: "name", Type: db.ColumnText},
		{Name: "size", Type: db.ColumnInteger},
	},
}

func (widget) TableName() string { return "widgets" }

func (w *widget) GetPrimaryKeyValue() int64 { return w.ID }

func (w *widget) SetPrimaryKeyValue(id int64) { w.ID = id }

func (w *widget) Fields() []interface{} { return []interface{}{&w.Name, &w.Size} }

type brokenWidget struct {
	ID int64
}

func (brokenWidget) TableName() string { return "broken" }

func (b *brokenWidget) GetPrimaryKeyValue() int64 { return b.ID }

func (b *brokenWidget) SetPrimaryKeyValue(id int64) { b.ID = id }

func (b *brokenWidget) Fields() []interface{} { return nil }

func newWidgets(t *testing.T, opts ...SessionOption) *GenericRepository[widget, *widget] {
	t.Helper()
	return newWidgetsAt(t, db.MemoryPath, opts...)
}

func newWidgetsAt(t *testing.T, path string, opts ...SessionOption) *GenericRepository[widget, *widget] {
	t.Helper()

	manager, err := db.NewSQLiteManager(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	repo := NewGenericRepository[widget](NewSession(manager, opts...), widgetSchema)
	require.NoError(t, repo.CreateTable(context.Background()))
	return repo
}

func widgetKey(repo *GenericRepository[widget, *widget], operation string, suffix ...string) string {
	keys := redis.Keyspace{Database: repo.Session().DB().CurrentDatabase(), Table: "widgets"}
	return keys.Key(operation, suffix...)
}

func newCache(t *testing.T) (*redis.Manager, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	port, err := strconv.Atoi(server.Port())
	require.NoError(t, err)

	cfg := redis.DefaultConfig()
	cfg.Host = server.Host()
	cfg.Port = port

	cache, err := redis.NewManager(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache, server
}

func TestNewGenericRepository(t *testing.T) {
	repo := newWidgets(t)

	assert.Equal(t, "widgets", repo.Schema().Table)
	assert.Equal(t, "id", repo.Schema().PrimaryKey)
	assert.True(t, repo.TableExists(context.Background()))

	assert.Panics(t, func() {
		NewGenericRepository[brokenWidget](repo.Session(), Schema{Columns: widgetSchema.Columns})
	})
}

func TestSaveAssignsIDAndTracks(t *testing.T) {
	ctx := context.Background()
	repo := newWidgets(t)

	w := &widget{Name: "bolt", Size: 3}
	require.NoError(t, repo.Save(ctx, w))
	assert.Equal(t, int64(1), w.ID)

	tracked, ok := repo.Session().Lookup("widgets", 1)
	require.True(t, ok)
	assert.Same(t, w, tracked)

	err := repo.Save(ctx, w)
	assert.ErrorIs(t, err, ErrAlreadyPersisted)

	assert.ErrorIs(t, repo.Save(ctx, nil), ErrNilRecord)
}

func TestFindByIDReturnsTrackedInstance(t *testing.T) {
	ctx := context.Background()
	repo := newWidgets(t)

	w := &widget{Name: "bolt", Size: 3}
	require.NoError(t, repo.Save(ctx, w))

	found, err := repo.FindByID(ctx, w.ID)
	require.NoError(t, err)
	assert.Same(t, w, found)

	missing, err := repo.FindByID(ctx, 0)
	require.NoError(t, err)
	assert.Nil(t, missing)

	missing, err = repo.FindByID(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestFindByIDRefreshesInPlace(t *testing.T) {
	ctx := context.Background()
	repo := newWidgets(t)

	w := &widget{Name: "bolt", Size: 3}
	require.NoError(t, repo.Save(ctx, w))

	w.Name = "unsaved edit"

	found, err := repo.FindByID(ctx, w.ID)
	require.NoError(t, err)
	assert.Same(t, w, found)
	assert.Equal(t, "bolt", w.Name)
}

func TestInstanceFromDB(t *testing.T) {
	ctx := context.Background()
	repo := newWidgets(t)

	require.NoError(t, repo.Session().DB().DB().Exec("INSERT INTO widgets (name, size) VALUES (?, ?)", "nut", 5).Error)

	row := repo.Session().DB().DB().Raw("SELECT * FROM widgets").Row()
	first, err := repo.InstanceFromDB(row)
	require.NoError(t, err)
	assert.Equal(t, widget{ID: 1, Name: "nut", Size: 5}, *first)

	row = repo.Session().DB().DB().Raw("SELECT * FROM widgets").Row()
	second, err := repo.InstanceFromDB(row)
	require.NoError(t, err)
	assert.Same(t, first, second)

	found, err := repo.FindByID(ctx, 1)
	require.NoError(t, err)
	assert.Same(t, first, found)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	repo := newWidgets(t)

	w := &widget{Name: "bolt", Size: 3}
	require.NoError(t, repo.Save(ctx, w))

	w.Name = "hex bolt"
	w.Size = 4
	require.NoError(t, repo.Update(ctx, w))

	// Unchanged values still match the row
	require.NoError(t, repo.Update(ctx, w))

	repo.Session().Clear()
	found, err := repo.FindByID(ctx, w.ID)
	require.NoError(t, err)
	assert.NotSame(t, w, found)
	assert.Equal(t, *w, *found)

	assert.ErrorIs(t, repo.Update(ctx, &widget{Name: "transient"}), ErrNotPersisted)
	assert.ErrorIs(t, repo.Update(ctx, &widget{ID: 99, Name: "ghost"}), ErrNoRows)
	assert.ErrorIs(t, repo.Update(ctx, nil), ErrNilRecord)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	repo := newWidgets(t)

	w := &widget{Name: "bolt", Size: 3}
	require.NoError(t, repo.Save(ctx, w))
	id := w.ID

	require.NoError(t, repo.Delete(ctx, w))
	assert.Equal(t, widget{ID: 0, Name: "bolt", Size: 3}, *w)
	assert.Equal(t, 0, repo.Session().Len("widgets"))

	found, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, found)

	assert.ErrorIs(t, repo.Delete(ctx, w), ErrNotPersisted)

	ghost := &widget{ID: id, Name: "ghost"}
	assert.ErrorIs(t, repo.Delete(ctx, ghost), ErrNoRows)
	assert.Equal(t, id, ghost.ID)
}

func TestSaveAfterDeleteGetsNewID(t *testing.T) {
	ctx := context.Background()
	repo := newWidgets(t)

	w := &widget{Name: "bolt", Size: 3}
	require.NoError(t, repo.Save(ctx, w))
	require.NoError(t, repo.Save(ctx, &widget{Name: "nut"}))
	require.NoError(t, repo.Delete(ctx, w))

	require.NoError(t, repo.Save(ctx, w))
	assert.Equal(t, int64(3), w.ID)
}

func TestGetAllOrderedByID(t *testing.T) {
	ctx := context.Background()
	repo := newWidgets(t)

	empty, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	saved := []*widget{{Name: "a", Size: 1}, {Name: "b", Size: 2}, {Name: "c", Size: 3}}
	for _, w := range saved {
		require.NoError(t, repo.Save(ctx, w))
	}

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i := range saved {
		assert.Same(t, saved[i], all[i])
	}
}

func TestFindWhere(t *testing.T) {
	ctx := context.Background()
	repo := newWidgets(t)

	for _, w := range []*widget{{Name: "a", Size: 1}, {Name: "b", Size: 2}, {Name: "c", Size: 2}} {
		require.NoError(t, repo.Save(ctx, w))
	}

	matches, err := repo.FindWhere(ctx, "size", db.Equal, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "b", matches[0].Name)
	assert.Equal(t, "c", matches[1].Name)

	matches, err = repo.FindWhere(ctx, "name", db.In, []string{"a", "c"})
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestDropTableForgetsInstances(t *testing.T) {
	ctx := context.Background()
	repo := newWidgets(t)

	require.NoError(t, repo.Save(ctx, &widget{Name: "bolt"}))
	require.NoError(t, repo.DropTable(ctx))

	assert.Equal(t, 0, repo.Session().Len("widgets"))
	assert.False(t, repo.TableExists(ctx))

	// Dropping a missing table is not an error
	require.NoError(t, repo.DropTable(ctx))
}

func TestCachedFindByID(t *testing.T) {
	ctx := context.Background()
	cache, server := newCache(t)
	repo := newWidgets(t, WithCache(cache))

	w := &widget{Name: "bolt", Size: 3}
	require.NoError(t, repo.Save(ctx, w))

	found, err := repo.FindByID(ctx, w.ID)
	require.NoError(t, err)
	assert.Same(t, w, found)
	assert.True(t, server.Exists(widgetKey(repo, "find_by_id", "1")))

	// Served from Redis and still mapped to the live instance
	require.NoError(t, repo.Session().DB().DB().Exec("UPDATE widgets SET name = ? WHERE id = ?", "changed behind our back", w.ID).Error)
	w.Name = "local edit"
	found, err = repo.FindByID(ctx, w.ID)
	require.NoError(t, err)
	assert.Same(t, w, found)
	assert.Equal(t, "bolt", found.Name)
	assert.Equal(t, uint64(1), cache.Stats().Hits)

	w.Name = "renamed"
	require.NoError(t, repo.Update(ctx, w))
	assert.False(t, server.Exists(widgetKey(repo, "find_by_id", "1")))

	found, err = repo.FindByID(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", found.Name)
}

func TestCachedGetAllInvalidatedByWrites(t *testing.T) {
	ctx := context.Background()
	cache, server := newCache(t)
	repo := newWidgets(t, WithCache(cache))

	first := &widget{Name: "a"}
	require.NoError(t, repo.Save(ctx, first))

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, server.Exists(widgetKey(repo, "get_all")))

	require.NoError(t, repo.Save(ctx, &widget{Name: "b"}))
	assert.False(t, server.Exists(widgetKey(repo, "get_all")))

	all, err = repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	all, err = repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Same(t, first, all[0])

	require.NoError(t, repo.Delete(ctx, first))
	all, err = repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "b", all[0].Name)
}

func TestCacheSharedBetweenDatabases(t *testing.T) {
	ctx := context.Background()
	cache, _ := newCache(t)
	a := newWidgets(t, WithCache(cache))
	b := newWidgets(t, WithCache(cache))

	require.NoError(t, a.Save(ctx, &widget{Name: "bolt", Size: 3}))
	found, err := a.FindByID(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, found)

	found, err = b.FindByID(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, found)

	all, err := b.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCacheInvalidatedForPathWithGlobCharacters(t *testing.T) {
	ctx := context.Background()
	cache, server := newCache(t)
	repo := newWidgetsAt(t, filepath.Join(t.TempDir(), "org[1].db"), WithCache(cache))

	w := &widget{Name: "bolt", Size: 3}
	require.NoError(t, repo.Save(ctx, w))
	_, err := repo.FindByID(ctx, w.ID)
	require.NoError(t, err)
	require.True(t, server.Exists(widgetKey(repo, "find_by_id", "1")))

	w.Name = "renamed"
	require.NoError(t, repo.Update(ctx, w))
	assert.False(t, server.Exists(widgetKey(repo, "find_by_id", "1")))

	repo.Session().Clear()
	found, err := repo.FindByID(ctx, w.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.NotSame(t, w, found)
	assert.Equal(t, "renamed", found.Name)
}

func TestCacheFailureFallsBackToDatabase(t *testing.T) {
	ctx := context.Background()
	cache, server := newCache(t)
	repo := newWidgets(t, WithCache(cache))

	require.NoError(t, repo.Save(ctx, &widget{Name: "bolt"}))
	server.Close()

	found, err := repo.FindByID(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "bolt", found.Name)

	require.NoError(t, repo.Save(ctx, &widget{Name: "nut"}))
}
