package repository

import (
	"github.com/ammar0144/orgmap/pkg/db"
	"github.com/ammar0144/orgmap/pkg/redis"
	"github.com/rs/zerolog"
)

// Session is a unit of work over one database handle. It owns the identity
// maps that guarantee at most one live instance per (table, id).
//
// A Session is not safe for concurrent use.
type Session struct {
	db    *db.Manager
	cache *redis.Manager
	log   zerolog.Logger
	maps  map[string]map[int64]Entity
}

// SessionOption customises a Session
type SessionOption func(*Session)

// WithCache attaches a Redis row cache. A nil or disabled manager is ignored.
func WithCache(cache *redis.Manager) SessionOption {
	return func(s *Session) {
		if cache.Enabled() {
			s.cache = cache
		}
	}
}

// WithLogger sets the logger used by the session's repositories
func WithLogger(log zerolog.Logger) SessionOption {
	return func(s *Session) {
		s.log = log
	}
}

// NewSession starts a unit of work on manager
func NewSession(manager *db.Manager, opts ...SessionOption) *Session {
	s := &Session{
		db:   manager,
		log:  zerolog.Nop(),
		maps: make(map[string]map[int64]Entity),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the database manager
func (s *Session) DB() *db.Manager {
	return s.db
}

// Cache returns the attached row cache, or nil
func (s *Session) Cache() *redis.Manager {
	return s.cache
}

// Lookup returns the live instance for (table, id) if the session holds one
func (s *Session) Lookup(table string, id int64) (Entity, bool) {
	e, ok := s.maps[table][id]
	return e, ok
}

// Len reports how many instances of table the session holds
func (s *Session) Len(table string) int {
	return len(s.maps[table])
}

// Clear forgets every tracked instance. Instances already handed out stay valid
// but later lookups return new objects.
func (s *Session) Clear() {
	s.maps = make(map[string]map[int64]Entity)
}

func (s *Session) register(table string, e Entity) {
	m, ok := s.maps[table]
	if !ok {
		m = make(map[int64]Entity)
		s.maps[table] = m
	}
	m[e.GetPrimaryKeyValue()] = e
}

func (s *Session) evict(table string, id int64) {
	delete(s.maps[table], id)
}

func (s *Session) clearTable(table string) {
	delete(s.maps, table)
}
