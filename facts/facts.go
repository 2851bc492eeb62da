// Package facts is the canonical fact store: it turns extracted candidate
// entities into durable per-user records and assembles fact-aware system
// prompts from them.
package facts

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"factmem/embed"
	"factmem/storage"
)

type Store struct {
	Config *Config

	Storage *storage.Manager
	Ingest  *Ingestor

	log      *log.Logger
	embedder embed.Embedder
	cache    *expirable.LRU[string, map[string]any]

	// Set by WithRepos; takes precedence over Storage. Tests use this to
	// substitute failing or in-memory backends.
	repos storage.Repos
}

type Option func(*Store)

func New(opts ...Option) *Store {
	s := &Store{
		Config: newConfig(),
	}

	for _, opt := range opts {
		opt(s)
	}

	// Defaults
	if s.Storage == nil {
		s.Storage = storage.NewManager()
	}
	if s.log == nil {
		s.log = log.NewWithOptions(os.Stderr, log.Options{Level: log.WarnLevel})
	}
	if s.embedder == nil {
		s.embedder = embed.NewHashEmbedder()
	}
	if s.cache == nil {
		s.cache = expirable.NewLRU[string, map[string]any](s.Config.CacheSize, nil, s.Config.CacheTTL)
	}
	if s.Ingest == nil {
		s.Ingest = NewIngestor(s)
	}
	return s
}

// WithStorageConn binds a backend from a live connection: *sql.DB (sqlite or
// postgres) or *mongo.Database.
func WithStorageConn(conn any) Option {
	return func(s *Store) {
		s.Storage = storage.NewManager()
		_ = s.Storage.Start(conn)
		s.Config.Storage.Dialect = s.Storage.Dialect()
	}
}

// WithRepos substitutes the repository layer directly, bypassing the
// adapter/driver registry.
func WithRepos(r storage.Repos) Option {
	return func(s *Store) {
		s.repos = r
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		s.log = l
	}
}

func WithEmbedder(e embed.Embedder) Option {
	return func(s *Store) {
		s.embedder = e
	}
}

// reposFor resolves the active repository set, or nil when no backend is
// bound.
func (s *Store) reposFor() storage.Repos {
	if s.repos != nil {
		return s.repos
	}
	if s.Storage == nil {
		return nil
	}
	drv := s.Storage.Driver()
	if drv == nil {
		return nil
	}
	r, ok := drv.(storage.Repos)
	if !ok {
		return nil
	}
	return r
}
