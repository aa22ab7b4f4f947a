package favourites

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"fic-recs-bot/internal/infra/db"
	"fic-recs-bot/internal/infra/metrics"
)

// PostgresCache хранит страницы в таблице page_cache под блокировкой логической базы page_cache.
type PostgresCache struct {
	vendor *db.Vendor
}

// NewPostgresCache создаёт кэш страниц в Postgres.
func NewPostgresCache(vendor *db.Vendor) *PostgresCache {
	return &PostgresCache{vendor: vendor}
}

func (c *PostgresCache) Load(ctx context.Context, ffnID string) (Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	start := time.Now()
	var entry Entry
	err := c.withConn(ctx, func(conn *db.LockedDatabase) error {
		return conn.QueryRow(ctx, `
SELECT links, has_favourites, full_parse, fetched_at FROM page_cache WHERE ffn_id = $1
`, ffnID).Scan(&entry.Links, &entry.HasFavourites, &entry.FullParse, &entry.FetchedAt)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.ObserveNetworkRequest("postgres", "page_cache_load", "page_cache", start, nil)
		return Entry{}, ErrCacheMiss
	}
	metrics.ObserveNetworkRequest("postgres", "page_cache_load", "page_cache", start, err)
	return entry, err
}

func (c *PostgresCache) Store(ctx context.Context, ffnID string, entry Entry) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	start := time.Now()
	if entry.Links == nil {
		entry.Links = []string{}
	}
	err := c.withConn(ctx, func(conn *db.LockedDatabase) error {
		_, err := conn.Exec(ctx, `
INSERT INTO page_cache (ffn_id, links, has_favourites, full_parse, fetched_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (ffn_id) DO UPDATE SET
    links = EXCLUDED.links,
    has_favourites = EXCLUDED.has_favourites,
    full_parse = EXCLUDED.full_parse,
    fetched_at = EXCLUDED.fetched_at
`, ffnID, entry.Links, entry.HasFavourites, entry.FullParse, entry.FetchedAt)
		return err
	})
	metrics.ObserveNetworkRequest("postgres", "page_cache_store", "page_cache", start, err)
	return err
}

func (c *PostgresCache) withConn(ctx context.Context, fn func(conn *db.LockedDatabase) error) error {
	conn, err := c.vendor.Acquire(ctx, db.PageCacheDatabase)
	if err != nil {
		return err
	}
	defer conn.Release()
	return fn(conn)
}

// MemoryCache — кэш страниц в памяти процесса для dev-окружения и тестов.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]Entry)}
}

func (c *MemoryCache) Load(_ context.Context, ffnID string) (Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[ffnID]
	if !ok {
		return Entry{}, ErrCacheMiss
	}
	entry.Links = append([]string(nil), entry.Links...)
	return entry, nil
}

func (c *MemoryCache) Store(_ context.Context, ffnID string, entry Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry.Links = append([]string(nil), entry.Links...)
	c.entries[ffnID] = entry
	return nil
}
