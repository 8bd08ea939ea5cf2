package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/siherrmann/regularrag/helper"
	"github.com/siherrmann/regularrag/model"
	loadSql "github.com/siherrmann/regularrag/sql"
)

// CacheDBHandlerFunctions defines the interface for Cache database operations.
type CacheDBHandlerFunctions interface {
	SelectByHash(ctx context.Context, hash string) (*model.CacheEntry, error)
	Upsert(ctx context.Context, entry *model.CacheEntry) error
	IncrementHitCount(ctx context.Context, hash string) (*model.CacheEntry, error)
}

// CacheDBHandler handles response cache database operations
type CacheDBHandler struct {
	db *helper.Database
}

// NewCacheDBHandler creates a new cache database handler.
// It initializes the database connection and loads cache-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewCacheDBHandler(db *helper.Database, force bool) (*CacheDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	cacheDbHandler := &CacheDBHandler{
		db: db,
	}

	err := loadSql.LoadCacheSql(cacheDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load cache sql", err)
	}

	err = cacheDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized CacheDBHandler")

	return cacheDbHandler, nil
}

// CreateTable creates the 'cache' table in the database.
// If the table already exists, it does not create it again.
func (h *CacheDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_cache();`)
	if err != nil {
		return helper.NewError("initialize cache table", err)
	}

	h.db.Logger.Info("Checked/created table cache")

	return nil
}

// SelectByHash retrieves a cache entry by request hash.
// A miss returns (nil, nil).
func (h *CacheDBHandler) SelectByHash(ctx context.Context, hash string) (*model.CacheEntry, error) {
	row := h.db.Instance.QueryRowContext(ctx,
		`SELECT * FROM select_cache_by_hash($1)`,
		hash,
	)

	entry := &model.CacheEntry{}
	err := scanCacheEntry(row, entry)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return entry, nil
}

// Upsert writes or overwrites a cache entry by request hash. Overwriting
// keeps hit count and creation time of the existing row.
func (h *CacheDBHandler) Upsert(ctx context.Context, entry *model.CacheEntry) error {
	row := h.db.Instance.QueryRowContext(ctx,
		`SELECT * FROM upsert_cache($1, $2, $3, $4)`,
		entry.RequestHash,
		entry.Question,
		entry.Context,
		entry.Response,
	)

	err := scanCacheEntry(row, entry)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// IncrementHitCount atomically bumps the hit counter and stamps the hit time
// on the database clock. Returns nil when no entry exists for the hash.
func (h *CacheDBHandler) IncrementHitCount(ctx context.Context, hash string) (*model.CacheEntry, error) {
	row := h.db.Instance.QueryRowContext(ctx,
		`SELECT * FROM increment_cache_hit($1)`,
		hash,
	)

	entry := &model.CacheEntry{}
	err := row.Scan(
		&entry.RequestHash,
		&entry.HitCount,
		&entry.LastHitAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return entry, nil
}

// scanCacheEntry scans a full cache row.
func scanCacheEntry(row *sql.Row, entry *model.CacheEntry) error {
	return row.Scan(
		&entry.RequestHash,
		&entry.Question,
		&entry.Context,
		&entry.Response,
		&entry.HitCount,
		&entry.LastHitAt,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
}
