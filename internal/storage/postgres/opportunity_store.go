// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/grantscout/opportunity-scraper/internal/scraper"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// OpportunityStoreConfig controls the Postgres connection pool.
type OpportunityStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// OpportunityStore persists opportunity rows keyed by content hash.
type OpportunityStore struct {
	pool  pgxPool
	table string
}

// NewOpportunityStore creates a Postgres-backed store using the provided config.
func NewOpportunityStore(ctx context.Context, cfg OpportunityStoreConfig) (*OpportunityStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "opportunities"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &OpportunityStore{pool: pool, table: table}, nil
}

// NewOpportunityStoreWithPool constructs a store from an existing pool
// (primarily for testing with pgxmock).
func NewOpportunityStoreWithPool(pool pgxPool, table string) (*OpportunityStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "opportunities"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &OpportunityStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *OpportunityStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// FindByHash reports whether a row with the content hash already exists.
func (s *OpportunityStore) FindByHash(ctx context.Context, hash string) (bool, error) {
	if s == nil || s.pool == nil {
		return false, fmt.Errorf("opportunity store is not configured")
	}
	if hash == "" {
		return false, fmt.Errorf("hash is required")
	}
	query := fmt.Sprintf(`SELECT 1 FROM %s WHERE content_hash = $1 LIMIT 1`, s.table)
	var one int
	err := s.pool.QueryRow(ctx, query, hash).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query by hash: %w", err)
	}
	return true, nil
}

// Insert writes one opportunity row.
func (s *OpportunityStore) Insert(ctx context.Context, opp scraper.Opportunity) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("opportunity store is not configured")
	}
	if opp.ID == "" {
		return fmt.Errorf("opportunity id is required")
	}
	if opp.ContentHash == "" {
		return fmt.Errorf("content hash is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	title,
	description,
	source_url,
	source_name,
	country,
	content_hash,
	scraped_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8
)`, s.table)

	args := []any{
		opp.ID,
		opp.Title,
		opp.Description,
		opp.SourceURL,
		opp.SourceName,
		opp.Country,
		opp.ContentHash,
		opp.ScrapedAt,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert opportunity: %w", err)
	}
	return nil
}
