package tenants

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/microgem/storefront-backend/pkg/config"
	"github.com/microgem/storefront-backend/pkg/db"
)

// Connector hands out a pooled connection for a tenant database.
type Connector interface {
	Open(ctx context.Context, dbName string) (*gorm.DB, error)
}

// OpenFunc dials a tenant database by name.
type OpenFunc func(ctx context.Context, dbName string) (*gorm.DB, error)

// PoolConnector keeps one pool per tenant database for the life of the
// process. Concurrent first opens of the same database share a single dial.
type PoolConnector struct {
	open  OpenFunc
	mu    sync.RWMutex
	pools map[string]*gorm.DB
	group singleflight.Group
}

// NewPoolConnector builds a connector around open.
func NewPoolConnector(open OpenFunc) (*PoolConnector, error) {
	if open == nil {
		return nil, fmt.Errorf("tenant open func required")
	}
	return &PoolConnector{open: open, pools: map[string]*gorm.DB{}}, nil
}

// PostgresOpener dials tenant databases on the directory's server, reusing
// its credentials and swapping only the database name.
func PostgresOpener(dbCfg config.DBConfig, tenantCfg config.TenantConfig) OpenFunc {
	pool := db.PoolSettings{
		MaxOpenConns:    tenantCfg.MaxOpenConns,
		MaxIdleConns:    tenantCfg.MaxIdleConns,
		ConnMaxLifetime: dbCfg.ConnMaxLifetime,
		ConnMaxIdleTime: tenantCfg.ConnMaxIdleTime,
	}
	return func(ctx context.Context, dbName string) (*gorm.DB, error) {
		dsn, err := dbCfg.TenantDSN(dbName)
		if err != nil {
			return nil, err
		}
		client, err := db.Open(ctx, dsn, pool)
		if err != nil {
			return nil, err
		}
		return client.DB(), nil
	}
}

func (c *PoolConnector) Open(ctx context.Context, dbName string) (*gorm.DB, error) {
	if dbName == "" {
		return nil, fmt.Errorf("tenant database name is required")
	}

	c.mu.RLock()
	conn, ok := c.pools[dbName]
	c.mu.RUnlock()
	if ok {
		return conn.WithContext(ctx), nil
	}

	v, err, _ := c.group.Do(dbName, func() (any, error) {
		c.mu.RLock()
		existing, ok := c.pools[dbName]
		c.mu.RUnlock()
		if ok {
			return existing, nil
		}
		// Detached from the caller so one cancelled request cannot poison
		// the shared dial for everyone waiting on it.
		opened, err := c.open(context.WithoutCancel(ctx), dbName)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.pools[dbName] = opened
		c.mu.Unlock()
		return opened, nil
	})
	if err != nil {
		return nil, fmt.Errorf("opening tenant database %q: %w", dbName, err)
	}
	return v.(*gorm.DB).WithContext(ctx), nil
}

// Close closes every tenant pool.
func (c *PoolConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs error
	for name, conn := range c.pools {
		sqlDB, err := conn.DB()
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("tenant %q: %w", name, err))
			continue
		}
		if err := sqlDB.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("tenant %q: %w", name, err))
		}
	}
	c.pools = map[string]*gorm.DB{}
	return errs
}
