// Package storetest holds sqlite fixtures shared by repository and engine tests.
package storetest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/microgem/storefront-backend/pkg/db/models"
)

const directorySchema = `
CREATE TABLE IF NOT EXISTS sites (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  domain_name TEXT NOT NULL UNIQUE,
  db_name TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`

var tenantSchema = []string{`
CREATE TABLE IF NOT EXISTS products (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  sku TEXT NOT NULL,
  name TEXT NOT NULL,
  price NUMERIC NOT NULL DEFAULT 0,
  inventory INTEGER NOT NULL DEFAULT 0,
  images TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS orders (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  order_no TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  email TEXT NOT NULL,
  phone TEXT NOT NULL DEFAULT '',
  note TEXT NOT NULL DEFAULT '',
  address TEXT NOT NULL,
  discount_coupon TEXT NOT NULL DEFAULT '',
  currency TEXT NOT NULL,
  discount NUMERIC NOT NULL DEFAULT 0,
  subtotal NUMERIC NOT NULL DEFAULT 0,
  shipping NUMERIC NOT NULL DEFAULT 0,
  total NUMERIC NOT NULL DEFAULT 0,
  method TEXT NOT NULL,
  status INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS order_product (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  order_id INTEGER NOT NULL,
  product_id INTEGER NOT NULL,
  sku TEXT NOT NULL,
  name TEXT NOT NULL,
  price NUMERIC NOT NULL,
  quantity INTEGER NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`}

// OpenSQLite opens a private in-memory database named after the test. A
// single connection keeps every statement on the same memory database.
func OpenSQLite(t *testing.T, name string) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", sanitize(t.Name()+"_"+name))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite %s: %v", name, err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db %s: %v", name, err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}

// NewDirectoryDB returns a directory database with the sites table.
func NewDirectoryDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn := OpenSQLite(t, "directory")
	if err := conn.Exec(directorySchema).Error; err != nil {
		t.Fatalf("create directory schema: %v", err)
	}
	return conn
}

// NewTenantDB returns a tenant database with catalog and order tables.
func NewTenantDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	conn := OpenSQLite(t, name)
	for _, stmt := range tenantSchema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("create tenant schema: %v", err)
		}
	}
	return conn
}

// MustCreateSite registers domain -> dbName in the directory.
func MustCreateSite(t *testing.T, directory *gorm.DB, domain, dbName string) *models.Site {
	t.Helper()
	site := &models.Site{DomainName: domain, DBName: dbName}
	if err := directory.Create(site).Error; err != nil {
		t.Fatalf("create site: %v", err)
	}
	return site
}

// MustCreateProduct inserts a product; price is a decimal string like "12.50".
func MustCreateProduct(t *testing.T, tenant *gorm.DB, sku, name, price string, inventory int, images string) *models.Product {
	t.Helper()
	product := &models.Product{
		SKU:       sku,
		Name:      name,
		Price:     decimal.RequireFromString(price),
		Inventory: inventory,
	}
	if images != "" {
		product.Images = &images
	}
	if err := tenant.Create(product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product
}

// Inventory reads the current stock of a product.
func Inventory(t *testing.T, tenant *gorm.DB, productID int64) int {
	t.Helper()
	var product models.Product
	if err := tenant.Take(&product, productID).Error; err != nil {
		t.Fatalf("load product %d: %v", productID, err)
	}
	return product.Inventory
}

// StaticConnector serves pre-opened tenant databases by name.
type StaticConnector struct {
	mu    sync.Mutex
	DBs   map[string]*gorm.DB
	Err   error
	Opens int
}

func (s *StaticConnector) Open(ctx context.Context, dbName string) (*gorm.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Opens++
	if s.Err != nil {
		return nil, s.Err
	}
	conn, ok := s.DBs[dbName]
	if !ok {
		return nil, fmt.Errorf("unknown tenant database %q", dbName)
	}
	return conn.WithContext(ctx), nil
}

func sanitize(name string) string {
	return strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(name)
}
