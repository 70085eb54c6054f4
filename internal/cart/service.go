package cart

import (
	"context"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	product "github.com/microgem/storefront-backend/internal/products"
	"github.com/microgem/storefront-backend/internal/tenants"
	"github.com/microgem/storefront-backend/pkg/config"
	"github.com/microgem/storefront-backend/pkg/db/models"
	pkgerrors "github.com/microgem/storefront-backend/pkg/errors"
	"github.com/microgem/storefront-backend/pkg/logger"
	"github.com/microgem/storefront-backend/pkg/metrics"
)

const (
	opAdd    = "add"
	opUpdate = "update"
	opRemove = "remove"
	opClear  = "clear"
	opView   = "view"
)

// DefaultMaxLineQty caps a single cart line when no limit is configured.
const DefaultMaxLineQty = 10000

type catalog interface {
	FindByID(ctx context.Context, tenant *tenants.Handle, id int64) (*models.Product, error)
	FindByIDs(ctx context.Context, tenant *tenants.Handle, ids []int64) (map[int64]*models.Product, error)
}

// Service exposes the guest cart operations. Every tenant-scoped call
// resolves the tenant from domain itself.
type Service interface {
	AddItem(ctx context.Context, domain, token string, productID int64, variantID *int64, qty int) (*View, error)
	UpdateItem(ctx context.Context, domain, token string, productID int64, variantID *int64, qty int) (*View, error)
	RemoveItem(ctx context.Context, domain, token string, productID int64, variantID *int64) (*View, error)
	Clear(ctx context.Context, token string) error
	View(ctx context.Context, domain, token string) (*View, error)
	Snapshot(ctx context.Context, tenant *tenants.Handle, token string) (*View, error)
}

type service struct {
	resolver tenants.Resolver
	catalog  catalog
	store    Store
	retries  int
	maxQty   int
	logg     *logger.Logger
	metrics  *metrics.StorefrontMetrics
}

// NewService wires the cart engine.
func NewService(resolver tenants.Resolver, catalog catalog, store Store, cfg config.CartConfig, logg *logger.Logger, m *metrics.StorefrontMetrics) (Service, error) {
	if resolver == nil {
		return nil, fmt.Errorf("tenant resolver required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if store == nil {
		return nil, fmt.Errorf("cart store required")
	}
	retries := cfg.CASRetries
	if retries <= 0 {
		retries = 1
	}
	maxQty := cfg.MaxLineQty
	if maxQty <= 0 || maxQty > math.MaxInt32 {
		maxQty = DefaultMaxLineQty
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		resolver: resolver,
		catalog:  catalog,
		store:    store,
		retries:  retries,
		maxQty:   maxQty,
		logg:     logg,
		metrics:  m,
	}, nil
}

// AddItem merges qty into an existing line for the same product and variant,
// or appends a new line. Quantities below one are treated as one; a line may
// not grow past the configured maximum.
func (s *service) AddItem(ctx context.Context, domain, token string, productID int64, variantID *int64, qty int) (*View, error) {
	tenant, err := s.resolver.Resolve(ctx, domain)
	if err != nil {
		return nil, s.fail(opAdd, err)
	}
	p, err := s.catalog.FindByID(ctx, tenant, productID)
	if err != nil {
		return nil, s.fail(opAdd, err)
	}
	if p == nil {
		return nil, s.fail(opAdd, pkgerrors.New(pkgerrors.CodeProductNotFound, "product not found").
			WithDetails(map[string]any{"product_id": productID}))
	}
	if qty < 1 {
		qty = 1
	}
	if qty > s.maxQty {
		return nil, s.fail(opAdd, s.tooMany(productID))
	}

	err = s.mutate(ctx, opAdd, token, func(c *Cart) (bool, error) {
		if i := c.indexOf(productID, variantID); i >= 0 {
			if c.Items[i].Qty > s.maxQty-qty {
				return false, s.tooMany(productID)
			}
			c.Items[i].Qty += qty
			return true, nil
		}
		c.Items = append(c.Items, Line{ProductID: productID, VariantID: copyID(variantID), Qty: qty})
		return true, nil
	})
	if err != nil {
		return nil, s.fail(opAdd, err)
	}
	return s.viewAfter(ctx, opAdd, tenant, token)
}

// UpdateItem overwrites the quantity of an existing line. A quantity of zero
// or less removes the line.
func (s *service) UpdateItem(ctx context.Context, domain, token string, productID int64, variantID *int64, qty int) (*View, error) {
	tenant, err := s.resolver.Resolve(ctx, domain)
	if err != nil {
		return nil, s.fail(opUpdate, err)
	}
	err = s.mutate(ctx, opUpdate, token, func(c *Cart) (bool, error) {
		i := c.indexOf(productID, variantID)
		if i < 0 {
			return false, pkgerrors.New(pkgerrors.CodeItemNotFound, "item not found in cart").
				WithDetails(map[string]any{"product_id": productID})
		}
		switch {
		case qty <= 0:
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
		case qty > s.maxQty:
			return false, s.tooMany(productID)
		default:
			c.Items[i].Qty = qty
		}
		return true, nil
	})
	if err != nil {
		return nil, s.fail(opUpdate, err)
	}
	return s.viewAfter(ctx, opUpdate, tenant, token)
}

// RemoveItem drops the matching line. Removing a missing line is a no-op.
func (s *service) RemoveItem(ctx context.Context, domain, token string, productID int64, variantID *int64) (*View, error) {
	tenant, err := s.resolver.Resolve(ctx, domain)
	if err != nil {
		return nil, s.fail(opRemove, err)
	}
	err = s.mutate(ctx, opRemove, token, func(c *Cart) (bool, error) {
		i := c.indexOf(productID, variantID)
		if i < 0 {
			return false, nil
		}
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
		return true, nil
	})
	if err != nil {
		return nil, s.fail(opRemove, err)
	}
	return s.viewAfter(ctx, opRemove, tenant, token)
}

// Clear forgets the stored cart.
func (s *service) Clear(ctx context.Context, token string) error {
	if err := s.store.Delete(ctx, token); err != nil {
		return s.fail(opClear, err)
	}
	s.metrics.CartOp(opClear, metrics.OutcomeSuccess)
	return nil
}

func (s *service) View(ctx context.Context, domain, token string) (*View, error) {
	tenant, err := s.resolver.Resolve(ctx, domain)
	if err != nil {
		return nil, s.fail(opView, err)
	}
	return s.viewAfter(ctx, opView, tenant, token)
}

// Snapshot joins the stored cart with live catalog rows. Lines whose product
// has vanished are left out.
func (s *service) Snapshot(ctx context.Context, tenant *tenants.Handle, token string) (*View, error) {
	c, err := s.store.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(c.Items))
	for _, line := range c.Items {
		ids = append(ids, line.ProductID)
	}
	found, err := s.catalog.FindByIDs(ctx, tenant, ids)
	if err != nil {
		return nil, err
	}

	view := &View{Items: make([]ViewItem, 0, len(c.Items)), Subtotal: decimal.Zero, UpdatedAt: c.UpdatedAt}
	for _, line := range c.Items {
		p, ok := found[line.ProductID]
		if !ok {
			logCtx := s.logg.WithFields(ctx, map[string]any{"product_id": line.ProductID})
			s.logg.Warn(logCtx, "cart line dropped: product no longer exists")
			continue
		}
		total := p.Price.Mul(decimal.NewFromInt(int64(line.Qty)))
		view.Items = append(view.Items, ViewItem{
			ProductID: p.ID,
			VariantID: copyID(line.VariantID),
			SKU:       p.SKU,
			Name:      p.Name,
			Price:     p.Price,
			Quantity:  line.Qty,
			Thumbnail: product.Thumbnail(p),
			ItemTotal: total,
		})
		view.Subtotal = view.Subtotal.Add(total)
	}
	view.Count = len(view.Items)
	return view, nil
}

// mutate runs fn as a read-modify-write cycle against the store, retrying
// when a concurrent writer changes the cart in between. A malformed token
// stands for an empty cart that is never written; only adds are refused.
func (s *service) mutate(ctx context.Context, op, token string, fn func(*Cart) (bool, error)) error {
	if !ValidToken(token) {
		changed, err := fn(emptyCart())
		if err != nil {
			return err
		}
		if changed && op == opAdd {
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid cart token")
		}
		return nil
	}
	for attempt := 0; attempt < s.retries; attempt++ {
		current, err := s.store.Get(ctx, token)
		if err != nil {
			return err
		}
		expected := current.Version
		changed, err := fn(current)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		swapped, err := s.store.CompareAndSwap(ctx, token, expected, current)
		if err != nil {
			return err
		}
		if swapped {
			return nil
		}
		s.metrics.CartConflict(op)
		if err := ctx.Err(); err != nil {
			return pkgerrors.WrapInfra(pkgerrors.CodeStoreUnavailable, err, "cart update interrupted")
		}
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "cart was modified concurrently, please retry")
}

func (s *service) viewAfter(ctx context.Context, op string, tenant *tenants.Handle, token string) (*View, error) {
	view, err := s.Snapshot(ctx, tenant, token)
	if err != nil {
		return nil, s.fail(op, err)
	}
	s.metrics.CartOp(op, metrics.OutcomeSuccess)
	return view, nil
}

func (s *service) tooMany(productID int64) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "quantity exceeds the per-line maximum").
		WithDetails(map[string]any{"product_id": productID, "max_qty": s.maxQty})
}

func (s *service) fail(op string, err error) error {
	s.metrics.CartOp(op, metrics.OutcomeFailure)
	return err
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
