package orders

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/microgem/storefront-backend/internal/cart"
	"github.com/microgem/storefront-backend/internal/tenants"
	"github.com/microgem/storefront-backend/pkg/config"
	"github.com/microgem/storefront-backend/pkg/db"
	"github.com/microgem/storefront-backend/pkg/db/models"
	"github.com/microgem/storefront-backend/pkg/enums"
	pkgerrors "github.com/microgem/storefront-backend/pkg/errors"
	"github.com/microgem/storefront-backend/pkg/logger"
	"github.com/microgem/storefront-backend/pkg/metrics"
	"github.com/microgem/storefront-backend/pkg/pubsub"
)

const (
	orderNoConstraint = "order_no"
	orderNoDigits     = 8
)

var (
	errOrderNoTaken = errors.New("order number already taken")
	orderNoSpace    = big.NewInt(100_000_000)
)

type cartReader interface {
	Snapshot(ctx context.Context, tenant *tenants.Handle, token string) (*cart.View, error)
	Clear(ctx context.Context, token string) error
}

type catalog interface {
	FindByIDs(ctx context.Context, tenant *tenants.Handle, ids []int64) (map[int64]*models.Product, error)
	DecrementInventory(ctx context.Context, tx *gorm.DB, id int64, qty int) (bool, error)
}

type orderRepository interface {
	OrderNumberTaken(ctx context.Context, tx *gorm.DB, orderNo string) (bool, error)
	Create(ctx context.Context, tx *gorm.DB, order *models.Order) error
}

// Service places guest orders from the stored cart.
type Service interface {
	CreateOrder(ctx context.Context, domain, token string, input CreateOrderInput) (*models.Order, error)
}

// Deps groups the collaborators of the order engine.
type Deps struct {
	Resolver  tenants.Resolver
	Carts     cartReader
	Catalog   catalog
	Repo      orderRepository
	Publisher pubsub.EventPublisher
	Config    config.OrderConfig
	Logger    *logger.Logger
	Metrics   *metrics.StorefrontMetrics
}

type service struct {
	resolver  tenants.Resolver
	carts     cartReader
	catalog   catalog
	repo      orderRepository
	publisher pubsub.EventPublisher
	cfg       config.OrderConfig
	logg      *logger.Logger
	metrics   *metrics.StorefrontMetrics
	newNumber func() (string, error)
	now       func() time.Time
}

// NewService wires the order engine.
func NewService(deps Deps) (Service, error) {
	if deps.Resolver == nil {
		return nil, fmt.Errorf("tenant resolver required")
	}
	if deps.Carts == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if deps.Catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if deps.Repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if deps.Publisher == nil {
		deps.Publisher = pubsub.NoopPublisher{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.Config.NumberAttempts <= 0 {
		deps.Config.NumberAttempts = 1
	}
	return &service{
		resolver:  deps.Resolver,
		carts:     deps.Carts,
		catalog:   deps.Catalog,
		repo:      deps.Repo,
		publisher: deps.Publisher,
		cfg:       deps.Config,
		logg:      deps.Logger,
		metrics:   deps.Metrics,
		newNumber: randomOrderNumber,
		now:       time.Now,
	}, nil
}

type orderLine struct {
	product *models.Product
	qty     int
}

// CreateOrder re-validates the cart against live catalog data and persists the
// order, its lines and the inventory decrements in a single transaction.
func (s *service) CreateOrder(ctx context.Context, domain, token string, input CreateOrderInput) (*models.Order, error) {
	started := s.now()
	order, err := s.createOrder(ctx, domain, token, input)
	if err != nil {
		s.metrics.Order(metrics.OutcomeFailure, s.now().Sub(started))
		return nil, err
	}
	s.metrics.Order(metrics.OutcomeSuccess, s.now().Sub(started))
	return order, nil
}

func (s *service) createOrder(ctx context.Context, domain, token string, input CreateOrderInput) (*models.Order, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	tenant, err := s.resolver.Resolve(ctx, domain)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithTenant(ctx, tenant.Domain)

	snapshot, err := s.carts.Snapshot(ctx, tenant, token)
	if err != nil {
		return nil, err
	}
	if len(snapshot.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
	}

	lines, err := s.revalidate(ctx, tenant, snapshot)
	if err != nil {
		return nil, err
	}

	var order *models.Order
	for attempt := 1; attempt <= s.cfg.NumberAttempts; attempt++ {
		orderNo, err := s.newNumber()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order number")
		}
		order = s.buildOrder(orderNo, input, lines)

		err = db.WithTx(ctx, tenant.DB, func(tx *gorm.DB) error {
			return s.persist(ctx, tx, order, lines)
		})
		if err == nil {
			break
		}
		if errors.Is(err, errOrderNoTaken) || db.IsUniqueViolation(err, orderNoConstraint) {
			s.metrics.OrderNumberCollision()
			s.logg.Warn(s.logg.WithField(ctx, "attempt", attempt), "order number collision, retrying")
			order = nil
			continue
		}
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.WrapInfra(pkgerrors.CodeCatalogUnavailable, err, "persist order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "could not allocate an order number")
	}

	if err := s.carts.Clear(ctx, token); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "order_no", order.OrderNo), "clear cart after order", err)
	}
	s.publishCreated(ctx, tenant.Domain, order)
	return order, nil
}

// revalidate reloads every cart product and checks stock. Lines whose product
// vanished since the snapshot are dropped.
func (s *service) revalidate(ctx context.Context, tenant *tenants.Handle, snapshot *cart.View) ([]orderLine, error) {
	ids := make([]int64, 0, len(snapshot.Items))
	for _, item := range snapshot.Items {
		ids = append(ids, item.ProductID)
	}
	live, err := s.catalog.FindByIDs(ctx, tenant, ids)
	if err != nil {
		return nil, err
	}

	lines := make([]orderLine, 0, len(snapshot.Items))
	for _, item := range snapshot.Items {
		p, ok := live[item.ProductID]
		if !ok {
			s.logg.Warn(s.logg.WithField(ctx, "product_id", item.ProductID), "order line dropped: product no longer exists")
			continue
		}
		if p.Inventory < item.Quantity {
			return nil, insufficientInventory(p.Name)
		}
		lines = append(lines, orderLine{product: p, qty: item.Quantity})
	}
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
	}
	return lines, nil
}

func (s *service) persist(ctx context.Context, tx *gorm.DB, order *models.Order, lines []orderLine) error {
	taken, err := s.repo.OrderNumberTaken(ctx, tx, order.OrderNo)
	if err != nil {
		return err
	}
	if taken {
		return errOrderNoTaken
	}
	if err := s.repo.Create(ctx, tx, order); err != nil {
		return err
	}
	for _, line := range lines {
		applied, err := s.catalog.DecrementInventory(ctx, tx, line.product.ID, line.qty)
		if err != nil {
			return err
		}
		if !applied {
			return insufficientInventory(line.product.Name)
		}
	}
	return nil
}

func (s *service) buildOrder(orderNo string, input CreateOrderInput, lines []orderLine) *models.Order {
	subtotal := decimal.Zero
	products := make([]models.OrderProduct, 0, len(lines))
	for _, line := range lines {
		subtotal = subtotal.Add(line.product.Price.Mul(decimal.NewFromInt(int64(line.qty))))
		products = append(products, models.OrderProduct{
			ProductID: line.product.ID,
			SKU:       line.product.SKU,
			Name:      line.product.Name,
			Price:     line.product.Price,
			Quantity:  line.qty,
		})
	}
	shipping := amountOrZero(input.Shipping)
	discount := amountOrZero(input.Discount)

	currency := input.Currency
	if currency == "" {
		currency = s.cfg.DefaultCurrency
	}
	method := input.Method
	if method == "" {
		method = s.cfg.DefaultMethod
	}

	return &models.Order{
		OrderNo:        orderNo,
		Name:           input.Name,
		Email:          input.Email,
		Phone:          input.Phone,
		Note:           input.Note,
		Address:        input.Address,
		DiscountCoupon: input.DiscountCoupon,
		Currency:       currency,
		Discount:       discount,
		Subtotal:       subtotal,
		Shipping:       shipping,
		Total:          subtotal.Add(shipping).Sub(discount),
		Method:         method,
		Status:         enums.OrderStatusPending,
		Products:       products,
	}
}

func (s *service) publishCreated(ctx context.Context, tenant string, order *models.Order) {
	event := OrderCreatedEvent{
		OrderID:  order.ID,
		OrderNo:  order.OrderNo,
		Email:    order.Email,
		Currency: order.Currency,
		Total:    order.Total.StringFixed(2),
		Lines:    len(order.Products),
	}
	if err := s.publisher.Publish(ctx, tenant, enums.EventOrderCreated, event); err != nil {
		s.metrics.EventPublished(enums.EventOrderCreated.String(), metrics.OutcomeFailure)
		s.logg.Error(s.logg.WithField(ctx, "order_no", order.OrderNo), "publish order.created", err)
		return
	}
	s.metrics.EventPublished(enums.EventOrderCreated.String(), metrics.OutcomeSuccess)
}

func insufficientInventory(productName string) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientInventory, fmt.Sprintf("insufficient inventory for %s", productName)).
		WithDetails(map[string]any{"product_name": productName})
}

func randomOrderNumber() (string, error) {
	n, err := rand.Int(rand.Reader, orderNoSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", orderNoDigits, n.Int64()), nil
}
