package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront-be/internal/cart"
	"storefront-be/internal/logger"
	"storefront-be/internal/messaging"
	"storefront-be/internal/notification"
	"storefront-be/internal/product"
	"storefront-be/internal/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxNumberAttempts = 3

type ProductReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*product.Product, error)
}

type CartClearer interface {
	Clear(ctx context.Context, id cart.Identity) (*cart.Cart, error)
}

type Notifier interface {
	OrderConfirmed(ctx context.Context, r notification.Receipt) notification.EmailStatus
}

type Service interface {
	// PlaceOrder creates a cash-on-delivery order, decrements stock and
	// sends the confirmation emails.
	PlaceOrder(ctx context.Context, input PlaceInput) (*Order, notification.EmailStatus, error)
	// CreatePendingOrder creates an unpaid order for a processor checkout.
	// Stock is decremented when the payment is confirmed.
	CreatePendingOrder(ctx context.Context, input PlaceInput) (*Order, error)
	AttachStripeSession(ctx context.Context, id uuid.UUID, sessionID string) error
	AttachPayPalOrder(ctx context.Context, id uuid.UUID, paypalOrderID string) error
	// MarkPaid applies a confirmed payment. The bool is false when the order
	// had already left the unpaid state, in which case nothing changes.
	MarkPaid(ctx context.Context, id uuid.UUID, conf PaymentConfirmation) (*Order, bool, error)
	MarkPaymentFailed(ctx context.Context, id uuid.UUID) (bool, error)
	Get(ctx context.Context, id string) (*Order, error)
	Lookup(ctx context.Context, ref string) (*Order, error)
	List(ctx context.Context, filter ListFilter) ([]Order, error)
	UpdateStatus(ctx context.Context, id string, status Status) (*Order, error)
}

type service struct {
	repo     Repository
	products ProductReader
	carts    CartClearer
	notifier Notifier
	events   messaging.Publisher
	pricing  Pricing
	number   func() string
}

type Option func(*service)

// WithOrderNumbers replaces the order number generator.
func WithOrderNumbers(fn func() string) Option {
	return func(s *service) { s.number = fn }
}

func NewService(
	repo Repository,
	products ProductReader,
	carts CartClearer,
	notifier Notifier,
	events messaging.Publisher,
	pricing Pricing,
	opts ...Option,
) Service {
	s := &service{
		repo:     repo,
		products: products,
		carts:    carts,
		notifier: notifier,
		events:   events,
		pricing:  pricing,
		number:   utils.GenerateOrderNumber,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func ParseID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return uuid.Nil, ErrInvalidOrderID
	}
	return parsed, nil
}

// mergeItems folds repeated product ids into one line.
func mergeItems(in []ItemInput) ([]ItemInput, error) {
	out := make([]ItemInput, 0, len(in))
	index := map[string]int{}
	for _, it := range in {
		if it.Quantity < 1 {
			return nil, ErrInvalidQuantity
		}
		pid, err := product.ParseID(it.ProductID)
		if err != nil {
			return nil, err
		}
		key := pid.String()
		if i, ok := index[key]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		index[key] = len(out)
		out = append(out, ItemInput{ProductID: key, Quantity: it.Quantity})
	}
	return out, nil
}

// buildOrder validates the request against the catalog and snapshots each
// line. The returned order is not persisted and has no number yet.
func (s *service) buildOrder(ctx context.Context, in PlaceInput, requireEmail bool) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "buildOrder"),
		zap.Int("item_count", len(in.Items)),
	)

	if len(in.Items) == 0 {
		return nil, ErrNoItems
	}
	if in.ShippingAddress.Empty() {
		return nil, ErrAddressRequired
	}
	email := strings.TrimSpace(in.Email)
	if email == "" {
		email = utils.GetUserEmailFromContext(ctx)
	}
	if requireEmail && email == "" {
		return nil, ErrEmailRequired
	}

	lines, err := mergeItems(in.Items)
	if err != nil {
		return nil, err
	}

	o := &Order{
		ID:              uuid.New(),
		Email:           email,
		ShippingAddress: in.ShippingAddress,
		PaymentMethod:   in.PaymentMethod,
		Status:          StatusPending,
		PaymentStatus:   PaymentUnpaid,
		Items:           make([]Item, 0, len(lines)),
	}
	if in.UserID != nil && *in.UserID != uuid.Nil {
		uid := *in.UserID
		o.UserID = &uid
	} else {
		o.GuestID = in.GuestID
	}

	subtotal := decimal.Zero
	for _, l := range lines {
		pid := uuid.MustParse(l.ProductID)
		p, err := s.products.GetByID(ctx, pid)
		if err != nil {
			return nil, err
		}
		if !p.IsActive {
			return nil, product.ErrProductNotFound
		}
		if l.Quantity > p.Stock {
			log.Info("insufficient stock",
				zap.String("product_id", p.ID.String()),
				zap.Int("requested", l.Quantity),
				zap.Int("stock", p.Stock),
			)
			return nil, fmt.Errorf("%w: %s", ErrInsufficientStock, p.Name)
		}

		lineTotal := p.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
		subtotal = subtotal.Add(lineTotal)
		o.Items = append(o.Items, Item{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Quantity:  l.Quantity,
			Subtotal:  lineTotal,
		})
	}

	o.Subtotal = subtotal
	o.ShippingFee, o.Tax, o.Total = s.pricing.Totals(subtotal)

	log.Debug("order priced",
		zap.String("subtotal", o.Subtotal.String()),
		zap.String("shipping_fee", o.ShippingFee.String()),
		zap.String("tax", o.Tax.String()),
		zap.String("total", o.Total.String()),
	)
	return o, nil
}

// persist numbers the order and stores it, drawing a new number when the
// previous one collided.
func (s *service) persist(ctx context.Context, o *Order, create func(context.Context, *Order) error) error {
	for attempt := 1; ; attempt++ {
		o.OrderNumber = s.number()
		err := create(ctx, o)
		if errors.Is(err, ErrDuplicateOrderNumber) && attempt < maxNumberAttempts {
			logger.FromCtx(ctx).Warn("order number collision, retrying",
				zap.String("order_number", o.OrderNumber),
				zap.Int("attempt", attempt),
			)
			continue
		}
		return err
	}
}

func (s *service) PlaceOrder(ctx context.Context, in PlaceInput) (*Order, notification.EmailStatus, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "PlaceOrder"),
	)

	if in.PaymentMethod == "" {
		in.PaymentMethod = MethodCashOnDelivery
	}
	if in.PaymentMethod != MethodCashOnDelivery {
		return nil, notification.EmailStatus{}, ErrUnsupportedPaymentMethod
	}

	o, err := s.buildOrder(ctx, in, false)
	if err != nil {
		return nil, notification.EmailStatus{}, err
	}
	if err := s.persist(ctx, o, s.repo.CreateWithStockDecrement); err != nil {
		return nil, notification.EmailStatus{}, err
	}

	log.Info("order placed",
		zap.String("order_id", o.ID.String()),
		zap.String("order_number", o.OrderNumber),
		zap.String("total", o.Total.String()),
	)
	s.publish(ctx, messaging.TopicOrderPlaced, o)

	status := s.notifier.OrderConfirmed(ctx, s.receipt(o))
	return o, status, nil
}

func (s *service) CreatePendingOrder(ctx context.Context, in PlaceInput) (*Order, error) {
	o, err := s.buildOrder(ctx, in, true)
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx, o, s.repo.Create); err != nil {
		return nil, err
	}

	logger.FromCtx(ctx).Info("pending order created",
		zap.String("order_id", o.ID.String()),
		zap.String("order_number", o.OrderNumber),
		zap.String("payment_method", string(o.PaymentMethod)),
	)
	s.publish(ctx, messaging.TopicOrderPlaced, o)
	return o, nil
}

func (s *service) AttachStripeSession(ctx context.Context, id uuid.UUID, sessionID string) error {
	return s.repo.AttachStripeSession(ctx, id, sessionID)
}

func (s *service) AttachPayPalOrder(ctx context.Context, id uuid.UUID, paypalOrderID string) error {
	return s.repo.AttachPayPalOrder(ctx, id, paypalOrderID)
}

func (s *service) MarkPaid(ctx context.Context, id uuid.UUID, conf PaymentConfirmation) (*Order, bool, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "MarkPaid"),
		zap.String("order_id", id.String()),
	)

	applied, err := s.repo.MarkPaid(ctx, id, conf)
	if err != nil {
		return nil, false, err
	}

	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if !applied {
		log.Info("payment already applied, skipping",
			zap.String("payment_status", string(o.PaymentStatus)),
		)
		return o, false, nil
	}

	if o.UserID != nil || o.GuestID != "" {
		identity, _ := cart.NewIdentity(o.UserID, o.GuestID)
		if _, err := s.carts.Clear(ctx, identity); err != nil {
			log.Error("failed to clear cart after payment", zap.Error(err))
		}
	}

	status := s.notifier.OrderConfirmed(ctx, s.receipt(o))
	log.Info("order paid",
		zap.String("order_number", o.OrderNumber),
		zap.Bool("customer_email_sent", status.CustomerSent),
		zap.Bool("admin_email_sent", status.AdminSent),
	)
	s.publish(ctx, messaging.TopicOrderPaid, o)
	return o, true, nil
}

func (s *service) MarkPaymentFailed(ctx context.Context, id uuid.UUID) (bool, error) {
	applied, err := s.repo.MarkPaymentFailed(ctx, id)
	if err != nil {
		return false, err
	}
	logger.FromCtx(ctx).Info("payment failure recorded",
		zap.String("order_id", id.String()),
		zap.Bool("applied", applied),
	)
	return applied, nil
}

// canView reports whether the caller in ctx owns o or is an admin.
func canView(ctx context.Context, o *Order) bool {
	if utils.IsAdmin(ctx) {
		return true
	}
	if uid, ok := utils.GetUserIDFromContext(ctx); ok && o.UserID != nil && *o.UserID == uid {
		return true
	}
	if gid := utils.GetGuestIDFromContext(ctx); gid != "" && o.GuestID == gid {
		return true
	}
	return false
}

func (s *service) Get(ctx context.Context, id string) (*Order, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	o, err := s.repo.GetByID(ctx, oid)
	if err != nil {
		return nil, err
	}
	if !canView(ctx, o) {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

// Lookup resolves an order by id or order number. It backs the payment
// result pages, which hold only the reference from the redirect.
func (s *service) Lookup(ctx context.Context, ref string) (*Order, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ErrInvalidOrderID
	}
	if oid, err := uuid.Parse(ref); err == nil {
		return s.repo.GetByID(ctx, oid)
	}
	return s.repo.GetByNumber(ctx, ref)
}

func (s *service) List(ctx context.Context, filter ListFilter) ([]Order, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	if !utils.IsAdmin(ctx) {
		uid, ok := utils.GetUserIDFromContext(ctx)
		if !ok {
			return []Order{}, nil
		}
		filter.UserID = &uid
	}
	return s.repo.List(ctx, filter)
}

func (s *service) UpdateStatus(ctx context.Context, id string, status Status) (*Order, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}

	o, err := s.repo.GetByID(ctx, oid)
	if err != nil {
		return nil, err
	}
	if !o.CanMoveTo(status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, status)
	}
	if err := s.repo.UpdateStatus(ctx, oid, o.Status, status); err != nil {
		return nil, err
	}

	o.Status = status
	o.UpdatedAt = time.Now()
	logger.FromCtx(ctx).Info("order status updated",
		zap.String("order_id", o.ID.String()),
		zap.String("status", string(status)),
	)
	return o, nil
}

func (s *service) publish(ctx context.Context, topic string, o *Order) {
	err := s.events.PublishEvent(ctx, topic, o.ID.String(), messaging.OrderEvent{
		OrderID:       o.ID.String(),
		OrderNumber:   o.OrderNumber,
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		PaymentMethod: string(o.PaymentMethod),
		Total:         o.Total.StringFixed(2),
		OccurredAt:    time.Now().UTC(),
	})
	if err != nil {
		logger.FromCtx(ctx).Warn("order event not published",
			zap.String("topic", topic),
			zap.String("order_id", o.ID.String()),
			zap.Error(err),
		)
	}
}

func (s *service) receipt(o *Order) notification.Receipt {
	lines := make([]notification.ReceiptLine, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, notification.ReceiptLine{
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Subtotal,
		})
	}
	return notification.Receipt{
		OrderID:         o.ID.String(),
		OrderNumber:     o.OrderNumber,
		Email:           o.Email,
		CustomerName:    o.ShippingAddress.FullName,
		ShippingAddress: o.ShippingAddress.String(),
		PaymentMethod:   string(o.PaymentMethod),
		PaymentStatus:   string(o.PaymentStatus),
		Currency:        s.pricing.Currency,
		Lines:           lines,
		Subtotal:        o.Subtotal,
		ShippingFee:     o.ShippingFee,
		Tax:             o.Tax,
		Total:           o.Total,
	}
}
