package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"storefront-be/internal/logger"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

const pgUniqueViolation = "23505"

type Repository interface {
	// Create persists the order and its items without touching stock.
	Create(ctx context.Context, o *Order) error
	// CreateWithStockDecrement persists the order and decrements stock for
	// every item in one transaction. Any shortfall rolls everything back.
	CreateWithStockDecrement(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	GetByNumber(ctx context.Context, number string) (*Order, error)
	List(ctx context.Context, filter ListFilter) ([]Order, error)
	AttachStripeSession(ctx context.Context, id uuid.UUID, sessionID string) error
	AttachPayPalOrder(ctx context.Context, id uuid.UUID, paypalOrderID string) error
	// MarkPaid moves an unpaid order to paid and decrements stock once.
	// It reports false when the order was not unpaid.
	MarkPaid(ctx context.Context, id uuid.UUID, conf PaymentConfirmation) (bool, error)
	MarkPaymentFailed(ctx context.Context, id uuid.UUID) (bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const orderColumns = `
	id,
	order_number,
	user_id,
	guest_id,
	email,
	shipping_address,
	payment_method,
	subtotal,
	shipping_fee,
	tax,
	total,
	status,
	payment_status,
	stripe_session_id,
	stripe_payment_intent_id,
	paypal_order_id,
	paypal_capture_id,
	paid_at,
	created_at,
	updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*Order, error) {
	var (
		o       Order
		guestID sql.NullString
	)
	err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.UserID,
		&guestID,
		&o.Email,
		&o.ShippingAddress,
		&o.PaymentMethod,
		&o.Subtotal,
		&o.ShippingFee,
		&o.Tax,
		&o.Total,
		&o.Status,
		&o.PaymentStatus,
		&o.StripeSessionID,
		&o.StripePaymentIntentID,
		&o.PayPalOrderID,
		&o.PayPalCaptureID,
		&o.PaidAt,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.GuestID = guestID.String
	o.Items = []Item{}
	return &o, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation
}

func (r *repository) insertOrder(ctx context.Context, tx *sql.Tx, o *Order) error {
	err := tx.QueryRowContext(ctx, `
	INSERT INTO orders (
		id, order_number, user_id, guest_id, email, shipping_address,
		payment_method, subtotal, shipping_fee, tax, total,
		status, payment_status
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	RETURNING created_at, updated_at
	`,
		o.ID,
		o.OrderNumber,
		o.UserID,
		nullString(o.GuestID),
		o.Email,
		o.ShippingAddress,
		o.PaymentMethod,
		o.Subtotal,
		o.ShippingFee,
		o.Tax,
		o.Total,
		o.Status,
		o.PaymentStatus,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateOrderNumber
		}
		return err
	}

	for _, it := range o.Items {
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO order_items (
			order_id, product_id, name, unit_price, quantity, subtotal
		) VALUES ($1,$2,$3,$4,$5,$6)
		`,
			o.ID, it.ProductID, it.Name, it.UnitPrice, it.Quantity, it.Subtotal,
		); err != nil {
			return fmt.Errorf("insert order item %s: %w", it.ProductID, err)
		}
	}
	return nil
}

func (r *repository) Create(ctx context.Context, o *Order) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "CreateOrder"),
		zap.String("order_number", o.OrderNumber),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := r.insertOrder(ctx, tx, o); err != nil {
		log.Error("failed to insert order", zap.Error(err))
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	log.Info("order created", zap.Int("items", len(o.Items)))
	return nil
}

func (r *repository) CreateWithStockDecrement(ctx context.Context, o *Order) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "CreateWithStockDecrement"),
		zap.String("order_number", o.OrderNumber),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := r.insertOrder(ctx, tx, o); err != nil {
		log.Error("failed to insert order", zap.Error(err))
		return err
	}

	for _, it := range o.Items {
		res, err := tx.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - $1, updated_at = NOW()
		WHERE id = $2 AND stock >= $1
		`, it.Quantity, it.ProductID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			log.Info("stock decrement rejected, rolling back",
				zap.String("product_id", it.ProductID.String()),
				zap.Int("quantity", it.Quantity),
			)
			return fmt.Errorf("%w: %s", ErrInsufficientStock, it.Name)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	log.Info("order created with stock decrement", zap.Int("items", len(o.Items)))
	return nil
}

func (r *repository) loadItems(ctx context.Context, orders []*Order) error {
	if len(orders) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*Order, len(orders))
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
		ids = append(ids, o.ID.String())
	}

	rows, err := r.db.QueryContext(ctx, `
	SELECT order_id, product_id, name, unit_price, quantity, subtotal
	FROM order_items
	WHERE order_id = ANY($1::uuid[])
	ORDER BY name ASC`, pq.Array(ids))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID uuid.UUID
			it      Item
		)
		if err := rows.Scan(&orderID, &it.ProductID, &it.Name, &it.UnitPrice, &it.Quantity, &it.Subtotal); err != nil {
			return err
		}
		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, it)
		}
	}
	return rows.Err()
}

func (r *repository) getOne(ctx context.Context, where string, arg any) (*Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT`+orderColumns+`
	FROM orders
	WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, []*Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	return r.getOne(ctx, "id = $1", id)
}

func (r *repository) GetByNumber(ctx context.Context, number string) (*Order, error) {
	return r.getOne(ctx, "order_number = $1", number)
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "ListOrders"),
	)

	where := []string{"1=1"}
	args := []any{}
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.PaymentStatus != "" {
		args = append(args, filter.PaymentStatus)
		where = append(where, fmt.Sprintf("payment_status = $%d", len(args)))
	}

	rows, err := r.db.QueryContext(ctx, `SELECT`+orderColumns+`
	FROM orders
	WHERE `+strings.Join(where, " AND ")+`
	ORDER BY created_at DESC`, args...)
	if err != nil {
		log.Error("query failed", zap.Error(err))
		return nil, err
	}

	var ptrs []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		ptrs = append(ptrs, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.loadItems(ctx, ptrs); err != nil {
		log.Error("failed to load order items", zap.Error(err))
		return nil, err
	}

	orders := make([]Order, 0, len(ptrs))
	for _, o := range ptrs {
		orders = append(orders, *o)
	}
	return orders, nil
}

func (r *repository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *repository) AttachStripeSession(ctx context.Context, id uuid.UUID, sessionID string) error {
	return r.execOne(ctx, `
	UPDATE orders
	SET stripe_session_id = $2, updated_at = NOW()
	WHERE id = $1`, id, sessionID)
}

func (r *repository) AttachPayPalOrder(ctx context.Context, id uuid.UUID, paypalOrderID string) error {
	return r.execOne(ctx, `
	UPDATE orders
	SET paypal_order_id = $2, updated_at = NOW()
	WHERE id = $1`, id, paypalOrderID)
}

func (r *repository) MarkPaid(ctx context.Context, id uuid.UUID, conf PaymentConfirmation) (bool, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "MarkPaid"),
		zap.String("order_id", id.String()),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
	UPDATE orders
	SET payment_status = 'paid',
	    status = CASE WHEN status = 'pending' THEN 'processing' ELSE status END,
	    paid_at = NOW(),
	    stripe_payment_intent_id = COALESCE($2, stripe_payment_intent_id),
	    paypal_capture_id = COALESCE($3, paypal_capture_id),
	    updated_at = NOW()
	WHERE id = $1 AND payment_status = 'unpaid'
	`, id, nullString(conf.StripePaymentIntentID), nullString(conf.PayPalCaptureID))
	if err != nil {
		log.Error("failed to mark order paid", zap.Error(err))
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	rows, err := tx.QueryContext(ctx, `
	SELECT product_id, quantity
	FROM order_items
	WHERE order_id = $1`, id)
	if err != nil {
		return false, err
	}
	type line struct {
		productID uuid.UUID
		quantity  int
	}
	var lines []line
	for rows.Next() {
		var l line
		if err := rows.Scan(&l.productID, &l.quantity); err != nil {
			rows.Close()
			return false, err
		}
		lines = append(lines, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return false, err
	}

	for _, l := range lines {
		var stock int
		err := tx.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = $1 FOR UPDATE`, l.productID).Scan(&stock)
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn("paid item no longer in catalog", zap.String("product_id", l.productID.String()))
			continue
		}
		if err != nil {
			return false, err
		}

		remaining := stock - l.quantity
		if remaining < 0 {
			log.Warn("oversold on payment confirmation",
				zap.String("product_id", l.productID.String()),
				zap.Int("stock", stock),
				zap.Int("quantity", l.quantity),
			)
			remaining = 0
		}
		if _, err := tx.ExecContext(ctx, `
		UPDATE products SET stock = $2, updated_at = NOW()
		WHERE id = $1`, l.productID, remaining); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	log.Info("order marked paid", zap.Int("items", len(lines)))
	return true, nil
}

func (r *repository) MarkPaymentFailed(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
	UPDATE orders
	SET payment_status = 'failed', updated_at = NOW()
	WHERE id = $1 AND payment_status = 'unpaid'`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) error {
	res, err := r.db.ExecContext(ctx, `
	UPDATE orders
	SET status = $3, updated_at = NOW()
	WHERE id = $1 AND status = $2`, id, from, to)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInvalidTransition
	}
	return nil
}
