package order

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orderCols = []string{
	"id", "order_number", "user_id", "guest_id", "email", "shipping_address", "payment_method",
	"subtotal", "shipping_fee", "tax", "total", "status", "payment_status",
	"stripe_session_id", "stripe_payment_intent_id", "paypal_order_id", "paypal_capture_id",
	"paid_at", "created_at", "updated_at",
}

func newOrder(items ...Item) *Order {
	return &Order{
		ID:              uuid.New(),
		OrderNumber:     "ORD-1",
		Email:           "a@example.com",
		ShippingAddress: Address{Line1: "1 Main", City: "X", Country: "Canada"},
		PaymentMethod:   MethodCashOnDelivery,
		Subtotal:        decimal.NewFromInt(4),
		ShippingFee:     decimal.Zero,
		Tax:             decimal.Zero,
		Total:           decimal.NewFromInt(4),
		Status:          StatusPending,
		PaymentStatus:   PaymentUnpaid,
		Items:           items,
	}
}

func TestRepository_CreateWithStockDecrement(t *testing.T) {
	ctx := context.Background()
	a := Item{ProductID: uuid.New(), Name: "A", UnitPrice: decimal.NewFromInt(1), Quantity: 2, Subtotal: decimal.NewFromInt(2)}
	b := Item{ProductID: uuid.New(), Name: "B", UnitPrice: decimal.NewFromInt(2), Quantity: 1, Subtotal: decimal.NewFromInt(2)}

	t.Run("Success", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewRepository(db)
		o := newOrder(a)

		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO orders`).
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(time.Now(), time.Now()))
		mock.ExpectExec(`INSERT INTO order_items`).
			WithArgs(o.ID, a.ProductID, "A", sqlmock.AnyArg(), 2, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE products\s+SET stock = stock - \$1, updated_at = NOW\(\)\s+WHERE id = \$2 AND stock >= \$1`).
			WithArgs(2, a.ProductID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, repo.CreateWithStockDecrement(ctx, o))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("LaterItemShortRollsBack", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewRepository(db)
		o := newOrder(a, b)

		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO orders`).
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(time.Now(), time.Now()))
		mock.ExpectExec(`INSERT INTO order_items`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO order_items`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE products`).WithArgs(2, a.ProductID).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE products`).WithArgs(1, b.ProductID).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err = repo.CreateWithStockDecrement(ctx, o)
		assert.ErrorIs(t, err, ErrInsufficientStock)
		assert.ErrorContains(t, err, "B")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DuplicateOrderNumber", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO orders`).WillReturnError(&pq.Error{Code: "23505"})
		mock.ExpectRollback()

		err = repo.CreateWithStockDecrement(ctx, newOrder(a))
		assert.ErrorIs(t, err, ErrDuplicateOrderNumber)
	})
}

func TestRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewRepository(db)

	o := newOrder(Item{ProductID: uuid.New(), Name: "A", Quantity: 1})
	o.GuestID = "g1"

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO orders`).
		WithArgs(o.ID, "ORD-1", nil, "g1", "a@example.com", sqlmock.AnyArg(), "cod",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "pending", "unpaid").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(time.Now(), time.Now()))
	mock.ExpectExec(`INSERT INTO order_items`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), o))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	uid := uuid.New()
	pid := uuid.New()

	t.Run("Found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewRepository(db)

		paidAt := time.Now()
		mock.ExpectQuery(`(?s)SELECT.*FROM orders\s+WHERE id = \$1`).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(orderCols).AddRow(
				id.String(), "ORD-9", uid.String(), nil, "a@example.com",
				[]byte(`{"line1":"1 Main","city":"Paris","country":"France"}`), "stripe",
				"10.00", "5.00", "0.80", "15.80", "processing", "paid",
				"cs_1", "pi_1", nil, nil, paidAt, time.Now(), time.Now(),
			))
		mock.ExpectQuery(`FROM order_items\s+WHERE order_id = ANY\(\$1::uuid\[\]\)`).
			WillReturnRows(sqlmock.NewRows([]string{"order_id", "product_id", "name", "unit_price", "quantity", "subtotal"}).
				AddRow(id.String(), pid.String(), "Mug", "5.00", 2, "10.00"))

		o, err := repo.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "ORD-9", o.OrderNumber)
		assert.Equal(t, uid, *o.UserID)
		assert.Equal(t, "France", o.ShippingAddress.Country)
		assert.Equal(t, MethodStripe, o.PaymentMethod)
		assert.Equal(t, PaymentPaid, o.PaymentStatus)
		assert.Equal(t, "pi_1", *o.StripePaymentIntentID)
		assert.Nil(t, o.PayPalOrderID)
		require.NotNil(t, o.PaidAt)
		require.Len(t, o.Items, 1)
		assert.Equal(t, 2, o.Items[0].Quantity)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewRepository(db)

		mock.ExpectQuery(`FROM orders`).WillReturnError(sql.ErrNoRows)
		_, err = repo.GetByID(ctx, id)
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})
}

func TestRepository_MarkPaid(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	pid := uuid.New()

	t.Run("FirstApplicationDecrementsStock", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec(`(?s)UPDATE orders\s+SET payment_status = 'paid'.*WHERE id = \$1 AND payment_status = 'unpaid'`).
			WithArgs(id, "pi_1", nil).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT product_id, quantity\s+FROM order_items`).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows([]string{"product_id", "quantity"}).AddRow(pid.String(), 2))
		mock.ExpectQuery(`SELECT stock FROM products WHERE id = \$1 FOR UPDATE`).
			WithArgs(pid).
			WillReturnRows(sqlmock.NewRows([]string{"stock"}).AddRow(5))
		mock.ExpectExec(`UPDATE products SET stock = \$2`).
			WithArgs(pid, 3).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		applied, err := repo.MarkPaid(ctx, id, PaymentConfirmation{StripePaymentIntentID: "pi_1"})
		require.NoError(t, err)
		assert.True(t, applied)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("AlreadyPaidIsNoop", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE orders`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		applied, err := repo.MarkPaid(ctx, id, PaymentConfirmation{PayPalCaptureID: "cap_1"})
		require.NoError(t, err)
		assert.False(t, applied)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("OversellClampsAtZero", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE orders`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`FROM order_items`).
			WillReturnRows(sqlmock.NewRows([]string{"product_id", "quantity"}).AddRow(pid.String(), 4))
		mock.ExpectQuery(`SELECT stock FROM products`).
			WillReturnRows(sqlmock.NewRows([]string{"stock"}).AddRow(1))
		mock.ExpectExec(`UPDATE products SET stock = \$2`).
			WithArgs(pid, 0).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		applied, err := repo.MarkPaid(ctx, id, PaymentConfirmation{})
		require.NoError(t, err)
		assert.True(t, applied)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("StockUpdateErrorRollsBack", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE orders`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`FROM order_items`).
			WillReturnRows(sqlmock.NewRows([]string{"product_id", "quantity"}).AddRow(pid.String(), 1))
		mock.ExpectQuery(`SELECT stock FROM products`).WillReturnError(errors.New("lock wait"))
		mock.ExpectRollback()

		_, err = repo.MarkPaid(ctx, id, PaymentConfirmation{})
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepository_MarkPaymentFailed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewRepository(db)
	id := uuid.New()

	mock.ExpectExec(`SET payment_status = 'failed'`).WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 1))
	applied, err := repo.MarkPaymentFailed(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, applied)

	mock.ExpectExec(`SET payment_status = 'failed'`).WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 0))
	applied, err = repo.MarkPaymentFailed(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestRepository_AttachAndUpdateStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewRepository(db)
	ctx := context.Background()
	id := uuid.New()

	mock.ExpectExec(`SET stripe_session_id = \$2`).WithArgs(id, "cs_1").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.AttachStripeSession(ctx, id, "cs_1"))

	mock.ExpectExec(`SET paypal_order_id = \$2`).WithArgs(id, "PP-1").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.AttachPayPalOrder(ctx, id, "PP-1"), ErrOrderNotFound)

	mock.ExpectExec(`SET status = \$3`).WithArgs(id, "processing", "shipped").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.UpdateStatus(ctx, id, StatusProcessing, StatusShipped), ErrInvalidTransition)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewRepository(db)
	uid := uuid.New()

	mock.ExpectQuery(`WHERE 1=1 AND user_id = \$1 AND status = \$2\s+ORDER BY created_at DESC`).
		WithArgs(uid, "pending").
		WillReturnRows(sqlmock.NewRows(orderCols))

	orders, err := repo.List(context.Background(), ListFilter{UserID: &uid, Status: StatusPending})
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.NoError(t, mock.ExpectationsWereMet())
}
