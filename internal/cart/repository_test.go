package cart

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_FindCart(t *testing.T) {
	ctx := context.Background()
	cartID := uuid.New()
	productID := uuid.New()
	uid := uuid.New()

	t.Run("NotFound", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewRepository(db)

		mock.ExpectQuery(`SELECT id, user_id, guest_id, updated_at\s+FROM carts\s+WHERE guest_id = \$1`).
			WithArgs("g1").
			WillReturnError(sql.ErrNoRows)

		c, err := repo.FindCart(ctx, GuestIdentity("g1"))
		assert.NoError(t, err)
		assert.Nil(t, c)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("WithItems", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewRepository(db)

		mock.ExpectQuery(`FROM carts\s+WHERE user_id = \$1`).
			WithArgs(uid).
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "guest_id", "updated_at"}).
				AddRow(cartID.String(), uid.String(), nil, time.Now()))
		mock.ExpectQuery(`FROM cart_items ci\s+JOIN products p`).
			WithArgs(cartID).
			WillReturnRows(sqlmock.NewRows([]string{"product_id", "quantity", "name", "price", "stock", "image"}).
				AddRow(productID.String(), 3, "Mug", "4.00", 10, "/uploads/a.jpg"))

		c, err := repo.FindCart(ctx, UserIdentity(uid))
		require.NoError(t, err)
		require.NotNil(t, c)
		assert.Equal(t, cartID, c.ID)
		assert.Equal(t, uid, *c.UserID)
		assert.Empty(t, c.GuestID)
		require.Len(t, c.Items, 1)
		assert.Equal(t, "Mug", c.Items[0].Name)
		assert.True(t, c.Total.Equal(decimal.NewFromInt(12)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ItemQueryError", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewRepository(db)

		mock.ExpectQuery(`FROM carts`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "guest_id", "updated_at"}).
				AddRow(cartID.String(), nil, "g1", time.Now()))
		mock.ExpectQuery(`FROM cart_items`).WillReturnError(errors.New("boom"))

		_, err = repo.FindCart(ctx, GuestIdentity("g1"))
		assert.Error(t, err)
	})
}

func TestRepository_SaveCart(t *testing.T) {
	ctx := context.Background()
	productID := uuid.New()

	t.Run("CreatesCart", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewRepository(db)

		c := emptyCart(GuestIdentity("g1"))
		c.setQuantity(productID, 2)

		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO carts`).
			WithArgs(sqlmock.AnyArg(), nil, "g1").
			WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(time.Now()))
		mock.ExpectExec(`DELETE FROM cart_items WHERE cart_id = \$1`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`INSERT INTO cart_items`).
			WithArgs(sqlmock.AnyArg(), productID, 2).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, repo.SaveCart(ctx, c))
		assert.NotEqual(t, uuid.Nil, c.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("UpdatesExisting", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewRepository(db)

		uid := uuid.New()
		c := emptyCart(UserIdentity(uid))
		c.ID = uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE carts SET updated_at = NOW\(\)`).
			WithArgs(c.ID).
			WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(time.Now()))
		mock.ExpectExec(`DELETE FROM cart_items`).
			WithArgs(c.ID).
			WillReturnResult(sqlmock.NewResult(0, 3))
		mock.ExpectCommit()

		require.NoError(t, repo.SaveCart(ctx, c))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ItemInsertFailureRollsBack", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewRepository(db)

		c := emptyCart(GuestIdentity("g1"))
		c.ID = uuid.New()
		c.setQuantity(productID, 1)

		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE carts`).
			WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(time.Now()))
		mock.ExpectExec(`DELETE FROM cart_items`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`INSERT INTO cart_items`).WillReturnError(errors.New("fk violation"))
		mock.ExpectRollback()

		err = repo.SaveCart(ctx, c)
		assert.ErrorContains(t, err, "insert cart item")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepository_RekeyAndDelete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewRepository(db)

	cartID, uid := uuid.New(), uuid.New()

	mock.ExpectExec(`UPDATE carts\s+SET user_id = \$2, guest_id = NULL`).
		WithArgs(cartID, uid).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM carts WHERE id = \$1`).
		WithArgs(cartID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Rekey(context.Background(), cartID, uid))
	require.NoError(t, repo.DeleteCart(context.Background(), cartID))
	assert.NoError(t, mock.ExpectationsWereMet())
}
