package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront-be/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Repository interface {
	// FindCart returns the stored cart for id with product details resolved,
	// or nil when none exists.
	FindCart(ctx context.Context, id Identity) (*Cart, error)
	// SaveCart creates the cart row when c.ID is nil and replaces its items.
	SaveCart(ctx context.Context, c *Cart) error
	DeleteCart(ctx context.Context, cartID uuid.UUID) error
	// Rekey moves a guest cart to a registered user.
	Rekey(ctx context.Context, cartID uuid.UUID, userID uuid.UUID) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindCart(ctx context.Context, id Identity) (*Cart, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "FindCart"),
		zap.String("identity", id.Key()),
	)

	column, arg := "guest_id", any(id.GuestID)
	if id.UserID != nil {
		column, arg = "user_id", *id.UserID
	}

	var (
		c       Cart
		userID  uuid.NullUUID
		guestID sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
	SELECT id, user_id, guest_id, updated_at
	FROM carts
	WHERE `+column+` = $1`, arg).Scan(&c.ID, &userID, &guestID, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		log.Error("failed to load cart", zap.Error(err))
		return nil, err
	}
	if userID.Valid {
		c.UserID = &userID.UUID
	}
	c.GuestID = guestID.String

	rows, err := r.db.QueryContext(ctx, `
	SELECT
		ci.product_id,
		ci.quantity,
		p.name,
		p.price,
		p.stock,
		COALESCE(p.images[1], '')
	FROM cart_items ci
	JOIN products p ON p.id = ci.product_id
	WHERE ci.cart_id = $1
	ORDER BY ci.created_at ASC`, c.ID)
	if err != nil {
		log.Error("failed to load cart items", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	c.Items = []Item{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.Quantity, &it.Name, &it.Price, &it.Stock, &it.Image); err != nil {
			log.Error("row scan failed", zap.Error(err))
			return nil, err
		}
		c.Items = append(c.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	c.computeTotals()
	return &c, nil
}

func (r *repository) SaveCart(ctx context.Context, c *Cart) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "SaveCart"),
		zap.String("identity", c.Identity().Key()),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
		var guestID *string
		if c.GuestID != "" {
			guestID = &c.GuestID
		}
		if err := tx.QueryRowContext(ctx, `
		INSERT INTO carts (id, user_id, guest_id)
		VALUES ($1, $2, $3)
		RETURNING updated_at`, c.ID, c.UserID, guestID).Scan(&c.UpdatedAt); err != nil {
			c.ID = uuid.Nil
			log.Error("failed to create cart", zap.Error(err))
			return fmt.Errorf("create cart: %w", err)
		}
	} else {
		if err := tx.QueryRowContext(ctx, `
		UPDATE carts SET updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`, c.ID).Scan(&c.UpdatedAt); err != nil {
			log.Error("failed to touch cart", zap.Error(err))
			return fmt.Errorf("update cart: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, c.ID); err != nil {
		return fmt.Errorf("reset cart items: %w", err)
	}

	for _, it := range c.Items {
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO cart_items (cart_id, product_id, quantity)
		VALUES ($1, $2, $3)`, c.ID, it.ProductID, it.Quantity); err != nil {
			log.Error("failed to insert cart item",
				zap.String("product_id", it.ProductID.String()),
				zap.Error(err),
			)
			return fmt.Errorf("insert cart item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	log.Debug("cart saved", zap.Int("items", len(c.Items)))
	return nil
}

func (r *repository) DeleteCart(ctx context.Context, cartID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM carts WHERE id = $1`, cartID)
	return err
}

func (r *repository) Rekey(ctx context.Context, cartID uuid.UUID, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
	UPDATE carts
	SET user_id = $2, guest_id = NULL, updated_at = NOW()
	WHERE id = $1`, cartID, userID)
	return err
}
