package cart

import (
	"context"
	"errors"
	"time"

	"storefront-be/internal/lock"
	"storefront-be/internal/logger"
	"storefront-be/internal/product"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProductReader is the catalog lookup the cart needs.
type ProductReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*product.Product, error)
}

type Service interface {
	Get(ctx context.Context, id Identity) (*Cart, error)
	Add(ctx context.Context, id Identity, productID string, quantity int) (*Cart, error)
	Update(ctx context.Context, id Identity, productID string, quantity int) (*Cart, error)
	Remove(ctx context.Context, id Identity, productID string) (*Cart, error)
	Clear(ctx context.Context, id Identity) (*Cart, error)
	Merge(ctx context.Context, userID uuid.UUID, guestID string) (*Cart, error)
}

type service struct {
	repo     Repository
	products ProductReader
	locker   lock.Locker
	lockWait time.Duration
}

func NewService(repo Repository, products ProductReader, locker lock.Locker, lockWait time.Duration) Service {
	return &service{
		repo:     repo,
		products: products,
		locker:   locker,
		lockWait: lockWait,
	}
}

func validIdentity(id Identity) error {
	if id.UserID == nil && id.GuestID == "" {
		return ErrMissingIdentity
	}
	return nil
}

func (s *service) load(ctx context.Context, id Identity) (*Cart, error) {
	c, err := s.repo.FindCart(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return emptyCart(id), nil
	}
	return c, nil
}

// activeProduct returns the product only if it exists and is sellable.
func (s *service) activeProduct(ctx context.Context, pid uuid.UUID) (*product.Product, error) {
	p, err := s.products.GetByID(ctx, pid)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, product.ErrProductNotFound
	}
	return p, nil
}

func (s *service) Get(ctx context.Context, id Identity) (*Cart, error) {
	if err := validIdentity(id); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

func (s *service) Add(ctx context.Context, id Identity, productID string, quantity int) (*Cart, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "AddToCart"),
		zap.String("identity", id.Key()),
		zap.String("product_id", productID),
	)

	if err := validIdentity(id); err != nil {
		return nil, err
	}
	pid, err := product.ParseID(productID)
	if err != nil {
		return nil, err
	}
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	var out *Cart
	err = lock.WithLock(ctx, s.locker, id.Key(), s.lockWait, func() error {
		p, err := s.activeProduct(ctx, pid)
		if err != nil {
			return err
		}

		c, err := s.load(ctx, id)
		if err != nil {
			return err
		}

		combined := c.Quantity(pid) + quantity
		if combined > p.Stock {
			log.Info("add rejected",
				zap.Int("requested", combined),
				zap.Int("stock", p.Stock),
			)
			return ErrInsufficientStock
		}

		c.setQuantity(pid, combined)
		if err := s.repo.SaveCart(ctx, c); err != nil {
			return err
		}

		out, err = s.load(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) Update(ctx context.Context, id Identity, productID string, quantity int) (*Cart, error) {
	if err := validIdentity(id); err != nil {
		return nil, err
	}
	pid, err := product.ParseID(productID)
	if err != nil {
		return nil, err
	}
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	if quantity == 0 {
		return s.Remove(ctx, id, productID)
	}

	var out *Cart
	err = lock.WithLock(ctx, s.locker, id.Key(), s.lockWait, func() error {
		c, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		if c.indexOf(pid) < 0 {
			return ErrCartItemNotFound
		}

		p, err := s.activeProduct(ctx, pid)
		if err != nil {
			return err
		}
		if quantity > p.Stock {
			return ErrInsufficientStock
		}

		c.setQuantity(pid, quantity)
		if err := s.repo.SaveCart(ctx, c); err != nil {
			return err
		}

		out, err = s.load(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) Remove(ctx context.Context, id Identity, productID string) (*Cart, error) {
	if err := validIdentity(id); err != nil {
		return nil, err
	}
	pid, err := product.ParseID(productID)
	if err != nil {
		return nil, err
	}

	var out *Cart
	err = lock.WithLock(ctx, s.locker, id.Key(), s.lockWait, func() error {
		c, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		if c.indexOf(pid) < 0 {
			out = c
			return nil
		}

		c.setQuantity(pid, 0)
		if err := s.repo.SaveCart(ctx, c); err != nil {
			return err
		}
		c.computeTotals()
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) Clear(ctx context.Context, id Identity) (*Cart, error) {
	if err := validIdentity(id); err != nil {
		return nil, err
	}

	var out *Cart
	err := lock.WithLock(ctx, s.locker, id.Key(), s.lockWait, func() error {
		c, err := s.repo.FindCart(ctx, id)
		if err != nil {
			return err
		}
		if c == nil {
			out = emptyCart(id)
			return nil
		}
		if len(c.Items) == 0 {
			out = c
			return nil
		}

		c.Items = []Item{}
		if err := s.repo.SaveCart(ctx, c); err != nil {
			return err
		}
		c.computeTotals()
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Merge folds the guest cart into the user's cart. Merged quantities are not
// checked against current stock; checkout re-validates them.
func (s *service) Merge(ctx context.Context, userID uuid.UUID, guestID string) (*Cart, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "MergeCart"),
		zap.String("user_id", userID.String()),
	)

	if userID == uuid.Nil {
		return nil, ErrMissingIdentity
	}
	userKey := UserIdentity(userID)
	if guestID == "" {
		return s.load(ctx, userKey)
	}
	guestKey := GuestIdentity(guestID)

	// Always user before guest so two merges cannot deadlock.
	var out *Cart
	err := lock.WithLock(ctx, s.locker, userKey.Key(), s.lockWait, func() error {
		return lock.WithLock(ctx, s.locker, guestKey.Key(), s.lockWait, func() error {
			guest, err := s.repo.FindCart(ctx, guestKey)
			if err != nil {
				return err
			}
			user, err := s.repo.FindCart(ctx, userKey)
			if err != nil {
				return err
			}

			switch {
			case guest == nil || len(guest.Items) == 0:
				log.Debug("nothing to merge")
			case user == nil:
				if err := s.repo.Rekey(ctx, guest.ID, userID); err != nil {
					return err
				}
				log.Info("guest cart re-keyed", zap.Int("items", len(guest.Items)))
			default:
				for _, it := range guest.Items {
					user.setQuantity(it.ProductID, user.Quantity(it.ProductID)+it.Quantity)
				}
				if err := s.repo.SaveCart(ctx, user); err != nil {
					return err
				}
				if err := s.repo.DeleteCart(ctx, guest.ID); err != nil {
					return err
				}
				log.Info("guest cart merged", zap.Int("items", len(user.Items)))
			}

			out, err = s.load(ctx, userKey)
			return err
		})
	})
	if err != nil {
		if errors.Is(err, lock.ErrLockTimeout) {
			log.Warn("merge gate timeout", zap.Error(err))
		}
		return nil, err
	}
	return out, nil
}
