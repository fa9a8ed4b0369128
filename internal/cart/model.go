package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Identity scopes a cart to exactly one of a registered user or a guest session.
type Identity struct {
	UserID  *uuid.UUID
	GuestID string
}

// NewIdentity picks the user id when present and falls back to the guest session.
func NewIdentity(userID *uuid.UUID, guestID string) (Identity, error) {
	if userID != nil && *userID != uuid.Nil {
		id := *userID
		return Identity{UserID: &id}, nil
	}
	if guestID != "" {
		return Identity{GuestID: guestID}, nil
	}
	return Identity{}, ErrMissingIdentity
}

func UserIdentity(userID uuid.UUID) Identity {
	return Identity{UserID: &userID}
}

func GuestIdentity(guestID string) Identity {
	return Identity{GuestID: guestID}
}

func (i Identity) IsUser() bool {
	return i.UserID != nil
}

// Key is the gate key for the identity.
func (i Identity) Key() string {
	if i.UserID != nil {
		return "user:" + i.UserID.String()
	}
	return "guest:" + i.GuestID
}

type Item struct {
	ProductID uuid.UUID       `json:"productId"`
	Quantity  int             `json:"quantity"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image,omitempty"`
	Stock     int             `json:"stock"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type Cart struct {
	ID        uuid.UUID       `json:"id"`
	UserID    *uuid.UUID      `json:"userId,omitempty"`
	GuestID   string          `json:"guestId,omitempty"`
	Items     []Item          `json:"items"`
	Total     decimal.Decimal `json:"total"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// emptyCart is the cart returned for an identity without a stored cart.
// Its ID stays uuid.Nil until the cart is first saved.
func emptyCart(id Identity) *Cart {
	return &Cart{
		UserID:  id.UserID,
		GuestID: id.GuestID,
		Items:   []Item{},
		Total:   decimal.Zero,
	}
}

func (c *Cart) Identity() Identity {
	if c.UserID != nil {
		return UserIdentity(*c.UserID)
	}
	return GuestIdentity(c.GuestID)
}

func (c *Cart) indexOf(productID uuid.UUID) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Quantity returns the quantity of productID in the cart, or zero.
func (c *Cart) Quantity(productID uuid.UUID) int {
	if i := c.indexOf(productID); i >= 0 {
		return c.Items[i].Quantity
	}
	return 0
}

// setQuantity overwrites or appends a line. A quantity of zero removes it.
func (c *Cart) setQuantity(productID uuid.UUID, qty int) {
	i := c.indexOf(productID)
	switch {
	case qty <= 0 && i >= 0:
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
	case qty <= 0:
	case i >= 0:
		c.Items[i].Quantity = qty
	default:
		c.Items = append(c.Items, Item{ProductID: productID, Quantity: qty})
	}
}

func (c *Cart) computeTotals() {
	total := decimal.Zero
	for i := range c.Items {
		c.Items[i].Subtotal = c.Items[i].Price.Mul(decimal.NewFromInt(int64(c.Items[i].Quantity)))
		total = total.Add(c.Items[i].Subtotal)
	}
	c.Total = total
}
