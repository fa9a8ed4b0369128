package order

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
	PaymentFailed PaymentStatus = "failed"
)

type PaymentMethod string

const (
	MethodCashOnDelivery PaymentMethod = "cod"
	MethodStripe         PaymentMethod = "stripe"
	MethodPayPal         PaymentMethod = "paypal"
)

// transitions lists the fulfillment moves an operator may make.
// pending -> processing is reserved for payment confirmation, except for
// cash on delivery orders (see Order.CanMoveTo).
var transitions = map[Status][]Status{
	StatusPending:    {StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

func (s Status) CanMoveTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CanMoveTo reports whether an operator may move the order to next. Cash on
// delivery orders have no payment confirmation, so the operator accepts them.
func (o *Order) CanMoveTo(next Status) bool {
	if o.PaymentMethod == MethodCashOnDelivery && o.Status == StatusPending && next == StatusProcessing {
		return true
	}
	return o.Status.CanMoveTo(next)
}

type Address struct {
	FullName   string `json:"fullName"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

func (a Address) Empty() bool {
	return strings.TrimSpace(a.Line1) == "" ||
		strings.TrimSpace(a.City) == "" ||
		strings.TrimSpace(a.Country) == ""
}

func (a Address) String() string {
	parts := []string{a.FullName, a.Line1, a.Line2, a.City, a.State, a.PostalCode, a.Country}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}

// Item is the frozen line of an order. It does not follow later catalog edits.
type Item struct {
	ProductID uuid.UUID       `json:"productId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type Order struct {
	ID                    uuid.UUID       `json:"id"`
	OrderNumber           string          `json:"orderNumber"`
	UserID                *uuid.UUID      `json:"userId,omitempty"`
	GuestID               string          `json:"guestId,omitempty"`
	Email                 string          `json:"email"`
	Items                 []Item          `json:"items"`
	ShippingAddress       Address         `json:"shippingAddress"`
	PaymentMethod         PaymentMethod   `json:"paymentMethod"`
	Subtotal              decimal.Decimal `json:"subtotal"`
	ShippingFee           decimal.Decimal `json:"shippingFee"`
	Tax                   decimal.Decimal `json:"tax"`
	Total                 decimal.Decimal `json:"total"`
	Status                Status          `json:"status"`
	PaymentStatus         PaymentStatus   `json:"paymentStatus"`
	StripeSessionID       *string         `json:"stripeSessionId,omitempty"`
	StripePaymentIntentID *string         `json:"stripePaymentIntentId,omitempty"`
	PayPalOrderID         *string         `json:"paypalOrderId,omitempty"`
	PayPalCaptureID       *string         `json:"paypalCaptureId,omitempty"`
	PaidAt                *time.Time      `json:"paidAt,omitempty"`
	CreatedAt             time.Time       `json:"createdAt"`
	UpdatedAt             time.Time       `json:"updatedAt"`
}

type ItemInput struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// PlaceInput is a checkout request. UserID and GuestID identify the customer
// whose cart is cleared once the order is paid.
type PlaceInput struct {
	Items           []ItemInput   `json:"items"`
	ShippingAddress Address       `json:"shippingAddress"`
	Email           string        `json:"email"`
	PaymentMethod   PaymentMethod `json:"paymentMethod"`
	UserID          *uuid.UUID    `json:"-"`
	GuestID         string        `json:"-"`
}

// PaymentConfirmation carries the processor reference stored on a paid order.
type PaymentConfirmation struct {
	StripePaymentIntentID string
	PayPalCaptureID       string
}

type ListFilter struct {
	UserID        *uuid.UUID
	Status        Status
	PaymentStatus PaymentStatus
}

// Pricing holds the checkout charges applied on top of the item subtotal.
type Pricing struct {
	ShippingFee decimal.Decimal
	TaxRate     decimal.Decimal
	Currency    string
}

// Totals computes shipping, tax and total for a subtotal. Tax is rounded to cents.
func (p Pricing) Totals(subtotal decimal.Decimal) (shipping, tax, total decimal.Decimal) {
	shipping = p.ShippingFee
	tax = subtotal.Mul(p.TaxRate).Round(2)
	total = subtotal.Add(shipping).Add(tax)
	return shipping, tax, total
}

// Value stores the address as JSONB.
func (a Address) Value() (driver.Value, error) {
	return json.Marshal(a)
}

func (a *Address) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = Address{}
		return nil
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return fmt.Errorf("order: cannot scan %T into Address", src)
	}
}
