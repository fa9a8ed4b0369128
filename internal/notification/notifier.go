// Package notification sends the order confirmation and admin notification
// emails. Delivery failures are reported, never returned.
package notification

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"

	"storefront-be/internal/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type ReceiptLine struct {
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}

// Receipt is the order snapshot rendered into emails.
type Receipt struct {
	OrderID         string
	OrderNumber     string
	Email           string
	CustomerName    string
	ShippingAddress string
	PaymentMethod   string
	PaymentStatus   string
	Currency        string
	Lines           []ReceiptLine
	Subtotal        decimal.Decimal
	ShippingFee     decimal.Decimal
	Tax             decimal.Decimal
	Total           decimal.Decimal
}

// EmailStatus reports what happened to each email of one notification.
type EmailStatus struct {
	CustomerSent bool     `json:"customerSent"`
	AdminSent    bool     `json:"adminSent"`
	Errors       []string `json:"errors,omitempty"`
}

var (
	errNoCustomerEmail = errors.New("customer email missing")
	errNoAdminEmail    = errors.New("admin email not configured")
)

var customerTmpl = template.Must(template.New("customer").Parse(`<h2>Thank you for your order{{if .CustomerName}}, {{.CustomerName}}{{end}}!</h2>
<p>Order <strong>{{.OrderNumber}}</strong> has been received.</p>
<table>
<tr><th>Item</th><th>Qty</th><th>Price</th><th>Subtotal</th></tr>
{{range .Lines}}<tr><td>{{.Name}}</td><td>{{.Quantity}}</td><td>{{.UnitPrice.StringFixed 2}}</td><td>{{.Subtotal.StringFixed 2}}</td></tr>
{{end}}</table>
<p>Subtotal: {{.Subtotal.StringFixed 2}}<br>Shipping: {{.ShippingFee.StringFixed 2}}<br>Tax: {{.Tax.StringFixed 2}}<br>
<strong>Total: {{.Total.StringFixed 2}} {{.Currency}}</strong></p>
<p>Payment: {{.PaymentMethod}} ({{.PaymentStatus}})</p>
<p>Ship to: {{.ShippingAddress}}</p>`))

var adminTmpl = template.Must(template.New("admin").Parse(`<h2>New order {{.OrderNumber}}</h2>
<p>Customer: {{.Email}}</p>
<p>Items: {{len .Lines}}, total {{.Total.StringFixed 2}} {{.Currency}}</p>
<p>Payment: {{.PaymentMethod}} ({{.PaymentStatus}})</p>
<p>Ship to: {{.ShippingAddress}}</p>`))

type Notifier struct {
	mailer     Mailer
	adminEmail string
}

func NewNotifier(mailer Mailer, adminEmail string) *Notifier {
	return &Notifier{mailer: mailer, adminEmail: adminEmail}
}

// OrderConfirmed sends the customer confirmation and the admin notification.
func (n *Notifier) OrderConfirmed(ctx context.Context, r Receipt) EmailStatus {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "notification"),
		zap.String("method", "OrderConfirmed"),
		zap.String("order_number", r.OrderNumber),
	)

	var (
		status EmailStatus
		errs   error
	)

	if r.Email == "" {
		errs = multierr.Append(errs, errNoCustomerEmail)
	} else if err := n.render(ctx, customerTmpl, r.Email, "Order confirmation "+r.OrderNumber, r); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("customer email: %w", err))
	} else {
		status.CustomerSent = true
	}

	if n.adminEmail == "" {
		errs = multierr.Append(errs, errNoAdminEmail)
	} else if err := n.render(ctx, adminTmpl, n.adminEmail, "New order "+r.OrderNumber, r); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("admin email: %w", err))
	} else {
		status.AdminSent = true
	}

	for _, err := range multierr.Errors(errs) {
		status.Errors = append(status.Errors, err.Error())
	}
	if errs != nil {
		log.Warn("order emails incomplete",
			zap.Bool("customer_sent", status.CustomerSent),
			zap.Bool("admin_sent", status.AdminSent),
			zap.Error(errs),
		)
	} else {
		log.Info("order emails sent")
	}
	return status
}

func (n *Notifier) render(ctx context.Context, t *template.Template, to, subject string, r Receipt) error {
	var body bytes.Buffer
	if err := t.Execute(&body, r); err != nil {
		return err
	}
	return n.mailer.Send(ctx, Message{
		To:       []string{to},
		Subject:  subject,
		HTMLBody: body.String(),
	})
}
