package rest

import (
	"context"
	"mime/multipart"

	"storefront-be/internal/cart"
	"storefront-be/internal/checkout"
	"storefront-be/internal/notification"
	"storefront-be/internal/order"
	"storefront-be/internal/product"
	"storefront-be/internal/user"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// --- Mocks ---

type MockProductService struct {
	mock.Mock
}

func (m *MockProductService) List(ctx context.Context, filter product.ListFilter) ([]product.Product, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]product.Product), args.Error(1)
}

func (m *MockProductService) Get(ctx context.Context, id string) (*product.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*product.Product), args.Error(1)
}

func (m *MockProductService) Create(ctx context.Context, input product.CreateInput, files []*multipart.FileHeader) (*product.Product, error) {
	args := m.Called(ctx, input, files)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*product.Product), args.Error(1)
}

func (m *MockProductService) Update(ctx context.Context, id string, input product.UpdateInput, files []*multipart.FileHeader) (*product.Product, error) {
	args := m.Called(ctx, id, input, files)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*product.Product), args.Error(1)
}

func (m *MockProductService) Patch(ctx context.Context, id string, input product.PatchInput) (*product.Product, error) {
	args := m.Called(ctx, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*product.Product), args.Error(1)
}

func (m *MockProductService) SetStatus(ctx context.Context, id string, active bool) (*product.Product, error) {
	args := m.Called(ctx, id, active)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*product.Product), args.Error(1)
}

func (m *MockProductService) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type MockCartService struct {
	mock.Mock
}

func (m *MockCartService) cart(args mock.Arguments) (*cart.Cart, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cart.Cart), args.Error(1)
}

func (m *MockCartService) Get(ctx context.Context, id cart.Identity) (*cart.Cart, error) {
	return m.cart(m.Called(ctx, id))
}

func (m *MockCartService) Add(ctx context.Context, id cart.Identity, productID string, quantity int) (*cart.Cart, error) {
	return m.cart(m.Called(ctx, id, productID, quantity))
}

func (m *MockCartService) Update(ctx context.Context, id cart.Identity, productID string, quantity int) (*cart.Cart, error) {
	return m.cart(m.Called(ctx, id, productID, quantity))
}

func (m *MockCartService) Remove(ctx context.Context, id cart.Identity, productID string) (*cart.Cart, error) {
	return m.cart(m.Called(ctx, id, productID))
}

func (m *MockCartService) Clear(ctx context.Context, id cart.Identity) (*cart.Cart, error) {
	return m.cart(m.Called(ctx, id))
}

func (m *MockCartService) Merge(ctx context.Context, userID uuid.UUID, guestID string) (*cart.Cart, error) {
	return m.cart(m.Called(ctx, userID, guestID))
}

// MockOrderService covers the methods the handlers call; the rest panic
// through the nil embedded interface.
type MockOrderService struct {
	mock.Mock
	order.Service
}

func (m *MockOrderService) PlaceOrder(ctx context.Context, in order.PlaceInput) (*order.Order, notification.EmailStatus, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, notification.EmailStatus{}, args.Error(2)
	}
	return args.Get(0).(*order.Order), args.Get(1).(notification.EmailStatus), args.Error(2)
}

func (m *MockOrderService) Get(ctx context.Context, id string) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) Lookup(ctx context.Context, ref string) (*order.Order, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) List(ctx context.Context, filter order.ListFilter) ([]order.Order, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Order), args.Error(1)
}

func (m *MockOrderService) UpdateStatus(ctx context.Context, id string, status order.Status) (*order.Order, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

type MockCheckoutService struct {
	mock.Mock
}

func (m *MockCheckoutService) CreatePayment(ctx context.Context, in order.PlaceInput) (*checkout.Session, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*checkout.Session), args.Error(1)
}

func (m *MockCheckoutService) HandleStripeEvent(ctx context.Context, payload []byte, signature string) error {
	return m.Called(ctx, payload, signature).Error(0)
}

func (m *MockCheckoutService) CapturePayPal(ctx context.Context, orderID, token string) (string, error) {
	args := m.Called(ctx, orderID, token)
	return args.String(0), args.Error(1)
}

func (m *MockCheckoutService) CancelPayPal(ctx context.Context, orderID string) string {
	return m.Called(ctx, orderID).String(0)
}

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Register(ctx context.Context, in user.RegisterInput) (string, *user.User, error) {
	args := m.Called(ctx, in)
	if args.Get(1) == nil {
		return args.String(0), nil, args.Error(2)
	}
	return args.String(0), args.Get(1).(*user.User), args.Error(2)
}

func (m *MockUserService) Login(ctx context.Context, in user.LoginInput) (string, *user.User, error) {
	args := m.Called(ctx, in)
	if args.Get(1) == nil {
		return args.String(0), nil, args.Error(2)
	}
	return args.String(0), args.Get(1).(*user.User), args.Error(2)
}
