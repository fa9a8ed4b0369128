package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"storefront-be/internal/cart"
	"storefront-be/internal/checkout"
	"storefront-be/internal/config"
	"storefront-be/internal/db"
	"storefront-be/internal/lock"
	"storefront-be/internal/logger"
	"storefront-be/internal/messaging"
	"storefront-be/internal/messaging/kafka"
	"storefront-be/internal/metrics"
	"storefront-be/internal/middleware"
	"storefront-be/internal/notification"
	"storefront-be/internal/order"
	"storefront-be/internal/payment"
	"storefront-be/internal/product"
	"storefront-be/internal/rest"
	"storefront-be/internal/user"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// seams for tests
var (
	initDBFunc      = db.InitDB
	startServerFunc = func(srv *http.Server) error { return srv.ListenAndServe() }
)

// app is the wired process: the HTTP handler plus everything that must be
// closed on shutdown.
type app struct {
	handler http.Handler
	closers []func() error
}

func (a *app) Close() error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i]())
	}
	return err
}

func newMailer(cfg *config.Config) notification.Mailer {
	if cfg.SMTPHost == "" {
		logger.L().Warn("SMTP_HOST not set, emails are disabled")
		return notification.NopMailer{}
	}
	return notification.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom)
}

func newPublisher(cfg *config.Config) (messaging.Publisher, func() error) {
	if len(cfg.KafkaBrokers) == 0 {
		logger.L().Info("KAFKA_BROKERS not set, order events are not published")
		return messaging.NopPublisher{}, func() error { return nil }
	}
	p := kafka.NewPublisher(cfg.KafkaBrokers)
	return p, p.Close
}

func newServer(cfg *config.Config, database *sql.DB) (*app, error) {
	reg := metrics.Default
	a := &app{}

	images, err := product.NewDiskImageStore(cfg.UploadDir, "/uploads")
	if err != nil {
		return nil, err
	}

	productRepo := product.NewRepository(database)
	productSvc := product.NewService(productRepo, images)

	locker := lock.NewKeyedMutex(lock.WithMetrics(reg))
	cartSvc := cart.NewService(cart.NewRepository(database), productRepo, locker, cfg.CartLockTimeout)

	publisher, closePublisher := newPublisher(cfg)
	a.closers = append(a.closers, closePublisher)

	orderSvc := order.NewService(
		order.NewRepository(database),
		productRepo,
		cartSvc,
		notification.NewNotifier(newMailer(cfg), cfg.AdminEmail),
		publisher,
		order.Pricing{
			ShippingFee: cfg.ShippingFee,
			TaxRate:     cfg.TaxRate,
			Currency:    cfg.Currency,
		},
	)

	checkoutSvc := checkout.NewService(
		orderSvc,
		payment.NewStripeClient(cfg.StripeSecretKey, cfg.StripeWebhookSecret),
		payment.NewPayPalClient(cfg.PayPalClientID, cfg.PayPalClientSecret, cfg.PayPalMode),
		payment.NewRepository(database),
		checkout.Settings{
			ClientURL: cfg.ClientURL,
			ServerURL: cfg.ServerURL,
			Currency:  cfg.Currency,
			BrandName: cfg.StoreName,
		},
		reg,
	)

	tokens := user.NewTokens(cfg.JWTSecret)
	userSvc := user.NewService(user.NewRepository(database), tokens)

	h := rest.NewHandler(productSvc, cartSvc, orderSvc, checkoutSvc, userSvc, reg)
	h.SecureCookies = cfg.AppEnv == "production"

	limiter := middleware.NewRateLimiter(10 * time.Minute)
	a.closers = append(a.closers, func() error { limiter.Close(); return nil })

	a.handler = rest.NewRouter(h, rest.RouterConfig{
		UploadDir:     cfg.UploadDir,
		AllowedOrigin: cfg.ClientURL,
		Tokens:        tokens,
		Limiter:       limiter,
	})
	return a, nil
}

func run(ctx context.Context) error {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()
	log := logger.L()

	if cfg.JWTSecret == "" {
		log.Warn("JWT_SECRET not set, login and registration will fail")
	}

	database := initDBFunc(cfg)
	defer database.Close()

	a, err := newServer(cfg, database)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("shutdown cleanup failed", zap.Error(err))
		}
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.AppEnv))
		if err := startServerFunc(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		logger.L().Fatal("server stopped", zap.Error(err))
	}
}
