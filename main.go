package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tixly-ticketing/internal/analytics"
	analytics_api "tixly-ticketing/internal/analytics/api"
	"tixly-ticketing/internal/auth"
	"tixly-ticketing/internal/cart"
	cartredis "tixly-ticketing/internal/cart/redis"
	"tixly-ticketing/internal/catalog"
	"tixly-ticketing/internal/catalog/catalog_api"
	catalogdb "tixly-ticketing/internal/catalog/db"
	"tixly-ticketing/internal/clock"
	"tixly-ticketing/internal/config"
	"tixly-ticketing/internal/database"
	"tixly-ticketing/internal/database/migrations"
	"tixly-ticketing/internal/inventory"
	inventorydb "tixly-ticketing/internal/inventory/db"
	inventoryredis "tixly-ticketing/internal/inventory/redis"
	"tixly-ticketing/internal/kafka"
	"tixly-ticketing/internal/logger"
	"tixly-ticketing/internal/order"
	orderdb "tixly-ticketing/internal/order/db"
	orderkafka "tixly-ticketing/internal/order/kafka"
	"tixly-ticketing/internal/order/order_api"
	"tixly-ticketing/internal/payment"
	"tixly-ticketing/internal/payment/storage"
	"tixly-ticketing/internal/pricing"
	"tixly-ticketing/internal/sse"
	"tixly-ticketing/internal/tickets"
	ticketdb "tixly-ticketing/internal/tickets/db"
	"tixly-ticketing/internal/tickets/qr_genrator"
	"tixly-ticketing/internal/tickets/ticket_api"
	"tixly-ticketing/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
)

// paymentProcessor charges orders and parses the processor's callbacks.
type paymentProcessor interface {
	payment.Gateway
	order_api.WebhookParser
}

func newPaymentProcessor(cfg config.PaymentConfig, log *logger.Logger) (paymentProcessor, error) {
	if cfg.StripeSecretKey == "" {
		log.Warn("PAYMENT", "STRIPE_SECRET_KEY not set, using the simulated gateway")
		return payment.NewSimulatedGateway(log), nil
	}
	return payment.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret, log)
}

func newVerifier(ctx context.Context, cfg config.AuthConfig, log *logger.Logger) (auth.Verifier, error) {
	var chain auth.Chain
	if cfg.JWTSecret != "" {
		chain = append(chain, auth.NewHMACVerifier(cfg.JWTSecret))
		log.Info("AUTH", "HMAC token verification enabled")
	}
	if cfg.OIDCIssuer != "" {
		v, err := auth.NewOIDCVerifier(ctx, cfg.OIDCIssuer, cfg.ClientID)
		if err != nil {
			return nil, fmt.Errorf("oidc verifier: %w", err)
		}
		chain = append(chain, v)
		log.Info("AUTH", fmt.Sprintf("OIDC token verification enabled for %s", cfg.OIDCIssuer))
	}
	if len(chain) == 0 {
		return nil, errors.New("no token verifier configured, set JWT_SECRET or OIDC_ISSUER")
	}
	return chain, nil
}

func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.LogAPI(r.Method, r.URL.Path, ww.Status(), time.Since(start))
		})
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()
	log := logger.NewLogger("ticketing", logger.ParseLevel(cfg.LogLevel))
	defer log.Close()

	log.Info("APP", "Starting ticketing service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---------------- STORAGE ----------------

	bunDB, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	if cfg.Migration.AutoMigrate {
		runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{MigrationsDir: cfg.Migration.Dir}, log)
		// The migrator shares bunDB's connection pool, so it is not closed here.
		if err := runner.RunMigrations(); err != nil {
			log.Fatal("MIGRATION", err.Error())
		}
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("REDIS", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("REDIS", fmt.Sprintf("Redis connection successful to %s (DB: %d)", cfg.Redis.Addr, cfg.Redis.DB))

	// ---------------- SERVICES ----------------

	clk := clock.NewSystem()

	var locker inventory.Locker = inventory.NewLocalLocker()
	if cfg.Redis.DistributedLocks {
		locker = inventoryredis.NewLocker(redisClient, cfg.Redis.LockTTL, log)
		log.Info("INVENTORY", "Using Redis locks for inventory writes")
	}
	ledger := inventory.NewLedger(&inventorydb.DB{Bun: bunDB}, locker, clk, log)

	catalogService := catalog.NewCatalogService(&catalogdb.DB{Bun: bunDB}, clk, log)
	builder := cart.NewBuilder(catalogService, ledger, clk, cfg.Checkout.CartTTL)
	carts := cartredis.NewStore(redisClient, clk)
	pricer := pricing.NewCalculator(cfg.Pricing.Rates())

	processor, err := newPaymentProcessor(cfg.Payment, log)
	if err != nil {
		log.Fatal("PAYMENT", err.Error())
	}
	payments := storage.NewStore(bunDB, log)

	qrGen, err := qr.NewQRGenerator(cfg.Tickets.QRSecret)
	if err != nil {
		log.Fatal("TICKETS", err.Error())
	}
	ticketService := tickets.NewTicketService(&ticketdb.DB{Bun: bunDB}, qrGen, clk, log)
	hub := sse.NewSalesHub(clk)

	verifier, err := newVerifier(ctx, cfg.Auth, log)
	if err != nil {
		log.Fatal("AUTH", err.Error())
	}
	authn := auth.NewAuthenticator(verifier, log)

	orderService := order.NewOrderService(&orderdb.DB{Bun: bunDB}, ledger, carts, pricer, processor, clk, log)
	orderService.Tickets = ticketService
	orderService.Payments = payments
	orderService.ProcessingTimeout = cfg.Checkout.ProcessingTimeout
	orderService.RestockOnRefund = cfg.Checkout.RestockOnRefund

	// ---------------- KAFKA ----------------

	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, cfg.Kafka.Topics.All(), log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		producer := kafka.NewProducer(cfg.Kafka.Brokers, log)
		defer producer.Close()
		orderService.Kafka = orderkafka.NewProducer(producer, cfg.Kafka.Topics, clk)

		// Every replica reads every completion so its own stream clients see
		// sales made through the others.
		host, _ := os.Hostname()
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.OrderCompleted, "tixly-sales-"+host, log)
		defer consumer.Close()
		go consumer.Start(ctx, hub.Emit)
	} else {
		log.Warn("KAFKA", "Kafka disabled, order events are not published")
		orderService.Sales = hub
	}

	go orderService.RunSweeper(ctx, cfg.Checkout.SweepInterval)

	// ---------------- HTTP ----------------

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := payments.HealthCheck(r.Context()); err != nil {
			utils.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "database": err.Error()})
			return
		}
		if err := redisClient.Ping(r.Context()).Err(); err != nil {
			utils.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "redis": err.Error()})
			return
		}
		utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		catalog_api.NewHandler(catalogService, log).RegisterRoutes(r, authn)
		order_api.NewHandler(orderService, builder, carts, catalogService, processor, log).RegisterRoutes(r, authn)
		order_api.NewSSEHandler(hub, catalogService, log).RegisterRoutes(r, authn)
		ticket_api.NewHandler(ticketService, orderService, catalogService, log).RegisterRoutes(r, authn)
		analytics_api.NewHandler(analytics.NewService(analytics.NewDB(bunDB)), catalogService, log).RegisterRoutes(r, authn)
	})
	log.Info("ROUTER", "API routes registered under /api")

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		// Request contexts end with the process so open sales streams close.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Ticketing service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	<-ctx.Done()
	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server shutdown failed: %v", err))
	} else {
		log.Info("HTTP", "Ticketing service shutdown complete")
	}
}
