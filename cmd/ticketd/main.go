package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ticketly/internal/auth"
	"ticketly/internal/config"
	"ticketly/internal/database/migrations"
	"ticketly/internal/eligibility"
	eligdb "ticketly/internal/eligibility/db"
	"ticketly/internal/kafka"
	"ticketly/internal/logger"
	"ticketly/internal/models"
	"ticketly/internal/payment"
	"ticketly/internal/sideeffects"
	"ticketly/internal/sse"
	"ticketly/internal/stats"
	"ticketly/internal/tickets"
	"ticketly/internal/tickets/qr"
	"ticketly/internal/ticketing"
	"ticketly/internal/ticketing/api"
	"ticketly/internal/utils"
	"ticketly/internal/waitlist"
)

func connectPostgres(cfg config.DatabaseConfig, log *logger.Logger) *bun.DB {
	if cfg.DSN == "" {
		log.Fatal("CONFIG", "POSTGRES_DSN not set")
	}

	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Connecting to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.DSN)
		if err == nil {
			err = sqldb.Ping()
		}
		if err == nil {
			break
		}
		log.Error("DATABASE", fmt.Sprintf("PostgreSQL connection failed: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("PostgreSQL unreachable after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	log.Info("DATABASE", "PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New())
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting ticketly")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}

	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bunDB := connectPostgres(cfg.Database, log)
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB, migrations.DefaultOptions(), log)
	if err := runner.MigrateUp(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("migrations failed: %v", err))
	}

	redisClient, err := waitlist.Connect(cfg.Redis.Addr)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	defer redisClient.Close()
	log.Info("DATABASE", fmt.Sprintf("Redis connection successful to %s", cfg.Redis.Addr))

	wl := waitlist.New(redisClient, log)
	emitter := sse.NewIssuanceEmitter()

	var producer *kafka.Producer
	var dispatcher *sideeffects.Dispatcher
	topics := sideeffects.Topics{
		TicketsCreated:  cfg.Kafka.Topics.TicketsCreated,
		EventVisibility: cfg.Kafka.Topics.EventVisibility,
	}
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka.Brokers, log)
		defer producer.Close()

		required := []string{cfg.Kafka.Topics.TicketsCreated, cfg.Kafka.Topics.EventVisibility}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, required, log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("topic creation might have failed: %v", err))
		}

		dispatcher = sideeffects.New(producer, wl, emitter, topics, log)

		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.EventVisibility, "ticketly", log)
		defer consumer.Close()
		go consumer.Start(ctx, func(ctx context.Context, event models.Event) error {
			_, err := bunDB.NewInsert().
				Model(&event).
				On("CONFLICT (id) DO UPDATE").
				Set("status = EXCLUDED.status").
				Set("type = EXCLUDED.type").
				Set("max_attendees = EXCLUDED.max_attendees").
				Set("waitlist_open = EXCLUDED.waitlist_open").
				Exec(ctx)
			return err
		})
	} else {
		log.Warn("KAFKA", "Kafka disabled, side effects limited to waitlist and SSE")
		dispatcher = sideeffects.New(nil, wl, emitter, topics, log)
	}

	gateway, err := payment.NewStripeGateway(cfg.Stripe.SuccessURL, cfg.Stripe.CancelURL, cfg.Stripe.Currency, log)
	if err != nil {
		log.Fatal("STRIPE", fmt.Sprintf("gateway init failed: %v", err))
	}

	qrSecret := os.Getenv("QR_SECRET_KEY")
	if qrSecret == "" {
		log.Fatal("CONFIG", "QR_SECRET_KEY not set")
	}
	generator := qr.NewGenerator(qrSecret)

	ticketService := tickets.NewService(bunDB, generator, log)
	webhookHandler := payment.NewWebhookHandler(ticketService, dispatcher, log)

	loader := eligdb.NewLoader(bunDB)
	eligService := eligibility.NewService(eligibility.Config{
		EnforceVisibility:     cfg.Eligibility.EnforceVisibility,
		EnforceQuestionnaires: cfg.Eligibility.EnforceQuestionnaires,
		EnforceRSVPDeadline:   cfg.Eligibility.EnforceRSVPDeadline,
		EnforceSalesWindow:    cfg.Eligibility.EnforceSalesWindow,
		EnforceCapacity:       cfg.Eligibility.EnforceCapacity,
	}, loader, log)

	batchService := ticketing.NewBatchService(bunDB, eligService, loader, gateway, dispatcher, generator, log)

	expiry := ticketing.NewExpiryWorker(bunDB, log, cfg.Expiry.PendingTTL, cfg.Expiry.Interval)
	go expiry.Run(ctx)

	var authMiddleware func(http.Handler) http.Handler
	if os.Getenv("OIDC_ISSUER") != "" {
		verifier, err := auth.NewVerifier(ctx, log)
		if err != nil {
			log.Fatal("AUTH", fmt.Sprintf("OIDC setup failed: %v", err))
		}
		authMiddleware = verifier.Middleware()
	} else {
		log.Warn("AUTH", "OIDC_ISSUER not set, falling back to unverified dev tokens")
		authMiddleware = auth.DevMiddleware()
	}

	statsService := stats.NewService(bunDB)

	handler := api.NewHandler(batchService, eligService, ticketService, wl, emitter, statsService, webhookHandler, log)

	r := chi.NewRouter()
	r.Use(requestLogger(log))
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("ok", nil))
	})
	r.Mount("/api/v1", handler.Routes(authMiddleware))

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Listening on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("server error: %v", err))
		}
	}()

	<-ctx.Done()
	log.Info("APP", "Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP", fmt.Sprintf("shutdown error: %v", err))
	}
	log.Info("APP", "Shutdown complete")
}

func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.LogAPI(r.Method, r.URL.Path, "-", time.Since(start).String())
		})
	}
}
