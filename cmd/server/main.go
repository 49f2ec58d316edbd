package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/confirming/marketplace/internal/api"
	"github.com/confirming/marketplace/internal/api/handlers"
	"github.com/confirming/marketplace/internal/config"
	"github.com/confirming/marketplace/internal/events"
	"github.com/confirming/marketplace/internal/logger"
	"github.com/confirming/marketplace/internal/metrics"
	"github.com/confirming/marketplace/internal/repository"
	"github.com/confirming/marketplace/internal/repository/memory"
	"github.com/confirming/marketplace/internal/service"
)

// stores is the persistence the services run on
type stores struct {
	tx            service.TxManager
	invoices      service.InvoiceStore
	offers        service.OfferStore
	funds         service.FundStore
	payerTerms    service.PayerTermsStore
	parties       service.PartyStore
	documentTypes service.DocumentTypeStore
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zlog.Sync()

	loc, err := cfg.Location()
	if err != nil {
		zlog.Fatal("Invalid business time zone", zap.Error(err))
	}
	clock := service.NewSystemClock(loc)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	checks := map[string]handlers.Check{}

	// Persistence
	var st stores
	if cfg.UsesMemoryStore() {
		zlog.Warn("Using in-memory store, data is lost on restart")
		mem := memory.New()
		st = stores{mem, mem.Invoices(), mem.Offers(), mem.Funds(), mem.PayerTerms(), mem.Parties(), mem.DocumentTypes()}
	} else {
		db, err := repository.Open(ctx, cfg.Database.URL, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
		if err != nil {
			zlog.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()
		st = postgresStores(db)
		checks["postgres"] = db.PingContext
	}

	// Submission lock
	var lock service.SubmissionLock
	if cfg.Redis.URL != "" {
		redisLock, err := service.NewRedisSubmissionLock(cfg.Redis.URL, cfg.Redis.LockTTL)
		if err != nil {
			zlog.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisLock.Close()
		lock = redisLock
		checks["redis"] = redisLock.Ping
	} else {
		lock = service.NewLocalSubmissionLock()
	}

	// Event publishing
	var publisher service.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafka, err := events.NewKafkaPublisher(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, zlog)
		if err != nil {
			zlog.Fatal("Failed to connect to Kafka", zap.Error(err))
		}
		defer kafka.Close()
		if err := kafka.EnsureTopic(ctx, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor); err != nil {
			zlog.Fatal("Failed to prepare event topic", zap.Error(err))
		}
		publisher = kafka
		checks["kafka"] = kafka.Ping
	} else {
		publisher = events.NewLogPublisher(zlog)
	}

	// Initialize services
	registry := service.NewRegistryService(st.tx, st.funds, st.payerTerms, publisher, clock, m, zlog)
	svc := api.Services{
		Ledger:    service.NewLedgerService(st.tx, st.invoices, publisher, clock, m, zlog),
		Ingestion: service.NewIngestionService(st.tx, st.invoices, st.parties, st.documentTypes, clock, zlog),
		Registry:  registry,
		Auction:   service.NewAuctionService(st.tx, st.invoices, st.offers, registry, lock, publisher, clock, m, zlog),
		Marketplace: service.NewMarketplaceService(st.invoices, st.offers, st.funds, st.payerTerms, st.parties,
			registry, clock, zlog),
		Auth: service.NewAuthService(st.funds, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, clock),
	}

	// Set up router
	router := api.NewRouter(svc, api.Options{
		Logger:      zlog,
		Metrics:     m,
		Gatherer:    reg,
		ReadyChecks: checks,
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		zlog.Info("Starting confirming marketplace", zap.String("port", cfg.Server.Port), zap.String("time_zone", loc.String()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	<-ctx.Done()
	zlog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg))
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error("Server forced to shutdown", zap.Error(err))
		return
	}

	zlog.Info("Server exited gracefully")
}

func postgresStores(db *sql.DB) stores {
	return stores{
		tx:            repository.NewTxManager(db),
		invoices:      repository.NewInvoiceRepository(db),
		offers:        repository.NewOfferRepository(db),
		funds:         repository.NewFundRepository(db),
		payerTerms:    repository.NewPayerTermsRepository(db),
		parties:       repository.NewPartyRepository(db),
		documentTypes: repository.NewDocumentTypeRepository(db),
	}
}

func shutdownTimeout(cfg *config.Config) time.Duration {
	if cfg.Server.ShutdownTimeout > 0 {
		return cfg.Server.ShutdownTimeout
	}
	return 30 * time.Second
}
