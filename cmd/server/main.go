// Package main runs the mint and bridge service: an HTTP front for the
// transaction orchestrator, acting as the wallet and persistence collaborator.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourorg/omnimint-bridge/internal/bridge"
	"github.com/yourorg/omnimint-bridge/internal/circuitbreaker"
	"github.com/yourorg/omnimint-bridge/internal/config"
	"github.com/yourorg/omnimint-bridge/internal/gas"
	"github.com/yourorg/omnimint-bridge/internal/journal"
	"github.com/yourorg/omnimint-bridge/internal/otel"
	"github.com/yourorg/omnimint-bridge/internal/price"
	"github.com/yourorg/omnimint-bridge/internal/report"
	"github.com/yourorg/omnimint-bridge/internal/rpc"
	"github.com/yourorg/omnimint-bridge/internal/security"
	"github.com/yourorg/omnimint-bridge/internal/signer"
)

// startTime records when the service was initialized for uptime reporting
var startTime = time.Now()

const version = "1.0.0"

// Server holds everything the HTTP handlers need
type Server struct {
	config config.Config

	registry     *config.Registry
	orchestrator *bridge.Orchestrator
	prices       *price.Oracle
	providers    ProviderSource
	receipts     journal.ReceiptSource
	journal      journal.Store
	reporter     *report.Reporter
	breaker      *circuitbreaker.Group

	refuelDefault decimal.Decimal
	rateLimit     *rate.Limiter
	metrics       *serverMetrics
	server        *http.Server
}

func main() {
	cfg := config.Load()
	setupLogging(cfg)

	shutdownTracer := otel.InitTracer(cfg.OtelEndpoint)
	defer shutdownTracer()

	server, cleanup, err := buildServer(context.Background(), cfg)
	if err != nil {
		logrus.Fatalf("Startup failed: %v", err)
	}
	defer cleanup()

	server.Start()
}

// setupLogging configures the logging for the application
func setupLogging(cfg config.Config) {
	switch cfg.LogFormat {
	case "text":
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	default:
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	switch cfg.LogLevel {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "warn", "warning":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}

	logrus.Info("Logging configured")
}

// buildServer wires the collaborators from configuration. The returned cleanup
// closes connections and flushes the reporter.
func buildServer(ctx context.Context, cfg config.Config) (*Server, func(), error) {
	registry, err := config.LoadRegistry(cfg.ChainsFile)
	if err != nil {
		return nil, nil, err
	}

	key, err := signer.Load(cfg.SignerPrivateKey, cfg.SignerMnemonic)
	if err != nil {
		return nil, nil, err
	}
	logrus.WithField("address", key.Address().Hex()).Info("Signer loaded")

	oracle := price.NewOracle(price.Options{
		FeedURL:  cfg.PriceFeedURL,
		Timeout:  cfg.PriceTimeout,
		Backoff:  cfg.PriceBackoff,
		CacheTTL: 30 * time.Second,
		OnZeroPrice: func(symbol string) {
			logrus.WithField("symbol", symbol).Warn("Price feed answered without a price")
		},
	})

	pool := rpc.NewPool().WithRateLimit(cfg.RPCRateLimitRPS, cfg.RateLimitBurst)

	breaker := circuitbreaker.New(cfg.EarnedBreakerThreshold).
		WithResetDelay(cfg.EarnedBreakerCooldown).
		WithTripCallback(func(endpoint string, failures int) {
			logrus.WithFields(logrus.Fields{"endpoint": endpoint, "failures": failures}).Warn("Earned reads suspended for endpoint")
		})

	orch := bridge.NewOrchestrator(bridge.Config{
		ConfirmationTimeout: cfg.ConfirmationTimeout,
		PollInterval:        cfg.ReceiptPollInterval,
		GasPolicy:           gas.NewPolicy(uint64(cfg.GasMarginBps)),
		MintBatchSize:       int64(cfg.MintBatchSize),
		PriceDeadline:       cfg.PriceDeadline,
	}, oracle).
		WithAddressBook(registry).
		WithRoutes(registry).
		WithCallers(pool).
		WithBreaker(breaker)

	var (
		store   journal.Store = journal.NewMemoryStore()
		closePg func()
	)
	if cfg.JournalDSN != "" {
		pg, err := journal.NewPostgresStore(ctx, cfg.JournalDSN)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		store, closePg = pg, pg.Close
		logrus.Info("Submission journal backed by Postgres")
	}

	reportCfg := report.Config{
		URL:       cfg.ReportURL,
		APIKey:    cfg.ReportAPIKey,
		BatchSize: cfg.ReportBatchSize,
		Interval:  cfg.ReportInterval,
	}
	if cfg.ReportSign {
		reportCfg.Signer = security.NewPayloadSigner(key)
	}
	reporter := report.New(reportCfg)
	reporter.Start()

	providers := newSignerProviders(key)

	s := &Server{
		config:        cfg,
		registry:      registry,
		orchestrator:  orch,
		prices:        oracle,
		providers:     providers,
		receipts:      pool,
		journal:       store,
		reporter:      reporter,
		breaker:       breaker,
		refuelDefault: decimal.NewFromFloat(cfg.DefaultRefuelCostUSD),
		metrics:       registerMetrics(),
	}
	if cfg.RateLimitRPS > 0 {
		s.rateLimit = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := reporter.Stop(ctx); err != nil {
			logrus.Warnf("Final report flush failed: %v", err)
		}
		providers.Close()
		pool.Close()
		if closePg != nil {
			closePg()
		}
	}

	logrus.WithFields(logrus.Fields{
		"port":         cfg.Port,
		"chains":       len(registry.Chains()),
		"journal":      cfg.JournalDSN != "",
		"reporting":    reporter.Enabled(),
		"gas_margin":   cfg.GasMarginBps,
		"confirmation": cfg.ConfirmationTimeout,
	}).Info("Server initialized")

	return s, cleanup, nil
}

// Routes returns the HTTP handler with rate limiting and instrumentation
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/mint", s.handleMint)
	mux.HandleFunc("/bridge", s.handleBridge)
	mux.HandleFunc("/estimate", s.handleEstimate)
	mux.HandleFunc("/claim", s.handleClaim)
	mux.HandleFunc("/earned", s.handleEarned)
	mux.HandleFunc("/price", s.handlePrice)
	mux.HandleFunc("/ref/encode", s.handleRefEncode)
	mux.HandleFunc("/ref/decode", s.handleRefDecode)
	mux.HandleFunc("/reconcile", s.handleReconcile)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", s.metrics.handler())

	return s.instrument(s.limit(mux))
}

// Start begins the HTTP server and sets up graceful shutdown
func (s *Server) Start() {
	s.server = &http.Server{
		Addr:        ":" + s.config.Port,
		Handler:     s.Routes(),
		ReadTimeout: 15 * time.Second,
		// mint and bridge wait for confirmation inside the request
		WriteTimeout: s.config.ConfirmationTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("Server starting on port %s", s.config.Port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Error starting server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ConfirmationTimeout+10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server shutdown failed: %v", err)
	}

	logrus.Info("Server stopped")
}
