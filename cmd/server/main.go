package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/mmynk/receiptsplit/internal/auth"
	"github.com/mmynk/receiptsplit/internal/blob"
	"github.com/mmynk/receiptsplit/internal/config"
	"github.com/mmynk/receiptsplit/internal/llm"
	"github.com/mmynk/receiptsplit/internal/metrics"
	"github.com/mmynk/receiptsplit/internal/middleware"
	"github.com/mmynk/receiptsplit/internal/service"
	"github.com/mmynk/receiptsplit/internal/splitter"
	"github.com/mmynk/receiptsplit/internal/storage"
	"github.com/mmynk/receiptsplit/internal/storage/postgres"
	"github.com/mmynk/receiptsplit/internal/storage/sqlite"
	"github.com/mmynk/receiptsplit/pkg/logging"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.SetupWithLevel(logging.ParseLevel(cfg.Log.Level), cfg.Log.Format == "json")
	logger := slog.Default()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()
	logger.Info("Storage initialized", "driver", cfg.Database.Driver)

	passwords, err := auth.NewPasswordChecker(cfg.Auth.Password, cfg.Auth.PasswordHash)
	if err != nil {
		return err
	}
	authn := auth.NewAuthenticator(passwords, auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL), cfg.Auth.SecureCookie)

	m := metrics.New()
	opts := service.Options{
		Metrics:       m,
		Logger:        logger,
		PublicBaseURL: cfg.Server.PublicBaseURL,
		PaymentHandle: cfg.PaymentHandle,
	}

	if cfg.Storage.Enabled() {
		images, err := blob.New(ctx, blob.Options{
			Endpoint:      cfg.Storage.Endpoint,
			Region:        cfg.Storage.Region,
			AccessKey:     cfg.Storage.AccessKey,
			SecretKey:     cfg.Storage.SecretKey,
			Bucket:        cfg.Storage.Bucket,
			PublicBaseURL: cfg.Storage.PublicURL,
		})
		if err != nil {
			return err
		}
		opts.Images = images
		logger.Info("Image storage enabled", "bucket", cfg.Storage.Bucket)
	} else {
		logger.Warn("Image storage not configured; uploads disabled")
	}

	var computer splitter.Computer
	if cfg.Gemini.APIKey != "" {
		gemini, err := llm.NewGeminiComputer(ctx, llm.Options{
			APIKey:  cfg.Gemini.APIKey,
			Model:   cfg.Gemini.Model,
			Timeout: cfg.Gemini.Timeout,
			Logger:  logger,
		})
		if err != nil {
			return err
		}
		computer = gemini
		logger.Info("Receipt analysis enabled", "model", cfg.Gemini.Model)
	} else {
		logger.Warn("GEMINI_API_KEY not set; receipt analysis disabled")
	}

	mux := http.NewServeMux()

	// Register Connect services
	receiptPath, receiptHandler := service.NewReceiptServiceHandler(
		service.NewReceiptService(store, opts),
		connect.WithInterceptors(
			middleware.RequireSession(authn, service.PublicProcedures...),
			middleware.LoggingInterceptor(logger),
		),
	)
	mux.Handle(receiptPath, receiptHandler)

	service.NewAPI(authn, computer, opts).Register(mux)
	mux.Handle("GET /metrics", m.Handler())

	if cfg.Server.StaticDir != "" {
		staticDir, err := filepath.Abs(cfg.Server.StaticDir)
		if err != nil {
			return fmt.Errorf("failed to resolve static path: %w", err)
		}
		mux.Handle("/", http.FileServer(http.Dir(staticDir)))
		logger.Info("Serving static files", "path", staticDir)
	}

	handler := middleware.Logging(logger, middleware.Instrument(m, middleware.CORS(cfg.Server.CORSOrigin, mux)))

	// Wrap with h2c for HTTP/2 without TLS (required for Connect)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server starting", "address", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (storage.Store, error) {
	switch cfg.Driver {
	case "postgres":
		store, err := postgres.New(ctx, cfg.URL)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		if dir := filepath.Dir(cfg.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
		store, err := sqlite.New(cfg.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}
