package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/cdl-project/schema-registry/domains/schema-registry/be/handler"
	"github.com/cdl-project/schema-registry/domains/schema-registry/be/service"
	"github.com/cdl-project/schema-registry/internal/registry/notify"
	"github.com/cdl-project/schema-registry/internal/registry/regtypes"
	"github.com/cdl-project/schema-registry/internal/registry/rpcserver"
	"github.com/cdl-project/schema-registry/internal/registry/snapshot"
	"github.com/cdl-project/schema-registry/internal/registry/store"
	"github.com/cdl-project/schema-registry/internal/registry/validate"
	platformlogging "github.com/cdl-project/schema-registry/platform/go/logging"
	"github.com/cdl-project/schema-registry/platform/go/persistence"
)

// config mirrors spec.md §6's environment variables.
type config struct {
	Port            string        `env:"PORT" envDefault:"3000"`
	DatabaseURL     string        `env:"DB_URL,required"`
	ExportDir       string        `env:"EXPORT_DIR"`
	ImportFile      string        `env:"IMPORT_FILE"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MaxConns        int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	MinConns        int32         `env:"DB_MIN_CONNS" envDefault:"0"`
}

func main() {
	ctx := context.Background()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component: "schema-registry",
		Level:     cfg.LogLevel,
	})
	if err != nil {
		log.Fatalf("init zap logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{
		ConnString: cfg.DatabaseURL,
		MaxConns:   cfg.MaxConns,
		MinConns:   cfg.MinConns,
	})
	if err != nil {
		logger.Fatal("init postgres pool", zap.Error(err))
	}
	defer persistence.ClosePool(pool)

	if err := persistence.BootstrapSchema(ctx, pool); err != nil {
		logger.Fatal("bootstrap schema ddl", zap.Error(err))
	}

	st, err := store.New(pool)
	if err != nil {
		logger.Fatal("init store", zap.Error(err))
	}
	validator := validate.New()

	listener := notify.NewListener(logger)
	listenerCtx, cancelListener := context.WithCancel(ctx)
	defer cancelListener()
	go func() {
		if err := listener.Run(listenerCtx, pool); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("notification listener stopped", zap.Error(err))
		}
	}()

	if cfg.ImportFile != "" {
		if err := runImport(ctx, pool, cfg.ImportFile, logger); err != nil {
			logger.Fatal("import snapshot", zap.Error(err))
		}
	}

	if cfg.ExportDir != "" {
		if err := runExport(ctx, st, cfg.ExportDir, logger); err != nil {
			logger.Fatal("export snapshot", zap.Error(err))
		}
	}

	svc := service.New(st, validator, listener)
	h := handler.New(svc, logger)
	router := rpcserver.NewRouter(h, logger)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		logger.Info("starting schema registry", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server listen failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// runImport applies IMPORT_FILE at startup. Per spec.md §4.6, the interlock
// makes this a no-op on a non-empty registry, so it is always safe to run.
func runImport(ctx context.Context, pool *pgxpool.Pool, path string, logger *zap.Logger) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read import file: %w", err)
	}

	var export regtypes.DBExport
	if err := json.Unmarshal(raw, &export); err != nil {
		return fmt.Errorf("parse import file: %w", err)
	}

	imported, err := snapshot.Import(ctx, pool, export)
	if err != nil {
		return fmt.Errorf("import snapshot: %w", err)
	}

	if imported {
		logger.Info("imported snapshot", zap.String("path", path), zap.Int("schemas", len(export.Schemas)))
	} else {
		logger.Info("import skipped: registry already has schemas", zap.String("path", path))
	}
	return nil
}

func runExport(ctx context.Context, st snapshot.Exporter, dir string, logger *zap.Logger) error {
	export, err := snapshot.Export(ctx, st)
	if err != nil {
		return fmt.Errorf("build export: %w", err)
	}

	raw, err := snapshot.MarshalIndent(export)
	if err != nil {
		return fmt.Errorf("marshal export: %w", err)
	}

	path := fmt.Sprintf("%s/export_%d.json", dir, time.Now().Unix())
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}

	logger.Info("wrote snapshot export", zap.String("path", path), zap.Int("schemas", len(export.Schemas)))
	return nil
}
