package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/gmc-club/membership-api/internal/adapters/httpapi"
	memrecordstore "github.com/gmc-club/membership-api/internal/adapters/memory/recordstore"
	postgres "github.com/gmc-club/membership-api/internal/adapters/postgres"
	pgrecordstore "github.com/gmc-club/membership-api/internal/adapters/postgres/recordstore"
	"github.com/gmc-club/membership-api/internal/adapters/xlsx"
	"github.com/gmc-club/membership-api/internal/app/lifecycle"
	"github.com/gmc-club/membership-api/internal/app/reconcile"
	platformclock "github.com/gmc-club/membership-api/internal/platform/clock"
	"github.com/gmc-club/membership-api/internal/platform/config"
	recordstoreport "github.com/gmc-club/membership-api/internal/ports/out/recordstore"
)

func main() {
	// Local dev convenience; the file is optional.
	_ = godotenv.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	clk := platformclock.NewSystemClock()

	var (
		store   recordstoreport.Store
		cleanup func()
	)
	switch cfg.StorageBackend {
	case "postgres":
		pool, err := postgres.NewPool(context.Background(), cfg.DatabaseURL, postgres.PoolOptions{})
		if err != nil {
			log.Fatal("invalid postgres config", zap.Error(err))
		}
		cleanup = pool.Close
		store = pgrecordstore.NewStore(pool)
	default:
		store = memrecordstore.NewStore()
	}
	if cleanup != nil {
		defer cleanup()
	}

	lifecycleSvc := lifecycle.NewService(store, clk, lifecycle.Config{
		TesseraPrefix: cfg.TesseraPrefix,
		AdultFee:      cfg.AdultFee,
	})
	importSvc := reconcile.NewService(store, clk, log, cfg.TesseraPrefix)
	codec := xlsx.NewCodec(log)

	api := httpapi.NewServer(lifecycleSvc, importSvc, codec, clk, cfg.PageSize, log)
	handler := httpapi.NewRouter(api)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("api listening", zap.String("addr", srv.Addr), zap.String("storage", cfg.StorageBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
