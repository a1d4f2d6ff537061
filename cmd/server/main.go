package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bidmaster/internal/config"
	"github.com/iliyamo/bidmaster/internal/database"
	"github.com/iliyamo/bidmaster/internal/handler"
	"github.com/iliyamo/bidmaster/internal/importer"
	"github.com/iliyamo/bidmaster/internal/middleware"
	"github.com/iliyamo/bidmaster/internal/queue"
	"github.com/iliyamo/bidmaster/internal/repository"
	"github.com/iliyamo/bidmaster/internal/router"
	"github.com/iliyamo/bidmaster/internal/service"
	"github.com/iliyamo/bidmaster/internal/utils"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		utils.Warn("could not read .env", map[string]any{"error": err.Error()})
	}
	cfg := config.Load()
	utils.SetLevel(cfg.LogLevel)

	db, err := database.Open(cfg)
	if err != nil {
		utils.Fatal("database unavailable", map[string]any{"driver": cfg.DBDriver, "error": err.Error()})
	}
	defer db.Close()

	rdb := config.NewRedisClient(config.LoadRedisConfig()) // nil when Redis is down
	if rdb != nil {
		defer rdb.Close()
	}
	cacheCfg := config.LoadCacheConfig()
	invalidate := handler.Invalidator(func(ctx context.Context) {
		if _, err := middleware.PurgeCache(ctx, cacheCfg, rdb); err != nil {
			utils.Warn("report cache purge failed", map[string]any{"error": err.Error()})
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	var wg sync.WaitGroup

	var events service.EventPublisher
	if cfg.EventsEnabled {
		events = queue.NewPublisher(cfg.AMQPURL)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := queue.StartEscrowConsumer(ctx, cfg.AMQPURL, cfg.LedgerDir); err != nil && !errors.Is(err, context.Canceled) {
				utils.Error("escrow consumer stopped", map[string]any{"error": err.Error()})
			}
		}()
	}

	auctions := service.NewAuctionService(db, service.SystemClock{}, events)
	wg.Add(1)
	go func() {
		defer wg.Done()
		service.RunSweeper(ctx, auctions, cfg.SweepInterval)
	}()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestLogger)

	router.RegisterRoutes(e)
	router.RegisterAuctions(e, handler.NewAuctionHandler(auctions, invalidate),
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	router.RegisterItems(e, handler.NewItemHandler(repository.NewItemRepo(db), repository.NewUserRepo(db)))
	router.RegisterImport(e, handler.NewImportHandler(importer.New(db, cfg.BcryptCost), invalidate))
	router.RegisterAnalytics(e, handler.NewReportHandler(repository.NewReportRepo(db)),
		middleware.NewRedisCache(cacheCfg, rdb))

	addr := ":" + cfg.Port
	go func() {
		utils.Info("listening", map[string]any{"addr": addr, "env": cfg.Env, "driver": cfg.DBDriver})
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Fatal("server failed", map[string]any{"error": err.Error()})
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		utils.Error("shutdown failed", map[string]any{"error": err.Error()})
	}
	wg.Wait()
	utils.Info("server stopped", nil)
}
