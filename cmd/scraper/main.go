// Package main wires together the opportunity scraper service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/grantscout/opportunity-scraper/internal/api"
	"github.com/grantscout/opportunity-scraper/internal/clock/system"
	"github.com/grantscout/opportunity-scraper/internal/config"
	"github.com/grantscout/opportunity-scraper/internal/id/uuid"
	"github.com/grantscout/opportunity-scraper/internal/logging"
	"github.com/grantscout/opportunity-scraper/internal/metrics"
	pubsubPublisher "github.com/grantscout/opportunity-scraper/internal/publisher/pubsub"
	"github.com/grantscout/opportunity-scraper/internal/scraper"
	"github.com/grantscout/opportunity-scraper/internal/storage/gcs"
	"github.com/grantscout/opportunity-scraper/internal/storage/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := system.New()
	idGen := uuid.New()

	// Each dependency is optional: a missing or failing one leaves its slot
	// nil and routes requests through the mock fallback instead of failing.
	renderer := buildRenderer(cfg, logger)
	if renderer != nil {
		defer func() {
			if err := renderer.Close(context.Background()); err != nil {
				logger.Warn("renderer close failed", zap.Error(err))
			}
		}()
	}
	store := buildStore(ctx, cfg, logger)
	if store != nil {
		defer store.Close()
	}
	blobs := buildBlobStore(ctx, cfg, logger)
	if blobs != nil {
		defer func() {
			if err := blobs.Close(); err != nil {
				logger.Warn("gcs close failed", zap.Error(err))
			}
		}()
	}
	publisher := buildPublisher(ctx, cfg, logger)
	if publisher != nil {
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Warn("publisher close failed", zap.Error(err))
			}
		}()
	}

	deps := scraper.ServiceDeps{
		Extractor: scraper.NewExtractor(cfg.Scraper.MaxContainers, logger.Named("extractor")),
		Mock:      scraper.NewMockGenerator(idGen, clock),
		Topic:     cfg.PubSub.Topic,
		IDGen:     idGen,
		Clock:     clock,
		Logger:    logger.Named("scraper"),
	}
	if renderer != nil {
		deps.Renderer = renderer
	}
	if store != nil && blobs != nil {
		deps.Gateway = scraper.NewGateway(store, blobs, scraper.GatewayConfig{
			BlobPrefix:  cfg.Storage.Prefix,
			ContentType: cfg.Storage.ContentType,
		}, logger.Named("gateway"))
	}
	if publisher != nil {
		deps.Publisher = publisher
	}
	svc := scraper.NewService(deps)

	apiServer := api.NewServer(svc, logger.Named("api"))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func buildRenderer(cfg config.Config, logger *zap.Logger) *scraper.ChromedpRenderer {
	renderer, err := scraper.NewChromedpRenderer(scraper.RendererConfig{
		UserAgent:         cfg.Scraper.UserAgent,
		NavigationTimeout: cfg.NavTimeout(),
		ViewportWidth:     cfg.Scraper.ViewportWidth,
		ViewportHeight:    cfg.Scraper.ViewportHeight,
		MaxParallel:       cfg.Scraper.MaxParallelRenders,
		DomainQPS:         cfg.Scraper.DomainQPS,
	}, logger.Named("renderer"))
	if err != nil {
		logger.Warn("renderer init failed, mock fallback active", zap.Error(err))
		return nil
	}
	return renderer
}

func buildStore(ctx context.Context, cfg config.Config, logger *zap.Logger) *postgres.OpportunityStore {
	if cfg.DB.DSN == "" {
		logger.Info("db.dsn unset, mock fallback active")
		return nil
	}
	store, err := postgres.NewOpportunityStore(ctx, postgres.OpportunityStoreConfig{
		DSN:      cfg.DB.DSN,
		Table:    cfg.DB.Table,
		MaxConns: cfg.DB.MaxConns,
	})
	if err != nil {
		logger.Warn("postgres init failed, mock fallback active", zap.Error(err))
		return nil
	}
	return store
}

func buildBlobStore(ctx context.Context, cfg config.Config, logger *zap.Logger) *gcs.BlobStore {
	if cfg.Storage.GCSBucket == "" {
		logger.Info("storage.gcs_bucket unset, mock fallback active")
		return nil
	}
	blobs, err := gcs.New(ctx, gcs.Config{
		Bucket:        cfg.Storage.GCSBucket,
		PublicBaseURL: cfg.Storage.PublicBaseURL,
	})
	if err != nil {
		logger.Warn("gcs init failed, mock fallback active", zap.Error(err))
		return nil
	}
	return blobs
}

func buildPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) *pubsubPublisher.Publisher {
	if cfg.PubSub.Topic == "" {
		return nil
	}
	publisher, err := pubsubPublisher.New(ctx, cfg.PubSub.ProjectID, cfg.PubSub.Topic)
	if err != nil {
		logger.Warn("pubsub init failed, completion events disabled", zap.Error(err))
		return nil
	}
	return publisher
}
