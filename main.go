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

	bidding "livebid/internal/biddingService"
	redisstore "livebid/internal/cache/redis"
	"livebid/internal/config"
	"livebid/internal/events"
	"livebid/internal/notification"
	"livebid/internal/repository"
	"livebid/internal/repository/postgres"
	"livebid/internal/scheduler"
	"livebid/internal/server"
	"livebid/internal/server/ws"
	"livebid/utils"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "livebid.toml", "path to configuration file")
	seed := flag.Bool("seed", false, "create demo users and a live auction (memory driver only)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		utils.Fatal("failed to load config", map[string]any{"path": *configPath, "error": err.Error()})
	}
	utils.SetLevel(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		utils.Fatal("invalid configuration", map[string]any{"error": err.Error()})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *seed); err != nil {
		utils.Error("livebid stopped with error", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	utils.Info("livebid stopped", nil)
}

func run(ctx context.Context, cfg *config.Config, seed bool) error {
	db, notes, closeStore, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeStore()

	hub := ws.NewHub(ws.WithAllowedOrigins(cfg.Server.AllowedOrigins...))
	var push events.Sink = hub

	outbox := events.NewOutbox(events.WithHighWater(cfg.Auction.OutboxHighWater))
	outbox.Register("log", events.LogSink{})
	outbox.Register("ws", hub)

	if cfg.Redis.Enabled {
		rc, err := redisstore.New(ctx, redisstore.ClientConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			return err
		}
		defer rc.Close()

		publisher := redisstore.NewEventPublisher(rc)
		outbox.Register("redis", publisher)
		push = events.SinkFunc(func(ctx context.Context, e events.Event) error {
			_ = hub.Publish(ctx, e)
			return publisher.Publish(ctx, e)
		})
		utils.Info("redis event publisher enabled", map[string]any{"addr": cfg.Redis.Addr})
	}

	notificationSvc := notification.NewService(notes, db, notification.WithPublisher(push))
	outbox.Register("notifications", notificationSvc)

	biddingSvc := bidding.NewBiddingService(db, outbox, bidding.WithStartingBalance(cfg.Auction.StartingBalance))
	closer := scheduler.NewClosingScheduler(db, biddingSvc, cfg.Auction.CloseInterval.Duration)

	if seed {
		if cfg.Storage.Driver != config.DriverMemory {
			return fmt.Errorf("main: -seed requires the memory driver")
		}
		if err := seedDemoData(ctx, biddingSvc); err != nil {
			return err
		}
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.SetupRouter(biddingSvc, notificationSvc, hub),
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return closer.Start(gctx) })
	g.Go(func() error { return outbox.Run(gctx, cfg.Auction.OutboxRetry.Duration) })
	g.Go(func() error {
		utils.Info("starting auction server", map[string]any{"addr": srv.Addr, "storage": cfg.Storage.Driver})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("main: http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()

	// deliver whatever the retry loop had not flushed yet
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if pending := outbox.Flush(flushCtx); pending > 0 {
		utils.Warn("undelivered events at shutdown", map[string]any{"pending": pending})
	}
	return err
}

// openStore returns the configured repository. The returned func releases it.
func openStore(ctx context.Context, cfg config.StorageConfig) (repository.AuctionDB, repository.NotificationStore, func(), error) {
	if cfg.Driver != config.DriverPostgres {
		repo := repository.NewMemoryRepo()
		return repo, repo, func() {}, nil
	}

	client, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.DSN,
		Host:     cfg.Host,
		Port:     cfg.Port,
		Database: cfg.Database,
		User:     cfg.User,
		Password: cfg.Password,
		SSLMode:  cfg.SSLMode,
		MaxConns: cfg.MaxConns,
		MinConns: cfg.MinConns,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	if cfg.RunMigrations {
		if err := client.RunMigrations(ctx); err != nil {
			client.Close()
			return nil, nil, nil, err
		}
	}

	store := postgres.NewStore(client.Pool())
	return store, store, client.Close, nil
}

// seedDemoData adds a seller, two bidders and one live auction
func seedDemoData(ctx context.Context, svc *bidding.BiddingService) error {
	seller, err := svc.CreateUser(ctx, "seller@example.com", "Demo Seller")
	if err != nil {
		return err
	}
	for _, email := range []string{"alice@example.com", "bob@example.com"} {
		if _, err := svc.CreateUser(ctx, email, ""); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	a, err := svc.CreateAuction(ctx, bidding.CreateAuctionInput{
		SellerID:    seller.UserID,
		Title:       "Vintage camera",
		Description: "Demo auction",
		StartPrice:  1000,
		StartTime:   now,
		EndTime:     now.Add(10 * time.Minute),
	})
	if err != nil {
		return err
	}
	if _, err := svc.ConvertToLive(ctx, a.AuctionID); err != nil {
		return err
	}

	utils.Info("demo data seeded", map[string]any{"seller_id": seller.UserID, "auction_id": a.AuctionID})
	return nil
}
