package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	s3blob "github.com/alanyoungcy/blackmarket/internal/blob/s3"
	"github.com/alanyoungcy/blackmarket/internal/codec"
	"github.com/alanyoungcy/blackmarket/internal/config"
	"github.com/alanyoungcy/blackmarket/internal/domain"
	"github.com/alanyoungcy/blackmarket/internal/market"
	"github.com/alanyoungcy/blackmarket/internal/notify"
	"github.com/alanyoungcy/blackmarket/internal/rotation"
	"github.com/alanyoungcy/blackmarket/internal/service"
	filestore "github.com/alanyoungcy/blackmarket/internal/store/file"
	"github.com/alanyoungcy/blackmarket/internal/store/postgres"
	"github.com/alanyoungcy/blackmarket/internal/store/redis"
	sqlitestore "github.com/alanyoungcy/blackmarket/internal/store/sqlite"
)

// Dependencies bundles everything the modes operate on. It is constructed by
// Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Backend  domain.SnapshotStore
	Store    *market.Store
	Engine   *rotation.Engine
	Shop     *service.Shop
	Archiver domain.SnapshotArchiver
	Notifier *notify.Notifier
}

// needsStore reports whether mode operates on the live catalog.
func needsStore(mode string) bool {
	return mode != "history"
}

// needsArchive reports whether the S3 archive must be wired.
func needsArchive(cfg *config.Config, mode string) bool {
	return cfg.S3.Enabled || mode == "history"
}

// Wire constructs the concrete implementations selected by cfg and returns
// them together with a cleanup function to call on shutdown. The cleanup
// saves the catalog only if a change has not reached the backend yet, then
// closes the backend.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	mode := strings.ToLower(cfg.Mode)
	deps := &Dependencies{}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- S3 rotation archive ---
	if needsArchive(cfg, mode) {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			Prefix:         cfg.S3.Prefix,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })
		deps.Archiver = s3blob.NewArchiver(s3Client, logger)
	}

	if !needsStore(mode) {
		return deps, cleanup, nil
	}

	// --- Snapshot backend ---
	backend, closeBackend, err := openBackend(ctx, cfg)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: storage %s: %w", cfg.Storage.Driver, err)
	}
	if closeBackend != nil {
		closers = append(closers, closeBackend)
	}
	deps.Backend = backend

	// --- Catalog ---
	deps.Store = market.New(backend, codec.NewProto(), market.WithLogger(logger))
	if err := deps.Store.Load(ctx); err != nil {
		// The catalog starts empty. Only a later mutation writes it back.
		logger.ErrorContext(ctx, "catalog load failed, starting empty",
			slog.String("error", err.Error()),
		)
	}
	for _, d := range deps.Store.Diagnostics() {
		logger.WarnContext(ctx, "skipped catalog record",
			slog.String("section", d.Section),
			slog.String("key", d.Key),
			slog.String("reason", d.Reason),
		)
	}
	store := deps.Store
	closers = append(closers, func() {
		saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := store.Close(saveCtx); err != nil {
			logger.Error("final catalog save failed", slog.String("error", err.Error()))
		}
	})

	// --- Rotation + shop ---
	deps.Engine = rotation.NewEngine(deps.Store, rotation.Config{
		Interval: cfg.Market.RotationInterval(),
		Count:    cfg.Market.ActiveCount,
	}, rotation.WithLogger(logger))

	opts := []service.ShopOption{
		service.WithMessages(messages(cfg.Messages)),
	}
	if deps.Notifier.Enabled() {
		opts = append(opts, service.WithAnnouncer(deps.Notifier))
	}
	if deps.Archiver != nil {
		opts = append(opts, service.WithArchiver(deps.Archiver))
	}
	deps.Shop = service.NewShop(deps.Store, deps.Engine, logger, opts...)

	return deps, cleanup, nil
}

// openBackend builds the snapshot store for the configured driver. The
// returned close function may be nil.
func openBackend(ctx context.Context, cfg *config.Config) (domain.SnapshotStore, func(), error) {
	switch strings.ToLower(cfg.Storage.Driver) {
	case "file":
		return filestore.New(cfg.Storage.Path), nil, nil

	case "sqlite":
		s, err := sqlitestore.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil

	case "postgres":
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return nil, nil, err
		}
		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				pgClient.Close()
				return nil, nil, err
			}
		}
		return postgres.NewSnapshotStore(pgClient.Pool()), pgClient.Close, nil

	case "redis":
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return nil, nil, err
		}
		return redis.NewSnapshotStore(redisClient, cfg.Redis.KeyPrefix), func() { _ = redisClient.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown driver %q", cfg.Storage.Driver)
	}
}

func messages(m config.MessagesConfig) service.Messages {
	return service.Messages{
		AlreadyPurchased: m.AlreadyPurchased,
		NotEnoughItems:   m.NotEnoughItems,
		PurchaseSuccess:  m.PurchaseSuccess,
		NotActive:        m.NotActive,
		SoldOut:          m.SoldOut,
		TimeRemaining:    m.TimeRemaining,
		RotationForced:   m.RotationForced,
		ItemAdded:        m.ItemAdded,
		ItemRemoved:      m.ItemRemoved,
	}
}
