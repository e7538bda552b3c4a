package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/boogiefi/marketd/internal/bank"
	s3blob "github.com/boogiefi/marketd/internal/blob/s3"
	"github.com/boogiefi/marketd/internal/cache/redis"
	"github.com/boogiefi/marketd/internal/config"
	"github.com/boogiefi/marketd/internal/domain"
	"github.com/boogiefi/marketd/internal/ledger"
	"github.com/boogiefi/marketd/internal/notify"
	"github.com/boogiefi/marketd/internal/service"
	"github.com/boogiefi/marketd/internal/store/postgres"
)

// Dependencies bundles everything the application modes need to operate. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	ItemStore  domain.ItemStore
	EventStore domain.EventStore
	FeeStore   domain.FeeStore

	// Caches and messaging
	ListingCache domain.ListingCache
	RateLimiter  domain.RateLimiter
	SignalBus    domain.SignalBus

	// Blob storage
	BlobWriter domain.BlobWriter
	Archiver   domain.Archiver

	// Notifications
	Notifier *notify.Notifier

	// Core
	Bank   *bank.Bank
	Ledger *service.LedgerService
}

// needsS3 returns true for modes that require object storage.
func needsS3(cfg *config.Config) bool {
	if !cfg.Archive.Enabled {
		return false
	}
	switch cfg.Mode {
	case "archive", "full":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration, initializes or restores the ledger core, and returns them
// together with a cleanup function that should be called on shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL mirror ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.PoolMaxConns,
		MinConns: cfg.Database.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Database.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.ItemStore = postgres.NewItemStore(pool)
	deps.EventStore = postgres.NewEventStore(pool)
	deps.FeeStore = postgres.NewFeeStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	cacheTTL := time.Duration(cfg.Redis.CacheTTLSeconds) * time.Second
	deps.ListingCache = redis.NewListingCache(redisClient, cacheTTL)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// --- S3 blob storage (only for modes that archive) ---
	if needsS3(cfg) {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
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

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, deps.EventStore, logger)
	}

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

	// --- Ledger core: genesis on an empty mirror, restore otherwise ---
	svc, b, err := buildLedger(ctx, cfg, deps, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	deps.Bank = b
	deps.Ledger = svc

	return deps, cleanup, nil
}

// buildLedger assembles the genesis parameters, then either initializes a
// fresh ledger (empty mirror) or restores one from the mirrored records. In
// both cases configured prefund balances are credited afterwards.
func buildLedger(ctx context.Context, cfg *config.Config, deps *Dependencies, logger *slog.Logger) (*service.LedgerService, *bank.Bank, error) {
	params, err := genesisParams(cfg.Genesis)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: genesis: %w", err)
	}

	b := bank.New()

	count, err := deps.ItemStore.Count(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: count mirrored items: %w", err)
	}

	var core *ledger.Ledger
	if count == 0 {
		// Fresh start: fund the deployer with exactly the genesis deposit,
		// then mint and list the catalogue.
		if err := b.Deposit(domain.AccountCustody(params.Deployer), params.Deposit); err != nil {
			return nil, nil, fmt.Errorf("wire: fund deployer: %w", err)
		}
		core, err = ledger.New(params, b)
		if err != nil {
			return nil, nil, fmt.Errorf("wire: ledger genesis: %w", err)
		}
		logger.InfoContext(ctx, "ledger initialized",
			slog.String("name", params.Name),
			slog.Int("items", len(params.Prices)),
		)
	} else {
		recs, err := deps.ItemStore.List(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("wire: load mirrored items: %w", err)
		}

		currentFee := params.RoyaltyFee
		if persisted, err := deps.FeeStore.Get(ctx); err == nil {
			fee, ok := new(big.Int).SetString(persisted, 10)
			if !ok {
				return nil, nil, fmt.Errorf("wire: corrupt persisted fee %q", persisted)
			}
			currentFee = fee
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, nil, fmt.Errorf("wire: load persisted fee: %w", err)
		}

		core, err = ledger.Restore(params, currentFee, recs, b)
		if err != nil {
			return nil, nil, fmt.Errorf("wire: ledger restore: %w", err)
		}
		logger.InfoContext(ctx, "ledger restored",
			slog.String("name", params.Name),
			slog.Int("items", len(recs)),
			slog.String("royalty_fee", currentFee.String()),
		)
	}

	// Prefund demo accounts. Bank balances are not mirrored, so this also
	// re-credits spending money after a restart.
	for addr, amount := range cfg.Genesis.Prefund {
		wei, err := config.Wei(amount)
		if err != nil {
			return nil, nil, fmt.Errorf("wire: prefund %s: %w", addr, err)
		}
		if err := b.Deposit(domain.AccountCustody(common.HexToAddress(addr)), wei); err != nil {
			return nil, nil, fmt.Errorf("wire: prefund %s: %w", addr, err)
		}
	}

	svc := service.NewLedgerService(
		core, b,
		deps.ItemStore, deps.EventStore, deps.FeeStore,
		deps.ListingCache, deps.SignalBus, deps.Notifier,
		logger,
	)

	if count == 0 {
		if err := svc.SeedMirror(ctx); err != nil {
			return nil, nil, fmt.Errorf("wire: %w", err)
		}
	}

	return svc, b, nil
}

// genesisParams converts the genesis configuration into ledger parameters.
// The deposit is derived, not configured: royalty fee times catalogue size.
func genesisParams(g config.GenesisConfig) (ledger.Params, error) {
	fee, err := config.Wei(g.RoyaltyFee)
	if err != nil {
		return ledger.Params{}, err
	}

	prices := make([]*big.Int, len(g.Prices))
	for i, p := range g.Prices {
		price, err := config.Wei(p)
		if err != nil {
			return ledger.Params{}, err
		}
		prices[i] = price
	}

	deposit := new(big.Int).Mul(fee, big.NewInt(int64(len(prices))))

	return ledger.Params{
		Name:        g.Name,
		Symbol:      g.Symbol,
		BaseURI:     g.BaseURI,
		RoyaltyFee:  fee,
		Beneficiary: common.HexToAddress(g.Beneficiary),
		Admin:       common.HexToAddress(g.Admin),
		Deployer:    common.HexToAddress(g.Deployer),
		Prices:      prices,
		Deposit:     deposit,
	}, nil
}
