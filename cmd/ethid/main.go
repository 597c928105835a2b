package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ethid/ethid/adapters/challenge"
	"github.com/ethid/ethid/adapters/events"
	"github.com/ethid/ethid/adapters/oracle"
	"github.com/ethid/ethid/adapters/qr"
	"github.com/ethid/ethid/adapters/sessiontoken"
	"github.com/ethid/ethid/adapters/store"
	"github.com/ethid/ethid/config"
	"github.com/ethid/ethid/ports"
	"github.com/ethid/ethid/service"
	transport "github.com/ethid/ethid/transport/http"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	var (
		nonces     ports.NonceStore
		identities ports.IdentityStore
		ledger     ports.TransactionLedger
		publisher  ports.EventPublisher
	)

	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			logger.Fatal("failed to parse redis url", zap.Error(err))
		}
		client := redis.NewClient(opts)

		nonces = store.NewRedisNonceStore(client)
		identities = store.NewRedisIdentityStore(client)
		ledger = store.NewRedisLedger(client)

		wmPublisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{Client: client},
			watermill.NewStdLogger(false, false),
		)
		if err != nil {
			logger.Fatal("failed to create event publisher", zap.Error(err))
		}
		publisher = events.NewWatermillPublisher(wmPublisher)
	} else {
		logger.Warn("no redis url configured; using in-memory stores")
		nonces = store.NewMemoryNonceStore()
		identities = store.NewMemoryIdentityStore()
		ledger = store.NewMemoryLedger()
		publisher = events.NopPublisher{}
	}

	goodwill, err := newGoodwillOracle(cfg, ledger, logger)
	if err != nil {
		logger.Fatal("failed to create goodwill oracle", zap.Error(err))
	}

	signKey, err := loadSessionKey(cfg.Auth.SessionKeyFile)
	if err != nil {
		logger.Fatal("failed to load session key", zap.Error(err))
	}

	authService := service.NewAuthService(
		nonces,
		identities,
		goodwill,
		challenge.NewCodec(),
		publisher,
		logger,
		cfg.Auth.CallbackURL,
	)

	handlers := transport.NewAuthHandlers(
		authService,
		sessiontoken.NewManager(signKey, cfg.Auth.SessionTTL),
		qr.NewRenderer(cfg.QR.Size, cfg.QR.Level),
		logger,
		cfg.Auth.CallbackURL,
		int(cfg.Auth.SessionTTL.Seconds()),
		!cfg.Env.Debug,
	)

	router := transport.SetupRouter(handlers)

	logger.Info("starting server",
		zap.String("addr", cfg.HTTP.Addr),
		zap.String("callback_url", cfg.Auth.CallbackURL),
		zap.String("goodwill_mode", cfg.Goodwill.Mode))

	if err := router.Run(cfg.HTTP.Addr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Env.Debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newGoodwillOracle(cfg *config.Config, ledger ports.TransactionLedger, logger *zap.Logger) (ports.GoodwillOracle, error) {
	switch cfg.Goodwill.Mode {
	case "open":
		return oracle.OpenOracle{}, nil
	case "ledger":
		minimum, err := decimal.NewFromString(cfg.Goodwill.Minimum)
		if err != nil {
			return nil, fmt.Errorf("invalid goodwill minimum %q: %w", cfg.Goodwill.Minimum, err)
		}
		return oracle.NewLedgerOracle(ledger, minimum, logger), nil
	default:
		return nil, fmt.Errorf("unknown goodwill mode %q", cfg.Goodwill.Mode)
	}
}

// loadSessionKey reads a PEM-encoded EC private key, or generates an
// ephemeral one when no path is configured.
func loadSessionKey(path string) (*ecdsa.PrivateKey, error) {
	if path == "" {
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("no PEM block in %q", path)
	}

	key, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse EC private key: %w", err)
	}
	return key, nil
}
