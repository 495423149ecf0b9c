package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"

	"github.com/digkill/ImageForge/internal/api"
	"github.com/digkill/ImageForge/internal/billing"
	"github.com/digkill/ImageForge/internal/config"
	"github.com/digkill/ImageForge/internal/database"
	"github.com/digkill/ImageForge/internal/generation"
	"github.com/digkill/ImageForge/internal/identity"
	"github.com/digkill/ImageForge/internal/ledger"
	"github.com/digkill/ImageForge/internal/providers"
	"github.com/digkill/ImageForge/internal/registry"
	"github.com/digkill/ImageForge/internal/repository"
	"github.com/digkill/ImageForge/internal/service"
	"github.com/digkill/ImageForge/internal/storage"
	"github.com/digkill/ImageForge/internal/telegram"
	"github.com/digkill/ImageForge/pkg/logger"
)

const telegramTimeout = 10 * time.Second

type creditLedger interface {
	service.Credits
	service.Granter
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logr := logger.New(logger.Options{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("database connect: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("database migrate: %v", err)
	}

	var credits creditLedger
	switch cfg.LedgerBackend {
	case config.LedgerRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis ping: %v", err)
		}
		credits = ledger.NewRedis(rdb)
	default:
		credits = ledger.NewMySQL(db)
	}

	archive, err := storage.NewArchive(storage.Config{
		Endpoint:     cfg.S3Endpoint,
		Region:       cfg.S3Region,
		AccessKey:    cfg.S3AccessKey,
		SecretKey:    cfg.S3SecretKey,
		Bucket:       cfg.S3Bucket,
		UsePathStyle: cfg.S3UsePathStyle,
		Prefix:       cfg.S3Prefix,
	})
	if err != nil {
		log.Fatalf("storage archive: %v", err)
	}

	var sender telegram.Sender
	if cfg.TelegramBotToken != "" {
		botAPI, err := tgbotapi.NewBotAPIWithClient(cfg.TelegramBotToken, tgbotapi.APIEndpoint, &http.Client{Timeout: telegramTimeout})
		if err != nil {
			log.Fatalf("telegram bot: %v", err)
		}
		sender = botAPI
	}
	notifier := telegram.NewNotifier(sender, cfg.TelegramAlertChatID, cfg.AlertCooldown, logr)

	stripeClient := billing.NewStripe(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	var customerCreator service.CustomerCreator
	if stripeClient != nil {
		customerCreator = stripeClient
	} else {
		logr.Warn("STRIPE_SECRET_KEY not set, billing endpoints will fail")
	}

	idClient := identity.NewClient(cfg.SupabaseURL, cfg.SupabaseAnonKey, cfg.SupabaseServiceRoleKey)
	var verifier *identity.Verifier
	if cfg.SupabaseJWTSecret != "" {
		verifier = identity.NewVerifier(cfg.SupabaseJWTSecret)
	}
	authenticator := identity.NewAuthenticator(idClient, verifier, logr)

	customerRepo := repository.NewCustomerRepository(db)
	productRepo := repository.NewProductRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	generationRepo := repository.NewGenerationRepository(db)

	dispatcher := generation.NewDispatcher(
		generation.DefaultFactories(providers.WithLogger(logr)),
		generation.WithDispatcherLogger(logr),
	)

	generationService := service.NewGenerationService(service.GenerationConfig{
		Cost:       cfg.ImageGenerationCost,
		Reserve:    cfg.ReserveCredits,
		StrictSize: cfg.StrictSizeCheck,
	}, logr, registry.Default(), credits, dispatcher, generationRepo, archive, notifier)
	accountService := service.NewAccountService(logr, idClient, customerRepo, credits, customerCreator, cfg.SignupBonusCredits)
	billingService := service.NewBillingService(logr, cfg.PublicBaseURL, stripeClient, customerRepo, productRepo, subscriptionRepo, paymentRepo, credits)
	orderService := service.NewOrderService(logr, idClient, subscriptionRepo)

	server := api.NewServer(api.Config{
		Addr:              cfg.HTTPListenAddr,
		GenerationTimeout: cfg.GenerationTimeout,
		MetricsEnabled:    cfg.MetricsEnabled,
	}, logr, authenticator, generationService, accountService, billingService, orderService)

	logr.Info("imageforge starting",
		"ledger", cfg.LedgerBackend,
		"reserve_credits", cfg.ReserveCredits,
		"audit_archive", archive.Enabled(),
		"alerts", notifier.Enabled(),
	)
	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logr.Error("http server stopped", "err", err)
	}
}
