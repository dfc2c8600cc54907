package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Kelompok-1-ODP-IT-343/KPR-Form-Verify/internal/config"
	"github.com/Kelompok-1-ODP-IT-343/KPR-Form-Verify/internal/domain"
	"github.com/Kelompok-1-ODP-IT-343/KPR-Form-Verify/internal/handlers"
	"github.com/Kelompok-1-ODP-IT-343/KPR-Form-Verify/internal/logging"
	"github.com/Kelompok-1-ODP-IT-343/KPR-Form-Verify/internal/repository"
	"github.com/Kelompok-1-ODP-IT-343/KPR-Form-Verify/internal/services"
	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

const (
	sessionCleanupInterval = time.Minute
	shutdownTimeout        = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN, Environment: cfg.Env}); err != nil {
			logger.Warn("sentry init failed", zap.Error(err))
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Session store
	var store domain.SessionStore
	if cfg.RedisURL != "" {
		client, err := services.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer client.Close()
		store = services.NewRedisSessionStore(client, cfg.SessionTTLDuration())
		logger.Info("using redis session store")
	} else {
		mem := services.NewMemorySessionStore(cfg.SessionTTLDuration())
		go mem.Run(ctx, sessionCleanupInterval)
		store = mem
		logger.Info("REDIS_URL not set, sessions are kept in memory")
	}

	// Database
	var db repository.DB
	if cfg.DatabaseURL != "" {
		pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("failed to initialize database", zap.Error(err))
		}
		defer pool.Close()
		db = pool
	} else {
		logger.Warn("DATABASE_URL not set, application submissions will be rejected")
	}
	applications := repository.NewApplicationRepository(db)
	if db != nil {
		if err := applications.EnsureSchema(ctx); err != nil {
			logger.Fatal("failed to prepare database schema", zap.Error(err))
		}
		logger.Info("connected to PostgreSQL")
	}

	partners, err := services.LoadPartnerRegistry(cfg.PartnersFile)
	if err != nil {
		logger.Fatal("failed to load partners", zap.String("path", cfg.PartnersFile), zap.Error(err))
	}

	recaptcha := services.NewRecaptchaClient(cfg.RecaptchaV3Secret, cfg.RecaptchaV2Secret, cfg.RecaptchaVerifyURL, logger)
	verification := services.NewVerificationService(store, recaptcha, partners, cfg.RecaptchaScoreThreshold, cfg.RecaptchaFallbackScore, logger)
	otp := services.NewOTPService(services.NewOTPAPIClient(cfg.OTPAPIURL, cfg.OTPAPIKey), cfg.ResendCooldown(), cfg.OTPExpiryDuration(), logger)
	go otp.Run(ctx)
	applicationService := services.NewApplicationService(store, applications, logger)

	h := handlers.Handlers{
		Sessions:     handlers.NewSessionHandler(verification, partners, logger),
		OTP:          handlers.NewOTPHandler(otp, verification, logger),
		Partners:     handlers.NewPartnerHandler(partners),
		Applications: handlers.NewApplicationHandler(applicationService, logger),
	}

	if cfg.OTPBackendEnabled {
		notifier, closeNotifier, err := buildNotifier(ctx, cfg, logger)
		if err != nil {
			logger.Fatal("failed to initialize OTP notifier", zap.String("notifier", cfg.OTPNotifier), zap.Error(err))
		}
		defer closeNotifier()

		issuer := services.NewOTPIssuer(cfg.OTPExpiryDuration(), notifier, logger)
		go issuer.Run(ctx)
		h.OTPBackend = handlers.NewOTPBackendHandler(issuer, int(cfg.OTPExpiryDuration().Seconds()), logger)
		logger.Info("OTP backend enabled", zap.String("notifier", cfg.OTPNotifier))
	}

	if cfg.GetAPIKey() == "" {
		logger.Warn("API_KEY is empty, admin endpoints are unprotected")
	}

	srv := &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           handlers.NewRouter(h, cfg, cfg.OTPAPIKey, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// buildNotifier returns the OTP delivery channel chosen by OTP_NOTIFIER
func buildNotifier(ctx context.Context, cfg *config.Config, logger *zap.Logger) (domain.OTPNotifier, func(), error) {
	switch cfg.OTPNotifier {
	case "whatsapp":
		wa, err := services.NewWhatsAppService(ctx, cfg.WhatsAppStorePath, cfg.OTPExpiryDuration(), logger)
		if err != nil {
			return nil, nil, err
		}
		return services.NewWhatsAppNotifier(wa), wa.Disconnect, nil
	case "sms":
		client := services.NewSMSLocalClient(cfg.SMSLocalAPIKey, cfg.SMSLocalBaseURL, cfg.SMSLocalSender)
		return services.NewSMSNotifier(client), func() {}, nil
	default:
		logger.Warn("OTP codes are written to the log, do not use in production")
		return services.NewLogNotifier(logger), func() {}, nil
	}
}
