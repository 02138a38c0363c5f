package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	_ "golang.org/x/crypto/x509roots/fallback"

	"github.com/superbrain63/superbrain-ai/internal/adapters/accountrepository"
	"github.com/superbrain63/superbrain-ai/internal/adapters/cache"
	"github.com/superbrain63/superbrain-ai/internal/adapters/completionprovider"
	"github.com/superbrain63/superbrain-ai/internal/adapters/paymentevents"
	"github.com/superbrain63/superbrain-ai/internal/app"
	"github.com/superbrain63/superbrain-ai/internal/config"
	"github.com/superbrain63/superbrain-ai/internal/domain"
	"github.com/superbrain63/superbrain-ai/internal/ports"
	"github.com/superbrain63/superbrain-ai/internal/reporting"
	"github.com/superbrain63/superbrain-ai/internal/telemetry"
)

// Stripe retries failed deliveries for up to three days
const seenPaymentEventTTL = 72 * time.Hour

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	instanceID := uuid.New().String()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("instanceID", instanceID)
	slog.SetDefault(logger)

	fail := func(msg string, args ...any) {
		logger.Error(msg, args...)
		os.Exit(1)
	}

	config, err := config.ConfigFromEnv()
	if err != nil {
		fail("Failed to load config", "error", err.Error())
	}
	logger.Info("Loaded config", "config", config.NonSensitiveString())

	if !config.IsDevelopment() {
		shutdownTelemetry, err := telemetry.SetupOTelSDK(ctx, "superbrain-ai")
		if err != nil {
			fail("Failed to initialize telemetry", "error", err.Error())
		}
		defer func() {
			err := shutdownTelemetry(context.Background())
			if err != nil {
				logger.Error("Failed to shut down telemetry", "error", err.Error())
			}
		}()
		logger.Info("Initialized telemetry")
	}

	sentryMiddleware, flush, err := reporting.NewSentryMiddlewareOrMock(config)
	if err != nil {
		fail("Failed to initialize Sentry", "error", err.Error())
	}
	defer flush()
	logger.Info("Initialized Sentry middleware")

	policy, err := config.QuotaPolicy()
	if err != nil {
		fail("Failed to initialize quota policy", "error", err.Error())
	}

	accountRepo, closeAccountRepo, err := accountrepository.NewFromConfig(ctx, config, logger)
	if err != nil {
		fail("Failed to initialize AccountRepository", "error", err.Error())
	}
	defer closeAccountRepo()
	logger.Info("Initialized AccountRepository", "store", string(config.AccountStore()))

	completionProvider, err := completionprovider.NewOpenAIOrStub(config, logger)
	if err != nil {
		fail("Failed to initialize CompletionProvider", "error", err.Error())
	}
	logger.Info("Initialized CompletionProvider")

	allowedOrigins, err := ports.NewDomainSuffixes(config.AllowedOriginSuffixes()...)
	if err != nil {
		fail("Failed to initialize allowed origins", "error", err.Error())
	}

	seenPaymentEvents := cache.NewTTLCache[domain.Account](seenPaymentEventTTL)

	checkAndConsume := app.BuildCheckAndConsume(accountRepo, policy, time.Now)
	getUsage := app.BuildGetUsage(accountRepo, policy, time.Now)
	applyTierChange := app.BuildApplyTierChange(accountRepo, policy)
	redeemAccessCode := app.BuildRedeemAccessCode(applyTierChange, config.PremiumAccessCode())
	handlePaymentEvent := app.BuildHandlePaymentEvent(seenPaymentEvents, applyTierChange)
	completeWithQuota := app.BuildCompleteWithQuota(checkAndConsume, completionProvider)

	mux := http.NewServeMux()

	mux.HandleFunc(
		"OPTIONS /v1/check",
		ports.BuildCORSHandler(allowedOrigins, http.MethodPost),
	)
	mux.HandleFunc(
		"POST /v1/check",
		ports.MakeCheckHandler(
			checkAndConsume,
			allowedOrigins,
			logger.With("port", "check"),
			sentryMiddleware,
		),
	)

	mux.HandleFunc(
		"OPTIONS /v1/usage",
		ports.BuildCORSHandler(allowedOrigins, http.MethodGet),
	)
	mux.HandleFunc(
		"GET /v1/usage",
		ports.MakeUsageHandler(
			getUsage,
			allowedOrigins,
			logger.With("port", "usage"),
			sentryMiddleware,
		),
	)

	mux.HandleFunc(
		"OPTIONS /v1/complete",
		ports.BuildCORSHandler(allowedOrigins, http.MethodPost),
	)
	mux.HandleFunc(
		"POST /v1/complete",
		ports.MakeCompleteHandler(
			completeWithQuota,
			allowedOrigins,
			logger.With("port", "complete"),
			sentryMiddleware,
		),
	)

	mux.HandleFunc(
		"OPTIONS /v1/premium/redeem",
		ports.BuildCORSHandler(allowedOrigins, http.MethodPost),
	)
	mux.HandleFunc(
		"POST /v1/premium/redeem",
		ports.MakeRedeemHandler(
			redeemAccessCode,
			allowedOrigins,
			logger.With("port", "redeem"),
			sentryMiddleware,
		),
	)

	if config.StripeWebhookSecret() != "" {
		stripeParser := paymentevents.NewStripeParser(config.StripeWebhookSecret())
		mux.HandleFunc(
			"POST /v1/billing/stripe",
			ports.MakeStripeWebhookHandler(
				stripeParser.ParseEvent,
				handlePaymentEvent,
				logger.With("port", "stripe-webhook"),
				sentryMiddleware,
			),
		)
	} else {
		logger.Warn("Missing Stripe webhook secret. Payment webhook is disabled.")
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", config.Port()),
		Handler:           otelhttp.NewHandler(mux, "superbrain-ai"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to shut down server", "error", err.Error())
		}
	}()

	logger.Info("Init complete")
	err = server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		logger.Info("Server shutdown")
	} else {
		fail("Server error", "error", err.Error())
	}
}
