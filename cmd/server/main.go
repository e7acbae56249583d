package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"carecoins/internal/accrual"
	"carecoins/internal/config"
	"carecoins/internal/database"
	"carecoins/internal/events"
	"carecoins/internal/handlers"
	"carecoins/internal/identity"
	"carecoins/internal/logging"
	"carecoins/internal/metrics"
	"carecoins/internal/repository"
	"carecoins/internal/security"
	"carecoins/internal/service"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.New("carecoins", cfg.LogLevel, cfg.LogFormat)
	if cfg.Debug {
		log.SetLevel(logrus.DebugLevel)
	}

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}
	loc, err := cfg.Location()
	if err != nil {
		log.WithError(err).Fatal("Invalid accrual timezone")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	status := handlers.NewStartupStatus(
		handlers.StepDatabase,
		handlers.StepMigrations,
		handlers.StepIdentity,
		handlers.StepServices,
		handlers.StepServer,
	)

	status.SetCurrentStep(handlers.StepDatabase)
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()
	log.WithField("type", cfg.DatabaseType).Info("Database connection established")
	status.CompleteStep(handlers.StepDatabase)

	status.SetCurrentStep(handlers.StepMigrations)
	if err := db.RunMigrations(); err != nil {
		log.WithError(err).Fatal("Failed to run migrations")
	}
	log.Info("Migrations completed successfully")
	status.CompleteStep(handlers.StepMigrations)

	status.SetCurrentStep(handlers.StepIdentity)
	var provider identity.Provider
	if cfg.SupabaseJWTSecret != "" {
		provider = identity.NewJWTVerifier(cfg.SupabaseJWTSecret, "authenticated")
		log.Info("Verifying access tokens locally")
	} else {
		provider = identity.NewSupabaseClient(cfg.SupabaseURL, cfg.SupabaseAnonKey)
		log.WithField("url", cfg.SupabaseURL).Info("Verifying access tokens with Supabase Auth")
	}
	status.CompleteStep(handlers.StepIdentity)

	status.SetCurrentStep(handlers.StepServices)
	emailService, err := service.NewEmailService(ctx, cfg.AWSRegion, cfg.SESFromEmail, cfg.SESFromName, log)
	if err != nil {
		log.WithError(err).Warn("Email disabled: failed to initialize SES")
		emailService = nil
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.AMQPURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, log)
		if err != nil {
			log.WithError(err).Warn("Events disabled: failed to connect to AMQP broker")
		} else {
			publisher = amqpPublisher
			log.WithField("exchange", cfg.AMQPExchange).Info("Publishing domain events")
		}
	}
	defer publisher.Close()

	familyRepo := repository.NewFamilyRepository(db)
	actorRepo := repository.NewActorRepository(db)
	userRepo := repository.NewUserRepository(db)
	activityRepo := repository.NewActivityRepository(db)

	calculator := accrual.NewCalculator(accrual.DefaultRateTable(), loc)

	familyOpts := []service.FamilyOption{
		service.WithLogger(log),
		service.WithPublisher(publisher),
		service.WithSearchLimit(cfg.SearchLimit),
	}
	if emailService != nil && emailService.IsEnabled() {
		familyOpts = append(familyOpts, service.WithNotifier(emailService))
	}
	familyService := service.NewFamilyService(familyRepo, actorRepo, userRepo, calculator, familyOpts...)
	activityService := service.NewActivityService(activityRepo, actorRepo, userRepo, publisher, log)
	status.CompleteStep(handlers.StepServices)

	middleware := handlers.NewMiddleware(provider, log, cfg.CORSAllowedOrigins)
	mux := handlers.Routes(middleware,
		handlers.NewFamilyHandler(familyService, log),
		handlers.NewActivityHandler(activityService, log),
		handlers.NewHealthHandler(status, db),
	)

	rateLimiter := security.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, log)
	rateLimiter.StartCleanup(ctx, time.Minute)

	handler := handlers.Chain(mux,
		middleware.Trace,
		security.Headers,
		middleware.CORS,
		rateLimiter.Handler,
		middleware.Logging,
		metrics.InstrumentHandler,
		handlers.Timeout(cfg.RequestTimeout),
	)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.WithField("addr", server.Addr).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()
	status.MarkReady()

	select {
	case err := <-serverErr:
		log.WithError(err).Error("Server failed")
	case <-ctx.Done():
		log.Info("Server shutting down...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown failed")
	}
}
