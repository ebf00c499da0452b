package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/voyago/flight-bookings/internal/crypto"
	"github.com/voyago/flight-bookings/internal/duffel"
	"github.com/voyago/flight-bookings/internal/http/handlers"
	httpmw "github.com/voyago/flight-bookings/internal/http/middleware"
	"github.com/voyago/flight-bookings/internal/idempotency"
	"github.com/voyago/flight-bookings/internal/platform/mailer"
	"github.com/voyago/flight-bookings/internal/repo/postgres"
	"github.com/voyago/flight-bookings/internal/service"
	"github.com/voyago/flight-bookings/pkg/config"
	"github.com/voyago/flight-bookings/pkg/database"
	"github.com/voyago/flight-bookings/pkg/events"
	"github.com/voyago/flight-bookings/pkg/logger"
	mw "github.com/voyago/flight-bookings/pkg/middleware"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	// Connect to database
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Connect to event bus
	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	// Card vault
	vault, err := crypto.NewVault(cfg.Crypto.EncryptionKey)
	if err != nil {
		logger.Error("Invalid card encryption key", "error", err)
		os.Exit(1)
	}

	// Remote order/payment provider
	provider := duffel.NewClient(cfg.Duffel.BaseURL, cfg.Duffel.CardsBaseURL, cfg.Duffel.APIToken)

	// Mailer
	var mailSvc mailer.Service
	if cfg.Email.DevMode {
		mailSvc = mailer.NewDevMailer()
	} else {
		mailSvc = mailer.NewMailer(cfg.Email.MailerSendKey, cfg.Email.FromName, cfg.Email.FromEmail)
	}

	// Idempotency response cache
	idemStore, err := idempotency.NewRedisStore(cfg.Redis.URL)
	if err != nil {
		logger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer idemStore.Close()

	// Services
	bookingRepo := postgres.NewBookingRepository(pool)
	syncSvc := service.NewSyncService(bookingRepo, provider, eventBus)
	bookingSvc := service.NewBookingService(bookingRepo, provider, vault, mailSvc, eventBus, syncSvc, cfg)
	paymentSvc := service.NewPaymentService(bookingRepo, provider, vault, eventBus, cfg)

	h := handlers.New(bookingSvc, paymentSvc, bookingRepo, cfg)

	bookingLimiter := httpmw.NewRateLimiter(httpmw.RateLimitConfig{
		Requests: cfg.RateLimit.BookingLimit,
		Window:   cfg.RateLimit.Window,
	})
	paymentLimiter := httpmw.NewRateLimiter(httpmw.RateLimitConfig{
		Requests: cfg.RateLimit.PaymentLimit,
		Window:   cfg.RateLimit.Window,
	})

	// Setup router
	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("bookings"))
	r.Use(mw.Logging)
	r.Use(mw.Health)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/bookings", func(r chi.Router) {
		r.With(bookingLimiter.Middleware(), mw.IdempotencyMiddleware(idemStore)).Post("/", h.CreateBooking)
		r.Get("/", h.ListBookings)
		r.Get("/{id}", h.GetBooking)
		r.With(paymentLimiter.Middleware()).Post("/{id}/tokenize-card", h.TokenizeCard)
		r.With(paymentLimiter.Middleware()).Post("/{id}/issue-ticket", h.IssueTicket)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Post("/login", h.AdminLogin)
		r.Group(func(r chi.Router) {
			r.Use(httpmw.RequireAdmin(cfg.Auth.JWTSecret))
			r.Get("/bookings", h.AdminListBookings)
			r.Patch("/bookings/{id}/status", h.AdminForceStatus)
			r.Post("/bookings/{id}/notes", h.AdminAddNote)
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down bookings service...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Bookings service shutdown error", "error", err)
		}
	}()

	logger.Info("Starting bookings service", "port", cfg.Server.Port, "live_mode", cfg.Duffel.LiveMode)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Bookings service error", "error", err)
		os.Exit(1)
	}
}
