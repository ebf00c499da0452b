package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/voyago/flight-bookings/internal/platform/mailer"
	"github.com/voyago/flight-bookings/pkg/config"
	"github.com/voyago/flight-bookings/pkg/events"
	"github.com/voyago/flight-bookings/pkg/logger"
	mw "github.com/voyago/flight-bookings/pkg/middleware"
)

// The notify worker turns booking lifecycle events into customer emails.
// It runs as a queue group so multiple instances split the stream instead
// of duplicating sends.
const queueGroup = "notify-workers"

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	var mailSvc mailer.Service
	if cfg.Email.DevMode {
		mailSvc = mailer.NewDevMailer()
	} else {
		mailSvc = mailer.NewMailer(cfg.Email.MailerSendKey, cfg.Email.FromName, cfg.Email.FromEmail)
	}

	w := &worker{mailer: mailSvc}

	subscriptions := map[string]func(*events.Message){
		events.TicketIssued:  w.onTicketIssued,
		events.PaymentFailed: w.onPaymentFailed,
		events.NotifySend:    w.onNotifySend,
	}
	for subject, handler := range subscriptions {
		if err := eventBus.QueueSubscribe(subject, queueGroup, handler); err != nil {
			logger.Error("Failed to subscribe", "subject", subject, "error", err)
			os.Exit(1)
		}
	}

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("notify"))
	r.Use(mw.Logging)
	r.Use(mw.Health)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("Starting notify service", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Notify service error", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutting down notify service...")
	_ = srv.Close()
}

type worker struct {
	mailer mailer.Service
}

func (w *worker) onTicketIssued(msg *events.Message) {
	var evt events.TicketIssuedEvent
	if err := json.Unmarshal(msg.Data, &evt); err != nil {
		logger.Error("Failed to decode ticket issued event", "error", err)
		return
	}
	if evt.Email == "" {
		logger.Warn("Ticket issued event without recipient", "reference", evt.Reference)
		return
	}

	subject := fmt.Sprintf("Your ticket is issued - %s", evt.Reference)
	text := fmt.Sprintf(
		"Your flight booking %s has been ticketed.\nAirline reference: %s\nTicket number(s): %s\n",
		evt.Reference, evt.PNR, strings.Join(evt.Documents, ", "))

	if _, err := w.mailer.Send(evt.Email, "", subject, text, ""); err != nil {
		logger.Error("Failed to send ticket issued email", "error", err, "reference", evt.Reference)
		return
	}
	logger.Info("Ticket issued email sent", "reference", evt.Reference)
}

func (w *worker) onPaymentFailed(msg *events.Message) {
	var evt events.PaymentFailedEvent
	if err := json.Unmarshal(msg.Data, &evt); err != nil {
		logger.Error("Failed to decode payment failed event", "error", err)
		return
	}
	if evt.Email == "" {
		return
	}

	subject := fmt.Sprintf("Payment issue with booking %s", evt.Reference)
	text := fmt.Sprintf(
		"We could not complete the payment for booking %s. Please try again or contact support.\n",
		evt.Reference)

	if _, err := w.mailer.Send(evt.Email, "", subject, text, ""); err != nil {
		logger.Error("Failed to send payment failed email", "error", err, "reference", evt.Reference)
		return
	}
	logger.Info("Payment failed email sent", "reference", evt.Reference, "retry_count", evt.RetryCount)
}

func (w *worker) onNotifySend(msg *events.Message) {
	var evt events.NotificationEvent
	if err := json.Unmarshal(msg.Data, &evt); err != nil {
		logger.Error("Failed to decode notification event", "error", err)
		return
	}
	if evt.Recipient == "" || evt.Subject == "" {
		logger.Warn("Notification event missing recipient or subject", "type", evt.Type)
		return
	}

	body, _ := json.MarshalIndent(evt.Data, "", "  ")
	if _, err := w.mailer.Send(evt.Recipient, "", evt.Subject, string(body), ""); err != nil {
		logger.Error("Failed to send notification", "error", err, "type", evt.Type)
		return
	}
	logger.Info("Notification sent", "type", evt.Type)
}
