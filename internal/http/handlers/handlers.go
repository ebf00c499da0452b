package handlers

import (
	"github.com/voyago/flight-bookings/internal/repo/postgres"
	"github.com/voyago/flight-bookings/internal/service"
	"github.com/voyago/flight-bookings/pkg/config"
)

type Handlers struct {
	bookings service.BookingService
	payments service.PaymentService
	repo     postgres.BookingRepository
	config   *config.Config
}

func New(
	bookings service.BookingService,
	payments service.PaymentService,
	repo postgres.BookingRepository,
	cfg *config.Config,
) *Handlers {
	return &Handlers{
		bookings: bookings,
		payments: payments,
		repo:     repo,
		config:   cfg,
	}
}
