package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/voyago/flight-bookings/internal/crypto"
	"github.com/voyago/flight-bookings/internal/domain"
	"github.com/voyago/flight-bookings/internal/duffel"
	"github.com/voyago/flight-bookings/internal/platform/mailer"
	"github.com/voyago/flight-bookings/internal/reference"
	"github.com/voyago/flight-bookings/internal/repo/postgres"
	"github.com/voyago/flight-bookings/pkg/config"
	"github.com/voyago/flight-bookings/pkg/events"
	"github.com/voyago/flight-bookings/pkg/logger"
)

type BookingService interface {
	CreateBooking(ctx context.Context, req *CreateBookingRequest) (*CreateBookingResult, error)
	GetBooking(ctx context.Context, id int64) (*domain.Booking, error)
	ListBookings(ctx context.Context, limit, offset int) ([]domain.Booking, error)
}

type CardInput struct {
	CardName       string `json:"card_name"`
	CardNumber     string `json:"card_number"`
	ExpiryDate     string `json:"expiry_date"` // MM/YY
	CVV            string `json:"cvv"`         // runtime-only, never persisted
	BillingAddress string `json:"billing_address,omitempty"`
}

type CreateBookingRequest struct {
	OfferID       string               `json:"offer_id"`
	Contact       domain.Contact       `json:"contact"`
	Passengers    []domain.Passenger   `json:"passengers"`
	Payment       CardInput            `json:"payment"`
	FlightDetails domain.FlightDetails `json:"flight_details"`
	TotalAmount   string               `json:"total_amount"`
	Currency      string               `json:"currency"`
}

type CreateBookingResult struct {
	BookingID       int64      `json:"booking_id"`
	Reference       string     `json:"reference"`
	PNR             string     `json:"pnr"`
	PaymentDeadline *time.Time `json:"payment_deadline,omitempty"`
}

type bookingService struct {
	repo     postgres.BookingRepository
	provider Provider
	vault    *crypto.Vault
	mailer   mailer.Service
	eventBus events.Publisher
	sync     *SyncService
	config   *config.Config
}

func NewBookingService(
	repo postgres.BookingRepository,
	provider Provider,
	vault *crypto.Vault,
	m mailer.Service,
	eventBus events.Publisher,
	sync *SyncService,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:     repo,
		provider: provider,
		vault:    vault,
		mailer:   m,
		eventBus: eventBus,
		sync:     sync,
		config:   cfg,
	}
}

// CreateBooking runs the intake flow: validate the offer and passengers,
// persist a provisional record, create the remote pay-later order, then
// finalize the local record. The provisional row is written before any
// remote call so a provider outage always leaves a traceable booking.
func (s *bookingService) CreateBooking(ctx context.Context, req *CreateBookingRequest) (*CreateBookingResult, error) {
	if err := validatePassengers(req.Passengers); err != nil {
		return nil, err
	}
	if _, err := parseCents(req.TotalAmount); err != nil {
		return nil, E(CodeValidation, "total_amount must be a decimal amount like \"450.00\"")
	}
	offer, err := validateOffer(ctx, s.provider, req.OfferID)
	if err != nil {
		return nil, err
	}

	encryptedCard, err := s.vault.Encrypt(req.Payment.CardNumber)
	if err != nil {
		return nil, Wrap(CodeInternal, "could not secure card data", err)
	}

	booking, err := s.createProvisional(ctx, req, encryptedCard)
	if err != nil {
		return nil, err
	}

	ctx = context.WithValue(ctx, logger.BookingRefKey, booking.BookingReference)
	logger.InfoContext(ctx, "Provisional booking created", "booking_id", booking.ID, "offer_id", req.OfferID)

	if err := s.eventBus.Publish(ctx, events.BookingCreated, events.BookingCreatedEvent{
		BookingID: booking.ID,
		Reference: booking.BookingReference,
		Email:     req.Contact.Email,
		OfferID:   req.OfferID,
		CreatedAt: booking.CreatedAt,
	}); err != nil {
		logger.ErrorContext(ctx, "Failed to publish booking created event", "error", err, "booking_id", booking.ID)
	}

	orderReq := duffel.OrderCreateRequest{
		Type:           "hold",
		SelectedOffers: []string{req.OfferID},
		Passengers:     buildOrderPassengers(req.Passengers, offer.Passengers, req.Contact, time.Now()),
		Metadata:       map[string]string{"booking_reference": booking.BookingReference},
	}

	order, err := s.provider.CreateHoldOrder(ctx, orderReq)
	if err != nil {
		return nil, s.failIntake(ctx, booking, err)
	}

	markup, err := computeMarkup(req.TotalAmount, order.TotalAmount)
	if err != nil {
		logger.WarnContext(ctx, "Could not compute markup", "error", err)
		markup = "0.00"
	}

	hold := postgres.HoldUpdate{
		DuffelOrderID: order.ID,
		PNR:           order.BookingReference,
		BaseAmount:    order.TotalAmount,
		Markup:        markup,
		Documents:     toDomainDocuments(order.Documents),
		LiveMode:      order.LiveMode,
	}
	if order.PaymentStatus != nil {
		hold.PaymentDeadline = order.PaymentStatus.PaymentRequiredBy
		hold.PriceExpiry = order.PaymentStatus.PriceGuaranteeExpiresAt
	}

	if err := s.repo.MarkHeld(ctx, booking.ID, hold); err != nil {
		// The remote hold exists; surface the local write failure with
		// enough context for support to reconcile by reference.
		logger.ErrorContext(ctx, "Failed to persist remote order on booking",
			"booking_id", booking.ID, "duffel_order_id", order.ID, "error", err)
		return nil, Wrap(CodeInternal, "booking was held but could not be finalized, contact support", err)
	}

	logger.InfoContext(ctx, "Booking held", "booking_id", booking.ID, "pnr", order.BookingReference)

	if err := s.eventBus.Publish(ctx, events.BookingHeld, events.BookingHeldEvent{
		BookingID:       booking.ID,
		Reference:       booking.BookingReference,
		Email:           req.Contact.Email,
		PNR:             order.BookingReference,
		TotalAmount:     req.TotalAmount,
		Currency:        req.Currency,
		PaymentDeadline: hold.PaymentDeadline,
	}); err != nil {
		logger.ErrorContext(ctx, "Failed to publish booking held event", "error", err, "booking_id", booking.ID)
	}

	s.sendConfirmation(ctx, booking, req, order)

	return &CreateBookingResult{
		BookingID:       booking.ID,
		Reference:       booking.BookingReference,
		PNR:             order.BookingReference,
		PaymentDeadline: hold.PaymentDeadline,
	}, nil
}

// createProvisional persists the processing row, regenerating the
// reference on the rare same-day collision.
func (s *bookingService) createProvisional(ctx context.Context, req *CreateBookingRequest, encryptedCard string) (*domain.Booking, error) {
	for attempt := 0; attempt < 3; attempt++ {
		booking := &domain.Booking{
			BookingReference: reference.Generate(s.config.Booking.ReferencePrefix, time.Now()),
			OfferID:          req.OfferID,
			Status:           domain.BookingProcessing,
			Contact:          req.Contact,
			Passengers:       req.Passengers,
			FlightDetails:    req.FlightDetails,
			Pricing: domain.Pricing{
				Currency:    req.Currency,
				TotalAmount: req.TotalAmount,
			},
			PaymentInfo: &domain.PaymentInfo{
				CardName:       req.Payment.CardName,
				CardNumber:     encryptedCard,
				ExpiryDate:     req.Payment.ExpiryDate,
				BillingAddress: req.Payment.BillingAddress,
			},
			IsLiveMode: s.config.Duffel.LiveMode,
		}

		created, err := s.repo.Create(ctx, booking)
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, postgres.ErrDuplicateReference) {
			return nil, Wrap(CodeInternal, "could not create booking", err)
		}
	}
	return nil, E(CodeDuplicateReference, "could not allocate a booking reference, please retry")
}

// failIntake maps a provider rejection to a terminal category and records
// it on the booking.
func (s *bookingService) failIntake(ctx context.Context, booking *domain.Booking, cause error) error {
	note := fmt.Sprintf("order creation failed: %v", cause)
	if err := s.repo.MarkFailed(ctx, booking.ID, note); err != nil {
		logger.ErrorContext(ctx, "Failed to mark booking failed", "error", err, "booking_id", booking.ID)
	}

	if err := s.eventBus.Publish(ctx, events.BookingFailed, events.BookingFailedEvent{
		BookingID: booking.ID,
		Reference: booking.BookingReference,
		Reason:    note,
	}); err != nil {
		logger.ErrorContext(ctx, "Failed to publish booking failed event", "error", err, "booking_id", booking.ID)
	}

	switch {
	case duffel.IsCode(cause, duffel.CodeOfferNoLongerAvailable):
		return Wrap(CodeOfferExpired, "the selected fare is no longer available, please search again", cause)
	case duffel.IsCode(cause, duffel.CodeInstantPaymentRequired):
		return Wrap(CodeInstantPaymentRequired, "this fare requires instant payment and cannot be held", cause)
	default:
		return Wrap(CodeProviderError, "the airline rejected this booking", cause)
	}
}

// sendConfirmation is best-effort: a notification failure never fails the
// booking.
func (s *bookingService) sendConfirmation(ctx context.Context, booking *domain.Booking, req *CreateBookingRequest, order *duffel.Order) {
	name := ""
	for _, p := range req.Passengers {
		if p.Type == domain.PassengerAdult {
			name = p.GivenName + " " + p.FamilyName
			break
		}
	}

	err := s.mailer.SendBookingConfirmation(mailer.BookingConfirmation{
		Email:       req.Contact.Email,
		Name:        name,
		Reference:   booking.BookingReference,
		PNR:         order.BookingReference,
		Amount:      req.TotalAmount,
		Currency:    req.Currency,
		Route:       req.FlightDetails.Route,
		FlightNo:    req.FlightDetails.FlightNumber,
		DepartureAt: req.FlightDetails.DepartureDate,
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to send booking confirmation", "error", err, "booking_id", booking.ID)
	}
}

func (s *bookingService) GetBooking(ctx context.Context, id int64) (*domain.Booking, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, Wrap(CodeInternal, "could not load booking", err)
	}
	if b == nil {
		return nil, E(CodeNotFound, "booking not found")
	}
	return s.sync.Reconcile(ctx, b), nil
}

func (s *bookingService) ListBookings(ctx context.Context, limit, offset int) ([]domain.Booking, error) {
	bookings, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, Wrap(CodeInternal, "could not list bookings", err)
	}
	return s.sync.ReconcilePage(ctx, bookings), nil
}

func toDomainDocuments(docs []duffel.Document) []domain.Document {
	out := make([]domain.Document, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.Document{UniqueIdentifier: d.UniqueIdentifier, Type: d.Type})
	}
	return out
}
