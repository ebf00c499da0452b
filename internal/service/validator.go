package service

import (
	"context"

	"github.com/voyago/flight-bookings/internal/domain"
	"github.com/voyago/flight-bookings/internal/duffel"
)

// Provider is the slice of the remote order/payment API this engine
// consumes. The concrete implementation is internal/duffel.Client.
type Provider interface {
	GetOffer(ctx context.Context, offerID string) (*duffel.Offer, error)
	CreateHoldOrder(ctx context.Context, req duffel.OrderCreateRequest) (*duffel.Order, error)
	GetOrder(ctx context.Context, orderID string) (*duffel.Order, error)
	CreateCardToken(ctx context.Context, card duffel.CardDetails) (*duffel.Card, error)
	CreatePaymentIntent(ctx context.Context, amount, currency, cardID string) (*duffel.PaymentIntent, error)
	ConfirmPaymentIntent(ctx context.Context, intentID string) (*duffel.PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, intentID string) (*duffel.PaymentIntent, error)
	CreatePayment(ctx context.Context, orderID string, payment duffel.PaymentInput) (*duffel.Payment, error)
}

// validateOffer re-fetches the selected offer immediately before booking.
// A fetch failure or a gone offer reads as expired; an offer that forbids
// holding is terminal too.
func validateOffer(ctx context.Context, provider Provider, offerID string) (*duffel.Offer, error) {
	offer, err := provider.GetOffer(ctx, offerID)
	if err != nil {
		return nil, Wrap(CodeOfferExpired, "the selected fare is no longer available, please search again", err)
	}
	if offer.PaymentRequirements != nil && offer.PaymentRequirements.RequiresInstantPayment {
		return nil, E(CodeInstantPaymentRequired, "this fare requires instant payment and cannot be held")
	}
	return offer, nil
}

// validatePassengers enforces the legal composition: at least one adult,
// and no more lap infants than adults.
func validatePassengers(passengers []domain.Passenger) error {
	adults, infants := 0, 0
	for _, p := range passengers {
		switch p.Type {
		case domain.PassengerAdult:
			adults++
		case domain.PassengerInfant:
			infants++
		}
	}
	if adults == 0 {
		return E(CodeValidation, "at least one adult passenger is required")
	}
	if infants > adults {
		return E(CodeValidation, "each lap infant must be accompanied by an adult")
	}
	return nil
}
