package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/voyago/flight-bookings/internal/domain"
	"github.com/voyago/flight-bookings/internal/duffel"
	"github.com/voyago/flight-bookings/internal/repo/postgres"
	"github.com/voyago/flight-bookings/pkg/events"
)

func newIntakeFixture(t *testing.T) (*mockRepo, *mockProvider, *mockPublisher, *mockMailer, BookingService) {
	t.Helper()
	repo := newMockRepo()
	provider := &mockProvider{}
	bus := &mockPublisher{}
	mail := &mockMailer{}
	sync := NewSyncService(repo, provider, bus)
	svc := NewBookingService(repo, provider, testVault(t), mail, bus, sync, testConfig())
	return repo, provider, bus, mail, svc
}

func heldOrder() *duffel.Order {
	deadline := time.Now().Add(72 * time.Hour)
	return &duffel.Order{
		ID:               "ord_1",
		BookingReference: "ABC123",
		TotalAmount:      "430.00",
		TotalCurrency:    "USD",
		PaymentStatus:    &duffel.OrderPaymentStatus{AwaitingPayment: true, PaymentRequiredBy: &deadline},
	}
}

func TestCreateBookingHappyPath(t *testing.T) {
	repo, provider, bus, mail, svc := newIntakeFixture(t)
	provider.getOfferFn = func(string) (*duffel.Offer, error) { return availableOffer(), nil }
	provider.createOrderFn = func(duffel.OrderCreateRequest) (*duffel.Order, error) { return heldOrder(), nil }

	result, err := svc.CreateBooking(context.Background(), validCreateRequest())
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	if result.PNR != "ABC123" {
		t.Fatalf("PNR = %q, want ABC123", result.PNR)
	}
	if !strings.HasPrefix(result.Reference, "VGO-") {
		t.Fatalf("reference %q missing prefix", result.Reference)
	}
	if result.PaymentDeadline == nil {
		t.Fatal("expected payment deadline from the held order")
	}

	stored, _ := repo.GetByID(context.Background(), result.BookingID)
	if stored.Status != domain.BookingHeld {
		t.Fatalf("stored status = %s, want held", stored.Status)
	}
	if stored.Pricing.Markup != "70.00" {
		t.Fatalf("markup = %q, want 70.00", stored.Pricing.Markup)
	}
	if stored.Pricing.BaseAmount != "430.00" {
		t.Fatalf("base amount = %q, want 430.00", stored.Pricing.BaseAmount)
	}
	if stored.PaymentInfo == nil || stored.PaymentInfo.CardNumber == "4242424242424242" {
		t.Fatal("card number must be stored encrypted")
	}

	if provider.lastOrderReq.Type != "hold" {
		t.Fatalf("order type = %q, want hold", provider.lastOrderReq.Type)
	}
	if got := provider.lastOrderReq.Metadata["booking_reference"]; got != result.Reference {
		t.Fatalf("order metadata reference = %q, want %q", got, result.Reference)
	}

	if !bus.published(events.BookingHeld) {
		t.Fatal("expected booking held event")
	}
	if len(mail.confirmations) != 1 {
		t.Fatalf("expected 1 confirmation email, got %d", len(mail.confirmations))
	}
}

func TestCreateBookingRejectsBadPartyBeforeProviderCall(t *testing.T) {
	_, provider, _, _, svc := newIntakeFixture(t)

	req := validCreateRequest()
	req.Passengers = []domain.Passenger{{Type: domain.PassengerChild, GivenName: "Ben", Gender: "m", BornOn: "2018-01-01"}}

	_, err := svc.CreateBooking(context.Background(), req)
	if CodeOf(err) != CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if provider.getOfferCalls != 0 || provider.createOrderCalls != 0 {
		t.Fatal("provider must not be called for an invalid party")
	}
}

func TestCreateBookingRejectsMalformedTotalBeforeProviderCall(t *testing.T) {
	repo, provider, _, _, svc := newIntakeFixture(t)

	req := validCreateRequest()
	req.TotalAmount = "abc"

	_, err := svc.CreateBooking(context.Background(), req)
	if CodeOf(err) != CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if provider.getOfferCalls != 0 || provider.createOrderCalls != 0 {
		t.Fatal("provider must not be called for an unparseable total")
	}
	if len(repo.bookings) != 0 {
		t.Fatal("no booking row for an unparseable total")
	}
}

func TestCreateBookingOfferGone(t *testing.T) {
	repo, provider, _, _, svc := newIntakeFixture(t)
	provider.getOfferFn = func(string) (*duffel.Offer, error) {
		return nil, &duffel.APIError{StatusCode: 404, Code: "not_found"}
	}

	_, err := svc.CreateBooking(context.Background(), validCreateRequest())
	if CodeOf(err) != CodeOfferExpired {
		t.Fatalf("expected offer expired, got %v", err)
	}
	if len(repo.bookings) != 0 {
		t.Fatal("no provisional row should exist when the offer is gone")
	}
}

func TestCreateBookingInstantPaymentOffer(t *testing.T) {
	_, provider, _, _, svc := newIntakeFixture(t)
	provider.getOfferFn = func(string) (*duffel.Offer, error) {
		o := availableOffer()
		o.PaymentRequirements = &duffel.PaymentRequirements{RequiresInstantPayment: true}
		return o, nil
	}

	_, err := svc.CreateBooking(context.Background(), validCreateRequest())
	if CodeOf(err) != CodeInstantPaymentRequired {
		t.Fatalf("expected instant payment rejection, got %v", err)
	}
	if provider.createOrderCalls != 0 {
		t.Fatal("no hold order should be attempted for an instant-payment offer")
	}
}

func TestCreateBookingProviderRejectionMarksFailed(t *testing.T) {
	repo, provider, bus, _, svc := newIntakeFixture(t)
	provider.getOfferFn = func(string) (*duffel.Offer, error) { return availableOffer(), nil }
	provider.createOrderFn = func(duffel.OrderCreateRequest) (*duffel.Order, error) {
		return nil, &duffel.APIError{StatusCode: 422, Code: duffel.CodeOfferNoLongerAvailable}
	}

	_, err := svc.CreateBooking(context.Background(), validCreateRequest())
	if CodeOf(err) != CodeOfferExpired {
		t.Fatalf("expected offer expired mapping, got %v", err)
	}
	if len(repo.markedFailed) != 1 {
		t.Fatalf("expected 1 booking marked failed, got %d", len(repo.markedFailed))
	}
	if !bus.published(events.BookingFailed) {
		t.Fatal("expected booking failed event")
	}
}

func TestCreateBookingUnknownProviderError(t *testing.T) {
	_, provider, _, _, svc := newIntakeFixture(t)
	provider.getOfferFn = func(string) (*duffel.Offer, error) { return availableOffer(), nil }
	provider.createOrderFn = func(duffel.OrderCreateRequest) (*duffel.Order, error) {
		return nil, errors.New("connection reset")
	}

	_, err := svc.CreateBooking(context.Background(), validCreateRequest())
	if CodeOf(err) != CodeProviderError {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestCreateBookingRetriesReferenceCollision(t *testing.T) {
	repo, provider, _, _, svc := newIntakeFixture(t)
	repo.createErrs = []error{postgres.ErrDuplicateReference, postgres.ErrDuplicateReference}
	provider.getOfferFn = func(string) (*duffel.Offer, error) { return availableOffer(), nil }
	provider.createOrderFn = func(duffel.OrderCreateRequest) (*duffel.Order, error) { return heldOrder(), nil }

	result, err := svc.CreateBooking(context.Background(), validCreateRequest())
	if err != nil {
		t.Fatalf("CreateBooking after collisions: %v", err)
	}
	if result.BookingID == 0 {
		t.Fatal("expected a persisted booking after reference retries")
	}
}

func TestCreateBookingGivesUpOnPersistentCollision(t *testing.T) {
	repo, provider, _, _, svc := newIntakeFixture(t)
	repo.createErrs = []error{
		postgres.ErrDuplicateReference,
		postgres.ErrDuplicateReference,
		postgres.ErrDuplicateReference,
	}
	provider.getOfferFn = func(string) (*duffel.Offer, error) { return availableOffer(), nil }

	_, err := svc.CreateBooking(context.Background(), validCreateRequest())
	if CodeOf(err) != CodeDuplicateReference {
		t.Fatalf("expected duplicate reference error, got %v", err)
	}
	if provider.createOrderCalls != 0 {
		t.Fatal("no order should be created without a persisted booking")
	}
}

func TestCreateBookingMailFailureIsSwallowed(t *testing.T) {
	_, provider, _, mail, svc := newIntakeFixture(t)
	mail.sendErr = errors.New("smtp down")
	provider.getOfferFn = func(string) (*duffel.Offer, error) { return availableOffer(), nil }
	provider.createOrderFn = func(duffel.OrderCreateRequest) (*duffel.Order, error) { return heldOrder(), nil }

	if _, err := svc.CreateBooking(context.Background(), validCreateRequest()); err != nil {
		t.Fatalf("mail failure must not fail the booking: %v", err)
	}
}

func TestGetBookingNotFound(t *testing.T) {
	_, _, _, _, svc := newIntakeFixture(t)
	if _, err := svc.GetBooking(context.Background(), 99); CodeOf(err) != CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
