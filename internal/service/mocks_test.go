package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/voyago/flight-bookings/internal/crypto"
	"github.com/voyago/flight-bookings/internal/domain"
	"github.com/voyago/flight-bookings/internal/duffel"
	"github.com/voyago/flight-bookings/internal/platform/mailer"
	"github.com/voyago/flight-bookings/internal/repo/postgres"
	"github.com/voyago/flight-bookings/pkg/config"
)

// ---------- Mocks ----------

type mockRepo struct {
	mu       sync.Mutex
	nextID   int64
	bookings map[int64]*domain.Booking

	createErrs   []error // consumed per Create call
	markHeldErr  error
	markIssueErr error

	markedFailed    []int64
	markedCancelled []int64
	markedExpired   []int64
	markedIssued    []int64
	heldUpdates     map[int64]postgres.HoldUpdate
	adminNotes      map[int64][]string
	failureReasons  map[int64][]string
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		bookings:       make(map[int64]*domain.Booking),
		heldUpdates:    make(map[int64]postgres.HoldUpdate),
		adminNotes:     make(map[int64][]string),
		failureReasons: make(map[int64][]string),
	}
}

func (m *mockRepo) add(b *domain.Booking) *domain.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	b.ID = m.nextID
	m.bookings[b.ID] = b
	return b
}

func (m *mockRepo) Create(_ context.Context, b *domain.Booking) (*domain.Booking, error) {
	m.mu.Lock()
	if len(m.createErrs) > 0 {
		err := m.createErrs[0]
		m.createErrs = m.createErrs[1:]
		m.mu.Unlock()
		if err != nil {
			return nil, err
		}
	} else {
		m.mu.Unlock()
	}
	copied := *b
	return m.add(&copied), nil
}

func (m *mockRepo) GetByID(_ context.Context, id int64) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, nil
	}
	copied := *b
	return &copied, nil
}

func (m *mockRepo) GetByReference(_ context.Context, ref string) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.BookingReference == ref {
			copied := *b
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Booking, 0, len(m.bookings))
	for id := int64(1); id <= m.nextID; id++ {
		if b, ok := m.bookings[id]; ok {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *mockRepo) ListByStatus(ctx context.Context, status domain.BookingStatus, limit, offset int) ([]domain.Booking, error) {
	all, _ := m.List(ctx, limit, offset)
	out := make([]domain.Booking, 0, len(all))
	for _, b := range all {
		if b.Status == status {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *mockRepo) MarkHeld(_ context.Context, id int64, hold postgres.HoldUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markHeldErr != nil {
		return m.markHeldErr
	}
	m.heldUpdates[id] = hold
	if b, ok := m.bookings[id]; ok {
		b.Status = domain.BookingHeld
		b.DuffelOrderID = hold.DuffelOrderID
		b.PNR = hold.PNR
		b.Pricing.BaseAmount = hold.BaseAmount
		b.Pricing.Markup = hold.Markup
		b.PaymentDeadline = hold.PaymentDeadline
		b.PriceExpiry = hold.PriceExpiry
	}
	return nil
}

func (m *mockRepo) MarkFailed(_ context.Context, id int64, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markedFailed = append(m.markedFailed, id)
	if b, ok := m.bookings[id]; ok {
		b.Status = domain.BookingFailed
		b.AdminNotes = note
	}
	return nil
}

func (m *mockRepo) MarkIssued(_ context.Context, id int64, pnr string, docs []domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markIssueErr != nil {
		return m.markIssueErr
	}
	m.markedIssued = append(m.markedIssued, id)
	if b, ok := m.bookings[id]; ok {
		b.Status = domain.BookingIssued
		if pnr != "" {
			b.PNR = pnr
		}
		b.Documents = docs
		b.RetryCount = 0
	}
	return nil
}

func (m *mockRepo) MarkCancelled(_ context.Context, id int64, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markedCancelled = append(m.markedCancelled, id)
	if b, ok := m.bookings[id]; ok {
		b.Status = domain.BookingCancelled
	}
	return nil
}

func (m *mockRepo) MarkExpired(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markedExpired = append(m.markedExpired, id)
	if b, ok := m.bookings[id]; ok {
		b.Status = domain.BookingExpired
	}
	return nil
}

func (m *mockRepo) RecordPaymentFailure(_ context.Context, id int64, reason string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failureReasons[id] = append(m.failureReasons[id], reason)
	b, ok := m.bookings[id]
	if !ok {
		return 0, errors.New("booking not found")
	}
	b.RetryCount++
	now := time.Now()
	b.LastRetryAt = &now
	return b.RetryCount, nil
}

func (m *mockRepo) ForceStatus(_ context.Context, id int64, status domain.BookingStatus, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.bookings[id]; ok {
		b.Status = status
	}
	m.adminNotes[id] = append(m.adminNotes[id], note)
	return nil
}

func (m *mockRepo) AppendAdminNote(_ context.Context, id int64, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adminNotes[id] = append(m.adminNotes[id], note)
	return nil
}

type mockProvider struct {
	mu sync.Mutex

	getOfferFn      func(offerID string) (*duffel.Offer, error)
	createOrderFn   func(req duffel.OrderCreateRequest) (*duffel.Order, error)
	getOrderFn      func(orderID string) (*duffel.Order, error)
	createTokenFn   func(card duffel.CardDetails) (*duffel.Card, error)
	createIntentFn  func(amount, currency, cardID string) (*duffel.PaymentIntent, error)
	confirmIntentFn func(intentID string) (*duffel.PaymentIntent, error)
	getIntentFn     func(intentID string) (*duffel.PaymentIntent, error)
	createPaymentFn func(orderID string, payment duffel.PaymentInput) (*duffel.Payment, error)

	getOfferCalls      int
	createOrderCalls   int
	getOrderCalls      int
	createPaymentCalls int
	lastOrderReq       duffel.OrderCreateRequest
	lastPayment        duffel.PaymentInput
}

func (m *mockProvider) GetOffer(_ context.Context, offerID string) (*duffel.Offer, error) {
	m.mu.Lock()
	m.getOfferCalls++
	m.mu.Unlock()
	if m.getOfferFn == nil {
		return nil, errors.New("GetOffer not stubbed")
	}
	return m.getOfferFn(offerID)
}

func (m *mockProvider) CreateHoldOrder(_ context.Context, req duffel.OrderCreateRequest) (*duffel.Order, error) {
	m.mu.Lock()
	m.createOrderCalls++
	m.lastOrderReq = req
	m.mu.Unlock()
	if m.createOrderFn == nil {
		return nil, errors.New("CreateHoldOrder not stubbed")
	}
	return m.createOrderFn(req)
}

func (m *mockProvider) GetOrder(_ context.Context, orderID string) (*duffel.Order, error) {
	m.mu.Lock()
	m.getOrderCalls++
	m.mu.Unlock()
	if m.getOrderFn == nil {
		return nil, errors.New("GetOrder not stubbed")
	}
	return m.getOrderFn(orderID)
}

func (m *mockProvider) CreateCardToken(_ context.Context, card duffel.CardDetails) (*duffel.Card, error) {
	if m.createTokenFn == nil {
		return nil, errors.New("CreateCardToken not stubbed")
	}
	return m.createTokenFn(card)
}

func (m *mockProvider) CreatePaymentIntent(_ context.Context, amount, currency, cardID string) (*duffel.PaymentIntent, error) {
	if m.createIntentFn == nil {
		return nil, errors.New("CreatePaymentIntent not stubbed")
	}
	return m.createIntentFn(amount, currency, cardID)
}

func (m *mockProvider) ConfirmPaymentIntent(_ context.Context, intentID string) (*duffel.PaymentIntent, error) {
	if m.confirmIntentFn == nil {
		return nil, errors.New("ConfirmPaymentIntent not stubbed")
	}
	return m.confirmIntentFn(intentID)
}

func (m *mockProvider) GetPaymentIntent(_ context.Context, intentID string) (*duffel.PaymentIntent, error) {
	if m.getIntentFn == nil {
		return nil, errors.New("GetPaymentIntent not stubbed")
	}
	return m.getIntentFn(intentID)
}

func (m *mockProvider) CreatePayment(_ context.Context, orderID string, payment duffel.PaymentInput) (*duffel.Payment, error) {
	m.mu.Lock()
	m.createPaymentCalls++
	m.lastPayment = payment
	m.mu.Unlock()
	if m.createPaymentFn == nil {
		return nil, errors.New("CreatePayment not stubbed")
	}
	return m.createPaymentFn(orderID, payment)
}

type mockPublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (m *mockPublisher) Publish(_ context.Context, subject string, _ interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subjects = append(m.subjects, subject)
	return nil
}

func (m *mockPublisher) Close() error { return nil }

func (m *mockPublisher) published(subject string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subjects {
		if s == subject {
			return true
		}
	}
	return false
}

type mockMailer struct {
	mu            sync.Mutex
	confirmations []mailer.BookingConfirmation
	sendErr       error
}

func (m *mockMailer) Send(toEmail, toName, subject, text, html string) (string, error) {
	return "mock-id", m.sendErr
}

func (m *mockMailer) SendBookingConfirmation(c mailer.BookingConfirmation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confirmations = append(m.confirmations, c)
	return m.sendErr
}

// ---------- Helpers ----------

const testEncryptionKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func testConfig() *config.Config {
	return &config.Config{
		Duffel: config.DuffelConfig{
			TokenizeTimeout: 2 * time.Second,
		},
		Booking: config.BookingConfig{
			ReferencePrefix: "VGO",
		},
	}
}

func testVault(t *testing.T) *crypto.Vault {
	t.Helper()
	v, err := crypto.NewVault(testEncryptionKey)
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}
	return v
}

func validCreateRequest() *CreateBookingRequest {
	return &CreateBookingRequest{
		OfferID: "off_123",
		Contact: domain.Contact{Email: "lead@example.com", Phone: "+15551234567"},
		Passengers: []domain.Passenger{
			{Type: domain.PassengerAdult, GivenName: "Ada", FamilyName: "Roe", Gender: "f", BornOn: "1990-04-12"},
		},
		Payment: CardInput{
			CardName:   "Ada Roe",
			CardNumber: "4242424242424242",
			ExpiryDate: "04/29",
			CVV:        "123",
		},
		FlightDetails: domain.FlightDetails{
			Airline:      "Voyago Air",
			FlightNumber: "VG100",
			Route:        "JFK-LHR",
			FlightType:   domain.FlightOneWay,
		},
		TotalAmount: "500.00",
		Currency:    "USD",
	}
}

func availableOffer() *duffel.Offer {
	return &duffel.Offer{
		ID:            "off_123",
		TotalAmount:   "430.00",
		TotalCurrency: "USD",
		Passengers:    []duffel.OfferPassenger{{ID: "pas_1", Type: "adult"}},
	}
}
