package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/voyago/flight-bookings/internal/crypto"
	"github.com/voyago/flight-bookings/internal/domain"
	"github.com/voyago/flight-bookings/internal/duffel"
	"github.com/voyago/flight-bookings/internal/repo/postgres"
	"github.com/voyago/flight-bookings/pkg/config"
	"github.com/voyago/flight-bookings/pkg/events"
	"github.com/voyago/flight-bookings/pkg/logger"
)

type TokenizeAction string

const (
	ActionProceedToPay     TokenizeAction = "PROCEED_TO_PAY"
	ActionShow3DSChallenge TokenizeAction = "SHOW_3DS_CHALLENGE"
)

type TokenizeResult struct {
	Action               TokenizeAction `json:"action"`
	CardToken            string         `json:"card_token"`
	ChallengeClientToken string         `json:"challenge_client_token,omitempty"`
	PaymentIntentID      string         `json:"payment_intent_id,omitempty"`
}

type IssueResult struct {
	Status    domain.BookingStatus `json:"status"`
	PNR       string               `json:"pnr"`
	Documents []domain.Document    `json:"documents"`
}

type PaymentService interface {
	TokenizeCard(ctx context.Context, bookingID int64, cvv string) (*TokenizeResult, error)
	IssueTicket(ctx context.Context, bookingID int64, method domain.PaymentMethod, cvv string) (*IssueResult, error)
}

type paymentService struct {
	repo     postgres.BookingRepository
	provider Provider
	vault    *crypto.Vault
	eventBus events.Publisher
	config   *config.Config
}

func NewPaymentService(
	repo postgres.BookingRepository,
	provider Provider,
	vault *crypto.Vault,
	eventBus events.Publisher,
	cfg *config.Config,
) PaymentService {
	return &paymentService{
		repo:     repo,
		provider: provider,
		vault:    vault,
		eventBus: eventBus,
		config:   cfg,
	}
}

// TokenizeCard exchanges the stored card for a vault token and decides
// whether the caller must complete a 3-D-Secure challenge first.
func (s *paymentService) TokenizeCard(ctx context.Context, bookingID int64, cvv string) (*TokenizeResult, error) {
	booking, err := s.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	card, err := s.decryptCard(booking, cvv)
	if err != nil {
		return nil, err
	}

	// Tokenization is synchronous from the customer's perspective, so it
	// gets a short explicit deadline instead of the provider default.
	tokCtx, cancel := context.WithTimeout(ctx, s.config.Duffel.TokenizeTimeout)
	defer cancel()

	token, err := s.provider.CreateCardToken(tokCtx, *card)
	if err != nil {
		if duffel.IsCode(err, duffel.CodeCardPaymentUnsupported) {
			return nil, Wrap(CodeVaultUnavailable, "card payments are not enabled for this account", err)
		}
		return nil, Wrap(CodeTokenizationFailed, "could not tokenize card", err)
	}

	if !token.ThreeDSRequired {
		return &TokenizeResult{Action: ActionProceedToPay, CardToken: token.ID}, nil
	}

	intent, err := s.provider.CreatePaymentIntent(ctx, booking.Pricing.TotalAmount, booking.Pricing.Currency, token.ID)
	if err != nil {
		return nil, Wrap(CodeIntentCreationFailed, "could not start 3DS verification", err)
	}

	confirmed, err := s.provider.ConfirmPaymentIntent(ctx, intent.ID)
	if err != nil {
		// A confirmation rejection is the expected 3DS path: the provider
		// signals that further cardholder action is needed.
		refreshed, getErr := s.provider.GetPaymentIntent(ctx, intent.ID)
		if getErr == nil && refreshed.Status == duffel.IntentRequiresAction && refreshed.ClientToken != "" {
			return &TokenizeResult{
				Action:               ActionShow3DSChallenge,
				CardToken:            token.ID,
				ChallengeClientToken: refreshed.ClientToken,
				PaymentIntentID:      intent.ID,
			}, nil
		}
		return nil, Wrap(CodeIntentCreationFailed, "could not verify card", err)
	}

	if confirmed.Status == duffel.IntentRequiresAction && confirmed.ClientToken != "" {
		return &TokenizeResult{
			Action:               ActionShow3DSChallenge,
			CardToken:            token.ID,
			ChallengeClientToken: confirmed.ClientToken,
			PaymentIntentID:      intent.ID,
		}, nil
	}

	return &TokenizeResult{Action: ActionProceedToPay, CardToken: token.ID, PaymentIntentID: intent.ID}, nil
}

// IssueTicket executes the charge against the held order, bounded by the
// per-booking retry ceiling. The remote order's existing documents are the
// anti-double-charge guard: an order issued through any side channel is
// synced, not charged again.
func (s *paymentService) IssueTicket(ctx context.Context, bookingID int64, method domain.PaymentMethod, cvv string) (*IssueResult, error) {
	booking, err := s.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if !booking.CanRetryPayment() {
		return nil, E(CodeRetryLimitExceeded, "payment attempt limit reached, please contact support")
	}
	if booking.DuffelOrderID == "" {
		return nil, E(CodeValidation, "booking has no remote order to issue against")
	}

	ctx = context.WithValue(ctx, logger.BookingRefKey, booking.BookingReference)

	order, err := s.provider.GetOrder(ctx, booking.DuffelOrderID)
	if err != nil {
		return nil, s.recordFailure(ctx, booking, fmt.Errorf("order fetch failed: %w", err))
	}

	if order.CancelledAt != nil {
		if err := s.repo.MarkCancelled(ctx, booking.ID, "remote order cancelled before issuance"); err != nil {
			logger.ErrorContext(ctx, "Failed to mark booking cancelled", "error", err, "booking_id", booking.ID)
		}
		return nil, E(CodeBookingCancelled, "this booking was cancelled by the airline")
	}

	if len(order.Documents) > 0 {
		// Already issued elsewhere: idempotent success, no second charge.
		docs := toDomainDocuments(order.Documents)
		if err := s.repo.MarkIssued(ctx, booking.ID, order.BookingReference, docs); err != nil {
			return nil, Wrap(CodeInternal, "could not sync issued documents", err)
		}
		logger.InfoContext(ctx, "Order already issued, synced documents", "booking_id", booking.ID)
		return &IssueResult{Status: domain.BookingIssued, PNR: order.BookingReference, Documents: docs}, nil
	}

	payment, err := s.buildPayment(booking, order, method, cvv)
	if err != nil {
		return nil, err
	}

	if _, err := s.provider.CreatePayment(ctx, order.ID, *payment); err != nil {
		return nil, s.recordFailure(ctx, booking, fmt.Errorf("payment failed: %w", err))
	}

	issued, err := s.provider.GetOrder(ctx, booking.DuffelOrderID)
	if err != nil {
		// The charge went through; never risk a second one. Leave the
		// booking held with a note and let reconciliation pick up the
		// documents on the next read.
		logger.ErrorContext(ctx, "Charge succeeded but order refresh failed", "error", err, "booking_id", booking.ID)
		if noteErr := s.repo.AppendAdminNote(ctx, booking.ID, "payment succeeded; document sync pending"); noteErr != nil {
			logger.ErrorContext(ctx, "Failed to record pending sync note", "error", noteErr, "booking_id", booking.ID)
		}
		return &IssueResult{Status: booking.Status, PNR: booking.PNR, Documents: booking.Documents}, nil
	}

	docs := toDomainDocuments(issued.Documents)
	if err := s.repo.MarkIssued(ctx, booking.ID, issued.BookingReference, docs); err != nil {
		return nil, Wrap(CodeInternal, "ticket issued but local update failed, contact support", err)
	}

	logger.InfoContext(ctx, "Ticket issued", "booking_id", booking.ID, "documents", len(docs))

	docIDs := make([]string, 0, len(docs))
	for _, d := range docs {
		docIDs = append(docIDs, d.UniqueIdentifier)
	}
	if err := s.eventBus.Publish(ctx, events.TicketIssued, events.TicketIssuedEvent{
		BookingID: booking.ID,
		Reference: booking.BookingReference,
		Email:     booking.Contact.Email,
		PNR:       issued.BookingReference,
		Documents: docIDs,
		IssuedAt:  time.Now(),
	}); err != nil {
		logger.ErrorContext(ctx, "Failed to publish ticket issued event", "error", err, "booking_id", booking.ID)
	}

	return &IssueResult{Status: domain.BookingIssued, PNR: issued.BookingReference, Documents: docs}, nil
}

func (s *paymentService) loadBooking(ctx context.Context, id int64) (*domain.Booking, error) {
	booking, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, Wrap(CodeInternal, "could not load booking", err)
	}
	if booking == nil {
		return nil, E(CodeNotFound, "booking not found")
	}
	return booking, nil
}

// decryptCard rebuilds the provider card payload from the vault ciphertext
// and the caller-supplied CVV. Plaintext lives only in this call chain and
// is never logged.
func (s *paymentService) decryptCard(booking *domain.Booking, cvv string) (*duffel.CardDetails, error) {
	if booking.PaymentInfo == nil || booking.PaymentInfo.CardNumber == "" {
		return nil, E(CodeCardDataMissing, "no card on file for this booking")
	}

	number, err := s.vault.Decrypt(booking.PaymentInfo.CardNumber)
	if err != nil || number == "" {
		return nil, Wrap(CodeDecryptionFailed, "stored card data could not be read", err)
	}

	month, year, ok := strings.Cut(booking.PaymentInfo.ExpiryDate, "/")
	if !ok {
		return nil, E(CodeCardDataMissing, "stored card expiry is invalid")
	}
	if len(year) == 2 {
		year = "20" + year
	}

	return &duffel.CardDetails{
		Number:      number,
		ExpiryMonth: month,
		ExpiryYear:  year,
		CVC:         cvv,
		Name:        booking.PaymentInfo.CardName,
	}, nil
}

// buildPayment sizes the charge to the remote order's exact outstanding
// amount and currency, never the locally cached customer price.
func (s *paymentService) buildPayment(booking *domain.Booking, order *duffel.Order, method domain.PaymentMethod, cvv string) (*duffel.PaymentInput, error) {
	payment := &duffel.PaymentInput{
		Amount:   order.TotalAmount,
		Currency: order.TotalCurrency,
	}

	switch method {
	case domain.PaymentBalance:
		payment.Type = "balance"
	case domain.PaymentCard:
		card, err := s.decryptCard(booking, cvv)
		if err != nil {
			return nil, err
		}
		payment.Type = "card"
		payment.Card = &duffel.PaymentCard{
			Number:      card.Number,
			ExpiryMonth: card.ExpiryMonth,
			ExpiryYear:  card.ExpiryYear,
			Name:        card.Name,
			CVC:         cvv,
		}
	default:
		return nil, E(CodeValidation, "payment_method must be 'balance' or 'card'")
	}

	return payment, nil
}

// recordFailure bumps the bounded retry counter and reports how many
// attempts are left; the booking stays held and retryable.
func (s *paymentService) recordFailure(ctx context.Context, booking *domain.Booking, cause error) error {
	count, err := s.repo.RecordPaymentFailure(ctx, booking.ID, cause.Error())
	if err != nil {
		logger.ErrorContext(ctx, "Failed to record payment failure", "error", err, "booking_id", booking.ID)
		count = booking.RetryCount + 1
	}

	if err := s.eventBus.Publish(ctx, events.PaymentFailed, events.PaymentFailedEvent{
		BookingID:  booking.ID,
		Reference:  booking.BookingReference,
		Email:      booking.Contact.Email,
		RetryCount: count,
		Reason:     cause.Error(),
	}); err != nil {
		logger.ErrorContext(ctx, "Failed to publish payment failed event", "error", err, "booking_id", booking.ID)
	}

	remaining := domain.MaxPaymentRetries - count
	if remaining <= 0 {
		return Wrap(CodePaymentFailed, "payment failed, attempt limit reached, please contact support", cause)
	}
	return Wrap(CodePaymentFailed, fmt.Sprintf("payment failed, %d attempt(s) remaining", remaining), cause)
}
