package service

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voyago/flight-bookings/internal/domain"
	"github.com/voyago/flight-bookings/internal/repo/postgres"
	"github.com/voyago/flight-bookings/pkg/events"
	"github.com/voyago/flight-bookings/pkg/logger"
)

// reconcileFanOut caps how many remote order fetches a single page read
// runs at once.
const reconcileFanOut = 5

// SyncService refreshes local bookings from the authoritative remote
// order on the read path. A transient remote outage never corrupts the
// local record: fetch failures leave the last known state untouched.
type SyncService struct {
	repo     postgres.BookingRepository
	provider Provider
	eventBus events.Publisher
}

func NewSyncService(repo postgres.BookingRepository, provider Provider, eventBus events.Publisher) *SyncService {
	return &SyncService{repo: repo, provider: provider, eventBus: eventBus}
}

// Reconcile advances a single booking from the remote order and returns
// the refreshed view. Terminal bookings pass through unchanged. The remote
// order is consulted before deadline expiry is persisted: an order that was
// cancelled or issued through a side channel wins over a lapsed deadline,
// so a charged customer is never stranded in expired.
func (s *SyncService) Reconcile(ctx context.Context, b *domain.Booking) *domain.Booking {
	if b.Status != domain.BookingHeld && b.Status != domain.BookingProcessing {
		return b
	}

	if b.DuffelOrderID == "" {
		return s.expireIfDue(ctx, b)
	}

	order, err := s.provider.GetOrder(ctx, b.DuffelOrderID)
	if err != nil {
		logger.WarnContext(ctx, "Reconciliation fetch failed, keeping local state",
			"error", err, "booking_id", b.ID, "duffel_order_id", b.DuffelOrderID)
		return b
	}

	switch {
	case order.CancelledAt != nil:
		if err := s.repo.MarkCancelled(ctx, b.ID, "remote order cancelled"); err != nil {
			logger.ErrorContext(ctx, "Failed to persist remote cancellation", "error", err, "booking_id", b.ID)
			return b
		}
		b.Status = domain.BookingCancelled
		if err := s.eventBus.Publish(ctx, events.BookingCanceled, events.BookingCanceledEvent{
			BookingID:  b.ID,
			Reference:  b.BookingReference,
			Reason:     "remote_cancelled",
			CanceledAt: *order.CancelledAt,
		}); err != nil {
			logger.ErrorContext(ctx, "Failed to publish booking canceled event", "error", err, "booking_id", b.ID)
		}

	case len(order.Documents) > 0:
		docs := toDomainDocuments(order.Documents)
		if err := s.repo.MarkIssued(ctx, b.ID, order.BookingReference, docs); err != nil {
			logger.ErrorContext(ctx, "Failed to persist issued documents", "error", err, "booking_id", b.ID)
			return b
		}
		b.Status = domain.BookingIssued
		b.Documents = docs
		if order.BookingReference != "" {
			b.PNR = order.BookingReference
		}
		b.RetryCount = 0

	case b.Status == domain.BookingProcessing:
		// The hold succeeded upstream; the local finalize write was lost.
		hold := postgres.HoldUpdate{
			DuffelOrderID: order.ID,
			PNR:           order.BookingReference,
			BaseAmount:    order.TotalAmount,
			LiveMode:      order.LiveMode,
		}
		if order.PaymentStatus != nil {
			hold.PaymentDeadline = order.PaymentStatus.PaymentRequiredBy
			hold.PriceExpiry = order.PaymentStatus.PriceGuaranteeExpiresAt
		}
		if err := s.repo.MarkHeld(ctx, b.ID, hold); err != nil {
			logger.ErrorContext(ctx, "Failed to advance processing booking", "error", err, "booking_id", b.ID)
			return b
		}
		b.Status = domain.BookingHeld
		b.PNR = order.BookingReference

	default:
		// Remote order is live with no documents; only now is a lapsed
		// deadline conclusive.
		return s.expireIfDue(ctx, b)
	}

	return b
}

// expireIfDue persists deadline expiry for a held booking. Callers must
// have established that the remote order carries neither documents nor a
// cancellation, or that there is no remote order at all.
func (s *SyncService) expireIfDue(ctx context.Context, b *domain.Booking) *domain.Booking {
	if !b.IsExpired(time.Now()) {
		return b
	}

	if err := s.repo.MarkExpired(ctx, b.ID); err != nil {
		logger.ErrorContext(ctx, "Failed to persist expiry", "error", err, "booking_id", b.ID)
		return b
	}
	b.Status = domain.BookingExpired
	if err := s.eventBus.Publish(ctx, events.BookingExpired, events.BookingFailedEvent{
		BookingID: b.ID,
		Reference: b.BookingReference,
		Reason:    "payment deadline passed",
	}); err != nil {
		logger.ErrorContext(ctx, "Failed to publish booking expired event", "error", err, "booking_id", b.ID)
	}
	return b
}

// ReconcilePage refreshes a page of bookings with bounded concurrency.
// Each booking reconciles independently; one remote failure never blocks
// the rest of the page.
func (s *SyncService) ReconcilePage(ctx context.Context, bookings []domain.Booking) []domain.Booking {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reconcileFanOut)

	for i := range bookings {
		g.Go(func() error {
			bookings[i] = *s.Reconcile(gctx, &bookings[i])
			return nil
		})
	}
	_ = g.Wait()
	return bookings
}
