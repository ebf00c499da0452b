package domain_test

import (
	"testing"
	"time"

	"github.com/voyago/flight-bookings/internal/domain"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to domain.BookingStatus
		want     bool
	}{
		{domain.BookingProcessing, domain.BookingHeld, true},
		{domain.BookingProcessing, domain.BookingFailed, true},
		{domain.BookingProcessing, domain.BookingCancelled, true},
		{domain.BookingProcessing, domain.BookingIssued, false},
		{domain.BookingProcessing, domain.BookingExpired, false},
		{domain.BookingHeld, domain.BookingIssued, true},
		{domain.BookingHeld, domain.BookingCancelled, true},
		{domain.BookingHeld, domain.BookingExpired, true},
		{domain.BookingHeld, domain.BookingProcessing, false},
		{domain.BookingHeld, domain.BookingFailed, false},
		{domain.BookingIssued, domain.BookingCancelled, false},
		{domain.BookingCancelled, domain.BookingHeld, false},
		{domain.BookingFailed, domain.BookingProcessing, false},
		{domain.BookingExpired, domain.BookingHeld, false},
	}

	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.want {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	terminal := []domain.BookingStatus{
		domain.BookingIssued, domain.BookingCancelled, domain.BookingFailed, domain.BookingExpired,
	}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []domain.BookingStatus{domain.BookingProcessing, domain.BookingHeld} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestParseBookingStatus(t *testing.T) {
	if s, ok := domain.ParseBookingStatus("held"); !ok || s != domain.BookingHeld {
		t.Fatalf("ParseBookingStatus(held) = %q, %v", s, ok)
	}
	if _, ok := domain.ParseBookingStatus("pending"); ok {
		t.Fatal("ParseBookingStatus accepted an unknown status")
	}
}

func TestCanRetryPayment(t *testing.T) {
	b := &domain.Booking{RetryCount: 0}
	if !b.CanRetryPayment() {
		t.Fatal("fresh booking should allow payment")
	}

	b.RetryCount = domain.MaxPaymentRetries - 1
	if !b.CanRetryPayment() {
		t.Fatal("booking under the ceiling should allow payment")
	}

	b.RetryCount = domain.MaxPaymentRetries
	if b.CanRetryPayment() {
		t.Fatal("booking at the ceiling should not allow payment")
	}
}

func TestIsExpiredAndEffectiveStatus(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	held := &domain.Booking{Status: domain.BookingHeld, PaymentDeadline: &past}
	if !held.IsExpired(now) {
		t.Fatal("held booking past its deadline should be expired")
	}
	if got := held.EffectiveStatus(now); got != domain.BookingExpired {
		t.Fatalf("EffectiveStatus = %s, want expired", got)
	}

	stillHeld := &domain.Booking{Status: domain.BookingHeld, PaymentDeadline: &future}
	if stillHeld.IsExpired(now) {
		t.Fatal("held booking before its deadline should not be expired")
	}
	if got := stillHeld.EffectiveStatus(now); got != domain.BookingHeld {
		t.Fatalf("EffectiveStatus = %s, want held", got)
	}

	// Only held bookings expire on deadline; issued ones keep their docs.
	issued := &domain.Booking{Status: domain.BookingIssued, PaymentDeadline: &past}
	if issued.IsExpired(now) {
		t.Fatal("issued booking should never read as expired")
	}

	noDeadline := &domain.Booking{Status: domain.BookingHeld}
	if noDeadline.IsExpired(now) {
		t.Fatal("booking without a deadline should not expire")
	}
}
