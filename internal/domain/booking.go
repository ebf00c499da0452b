package domain

import "time"

type BookingStatus string

const (
	BookingProcessing BookingStatus = "processing"
	BookingHeld       BookingStatus = "held"
	BookingIssued     BookingStatus = "issued"
	BookingCancelled  BookingStatus = "cancelled"
	BookingFailed     BookingStatus = "failed"
	BookingExpired    BookingStatus = "expired"
)

func ParseBookingStatus(s string) (BookingStatus, bool) {
	switch BookingStatus(s) {
	case BookingProcessing, BookingHeld, BookingIssued, BookingCancelled, BookingFailed, BookingExpired:
		return BookingStatus(s), true
	default:
		return "", false
	}
}

type PassengerType string

const (
	PassengerAdult  PassengerType = "adult"
	PassengerChild  PassengerType = "child"
	PassengerInfant PassengerType = "infant"
)

type FlightType string

const (
	FlightOneWay    FlightType = "one_way"
	FlightRoundTrip FlightType = "round_trip"
	FlightMultiCity FlightType = "multi_city"
)

type PaymentMethod string

const (
	PaymentBalance PaymentMethod = "balance"
	PaymentCard    PaymentMethod = "card"
)

type Contact struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type Passenger struct {
	Type           PassengerType `json:"type"`
	GivenName      string        `json:"given_name"`
	FamilyName     string        `json:"family_name"`
	Gender         string        `json:"gender"`
	BornOn         string        `json:"born_on"` // YYYY-MM-DD
	PassportNumber string        `json:"passport_number,omitempty"`
	PassportExpiry string        `json:"passport_expiry,omitempty"`
	Email          string        `json:"email,omitempty"`
	Phone          string        `json:"phone,omitempty"`
}

type FlightDetails struct {
	Airline       string     `json:"airline"`
	FlightNumber  string     `json:"flight_number"`
	Route         string     `json:"route"`
	DepartureDate string     `json:"departure_date"`
	ArrivalDate   string     `json:"arrival_date"`
	Duration      string     `json:"duration"`
	FlightType    FlightType `json:"flight_type"`
	LogoURL       string     `json:"logo_url,omitempty"`
}

// Pricing amounts are decimal strings in the remote provider's style.
// Markup = TotalAmount - BaseAmount, recomputed once the remote order
// confirms the actual cost. It is never customer-supplied post-hoc.
type Pricing struct {
	Currency    string `json:"currency"`
	TotalAmount string `json:"total_amount"`
	Markup      string `json:"markup,omitempty"`
	BaseAmount  string `json:"base_amount,omitempty"`
}

// PaymentInfo never holds the raw card number; CardNumber is ciphertext
// from the crypto vault. CVV is runtime-only and never persisted.
type PaymentInfo struct {
	CardName       string `json:"card_name"`
	CardNumber     string `json:"card_number"`
	ExpiryDate     string `json:"expiry_date"` // MM/YY
	BillingAddress string `json:"billing_address,omitempty"`
}

type Document struct {
	UniqueIdentifier string `json:"unique_identifier"`
	Type             string `json:"type"`
}

type Booking struct {
	ID               int64         `json:"id"`
	BookingReference string        `json:"booking_reference"`
	OfferID          string        `json:"offer_id"`
	Status           BookingStatus `json:"status"`
	Contact          Contact       `json:"contact"`
	Passengers       []Passenger   `json:"passengers"`
	FlightDetails    FlightDetails `json:"flight_details"`
	Pricing          Pricing       `json:"pricing"`
	PaymentInfo      *PaymentInfo  `json:"-"`
	DuffelOrderID    string        `json:"duffel_order_id,omitempty"`
	PNR              string        `json:"pnr,omitempty"`
	Documents        []Document    `json:"documents"`
	RetryCount       int           `json:"retry_count"`
	LastRetryAt      *time.Time    `json:"last_retry_at,omitempty"`
	AdminNotes       string        `json:"admin_notes,omitempty"`
	PaymentDeadline  *time.Time    `json:"payment_deadline,omitempty"`
	PriceExpiry      *time.Time    `json:"price_expiry,omitempty"`
	IsLiveMode       bool          `json:"is_live_mode"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// Business rules
const (
	MaxPaymentRetries = 3
)

// IsTerminal reports whether the engine may still advance this booking.
// Terminal statuses are retained as history and never regressed.
func (s BookingStatus) IsTerminal() bool {
	switch s {
	case BookingIssued, BookingCancelled, BookingFailed, BookingExpired:
		return true
	}
	return false
}

// CanTransition encodes the forward-only state machine. Admin overrides
// bypass it with an audit note.
func (s BookingStatus) CanTransition(to BookingStatus) bool {
	switch s {
	case BookingProcessing:
		return to == BookingHeld || to == BookingFailed || to == BookingCancelled
	case BookingHeld:
		return to == BookingIssued || to == BookingCancelled || to == BookingExpired
	default:
		return false
	}
}

// CanRetryPayment reports whether another payment attempt is allowed.
func (b *Booking) CanRetryPayment() bool {
	return b.RetryCount < MaxPaymentRetries
}

// IsExpired reports whether a held booking's payment deadline has passed.
// Expiry is derived at read time, not polled.
func (b *Booking) IsExpired(now time.Time) bool {
	return b.Status == BookingHeld && b.PaymentDeadline != nil && now.After(*b.PaymentDeadline)
}

// EffectiveStatus is the status a reader should see, with deadline expiry
// applied on top of the stored status.
func (b *Booking) EffectiveStatus(now time.Time) BookingStatus {
	if b.IsExpired(now) {
		return BookingExpired
	}
	return b.Status
}
