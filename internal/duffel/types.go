package duffel

import "time"

// Provider error codes the engine maps to terminal categories.
const (
	CodeOfferNoLongerAvailable = "offer_no_longer_available"
	CodeInstantPaymentRequired = "instant_payment_required"
	CodeCardPaymentUnsupported = "card_payments_not_supported"
)

type Offer struct {
	ID                  string               `json:"id"`
	TotalAmount         string               `json:"total_amount"`
	TotalCurrency       string               `json:"total_currency"`
	ExpiresAt           *time.Time           `json:"expires_at,omitempty"`
	LiveMode            bool                 `json:"live_mode"`
	PaymentRequirements *PaymentRequirements `json:"payment_requirements,omitempty"`
	Passengers          []OfferPassenger     `json:"passengers"`
}

type PaymentRequirements struct {
	RequiresInstantPayment  bool       `json:"requires_instant_payment"`
	PaymentRequiredBy       *time.Time `json:"payment_required_by,omitempty"`
	PriceGuaranteeExpiresAt *time.Time `json:"price_guarantee_expires_at,omitempty"`
}

type OfferPassenger struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

type OrderPassenger struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	GivenName   string `json:"given_name"`
	FamilyName  string `json:"family_name"`
	Gender      string `json:"gender"`
	BornOn      string `json:"born_on"`
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	// InfantPassengerID links the nth lap infant to this adult.
	InfantPassengerID string `json:"infant_passenger_id,omitempty"`
}

type OrderCreateRequest struct {
	Type           string           `json:"type"` // "hold" for pay-later orders
	SelectedOffers []string         `json:"selected_offers"`
	Passengers     []OrderPassenger `json:"passengers"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

type Order struct {
	ID               string               `json:"id"`
	BookingReference string               `json:"booking_reference"` // airline PNR
	TotalAmount      string               `json:"total_amount"`
	TotalCurrency    string               `json:"total_currency"`
	BaseAmount       string               `json:"base_amount,omitempty"`
	LiveMode         bool                 `json:"live_mode"`
	CancelledAt      *time.Time           `json:"cancelled_at,omitempty"`
	Documents        []Document           `json:"documents"`
	PaymentStatus    *OrderPaymentStatus  `json:"payment_status,omitempty"`
}

type OrderPaymentStatus struct {
	AwaitingPayment         bool       `json:"awaiting_payment"`
	PaymentRequiredBy       *time.Time `json:"payment_required_by,omitempty"`
	PriceGuaranteeExpiresAt *time.Time `json:"price_guarantee_expires_at,omitempty"`
}

type Document struct {
	UniqueIdentifier string `json:"unique_identifier"`
	Type             string `json:"type"`
}

type CardDetails struct {
	Number      string `json:"number"`
	ExpiryMonth string `json:"expiry_month"`
	ExpiryYear  string `json:"expiry_year"`
	CVC         string `json:"cvc"`
	Name        string `json:"name"`
	MultiUse    bool   `json:"multi_use"`
}

type Card struct {
	ID              string `json:"id"`
	LiveMode        bool   `json:"live_mode"`
	Brand           string `json:"brand,omitempty"`
	Last4Digits     string `json:"last_4_digits,omitempty"`
	ThreeDSRequired bool   `json:"three_d_secure_required"`
}

type PaymentIntent struct {
	ID            string `json:"id"`
	Status        string `json:"status"` // requires_action | requires_payment_method | succeeded | ...
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	ClientToken   string `json:"client_token,omitempty"`
	CardID        string `json:"card_id,omitempty"`
	LiveMode      bool   `json:"live_mode"`
}

const (
	IntentRequiresAction = "requires_action"
	IntentSucceeded      = "succeeded"
)

type PaymentInput struct {
	Type     string       `json:"type"` // "balance" | "card"
	Amount   string       `json:"amount"`
	Currency string       `json:"currency"`
	Card     *PaymentCard `json:"card,omitempty"`
}

// PaymentCard is the direct-charge card payload; the raw number only ever
// lives in memory for the duration of the call.
type PaymentCard struct {
	Number      string `json:"number"`
	ExpiryMonth string `json:"expiry_month"`
	ExpiryYear  string `json:"expiry_year"`
	Name        string `json:"name"`
	CVC         string `json:"cvc"`
}

type Payment struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Amount    string    `json:"amount"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
}
