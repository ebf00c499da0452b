package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/voyago/flight-bookings/internal/domain"
	"github.com/voyago/flight-bookings/internal/http/response"
	"github.com/voyago/flight-bookings/internal/service"
)

func (h *Handlers) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var in service.CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "invalid json")
		return
	}
	if in.OfferID == "" || in.Contact.Email == "" || len(in.Passengers) == 0 {
		response.BadRequest(w, "offer_id, contact.email and passengers are required")
		return
	}
	if in.Payment.CardNumber == "" || in.Payment.CardName == "" || in.Payment.ExpiryDate == "" {
		response.BadRequest(w, "payment card details are required")
		return
	}
	if in.TotalAmount == "" || in.Currency == "" {
		response.BadRequest(w, "total_amount and currency are required")
		return
	}
	for _, p := range in.Passengers {
		if _, ok := parsePassengerType(string(p.Type)); !ok {
			response.BadRequest(w, "passenger type must be adult, child or infant")
			return
		}
		if p.GivenName == "" || p.FamilyName == "" || p.BornOn == "" {
			response.BadRequest(w, "each passenger needs given_name, family_name and born_on")
			return
		}
	}

	result, err := h.bookings.CreateBooking(r.Context(), &in)
	if err != nil {
		response.ServiceError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, result)
}

func (h *Handlers) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "invalid booking id")
		return
	}

	booking, err := h.bookings.GetBooking(r.Context(), id)
	if err != nil {
		response.ServiceError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, toBookingDTO(booking))
}

func (h *Handlers) ListBookings(w http.ResponseWriter, r *http.Request) {
	limit, offset := 20, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 1 {
			offset = (n - 1) * limit
		}
	}

	bookings, err := h.bookings.ListBookings(r.Context(), limit, offset)
	if err != nil {
		response.ServiceError(w, err)
		return
	}

	out := make([]bookingDTO, 0, len(bookings))
	for i := range bookings {
		out = append(out, toBookingDTO(&bookings[i]))
	}
	response.JSON(w, http.StatusOK, map[string]any{"bookings": out, "limit": limit, "offset": offset})
}

type tokenizeReq struct {
	CVV string `json:"cvv"`
}

func (h *Handlers) TokenizeCard(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "invalid booking id")
		return
	}

	var in tokenizeReq
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "invalid json")
		return
	}
	if in.CVV == "" {
		response.BadRequest(w, "cvv is required")
		return
	}

	result, err := h.payments.TokenizeCard(r.Context(), id, in.CVV)
	if err != nil {
		response.ServiceError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, result)
}

type issueReq struct {
	PaymentMethod string `json:"payment_method"`
	CVV           string `json:"cvv,omitempty"`
}

func (h *Handlers) IssueTicket(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "invalid booking id")
		return
	}

	var in issueReq
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "invalid json")
		return
	}

	method := domain.PaymentMethod(in.PaymentMethod)
	if method != domain.PaymentBalance && method != domain.PaymentCard {
		response.BadRequest(w, "payment_method must be 'balance' or 'card'")
		return
	}
	if method == domain.PaymentCard && in.CVV == "" {
		response.BadRequest(w, "cvv is required for card payments")
		return
	}

	result, err := h.payments.IssueTicket(r.Context(), id, method, in.CVV)
	if err != nil {
		response.ServiceError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, result)
}

func parsePassengerType(s string) (domain.PassengerType, bool) {
	switch domain.PassengerType(s) {
	case domain.PassengerAdult, domain.PassengerChild, domain.PassengerInfant:
		return domain.PassengerType(s), true
	default:
		return "", false
	}
}

// bookingDTO is the read shape: effective status applied, card ciphertext
// never exposed.
type bookingDTO struct {
	ID               int64                `json:"id"`
	BookingReference string               `json:"booking_reference"`
	OfferID          string               `json:"offer_id"`
	Status           domain.BookingStatus `json:"status"`
	Contact          domain.Contact       `json:"contact"`
	Passengers       []domain.Passenger   `json:"passengers"`
	FlightDetails    domain.FlightDetails `json:"flight_details"`
	Pricing          domain.Pricing       `json:"pricing"`
	PNR              string               `json:"pnr,omitempty"`
	Documents        []domain.Document    `json:"documents"`
	RetryCount       int                  `json:"retry_count"`
	PaymentDeadline  *time.Time           `json:"payment_deadline,omitempty"`
	PriceExpiry      *time.Time           `json:"price_expiry,omitempty"`
	IsLiveMode       bool                 `json:"is_live_mode"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

func toBookingDTO(b *domain.Booking) bookingDTO {
	return bookingDTO{
		ID:               b.ID,
		BookingReference: b.BookingReference,
		OfferID:          b.OfferID,
		Status:           b.EffectiveStatus(time.Now()),
		Contact:          b.Contact,
		Passengers:       b.Passengers,
		FlightDetails:    b.FlightDetails,
		Pricing:          b.Pricing,
		PNR:              b.PNR,
		Documents:        b.Documents,
		RetryCount:       b.RetryCount,
		PaymentDeadline:  b.PaymentDeadline,
		PriceExpiry:      b.PriceExpiry,
		IsLiveMode:       b.IsLiveMode,
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
	}
}
