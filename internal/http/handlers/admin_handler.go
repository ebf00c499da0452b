package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/go-chi/chi/v5"
	"github.com/voyago/flight-bookings/internal/domain"
	"github.com/voyago/flight-bookings/internal/http/middleware"
	"github.com/voyago/flight-bookings/internal/http/response"
	"github.com/voyago/flight-bookings/pkg/auth"
	"github.com/voyago/flight-bookings/pkg/logger"
)

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AdminLogin authenticates the configured operations account and issues a
// short-lived admin token.
func (h *Handlers) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var in loginReq
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "invalid json")
		return
	}

	cfg := h.config.Auth
	if cfg.AdminEmail == "" || cfg.AdminPasswordHash == "" {
		response.Unauthorized(w, "admin access is not configured")
		return
	}
	if !strings.EqualFold(in.Email, cfg.AdminEmail) {
		response.Unauthorized(w, "invalid credentials")
		return
	}

	ok, err := argon2id.ComparePasswordAndHash(in.Password, cfg.AdminPasswordHash)
	if err != nil || !ok {
		response.Unauthorized(w, "invalid credentials")
		return
	}

	token, err := auth.NewAccessToken(cfg.AdminEmail, "admin", cfg.JWTSecret, cfg.AccessTokenTTL)
	if err != nil {
		response.InternalError(w, "could not issue token")
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *Handlers) AdminListBookings(w http.ResponseWriter, r *http.Request) {
	limit, offset := 20, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	if raw := r.URL.Query().Get("status"); raw != "" {
		status, ok := domain.ParseBookingStatus(raw)
		if !ok {
			response.BadRequest(w, "invalid status")
			return
		}
		bookings, err := h.repo.ListByStatus(r.Context(), status, limit, offset)
		if err != nil {
			response.InternalError(w, "could not list bookings")
			return
		}
		response.JSON(w, http.StatusOK, map[string]any{"bookings": bookings})
		return
	}

	bookings, err := h.repo.List(r.Context(), limit, offset)
	if err != nil {
		response.InternalError(w, "could not list bookings")
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

type forceStatusReq struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

// AdminForceStatus overrides the state machine; the audit note is
// mandatory so every override is attributable.
func (h *Handlers) AdminForceStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "invalid booking id")
		return
	}

	var in forceStatusReq
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "invalid json")
		return
	}
	status, ok := domain.ParseBookingStatus(in.Status)
	if !ok {
		response.BadRequest(w, "invalid status")
		return
	}
	if strings.TrimSpace(in.Note) == "" {
		response.BadRequest(w, "an audit note is required for a status override")
		return
	}

	booking, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		response.InternalError(w, "could not load booking")
		return
	}
	if booking == nil {
		response.NotFound(w, "booking not found")
		return
	}

	claims := middleware.Claims(r)
	actor := "admin"
	if claims != nil {
		actor = claims.Email
	}
	note := time.Now().Format(time.RFC3339) + " " + actor + " forced " + string(booking.Status) + " -> " + string(status) + ": " + in.Note

	if err := h.repo.ForceStatus(r.Context(), id, status, note); err != nil {
		response.InternalError(w, "could not update booking")
		return
	}

	logger.InfoContext(r.Context(), "Admin forced booking status",
		"booking_id", id, "from", booking.Status, "to", status, "actor", actor)

	response.JSON(w, http.StatusOK, map[string]any{"id": id, "status": status})
}

type adminNoteReq struct {
	Note string `json:"note"`
}

func (h *Handlers) AdminAddNote(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "invalid booking id")
		return
	}

	var in adminNoteReq
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "invalid json")
		return
	}
	if strings.TrimSpace(in.Note) == "" {
		response.BadRequest(w, "note is required")
		return
	}

	claims := middleware.Claims(r)
	actor := "admin"
	if claims != nil {
		actor = claims.Email
	}
	note := time.Now().Format(time.RFC3339) + " " + actor + ": " + in.Note

	if err := h.repo.AppendAdminNote(r.Context(), id, note); err != nil {
		response.InternalError(w, "could not add note")
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{"id": id})
}
