// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the issuance service.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/millennialcircuit/launch-rsvp/internal/model"
	"github.com/millennialcircuit/launch-rsvp/internal/repository"
	"github.com/millennialcircuit/launch-rsvp/internal/service"
)

// genericFailure is the only message shown for store-side failures; the
// presentation layer renders it verbatim.
const genericFailure = "Failed to process RSVP. Please try again."

// RSVPHandler holds the HTTP handlers for the RSVP API.
type RSVPHandler struct {
	svc *service.IssuanceService
}

// NewRSVPHandler constructs an RSVPHandler.
func NewRSVPHandler(svc *service.IssuanceService) *RSVPHandler {
	return &RSVPHandler{svc: svc}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

// decodeJSON tolerates unknown fields: the form payload may carry extras
// and the service persists only the recognized ones.
func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1 MB limit
	return json.NewDecoder(r.Body).Decode(dst)
}

// ─── Handlers ─────────────────────────────────────────────────────────────────

// SubmitRSVP handles POST /api/rsvp
// Runs the issuance flow and returns the visitor's ticket, whether newly
// issued or pre-existing. Both cases produce the same response shape.
func (h *RSVPHandler) SubmitRSVP(w http.ResponseWriter, r *http.Request) {
	var sub model.Submission
	if err := decodeJSON(r, &sub); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	issued, err := h.svc.RSVP(r.Context(), sub)
	if err != nil {
		if errors.Is(err, service.ErrInvalidSubmission) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, genericFailure)
		return
	}

	writeJSON(w, http.StatusOK, issued)
}

// GetTicket handles GET /ticket/{number}
// Serves the page the QR code links to: the ticket looked up by its
// human-readable number.
func (h *RSVPHandler) GetTicket(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")

	issued, err := h.svc.TicketByNumber(r.Context(), number)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "ticket not found")
			return
		}
		writeError(w, http.StatusInternalServerError, genericFailure)
		return
	}

	writeJSON(w, http.StatusOK, issued)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
