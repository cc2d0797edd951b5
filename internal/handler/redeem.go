// Package handler exposes the redemption service over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"spin-reward-service/internal/lock"
	"spin-reward-service/internal/model"
	"spin-reward-service/internal/ratelimit"
	"spin-reward-service/internal/repository"
	"spin-reward-service/internal/service"
	"spin-reward-service/internal/session"
)

// Redeemer runs the redemption protocol.
type Redeemer interface {
	Redeem(ctx context.Context, req service.RedeemRequest) (*service.RedeemResult, error)
}

// TicketIssuer creates pending tickets (issuance collaborator).
type TicketIssuer interface {
	Issue(ctx context.Context, ownerID, contextRef string) (*model.Ticket, error)
}

// ProfileReader reads owner profiles for balance display.
type ProfileReader interface {
	GetOrCreate(ctx context.Context, ownerID, displayName string) (*model.Profile, bool, error)
}

// RedeemHandler wires the redemption API routes.
type RedeemHandler struct {
	redeemer Redeemer
	tickets  TicketIssuer
	profiles ProfileReader
}

// NewRedeemHandler creates a new RedeemHandler instance.
func NewRedeemHandler(redeemer Redeemer, tickets TicketIssuer, profiles ProfileReader) *RedeemHandler {
	return &RedeemHandler{redeemer: redeemer, tickets: tickets, profiles: profiles}
}

// Routes registers the API routes on r.
func (h *RedeemHandler) Routes(r chi.Router) {
	r.Post("/tickets", h.issueTicket)
	r.Post("/tickets/{ticketID}/redeem", h.redeemTicket)
	r.Get("/owners/{ownerID}/balance", h.getBalance)
}

type redeemRequest struct {
	OwnerID           string `json:"owner_id"`
	SessionID         string `json:"session_id,omitempty"`
	DeviceFingerprint string `json:"device_fingerprint,omitempty"`
}

type redeemResponse struct {
	Prize         int64  `json:"prize"`
	TicketID      string `json:"ticket_id"`
	UsedAt        string `json:"used_at"`
	LedgerPending bool   `json:"ledger_pending,omitempty"`
}

func (h *RedeemHandler) redeemTicket(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OwnerID == "" {
		writeError(w, http.StatusBadRequest, "owner_id is required")
		return
	}

	result, err := h.redeemer.Redeem(r.Context(), service.RedeemRequest{
		OwnerID:           req.OwnerID,
		TicketID:          chi.URLParam(r, "ticketID"),
		SessionID:         req.SessionID,
		DeviceFingerprint: req.DeviceFingerprint,
	})
	if err != nil {
		writeRedeemError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, redeemResponse{
		Prize:         result.Prize,
		TicketID:      result.Ticket.ID,
		UsedAt:        result.Ticket.UsedAt.Format("2006-01-02T15:04:05Z07:00"),
		LedgerPending: result.LedgerPending,
	})
}

type issueRequest struct {
	OwnerID string `json:"owner_id"`
	Context string `json:"context"`
}

func (h *RedeemHandler) issueTicket(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OwnerID == "" || req.Context == "" {
		writeError(w, http.StatusBadRequest, "owner_id and context are required")
		return
	}

	ticket, err := h.tickets.Issue(r.Context(), req.OwnerID, req.Context)
	if err != nil {
		log.Error().Err(err).Str("owner_id", req.OwnerID).Msg("Ticket issuance failed")
		writeError(w, http.StatusInternalServerError, "failed to issue ticket")
		return
	}

	writeJSON(w, http.StatusOK, ticket)
}

func (h *RedeemHandler) getBalance(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "ownerID")

	profile, _, err := h.profiles.GetOrCreate(r.Context(), ownerID, "")
	if err != nil {
		log.Error().Err(err).Str("owner_id", ownerID).Msg("Balance lookup failed")
		writeError(w, http.StatusInternalServerError, "failed to read balance")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"owner_id": profile.OwnerID,
		"balance":  profile.Balance,
	})
}

// writeRedeemError maps each error kind of the redemption protocol to a
// distinct status and message. Only unclassified infrastructure errors get
// a generic message.
func writeRedeemError(w http.ResponseWriter, err error) {
	var rateErr *ratelimit.RateLimitError
	switch {
	case errors.Is(err, session.ErrSessionConflict):
		writeError(w, http.StatusConflict, "another session is already active; close other tabs or devices and retry")
	case errors.As(err, &rateErr):
		w.Header().Set("Retry-After", strconv.Itoa(rateErr.RemainingSeconds()))
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":            "too soon since your last spin",
			"retry_after_secs": rateErr.RemainingSeconds(),
		})
	case errors.Is(err, lock.ErrContention):
		writeError(w, http.StatusLocked, "another redemption is in progress; try again shortly")
	case errors.Is(err, repository.ErrTicketNotFound):
		writeError(w, http.StatusNotFound, "ticket not found")
	case errors.Is(err, repository.ErrProfileNotFound):
		writeError(w, http.StatusNotFound, "owner profile not found")
	case errors.Is(err, model.ErrTicketOwnership):
		writeError(w, http.StatusForbidden, "this ticket belongs to a different owner")
	case errors.Is(err, model.ErrTicketAlreadyUsed):
		writeError(w, http.StatusConflict, "this ticket has already been used")
	case errors.Is(err, model.ErrTicketExpired):
		writeError(w, http.StatusGone, "this ticket expired at the end of its issuance day")
	default:
		log.Error().Err(err).Msg("Redemption failed with infrastructure error")
		writeError(w, http.StatusServiceUnavailable, "something went wrong; please retry")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
