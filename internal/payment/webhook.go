package payment

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/scantip/backend-tips/internal/common"
	"github.com/scantip/backend-tips/internal/obs"
)

// Webhook handles payment provider callbacks: raw-body signature verification
// followed by idempotent recording. Providers retry failed deliveries on their
// own, so a 200 is only sent once the event is either recorded, already known,
// or of an ignored type.
type Webhook struct {
	Providers    map[string]Provider
	Recorder     *Recorder
	Logger       zerolog.Logger
	MaxBodyBytes int64
}

// Handle processes one webhook delivery for the provider named in the route.
func (h Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	if h.Providers == nil || h.Recorder == nil {
		common.JSONError(w, http.StatusInternalServerError, "Webhook non configuré")
		return
	}
	providerKey := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "provider")))
	provider, ok := h.Providers[providerKey]
	if !ok {
		common.JSONError(w, http.StatusNotFound, "Fournisseur inconnu")
		return
	}

	maxBytes := h.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = 65536
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.count(providerKey, "invalid_body")
		common.JSONError(w, http.StatusBadRequest, "Body invalide")
		return
	}

	result, err := provider.VerifyWebhook(r, body)
	if err != nil {
		// secret missing or verifier unusable: never accept unsigned events
		h.Logger.Error().Err(err).Str("provider", providerKey).Msg("webhook verifier unavailable")
		h.count(providerKey, "not_configured")
		common.JSONError(w, http.StatusInternalServerError, "Webhook non configuré")
		return
	}
	if !result.Valid {
		h.Logger.Warn().Err(result.Err).Str("provider", providerKey).Msg("webhook rejected")
		switch {
		case errors.Is(result.Err, ErrMissingSignature):
			h.count(providerKey, "missing_signature")
			common.JSONError(w, http.StatusBadRequest, "Signature manquante")
		case errors.Is(result.Err, ErrMalformedPayload):
			h.count(providerKey, "malformed")
			common.JSONError(w, http.StatusBadRequest, "JSON invalide")
		default:
			h.count(providerKey, "invalid_signature")
			common.JSONError(w, http.StatusBadRequest, "Signature invalide")
		}
		return
	}

	if result.Completed == nil {
		h.Logger.Debug().
			Str("provider", providerKey).
			Str("event_type", result.EventType).
			Msg("webhook event ignored")
		h.count(providerKey, "ignored")
		common.Received(w)
		return
	}

	outcome, err := h.Recorder.RecordCompletedPayment(r.Context(), *result.Completed)
	if err != nil {
		// non-2xx so the provider redelivers once storage recovers
		h.Logger.Error().Err(err).
			Str("provider", providerKey).
			Str("session_id", result.Completed.SessionID).
			Msg("record payment")
		h.count(providerKey, "error")
		common.JSONError(w, http.StatusInternalServerError, "Erreur serveur.")
		return
	}
	if outcome == AlreadyRecorded {
		h.count(providerKey, "duplicate")
	} else {
		h.count(providerKey, "recorded")
	}
	common.Received(w)
}

func (h Webhook) count(provider, result string) {
	if obs.PaymentWebhookTotal != nil {
		obs.PaymentWebhookTotal.WithLabelValues(provider, result).Inc()
	}
}
