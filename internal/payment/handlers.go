package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/scantip/backend-tips/internal/common"
	"github.com/scantip/backend-tips/internal/obs"
	"github.com/scantip/backend-tips/internal/store"
	"github.com/scantip/backend-tips/internal/tip"
)

// Handler serves the tip initiation endpoints and payment lookups. Providers
// are injected fully constructed; the handler never builds clients itself.
type Handler struct {
	Card          Provider
	Crypto        Provider
	Bounds        tip.Bounds
	Presets       []int64
	Currency      string
	PublicBaseURL string
	Production    bool
	Store         PaymentStore
	Logger        zerolog.Logger
}

var validate = validator.New()

type checkoutRequest struct {
	AmountMinorUnits *int64 `json:"amountMinorUnits" validate:"required"`
}

// CreateCheckout validates the amount and opens a hosted card checkout
// session. Nothing is persisted: recording happens only via the webhook
// pipeline once the provider confirms payment.
func (h Handler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "JSON invalide")
		return
	}
	amount := int64(0)
	if err := validate.Struct(req); err == nil {
		amount = *req.AmountMinorUnits
	}
	if err := h.Bounds.Validate(amount); err != nil {
		var appErr *common.AppError
		if errors.As(err, &appErr) {
			common.JSONError(w, appErr.HTTPStatus, appErr.Message)
		} else {
			common.JSONError(w, http.StatusBadRequest, "Montant invalide.")
		}
		return
	}

	major := tip.FormatMajor(amount)
	resp, err := h.Card.CreateCheckout(r.Context(), CheckoutRequest{
		AmountMinor: amount,
		Currency:    h.currency(),
		Description: fmt.Sprintf("Pourboire de %s €", major),
		SuccessURL:  h.PublicBaseURL + "/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:   h.PublicBaseURL + "/tip/pay?amount=" + major,
	})
	if err != nil {
		h.countInit(ProviderStripe, "error")
		h.Logger.Error().Err(err).Int64("amount_minor_units", amount).Msg("create checkout session")
		common.JSONError(w, http.StatusInternalServerError, h.serverError(err))
		return
	}
	h.countInit(ProviderStripe, "ok")
	common.JSON(w, http.StatusOK, map[string]string{"url": resp.RedirectURL})
}

type cryptoChargeRequest struct {
	AmountMajorUnits *float64 `json:"amountMajorUnits" validate:"omitempty,gt=0"`
	// AmountEur is the historical field name still sent by older frontends.
	AmountEur    *float64 `json:"amountEur" validate:"omitempty,gt=0"`
	CurrencyHint string   `json:"currencyHint" validate:"omitempty,alpha,max=10"`
	Currency     string   `json:"currency" validate:"omitempty,alpha,max=10"`
}

func (req cryptoChargeRequest) amount() float64 {
	if req.AmountMajorUnits != nil {
		return *req.AmountMajorUnits
	}
	if req.AmountEur != nil {
		return *req.AmountEur
	}
	return 0
}

func (req cryptoChargeRequest) hint() string {
	if h := strings.TrimSpace(req.CurrencyHint); h != "" {
		return h
	}
	return strings.TrimSpace(req.Currency)
}

// CreateCryptoCharge opens a fixed-price crypto charge. Settlement always
// happens in the configured currency; the hint in the request only decorates
// the description shown to the tipper.
func (h Handler) CreateCryptoCharge(w http.ResponseWriter, r *http.Request) {
	var req cryptoChargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "JSON invalide")
		return
	}
	amountMajor := req.amount()
	if amountMajor <= 0 || validate.Struct(req) != nil {
		common.JSONError(w, http.StatusBadRequest, "Montant invalide.")
		return
	}
	// the crypto rail only requires a positive amount; card bounds do not apply
	amountMinor := int64(math.Round(amountMajor * 100))

	description := fmt.Sprintf("Pourboire de %s €", tip.FormatMajor(amountMinor))
	if hint := req.hint(); hint != "" {
		description = fmt.Sprintf("%s (%s)", description, strings.ToUpper(hint))
	}
	resp, err := h.Crypto.CreateCheckout(r.Context(), CheckoutRequest{
		AmountMinor: amountMinor,
		Currency:    h.currency(),
		Description: description,
		DisplayHint: req.hint(),
	})
	if err != nil {
		h.countInit(ProviderCoinbase, "error")
		h.Logger.Error().Err(err).Int64("amount_minor_units", amountMinor).Msg("create crypto charge")
		var provErr *ProviderError
		switch {
		case errors.Is(err, ErrNotConfigured):
			common.JSONError(w, http.StatusInternalServerError, "Crypto non configuré.")
		case errors.As(err, &provErr):
			common.JSONError(w, provErr.Status, provErr.Message)
		case errors.Is(err, ErrNoRedirectURL):
			common.JSONError(w, http.StatusInternalServerError, "URL de paiement Coinbase manquante.")
		default:
			common.JSONError(w, http.StatusInternalServerError, h.serverError(err))
		}
		return
	}
	h.countInit(ProviderCoinbase, "ok")
	common.JSON(w, http.StatusOK, map[string]string{"hosted_url": resp.RedirectURL})
}

// GetPresets exposes the tip policy so the frontend renders the same bounds
// and quick-pick amounts the server enforces.
func (h Handler) GetPresets(w http.ResponseWriter, r *http.Request) {
	presets := h.Presets
	if presets == nil {
		presets = []int64{}
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"currency":            h.currency(),
		"minAmountMinorUnits": h.Bounds.Min,
		"maxAmountMinorUnits": h.Bounds.Max,
		"presetsMinorUnits":   presets,
	})
}

type paymentResponse struct {
	ID                 string `json:"id"`
	Provider           string `json:"provider"`
	ProviderSessionID  string `json:"providerSessionId"`
	ProviderPaymentRef string `json:"providerPaymentRef,omitempty"`
	AmountMinorUnits   int64  `json:"amountMinorUnits"`
	CurrencyCode       string `json:"currencyCode"`
	Status             string `json:"status"`
	CreatedAt          string `json:"createdAt"`
}

// GetPayment returns a recorded payment by its provider-qualified session id.
// The customer email is never exposed here.
func (h Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	provider := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "provider")))
	sessionID := strings.TrimSpace(chi.URLParam(r, "sessionId"))
	if provider == "" || sessionID == "" {
		common.JSONError(w, http.StatusBadRequest, "Paramètres invalides")
		return
	}
	p, err := h.Store.GetPayment(r.Context(), provider, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "Paiement introuvable")
			return
		}
		h.Logger.Error().Err(err).Str("provider", provider).Str("session_id", sessionID).Msg("get payment")
		common.JSONError(w, http.StatusInternalServerError, "Erreur serveur.")
		return
	}
	common.JSON(w, http.StatusOK, paymentResponse{
		ID:                 p.ID.String(),
		Provider:           p.Provider,
		ProviderSessionID:  p.ProviderSessionID,
		ProviderPaymentRef: p.ProviderPaymentRef,
		AmountMinorUnits:   p.AmountMinorUnits,
		CurrencyCode:       p.CurrencyCode,
		Status:             p.Status,
		CreatedAt:          p.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	})
}

func (h Handler) currency() string {
	if c := strings.TrimSpace(h.Currency); c != "" {
		return strings.ToLower(c)
	}
	return "eur"
}

// serverError withholds upstream detail in production.
func (h Handler) serverError(err error) string {
	if h.Production {
		return "Erreur serveur."
	}
	return fmt.Sprintf("Erreur serveur. (%v)", err)
}

func (h Handler) countInit(provider, result string) {
	if obs.CheckoutInitTotal != nil {
		obs.CheckoutInitTotal.WithLabelValues(provider, result).Inc()
	}
}
