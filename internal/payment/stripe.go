package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"
)

// checkoutSessionCompleted is the only Stripe event type the pipeline records.
const checkoutSessionCompleted = "checkout.session.completed"

// StripeConfig carries the credentials and the optional API host override used
// by tests.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	BaseURL       string
}

// Stripe implements Provider on top of Stripe Checkout. The underlying API
// client is stateless and safe to share across requests.
type Stripe struct {
	client        *client.API
	webhookSecret string
}

// NewStripe constructs the Stripe provider. The secret key is mandatory: a
// deployment without it cannot open checkout sessions at all, so the caller
// should fail fast.
func NewStripe(cfg StripeConfig) (*Stripe, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, fmt.Errorf("stripe secret key: %w", ErrNotConfigured)
	}
	sc := &client.API{}
	var backends *stripe.Backends
	if strings.TrimSpace(cfg.BaseURL) != "" {
		backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			URL: stripe.String(strings.TrimRight(cfg.BaseURL, "/")),
		})
		backends = &stripe.Backends{API: backend, Connect: backend, Uploads: backend}
	}
	sc.Init(cfg.SecretKey, backends)
	return &Stripe{client: sc, webhookSecret: strings.TrimSpace(cfg.WebhookSecret)}, nil
}

// Name identifies the provider namespace.
func (s *Stripe) Name() string { return ProviderStripe }

// CreateCheckout opens a single-use, single-line-item hosted checkout session
// and returns its redirect URL. Nothing is persisted here: the tipper may
// abandon payment, so records are only written by the webhook pipeline.
func (s *Stripe) CreateCheckout(ctx context.Context, req CheckoutRequest) (CheckoutResponse, error) {
	params := &stripe.CheckoutSessionParams{
		Params:             stripe.Params{Context: ctx},
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(req.Currency),
				UnitAmount: stripe.Int64(req.AmountMinor),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String("Pourboire"),
					Description: stripe.String(req.Description),
				},
			},
		}},
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	sess, err := s.client.CheckoutSessions.New(params)
	if err != nil {
		return CheckoutResponse{}, fmt.Errorf("create checkout session: %w", err)
	}
	if sess.URL == "" {
		return CheckoutResponse{}, ErrNoRedirectURL
	}
	return CheckoutResponse{
		Provider:    ProviderStripe,
		SessionID:   sess.ID,
		RedirectURL: sess.URL,
	}, nil
}

// VerifyWebhook delegates to Stripe's own signature routine (timestamped HMAC
// over the raw body with a replay-tolerance window) and normalises completed
// checkout sessions. The body must be the exact bytes received: re-serialised
// JSON is not guaranteed byte-identical and would break verification.
func (s *Stripe) VerifyWebhook(r *http.Request, body []byte) (WebhookVerifyResult, error) {
	if s.webhookSecret == "" {
		return WebhookVerifyResult{}, fmt.Errorf("stripe webhook secret: %w", ErrNotConfigured)
	}
	sig := strings.TrimSpace(r.Header.Get("Stripe-Signature"))
	if sig == "" {
		return WebhookVerifyResult{Err: ErrMissingSignature}, nil
	}
	// endpoints can be pinned to any Stripe API version; authenticity does not
	// depend on it, so version mismatches must not reject a signed event
	event, err := webhook.ConstructEventWithOptions(body, sig, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if errors.Is(err, webhook.ErrNotSigned) ||
			errors.Is(err, webhook.ErrInvalidHeader) ||
			errors.Is(err, webhook.ErrNoValidSignature) ||
			errors.Is(err, webhook.ErrTooOld) {
			return WebhookVerifyResult{Err: fmt.Errorf("%w: %v", ErrInvalidSignature, err)}, nil
		}
		return WebhookVerifyResult{Err: fmt.Errorf("%w: %v", ErrMalformedPayload, err)}, nil
	}

	result := WebhookVerifyResult{Valid: true, EventType: string(event.Type)}
	if string(event.Type) != checkoutSessionCompleted {
		return result, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return WebhookVerifyResult{Err: fmt.Errorf("%w: %v", ErrMalformedPayload, err)}, nil
	}

	currency := strings.ToLower(strings.TrimSpace(string(sess.Currency)))
	if currency == "" {
		currency = "eur"
	}
	email := strings.TrimSpace(sess.CustomerEmail)
	if email == "" && sess.CustomerDetails != nil {
		email = strings.TrimSpace(sess.CustomerDetails.Email)
	}
	paymentRef := ""
	if sess.PaymentIntent != nil {
		paymentRef = sess.PaymentIntent.ID
	}
	result.Completed = &CompletedEvent{
		Provider:   ProviderStripe,
		SessionID:  sess.ID,
		PaymentRef: paymentRef,
		Amount:     sess.AmountTotal,
		Currency:   currency,
		Email:      email,
	}
	return result, nil
}
