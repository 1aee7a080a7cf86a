package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Provider names double as the identifier namespace qualifier on persisted
// payments, so two providers can assign the same session id without colliding.
const (
	ProviderStripe   = "stripe"
	ProviderCoinbase = "coinbase"
)

var (
	// ErrNotConfigured marks a missing credential or secret. Handlers map it to a
	// 500 with a generic message; unsigned events are never accepted.
	ErrNotConfigured = errors.New("provider not configured")
	// ErrMissingSignature is returned before any comparison when the signature
	// header is absent.
	ErrMissingSignature = errors.New("missing signature")
	// ErrInvalidSignature covers every authenticity failure. The detailed cause
	// stays in logs.
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrMalformedPayload marks a body that fails to parse after the signature
	// check passed.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrNoRedirectURL marks a provider response without a hosted payment URL, a
	// fatal initiation error distinct from validation failures.
	ErrNoRedirectURL = errors.New("provider returned no redirect url")
)

// CheckoutRequest captures the information required to open a hosted payment
// flow with a provider. Amounts are minor units; providers that price in major
// units convert internally.
type CheckoutRequest struct {
	AmountMinor int64
	Currency    string
	Description string
	SuccessURL  string
	CancelURL   string
	// DisplayHint decorates the human-readable description only (e.g. the
	// tipper's preferred crypto asset); it never affects settlement.
	DisplayHint string
}

// CheckoutResponse is the minimal information returned when a hosted session
// or charge has been created.
type CheckoutResponse struct {
	Provider    string
	SessionID   string
	RedirectURL string
}

// CompletedEvent is the provider-neutral "payment completed" fact extracted
// from a verified webhook and handed to the Recorder.
type CompletedEvent struct {
	Provider   string
	SessionID  string
	PaymentRef string
	Amount     int64
	Currency   string
	Email      string
}

// WebhookVerifyResult reports the outcome of verifying one webhook delivery.
// Err explains a rejection (Valid=false); Completed is set only for event
// types the pipeline records, other verified events are acknowledged and
// otherwise ignored.
type WebhookVerifyResult struct {
	Valid     bool
	EventType string
	Completed *CompletedEvent
	Err       error
}

// Provider abstracts the operations required from an upstream payment provider.
type Provider interface {
	Name() string
	CreateCheckout(ctx context.Context, req CheckoutRequest) (CheckoutResponse, error)
	// VerifyWebhook authenticates the raw body exactly as received. A non-nil
	// error means the verifier itself is unusable (missing secret); rejections
	// are reported through the result.
	VerifyWebhook(r *http.Request, body []byte) (WebhookVerifyResult, error)
}

// ProviderError carries an upstream 4xx so it can be passed through with the
// provider's own message and status class.
type ProviderError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error (%d): %s", e.Status, e.Message)
}
