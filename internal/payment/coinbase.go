package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
)

// chargeConfirmed is the only Coinbase Commerce event type the pipeline records.
const chargeConfirmed = "charge:confirmed"

// signatureHeader carries the HMAC-SHA256 hex digest of the raw body.
const coinbaseSignatureHeader = "X-CC-Webhook-Signature"

// CoinbaseConfig carries credentials and the API host (overridable for tests).
type CoinbaseConfig struct {
	APIKey        string
	WebhookSecret string
	BaseURL       string
	HTTPClient    *http.Client
}

// Coinbase implements Provider on top of Coinbase Commerce fixed-price
// charges. Unlike Stripe, a missing API key is only detected at request time:
// the crypto rail is optional for a deployment.
type Coinbase struct {
	apiKey        string
	webhookSecret string
	baseURL       string
	http          *http.Client
}

// NewCoinbase constructs the Coinbase Commerce provider.
func NewCoinbase(cfg CoinbaseConfig) *Coinbase {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = "https://api.commerce.coinbase.com"
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Coinbase{
		apiKey:        strings.TrimSpace(cfg.APIKey),
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		baseURL:       base,
		http:          httpClient,
	}
}

// Name identifies the provider namespace.
func (c *Coinbase) Name() string { return ProviderCoinbase }

type coinbaseChargeRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	PricingType string `json:"pricing_type"`
	LocalPrice  struct {
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
	} `json:"local_price"`
}

type coinbaseChargeResponse struct {
	Data struct {
		ID        string `json:"id"`
		Code      string `json:"code"`
		HostedURL string `json:"hosted_url"`
	} `json:"data"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// CreateCheckout requests a fixed-price charge in the settlement currency and
// returns the hosted payment URL. The display hint only decorates the
// description; settlement always happens in req.Currency.
func (c *Coinbase) CreateCheckout(ctx context.Context, req CheckoutRequest) (CheckoutResponse, error) {
	if c.apiKey == "" {
		return CheckoutResponse{}, fmt.Errorf("coinbase api key: %w", ErrNotConfigured)
	}

	amount := majorString(req.AmountMinor)
	payload := coinbaseChargeRequest{
		Name:        "Pourboire ScanTip",
		Description: req.Description,
		PricingType: "fixed_price",
	}
	payload.LocalPrice.Amount = amount
	payload.LocalPrice.Currency = strings.ToUpper(req.Currency)

	body, err := json.Marshal(payload)
	if err != nil {
		return CheckoutResponse{}, fmt.Errorf("encode charge request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/charges", bytes.NewReader(body))
	if err != nil {
		return CheckoutResponse{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-CC-Api-Key", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return CheckoutResponse{}, fmt.Errorf("create charge: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return CheckoutResponse{}, fmt.Errorf("read charge response: %w", err)
	}
	var parsed coinbaseChargeResponse
	if err := json.Unmarshal(raw, &parsed); err != nil && resp.StatusCode < 300 {
		return CheckoutResponse{}, fmt.Errorf("decode charge response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := strings.TrimSpace(parsed.Error.Message)
		if message == "" {
			message = "Erreur Coinbase Commerce."
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return CheckoutResponse{}, &ProviderError{Status: resp.StatusCode, Message: message}
		}
		return CheckoutResponse{}, fmt.Errorf("coinbase charge failed (%d): %s", resp.StatusCode, message)
	}
	if strings.TrimSpace(parsed.Data.HostedURL) == "" {
		return CheckoutResponse{}, ErrNoRedirectURL
	}
	sessionID := parsed.Data.Code
	if sessionID == "" {
		sessionID = parsed.Data.ID
	}
	return CheckoutResponse{
		Provider:    ProviderCoinbase,
		SessionID:   sessionID,
		RedirectURL: parsed.Data.HostedURL,
	}, nil
}

type coinbaseWebhookEnvelope struct {
	Event struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			ID       string `json:"id"`
			Code     string `json:"code"`
			Metadata struct {
				Email string `json:"email"`
			} `json:"metadata"`
			Pricing struct {
				Local struct {
					Amount   string `json:"amount"`
					Currency string `json:"currency"`
				} `json:"local"`
			} `json:"pricing"`
		} `json:"data"`
	} `json:"event"`
}

// VerifyWebhook checks the HMAC-SHA256 hex signature of the raw body. The
// comparison runs over the decoded byte buffers in constant time after a
// length check; decoding normalises hex case, so an uppercase digest with the
// right bytes still verifies.
func (c *Coinbase) VerifyWebhook(r *http.Request, body []byte) (WebhookVerifyResult, error) {
	if c.webhookSecret == "" {
		return WebhookVerifyResult{}, fmt.Errorf("coinbase webhook secret: %w", ErrNotConfigured)
	}
	provided := strings.TrimSpace(r.Header.Get(coinbaseSignatureHeader))
	if provided == "" {
		return WebhookVerifyResult{Err: ErrMissingSignature}, nil
	}

	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write(body)
	expected := mac.Sum(nil)

	providedBytes, err := hex.DecodeString(provided)
	if err != nil || len(providedBytes) != len(expected) || !hmac.Equal(expected, providedBytes) {
		return WebhookVerifyResult{Err: ErrInvalidSignature}, nil
	}

	var envelope coinbaseWebhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return WebhookVerifyResult{Err: fmt.Errorf("%w: %v", ErrMalformedPayload, err)}, nil
	}

	result := WebhookVerifyResult{Valid: true, EventType: envelope.Event.Type}
	if envelope.Event.Type != chargeConfirmed {
		return result, nil
	}

	sessionID := envelope.Event.Data.Code
	if sessionID == "" {
		sessionID = envelope.Event.Data.ID
	}
	amount, err := parseMajorAmount(envelope.Event.Data.Pricing.Local.Amount)
	if err != nil {
		amount = 0
	}
	currency := strings.ToLower(strings.TrimSpace(envelope.Event.Data.Pricing.Local.Currency))
	if currency == "" {
		currency = "eur"
	}
	result.Completed = &CompletedEvent{
		Provider:   ProviderCoinbase,
		SessionID:  sessionID,
		PaymentRef: envelope.Event.Data.ID,
		Amount:     amount,
		Currency:   currency,
		Email:      strings.TrimSpace(envelope.Event.Data.Metadata.Email),
	}
	return result, nil
}

// majorString renders minor units as the two-decimal string Coinbase expects.
func majorString(amountMinor int64) string {
	return fmt.Sprintf("%.2f", float64(amountMinor)/100)
}

// parseMajorAmount converts a decimal major-unit string into minor units.
func parseMajorAmount(value string) (int64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, err
	}
	return int64(math.Round(f * 100)), nil
}
