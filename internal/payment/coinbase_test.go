package payment_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scantip/backend-tips/internal/payment"
)

func TestCoinbaseCreateCheckoutFixedPriceCharge(t *testing.T) {
	t.Parallel()

	var got struct {
		Name        string `json:"name"`
		PricingType string `json:"pricing_type"`
		LocalPrice  struct {
			Amount   string `json:"amount"`
			Currency string `json:"currency"`
		} `json:"local_price"`
	}
	var gotKey string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/charges", r.URL.Path)
		gotKey = r.Header.Get("X-CC-Api-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"id":         "charge_1",
				"code":       "CODE1",
				"hosted_url": "https://commerce.coinbase.com/charges/CODE1",
			},
		})
	}))
	defer ts.Close()

	cb := payment.NewCoinbase(payment.CoinbaseConfig{APIKey: "cb_key", BaseURL: ts.URL})
	resp, err := cb.CreateCheckout(context.Background(), payment.CheckoutRequest{
		AmountMinor: 500,
		Currency:    "eur",
		Description: "Pourboire de 5.00 €",
	})
	require.NoError(t, err)
	require.Equal(t, "cb_key", gotKey)
	require.Equal(t, "fixed_price", got.PricingType)
	require.Equal(t, "5.00", got.LocalPrice.Amount)
	require.Equal(t, "EUR", got.LocalPrice.Currency)
	require.Equal(t, "CODE1", resp.SessionID)
	require.Equal(t, "https://commerce.coinbase.com/charges/CODE1", resp.RedirectURL)
}

func TestCoinbaseCreateCheckoutPassesThroughClientErrors(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "invalid amount"},
		})
	}))
	defer ts.Close()

	cb := payment.NewCoinbase(payment.CoinbaseConfig{APIKey: "cb_key", BaseURL: ts.URL})
	_, err := cb.CreateCheckout(context.Background(), payment.CheckoutRequest{AmountMinor: 500, Currency: "eur"})

	var provErr *payment.ProviderError
	require.ErrorAs(t, err, &provErr)
	require.Equal(t, http.StatusBadRequest, provErr.Status)
	require.Equal(t, "invalid amount", provErr.Message)
}

func TestCoinbaseCreateCheckoutWithoutKey(t *testing.T) {
	t.Parallel()

	cb := payment.NewCoinbase(payment.CoinbaseConfig{})
	_, err := cb.CreateCheckout(context.Background(), payment.CheckoutRequest{AmountMinor: 500, Currency: "eur"})
	require.ErrorIs(t, err, payment.ErrNotConfigured)
}

func TestCoinbaseCreateCheckoutMissingHostedURL(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"code": "CODE2"}})
	}))
	defer ts.Close()

	cb := payment.NewCoinbase(payment.CoinbaseConfig{APIKey: "cb_key", BaseURL: ts.URL})
	_, err := cb.CreateCheckout(context.Background(), payment.CheckoutRequest{AmountMinor: 500, Currency: "eur"})
	require.ErrorIs(t, err, payment.ErrNoRedirectURL)
}

func TestCoinbaseVerifyWebhook(t *testing.T) {
	t.Parallel()

	cb := payment.NewCoinbase(payment.CoinbaseConfig{WebhookSecret: "cb_secret"})
	body := coinbaseConfirmedBody(t, "CODE7", "12.34", "EUR")

	valid := webhookRequest("coinbase", body, map[string]string{
		"X-CC-Webhook-Signature": signCoinbase("cb_secret", body),
	})
	result, err := cb.VerifyWebhook(valid, body)
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.NotNil(t, result.Completed)
	require.Equal(t, "CODE7", result.Completed.SessionID)
	require.Equal(t, int64(1234), result.Completed.Amount)
	require.Equal(t, "eur", result.Completed.Currency)

	wrongSecret := webhookRequest("coinbase", body, map[string]string{
		"X-CC-Webhook-Signature": signCoinbase("other_secret", body),
	})
	result, err = cb.VerifyWebhook(wrongSecret, body)
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.ErrorIs(t, result.Err, payment.ErrInvalidSignature)

	truncated := webhookRequest("coinbase", body, map[string]string{
		"X-CC-Webhook-Signature": signCoinbase("cb_secret", body)[:16],
	})
	result, err = cb.VerifyWebhook(truncated, body)
	require.NoError(t, err)
	require.ErrorIs(t, result.Err, payment.ErrInvalidSignature)

	missing := webhookRequest("coinbase", body, nil)
	result, err = cb.VerifyWebhook(missing, body)
	require.NoError(t, err)
	require.ErrorIs(t, result.Err, payment.ErrMissingSignature)
}

func TestCoinbaseVerifyWebhookWithoutSecret(t *testing.T) {
	t.Parallel()

	cb := payment.NewCoinbase(payment.CoinbaseConfig{})
	body := []byte(`{}`)
	req := webhookRequest("coinbase", body, map[string]string{"X-CC-Webhook-Signature": "deadbeef"})
	_, err := cb.VerifyWebhook(req, body)
	require.True(t, errors.Is(err, payment.ErrNotConfigured))
}
