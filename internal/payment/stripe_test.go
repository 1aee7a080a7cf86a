package payment_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scantip/backend-tips/internal/payment"
)

func TestNewStripeRequiresSecretKey(t *testing.T) {
	t.Parallel()

	_, err := payment.NewStripe(payment.StripeConfig{})
	require.ErrorIs(t, err, payment.ErrNotConfigured)
}

func TestStripeCreateCheckoutReturnsHostedURL(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "payment", r.PostForm.Get("mode"))
		require.Equal(t, "500", r.PostForm.Get("line_items[0][price_data][unit_amount]"))
		require.Equal(t, "eur", r.PostForm.Get("line_items[0][price_data][currency]"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "cs_test_1",
			"object": "checkout.session",
			"url":    "https://checkout.stripe.com/c/pay/cs_test_1",
		})
	}))
	defer ts.Close()

	s, err := payment.NewStripe(payment.StripeConfig{SecretKey: "sk_test_x", BaseURL: ts.URL})
	require.NoError(t, err)

	resp, err := s.CreateCheckout(context.Background(), payment.CheckoutRequest{
		AmountMinor: 500,
		Currency:    "eur",
		Description: "Pourboire de 5.00 €",
		SuccessURL:  "http://localhost:3000/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:   "http://localhost:3000/tip/pay?amount=5.00",
	})
	require.NoError(t, err)
	require.Equal(t, "cs_test_1", resp.SessionID)
	require.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", resp.RedirectURL)
}

func TestStripeVerifyWebhook(t *testing.T) {
	t.Parallel()

	s, err := payment.NewStripe(payment.StripeConfig{SecretKey: "sk_test_x", WebhookSecret: "whsec_test"})
	require.NoError(t, err)

	body := stripeCompletedBody(t, "cs_test_9", 750)

	valid := webhookRequest("stripe", body, map[string]string{
		"Stripe-Signature": signStripe("whsec_test", body),
	})
	result, err := s.VerifyWebhook(valid, body)
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.NotNil(t, result.Completed)
	require.Equal(t, "cs_test_9", result.Completed.SessionID)
	require.Equal(t, int64(750), result.Completed.Amount)
	require.Equal(t, "eur", result.Completed.Currency)
	require.Equal(t, "tipper@example.test", result.Completed.Email)

	tampered := append([]byte{}, body...)
	tampered[len(tampered)-2] = 'X'
	req := webhookRequest("stripe", tampered, map[string]string{
		"Stripe-Signature": signStripe("whsec_test", body),
	})
	result, err = s.VerifyWebhook(req, tampered)
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.ErrorIs(t, result.Err, payment.ErrInvalidSignature)

	missing := webhookRequest("stripe", body, nil)
	result, err = s.VerifyWebhook(missing, body)
	require.NoError(t, err)
	require.ErrorIs(t, result.Err, payment.ErrMissingSignature)
}

func TestStripeVerifyWebhookIsAPIVersionAgnostic(t *testing.T) {
	t.Parallel()

	s, err := payment.NewStripe(payment.StripeConfig{SecretKey: "sk_test_x", WebhookSecret: "whsec_test"})
	require.NoError(t, err)

	// the endpoint's pinned version is whatever the dashboard says, not the
	// SDK's; a signed event must verify no matter which version stamped it
	for _, version := range []string{"2020-08-27", "2024-06-20", ""} {
		body, err := json.Marshal(map[string]any{
			"id":          "evt_ver",
			"api_version": version,
			"type":        "checkout.session.completed",
			"data": map[string]any{
				"object": map[string]any{
					"id":           "cs_test_ver",
					"object":       "checkout.session",
					"amount_total": 500,
					"currency":     "eur",
				},
			},
		})
		require.NoError(t, err)

		req := webhookRequest("stripe", body, map[string]string{
			"Stripe-Signature": signStripe("whsec_test", body),
		})
		result, err := s.VerifyWebhook(req, body)
		require.NoError(t, err)
		require.True(t, result.Valid, "api_version %q", version)
		require.NotNil(t, result.Completed)
		require.Equal(t, "cs_test_ver", result.Completed.SessionID)
	}
}

func TestStripeVerifyWebhookIgnoresOtherEvents(t *testing.T) {
	t.Parallel()

	s, err := payment.NewStripe(payment.StripeConfig{SecretKey: "sk_test_x", WebhookSecret: "whsec_test"})
	require.NoError(t, err)

	body, err := json.Marshal(map[string]any{
		"id":   "evt_2",
		"type": "payment_intent.created",
		"data": map[string]any{"object": map[string]any{"id": "pi_1"}},
	})
	require.NoError(t, err)

	req := webhookRequest("stripe", body, map[string]string{
		"Stripe-Signature": signStripe("whsec_test", body),
	})
	result, err := s.VerifyWebhook(req, body)
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.Nil(t, result.Completed)
	require.Equal(t, "payment_intent.created", result.EventType)
}

func TestStripeVerifyWebhookWithoutSecret(t *testing.T) {
	t.Parallel()

	s, err := payment.NewStripe(payment.StripeConfig{SecretKey: "sk_test_x"})
	require.NoError(t, err)

	body := stripeCompletedBody(t, "cs_test_10", 500)
	req := webhookRequest("stripe", body, map[string]string{
		"Stripe-Signature": signStripe("whsec_test", body),
	})
	_, err = s.VerifyWebhook(req, body)
	require.ErrorIs(t, err, payment.ErrNotConfigured)
}
