// mockwebhook sends a signed test webhook to a running API instance, so the
// verification and recording pipeline can be exercised without real provider
// traffic.
package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
)

func main() {
	provider := flag.String("provider", "stripe", "payment provider: stripe or coinbase")
	baseURL := flag.String("url", "http://localhost:8080", "API base URL")
	secret := flag.String("secret", "whsec_test", "webhook signing secret")
	session := flag.String("session", "", "provider session id (random when empty)")
	amount := flag.Int64("amount", 500, "amount in minor units")
	event := flag.String("event", "", "event type override")
	flag.Parse()

	sessionID := *session
	if sessionID == "" {
		sessionID = "cs_test_" + uuid.NewString()
	}

	var body []byte
	var sign func(body []byte) (header, value string)
	var err error

	switch *provider {
	case "stripe":
		eventType := *event
		if eventType == "" {
			eventType = "checkout.session.completed"
		}
		body, err = stripePayload(eventType, sessionID, *amount)
		sign = func(body []byte) (string, string) {
			ts := time.Now().Unix()
			mac := hmac.New(sha256.New, []byte(*secret))
			fmt.Fprintf(mac, "%d.%s", ts, body)
			return "Stripe-Signature", fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
		}
	case "coinbase":
		eventType := *event
		if eventType == "" {
			eventType = "charge:confirmed"
		}
		body, err = coinbasePayload(eventType, sessionID, *amount)
		sign = func(body []byte) (string, string) {
			mac := hmac.New(sha256.New, []byte(*secret))
			mac.Write(body)
			return "X-CC-Webhook-Signature", hex.EncodeToString(mac.Sum(nil))
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown provider %q\n", *provider)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "build payload: %v\n", err)
		os.Exit(1)
	}

	endpoint := fmt.Sprintf("%s/api/v1/webhooks/payment/%s", *baseURL, *provider)
	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "build request: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("Content-Type", "application/json")
	header, value := sign(body)
	req.Header.Set(header, value)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "send webhook: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = resp.Body.Close() }()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	fmt.Printf("session=%s status=%d body=%s\n", sessionID, resp.StatusCode, respBody)
}

func stripePayload(eventType, sessionID string, amount int64) ([]byte, error) {
	return json.Marshal(map[string]any{
		"id":   "evt_" + uuid.NewString(),
		"type": eventType,
		"data": map[string]any{
			"object": map[string]any{
				"id":             sessionID,
				"object":         "checkout.session",
				"amount_total":   amount,
				"currency":       "eur",
				"customer_email": "tipper@example.test",
			},
		},
	})
}

func coinbasePayload(eventType, sessionID string, amount int64) ([]byte, error) {
	return json.Marshal(map[string]any{
		"event": map[string]any{
			"id":   uuid.NewString(),
			"type": eventType,
			"data": map[string]any{
				"id":   uuid.NewString(),
				"code": sessionID,
				"pricing": map[string]any{
					"local": map[string]any{
						"amount":   fmt.Sprintf("%.2f", float64(amount)/100),
						"currency": "EUR",
					},
				},
			},
		},
	})
}
