package payment

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/scantip/backend-tips/internal/obs"
	"github.com/scantip/backend-tips/internal/store"
)

// Outcome reports what recording a completed payment did.
type Outcome int

const (
	// Recorded means a new payment row was inserted.
	Recorded Outcome = iota
	// AlreadyRecorded means the provider delivered a duplicate; nothing was
	// written. This is a successful no-op, not an error.
	AlreadyRecorded
)

// PaymentStore is the subset of the storage layer the recorder needs.
type PaymentStore interface {
	InsertPaymentIfAbsent(ctx context.Context, p store.Payment) (bool, error)
	GetPayment(ctx context.Context, provider, sessionID string) (store.Payment, error)
}

// Recorder is the sole writer of Payment rows. It persists each verified
// completed event exactly once per provider-qualified session id, relying on
// the storage layer's uniqueness constraint rather than a read-then-write.
type Recorder struct {
	Store  PaymentStore
	Logger zerolog.Logger
}

// RecordCompletedPayment persists a verified completed payment. Provider
// webhook retries and duplicate deliveries land on the same key and come back
// as AlreadyRecorded.
func (r *Recorder) RecordCompletedPayment(ctx context.Context, ev CompletedEvent) (Outcome, error) {
	if r == nil || r.Store == nil {
		return 0, errors.New("recorder not configured")
	}
	if strings.TrimSpace(ev.SessionID) == "" {
		return 0, errors.New("completed event without session id")
	}
	currency := strings.ToLower(strings.TrimSpace(ev.Currency))
	if currency == "" {
		// defensive default, not a silent error: the amount/currency pair is
		// logged below either way
		currency = "eur"
	}
	amount := ev.Amount
	if amount < 0 {
		amount = 0
	}

	inserted, err := r.Store.InsertPaymentIfAbsent(ctx, store.Payment{
		ID:                 uuid.New(),
		Provider:           ev.Provider,
		ProviderSessionID:  ev.SessionID,
		ProviderPaymentRef: ev.PaymentRef,
		AmountMinorUnits:   amount,
		CurrencyCode:       currency,
		Status:             store.StatusCompleted,
		CustomerEmail:      ev.Email,
	})
	if err != nil {
		return 0, err
	}
	if !inserted {
		r.Logger.Info().
			Str("provider", ev.Provider).
			Str("session_id", ev.SessionID).
			Msg("duplicate payment webhook ignored")
		return AlreadyRecorded, nil
	}
	if obs.PaymentsRecordedTotal != nil {
		obs.PaymentsRecordedTotal.WithLabelValues(ev.Provider).Inc()
	}
	r.Logger.Info().
		Str("provider", ev.Provider).
		Str("session_id", ev.SessionID).
		Int64("amount_minor_units", amount).
		Str("currency", currency).
		Msg("payment recorded")
	return Recorded, nil
}
