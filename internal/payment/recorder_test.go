package payment_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/scantip/backend-tips/internal/payment"
)

func TestRecorderRecordsOncePerSession(t *testing.T) {
	t.Parallel()

	st := newMemStore()
	rec := &payment.Recorder{Store: st, Logger: zerolog.Nop()}

	ev := payment.CompletedEvent{
		Provider:  payment.ProviderStripe,
		SessionID: "cs_test_rec",
		Amount:    500,
		Currency:  "EUR",
		Email:     "tipper@example.test",
	}

	outcome, err := rec.RecordCompletedPayment(context.Background(), ev)
	require.NoError(t, err)
	require.Equal(t, payment.Recorded, outcome)

	outcome, err = rec.RecordCompletedPayment(context.Background(), ev)
	require.NoError(t, err)
	require.Equal(t, payment.AlreadyRecorded, outcome)
	require.Equal(t, 1, st.count())

	p, err := st.GetPayment(context.Background(), payment.ProviderStripe, "cs_test_rec")
	require.NoError(t, err)
	require.Equal(t, "eur", p.CurrencyCode)
	require.Equal(t, int64(500), p.AmountMinorUnits)
}

func TestRecorderSameSessionDifferentProviders(t *testing.T) {
	t.Parallel()

	st := newMemStore()
	rec := &payment.Recorder{Store: st, Logger: zerolog.Nop()}

	for _, provider := range []string{payment.ProviderStripe, payment.ProviderCoinbase} {
		outcome, err := rec.RecordCompletedPayment(context.Background(), payment.CompletedEvent{
			Provider:  provider,
			SessionID: "shared_id",
			Amount:    500,
			Currency:  "eur",
		})
		require.NoError(t, err)
		require.Equal(t, payment.Recorded, outcome)
	}
	require.Equal(t, 2, st.count())
}

func TestRecorderRejectsEmptySessionID(t *testing.T) {
	t.Parallel()

	rec := &payment.Recorder{Store: newMemStore(), Logger: zerolog.Nop()}
	_, err := rec.RecordCompletedPayment(context.Background(), payment.CompletedEvent{
		Provider: payment.ProviderStripe,
		Amount:   500,
	})
	require.Error(t, err)
}

func TestRecorderDefaultsCurrencyAndClampsAmount(t *testing.T) {
	t.Parallel()

	st := newMemStore()
	rec := &payment.Recorder{Store: st, Logger: zerolog.Nop()}

	outcome, err := rec.RecordCompletedPayment(context.Background(), payment.CompletedEvent{
		Provider:  payment.ProviderCoinbase,
		SessionID: "CODE_DEF",
		Amount:    -1,
	})
	require.NoError(t, err)
	require.Equal(t, payment.Recorded, outcome)

	p, err := st.GetPayment(context.Background(), payment.ProviderCoinbase, "CODE_DEF")
	require.NoError(t, err)
	require.Equal(t, "eur", p.CurrencyCode)
	require.Zero(t, p.AmountMinorUnits)
}
