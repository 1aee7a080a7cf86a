package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// StatusCompleted is the only status the webhook pipeline ever writes.
const StatusCompleted = "completed"

// Payment is a recorded, completed tip. Rows are append-only: the pipeline
// inserts them exactly once and never updates or deletes them.
type Payment struct {
	ID                 uuid.UUID
	Provider           string
	ProviderSessionID  string
	ProviderPaymentRef string
	AmountMinorUnits   int64
	CurrencyCode       string
	Status             string
	CustomerEmail      string
	CreatedAt          time.Time
}

const insertPaymentSQL = `
INSERT INTO payments (
	id, provider, provider_session_id, provider_payment_ref,
	amount_minor_units, currency_code, status, customer_email
) VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, NULLIF($8, ''))
ON CONFLICT (provider, provider_session_id) DO NOTHING`

// InsertPaymentIfAbsent atomically records a payment unless one already exists
// for the same provider-qualified session id. It returns false when the row was
// already present. The uniqueness constraint, not application logic, closes the
// race between near-simultaneous webhook deliveries.
func (s *Store) InsertPaymentIfAbsent(ctx context.Context, p Payment) (bool, error) {
	tag, err := s.Pool.Exec(ctx, insertPaymentSQL,
		p.ID, p.Provider, p.ProviderSessionID, p.ProviderPaymentRef,
		p.AmountMinorUnits, p.CurrencyCode, p.Status, p.CustomerEmail,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return false, nil
		}
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

const getPaymentSQL = `
SELECT id, provider, provider_session_id, COALESCE(provider_payment_ref, ''),
	amount_minor_units, currency_code, status, COALESCE(customer_email, ''), created_at
FROM payments
WHERE provider = $1 AND provider_session_id = $2`

// GetPayment looks up a recorded payment by its provider-qualified session id.
func (s *Store) GetPayment(ctx context.Context, provider, sessionID string) (Payment, error) {
	var p Payment
	err := s.Pool.QueryRow(ctx, getPaymentSQL, provider, sessionID).Scan(
		&p.ID, &p.Provider, &p.ProviderSessionID, &p.ProviderPaymentRef,
		&p.AmountMinorUnits, &p.CurrencyCode, &p.Status, &p.CustomerEmail, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payment{}, ErrNotFound
		}
		return Payment{}, err
	}
	return p, nil
}
