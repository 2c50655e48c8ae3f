// Package payments places optional card pre-authorization holds for
// confirmed reservations. The hold is a side effect of a successful booking:
// it runs after the table commit and its failure never unwinds the
// reservation.
package payments

import (
	"context"
	"log/slog"
	"strings"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/paymentintent"
)

type Holds struct {
	logger      *slog.Logger
	amountCents int64
	currency    string
	enabled     bool
}

type Config struct {
	StripeSecretKey string
	HoldAmountCents int64
	Currency        string
}

func New(logger *slog.Logger, cfg Config) *Holds {
	key := strings.TrimSpace(cfg.StripeSecretKey)
	if key != "" {
		stripe.Key = key
	}
	currency := strings.TrimSpace(cfg.Currency)
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}
	return &Holds{
		logger:      logger,
		amountCents: cfg.HoldAmountCents,
		currency:    currency,
		enabled:     key != "" && cfg.HoldAmountCents > 0,
	}
}

// Place creates a manual-capture PaymentIntent tied to the reservation.
// Returns the intent id, or empty when holds are disabled.
func (h *Holds) Place(_ context.Context, reservationID, guestEmail string) (string, error) {
	if !h.enabled {
		return "", nil
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(h.amountCents),
		Currency:      stripe.String(h.currency),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata("reservation_id", reservationID)
	if email := strings.TrimSpace(guestEmail); email != "" {
		params.ReceiptEmail = stripe.String(email)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return "", err
	}
	h.logger.Info("placed reservation hold", "reservation_id", reservationID, "payment_intent", pi.ID)
	return pi.ID, nil
}
