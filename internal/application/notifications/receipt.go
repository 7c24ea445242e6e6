// Package notifications sends client-facing emails about payments.
package notifications

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentReceipt is everything the receipt email shows.
type PaymentReceipt struct {
	PurchaseID  uint
	PaymentID   uint
	ClientEmail string
	ClientName  string
	Amount      decimal.Decimal
	PaymentDate time.Time
	Outstanding decimal.Decimal
	LotCodes    []string
}

// Notifier delivers receipts. Nil = no-op.
type Notifier interface {
	SendPaymentReceipt(ctx context.Context, r PaymentReceipt) error
}
