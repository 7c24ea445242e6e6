package allocation

import (
	"siglo-backend/internal/domain"

	"github.com/shopspring/decimal"
)

// Policy decides which payments count towards settlement.
type Policy struct {
	// CountUnvalidatedPayments lets payments count before an administrator
	// validates them. Off by default.
	CountUnvalidatedPayments bool
}

// Counts reports whether p participates in reconciliation.
func (p Policy) Counts(payment domain.Payment) bool {
	return payment.IsValidated || p.CountUnvalidatedPayments
}

// Applicable returns the amounts of the payments that count under p.
func (p Policy) Applicable(payments []domain.Payment) []decimal.Decimal {
	amounts := make([]decimal.Decimal, 0, len(payments))
	for _, pay := range payments {
		if p.Counts(pay) {
			amounts = append(amounts, pay.Amount)
		}
	}
	return amounts
}
