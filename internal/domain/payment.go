package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment is one installment against a purchase. Rows are immutable except for
// IsValidated, which only ever moves from false to true.
type Payment struct {
	ID          uint            `gorm:"column:id;primaryKey" json:"id"`
	PurchaseID  uint            `gorm:"column:purchase_id;not null;index" json:"purchase_id"`
	Amount      decimal.Decimal `gorm:"column:amount;type:decimal(12,2);not null" json:"amount"`
	PaymentDate time.Time       `gorm:"column:payment_date;not null" json:"payment_date"`
	IsValidated bool            `gorm:"column:is_validated;not null;default:false" json:"is_validated"`
	CreatedAt   time.Time       `gorm:"column:created_at" json:"created_at"`
}

func (Payment) TableName() string {
	return "payments"
}
