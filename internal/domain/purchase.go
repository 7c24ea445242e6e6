package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Purchase bundles one or more lots for a client under a contractual total.
// TotalAmount zero means "unset"; the lot prices stand in for it.
type Purchase struct {
	ID          uint            `gorm:"column:id;primaryKey" json:"id"`
	ClientID    uint            `gorm:"column:client_id;not null;index" json:"client_id"`
	Client      *User           `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	TotalAmount decimal.Decimal `gorm:"column:total_amount;type:decimal(12,2);not null;default:0" json:"total_amount"`
	Lots        []Lot           `gorm:"many2many:purchase_lots;" json:"lots"`
	Payments    []Payment       `gorm:"foreignKey:PurchaseID" json:"payments,omitempty"`
	CreatedAt   time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (Purchase) TableName() string {
	return "purchases"
}

// SumLotPrices adds up the list prices of the loaded lots.
func (p *Purchase) SumLotPrices() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range p.Lots {
		sum = sum.Add(l.Price)
	}
	return sum
}

// EffectiveTotal is TotalAmount when set, otherwise the sum of lot prices.
// Lots must be loaded.
func (p *Purchase) EffectiveTotal() decimal.Decimal {
	if !p.TotalAmount.IsZero() {
		return p.TotalAmount
	}
	return p.SumLotPrices()
}

// LotIDs returns the ids of the loaded lots.
func (p *Purchase) LotIDs() []uint {
	ids := make([]uint, len(p.Lots))
	for i, l := range p.Lots {
		ids[i] = l.ID
	}
	return ids
}

// PurchaseLot is the join row between purchases and lots.
type PurchaseLot struct {
	PurchaseID uint `gorm:"column:purchase_id;primaryKey"`
	LotID      uint `gorm:"column:lot_id;primaryKey;index"`
}

func (PurchaseLot) TableName() string {
	return "purchase_lots"
}
