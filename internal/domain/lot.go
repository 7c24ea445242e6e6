package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LotStatus is the commercial status of a lot. Only reconciliation, Buy and
// lot detachment write it.
type LotStatus string

const (
	LotAvailable LotStatus = "AVAILABLE"
	LotReserved  LotStatus = "RESERVED"
	LotSold      LotStatus = "SOLD"
)

// Valid reports whether s is one of the known statuses.
func (s LotStatus) Valid() bool {
	switch s {
	case LotAvailable, LotReserved, LotSold:
		return true
	}
	return false
}

// Rank orders statuses by strength: SOLD > RESERVED > AVAILABLE.
func (s LotStatus) Rank() int {
	switch s {
	case LotSold:
		return 2
	case LotReserved:
		return 1
	}
	return 0
}

// Stage is a sales stage (launch, pre-sale, ...).
type Stage struct {
	ID          uint      `gorm:"column:id;primaryKey" json:"id"`
	Name        string    `gorm:"column:name;type:varchar(50);not null" json:"name"`
	Description string    `gorm:"column:description;type:text" json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (Stage) TableName() string {
	return "stages"
}

type Lot struct {
	ID        uint            `gorm:"column:id;primaryKey" json:"id"`
	Code      string          `gorm:"column:code;type:varchar(20);not null;uniqueIndex" json:"code"`
	AreaM2    decimal.Decimal `gorm:"column:area_m2;type:decimal(8,2);not null" json:"area_m2"`
	Price     decimal.Decimal `gorm:"column:price;type:decimal(12,2);not null" json:"price"`
	Latitude  float64         `gorm:"column:latitude;not null" json:"latitude"`
	Longitude float64         `gorm:"column:longitude;not null" json:"longitude"`
	StageID   uint            `gorm:"column:stage_id;not null;index" json:"stage_id"`
	Stage     *Stage          `gorm:"foreignKey:StageID" json:"stage,omitempty"`
	Status    LotStatus       `gorm:"column:status;type:varchar(10);not null;default:AVAILABLE;index" json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func (Lot) TableName() string {
	return "lots"
}
