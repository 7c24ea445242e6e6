package domain

import (
	"time"

	"gorm.io/datatypes"
)

const (
	EventPurchaseCreated  = "CREATED"
	EventLotsChanged      = "LOTS_CHANGED"
	EventLotDetached      = "LOT_DETACHED"
	EventPaymentRecorded  = "PAYMENT_RECORDED"
	EventPaymentValidated = "PAYMENT_VALIDATED"
	EventPaymentRemoved   = "PAYMENT_REMOVED"
	EventReconciled       = "RECONCILED"
)

// PurchaseEvent is the append-only history of a purchase.
type PurchaseEvent struct {
	ID          uint           `gorm:"column:id;primaryKey" json:"id"`
	PurchaseID  uint           `gorm:"column:purchase_id;not null;index" json:"purchase_id"`
	EventType   string         `gorm:"column:event_type;type:varchar(20);not null" json:"event_type"`
	ActorUserID *uint          `gorm:"column:actor_user_id" json:"actor_user_id"`
	EventData   datatypes.JSON `gorm:"column:event_data;type:jsonb;not null" json:"event_data"`
	CreatedAt   time.Time      `gorm:"column:created_at" json:"created_at"`
}

func (PurchaseEvent) TableName() string {
	return "purchase_events"
}
