package purchaseevents

import (
	"context"
	"encoding/json"

	"siglo-backend/internal/domain"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	DB *gorm.DB
}

// Record appends an event for purchaseID using tx, so it commits or rolls back
// with the mutation it describes. actorID 0 means a system action.
func Record(tx *gorm.DB, purchaseID uint, eventType string, actorID uint, data map[string]interface{}) error {
	if data == nil {
		data = map[string]interface{}{}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	ev := domain.PurchaseEvent{
		PurchaseID: purchaseID,
		EventType:  eventType,
		EventData:  datatypes.JSON(b),
	}
	if actorID != 0 {
		ev.ActorUserID = &actorID
	}
	return tx.Create(&ev).Error
}

// List returns a purchase's history, oldest first.
func (s *Service) List(ctx context.Context, purchaseID uint) ([]domain.PurchaseEvent, error) {
	var events []domain.PurchaseEvent
	if err := s.DB.WithContext(ctx).
		Where("purchase_id = ?", purchaseID).
		Order("created_at ASC, id ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
