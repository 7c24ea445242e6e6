// Package purchases manages purchases and the lots attached to them.
package purchases

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"siglo-backend/internal/application/allocation"
	"siglo-backend/internal/application/purchaseevents"
	"siglo-backend/internal/domain"
	"siglo-backend/internal/infrastructure/database"
	"siglo-backend/internal/infrastructure/lock"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// maxTotal is the largest value a decimal(12,2) column holds.
var maxTotal = decimal.RequireFromString("9999999999.99")

// checkTotal accepts zero (unset) or a non-negative amount with at most two
// decimals that fits the total_amount column.
func checkTotal(t decimal.Decimal) error {
	if t.IsNegative() || !t.Equal(t.Round(2)) || t.GreaterThan(maxTotal) {
		return ErrInvalidTotal
	}
	return nil
}

type Service struct {
	DB         *gorm.DB
	Reconciler *allocation.Reconciler
	Locker     lock.Locker
}

// PurchaseInput is the administrator's view of a purchase. A zero
// TotalAmount means "use the sum of lot prices".
type PurchaseInput struct {
	ClientID    uint
	TotalAmount decimal.Decimal
	LotIDs      []uint
}

func (s *Service) locker() lock.Locker {
	if s.Locker == nil {
		return lock.Noop{}
	}
	return s.Locker
}

// Buy creates a single-lot purchase for clientID at the lot's list price and
// reserves the lot.
func (s *Service) Buy(ctx context.Context, clientID, lotID uint) (*domain.Purchase, error) {
	var purchase domain.Purchase
	err := s.locker().WithLock(ctx, lock.LotKey(lotID), func(ctx context.Context) error {
		return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var lot domain.Lot
			if err := database.ForUpdate(tx).First(&lot, lotID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrLotNotFound
				}
				return err
			}
			if lot.Status != domain.LotAvailable {
				return ErrLotNotAvailable
			}
			if err := ensureUnattached(tx, []uint{lot.ID}, 0); err != nil {
				return err
			}

			purchase = domain.Purchase{ClientID: clientID, TotalAmount: lot.Price}
			if err := tx.Create(&purchase).Error; err != nil {
				return fmt.Errorf("create purchase: %w", err)
			}
			if err := tx.Create(&domain.PurchaseLot{PurchaseID: purchase.ID, LotID: lot.ID}).Error; err != nil {
				return err
			}
			if err := tx.Model(&domain.Lot{}).Where("id = ?", lot.ID).Update("status", domain.LotReserved).Error; err != nil {
				return err
			}
			lot.Status = domain.LotReserved
			purchase.Lots = []domain.Lot{lot}
			return purchaseevents.Record(tx, purchase.ID, domain.EventPurchaseCreated, clientID, map[string]interface{}{
				"source":       "buy",
				"lot_codes":    []string{lot.Code},
				"total_amount": purchase.TotalAmount.StringFixed(2),
			})
		})
	})
	if err != nil {
		return nil, err
	}
	log.Info().Uint("purchase_id", purchase.ID).Uint("lot_id", lotID).Uint("client_id", clientID).Msg("lot bought")
	return &purchase, nil
}

// Create bundles lots into a new purchase and reconciles it.
func (s *Service) Create(ctx context.Context, actorID uint, in PurchaseInput) (*domain.Purchase, error) {
	if err := checkTotal(in.TotalAmount); err != nil {
		return nil, err
	}
	ids := uniqueIDs(in.LotIDs)
	var purchaseID uint
	err := s.withLotLocks(ctx, ids, func(ctx context.Context) error {
		return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := ensureClient(tx, in.ClientID); err != nil {
				return err
			}
			lots, err := loadLots(tx, ids)
			if err != nil {
				return err
			}
			if err := ensureUnattached(tx, ids, 0); err != nil {
				return err
			}

			purchase := domain.Purchase{ClientID: in.ClientID, TotalAmount: in.TotalAmount}
			if err := tx.Create(&purchase).Error; err != nil {
				return fmt.Errorf("create purchase: %w", err)
			}
			purchaseID = purchase.ID
			for _, id := range ids {
				if err := tx.Create(&domain.PurchaseLot{PurchaseID: purchase.ID, LotID: id}).Error; err != nil {
					return err
				}
			}
			if err := purchaseevents.Record(tx, purchase.ID, domain.EventPurchaseCreated, actorID, map[string]interface{}{
				"source":       "admin",
				"lot_codes":    codes(lots),
				"total_amount": in.TotalAmount.StringFixed(2),
			}); err != nil {
				return err
			}
			_, err = s.Reconciler.Reconcile(ctx, tx, purchase.ID)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, purchaseID)
}

// Update replaces a purchase's client, total and lot set. Lots leaving the
// set become AVAILABLE; the remaining set is reconciled.
func (s *Service) Update(ctx context.Context, actorID, purchaseID uint, in PurchaseInput) (*domain.Purchase, error) {
	if err := checkTotal(in.TotalAmount); err != nil {
		return nil, err
	}
	ids := uniqueIDs(in.LotIDs)
	err := s.locker().WithLock(ctx, lock.PurchaseKey(purchaseID), func(ctx context.Context) error {
		return s.withLotLocks(ctx, ids, func(ctx context.Context) error {
			return s.updateLocked(ctx, actorID, purchaseID, ids, in)
		})
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, purchaseID)
}

func (s *Service) updateLocked(ctx context.Context, actorID, purchaseID uint, ids []uint, in PurchaseInput) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var purchase domain.Purchase
		if err := database.ForUpdate(tx).First(&purchase, purchaseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPurchaseNotFound
			}
			return err
		}
		if err := tx.Model(&purchase).Association("Lots").Find(&purchase.Lots); err != nil {
			return err
		}
		if in.ClientID == 0 {
			in.ClientID = purchase.ClientID
		}
		if err := ensureClient(tx, in.ClientID); err != nil {
			return err
		}
		next, err := loadLots(tx, ids)
		if err != nil {
			return err
		}
		if err := ensureUnattached(tx, ids, purchaseID); err != nil {
			return err
		}

		keep := map[uint]bool{}
		for _, id := range ids {
			keep[id] = true
		}
		current := map[uint]bool{}
		var removed []domain.Lot
		for _, l := range purchase.Lots {
			current[l.ID] = true
			if !keep[l.ID] {
				removed = append(removed, l)
			}
		}
		var added []uint
		for _, id := range ids {
			if !current[id] {
				added = append(added, id)
			}
		}

		for _, l := range removed {
			if err := tx.Where("purchase_id = ? AND lot_id = ?", purchaseID, l.ID).Delete(&domain.PurchaseLot{}).Error; err != nil {
				return err
			}
			if err := tx.Model(&domain.Lot{}).Where("id = ?", l.ID).Update("status", domain.LotAvailable).Error; err != nil {
				return err
			}
			if err := purchaseevents.Record(tx, purchaseID, domain.EventLotDetached, actorID, map[string]interface{}{
				"lot_id":   l.ID,
				"lot_code": l.Code,
				"previous": l.Status,
			}); err != nil {
				return err
			}
		}
		for _, id := range added {
			if err := tx.Create(&domain.PurchaseLot{PurchaseID: purchaseID, LotID: id}).Error; err != nil {
				return err
			}
		}
		if len(removed) > 0 || len(added) > 0 {
			if err := purchaseevents.Record(tx, purchaseID, domain.EventLotsChanged, actorID, map[string]interface{}{
				"lot_codes": codes(next),
			}); err != nil {
				return err
			}
		}

		if err := tx.Model(&domain.Purchase{}).Where("id = ?", purchaseID).Updates(map[string]interface{}{
			"client_id":    in.ClientID,
			"total_amount": in.TotalAmount,
		}).Error; err != nil {
			return err
		}
		_, err = s.Reconciler.Reconcile(ctx, tx, purchaseID)
		return err
	})
}

// Get loads a purchase with its client, lots and payments.
func (s *Service) Get(ctx context.Context, id uint) (*domain.Purchase, error) {
	var p domain.Purchase
	err := s.DB.WithContext(ctx).
		Preload("Client").
		Preload("Lots", func(db *gorm.DB) *gorm.DB { return db.Order("lots.code ASC") }).
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("payment_date DESC, id DESC") }).
		First(&p, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPurchaseNotFound
		}
		return nil, err
	}
	return &p, nil
}

// ListForClient returns a client's purchases, newest first.
func (s *Service) ListForClient(ctx context.Context, clientID uint) ([]domain.Purchase, error) {
	var out []domain.Purchase
	if err := s.DB.WithContext(ctx).Preload("Lots").Preload("Payments").
		Where("client_id = ?", clientID).Order("created_at DESC, id DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListAll returns every purchase, newest first.
func (s *Service) ListAll(ctx context.Context) ([]domain.Purchase, error) {
	var out []domain.Purchase
	if err := s.DB.WithContext(ctx).Preload("Client").Preload("Lots").Preload("Payments").
		Order("created_at DESC, id DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func ensureClient(tx *gorm.DB, clientID uint) error {
	var n int64
	if err := tx.Model(&domain.User{}).Where("id = ?", clientID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrClientNotFound
	}
	return nil
}

// withLotLocks runs fn holding the lock of every lot in ids. ids must be
// sorted so that concurrent callers acquire them in the same order.
func (s *Service) withLotLocks(ctx context.Context, ids []uint, fn func(context.Context) error) error {
	if len(ids) == 0 {
		return fn(ctx)
	}
	return s.locker().WithLock(ctx, lock.LotKey(ids[0]), func(ctx context.Context) error {
		return s.withLotLocks(ctx, ids[1:], fn)
	})
}

// loadLots locks the rows of ids (in id order) and returns them sorted by code.
// A concurrent Buy of any of them waits for this transaction, and the
// attachment check that follows sees whatever it committed.
func loadLots(tx *gorm.DB, ids []uint) ([]domain.Lot, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var lots []domain.Lot
	if err := database.ForUpdate(tx).Where("id IN ?", ids).Order("id ASC").Find(&lots).Error; err != nil {
		return nil, err
	}
	if len(lots) != len(ids) {
		return nil, ErrLotNotFound
	}
	sort.Slice(lots, func(i, j int) bool { return lots[i].Code < lots[j].Code })
	return lots, nil
}

// ensureUnattached fails when any lot already belongs to a purchase other
// than except.
func ensureUnattached(tx *gorm.DB, ids []uint, except uint) error {
	if len(ids) == 0 {
		return nil
	}
	var n int64
	if err := tx.Model(&domain.PurchaseLot{}).Where("lot_id IN ? AND purchase_id <> ?", ids, except).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return ErrLotNotAvailable
	}
	return nil
}

func uniqueIDs(ids []uint) []uint {
	seen := map[uint]bool{}
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id != 0 && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func codes(lots []domain.Lot) []string {
	out := make([]string, len(lots))
	for i, l := range lots {
		out[i] = l.Code
	}
	return out
}
