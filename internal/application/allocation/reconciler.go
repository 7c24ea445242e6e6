package allocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"siglo-backend/internal/application/allocation/metrics"
	"siglo-backend/internal/application/purchaseevents"
	"siglo-backend/internal/domain"
	"siglo-backend/internal/infrastructure/database"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var ErrPurchaseNotFound = errors.New("Purchase not found")

// Reconciler loads a purchase, runs ComputeStatuses and writes the result.
type Reconciler struct {
	Policy  Policy
	Metrics *metrics.Metrics
}

// Reconcile recomputes the status of every lot in purchaseID. It must run on
// the transaction of the mutation that triggered it. Lots outside the purchase
// are never touched.
func (r *Reconciler) Reconcile(ctx context.Context, tx *gorm.DB, purchaseID uint) (Allocation, error) {
	start := time.Now()
	defer func() { r.Metrics.ObserveReconcileLatency(time.Since(start)) }()

	tx = tx.WithContext(ctx)
	var purchase domain.Purchase
	if err := tx.Preload("Lots").First(&purchase, purchaseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Allocation{}, ErrPurchaseNotFound
		}
		return Allocation{}, err
	}
	var payments []domain.Payment
	if err := tx.Where("purchase_id = ?", purchaseID).Find(&payments).Error; err != nil {
		return Allocation{}, err
	}

	alloc := ComputeStatuses(SharesOf(purchase.Lots), r.Policy.Applicable(payments), purchase.TotalAmount)
	r.Metrics.IncrementOutcome(string(alloc.Outcome))
	if alloc.Outcome == OutcomeEmpty {
		return alloc, nil
	}

	changed, err := r.persist(tx, purchase.Lots, alloc.Statuses)
	if err != nil {
		return Allocation{}, err
	}
	if len(changed) > 0 {
		if err := purchaseevents.Record(tx, purchaseID, domain.EventReconciled, 0, map[string]interface{}{
			"outcome":       alloc.Outcome,
			"total_paid":    alloc.TotalPaid.StringFixed(2),
			"total_targets": alloc.TotalTargets.StringFixed(2),
			"changes":       changed,
		}); err != nil {
			return Allocation{}, err
		}
	}

	log.Info().Uint("purchase_id", purchaseID).Str("outcome", string(alloc.Outcome)).
		Str("total_paid", alloc.TotalPaid.String()).Int("changed", len(changed)).
		Msg("purchase reconciled")
	return alloc, nil
}

// persist writes statuses grouped by value and returns the lots whose status changed.
func (r *Reconciler) persist(tx *gorm.DB, lots []domain.Lot, statuses map[uint]domain.LotStatus) (map[string]string, error) {
	byStatus := map[domain.LotStatus][]uint{}
	changed := map[string]string{}
	for _, l := range lots {
		next := statuses[l.ID]
		byStatus[next] = append(byStatus[next], l.ID)
		if l.Status != next {
			changed[l.Code] = string(next)
			r.Metrics.IncrementTransition(string(l.Status), string(next))
		}
	}
	for status, ids := range byStatus {
		if err := tx.Model(&domain.Lot{}).Where("id IN ?", ids).Update("status", status).Error; err != nil {
			return nil, fmt.Errorf("update lot status: %w", err)
		}
	}
	return changed, nil
}

// SyncResult summarises a ReconcileAll run.
type SyncResult struct {
	Purchases int                      `json:"purchases"`
	Lots      int                      `json:"lots"`
	Statuses  map[domain.LotStatus]int `json:"statuses"`
}

// ReconcileAll rebuilds every lot status from scratch in one transaction.
// A lot referenced by several purchases keeps its strongest status; a lot
// referenced by none becomes AVAILABLE.
//
// Purchase rows are locked before lot rows, the same order payment and
// purchase edits use, and the data is read only once both are held, so no
// concurrent mutation can commit between the read and the write.
func (r *Reconciler) ReconcileAll(ctx context.Context, db *gorm.DB) (SyncResult, error) {
	result := SyncResult{Statuses: map[domain.LotStatus]int{}}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []uint
		if err := database.ForUpdate(tx).Model(&domain.Purchase{}).Order("id ASC").Pluck("id", &ids).Error; err != nil {
			return fmt.Errorf("lock purchases: %w", err)
		}
		var lots []domain.Lot
		if err := database.ForUpdate(tx).Order("id ASC").Find(&lots).Error; err != nil {
			return fmt.Errorf("lock lots: %w", err)
		}

		var purchases []domain.Purchase
		if err := tx.Preload("Lots").Preload("Payments").Order("id ASC").Find(&purchases).Error; err != nil {
			return err
		}
		final := map[uint]domain.LotStatus{}
		for _, p := range purchases {
			alloc := ComputeStatuses(SharesOf(p.Lots), r.Policy.Applicable(p.Payments), p.TotalAmount)
			r.Metrics.IncrementOutcome(string(alloc.Outcome))
			for id, status := range alloc.Statuses {
				if prev, ok := final[id]; !ok || status.Rank() > prev.Rank() {
					final[id] = status
				}
			}
		}
		result.Purchases = len(purchases)

		for _, l := range lots {
			if _, ok := final[l.ID]; !ok {
				final[l.ID] = domain.LotAvailable
			}
		}
		if _, err := r.persist(tx, lots, final); err != nil {
			return err
		}
		result.Lots = len(lots)
		for _, s := range final {
			result.Statuses[s]++
		}
		return nil
	})
	if err != nil {
		return SyncResult{}, err
	}
	log.Info().Int("purchases", result.Purchases).Int("lots", result.Lots).Msg("lot statuses synchronised")
	return result, nil
}
