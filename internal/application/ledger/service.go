// Package ledger records payments against purchases and keeps lot statuses
// reconciled with them.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"siglo-backend/internal/application/allocation"
	"siglo-backend/internal/application/allocation/metrics"
	"siglo-backend/internal/application/notifications"
	"siglo-backend/internal/application/purchaseevents"
	"siglo-backend/internal/domain"
	"siglo-backend/internal/infrastructure/database"
	"siglo-backend/internal/infrastructure/lock"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Service struct {
	DB         *gorm.DB
	Reconciler *allocation.Reconciler
	Locker     lock.Locker
	Receipts   *notifications.Dispatcher
	Metrics    *metrics.Metrics
	Now        func() time.Time
}

type PaymentInput struct {
	PurchaseID uint
	Amount     decimal.Decimal
	// Validated is only honoured for administrators; client payments always
	// start unvalidated.
	Validated bool
}

type PaymentFilter struct {
	PurchaseID uint
	Validated  *bool
}

// BalanceSummary reports what is owed on a purchase. Outstanding counts every
// recorded payment and bounds new payments; SettledBalance counts only the
// payments reconciliation uses.
type BalanceSummary struct {
	PurchaseID       uint            `json:"purchase_id"`
	ContractualTotal decimal.Decimal `json:"contractual_total"`
	TotalRecorded    decimal.Decimal `json:"total_recorded"`
	TotalValidated   decimal.Decimal `json:"total_validated"`
	Outstanding      decimal.Decimal `json:"outstanding"`
	SettledBalance   decimal.Decimal `json:"settled_balance"`
}

// ParseAmount parses a user-supplied amount. Anything that is not a positive
// number with at most two decimals is ErrInvalidAmount.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !amount.IsPositive() || !amount.Equal(amount.Round(2)) {
		return decimal.Zero, ErrInvalidAmount
	}
	return amount, nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) locker() lock.Locker {
	if s.Locker == nil {
		return lock.Noop{}
	}
	return s.Locker
}

// inPurchase runs fn under the purchase lock and inside a transaction whose
// first statement locks the purchase row.
func (s *Service) inPurchase(ctx context.Context, purchaseID uint, fn func(tx *gorm.DB) error) error {
	return s.locker().WithLock(ctx, lock.PurchaseKey(purchaseID), func(ctx context.Context) error {
		return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var row domain.Purchase
			if err := database.ForUpdate(tx).Select("id").First(&row, purchaseID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrPurchaseNotFound
				}
				return err
			}
			return fn(tx)
		})
	})
}

// RecordPayment appends a payment after checking it fits the outstanding
// balance, then reconciles the purchase in the same transaction. The receipt
// goes out after commit.
func (s *Service) RecordPayment(ctx context.Context, actorID uint, in PaymentInput) (*domain.Payment, error) {
	if !in.Amount.IsPositive() || !in.Amount.Equal(in.Amount.Round(2)) {
		s.Metrics.IncrementPayment("invalid_amount")
		return nil, ErrInvalidAmount
	}

	var payment domain.Payment
	var receipt notifications.PaymentReceipt
	err := s.inPurchase(ctx, in.PurchaseID, func(tx *gorm.DB) error {
		var purchase domain.Purchase
		if err := tx.Preload("Lots").Preload("Client").First(&purchase, in.PurchaseID).Error; err != nil {
			return err
		}
		var existing []domain.Payment
		if err := tx.Where("purchase_id = ?", in.PurchaseID).Find(&existing).Error; err != nil {
			return err
		}
		outstanding := purchase.EffectiveTotal().Sub(sumAmounts(existing))
		if in.Amount.GreaterThan(outstanding) {
			return fmt.Errorf("%w: outstanding %s", ErrAmountExceedsBalance, outstanding.StringFixed(2))
		}

		payment = domain.Payment{
			PurchaseID:  in.PurchaseID,
			Amount:      in.Amount,
			PaymentDate: s.now(),
			IsValidated: in.Validated,
		}
		if err := tx.Create(&payment).Error; err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		if err := purchaseevents.Record(tx, in.PurchaseID, domain.EventPaymentRecorded, actorID, map[string]interface{}{
			"payment_id": payment.ID,
			"amount":     payment.Amount.StringFixed(2),
			"validated":  payment.IsValidated,
		}); err != nil {
			return err
		}
		if _, err := s.Reconciler.Reconcile(ctx, tx, in.PurchaseID); err != nil {
			return err
		}

		receipt = notifications.PaymentReceipt{
			PurchaseID:  in.PurchaseID,
			PaymentID:   payment.ID,
			Amount:      payment.Amount,
			PaymentDate: payment.PaymentDate,
			Outstanding: outstanding.Sub(payment.Amount),
		}
		if purchase.Client != nil {
			receipt.ClientEmail = purchase.Client.Email
			receipt.ClientName = purchase.Client.FullName
		}
		for _, l := range purchase.Lots {
			receipt.LotCodes = append(receipt.LotCodes, l.Code)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAmountExceedsBalance) {
			s.Metrics.IncrementPayment("exceeds_balance")
		}
		return nil, err
	}

	s.Metrics.IncrementPayment("accepted")
	log.Info().Uint("purchase_id", in.PurchaseID).Uint("payment_id", payment.ID).
		Str("amount", payment.Amount.StringFixed(2)).Msg("payment recorded")
	s.Receipts.Dispatch(receipt)
	return &payment, nil
}

func (s *Service) findPayment(ctx context.Context, paymentID uint) (*domain.Payment, error) {
	var p domain.Payment
	if err := s.DB.WithContext(ctx).First(&p, paymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

// ValidatePayment marks a payment as confirmed. Validating twice is a no-op
// apart from reconciling again.
func (s *Service) ValidatePayment(ctx context.Context, actorID, paymentID uint) (*domain.Payment, error) {
	found, err := s.findPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	var payment domain.Payment
	err = s.inPurchase(ctx, found.PurchaseID, func(tx *gorm.DB) error {
		if err := tx.First(&payment, paymentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPaymentNotFound
			}
			return err
		}
		if !payment.IsValidated {
			if err := tx.Model(&payment).Update("is_validated", true).Error; err != nil {
				return err
			}
			payment.IsValidated = true
			if err := purchaseevents.Record(tx, payment.PurchaseID, domain.EventPaymentValidated, actorID, map[string]interface{}{
				"payment_id": payment.ID,
				"amount":     payment.Amount.StringFixed(2),
			}); err != nil {
				return err
			}
		}
		_, err := s.Reconciler.Reconcile(ctx, tx, payment.PurchaseID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// RemovePayment deletes a payment recorded by mistake and reconciles.
func (s *Service) RemovePayment(ctx context.Context, actorID, paymentID uint) error {
	found, err := s.findPayment(ctx, paymentID)
	if err != nil {
		return err
	}
	return s.inPurchase(ctx, found.PurchaseID, func(tx *gorm.DB) error {
		res := tx.Delete(&domain.Payment{}, paymentID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrPaymentNotFound
		}
		if err := purchaseevents.Record(tx, found.PurchaseID, domain.EventPaymentRemoved, actorID, map[string]interface{}{
			"payment_id": found.ID,
			"amount":     found.Amount.StringFixed(2),
			"validated":  found.IsValidated,
		}); err != nil {
			return err
		}
		_, err := s.Reconciler.Reconcile(ctx, tx, found.PurchaseID)
		return err
	})
}

// Balance summarises a purchase's payments.
func (s *Service) Balance(ctx context.Context, purchaseID uint) (*BalanceSummary, error) {
	var purchase domain.Purchase
	if err := s.DB.WithContext(ctx).Preload("Lots").Preload("Payments").First(&purchase, purchaseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPurchaseNotFound
		}
		return nil, err
	}
	summary := s.Summarize(&purchase)
	return &summary, nil
}

// Summarize computes the balance of a purchase with Lots and Payments loaded.
func (s *Service) Summarize(p *domain.Purchase) BalanceSummary {
	total := p.EffectiveTotal()
	recorded := sumAmounts(p.Payments)
	validated := decimal.Zero
	for _, pay := range p.Payments {
		if pay.IsValidated {
			validated = validated.Add(pay.Amount)
		}
	}
	var policy allocation.Policy
	if s.Reconciler != nil {
		policy = s.Reconciler.Policy
	}
	settled := decimal.Zero
	for _, a := range policy.Applicable(p.Payments) {
		settled = settled.Add(a)
	}
	return BalanceSummary{
		PurchaseID:       p.ID,
		ContractualTotal: total,
		TotalRecorded:    recorded,
		TotalValidated:   validated,
		Outstanding:      total.Sub(recorded),
		SettledBalance:   total.Sub(settled),
	}
}

// ListPayments returns payments newest first.
func (s *Service) ListPayments(ctx context.Context, f PaymentFilter) ([]domain.Payment, error) {
	q := s.DB.WithContext(ctx).Model(&domain.Payment{})
	if f.PurchaseID != 0 {
		q = q.Where("purchase_id = ?", f.PurchaseID)
	}
	if f.Validated != nil {
		q = q.Where("is_validated = ?", *f.Validated)
	}
	var payments []domain.Payment
	if err := q.Order("payment_date DESC, id DESC").Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

func sumAmounts(payments []domain.Payment) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range payments {
		sum = sum.Add(p.Amount)
	}
	return sum
}
