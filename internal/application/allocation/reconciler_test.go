package allocation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"siglo-backend/internal/application/allocation/metrics"
	"siglo-backend/internal/domain"
	"siglo-backend/internal/infrastructure/database"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupReconcilerTest(t *testing.T) (*Reconciler, *gorm.DB) {
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	r := &Reconciler{Metrics: metrics.New(prometheus.NewRegistry())}
	return r, db
}

func seedLots(t *testing.T, db *gorm.DB, prices ...int64) []domain.Lot {
	stage := domain.Stage{Name: "Launch"}
	require.NoError(t, db.Create(&stage).Error)
	lots := make([]domain.Lot, len(prices))
	for i, p := range prices {
		lots[i] = domain.Lot{
			Code:    fmt.Sprintf("L-%02d", i+1),
			AreaM2:  decimal.NewFromInt(200),
			Price:   decimal.NewFromInt(p),
			StageID: stage.ID,
		}
		require.NoError(t, db.Create(&lots[i]).Error)
	}
	return lots
}

var clientSeq int

func seedPurchase(t *testing.T, db *gorm.DB, total int64, lots ...domain.Lot) domain.Purchase {
	clientSeq++
	client := domain.User{Email: fmt.Sprintf("client%d@test.com", clientSeq), FullName: "Client", PasswordHash: "x"}
	require.NoError(t, db.Create(&client).Error)
	p := domain.Purchase{ClientID: client.ID, TotalAmount: decimal.NewFromInt(total)}
	require.NoError(t, db.Create(&p).Error)
	for _, l := range lots {
		require.NoError(t, db.Create(&domain.PurchaseLot{PurchaseID: p.ID, LotID: l.ID}).Error)
	}
	return p
}

func seedPayment(t *testing.T, db *gorm.DB, purchaseID uint, amount int64, validated bool) {
	require.NoError(t, db.Create(&domain.Payment{
		PurchaseID:  purchaseID,
		Amount:      decimal.NewFromInt(amount),
		PaymentDate: time.Now(),
		IsValidated: validated,
	}).Error)
}

func statusOf(t *testing.T, db *gorm.DB, id uint) domain.LotStatus {
	var l domain.Lot
	require.NoError(t, db.First(&l, id).Error)
	return l.Status
}

func TestReconcile_PartialPaymentPersistsStatuses(t *testing.T) {
	r, db := setupReconcilerTest(t)
	lots := seedLots(t, db, 40000, 60000)
	p := seedPurchase(t, db, 100000, lots...)
	seedPayment(t, db, p.ID, 60000, true)

	alloc, err := r.Reconcile(context.Background(), db, p.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomePartial, alloc.Outcome)
	assert.Equal(t, domain.LotReserved, statusOf(t, db, lots[0].ID))
	assert.Equal(t, domain.LotSold, statusOf(t, db, lots[1].ID))

	var events []domain.PurchaseEvent
	require.NoError(t, db.Where("purchase_id = ? AND event_type = ?", p.ID, domain.EventReconciled).Find(&events).Error)
	assert.Len(t, events, 1)
}

func TestReconcile_UnvalidatedPaymentsIgnoredByDefault(t *testing.T) {
	r, db := setupReconcilerTest(t)
	lots := seedLots(t, db, 100000)
	p := seedPurchase(t, db, 100000, lots...)
	seedPayment(t, db, p.ID, 100000, false)

	alloc, err := r.Reconcile(context.Background(), db, p.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnpaid, alloc.Outcome)
	assert.Equal(t, domain.LotAvailable, statusOf(t, db, lots[0].ID))

	r.Policy.CountUnvalidatedPayments = true
	alloc, err = r.Reconcile(context.Background(), db, p.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSettled, alloc.Outcome)
	assert.Equal(t, domain.LotSold, statusOf(t, db, lots[0].ID))
}

func TestReconcile_IsIdempotent(t *testing.T) {
	r, db := setupReconcilerTest(t)
	lots := seedLots(t, db, 50000, 50000)
	p := seedPurchase(t, db, 0, lots...)
	seedPayment(t, db, p.ID, 50000, true)

	_, err := r.Reconcile(context.Background(), db, p.ID)
	require.NoError(t, err)
	first := []domain.LotStatus{statusOf(t, db, lots[0].ID), statusOf(t, db, lots[1].ID)}

	_, err = r.Reconcile(context.Background(), db, p.ID)
	require.NoError(t, err)
	second := []domain.LotStatus{statusOf(t, db, lots[0].ID), statusOf(t, db, lots[1].ID)}

	assert.Equal(t, first, second)
	assert.Equal(t, []domain.LotStatus{domain.LotSold, domain.LotReserved}, second)

	var count int64
	db.Model(&domain.PurchaseEvent{}).Where("event_type = ?", domain.EventReconciled).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestReconcile_LeavesOtherPurchasesAlone(t *testing.T) {
	r, db := setupReconcilerTest(t)
	lots := seedLots(t, db, 10000, 20000)
	p := seedPurchase(t, db, 10000, lots[0])
	require.NoError(t, db.Model(&domain.Lot{}).Where("id = ?", lots[1].ID).Update("status", domain.LotReserved).Error)
	seedPayment(t, db, p.ID, 10000, true)

	_, err := r.Reconcile(context.Background(), db, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LotSold, statusOf(t, db, lots[0].ID))
	assert.Equal(t, domain.LotReserved, statusOf(t, db, lots[1].ID))
}

func TestReconcile_EmptyPurchaseIsNoop(t *testing.T) {
	r, db := setupReconcilerTest(t)
	p := seedPurchase(t, db, 1000)
	seedPayment(t, db, p.ID, 500, true)

	alloc, err := r.Reconcile(context.Background(), db, p.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeEmpty, alloc.Outcome)
}

func TestReconcile_UnknownPurchase(t *testing.T) {
	r, db := setupReconcilerTest(t)
	_, err := r.Reconcile(context.Background(), db, 999)
	assert.ErrorIs(t, err, ErrPurchaseNotFound)
}

func TestReconcile_RecordsMetrics(t *testing.T) {
	r, db := setupReconcilerTest(t)
	lots := seedLots(t, db, 100000)
	p := seedPurchase(t, db, 100000, lots...)
	seedPayment(t, db, p.ID, 100000, true)

	_, err := r.Reconcile(context.Background(), db, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Metrics.ReconcileOutcome.WithLabelValues("settled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Metrics.LotTransitions.WithLabelValues("AVAILABLE", "SOLD")))
}

func TestReconcileAll_SoldWinsAndOrphansRelease(t *testing.T) {
	r, db := setupReconcilerTest(t)
	lots := seedLots(t, db, 10000, 20000, 30000)

	paid := seedPurchase(t, db, 10000, lots[0])
	seedPayment(t, db, paid.ID, 10000, true)
	seedPurchase(t, db, 10000, lots[0])

	owed := seedPurchase(t, db, 20000, lots[1])
	seedPayment(t, db, owed.ID, 5000, true)

	require.NoError(t, db.Model(&domain.Lot{}).Where("id = ?", lots[2].ID).Update("status", domain.LotSold).Error)

	res, err := r.ReconcileAll(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Purchases)
	assert.Equal(t, 3, res.Lots)
	assert.Equal(t, domain.LotSold, statusOf(t, db, lots[0].ID))
	assert.Equal(t, domain.LotReserved, statusOf(t, db, lots[1].ID))
	assert.Equal(t, domain.LotAvailable, statusOf(t, db, lots[2].ID))
	assert.Equal(t, 1, res.Statuses[domain.LotSold])
	assert.Equal(t, 1, res.Statuses[domain.LotReserved])
	assert.Equal(t, 1, res.Statuses[domain.LotAvailable])
}

func TestReconcileAll_LocksPurchasesThenLotsBeforeReading(t *testing.T) {
	r, db := setupReconcilerTest(t)
	lots := seedLots(t, db, 10000)
	p := seedPurchase(t, db, 10000, lots[0])
	seedPayment(t, db, p.ID, 10000, true)

	var tables []string
	require.NoError(t, db.Callback().Query().After("gorm:query").Register("test:trace_tables", func(d *gorm.DB) {
		tables = append(tables, d.Statement.Table)
	}))
	t.Cleanup(func() { _ = db.Callback().Query().Remove("test:trace_tables") })

	_, err := r.ReconcileAll(context.Background(), db)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(tables), 3)
	assert.Equal(t, []string{"purchases", "lots", "purchases"}, tables[:3])
	assert.Equal(t, domain.LotSold, statusOf(t, db, lots[0].ID))
}
