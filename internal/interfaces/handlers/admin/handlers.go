package admin

import (
	"encoding/json"
	"strconv"

	"siglo-backend/internal/application/allocation"
	"siglo-backend/internal/application/ledger"
	"siglo-backend/internal/application/purchases"
	"siglo-backend/internal/infrastructure/lock"
	"siglo-backend/internal/middleware"
	"siglo-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var adminErrors = response.StatusTable{
	purchases.ErrLotNotFound:       fiber.StatusNotFound,
	purchases.ErrLotNotAvailable:   fiber.StatusConflict,
	purchases.ErrClientNotFound:    fiber.StatusBadRequest,
	purchases.ErrInvalidTotal:      fiber.StatusBadRequest,
	purchases.ErrPurchaseNotFound:  fiber.StatusNotFound,
	ledger.ErrInvalidAmount:        fiber.StatusBadRequest,
	ledger.ErrAmountExceedsBalance: fiber.StatusConflict,
	ledger.ErrPaymentNotFound:      fiber.StatusNotFound,
	lock.ErrLockBusy:               fiber.StatusConflict,
}

// Handlers serves the back-office endpoints. Routes are mounted behind
// AuthorizePermission, so every caller here is an administrator.
type Handlers struct {
	DB         *gorm.DB
	Purchases  *purchases.Service
	Ledger     *ledger.Service
	Reconciler *allocation.Reconciler
}

// PurchaseRequest is the create/update body. total_amount 0 or absent means
// "sum of lot prices".
type PurchaseRequest struct {
	ClientID    uint        `json:"client_id"`
	TotalAmount json.Number `json:"total_amount"`
	LotIDs      []uint      `json:"lot_ids"`
}

func (r PurchaseRequest) input() (purchases.PurchaseInput, error) {
	in := purchases.PurchaseInput{ClientID: r.ClientID, LotIDs: r.LotIDs}
	if r.TotalAmount != "" {
		total, err := decimal.NewFromString(r.TotalAmount.String())
		if err != nil {
			return in, purchases.ErrInvalidTotal
		}
		in.TotalAmount = total
	}
	return in, nil
}

// AdminPaymentRequest records a payment on behalf of a client.
type AdminPaymentRequest struct {
	PurchaseID uint        `json:"purchase_id"`
	Amount     json.Number `json:"amount"`
	Validated  bool        `json:"validated"`
}

func idParam(c *fiber.Ctx) (uint, bool) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func actorID(c *fiber.Ctx) uint {
	if a := middleware.GetActor(c); a != nil {
		return a.UserID
	}
	return 0
}

// ListPurchases GET /api/v1/admin/purchases
func (h *Handlers) ListPurchases(c *fiber.Ctx) error {
	list, err := h.Purchases.ListAll(c.UserContext())
	if err != nil {
		return response.FromError(c, err, adminErrors)
	}
	out := make([]fiber.Map, 0, len(list))
	for i := range list {
		out = append(out, fiber.Map{"purchase": list[i], "balance": h.Ledger.Summarize(&list[i])})
	}
	return response.Success(c, "Purchases retrieved", out, fiber.Map{"count": len(out)})
}

// CreatePurchase POST /api/v1/admin/purchases
func (h *Handlers) CreatePurchase(c *fiber.Ctx) error {
	var body PurchaseRequest
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	if body.ClientID == 0 {
		return response.Error(c, "client_id is required", fiber.StatusBadRequest, nil)
	}
	in, err := body.input()
	if err != nil {
		return response.FromError(c, err, adminErrors)
	}
	p, err := h.Purchases.Create(c.UserContext(), actorID(c), in)
	if err != nil {
		return response.FromError(c, err, adminErrors)
	}
	return response.SuccessCreated(c, "Purchase created", p, nil)
}

// UpdatePurchase PUT /api/v1/admin/purchases/:id
func (h *Handlers) UpdatePurchase(c *fiber.Ctx) error {
	id, ok := idParam(c)
	if !ok {
		return response.Error(c, "Invalid purchase id", fiber.StatusBadRequest, nil)
	}
	var body PurchaseRequest
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	in, err := body.input()
	if err != nil {
		return response.FromError(c, err, adminErrors)
	}
	p, err := h.Purchases.Update(c.UserContext(), actorID(c), id, in)
	if err != nil {
		return response.FromError(c, err, adminErrors)
	}
	return response.Success(c, "Purchase updated", p, nil)
}

// ListPayments GET /api/v1/admin/payments?purchase_id=1&validated=false
func (h *Handlers) ListPayments(c *fiber.Ctx) error {
	var f ledger.PaymentFilter
	if raw := c.Query("purchase_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return response.Error(c, "Invalid purchase_id", fiber.StatusBadRequest, nil)
		}
		f.PurchaseID = uint(id)
	}
	if raw := c.Query("validated"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return response.Error(c, "Invalid validated flag", fiber.StatusBadRequest, nil)
		}
		f.Validated = &v
	}
	list, err := h.Ledger.ListPayments(c.UserContext(), f)
	if err != nil {
		return response.FromError(c, err, adminErrors)
	}
	return response.Success(c, "Payments retrieved", list, fiber.Map{"count": len(list)})
}

// CreatePayment POST /api/v1/admin/payments
func (h *Handlers) CreatePayment(c *fiber.Ctx) error {
	var body AdminPaymentRequest
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	if body.PurchaseID == 0 {
		return response.Error(c, "purchase_id is required", fiber.StatusBadRequest, nil)
	}
	amount, err := ledger.ParseAmount(body.Amount.String())
	if err != nil {
		return response.FromError(c, err, adminErrors)
	}
	payment, err := h.Ledger.RecordPayment(c.UserContext(), actorID(c), ledger.PaymentInput{
		PurchaseID: body.PurchaseID,
		Amount:     amount,
		Validated:  body.Validated,
	})
	if err != nil {
		return response.FromError(c, err, adminErrors)
	}
	return response.SuccessCreated(c, "Payment recorded", payment, nil)
}

// ValidatePayment PATCH /api/v1/admin/payments/:id/validate
func (h *Handlers) ValidatePayment(c *fiber.Ctx) error {
	id, ok := idParam(c)
	if !ok {
		return response.Error(c, "Invalid payment id", fiber.StatusBadRequest, nil)
	}
	payment, err := h.Ledger.ValidatePayment(c.UserContext(), actorID(c), id)
	if err != nil {
		return response.FromError(c, err, adminErrors)
	}
	return response.Success(c, "Payment validated", payment, nil)
}

// DeletePayment DELETE /api/v1/admin/payments/:id
func (h *Handlers) DeletePayment(c *fiber.Ctx) error {
	id, ok := idParam(c)
	if !ok {
		return response.Error(c, "Invalid payment id", fiber.StatusBadRequest, nil)
	}
	if err := h.Ledger.RemovePayment(c.UserContext(), actorID(c), id); err != nil {
		return response.FromError(c, err, adminErrors)
	}
	return response.Success(c, "Payment removed", nil, nil)
}

// SyncLots POST /api/v1/admin/lots/sync. Recompute every lot status.
func (h *Handlers) SyncLots(c *fiber.Ctx) error {
	result, err := h.Reconciler.ReconcileAll(c.UserContext(), h.DB)
	if err != nil {
		return response.FromError(c, err, adminErrors)
	}
	return response.Success(c, "Lot statuses synchronised", result, nil)
}
