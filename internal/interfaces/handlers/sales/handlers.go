package sales

import (
	"encoding/json"
	"strconv"

	"siglo-backend/internal/application/ledger"
	"siglo-backend/internal/application/policy"
	"siglo-backend/internal/application/purchaseevents"
	"siglo-backend/internal/application/purchases"
	"siglo-backend/internal/constants"
	"siglo-backend/internal/domain"
	"siglo-backend/internal/infrastructure/lock"
	"siglo-backend/internal/middleware"
	"siglo-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

var saleErrors = response.StatusTable{
	purchases.ErrLotNotFound:       fiber.StatusNotFound,
	purchases.ErrLotNotAvailable:   fiber.StatusConflict,
	purchases.ErrPurchaseNotFound:  fiber.StatusNotFound,
	ledger.ErrInvalidAmount:        fiber.StatusBadRequest,
	ledger.ErrAmountExceedsBalance: fiber.StatusConflict,
	policy.ErrUnauthenticated:      fiber.StatusUnauthorized,
	policy.ErrForbidden:            fiber.StatusForbidden,
	lock.ErrLockBusy:               fiber.StatusConflict,
}

// Handlers serves the client-facing sales endpoints.
type Handlers struct {
	Purchases *purchases.Service
	Ledger    *ledger.Service
	EventLog  *purchaseevents.Service
}

// PurchaseDetail is a purchase with its balance.
type PurchaseDetail struct {
	*domain.Purchase
	Balance ledger.BalanceSummary `json:"balance"`
}

// PaymentRequest accepts amount as a JSON number or a numeric string ("1500.50").
type PaymentRequest struct {
	Amount json.Number `json:"amount"`
}

func idParam(c *fiber.Ctx, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// ownedPurchase loads a purchase and checks the caller may act on it.
func (h *Handlers) ownedPurchase(c *fiber.Ctx, action string) (*domain.Purchase, *policy.Actor, error) {
	id, ok := idParam(c, "id")
	if !ok {
		return nil, nil, fiber.NewError(fiber.StatusBadRequest, "Invalid purchase id")
	}
	actor := middleware.GetActor(c)
	p, err := h.Purchases.Get(c.UserContext(), id)
	if err != nil {
		return nil, nil, err
	}
	if err := policy.Authorize(actor, action, &policy.Resource{OwnerID: p.ClientID}); err != nil {
		return nil, nil, err
	}
	return p, actor, nil
}

// Buy POST /api/v1/sales/buy/:lot_id
func (h *Handlers) Buy(c *fiber.Ctx) error {
	lotID, ok := idParam(c, "lot_id")
	if !ok {
		return response.Error(c, "Invalid lot id", fiber.StatusBadRequest, nil)
	}
	actor := middleware.GetActor(c)
	if actor == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	p, err := h.Purchases.Buy(c.UserContext(), actor.UserID, lotID)
	if err != nil {
		return response.FromError(c, err, saleErrors)
	}
	return response.SuccessCreated(c, "Lot reserved", p, nil)
}

// MyPurchases GET /api/v1/sales/my-purchases
func (h *Handlers) MyPurchases(c *fiber.Ctx) error {
	actor := middleware.GetActor(c)
	if actor == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	list, err := h.Purchases.ListForClient(c.UserContext(), actor.UserID)
	if err != nil {
		return response.FromError(c, err, saleErrors)
	}
	out := make([]PurchaseDetail, 0, len(list))
	for i := range list {
		out = append(out, PurchaseDetail{Purchase: &list[i], Balance: h.Ledger.Summarize(&list[i])})
	}
	return response.Success(c, "Purchases retrieved", out, fiber.Map{"count": len(out)})
}

// Detail GET /api/v1/sales/purchases/:id
func (h *Handlers) Detail(c *fiber.Ctx) error {
	p, _, err := h.ownedPurchase(c, constants.ViewPurchase)
	if err != nil {
		return response.FromError(c, err, saleErrors)
	}
	return response.Success(c, "Purchase retrieved", PurchaseDetail{Purchase: p, Balance: h.Ledger.Summarize(p)}, nil)
}

// Events GET /api/v1/sales/purchases/:id/events
func (h *Handlers) Events(c *fiber.Ctx) error {
	p, _, err := h.ownedPurchase(c, constants.ViewPurchase)
	if err != nil {
		return response.FromError(c, err, saleErrors)
	}
	events, err := h.EventLog.List(c.UserContext(), p.ID)
	if err != nil {
		return response.FromError(c, err, saleErrors)
	}
	return response.Success(c, "Purchase events retrieved", events, nil)
}

// RecordPayment POST /api/v1/sales/purchases/:id/payments. Client payments
// always start unvalidated.
func (h *Handlers) RecordPayment(c *fiber.Ctx) error {
	var body PaymentRequest
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	amount, err := ledger.ParseAmount(body.Amount.String())
	if err != nil {
		return response.FromError(c, err, saleErrors)
	}
	p, actor, err := h.ownedPurchase(c, constants.RecordPayment)
	if err != nil {
		return response.FromError(c, err, saleErrors)
	}
	payment, err := h.Ledger.RecordPayment(c.UserContext(), actor.UserID, ledger.PaymentInput{
		PurchaseID: p.ID,
		Amount:     amount,
	})
	if err != nil {
		return response.FromError(c, err, saleErrors)
	}
	balance, err := h.Ledger.Balance(c.UserContext(), p.ID)
	if err != nil {
		return response.FromError(c, err, saleErrors)
	}
	return response.SuccessCreated(c, "Payment recorded", fiber.Map{
		"payment": payment,
		"balance": balance,
	}, nil)
}
