package lots

import (
	"strconv"

	lotsvc "siglo-backend/internal/application/lots"
	"siglo-backend/internal/domain"
	"siglo-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

var lotErrors = response.StatusTable{
	lotsvc.ErrLotNotFound:   fiber.StatusNotFound,
	lotsvc.ErrInvalidStatus: fiber.StatusBadRequest,
}

type Handlers struct {
	Service *lotsvc.Service
}

// List GET /api/v1/lots?status=AVAILABLE&stage_id=2
func (h *Handlers) List(c *fiber.Ctx) error {
	f := lotsvc.Filter{Status: domain.LotStatus(c.Query("status"))}
	if raw := c.Query("stage_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			return response.Error(c, "Invalid stage_id", fiber.StatusBadRequest, nil)
		}
		f.StageID = uint(id)
	}
	list, err := h.Service.List(c.UserContext(), f)
	if err != nil {
		return response.FromError(c, err, lotErrors)
	}
	return response.Success(c, "Lots retrieved", list, fiber.Map{"count": len(list)})
}

// GetByCode GET /api/v1/lots/:code
func (h *Handlers) GetByCode(c *fiber.Ctx) error {
	lot, err := h.Service.GetByCode(c.UserContext(), c.Params("code"))
	if err != nil {
		return response.FromError(c, err, lotErrors)
	}
	return response.Success(c, "Lot retrieved", lot, nil)
}

// Stages GET /api/v1/stages
func (h *Handlers) Stages(c *fiber.Ctx) error {
	list, err := h.Service.ListStages(c.UserContext())
	if err != nil {
		return response.FromError(c, err, lotErrors)
	}
	return response.Success(c, "Stages retrieved", list, nil)
}
