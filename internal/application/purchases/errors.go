package purchases

import (
	"errors"

	"siglo-backend/internal/application/allocation"
	"siglo-backend/internal/application/lots"
)

var (
	ErrLotNotFound      = lots.ErrLotNotFound
	ErrLotNotAvailable  = errors.New("Lot is not available")
	ErrClientNotFound   = errors.New("Client not found")
	ErrInvalidTotal     = errors.New("Total amount must be zero or a positive amount with at most two decimals")
	ErrPurchaseNotFound = allocation.ErrPurchaseNotFound
)
