package ledger

import (
	"errors"

	"siglo-backend/internal/application/allocation"
)

var (
	ErrInvalidAmount        = errors.New("Amount must be a positive number with at most two decimals")
	ErrAmountExceedsBalance = errors.New("Amount exceeds the outstanding balance")
	ErrPaymentNotFound      = errors.New("Payment not found")
	ErrPurchaseNotFound     = allocation.ErrPurchaseNotFound
)
