package configs

import "errors"

var (
	ErrNotFound         = errors.New("config not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrForbidden        = errors.New("not allowed")
	ErrPaymentRequired  = errors.New("purchase required")
	ErrAlreadyPurchased = errors.New("already purchased")
)
