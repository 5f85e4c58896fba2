package app

import (
	"errors"

	"github.com/transfa/fund-service/internal/domain"
	"github.com/transfa/fund-service/internal/flows"
)

var (
	ErrAmountBelowMinimum = errors.New("amount is below the minimum")
	ErrFundInactive       = errors.New("fund is not accepting investments")
	ErrInvalidAddress     = domain.ErrInvalidAddress
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidProfile     = errors.New("invalid profile update")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrRateLimited        = errors.New("too many submissions, try again shortly")
	ErrUnknownFlow        = flows.ErrUnknownKind
)
