package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrPlanNotFound       = errors.New("subscription plan not found")
	ErrOfferNotFound      = errors.New("offer not found")
	ErrOfferNotApplicable = errors.New("offer not applicable")

	// Payment / gateway errors
	ErrPaymentVerificationFailed = errors.New("payment signature verification failed")
	ErrGatewayUnavailable        = errors.New("payment gateway unavailable")
	ErrGatewayError              = errors.New("payment gateway error")
	ErrInvalidStateTransition    = errors.New("invalid payment state transition")

	// Storage errors
	ErrInvalidExecContext = errors.New("invalid exec context")
	ErrOperationFailed    = errors.New("storage operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)
