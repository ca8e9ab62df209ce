package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrValidation         = errors.New("invalid input")
	ErrConflict           = errors.New("transaction already claimed by another account")
	ErrAmountMismatch     = errors.New("paid amount does not match configured price")
	ErrPriceNotConfigured = errors.New("subscription price not configured")
	ErrUnauthorized       = errors.New("missing or invalid credentials")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrRateLimited        = errors.New("too many attempts")

	// Gateway boundary errors. ErrGatewayLookup means the gateway answered
	// and the transaction cannot be activated; ErrGatewayUnavailable means we
	// never got a usable answer and the question remains open.
	ErrGatewayAuth        = errors.New("gateway authentication failed")
	ErrGatewayLookup      = errors.New("gateway transaction lookup failed")
	ErrGatewayUnavailable = errors.New("gateway unreachable")
	ErrDecodeToken        = errors.New("cannot decode gateway token")

	// Storage boundary errors
	ErrOperationFailed    = errors.New("database operation failed")
	ErrInvalidExecContext = errors.New("invalid database execution context")
	ErrReadDatabaseRow    = errors.New("cannot read database row")
)
