package domain

import "errors"

var (
	ErrUnauthorized          = errors.New("unauthorized")
	ErrUnknownProposal       = errors.New("unknown proposal")
	ErrAlreadyExecuted       = errors.New("proposal already executed")
	ErrDuplicateConfirmation = errors.New("duplicate confirmation")
	ErrNotConfirmed          = errors.New("not confirmed")
	ErrInvalidThreshold      = errors.New("invalid threshold")
	ErrReplayedPayment       = errors.New("payment reference already used")
	ErrPaymentMismatch       = errors.New("payment mismatch")
	ErrLedgerUnavailable     = errors.New("ledger unavailable")
	ErrActionExecutionFailed = errors.New("action execution failed")
	ErrNotFound              = errors.New("not found")
	ErrSignatureInvalid      = errors.New("signature invalid")
)
