package services

import (
	"errors"
	"net/http"
)

// ErrorKind groups service errors by how a caller should react to them
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindConflict
	KindForbidden
	KindNotFound
)

// HTTPStatus maps the kind onto a response status code.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// Error is a business-rule failure reported to callers as a typed result
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind ErrorKind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Connection errors
var (
	ErrSelfRequest           = newError(KindValidation, "SELF_REQUEST", "you cannot send a connection request to yourself")
	ErrAlreadyConnected      = newError(KindConflict, "ALREADY_CONNECTED", "you are already connected with this user")
	ErrAlreadyPending        = newError(KindConflict, "ALREADY_PENDING", "a connection request is already pending")
	ErrReverseAlreadyPending = newError(KindConflict, "REVERSE_ALREADY_PENDING", "this user has already sent you a request")
	ErrPreviouslyRejected    = newError(KindConflict, "PREVIOUSLY_REJECTED", "a previous connection request was rejected")
	ErrNotReceiver           = newError(KindForbidden, "FORBIDDEN", "only the receiver can respond to the request")
	ErrNotPending            = newError(KindConflict, "NOT_PENDING", "connection not pending")
	ErrConnectionNotFound    = newError(KindNotFound, "CONNECTION_NOT_FOUND", "connection not found")
	ErrUserNotFound          = newError(KindNotFound, "USER_NOT_FOUND", "user not found")
	ErrNotConnected          = newError(KindForbidden, "NOT_CONNECTED", "you are not connected with the owner of this entity")
)

// Ledger errors
var (
	ErrInvalidAmount        = newError(KindValidation, "INVALID_AMOUNT", "amount must be greater than zero with at most two decimal places")
	ErrInvalidBalance       = newError(KindValidation, "INVALID_BALANCE", "balance must have at most two decimal places")
	ErrSelfTransfer         = newError(KindValidation, "SELF_TRANSFER", "payer and payee must be different entities")
	ErrInvalidCategory      = newError(KindValidation, "INVALID_CATEGORY", "category must be an entity of type CATEGORY")
	ErrInvalidInitialStatus = newError(KindValidation, "INVALID_STATUS", "a transaction can only be created as PENDING or COMPLETED")
	ErrInvalidTransition    = newError(KindConflict, "INVALID_TRANSITION", "transaction status can only change once, from PENDING to COMPLETED or REJECTED")
	ErrTransactionNotFound  = newError(KindNotFound, "TRANSACTION_NOT_FOUND", "transaction not found")
	ErrNotTransactionOwner  = newError(KindForbidden, "NOT_TRANSACTION_OWNER", "only the owner of the paying entity can change this transaction")
	ErrTransientConflict    = newError(KindConflict, "TRANSIENT_CONFLICT", "the operation conflicted with a concurrent update, please retry")
)

// Entity and payment mode errors
var (
	ErrEntityNotFound      = newError(KindNotFound, "ENTITY_NOT_FOUND", "entity not found")
	ErrInvalidEntityKind   = newError(KindValidation, "INVALID_ENTITY_TYPE", "unknown entity type")
	ErrForeignEntity       = newError(KindValidation, "FOREIGN_ENTITY", "you can only link payment modes to your own entities")
	ErrPaymentModeNotFound = newError(KindNotFound, "PAYMENT_MODE_NOT_FOUND", "payment mode not found")
	ErrAppNotFound         = newError(KindNotFound, "APP_NOT_FOUND", "payment app not found in catalog")
	ErrWalletsNotSupported = newError(KindValidation, "WALLETS_NOT_SUPPORTED", "this payment app does not support wallets")
	ErrAlreadyLinked       = newError(KindConflict, "ALREADY_LINKED", "payment mode is already linked to an entity")
)

// AsServiceError extracts the typed error from err's chain.
func AsServiceError(err error) (*Error, bool) {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr, true
	}
	return nil, false
}

// IsKind reports whether err carries a service error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	svcErr, ok := AsServiceError(err)
	return ok && svcErr.Kind == kind
}
