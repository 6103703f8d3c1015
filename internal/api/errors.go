package api

import (
	"errors"
	"net/http"

	"ammEngine/internal/curve"
	"ammEngine/internal/pool"
)

// Error is an error with an HTTP status.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(status int, msg string) *Error {
	return &Error{Status: status, Message: msg}
}

var (
	// ErrInvalidBody indicates that the request body could not be decoded.
	ErrInvalidBody = newError(http.StatusBadRequest, "invalid request body")
	// ErrInvalidPoolID is returned when {id} is neither an address nor a seed.
	ErrInvalidPoolID = newError(http.StatusBadRequest, "pool id must be a hex address or a decimal seed")
	ErrInternal      = newError(http.StatusInternalServerError, "internal error")
)

// NewInvalidQuery returns a 400 Bad Request for a bad query parameter.
func NewInvalidQuery(param string, err error) *Error {
	return newError(http.StatusBadRequest, "invalid "+param+": "+err.Error())
}

// statusFor maps pool and curve sentinels to HTTP statuses. Unknown errors
// are reported as 500 and their text is not exposed.
func statusFor(err error) (int, bool) {
	switch {
	case errors.Is(err, pool.ErrPoolNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, pool.ErrPoolExists), errors.Is(err, pool.ErrPoolConflict):
		return http.StatusConflict, true
	case errors.Is(err, pool.ErrPoolLocked):
		return http.StatusLocked, true
	case errors.Is(err, pool.ErrInvalidAuthority), errors.Is(err, pool.ErrNoAuthoritySet):
		return http.StatusForbidden, true
	case errors.Is(err, pool.ErrOfferExpired), errors.Is(err, curve.ErrSlippageLimitExceeded):
		return http.StatusConflict, true
	case errors.Is(err, curve.ErrZeroAmount),
		errors.Is(err, curve.ErrInvalidFeeAmount),
		errors.Is(err, curve.ErrInvalidPrecision),
		errors.Is(err, curve.ErrUnknownAsset),
		errors.Is(err, pool.ErrIdenticalMints):
		return http.StatusBadRequest, true
	case errors.Is(err, curve.ErrZeroBalance),
		errors.Is(err, curve.ErrOverflow),
		errors.Is(err, curve.ErrUnderflow),
		errors.Is(err, curve.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity, true
	default:
		return http.StatusInternalServerError, false
	}
}
