package protocol

import (
	"errors"

	"citysim/internal/persistence/slots"
	"citysim/internal/sim/city"
)

const (
	ErrInsufficientFunds = "E_INSUFFICIENT_FUNDS"
	ErrNotFound          = "E_NOT_FOUND"
	ErrSaveNotFound      = "E_SAVE_NOT_FOUND"
	ErrMalformedSave     = "E_MALFORMED_SAVE"
	ErrBadRequest        = "E_BAD_REQUEST"
	ErrInternal          = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrInsufficientFunds: {},
	ErrNotFound:          {},
	ErrSaveNotFound:      {},
	ErrMalformedSave:     {},
	ErrBadRequest:        {},
	ErrInternal:          {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// CodeFor maps an operation error to its wire code. nil maps to "".
func CodeFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, city.ErrInsufficientFunds):
		return ErrInsufficientFunds
	case errors.Is(err, city.ErrBuildingNotFound):
		return ErrNotFound
	case errors.Is(err, slots.ErrNotFound):
		return ErrSaveNotFound
	case errors.Is(err, city.ErrMalformedSave), errors.Is(err, slots.ErrCorrupt):
		return ErrMalformedSave
	case errors.Is(err, city.ErrUnknownKind), errors.Is(err, slots.ErrBadName), errors.Is(err, ErrInvalidMessage):
		return ErrBadRequest
	}
	return ErrInternal
}
