package city

import "errors"

var (
	// ErrInsufficientFunds is returned by placement, repair and upgrade when the
	// budget cannot cover the cost. State is left unchanged.
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrBuildingNotFound  = errors.New("building not found")
	ErrUnknownKind       = errors.New("unknown building kind")
	// ErrMalformedSave wraps every reason a save record is rejected by Restore.
	ErrMalformedSave = errors.New("malformed save data")
)
