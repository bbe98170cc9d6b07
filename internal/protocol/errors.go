package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Transaction layer.
	ErrBadRequest        = "E_BAD_REQUEST"
	ErrNotFound          = "E_NOT_FOUND"
	ErrInvalidItemType   = "E_INVALID_ITEM_TYPE"
	ErrInsufficientFunds = "E_INSUFFICIENT_FUNDS"
	ErrConversionFailed  = "E_CONVERSION_FAILED"
	ErrNoAuthority       = "E_NO_AUTHORITY"
	ErrNoPermission      = "E_NO_PERMISSION"
	ErrInternal          = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:   {},
	ErrBadRequest:        {},
	ErrNotFound:          {},
	ErrInvalidItemType:   {},
	ErrInsufficientFunds: {},
	ErrConversionFailed:  {},
	ErrNoAuthority:       {},
	ErrNoPermission:      {},
	ErrInternal:          {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
