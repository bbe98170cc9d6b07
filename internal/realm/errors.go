package realm

import "errors"

var (
	// ErrNoAuthority is a definite discovery failure, reported to the
	// requester immediately. Nothing retries on its behalf.
	ErrNoAuthority = errors.New("no active authority")

	// ErrInsufficientFunds rejects a buy before any mutation.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrNoPermission rejects a requester acting as an actor they do not
	// control, or against a container they have no access to.
	ErrNoPermission = errors.New("not allowed")
)
