package domain

import "errors"

// Every failure of a ledger operation is a whole-call rejection: no partial
// mutation is ever persisted. Callers resubmit with corrected parameters.
var (
	// ErrUnknownAsset is returned when an asset id was never minted.
	ErrUnknownAsset = errors.New("unknown asset")

	// ErrAlreadySold is returned when buying a listing that has already
	// been finalized.
	ErrAlreadySold = errors.New("item already sold")

	// ErrWrongPayment is returned when the attached value does not exactly
	// match the required amount. Overpayment and underpayment are both
	// rejected.
	ErrWrongPayment = errors.New("payment does not match required amount")

	// ErrNotHolder is returned when the caller does not currently hold the
	// asset it is trying to move or resell.
	ErrNotHolder = errors.New("caller does not hold asset")

	// ErrInvalidPrice is returned for a non-positive listing price.
	ErrInvalidPrice = errors.New("price must be greater than zero")

	// ErrRoyaltyNotPaid is returned when the royalty payment attached to a
	// relisting does not match the current royalty fee.
	ErrRoyaltyNotPaid = errors.New("royalty fee not paid")

	// ErrUnauthorized is returned when a non-admin calls the admin
	// operation.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNoEscrow indicates a release was attempted for a listing with
	// nothing escrowed. It signals an internal invariant violation, not a
	// user error, and is unreachable in correct operation.
	ErrNoEscrow = errors.New("no escrow held for listing")

	// ErrInsufficientFunds is returned when the payer's balance cannot
	// cover an atomic value transfer; the enclosing call fails whole.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrAlreadyMinted is returned when the one-shot genesis mint is
	// attempted twice.
	ErrAlreadyMinted = errors.New("catalogue already minted")

	// ErrNotFound is returned by stores for missing rows.
	ErrNotFound = errors.New("not found")
)
