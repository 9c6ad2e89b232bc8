package ledger

import "errors"

// Typed failures surfaced by the ledger service. The API layer maps these
// to HTTP statuses; none of them are fatal to the process.
var (
	// ErrInvalidAmount rejects non-positive transfer amounts before any
	// store interaction.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrSameAccount rejects transfers where source and target are the
	// same account.
	ErrSameAccount = errors.New("source and target accounts must differ")

	// ErrInvalidTitle rejects empty account titles.
	ErrInvalidTitle = errors.New("title must not be empty")

	// ErrInsufficientFunds is the business-rule rejection when the source
	// balance cannot cover the amount.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrAccountNotFound means one of the accounts vanished before commit.
	ErrAccountNotFound = errors.New("account not found")

	// ErrTransferFailed is surfaced after the conflict retry budget is
	// exhausted.
	ErrTransferFailed = errors.New("transfer failed")

	// ErrDeleteFailed means a cascading delete batch did not commit. The
	// store's own atomicity guarantees no partial application happened.
	ErrDeleteFailed = errors.New("delete failed")
)
