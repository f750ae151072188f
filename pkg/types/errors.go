package types

import "errors"

// Authorization and setup errors.
var (
	ErrUnauthorized       = errors.New("caller is not the stored admin")
	ErrAlreadyInitialized = errors.New("already initialized")
	ErrAlreadyExists      = errors.New("record already exists")
	ErrNotInitialized     = errors.New("not initialized")
	ErrMissingSignature   = errors.New("missing required signature")
)

// Vault accounting errors.
var (
	ErrInvalidAmount     = errors.New("amount must be greater than zero")
	ErrOverflow          = errors.New("arithmetic overflow")
	ErrUnderflow         = errors.New("arithmetic underflow")
	ErrInsufficientFunds = errors.New("amount exceeds recorded deposit")
	ErrRecordNotFound    = errors.New("record not found")
	ErrInvalidMint       = errors.New("mint does not match vault")
	ErrInconsistentState = errors.New("vault accounting is inconsistent")
	ErrVaultDestination  = errors.New("transfers into the vault must use deposit")
)

// Transfer checkpoint errors.
var (
	ErrNotWhitelisted          = errors.New("address is not whitelisted")
	ErrNotTransferring         = errors.New("hook invoked outside a transfer")
	ErrInvalidWhitelistAccount = errors.New("invalid whitelist account")
	ErrRosterFull              = errors.New("roster is at capacity")
)

// Host and ledger errors.
var (
	ErrAccountInUse        = errors.New("account already in use")
	ErrIllegalOwner        = errors.New("account is not owned by the executing program")
	ErrInvalidAccountData  = errors.New("invalid account data")
	ErrAccountListMismatch = errors.New("attached accounts do not match descriptor")
	ErrDecimalsMismatch    = errors.New("decimals do not match mint")
	ErrInsufficientBalance = errors.New("insufficient token balance")
	ErrHookNotRegistered   = errors.New("transfer hook program not registered")
	ErrMintMismatch        = errors.New("token account mint mismatch")
	ErrOwnerMismatch       = errors.New("authority does not own source account")
)
