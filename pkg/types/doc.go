// Package types defines the identities, accounts, storage interfaces,
// configuration and standard errors shared by every hookvault component.
//
// A hookvault deployment pools one fungible asset on behalf of many
// depositors. Every movement of that asset goes through the asset ledger,
// which synchronously asks a transfer hook to approve it. The hook consults
// an allowlist; the vault keeps its own accounting next to the ledger's
// balances and signs withdrawals with a derived authority that has no
// private key.
package types
