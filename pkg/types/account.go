package types

// Account is one persisted record. Owner is the program that may mutate or
// close it; anyone may read it. An account with empty Data does not exist.
type Account struct {
	Address Identity `cbor:"1,keyasint"`
	Owner   Identity `cbor:"2,keyasint"`
	Data    []byte   `cbor:"3,keyasint"`
}

// Clone returns a deep copy so callers can mutate Data without touching
// stored state.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	out := &Account{Address: a.Address, Owner: a.Owner}
	if a.Data != nil {
		out.Data = make([]byte, len(a.Data))
		copy(out.Data, a.Data)
	}
	return out
}

// Exists reports whether the account holds any data.
func (a *Account) Exists() bool {
	return a != nil && len(a.Data) > 0
}
