package whitelist

import (
	"errors"
	"fmt"

	"github.com/mesh-intelligence/hookvault/internal/codec"
	"github.com/mesh-intelligence/hookvault/internal/derive"
	"github.com/mesh-intelligence/hookvault/internal/resolve"
	"github.com/mesh-intelligence/hookvault/internal/runtime"
	"github.com/mesh-intelligence/hookvault/pkg/types"
)

var rosterDiscriminator = codec.NewDiscriminator("Roster")

// RosterCapacity is the most identities a roster holds. Lookups scan the
// whole list, so the bound also bounds the hook's work per transfer.
const RosterCapacity = 1024

const rosterEntrySize = types.IdentitySize + 8

// RosterSize is the encoded size of a roster record. The record is
// allocated at full capacity.
const RosterSize = codec.DiscriminatorSize + 4 + RosterCapacity*rosterEntrySize

// RosterEntry is one approved identity and its balance snapshot.
type RosterEntry struct {
	Subject types.Identity
	Balance uint64
}

// Roster stores every approved identity in one record at
// derive(hook, "roster").
type Roster struct {
	program types.Identity
}

// NewRoster returns the roster for the hook program.
func NewRoster(program types.Identity) *Roster {
	return &Roster{program: program}
}

// Variant implements Membership.
func (s *Roster) Variant() string {
	return types.MembershipRoster
}

// Address returns the roster record address.
func (s *Roster) Address() (derive.Proof, types.Identity, error) {
	return derive.Find(s.program, []byte(RosterSeed))
}

// Rules implements Membership: the single roster record.
func (s *Roster) Rules() []resolve.AccountRule {
	return []resolve.AccountRule{
		resolve.Seeded([]resolve.Seed{resolve.Literal([]byte(RosterSeed))}, false, false),
	}
}

// Setup implements Membership by creating the empty roster.
func (s *Roster) Setup(rc *runtime.Context) error {
	proof, addr, err := s.Address()
	if err != nil {
		return err
	}
	signed, err := rc.SignWith(proof)
	if err != nil {
		return err
	}
	if err := signed.Create(addr, encodeRoster(nil)); err != nil {
		if errors.Is(err, types.ErrAccountInUse) {
			return types.ErrAlreadyInitialized
		}
		return err
	}
	return nil
}

// Entries returns the roster contents in insertion order.
func (s *Roster) Entries(r types.Reader) ([]RosterEntry, error) {
	_, addr, err := s.Address()
	if err != nil {
		return nil, err
	}
	return s.load(r, addr)
}

// IsMember implements Membership with a linear scan.
func (s *Roster) IsMember(r types.Reader, subject types.Identity) (bool, error) {
	entries, err := s.Entries(r)
	if err != nil {
		return false, err
	}
	return indexOf(entries, subject) >= 0, nil
}

// Probe implements Membership.
func (s *Roster) Probe(r types.Reader, extras []types.Identity, _, _ types.Identity) (Probe, error) {
	_, addr, err := s.Address()
	if err != nil {
		return nil, err
	}
	if len(extras) < 1 || extras[0] != addr {
		return nil, fmt.Errorf("%w: roster account missing", types.ErrInvalidWhitelistAccount)
	}
	entries, err := s.load(r, addr)
	if err != nil {
		return nil, err
	}
	return func(subject types.Identity) (bool, error) {
		return indexOf(entries, subject) >= 0, nil
	}, nil
}

// Add implements Membership. Fails ErrRosterFull at capacity.
func (s *Roster) Add(rc *runtime.Context, subject types.Identity) error {
	return s.update(rc, func(entries []RosterEntry) ([]RosterEntry, error) {
		if indexOf(entries, subject) >= 0 {
			return nil, fmt.Errorf("%w: %s", types.ErrAlreadyExists, subject)
		}
		if len(entries) >= RosterCapacity {
			return nil, types.ErrRosterFull
		}
		return append(entries, RosterEntry{Subject: subject}), nil
	})
}

// Remove implements Membership.
func (s *Roster) Remove(rc *runtime.Context, subject types.Identity) error {
	return s.update(rc, func(entries []RosterEntry) ([]RosterEntry, error) {
		i := indexOf(entries, subject)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", types.ErrRecordNotFound, subject)
		}
		return append(entries[:i], entries[i+1:]...), nil
	})
}

// Track implements Tracker. Identities not on the roster are ignored.
func (s *Roster) Track(rc *runtime.Context, subject types.Identity, balance uint64) error {
	return s.update(rc, func(entries []RosterEntry) ([]RosterEntry, error) {
		if i := indexOf(entries, subject); i >= 0 {
			entries[i].Balance = balance
		}
		return entries, nil
	})
}

// Snapshot implements Tracker.
func (s *Roster) Snapshot(r types.Reader, subject types.Identity) (uint64, bool, error) {
	entries, err := s.Entries(r)
	if err != nil {
		return 0, false, err
	}
	i := indexOf(entries, subject)
	if i < 0 {
		return 0, false, nil
	}
	return entries[i].Balance, true, nil
}

func (s *Roster) update(rc *runtime.Context, fn func([]RosterEntry) ([]RosterEntry, error)) error {
	_, addr, err := s.Address()
	if err != nil {
		return err
	}
	entries, err := s.load(rc.Reader(), addr)
	if err != nil {
		return err
	}
	entries, err = fn(entries)
	if err != nil {
		return err
	}
	return rc.Store(addr, encodeRoster(entries))
}

func (s *Roster) load(r types.Reader, addr types.Identity) ([]RosterEntry, error) {
	acct, err := r.Get(addr)
	if errors.Is(err, types.ErrAccountNotFound) {
		return nil, types.ErrNotInitialized
	}
	if err != nil {
		return nil, err
	}
	if acct.Owner != s.program {
		return nil, fmt.Errorf("%w: roster not owned by hook", types.ErrInvalidWhitelistAccount)
	}
	return decodeRoster(acct.Data)
}

func encodeRoster(entries []RosterEntry) []byte {
	w := codec.NewWriter(RosterSize).
		Discriminator(rosterDiscriminator).
		Uint32(uint32(len(entries)))
	for _, e := range entries {
		w.Identity(e.Subject).Uint64(e.Balance)
	}
	w.Raw(make([]byte, (RosterCapacity-len(entries))*rosterEntrySize))
	return w.Bytes()
}

func decodeRoster(data []byte) ([]RosterEntry, error) {
	r := codec.NewReader(data).Expect(rosterDiscriminator)
	count := r.Uint32()
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("decode roster: %w", err)
	}
	if count > RosterCapacity {
		return nil, fmt.Errorf("%w: roster count %d exceeds capacity", types.ErrInvalidAccountData, count)
	}
	if len(data) != RosterSize {
		return nil, fmt.Errorf("%w: roster is %d bytes, want %d", types.ErrInvalidAccountData, len(data), RosterSize)
	}
	entries := make([]RosterEntry, count)
	for i := range entries {
		entries[i] = RosterEntry{Subject: r.Identity(), Balance: r.Uint64()}
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("decode roster: %w", err)
	}
	return entries, nil
}

func indexOf(entries []RosterEntry, subject types.Identity) int {
	for i, e := range entries {
		if e.Subject == subject {
			return i
		}
	}
	return -1
}
