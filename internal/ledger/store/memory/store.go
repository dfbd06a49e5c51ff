// Package memory is an in-process ledger store with the same atomicity as
// the Postgres store. RunInTx works on a cloned state and swaps it in on
// success, so a failed callback leaves no trace.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/google/uuid"

	"covenant/internal/ledger"
	id "covenant/pkg/domain"
	dErrors "covenant/pkg/domain-errors"
	"covenant/pkg/platform/outbox"
)

type sigKey struct {
	identity id.IdentityID
	version  id.AgreementVersion
}

type refKey struct {
	source    ledger.SourceType
	reference string
}

type eventKey struct {
	identity id.IdentityID
	day      string
}

type state struct {
	identities map[id.IdentityID]ledger.Identity
	faces      map[id.FaceFingerprint]id.IdentityID
	anchors    map[string]id.IdentityID
	signatures map[sigKey]string

	reservations   map[uuid.UUID]ledger.Reservation
	reservedFaces  map[id.FaceFingerprint]uuid.UUID
	reservedAnchor map[string]uuid.UUID
	genesis        *id.IdentityID

	entries          []ledger.Entry
	seigniorageFaces map[id.FaceFingerprint]uuid.UUID
	seigniorageIDs   map[id.IdentityID]uuid.UUID
	references       map[refKey]uuid.UUID

	vaults        map[id.IdentityID]ledger.Vault
	reserves      map[id.BlockID]ledger.RegionalReserve
	vesting       map[id.IdentityID]ledger.VestingState
	vestingEvents map[eventKey]struct{}

	royalty  []ledger.RevenueRecord
	national []ledger.RevenueRecord
}

func newState() *state {
	return &state{
		identities:       make(map[id.IdentityID]ledger.Identity),
		faces:            make(map[id.FaceFingerprint]id.IdentityID),
		anchors:          make(map[string]id.IdentityID),
		signatures:       make(map[sigKey]string),
		reservations:     make(map[uuid.UUID]ledger.Reservation),
		reservedFaces:    make(map[id.FaceFingerprint]uuid.UUID),
		reservedAnchor:   make(map[string]uuid.UUID),
		seigniorageFaces: make(map[id.FaceFingerprint]uuid.UUID),
		seigniorageIDs:   make(map[id.IdentityID]uuid.UUID),
		references:       make(map[refKey]uuid.UUID),
		vaults:           make(map[id.IdentityID]ledger.Vault),
		reserves:         make(map[id.BlockID]ledger.RegionalReserve),
		vesting:          make(map[id.IdentityID]ledger.VestingState),
		vestingEvents:    make(map[eventKey]struct{}),
	}
}

// clone copies every table. Values are stored by value, so copying the maps
// is enough except for slices inside Identity.
func (s *state) clone() *state {
	c := &state{
		identities:       make(map[id.IdentityID]ledger.Identity, len(s.identities)),
		faces:            maps.Clone(s.faces),
		anchors:          maps.Clone(s.anchors),
		signatures:       maps.Clone(s.signatures),
		reservations:     maps.Clone(s.reservations),
		reservedFaces:    maps.Clone(s.reservedFaces),
		reservedAnchor:   maps.Clone(s.reservedAnchor),
		entries:          append([]ledger.Entry(nil), s.entries...),
		seigniorageFaces: maps.Clone(s.seigniorageFaces),
		seigniorageIDs:   maps.Clone(s.seigniorageIDs),
		references:       maps.Clone(s.references),
		vaults:           maps.Clone(s.vaults),
		reserves:         maps.Clone(s.reserves),
		vesting:          maps.Clone(s.vesting),
		vestingEvents:    maps.Clone(s.vestingEvents),
		royalty:          append([]ledger.RevenueRecord(nil), s.royalty...),
		national:         append([]ledger.RevenueRecord(nil), s.national...),
	}
	for k, v := range s.identities {
		v.DeviceFingerprints = append([]string(nil), v.DeviceFingerprints...)
		c.identities[k] = v
	}
	if s.genesis != nil {
		g := *s.genesis
		c.genesis = &g
	}
	return c
}

// view implements ledger.Store over one state. The root store guards it with
// a mutex; a transaction view runs under the root's lock and needs none.
type view struct {
	st     *state
	lock   func() func()
	rlock  func() func()
	events outbox.Store
	staged *[]*outbox.Entry
}

func noLock() func() { return func() {} }

// Store is the root in-memory ledger store. It implements ledger.TxRunner.
type Store struct {
	*view
	mu sync.RWMutex
}

// New creates an empty store. Events are appended to events once their
// transaction commits.
func New(events outbox.Store) *Store {
	s := &Store{}
	s.view = &view{
		st:     newState(),
		events: events,
		lock: func() func() {
			s.mu.Lock()
			return s.mu.Unlock
		},
		rlock: func() func() {
			s.mu.RLock()
			return s.mu.RUnlock
		},
	}
	return s
}

// RunInTx runs fn against a private copy of the state and publishes the copy
// only if fn and ctx both succeed.
func (s *Store) RunInTx(ctx context.Context, fn func(store ledger.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var staged []*outbox.Entry
	tx := &view{
		st:     s.st.clone(),
		lock:   noLock,
		rlock:  noLock,
		events: s.events,
		staged: &staged,
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	*s.st = *tx.st
	if s.events == nil {
		return nil
	}
	for _, e := range staged {
		if err := s.events.Append(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (v *view) AppendEvent(ctx context.Context, entry *outbox.Entry) error {
	if v.staged != nil {
		*v.staged = append(*v.staged, entry)
		return nil
	}
	if v.events == nil {
		return nil
	}
	return v.events.Append(ctx, entry)
}

var (
	_ ledger.Store    = (*Store)(nil)
	_ ledger.TxRunner = (*Store)(nil)
)
