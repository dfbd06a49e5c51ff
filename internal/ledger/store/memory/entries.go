package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"covenant/internal/ledger"
	id "covenant/pkg/domain"
	"covenant/pkg/platform/sentinel"
)

func (v *view) AppendEntry(_ context.Context, entry *ledger.Entry) error {
	defer v.lock()()
	st := v.st
	if entry.SourceType == ledger.SourceSeigniorage {
		if _, ok := st.seigniorageFaces[entry.FaceFingerprint]; ok && !entry.FaceFingerprint.IsNil() {
			return fmt.Errorf("seigniorage for face: %w", sentinel.ErrConflict)
		}
		if _, ok := st.seigniorageIDs[entry.IdentityID]; ok {
			return fmt.Errorf("seigniorage for identity %s: %w", entry.IdentityID, sentinel.ErrConflict)
		}
	}
	key := refKey{entry.SourceType, entry.Reference}
	if entry.Reference != "" {
		if _, ok := st.references[key]; ok {
			return fmt.Errorf("%s reference %q: %w", entry.SourceType, entry.Reference, sentinel.ErrConflict)
		}
	}

	st.entries = append(st.entries, *entry)
	if entry.SourceType == ledger.SourceSeigniorage {
		if !entry.FaceFingerprint.IsNil() {
			st.seigniorageFaces[entry.FaceFingerprint] = entry.ID
		}
		st.seigniorageIDs[entry.IdentityID] = entry.ID
	}
	if entry.Reference != "" {
		st.references[key] = entry.ID
	}
	return nil
}

func (v *view) FindEntryByReference(_ context.Context, source ledger.SourceType, reference string) (*ledger.Entry, error) {
	defer v.rlock()()
	entryID, ok := v.st.references[refKey{source, reference}]
	if !ok {
		return nil, fmt.Errorf("%s reference %q: %w", source, reference, sentinel.ErrNotFound)
	}
	for i := range v.st.entries {
		if v.st.entries[i].ID == entryID {
			e := v.st.entries[i]
			return &e, nil
		}
	}
	return nil, fmt.Errorf("entry %s: %w", entryID, sentinel.ErrNotFound)
}

func (v *view) ListEntriesByIdentity(_ context.Context, identityID id.IdentityID) ([]*ledger.Entry, error) {
	defer v.rlock()()
	var out []*ledger.Entry
	for _, e := range v.st.entries {
		if e.IdentityID == identityID {
			e := e
			out = append(out, &e)
		}
	}
	return out, nil
}

func (v *view) CountEntries(_ context.Context, source ledger.SourceType) (int64, error) {
	defer v.rlock()()
	var n int64
	for _, e := range v.st.entries {
		if e.SourceType == source {
			n++
		}
	}
	return n, nil
}

func (v *view) SumFoundation(_ context.Context) (decimal.Decimal, error) {
	defer v.rlock()()
	total := decimal.Zero
	for _, e := range v.st.entries {
		total = total.Add(e.FoundationTotal())
	}
	return total, nil
}

func (v *view) VaultDrift(_ context.Context) ([]ledger.VaultDrift, error) {
	defer v.rlock()()
	expected := make(map[id.IdentityID]decimal.Decimal, len(v.st.vaults))
	for _, e := range v.st.entries {
		switch e.SourceType.Direction() {
		case ledger.DirectionMint:
			expected[e.IdentityID] = expected[e.IdentityID].Add(e.VaultAmount)
		case ledger.DirectionVault:
			expected[e.IdentityID] = expected[e.IdentityID].Sub(e.Amount)
		}
	}
	var out []ledger.VaultDrift
	for identityID, vault := range v.st.vaults {
		balance := vault.Total()
		if !balance.Equal(expected[identityID]) {
			out = append(out, ledger.VaultDrift{
				IdentityID: identityID,
				Balance:    balance,
				Expected:   expected[identityID],
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IdentityID.String() < out[j].IdentityID.String() })
	return out, nil
}
