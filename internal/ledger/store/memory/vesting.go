package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"covenant/internal/ledger"
	id "covenant/pkg/domain"
	"covenant/pkg/platform/sentinel"
)

func (v *view) CreateVestingState(_ context.Context, vs *ledger.VestingState) error {
	defer v.lock()()
	if _, ok := v.st.vesting[vs.IdentityID]; ok {
		return fmt.Errorf("vesting state %s: %w", vs.IdentityID, sentinel.ErrConflict)
	}
	v.st.vesting[vs.IdentityID] = *vs
	return nil
}

func (v *view) GetVestingState(_ context.Context, identityID id.IdentityID) (*ledger.VestingState, error) {
	defer v.rlock()()
	vs, ok := v.st.vesting[identityID]
	if !ok {
		return nil, fmt.Errorf("vesting state %s: %w", identityID, sentinel.ErrNotFound)
	}
	return &vs, nil
}

func (v *view) RecordVestingEvent(_ context.Context, identityID id.IdentityID, day time.Time, _ time.Time) (bool, error) {
	defer v.lock()()
	if _, ok := v.st.vesting[identityID]; !ok {
		return false, fmt.Errorf("vesting state %s: %w", identityID, sentinel.ErrNotFound)
	}
	key := eventKey{identityID, ledger.Day(day).Format(time.DateOnly)}
	if _, ok := v.st.vestingEvents[key]; ok {
		return false, nil
	}
	v.st.vestingEvents[key] = struct{}{}
	return true, nil
}

func (v *view) AdvanceVesting(_ context.Context, identityID id.IdentityID, day time.Time, now time.Time) (*ledger.VestingState, error) {
	defer v.lock()()
	vs, ok := v.st.vesting[identityID]
	if !ok {
		return nil, fmt.Errorf("vesting state %s: %w", identityID, sentinel.ErrNotFound)
	}
	vs.Counter = min(vs.Counter+1, vs.Target)
	d := ledger.Day(day)
	vs.LastEventDate = &d
	vs.UpdatedAt = now
	v.st.vesting[identityID] = vs
	return &vs, nil
}

func (v *view) ReleaseVesting(_ context.Context, identityID id.IdentityID, vested decimal.Decimal, now time.Time) (bool, error) {
	defer v.lock()()
	vs, ok := v.st.vesting[identityID]
	if !ok {
		return false, fmt.Errorf("vesting state %s: %w", identityID, sentinel.ErrNotFound)
	}
	if vs.Released {
		return false, nil
	}
	vs.Released = true
	vs.Counter = vs.Target
	vs.Strictness = ledger.StrictnessHigh
	vs.VestedAmount = vested
	vs.UpdatedAt = now
	v.st.vesting[identityID] = vs
	return true, nil
}

func (v *view) ListUnreleased(_ context.Context, limit int) ([]id.IdentityID, error) {
	defer v.rlock()()
	pending := make([]ledger.VestingState, 0)
	for _, vs := range v.st.vesting {
		if !vs.Released {
			pending = append(pending, vs)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	out := make([]id.IdentityID, len(pending))
	for i, vs := range pending {
		out[i] = vs.IdentityID
	}
	return out, nil
}
