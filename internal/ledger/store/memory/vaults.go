package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"covenant/internal/ledger"
	id "covenant/pkg/domain"
	"covenant/pkg/platform/sentinel"
)

func (v *view) CreateVault(_ context.Context, identityID id.IdentityID, now time.Time) error {
	defer v.lock()()
	if _, ok := v.st.vaults[identityID]; ok {
		return fmt.Errorf("vault %s: %w", identityID, sentinel.ErrConflict)
	}
	v.st.vaults[identityID] = ledger.Vault{
		IdentityID: identityID,
		Spendable:  decimal.Zero,
		Locked:     decimal.Zero,
		UpdatedAt:  now,
	}
	return nil
}

func (v *view) GetVault(_ context.Context, identityID id.IdentityID) (*ledger.Vault, error) {
	defer v.rlock()()
	vault, ok := v.st.vaults[identityID]
	if !ok {
		return nil, fmt.Errorf("vault %s: %w", identityID, sentinel.ErrNotFound)
	}
	return &vault, nil
}

func (v *view) CreditVault(_ context.Context, identityID id.IdentityID, spendable, locked decimal.Decimal, now time.Time) error {
	defer v.lock()()
	vault, ok := v.st.vaults[identityID]
	if !ok {
		return fmt.Errorf("vault %s: %w", identityID, sentinel.ErrNotFound)
	}
	vault.Spendable = vault.Spendable.Add(spendable)
	vault.Locked = vault.Locked.Add(locked)
	vault.UpdatedAt = now
	v.st.vaults[identityID] = vault
	return nil
}

func (v *view) ApplyActivationDebit(_ context.Context, identityID id.IdentityID, fee decimal.Decimal, now time.Time) (bool, error) {
	defer v.lock()()
	vault, ok := v.st.vaults[identityID]
	if !ok {
		return false, fmt.Errorf("vault %s: %w", identityID, sentinel.ErrNotFound)
	}
	if vault.Active || vault.Spendable.LessThan(fee) || !v.unreleased(identityID) {
		return false, nil
	}
	vault.Spendable = vault.Spendable.Sub(fee)
	vault.Locked = vault.Locked.Add(fee)
	vault.Active = true
	vault.UpdatedAt = now
	v.st.vaults[identityID] = vault
	return true, nil
}

// unreleased reports whether identityID has a vesting state still waiting
// for release. Callers hold the lock.
func (v *view) unreleased(identityID id.IdentityID) bool {
	vs, ok := v.st.vesting[identityID]
	return ok && !vs.Released
}

func (v *view) DebitSpendable(_ context.Context, identityID id.IdentityID, amount decimal.Decimal, now time.Time) error {
	defer v.lock()()
	vault, ok := v.st.vaults[identityID]
	if !ok {
		return fmt.Errorf("vault %s: %w", identityID, sentinel.ErrNotFound)
	}
	if vault.Spendable.LessThan(amount) {
		return fmt.Errorf("debit %s from vault %s: %w", amount, identityID, sentinel.ErrInvalidState)
	}
	vault.Spendable = vault.Spendable.Sub(amount)
	vault.UpdatedAt = now
	v.st.vaults[identityID] = vault
	return nil
}

func (v *view) UnlockVaults(_ context.Context, identityIDs []id.IdentityID, now time.Time) (map[id.IdentityID]decimal.Decimal, error) {
	defer v.lock()()
	moved := make(map[id.IdentityID]decimal.Decimal, len(identityIDs))
	for _, identityID := range identityIDs {
		vault, ok := v.st.vaults[identityID]
		if !ok || !v.unreleased(identityID) {
			continue
		}
		moved[identityID] = vault.Locked
		vault.Spendable = vault.Spendable.Add(vault.Locked)
		vault.Locked = decimal.Zero
		vault.UpdatedAt = now
		v.st.vaults[identityID] = vault
	}
	return moved, nil
}

func (v *view) CreditRegionalReserve(_ context.Context, blockID id.BlockID, amount decimal.Decimal, now time.Time) error {
	defer v.lock()()
	r, ok := v.st.reserves[blockID]
	if !ok {
		r = ledger.RegionalReserve{BlockID: blockID, Balance: decimal.Zero}
	}
	r.Balance = r.Balance.Add(amount)
	r.UpdatedAt = now
	v.st.reserves[blockID] = r
	return nil
}

func (v *view) GetRegionalReserve(_ context.Context, blockID id.BlockID) (*ledger.RegionalReserve, error) {
	defer v.rlock()()
	r, ok := v.st.reserves[blockID]
	if !ok {
		return nil, fmt.Errorf("regional reserve %s: %w", blockID, sentinel.ErrNotFound)
	}
	return &r, nil
}
