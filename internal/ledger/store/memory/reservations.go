package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"covenant/internal/ledger"
	id "covenant/pkg/domain"
	"covenant/pkg/platform/sentinel"
)

func (v *view) ReserveFace(_ context.Context, r *ledger.Reservation) (bool, error) {
	defer v.lock()()
	if _, ok := v.st.reservedFaces[r.FaceFingerprint]; ok {
		return false, nil
	}
	if _, ok := v.st.reservations[r.AttemptID]; ok {
		return false, fmt.Errorf("attempt %s: %w", r.AttemptID, sentinel.ErrConflict)
	}
	v.st.reservations[r.AttemptID] = *r
	v.st.reservedFaces[r.FaceFingerprint] = r.AttemptID
	return true, nil
}

func (v *view) ReserveAnchor(_ context.Context, r *ledger.Reservation) (bool, error) {
	defer v.lock()()
	if _, ok := v.st.reservedAnchor[r.AnchorDigest]; ok {
		return false, nil
	}
	if _, ok := v.st.reservations[r.AttemptID]; ok {
		return false, fmt.Errorf("attempt %s: %w", r.AttemptID, sentinel.ErrConflict)
	}
	v.st.reservations[r.AttemptID] = *r
	v.st.reservedAnchor[r.AnchorDigest] = r.AttemptID
	return true, nil
}

func (v *view) FindReservationByFace(ctx context.Context, fp id.FaceFingerprint) (*ledger.Reservation, error) {
	unlock := v.rlock()
	attemptID, ok := v.st.reservedFaces[fp]
	unlock()
	if !ok {
		return nil, fmt.Errorf("reservation by face: %w", sentinel.ErrNotFound)
	}
	return v.FindReservationByAttempt(ctx, attemptID)
}

func (v *view) FindReservationByAnchor(ctx context.Context, digest string) (*ledger.Reservation, error) {
	unlock := v.rlock()
	attemptID, ok := v.st.reservedAnchor[digest]
	unlock()
	if !ok {
		return nil, fmt.Errorf("reservation by anchor: %w", sentinel.ErrNotFound)
	}
	return v.FindReservationByAttempt(ctx, attemptID)
}

func (v *view) FindReservationByAttempt(_ context.Context, attemptID uuid.UUID) (*ledger.Reservation, error) {
	defer v.rlock()()
	r, ok := v.st.reservations[attemptID]
	if !ok {
		return nil, fmt.Errorf("reservation %s: %w", attemptID, sentinel.ErrNotFound)
	}
	return &r, nil
}

func (v *view) CompleteReservation(_ context.Context, attemptID uuid.UUID, now time.Time) error {
	defer v.lock()()
	r, ok := v.st.reservations[attemptID]
	if !ok {
		return fmt.Errorf("reservation %s: %w", attemptID, sentinel.ErrNotFound)
	}
	if r.Status == ledger.ReservationCompleted {
		return nil
	}
	r.Status = ledger.ReservationCompleted
	r.CompletedAt = &now
	v.st.reservations[attemptID] = r
	return nil
}

func (v *view) ListStaleReservations(_ context.Context, before time.Time) ([]*ledger.Reservation, error) {
	defer v.rlock()()
	var out []*ledger.Reservation
	for _, r := range v.st.reservations {
		if r.Status == ledger.ReservationReserved && r.CreatedAt.Before(before) {
			r := r
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (v *view) ClaimGenesis(_ context.Context, identityID id.IdentityID, _ time.Time) (bool, error) {
	defer v.lock()()
	if v.st.genesis != nil {
		return false, nil
	}
	v.st.genesis = &identityID
	return true, nil
}
