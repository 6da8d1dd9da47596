package bonus

import (
	"context"
	"fmt"

	"github.com/solera/salon-engine/core"
)

// =============================================================================
// REDEMPTION - The single permitted bonus mutation
// =============================================================================

// Redeemer applies the Pending -> Redeemed transition. Redemption is
// monotonic and irreversible; the store's conditional update guarantees a
// single winner under concurrent attempts.
type Redeemer struct {
	Bonuses core.BonusStore
}

func NewRedeemer(bonuses core.BonusStore) *Redeemer {
	return &Redeemer{Bonuses: bonuses}
}

// Redeem marks the bonus redeemed at the given instant.
//
// Returns:
//   - (true, nil)  the transition was applied by this call
//   - (false, nil) the bonus was already redeemed - repeat and concurrent
//     attempts are no-ops, not errors
//   - (false, err) the bonus is missing, stored as Expired, or the store
//     failed
func (r *Redeemer) Redeem(ctx context.Context, id core.BonusID, now core.TimePoint) (bool, error) {
	b, err := r.Bonuses.GetBonus(ctx, id)
	if err != nil {
		return false, err
	}

	switch b.State {
	case core.BonusRedeemed:
		return false, nil
	case core.BonusExpired:
		return false, fmt.Errorf("bonus %s: %w", id, core.ErrBonusNotRedeemable)
	}

	changed, err := r.Bonuses.MarkRedeemed(ctx, id, now)
	if err != nil {
		return false, fmt.Errorf("redeem bonus %s: %w", id, err)
	}
	// changed == false here means a concurrent redeemer committed first;
	// the outcome the caller wanted holds either way.
	return changed, nil
}
