package bonus_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solera/salon-engine/bonus"
	"github.com/solera/salon-engine/core"
	"github.com/solera/salon-engine/core/store"
)

func newRedeemFixture(t *testing.T, rec core.BonusRecord) (*bonus.Redeemer, *store.MemoryStore) {
	mem := store.NewMemoryStore()
	require.NoError(t, mem.SaveBonus(context.Background(), rec))
	return bonus.NewRedeemer(mem), mem
}

func TestRedeem_PendingBonus_Succeeds(t *testing.T) {
	// GIVEN: A Pending bonus
	// WHEN: Redeeming it
	// THEN: The stored state flips to Redeemed with the redemption time

	rec := pendingBonus("b-1", day(2024, time.January, 1))
	redeemer, mem := newRedeemFixture(t, rec)
	ctx := context.Background()

	now := day(2024, time.March, 1)
	changed, err := redeemer.Redeem(ctx, "b-1", now)
	require.NoError(t, err)
	assert.True(t, changed)

	got, err := mem.GetBonus(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, core.BonusRedeemed, got.State)
	assert.Equal(t, now, got.RedeemedAt)
}

func TestRedeem_SecondAttempt_IsIdempotentNoOp(t *testing.T) {
	// GIVEN: A bonus already redeemed
	// WHEN: Redeeming it again
	// THEN: No error, changed=false, RedeemedAt untouched

	rec := pendingBonus("b-1", day(2024, time.January, 1))
	redeemer, mem := newRedeemFixture(t, rec)
	ctx := context.Background()

	first := day(2024, time.March, 1)
	_, err := redeemer.Redeem(ctx, "b-1", first)
	require.NoError(t, err)

	changed, err := redeemer.Redeem(ctx, "b-1", day(2024, time.April, 1))
	require.NoError(t, err)
	assert.False(t, changed)

	got, _ := mem.GetBonus(ctx, "b-1")
	assert.Equal(t, first, got.RedeemedAt)
}

func TestRedeem_StoredExpired_Rejected(t *testing.T) {
	// GIVEN: A bonus whose stored state is Expired
	// WHEN: Redeeming it
	// THEN: ErrBonusNotRedeemable

	rec := pendingBonus("b-1", day(2023, time.January, 1))
	rec.State = core.BonusExpired
	redeemer, _ := newRedeemFixture(t, rec)

	_, err := redeemer.Redeem(context.Background(), "b-1", day(2024, time.January, 1))
	assert.ErrorIs(t, err, core.ErrBonusNotRedeemable)
}

func TestRedeem_StoredPendingPastWindow_StillSucceeds(t *testing.T) {
	// GIVEN: A bonus stored as Pending but past its 6-month window
	// WHEN: Redeeming it
	// THEN: Redemption goes through; only the stored state gates it

	rec := pendingBonus("b-1", day(2023, time.January, 1))
	redeemer, mem := newRedeemFixture(t, rec)
	ctx := context.Background()

	changed, err := redeemer.Redeem(ctx, "b-1", day(2024, time.June, 1))
	require.NoError(t, err)
	assert.True(t, changed)

	got, _ := mem.GetBonus(ctx, "b-1")
	assert.Equal(t, core.BonusRedeemed, got.State)
}

func TestRedeem_UnknownBonus_NotFound(t *testing.T) {
	redeemer, _ := newRedeemFixture(t, pendingBonus("b-1", day(2024, time.January, 1)))

	_, err := redeemer.Redeem(context.Background(), "b-missing", day(2024, time.March, 1))
	assert.ErrorIs(t, err, core.ErrBonusNotFound)
}

func TestRedeem_ConcurrentAttempts_ExactlyOneWins(t *testing.T) {
	// GIVEN: Many goroutines racing to redeem the same bonus
	// WHEN: They all call Redeem
	// THEN: Exactly one observes changed=true, nobody errors

	rec := pendingBonus("b-1", day(2024, time.January, 1))
	redeemer, _ := newRedeemFixture(t, rec)
	ctx := context.Background()
	now := day(2024, time.March, 1)

	const attempts = 16
	var wg sync.WaitGroup
	results := make([]bool, attempts)
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = redeemer.Redeem(ctx, "b-1", now)
		}(i)
	}
	wg.Wait()

	wins := 0
	for i := 0; i < attempts; i++ {
		require.NoError(t, errs[i])
		if results[i] {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
}
