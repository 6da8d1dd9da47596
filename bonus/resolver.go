/*
Package bonus derives the effective loyalty-bonus status of a client.

PURPOSE:
  A client's bonus history is append-style: records are created when a
  loyalty event occurs and, except for redemption, never mutated. What the
  user sees - active, about to expire, expired, redeemed - is computed at
  query time from that history plus "now". Expiration is never written
  back to the store.

KEY CONCEPTS:
  - Stored state vs effective status: a record stored as Pending may have
    lapsed by now; the resolver derives that on read
  - Terminal precedence: a stored Redeemed state wins over any date math,
    permanently
  - Active bonus: the most recently created Pending record; with no
    Pending record, the most recent one (historical display only)
  - Legacy fallback: clients predating bonus records are treated as if a
    bonus was issued on the client's own creation date

STATUS LADDER (for a Pending record):
  pendiente       created less than 5 months ago
  alerta_5_meses  past the 5-month mark, before expiry
  vencido         past expiry (explicit ExpiresAt, or created + 6 months)

DETERMINISM:
  Resolve is a pure function of (client, history, now). Callers inject
  "now"; nothing here reads the clock.

SEE ALSO:
  - redeem.go: The single permitted mutation, Pending -> Redeemed
  - stats/: Reuses per-record status for dashboard windows
*/
package bonus

import (
	"sort"

	"github.com/google/uuid"

	"github.com/solera/salon-engine/core"
)

// =============================================================================
// EFFECTIVE STATUS
// =============================================================================

// Status is the bonus status as computed at query time, merging stored
// terminal state with time-derived expiration. Values match the legacy
// database vocabulary.
type Status string

const (
	StatusPending  Status = "pendiente"
	StatusAlert    Status = "alerta_5_meses"
	StatusExpired  Status = "vencido"
	StatusRedeemed Status = "reclamado"
)

// Lifecycle windows, counted from the record's creation.
const (
	ExpiryMonths = 6
	AlertMonths  = 5
)

// Label returns the user-facing Spanish label for a status.
func Label(s Status) string {
	switch s {
	case StatusRedeemed:
		return "Reclamado"
	case StatusPending:
		return "Activo"
	case StatusExpired:
		return "Vencido"
	case StatusAlert:
		return "Por Vencer"
	default:
		return string(s)
	}
}

// Live reports whether the status counts as "currently active" for list
// filters and dashboard aggregates.
func (s Status) Live() bool {
	return s == StatusPending || s == StatusAlert
}

// =============================================================================
// RESOLUTION RESULT
// =============================================================================

// ResolvedBonus pairs a record with its computed status and effective
// expiry date.
type ResolvedBonus struct {
	Record    core.BonusRecord
	Status    Status
	ExpiresAt core.TimePoint
}

// Resolution is the full output of Resolve: one effective status for
// summary display, the record it came from, and the records currently
// relevant to the user.
type Resolution struct {
	Status        Status
	ActiveBonusID core.BonusID
	Active        ResolvedBonus
	History       []ResolvedBonus
}

// =============================================================================
// RESOLVER
// =============================================================================

// ExpiryOf returns a record's effective expiry: the explicit ExpiresAt
// when set, otherwise CreatedAt + 6 months.
func ExpiryOf(b core.BonusRecord) core.TimePoint {
	if !b.ExpiresAt.IsZero() {
		return b.ExpiresAt
	}
	return b.CreatedAt.AddMonths(ExpiryMonths)
}

// StatusAt computes one record's effective status at the given instant.
// Stored terminal states take precedence over date math: redemption cannot
// be time-reversed or re-expired.
func StatusAt(b core.BonusRecord, now core.TimePoint) Status {
	switch b.State {
	case core.BonusRedeemed:
		return StatusRedeemed
	case core.BonusExpired:
		return StatusExpired
	}

	if now.After(ExpiryOf(b)) {
		return StatusExpired
	}
	if now.AfterOrEqual(b.CreatedAt.AddMonths(AlertMonths)) {
		return StatusAlert
	}
	return StatusPending
}

// Resolve computes the client's effective bonus state from its full
// history. The history may arrive in any order; records are sorted by
// CreatedAt descending here.
//
// With an empty history the client's own creation date stands in as a
// synthetic bonus issue date with the implicit 6-month expiry. That keeps
// clients from before bonus records existed on the same lifecycle.
func Resolve(client core.Client, history []core.BonusRecord, now core.TimePoint) Resolution {
	if len(history) == 0 {
		synthetic := core.BonusRecord{
			ClientID:  client.ID,
			State:     core.BonusPending,
			CreatedAt: client.CreatedAt,
		}
		resolved := ResolvedBonus{
			Record:    synthetic,
			Status:    StatusAt(synthetic, now),
			ExpiresAt: ExpiryOf(synthetic),
		}
		return Resolution{
			Status:  resolved.Status,
			Active:  resolved,
			History: []ResolvedBonus{resolved},
		}
	}

	sorted := make([]core.BonusRecord, len(history))
	copy(sorted, history)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	// Active bonus: the most recent Pending record. With none Pending the
	// most recent record of any state stands in - that covers historical
	// display, not "currently active" semantics. When several records are
	// simultaneously Pending the newest wins; older ones stay dangling in
	// history (see DESIGN.md open questions).
	active := sorted[0]
	for _, b := range sorted {
		if b.State == core.BonusPending {
			active = b
			break
		}
	}

	resolvedActive := ResolvedBonus{
		Record:    active,
		Status:    StatusAt(active, now),
		ExpiresAt: ExpiryOf(active),
	}

	// Display history: every record still live at "now". If nothing is
	// live, keep the single most recent record for historical reference.
	var display []ResolvedBonus
	for _, b := range sorted {
		st := StatusAt(b, now)
		if st.Live() {
			display = append(display, ResolvedBonus{Record: b, Status: st, ExpiresAt: ExpiryOf(b)})
		}
	}
	if len(display) == 0 {
		top := sorted[0]
		display = []ResolvedBonus{{Record: top, Status: StatusAt(top, now), ExpiresAt: ExpiryOf(top)}}
	}

	return Resolution{
		Status:        resolvedActive.Status,
		ActiveBonusID: active.ID,
		Active:        resolvedActive,
		History:       display,
	}
}

// =============================================================================
// ISSUANCE
// =============================================================================

// NewRecord builds a fresh Pending bonus for a client. The expiry is left
// implicit (creation + 6 months) unless the caller sets ExpiresAt.
func NewRecord(clientID core.ClientID, now core.TimePoint) core.BonusRecord {
	return core.BonusRecord{
		ID:        core.BonusID(uuid.New().String()),
		ClientID:  clientID,
		State:     core.BonusPending,
		CreatedAt: now,
	}
}
