/*
Package stats produces the dashboard rollups.

PURPOSE:
  Pure aggregation over the client collection (with bonus histories) and
  an injected "now". Reuses the bonus resolver's date arithmetic so the
  dashboard and the client list can never disagree about who is active.

WINDOWS:
  - New clients:       created within the current calendar month
  - Active bonuses:    effective status pendiente or alerta_5_meses
  - Birthdays:         next 7 days, compared by this year's calendar date.
                       Year wraparound is NOT handled: a January 2 birthday
                       is invisible on December 29. Known limitation kept
                       on purpose; see DESIGN.md.
  - Expiring bonuses:  Pending records whose computed expiry falls within
                       the next 7 days
*/
package stats

import (
	"github.com/solera/salon-engine/bonus"
	"github.com/solera/salon-engine/core"
)

// =============================================================================
// INPUT / OUTPUT
// =============================================================================

// ClientWithBonuses pairs a client with its full bonus history.
type ClientWithBonuses struct {
	Client  core.Client
	Bonuses []core.BonusRecord
}

type Stats struct {
	TotalClients        int `json:"total_clients"`
	NewClientsThisMonth int `json:"new_clients_this_month"`
	ActiveBonuses       int `json:"active_bonuses"`
	UpcomingBirthdays   int `json:"upcoming_birthdays"`
	ExpiringBonuses     int `json:"expiring_bonuses"`
}

// =============================================================================
// AGGREGATION
// =============================================================================

const windowDays = 7

// Compute derives the dashboard stats at the given instant.
func Compute(clients []ClientWithBonuses, now core.TimePoint) Stats {
	s := Stats{TotalClients: len(clients)}
	windowEnd := now.AddDays(windowDays)

	for _, c := range clients {
		if c.Client.CreatedAt.SameCalendarMonth(now) {
			s.NewClientsThisMonth++
		}

		if bonus.Resolve(c.Client, c.Bonuses, now).Status.Live() {
			s.ActiveBonuses++
		}

		if birthdayInWindow(c.Client.BirthDate, now, windowEnd) {
			s.UpcomingBirthdays++
		}

		for _, b := range c.Bonuses {
			if b.State != core.BonusPending {
				continue
			}
			expiry := bonus.ExpiryOf(b)
			if expiry.AfterOrEqual(now) && expiry.BeforeOrEqual(windowEnd) {
				s.ExpiringBonuses++
			}
		}
	}
	return s
}

// birthdayInWindow projects the birth date onto the current year and
// checks it against [now, windowEnd]. A birthday early in January is not
// found from late December: the projection stays in now's year.
func birthdayInWindow(birth, now, windowEnd core.TimePoint) bool {
	if birth.IsZero() {
		return false
	}
	thisYear := core.NewTimePoint(now.Year(), birth.Month(), birth.Day())
	return thisYear.AfterOrEqual(now) && thisYear.BeforeOrEqual(windowEnd)
}
