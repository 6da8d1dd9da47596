/*
seed.go - Demo dataset for testing and demonstrations

PURPOSE:
  Populates the store with realistic salon data so the API can be
  exercised immediately: staff with different commission rates, clients
  whose bonuses sit in every lifecycle stage, a settled invoice, and a
  handful of appointments.

DATASET SHAPE:
  Staff:
    Valentina (stylist, 30%), Camila (colorist, 25%), Lucía (reception, 0%)
  Clients:
    - Mariana: fresh bonus, well inside the 6-month window
    - Paula:   bonus issued 5+ months ago, in the alert window
    - Ana:     bonus past its expiry date
    - Sofía:   bonus already redeemed
  Plus one invoice with commission lines, one partial payout, and
  upcoming appointments.

USAGE VIA API:
  POST /api/admin/seed

NOTE:
  Seeding does not clear existing data. Only use in development/demo
  environments.

SEE ALSO:
  - handlers.go: LoadSeed endpoint
*/
package api

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/solera/salon-engine/commission"
	"github.com/solera/salon-engine/core"
)

// Seed loads the demo dataset. IDs are fixed so repeated seeding
// overwrites rather than duplicates (bonus issuance excepted).
func Seed(ctx context.Context, store core.TxStore) error {
	now := core.Now()

	employees := []core.Employee{
		{
			ID:             "emp-valentina",
			Name:           "Valentina Ríos",
			Role:           "estilista",
			CommissionRate: decimal.NewFromInt(30),
			Active:         true,
			CreatedAt:      now.AddMonths(-18),
		},
		{
			ID:             "emp-camila",
			Name:           "Camila Duarte",
			Role:           "colorista",
			CommissionRate: decimal.NewFromInt(25),
			Active:         true,
			CreatedAt:      now.AddMonths(-12),
		},
		{
			ID:             "emp-lucia",
			Name:           "Lucía Paredes",
			Role:           "recepción",
			CommissionRate: decimal.Zero,
			Active:         true,
			CreatedAt:      now.AddMonths(-6),
		},
	}
	for _, e := range employees {
		if err := store.SaveEmployee(ctx, e); err != nil {
			return err
		}
	}

	type seedClient struct {
		client core.Client
		bonus  core.BonusRecord
	}

	clients := []seedClient{
		{
			// Fresh bonus, comfortably inside the window.
			client: core.Client{
				ID:        "cli-mariana",
				Name:      "Mariana Torres",
				Email:     "mariana@example.com",
				Phone:     "+57 300 111 2233",
				BirthDate: birthday(now, 3),
				CreatedAt: now.AddMonths(-1),
			},
			bonus: core.BonusRecord{
				ID:        "bon-mariana-1",
				ClientID:  "cli-mariana",
				State:     core.BonusPending,
				CreatedAt: now.AddMonths(-1),
			},
		},
		{
			// Issued just past the 5-month mark: alert territory.
			client: core.Client{
				ID:        "cli-paula",
				Name:      "Paula Herrera",
				Email:     "paula@example.com",
				Phone:     "+57 300 222 3344",
				CreatedAt: now.AddMonths(-6),
			},
			bonus: core.BonusRecord{
				ID:        "bon-paula-1",
				ClientID:  "cli-paula",
				State:     core.BonusPending,
				CreatedAt: now.AddMonths(-5).AddDays(-10),
			},
		},
		{
			// Stored Pending but past expiry: resolves as expired.
			client: core.Client{
				ID:        "cli-ana",
				Name:      "Ana Beltrán",
				Phone:     "+57 300 333 4455",
				CreatedAt: now.AddMonths(-9),
			},
			bonus: core.BonusRecord{
				ID:        "bon-ana-1",
				ClientID:  "cli-ana",
				State:     core.BonusPending,
				CreatedAt: now.AddMonths(-8),
			},
		},
		{
			// Redeemed three months ago.
			client: core.Client{
				ID:        "cli-sofia",
				Name:      "Sofía Cárdenas",
				Email:     "sofia@example.com",
				BirthDate: birthday(now, 45),
				CreatedAt: now.AddMonths(-7),
			},
			bonus: core.BonusRecord{
				ID:         "bon-sofia-1",
				ClientID:   "cli-sofia",
				State:      core.BonusRedeemed,
				CreatedAt:  now.AddMonths(-5),
				RedeemedAt: now.AddMonths(-3),
			},
		},
	}

	err := store.WithTx(ctx, func(tx core.Store) error {
		for _, sc := range clients {
			if err := tx.SaveClient(ctx, sc.client); err != nil {
				return err
			}
			if err := tx.SaveBonus(ctx, sc.bonus); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	// One invoice through the real finalizer so the commission snapshots
	// come out exactly as production writes them.
	finalizer := commission.NewFinalizer(store)
	_, err = finalizer.Finalize(ctx, commission.FinalizeInput{
		ClientID:      "cli-mariana",
		PaymentMethod: "Efectivo",
		Lines: []core.InvoiceLine{
			{Description: "Corte y peinado", Quantity: 1, UnitPrice: core.NewMoneyFromInt(50000), EmployeeID: "emp-valentina"},
			{Description: "Tinte completo", Quantity: 1, UnitPrice: core.NewMoneyFromInt(120000), EmployeeID: "emp-camila"},
			{Description: "Shampoo premium", Quantity: 2, UnitPrice: core.NewMoneyFromInt(18000)},
		},
	}, now.AddDays(-3))
	if err != nil {
		return err
	}

	// A partial payout so one balance shows a remainder.
	settlement := commission.NewSettlementEngine(store)
	_, err = settlement.Pay(ctx, commission.PaymentRequest{
		EmployeeID:     "emp-valentina",
		Amount:         core.NewMoneyFromInt(10000),
		IdempotencyKey: "seed-valentina-1",
	}, now)
	if err != nil && !errors.Is(err, core.ErrDuplicateIdempotencyKey) {
		return err
	}

	appointments := []core.Appointment{
		{
			ID:        "apt-1",
			ClientID:  "cli-mariana",
			At:        now.AddDays(2),
			Service:   "Corte y peinado",
			Status:    core.AppointmentScheduled,
			PayStatus: core.PaymentPending,
			CreatedAt: now,
		},
		{
			ID:        "apt-2",
			ClientID:  "cli-paula",
			At:        now.AddDays(5),
			Service:   "Manicure",
			Status:    core.AppointmentScheduled,
			PayStatus: core.PaymentPending,
			CreatedAt: now,
		},
		{
			ID:        "apt-3",
			ClientID:  "cli-sofia",
			At:        now.AddDays(-7),
			Service:   "Tinte completo",
			Status:    core.AppointmentCompleted,
			PayStatus: core.PaymentPaid,
			CreatedAt: now.AddDays(-10),
		},
	}
	for _, a := range appointments {
		if err := store.SaveAppointment(ctx, a); err != nil {
			return err
		}
	}

	return nil
}

// birthday builds a birth date whose next occurrence is daysAhead from
// now, with an arbitrary birth year in the past.
func birthday(now core.TimePoint, daysAhead int) core.TimePoint {
	next := now.AddDays(daysAhead)
	return core.NewTimePoint(1990, next.Month(), next.Day())
}
