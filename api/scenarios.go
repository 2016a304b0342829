/*
scenarios.go - Demo data loader for development

PURPOSE:
  Populates an empty ledger with a small, realistic data set so the
  dashboard and listings have something to show: a stocked warehouse,
  two moderators and a handful of customer accounts.

WHAT IT CREATES:
  - TotalBottles with 1000 bottles
  - moderators "demo-north" and "demo-harbour" (password "demo-pass")
  - three customers, one of them holding deposit bottles
  - one issued day for demo-north with two deliveries

NOTE:
  Every record goes through bottles.Service, so the demo data obeys the
  same rules as real traffic. Seeding an already initialized ledger is a
  conflict; only use against a fresh database.

USAGE:
  ./server -seed   (development only)

SEE ALSO:
  - cmd/server/main.go: -seed flag
*/
package api

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/bottle-ledger/auth"
	"github.com/warp/bottle-ledger/bottles"
	"github.com/warp/bottle-ledger/ledger"
)

const demoPassword = "demo-pass"

// SeedResult names what SeedDemo created.
type SeedResult struct {
	Moderators []string
	Customers  []string
	Deliveries int
}

var demoCustomers = []bottles.CustomerInput{
	{Name: "Hotel Sunrise", Phone: "+9607770001", Address: "Boduthakurufaanu Magu", Deposit: 20, BottlePrice: decimal.NewFromInt(12)},
	{Name: "Corner Cafe", Phone: "+9607770002", Address: "Majeedhee Magu", BottlePrice: decimal.NewFromInt(15)},
	{Name: "Island Clinic", Address: "Sosun Magu", BottlePrice: decimal.RequireFromString("13.50")},
}

// SeedDemo loads the demo data set as the system administrator.
func SeedDemo(ctx context.Context, svc *bottles.Service) (SeedResult, error) {
	admin := auth.WithActor(ctx, auth.Actor{ID: "seed", Role: ledger.RoleAdmin, Name: "seed"})
	var res SeedResult

	if _, err := svc.InitTotalBottles(admin, 1000); err != nil {
		return res, fmt.Errorf("seed stock: %w", err)
	}

	for _, m := range []bottles.ModeratorInput{
		{Name: "demo-north", Phone: "+9607771001", Password: demoPassword, Areas: []string{"north"}, Active: true},
		{Name: "demo-harbour", Phone: "+9607771002", Password: demoPassword, Areas: []string{"harbour"}, Active: true},
	} {
		created, err := svc.CreateModerator(admin, m)
		if err != nil {
			return res, fmt.Errorf("seed moderator %s: %w", m.Name, err)
		}
		res.Moderators = append(res.Moderators, created.ID)
	}

	for _, c := range demoCustomers {
		created, err := svc.CreateCustomer(admin, c)
		if err != nil {
			return res, fmt.Errorf("seed customer %s: %w", c.Name, err)
		}
		res.Customers = append(res.Customers, created.Customer.ID)
	}

	north := res.Moderators[0]
	if _, err := svc.AddUpdateBottleUsage(admin, bottles.IssueRequest{ModeratorID: north, Filled: 60, Caps: 10}); err != nil {
		return res, fmt.Errorf("seed issue: %w", err)
	}
	for i, d := range []bottles.DeliveryInput{
		{Filled: 12, Empty: 10, Payment: decimal.NewFromInt(144)},
		{Filled: 6, Empty: 4, Damaged: 1, FOC: 1, Payment: decimal.NewFromInt(60)},
	} {
		d.CustomerID = res.Customers[i]
		d.ModeratorID = north
		if _, err := svc.CreateDelivery(admin, d); err != nil {
			return res, fmt.Errorf("seed delivery: %w", err)
		}
		res.Deliveries++
	}
	return res, nil
}
