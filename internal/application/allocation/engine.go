// Package allocation derives lot statuses from a purchase's payment history.
package allocation

import (
	"sort"

	"siglo-backend/internal/domain"

	"github.com/shopspring/decimal"
)

// LotShare is the engine's view of a lot: identity and list price.
type LotShare struct {
	ID    uint
	Price decimal.Decimal
}

// Outcome names the branch of the algorithm that produced an Allocation.
type Outcome string

const (
	OutcomeEmpty   Outcome = "empty"
	OutcomeSettled Outcome = "settled"
	OutcomeUnpaid  Outcome = "unpaid"
	OutcomePartial Outcome = "partial"
)

// Allocation is the result of ComputeStatuses.
type Allocation struct {
	Statuses         map[uint]domain.LotStatus
	Targets          map[uint]decimal.Decimal
	ContractualTotal decimal.Decimal
	TotalTargets     decimal.Decimal
	TotalPaid        decimal.Decimal
	Outcome          Outcome
}

// ComputeStatuses assigns a status to every lot of a purchase.
//
// total is the purchase's contractual total; zero means unset and falls back to
// the sum of lot prices. Each lot's target is its price-proportional share of
// that total. When the applicable payments cover every target all lots are
// SOLD; with nothing paid all lots are AVAILABLE. Otherwise lots are settled
// greedily from the highest target down (lower id first on ties): a lot is SOLD
// when the remaining paid amount covers its target, RESERVED otherwise.
func ComputeStatuses(lots []LotShare, payments []decimal.Decimal, total decimal.Decimal) Allocation {
	out := Allocation{
		Statuses:  make(map[uint]domain.LotStatus, len(lots)),
		Targets:   make(map[uint]decimal.Decimal, len(lots)),
		TotalPaid: decimal.Zero,
		Outcome:   OutcomeEmpty,
	}
	if len(lots) == 0 {
		return out
	}

	sumPrices := decimal.Zero
	for _, l := range lots {
		sumPrices = sumPrices.Add(l.Price)
	}

	contractual := total
	if contractual.IsZero() {
		contractual = sumPrices
	}
	out.ContractualTotal = contractual

	ordered := assignTargets(out.Targets, lots, contractual, sumPrices)
	totalTargets := decimal.Zero
	for _, t := range out.Targets {
		totalTargets = totalTargets.Add(t)
	}
	out.TotalTargets = totalTargets

	for _, p := range payments {
		out.TotalPaid = out.TotalPaid.Add(p)
	}

	if totalTargets.IsPositive() && out.TotalPaid.GreaterThanOrEqual(totalTargets) {
		out.Outcome = OutcomeSettled
		for _, l := range lots {
			out.Statuses[l.ID] = domain.LotSold
		}
		return out
	}

	if !out.TotalPaid.IsPositive() {
		out.Outcome = OutcomeUnpaid
		for _, l := range lots {
			out.Statuses[l.ID] = domain.LotAvailable
		}
		return out
	}

	out.Outcome = OutcomePartial
	remaining := out.TotalPaid
	for _, l := range ordered {
		target := out.Targets[l.ID]
		if target.IsPositive() && remaining.GreaterThanOrEqual(target) {
			out.Statuses[l.ID] = domain.LotSold
			remaining = remaining.Sub(target)
			continue
		}
		out.Statuses[l.ID] = domain.LotReserved
	}
	return out
}

// targetPrecision is the number of decimal places kept in a lot's target.
const targetPrecision = 16

// assignTargets fills targets with each lot's share of contractual and returns
// the lots in settlement order: highest target first, lower id on ties.
//
// Shares are truncated toward zero and the truncation remainder goes to the
// first lot in settlement order, so the targets always add up to contractual
// exactly and the order is unchanged. With a zero price sum every target is 0.
func assignTargets(targets map[uint]decimal.Decimal, lots []LotShare, contractual, sumPrices decimal.Decimal) []LotShare {
	allotted := decimal.Zero
	for _, l := range lots {
		target := decimal.Zero
		if sumPrices.IsPositive() {
			target, _ = l.Price.Mul(contractual).QuoRem(sumPrices, targetPrecision)
		}
		targets[l.ID] = target
		allotted = allotted.Add(target)
	}

	ordered := make([]LotShare, len(lots))
	copy(ordered, lots)
	sort.SliceStable(ordered, func(i, j int) bool {
		if c := targets[ordered[i].ID].Cmp(targets[ordered[j].ID]); c != 0 {
			return c > 0
		}
		return ordered[i].ID < ordered[j].ID
	})

	if sumPrices.IsPositive() {
		first := ordered[0].ID
		targets[first] = targets[first].Add(contractual.Sub(allotted))
	}
	return ordered
}

// SharesOf converts loaded lots into engine inputs.
func SharesOf(lots []domain.Lot) []LotShare {
	shares := make([]LotShare, len(lots))
	for i, l := range lots {
		shares[i] = LotShare{ID: l.ID, Price: l.Price}
	}
	return shares
}
