package services

import (
	"sort"
	"strings"

	"holderdrop/contexts/treasury-rewards/holder-lottery/domain/entities"
	domainerrors "holderdrop/contexts/treasury-rewards/holder-lottery/domain/errors"
)

// EligibleHolders applies the eligibility policy and returns the weighted
// population in selection order.
//
// Policy, in order: drop empty balances, drop excluded addresses, sort by
// balance descending then address ascending, drop the single largest holder
// (assumed to be the liquidity pool), then weight the rest by balance.
// Cumulative weights come from integer prefix sums so the last entry is
// exactly 1.0.
func EligibleHolders(holders []entities.HolderRecord, excluded map[string]struct{}) []entities.WeightedHolder {
	filtered := make([]entities.HolderRecord, 0, len(holders))
	for _, holder := range holders {
		if holder.Balance == 0 {
			continue
		}
		address := strings.TrimSpace(holder.Address)
		if address == "" {
			continue
		}
		if _, skip := excluded[address]; skip {
			continue
		}
		filtered = append(filtered, entities.HolderRecord{Address: address, Balance: holder.Balance})
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].Balance != filtered[j].Balance {
			return filtered[i].Balance > filtered[j].Balance
		}
		return filtered[i].Address < filtered[j].Address
	})
	if len(filtered) <= 1 {
		return nil
	}
	filtered = filtered[1:]

	var total uint64
	for _, holder := range filtered {
		total += holder.Balance
	}
	if total == 0 {
		return nil
	}

	weighted := make([]entities.WeightedHolder, 0, len(filtered))
	var prefix uint64
	for _, holder := range filtered {
		prefix += holder.Balance
		weighted = append(weighted, entities.WeightedHolder{
			HolderRecord:     holder,
			Weight:           float64(holder.Balance) / float64(total),
			CumulativeWeight: float64(prefix) / float64(total),
		})
	}
	return weighted
}

// SelectWinner draws one holder by inverse CDF: the first holder whose
// cumulative weight is >= draw. draw must be uniform in [0, 1); values outside
// that range are clamped.
func SelectWinner(
	holders []entities.HolderRecord,
	excluded map[string]struct{},
	draw float64,
) (entities.WeightedHolder, error) {
	weighted := EligibleHolders(holders, excluded)
	if len(weighted) == 0 {
		return entities.WeightedHolder{}, domainerrors.ErrNoEligibleHolder
	}
	return pick(weighted, clampDraw(draw)), nil
}

func pick(weighted []entities.WeightedHolder, draw float64) entities.WeightedHolder {
	for _, holder := range weighted {
		if holder.CumulativeWeight >= draw {
			return holder
		}
	}
	// Only reachable through rounding.
	return weighted[len(weighted)-1]
}

func clampDraw(draw float64) float64 {
	if draw != draw || draw < 0 {
		return 0
	}
	if draw >= 1 {
		return 1
	}
	return draw
}
