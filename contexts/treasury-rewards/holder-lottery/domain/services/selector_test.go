package services

import (
	"math/rand/v2"
	"testing"

	"holderdrop/contexts/treasury-rewards/holder-lottery/domain/entities"
	domainerrors "holderdrop/contexts/treasury-rewards/holder-lottery/domain/errors"

	"github.com/stretchr/testify/require"
)

func population() []entities.HolderRecord {
	return []entities.HolderRecord{
		{Address: "A", Balance: 1000},
		{Address: "B", Balance: 500},
		{Address: "C", Balance: 300},
		{Address: "D", Balance: 200},
	}
}

func TestEligibleHoldersDropsLargestAndWeights(t *testing.T) {
	weighted := EligibleHolders(population(), nil)

	require.Len(t, weighted, 3)
	require.Equal(t, "B", weighted[0].Address)
	require.InDelta(t, 0.5, weighted[0].Weight, 1e-12)
	require.InDelta(t, 0.3, weighted[1].Weight, 1e-12)
	require.InDelta(t, 0.2, weighted[2].Weight, 1e-12)
	require.InDelta(t, 0.8, weighted[1].CumulativeWeight, 1e-12)
	require.Equal(t, 1.0, weighted[2].CumulativeWeight)
}

func TestSelectWinnerInverseCDF(t *testing.T) {
	cases := []struct {
		draw float64
		want string
	}{
		{draw: 0, want: "B"},
		{draw: 0.45, want: "B"},
		{draw: 0.5, want: "B"},
		{draw: 0.51, want: "C"},
		{draw: 0.8, want: "C"},
		{draw: 0.95, want: "D"},
		{draw: 0.999999, want: "D"},
		{draw: -3, want: "B"},
		{draw: 7, want: "D"},
	}
	for _, tc := range cases {
		winner, err := SelectWinner(population(), nil, tc.draw)
		require.NoError(t, err)
		require.Equal(t, tc.want, winner.Address, "draw %v", tc.draw)
	}
}

func TestSelectWinnerNeverReturnsTopHolder(t *testing.T) {
	_, err := SelectWinner([]entities.HolderRecord{{Address: "Only", Balance: 10}}, nil, 0.3)
	require.ErrorIs(t, err, domainerrors.ErrNoEligibleHolder)

	winner, err := SelectWinner([]entities.HolderRecord{
		{Address: "Small", Balance: 1},
		{Address: "Big", Balance: 99},
	}, nil, 0.99)
	require.NoError(t, err)
	require.Equal(t, "Small", winner.Address)
	require.Equal(t, 1.0, winner.Weight)
}

func TestSelectWinnerTiedMaximaDropsOneDeterministically(t *testing.T) {
	holders := []entities.HolderRecord{
		{Address: "Zed", Balance: 700},
		{Address: "Amy", Balance: 700},
		{Address: "Bob", Balance: 100},
	}
	weighted := EligibleHolders(holders, nil)
	require.Len(t, weighted, 2)
	require.Equal(t, "Zed", weighted[0].Address, "the tied maximum sorting first by address is removed")
	require.Equal(t, "Bob", weighted[1].Address)
}

func TestSelectWinnerExclusionsAndEmptyPopulations(t *testing.T) {
	excluded := map[string]struct{}{"B": {}, "D": {}}
	winner, err := SelectWinner(population(), excluded, 0.9)
	require.NoError(t, err)
	require.Equal(t, "C", winner.Address)

	_, err = SelectWinner(nil, nil, 0.5)
	require.ErrorIs(t, err, domainerrors.ErrNoEligibleHolder)

	_, err = SelectWinner([]entities.HolderRecord{
		{Address: "A", Balance: 0},
		{Address: "", Balance: 50},
		{Address: "B", Balance: 0},
	}, nil, 0.5)
	require.ErrorIs(t, err, domainerrors.ErrNoEligibleHolder)
}

func TestSelectionFrequencyConvergesToWeights(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 7))
	const draws = 200_000

	counts := map[string]int{}
	for i := 0; i < draws; i++ {
		winner, err := SelectWinner(population(), nil, rng.Float64())
		require.NoError(t, err)
		counts[winner.Address]++
	}

	require.Zero(t, counts["A"])
	require.InDelta(t, 0.5, float64(counts["B"])/draws, 0.01)
	require.InDelta(t, 0.3, float64(counts["C"])/draws, 0.01)
	require.InDelta(t, 0.2, float64(counts["D"])/draws, 0.01)
}
