package entities

type HolderRecord struct {
	Address string
	Balance uint64
}

type WeightedHolder struct {
	HolderRecord
	Weight           float64
	CumulativeWeight float64
}
