// Package shuffle derives a stable per-user ordering of dataset entries.
//
// The order is a pure function of (user id, dataset id, id list): nothing is
// persisted, and the same inputs always produce the same permutation. Two
// users on the same dataset see different orders.
package shuffle

import "unicode/utf16"

const (
	modulus    = 1 << 31
	multiplier = 1664525
	increment  = 1013904223
)

// Seed folds userID+datasetID into a 31-bit seed over its UTF-16 code units.
func Seed(userID, datasetID string) uint32 {
	var seed uint64
	for _, c := range utf16.Encode([]rune(userID + datasetID)) {
		seed = (seed*31 + uint64(c)) % modulus
	}
	return uint32(seed)
}

// LCG is a linear congruential generator over [0, 2^31).
type LCG struct {
	state uint64
}

// NewLCG returns a generator starting at seed.
func NewLCG(seed uint32) *LCG {
	return &LCG{state: uint64(seed) % modulus}
}

// Next advances the generator and returns a value in [0, 1).
func (g *LCG) Next() float64 {
	g.state = (g.state*multiplier + increment) % modulus
	return float64(g.state) / modulus
}

// Order returns a permutation of ids unique to the user and dataset.
// The input slice is not modified. An empty key yields the identity order.
func Order(userID, datasetID string, ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)

	if userID+datasetID == "" || len(out) < 2 {
		return out
	}

	rng := NewLCG(Seed(userID, datasetID))
	for i := len(out) - 1; i > 0; i-- {
		j := int(rng.Next() * float64(i+1))
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Positions maps each id to its index in order.
func Positions(order []string) map[string]int {
	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	return pos
}
