package gcassign

import (
	"crypto/rand"
	"math/big"
)

// selectWeighted draws one candidate with probability proportional to
// 1 - min(load_ratio, 0.99) (spec §4.7), using a cryptographic RNG. On RNG
// failure it falls back to the least-loaded candidate deterministically.
// cands must be non-empty.
func selectWeighted(cands []candidate) candidate {
	weights := make([]float64, len(cands))
	var total float64
	for i, c := range cands {
		lr := c.LoadRatio
		if lr > 0.99 {
			lr = 0.99
		}
		weights[i] = 1 - lr
		total += weights[i]
	}

	if total <= 0 {
		return leastLoaded(cands)
	}

	// Scale to a fixed-point integer range for crypto/rand.Int, which only
	// draws uniform integers.
	const scale = 1 << 24
	n, err := rand.Int(rand.Reader, big.NewInt(int64(total*scale)))
	if err != nil {
		return leastLoaded(cands)
	}
	target := float64(n.Int64()) / scale

	var cumulative float64
	for i, w := range weights {
		cumulative += w
		if target < cumulative {
			return cands[i]
		}
	}
	return cands[len(cands)-1]
}

func leastLoaded(cands []candidate) candidate {
	best := cands[0]
	for _, c := range cands[1:] {
		if c.LoadRatio < best.LoadRatio {
			best = c
		}
	}
	return best
}
