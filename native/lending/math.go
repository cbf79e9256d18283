package lending

import "math/big"

const (
	basisPoints    = 10_000
	secondsPerYear = 31_536_000
)

var maxUint64 = new(big.Int).SetUint64(^uint64(0))

// satAdd returns a+b clamped at the u64 ceiling. Monetary aggregates never
// wrap; they saturate.
func satAdd(a, b uint64) uint64 {
	sum := a + b
	if sum < a {
		return ^uint64(0)
	}
	return sum
}

// satSub returns a-b floored at zero.
func satSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

// mulDivBps computes amount*bps/10000 with a wide intermediate, truncating
// toward zero and clamping the result into u64. The truncation direction is
// load-bearing for collateral compatibility.
func mulDivBps(amount uint64, bps uint16) uint64 {
	product := new(big.Int).SetUint64(amount)
	product.Mul(product, big.NewInt(int64(bps)))
	product.Quo(product, big.NewInt(basisPoints))
	return clampUint64(product)
}

// interestFor computes principal*rate*elapsed/(secondsPerYear*10000) with a
// wide intermediate so the triple product cannot overflow before the final
// division.
func interestFor(principal uint64, rateBps uint16, elapsedSeconds int64) uint64 {
	if principal == 0 || rateBps == 0 || elapsedSeconds <= 0 {
		return 0
	}
	product := new(big.Int).SetUint64(principal)
	product.Mul(product, big.NewInt(int64(rateBps)))
	product.Mul(product, big.NewInt(elapsedSeconds))
	product.Quo(product, big.NewInt(secondsPerYear*basisPoints))
	return clampUint64(product)
}

func clampUint64(v *big.Int) uint64 {
	if v.Sign() <= 0 {
		return 0
	}
	if v.Cmp(maxUint64) > 0 {
		return ^uint64(0)
	}
	return v.Uint64()
}
