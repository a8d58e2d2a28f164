package collective

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// #region noiser
// Noiser draws zero-centred Laplace noise at the given scale.
type Noiser interface {
	Laplace(scale float64) float64
}

// laplaceNoise samples by inverse CDF from a uniform source. This is a
// simplified mechanism with no composition accounting.
type laplaceNoise struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewLaplaceNoise returns a Noiser over rng, or a time-seeded source when rng is nil.
func NewLaplaceNoise(rng *rand.Rand) Noiser {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, ^seed))
	}
	return &laplaceNoise{rng: rng}
}

func (l *laplaceNoise) Laplace(scale float64) float64 {
	if scale <= 0 {
		return 0
	}
	l.mu.Lock()
	u := l.rng.Float64() - 0.5
	l.mu.Unlock()

	tail := 1 - 2*math.Abs(u)
	if tail <= 0 {
		tail = math.SmallestNonzeroFloat64
	}
	if u < 0 {
		return scale * math.Log(tail)
	}
	return -scale * math.Log(tail)
}

// #endregion noiser

// #region privatize
// privatize applies noise to a cohort mean over n scores in [-1, 1] and to
// its usage count. Mean sensitivity is 2/n, count sensitivity 1.
func privatize(n Noiser, epsilon, avg float64, count int) (float64, int) {
	noisyAvg := avg + n.Laplace(2/(float64(count)*epsilon))
	noisyAvg = math.Max(-1, math.Min(1, noisyAvg))

	noisyCount := int(math.Round(float64(count) + n.Laplace(1/epsilon)))
	if noisyCount < 0 {
		noisyCount = 0
	}
	return noisyAvg, noisyCount
}

// #endregion privatize
