package eventfilter

import (
	"context"
	"math"
	"math/rand"
	"time"

	"go.uber.org/atomic"
)

const (
	minWait     = 0.5
	maxWait     = 8.0
	waitStddev  = 0.1
	pollTimeout = time.Second * 120
)

// filter is one installed node filter plus its polling state. All fields
// besides wait are owned by the filter's worker; wait is published for
// observability.
type filter struct {
	spec      Spec
	id        string
	empties   int
	wait      atomic.Float64
	lastBlock uint64
}

// recordError notes a transport failure or timeout. Errors push the backoff
// twice as hard as an empty poll.
func (f *filter) recordError() {
	f.empties += 2
}

func (f *filter) recordEmpty() {
	f.empties++
}

func (f *filter) recordResults() {
	f.empties = 0
}

// nextWait computes the delay before the next poll and publishes it.
func (f *filter) nextWait() float64 {
	wait := minWait
	if f.spec.Backoff {
		wait = clamp(math.Exp2(float64(f.empties-2))-1, minWait, maxWait)
	}
	f.wait.Store(wait)
	return wait
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

// sleep waits for target seconds jittered with a small gaussian spread, so a
// set of filters installed together doesn't poll in lock step. Returns false
// when the context is done.
func sleep(ctx context.Context, target float64) bool {
	jittered := rand.NormFloat64()*waitStddev + target
	if jittered < 0 {
		jittered = 0
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(time.Duration(jittered * float64(time.Second))):
		return true
	}
}
