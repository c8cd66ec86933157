package schedule

import (
	"math/rand"
	"time"
)

// Pause returns a whole-second duration drawn uniformly from [min, max].
// If max is not above min, min is returned.
func Pause(r *rand.Rand, min, max time.Duration) time.Duration {
	lo, hi := int64(min/time.Second), int64(max/time.Second)
	if hi <= lo {
		return min
	}
	return time.Duration(lo+r.Int63n(hi-lo+1)) * time.Second
}
