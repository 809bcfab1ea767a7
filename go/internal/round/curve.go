package round

import (
	"math"
	"time"
)

// curveRate fixes the multiplier growth: 1.00 at t=0, ~2.00 at t=10s.
const curveRate = 0.06931471805599453 // ln(2)/10

// CurveAt returns the crash multiplier after elapsed seconds of a running
// round, floored to cents.
func CurveAt(elapsed float64) float64 {
	if elapsed <= 0 {
		return 1.0
	}
	return math.Floor(math.Exp(curveRate*elapsed)*100) / 100
}

// TimeToReach returns how long a run takes for the curve to reach the given
// multiplier, used by the croupier to schedule the crash deadline.
func TimeToReach(multiplier float64) time.Duration {
	if multiplier <= 1.0 {
		return 0
	}
	secs := math.Log(multiplier) / curveRate
	return time.Duration(secs * float64(time.Second))
}
