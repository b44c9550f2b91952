package thermal

import (
	"math"
	"time"

	"controlling_hottub/internal/models"
)

// ProjectCooling applies Newton's law of cooling for the given minutes.
func ProjectCooling(currentF, ambientF, k, minutes float64) float64 {
	if minutes <= 0 {
		return currentF
	}
	return ambientF + (currentF-ambientF)*math.Exp(-k*minutes)
}

// CoolingK picks the decay constant for the window [from, to]: the period
// containing the window midpoint wins, the other period is the fallback.
func CoolingK(c models.Characteristics, from, to time.Time, opts Options) (float64, bool) {
	mid := from.Add(to.Sub(from) / 2)
	first, second := c.CoolingKNight, c.CoolingKDay
	if opts.isDay(mid) {
		first, second = c.CoolingKDay, c.CoolingKNight
	}
	if first != nil && *first >= 0 {
		return *first, true
	}
	if second != nil && *second >= 0 {
		return *second, true
	}
	return 0, false
}

// HeatMinutes is the time needed to raise the water by deltaF, startup lag
// included.
func HeatMinutes(deltaF, velocityFPerMin, lagMinutes float64) float64 {
	if deltaF <= 0 {
		return 0
	}
	return lagMinutes + deltaF/velocityFPerMin
}
