package thermal

import (
	"errors"
	"math"
	"time"

	"controlling_hottub/internal/models"
)

// ErrNoSessions is returned when no usable heating session was found.
var ErrNoSessions = errors.New("no valid heating sessions")

// Options are the fixed analysis constants.
type Options struct {
	LagThresholdF   float64
	OvershootWindow time.Duration
	SettleBuffer    time.Duration
	DayStartHour    int
	NightStartHour  int
	// Location is the frame day and night are judged in.
	Location *time.Location
	// MinAmbientGapF is the smallest water-ambient difference a Newton
	// coefficient is derived from.
	MinAmbientGapF float64
}

func DefaultOptions() Options {
	return Options{
		LagThresholdF:   0.5,
		OvershootWindow: 30 * time.Minute,
		SettleBuffer:    30 * time.Minute,
		DayStartHour:    6,
		NightStartHour:  22,
		Location:        time.Local,
		MinAmbientGapF:  1,
	}
}

func (o Options) isDay(t time.Time) bool {
	loc := o.Location
	if loc == nil {
		loc = time.Local
	}
	h := t.In(loc).Hour()
	return h >= o.DayStartHour && h < o.NightStartHour
}

// SessionStats are the per-session fitted values.
type SessionStats struct {
	StartupLagMinutes      float64
	HeatingVelocityFPerMin float64
	OvershootF             float64
}

// CoolingSegment is one contiguous same-period cooling run.
type CoolingSegment struct {
	Day         bool
	SlopePerMin float64
	// K is the Newton coefficient, nil when ambient was unknown or too close.
	K *float64
}

// Sessions pairs each heater on with the off that directly follows it and
// attaches readings from on until the end of the overshoot window.
func Sessions(switches []Switch, readings []models.TemperatureReading, opts Options) []models.HeatingSession {
	var (
		out  []models.HeatingSession
		onAt *time.Time
	)
	for i := range switches {
		sw := switches[i]
		if sw.On {
			onAt = &switches[i].At
			continue
		}
		if onAt == nil {
			continue
		}
		s := models.HeatingSession{OnAt: *onAt, OffAt: sw.At}
		end := sw.At.Add(opts.OvershootWindow)
		for _, r := range readings {
			if !r.RecordedAt.Before(s.OnAt) && !r.RecordedAt.After(end) {
				s.Readings = append(s.Readings, r)
			}
		}
		out = append(out, s)
		onAt = nil
	}
	return out
}

// AnalyzeSession fits lag, velocity and overshoot. ok is false for sessions
// that must be discarded.
func AnalyzeSession(s models.HeatingSession, opts Options) (SessionStats, bool) {
	var heating, after []models.TemperatureReading
	for _, r := range s.Readings {
		if r.RecordedAt.After(s.OffAt) {
			after = append(after, r)
		} else {
			heating = append(heating, r)
		}
	}
	if len(heating) < 2 {
		return SessionStats{}, false
	}

	minutes := func(t time.Time) float64 { return t.Sub(s.OnAt).Minutes() }

	baseline := heating[0].WaterTempF
	lagAt := -1.0
	for _, r := range heating {
		if r.WaterTempF-baseline >= opts.LagThresholdF {
			lagAt = minutes(r.RecordedAt)
			break
		}
	}
	if lagAt < 0 {
		return SessionStats{}, false
	}

	var xs, ys []float64
	for _, r := range heating {
		if m := minutes(r.RecordedAt); m >= lagAt {
			xs = append(xs, m)
			ys = append(ys, r.WaterTempF)
		}
	}
	velocity, ok := Slope(xs, ys)
	if !ok {
		first, last := heating[0], heating[len(heating)-1]
		span := last.RecordedAt.Sub(first.RecordedAt).Minutes()
		if span <= 0 {
			return SessionStats{}, false
		}
		velocity = (last.WaterTempF - first.WaterTempF) / span
	}
	if velocity <= 0 || math.IsNaN(velocity) {
		return SessionStats{}, false
	}

	atOff := heating[len(heating)-1].WaterTempF
	overshoot := 0.0
	for _, r := range after {
		if d := r.WaterTempF - atOff; d > overshoot {
			overshoot = d
		}
	}

	return SessionStats{
		StartupLagMinutes:      lagAt,
		HeatingVelocityFPerMin: velocity,
		OvershootF:             overshoot,
	}, true
}

// CoolingSegments regresses every off to next-on gap, starting after the
// settle buffer and split at the day/night boundaries.
func CoolingSegments(switches []Switch, readings []models.TemperatureReading, opts Options) []CoolingSegment {
	var out []CoolingSegment
	for i := 0; i < len(switches)-1; i++ {
		if switches[i].On || !switches[i+1].On {
			continue
		}
		from := switches[i].At.Add(opts.SettleBuffer)
		to := switches[i+1].At

		var run []models.TemperatureReading
		flush := func() {
			if seg, ok := fitCooling(run, opts); ok {
				out = append(out, seg)
			}
			run = nil
		}
		for _, r := range readings {
			if r.RecordedAt.Before(from) || !r.RecordedAt.Before(to) {
				continue
			}
			if len(run) > 0 && opts.isDay(run[0].RecordedAt) != opts.isDay(r.RecordedAt) {
				flush()
			}
			run = append(run, r)
		}
		flush()
	}
	return out
}

func fitCooling(run []models.TemperatureReading, opts Options) (CoolingSegment, bool) {
	if len(run) < 2 {
		return CoolingSegment{}, false
	}
	start := run[0].RecordedAt
	xs := make([]float64, len(run))
	ys := make([]float64, len(run))
	var ambients []float64
	for i, r := range run {
		xs[i] = r.RecordedAt.Sub(start).Minutes()
		ys[i] = r.WaterTempF
		if r.AmbientTempF != nil {
			ambients = append(ambients, *r.AmbientTempF)
		}
	}
	slope, ok := Slope(xs, ys)
	if !ok {
		return CoolingSegment{}, false
	}
	seg := CoolingSegment{Day: opts.isDay(start), SlopePerMin: slope}
	if len(ambients) > 0 {
		gap := mean(ys) - mean(ambients)
		if gap > opts.MinAmbientGapF {
			if k := -slope / gap; k > 0 {
				seg.K = &k
			}
		}
	}
	return seg, true
}

// Estimate fits the characteristics from switches and readings restricted
// to [from, to]; zero bounds are open.
func Estimate(switches []Switch, readings []models.TemperatureReading, from, to time.Time, opts Options) (models.Characteristics, error) {
	switches = filterSwitches(switches, from, to)
	readings = filterReadings(readings, from, to)

	var lags, velocities, overshoots []float64
	for _, s := range Sessions(switches, readings, opts) {
		st, ok := AnalyzeSession(s, opts)
		if !ok {
			continue
		}
		lags = append(lags, st.StartupLagMinutes)
		velocities = append(velocities, st.HeatingVelocityFPerMin)
		overshoots = append(overshoots, st.OvershootF)
	}
	if len(velocities) == 0 {
		return models.Characteristics{}, ErrNoSessions
	}

	c := models.Characteristics{
		HeatingVelocityFPerMin: Round(mean(velocities)),
		StartupLagMinutes:      Round(mean(lags)),
		OvershootF:             Round(mean(overshoots)),
		SessionsAnalyzed:       len(velocities),
		RangeFrom:              from,
		RangeTo:                to,
	}

	var dayRates, nightRates, dayK, nightK []float64
	segs := CoolingSegments(switches, readings, opts)
	for _, seg := range segs {
		if seg.Day {
			dayRates = append(dayRates, seg.SlopePerMin)
			if seg.K != nil {
				dayK = append(dayK, *seg.K)
			}
		} else {
			nightRates = append(nightRates, seg.SlopePerMin)
			if seg.K != nil {
				nightK = append(nightK, *seg.K)
			}
		}
	}
	c.CoolingSegments = len(segs)
	c.CoolingRateDayFPerMin = roundedMean(dayRates)
	c.CoolingRateNightFPerMin = roundedMean(nightRates)
	c.CoolingKDay = roundedMean(dayK)
	c.CoolingKNight = roundedMean(nightK)
	return c, nil
}

func roundedMean(vs []float64) *float64 {
	if len(vs) == 0 {
		return nil
	}
	v := Round(mean(vs))
	return &v
}

func filterSwitches(ss []Switch, from, to time.Time) []Switch {
	if from.IsZero() && to.IsZero() {
		return ss
	}
	var out []Switch
	for _, s := range ss {
		if inRange(s.At, from, to) {
			out = append(out, s)
		}
	}
	return out
}

func filterReadings(rs []models.TemperatureReading, from, to time.Time) []models.TemperatureReading {
	if from.IsZero() && to.IsZero() {
		return rs
	}
	var out []models.TemperatureReading
	for _, r := range rs {
		if inRange(r.RecordedAt, from, to) {
			out = append(out, r)
		}
	}
	return out
}

func inRange(t, from, to time.Time) bool {
	return (from.IsZero() || !t.Before(from)) && (to.IsZero() || !t.After(to))
}
