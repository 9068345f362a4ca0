package pedal

// Interval gates an action to at most once per Period ticks of a free-running
// uint32 counter. Elapsed time is computed with modular subtraction, so the
// gate keeps working when the counter wraps.
//
// With Immediate set, the gate is due before the first Mark regardless of
// the tick, so the first action does not wait a full Period after boot.
type Interval struct {
	Period    uint32
	Immediate bool

	last   uint32
	marked bool
}

// Due reports whether at least Period ticks have passed since the last Mark.
func (g *Interval) Due(now uint32) bool {
	if g.Immediate && !g.marked {
		return true
	}
	return now-g.last >= g.Period
}

// Mark records now as the time the gated action last ran.
func (g *Interval) Mark(now uint32) {
	g.last = now
	g.marked = true
}
