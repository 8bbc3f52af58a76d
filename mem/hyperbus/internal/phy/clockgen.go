package phy

// ClockGen produces the derived clock CK. It only changes in the settle phase
// of a cycle, half a cycle away from the sampling edge.
type ClockGen struct {
	ck bool
}

// Settle updates the clock for the settle phase. The clock is held low while
// no chip is selected and toggles while a chip is selected and the cycle
// counter is non-zero. It reports if the clock changed level.
func (g *ClockGen) Settle(chipSelected bool, counterActive bool) bool {
	old := g.ck

	switch {
	case !chipSelected:
		g.ck = false
	case counterActive:
		g.ck = !g.ck
	}

	return g.ck != old
}

// CK returns the level of the true clock output.
func (g *ClockGen) CK() bool {
	return g.ck
}

// CKn returns the level of the complementary clock output.
func (g *ClockGen) CKn() bool {
	return !g.ck
}

// Reset forces the clock low.
func (g *ClockGen) Reset() {
	g.ck = false
}
