package optim

// Direction produces the next search direction from the current
// gradient (and, for quasi-Newton/CG variants, iteration history). A
// direction d that fails the isDescent check (<grad, d> < 0) forces the
// BatchOptimizer to reset to steepest descent for that iteration, per the shared
// "reset on non-descent or failed line search" rule.
type Direction interface {
	Next(grad []float32) []float32
	// Update records the step actually taken (x, grad before and after
	// the step) so history-based directions (L-BFGS, nonlinear CG) can
	// update their internal state.
	Update(xPrev, gPrev, xNew, gNew []float32)
	Reset()
	Name() string
}

func negate(v []float32) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = -x
	}
	return out
}

func isDescent(grad, d []float32) bool {
	return dot(grad, d) < 0
}

// SteepestDescent always returns -grad.
type SteepestDescent struct{}

func (s *SteepestDescent) Name() string { return "steepest-descent" }
func (s *SteepestDescent) Next(grad []float32) []float32 { return negate(grad) }
func (s *SteepestDescent) Update(xPrev, gPrev, xNew, gNew []float32) {}
func (s *SteepestDescent) Reset() {}

// LBFGS implements limited-memory BFGS with a rolling history of the
// last m (s, y) pairs, m in [3, 20].
type LBFGS struct {
	m       int
	sHist   [][]float32
	yHist   [][]float32
	rhoHist []float32
}

func NewLBFGS(m int) *LBFGS {
	if m < 3 {
		m = 3
	}
	if m > 20 {
		m = 20
	}
	return &LBFGS{m: m}
}

func (l *LBFGS) Name() string { return "l-bfgs" }

func (l *LBFGS) Reset() {
	l.sHist = nil
	l.yHist = nil
	l.rhoHist = nil
}

func (l *LBFGS) Update(xPrev, gPrev, xNew, gNew []float32) {
	s := make([]float32, len(xPrev))
	y := make([]float32, len(xPrev))
	for i := range xPrev {
		s[i] = xNew[i] - xPrev[i]
		y[i] = gNew[i] - gPrev[i]
	}
	sy := dot(s, y)
	if sy <= 1e-10 {
		return // curvature condition violated, skip this pair
	}
	l.sHist = append(l.sHist, s)
	l.yHist = append(l.yHist, y)
	l.rhoHist = append(l.rhoHist, 1/sy)
	if len(l.sHist) > l.m {
		l.sHist = l.sHist[1:]
		l.yHist = l.yHist[1:]
		l.rhoHist = l.rhoHist[1:]
	}
}

// Next applies the standard two-loop recursion to -grad.
func (l *LBFGS) Next(grad []float32) []float32 {
	q := make([]float32, len(grad))
	copy(q, grad)
	k := len(l.sHist)
	alpha := make([]float32, k)
	for i := k - 1; i >= 0; i-- {
		alpha[i] = l.rhoHist[i] * dot(l.sHist[i], q)
		for j := range q {
			q[j] -= alpha[i] * l.yHist[i][j]
		}
	}
	gamma := float32(1)
	if k > 0 {
		sy := dot(l.sHist[k-1], l.yHist[k-1])
		yy := dot(l.yHist[k-1], l.yHist[k-1])
		if yy > 0 {
			gamma = sy / yy
		}
	}
	for j := range q {
		q[j] *= gamma
	}
	for i := 0; i < k; i++ {
		beta := l.rhoHist[i] * dot(l.yHist[i], q)
		for j := range q {
			q[j] += l.sHist[i][j] * (alpha[i] - beta)
		}
	}
	return negate(q)
}

// CGVariant selects the beta formula used by NonlinearCG.
type CGVariant int

const (
	CGHestenesStiefel CGVariant = iota
	CGFletcherReeves
	CGPolakRibierePlus
	CGDaiYuan
	CGHybridHSDY
	CGHybridFRPR
	CGHybridPRDY
	CGHybridHSFR
	CGHybridMax
)

// NonlinearCG implements nonlinear conjugate gradient with a choice of
// beta update formula, including five bounded hybrid variants that
// combine two formulas with a clamp on beta. It resets to steepest
// descent whenever the update fails to produce a descent direction.
type NonlinearCG struct {
	variant  CGVariant
	prevDir  []float32
	prevGrad []float32
}

func NewNonlinearCG(variant CGVariant) *NonlinearCG {
	return &NonlinearCG{variant: variant}
}

func (c *NonlinearCG) Name() string { return "nonlinear-cg" }

func (c *NonlinearCG) Reset() {
	c.prevDir = nil
	c.prevGrad = nil
}

func (c *NonlinearCG) Update(xPrev, gPrev, xNew, gNew []float32) {
	// prevDir/prevGrad are set by Next itself; Update exists to satisfy
	// the Direction interface symmetrically with L-BFGS.
}

func beta(variant CGVariant, g, gPrev, d []float32) float32 {
	y := make([]float32, len(g))
	for i := range g {
		y[i] = g[i] - gPrev[i]
	}
	gg := dot(g, g)
	gPrevgPrev := dot(gPrev, gPrev)
	dy := dot(d, y)
	gy := dot(g, y)

	hs := func() float32 {
		if dy == 0 {
			return 0
		}
		return gy / dy
	}
	fr := func() float32 {
		if gPrevgPrev == 0 {
			return 0
		}
		return gg / gPrevgPrev
	}
	prPlus := func() float32 {
		if gPrevgPrev == 0 {
			return 0
		}
		b := gy / gPrevgPrev
		if b < 0 {
			return 0
		}
		return b
	}
	dy2 := func() float32 {
		if dy == 0 {
			return 0
		}
		return gg / dy
	}
	clampMax := func(a, b float32) float32 {
		lo := -1 / (norm2(d) + 1e-12)
		if a > b {
			a = b
		}
		if a < lo {
			a = lo
		}
		return a
	}

	switch variant {
	case CGHestenesStiefel:
		return hs()
	case CGFletcherReeves:
		return fr()
	case CGPolakRibierePlus:
		return prPlus()
	case CGDaiYuan:
		return dy2()
	case CGHybridHSDY:
		return clampMax(hs(), dy2())
	case CGHybridFRPR:
		return clampMax(prPlus(), fr())
	case CGHybridPRDY:
		return clampMax(prPlus(), dy2())
	case CGHybridHSFR:
		return clampMax(hs(), fr())
	case CGHybridMax:
		return clampMax(maxFloat(hs(), prPlus()), fr())
	default:
		return fr()
	}
}

func (c *NonlinearCG) Next(grad []float32) []float32 {
	if c.prevDir == nil {
		d := negate(grad)
		c.prevDir = d
		c.prevGrad = append([]float32(nil), grad...)
		return d
	}
	b := beta(c.variant, grad, c.prevGrad, c.prevDir)
	d := make([]float32, len(grad))
	for i := range grad {
		d[i] = -grad[i] + b*c.prevDir[i]
	}
	if !isDescent(grad, d) {
		d = negate(grad)
	}
	c.prevDir = d
	c.prevGrad = append([]float32(nil), grad...)
	return d
}
