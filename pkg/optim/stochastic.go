package optim

import "math"

// StochasticOptimizer mutates theta in place given the gradient
// evaluated at theta for the current mini-batch/sample, generalizing
// the teacher's per-Parameter SGD/Adam (learn/optimizer.go) to operate
// on the flat theta vector an Accumulator reports.
type StochasticOptimizer interface {
	Step(theta, grad []float32)
	Name() string
}

// ValueStepper is implemented by stochastic optimizers whose update
// rule needs the objective value at theta, not just its gradient (AG's
// function-value restart). Trainers that have a value on hand should
// prefer StepWithValue over Step when an optimizer implements this.
type ValueStepper interface {
	StepWithValue(theta, grad []float32, value float32)
}

// Averager is implemented by stochastic optimizers that track a
// separate running average of theta to report as the snapshot iterate
// instead of the raw current theta (ASGD), per spec §4.6.2's "a
// designated averaged or current iterate".
type Averager interface {
	Average() []float32
}

// decayedLR implements the shared learning-rate schedule
// alpha_k = alpha0 / (1 + k/tau)^rho used by SG and its relatives.
type decayedLR struct {
	alpha0, tau, rho float32
	k                int
}

func (d *decayedLR) next() float32 {
	lr := d.alpha0 / float32(math.Pow(1+float64(d.k)/float64(d.tau), float64(d.rho)))
	d.k++
	return lr
}

// SG implements plain stochastic gradient descent with the decayed
// learning rate schedule.
type SG struct {
	lr decayedLR
}

func NewSG(alpha0, tau, rho float32) *SG {
	return &SG{lr: decayedLR{alpha0: alpha0, tau: tau, rho: rho}}
}

func (s *SG) Name() string { return "sg" }

func (s *SG) Step(theta, grad []float32) {
	lr := s.lr.next()
	for i := range theta {
		theta[i] -= lr * grad[i]
	}
}

// ASGD implements averaged stochastic gradient descent: every Step
// performs the same SG update and also accumulates a running average
// of theta, retrievable via Average for use as the final iterate.
type ASGD struct {
	lr    decayedLR
	sum   []float32
	count int
}

func NewASGD(alpha0, tau, rho float32) *ASGD {
	return &ASGD{lr: decayedLR{alpha0: alpha0, tau: tau, rho: rho}}
}

func (a *ASGD) Name() string { return "asgd" }

func (a *ASGD) Step(theta, grad []float32) {
	lr := a.lr.next()
	for i := range theta {
		theta[i] -= lr * grad[i]
	}
	if a.sum == nil {
		a.sum = make([]float32, len(theta))
	}
	for i := range theta {
		a.sum[i] += theta[i]
	}
	a.count++
}

// Average returns the running mean of every theta seen so far.
func (a *ASGD) Average() []float32 {
	out := make([]float32, len(a.sum))
	if a.count == 0 {
		return out
	}
	for i, v := range a.sum {
		out[i] = v / float32(a.count)
	}
	return out
}

// NGD implements normalized gradient descent: the step direction is
// the unit gradient, so step size is controlled purely by the decayed
// learning rate regardless of gradient magnitude.
type NGD struct {
	lr decayedLR
}

func NewNGD(alpha0, tau, rho float32) *NGD {
	return &NGD{lr: decayedLR{alpha0: alpha0, tau: tau, rho: rho}}
}

func (n *NGD) Name() string { return "ngd" }

func (n *NGD) Step(theta, grad []float32) {
	lr := n.lr.next()
	gn := norm2(grad)
	if gn < 1e-12 {
		return
	}
	scale := lr / gn
	for i := range theta {
		theta[i] -= scale * grad[i]
	}
}

// SGM implements stochastic gradient descent with classical momentum:
// v = momentum*v - lr*grad; theta += v.
type SGM struct {
	lr       decayedLR
	momentum float32
	v        []float32
}

func NewSGM(alpha0, tau, rho, momentum float32) *SGM {
	return &SGM{lr: decayedLR{alpha0: alpha0, tau: tau, rho: rho}, momentum: momentum}
}

func (s *SGM) Name() string { return "sgm" }

func (s *SGM) Step(theta, grad []float32) {
	lr := s.lr.next()
	if s.v == nil {
		s.v = make([]float32, len(theta))
	}
	for i := range theta {
		s.v[i] = s.momentum*s.v[i] - lr*grad[i]
		theta[i] += s.v[i]
	}
}

// AGRestart selects when AG resets its momentum accumulation.
type AGRestart int

const (
	AGNoRestart AGRestart = iota
	AGFunctionRestart
	AGGradientRestart
)

// AG implements Nesterov's accelerated gradient method with an
// optional restart scheme: function-value restart resets momentum
// whenever the objective increases between steps; gradient restart
// resets whenever the momentum direction and the negative gradient
// disagree.
type AG struct {
	lr      decayedLR
	restart AGRestart
	y       []float32 // extrapolated point
	tPrev   float32
	prevVal float32
	haveVal bool
}

func NewAG(alpha0, tau, rho float32, restart AGRestart) *AG {
	return &AG{lr: decayedLR{alpha0: alpha0, tau: tau, rho: rho}, restart: restart, tPrev: 1}
}

func (a *AG) Name() string { return "ag" }

// StepWithValue performs one AG update; value is the objective value
// at theta before this step, required by the function-value restart
// variant (ignored by the other variants, so callers may pass 0).
func (a *AG) StepWithValue(theta, grad []float32, value float32) {
	lr := a.lr.next()
	if a.y == nil {
		a.y = append([]float32(nil), theta...)
	}

	restartNow := false
	switch a.restart {
	case AGFunctionRestart:
		restartNow = a.haveVal && value > a.prevVal
	case AGGradientRestart:
		restartNow = dot(grad, sub(theta, a.y)) > 0
	}
	if restartNow {
		a.tPrev = 1
		copy(a.y, theta)
	}

	tNext := (1 + float32(math.Sqrt(float64(1+4*a.tPrev*a.tPrev)))) / 2
	momentumCoef := (a.tPrev - 1) / tNext

	yNext := make([]float32, len(theta))
	for i := range theta {
		yNext[i] = theta[i] - lr*grad[i]
	}
	for i := range theta {
		theta[i] = yNext[i] + momentumCoef*(yNext[i]-a.y[i])
	}
	a.y = yNext
	a.tPrev = tNext
	a.prevVal = value
	a.haveVal = true
}

func (a *AG) Step(theta, grad []float32) { a.StepWithValue(theta, grad, 0) }

func sub(a, b []float32) []float32 {
	out := make([]float32, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}

// AdaGrad implements per-coordinate adaptive learning rates driven by
// the running sum of squared gradients.
type AdaGrad struct {
	lr, epsilon float32
	sumSq       []float32
}

func NewAdaGrad(lr, epsilon float32) *AdaGrad {
	return &AdaGrad{lr: lr, epsilon: epsilon}
}

func (ag *AdaGrad) Name() string { return "adagrad" }

func (ag *AdaGrad) Step(theta, grad []float32) {
	if ag.sumSq == nil {
		ag.sumSq = make([]float32, len(theta))
	}
	for i := range theta {
		ag.sumSq[i] += grad[i] * grad[i]
		theta[i] -= ag.lr * grad[i] / (sqrtFloat32(ag.sumSq[i]) + ag.epsilon)
	}
}

// AdaDelta implements the learning-rate-free adaptive method driven by
// exponentially decayed running averages of squared gradients and
// squared updates.
type AdaDelta struct {
	rho, epsilon float32
	avgSqGrad    []float32
	avgSqUpdate  []float32
}

func NewAdaDelta(rho, epsilon float32) *AdaDelta {
	return &AdaDelta{rho: rho, epsilon: epsilon}
}

func (ad *AdaDelta) Name() string { return "adadelta" }

func (ad *AdaDelta) Step(theta, grad []float32) {
	if ad.avgSqGrad == nil {
		ad.avgSqGrad = make([]float32, len(theta))
		ad.avgSqUpdate = make([]float32, len(theta))
	}
	for i := range theta {
		ad.avgSqGrad[i] = ad.rho*ad.avgSqGrad[i] + (1-ad.rho)*grad[i]*grad[i]
		rms := sqrtFloat32(ad.avgSqGrad[i] + ad.epsilon)
		rmsUpdate := sqrtFloat32(ad.avgSqUpdate[i] + ad.epsilon)
		delta := -rmsUpdate / rms * grad[i]
		ad.avgSqUpdate[i] = ad.rho*ad.avgSqUpdate[i] + (1-ad.rho)*delta*delta
		theta[i] += delta
	}
}

// Adam implements Adaptive Moment Estimation with bias correction,
// generalized from the teacher's per-Parameter Adam
// (learn/optimizer.go) to the flat theta vector.
type Adam struct {
	lr, beta1, beta2, epsilon float32
	m, v                      []float32
	step                      int
}

func NewAdam(lr, beta1, beta2, epsilon float32) *Adam {
	return &Adam{lr: lr, beta1: beta1, beta2: beta2, epsilon: epsilon}
}

func (a *Adam) Name() string { return "adam" }

func (a *Adam) Step(theta, grad []float32) {
	if a.m == nil {
		a.m = make([]float32, len(theta))
		a.v = make([]float32, len(theta))
	}
	a.step++
	beta1Power := float32(math.Pow(float64(a.beta1), float64(a.step)))
	beta2Power := float32(math.Pow(float64(a.beta2), float64(a.step)))
	biasCorrection1 := 1 - beta1Power
	biasCorrection2 := 1 - beta2Power

	for i := range theta {
		g := grad[i]
		a.m[i] = a.beta1*a.m[i] + (1-a.beta1)*g
		a.v[i] = a.beta2*a.v[i] + (1-a.beta2)*g*g
		mHat := a.m[i] / biasCorrection1
		vHat := a.v[i] / biasCorrection2
		theta[i] -= a.lr * mHat / (sqrtFloat32(vHat) + a.epsilon)
	}
}
