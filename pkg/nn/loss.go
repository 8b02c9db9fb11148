package nn

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/nanocv-go/nanocv/pkg/tensor"
)

// Loss maps (target, output) of equal dimensions to a scalar value and
// the gradient with respect to output, matching the teacher's
// MSELoss/CrossEntropyLoss Compute/Gradient pair but generalized to
// the classification/regression family of spec §4.5.
type Loss interface {
	Name() string
	Value(target, output tensor.Tensor) (tensor.Scalar, error)
	Gradient(target, output tensor.Tensor) (tensor.Tensor, error)
	// Error computes the separate error metric of spec §4.5: 0/1
	// indicator for single-label classification, Hamming distance for
	// multi-label, L1 distance for regression.
	Error(target, output tensor.Tensor) (tensor.Scalar, error)
}

// checkLossShapes compares element counts rather than exact shapes: a
// loss reads target/output through their flat Data() slices, the same
// convention the layer palette uses when it Reshapes a higher-rank
// sample into the vector a layer actually operates on, so a rank-3
// sample target and a layer's rank-1 output of equal size are
// compatible here.
func checkLossShapes(op string, target, output tensor.Tensor) error {
	if target.Size() != output.Size() {
		return fmt.Errorf("nn.%s: target size %d does not match output size %d: %w",
			op, target.Size(), output.Size(), tensor.ErrDimensionMismatch)
	}
	return nil
}

// classKind selects the inner scalar loss used by the classification
// family (each with an optional single-label restriction).
type classKind int

const (
	classLogistic classKind = iota
	classExponential
	classSquare
	classCauchy
)

// ClassificationLoss implements the four multiclass losses of spec
// §4.5 over {+1,-1}^O targets, with an optional single-label
// restriction that applies the inner scalar loss only at the
// predicted-positive index (used when targets are one-hot).
type ClassificationLoss struct {
	kind        classKind
	singleLabel bool
}

func newClassificationLoss(kind classKind, singleLabel bool) *ClassificationLoss {
	return &ClassificationLoss{kind: kind, singleLabel: singleLabel}
}

func NewMulticlassLogistic() *ClassificationLoss     { return newClassificationLoss(classLogistic, false) }
func NewMulticlassExponential() *ClassificationLoss  { return newClassificationLoss(classExponential, false) }
func NewMulticlassSquare() *ClassificationLoss       { return newClassificationLoss(classSquare, false) }
func NewMulticlassCauchy() *ClassificationLoss       { return newClassificationLoss(classCauchy, false) }
func NewSingleLabelLogistic() *ClassificationLoss    { return newClassificationLoss(classLogistic, true) }
func NewSingleLabelExponential() *ClassificationLoss { return newClassificationLoss(classExponential, true) }
func NewSingleLabelSquare() *ClassificationLoss       { return newClassificationLoss(classSquare, true) }
func NewSingleLabelCauchy() *ClassificationLoss       { return newClassificationLoss(classCauchy, true) }

func (l *ClassificationLoss) Name() string {
	names := [...]string{"logistic", "exponential", "square", "cauchy"}
	name := "multiclass-" + names[l.kind]
	if l.singleLabel {
		name = "single-label-" + names[l.kind]
	}
	return name
}

// positiveIndex returns argmax(target), the predicted-positive slot
// used by the single-label restriction.
func positiveIndex(target []tensor.Scalar) int {
	best := 0
	for i, v := range target {
		if v > target[best] {
			best = i
		}
		_ = v
	}
	return best
}

func (l *ClassificationLoss) scalarLossAndGrad(t, s tensor.Scalar) (value tensor.Scalar, dValue tensor.Scalar) {
	switch l.kind {
	case classLogistic:
		z := -t * s
		value = math32.Log1p(math32.Exp(z))
		sig := 1 / (1 + math32.Exp(-z))
		dValue = -t * sig
	case classExponential:
		z := -t * s
		value = math32.Exp(z)
		dValue = -t * value
	case classSquare:
		d := t - s
		value = 0.5 * d * d
		dValue = -d
	case classCauchy:
		d := t - s
		value = math32.Log1p(d * d)
		dValue = -2 * d / (1 + d*d)
	}
	return value, dValue
}

func (l *ClassificationLoss) Value(target, output tensor.Tensor) (tensor.Scalar, error) {
	if err := checkLossShapes(l.Name()+".Value", target, output); err != nil {
		return 0, err
	}
	t, s := target.Data(), output.Data()
	if l.singleLabel {
		k := positiveIndex(t)
		v, _ := l.scalarLossAndGrad(t[k], s[k])
		return v, nil
	}
	var sum tensor.Scalar
	for i := range t {
		v, _ := l.scalarLossAndGrad(t[i], s[i])
		sum += v
	}
	return sum, nil
}

func (l *ClassificationLoss) Gradient(target, output tensor.Tensor) (tensor.Tensor, error) {
	if err := checkLossShapes(l.Name()+".Gradient", target, output); err != nil {
		return tensor.Tensor{}, err
	}
	t, s := target.Data(), output.Data()
	g := tensor.NewAs(output)
	gd := g.Data()
	if l.singleLabel {
		k := positiveIndex(t)
		_, d := l.scalarLossAndGrad(t[k], s[k])
		gd[k] = d
		return g, nil
	}
	for i := range t {
		_, d := l.scalarLossAndGrad(t[i], s[i])
		gd[i] = d
	}
	return g, nil
}

func (l *ClassificationLoss) Error(target, output tensor.Tensor) (tensor.Scalar, error) {
	if err := checkLossShapes(l.Name()+".Error", target, output); err != nil {
		return 0, err
	}
	t, s := target.Data(), output.Data()
	if l.singleLabel {
		if argmax(t) != argmax(s) {
			return 1, nil
		}
		return 0, nil
	}
	var hamming tensor.Scalar
	for i := range t {
		if sign(t[i]) != sign(s[i]) {
			hamming++
		}
	}
	return hamming, nil
}

func argmax(v []tensor.Scalar) int {
	best := 0
	for i, x := range v {
		if x > v[best] {
			best = i
		}
	}
	return best
}

func sign(v tensor.Scalar) int {
	if v >= 0 {
		return 1
	}
	return -1
}

// regressKind selects the inner scalar loss used by the regression
// family.
type regressKind int

const (
	regressSquare regressKind = iota
	regressCauchy
)

// RegressionLoss implements the square and Cauchy losses over
// arbitrary real-valued targets.
type RegressionLoss struct {
	kind regressKind
}

func NewRegressionSquare() *RegressionLoss { return &RegressionLoss{kind: regressSquare} }
func NewRegressionCauchy() *RegressionLoss { return &RegressionLoss{kind: regressCauchy} }

func (l *RegressionLoss) Name() string {
	if l.kind == regressCauchy {
		return "regression-cauchy"
	}
	return "regression-square"
}

func (l *RegressionLoss) Value(target, output tensor.Tensor) (tensor.Scalar, error) {
	if err := checkLossShapes(l.Name()+".Value", target, output); err != nil {
		return 0, err
	}
	t, s := target.Data(), output.Data()
	var sum tensor.Scalar
	for i := range t {
		d := t[i] - s[i]
		switch l.kind {
		case regressSquare:
			sum += 0.5 * d * d
		case regressCauchy:
			sum += math32.Log1p(d * d)
		}
	}
	return sum, nil
}

func (l *RegressionLoss) Gradient(target, output tensor.Tensor) (tensor.Tensor, error) {
	if err := checkLossShapes(l.Name()+".Gradient", target, output); err != nil {
		return tensor.Tensor{}, err
	}
	t, s := target.Data(), output.Data()
	g := tensor.NewAs(output)
	gd := g.Data()
	for i := range t {
		d := t[i] - s[i]
		switch l.kind {
		case regressSquare:
			gd[i] = -d
		case regressCauchy:
			gd[i] = -2 * d / (1 + d*d)
		}
	}
	return g, nil
}

func (l *RegressionLoss) Error(target, output tensor.Tensor) (tensor.Scalar, error) {
	if err := checkLossShapes(l.Name()+".Error", target, output); err != nil {
		return 0, err
	}
	t, s := target.Data(), output.Data()
	var l1 tensor.Scalar
	for i := range t {
		d := t[i] - s[i]
		if d < 0 {
			d = -d
		}
		l1 += d
	}
	return l1, nil
}
