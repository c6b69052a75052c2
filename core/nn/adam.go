package nn

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Adam implements the Adam optimizer with decoupled weight decay applied
// to the gradients before the moment update (the classic L2 form).
type Adam struct {
	LearningRate float64
	WeightDecay  float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64

	step int
}

// NewAdam creates an optimizer with standard betas and epsilon.
func NewAdam(learningRate, weightDecay float64) *Adam {
	return &Adam{
		LearningRate: learningRate,
		WeightDecay:  weightDecay,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
	}
}

// Step applies one update to all parameters and clears their gradients.
func (a *Adam) Step(params []*Param) {
	a.step++
	correction1 := 1 - math.Pow(a.Beta1, float64(a.step))
	correction2 := 1 - math.Pow(a.Beta2, float64(a.step))

	for _, p := range params {
		rows, cols := p.Value.Dims()

		if a.WeightDecay > 0 {
			var decay mat.Dense
			decay.Scale(a.WeightDecay, p.Value)
			p.Grad.Add(p.Grad, &decay)
		}

		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				g := p.Grad.At(i, j)

				m := a.Beta1*p.m.At(i, j) + (1-a.Beta1)*g
				v := a.Beta2*p.v.At(i, j) + (1-a.Beta2)*g*g
				p.m.Set(i, j, m)
				p.v.Set(i, j, v)

				mHat := m / correction1
				vHat := v / correction2
				p.Value.Set(i, j, p.Value.At(i, j)-a.LearningRate*mHat/(math.Sqrt(vHat)+a.Epsilon))
			}
		}

		p.ZeroGrad()
	}
}
