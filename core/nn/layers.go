// Package nn implements the small neural building blocks the classifiers
// are made of: dense and graph-convolution layers, softmax cross entropy
// with class weights, the Adam optimizer and evaluation metrics.
package nn

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Param is a trainable weight matrix together with its gradient and the
// optimizer moment buffers.
type Param struct {
	Value *mat.Dense
	Grad  *mat.Dense

	m *mat.Dense
	v *mat.Dense
}

// NewParam allocates a parameter of the given shape with zeroed buffers.
func NewParam(rows, cols int) *Param {
	return &Param{
		Value: mat.NewDense(rows, cols, nil),
		Grad:  mat.NewDense(rows, cols, nil),
		m:     mat.NewDense(rows, cols, nil),
		v:     mat.NewDense(rows, cols, nil),
	}
}

// ZeroGrad clears the accumulated gradient.
func (p *Param) ZeroGrad() {
	p.Grad.Zero()
}

// Dense is a fully connected layer: out = x*W + b.
type Dense struct {
	W *Param
	B *Param

	x *mat.Dense // input kept for the backward pass
}

// NewDense creates a dense layer with Xavier-uniform weights.
func NewDense(in, out int, rng *rand.Rand) *Dense {
	layer := &Dense{
		W: NewParam(in, out),
		B: NewParam(1, out),
	}
	limit := math.Sqrt(6.0 / float64(in+out))
	for i := 0; i < in; i++ {
		for j := 0; j < out; j++ {
			layer.W.Value.Set(i, j, (rng.Float64()*2-1)*limit)
		}
	}
	return layer
}

// Forward computes x*W + b for a batch of row vectors.
func (l *Dense) Forward(x *mat.Dense) *mat.Dense {
	l.x = x
	rows, _ := x.Dims()
	_, out := l.W.Value.Dims()

	result := mat.NewDense(rows, out, nil)
	result.Mul(x, l.W.Value)
	for i := 0; i < rows; i++ {
		for j := 0; j < out; j++ {
			result.Set(i, j, result.At(i, j)+l.B.Value.At(0, j))
		}
	}
	return result
}

// Backward accumulates parameter gradients and returns the gradient with
// respect to the layer input.
func (l *Dense) Backward(dout *mat.Dense) *mat.Dense {
	var dW mat.Dense
	dW.Mul(l.x.T(), dout)
	l.W.Grad.Add(l.W.Grad, &dW)

	rows, cols := dout.Dims()
	for j := 0; j < cols; j++ {
		var sum float64
		for i := 0; i < rows; i++ {
			sum += dout.At(i, j)
		}
		l.B.Grad.Set(0, j, l.B.Grad.At(0, j)+sum)
	}

	xRows, xCols := l.x.Dims()
	dx := mat.NewDense(xRows, xCols, nil)
	dx.Mul(dout, l.W.Value.T())
	return dx
}

// Params returns the trainable parameters of the layer.
func (l *Dense) Params() []*Param {
	return []*Param{l.W, l.B}
}

// ReLU is the rectifier activation.
type ReLU struct {
	mask *mat.Dense
}

// Forward zeroes negative entries.
func (r *ReLU) Forward(x *mat.Dense) *mat.Dense {
	rows, cols := x.Dims()
	r.mask = mat.NewDense(rows, cols, nil)
	result := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if x.At(i, j) > 0 {
				r.mask.Set(i, j, 1)
				result.Set(i, j, x.At(i, j))
			}
		}
	}
	return result
}

// Backward passes gradients through positive entries only.
func (r *ReLU) Backward(dout *mat.Dense) *mat.Dense {
	rows, cols := dout.Dims()
	dx := mat.NewDense(rows, cols, nil)
	dx.MulElem(dout, r.mask)
	return dx
}
