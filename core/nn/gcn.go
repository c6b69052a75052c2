package nn

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/floorgraph/floorgraph/model"
)

// GCNLayer is a graph convolution: out = Â * x * W + b, with Â the
// symmetric-normalized adjacency of the (batched) graph.
type GCNLayer struct {
	dense *Dense

	ahat mat.Matrix // kept for the backward pass
}

// NewGCNLayer creates a graph convolution layer with Xavier-uniform
// weights.
func NewGCNLayer(in, out int, rng *rand.Rand) *GCNLayer {
	return &GCNLayer{dense: NewDense(in, out, rng)}
}

// NewGCNLayerFromDense wraps an existing dense transform, used when
// restoring a layer from a checkpoint.
func NewGCNLayerFromDense(dense *Dense) *GCNLayer {
	return &GCNLayer{dense: dense}
}

// DenseLayer exposes the underlying dense transform for serialization.
func (l *GCNLayer) DenseLayer() *Dense {
	return l.dense
}

// Forward aggregates neighbor features through ahat, then applies the
// dense transform.
func (l *GCNLayer) Forward(ahat mat.Matrix, x *mat.Dense) *mat.Dense {
	l.ahat = ahat
	rows, cols := x.Dims()

	aggregated := mat.NewDense(rows, cols, nil)
	aggregated.Mul(ahat, x)
	return l.dense.Forward(aggregated)
}

// Backward propagates through the dense transform and the aggregation.
// Â is symmetric, so the aggregation gradient is Â * dx.
func (l *GCNLayer) Backward(dout *mat.Dense) *mat.Dense {
	dAggregated := l.dense.Backward(dout)
	rows, cols := dAggregated.Dims()
	dx := mat.NewDense(rows, cols, nil)
	dx.Mul(l.ahat, dAggregated)
	return dx
}

// Params returns the trainable parameters of the layer.
func (l *GCNLayer) Params() []*Param {
	return l.dense.Params()
}

// NormalizedAdjacency builds Â = D^-1/2 (A+I) D^-1/2 for a graph, the
// propagation matrix of Kipf-Welling graph convolution.
func NormalizedAdjacency(g *model.Graph) *mat.Dense {
	n := len(g.Nodes)
	a := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		a.Set(i, i, 1)
	}
	for _, e := range g.Edges {
		a.Set(e.Source, e.Target, 1)
		a.Set(e.Target, e.Source, 1)
	}
	return normalize(a)
}

// BlockDiagonalAdjacency builds Â for a batch of graphs stacked into one
// block-diagonal adjacency, so one forward pass covers all graphs without
// edges between them.
func BlockDiagonalAdjacency(graphs []*model.Graph) *mat.Dense {
	var total int
	for _, g := range graphs {
		total += len(g.Nodes)
	}

	a := mat.NewDense(total, total, nil)
	offset := 0
	for _, g := range graphs {
		n := len(g.Nodes)
		for i := 0; i < n; i++ {
			a.Set(offset+i, offset+i, 1)
		}
		for _, e := range g.Edges {
			a.Set(offset+e.Source, offset+e.Target, 1)
			a.Set(offset+e.Target, offset+e.Source, 1)
		}
		offset += n
	}
	return normalize(a)
}

// normalize applies the symmetric degree normalization in place and
// returns the matrix.
func normalize(a *mat.Dense) *mat.Dense {
	n, _ := a.Dims()
	invSqrtDegree := make([]float64, n)
	for i := 0; i < n; i++ {
		var degree float64
		for j := 0; j < n; j++ {
			degree += a.At(i, j)
		}
		if degree > 0 {
			invSqrtDegree[i] = 1 / math.Sqrt(degree)
		}
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if v := a.At(i, j); v != 0 {
				a.Set(i, j, v*invSqrtDegree[i]*invSqrtDegree[j])
			}
		}
	}
	return a
}
