package embedding

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
)

// negativeTableSize is the size of the unigram sampling table.
const negativeTableSize = 1 << 17

// minLearningRate is the floor the learning rate decays to.
const minLearningRate = 1e-4

// skipGram holds the input (node) and output (context) weight matrices of
// a skip-gram model with negative sampling.
type skipGram struct {
	dim      int
	in       [][]float64
	out      [][]float64
	negTable []int
	rng      *rand.Rand
}

// newSkipGram initializes weights for n nodes. Input vectors start uniform
// in [-0.5/dim, 0.5/dim), output vectors at zero, the word2vec scheme.
func newSkipGram(n, dim int, rng *rand.Rand) *skipGram {
	sg := &skipGram{
		dim: dim,
		in:  make([][]float64, n),
		out: make([][]float64, n),
		rng: rng,
	}
	for i := 0; i < n; i++ {
		sg.in[i] = make([]float64, dim)
		sg.out[i] = make([]float64, dim)
		for d := 0; d < dim; d++ {
			sg.in[i][d] = (rng.Float64() - 0.5) / float64(dim)
		}
	}
	return sg
}

// buildNegativeTable fills the unigram^0.75 sampling table from walk
// occurrence counts.
func (sg *skipGram) buildNegativeTable(walks [][]int) {
	counts := make([]float64, len(sg.in))
	for _, walk := range walks {
		for _, node := range walk {
			counts[node]++
		}
	}

	var total float64
	for i := range counts {
		counts[i] = math.Pow(counts[i], 0.75)
		total += counts[i]
	}
	if total == 0 {
		return
	}

	sg.negTable = make([]int, negativeTableSize)
	node := 0
	cumulative := counts[0] / total
	for i := 0; i < negativeTableSize; i++ {
		sg.negTable[i] = node
		if float64(i)/negativeTableSize > cumulative && node < len(counts)-1 {
			node++
			cumulative += counts[node] / total
		}
	}
}

// sampleNegative draws a node from the unigram table, rejecting target.
func (sg *skipGram) sampleNegative(target int) int {
	for {
		node := sg.negTable[sg.rng.IntN(len(sg.negTable))]
		if node != target {
			return node
		}
	}
}

// train runs all epochs over the walks. The learning rate decays linearly
// from lr to minLearningRate over the total number of center positions.
func (sg *skipGram) train(walks [][]int, window, negatives, epochs int, lr float64) {
	var totalPositions float64
	for _, walk := range walks {
		totalPositions += float64(len(walk))
	}
	totalPositions *= float64(epochs)
	if totalPositions == 0 || sg.negTable == nil {
		return
	}

	grad := make([]float64, sg.dim)
	processed := 0.0

	for epoch := 0; epoch < epochs; epoch++ {
		for _, walk := range walks {
			for i, center := range walk {
				alpha := lr * (1 - processed/totalPositions)
				if alpha < minLearningRate {
					alpha = minLearningRate
				}
				processed++

				// Shrink the window per position like word2vec.
				reduced := 1 + sg.rng.IntN(window)
				for j := i - reduced; j <= i+reduced; j++ {
					if j < 0 || j >= len(walk) || j == i {
						continue
					}
					sg.trainPair(center, walk[j], negatives, alpha, grad)
				}
			}
		}
	}
}

// trainPair updates weights for one (center, context) pair with negative
// sampling. grad is scratch space of length dim.
func (sg *skipGram) trainPair(center, context, negatives int, alpha float64, grad []float64) {
	input := sg.in[center]
	for i := range grad {
		grad[i] = 0
	}

	// Positive sample plus k negatives.
	for k := 0; k <= negatives; k++ {
		target := context
		label := 1.0
		if k > 0 {
			target = sg.sampleNegative(context)
			label = 0
		}

		output := sg.out[target]
		score := sigmoid(floats.Dot(input, output))
		g := alpha * (label - score)

		floats.AddScaled(grad, g, output)
		floats.AddScaled(output, g, input)
	}

	floats.Add(input, grad)
}

func sigmoid(x float64) float64 {
	// Clamp to avoid overflow in Exp for extreme scores.
	if x > 8 {
		return 1
	}
	if x < -8 {
		return 0
	}
	return 1 / (1 + math.Exp(-x))
}
