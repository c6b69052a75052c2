package nn

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/floorgraph/floorgraph/model"
)

// ClassWeights derives loss weights from label frequency so the rare door
// class is not drowned out: the weight of "other" is the door fraction and
// the door weight its complement.
func ClassWeights(labels []int) []float64 {
	if len(labels) == 0 {
		return []float64{0.5, 0.5}
	}
	var doors float64
	for _, label := range labels {
		if label == model.ClassDoor {
			doors++
		}
	}
	otherWeight := doors / float64(len(labels))
	return []float64{otherWeight, 1 - otherWeight}
}

// SoftmaxCrossEntropy computes the mean weighted cross-entropy loss over a
// batch of logits and the gradient with respect to the logits. Rows with
// label model.ClassUnlabeled are skipped.
func SoftmaxCrossEntropy(logits *mat.Dense, labels []int, classWeights []float64) (float64, *mat.Dense) {
	rows, cols := logits.Dims()
	grad := mat.NewDense(rows, cols, nil)

	var loss, weightTotal float64
	for i := 0; i < rows; i++ {
		label := labels[i]
		if label == model.ClassUnlabeled {
			continue
		}

		probs := softmaxRow(logits.RawRowView(i))
		weight := classWeights[label]
		loss += -weight * math.Log(math.Max(probs[label], 1e-12))
		weightTotal += weight

		for j := 0; j < cols; j++ {
			g := probs[j]
			if j == label {
				g -= 1
			}
			grad.Set(i, j, weight*g)
		}
	}

	if weightTotal == 0 {
		return 0, grad
	}

	loss /= weightTotal
	grad.Scale(1/weightTotal, grad)
	return loss, grad
}

// Predictions returns the argmax class of every logits row.
func Predictions(logits *mat.Dense) []int {
	rows, cols := logits.Dims()
	predictions := make([]int, rows)
	for i := 0; i < rows; i++ {
		best, bestValue := 0, logits.At(i, 0)
		for j := 1; j < cols; j++ {
			if v := logits.At(i, j); v > bestValue {
				best, bestValue = j, v
			}
		}
		predictions[i] = best
	}
	return predictions
}

// softmaxRow computes a numerically stable softmax of one row.
func softmaxRow(row []float64) []float64 {
	maxValue := row[0]
	for _, v := range row[1:] {
		if v > maxValue {
			maxValue = v
		}
	}

	probs := make([]float64, len(row))
	var sum float64
	for i, v := range row {
		probs[i] = math.Exp(v - maxValue)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}
