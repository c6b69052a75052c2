package nn

import (
	"fmt"

	"github.com/floorgraph/floorgraph/model"
)

// Metrics accumulates a confusion matrix over predictions. Unlabeled
// ground truth is skipped.
type Metrics struct {
	confusion [model.NumClasses][model.NumClasses]int // [truth][prediction]
	total     int
}

// Add records a batch of predictions against ground truth labels.
func (m *Metrics) Add(labels, predictions []int) {
	for i, label := range labels {
		if label == model.ClassUnlabeled {
			continue
		}
		m.confusion[label][predictions[i]]++
		m.total++
	}
}

// Accuracy is the fraction of correct predictions.
func (m *Metrics) Accuracy() float64 {
	if m.total == 0 {
		return 0
	}
	var correct int
	for c := 0; c < model.NumClasses; c++ {
		correct += m.confusion[c][c]
	}
	return float64(correct) / float64(m.total)
}

// ClassAccuracy is the recall of a single class.
func (m *Metrics) ClassAccuracy(class int) float64 {
	var total int
	for p := 0; p < model.NumClasses; p++ {
		total += m.confusion[class][p]
	}
	if total == 0 {
		return 0
	}
	return float64(m.confusion[class][class]) / float64(total)
}

// BalancedAccuracy is the mean recall over classes that occur in the
// ground truth.
func (m *Metrics) BalancedAccuracy() float64 {
	var sum float64
	var present int
	for c := 0; c < model.NumClasses; c++ {
		var total int
		for p := 0; p < model.NumClasses; p++ {
			total += m.confusion[c][p]
		}
		if total > 0 {
			sum += m.ClassAccuracy(c)
			present++
		}
	}
	if present == 0 {
		return 0
	}
	return sum / float64(present)
}

// Precision is the fraction of predictions of class that are correct.
func (m *Metrics) Precision(class int) float64 {
	var predicted int
	for c := 0; c < model.NumClasses; c++ {
		predicted += m.confusion[c][class]
	}
	if predicted == 0 {
		return 0
	}
	return float64(m.confusion[class][class]) / float64(predicted)
}

// Recall is an alias for ClassAccuracy.
func (m *Metrics) Recall(class int) float64 {
	return m.ClassAccuracy(class)
}

// String summarizes the metrics in one line.
func (m *Metrics) String() string {
	return fmt.Sprintf(
		"acc=%.4f balanced=%.4f other=%.4f door=%.4f door_precision=%.4f",
		m.Accuracy(), m.BalancedAccuracy(),
		m.ClassAccuracy(model.ClassOther), m.ClassAccuracy(model.ClassDoor),
		m.Precision(model.ClassDoor),
	)
}
