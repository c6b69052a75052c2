// Package predict runs a trained classifier over graphs and turns the
// per-node predictions into door instances through morphology closing,
// connected-component instancing, DBSCAN splitting and bounding box
// filtering.
package predict

import (
	"fmt"
	"log/slog"

	"github.com/floorgraph/floorgraph/core/train"
	"github.com/floorgraph/floorgraph/helper"
	"github.com/floorgraph/floorgraph/model"
)

// ClassifyFunc produces a class per node of a graph.
type ClassifyFunc func(g *model.Graph) ([]int, error)

// LoadClassifier reads a model checkpoint of either kind and returns a
// classify function. embed supplies node embeddings for GCN models that
// were trained with them; window models never call it.
func LoadClassifier(path string, embed train.EmbeddingFunc) (ClassifyFunc, error) {
	checkpoint, err := train.ReadCheckpoint(path)
	if err != nil {
		return nil, err
	}

	switch checkpoint.Info.Kind {
	case train.KindWindow:
		m, err := train.WindowModelFromCheckpoint(checkpoint)
		if err != nil {
			return nil, err
		}
		return m.Predict, nil
	case train.KindGCN:
		m, err := train.GCNModelFromCheckpoint(checkpoint)
		if err != nil {
			return nil, err
		}
		return func(g *model.Graph) ([]int, error) {
			return m.Predict(g, embed)
		}, nil
	default:
		return nil, fmt.Errorf("checkpoint %s: unknown model kind %q", path, checkpoint.Info.Kind)
	}
}

// Result is the outcome of predicting one graph.
type Result struct {
	Predictions []int // class per node, after optional closing
	Assignments []int // instance ID per node, model.NoInstance for none
	Doors       int   // number of door instances
}

// Run classifies a graph and post-processes the predictions into door
// instances. Labels and instance IDs are written back into the graph
// nodes.
func Run(g *model.Graph, classify ClassifyFunc, config model.PredictConfig, logger *slog.Logger) (*Result, error) {
	predictions, err := classify(g)
	if err != nil {
		return nil, helper.NewError("prediction", err)
	}
	if len(predictions) != len(g.Nodes) {
		return nil, helper.NewError("prediction", fmt.Errorf("graph %s has %d nodes but %d predictions", g.Name, len(g.Nodes), len(predictions)))
	}

	if config.MorphologyClosing {
		predictions = MorphologyClosing(g, predictions)
	}

	assignments := Instances(g, predictions, config)
	doors := 0
	for _, instance := range assignments {
		if instance >= doors {
			doors = instance + 1
		}
	}

	for id := range g.Nodes {
		g.Nodes[id].Label = predictions[id]
		g.Nodes[id].Instance = assignments[id]
	}

	logger.Info(
		"predicted graph",
		slog.String("graph", g.Name),
		slog.Int("nodes", len(g.Nodes)),
		slog.Int("doors", doors),
	)
	return &Result{Predictions: predictions, Assignments: assignments, Doors: doors}, nil
}
