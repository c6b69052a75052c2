package predict

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/floorgraph/floorgraph/model"
)

// MorphologyClosing fills gaps in the door predictions: a node becomes a
// door when the door nodes in its 2-order neighborhood are at least as
// many as the non-door ones. The node itself is not counted.
func MorphologyClosing(g *model.Graph, predictions []int) []int {
	closed := make([]int, len(predictions))
	for id := range g.Nodes {
		neighborhood := map[int]bool{}
		for _, neighbor := range g.Neighbors(id) {
			neighborhood[neighbor] = true
			for _, second := range g.Neighbors(neighbor) {
				neighborhood[second] = true
			}
		}
		delete(neighborhood, id)

		var doors, others int
		for neighbor := range neighborhood {
			switch predictions[neighbor] {
			case model.ClassDoor:
				doors++
			case model.ClassOther:
				others++
			}
		}

		if doors >= others {
			closed[id] = model.ClassDoor
		} else {
			closed[id] = predictions[id]
		}
	}
	return closed
}

// instanceCandidate is one spatially coherent group of door nodes, with
// node IDs in the parent graph.
type instanceCandidate struct {
	nodes []int

	width  float64
	height float64
	area   float64
	ratio  float64
}

// Instances groups door predictions into door instances: connected
// components of the door-induced subgraph, split by DBSCAN over node
// positions, then filtered by size and bounding box. It returns the
// instance ID of every node, model.NoInstance for nodes in none.
func Instances(g *model.Graph, predictions []int, config model.PredictConfig) []int {
	var doorNodes []int
	for id, prediction := range predictions {
		if prediction == model.ClassDoor {
			doorNodes = append(doorNodes, id)
		}
	}

	assignments := make([]int, len(g.Nodes))
	for i := range assignments {
		assignments[i] = model.NoInstance
	}
	if len(doorNodes) == 0 {
		return assignments
	}

	sub := g.InducedSubgraph(doorNodes)
	var candidates []instanceCandidate
	for _, component := range sub.Graph.ConnectedComponents() {
		for _, cluster := range splitByDBSCAN(sub.Graph, component, config) {
			nodes := make([]int, len(cluster))
			for i, subID := range cluster {
				nodes[i] = sub.Mapping[subID]
			}
			candidates = append(candidates, newCandidate(g, nodes))
		}
	}

	kept := filterCandidates(candidates, config)
	for instance, candidate := range kept {
		for _, id := range candidate.nodes {
			assignments[id] = instance
		}
	}
	return assignments
}

// splitByDBSCAN clusters the positions of one component, returning groups
// of subgraph node IDs.
func splitByDBSCAN(sub *model.Graph, component []int, config model.PredictConfig) [][]int {
	points := make([][2]float64, len(component))
	for i, id := range component {
		points[i] = [2]float64{sub.Nodes[id].X, sub.Nodes[id].Y}
	}

	labels := DBSCAN(points, config.DBSCANEps, config.DBSCANMinPoints)
	groups := map[int][]int{}
	for i, label := range labels {
		if label == Noise {
			continue
		}
		groups[label] = append(groups[label], component[i])
	}

	keys := make([]int, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Ints(keys)

	clusters := make([][]int, 0, len(keys))
	for _, key := range keys {
		clusters = append(clusters, groups[key])
	}
	return clusters
}

// newCandidate computes the bounding box statistics of a node group.
func newCandidate(g *model.Graph, nodes []int) instanceCandidate {
	minX, minY := g.Nodes[nodes[0]].X, g.Nodes[nodes[0]].Y
	maxX, maxY := minX, minY
	for _, id := range nodes[1:] {
		minX = min(minX, g.Nodes[id].X)
		minY = min(minY, g.Nodes[id].Y)
		maxX = max(maxX, g.Nodes[id].X)
		maxY = max(maxY, g.Nodes[id].Y)
	}

	width := maxX - minX
	height := maxY - minY
	ratio := 0.0
	if longer := max(width, height); longer > 0 {
		ratio = min(width, height) / longer
	}
	return instanceCandidate{
		nodes:  nodes,
		width:  width,
		height: height,
		area:   width * height,
		ratio:  ratio,
	}
}

// filterCandidates drops small and misshapen candidates. The size floor
// applies first, then either the hardcoded bounding box rule or IQR
// outlier rejection over candidate areas.
func filterCandidates(candidates []instanceCandidate, config model.PredictConfig) []instanceCandidate {
	var sized []instanceCandidate
	for _, candidate := range candidates {
		if len(candidate.nodes) > config.MinInstanceNodes {
			sized = append(sized, candidate)
		}
	}
	if len(sized) == 0 {
		return nil
	}

	if config.UseIQRRejection {
		areas := make([]float64, len(sized))
		for i, candidate := range sized {
			areas[i] = candidate.area
		}
		var kept []instanceCandidate
		for _, index := range iqrInliers(areas) {
			kept = append(kept, sized[index])
		}
		return kept
	}

	var kept []instanceCandidate
	for _, candidate := range sized {
		if candidate.ratio > config.MinInstanceRatio &&
			candidate.width < config.MaxInstanceWidth &&
			candidate.height < config.MaxInstanceHeight {
			kept = append(kept, candidate)
		}
	}
	return kept
}

// iqrInliers returns the indices of values within the asymmetric IQR
// fence: 2 IQR below the first quartile, 6 IQR above the third.
func iqrInliers(values []float64) []int {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	q25 := stat.Quantile(0.25, stat.LinInterp, sorted, nil)
	q75 := stat.Quantile(0.75, stat.LinInterp, sorted, nil)
	iqr := q75 - q25
	lower := q25 - 2*iqr
	upper := q75 + 6*iqr

	var inliers []int
	for i, v := range values {
		if v > lower && v < upper {
			inliers = append(inliers, i)
		}
	}
	return inliers
}
