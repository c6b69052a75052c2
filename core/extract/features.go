package extract

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/floorgraph/floorgraph/model"
)

// NumFeatures is the length of the per-node feature vector.
const NumFeatures = 6

// ComputeFeatures fills in the feature vector of every node:
// degree, mean incident edge length, largest angular gap between incident
// edges, distance to the drawing centroid, and the position relative to the
// bounding box. All columns are standardized per graph.
func ComputeFeatures(g *model.Graph) {
	if len(g.Nodes) == 0 {
		return
	}

	cx, cy := g.Centroid()
	minX, minY, maxX, maxY := g.BoundingBox()
	width := maxX - minX
	height := maxY - minY
	adj := g.Adjacency()

	columns := make([][]float64, NumFeatures)
	for i := range columns {
		columns[i] = make([]float64, len(g.Nodes))
	}

	for i, n := range g.Nodes {
		neighbors := adj[i]

		var meanLength float64
		for _, j := range neighbors {
			meanLength += math.Hypot(g.Nodes[j].X-n.X, g.Nodes[j].Y-n.Y)
		}
		if len(neighbors) > 0 {
			meanLength /= float64(len(neighbors))
		}

		columns[0][i] = float64(len(neighbors))
		columns[1][i] = meanLength
		columns[2][i] = largestAngularGap(g, i, neighbors)
		columns[3][i] = math.Hypot(n.X-cx, n.Y-cy)
		if width > 0 {
			columns[4][i] = (n.X - minX) / width
		}
		if height > 0 {
			columns[5][i] = (n.Y - minY) / height
		}
	}

	for c := range columns {
		standardize(columns[c])
	}

	for i := range g.Nodes {
		features := make([]float64, NumFeatures)
		for c := range columns {
			features[c] = columns[c][i]
		}
		g.Nodes[i].Features = features
	}
}

// largestAngularGap returns the widest angle (radians) between consecutive
// incident edge directions. Nodes with fewer than two neighbors get 2*pi,
// the full circle.
func largestAngularGap(g *model.Graph, id int, neighbors []int) float64 {
	if len(neighbors) < 2 {
		return 2 * math.Pi
	}

	n := g.Nodes[id]
	angles := make([]float64, 0, len(neighbors))
	for _, j := range neighbors {
		angles = append(angles, math.Atan2(g.Nodes[j].Y-n.Y, g.Nodes[j].X-n.X))
	}
	sort.Float64s(angles)

	largest := angles[0] + 2*math.Pi - angles[len(angles)-1]
	for i := 1; i < len(angles); i++ {
		if gap := angles[i] - angles[i-1]; gap > largest {
			largest = gap
		}
	}
	return largest
}

// standardize rescales values in place to zero mean and unit variance.
// Constant columns become all zeros.
func standardize(values []float64) {
	mean, std := stat.MeanStdDev(values, nil)
	if std == 0 || math.IsNaN(std) {
		for i := range values {
			values[i] = 0
		}
		return
	}
	for i := range values {
		values[i] = (values[i] - mean) / std
	}
}
