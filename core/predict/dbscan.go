package predict

// Noise marks points DBSCAN assigned to no cluster.
const Noise = -1

// DBSCAN clusters 2D points by density. It returns a cluster label per
// point, Noise for points that are neither core points nor reachable from
// one. With minPoints of 1 every point becomes a core point and the result
// is a partition by eps-connectivity.
func DBSCAN(points [][2]float64, eps float64, minPoints int) []int {
	labels := make([]int, len(points))
	for i := range labels {
		labels[i] = Noise
	}

	epsSquared := eps * eps
	neighborsOf := func(p int) []int {
		var neighbors []int
		for q := range points {
			dx := points[p][0] - points[q][0]
			dy := points[p][1] - points[q][1]
			if dx*dx+dy*dy <= epsSquared {
				neighbors = append(neighbors, q)
			}
		}
		return neighbors
	}

	cluster := 0
	for p := range points {
		if labels[p] != Noise {
			continue
		}
		neighbors := neighborsOf(p)
		if len(neighbors) < minPoints {
			continue
		}

		labels[p] = cluster
		queue := append([]int(nil), neighbors...)
		for len(queue) > 0 {
			q := queue[0]
			queue = queue[1:]
			if labels[q] != Noise {
				continue
			}
			labels[q] = cluster

			qNeighbors := neighborsOf(q)
			if len(qNeighbors) >= minPoints {
				queue = append(queue, qNeighbors...)
			}
		}
		cluster++
	}
	return labels
}
