package pattern

import "github.com/papercomputeco/psyche/pkg/mind"

// Clustering is the result of a density pass over a set of feature vectors.
type Clustering struct {
	// Clusters holds index groups into the input slice, in discovery order.
	Clusters [][]int

	// Noise holds indices that belong to no cluster.
	Noise []int
}

// Cluster runs a DBSCAN-style density clustering over feature vectors.
// eps is the neighborhood radius, minPts the minimum neighborhood size for a
// core point. The function is pure and deterministic for a fixed input
// order, so it can be unit-tested against fixed vector fixtures.
func Cluster(points []mind.FeatureVector, eps float64, minPts int) Clustering {
	const (
		unvisited = 0
		noise     = -1
	)

	// labels: 0 unvisited, -1 noise, >0 cluster number.
	labels := make([]int, len(points))
	clusterNum := 0

	neighborsOf := func(i int) []int {
		var neighbors []int
		for j := range points {
			if j == i {
				continue
			}
			if points[i].Distance(points[j]) <= eps {
				neighbors = append(neighbors, j)
			}
		}
		return neighbors
	}

	for i := range points {
		if labels[i] != unvisited {
			continue
		}

		neighbors := neighborsOf(i)
		if len(neighbors)+1 < minPts {
			labels[i] = noise
			continue
		}

		// Core point: start a new cluster and expand it.
		clusterNum++
		labels[i] = clusterNum

		queue := append([]int(nil), neighbors...)
		for len(queue) > 0 {
			j := queue[0]
			queue = queue[1:]

			if labels[j] == noise {
				// Border point reachable from a core point.
				labels[j] = clusterNum
				continue
			}
			if labels[j] != unvisited {
				continue
			}

			labels[j] = clusterNum
			jNeighbors := neighborsOf(j)
			if len(jNeighbors)+1 >= minPts {
				queue = append(queue, jNeighbors...)
			}
		}
	}

	result := Clustering{
		Clusters: make([][]int, clusterNum),
	}
	for i, label := range labels {
		if label == noise {
			result.Noise = append(result.Noise, i)
			continue
		}
		result.Clusters[label-1] = append(result.Clusters[label-1], i)
	}

	return result
}

// Centroid returns the mean feature vector of the indexed points.
func Centroid(points []mind.FeatureVector, indices []int) mind.FeatureVector {
	var c mind.FeatureVector
	if len(indices) == 0 {
		return c
	}

	for _, i := range indices {
		for d := range c {
			c[d] += points[i][d]
		}
	}
	for d := range c {
		c[d] /= float64(len(indices))
	}
	return c
}
