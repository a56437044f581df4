package cluster

// Label is the DBSCAN classification of an item.
type Label int

const (
	Unlabeled   Label = iota
	Noise             // fewer than minPoints neighbors and not reachable from a core point
	BorderPoint       // reachable from a core point but not dense itself
	CorePoint         // at least minPoints items within epsilon (itself included)
)

func (l Label) String() string {
	switch l {
	case Noise:
		return "noise"
	case BorderPoint:
		return "border"
	case CorePoint:
		return "core"
	default:
		return "unlabeled"
	}
}

// DistanceFunc measures the distance between two items.
type DistanceFunc[T any] func(a, b T) float64

// DBSCAN clusters items by density. An item's epsilon-neighborhood includes the
// item itself. It returns the clusters found and the items still labeled noise
// once every item has been visited.
//
// Cluster contents are deterministic for a fixed iteration order of items;
// the order in which clusters are enumerated is not part of the contract.
// Neighbor search is the naive O(n²) scan, which is fine for the tens to low
// hundreds of terrain features a map produces.
func DBSCAN[T comparable](items []T, epsilon float64, minPoints int, distance DistanceFunc[T]) ([][]T, []T) {
	labels := make(map[T]Label, len(items))

	neighborhood := func(p T) []T {
		var out []T
		for _, q := range items {
			if distance(p, q) <= epsilon {
				out = append(out, q)
			}
		}
		return out
	}

	var clusters [][]T
	for _, p := range items {
		if labels[p] != Unlabeled {
			continue
		}
		nb := neighborhood(p)
		if len(nb) < minPoints {
			labels[p] = Noise
			continue
		}

		labels[p] = CorePoint
		cluster := []T{p}
		queue := nb
		for i := 0; i < len(queue); i++ {
			q := queue[i]
			switch labels[q] {
			case Noise:
				labels[q] = BorderPoint
				cluster = append(cluster, q)
			case Unlabeled:
				cluster = append(cluster, q)
				qnb := neighborhood(q)
				if len(qnb) >= minPoints {
					labels[q] = CorePoint
					queue = append(queue, qnb...)
				} else {
					labels[q] = BorderPoint
				}
			}
		}
		clusters = append(clusters, cluster)
	}

	var noise []T
	emitted := make(map[T]bool)
	for _, p := range items {
		if labels[p] == Noise && !emitted[p] {
			emitted[p] = true
			noise = append(noise, p)
		}
	}
	return clusters, noise
}
