package anomaly

import (
	"math"
	"math/rand"
)

// Isolation forest parameters. The tree count and subsample size follow
// the standard algorithm; the seed is a required knob because the
// detector's output must be bit-identical across runs.
const (
	isoTreeCount    = 100
	isoMaxSubsample = 256
)

// isoNode is one node of an isolation tree. Leaf nodes carry the size
// of the sample that terminated there.
type isoNode struct {
	feature int
	split   float64
	left    *isoNode
	right   *isoNode
	size    int
}

func (n *isoNode) leaf() bool {
	return n.left == nil
}

// isolationForest scores multivariate rows by how quickly random
// axis-aligned splits isolate them.
type isolationForest struct {
	trees     []*isoNode
	subsample int
}

// newIsolationForest builds a forest over the feature matrix rows.
// All randomness flows from the given seed.
func newIsolationForest(rows [][]float64, seed int64) *isolationForest {
	rng := rand.New(rand.NewSource(seed))

	psi := len(rows)
	if psi > isoMaxSubsample {
		psi = isoMaxSubsample
	}
	heightLimit := int(math.Ceil(math.Log2(float64(psi))))

	f := &isolationForest{subsample: psi}
	for t := 0; t < isoTreeCount; t++ {
		perm := rng.Perm(len(rows))
		sample := make([][]float64, psi)
		for i := 0; i < psi; i++ {
			sample[i] = rows[perm[i]]
		}
		f.trees = append(f.trees, buildIsoTree(sample, 0, heightLimit, rng))
	}
	return f
}

func buildIsoTree(sample [][]float64, depth, limit int, rng *rand.Rand) *isoNode {
	if depth >= limit || len(sample) <= 1 {
		return &isoNode{size: len(sample)}
	}

	feature := rng.Intn(len(sample[0]))
	lo, hi := sample[0][feature], sample[0][feature]
	for _, row := range sample[1:] {
		if row[feature] < lo {
			lo = row[feature]
		}
		if row[feature] > hi {
			hi = row[feature]
		}
	}
	if lo == hi {
		return &isoNode{size: len(sample)}
	}

	split := lo + rng.Float64()*(hi-lo)

	var left, right [][]float64
	for _, row := range sample {
		if row[feature] < split {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}

	return &isoNode{
		feature: feature,
		split:   split,
		left:    buildIsoTree(left, depth+1, limit, rng),
		right:   buildIsoTree(right, depth+1, limit, rng),
	}
}

// pathLength returns the depth at which x terminates, adjusted by the
// average unsuccessful-search length of the terminating leaf's sample.
func (n *isoNode) pathLength(x []float64, depth float64) float64 {
	if n.leaf() {
		return depth + averagePathLength(n.size)
	}
	if x[n.feature] < n.split {
		return n.left.pathLength(x, depth+1)
	}
	return n.right.pathLength(x, depth+1)
}

// averagePathLength is c(n): the average path length of an unsuccessful
// BST search over n points.
func averagePathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	const eulerMascheroni = 0.5772156649
	h := math.Log(float64(n-1)) + eulerMascheroni
	return 2*h - 2*float64(n-1)/float64(n)
}

// ScoreSamples returns the negated anomaly score of each row, in
// (-1, 0). More negative means more anomalous, the same convention
// scikit-learn's score_samples uses.
func (f *isolationForest) ScoreSamples(rows [][]float64) []float64 {
	norm := averagePathLength(f.subsample)

	scores := make([]float64, len(rows))
	for i, row := range rows {
		var total float64
		for _, tree := range f.trees {
			total += tree.pathLength(row, 0)
		}
		mean := total / float64(len(f.trees))
		scores[i] = -math.Pow(2, -mean/norm)
	}
	return scores
}
