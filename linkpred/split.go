// Package linkpred trains and evaluates a GNN link predictor on the Cora
// citation graph: the positive edges are split into train and test sets, the
// model computes node representations on the training graph only and scores
// node pairs, and evaluation reports accuracy and the area under the ROC
// curve on held-out positives against sampled negatives.
package linkpred

import (
	"math/rand"

	"github.com/gomlx/gnn/graphs"
	"github.com/pkg/errors"
)

// EdgeSplit holds the link-prediction data derived from a graph: the
// training graph (the original minus the test positives), the positive edges
// of each split and the sampled negative pairs.
type EdgeSplit struct {
	// TrainGraph is the input graph with the test positive edges removed.
	// Representations are computed on it, so the model never sees the edges
	// it is asked to predict.
	TrainGraph *graphs.Graph

	TrainPosSources, TrainPosTargets []int32
	TestPosSources, TestPosTargets   []int32

	TrainNegSources, TrainNegTargets []int32
	TestNegSources, TestNegTargets   []int32
}

// Split partitions the edges of g into train and test positives (testFraction
// of the edges, randomly chosen) and samples one negative pair per positive.
//
// Negatives are sampled uniformly over node pairs without replacement,
// rejecting self-loops, pairs connected in the original graph and pairs
// already sampled. The same seed always produces the same split.
func Split(g *graphs.Graph, testFraction float64, seed int64) (*EdgeSplit, error) {
	if testFraction <= 0 || testFraction >= 1 {
		return nil, errors.Errorf("testFraction=%g, must be in (0, 1)", testFraction)
	}
	numEdges := g.NumEdges()
	numTest := int(testFraction * float64(numEdges))
	if numTest == 0 || numTest == numEdges {
		return nil, errors.Errorf("testFraction=%g leaves an empty split for %d edges", testFraction, numEdges)
	}
	rng := rand.New(rand.NewSource(seed))

	perm := rng.Perm(numEdges)
	testEdges := perm[:numTest]
	trainEdges := perm[numTest:]

	split := &EdgeSplit{}
	allSources, allTargets := g.EdgeSources(), g.EdgeTargets()
	for _, edge := range testEdges {
		split.TestPosSources = append(split.TestPosSources, allSources[edge])
		split.TestPosTargets = append(split.TestPosTargets, allTargets[edge])
	}
	for _, edge := range trainEdges {
		split.TrainPosSources = append(split.TrainPosSources, allSources[edge])
		split.TrainPosTargets = append(split.TrainPosTargets, allTargets[edge])
	}

	trainGraph, err := g.RemoveEdges(testEdges)
	if err != nil {
		return nil, err
	}
	split.TrainGraph = trainGraph

	negSources, negTargets, err := sampleNegatives(g, numEdges, rng)
	if err != nil {
		return nil, err
	}
	split.TestNegSources = negSources[:numTest]
	split.TestNegTargets = negTargets[:numTest]
	split.TrainNegSources = negSources[numTest:]
	split.TrainNegTargets = negTargets[numTest:]
	return split, nil
}

// sampleNegatives draws count node pairs uniformly, without replacement,
// rejecting self-loops and pairs connected in g. Rejection over the Cora
// graph is cheap: ~10k edges over 2708^2 candidate pairs.
func sampleNegatives(g *graphs.Graph, count int, rng *rand.Rand) (sources, targets []int32, err error) {
	numNodes := int32(g.NumNodes())
	maxPairs := int64(numNodes) * int64(numNodes-1)
	if int64(count)+int64(g.NumEdges()) > maxPairs {
		return nil, nil, errors.Errorf("cannot sample %d negative pairs: graph with %d nodes and %d edges does not have enough disconnected pairs",
			count, numNodes, g.NumEdges())
	}
	seen := make(map[int64]bool, count)
	sources = make([]int32, 0, count)
	targets = make([]int32, 0, count)
	for len(sources) < count {
		u := rng.Int31n(numNodes)
		v := rng.Int31n(numNodes)
		if u == v || g.HasEdge(u, v) {
			continue
		}
		key := int64(u)*int64(numNodes) + int64(v)
		if seen[key] {
			continue
		}
		seen[key] = true
		sources = append(sources, u)
		targets = append(targets, v)
	}
	return sources, targets, nil
}
