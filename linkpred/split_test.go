package linkpred

import (
	"testing"

	"github.com/gomlx/gnn/graphs"
	"github.com/stretchr/testify/require"
)

// ringGraph builds a 10-node ring with both edge directions (20 edges).
func ringGraph(t *testing.T) *graphs.Graph {
	const numNodes = 10
	var sources, targets []int32
	for node := int32(0); node < numNodes; node++ {
		next := (node + 1) % numNodes
		sources = append(sources, node, next)
		targets = append(targets, next, node)
	}
	g, err := graphs.New(numNodes, sources, targets)
	require.NoError(t, err)
	return g
}

func TestSplit(t *testing.T) {
	g := ringGraph(t)
	split, err := Split(g, 0.25, 17)
	require.NoError(t, err)

	numTest := 5 // 25% of 20 edges.
	require.Len(t, split.TestPosSources, numTest)
	require.Len(t, split.TrainPosSources, g.NumEdges()-numTest)
	require.Len(t, split.TestNegSources, numTest)
	require.Len(t, split.TrainNegSources, g.NumEdges()-numTest)

	// Training graph lost exactly the test positives; the original is intact.
	require.Equal(t, g.NumEdges()-numTest, split.TrainGraph.NumEdges())
	require.Equal(t, 20, g.NumEdges())

	// Test positives are real edges, absent from the training graph.
	for ii := range split.TestPosSources {
		src, tgt := split.TestPosSources[ii], split.TestPosTargets[ii]
		require.True(t, g.HasEdge(src, tgt))
	}

	// Negatives never hit an existing edge, a self-loop or a repeat.
	seen := make(map[[2]int32]bool)
	checkNegatives := func(sources, targets []int32) {
		for ii := range sources {
			src, tgt := sources[ii], targets[ii]
			require.NotEqual(t, src, tgt)
			require.False(t, g.HasEdge(src, tgt), "negative pair (%d,%d) is an edge", src, tgt)
			pair := [2]int32{src, tgt}
			require.False(t, seen[pair], "negative pair (%d,%d) sampled twice", src, tgt)
			seen[pair] = true
		}
	}
	checkNegatives(split.TrainNegSources, split.TrainNegTargets)
	checkNegatives(split.TestNegSources, split.TestNegTargets)
}

func TestSplitDeterminism(t *testing.T) {
	g := ringGraph(t)
	split1, err := Split(g, 0.25, 7)
	require.NoError(t, err)
	split2, err := Split(g, 0.25, 7)
	require.NoError(t, err)
	require.Equal(t, split1.TestPosSources, split2.TestPosSources)
	require.Equal(t, split1.TestPosTargets, split2.TestPosTargets)
	require.Equal(t, split1.TrainNegSources, split2.TrainNegSources)
	require.Equal(t, split1.TestNegTargets, split2.TestNegTargets)

	split3, err := Split(g, 0.25, 8)
	require.NoError(t, err)
	require.NotEqual(t, split1.TestPosSources, split3.TestPosSources)
}

func TestSplitValidation(t *testing.T) {
	g := ringGraph(t)
	_, err := Split(g, 0, 1)
	require.Error(t, err)
	_, err = Split(g, 1, 1)
	require.Error(t, err)
	_, err = Split(g, 0.01, 1) // Rounds down to an empty test split.
	require.Error(t, err)
}
