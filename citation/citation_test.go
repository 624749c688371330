package citation

import (
	"testing"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/stretchr/testify/require"
)

func TestGraphBeforeDownload(t *testing.T) {
	require.Nil(t, NodeFeatures)
	_, err := Graph()
	require.Error(t, err)
}

func TestBuildSplits(t *testing.T) {
	// Synthetic labels cycling through the classes: the first NumTrain nodes
	// then hold exactly NumTrainPerClass nodes of each class.
	labels := make([]int32, NumNodes)
	for node := range labels {
		labels[node] = int32(node % NumClasses)
	}
	NodeLabels = tensors.FromFlatDataAndDimensions(labels, NumNodes, 1)
	defer func() {
		NodeLabels = nil
		TrainIndices, ValidIndices, TestIndices = nil, nil, nil
		TrainLabels, ValidLabels, TestLabels = nil, nil, nil
		TrainMask, ValidMask, TestMask = nil, nil, nil
	}()
	buildSplits()

	require.Equal(t, []int{NumTrain, 1}, TrainIndices.Shape().Dimensions)
	require.Equal(t, []int{NumValid, 1}, ValidIndices.Shape().Dimensions)
	require.Equal(t, []int{NumTest, 1}, TestIndices.Shape().Dimensions)

	trainIndices := tensors.MustCopyFlatData[int32](TrainIndices)
	validIndices := tensors.MustCopyFlatData[int32](ValidIndices)
	testIndices := tensors.MustCopyFlatData[int32](TestIndices)

	// Train takes the first nodes, 20 per class; with cycling labels that is
	// nodes 0..139 in order. Validation follows, test is the file tail.
	require.Equal(t, int32(0), trainIndices[0])
	require.Equal(t, int32(NumTrain-1), trainIndices[NumTrain-1])
	require.Equal(t, int32(NumTrain), validIndices[0])
	require.Equal(t, int32(NumNodes-NumTest), testIndices[0])
	require.Equal(t, int32(NumNodes-1), testIndices[NumTest-1])

	perClass := make(map[int32]int)
	trainLabels := tensors.MustCopyFlatData[int32](TrainLabels)
	for _, class := range trainLabels {
		perClass[class]++
	}
	require.Len(t, perClass, NumClasses)
	for class, count := range perClass {
		require.Equal(t, NumTrainPerClass, count, "class %d", class)
	}

	trainMask := tensors.MustCopyFlatData[bool](TrainMask)
	validMask := tensors.MustCopyFlatData[bool](ValidMask)
	testMask := tensors.MustCopyFlatData[bool](TestMask)
	for node := 0; node < NumNodes; node++ {
		// No node belongs to both train and validation.
		require.False(t, trainMask[node] && validMask[node], "node %d", node)
	}
	require.True(t, testMask[NumNodes-1])
	require.False(t, testMask[0])
}

func TestClassNames(t *testing.T) {
	require.Len(t, ClassNames, NumClasses)
}
