// Package citation provides the Cora citation dataset: 2708 machine-learning
// papers with 1433 binary word features each, classified into 7 topics, and
// the citation links among them.
//
// Call [Download] once to fetch and parse the data (results are cached as
// tensor files, so restarts are fast), then use the package-level tensors,
// [Graph] or [UploadVariables].
package citation

import (
	"github.com/gomlx/gnn/graphs"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
)

const (
	// NumNodes is the number of papers.
	NumNodes = 2708

	// NumFeatures is the number of binary word features per paper.
	NumFeatures = 1433

	// NumClasses is the number of paper topics.
	NumClasses = 7

	// NumEdges is the number of directed citation edges, after adding both
	// directions of each citation and deduplicating.
	NumEdges = 10556

	// NumTrainPerClass is the number of training nodes taken per class.
	NumTrainPerClass = 20

	// NumTrain, NumValid and NumTest are the split sizes: the first
	// NumTrainPerClass nodes of each class are train, the next NumValid
	// unassigned nodes are validation and the last NumTest nodes are test,
	// all in dataset order.
	NumTrain = NumTrainPerClass * NumClasses
	NumValid = 500
	NumTest  = 1000
)

// ClassNames are the 7 paper topics; a node's label is an index into this.
var ClassNames = []string{
	"Case_Based",
	"Genetic_Algorithms",
	"Neural_Networks",
	"Probabilistic_Methods",
	"Reinforcement_Learning",
	"Rule_Learning",
	"Theory",
}

var (
	// NodeFeatures are the word features, shaped `(Float32)[NumNodes, NumFeatures]`.
	NodeFeatures *tensors.Tensor

	// NodeLabels are the class ids, shaped `(Int32)[NumNodes, 1]`.
	NodeLabels *tensors.Tensor

	// EdgeSources and EdgeTargets are the directed citation edges, each
	// shaped `(Int32)[NumEdges]`.
	EdgeSources, EdgeTargets *tensors.Tensor

	// Split index tensors, shaped `(Int32)[count, 1]`, and their labels,
	// also shaped `(Int32)[count, 1]`.
	TrainIndices, ValidIndices, TestIndices *tensors.Tensor
	TrainLabels, ValidLabels, TestLabels    *tensors.Tensor

	// TrainMask, ValidMask and TestMask are boolean per-node masks, each
	// shaped `(Bool)[NumNodes]`.
	TrainMask, ValidMask, TestMask *tensors.Tensor
)

// Graph returns the Cora citation graph with the word features attached.
// [Download] must have been called first.
func Graph() (*graphs.Graph, error) {
	if NodeFeatures == nil {
		return nil, errors.New("citation data not loaded, call citation.Download() first")
	}
	g, err := graphs.New(NumNodes,
		tensors.MustCopyFlatData[int32](EdgeSources),
		tensors.MustCopyFlatData[int32](EdgeTargets))
	if err != nil {
		return nil, err
	}
	return g.WithNodeFeatures(NodeFeatures)
}
