package linkpred

import (
	. "github.com/gomlx/exceptions"
	"github.com/gomlx/gnn"
	"github.com/gomlx/gnn/citation"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/datasets"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/pkg/errors"
)

var (
	// ParamScorer selects the pairwise scorer: "dot" or "mlp".
	// The default is "dot".
	ParamScorer = "linkpred_scorer"

	// ParamTestFraction is the fraction of positive edges held out for test.
	// The default is 0.1.
	ParamTestFraction = "linkpred_test_fraction"

	// ParamSplitSeed seeds the edge split and the negative sampling.
	// The default is 42.
	ParamSplitSeed = "linkpred_split_seed"
)

// VariablesScope is the absolute scope holding the frozen training-graph
// variables in the context.
const VariablesScope = "/linkpred"

// UploadVariables stores the node features and the training-graph edges as
// frozen variables, so [ModelGraph] can use them without inputs.
// [citation.Download] must have been called first.
func UploadVariables(ctx *context.Context, split *EdgeSplit) *context.Context {
	if citation.NodeFeatures == nil {
		Panicf("citation data not loaded, call citation.Download() first")
	}
	ctxScope := ctx.InAbsPath(VariablesScope)
	for name, value := range map[string]*tensors.Tensor{
		"NodeFeatures":     citation.NodeFeatures,
		"TrainEdgeSources": split.TrainGraph.SourcesTensor(),
		"TrainEdgeTargets": split.TrainGraph.TargetsTensor(),
	} {
		v := ctxScope.VariableWithValue(name, value)
		v.Trainable = false
	}
	return ctx
}

func getSplitVar(ctx *context.Context, g *graph.Graph, name string) *graph.Node {
	splitVar := ctx.GetVariableByScopeAndName(VariablesScope, name)
	if splitVar == nil {
		Panicf("missing link-prediction variable %q, call linkpred.UploadVariables() on the context first", name)
	}
	return splitVar.ValueGraph(g)
}

// ModelGraph builds the link predictor: GNN node representations over the
// training graph, then pairwise scores for the requested node pairs.
//
// inputs[0] and inputs[1] are the pair sources and targets, each shaped
// `(Int32)[batchSize]`. It returns the logits shaped `[batchSize, 1]`.
func ModelGraph(ctx *context.Context, spec any, inputs []*graph.Node) []*graph.Node {
	_ = spec
	pairSources, pairTargets := inputs[0], inputs[1]
	g := pairSources.Graph()
	ctx = ctx.In("model")

	features := getSplitVar(ctx, g, "NodeFeatures")
	edgeSources := getSplitVar(ctx, g, "TrainEdgeSources")
	edgeTargets := getSplitVar(ctx, g, "TrainEdgeTargets")
	h := gnn.NodeRepresentations(ctx.In("gnn"), features, edgeSources, edgeTargets, nil)

	var scores *graph.Node
	scorer := context.GetParamOr(ctx, ParamScorer, "dot")
	switch scorer {
	case "dot":
		scores = gnn.EdgeScoresDot(h, pairSources, pairTargets)
	case "mlp":
		scores = gnn.EdgeScoresMLP(ctx.In("scorer"), h, pairSources, pairTargets)
	default:
		Panicf("invalid scorer %q (given by parameter %q) -- valid values are 'dot' and 'mlp'",
			scorer, ParamScorer)
	}
	return []*graph.Node{graph.InsertAxes(scores, -1)}
}

// pairsTensors assembles the positives followed by the negatives into the
// (sources, targets, labels) tensors of one split.
func pairsTensors(posSources, posTargets, negSources, negTargets []int32) (sources, targets, labels *tensors.Tensor) {
	n := len(posSources) + len(negSources)
	allSources := make([]int32, 0, n)
	allSources = append(allSources, posSources...)
	allSources = append(allSources, negSources...)
	allTargets := make([]int32, 0, n)
	allTargets = append(allTargets, posTargets...)
	allTargets = append(allTargets, negTargets...)
	labelValues := make([]float32, n)
	for ii := range posSources {
		labelValues[ii] = 1
	}
	sources = tensors.FromValue(allSources)
	targets = tensors.FromValue(allTargets)
	labels = tensors.FromFlatDataAndDimensions(labelValues, n, 1)
	return
}

// MakeDatasets returns the training dataset (infinite, shuffled) and the
// train/test evaluation datasets, each yielding full-batch
// (pair sources, pair targets, labels).
func MakeDatasets(backend backends.Backend, split *EdgeSplit) (trainDS, trainEvalDS, testEvalDS train.Dataset, err error) {
	makeSplit := func(name string, posSources, posTargets, negSources, negTargets []int32) (*datasets.InMemoryDataset, error) {
		sources, targets, labels := pairsTensors(posSources, posTargets, negSources, negTargets)
		ds, err := datasets.InMemoryFromData(backend, name, []any{sources, targets}, []any{labels})
		if err != nil {
			return nil, errors.WithMessagef(err, "building %q dataset", name)
		}
		return ds.BatchSize(sources.Shape().Dimensions[0], false), nil
	}

	var ds *datasets.InMemoryDataset
	if ds, err = makeSplit("train", split.TrainPosSources, split.TrainPosTargets, split.TrainNegSources, split.TrainNegTargets); err != nil {
		return
	}
	trainDS = ds.Infinite(true).Shuffle()
	if ds, err = makeSplit("train", split.TrainPosSources, split.TrainPosTargets, split.TrainNegSources, split.TrainNegTargets); err != nil {
		return
	}
	trainEvalDS = ds
	if ds, err = makeSplit("test", split.TestPosSources, split.TestPosTargets, split.TestNegSources, split.TestNegTargets); err != nil {
		return
	}
	testEvalDS = ds
	return
}
