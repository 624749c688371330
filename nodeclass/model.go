// Package nodeclass trains and evaluates a GNN node classifier on the Cora
// citation graph: every training step runs the message-passing layers over
// the full graph and reads out the logits of the seed nodes in the batch.
package nodeclass

import (
	. "github.com/gomlx/exceptions"
	"github.com/gomlx/gnn"
	"github.com/gomlx/gnn/citation"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers"
)

// getCoraVar fetches one of the frozen dataset variables uploaded by
// [citation.UploadVariables].
func getCoraVar(ctx *context.Context, g *Graph, name string) *Node {
	coraVar := ctx.GetVariableByScopeAndName(citation.CoraVariablesScope, name)
	if coraVar == nil {
		Panicf("missing Cora dataset variable %q, call citation.UploadVariables() on the context first", name)
	}
	return coraVar.ValueGraph(g)
}

// ModelGraph builds the classifier: GNN node representations over the full
// Cora graph, then a dense readout over the seed nodes.
//
// inputs[0] are the seed node indices, shaped `(Int32)[batchSize, 1]`. It
// returns the logits shaped `[batchSize, citation.NumClasses]`.
func ModelGraph(ctx *context.Context, spec any, inputs []*Node) []*Node {
	_ = spec
	seeds := inputs[0]
	g := seeds.Graph()
	ctx = ctx.In("model")

	features := getCoraVar(ctx, g, "NodeFeatures")
	edgeSources := getCoraVar(ctx, g, "EdgeSources")
	edgeTargets := getCoraVar(ctx, g, "EdgeTargets")

	h := gnn.NodeRepresentations(ctx.In("gnn"), features, edgeSources, edgeTargets, nil)
	seedStates := Gather(h, seeds)
	logits := layers.DenseWithBias(ctx.In("readout"), seedStates, citation.NumClasses)
	return []*Node{logits}
}
