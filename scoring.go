package gnn

import (
	. "github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers"
	"github.com/gomlx/gomlx/pkg/ml/layers/activations"
)

// EdgeScoresDot scores node pairs by the dot product of their
// representations: score[i] = h[pairSources[i]] . h[pairTargets[i]].
//
// h must be shaped `[numNodes, embSize]`; pairSources and pairTargets are
// integer node indices shaped `[numPairs]` or `[numPairs, 1]`. The result is
// shaped `[numPairs]`. There are no learnable parameters.
func EdgeScoresDot(h, pairSources, pairTargets *Node) *Node {
	sourceStates, targetStates := gatherPairStates(h, pairSources, pairTargets)
	return ReduceSum(Mul(sourceStates, targetStates), -1)
}

// EdgeScoresMLP scores node pairs with a small FNN over the concatenated
// endpoint representations: one hidden layer of [ParamScorerHiddenDim] units
// with the context activation, then a linear layer to a single logit per
// pair. The result is shaped `[numPairs]`.
func EdgeScoresMLP(ctx *context.Context, h, pairSources, pairTargets *Node) *Node {
	sourceStates, targetStates := gatherPairStates(h, pairSources, pairTargets)
	hiddenDim := context.GetParamOr(ctx, ParamScorerHiddenDim, 16)
	hidden := layers.DenseWithBias(ctx.In("hidden"), Concatenate([]*Node{sourceStates, targetStates}, -1), hiddenDim)
	hidden = activations.ApplyFromContext(ctx, hidden)
	logits := layers.DenseWithBias(ctx.In("logits"), hidden, 1)
	return Squeeze(logits, -1)
}

func gatherPairStates(h, pairSources, pairTargets *Node) (sourceStates, targetStates *Node) {
	if h.Rank() != 2 {
		Panicf("edge scoring: node representations must be shaped `[numNodes, embSize]`, got %s", h.Shape())
	}
	if !pairSources.Shape().Equal(pairTargets.Shape()) {
		Panicf("edge scoring: pairSources and pairTargets must have the same shape, got %s and %s",
			pairSources.Shape(), pairTargets.Shape())
	}
	if (pairSources.Rank() != 1 && pairSources.Rank() != 2) ||
		(pairSources.Rank() == 2 && pairSources.Shape().Dimensions[1] != 1) {
		Panicf("edge scoring: pairs must be shaped `[numPairs]` or `[numPairs, 1]`, got %s",
			pairSources.Shape())
	}
	sourceStates = gatherSources(h, pairSources)
	targetStates = gatherSources(h, pairTargets)
	return
}
