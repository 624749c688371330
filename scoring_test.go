package gnn

import (
	"testing"

	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/graph/graphtest"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/support/xslices"
	"github.com/stretchr/testify/require"
)

func TestEdgeScoresDot(t *testing.T) {
	graphtest.BuildTestBackend()
	graphtest.RunTestGraphFn(
		t, "EdgeScoresDot()",
		func(g *Graph) (inputs, outputs []*Node) {
			h := Const(g, [][]float32{{1, 2}, {3, 4}, {-1, 1}})
			pairSources := Const(g, []int32{0, 1, 2})
			pairTargets := Const(g, []int32{1, 2, 2})
			inputs = []*Node{h, pairSources, pairTargets}
			outputs = []*Node{EdgeScoresDot(h, pairSources, pairTargets)}
			return
		}, []any{
			// [1,2].[3,4]=11, [3,4].[-1,1]=1, [-1,1].[-1,1]=2.
			[]float32{11, 1, 2},
		}, xslices.Epsilon)
}

func TestEdgeScoresMLP(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	ctx := context.New()
	ctx.SetParam(ParamScorerHiddenDim, 8)
	exec := context.MustNewExec(backend, ctx, func(ctx *context.Context, h, pairSources, pairTargets *Node) *Node {
		return EdgeScoresMLP(ctx, h, pairSources, pairTargets)
	})
	h := tensors.FromValue([][]float32{{1, 2}, {3, 4}, {-1, 1}})
	pairSources := tensors.FromValue([]int32{0, 1})
	pairTargets := tensors.FromValue([]int32{1, 2})
	got := exec.MustExec(h, pairSources, pairTargets)[0]
	require.Equal(t, []int{2}, got.Shape().Dimensions)

	again := exec.MustExec(h, pairSources, pairTargets)[0]
	require.True(t, got.Equal(again))
}
