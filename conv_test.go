package gnn

import (
	"testing"

	_ "github.com/gomlx/compute/gobackend"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/graph/graphtest"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/support/xslices"
	"github.com/stretchr/testify/require"
)

func TestAggregateMean(t *testing.T) {
	graphtest.BuildTestBackend()
	ctx := context.New() // Default pooling: mean.
	graphtest.RunTestGraphFn(
		t, "Aggregate() mean",
		func(g *Graph) (inputs, outputs []*Node) {
			// 3 nodes, edges 0->1 and 2->1.
			state := Const(g, [][]float32{{1, 0}, {0, 0}, {0, 1}})
			edgesSource := Const(g, []int32{0, 2})
			edgesTarget := Const(g, []int32{1, 1})
			inputs = []*Node{state, edgesSource, edgesTarget}
			outputs = []*Node{Aggregate(ctx, state, edgesSource, edgesTarget, nil)}
			return
		}, []any{
			// Node 1 averages its two neighbors, nodes 0 and 2 have no
			// incoming edges and pool to zero.
			[][]float32{
				{0, 0},
				{0.5, 0.5},
				{0, 0},
			},
		}, xslices.Epsilon)
}

func TestAggregateSelfLoop(t *testing.T) {
	graphtest.BuildTestBackend()
	ctx := context.New()
	graphtest.RunTestGraphFn(
		t, "Aggregate() self-loop with weight 1",
		func(g *Graph) (inputs, outputs []*Node) {
			state := Const(g, [][]float32{{3, -2, 7}, {1, 1, 1}})
			edgesSource := Const(g, []int32{0})
			edgesTarget := Const(g, []int32{0})
			weights := Const(g, [][]float32{{1}})
			inputs = []*Node{state}
			outputs = []*Node{Aggregate(ctx, state, edgesSource, edgesTarget, weights)}
			return
		}, []any{
			// Node 0 pools exactly its own features; node 1 pools zero.
			[][]float32{
				{3, -2, 7},
				{0, 0, 0},
			},
		}, xslices.Epsilon)
}

func TestAggregateNoEdges(t *testing.T) {
	graphtest.BuildTestBackend()
	ctx := context.New()
	graphtest.RunTestGraphFn(
		t, "Aggregate() zero-edge graph",
		func(g *Graph) (inputs, outputs []*Node) {
			state := Const(g, [][]float32{{1, 2}, {3, 4}, {5, 6}})
			edgesSource := Const(g, []int32{})
			edgesTarget := Const(g, []int32{})
			inputs = []*Node{state}
			outputs = []*Node{Aggregate(ctx, state, edgesSource, edgesTarget, nil)}
			return
		}, []any{
			[][]float32{{0, 0}, {0, 0}, {0, 0}},
		}, xslices.Epsilon)
}

func TestAggregateEdgeWeights(t *testing.T) {
	graphtest.BuildTestBackend()
	ctx := context.New()
	ctx.SetParam(ParamPoolingType, "sum")
	graphtest.RunTestGraphFn(
		t, "Aggregate() weighted sum",
		func(g *Graph) (inputs, outputs []*Node) {
			state := Const(g, [][]float32{{1, 1}, {2, 3}, {0, 0}})
			edgesSource := Const(g, []int32{0, 1})
			edgesTarget := Const(g, []int32{2, 2})
			scalarWeights := Const(g, [][]float32{{2}, {10}})
			vectorWeights := Const(g, [][]float32{{1, 2}, {10, 100}})
			inputs = []*Node{state}
			outputs = []*Node{
				Aggregate(ctx, state, edgesSource, edgesTarget, scalarWeights),
				Aggregate(ctx, state, edgesSource, edgesTarget, vectorWeights),
			}
			return
		}, []any{
			// 2*[1,1] + 10*[2,3] = [22, 32].
			[][]float32{{0, 0}, {0, 0}, {22, 32}},
			// [1,2]*[1,1] + [10,100]*[2,3] = [21, 302].
			[][]float32{{0, 0}, {0, 0}, {21, 302}},
		}, xslices.Epsilon)
}

func TestPoolMessages(t *testing.T) {
	graphtest.BuildTestBackend()
	ctx := context.New()
	ctx.SetParam(ParamPoolingType, "sum|mean|max")
	graphtest.RunTestGraphFn(
		t, "PoolMessages() sum|mean|max",
		func(g *Graph) (inputs, outputs []*Node) {
			// 4 messages into 3 target nodes; node 1 gets none.
			messages := Const(g, [][]float32{
				{1, -2},
				{3, -4},
				{-5, 6},
				{7, 8},
			})
			edgesTarget := Const(g, []int32{0, 0, 2, 2})
			inputs = []*Node{messages, edgesTarget}
			outputs = []*Node{PoolMessages(ctx, messages, edgesTarget, 3)}
			return
		}, []any{
			[][]float32{
				/* sum | mean | max */
				{4, -6, 2, -3, 3, -2},
				{0, 0, 0, 0, 0, 0}, // No incoming messages: zero for all pooling types.
				{2, 14, 1, 7, 7, 8},
			},
		}, xslices.Epsilon)
}

func TestPoolMessagesMaxNegative(t *testing.T) {
	graphtest.BuildTestBackend()
	ctx := context.New()
	ctx.SetParam(ParamPoolingType, "max")
	graphtest.RunTestGraphFn(
		t, "PoolMessages() max over negative values",
		func(g *Graph) (inputs, outputs []*Node) {
			messages := Const(g, [][]float32{{-3, -1}, {-2, -5}})
			edgesTarget := Const(g, []int32{0, 0})
			inputs = []*Node{messages}
			outputs = []*Node{PoolMessages(ctx, messages, edgesTarget, 2)}
			return
		}, []any{
			// Max of all-negative messages stays negative, it is not clamped
			// to the empty-neighborhood zero.
			[][]float32{
				{-2, -1},
				{0, 0},
			},
		}, xslices.Epsilon)
}

// convGraphFn builds one default convolution to outputDim=4.
func convGraphFn(ctx *context.Context, state, edgesSource, edgesTarget *Node) *Node {
	return (&Convolution{}).Apply(ctx, state, edgesSource, edgesTarget, nil, 4)
}

func TestConvolutionShapeAndDeterminism(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	ctx := context.New()
	exec := context.MustNewExec(backend, ctx, convGraphFn)

	state := tensors.FromValue([][]float32{{1, 0}, {0, 0}, {0, 1}})
	edgesSource := tensors.FromValue([]int32{0, 2})
	edgesTarget := tensors.FromValue([]int32{1, 1})

	got := exec.MustExec(state, edgesSource, edgesTarget)[0]
	require.Equal(t, []int{3, 4}, got.Shape().Dimensions)

	// Same inputs, same parameters: bit-identical outputs.
	again := exec.MustExec(state, edgesSource, edgesTarget)[0]
	require.True(t, got.Equal(again))

	// Inputs are left untouched.
	require.Equal(t, [][]float32{{1, 0}, {0, 0}, {0, 1}}, state.Value())
	require.Equal(t, []int32{0, 2}, edgesSource.Value())
}

func TestConvolutionCustomStages(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	ctx := context.New()
	conv := &Convolution{
		// Message doubles the source state, update ignores the dense kernel
		// and returns pooled-minus-self, so the whole convolution has no
		// learnable parameters and can be checked exactly.
		Message: func(ctx *context.Context, gathered *Node) *Node {
			return MulScalar(gathered, 2)
		},
		PoolingType: "sum",
		Update: func(ctx *context.Context, selfState, pooled *Node) *Node {
			return Sub(pooled, selfState)
		},
	}
	exec := context.MustNewExec(backend, ctx, func(ctx *context.Context, state, edgesSource, edgesTarget *Node) *Node {
		return conv.Apply(ctx, state, edgesSource, edgesTarget, nil, 0)
	})
	state := tensors.FromValue([][]float32{{1, 2}, {10, 20}})
	edgesSource := tensors.FromValue([]int32{0})
	edgesTarget := tensors.FromValue([]int32{1})
	got := exec.MustExec(state, edgesSource, edgesTarget)[0]
	want := tensors.FromValue([][]float32{{-1, -2}, {-8, -16}})
	require.True(t, want.InDelta(got, xslices.Epsilon), "got %s, want %s", got.GoStr(), want.GoStr())
}

func TestNodeRepresentations(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	ctx := context.New()
	ctx.SetParam(ParamNumLayers, 3)
	ctx.SetParam(ParamStateDim, 5)
	exec := context.MustNewExec(backend, ctx, func(ctx *context.Context, features, edgesSource, edgesTarget *Node) *Node {
		return NodeRepresentations(ctx, features, edgesSource, edgesTarget, nil)
	})
	features := tensors.FromValue([][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {1, 1, 1}})
	edgesSource := tensors.FromValue([]int32{0, 1, 2, 3})
	edgesTarget := tensors.FromValue([]int32{1, 2, 3, 0})
	got := exec.MustExec(features, edgesSource, edgesTarget)[0]
	require.Equal(t, []int{4, 5}, got.Shape().Dimensions)

	again := exec.MustExec(features, edgesSource, edgesTarget)[0]
	require.True(t, got.Equal(again))
}
