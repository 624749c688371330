package nodeclass

import (
	"testing"

	_ "github.com/gomlx/compute/gobackend"
	"github.com/gomlx/gnn"
	"github.com/gomlx/gnn/citation"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/graph/graphtest"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/stretchr/testify/require"
)

// uploadTestGraph installs a tiny synthetic graph in place of the real Cora
// tensors, so the model graph can be exercised without downloading anything.
func uploadTestGraph(ctx *context.Context) {
	ctxCora := ctx.InAbsPath(citation.CoraVariablesScope)
	for name, value := range map[string]*tensors.Tensor{
		"NodeFeatures": tensors.FromValue([][]float32{
			{1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {1, 1, 0}, {0, 1, 1}}),
		"NodeLabels":  tensors.FromFlatDataAndDimensions([]int32{0, 1, 2, 3, 4}, 5, 1),
		"EdgeSources": tensors.FromValue([]int32{0, 1, 2, 3}),
		"EdgeTargets": tensors.FromValue([]int32{1, 2, 3, 4}),
	} {
		v := ctxCora.VariableWithValue(name, value)
		v.Trainable = false
	}
}

func TestModelGraph(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	ctx := context.New()
	ctx.SetParam(gnn.ParamStateDim, 8)
	uploadTestGraph(ctx)

	exec := context.MustNewExec(backend, ctx, func(ctx *context.Context, seeds *Node) *Node {
		return ModelGraph(ctx, nil, []*Node{seeds})[0]
	})
	seeds := tensors.FromFlatDataAndDimensions([]int32{0, 3}, 2, 1)
	logits := exec.MustExec(seeds)[0]
	require.Equal(t, []int{2, citation.NumClasses}, logits.Shape().Dimensions)

	again := exec.MustExec(seeds)[0]
	require.True(t, logits.Equal(again))
}

func TestModelGraphMissingVariables(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	ctx := context.New()
	exec := context.MustNewExec(backend, ctx, func(ctx *context.Context, seeds *Node) *Node {
		return ModelGraph(ctx, nil, []*Node{seeds})[0]
	})
	seeds := tensors.FromFlatDataAndDimensions([]int32{0}, 1, 1)
	_, err := exec.Exec1(seeds)
	require.Error(t, err)
}
