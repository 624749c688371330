package gnn

import (
	"fmt"
	"strings"

	. "github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers"
	"github.com/gomlx/gomlx/pkg/ml/layers/activations"
)

// PoolMessages aggregates per-edge messages into per-target-node values,
// according to [ParamPoolingType].
//
// Args:
//   - messages must be shaped `[numEdges, embSize]`.
//   - edgesTarget holds the target node index of each message, shaped
//     `[numEdges]` or `[numEdges, 1]`, some integer dtype.
//   - targetSize is the number of target nodes, the leading dimension of the
//     result.
//
// It returns a tensor shaped `[targetSize, k*embSize]`, where `k` is the
// number of `|`-separated pooling types configured. Target nodes that receive
// no message pool to the zero vector, for every pooling type including `max`.
//
// There are no training variables in this, `ctx` is only used for the
// hyperparameter configuration.
func PoolMessages(ctx *context.Context, messages, edgesTarget *Node, targetSize int) *Node {
	poolTypes := context.GetParamOr(ctx, ParamPoolingType, "mean")
	return poolMessages(messages, edgesTarget, targetSize, poolTypes)
}

func poolMessages(messages, edgesTarget *Node, targetSize int, poolTypes string) *Node {
	if messages.Rank() != 2 {
		Panicf("PoolMessages: messages must be shaped `[numEdges, embSize]`, got %s", messages.Shape())
	}
	if (edgesTarget.Rank() != 1 && edgesTarget.Rank() != 2) ||
		(edgesTarget.Rank() == 2 && edgesTarget.Shape().Dimensions[1] != 1) {
		Panicf("PoolMessages: edgesTarget must be shaped `[numEdges]` or `[numEdges, 1]`, got %s",
			edgesTarget.Shape())
	}
	if edgesTarget.Shape().Dimensions[0] != messages.Shape().Dimensions[0] {
		Panicf("PoolMessages: got %d messages but %d edge targets",
			messages.Shape().Dimensions[0], edgesTarget.Shape().Dimensions[0])
	}
	if targetSize <= 0 {
		Panicf("PoolMessages: targetSize=%d, must be > 0", targetSize)
	}
	g := messages.Graph()
	dtype := messages.DType()
	dtypePool := dtype
	if dtype.IsFloat16() {
		// Up-precision to 32 bits for pooling.
		dtypePool = dtypes.Float32
	}
	numEdges := messages.Shape().Dimensions[0]
	embSize := messages.Shape().Dimensions[1]
	if edgesTarget.Rank() == 1 {
		edgesTarget = InsertAxes(edgesTarget, -1)
	}
	values := messages
	if dtypePool != dtype {
		values = ConvertDType(values, dtypePool)
	}

	// Count of messages received per target node, shaped `[targetSize, 1]`.
	// Built lazily, shared between the pooling types that need it.
	var pooledCount *Node
	countPerTarget := func() *Node {
		if pooledCount == nil {
			ones := Ones(g, shapes.Make(dtypePool, numEdges, 1))
			pooledCount = Scatter(edgesTarget, ones, shapes.Make(dtypePool, targetSize, 1), false, false)
		}
		return pooledCount
	}

	poolTypesList := strings.Split(poolTypes, "|")
	parts := make([]*Node, 0, len(poolTypesList))
	var pooled *Node
	for _, poolType := range poolTypesList {
		switch poolType {
		case "sum":
			pooled = Scatter(edgesTarget, values, shapes.Make(dtypePool, targetSize, embSize), false, false)
		case "mean":
			pooled = Scatter(edgesTarget, values, shapes.Make(dtypePool, targetSize, embSize), false, false)
			// MaxScalar avoids division by 0 on empty neighborhoods.
			pooled = Div(pooled, MaxScalar(countPerTarget(), 1))
		case "max":
			lowest := BroadcastToDims(Infinity(g, dtypePool, -1), targetSize, embSize)
			pooled = ScatterMax(lowest, edgesTarget, values, false, false)
			// Makes it 0 where no message arrived, instead of -inf.
			count := Squeeze(countPerTarget(), -1)
			pooled = Where(GreaterThan(count, ZerosLike(count)), pooled, ZerosLike(pooled))
		default:
			Panicf("unknown pooling type %q (given by parameter %q as %q) -- valid values are sum, mean and max, or a combination of them separated by '|'",
				poolType, ParamPoolingType, poolTypes)
		}
		parts = append(parts, pooled)
	}
	if len(parts) == 1 {
		return ConvertDType(parts[0], dtype)
	}
	all := Concatenate(parts, -1)
	if dtype != dtypePool {
		all = ConvertDType(all, dtype)
	}
	return all
}

// Aggregate runs one round of message passing without learnable parameters:
// each edge carries a copy of its source node state, optionally scaled by the
// edge weight, and the messages are pooled per target node according to
// [ParamPoolingType].
//
// Args:
//   - state must be shaped `[numNodes, embSize]`.
//   - edgesSource and edgesTarget must have the same shape, `[numEdges]` or
//     `[numEdges, 1]`, some integer dtype; both index into state.
//   - edgeWeights is optional (may be nil): shaped `[numEdges, 1]` for scalar
//     scaling or `[numEdges, embSize]` for element-wise scaling.
//
// It returns a tensor shaped `[numNodes, k*embSize]` (see [PoolMessages]).
func Aggregate(ctx *context.Context, state, edgesSource, edgesTarget, edgeWeights *Node) *Node {
	if state.Rank() != 2 {
		Panicf("Aggregate: state must be shaped `[numNodes, embSize]`, got %s", state.Shape())
	}
	if !edgesSource.Shape().Equal(edgesTarget.Shape()) {
		Panicf("Aggregate: edgesSource and edgesTarget must have the same shape, got %s and %s",
			edgesSource.Shape(), edgesTarget.Shape())
	}
	messages := gatherSources(state, edgesSource)
	messages = scaleByEdgeWeights(messages, edgeWeights)
	return PoolMessages(ctx, messages, edgesTarget, state.Shape().Dimensions[0])
}

// gatherSources gathers the state rows indexed by edgesSource, shaped
// `[numEdges, embSize]`.
func gatherSources(state, edgesSource *Node) *Node {
	if edgesSource.Rank() == 1 {
		edgesSource = InsertAxes(edgesSource, -1)
	}
	return Gather(state, edgesSource)
}

func scaleByEdgeWeights(messages, edgeWeights *Node) *Node {
	if edgeWeights == nil {
		return messages
	}
	numEdges := messages.Shape().Dimensions[0]
	embSize := messages.Shape().Dimensions[1]
	if edgeWeights.Rank() != 2 || edgeWeights.Shape().Dimensions[0] != numEdges ||
		(edgeWeights.Shape().Dimensions[1] != 1 && edgeWeights.Shape().Dimensions[1] != embSize) {
		Panicf("edge weights must be shaped `[numEdges=%d, 1]` or `[numEdges=%d, embSize=%d]`, got %s",
			numEdges, numEdges, embSize, edgeWeights.Shape())
	}
	return Mul(messages, ConvertDType(edgeWeights, messages.DType()))
}

// MessageFn transforms the gathered source states, shaped
// `[numEdges, embSize]`, into the messages sent along the edges.
type MessageFn func(ctx *context.Context, gathered *Node) *Node

// UpdateFn combines each node's own state with its pooled messages into the
// new node state.
type UpdateFn func(ctx *context.Context, selfState, pooled *Node) *Node

// Convolution is one round of message passing with independently pluggable
// message, pooling and update stages.
//
// The zero value gives the standard graph convolution: messages copy the
// source state, pooling follows [ParamPoolingType] and the update passes
// concat(self, pooled) through a dense layer.
type Convolution struct {
	// Message builds the per-edge messages from the gathered source states.
	// nil means identity: the message is the source state.
	Message MessageFn

	// PoolingType overrides [ParamPoolingType] when non-empty.
	PoolingType string

	// Update builds the new node states from the previous states and the
	// pooled messages. nil means concat(self, pooled) through a single dense
	// layer with bias, shaped by the outputDim given to Apply, plus the
	// residual connection if [ParamUpdateType] asks for one.
	Update UpdateFn
}

// Apply runs the convolution over state, shaped `[numNodes, embSize]`, and
// the given edge list, returning the new states shaped
// `[numNodes, outputDim]` (or whatever shape a custom Update returns).
// outputDim is ignored when Update is set.
func (conv *Convolution) Apply(ctx *context.Context, state, edgesSource, edgesTarget, edgeWeights *Node, outputDim int) *Node {
	if state.Rank() != 2 {
		Panicf("Convolution: state must be shaped `[numNodes, embSize]`, got %s", state.Shape())
	}
	if !edgesSource.Shape().Equal(edgesTarget.Shape()) {
		Panicf("Convolution: edgesSource and edgesTarget must have the same shape, got %s and %s",
			edgesSource.Shape(), edgesTarget.Shape())
	}
	numNodes := state.Shape().Dimensions[0]

	messages := gatherSources(state, edgesSource)
	if conv.Message != nil {
		messages = conv.Message(ctx.In("message"), messages)
	}
	messages = scaleByEdgeWeights(messages, edgeWeights)
	messages = dropEdges(ctx, messages)

	poolTypes := conv.PoolingType
	if poolTypes == "" {
		poolTypes = context.GetParamOr(ctx, ParamPoolingType, "mean")
	}
	pooled := poolMessages(messages, edgesTarget, numNodes, poolTypes)

	if conv.Update != nil {
		return conv.Update(ctx.In("update"), state, pooled)
	}
	return denseUpdate(ctx.In("update"), state, pooled, outputDim)
}

// dropEdges disables whole edges with probability [ParamEdgeDropoutRate]
// during training, scaling the survivors accordingly.
func dropEdges(ctx *context.Context, messages *Node) *Node {
	rate := context.GetParamOr(ctx, ParamEdgeDropoutRate, 0.0)
	if rate <= 0 {
		return messages
	}
	g := messages.Graph()
	numEdges := messages.Shape().Dimensions[0]
	keep := Ones(g, shapes.Make(messages.DType(), numEdges, 1))
	keep = layers.Dropout(ctx, keep, ConstAsDType(g, messages.DType(), rate))
	return Mul(messages, keep)
}

// denseUpdate is the default update: concat(self, pooled) through a single
// dense layer with bias, with an optional residual connection.
func denseUpdate(ctx *context.Context, selfState, pooled *Node, outputDim int) *Node {
	input := Concatenate([]*Node{selfState, pooled}, -1)
	input = layers.DropoutFromContext(ctx, input)
	state := layers.DenseWithBias(ctx, input, outputDim)
	updateType := context.GetParamOr(ctx, ParamUpdateType, "none")
	switch updateType {
	case "none":
	case "residual":
		if selfState.Shape().Equal(state.Shape()) {
			state = Add(state, selfState)
		}
	default:
		Panicf("invalid update type %q (given by parameter %q) -- valid values are 'none' and 'residual'",
			updateType, ParamUpdateType)
	}
	return state
}

// NodeRepresentations stacks [ParamNumLayers] graph convolutions over the
// given node features and edge list, with the context activation (default
// relu) between layers and none after the last. The result is shaped
// `[numNodes, ParamStateDim]`.
//
// edgeWeights is optional and may be nil.
func NodeRepresentations(ctx *context.Context, features, edgesSource, edgesTarget, edgeWeights *Node) *Node {
	numLayers := context.GetParamOr(ctx, ParamNumLayers, 2)
	stateDim := context.GetParamOr(ctx, ParamStateDim, 16)
	conv := &Convolution{}
	state := features
	for layer := range numLayers {
		ctxLayer := ctx.In(fmt.Sprintf("conv_%d", layer))
		state = conv.Apply(ctxLayer, state, edgesSource, edgesTarget, edgeWeights, stateDim)
		if layer < numLayers-1 {
			state = activations.ApplyFromContext(ctxLayer, state)
		}
	}
	return state
}
