// Package gnn implements message-passing graph neural network layers on top
// of GoMLX: scatter-based pooling of messages over an explicit edge list,
// a pluggable graph convolution, layer stacking and pairwise edge scoring.
//
// All functions here are graph-building functions: they are pure, build onto
// the computation graph of their input nodes and panic (in the style of the
// other GoMLX graph ops) on invalid shapes. Learnable parameters live in a
// context.Context, configured through the hyperparameters below.
package gnn

var (
	// ParamNumLayers is the context hyperparameter with the number of stacked
	// graph convolutions in NodeRepresentations.
	// The default is 2.
	ParamNumLayers = "gnn_num_layers"

	// ParamStateDim is the context hyperparameter with the dimension of the
	// hidden node states produced by each convolution.
	// The default is 16.
	ParamStateDim = "gnn_state_dim"

	// ParamPoolingType is the context hyperparameter that selects how incoming
	// messages are pooled per target node. It takes the values `mean`, `sum`
	// or `max`, or a combination of them separated by `|`, in which case the
	// pooled parts are concatenated.
	// The default is `mean`.
	ParamPoolingType = "gnn_pooling_type"

	// ParamUpdateType is the context hyperparameter that selects the state
	// update: `none` for plain concat+dense, or `residual` to add the previous
	// state back when the shapes match.
	// The default is `none`.
	ParamUpdateType = "gnn_update_type"

	// ParamEdgeDropoutRate drops whole edges (all their message values at
	// once) during training.
	// The default is 0.0, meaning no edge dropout.
	ParamEdgeDropoutRate = "gnn_edge_dropout_rate"

	// ParamScorerHiddenDim is the context hyperparameter with the hidden-layer
	// dimension of the MLP edge scorer.
	// The default is 16.
	ParamScorerHiddenDim = "gnn_scorer_hidden_dim"
)
