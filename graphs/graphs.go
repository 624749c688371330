// Package graphs holds the static graph container used by the GNN layers:
// a fixed set of nodes numbered 0..NumNodes-1, a multiset of directed edges,
// and optional dense per-node features and per-edge weights.
//
// A Graph is immutable once built. Derived graphs -- WithNodeFeatures,
// WithEdgeWeights, RemoveEdges -- return a new Graph sharing the unaffected
// data with the original. Forward computations never write into a Graph:
// they read its tensors and return new ones.
package graphs

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
)

var (
	// ErrInvalidGraph indicates an edge referencing a node id outside
	// 0..NumNodes-1, or source/target lists of different lengths.
	ErrInvalidGraph = errors.New("invalid graph")

	// ErrShapeMismatch indicates a feature or weight tensor whose shape is
	// inconsistent with the graph: wrong rank, wrong leading dimension or
	// wrong dtype.
	ErrShapeMismatch = errors.New("shape mismatch")
)

// Graph is a static directed graph with optional dense features.
//
// All accessors return data owned by the Graph -- don't modify the returned
// slices or tensors, make a copy if you need to change them.
type Graph struct {
	numNodes                 int
	edgeSources, edgeTargets []int32

	nodeFeatures *tensors.Tensor // shaped (Float32)[NumNodes, featureDim], or nil
	edgeWeights  *tensors.Tensor // shaped (Float32)[NumEdges, 1] or [NumEdges, featureDim], or nil

	// CSR index over outgoing edges: for source node s the sorted targets are
	// csrTargets[csrStarts[s]:csrStarts[s+1]].
	csrStarts  []int32
	csrTargets []int32

	inDegrees []int32

	// Edge lists as tensors, built once so repeated model executions reuse
	// the same buffers.
	sourcesTensor, targetsTensor *tensors.Tensor
}

// New builds a Graph with numNodes nodes and the directed edges given as
// parallel source/target lists. The slices are copied.
//
// It fails with ErrInvalidGraph if the lists have different lengths or any
// endpoint is outside 0..numNodes-1.
func New(numNodes int, edgeSources, edgeTargets []int32) (*Graph, error) {
	if numNodes <= 0 {
		return nil, errors.Wrapf(ErrInvalidGraph, "numNodes=%d, must be > 0", numNodes)
	}
	if len(edgeSources) != len(edgeTargets) {
		return nil, errors.Wrapf(ErrInvalidGraph, "got %d edge sources but %d edge targets",
			len(edgeSources), len(edgeTargets))
	}
	g := &Graph{
		numNodes:    numNodes,
		edgeSources: append([]int32(nil), edgeSources...),
		edgeTargets: append([]int32(nil), edgeTargets...),
	}
	for edge := range g.edgeSources {
		src, tgt := g.edgeSources[edge], g.edgeTargets[edge]
		if src < 0 || int(src) >= numNodes {
			return nil, errors.Wrapf(ErrInvalidGraph, "edge %d has source node %d, graph has %d nodes",
				edge, src, numNodes)
		}
		if tgt < 0 || int(tgt) >= numNodes {
			return nil, errors.Wrapf(ErrInvalidGraph, "edge %d has target node %d, graph has %d nodes",
				edge, tgt, numNodes)
		}
	}
	g.buildIndices()
	return g, nil
}

// buildIndices creates the CSR adjacency index, the in-degree table and the
// edge-list tensors. Called once per Graph value.
func (g *Graph) buildIndices() {
	numEdges := len(g.edgeSources)
	g.inDegrees = make([]int32, g.numNodes)
	counts := make([]int32, g.numNodes)
	for edge := range g.edgeSources {
		counts[g.edgeSources[edge]]++
		g.inDegrees[g.edgeTargets[edge]]++
	}

	g.csrStarts = make([]int32, g.numNodes+1)
	for node := 0; node < g.numNodes; node++ {
		g.csrStarts[node+1] = g.csrStarts[node] + counts[node]
	}
	g.csrTargets = make([]int32, numEdges)
	fill := append([]int32(nil), g.csrStarts[:g.numNodes]...)
	for edge := range g.edgeSources {
		src := g.edgeSources[edge]
		g.csrTargets[fill[src]] = g.edgeTargets[edge]
		fill[src]++
	}
	for node := 0; node < g.numNodes; node++ {
		row := g.csrTargets[g.csrStarts[node]:g.csrStarts[node+1]]
		sort.Slice(row, func(i, j int) bool { return row[i] < row[j] })
	}

	g.sourcesTensor = tensors.FromValue(g.edgeSources)
	g.targetsTensor = tensors.FromValue(g.edgeTargets)
}

// NumNodes returns the number of nodes in the graph.
func (g *Graph) NumNodes() int { return g.numNodes }

// NumEdges returns the number of directed edges in the graph.
func (g *Graph) NumEdges() int { return len(g.edgeSources) }

// EdgeSources returns the source node id per edge. Owned by the Graph.
func (g *Graph) EdgeSources() []int32 { return g.edgeSources }

// EdgeTargets returns the target node id per edge. Owned by the Graph.
func (g *Graph) EdgeTargets() []int32 { return g.edgeTargets }

// SourcesTensor returns the edge sources as a tensor shaped (Int32)[NumEdges].
func (g *Graph) SourcesTensor() *tensors.Tensor { return g.sourcesTensor }

// TargetsTensor returns the edge targets as a tensor shaped (Int32)[NumEdges].
func (g *Graph) TargetsTensor() *tensors.Tensor { return g.targetsTensor }

// NodeFeatures returns the per-node feature tensor, or nil if not set.
func (g *Graph) NodeFeatures() *tensors.Tensor { return g.nodeFeatures }

// EdgeWeights returns the per-edge weight tensor, or nil if not set.
func (g *Graph) EdgeWeights() *tensors.Tensor { return g.edgeWeights }

// FeatureDim returns the node feature dimension, or 0 if the graph carries
// no node features.
func (g *Graph) FeatureDim() int {
	if g.nodeFeatures == nil {
		return 0
	}
	return g.nodeFeatures.Shape().Dimensions[1]
}

// InDegree returns the number of incoming edges of the given node.
func (g *Graph) InDegree(node int32) int32 { return g.inDegrees[node] }

// OutDegree returns the number of outgoing edges of the given node.
func (g *Graph) OutDegree(node int32) int32 {
	return g.csrStarts[node+1] - g.csrStarts[node]
}

// HasEdge reports whether at least one directed edge source->target exists.
func (g *Graph) HasEdge(source, target int32) bool {
	if source < 0 || int(source) >= g.numNodes || target < 0 || int(target) >= g.numNodes {
		return false
	}
	row := g.csrTargets[g.csrStarts[source]:g.csrStarts[source+1]]
	pos := sort.Search(len(row), func(i int) bool { return row[i] >= target })
	return pos < len(row) && row[pos] == target
}

// WithNodeFeatures returns a copy of the graph carrying the given node
// features, shaped (Float32)[NumNodes, featureDim]. Edges and indices are
// shared with the original.
func (g *Graph) WithNodeFeatures(features *tensors.Tensor) (*Graph, error) {
	if features.Rank() != 2 || features.Shape().Dimensions[0] != g.numNodes {
		return nil, errors.Wrapf(ErrShapeMismatch,
			"node features must be shaped [NumNodes=%d, featureDim], got %s", g.numNodes, features.Shape())
	}
	if features.DType() != dtypes.Float32 {
		return nil, errors.Wrapf(ErrShapeMismatch, "node features must be Float32, got %s", features.DType())
	}
	if g.edgeWeights != nil {
		if err := checkEdgeWeightsShape(g.edgeWeights, g.NumEdges(), features.Shape().Dimensions[1]); err != nil {
			return nil, err
		}
	}
	derived := *g
	derived.nodeFeatures = features
	return &derived, nil
}

// WithEdgeWeights returns a copy of the graph carrying the given edge
// weights, shaped (Float32)[NumEdges, 1] or [NumEdges, featureDim]. Edges
// and indices are shared with the original.
func (g *Graph) WithEdgeWeights(weights *tensors.Tensor) (*Graph, error) {
	if err := checkEdgeWeightsShape(weights, g.NumEdges(), g.FeatureDim()); err != nil {
		return nil, err
	}
	derived := *g
	derived.edgeWeights = weights
	return &derived, nil
}

func checkEdgeWeightsShape(weights *tensors.Tensor, numEdges, featureDim int) error {
	if weights.Rank() != 2 || weights.Shape().Dimensions[0] != numEdges {
		return errors.Wrapf(ErrShapeMismatch,
			"edge weights must be shaped [NumEdges=%d, 1] or [NumEdges=%d, featureDim], got %s",
			numEdges, numEdges, weights.Shape())
	}
	if dim := weights.Shape().Dimensions[1]; dim != 1 && (featureDim == 0 || dim != featureDim) {
		return errors.Wrapf(ErrShapeMismatch,
			"edge weights last dimension must be 1 or match the node feature dimension (%d), got %s",
			featureDim, weights.Shape())
	}
	if weights.DType() != dtypes.Float32 {
		return errors.Wrapf(ErrShapeMismatch, "edge weights must be Float32, got %s", weights.DType())
	}
	return nil
}

// RemoveEdges returns a new graph without the edges at the given positions
// (indices into the edge lists, not node ids). The original graph is left
// unchanged; node features are shared, edge weights rows are filtered
// accordingly.
func (g *Graph) RemoveEdges(edgeIndices []int) (*Graph, error) {
	remove := make(map[int]bool, len(edgeIndices))
	for _, edge := range edgeIndices {
		if edge < 0 || edge >= g.NumEdges() {
			return nil, errors.Wrapf(ErrInvalidGraph, "RemoveEdges: edge index %d out of range, graph has %d edges",
				edge, g.NumEdges())
		}
		remove[edge] = true
	}
	kept := make([]int, 0, g.NumEdges()-len(remove))
	for edge := 0; edge < g.NumEdges(); edge++ {
		if !remove[edge] {
			kept = append(kept, edge)
		}
	}

	newSources := make([]int32, len(kept))
	newTargets := make([]int32, len(kept))
	for ii, edge := range kept {
		newSources[ii] = g.edgeSources[edge]
		newTargets[ii] = g.edgeTargets[edge]
	}
	derived, err := New(g.numNodes, newSources, newTargets)
	if err != nil {
		return nil, err
	}
	derived.nodeFeatures = g.nodeFeatures
	if g.edgeWeights != nil {
		weightsDim := g.edgeWeights.Shape().Dimensions[1]
		flat := make([]float32, len(kept)*weightsDim)
		tensors.MustConstFlatData[float32](g.edgeWeights, func(oldFlat []float32) {
			for ii, edge := range kept {
				copy(flat[ii*weightsDim:(ii+1)*weightsDim], oldFlat[edge*weightsDim:(edge+1)*weightsDim])
			}
		})
		derived.edgeWeights = tensors.FromFlatDataAndDimensions(flat, len(kept), weightsDim)
	}
	return derived, nil
}

// String returns a short description of the graph.
func (g *Graph) String() string {
	parts := []string{fmt.Sprintf("Graph: %s nodes, %s directed edges",
		humanize.Comma(int64(g.numNodes)), humanize.Comma(int64(g.NumEdges())))}
	if g.nodeFeatures != nil {
		parts = append(parts, fmt.Sprintf("node features %s", g.nodeFeatures.Shape()))
	}
	if g.edgeWeights != nil {
		parts = append(parts, fmt.Sprintf("edge weights %s", g.edgeWeights.Shape()))
	}
	return strings.Join(parts, ", ")
}
