package graphs

import (
	"encoding/gob"
	"os"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
)

// gobGraph is the on-disk form of a Graph. Tensors are stored as flat
// float32 data plus the trailing dimension; the adjacency index is rebuilt
// on load.
type gobGraph struct {
	NumNodes                 int
	EdgeSources, EdgeTargets []int32

	FeatureDim int
	Features   []float32
	WeightsDim int
	Weights    []float32
}

// Save serializes the graph, including features and weights if set, to the
// given file. Load rebuilds it.
func (g *Graph) Save(filePath string) error {
	record := &gobGraph{
		NumNodes:    g.numNodes,
		EdgeSources: g.edgeSources,
		EdgeTargets: g.edgeTargets,
	}
	if g.nodeFeatures != nil {
		record.FeatureDim = g.nodeFeatures.Shape().Dimensions[1]
		record.Features = tensors.MustCopyFlatData[float32](g.nodeFeatures)
	}
	if g.edgeWeights != nil {
		record.WeightsDim = g.edgeWeights.Shape().Dimensions[1]
		record.Weights = tensors.MustCopyFlatData[float32](g.edgeWeights)
	}

	f, err := os.Create(filePath)
	if err != nil {
		return errors.Wrapf(err, "creating %q to save Graph", filePath)
	}
	enc := gob.NewEncoder(f)
	if err = enc.Encode(record); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "encoding Graph to %q", filePath)
	}
	if err = f.Close(); err != nil {
		return errors.Wrapf(err, "closing %q after saving Graph", filePath)
	}
	return nil
}

// Load reads a graph saved with Save and rebuilds its adjacency index.
func Load(filePath string) (*Graph, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %q to load Graph", filePath)
	}
	defer func() { _ = f.Close() }()

	record := &gobGraph{}
	dec := gob.NewDecoder(f)
	if err = dec.Decode(record); err != nil {
		return nil, errors.Wrapf(err, "decoding Graph from %q", filePath)
	}

	g, err := New(record.NumNodes, record.EdgeSources, record.EdgeTargets)
	if err != nil {
		return nil, errors.WithMessagef(err, "graph loaded from %q", filePath)
	}
	if record.FeatureDim > 0 {
		g, err = g.WithNodeFeatures(tensors.FromFlatDataAndDimensions(
			record.Features, record.NumNodes, record.FeatureDim))
		if err != nil {
			return nil, errors.WithMessagef(err, "node features loaded from %q", filePath)
		}
	}
	if record.WeightsDim > 0 {
		g, err = g.WithEdgeWeights(tensors.FromFlatDataAndDimensions(
			record.Weights, len(record.EdgeSources), record.WeightsDim))
		if err != nil {
			return nil, errors.WithMessagef(err, "edge weights loaded from %q", filePath)
		}
	}
	return g, nil
}
