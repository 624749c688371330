package citation

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/datasets"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/pkg/errors"
)

// CoraVariablesScope is the absolute scope where the frozen dataset
// variables are stored in the context.
const CoraVariablesScope = "/cora"

// CoraVariables maps the variable names under [CoraVariablesScope] to the
// tensors they hold.
var CoraVariables = map[string]**tensors.Tensor{
	"NodeFeatures": &NodeFeatures,
	"NodeLabels":   &NodeLabels,
	"EdgeSources":  &EdgeSources,
	"EdgeTargets":  &EdgeTargets,
}

// UploadVariables creates frozen (non-trainable) variables with the Cora
// tensors, so model graphs can use them without passing them as inputs.
// [Download] must have been called first.
func UploadVariables(ctx *context.Context) *context.Context {
	ctxCora := ctx.InAbsPath(CoraVariablesScope)
	for name, tPtr := range CoraVariables {
		if *tPtr == nil {
			exceptions.Panicf("trying to upload Cora variables to context before calling Download()")
		}
		v := ctxCora.VariableWithValue(name, *tPtr)
		v.Trainable = false
	}
	return ctx
}

// MakeDatasets returns the datasets for node classification: an infinite
// shuffled training dataset plus one single-epoch evaluation dataset per
// split. Each yields full-batch (seed indices, labels) pairs.
// [Download] must have been called first.
func MakeDatasets(backend backends.Backend) (trainDS, trainEvalDS, validEvalDS, testEvalDS train.Dataset, err error) {
	if TrainIndices == nil {
		err = errors.New("citation data not loaded, call citation.Download() first")
		return
	}
	makeSplit := func(name string, indices, labels *tensors.Tensor) (*datasets.InMemoryDataset, error) {
		ds, err := datasets.InMemoryFromData(backend, name, []any{indices}, []any{labels})
		if err != nil {
			return nil, errors.WithMessagef(err, "building %q dataset", name)
		}
		return ds.BatchSize(indices.Shape().Dimensions[0], false), nil
	}

	var ds *datasets.InMemoryDataset
	if ds, err = makeSplit("train", TrainIndices, TrainLabels); err != nil {
		return
	}
	trainDS = ds.Infinite(true).Shuffle()
	if ds, err = makeSplit("train", TrainIndices, TrainLabels); err != nil {
		return
	}
	trainEvalDS = ds
	if ds, err = makeSplit("valid", ValidIndices, ValidLabels); err != nil {
		return
	}
	validEvalDS = ds
	if ds, err = makeSplit("test", TestIndices, TestLabels); err != nil {
		return
	}
	testEvalDS = ds
	return
}
