package linkpred

import (
	"fmt"

	"github.com/gomlx/gnn/citation"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/gomlx/gomlx/pkg/ml/train/losses"
	"github.com/gomlx/gomlx/pkg/ml/train/metrics"
	"github.com/gomlx/gomlx/pkg/ml/train/optimizers"
	"github.com/gomlx/gomlx/pkg/support/fsutil"
	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/pkg/errors"
)

// ParamTrainSteps is the number of training steps. The default is 500.
var ParamTrainSteps = "train_steps"

// NewSplit downloads Cora into baseDir if needed and builds the edge split
// configured in ctx ([ParamTestFraction], [ParamSplitSeed]).
func NewSplit(ctx *context.Context, baseDir string) (*EdgeSplit, error) {
	baseDir = fsutil.MustReplaceTildeInDir(baseDir)
	if err := citation.Download(baseDir); err != nil {
		return nil, err
	}
	g, err := citation.Graph()
	if err != nil {
		return nil, err
	}
	testFraction := context.GetParamOr(ctx, ParamTestFraction, 0.1)
	seed := context.GetParamOr(ctx, ParamSplitSeed, 42)
	return Split(g, testFraction, int64(seed))
}

// Train the link predictor based on the configuration in ctx, then report
// the evaluation metrics and the test AUC.
func Train(backend backends.Backend, ctx *context.Context, baseDir string) error {
	split, err := NewSplit(ctx, baseDir)
	if err != nil {
		return err
	}
	UploadVariables(ctx, split)
	trainDS, trainEvalDS, testEvalDS, err := MakeDatasets(backend, split)
	if err != nil {
		return err
	}

	trainSteps := context.GetParamOr(ctx, ParamTrainSteps, 500)
	trainer := newTrainer(backend, ctx)
	loop := train.NewLoop(trainer)
	commandline.AttachProgressBar(loop)

	if _, err = loop.RunSteps(trainDS, trainSteps); err != nil {
		return errors.WithMessage(err, "while running training steps")
	}
	fmt.Printf("\t[Step %d] median train step: %d microseconds\n",
		loop.LoopStep, loop.MedianTrainStepDuration().Microseconds())

	fmt.Println()
	if err = commandline.ReportEval(trainer, trainEvalDS, testEvalDS); err != nil {
		return errors.WithMessage(err, "while reporting eval")
	}

	auc, err := EvalAUC(backend, ctx, split)
	if err != nil {
		return err
	}
	fmt.Printf("Test AUC: %.4f\n", auc)
	return nil
}

func newTrainer(backend backends.Backend, ctx *context.Context) *train.Trainer {
	// Binary classification on logits: link or no link.
	lossFn := losses.BinaryCrossentropyLogits

	meanAccuracyMetric := metrics.NewMeanBinaryLogitsAccuracy("Mean Accuracy", "#acc")
	movingAccuracyMetric := metrics.NewMovingAverageBinaryLogitsAccuracy("Moving Average Accuracy", "~acc", 0.01)

	return train.NewTrainer(backend, ctx, ModelGraph,
		lossFn,
		optimizers.FromContext(ctx),
		[]metrics.Interface{movingAccuracyMetric},
		[]metrics.Interface{meanAccuracyMetric})
}

// EvalAUC scores the held-out test pairs (positives and negatives) with the
// current model parameters and returns the area under the ROC curve.
func EvalAUC(backend backends.Backend, ctx *context.Context, split *EdgeSplit) (float64, error) {
	exec := context.MustNewExec(backend, ctx, func(ctx *context.Context, pairSources, pairTargets *graph.Node) *graph.Node {
		return ModelGraph(ctx, nil, []*graph.Node{pairSources, pairTargets})[0]
	})
	sources, targets, labels := pairsTensors(
		split.TestPosSources, split.TestPosTargets, split.TestNegSources, split.TestNegTargets)
	logits, err := exec.Exec1(sources, targets)
	if err != nil {
		return 0, errors.WithMessage(err, "while scoring test pairs")
	}

	scoreValues := tensors.MustCopyFlatData[float32](logits)
	labelValues := tensors.MustCopyFlatData[float32](labels)
	scores := make([]float64, len(scoreValues))
	isPositive := make([]bool, len(scoreValues))
	for ii, score := range scoreValues {
		scores[ii] = float64(score)
		isPositive[ii] = labelValues[ii] > 0.5
	}
	return AUC(scores, isPositive), nil
}
