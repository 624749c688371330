package nodeclass

import (
	"fmt"
	"path"
	"time"

	"github.com/gomlx/gnn/citation"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/context/checkpoints"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/gomlx/gomlx/pkg/ml/train/losses"
	"github.com/gomlx/gomlx/pkg/ml/train/metrics"
	"github.com/gomlx/gomlx/pkg/ml/train/optimizers"
	"github.com/gomlx/gomlx/pkg/support/fsutil"
	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	// ParamCheckpointPath is the context parameter with the checkpoint
	// directory, relative to baseDir unless absolute. Empty disables
	// checkpointing.
	ParamCheckpointPath = "checkpoint"

	// ParamNumCheckpoints is the number of past checkpoints to keep.
	// The default is 5.
	ParamNumCheckpoints = "num_checkpoints"

	// ParamTrainSteps is the number of training steps.
	// The default is 500.
	ParamTrainSteps = "train_steps"
)

// Train the node classifier based on the configuration in ctx, downloading
// the Cora data into baseDir if needed.
func Train(backend backends.Backend, ctx *context.Context, baseDir string) error {
	baseDir = fsutil.MustReplaceTildeInDir(baseDir)
	if err := citation.Download(baseDir); err != nil {
		return err
	}
	trainDS, trainEvalDS, validEvalDS, testEvalDS, err := citation.MakeDatasets(backend)
	if err != nil {
		return err
	}
	citation.UploadVariables(ctx)

	// Context values (parameters and variables) are reloaded from the
	// checkpoint, values we don't want overwritten must be read first.
	trainSteps := context.GetParamOr(ctx, ParamTrainSteps, 500)

	checkpoint, numCheckpointsToKeep, err := buildCheckpoint(ctx, baseDir)
	if err != nil {
		return err
	}
	if checkpoint != nil {
		globalStep := optimizers.GetGlobalStep(ctx)
		if globalStep != 0 {
			fmt.Printf("> restarting training from global_step=%d (training until %d)\n", globalStep, trainSteps)
		}
		if trainSteps <= int(globalStep) {
			fmt.Printf("> training already reached train_steps=%d, use Eval for a reading on current performance\n",
				trainSteps)
			return nil
		}
		trainSteps -= int(globalStep)
	}

	trainer := newTrainer(backend, ctx)
	loop := train.NewLoop(trainer)
	commandline.AttachProgressBar(loop)

	if checkpoint != nil && numCheckpointsToKeep > 1 {
		period := time.Minute
		train.PeriodicCallback(loop, period, true, "saving checkpoint", 100,
			func(loop *train.Loop, metrics []*tensors.Tensor) error {
				return checkpoint.Save()
			})
	}

	if _, err = loop.RunSteps(trainDS, trainSteps); err != nil {
		return errors.WithMessage(err, "while running training steps")
	}
	fmt.Printf("\t[Step %d] median train step: %d microseconds\n",
		loop.LoopStep, loop.MedianTrainStepDuration().Microseconds())
	if checkpoint != nil && numCheckpointsToKeep <= 1 {
		if err = checkpoint.Save(); err != nil {
			klog.Errorf("Failed to save final checkpoint: %+v", err)
		}
	}

	fmt.Println()
	if err = commandline.ReportEval(trainer, trainEvalDS, validEvalDS, testEvalDS); err != nil {
		return errors.WithMessage(err, "while reporting eval")
	}
	return nil
}

// buildCheckpoint sets up checkpointing if ParamCheckpointPath is configured.
// The frozen Cora variables are excluded from saving, they are re-uploaded
// from the dataset on every run.
func buildCheckpoint(ctx *context.Context, baseDir string) (*checkpoints.Handler, int, error) {
	checkpointPath := context.GetParamOr(ctx, ParamCheckpointPath, "")
	numCheckpointsToKeep := context.GetParamOr(ctx, ParamNumCheckpoints, 5)
	if checkpointPath == "" {
		return nil, numCheckpointsToKeep, nil
	}
	checkpointPath = fsutil.MustReplaceTildeInDir(checkpointPath)
	if !path.IsAbs(checkpointPath) {
		checkpointPath = path.Join(baseDir, checkpointPath)
	}
	if numCheckpointsToKeep <= 1 {
		numCheckpointsToKeep = -1
	}
	builder := checkpoints.Build(ctx).Dir(checkpointPath)
	if numCheckpointsToKeep > 0 {
		builder = builder.Keep(numCheckpointsToKeep)
	}
	checkpoint, err := builder.Done()
	if err != nil {
		return nil, 0, errors.WithMessagef(err, "while setting up checkpoint to %q (keep=%d)",
			checkpointPath, numCheckpointsToKeep)
	}
	var varsToExclude []*context.Variable
	ctx.InAbsPath(citation.CoraVariablesScope).EnumerateVariablesInScope(func(v *context.Variable) {
		varsToExclude = append(varsToExclude, v)
	})
	checkpoint.ExcludeVarsFromSaving(varsToExclude...)
	return checkpoint, numCheckpointsToKeep, nil
}

func newTrainer(backend backends.Backend, ctx *context.Context) *train.Trainer {
	// Multi-class classification.
	lossFn := losses.SparseCategoricalCrossEntropyLogits

	meanAccuracyMetric := metrics.NewSparseCategoricalAccuracy("Mean Accuracy", "#acc")
	movingAccuracyMetric := metrics.NewMovingAverageSparseCategoricalAccuracy("Moving Average Accuracy", "~acc", 0.01)

	return train.NewTrainer(backend, ctx, ModelGraph,
		lossFn,
		optimizers.FromContext(ctx),
		[]metrics.Interface{movingAccuracyMetric},
		[]metrics.Interface{meanAccuracyMetric})
}

// Eval loads the model from the configured checkpoint and reports the
// evaluation metrics on each split.
func Eval(backend backends.Backend, ctx *context.Context, baseDir string) error {
	baseDir = fsutil.MustReplaceTildeInDir(baseDir)
	if err := citation.Download(baseDir); err != nil {
		return err
	}
	_, trainEvalDS, validEvalDS, testEvalDS, err := citation.MakeDatasets(backend)
	if err != nil {
		return err
	}
	citation.UploadVariables(ctx)

	checkpointPath := context.GetParamOr(ctx, ParamCheckpointPath, "")
	if checkpointPath == "" {
		return errors.Errorf("no checkpoint configured in parameter %q, cannot load a model to evaluate",
			ParamCheckpointPath)
	}
	checkpointPath = fsutil.MustReplaceTildeInDir(checkpointPath)
	if !path.IsAbs(checkpointPath) {
		checkpointPath = path.Join(baseDir, checkpointPath)
	}
	if _, err = checkpoints.Build(ctx).Dir(checkpointPath).Done(); err != nil {
		return errors.WithMessagef(err, "while loading checkpoint from %q", checkpointPath)
	}
	fmt.Printf("Model in %q trained for %d steps.\n", checkpointPath, optimizers.GetGlobalStep(ctx))

	trainer := newTrainer(backend, ctx)
	for _, ds := range []train.Dataset{trainEvalDS, validEvalDS, testEvalDS} {
		start := time.Now()
		if err = commandline.ReportEval(trainer, ds); err != nil {
			return errors.WithMessagef(err, "while reporting eval on %q", ds.Name())
		}
		fmt.Printf("\telapsed %s (%s)\n", time.Since(start), ds.Name())
	}
	return nil
}
