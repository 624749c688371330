// cora_classifier trains and evaluates a GNN node classifier on the Cora
// citation graph: given a paper's bag-of-words features and its citation
// links, predict one of the 7 subject classes.
//
// Run it with the defaults to train for 500 full-batch steps and report
// accuracy on the train/validation/test splits:
//
//	go run ./cmd/cora_classifier --data=~/work/cora
//
// Use --set to override any context hyperparameter, for instance
// --set="gnn_num_layers=3;gnn_pooling_type=sum|mean".
package main

import (
	"flag"
	"fmt"
	"path"
	"time"

	"github.com/gomlx/gnn"
	"github.com/gomlx/gnn/nodeclass"
	"github.com/gomlx/gomlx/backends"
	_ "github.com/gomlx/gomlx/backends/default"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers"
	"github.com/gomlx/gomlx/pkg/ml/layers/activations"
	"github.com/gomlx/gomlx/pkg/ml/train/optimizers"
	"github.com/gomlx/gomlx/pkg/support/fsutil"
	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"
)

var (
	flagEval             = flag.Bool("eval", false, "Set to true to run evaluation instead of training.")
	flagDataDir          = flag.String("data", "~/work/cora", "Directory to cache downloaded and generated dataset files.")
	flagCheckpointSubdir = flag.String("checkpoint", "", "Checkpoint subdirectory under --data directory. If empty does not use checkpoints.")
)

func createDefaultContext() *context.Context {
	ctx := context.New()
	ctx.SetParams(map[string]any{
		nodeclass.ParamCheckpointPath: "",
		nodeclass.ParamNumCheckpoints: 5,
		nodeclass.ParamTrainSteps:     500,

		optimizers.ParamOptimizer:    "adam",
		optimizers.ParamLearningRate: 0.001,

		layers.ParamL2Regularization: 1e-5,
		layers.ParamDropoutRate:      0.2,
		activations.ParamActivation:  "relu",

		gnn.ParamNumLayers:       2,
		gnn.ParamStateDim:        16,
		gnn.ParamPoolingType:     "mean",
		gnn.ParamUpdateType:      "none",
		gnn.ParamEdgeDropoutRate: 0.0,
	})
	return ctx
}

func main() {
	backend := backends.MustNew()
	ctx := createDefaultContext()

	// Flags with context settings.
	settings := commandline.CreateContextSettingsFlag(ctx, "")
	klog.InitFlags(nil)
	flag.Parse()
	must.M1(commandline.ParseContextSettings(ctx, *settings))

	// Set checkpoint accordingly.
	*flagDataDir = fsutil.MustReplaceTildeInDir(*flagDataDir)
	checkpointPath := fsutil.MustReplaceTildeInDir(*flagCheckpointSubdir)
	if checkpointPath != "" && !path.IsAbs(checkpointPath) {
		checkpointPath = path.Join(*flagDataDir, checkpointPath)
	}
	if checkpointPath != "" {
		ctx.SetParam(nodeclass.ParamCheckpointPath, checkpointPath)
	} else {
		checkpointPath = context.GetParamOr(ctx, nodeclass.ParamCheckpointPath, "")
	}
	if checkpointPath != "" {
		fmt.Printf("Model checkpoints in %s\n", checkpointPath)
	} else if *flagEval {
		klog.Fatal("To run eval (--eval) you need to specify a checkpoint (--checkpoint).")
	}

	var err error
	start := time.Now()
	if *flagEval {
		err = nodeclass.Eval(backend, ctx, *flagDataDir)
	} else {
		err = nodeclass.Train(backend, ctx, *flagDataDir)
	}
	if err != nil {
		fmt.Printf("%+v\n", err)
		return
	}
	fmt.Printf("elapsed: %s\n", time.Since(start))
}
