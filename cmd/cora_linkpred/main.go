// cora_linkpred trains and evaluates a GNN link predictor on the Cora
// citation graph: a fraction of the edges is held out, node representations
// are computed over the remaining training graph, and candidate pairs are
// scored for the presence of an edge.
//
// Run it with the defaults to train for 500 full-batch steps and report
// accuracy plus the test AUC:
//
//	go run ./cmd/cora_linkpred --data=~/work/cora
//
// Use --set to override any context hyperparameter, for instance
// --set="linkpred_scorer=mlp;linkpred_test_fraction=0.2".
package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/gomlx/gnn"
	"github.com/gomlx/gnn/linkpred"
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

var flagDataDir = flag.String("data", "~/work/cora", "Directory to cache downloaded and generated dataset files.")

func createDefaultContext() *context.Context {
	ctx := context.New()
	ctx.SetParams(map[string]any{
		linkpred.ParamTrainSteps:   500,
		linkpred.ParamScorer:       "dot",
		linkpred.ParamTestFraction: 0.1,
		linkpred.ParamSplitSeed:    42,

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

	*flagDataDir = fsutil.MustReplaceTildeInDir(*flagDataDir)
	start := time.Now()
	if err := linkpred.Train(backend, ctx, *flagDataDir); err != nil {
		fmt.Printf("%+v\n", err)
		return
	}
	fmt.Printf("elapsed: %s\n", time.Since(start))
}
