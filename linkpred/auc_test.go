package linkpred

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAUC(t *testing.T) {
	// Perfect separation: every positive scores above every negative.
	auc := AUC([]float64{0.9, 0.8, 0.1, 0.2}, []bool{true, true, false, false})
	require.InDelta(t, 1.0, auc, 1e-9)

	// Perfectly wrong ranking.
	auc = AUC([]float64{0.1, 0.2, 0.9, 0.8}, []bool{true, true, false, false})
	require.InDelta(t, 0.0, auc, 1e-9)

	// One positive above both negatives, one below: chance level.
	auc = AUC([]float64{0.4, 0.1, 0.3, 0.2}, []bool{true, true, false, false})
	require.InDelta(t, 0.5, auc, 1e-9)
}
