package linkpred

import (
	"sort"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// AUC computes the area under the ROC curve for the given scores, where
// isPositive marks the true links. Higher scores should mean more likely a
// link. Returns a value in [0, 1]; 0.5 is chance level.
func AUC(scores []float64, isPositive []bool) float64 {
	// stat.ROC wants the examples sorted by score, ascending.
	order := make([]int, len(scores))
	for ii := range order {
		order[ii] = ii
	}
	sort.Slice(order, func(i, j int) bool { return scores[order[i]] < scores[order[j]] })
	sortedScores := make([]float64, len(scores))
	sortedClasses := make([]bool, len(scores))
	for ii, idx := range order {
		sortedScores[ii] = scores[idx]
		sortedClasses[ii] = isPositive[idx]
	}
	tpr, fpr, _ := stat.ROC(nil, sortedScores, sortedClasses, nil)
	return integrate.Trapezoidal(fpr, tpr)
}
