package citation

import (
	"os"
	"path"
	"sort"
	"strconv"

	"github.com/gomlx/gnn/internal/downloader"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/support/fsutil"
	"github.com/pkg/errors"
)

var (
	// TarURL points at the LINQS distribution of Cora: plain-text
	// `cora.content` and `cora.cites` files inside a tarball.
	TarURL = "https://linqs-data.soe.ucsc.edu/public/lbc/cora.tgz"

	// TarChecksum, if set, is validated (sha256) after download.
	TarChecksum = ""

	// DownloadSubdir under baseDir where the raw files land.
	DownloadSubdir = "downloads"
)

const (
	tarFile     = "cora.tgz"
	contentFile = "cora/cora.content"
	citesFile   = "cora/cora.cites"

	featuresTensorFile    = "cora_features.tensor"
	labelsTensorFile      = "cora_labels.tensor"
	edgeSourcesTensorFile = "cora_edge_sources.tensor"
	edgeTargetsTensorFile = "cora_edge_targets.tensor"
)

// Download fetches the Cora files into baseDir and prepares the package
// tensors. Parsed tensors are cached in baseDir, so later calls (even across
// processes) skip the download and the parsing. It is a no-op if the data is
// already loaded in memory.
func Download(baseDir string) error {
	if NodeFeatures != nil {
		// Already loaded.
		return nil
	}
	baseDir = fsutil.MustReplaceTildeInDir(baseDir)
	if loadCachedTensors(baseDir) {
		buildSplits()
		return nil
	}

	downloadPath := path.Join(baseDir, DownloadSubdir)
	err := downloader.DownloadAndUntarIfMissing(
		TarURL, downloadPath, tarFile, path.Join(downloadPath, "cora"), TarChecksum)
	if err != nil {
		return err
	}
	tarPath := path.Join(downloadPath, tarFile)
	if fsutil.MustFileExists(tarPath) {
		// The tarball is no longer needed once extracted.
		if err = os.Remove(tarPath); err != nil {
			return errors.Wrapf(err, "failed to remove %q", tarPath)
		}
	}

	idToIndex, err := parseContent(path.Join(downloadPath, contentFile))
	if err != nil {
		return err
	}
	if err = parseCites(path.Join(downloadPath, citesFile), idToIndex); err != nil {
		return err
	}
	buildSplits()
	return saveCachedTensors(baseDir)
}

// loadCachedTensors loads the parsed tensors from baseDir if they are all
// there, reporting whether it succeeded.
func loadCachedTensors(baseDir string) bool {
	load := func(fileName string) *tensors.Tensor {
		t, err := tensors.Load(path.Join(baseDir, fileName))
		if err != nil {
			return nil
		}
		return t
	}
	features := load(featuresTensorFile)
	labels := load(labelsTensorFile)
	sources := load(edgeSourcesTensorFile)
	targets := load(edgeTargetsTensorFile)
	if features == nil || labels == nil || sources == nil || targets == nil {
		return false
	}
	NodeFeatures, NodeLabels = features, labels
	EdgeSources, EdgeTargets = sources, targets
	return true
}

func saveCachedTensors(baseDir string) error {
	for fileName, t := range map[string]*tensors.Tensor{
		featuresTensorFile:    NodeFeatures,
		labelsTensorFile:      NodeLabels,
		edgeSourcesTensorFile: EdgeSources,
		edgeTargetsTensorFile: EdgeTargets,
	} {
		filePath := path.Join(baseDir, fileName)
		if err := t.Save(filePath); err != nil {
			return errors.WithMessagef(err, "caching Cora tensor to %q", filePath)
		}
	}
	return nil
}

// parseContent reads `cora.content`: one line per paper with the paper id,
// NumFeatures binary word indicators and the class name. Node indices follow
// the file order. It fills NodeFeatures and NodeLabels and returns the paper
// id to node index mapping.
func parseContent(filePath string) (idToIndex map[string]int32, err error) {
	classToID := make(map[string]int32, NumClasses)
	for classID, name := range ClassNames {
		classToID[name] = int32(classID)
	}

	idToIndex = make(map[string]int32, NumNodes)
	features := make([]float32, 0, NumNodes*NumFeatures)
	labels := make([]int32, 0, NumNodes)
	err = downloader.ParseFieldsFile(filePath, func(fields []string) error {
		if len(fields) != NumFeatures+2 {
			return errors.Errorf("expected %d fields per line (id, %d features, class), got %d",
				NumFeatures+2, NumFeatures, len(fields))
		}
		paperID := fields[0]
		if _, found := idToIndex[paperID]; found {
			return errors.Errorf("duplicate paper id %q", paperID)
		}
		idToIndex[paperID] = int32(len(labels))
		for _, str := range fields[1 : NumFeatures+1] {
			v, err := strconv.ParseFloat(str, 32)
			if err != nil {
				return errors.Wrapf(err, "failed to parse feature value %q of paper %q", str, paperID)
			}
			features = append(features, float32(v))
		}
		className := fields[NumFeatures+1]
		classID, found := classToID[className]
		if !found {
			return errors.Errorf("unknown class %q for paper %q", className, paperID)
		}
		labels = append(labels, classID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(labels) != NumNodes {
		return nil, errors.Errorf("expected %d papers in %q, got %d", NumNodes, filePath, len(labels))
	}
	NodeFeatures = tensors.FromFlatDataAndDimensions(features, NumNodes, NumFeatures)
	NodeLabels = tensors.FromFlatDataAndDimensions(labels, NumNodes, 1)
	return idToIndex, nil
}

// parseCites reads `cora.cites`: one line per citation, "cited citing". Each
// citation contributes both edge directions; the union is deduplicated and
// sorted, so the edge order is deterministic. It fills EdgeSources and
// EdgeTargets.
func parseCites(filePath string, idToIndex map[string]int32) error {
	seen := make(map[int64]bool, 2*NumEdges)
	var edges [][2]int32
	addEdge := func(src, tgt int32) {
		key := int64(src)*NumNodes + int64(tgt)
		if seen[key] {
			return
		}
		seen[key] = true
		edges = append(edges, [2]int32{src, tgt})
	}
	err := downloader.ParseFieldsFile(filePath, func(fields []string) error {
		if len(fields) != 2 {
			return errors.Errorf("expected 2 fields per line (cited, citing), got %d", len(fields))
		}
		cited, found := idToIndex[fields[0]]
		if !found {
			return errors.Errorf("citation references unknown paper id %q", fields[0])
		}
		citing, found := idToIndex[fields[1]]
		if !found {
			return errors.Errorf("citation references unknown paper id %q", fields[1])
		}
		addEdge(citing, cited)
		addEdge(cited, citing)
		return nil
	})
	if err != nil {
		return err
	}
	if len(edges) != NumEdges {
		return errors.Errorf("expected %d directed edges after symmetrization, got %d", NumEdges, len(edges))
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i][0] != edges[j][0] {
			return edges[i][0] < edges[j][0]
		}
		return edges[i][1] < edges[j][1]
	})
	sources := make([]int32, len(edges))
	targets := make([]int32, len(edges))
	for ii, edge := range edges {
		sources[ii] = edge[0]
		targets[ii] = edge[1]
	}
	EdgeSources = tensors.FromValue(sources)
	EdgeTargets = tensors.FromValue(targets)
	return nil
}

// buildSplits derives the train/validation/test splits from NodeLabels: the
// first NumTrainPerClass nodes of each class (in dataset order) are train,
// the next NumValid nodes not taken for train are validation and the last
// NumTest nodes are test.
func buildSplits() {
	labels := tensors.MustCopyFlatData[int32](NodeLabels)
	masks := make([]bool, 3*NumNodes)
	trainMask := masks[:NumNodes]
	validMask := masks[NumNodes : 2*NumNodes]
	testMask := masks[2*NumNodes:]

	var trainIndices, validIndices, testIndices []int32
	perClass := make([]int, NumClasses)
	for node := int32(0); node < NumNodes && len(trainIndices) < NumTrain; node++ {
		class := labels[node]
		if perClass[class] < NumTrainPerClass {
			perClass[class]++
			trainIndices = append(trainIndices, node)
			trainMask[node] = true
		}
	}
	for node := int32(0); node < NumNodes && len(validIndices) < NumValid; node++ {
		if !trainMask[node] {
			validIndices = append(validIndices, node)
			validMask[node] = true
		}
	}
	for node := int32(NumNodes - NumTest); node < NumNodes; node++ {
		testIndices = append(testIndices, node)
		testMask[node] = true
	}

	gatherLabels := func(indices []int32) []int32 {
		out := make([]int32, len(indices))
		for ii, node := range indices {
			out[ii] = labels[node]
		}
		return out
	}
	TrainIndices = tensors.FromFlatDataAndDimensions(trainIndices, len(trainIndices), 1)
	ValidIndices = tensors.FromFlatDataAndDimensions(validIndices, len(validIndices), 1)
	TestIndices = tensors.FromFlatDataAndDimensions(testIndices, len(testIndices), 1)
	TrainLabels = tensors.FromFlatDataAndDimensions(gatherLabels(trainIndices), len(trainIndices), 1)
	ValidLabels = tensors.FromFlatDataAndDimensions(gatherLabels(validIndices), len(validIndices), 1)
	TestLabels = tensors.FromFlatDataAndDimensions(gatherLabels(testIndices), len(testIndices), 1)
	TrainMask = tensors.FromValue(trainMask)
	ValidMask = tensors.FromValue(validMask)
	TestMask = tensors.FromValue(testMask)
}
