package bulkedit

import (
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/codesmith-dev/codesmith/pkg/patternset"
)

// largeChangeFileThreshold and largeChangeBytesThreshold are the
// heuristics behind ImpactEstimate.LargeChangeWarning.
const (
	largeChangeFileThreshold  = 500
	largeChangeBytesThreshold = 100 * 1024 * 1024
)

// ExtStat summarizes one file extension's contribution to an estimate.
type ExtStat struct {
	Count int
	Bytes int64
}

// ImpactEstimate is a metadata-only projection of a request's blast
// radius: it never reads a file's body.
type ImpactEstimate struct {
	FileCount          int
	TotalBytes         int64
	HumanSize          string
	ByExtension        map[string]ExtStat
	LargeChangeWarning bool
}

// EstimateImpact resolves filePatterns and sums file count and size by
// extension, without reading any file's contents.
func (e *Engine) EstimateImpact(filePatterns []string, opts patternset.Options) ImpactEstimate {
	resolved := e.patterns.Resolve(filePatterns, opts)

	est := ImpactEstimate{ByExtension: make(map[string]ExtStat)}

	for _, path := range resolved.Files {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}

		ext := filepath.Ext(path)
		stat := est.ByExtension[ext]
		stat.Count++
		stat.Bytes += info.Size()
		est.ByExtension[ext] = stat

		est.FileCount++
		est.TotalBytes += info.Size()
	}

	est.LargeChangeWarning = est.FileCount > largeChangeFileThreshold || est.TotalBytes > largeChangeBytesThreshold
	est.HumanSize = humanize.Bytes(uint64(est.TotalBytes))

	return est
}
