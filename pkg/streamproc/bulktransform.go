package streamproc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/codesmith-dev/codesmith/pkg/patternset"
)

// FileTransformResult is one file's outcome within a BulkTransform run.
type FileTransformResult struct {
	Path       string
	OutputPath string
	Success    bool
	Error      string
	Result     *Result
}

// BulkResult aggregates a BulkTransform run across a resolved file set.
type BulkResult struct {
	OperationID string
	PerFile     []FileTransformResult
}

// BulkTransform expands inputs the same way C3 does, then runs
// ProcessFile against each resolved file under a semaphore of size
// parallelism (default: processor count). When preserveDirs is set, each
// output path mirrors the resolved file's position relative to the
// common ancestor directory of the resolved set; otherwise every output
// lands flat in outDir by base name.
func (e *Engine) BulkTransform(
	ctx context.Context,
	resolver *patternset.Resolver,
	operationID string,
	inputs []string,
	outDir string,
	processorKind string,
	options map[string]any,
	parallelism int,
	preserveDirs bool,
	resolveOpts patternset.Options,
) (*BulkResult, error) {
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}

	resolved := resolver.Resolve(inputs, resolveOpts)

	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return nil, fmt.Errorf("streamproc: create output dir: %w", err)
	}

	ancestor := commonAncestor(resolved.Files)

	sem := semaphore.NewWeighted(int64(parallelism))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make([]FileTransformResult, 0, len(resolved.Files))
	)

	for i, path := range resolved.Files {
		outPath := mapOutputPath(outDir, ancestor, path, preserveDirs, i)

		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}

		wg.Add(1)

		go func(path, outPath string, index int) {
			defer wg.Done()
			defer sem.Release(1)

			fr := FileTransformResult{Path: path, OutputPath: outPath}

			res, err := e.ProcessFile(ctx, Request{
				OperationID:   fmt.Sprintf("%s-%d", operationID, index),
				InputPath:     path,
				OutputPath:    outPath,
				ProcessorKind: processorKind,
				Options:       options,
			})
			if err != nil {
				fr.Error = err.Error()
			} else {
				fr.Success = true
				fr.Result = res
			}

			mu.Lock()
			results = append(results, fr)
			mu.Unlock()
		}(path, outPath, i)
	}

	wg.Wait()

	return &BulkResult{OperationID: operationID, PerFile: results}, nil
}

func mapOutputPath(outDir, ancestor, path string, preserveDirs bool, index int) string {
	if !preserveDirs || ancestor == "" {
		name := filepath.Base(path)

		return filepath.Join(outDir, dedupName(name, index))
	}

	rel, err := filepath.Rel(ancestor, path)
	if err != nil {
		return filepath.Join(outDir, dedupName(filepath.Base(path), index))
	}

	return filepath.Join(outDir, rel)
}

// dedupName guards against basename collisions when preserveDirs is off
// by suffixing with the file's index in the resolved set.
func dedupName(name string, index int) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	return fmt.Sprintf("%s_%d%s", base, index, ext)
}

// commonAncestor returns the deepest directory common to every path, or
// "" if paths is empty or shares no ancestor.
func commonAncestor(paths []string) string {
	if len(paths) == 0 {
		return ""
	}

	split := make([][]string, len(paths))
	shortest := -1

	for i, p := range paths {
		parts := strings.Split(filepath.Dir(filepath.Clean(p)), string(filepath.Separator))
		split[i] = parts

		if shortest == -1 || len(parts) < shortest {
			shortest = len(parts)
		}
	}

	common := make([]string, 0, shortest)

	for i := 0; i < shortest; i++ {
		seg := split[0][i]

		for _, parts := range split[1:] {
			if parts[i] != seg {
				return strings.Join(common, string(filepath.Separator))
			}
		}

		common = append(common, seg)
	}

	return strings.Join(common, string(filepath.Separator))
}
