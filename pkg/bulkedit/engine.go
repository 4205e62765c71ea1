package bulkedit

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/codesmith-dev/codesmith/pkg/patternset"
	"github.com/codesmith-dev/codesmith/pkg/rollback"
)

// regexCompileGuard bounds how long pattern compilation may run, per
// spec's ReDoS guard on search paths. Go's RE2 engine is linear-time in
// match length by construction, so this only bounds pathological
// compile-time blowup (deeply nested repetition), not matching time.
const regexCompileGuard = time.Second

// Snapshotter is the rollback-store capability the engine consumes.
type Snapshotter interface {
	Create(ctx context.Context, operationID, operationKind string, files []string) (*rollback.CreateResult, error)
}

// ProgressReporter is the progress-tracker capability the engine consumes.
type ProgressReporter interface {
	Create(op, name string, totalBytes int64)
	Update(op string, bytesDone, chunksDone, linesDone, itemsDone int64)
	Complete(op string)
	Fail(op string)
}

// PatternExpander is the pattern-resolver capability the engine consumes.
type PatternExpander interface {
	Resolve(inputs []string, opts patternset.Options) patternset.Result
}

// Options controls a single bulk-edit call.
type Options struct {
	CreateBackup   bool
	MaxParallelism int
	DryRun         bool
	StopOnFirstError bool
	ResolveOpts    patternset.Options
}

// FileResult is the per-file outcome of an edit pass.
type FileResult struct {
	Path           string
	Success        bool
	Error          string
	ChangesApplied int
	OriginalSize   int64
	NewSize        int64
	Started        time.Time
	Ended          time.Time
	BackupCreated  bool
	Skipped        bool
	SkipReason     string
	Diff           string
}

// Totals aggregates FileResult counts and byte movement across a Result.
type Totals struct {
	Matched, Processed, Success, Failed, Skipped, Changes int
	BytesIn, BytesOut                                     int64
}

func (t *Totals) add(o Totals) {
	t.Matched += o.Matched
	t.Processed += o.Processed
	t.Success += o.Success
	t.Failed += o.Failed
	t.Skipped += o.Skipped
	t.Changes += o.Changes
	t.BytesIn += o.BytesIn
	t.BytesOut += o.BytesOut
}

// Result is the structured summary returned by every bulk-edit operation.
type Result struct {
	OperationID string
	Started     time.Time
	Ended       time.Time
	Totals      Totals
	PerFile     []FileResult
	Errors      []string
	RollbackID  string
}

// editFunc computes a file's new content from its current content, path,
// and metadata. A true skip return means the file was intentionally left
// untouched (e.g. a condition evaluated false); an error means failure.
type editFunc func(content []byte, path string, info os.FileInfo) (newContent []byte, changes int, skip bool, skipReason string, err error)

// Engine orchestrates bulk-edit operations over three collaborators:
// snapshots, progress reporting, and pattern expansion.
type Engine struct {
	snapshots      Snapshotter
	progress       ProgressReporter
	patterns       PatternExpander
	processorCount int
	logger         *slog.Logger
}

// New creates an Engine. processorCount bounds default fan-out when an
// Options.MaxParallelism is not supplied.
func New(snapshots Snapshotter, progress ProgressReporter, patterns PatternExpander, processorCount int, logger *slog.Logger) *Engine {
	if processorCount <= 0 {
		processorCount = runtime.GOMAXPROCS(0)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		snapshots:      snapshots,
		progress:       progress,
		patterns:       patterns,
		processorCount: processorCount,
		logger:         logger,
	}
}

func compileGuarded(pattern string) (*regexp.Regexp, error) {
	type result struct {
		re  *regexp.Regexp
		err error
	}

	ch := make(chan result, 1)

	go func() {
		re, err := regexp.Compile(pattern)
		ch <- result{re, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("bulkedit: invalid pattern: %w", r.err)
		}

		return r.re, nil
	case <-time.After(regexCompileGuard):
		return nil, fmt.Errorf("bulkedit: pattern compilation exceeded %s", regexCompileGuard)
	}
}

// BulkReplace compiles pattern once and substitutes every match with
// replacement across the resolved file set. A file whose content does not
// change after substitution is left unwritten, with changes_applied == 0.
func (e *Engine) BulkReplace(ctx context.Context, operationID string, files []string, pattern, replacement string, opts Options) (*Result, error) {
	re, err := compileGuarded(pattern)
	if err != nil {
		return preDispatchFailure(operationID, err), nil
	}

	resolved := e.patterns.Resolve(files, opts.ResolveOpts)

	return e.runPerFile(ctx, operationID, "bulk_replace", resolved.Files, opts, "", func(content []byte, _ string, _ os.FileInfo) ([]byte, int, bool, string, error) {
		matches := re.FindAll(content, -1)
		if len(matches) == 0 {
			return content, 0, false, "", nil
		}

		return re.ReplaceAll(content, []byte(replacement)), len(matches), false, "", nil
	})
}

// ConditionalEdit evaluates cond against each resolved file; when true, it
// applies edits bottom-up in a single pass. Files for which cond is false
// are reported as skipped, not as failed.
func (e *Engine) ConditionalEdit(ctx context.Context, operationID string, files []string, cond Condition, edits []Edit, opts Options) (*Result, error) {
	if err := validateEdits(edits); err != nil {
		return preDispatchFailure(operationID, err), nil
	}

	resolved := e.patterns.Resolve(files, opts.ResolveOpts)

	return e.runPerFile(ctx, operationID, "conditional_edit", resolved.Files, opts, "", func(content []byte, path string, info os.FileInfo) ([]byte, int, bool, string, error) {
		ok, err := cond.Evaluate(content, path, info)
		if err != nil {
			return nil, 0, false, "", err
		}

		if !ok {
			return content, 0, true, "condition not satisfied", nil
		}

		out, applied, err := applyEdits(content, edits)
		if err != nil {
			return nil, 0, false, "", err
		}

		return out, applied, false, "", nil
	})
}

// RefactorPattern describes a batch-refactor request. Kind selects the
// matching strategy; the core contract (absence of matches leaves the
// file byte-identical) is guaranteed for every kind this engine supports.
type RefactorPattern struct {
	Kind               string
	TargetPattern      string
	ReplacementPattern string
}

// BatchRefactor applies a higher-level pattern description. The engine
// implements the "regex" kind directly; other kinds are rejected as
// unsupported rather than silently no-op'd.
func (e *Engine) BatchRefactor(ctx context.Context, operationID string, files []string, pattern RefactorPattern, opts Options) (*Result, error) {
	if pattern.Kind != "regex" {
		return preDispatchFailure(operationID, fmt.Errorf("bulkedit: unsupported refactor kind %q", pattern.Kind)), nil
	}

	re, err := compileGuarded(pattern.TargetPattern)
	if err != nil {
		return preDispatchFailure(operationID, err), nil
	}

	resolved := e.patterns.Resolve(files, opts.ResolveOpts)

	return e.runPerFile(ctx, operationID, "batch_refactor", resolved.Files, opts, "", func(content []byte, _ string, _ os.FileInfo) ([]byte, int, bool, string, error) {
		matches := re.FindAll(content, -1)
		if len(matches) == 0 {
			return content, 0, false, "", nil
		}

		return re.ReplaceAll(content, []byte(pattern.ReplacementPattern)), len(matches), false, "", nil
	})
}

// FileEditOp is one operation within a MultiFileEdit request.
type FileEditOp struct {
	ID           string
	FilePatterns []string
	Edits        []Edit
	Priority     int
	DependsOn    []string
}

// MultiFileEdit executes an ordered list of operations, stably sorted by
// ascending priority. A single snapshot covers the union of every
// operation's resolved files, taken once before any operation runs.
// Operations execute sequentially; files within one operation execute in
// parallel. An operation whose dependency failed is skipped; when
// opts.StopOnFirstError is set, the first failing operation halts the rest.
func (e *Engine) MultiFileEdit(ctx context.Context, operationID string, ops []FileEditOp, opts Options) (*Result, error) {
	sorted := append([]FileEditOp(nil), ops...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })

	resolvedByOp := make(map[string][]string, len(sorted))

	unionSeen := make(map[string]struct{})

	var union []string

	for _, op := range sorted {
		if err := validateEdits(op.Edits); err != nil {
			return preDispatchFailure(operationID, fmt.Errorf("operation %s: %w", op.ID, err)), nil
		}

		resolved := e.patterns.Resolve(op.FilePatterns, opts.ResolveOpts)
		resolvedByOp[op.ID] = resolved.Files

		for _, f := range resolved.Files {
			if _, ok := unionSeen[f]; !ok {
				unionSeen[f] = struct{}{}
				union = append(union, f)
			}
		}
	}

	rollbackID, err := e.maybeSnapshot(ctx, operationID, "multi_file_edit", union, opts)
	if err != nil {
		return nil, err
	}

	result := &Result{OperationID: operationID, Started: time.Now(), RollbackID: rollbackID}

	failed := make(map[string]bool, len(sorted))

	for _, op := range sorted {
		dependencyFailed := false

		for _, dep := range op.DependsOn {
			if failed[dep] {
				dependencyFailed = true

				break
			}
		}

		if dependencyFailed {
			result.Errors = append(result.Errors, fmt.Sprintf("operation %s skipped: dependency failed", op.ID))
			failed[op.ID] = true

			continue
		}

		edits := op.Edits

		sub, subErr := e.runPerFile(ctx, operationID, "multi_file_edit:"+op.ID, resolvedByOp[op.ID], opts, rollbackID, func(content []byte, _ string, _ os.FileInfo) ([]byte, int, bool, string, error) {
			return applyEdits(content, edits)
		})

		opFailed := subErr != nil || (sub != nil && sub.Totals.Failed > 0)
		if opFailed {
			failed[op.ID] = true
		}

		if subErr != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("operation %s: %v", op.ID, subErr))
		} else {
			result.PerFile = append(result.PerFile, sub.PerFile...)
			result.Totals.add(sub.Totals)
		}

		if opFailed && opts.StopOnFirstError {
			break
		}
	}

	result.Ended = time.Now()

	return result, nil
}

func preDispatchFailure(operationID string, err error) *Result {
	now := time.Now()

	return &Result{
		OperationID: operationID,
		Started:     now,
		Ended:       now,
		Errors:      []string{err.Error()},
	}
}

func (e *Engine) maybeSnapshot(ctx context.Context, operationID, kind string, files []string, opts Options) (string, error) {
	if !opts.CreateBackup || opts.DryRun || len(files) == 0 {
		return "", nil
	}

	res, err := e.snapshots.Create(ctx, operationID, kind, files)
	if err != nil {
		return "", fmt.Errorf("bulkedit: snapshot: %w", err)
	}

	return res.Session.RollbackID, nil
}

// runPerFile is the common outer shape shared by every bulk-edit
// operation: snapshot (unless rollbackID is already supplied), fan out
// under a bounded semaphore, aggregate.
func (e *Engine) runPerFile(ctx context.Context, operationID, name string, files []string, opts Options, rollbackID string, fn editFunc) (*Result, error) {
	started := time.Now()

	if len(files) == 0 {
		return &Result{OperationID: operationID, Started: started, Ended: started}, nil
	}

	if rollbackID == "" {
		id, err := e.maybeSnapshot(ctx, operationID, name, files, opts)
		if err != nil {
			return nil, err
		}

		rollbackID = id
	}

	var totalBytes int64

	for _, f := range files {
		if info, err := os.Stat(f); err == nil {
			totalBytes += info.Size()
		}
	}

	e.progress.Create(operationID, name, totalBytes)

	parallelism := opts.MaxParallelism
	if parallelism <= 0 {
		parallelism = e.processorCount
	}

	sem := semaphore.NewWeighted(int64(parallelism))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []FileResult
		doneBytes int64
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for _, f := range files {
		path := f

		wg.Add(1)

		go func() {
			defer wg.Done()

			if acquireErr := sem.Acquire(ctx, 1); acquireErr != nil {
				mu.Lock()
				results = append(results, FileResult{Path: path, Error: "cancelled", Started: time.Now(), Ended: time.Now()})
				mu.Unlock()

				return
			}
			defer sem.Release(1)

			fr := e.processFile(path, fn, opts)
			if !fr.Success && opts.StopOnFirstError {
				cancel()
			}

			mu.Lock()
			results = append(results, fr)
			doneBytes += fr.OriginalSize
			e.progress.Update(operationID, doneBytes, int64(len(results)), 0, int64(len(results)))
			mu.Unlock()
		}()
	}

	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Path < results[j].Path })

	result := aggregateResults(operationID, started, results, rollbackID)

	e.progress.Complete(operationID)

	return result, nil
}

func (e *Engine) processFile(path string, fn editFunc, opts Options) FileResult {
	started := time.Now()

	data, err := os.ReadFile(path)
	if err != nil {
		return FileResult{Path: path, Error: err.Error(), Started: started, Ended: time.Now(), Skipped: true, SkipReason: "read failed"}
	}

	info, err := os.Stat(path)
	if err != nil {
		return FileResult{Path: path, Error: err.Error(), Started: started, Ended: time.Now()}
	}

	newContent, changes, skip, reason, err := fn(data, path, info)
	if err != nil {
		return FileResult{Path: path, Error: err.Error(), Started: started, Ended: time.Now(), OriginalSize: int64(len(data))}
	}

	if skip {
		return FileResult{
			Path: path, Success: true, Skipped: true, SkipReason: reason,
			Started: started, Ended: time.Now(), OriginalSize: int64(len(data)), NewSize: int64(len(data)),
		}
	}

	if bytes.Equal(data, newContent) {
		return FileResult{
			Path: path, Success: true, ChangesApplied: 0,
			Started: started, Ended: time.Now(), OriginalSize: int64(len(data)), NewSize: int64(len(data)),
		}
	}

	if opts.DryRun {
		return FileResult{
			Path: path, Success: true, ChangesApplied: changes, Diff: buildDiff(path, data, newContent),
			Started: started, Ended: time.Now(), OriginalSize: int64(len(data)), NewSize: int64(len(newContent)),
		}
	}

	mode := info.Mode().Perm()

	err = os.WriteFile(path, newContent, mode)
	if err != nil {
		return FileResult{Path: path, Error: err.Error(), Started: started, Ended: time.Now(), OriginalSize: int64(len(data))}
	}

	return FileResult{
		Path: path, Success: true, ChangesApplied: changes, BackupCreated: opts.CreateBackup,
		Started: started, Ended: time.Now(), OriginalSize: int64(len(data)), NewSize: int64(len(newContent)),
	}
}

func aggregateResults(operationID string, started time.Time, results []FileResult, rollbackID string) *Result {
	totals := Totals{Matched: len(results), Processed: len(results)}

	for _, r := range results {
		totals.BytesIn += r.OriginalSize
		totals.BytesOut += r.NewSize

		switch {
		case !r.Success:
			totals.Failed++
		case r.Skipped:
			totals.Skipped++
		default:
			totals.Success++
			totals.Changes += r.ChangesApplied
		}
	}

	return &Result{
		OperationID: operationID,
		Started:     started,
		Ended:       time.Now(),
		Totals:      totals,
		PerFile:     results,
		RollbackID:  rollbackID,
	}
}
