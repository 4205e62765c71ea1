package streamproc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/codesmith-dev/codesmith/pkg/checkpoint"
	"github.com/codesmith-dev/codesmith/pkg/progress"
)

// DefaultChunkSize is the default read/write unit size.
const DefaultChunkSize = 65536

// checkpointInterval is how many chunks elapse between automatic
// checkpoint emissions.
const checkpointInterval = 100

// ErrCancelled is returned when a request's context is done at a
// suspension point; any output already written is left in place.
var ErrCancelled = errors.New("streamproc: operation cancelled")

// Request describes one file's pass through the pipeline.
type Request struct {
	OperationID      string
	InputPath        string
	OutputPath       string
	ProcessorKind    string
	Options          map[string]any
	ChunkSize        int
	EnableCheckpoint bool
}

// Result summarizes one completed or interrupted pipeline run.
type Result struct {
	BytesDone  int64
	ChunksDone int
	LinesDone  int
	ItemsDone  int
	Checkpoint *checkpoint.Checkpoint
}

// Engine runs the chunked read-transform-write pipeline.
type Engine struct {
	processors  *Registry
	checkpoints *checkpoint.Manager
	progress    *progress.Tracker
	logger      *slog.Logger
}

// New creates an Engine. checkpoints may be nil if the caller never
// enables checkpointing; progress may be nil to skip progress reporting.
func New(checkpoints *checkpoint.Manager, progressTracker *progress.Tracker, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		processors:  NewRegistry(),
		checkpoints: checkpoints,
		progress:    progressTracker,
		logger:      logger,
	}
}

// Processors exposes the engine's processor registry, e.g. for
// available_processors().
func (e *Engine) Processors() *Registry {
	return e.processors
}

// ProcessFile runs req from the beginning of the input file.
func (e *Engine) ProcessFile(ctx context.Context, req Request) (*Result, error) {
	return e.run(ctx, req, nil)
}

// ResumeFile runs req starting from a previously saved checkpoint: the
// input is seeked to checkpoint.PositionBytes, and the output is
// truncated to checkpoint.OutputBytesWritten and reopened in append mode,
// so a resumed run is byte-identical to an uninterrupted one regardless
// of whether the processor preserves chunk length.
func (e *Engine) ResumeFile(ctx context.Context, req Request, cp *checkpoint.Checkpoint) (*Result, error) {
	if cp == nil {
		return nil, errors.New("streamproc: resume requires a non-nil checkpoint")
	}

	return e.run(ctx, req, cp)
}

func (e *Engine) run(ctx context.Context, req Request, resumeFrom *checkpoint.Checkpoint) (*Result, error) {
	proc, err := e.processors.Get(req.ProcessorKind)
	if err != nil {
		return nil, err
	}

	if err := proc.ValidateOptions(req.Options); err != nil {
		return nil, err
	}

	chunkSize := req.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	in, err := os.Open(req.InputPath)
	if err != nil {
		return nil, fmt.Errorf("streamproc: open input: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return nil, fmt.Errorf("streamproc: stat input: %w", err)
	}

	totalSize := info.Size()

	var (
		pos        int64
		outPos     int64
		chunkIndex int
		chunksDone int
		linesDone  int
		itemsDone  int
	)

	out, err := e.openOutput(req.OutputPath, resumeFrom)
	if err != nil {
		return nil, err
	}
	defer out.Close()

	if resumeFrom != nil {
		pos = resumeFrom.PositionBytes
		outPos = resumeFrom.OutputBytesWritten
		chunksDone = resumeFrom.ChunksDone
		chunkIndex = resumeFrom.ChunksDone
		linesDone = resumeFrom.LinesDone
		itemsDone = resumeFrom.ChunksDone

		if _, err := in.Seek(pos, io.SeekStart); err != nil {
			return nil, fmt.Errorf("streamproc: seek input to checkpoint: %w", err)
		}
	}

	if e.progress != nil {
		e.progress.Create(req.OperationID, req.ProcessorKind, totalSize)
		e.progress.Update(req.OperationID, pos, int64(chunksDone), int64(linesDone), int64(itemsDone))
	}

	reader := bufio.NewReaderSize(in, chunkSize)
	buf := make([]byte, chunkSize)

	var lastCheckpoint *checkpoint.Checkpoint

	for {
		if ctx.Err() != nil {
			return e.partialResult(pos, chunksDone, linesDone, itemsDone, lastCheckpoint), ErrCancelled
		}

		n, readErr := io.ReadFull(reader, buf)
		if readErr != nil && readErr != io.ErrUnexpectedEOF && readErr != io.EOF {
			return nil, fmt.Errorf("streamproc: read chunk: %w", readErr)
		}

		if n == 0 {
			break
		}

		isLast := pos+int64(n) >= totalSize

		chunk := Chunk{Data: buf[:n], Position: pos, Index: chunkIndex, IsLast: isLast}

		processed, procErr := proc.Process(chunk, req.Options)
		if procErr != nil {
			return nil, fmt.Errorf("streamproc: process chunk %d: %w", chunkIndex, procErr)
		}

		if ctx.Err() != nil {
			return e.partialResult(pos, chunksDone, linesDone, itemsDone, lastCheckpoint), ErrCancelled
		}

		if _, writeErr := out.Write(processed.Data); writeErr != nil {
			return nil, fmt.Errorf("streamproc: write chunk %d: %w", chunkIndex, writeErr)
		}

		pos += int64(n)
		outPos += int64(len(processed.Data))
		chunksDone++
		linesDone += processed.Lines
		itemsDone++
		chunkIndex++

		if e.progress != nil {
			e.progress.Update(req.OperationID, pos, int64(chunksDone), int64(linesDone), int64(itemsDone))
		}

		if req.EnableCheckpoint && chunksDone%checkpointInterval == 0 {
			cp, err := e.saveCheckpoint(req, pos, outPos, chunksDone, linesDone)
			if err != nil {
				return nil, err
			}

			lastCheckpoint = cp
		}

		if isLast || readErr == io.EOF {
			break
		}
	}

	if req.EnableCheckpoint {
		cp, err := e.saveCheckpoint(req, pos, outPos, chunksDone, linesDone)
		if err != nil {
			return nil, err
		}

		lastCheckpoint = cp
	}

	if e.progress != nil {
		e.progress.Complete(req.OperationID)
	}

	return &Result{
		BytesDone:  pos,
		ChunksDone: chunksDone,
		LinesDone:  linesDone,
		ItemsDone:  itemsDone,
		Checkpoint: lastCheckpoint,
	}, nil
}

func (e *Engine) openOutput(path string, resumeFrom *checkpoint.Checkpoint) (*os.File, error) {
	if resumeFrom == nil {
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("streamproc: create output: %w", err)
		}

		return f, nil
	}

	if err := os.Truncate(path, resumeFrom.OutputBytesWritten); err != nil {
		return nil, fmt.Errorf("streamproc: truncate output for resume: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("streamproc: reopen output for resume: %w", err)
	}

	return f, nil
}

func (e *Engine) saveCheckpoint(req Request, pos, outPos int64, chunksDone, linesDone int) (*checkpoint.Checkpoint, error) {
	if e.checkpoints == nil {
		return nil, errors.New("streamproc: checkpointing requested but no checkpoint manager configured")
	}

	cp, err := e.checkpoints.Save(req.OperationID, checkpoint.Checkpoint{
		PositionBytes:      pos,
		OutputBytesWritten: outPos,
		ChunksDone:         chunksDone,
		LinesDone:          linesDone,
		FilePath:           req.InputPath,
	})
	if err != nil {
		return nil, fmt.Errorf("streamproc: save checkpoint: %w", err)
	}

	return &cp, nil
}

func (e *Engine) partialResult(pos int64, chunksDone, linesDone, itemsDone int, cp *checkpoint.Checkpoint) *Result {
	return &Result{
		BytesDone:  pos,
		ChunksDone: chunksDone,
		LinesDone:  linesDone,
		ItemsDone:  itemsDone,
		Checkpoint: cp,
	}
}
