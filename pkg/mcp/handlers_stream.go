package mcp

import (
	"context"
	"errors"
	"os"

	"github.com/google/uuid"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codesmith-dev/codesmith/pkg/streamproc"
)

// ProcessFileInput is the input schema for the process_file tool.
type ProcessFileInput struct {
	OperationID      string         `json:"operation_id,omitempty"      jsonschema:"caller-assigned identifier; generated when omitted"`
	InputPath        string         `json:"input_path"                  jsonschema:"absolute path to the file to process"`
	OutputPath       string         `json:"output_path"                 jsonschema:"absolute path the processed output is written to"`
	ProcessorKind    string         `json:"processor_kind"               jsonschema:"registered processor kind, see available_processors"`
	Options          map[string]any `json:"options,omitempty"           jsonschema:"processor-specific options"`
	ChunkSize        int            `json:"chunk_size,omitempty"        jsonschema:"read/write unit size in bytes (default: 65536)"`
	EnableCheckpoint bool           `json:"enable_checkpoint,omitempty" jsonschema:"periodically persist resumable progress"`
}

func (s *Server) handleProcessFile(
	ctx context.Context, _ *mcpsdk.CallToolRequest, in ProcessFileInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if in.InputPath == "" || in.OutputPath == "" {
		return errorResult(ErrEmptyPath)
	}

	operationID := in.OperationID
	if operationID == "" {
		operationID = uuid.NewString()
	}

	req := streamproc.Request{
		OperationID:      operationID,
		InputPath:        in.InputPath,
		OutputPath:       in.OutputPath,
		ProcessorKind:    in.ProcessorKind,
		Options:          in.Options,
		ChunkSize:        in.ChunkSize,
		EnableCheckpoint: in.EnableCheckpoint,
	}

	s.ops.Create(operationID, in.ProcessorKind, req)

	runCtx, err := s.ops.Start(ctx, operationID)
	if err != nil {
		return errorResult(err)
	}

	result, err := s.stream.ProcessFile(runCtx, req)
	if err != nil {
		if errors.Is(err, streamproc.ErrCancelled) {
			_ = s.ops.MarkCancelled(operationID)
		} else {
			_ = s.ops.Fail(operationID)
		}

		return errorResult(err)
	}

	if result.Checkpoint != nil {
		_ = s.ops.Checkpoint(operationID, result.Checkpoint)
	}

	_ = s.ops.Complete(operationID)

	return jsonResult(map[string]any{"operation_id": operationID, "result": result})
}

// BulkTransformInput is the input schema for the bulk_transform tool.
type BulkTransformInput struct {
	fileSelection
	OperationID   string         `json:"operation_id,omitempty" jsonschema:"caller-assigned identifier; generated when omitted"`
	OutDir        string         `json:"out_dir"                 jsonschema:"directory processed outputs are written to"`
	ProcessorKind string         `json:"processor_kind"          jsonschema:"registered processor kind, see available_processors"`
	Options       map[string]any `json:"options,omitempty"      jsonschema:"processor-specific options"`
	Parallelism   int            `json:"parallelism,omitempty"  jsonschema:"maximum number of files processed concurrently (default: processor count)"`
	PreserveDirs  bool           `json:"preserve_dirs,omitempty" jsonschema:"mirror each file's path under the common ancestor of the resolved set"`
}

func (s *Server) handleBulkTransform(
	ctx context.Context, _ *mcpsdk.CallToolRequest, in BulkTransformInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if err := requireFilePatterns(in.FilePatterns); err != nil {
		return errorResult(err)
	}

	if in.OutDir == "" {
		return errorResult(ErrEmptyPath)
	}

	operationID := in.OperationID
	if operationID == "" {
		operationID = uuid.NewString()
	}

	resolveOpts := resolveOptsFrom(in.ExcludeHidden, in.ExcludePatterns, in.MaxFileSize)

	result, err := s.stream.BulkTransform(
		ctx, s.patterns, operationID, in.FilePatterns, in.OutDir,
		in.ProcessorKind, in.Options, in.Parallelism, in.PreserveDirs, resolveOpts,
	)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(result)
}

// EstimateProcessingInput is the input schema for the estimate_processing
// tool.
type EstimateProcessingInput struct {
	fileSelection
	ProcessorKind string `json:"processor_kind" jsonschema:"registered processor kind, see available_processors"`
}

// processingEstimate summarizes the metadata-only cost estimate of a
// process_file/bulk_transform run over a resolved file set.
type processingEstimate struct {
	FileCount         int    `json:"file_count"`
	TotalSize         int64  `json:"total_size_bytes"`
	EstimatedDuration string `json:"estimated_duration"`
}

func (s *Server) handleEstimateProcessing(
	_ context.Context, _ *mcpsdk.CallToolRequest, in EstimateProcessingInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if err := requireFilePatterns(in.FilePatterns); err != nil {
		return errorResult(err)
	}

	resolved := s.patterns.Resolve(in.FilePatterns, resolveOptsFrom(in.ExcludeHidden, in.ExcludePatterns, in.MaxFileSize))

	var total int64

	for _, path := range resolved.Files {
		info, statErr := os.Stat(path)
		if statErr != nil {
			continue
		}

		total += info.Size()
	}

	duration, err := streamproc.EstimateDuration(total, in.ProcessorKind)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(processingEstimate{
		FileCount:         len(resolved.Files),
		TotalSize:         total,
		EstimatedDuration: duration.String(),
	})
}

// AvailableProcessorsInput is the input schema for the
// available_processors tool. It takes no parameters.
type AvailableProcessorsInput struct{}

func (s *Server) handleAvailableProcessors(
	_ context.Context, _ *mcpsdk.CallToolRequest, _ AvailableProcessorsInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return jsonResult(s.stream.Processors().AvailableProcessors())
}
