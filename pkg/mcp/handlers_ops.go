package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codesmith-dev/codesmith/pkg/checkpoint"
	"github.com/codesmith-dev/codesmith/pkg/streamproc"
)

// OperationProgressInput is the input schema for the operation_progress
// tool.
type OperationProgressInput struct {
	OperationID string `json:"operation_id" jsonschema:"ID of the operation to inspect"`
}

// operationSnapshot merges a stream operation's lifecycle state with its
// live progress record.
type operationSnapshot struct {
	Operation any `json:"operation"`
	Progress  any `json:"progress,omitempty"`
}

func (s *Server) handleOperationProgress(
	_ context.Context, _ *mcpsdk.CallToolRequest, in OperationProgressInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if err := requireOperationID(in.OperationID); err != nil {
		return errorResult(err)
	}

	op, ok := s.ops.Get(in.OperationID)
	if !ok {
		return errorResult(fmt.Errorf("operation_progress: unknown operation %q", in.OperationID))
	}

	snapshot := operationSnapshot{Operation: op}

	if s.progress != nil {
		if rec, found := s.progress.Get(in.OperationID); found {
			snapshot.Progress = rec
		}
	}

	return jsonResult(snapshot)
}

// ListOperationsInput is the input schema for the list_operations tool. It
// takes no parameters.
type ListOperationsInput struct{}

func (s *Server) handleListOperations(
	_ context.Context, _ *mcpsdk.CallToolRequest, _ ListOperationsInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return jsonResult(s.ops.List())
}

// CancelOperationInput is the input schema for the cancel_operation tool.
type CancelOperationInput struct {
	OperationID string `json:"operation_id" jsonschema:"ID of the running operation to cancel"`
}

func (s *Server) handleCancelOperation(
	_ context.Context, _ *mcpsdk.CallToolRequest, in CancelOperationInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if err := requireOperationID(in.OperationID); err != nil {
		return errorResult(err)
	}

	if err := s.ops.Cancel(in.OperationID); err != nil {
		return errorResult(err)
	}

	return jsonResult(map[string]string{"operation_id": in.OperationID, "status": "cancel_requested"})
}

// PauseOperationInput is the input schema for the pause_operation tool.
type PauseOperationInput struct {
	OperationID string `json:"operation_id" jsonschema:"ID of the running operation to pause"`
}

func (s *Server) handlePauseOperation(
	_ context.Context, _ *mcpsdk.CallToolRequest, in PauseOperationInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if err := requireOperationID(in.OperationID); err != nil {
		return errorResult(err)
	}

	if err := s.ops.Pause(in.OperationID); err != nil {
		return errorResult(err)
	}

	return jsonResult(map[string]string{"operation_id": in.OperationID, "status": "paused"})
}

// ResumeOperationInput is the input schema for the resume_operation tool.
type ResumeOperationInput struct {
	OperationID string `json:"operation_id" jsonschema:"ID of the paused operation to resume"`
}

func (s *Server) handleResumeOperation(
	_ context.Context, _ *mcpsdk.CallToolRequest, in ResumeOperationInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if err := requireOperationID(in.OperationID); err != nil {
		return errorResult(err)
	}

	if err := s.ops.Resume(in.OperationID); err != nil {
		return errorResult(err)
	}

	return jsonResult(map[string]string{"operation_id": in.OperationID, "status": "running"})
}

// CheckpointOperationInput is the input schema for the checkpoint_operation
// tool: it records an out-of-band checkpoint for an operation, e.g. one
// driven by a caller-managed loop rather than process_file.
type CheckpointOperationInput struct {
	OperationID        string `json:"operation_id"                   jsonschema:"ID of the operation this checkpoint belongs to"`
	FilePath           string `json:"file_path"                      jsonschema:"input file the checkpoint resumes from"`
	PositionBytes      int64  `json:"position_bytes"                 jsonschema:"byte offset reached in the input file"`
	OutputBytesWritten int64  `json:"output_bytes_written,omitempty" jsonschema:"bytes written to the output file so far; defaults to position_bytes for length-preserving processors"`
	ChunksDone         int    `json:"chunks_done"                    jsonschema:"number of chunks processed so far"`
	LinesDone          int    `json:"lines_done"                     jsonschema:"number of lines processed so far"`
}

func (s *Server) handleCheckpointOperation(
	_ context.Context, _ *mcpsdk.CallToolRequest, in CheckpointOperationInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if err := requireOperationID(in.OperationID); err != nil {
		return errorResult(err)
	}

	outputBytesWritten := in.OutputBytesWritten
	if outputBytesWritten == 0 {
		outputBytesWritten = in.PositionBytes
	}

	cp, err := s.checkpoints.Save(in.OperationID, checkpoint.Checkpoint{
		PositionBytes:      in.PositionBytes,
		OutputBytesWritten: outputBytesWritten,
		ChunksDone:         in.ChunksDone,
		LinesDone:          in.LinesDone,
		FilePath:           in.FilePath,
	})
	if err != nil {
		return errorResult(err)
	}

	if err := s.ops.Checkpoint(in.OperationID, &cp); err != nil {
		return errorResult(err)
	}

	return jsonResult(cp)
}

// ResumeFromCheckpointInput is the input schema for the
// resume_from_checkpoint tool.
type ResumeFromCheckpointInput struct {
	OperationID   string         `json:"operation_id"            jsonschema:"ID of the operation to resume"`
	CheckpointID  string         `json:"checkpoint_id,omitempty" jsonschema:"specific checkpoint to resume from; defaults to the latest"`
	OutputPath    string         `json:"output_path"             jsonschema:"absolute path the resumed output is appended to"`
	ProcessorKind string         `json:"processor_kind"          jsonschema:"registered processor kind, see available_processors"`
	Options       map[string]any `json:"options,omitempty"       jsonschema:"processor-specific options"`
	ChunkSize     int            `json:"chunk_size,omitempty"    jsonschema:"read/write unit size in bytes (default: 65536)"`
}

func (s *Server) handleResumeFromCheckpoint(
	ctx context.Context, _ *mcpsdk.CallToolRequest, in ResumeFromCheckpointInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if err := requireOperationID(in.OperationID); err != nil {
		return errorResult(err)
	}

	if in.OutputPath == "" {
		return errorResult(ErrEmptyPath)
	}

	cp, err := s.resolveCheckpoint(in.OperationID, in.CheckpointID)
	if err != nil {
		return errorResult(err)
	}

	req := streamproc.Request{
		OperationID:      in.OperationID,
		InputPath:        cp.FilePath,
		OutputPath:       in.OutputPath,
		ProcessorKind:    in.ProcessorKind,
		Options:          in.Options,
		ChunkSize:        in.ChunkSize,
		EnableCheckpoint: true,
	}

	s.ops.Create(in.OperationID, in.ProcessorKind, req)

	runCtx, err := s.ops.Start(ctx, in.OperationID)
	if err != nil {
		return errorResult(err)
	}

	result, err := s.stream.ResumeFile(runCtx, req, cp)
	if err != nil {
		_ = s.ops.Fail(in.OperationID)

		return errorResult(err)
	}

	if result.Checkpoint != nil {
		_ = s.ops.Checkpoint(in.OperationID, result.Checkpoint)
	}

	_ = s.ops.Complete(in.OperationID)

	return jsonResult(map[string]any{"operation_id": in.OperationID, "result": result})
}

func (s *Server) resolveCheckpoint(operationID, checkpointID string) (*checkpoint.Checkpoint, error) {
	if checkpointID != "" {
		return s.checkpoints.Load(operationID, checkpointID)
	}

	cp, err := s.checkpoints.Latest(operationID)
	if err != nil {
		return nil, err
	}

	if cp == nil {
		return nil, fmt.Errorf("resume_from_checkpoint: no checkpoint found for operation %q", operationID)
	}

	return cp, nil
}
