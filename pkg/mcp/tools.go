package mcp

import (
	"encoding/json"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codesmith-dev/codesmith/pkg/bulkedit"
	"github.com/codesmith-dev/codesmith/pkg/patternset"
)

// Tool name constants, one per MCP tool exposed by the server.
const (
	ToolNameBulkReplace     = "bulk_replace"
	ToolNameConditionalEdit = "conditional_edit"
	ToolNameBatchRefactor   = "batch_refactor"
	ToolNameMultiFileEdit   = "multi_file_edit"
	ToolNamePreview         = "preview"
	ToolNameValidate        = "validate"
	ToolNameEstimateImpact  = "estimate_impact"

	ToolNameRollback        = "rollback"
	ToolNameListRollbacks   = "list_rollbacks"
	ToolNameVerifyRollback  = "verify_rollback"
	ToolNameDeleteRollback  = "delete_rollback"
	ToolNameRollbackHistory = "rollback_history"
	ToolNameExportRollback  = "export_rollback"
	ToolNameImportRollback  = "import_rollback"

	ToolNameProcessFile         = "process_file"
	ToolNameBulkTransform       = "bulk_transform"
	ToolNameEstimateProcessing  = "estimate_processing"
	ToolNameAvailableProcessors = "available_processors"

	ToolNameOperationProgress    = "operation_progress"
	ToolNameListOperations       = "list_operations"
	ToolNameCancelOperation      = "cancel_operation"
	ToolNamePauseOperation       = "pause_operation"
	ToolNameResumeOperation      = "resume_operation"
	ToolNameCheckpointOperation  = "checkpoint_operation"
	ToolNameResumeFromCheckpoint = "resume_from_checkpoint"
)

// Sentinel errors shared across tool input validation.
var (
	ErrEmptyOperationID  = errors.New("operation_id parameter is required and must not be empty")
	ErrEmptyFilePatterns = errors.New("file_patterns parameter is required and must contain at least one entry")
	ErrEmptyPattern      = errors.New("pattern parameter is required and must not be empty")
	ErrEmptyRollbackID   = errors.New("rollback_id parameter is required and must not be empty")
	ErrEmptyPath         = errors.New("path parameter is required and must not be empty")
)

// ToolOutput is a generic wrapper for tool results, reused as the structured
// output of every tool registered on the server.
type ToolOutput struct {
	Data any `json:"data"`
}

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}

// resolveOptsFrom builds patternset.Options from the flat fields every
// file-selecting tool input carries.
func resolveOptsFrom(excludeHidden bool, excludePatterns []string, maxFileSize int64) patternset.Options {
	return patternset.Options{
		ExcludeHidden:   excludeHidden,
		ExcludePatterns: excludePatterns,
		MaxFileSize:     maxFileSize,
	}
}

// bulkeditOptsFrom builds bulkedit.Options from the flat fields every
// edit-applying tool input carries.
func bulkeditOptsFrom(
	createBackup bool, maxParallelism int, dryRun, stopOnFirstError bool, resolveOpts patternset.Options,
) bulkedit.Options {
	return bulkedit.Options{
		CreateBackup:     createBackup,
		MaxParallelism:   maxParallelism,
		DryRun:           dryRun,
		StopOnFirstError: stopOnFirstError,
		ResolveOpts:      resolveOpts,
	}
}

func requireOperationID(id string) error {
	if id == "" {
		return ErrEmptyOperationID
	}

	return nil
}

func requireFilePatterns(patterns []string) error {
	if len(patterns) == 0 {
		return ErrEmptyFilePatterns
	}

	return nil
}
