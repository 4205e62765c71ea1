package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// RollbackInput is the input schema for the rollback tool.
type RollbackInput struct {
	RollbackID string `json:"rollback_id" jsonschema:"ID of the rollback session to restore"`
}

func (s *Server) handleRollback(
	ctx context.Context, _ *mcpsdk.CallToolRequest, in RollbackInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if in.RollbackID == "" {
		return errorResult(ErrEmptyRollbackID)
	}

	result, err := s.rollback.Rollback(ctx, in.RollbackID)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(result)
}

// ListRollbacksInput is the input schema for the list_rollbacks tool. It
// takes no parameters.
type ListRollbacksInput struct{}

func (s *Server) handleListRollbacks(
	_ context.Context, _ *mcpsdk.CallToolRequest, _ ListRollbacksInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return jsonResult(s.rollback.List())
}

// VerifyRollbackInput is the input schema for the verify_rollback tool.
type VerifyRollbackInput struct {
	RollbackID string `json:"rollback_id" jsonschema:"ID of the rollback session to verify"`
}

func (s *Server) handleVerifyRollback(
	_ context.Context, _ *mcpsdk.CallToolRequest, in VerifyRollbackInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if in.RollbackID == "" {
		return errorResult(ErrEmptyRollbackID)
	}

	result, err := s.rollback.Verify(in.RollbackID)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(result)
}

// DeleteRollbackInput is the input schema for the delete_rollback tool.
type DeleteRollbackInput struct {
	RollbackID string `json:"rollback_id" jsonschema:"ID of the rollback session to delete"`
}

func (s *Server) handleDeleteRollback(
	_ context.Context, _ *mcpsdk.CallToolRequest, in DeleteRollbackInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if in.RollbackID == "" {
		return errorResult(ErrEmptyRollbackID)
	}

	if err := s.rollback.DeleteRollback(in.RollbackID); err != nil {
		return errorResult(err)
	}

	return jsonResult(map[string]string{"rollback_id": in.RollbackID, "status": "deleted"})
}

// RollbackHistoryInput is the input schema for the rollback_history tool. It
// takes no parameters; unlike list_rollbacks it includes expired sessions.
type RollbackHistoryInput struct{}

func (s *Server) handleRollbackHistory(
	_ context.Context, _ *mcpsdk.CallToolRequest, _ RollbackHistoryInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return jsonResult(s.rollback.History())
}

// ExportRollbackInput is the input schema for the export_rollback tool.
type ExportRollbackInput struct {
	RollbackID string `json:"rollback_id" jsonschema:"ID of the rollback session to export"`
	DestPath   string `json:"dest_path"   jsonschema:"absolute path to write the portable session export to"`
}

func (s *Server) handleExportRollback(
	_ context.Context, _ *mcpsdk.CallToolRequest, in ExportRollbackInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if in.RollbackID == "" {
		return errorResult(ErrEmptyRollbackID)
	}

	if in.DestPath == "" {
		return errorResult(ErrEmptyPath)
	}

	if err := s.rollback.Export(in.RollbackID, in.DestPath); err != nil {
		return errorResult(err)
	}

	return jsonResult(map[string]string{"rollback_id": in.RollbackID, "dest_path": in.DestPath})
}

// ImportRollbackInput is the input schema for the import_rollback tool.
type ImportRollbackInput struct {
	SrcPath string `json:"src_path" jsonschema:"path to a previously exported session file"`
}

func (s *Server) handleImportRollback(
	_ context.Context, _ *mcpsdk.CallToolRequest, in ImportRollbackInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if in.SrcPath == "" {
		return errorResult(ErrEmptyPath)
	}

	session, err := s.rollback.Import(in.SrcPath)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(session)
}
