package mcp

import (
	"context"
	"fmt"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codesmith-dev/codesmith/pkg/bulkedit"
	"github.com/codesmith-dev/codesmith/pkg/patternset"
)

// EditInput is the wire representation of a bulkedit.Edit: kind is one of
// "insert", "delete", "replace".
type EditInput struct {
	Kind      string `json:"kind"                jsonschema:"edit kind: insert, delete, or replace"`
	StartLine int    `json:"start_line"          jsonschema:"1-based starting line"`
	StartCol  int    `json:"start_col"           jsonschema:"0-based starting column (byte offset within the line)"`
	EndLine   int    `json:"end_line,omitempty"  jsonschema:"1-based ending line (ignored for insert)"`
	EndCol    int    `json:"end_col,omitempty"   jsonschema:"0-based ending column (ignored for insert)"`
	NewText   string `json:"new_text,omitempty"  jsonschema:"replacement or inserted text"`
}

func parseEditKind(s string) (bulkedit.Kind, error) {
	switch s {
	case "insert":
		return bulkedit.Insert, nil
	case "delete":
		return bulkedit.Delete, nil
	case "replace":
		return bulkedit.Replace, nil
	default:
		return 0, fmt.Errorf("unknown edit kind %q", s)
	}
}

func toEdits(inputs []EditInput) ([]bulkedit.Edit, error) {
	edits := make([]bulkedit.Edit, 0, len(inputs))

	for _, in := range inputs {
		kind, err := parseEditKind(in.Kind)
		if err != nil {
			return nil, err
		}

		edits = append(edits, bulkedit.Edit{
			Kind:      kind,
			StartLine: in.StartLine,
			StartCol:  in.StartCol,
			EndLine:   in.EndLine,
			EndCol:    in.EndCol,
			NewText:   in.NewText,
		})
	}

	return edits, nil
}

// ConditionInput is the wire representation of a bulkedit.Condition.
type ConditionInput struct {
	Kind    string `json:"kind"               jsonschema:"condition kind: contains, matches, size_range, modified_after, extension, path_contains"`
	Text    string `json:"text,omitempty"     jsonschema:"literal text to search for (contains), extension with leading dot such as .go (extension), or path substring (path_contains)"`
	Pattern string `json:"pattern,omitempty"  jsonschema:"regex pattern (matches)"`
	MinSize int64  `json:"min_size,omitempty" jsonschema:"minimum file size in bytes (size_range)"`
	MaxSize int64  `json:"max_size,omitempty" jsonschema:"maximum file size in bytes (size_range)"`
	After   string `json:"after,omitempty"    jsonschema:"RFC3339 timestamp (modified_after)"`
	Negate  bool   `json:"negate,omitempty"   jsonschema:"invert the condition's result"`
}

func toCondition(in ConditionInput) (bulkedit.Condition, error) {
	cond := bulkedit.Condition{
		Kind:    bulkedit.ConditionKind(in.Kind),
		Text:    in.Text,
		Pattern: in.Pattern,
		MinSize: in.MinSize,
		MaxSize: in.MaxSize,
		Negate:  in.Negate,
	}

	if in.After != "" {
		after, err := time.Parse(time.RFC3339, in.After)
		if err != nil {
			return bulkedit.Condition{}, fmt.Errorf("parse after timestamp: %w", err)
		}

		cond.After = after
	}

	return cond, nil
}

// fileSelection is the set of input fields every tool that resolves a file
// set from patterns carries in common.
type fileSelection struct {
	FilePatterns    []string `json:"file_patterns"              jsonschema:"paths, directories, or glob patterns identifying the files to operate on"`
	ExcludeHidden   bool     `json:"exclude_hidden,omitempty"    jsonschema:"skip hidden files"`
	ExcludePatterns []string `json:"exclude_patterns,omitempty"  jsonschema:"glob patterns matched against base names; matches are excluded"`
	MaxFileSize     int64    `json:"max_file_size,omitempty"     jsonschema:"skip files larger than this many bytes"`
}

// editOptions is the set of input fields every tool that applies edits via
// the bulkedit engine carries in common.
type editOptions struct {
	CreateBackup     bool `json:"create_backup,omitempty"      jsonschema:"snapshot affected files to the rollback store before editing"`
	MaxParallelism   int  `json:"max_parallelism,omitempty"     jsonschema:"maximum number of files processed concurrently (default: processor count)"`
	DryRun           bool `json:"dry_run,omitempty"             jsonschema:"compute results without writing any file"`
	StopOnFirstError bool `json:"stop_on_first_error,omitempty" jsonschema:"abort remaining files after the first failure"`
}

// BulkReplaceInput is the input schema for the bulk_replace tool.
type BulkReplaceInput struct {
	fileSelection
	editOptions
	OperationID string `json:"operation_id"       jsonschema:"caller-assigned identifier correlating this run's rollback session and progress"`
	Pattern     string `json:"pattern"            jsonschema:"regular expression matched against file contents"`
	Replacement string `json:"replacement"        jsonschema:"replacement text; may reference capture groups ($1, $2, ...)"`
}

func (s *Server) handleBulkReplace(
	ctx context.Context, _ *mcpsdk.CallToolRequest, in BulkReplaceInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if err := requireOperationID(in.OperationID); err != nil {
		return errorResult(err)
	}

	if err := requireFilePatterns(in.FilePatterns); err != nil {
		return errorResult(err)
	}

	if in.Pattern == "" {
		return errorResult(ErrEmptyPattern)
	}

	opts := bulkeditOptsFrom(in.CreateBackup, in.MaxParallelism, in.DryRun, in.StopOnFirstError,
		resolveOptsFrom(in.ExcludeHidden, in.ExcludePatterns, in.MaxFileSize))

	result, err := s.engine.BulkReplace(ctx, in.OperationID, in.FilePatterns, in.Pattern, in.Replacement, opts)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(result)
}

// ConditionalEditInput is the input schema for the conditional_edit tool.
type ConditionalEditInput struct {
	fileSelection
	editOptions
	OperationID string         `json:"operation_id" jsonschema:"caller-assigned identifier correlating this run's rollback session and progress"`
	Condition   ConditionInput `json:"condition"    jsonschema:"predicate a file must satisfy before its edits are applied"`
	Edits       []EditInput    `json:"edits"        jsonschema:"edits applied to each file that satisfies condition"`
}

func (s *Server) handleConditionalEdit(
	ctx context.Context, _ *mcpsdk.CallToolRequest, in ConditionalEditInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if err := requireOperationID(in.OperationID); err != nil {
		return errorResult(err)
	}

	if err := requireFilePatterns(in.FilePatterns); err != nil {
		return errorResult(err)
	}

	cond, err := toCondition(in.Condition)
	if err != nil {
		return errorResult(err)
	}

	edits, err := toEdits(in.Edits)
	if err != nil {
		return errorResult(err)
	}

	opts := bulkeditOptsFrom(in.CreateBackup, in.MaxParallelism, in.DryRun, in.StopOnFirstError,
		resolveOptsFrom(in.ExcludeHidden, in.ExcludePatterns, in.MaxFileSize))

	result, err := s.engine.ConditionalEdit(ctx, in.OperationID, in.FilePatterns, cond, edits, opts)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(result)
}

// BatchRefactorInput is the input schema for the batch_refactor tool.
type BatchRefactorInput struct {
	fileSelection
	editOptions
	OperationID        string `json:"operation_id"        jsonschema:"caller-assigned identifier correlating this run's rollback session and progress"`
	Kind               string `json:"kind"                jsonschema:"refactor kind; only \"regex\" is currently supported"`
	TargetPattern      string `json:"target_pattern"      jsonschema:"regular expression identifying the refactor target"`
	ReplacementPattern string `json:"replacement_pattern" jsonschema:"replacement text; may reference capture groups ($1, $2, ...)"`
}

func (s *Server) handleBatchRefactor(
	ctx context.Context, _ *mcpsdk.CallToolRequest, in BatchRefactorInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if err := requireOperationID(in.OperationID); err != nil {
		return errorResult(err)
	}

	if err := requireFilePatterns(in.FilePatterns); err != nil {
		return errorResult(err)
	}

	opts := bulkeditOptsFrom(in.CreateBackup, in.MaxParallelism, in.DryRun, in.StopOnFirstError,
		resolveOptsFrom(in.ExcludeHidden, in.ExcludePatterns, in.MaxFileSize))

	pattern := bulkedit.RefactorPattern{
		Kind:               in.Kind,
		TargetPattern:      in.TargetPattern,
		ReplacementPattern: in.ReplacementPattern,
	}

	result, err := s.engine.BatchRefactor(ctx, in.OperationID, in.FilePatterns, pattern, opts)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(result)
}

// FileEditOpInput is the wire representation of a bulkedit.FileEditOp.
type FileEditOpInput struct {
	ID           string      `json:"id"                      jsonschema:"identifier for this sub-operation, referenced by depends_on"`
	FilePatterns []string    `json:"file_patterns"           jsonschema:"paths, directories, or glob patterns this sub-operation applies to"`
	Edits        []EditInput `json:"edits"                   jsonschema:"edits applied to every matched file"`
	Priority     int         `json:"priority,omitempty"      jsonschema:"lower values run first; ties broken by input order"`
	DependsOn    []string    `json:"depends_on,omitempty"    jsonschema:"IDs of sub-operations that must succeed before this one runs"`
}

// MultiFileEditInput is the input schema for the multi_file_edit tool.
type MultiFileEditInput struct {
	editOptions
	OperationID string            `json:"operation_id" jsonschema:"caller-assigned identifier correlating this run's rollback session and progress"`
	Ops         []FileEditOpInput `json:"ops"          jsonschema:"priority-ordered, dependency-aware sub-operations to run in one pass"`
}

func (s *Server) handleMultiFileEdit(
	ctx context.Context, _ *mcpsdk.CallToolRequest, in MultiFileEditInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if err := requireOperationID(in.OperationID); err != nil {
		return errorResult(err)
	}

	if len(in.Ops) == 0 {
		return errorResult(fmt.Errorf("ops parameter is required and must contain at least one entry"))
	}

	ops := make([]bulkedit.FileEditOp, 0, len(in.Ops))

	for _, o := range in.Ops {
		edits, err := toEdits(o.Edits)
		if err != nil {
			return errorResult(err)
		}

		ops = append(ops, bulkedit.FileEditOp{
			ID:           o.ID,
			FilePatterns: o.FilePatterns,
			Edits:        edits,
			Priority:     o.Priority,
			DependsOn:    o.DependsOn,
		})
	}

	opts := bulkeditOptsFrom(in.CreateBackup, in.MaxParallelism, in.DryRun, in.StopOnFirstError, patternset.Options{})

	result, err := s.engine.MultiFileEdit(ctx, in.OperationID, ops, opts)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(result)
}

// PreviewInput is the input schema for the preview tool: it runs bulk_replace
// or conditional_edit with writes suppressed, returning the diffs that would
// result.
type PreviewInput struct {
	fileSelection
	OperationID string         `json:"operation_id"         jsonschema:"caller-assigned identifier for this preview run"`
	Kind        string         `json:"kind"                 jsonschema:"operation previewed: bulk_replace or conditional_edit"`
	Pattern     string         `json:"pattern,omitempty"    jsonschema:"regex pattern (bulk_replace)"`
	Replacement string         `json:"replacement,omitempty" jsonschema:"replacement text (bulk_replace)"`
	Condition   ConditionInput `json:"condition,omitempty"  jsonschema:"predicate a file must satisfy (conditional_edit)"`
	Edits       []EditInput    `json:"edits,omitempty"      jsonschema:"edits applied to matching files (conditional_edit)"`
}

func (s *Server) handlePreview(
	ctx context.Context, _ *mcpsdk.CallToolRequest, in PreviewInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if err := requireOperationID(in.OperationID); err != nil {
		return errorResult(err)
	}

	if err := requireFilePatterns(in.FilePatterns); err != nil {
		return errorResult(err)
	}

	opts := bulkeditOptsFrom(false, 0, true, false,
		resolveOptsFrom(in.ExcludeHidden, in.ExcludePatterns, in.MaxFileSize))

	var (
		result *bulkedit.Result
		err    error
	)

	switch in.Kind {
	case "bulk_replace":
		if in.Pattern == "" {
			return errorResult(ErrEmptyPattern)
		}

		result, err = s.engine.BulkReplace(ctx, in.OperationID, in.FilePatterns, in.Pattern, in.Replacement, opts)
	case "conditional_edit":
		cond, condErr := toCondition(in.Condition)
		if condErr != nil {
			return errorResult(condErr)
		}

		edits, editsErr := toEdits(in.Edits)
		if editsErr != nil {
			return errorResult(editsErr)
		}

		result, err = s.engine.ConditionalEdit(ctx, in.OperationID, in.FilePatterns, cond, edits, opts)
	default:
		return errorResult(fmt.Errorf("unknown preview kind %q: want bulk_replace or conditional_edit", in.Kind))
	}

	if err != nil {
		return errorResult(err)
	}

	return jsonResult(result)
}

// ValidateInput is the input schema for the validate tool.
type ValidateInput struct {
	fileSelection
	OperationKind string         `json:"operation_kind"    jsonschema:"kind being validated: bulk_replace, conditional_edit, batch_refactor, or multi_file_edit"`
	Pattern       string         `json:"pattern,omitempty" jsonschema:"regex pattern to check for compilability, when applicable"`
	Edits         []EditInput    `json:"edits,omitempty"   jsonschema:"edits to check for well-formedness, when applicable"`
}

func (s *Server) handleValidate(
	_ context.Context, _ *mcpsdk.CallToolRequest, in ValidateInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	edits, err := toEdits(in.Edits)
	if err != nil {
		return errorResult(err)
	}

	req := bulkedit.ValidateRequest{
		OperationKind: in.OperationKind,
		FilePatterns:  in.FilePatterns,
		ResolveOpts:   resolveOptsFrom(in.ExcludeHidden, in.ExcludePatterns, in.MaxFileSize),
		Pattern:       in.Pattern,
		Edits:         edits,
	}

	issues := s.engine.Validate(req)

	return jsonResult(issues)
}

// EstimateImpactInput is the input schema for the estimate_impact tool.
type EstimateImpactInput struct {
	fileSelection
	DryRun bool `json:"dry_run,omitempty" jsonschema:"unused; estimate_impact never writes files"`
}

func (s *Server) handleEstimateImpact(
	_ context.Context, _ *mcpsdk.CallToolRequest, in EstimateImpactInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if err := requireFilePatterns(in.FilePatterns); err != nil {
		return errorResult(err)
	}

	opts := resolveOptsFrom(in.ExcludeHidden, in.ExcludePatterns, in.MaxFileSize)

	estimate := s.engine.EstimateImpact(in.FilePatterns, opts)

	return jsonResult(estimate)
}
