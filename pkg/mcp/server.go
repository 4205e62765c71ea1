// Package mcp implements a Model Context Protocol server exposing codesmith's
// bulk-editing, rollback, and streaming-transform capabilities as MCP tools
// over stdio transport.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/codesmith-dev/codesmith/pkg/bulkedit"
	"github.com/codesmith-dev/codesmith/pkg/checkpoint"
	"github.com/codesmith-dev/codesmith/pkg/observability"
	"github.com/codesmith-dev/codesmith/pkg/patternset"
	"github.com/codesmith-dev/codesmith/pkg/progress"
	"github.com/codesmith-dev/codesmith/pkg/rollback"
	"github.com/codesmith-dev/codesmith/pkg/streamops"
	"github.com/codesmith-dev/codesmith/pkg/streamproc"
)

const (
	// serverName is the MCP server implementation name.
	serverName = "codesmith"
	// serverVersion is the MCP server implementation version.
	serverVersion = "1.0.0"

	// toolCount is the expected number of registered tools.
	toolCount = 25
)

// ServerDeps holds injectable dependencies for the MCP server. Zero-value
// observability fields use production defaults (no-op); the engine fields
// are required.
type ServerDeps struct {
	// Logger is an optional structured logger. Nil uses slog default.
	Logger *slog.Logger

	// Metrics is an optional RED metrics recorder. Nil disables per-tool metrics.
	Metrics *observability.REDMetrics

	// Tracer is an optional OTel tracer for per-tool-call spans. Nil disables tracing.
	Tracer trace.Tracer

	// Engine applies bulk-edit operations (C5).
	Engine *bulkedit.Engine

	// Rollback restores, verifies, and manages edit rollback sessions (C4).
	Rollback *rollback.Store

	// Stream runs the chunked read-transform-write pipeline (C6).
	Stream *streamproc.Engine

	// Ops tracks the lifecycle of long-running stream/bulk operations (C7).
	Ops *streamops.Manager

	// Checkpoints persists and loads resumable operation state.
	Checkpoints *checkpoint.Manager

	// Progress reports live progress for in-flight operations.
	Progress *progress.Tracker

	// Patterns expands file/glob inputs into a resolved file set.
	Patterns *patternset.Resolver
}

// Server wraps the MCP SDK server with codesmith tool registrations.
type Server struct {
	inner   *mcpsdk.Server
	mu      sync.RWMutex
	tools   []string
	metrics *observability.REDMetrics
	tracer  trace.Tracer

	engine      *bulkedit.Engine
	rollback    *rollback.Store
	stream      *streamproc.Engine
	ops         *streamops.Manager
	checkpoints *checkpoint.Manager
	progress    *progress.Tracker
	patterns    *patternset.Resolver
}

// NewServer creates a new MCP server with all codesmith tools registered.
func NewServer(deps ServerDeps) *Server {
	opts := &mcpsdk.ServerOptions{}
	if deps.Logger != nil {
		opts.Logger = deps.Logger
	}

	inner := mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    serverName,
			Version: serverVersion,
		},
		opts,
	)

	srv := &Server{
		inner:       inner,
		tools:       make([]string, 0, toolCount),
		metrics:     deps.Metrics,
		tracer:      deps.Tracer,
		engine:      deps.Engine,
		rollback:    deps.Rollback,
		stream:      deps.Stream,
		ops:         deps.Ops,
		checkpoints: deps.Checkpoints,
		progress:    deps.Progress,
		patterns:    deps.Patterns,
	}

	srv.registerTools()

	return srv
}

// ListToolNames returns the sorted names of all registered tools.
func (s *Server) ListToolNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.tools))
	copy(names, s.tools)
	sort.Strings(names)

	return names
}

// Run starts the MCP server on stdio transport. It blocks until the context
// is canceled or the connection closes.
func (s *Server) Run(ctx context.Context) error {
	err := s.inner.Run(ctx, &mcpsdk.StdioTransport{})
	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

// RunWithTransport starts the MCP server on the given transport. It blocks
// until the context is canceled or the connection closes.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	err := s.inner.Run(ctx, transport)
	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

// registerTools adds all codesmith MCP tools to the server.
func (s *Server) registerTools() {
	s.registerBulkeditTools()
	s.registerRollbackTools()
	s.registerStreamTools()
	s.registerOpsTools()
}

func (s *Server) registerBulkeditTools() {
	addTool(s, ToolNameBulkReplace, bulkReplaceDescription, s.handleBulkReplace)
	addTool(s, ToolNameConditionalEdit, conditionalEditDescription, s.handleConditionalEdit)
	addTool(s, ToolNameBatchRefactor, batchRefactorDescription, s.handleBatchRefactor)
	addTool(s, ToolNameMultiFileEdit, multiFileEditDescription, s.handleMultiFileEdit)
	addTool(s, ToolNamePreview, previewDescription, s.handlePreview)
	addTool(s, ToolNameValidate, validateDescription, s.handleValidate)
	addTool(s, ToolNameEstimateImpact, estimateImpactDescription, s.handleEstimateImpact)
}

func (s *Server) registerRollbackTools() {
	addTool(s, ToolNameRollback, rollbackDescription, s.handleRollback)
	addTool(s, ToolNameListRollbacks, listRollbacksDescription, s.handleListRollbacks)
	addTool(s, ToolNameVerifyRollback, verifyRollbackDescription, s.handleVerifyRollback)
	addTool(s, ToolNameDeleteRollback, deleteRollbackDescription, s.handleDeleteRollback)
	addTool(s, ToolNameRollbackHistory, rollbackHistoryDescription, s.handleRollbackHistory)
	addTool(s, ToolNameExportRollback, exportRollbackDescription, s.handleExportRollback)
	addTool(s, ToolNameImportRollback, importRollbackDescription, s.handleImportRollback)
}

func (s *Server) registerStreamTools() {
	addTool(s, ToolNameProcessFile, processFileDescription, s.handleProcessFile)
	addTool(s, ToolNameBulkTransform, bulkTransformDescription, s.handleBulkTransform)
	addTool(s, ToolNameEstimateProcessing, estimateProcessingDescription, s.handleEstimateProcessing)
	addTool(s, ToolNameAvailableProcessors, availableProcessorsDescription, s.handleAvailableProcessors)
}

func (s *Server) registerOpsTools() {
	addTool(s, ToolNameOperationProgress, operationProgressDescription, s.handleOperationProgress)
	addTool(s, ToolNameListOperations, listOperationsDescription, s.handleListOperations)
	addTool(s, ToolNameCancelOperation, cancelOperationDescription, s.handleCancelOperation)
	addTool(s, ToolNamePauseOperation, pauseOperationDescription, s.handlePauseOperation)
	addTool(s, ToolNameResumeOperation, resumeOperationDescription, s.handleResumeOperation)
	addTool(s, ToolNameCheckpointOperation, checkpointOperationDescription, s.handleCheckpointOperation)
	addTool(s, ToolNameResumeFromCheckpoint, resumeFromCheckpointDescription, s.handleResumeFromCheckpoint)
}

// addTool registers a single tool handler, wrapping it with tracing and
// metrics middleware and recording its name for ListToolNames.
func addTool[Input any](
	s *Server,
	name, description string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) {
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        name,
		Description: description,
	}, withMetrics(s.metrics, name, withTracing(s.tracer, name, handler)))

	s.trackTool(name)
}

// mcpSpanPrefix is the prefix for MCP tool span names.
const mcpSpanPrefix = "codesmith.mcp."

// traceIDMetaKey is the metadata key for trace_id in MCP tool responses.
const traceIDMetaKey = "trace_id"

// withTracing wraps an MCP tool handler to create an OTel span per invocation
// and include trace_id in the response content when sampled.
func withTracing[Input any](
	tracer trace.Tracer,
	toolName string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if tracer == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		ctx, span := tracer.Start(ctx, mcpSpanPrefix+toolName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("mcp.tool", toolName)),
		)
		defer span.End()

		result, output, err := handler(ctx, req, input)

		sc := span.SpanContext()
		if sc.IsSampled() && result != nil {
			traceContent := &mcpsdk.TextContent{Text: fmt.Sprintf("%s=%s", traceIDMetaKey, sc.TraceID().String())}
			result.Content = append(result.Content, traceContent)
		}

		return result, output, err
	}
}

// withMetrics wraps an MCP tool handler to record RED metrics per invocation.
func withMetrics[Input any](
	metrics *observability.REDMetrics,
	toolName string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if metrics == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		start := time.Now()

		decInflight := metrics.TrackInflight(ctx, "mcp."+toolName)
		defer decInflight()

		result, output, err := handler(ctx, req, input)

		status := "ok"
		if err != nil || (result != nil && result.IsError) {
			status = "error"
		}

		metrics.RecordRequest(ctx, "mcp."+toolName, status, time.Since(start))

		return result, output, err
	}
}

func (s *Server) trackTool(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tools = append(s.tools, name)
}

// Tool description constants.
const (
	bulkReplaceDescription = "Replace every match of a literal or regex pattern across a resolved " +
		"set of files, with optional backup and dry-run."
	conditionalEditDescription = "Apply a list of line/column edits to files matching a condition " +
		"(content match, size range, modification time, extension, path substring)."
	batchRefactorDescription = "Apply a named refactor pattern (currently regex target/replacement) " +
		"across a resolved set of files."
	multiFileEditDescription = "Apply a priority-ordered batch of per-file edit operations; an " +
		"operation whose dependency failed is skipped, and earlier operations are not undone."
	previewDescription = "Dry-run a bulk_replace or conditional_edit operation and return the " +
		"changes it would make without writing anything."
	validateDescription = "Check a prospective bulk-edit operation for conflicts or issues before " +
		"applying it."
	estimateImpactDescription = "Estimate the file count and total size a bulk-edit operation would " +
		"touch, without reading file contents."

	rollbackDescription       = "Restore files to their pre-edit state from a recorded rollback session."
	listRollbacksDescription  = "List active (non-expired) rollback sessions."
	verifyRollbackDescription = "Verify that a rollback session's recorded backups are intact and restorable."
	deleteRollbackDescription = "Delete a rollback session and its recorded backups."
	rollbackHistoryDescription = "List all rollback sessions, including expired ones."
	exportRollbackDescription  = "Export a rollback session to a portable file for later import."
	importRollbackDescription  = "Import a previously exported rollback session."

	processFileDescription = "Run the chunked read-transform-write pipeline over a single file " +
		"with an optional resumable checkpoint."
	bulkTransformDescription = "Run the chunked transform pipeline over a resolved set of files " +
		"with bounded parallelism."
	estimateProcessingDescription = "Estimate the file count, total size, and expected duration a " +
		"process_file or bulk_transform run would take with a given processor kind."
	availableProcessorsDescription = "List the processor kinds registered with the streaming pipeline, " +
		"each with its declared throughput rate class and accepted option schema."

	operationProgressDescription = "Get the lifecycle state and live progress of a tracked operation."
	listOperationsDescription    = "List all tracked operations."
	cancelOperationDescription   = "Request cooperative cancellation of a running operation."
	pauseOperationDescription    = "Pause a running operation."
	resumeOperationDescription   = "Resume a paused operation."
	checkpointOperationDescription = "Record an out-of-band checkpoint for an operation."
	resumeFromCheckpointDescription = "Resume a process_file run from its latest or a specific checkpoint."
)
