package bulkedit

import (
	"fmt"
	"regexp"

	"github.com/codesmith-dev/codesmith/pkg/patternset"
)

// Issue is a single static-validation finding.
type Issue struct {
	Severity string
	Message  string
}

func errorIssue(format string, args ...any) Issue {
	return Issue{Severity: "error", Message: fmt.Sprintf(format, args...)}
}

var supportedOperationKinds = map[string]bool{
	"bulk_replace":     true,
	"conditional_edit": true,
	"batch_refactor":   true,
	"multi_file_edit":  true,
}

// ValidateRequest describes the static surface of a bulk-edit request,
// spanning every operation kind so Validate can be called uniformly.
type ValidateRequest struct {
	OperationKind string
	FilePatterns  []string
	ResolveOpts   patternset.Options
	Pattern       string
	Edits         []Edit
}

// Validate inspects a request without resolving files beyond existence
// checks or touching file contents: regex compiles, the pattern resolves
// to at least one file, edit ranges are well-formed and non-overlapping,
// and the operation kind is one this engine supports.
func (e *Engine) Validate(req ValidateRequest) []Issue {
	var issues []Issue

	if !supportedOperationKinds[req.OperationKind] {
		issues = append(issues, errorIssue("unsupported operation kind %q", req.OperationKind))
	}

	if req.Pattern != "" {
		if _, err := regexp.Compile(req.Pattern); err != nil {
			issues = append(issues, errorIssue("invalid regex: %v", err))
		}
	}

	resolved := e.patterns.Resolve(req.FilePatterns, req.ResolveOpts)
	if len(resolved.Files) == 0 {
		issues = append(issues, errorIssue("file pattern resolved to zero files"))
	}

	if len(req.Edits) > 0 {
		if err := validateEdits(req.Edits); err != nil {
			issues = append(issues, errorIssue("%v", err))
		}
	}

	return issues
}
