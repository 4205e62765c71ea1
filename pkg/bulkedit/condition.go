package bulkedit

import (
	"bytes"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// ConditionKind tags a Condition's variant.
type ConditionKind string

const (
	Contains      ConditionKind = "contains"
	Matches       ConditionKind = "matches"
	SizeRange     ConditionKind = "size_range"
	ModifiedAfter ConditionKind = "modified_after"
	Extension     ConditionKind = "extension"
	PathContains  ConditionKind = "path_contains"
)

// Condition is a predicate over (content, path, file_metadata), evaluated
// once per candidate file before its edits are applied. Exactly the fields
// relevant to Kind are meaningful.
type Condition struct {
	Kind    ConditionKind
	Text    string
	Pattern string
	MinSize int64
	MaxSize int64
	After   time.Time
	Negate  bool
}

// Evaluate reports whether the condition holds for a file's content, path,
// and metadata, honoring Negate.
func (c Condition) Evaluate(content []byte, path string, info fs.FileInfo) (bool, error) {
	result, err := c.evaluateRaw(content, path, info)
	if err != nil {
		return false, err
	}

	if c.Negate {
		result = !result
	}

	return result, nil
}

func (c Condition) evaluateRaw(content []byte, path string, info fs.FileInfo) (bool, error) {
	switch c.Kind {
	case Contains:
		return bytes.Contains(content, []byte(c.Text)), nil
	case Matches:
		re, err := regexp.Compile(c.Pattern)
		if err != nil {
			return false, fmt.Errorf("bulkedit: condition regex: %w", err)
		}

		return re.Match(content), nil
	case SizeRange:
		size := info.Size()
		if size < c.MinSize {
			return false, nil
		}

		if c.MaxSize > 0 && size > c.MaxSize {
			return false, nil
		}

		return true, nil
	case ModifiedAfter:
		return info.ModTime().After(c.After), nil
	case Extension:
		return strings.EqualFold(filepath.Ext(path), c.Text), nil
	case PathContains:
		return strings.Contains(path, c.Text), nil
	default:
		return false, fmt.Errorf("bulkedit: unknown condition kind %q", c.Kind)
	}
}
