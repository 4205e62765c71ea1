// Package bulkedit orchestrates parallel per-file edit passes (replace,
// conditional, refactor, multi-op) over a resolved file set, optionally
// backed by a rollback snapshot, producing a structured summary.
package bulkedit

import (
	"fmt"
)

// Kind tags an Edit's variant. Edit is a sum type: exactly the fields
// relevant to Kind are meaningful.
type Kind int

const (
	Insert Kind = iota
	Delete
	Replace
)

func (k Kind) String() string {
	switch k {
	case Insert:
		return "insert"
	case Delete:
		return "delete"
	case Replace:
		return "replace"
	default:
		return "unknown"
	}
}

// Edit describes one text-level mutation within a file. Lines are 1-based,
// columns are 0-based byte offsets within their line. For Insert, only
// StartLine/StartCol and NewText are meaningful; End* is ignored.
type Edit struct {
	Kind      Kind
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
	NewText   string
}

// pos is a 1-based line / 0-based column position, comparable without
// reference to any particular file's content.
type pos struct {
	line, col int
}

func (p pos) less(o pos) bool {
	if p.line != o.line {
		return p.line < o.line
	}

	return p.col < o.col
}

func (e Edit) startPos() pos {
	return pos{e.StartLine, e.StartCol}
}

func (e Edit) endPos() pos {
	if e.Kind == Insert {
		return e.startPos()
	}

	return pos{e.EndLine, e.EndCol}
}

// wellFormed reports whether an edit's range is internally consistent:
// 1-based lines, 0-based columns, end not before start.
func wellFormed(e Edit) bool {
	if e.StartLine < 1 || e.StartCol < 0 {
		return false
	}

	if e.Kind == Insert {
		return true
	}

	if e.EndLine < 1 || e.EndCol < 0 {
		return false
	}

	return !e.endPos().less(e.startPos())
}

// editsOverlap reports whether two edits' ranges share any position. Two
// zero-width inserts at the same position do not overlap.
func editsOverlap(a, b Edit) bool {
	as, ae := a.startPos(), a.endPos()
	bs, be := b.startPos(), b.endPos()

	if as == ae && bs == be {
		return false
	}

	return as.less(be) && bs.less(ae)
}

// validateEdits checks well-formedness and pairwise non-overlap without
// touching any file content.
func validateEdits(edits []Edit) error {
	for _, e := range edits {
		if !wellFormed(e) {
			return fmt.Errorf("bulkedit: malformed edit range (kind=%s start=%d:%d end=%d:%d)",
				e.Kind, e.StartLine, e.StartCol, e.EndLine, e.EndCol)
		}
	}

	for i := range edits {
		for j := i + 1; j < len(edits); j++ {
			if editsOverlap(edits[i], edits[j]) {
				return fmt.Errorf("bulkedit: overlapping edit ranges")
			}
		}
	}

	return nil
}

// span is an Edit resolved to absolute byte offsets within a file's content.
type span struct {
	start, end int
	edit       Edit
}

// lineOffsets returns the byte offset of the start of each 1-based line.
func lineOffsets(content []byte) []int {
	offsets := []int{0}

	for i, b := range content {
		if b == '\n' {
			offsets = append(offsets, i+1)
		}
	}

	return offsets
}

func posToOffset(content []byte, offsets []int, line, col int) int {
	if line < 1 {
		line = 1
	}

	idx := line - 1
	if idx >= len(offsets) {
		return len(content)
	}

	off := offsets[idx] + col
	if off > len(content) {
		off = len(content)
	}

	if off < 0 {
		off = 0
	}

	return off
}

// resolveSpans converts edits to absolute byte spans within content.
func resolveSpans(content []byte, edits []Edit) []span {
	offsets := lineOffsets(content)

	spans := make([]span, 0, len(edits))

	for _, e := range edits {
		start := posToOffset(content, offsets, e.StartLine, e.StartCol)

		end := start
		if e.Kind != Insert {
			end = posToOffset(content, offsets, e.EndLine, e.EndCol)
		}

		spans = append(spans, span{start: start, end: end, edit: e})
	}

	return spans
}

// applyEdits applies edits to content bottom-up by start offset, so that
// earlier edits' offsets are never invalidated by later ones. Malformed or
// overlapping ranges are rejected rather than silently clamped.
func applyEdits(content []byte, edits []Edit) ([]byte, int, error) {
	if len(edits) == 0 {
		return content, 0, nil
	}

	if err := validateEdits(edits); err != nil {
		return nil, 0, err
	}

	spans := resolveSpans(content, edits)

	sortSpansDescending(spans)

	out := content

	for _, s := range spans {
		out = splice(out, s.start, s.end, []byte(s.edit.NewText))
	}

	return out, len(spans), nil
}

func sortSpansDescending(spans []span) {
	for i := 1; i < len(spans); i++ {
		for j := i; j > 0 && spans[j-1].start < spans[j].start; j-- {
			spans[j-1], spans[j] = spans[j], spans[j-1]
		}
	}
}

func splice(content []byte, start, end int, insert []byte) []byte {
	out := make([]byte, 0, len(content)-(end-start)+len(insert))
	out = append(out, content[:start]...)
	out = append(out, insert...)
	out = append(out, content[end:]...)

	return out
}
