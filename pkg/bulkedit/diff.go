package bulkedit

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

const maxDiffHunks = 10

// buildDiff renders a unified-diff-like preview of the change to a file's
// content, line-granular, capped at maxDiffHunks hunks with a trailing
// summary line for anything beyond the cap.
func buildDiff(path string, before, after []byte) string {
	dmp := diffmatchpatch.New()

	a, b, lines := dmp.DiffLinesToChars(string(before), string(after))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)
	diffs = dmp.DiffCleanupSemantic(diffs)

	hunks := buildHunks(diffs)
	if len(hunks) == 0 {
		return ""
	}

	if len(hunks) > maxDiffHunks {
		omitted := len(hunks) - maxDiffHunks
		hunks = append(hunks[:maxDiffHunks], fmt.Sprintf("... %d more hunk(s) omitted", omitted))
	}

	return fmt.Sprintf("--- %s\n+++ %s\n%s", path, path, strings.Join(hunks, "\n"))
}

func buildHunks(diffs []diffmatchpatch.Diff) []string {
	var hunks []string

	oldLine, newLine := 1, 1

	for _, d := range diffs {
		count := strings.Count(d.Text, "\n")

		switch d.Type {
		case diffmatchpatch.DiffEqual:
			oldLine += count
			newLine += count
		case diffmatchpatch.DiffDelete:
			hunks = append(hunks, fmt.Sprintf("@@ -%d,%d +%d,0 @@\n%s", oldLine, count, newLine, prefixLines(d.Text, "-")))
			oldLine += count
		case diffmatchpatch.DiffInsert:
			hunks = append(hunks, fmt.Sprintf("@@ -%d,0 +%d,%d @@\n%s", oldLine, newLine, count, prefixLines(d.Text, "+")))
			newLine += count
		}
	}

	return hunks
}

func prefixLines(text, prefix string) string {
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}

	return strings.Join(lines, "\n")
}
