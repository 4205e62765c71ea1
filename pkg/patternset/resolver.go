// Package patternset expands a list of path/glob inputs into a
// de-duplicated, filtered set of absolute file paths. A single bad entry
// is logged and skipped; the resolver never fails the whole expansion.
package patternset

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Options controls filtering applied after expansion.
type Options struct {
	// ExcludeHidden skips files whose base name starts with "."; a
	// platform-native hidden attribute is not checked.
	ExcludeHidden bool

	// ExcludePatterns are glob patterns matched against the base name;
	// any match excludes the file.
	ExcludePatterns []string

	// MaxFileSize, if positive, excludes files larger than this many bytes.
	MaxFileSize int64
}

// Skip describes a file excluded by a filter, for callers that want to
// report why a path did not make it into the resolved set.
type Skip struct {
	Path   string
	Reason string
}

// Resolver expands path/glob inputs into an absolute, de-duplicated file set.
type Resolver struct {
	logger *slog.Logger
}

// New creates a Resolver. A nil logger uses slog's default.
func New(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}

	return &Resolver{logger: logger}
}

// Result is the output of Resolve: the matched files plus whatever was
// filtered out, with reasons, for callers that report skip details.
type Result struct {
	Files   []string
	Skipped []Skip
}

// Resolve expands inputs in order, interpreting each entry as an existing
// file, an existing directory (expanded recursively), or a glob pattern.
// The returned file list is de-duplicated by absolute path and filtered
// per opts.
func (r *Resolver) Resolve(inputs []string, opts Options) Result {
	seen := make(map[string]struct{})

	var result Result

	for _, in := range inputs {
		paths := r.expandOne(in)

		for _, p := range paths {
			abs, err := filepath.Abs(p)
			if err != nil {
				r.logger.Warn("patternset: resolve abs path failed", "path", p, "error", err)

				continue
			}

			if _, dup := seen[abs]; dup {
				continue
			}

			reason, skip := r.shouldSkip(abs, opts)
			if skip {
				result.Skipped = append(result.Skipped, Skip{Path: abs, Reason: reason})

				continue
			}

			seen[abs] = struct{}{}
			result.Files = append(result.Files, abs)
		}
	}

	return result
}

// expandOne interprets a single input as a file, directory, or glob.
// Errors resolving it are logged and it contributes no paths.
func (r *Resolver) expandOne(in string) []string {
	info, err := os.Stat(in)
	if err == nil {
		if info.IsDir() {
			return r.expandDir(in)
		}

		return []string{in}
	}

	matches, globErr := r.expandGlob(in)
	if globErr != nil {
		r.logger.Warn("patternset: could not resolve entry", "entry", in, "error", globErr)

		return nil
	}

	return matches
}

// expandDir walks a directory recursively, returning every regular file.
func (r *Resolver) expandDir(dir string) []string {
	var out []string

	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			r.logger.Warn("patternset: walk error", "path", path, "error", walkErr)

			return nil
		}

		if entry.IsDir() {
			return nil
		}

		if entry.Type().IsRegular() {
			out = append(out, path)
		}

		return nil
	})
	if err != nil {
		r.logger.Warn("patternset: walk failed", "dir", dir, "error", err)
	}

	return out
}

// expandGlob matches a glob pattern. filepath.Glob already resolves a
// relative pattern against the current working directory and an absolute
// one against its deepest existing ancestor, walking down from there.
func (r *Resolver) expandGlob(pattern string) ([]string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}

	var files []string

	for _, m := range matches {
		info, statErr := os.Stat(m)
		if statErr != nil {
			continue
		}

		if info.IsDir() {
			files = append(files, r.expandDir(m)...)

			continue
		}

		files = append(files, m)
	}

	return files, nil
}

// shouldSkip applies the exclude-hidden, exclude-pattern, and max-size
// filters. Returns a reason and true when the path should be excluded.
func (r *Resolver) shouldSkip(path string, opts Options) (string, bool) {
	base := filepath.Base(path)

	if opts.ExcludeHidden && isHidden(base) {
		return "hidden", true
	}

	for _, pattern := range opts.ExcludePatterns {
		matched, err := filepath.Match(pattern, base)
		if err == nil && matched {
			return "excluded by pattern: " + pattern, true
		}
	}

	if opts.MaxFileSize > 0 {
		info, err := os.Stat(path)
		if err != nil {
			return "stat failed: " + err.Error(), true
		}

		if info.Size() > opts.MaxFileSize {
			return "exceeds max file size", true
		}
	}

	return "", false
}

// isHidden reports whether base name looks hidden by POSIX convention.
func isHidden(base string) bool {
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}
