package streamproc

import (
	"fmt"
	"regexp"
	"time"
)

// regexCompileGuard bounds pathological regex compile time, mirroring the
// same 1-second ReDoS guard applied to search patterns in pkg/bulkedit.
const regexCompileGuard = time.Second

func compileGuarded(pattern string) (*regexp.Regexp, error) {
	type result struct {
		re  *regexp.Regexp
		err error
	}

	ch := make(chan result, 1)

	go func() {
		re, err := regexp.Compile(pattern)
		ch <- result{re, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("streamproc: compile pattern: %w", r.err)
		}

		return r.re, nil
	case <-time.After(regexCompileGuard):
		return nil, fmt.Errorf("streamproc: pattern compile exceeded %s guard", regexCompileGuard)
	}
}

// regexProcessor rewrites each chunk with regexp.ReplaceAll, counting the
// newlines in the original chunk.
type regexProcessor struct{}

func (p *regexProcessor) Kind() string { return "RegexProcessor" }

func (p *regexProcessor) ValidateOptions(options map[string]any) error {
	pattern, ok := options["pattern"].(string)
	if !ok || pattern == "" {
		return fmt.Errorf("streamproc: RegexProcessor requires a non-empty string pattern option")
	}

	if _, ok := options["replacement"].(string); !ok {
		return fmt.Errorf("streamproc: RegexProcessor requires a string replacement option")
	}

	_, err := compileGuarded(pattern)

	return err
}

func (p *regexProcessor) Process(chunk Chunk, options map[string]any) (ProcessedChunk, error) {
	pattern, _ := options["pattern"].(string)
	replacement, _ := options["replacement"].(string)

	re, err := compileGuarded(pattern)
	if err != nil {
		return ProcessedChunk{}, err
	}

	out := re.ReplaceAll(chunk.Data, []byte(replacement))

	return ProcessedChunk{Data: out, Lines: countLines(chunk.Data)}, nil
}
