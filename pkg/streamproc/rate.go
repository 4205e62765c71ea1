package streamproc

import (
	"fmt"
	"time"
)

// Per-processor-kind throughput heuristics, design-level constants in the
// same spirit as pkg/checkpoint's retention defaults: coarse enough to
// drive an estimate, not a measured benchmark.
const (
	rateLineProcessor  = 50 * 1024 * 1024 // bytes/sec
	rateRegexProcessor = 20 * 1024 * 1024
	rateCsvProcessor   = 30 * 1024 * 1024
	rateBinaryProcessor = 80 * 1024 * 1024
)

func rateFor(kind string) (int64, error) {
	switch kind {
	case "LineProcessor":
		return rateLineProcessor, nil
	case "RegexProcessor":
		return rateRegexProcessor, nil
	case "CsvProcessor":
		return rateCsvProcessor, nil
	case "BinaryProcessor":
		return rateBinaryProcessor, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownProcessor, kind)
	}
}

// OptionSpec documents one option a processor accepts.
type OptionSpec struct {
	Name        string
	Type        string
	Required    bool
	Description string
}

// ProcessorInfo describes one registered processor: its declared
// throughput rate class and the options it accepts, so a caller can
// build a processor picker without a side channel.
type ProcessorInfo struct {
	Kind            string
	RateBytesPerSec int64
	Options         []OptionSpec
}

var optionSchemas = map[string][]OptionSpec{
	"LineProcessor": {
		{Name: "transform", Type: "string", Required: false, Description: "one of upper|lower|none"},
	},
	"RegexProcessor": {
		{Name: "pattern", Type: "string", Required: true, Description: "regular expression to match"},
		{Name: "replacement", Type: "string", Required: true, Description: "replacement text"},
	},
	"CsvProcessor": {
		{Name: "delimiter", Type: "string", Required: false, Description: "single-character field delimiter, default ,"},
	},
	"BinaryProcessor": {
		{Name: "compress", Type: "bool", Required: false, Description: "LZ4-compress each chunk's output"},
	},
}

// AvailableProcessors returns every registered processor's kind, rate
// class, and option schema.
func (r *Registry) AvailableProcessors() []ProcessorInfo {
	infos := make([]ProcessorInfo, 0, len(r.processors))

	for _, p := range r.All() {
		rate, _ := rateFor(p.Kind())
		infos = append(infos, ProcessorInfo{
			Kind:            p.Kind(),
			RateBytesPerSec: rate,
			Options:         optionSchemas[p.Kind()],
		})
	}

	return infos
}

// EstimateDuration returns a coarse estimate of how long processing
// sizeBytes with the given processor kind will take.
func EstimateDuration(sizeBytes int64, processorKind string) (time.Duration, error) {
	rate, err := rateFor(processorKind)
	if err != nil {
		return 0, err
	}

	if sizeBytes <= 0 {
		return 0, nil
	}

	seconds := float64(sizeBytes) / float64(rate)

	return time.Duration(seconds * float64(time.Second)), nil
}
