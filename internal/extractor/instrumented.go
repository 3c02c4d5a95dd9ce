package extractor

import (
	"context"
	"errors"

	"github.com/italolelis/mp3grab/internal/telemetry"
)

// InstrumentedExtractor wraps an Extractor with telemetry.
type InstrumentedExtractor struct {
	extractor Extractor
	telemetry *telemetry.Telemetry
	tool      string
}

// NewInstrumentedExtractor creates a new instrumented extractor. tool names the
// underlying binary in spans.
func NewInstrumentedExtractor(e Extractor, tel *telemetry.Telemetry, tool string) *InstrumentedExtractor {
	return &InstrumentedExtractor{
		extractor: e,
		telemetry: tel,
		tool:      tool,
	}
}

// Extract runs the wrapped extractor inside an extraction span.
func (i *InstrumentedExtractor) Extract(ctx context.Context, req Request) (*Output, error) {
	var out *Output

	err := i.telemetry.InstrumentExtraction(ctx, i.tool, Classify, func(ctx context.Context) error {
		var err error
		out, err = i.extractor.Extract(ctx, req)

		return err
	})

	return out, err
}

// Classify maps an extraction error to a telemetry status value.
func Classify(err error) string {
	if err == nil {
		return telemetry.StatusSuccess
	}

	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return telemetry.StatusToolError
	}

	return telemetry.StatusError
}
