package recognition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/abhisek/gradekit/internal/model"
)

// Orchestrator runs the primary recognizer and falls back to the local one.
type Orchestrator struct {
	primary  Recognizer
	fallback Recognizer
	logger   *slog.Logger
}

// NewOrchestrator composes the two strategies. A nil primary behaves as
// an unconfigured one.
func NewOrchestrator(primary, fallback Recognizer, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{primary: primary, fallback: fallback, logger: logger}
}

// Recognize returns the rows for a scan plus one step per attempt. It fails
// with model.ErrRecognitionFailed when neither strategy yields a row; the
// steps gathered so far are still returned in that case.
func (o *Orchestrator) Recognize(ctx context.Context, scan Scan) ([]model.RecognizedRow, []model.PipelineStep, error) {
	var steps model.StepLog

	primaryName := "vision-recognition"
	var err error = model.ErrAdapterNotConfigured
	if o.primary != nil {
		primaryName = o.primary.Name()
		var rows []model.RecognizedRow
		rows, err = o.primary.Recognize(ctx, scan)
		if err == nil && len(rows) == 0 {
			err = &model.AdapterInvocationError{Adapter: primaryName, Err: errors.New("no question rows recognized")}
		}
		if err == nil {
			steps.Success(primaryName, "recognized %d rows", len(rows))
			o.logger.Debug("primary recognition succeeded", "recognizer", primaryName, "rows", len(rows))
			return rows, steps.Steps(), nil
		}
	}

	if cerr := ctx.Err(); cerr != nil {
		steps.Error(primaryName, "cancelled: %v", cerr)
		return nil, steps.Steps(), cerr
	}

	if errors.Is(err, model.ErrAdapterNotConfigured) {
		steps.Warning(primaryName, "not configured, using local OCR")
		o.logger.Info("vision recognizer not configured, falling back", "error", err)
	} else {
		steps.Error(primaryName, "%v", err)
		o.logger.Warn("vision recognition failed, falling back", "error", err)
	}

	if o.fallback == nil {
		return nil, steps.Steps(), fmt.Errorf("%w: no fallback recognizer", model.ErrRecognitionFailed)
	}

	rows, err := o.fallback.Recognize(ctx, scan)
	if err != nil {
		steps.Error(o.fallback.Name(), "%v", err)
		return nil, steps.Steps(), fmt.Errorf("%w: %v", model.ErrRecognitionFailed, err)
	}
	if len(rows) == 0 {
		steps.Error(o.fallback.Name(), "no question rows recognized")
		return nil, steps.Steps(), model.ErrRecognitionFailed
	}

	steps.Success(o.fallback.Name(), "recognized %d rows", len(rows))
	return rows, steps.Steps(), nil
}
