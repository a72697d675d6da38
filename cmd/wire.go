package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/abhisek/gradekit/internal/config"
	"github.com/abhisek/gradekit/internal/evaluate"
	"github.com/abhisek/gradekit/internal/ledger"
	"github.com/abhisek/gradekit/internal/llm"
	"github.com/abhisek/gradekit/internal/pipeline"
	"github.com/abhisek/gradekit/internal/recognition"
	"github.com/abhisek/gradekit/internal/store"
)

// buildPipeline wires the adapters from cfg. Without LLM credentials the
// vision recognizer, scorer and summarizer stay unset and report not
// configured, so grading falls back to local OCR and manual review.
func buildPipeline(ctx context.Context, cfg config.Config, st *store.Store) (*pipeline.Pipeline, error) {
	logger := slog.Default()

	var textProvider, visionProvider llm.Provider
	if cfg.LLMConfigured {
		var err error
		textProvider, err = llm.NewProvider(ctx, cfg.LLM, st.EventRepo())
		if err != nil {
			return nil, fmt.Errorf("create LLM provider: %w", err)
		}
		visionProvider, err = llm.NewVisionProvider(ctx, cfg.LLM, st.EventRepo())
		if err != nil {
			return nil, fmt.Errorf("create vision provider: %w", err)
		}
	} else {
		logger.Warn("no LLM provider configured; AI recognition and scoring are unavailable")
	}

	ocr := recognition.NewTesseractRecognizer()
	ocr.Binary = cfg.Tesseract.Binary
	ocr.Lang = cfg.Tesseract.Lang
	ocr.Timeout = cfg.Tesseract.Timeout

	var primary recognition.Recognizer
	if visionProvider != nil {
		primary = recognition.NewVisionRecognizer(visionProvider)
	}

	opts := []pipeline.Option{
		pipeline.WithRecognizer(recognition.NewOrchestrator(primary, ocr, logger)),
		pipeline.WithLowConfidence(cfg.LowConfidence),
		pipeline.WithLogger(logger),
	}
	if cfg.Summary {
		opts = append(opts, pipeline.WithSummarizer(pipeline.NewLLMSummarizer(textProvider)))
	}

	var scorer evaluate.Scorer
	if textProvider != nil {
		scorer = evaluate.NewLLMScorer(textProvider)
	}

	return pipeline.New(
		evaluate.New(scorer, logger),
		ledger.New(st.MistakeRepo(), ledger.WithLogger(logger)),
		opts...,
	), nil
}
