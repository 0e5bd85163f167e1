// Package recognize wraps the text-recognition engine as a black box:
// image path in, raw text plus a text-extraction confidence out.
package recognize

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Result carries recognized text and a heuristic extraction confidence.
type Result struct {
	Text       string
	Confidence float64
	Method     string
}

// TextRecognizer is the collaborator interface the task queue depends on.
type TextRecognizer interface {
	Recognize(ctx context.Context, path string) (Result, error)
}

// Config for the tesseract-backed recognizer.
type Config struct {
	Bin       string // default "tesseract"
	Languages string // default "spa+eng"
	PSM       string // page segmentation mode, default "6"
}

// Tesseract shells out to the tesseract binary via an injectable Runner.
type Tesseract struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewTesseract(cfg Config, runner Runner, logger *slog.Logger) *Tesseract {
	if cfg.Bin == "" {
		cfg.Bin = "tesseract"
	}
	if cfg.Languages == "" {
		cfg.Languages = "spa+eng"
	}
	if cfg.PSM == "" {
		cfg.PSM = "6"
	}
	if runner == nil {
		runner = NewExecRunner()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tesseract{cfg: cfg, runner: runner, logger: logger}
}

// Recognize extracts text from an image file.
func (t *Tesseract) Recognize(ctx context.Context, path string) (Result, error) {
	stdout, stderr, err := t.runner.Run(ctx, t.cfg.Bin,
		path, "stdout",
		"-l", t.cfg.Languages,
		"--oem", "3",
		"--psm", t.cfg.PSM,
	)
	if err != nil {
		return Result{}, fmt.Errorf("tesseract: %w (stderr: %s)", err, truncate(string(stderr), 512))
	}

	text := cleanText(string(stdout))
	res := Result{
		Text:       text,
		Confidence: heuristicConfidence(text),
		Method:     "image-ocr",
	}
	t.logger.Info("recognize.ok",
		"path", path,
		"text_bytes", len(text),
		"confidence", res.Confidence,
	)
	return res, nil
}

var reWhitespace = regexp.MustCompile(`\s+`)

// cleanText collapses whitespace runs; recognized receipt text is noisy.
func cleanText(s string) string {
	return strings.TrimSpace(reWhitespace.ReplaceAllString(s, " "))
}
