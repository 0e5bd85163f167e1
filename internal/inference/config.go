package inference

import (
	"log/slog"
	"net/http"
	"os"
	"time"
)

// Config for the inference client. Penalty constants are empirically
// chosen; they are configuration, not invariants.
type Config struct {
	BaseURL     string        // if empty, falls back to env OLLAMA_URL
	Model       string        // e.g., "llama3.2"
	Temperature float64       // 0..2
	Timeout     time.Duration // per-attempt bound

	// Confidence penalties applied during normalization.
	AmountPenalty   float64 // invalid amount (default 0.3)
	CategoryPenalty float64 // unknown category (default 0.2)
	PaymentPenalty  float64 // unknown payment method (default 0.1)
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("OLLAMA_URL")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "llama3.2"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	if cfg.AmountPenalty == 0 {
		cfg.AmountPenalty = 0.3
	}
	if cfg.CategoryPenalty == 0 {
		cfg.CategoryPenalty = 0.2
	}
	if cfg.PaymentPenalty == 0 {
		cfg.PaymentPenalty = 0.1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{},
		logger: logger,
	}
}
