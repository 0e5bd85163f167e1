// Package inference calls the external probabilistic inference service
// (an Ollama-compatible generate endpoint) with a structured prompt and a
// bounded timeout. Each Infer call is a single attempt; retry and backoff
// live in the interpret package.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mispesos/engine/internal/record"
)

// minResponseLen guards against truncated generations; anything shorter
// cannot hold a JSON object worth parsing.
const minResponseLen = 10

type generateRequest struct {
	Model     string          `json:"model"`
	Prompt    string          `json:"prompt"`
	Stream    bool            `json:"stream"`
	KeepAlive int             `json:"keep_alive"`
	Options   generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	NumPredict  int     `json:"num_predict"`
	NumCtx      int     `json:"num_ctx"`
	NumThread   int     `json:"num_thread"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Infer performs one inference attempt for the given message. Transport
// failures and timeouts surface as errors; a response with no parsable
// JSON surfaces as ErrMalformedOutput. Returned records are normalized
// and penalty-adjusted but not origin-tagged.
func (c *Client) Infer(ctx context.Context, message string) (record.Record, error) {
	start := time.Now()

	c.logger.Debug("inference.call.start",
		"model", c.cfg.Model,
		"message_len", len(message),
	)

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body := generateRequest{
		Model:     c.cfg.Model,
		Prompt:    buildPrompt(message),
		Stream:    false,
		KeepAlive: -1, // keep the model resident between calls
		Options: generateOptions{
			Temperature: c.cfg.Temperature,
			TopP:        0.9,
			NumPredict:  150,
			NumCtx:      1024,
			NumThread:   4,
		},
	}

	raw, err := c.post(ctx, strings.TrimRight(c.cfg.BaseURL, "/")+"/api/generate", body)
	if err != nil {
		c.logger.Error("inference.call.transport_error",
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return record.Record{}, err
	}

	var gr generateResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		c.logger.Error("inference.call.decode_error",
			"error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return record.Record{}, errors.Join(ErrMalformedOutput, err)
	}
	if len(strings.TrimSpace(gr.Response)) < minResponseLen {
		c.logger.Warn("inference.call.response_too_short",
			"response_len", len(gr.Response),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return record.Record{}, fmt.Errorf("%w: response too short", ErrMalformedOutput)
	}

	rec, err := c.parseResponse(gr.Response, message)
	if err != nil {
		c.logger.Warn("inference.call.malformed_output",
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return record.Record{}, err
	}

	c.logger.Info("inference.call.ok",
		"amount_present", rec.Amount != nil,
		"category", rec.Category,
		"confidence", rec.Confidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return rec, nil
}

// Ping probes the inference service; used at startup as a non-fatal check.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.cfg.BaseURL, "/")+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("inference ping: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("inference response body close error", "error", err)
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inference ping: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) post(ctx context.Context, url string, body any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference http error: %w", err)
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			c.logger.Warn("inference response body close error", "error", err)
		}
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		buf := new(bytes.Buffer)
		_, _ = buf.ReadFrom(resp.Body)
		return nil, fmt.Errorf("inference status %d: %s", resp.StatusCode, buf.String())
	}

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return buf.Bytes(), nil
}
