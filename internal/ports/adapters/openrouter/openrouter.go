package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/forPelevin/reelcut/internal/ports"
	"github.com/forPelevin/reelcut/internal/types"
)

const (
	defaultModel   = "anthropic/claude-3.5-sonnet"
	requestTimeout = 90 * time.Second
)

// Adapter asks an OpenRouter chat model to pick the highlight segment from a
// subtitle transcript and returns the model's raw answer.
type Adapter struct {
	key     string
	model   string
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

var _ ports.Selector = (*Adapter)(nil)

func New(logger zerolog.Logger, apiKey, model, baseURL string) *Adapter {
	if model == "" {
		model = defaultModel
	}
	return &Adapter{
		key:     apiKey,
		model:   model,
		baseURL: normalizeBaseURL(baseURL),
		client:  &http.Client{Timeout: 5 * time.Minute},
		logger:  logger.With().Str("component", "openrouter").Logger(),
	}
}

// Select returns the message content unparsed; selection.Parse owns cleanup.
func (a *Adapter) Select(ctx context.Context, transcript string) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return "", fmt.Errorf("%w: empty transcript", types.ErrInputValidation)
	}

	payload := map[string]any{
		"model":  a.model,
		"stream": false,
		"messages": []map[string]any{
			{"role": "user", "content": buildPrompt(transcript)},
		},
		"response_format": map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "reelcut_select",
				"schema": selectionSchema(),
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, a.baseURL+"/api/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+a.key)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("openrouter timeout after %s (model=%s)", requestTimeout, a.model)
		}
		return "", err
	}
	defer resp.Body.Close()
	a.logger.Debug().Int("status", resp.StatusCode).Dur("elapsed", time.Since(start)).Str("model", a.model).Msg("completion")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rb, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return "", fmt.Errorf("openrouter status %d and read body failed: %v", resp.StatusCode, readErr)
		}
		return "", fmt.Errorf("openrouter status %d: %s", resp.StatusCode, truncate(redactSecrets(string(rb), a.key), 400))
	}

	var raw struct {
		Choices []struct {
			Message struct {
				Content any `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", fmt.Errorf("%w: decode completion: %v", types.ErrSelectorOutput, err)
	}
	if len(raw.Choices) == 0 {
		return "", fmt.Errorf("%w: completion has no choices", types.ErrSelectorOutput)
	}
	content, err := messageContentToString(raw.Choices[0].Message.Content)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrSelectorOutput, err)
	}
	return content, nil
}

func selectionSchema() map[string]any {
	word := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"word":  map[string]any{"type": "string"},
			"start": map[string]any{"type": "number"},
			"end":   map[string]any{"type": "number"},
		},
		"required": []string{"word", "start", "end"},
	}
	segment := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"start_sec": map[string]any{"type": "number"},
			"end_sec":   map[string]any{"type": "number"},
			"text":      map[string]any{"type": "string"},
			"words":     map[string]any{"type": "array", "items": word},
		},
		"required": []string{"start_sec", "end_sec", "text", "words"},
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"timestamps": map[string]any{"type": "array", "items": segment},
		},
		"required": []string{"timestamps"},
	}
}

func buildPrompt(transcript string) string {
	return "Pick one continuous 30-60 second passage from these subtitles that works as a standalone short: " +
		"it must open on a clear hook, never mid-sentence or on a conjunction, and end on a finished thought. " +
		"Copy start_sec and end_sec exactly from the subtitle timings, converted to seconds. " +
		"Split the passage text into words and spread each line's time across its words. " +
		"Return strictly valid JSON (no markdown, no code fences) matching the provided schema." +
		"\n\nSubtitles:\n" + transcript
}

func messageContentToString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		if strings.TrimSpace(x) == "" {
			return "", errors.New("openrouter: empty content")
		}
		return x, nil
	case []any:
		// Some providers return an array of {type,text} parts.
		var b strings.Builder
		for _, it := range x {
			m, ok := it.(map[string]any)
			if !ok {
				continue
			}
			if t, ok := m["text"].(string); ok {
				b.WriteString(t)
			}
		}
		s := b.String()
		if strings.TrimSpace(s) == "" {
			return "", errors.New("openrouter: empty content")
		}
		return s, nil
	default:
		return "", fmt.Errorf("openrouter: unexpected content type %T", v)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var (
	bearerTokenRE = regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9._-]+\b`)
	authHeaderRE  = regexp.MustCompile(`(?i)(authorization\s*[:=]\s*)([^\n\r,;]+)`)
	apiKeyFieldRE = regexp.MustCompile(`(?i)(api[_-]?key\s*[:=]\s*)([^\n\r,;]+)`)
)

func redactSecrets(s, apiKey string) string {
	if s == "" {
		return s
	}
	out := s
	if apiKey != "" {
		out = strings.ReplaceAll(out, apiKey, "[REDACTED]")
	}
	out = bearerTokenRE.ReplaceAllString(out, "Bearer [REDACTED]")
	out = authHeaderRE.ReplaceAllString(out, "${1}[REDACTED]")
	out = apiKeyFieldRE.ReplaceAllString(out, "${1}[REDACTED]")
	return out
}
