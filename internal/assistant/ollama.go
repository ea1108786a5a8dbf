package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/fodder-analyzer/internal/config"
)

// Ollama streams answers from a local Ollama server
type Ollama struct {
	endpoint    string
	model       string
	temperature float64
	httpClient  *http.Client
}

// NewOllama creates an Ollama collaborator. timeout bounds a whole answer.
func NewOllama(cfg config.OllamaConfig, timeout time.Duration) *Ollama {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "gemma3:1b"
	}
	if timeout == 0 {
		timeout = 60 * time.Second // LLMs can be slow
	}
	return &Ollama{
		endpoint:    strings.TrimSuffix(cfg.Endpoint, "/"),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

func (o *Ollama) Name() string {
	return fmt.Sprintf("ollama/%s", o.model)
}

// IsAvailable checks that Ollama answers and has the model pulled. The
// caller's context deadline bounds the probe.
func (o *Ollama) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.endpoint+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		// Not running, which is expected when Ollama is not installed
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return false
	}
	for _, m := range tags.Models {
		// Names can be "gemma3:1b" or "gemma3:1b-instruct"
		if strings.HasPrefix(m.Name, o.model) {
			return true
		}
	}
	return false
}

// GetInstallInstructions returns platform-specific install instructions
func (o *Ollama) GetInstallInstructions() string {
	return fmt.Sprintf(`Ollama not detected. To enable generated answers:

  Windows:   winget install Ollama.Ollama
  macOS:     brew install ollama
  Linux:     curl -fsSL https://ollama.com/install.sh | sh

Then pull a model:
  ollama pull %s

Without Ollama the rule engine answers every question.`, o.model)
}

type generateChunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

// Stream posts the prompt to /api/generate and yields the NDJSON response
// fragments with markdown heading characters removed
func (o *Ollama) Stream(ctx context.Context, r Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		body, err := json.Marshal(map[string]interface{}{
			"model":  o.model,
			"prompt": r.Prompt,
			"stream": true,
			"options": map[string]interface{}{
				"temperature": o.temperature,
			},
		})
		if err != nil {
			yield("", fmt.Errorf("failed to marshal request: %w", err))
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint+"/api/generate", bytes.NewReader(body))
		if err != nil {
			yield("", fmt.Errorf("failed to create request: %w", err))
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := o.httpClient.Do(req)
		if err != nil {
			yield("", fmt.Errorf("ollama request failed: %w", err))
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			yield("", fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(msg))))
			return
		}

		dec := json.NewDecoder(resp.Body)
		for {
			var chunk generateChunk
			if err := dec.Decode(&chunk); err != nil {
				if err == io.EOF {
					return
				}
				yield("", fmt.Errorf("failed to decode ollama stream: %w", err))
				return
			}
			if chunk.Error != "" {
				yield("", fmt.Errorf("ollama: %s", chunk.Error))
				return
			}
			if text := strings.ReplaceAll(chunk.Response, "#", ""); text != "" {
				if !yield(text, nil) {
					return
				}
			}
			if chunk.Done {
				return
			}
		}
	}
}
