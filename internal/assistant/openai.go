package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/fodder-analyzer/internal/config"
)

// OpenAI streams answers from any OpenAI-compatible chat completion API
type OpenAI struct {
	apiKey      string
	model       string
	endpoint    string
	temperature float32
	client      *openai.Client
	limiter     *rate.Limiter
}

// NewOpenAI creates an OpenAI collaborator
func NewOpenAI(cfg config.OpenAIConfig, temperature float64, timeout time.Duration) *OpenAI {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://api.openai.com/v1"
	}

	cc := openai.DefaultConfig(cfg.APIKey)
	cc.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/")
	if timeout > 0 {
		cc.HTTPClient = &http.Client{Timeout: timeout}
	}

	return &OpenAI{
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		endpoint:    cc.BaseURL,
		temperature: float32(temperature),
		client:      openai.NewClientWithConfig(cc),
		// 3 requests per second, burst of 5
		limiter: rate.NewLimiter(rate.Limit(3), 5),
	}
}

func (o *OpenAI) Name() string {
	return fmt.Sprintf("openai/%s", o.model)
}

// IsAvailable reports whether an API key is configured and the endpoint
// answers a model listing before ctx expires
func (o *OpenAI) IsAvailable(ctx context.Context) bool {
	if o.apiKey == "" {
		return false
	}
	_, err := o.client.ListModels(ctx)
	return err == nil
}

func (o *OpenAI) Stream(ctx context.Context, r Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if err := o.limiter.Wait(ctx); err != nil {
			yield("", fmt.Errorf("openai rate limit: %w", err))
			return
		}

		stream, err := o.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
			Model: o.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemRole},
				{Role: openai.ChatMessageRoleUser, Content: r.Prompt},
			},
			Temperature: o.temperature,
			Stream:      true,
		})
		if err != nil {
			yield("", fmt.Errorf("openai request failed: %w", err))
			return
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", fmt.Errorf("openai stream: %w", err))
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			if text := strings.ReplaceAll(resp.Choices[0].Delta.Content, "#", ""); text != "" {
				if !yield(text, nil) {
					return
				}
			}
		}
	}
}
