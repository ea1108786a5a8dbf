// Package assistant answers chat questions through an optional generative
// collaborator (a local Ollama server or an OpenAI-compatible API) and
// falls back to the rule engine whenever no collaborator can answer.
package assistant

import (
	"context"
	"iter"
	"strings"

	"github.com/fodder-analyzer/internal/dataset"
)

// Request is one chat turn. Prompt is the fully rendered instruction for
// generative collaborators; the local collaborator answers from Question,
// Context and Snapshot instead.
type Request struct {
	Question string
	Context  string
	Prompt   string
	Snapshot *dataset.Snapshot
}

// Collaborator produces an answer as an ordered stream of text chunks
type Collaborator interface {
	// Name returns the collaborator name
	Name() string

	// IsAvailable reports whether the collaborator can answer now. It must
	// honour the context deadline.
	IsAvailable(ctx context.Context) bool

	// Stream yields answer chunks in order. A non-nil error ends the stream.
	Stream(ctx context.Context, req Request) iter.Seq2[string, error]
}

// ProviderType selects which collaborators the Manager consults
type ProviderType string

const (
	ProviderAuto   ProviderType = "auto"
	ProviderOllama ProviderType = "ollama"
	ProviderOpenAI ProviderType = "openai"
	ProviderLocal  ProviderType = "local"
)

// ParseProviderType parses a string into a ProviderType
func ParseProviderType(s string) ProviderType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ollama":
		return ProviderOllama
	case "openai", "gpt":
		return ProviderOpenAI
	case "local", "rules", "fallback":
		return ProviderLocal
	default:
		return ProviderAuto
	}
}

func (p ProviderType) String() string {
	return string(p)
}

// single yields one chunk
func single(text string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		yield(text, nil)
	}
}
