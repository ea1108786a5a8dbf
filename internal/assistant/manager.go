package assistant

import (
	"context"
	"iter"
	"strings"
	"time"

	"github.com/fodder-analyzer/internal/config"
	"github.com/fodder-analyzer/internal/engine"
	"github.com/fodder-analyzer/internal/logging"
)

// Separator precedes the local answer when a collaborator fails after it
// already emitted text
const Separator = "\n\n---\n"

// Manager routes chat questions through the configured collaborators and
// falls back to the rule engine
type Manager struct {
	config        config.AssistantConfig
	source        engine.Source
	local         *Local
	collaborators []Collaborator
	log           *logging.Logger
}

// NewManager creates a manager. source supplies the snapshot each question
// is answered from. When collaborators are given they replace the chain
// built from cfg.Provider.
func NewManager(cfg config.AssistantConfig, source engine.Source, eng *engine.Engine, log *logging.Logger, collaborators ...Collaborator) *Manager {
	if log == nil {
		log = logging.GetDefault()
	}
	m := &Manager{
		config: cfg,
		source: source,
		local:  NewLocal(eng),
		log:    log.With("module", "assistant"),
	}
	if len(collaborators) > 0 {
		m.collaborators = collaborators
	} else {
		m.initCollaborators()
	}
	return m
}

// initCollaborators builds the chain for the configured provider
func (m *Manager) initCollaborators() {
	timeout := m.config.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	ollama := func() Collaborator { return NewOllama(m.config.Ollama, timeout) }
	openAI := func() Collaborator {
		return NewOpenAI(m.config.OpenAI, m.config.Ollama.Temperature, timeout)
	}

	switch ParseProviderType(m.config.Provider) {
	case ProviderOllama:
		m.collaborators = []Collaborator{ollama()}

	case ProviderOpenAI:
		if m.config.OpenAI.APIKey != "" {
			m.collaborators = []Collaborator{openAI()}
		}

	case ProviderLocal:
		m.collaborators = nil

	default:
		// Auto mode: local Ollama first, then OpenAI when a key is set
		m.collaborators = []Collaborator{ollama()}
		if m.config.OpenAI.APIKey != "" {
			m.collaborators = append(m.collaborators, openAI())
		}
	}
}

func (m *Manager) probeTimeout() time.Duration {
	if m.config.ProbeTimeout > 0 {
		return m.config.ProbeTimeout
	}
	return 500 * time.Millisecond
}

// available probes c under the probe timeout so a hanging service cannot
// block the answer
func (m *Manager) available(ctx context.Context, c Collaborator) bool {
	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout())
	defer cancel()
	return c.IsAvailable(probeCtx)
}

// Stream answers question as an ordered sequence of chunks. It never
// yields an error: collaborator failures fall back to the local answer,
// after Separator when text was already emitted.
func (m *Manager) Stream(ctx context.Context, question, custom string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		req := Request{Question: question, Context: custom}
		if m.source != nil {
			req.Snapshot = m.source.Snapshot()
		}
		if len(m.collaborators) > 0 {
			req.Prompt = BuildPrompt(req.Snapshot, question, custom)
		}

		for _, c := range m.collaborators {
			if !m.available(ctx, c) {
				m.log.Debug("collaborator %s unavailable", c.Name())
				continue
			}

			emitted := false
			var streamErr error
			for chunk, err := range c.Stream(ctx, req) {
				if err != nil {
					streamErr = err
					break
				}
				emitted = true
				if !yield(chunk, nil) {
					return
				}
			}

			switch {
			case streamErr == nil && emitted:
				return
			case streamErr == nil:
				m.log.Warn("collaborator %s returned an empty answer", c.Name())
				continue
			case emitted:
				m.log.Warn("collaborator %s failed mid-stream: %v", c.Name(), streamErr)
				if !yield(Separator, nil) {
					return
				}
				yield(m.local.Answer(req), nil)
				return
			default:
				m.log.Warn("collaborator %s failed: %v", c.Name(), streamErr)
			}
		}

		yield(m.local.Answer(req), nil)
	}
}

// Chat returns the complete answer to question
func (m *Manager) Chat(ctx context.Context, question, custom string) string {
	var b strings.Builder
	for chunk := range m.Stream(ctx, question, custom) {
		b.WriteString(chunk)
	}
	return b.String()
}

// GetAvailableProviders returns the names of collaborators that answer
// now. The local rule engine is always listed last.
func (m *Manager) GetAvailableProviders(ctx context.Context) []string {
	var available []string
	for _, c := range m.collaborators {
		if m.available(ctx, c) {
			available = append(available, c.Name())
		}
	}
	return append(available, m.local.Name())
}

// GetStatus returns a status summary of all collaborators
func (m *Manager) GetStatus(ctx context.Context) map[string]interface{} {
	status := make(map[string]interface{})
	for _, c := range m.collaborators {
		ok := m.available(ctx, c)
		entry := map[string]interface{}{"available": ok}

		// Add install instructions for Ollama if not available
		if ollama, isOllama := c.(*Ollama); isOllama && !ok {
			entry["install_hint"] = ollama.GetInstallInstructions()
		}
		status[c.Name()] = entry
	}
	status[m.local.Name()] = map[string]interface{}{"available": true}
	return status
}
