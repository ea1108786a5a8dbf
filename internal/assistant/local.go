package assistant

import (
	"context"
	"iter"

	"github.com/fodder-analyzer/internal/engine"
)

// Local answers with the rule engine. It is always available and emits the
// whole answer as one chunk.
type Local struct {
	engine *engine.Engine
}

// NewLocal wraps eng
func NewLocal(eng *engine.Engine) *Local {
	return &Local{engine: eng}
}

func (l *Local) Name() string {
	return "local/rules"
}

func (l *Local) IsAvailable(context.Context) bool {
	return true
}

func (l *Local) Stream(_ context.Context, req Request) iter.Seq2[string, error] {
	return single(l.Answer(req))
}

// Answer returns the engine's answer for req
func (l *Local) Answer(req Request) string {
	return l.engine.Respond(req.Snapshot, req.Question, req.Context).Text
}
