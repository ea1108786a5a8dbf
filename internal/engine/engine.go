// Package engine answers free-text fodder questions from the regional
// tables. Questions are classified by an ordered list of keyword rules;
// the first rule whose handler produces an answer wins and everything
// else falls back to a statewide summary.
package engine

import (
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/fodder-analyzer/internal/dataset"
	"github.com/fodder-analyzer/internal/logging"
	"github.com/fodder-analyzer/internal/resolver"
)

// DefaultStateName labels the statewide summary
const DefaultStateName = "Andhra Pradesh"

// Source provides the snapshot a question is answered from
type Source interface {
	Snapshot() *dataset.Snapshot
}

// Options configures an Engine
type Options struct {
	StateName string
	Aliases   []resolver.Alias
	Logger    *logging.Logger
}

// Answer is a rendered response plus the rule that produced it
type Answer struct {
	Text string `json:"response"`
	Rule string `json:"rule"`
}

// Rule names reported in Answer.Rule
const (
	RuleDisconnected = "disconnected"
	RuleUploadedData = "uploaded-data"
	RuleSummary      = "summary"
	RuleSystemError  = "system-error"
)

// Engine is safe for concurrent use; all per-question state lives in the
// request value.
type Engine struct {
	source    Source
	resolver  *resolver.Resolver
	stateName string
	log       *logging.Logger
	rules     []rule
	fallback  handler
}

// New creates an engine over source. source may be nil when only Respond
// is used.
func New(source Source, opts Options) *Engine {
	if opts.StateName == "" {
		opts.StateName = DefaultStateName
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetDefault()
	}
	e := &Engine{
		source:    source,
		resolver:  resolver.New(opts.Aliases),
		stateName: opts.StateName,
		log:       opts.Logger.With("module", "engine"),
	}
	e.rules = e.defaultRules()
	e.fallback = e.summary
	return e
}

// StateName returns the label used for statewide answers
func (e *Engine) StateName() string {
	return e.stateName
}

// Resolver returns the entity resolver used by the engine
func (e *Engine) Resolver() *resolver.Resolver {
	return e.resolver
}

// Ask answers a question against the current snapshot of the source
func (e *Engine) Ask(query, custom string) Answer {
	var snap *dataset.Snapshot
	if e.source != nil {
		snap = e.source.Snapshot()
	}
	return e.Respond(snap, query, custom)
}

// Respond answers a question against snap. custom is an optional excerpt
// of user-uploaded data; it is only consulted when the gap table is
// unavailable.
func (e *Engine) Respond(snap *dataset.Snapshot, query, custom string) Answer {
	if !snap.HasPrimary() {
		if strings.TrimSpace(custom) == "" {
			return Answer{Text: DisconnectedMessage, Rule: RuleDisconnected}
		}
		return Answer{Text: uploadedDataAnswer(resolver.Upper(query), custom), Rule: RuleUploadedData}
	}

	req := &request{
		query:  query,
		upper:  resolver.Upper(query),
		custom: custom,
		snap:   snap,
		names:  snap.RegionNames(),
	}
	return e.dispatch(req)
}

func (e *Engine) dispatch(req *request) Answer {
	for _, r := range e.rules {
		if !r.match(req) {
			continue
		}
		text, ok, err := invoke(r.respond, req)
		if err != nil {
			e.log.Warn("rule %s failed: %v", r.name, err)
			break
		}
		if ok {
			e.log.Debug("rule %s answered", r.name)
			return Answer{Text: header + text + footer, Rule: r.name}
		}
	}

	text, _, err := invoke(e.fallback, req)
	if err != nil {
		e.log.Error("summary failed: %v", err)
		return Answer{Text: fmt.Sprintf("%s: %v", SystemErrorPrefix, err), Rule: RuleSystemError}
	}
	return Answer{Text: header + text + footer, Rule: RuleSummary}
}

// invoke runs h and converts a panic into an error
func invoke(h handler, req *request) (text string, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	text, ok = h(req)
	return text, ok, nil
}

// uploadedDataAnswer describes user-uploaded data when the regional tables
// are offline. custom is a CSV excerpt whose first line is the header.
func uploadedDataAnswer(upper, custom string) string {
	columns := excerptColumns(custom)

	var matched []string
	for _, c := range columns {
		if c != "" && strings.Contains(upper, strings.ToUpper(c)) {
			matched = append(matched, c)
		}
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("UPLOADED DATA INSIGHT\n\n")
	if len(matched) > 0 {
		for _, c := range matched {
			fmt.Fprintf(&b, "In your uploaded data I found column **'%s'**.\n", c)
		}
		b.WriteString("\nThe regional tables are offline, so I can only describe the structure of your upload. Connect a language model collaborator for deeper analysis of these values.")
	} else {
		fmt.Fprintf(&b, "Your uploaded data is loaded with %d columns: %s.\n\n", len(columns), strings.Join(columns, ", "))
		b.WriteString("The regional tables are offline. Mention one of these column names to learn more about it.")
	}
	b.WriteString(footer)
	return b.String()
}

func excerptColumns(custom string) []string {
	line, _, _ := strings.Cut(strings.TrimSpace(custom), "\n")
	r := csv.NewReader(strings.NewReader(line))
	r.TrimLeadingSpace = true
	fields, err := r.Read()
	if err != nil {
		return nil
	}
	cols := make([]string, 0, len(fields))
	for _, f := range fields {
		cols = append(cols, strings.TrimSpace(f))
	}
	return cols
}
