package rules

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/personakit/personakit/internal/traits"
)

// Rule is one declarative mapper rule. A matched rule contributes one
// suggestion per action.
type Rule struct {
	ID          string    `json:"id"`
	Description string    `json:"description,omitempty"`
	Weight      float64   `json:"weight"`
	Condition   Condition `json:"condition"`
	Actions     []Action  `json:"actions"`
}

// Action describes what a matched rule contributes to the persona.
type Action struct {
	Type     string                 `json:"type"`
	Template string                 `json:"template"`
	Params   map[string]ParamSource `json:"params,omitempty"`
}

// ParamSource resolves one template parameter. FromTrait and FromContext
// are tried in that order; Default fills in when neither resolves.
type ParamSource struct {
	FromTrait   string `json:"from_trait,omitempty"`
	FromContext string `json:"from_context,omitempty"`
	Default     any    `json:"default,omitempty"`
	Transform   string `json:"transform,omitempty"`
}

// SearchResult is one narrative hit.
type SearchResult struct {
	ID      string  `json:"id"`
	Type    string  `json:"type"`
	Summary string  `json:"summary"`
	Score   float64 `json:"score"`
}

// Searcher finds narrative events relevant to a query. Implementations are
// remote; the engine treats any failure as "no results".
type Searcher interface {
	Search(ctx context.Context, personID, query string, eventTypes []string, limit int) ([]SearchResult, error)
}

// Suggestion is a rendered output of a matched rule.
type Suggestion struct {
	RuleID string         `json:"rule_id"`
	Text   string         `json:"text"`
	Weight float64        `json:"weight"`
	Params map[string]any `json:"params,omitempty"`
}

// Engine evaluates rule sets.
type Engine struct {
	searcher      Searcher
	topK          int
	searchTimeout time.Duration
	logger        *slog.Logger
}

// NewEngine creates a rule engine. searcher may be nil, in which case
// narrative conditions evaluate to false.
func NewEngine(searcher Searcher, topK int, searchTimeout time.Duration, logger *slog.Logger) *Engine {
	if topK <= 0 {
		topK = 5
	}
	if searchTimeout <= 0 {
		searchTimeout = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{searcher: searcher, topK: topK, searchTimeout: searchTimeout, logger: logger}
}

// Evaluate runs every rule against the person's traits and the request
// context, renders suggestions for the matches, and returns the top
// suggestions by weight. Evaluation never fails: a rule that cannot be
// evaluated simply does not match.
func (e *Engine) Evaluate(ctx context.Context, personID string, ruleset []Rule, templates map[string]string, tr map[string]traits.Entry, reqCtx map[string]any) []Suggestion {
	var matched []Suggestion
	for _, rule := range ruleset {
		if !e.eval(ctx, personID, rule.Condition, tr, reqCtx) {
			continue
		}
		for _, action := range rule.Actions {
			params := e.resolveParams(action.Params, tr, reqCtx)
			text := renderTemplate(templates[action.Template], params)
			if text == "" {
				e.logger.Warn("Rule matched but template missing",
					"rule_id", rule.ID, "template", action.Template)
				continue
			}
			matched = append(matched, Suggestion{
				RuleID: rule.ID,
				Text:   text,
				Weight: rule.Weight,
				Params: params,
			})
		}
	}

	// The stable sort keeps declaration order for equal weights.
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Weight > matched[j].Weight
	})
	if len(matched) > e.topK {
		matched = matched[:e.topK]
	}
	return matched
}

func (e *Engine) eval(ctx context.Context, personID string, c Condition, tr map[string]traits.Entry, reqCtx map[string]any) bool {
	switch c.Type {
	case CondAll:
		for _, sub := range c.Conditions {
			if !e.eval(ctx, personID, sub, tr, reqCtx) {
				return false
			}
		}
		return true
	case CondAny:
		for _, sub := range c.Conditions {
			if e.eval(ctx, personID, sub, tr, reqCtx) {
				return true
			}
		}
		return false
	case CondTrait:
		value, found := Resolve(tr, c.Path)
		return compare(value, found, c.Operator, c.Value)
	case CondContext:
		value, found := ResolveContext(reqCtx, c.Key)
		return compare(value, found, c.Operator, c.Value)
	case CondNarrative:
		return e.evalNarrative(ctx, personID, c)
	}
	return false
}

// evalNarrative queries the narrative collaborator with a bounded timeout.
// The collaborator being slow or down degrades the condition to false so
// persona generation stays available.
func (e *Engine) evalNarrative(ctx context.Context, personID string, c Condition) bool {
	if e.searcher == nil {
		return false
	}
	min := c.MinResults
	if min <= 0 {
		min = 1
	}

	sctx, cancel := context.WithTimeout(ctx, e.searchTimeout)
	defer cancel()

	results, err := e.searcher.Search(sctx, personID, c.Query, c.EventTypes, min)
	if err != nil {
		e.logger.Warn("Narrative search failed, condition treated as false",
			"person_id", personID, "query", c.Query, "error", err)
		return false
	}
	return len(results) >= min
}

func (e *Engine) resolveParams(sources map[string]ParamSource, tr map[string]traits.Entry, reqCtx map[string]any) map[string]any {
	if len(sources) == 0 {
		return nil
	}
	params := make(map[string]any, len(sources))
	for name, src := range sources {
		value, found := any(nil), false
		if src.FromTrait != "" {
			value, found = Resolve(tr, src.FromTrait)
		}
		if !found && src.FromContext != "" {
			value, found = ResolveContext(reqCtx, src.FromContext)
		}
		if !found {
			value = src.Default
		}
		params[name] = applyTransform(src.Transform, value)
	}
	return params
}

func applyTransform(transform string, value any) any {
	switch transform {
	case "minutes_to_hours":
		if minutes, ok := numeric(value); ok {
			return math.Round(minutes/60*10) / 10
		}
	case "capitalize":
		if s, ok := value.(string); ok && s != "" {
			return strings.ToUpper(s[:1]) + s[1:]
		}
	case "lower":
		if s, ok := value.(string); ok {
			return strings.ToLower(s)
		}
	}
	return value
}

// renderTemplate substitutes {name} placeholders. Unknown placeholders are
// left intact so a missing parameter is visible rather than silently blank.
func renderTemplate(template string, params map[string]any) string {
	if template == "" {
		return ""
	}
	out := template
	for name, value := range params {
		out = strings.ReplaceAll(out, "{"+name+"}", formatParam(value))
	}
	return out
}

func formatParam(v any) string {
	switch n := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case string:
		return n
	case []any:
		parts := make([]string, len(n))
		for i, item := range n {
			parts[i] = formatParam(item)
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(n, ", ")
	default:
		return fmt.Sprintf("%v", n)
	}
}
