// Package flowgraph validates and compiles persisted flow definitions into an
// executable graph: typed node configs, parsed edge conditions, and edge
// resolution with deterministic ordering.
package flowgraph

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/kalidas7337/whatsapp-saas-sub000/internal/rules"
)

// Op is a condition operator in the simple edge grammar.
type Op string

const (
	OpEq       Op = "=="
	OpNe       Op = "!="
	OpContains Op = "contains"
)

type condKind int

const (
	condSimple condKind = iota
	condExpr
	condInvalid
)

// simpleCondRe matches the persisted grammar: variable == "value",
// variable != "value", variable contains "value". Quotes are optional.
var simpleCondRe = regexp.MustCompile(`^\s*([A-Za-z_][\w]*)\s*(==|!=|contains)\s*"?([^"]*?)"?\s*$`)

// Condition is one parsed edge condition. Conditions outside the simple
// grammar are kept as raw expr-lang expressions; strings that are neither are
// never-true and reported once at load time.
type Condition struct {
	raw      string
	kind     condKind
	Variable string
	Op       Op
	Value    string
}

// ParseCondition parses a condition string at flow-load time. It never fails:
// a malformed condition compiles to never-true, matching the engine's
// fail-soft policy, and the defect is logged where a flow author can find it.
func ParseCondition(raw string, ev rules.Evaluator) Condition {
	if m := simpleCondRe.FindStringSubmatch(raw); m != nil {
		return Condition{
			raw:      raw,
			kind:     condSimple,
			Variable: m[1],
			Op:       Op(m[2]),
			Value:    m[3],
		}
	}
	// Not the simple grammar; try it as an expr expression.
	if ev != nil {
		if _, err := ev.Evaluate(raw, map[string]any{}); err == nil {
			return Condition{raw: raw, kind: condExpr}
		}
		// Compile errors surface here; runtime errors (missing variables)
		// still count as expr conditions and evaluate per message.
		if looksLikeExpression(raw) {
			return Condition{raw: raw, kind: condExpr}
		}
	}
	slog.Warn("flowgraph.ParseCondition: malformed condition treated as never-true", "condition", raw)
	return Condition{raw: raw, kind: condInvalid}
}

// looksLikeExpression reports whether a string that failed a probe evaluation
// is still plausibly an expression referencing runtime variables.
func looksLikeExpression(raw string) bool {
	for _, op := range []string{"==", "!=", ">", "<", "&&", "||", " and ", " or ", " in "} {
		if strings.Contains(raw, op) {
			return true
		}
	}
	return false
}

// Env is the evaluation environment for one edge resolution: flow variables,
// the raw inbound text used when a variable is absent, and the expression
// evaluator for extended conditions.
type Env struct {
	Variables map[string]any
	RawText   string
	Evaluator rules.Evaluator
}

// Evaluate reports whether the condition is satisfied in the given
// environment. Simple-grammar comparisons are case-insensitive and fall back
// to the raw inbound text when the variable is absent.
func (c Condition) Evaluate(env Env) bool {
	switch c.kind {
	case condSimple:
		actual := env.RawText
		if v, ok := env.Variables[c.Variable]; ok {
			actual = stringify(v)
		}
		actual = strings.ToLower(strings.TrimSpace(actual))
		expected := strings.ToLower(strings.TrimSpace(c.Value))
		switch c.Op {
		case OpEq:
			return actual == expected
		case OpNe:
			return actual != expected
		case OpContains:
			return strings.Contains(actual, expected)
		}
		return false
	case condExpr:
		if env.Evaluator == nil {
			return false
		}
		vars := env.Variables
		if vars == nil {
			vars = map[string]any{}
		}
		ok, err := env.Evaluator.Evaluate(c.raw, vars)
		if err != nil {
			slog.Debug("flowgraph.Condition: expression evaluation failed, treating as false", "condition", c.raw, "error", err)
			return false
		}
		return ok
	default:
		return false
	}
}

// String returns the original condition text.
func (c Condition) String() string { return c.raw }

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}
