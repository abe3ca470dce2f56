// Package rules evaluates boolean expressions against a variable environment.
//
// It backs the extended edge-condition syntax: condition strings outside the
// simple operator grammar are compiled with expr-lang and cached.
package rules

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Evaluator evaluates an expression against a variable environment.
type Evaluator interface {
	Evaluate(expression string, env map[string]any) (bool, error)
}

// ExprEvaluator is an Evaluator built on expr-lang with a compiled-program
// cache, so repeated evaluations of the same condition skip compilation.
type ExprEvaluator struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

// NewExprEvaluator creates an ExprEvaluator with an initialized cache.
func NewExprEvaluator() *ExprEvaluator {
	return &ExprEvaluator{cache: make(map[string]*vm.Program)}
}

// Evaluate compiles (or reuses) the expression and runs it against env. The
// expression must evaluate to a boolean; anything else is an error.
// Compiling with the env binds identifiers to the variable map, so a
// variable named like an expr builtin (count, len) still resolves to the
// variable.
func (e *ExprEvaluator) Evaluate(expression string, env map[string]any) (bool, error) {
	if env == nil {
		env = map[string]any{}
	}

	e.mu.RLock()
	program, ok := e.cache[expression]
	e.mu.RUnlock()

	if !ok {
		e.mu.Lock()
		if program, ok = e.cache[expression]; !ok {
			var err error
			program, err = expr.Compile(expression, expr.Env(env))
			if err != nil {
				e.mu.Unlock()
				return false, fmt.Errorf("failed to compile expression %q: %w", expression, err)
			}
			e.cache[expression] = program
		}
		e.mu.Unlock()
	}

	result, err := vm.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("failed to run expression %q: %w", expression, err)
	}

	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q did not evaluate to a boolean (got %T)", expression, result)
	}
	return b, nil
}
