// Package policy implements the optional CEL-based authorization hook
// evaluated before tools/call dispatch. A nil *Policy is treated as "allow
// all" by callers - this package never assumes a policy is configured.
package policy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
)

// evalTimeout bounds a single expression evaluation so a pathological rule
// cannot stall a tools/call dispatch indefinitely.
const evalTimeout = 2 * time.Second

// maxCostBudget is the runtime cost limit applied to each evaluation; an
// evaluation that exceeds it fails with an error.
const maxCostBudget = 10_000

// rule holds one compiled authorization program; Policy keys rules by tool
// name and keeps the default rule separately.
type rule struct {
	program cel.Program
}

// Policy evaluates CEL expressions of the form "args.size() > 0 &&
// session.clientName != ''" against a per-call activation of {tool, args,
// session}, one expression per registered tool plus an optional default.
type Policy struct {
	env *cel.Env

	mu     sync.RWMutex
	rules  map[string]*rule
	dfault *rule
}

// New constructs an environment for MCP tool-call authorization: a CEL env
// exposing tool (string), args (map[string]dyn), and session (map[string]dyn).
func New() (*Policy, error) {
	env, err := cel.NewEnv(
		cel.Variable("tool", cel.StringType),
		cel.Variable("args", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("session", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("policy: constructing CEL environment: %w", err)
	}
	return &Policy{env: env, rules: make(map[string]*rule)}, nil
}

// compile parses, type-checks, and plans expr, applying a cost limit so a
// single pathological expression cannot consume unbounded CPU per call.
func (p *Policy) compile(expr string) (*rule, error) {
	ast, issues := p.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("policy: compiling %q: %w", expr, issues.Err())
	}
	if outputType := ast.OutputType(); outputType.String() != cel.BoolType.String() {
		return nil, fmt.Errorf("policy: expression %q must evaluate to bool, got %s", expr, outputType)
	}
	program, err := p.env.Program(ast, cel.EvalOptions(cel.OptOptimize), cel.CostLimit(maxCostBudget))
	if err != nil {
		return nil, fmt.Errorf("policy: planning %q: %w", expr, err)
	}
	return &rule{program: program}, nil
}

// Allow registers expr as the authorization rule for tool. An expr that
// compiles to anything other than a bool is rejected at registration time.
func (p *Policy) Allow(tool, expr string) error {
	r, err := p.compile(expr)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rules[tool] = r
	return nil
}

// AllowDefault registers expr as the rule evaluated for any tool without its
// own Allow rule. Without a default, a tool with no matching rule is denied.
func (p *Policy) AllowDefault(expr string) error {
	r, err := p.compile(expr)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dfault = r
	return nil
}

// Evaluate reports whether tool may be invoked with args by the given
// session attributes. A nil *Policy (checked by callers, not here) means
// allow-all; a *Policy with no matching rule and no default denies.
func (p *Policy) Evaluate(ctx context.Context, tool string, args map[string]interface{}, session map[string]interface{}) (bool, error) {
	p.mu.RLock()
	r, ok := p.rules[tool]
	if !ok {
		r = p.dfault
	}
	p.mu.RUnlock()
	if r == nil {
		return false, nil
	}

	evalCtx, cancel := context.WithTimeout(ctx, evalTimeout)
	defer cancel()

	if args == nil {
		args = map[string]interface{}{}
	}
	if session == nil {
		session = map[string]interface{}{}
	}

	result, _, err := r.program.ContextEval(evalCtx, map[string]interface{}{
		"tool":    tool,
		"args":    args,
		"session": session,
	})
	if err != nil {
		return false, fmt.Errorf("policy: evaluating rule for %q: %w", tool, err)
	}
	allowed, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("policy: rule for %q did not evaluate to bool, got %T", tool, result.Value())
	}
	return allowed, nil
}
