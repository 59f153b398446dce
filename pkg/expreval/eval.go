// Package expreval evaluates dynamic-variable expressions in a closed
// interpreter scope.
//
// The language binds date/time helpers only: no filesystem, network, or
// process access is reachable from an expression. "Now" is supplied by an
// injected Clock so a run can be evaluated under a simulated current date
// without the expression text changing and without shared mutable state.
//
// Result convention (stable caller contract): if the expression assigns a
// variable named "result", its stringified value is returned; otherwise any
// output produced via print() is trimmed and returned; otherwise the
// sentinel NoOutput. Evaluation failures are returned as a value of the
// form "Error: <message>", never as a Go error.
package expreval

import (
	"fmt"
	"strings"
	"time"
)

// NoOutput is returned when an expression neither assigns result nor prints.
const NoOutput = "Code executed. No output."

// errorPrefix marks an error-as-value result.
const errorPrefix = "Error: "

// value is one of string, int64, or time.Time.
type value interface{}

// scope is the per-evaluation interpreter state.
type scope struct {
	clock  Clock
	vars   map[string]value
	output strings.Builder
}

// Evaluator runs expressions against a clock. The zero value uses the
// system clock. Safe for concurrent use; every call gets a fresh scope.
type Evaluator struct {
	Clock Clock
}

// New returns an Evaluator on the real wall clock.
func New() *Evaluator {
	return &Evaluator{Clock: SystemClock{}}
}

// Evaluate runs src and returns its result per the package convention.
//
// When override is non-nil, today() resolves to its date portion and now()
// to midnight of that date, unless the override carries a time component,
// in which case now() returns it unchanged.
func (e *Evaluator) Evaluate(src string, override *time.Time) string {
	clock := e.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	if override != nil {
		clock = overrideClock{at: *override}
	}

	stmts, err := parse(src)
	if err != nil {
		return errorPrefix + err.Error()
	}

	s := &scope{clock: clock, vars: make(map[string]value)}
	for _, st := range stmts {
		v, err := st.expr.eval(s)
		if err != nil {
			return errorPrefix + err.Error()
		}
		if st.assign != "" {
			s.vars[st.assign] = v
		}
	}

	if res, ok := s.vars["result"]; ok {
		return stringify(res)
	}
	if out := strings.TrimSpace(s.output.String()); out != "" {
		return out
	}
	return NoOutput
}

// IsErrorValue reports whether an evaluation result is an error-as-value.
func IsErrorValue(s string) bool {
	return strings.HasPrefix(s, errorPrefix)
}

func stringify(v value) string {
	switch t := v.(type) {
	case string:
		return t
	case int64:
		return fmt.Sprintf("%d", t)
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
			return t.Format("2006-01-02")
		}
		return t.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprintf("%v", t)
	}
}

func (n *literalNode) eval(_ *scope) (value, error) { return n.v, nil }

func (n *varNode) eval(s *scope) (value, error) {
	if v, ok := s.vars[n.name]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("name %q is not defined", n.name)
}

func (n *negNode) eval(s *scope) (value, error) {
	v, err := n.n.eval(s)
	if err != nil {
		return nil, err
	}
	i, ok := v.(int64)
	if !ok {
		return nil, fmt.Errorf("cannot negate %s", typeName(v))
	}
	return -i, nil
}

func (n *binNode) eval(s *scope) (value, error) {
	l, err := n.l.eval(s)
	if err != nil {
		return nil, err
	}
	r, err := n.r.eval(s)
	if err != nil {
		return nil, err
	}
	if n.op == tokPlus {
		if ls, ok := l.(string); ok {
			return ls + stringify(r), nil
		}
		if li, ok := l.(int64); ok {
			if ri, ok := r.(int64); ok {
				return li + ri, nil
			}
		}
		return nil, fmt.Errorf("cannot add %s and %s", typeName(l), typeName(r))
	}
	li, lok := l.(int64)
	ri, rok := r.(int64)
	if !lok || !rok {
		return nil, fmt.Errorf("cannot subtract %s from %s", typeName(r), typeName(l))
	}
	return li - ri, nil
}

func (n *callNode) eval(s *scope) (value, error) {
	fn, ok := builtins[n.name]
	if !ok {
		return nil, fmt.Errorf("function %q is not defined", n.name)
	}
	args := make([]value, len(n.args))
	for i, a := range n.args {
		v, err := a.eval(s)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return fn(s, args)
}

func typeName(v value) string {
	switch v.(type) {
	case string:
		return "string"
	case int64:
		return "number"
	case time.Time:
		return "date"
	default:
		return "value"
	}
}
