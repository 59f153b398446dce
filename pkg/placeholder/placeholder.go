// Package placeholder resolves [$Name] and [#Name] tokens in path templates.
//
// [$Name] references a global variable, [#Name] a job-local variable, both
// by exact, case-sensitive name. FindMissing is the fail-soft validation
// pass (collect every unresolved reference); Resolve is the fail-fast
// substitution pass. Both use the same scanner so they cannot disagree on
// what counts as "found".
package placeholder

import (
	"fmt"
	"regexp"
)

var tokenRe = regexp.MustCompile(`\[(\$|#)(\w+)\]`)

// MissingError reports one unresolved placeholder reference.
type MissingError struct {
	Scope string // "global" or "local"
	Name  string
	Token string
}

func (e *MissingError) Error() string {
	if e.Scope == "global" {
		return fmt.Sprintf("global variable %q not found for placeholder [$%s]", e.Name, e.Name)
	}
	return fmt.Sprintf("local variable %q not found for placeholder [#%s]", e.Name, e.Name)
}

func lookup(prefix, name string, globals, locals map[string]string) (string, *MissingError) {
	if prefix == "$" {
		if v, ok := globals[name]; ok {
			return v, nil
		}
		return "", &MissingError{Scope: "global", Name: name, Token: "[$" + name + "]"}
	}
	if v, ok := locals[name]; ok {
		return v, nil
	}
	return "", &MissingError{Scope: "local", Name: name, Token: "[#" + name + "]"}
}

// FindMissing scans every token in template and returns one error per
// unresolved reference, in scan order. An empty result means Resolve will
// succeed on the same inputs.
func FindMissing(template string, globals, locals map[string]string) []error {
	var errs []error
	for _, m := range tokenRe.FindAllStringSubmatch(template, -1) {
		if _, miss := lookup(m[1], m[2], globals, locals); miss != nil {
			errs = append(errs, miss)
		}
	}
	return errs
}

// Resolve substitutes every token with its variable value, failing on the
// first unresolved reference.
func Resolve(template string, globals, locals map[string]string) (string, error) {
	var firstMiss *MissingError
	out := tokenRe.ReplaceAllStringFunc(template, func(tok string) string {
		if firstMiss != nil {
			return tok
		}
		m := tokenRe.FindStringSubmatch(tok)
		v, miss := lookup(m[1], m[2], globals, locals)
		if miss != nil {
			firstMiss = miss
			return tok
		}
		return v
	})
	if firstMiss != nil {
		return "", firstMiss
	}
	return out, nil
}
