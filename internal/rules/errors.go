package rules

import (
	"fmt"
	"strings"
)

// RuleError is one problem found while loading or validating rules.
type RuleError struct {
	Source string
	RuleID string
	Field  string
	Err    error
}

func (e RuleError) Error() string {
	var b strings.Builder
	if e.Source != "" {
		b.WriteString(e.Source)
		b.WriteString(": ")
	}
	if e.RuleID != "" {
		fmt.Fprintf(&b, "rule %q: ", e.RuleID)
	}
	if e.Field != "" {
		b.WriteString(e.Field)
		b.WriteString(": ")
	}
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e RuleError) Unwrap() error { return e.Err }

// ValidationError aggregates every RuleError from one load so a single typo
// does not hide the others.
type ValidationError struct {
	Errors []RuleError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "rule validation failed: " + e.Errors[0].Error()
	}
	msgs := make([]string, len(e.Errors))
	for i, re := range e.Errors {
		msgs[i] = re.Error()
	}
	return fmt.Sprintf("rule validation failed with %d errors:\n  %s", len(e.Errors), strings.Join(msgs, "\n  "))
}

func (e *ValidationError) Unwrap() []error {
	out := make([]error, len(e.Errors))
	for i := range e.Errors {
		out[i] = e.Errors[i]
	}
	return out
}
