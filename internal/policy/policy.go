// Package policy applies a merged rule set to one candidate file.
//
// Rules run in a fixed order: filename rules against the path, regex rules
// against the raw content, then structured rules against the parsed
// document. Every sample is redacted before it is placed in a Finding.
package policy

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/redactyl/scout/internal/ctxparse"
	"github.com/redactyl/scout/internal/match"
	"github.com/redactyl/scout/internal/redact"
	"github.com/redactyl/scout/internal/rules"
	"github.com/redactyl/scout/internal/types"
	"github.com/redactyl/scout/internal/validate"
)

// Options tune evaluation. The zero value is usable.
type Options struct {
	// FilenameShortCircuit stops after a filename rule matched, so a risky
	// file is reported once and its content is not inspected.
	FilenameShortCircuit bool
	// MaxBytes guards content and structured rules. Zero means no guard.
	MaxBytes int64
	// RegexWindow caps how many bytes regex rules scan. Zero means
	// match.DefaultWindow.
	RegexWindow int
	// Redaction defaults to redact.Default.
	Redaction *redact.Policy
	// Parsers defaults to ctxparse.DefaultParsers.
	Parsers []ctxparse.Parser
}

// ReadError is returned when a candidate cannot be read.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string { return fmt.Sprintf("read %s: %v", e.Path, e.Err) }

func (e *ReadError) Unwrap() error { return e.Err }

// Evaluator is immutable after New and safe for concurrent use.
type Evaluator struct {
	filename   []rules.Rule
	regex      []rules.Rule
	structured []rules.Rule
	opts       Options
	redaction  redact.Policy
}

// New partitions the enabled rules of set by kind.
func New(set rules.RuleSet, opts Options) *Evaluator {
	e := &Evaluator{opts: opts, redaction: redact.Default}
	if opts.Redaction != nil {
		e.redaction = *opts.Redaction
	}
	if e.opts.Parsers == nil {
		e.opts.Parsers = ctxparse.DefaultParsers
	}
	for _, r := range set.Enabled() {
		switch r.Kind {
		case rules.KindFilename:
			e.filename = append(e.filename, r)
		case rules.KindRegex:
			e.regex = append(e.regex, r)
		case rules.KindStructured:
			e.structured = append(e.structured, r)
		}
	}
	return e
}

// RuleCount is the number of enabled rules the evaluator applies.
func (e *Evaluator) RuleCount() int {
	return len(e.filename) + len(e.regex) + len(e.structured)
}

// Evaluate applies the rule set to c. Oversize and binary candidates only
// see filename rules. On a read error the filename findings are still
// returned together with a *ReadError.
func (e *Evaluator) Evaluate(c types.FileCandidate) ([]types.Finding, error) {
	out := e.matchFilename(c.Path)
	if !e.needsContent(c, len(out) > 0) {
		return out, nil
	}
	data, err := os.ReadFile(c.AbsPath)
	if err != nil {
		return out, &ReadError{Path: c.Path, Err: err}
	}
	if e.opts.MaxBytes > 0 && int64(len(data)) > e.opts.MaxBytes {
		return out, nil
	}
	out = append(out, e.matchContent(c.Path, data)...)
	return inSourceOrder(dedupe(out)), nil
}

// EvaluateContent runs every stage over in-memory data for the file at rel.
func (e *Evaluator) EvaluateContent(rel string, data []byte) []types.Finding {
	out := e.matchFilename(rel)
	if e.opts.FilenameShortCircuit && len(out) > 0 {
		return out
	}
	return inSourceOrder(dedupe(append(out, e.matchContent(rel, data)...)))
}

func (e *Evaluator) needsContent(c types.FileCandidate, filenameHit bool) bool {
	if filenameHit && e.opts.FilenameShortCircuit {
		return false
	}
	if c.Skip != types.SkipNone || c.Binary {
		return false
	}
	if e.opts.MaxBytes > 0 && c.Size > e.opts.MaxBytes {
		return false
	}
	return len(e.regex) > 0 || len(e.structured) > 0
}

func (e *Evaluator) matchContent(rel string, data []byte) []types.Finding {
	out := e.matchRegex(rel, data)
	return append(out, e.matchStructured(rel, data)...)
}

func applies(r *rules.Rule, rel string) bool {
	if !match.Included(rel, r.Include, r.Exclude) {
		return false
	}
	return len(r.AllowPaths) == 0 || !match.MatchAny(rel, r.AllowPaths)
}

func (e *Evaluator) matchFilename(rel string) []types.Finding {
	var out []types.Finding
	for i := range e.filename {
		r := &e.filename[i]
		if !applies(r, rel) {
			continue
		}
		var hit bool
		if r.PatternType == rules.PatternRegex {
			hit = r.Regexp() != nil && r.Regexp().MatchString(rel)
		} else {
			hit = match.MatchFilename(rel, r.Pattern)
		}
		if !hit || r.Allowed(rel) {
			continue
		}
		out = append(out, types.Finding{
			RuleID:      r.ID,
			Kind:        types.KindFilename,
			Path:        rel,
			Severity:    r.Severity,
			Description: r.Description,
			MatchHash:   redact.StableHash(r.ID, rel, string(types.KindFilename), rel),
		})
	}
	return out
}

func (e *Evaluator) matchRegex(rel string, data []byte) []types.Finding {
	var out []types.Finding
	for i := range e.regex {
		r := &e.regex[i]
		re := r.Regexp()
		if re == nil || !applies(r, rel) {
			continue
		}
		var spans []match.Span
		if r.Scope == rules.ScopeFile {
			spans = match.FindSpans(data, re, e.opts.RegexWindow, 0)
		} else {
			spans = match.FindLineSpans(data, re, e.opts.RegexWindow, 0, func(line []byte) bool {
				return r.Allowed(string(line))
			})
		}
		n := 0
		for _, sp := range spans {
			secret := string(bytes.TrimSpace(sp.Secret))
			if secret == "" {
				continue
			}
			if r.Scope == rules.ScopeFile && r.Allowed(string(sp.Text)) {
				continue
			}
			if r.Validator != "" && !validate.Check(r.Validator, secret) {
				continue
			}
			out = append(out, types.Finding{
				RuleID:      r.ID,
				Kind:        types.KindContent,
				Path:        rel,
				Line:        sp.Line,
				Column:      sp.Column,
				Sample:      e.redaction.Sample(secret),
				Severity:    r.Severity,
				Description: r.Description,
				MatchHash:   redact.StableHash(r.ID, rel, string(types.KindContent), secret),
			})
			n++
			if n >= r.MaxMatches {
				break
			}
		}
	}
	return out
}

func (e *Evaluator) matchStructured(rel string, data []byte) []types.Finding {
	if len(e.structured) == 0 {
		return nil
	}
	var doc *ctxparse.Document
	parsed := false
	var out []types.Finding
	for i := range e.structured {
		r := &e.structured[i]
		if !applies(r, rel) {
			continue
		}
		if !parsed {
			doc, _ = ctxparse.ParseWith(e.opts.Parsers, rel, data)
			parsed = true
		}
		if doc == nil {
			return out
		}
		if !r.AppliesToFormat(string(doc.Format)) {
			continue
		}
		leaves := match.Leaves(doc.Tree)
		sort.SliceStable(leaves, func(i, j int) bool {
			return doc.Line(leaves[i].KeyPath, leaves[i].Key) < doc.Line(leaves[j].KeyPath, leaves[j].Key)
		})
		n := 0
		for _, leaf := range leaves {
			if !keyMatches(r.Keys, leaf, r.CaseInsensitiveKeys) || keyMatches(r.AllowedKeys, leaf, r.CaseInsensitiveKeys) {
				continue
			}
			value := strings.TrimSpace(match.ScalarString(leaf.Value))
			if !violates(r.ValuePolicy, value) || (value != "" && r.Allowed(value)) {
				continue
			}
			f := types.Finding{
				RuleID:      r.ID,
				Kind:        types.KindStructured,
				Path:        rel,
				Line:        doc.Line(leaf.KeyPath, leaf.Key),
				KeyPath:     leaf.KeyPath,
				Severity:    r.Severity,
				Description: r.Description,
				MatchHash:   redact.StableHash(r.ID, rel, string(types.KindStructured), leaf.KeyPath+"="+value),
			}
			if value != "" {
				f.Sample = e.redaction.Sample(value)
			}
			out = append(out, f)
			n++
			if n >= r.MaxMatches {
				break
			}
		}
	}
	return out
}

func keyMatches(patterns []string, leaf match.Leaf, fold bool) bool {
	for _, p := range patterns {
		if match.MatchKey(p, leaf, fold) {
			return true
		}
	}
	return false
}

func violates(p rules.ValuePolicy, value string) bool {
	switch p {
	case rules.PolicyAny:
		return true
	case rules.PolicyNonEmpty:
		return value != ""
	case rules.PolicyPlaintext:
		return validate.LooksLikePlaintextSecret(value)
	case rules.PolicyMustReferenceEnv:
		return !validate.IsEnvReference(value)
	case rules.PolicyMustReferenceVault:
		return !validate.IsVaultReference(value)
	}
	return false
}

// inSourceOrder sorts findings by position. Filename findings carry no line
// and stay first; ties keep rule order.
func inSourceOrder(fs []types.Finding) []types.Finding {
	sort.SliceStable(fs, func(i, j int) bool {
		if fs[i].Line != fs[j].Line {
			return fs[i].Line < fs[j].Line
		}
		return fs[i].Column < fs[j].Column
	})
	return fs
}

// dedupe drops repeats of (rule, line, key, hash), keeping the first.
func dedupe(in []types.Finding) []types.Finding {
	if len(in) < 2 {
		return in
	}
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, f := range in {
		k := f.RuleID + "\x00" + strconv.Itoa(f.Line) + "\x00" + f.KeyPath + "\x00" + f.MatchHash
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, f)
	}
	return out
}
