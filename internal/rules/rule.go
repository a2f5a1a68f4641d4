package rules

import (
	"regexp"
	"strings"

	"github.com/redactyl/scout/internal/types"
)

// Kind is the family a rule belongs to.
type Kind string

const (
	KindFilename   Kind = "filename"
	KindRegex      Kind = "regex"
	KindStructured Kind = "structured"
)

// Scope controls whether regex rules run line by line or over the whole file.
type Scope string

const (
	ScopeLine Scope = "line"
	ScopeFile Scope = "file"
)

// PatternType selects how a filename rule's pattern is interpreted.
type PatternType string

const (
	PatternGlob  PatternType = "glob"
	PatternRegex PatternType = "regex"
)

// ValuePolicy decides whether a forbidden key's value is reportable.
type ValuePolicy string

const (
	PolicyAny                ValuePolicy = "any"
	PolicyNonEmpty           ValuePolicy = "non_empty"
	PolicyPlaintext          ValuePolicy = "plaintext"
	PolicyMustReferenceEnv   ValuePolicy = "must_reference_env"
	PolicyMustReferenceVault ValuePolicy = "must_reference_vault"
)

const defaultMaxMatches = 50

// RawRule is one unvalidated record as it appears in a rule pack.
type RawRule struct {
	ID                  string   `yaml:"id" json:"id"`
	Kind                string   `yaml:"kind,omitempty" json:"kind,omitempty"`
	Pattern             string   `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	PatternType         string   `yaml:"pattern_type,omitempty" json:"pattern_type,omitempty"`
	Keys                []string `yaml:"keys,omitempty" json:"keys,omitempty"`
	AllowedKeys         []string `yaml:"allowed_keys,omitempty" json:"allowed_keys,omitempty"`
	CaseInsensitiveKeys *bool    `yaml:"case_insensitive_keys,omitempty" json:"case_insensitive_keys,omitempty"`
	ValuePolicy         string   `yaml:"value_policy,omitempty" json:"value_policy,omitempty"`
	Formats             []string `yaml:"formats,omitempty" json:"formats,omitempty"`
	Enabled             *bool    `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Severity            string   `yaml:"severity,omitempty" json:"severity,omitempty"`
	Description         string   `yaml:"description,omitempty" json:"description,omitempty"`
	Include             []string `yaml:"include,omitempty" json:"include,omitempty"`
	Exclude             []string `yaml:"exclude,omitempty" json:"exclude,omitempty"`
	AllowPaths          []string `yaml:"allow_paths,omitempty" json:"allow_paths,omitempty"`
	AllowRegexes        []string `yaml:"allow_regexes,omitempty" json:"allow_regexes,omitempty"`
	Scope               string   `yaml:"scope,omitempty" json:"scope,omitempty"`
	MaxMatches          int      `yaml:"max_matches,omitempty" json:"max_matches,omitempty"`
	Multiline           bool     `yaml:"multiline,omitempty" json:"multiline,omitempty"`
	CaseSensitive       bool     `yaml:"case_sensitive,omitempty" json:"case_sensitive,omitempty"`
	Validator           string   `yaml:"validator,omitempty" json:"validator,omitempty"`
}

// Rule is a merged rule. Regex patterns are compiled by Load; a Rule built
// by hand must go through Compile before evaluation.
type Rule struct {
	ID                  string         `json:"id"`
	Kind                Kind           `json:"kind,omitempty"`
	Pattern             string         `json:"pattern,omitempty"`
	PatternType         PatternType    `json:"pattern_type,omitempty"`
	Keys                []string       `json:"keys,omitempty"`
	AllowedKeys         []string       `json:"allowed_keys,omitempty"`
	CaseInsensitiveKeys bool           `json:"case_insensitive_keys,omitempty"`
	ValuePolicy         ValuePolicy    `json:"value_policy,omitempty"`
	Formats             []string       `json:"formats,omitempty"`
	Enabled             bool           `json:"enabled"`
	Severity            types.Severity `json:"severity,omitempty"`
	Description         string         `json:"description,omitempty"`
	Include             []string       `json:"include,omitempty"`
	Exclude             []string       `json:"exclude,omitempty"`
	AllowPaths          []string       `json:"allow_paths,omitempty"`
	AllowRegexes        []string       `json:"allow_regexes,omitempty"`
	Scope               Scope          `json:"scope,omitempty"`
	MaxMatches          int            `json:"max_matches,omitempty"`
	Multiline           bool           `json:"multiline,omitempty"`
	CaseSensitive       bool           `json:"case_sensitive,omitempty"`
	// Validator names a structural check every regex match must pass.
	Validator string `json:"validator,omitempty"`

	// Source names the pack that last defined this id.
	Source string `json:"source,omitempty"`

	re    *regexp.Regexp
	allow []*regexp.Regexp
}

// FromRaw applies defaults to a raw record. It does not validate.
func FromRaw(raw RawRule, source string) Rule {
	r := Rule{
		ID:                  strings.TrimSpace(raw.ID),
		Kind:                Kind(strings.ToLower(strings.TrimSpace(raw.Kind))),
		Pattern:             raw.Pattern,
		PatternType:         PatternType(strings.ToLower(raw.PatternType)),
		Keys:                raw.Keys,
		AllowedKeys:         raw.AllowedKeys,
		CaseInsensitiveKeys: true,
		ValuePolicy:         ValuePolicy(strings.ToLower(raw.ValuePolicy)),
		Formats:             raw.Formats,
		Enabled:             true,
		Description:         raw.Description,
		Include:             raw.Include,
		Exclude:             raw.Exclude,
		AllowPaths:          raw.AllowPaths,
		AllowRegexes:        raw.AllowRegexes,
		Scope:               Scope(strings.ToLower(raw.Scope)),
		MaxMatches:          raw.MaxMatches,
		Multiline:           raw.Multiline,
		CaseSensitive:       raw.CaseSensitive,
		Validator:           strings.TrimSpace(raw.Validator),
		Source:              source,
	}
	if raw.Enabled != nil {
		r.Enabled = *raw.Enabled
	}
	if raw.CaseInsensitiveKeys != nil {
		r.CaseInsensitiveKeys = *raw.CaseInsensitiveKeys
	}
	r.Severity = types.SevMed
	if raw.Severity != "" {
		if s, ok := types.ParseSeverity(raw.Severity); ok {
			r.Severity = s
		} else {
			r.Severity = types.Severity(raw.Severity)
		}
	}
	if r.PatternType == "" {
		r.PatternType = PatternGlob
	}
	if r.ValuePolicy == "" {
		r.ValuePolicy = PolicyNonEmpty
	}
	if r.Scope == "" {
		r.Scope = ScopeLine
	}
	if r.MaxMatches <= 0 {
		r.MaxMatches = defaultMaxMatches
	}
	return r
}

// Compile prepares the rule's regular expressions.
func (r *Rule) Compile() error {
	r.re = nil
	r.allow = nil
	if r.Kind == KindRegex || (r.Kind == KindFilename && r.PatternType == PatternRegex) {
		re, err := regexp.Compile(r.regexSource(r.Pattern))
		if err != nil {
			return err
		}
		r.re = re
	}
	for _, a := range r.AllowRegexes {
		re, err := regexp.Compile("(?i)" + a)
		if err != nil {
			return err
		}
		r.allow = append(r.allow, re)
	}
	return nil
}

func (r *Rule) regexSource(p string) string {
	flags := ""
	if !r.CaseSensitive {
		flags += "i"
	}
	if r.Multiline {
		flags += "ms"
	}
	if flags == "" {
		return p
	}
	return "(?" + flags + ")" + p
}

// Regexp is the compiled pattern, nil for glob filename and structured rules.
func (r *Rule) Regexp() *regexp.Regexp { return r.re }

// Allowed reports whether any allow regex matches s.
func (r *Rule) Allowed(s string) bool {
	for _, re := range r.allow {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// AppliesToFormat reports whether a structured rule should run on a
// document of the given format.
func (r *Rule) AppliesToFormat(format string) bool {
	if len(r.Formats) == 0 {
		return true
	}
	for _, f := range r.Formats {
		if strings.EqualFold(f, format) {
			return true
		}
	}
	return false
}
