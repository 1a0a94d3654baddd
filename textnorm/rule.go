package textnorm

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/goliatone/go-errors"
)

// RuleKind tags the variant of a normalization rule.
type RuleKind string

const (
	KindTrimQuotes RuleKind = "trim_quotes"
	KindRegex      RuleKind = "regex"
	KindLiteral    RuleKind = "literal"
)

// Rule rewrites a single line.
type Rule interface {
	Name() string
	Apply(line string) string
}

// TrimQuotes removes one leading and one trailing occurrence of Quote.
// Inner occurrences are left untouched.
type TrimQuotes struct {
	Quote string
}

// Name reports the rule kind.
func (r TrimQuotes) Name() string { return string(KindTrimQuotes) }

// Apply strips the quotes. An empty Quote means a double quote.
func (r TrimQuotes) Apply(line string) string {
	quote := r.Quote
	if quote == "" {
		quote = `"`
	}
	line = strings.TrimPrefix(line, quote)
	return strings.TrimSuffix(line, quote)
}

// Pattern replaces every match of Expr. Replacement may reference groups
// with $1 syntax; a literal dollar sign is written as $$.
type Pattern struct {
	Label       string
	Expr        *regexp.Regexp
	Replacement string
}

// Name returns Label, falling back to the expression source.
func (r Pattern) Name() string {
	if r.Label != "" {
		return r.Label
	}
	if r.Expr == nil {
		return string(KindRegex)
	}
	return r.Expr.String()
}

// Apply returns line unchanged when Expr is nil.
func (r Pattern) Apply(line string) string {
	if r.Expr == nil {
		return line
	}
	return r.Expr.ReplaceAllString(line, r.Replacement)
}

// Literal replaces every occurrence of Old with New.
type Literal struct {
	Label string
	Old   string
	New   string
}

// Name returns Label, falling back to the quoted Old and New.
func (r Literal) Name() string {
	if r.Label != "" {
		return r.Label
	}
	return fmt.Sprintf("%q->%q", r.Old, r.New)
}

// Apply returns line unchanged when Old is empty.
func (r Literal) Apply(line string) string {
	if r.Old == "" {
		return line
	}
	return strings.ReplaceAll(line, r.Old, r.New)
}

// RuleSpec is the data form of a rule, as found in configuration files.
type RuleSpec struct {
	Kind        RuleKind `yaml:"kind" json:"kind"`
	Name        string   `yaml:"name,omitempty" json:"name,omitempty"`
	Pattern     string   `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Replacement string   `yaml:"replacement,omitempty" json:"replacement,omitempty"`
}

// Compile turns a spec into a Rule.
func (s RuleSpec) Compile() (Rule, error) {
	switch s.Kind {
	case KindTrimQuotes:
		return TrimQuotes{Quote: s.Pattern}, nil
	case KindRegex:
		if s.Pattern == "" {
			return nil, errors.New("regex rule requires a pattern", errors.CategoryValidation).
				WithTextCode("RULE_PATTERN_REQUIRED")
		}
		expr, err := regexp.Compile(s.Pattern)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryValidation, fmt.Sprintf("invalid pattern %q", s.Pattern)).
				WithTextCode("RULE_PATTERN_INVALID")
		}
		return Pattern{Label: s.Name, Expr: expr, Replacement: s.Replacement}, nil
	case KindLiteral:
		if s.Pattern == "" {
			return nil, errors.New("literal rule requires a pattern", errors.CategoryValidation).
				WithTextCode("RULE_PATTERN_REQUIRED")
		}
		return Literal{Label: s.Name, Old: s.Pattern, New: s.Replacement}, nil
	default:
		return nil, errors.New(fmt.Sprintf("unknown rule kind %q", s.Kind), errors.CategoryValidation).
			WithTextCode("RULE_KIND_UNKNOWN")
	}
}

// CompileAll compiles specs in order. The first failing spec aborts.
func CompileAll(specs []RuleSpec) ([]Rule, error) {
	rules := make([]Rule, 0, len(specs))
	for i, spec := range specs {
		rule, err := spec.Compile()
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryValidation, fmt.Sprintf("rule %d", i))
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// Whitespace matches one Unicode whitespace rune. RE2's \s is ASCII only
// and misses \v, NEL, the information separators and the Z categories
// such as NBSP.
const Whitespace = `[\s\v\x{1c}-\x{1f}\x{85}\p{Z}]`

// DefaultSpecs returns the stock rule list for the given delimiter.
func DefaultSpecs(delim rune) []RuleSpec {
	replacement := escapeReplacement(string(delim))
	return []RuleSpec{
		{Kind: KindTrimQuotes, Name: "trim-quotes", Pattern: `"`},
		{Kind: KindRegex, Name: "collapse-whitespace", Pattern: Whitespace + `{2,}`, Replacement: replacement},
		{Kind: KindRegex, Name: "collapse-tabs", Pattern: `\t+`, Replacement: replacement},
		{Kind: KindRegex, Name: "tighten-pipes", Pattern: Whitespace + `+\|` + Whitespace + `+`, Replacement: "|"},
		{Kind: KindLiteral, Name: "colon-to-equals", Pattern: ":", Replacement: "="},
	}
}

func escapeReplacement(s string) string {
	return strings.ReplaceAll(s, "$", "$$")
}
