package textnorm

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"
)

// DefaultDelimiter separates fields in normalized lines.
const DefaultDelimiter = ';'

// Normalizer applies an ordered rule list. It is safe for concurrent use;
// the rule list cannot change after construction.
type Normalizer struct {
	delim rune
	rules []Rule
}

// New builds a Normalizer from explicit rules. A zero delimiter falls back
// to DefaultDelimiter.
func New(delim rune, rules ...Rule) *Normalizer {
	if delim == 0 {
		delim = DefaultDelimiter
	}
	copied := make([]Rule, len(rules))
	copy(copied, rules)
	return &Normalizer{delim: delim, rules: copied}
}

// Default returns the stock Normalizer using DefaultDelimiter.
func Default() *Normalizer {
	return WithDelimiter(DefaultDelimiter)
}

// WithDelimiter returns the stock rule list bound to delim.
func WithDelimiter(delim rune) *Normalizer {
	if delim == 0 {
		delim = DefaultDelimiter
	}
	rules, err := CompileAll(DefaultSpecs(delim))
	if err != nil {
		// stock patterns are constants
		panic(err)
	}
	return New(delim, rules...)
}

// FromSpecs compiles specs into a Normalizer. An empty spec list yields the
// stock rules.
func FromSpecs(delim rune, specs []RuleSpec) (*Normalizer, error) {
	if len(specs) == 0 {
		return WithDelimiter(delim), nil
	}
	rules, err := CompileAll(specs)
	if err != nil {
		return nil, err
	}
	return New(delim, rules...), nil
}

// Normalize runs every rule over line in order.
func (n *Normalizer) Normalize(line string) string {
	for _, rule := range n.rules {
		line = rule.Apply(line)
	}
	return line
}

// Fields normalizes line and splits it on the delimiter.
func (n *Normalizer) Fields(line string) []string {
	return Split(n.Normalize(line), n.delim)
}

// Delimiter reports the field delimiter.
func (n *Normalizer) Delimiter() rune {
	return n.delim
}

// Rules returns a copy of the rule list.
func (n *Normalizer) Rules() []Rule {
	out := make([]Rule, len(n.rules))
	copy(out, n.rules)
	return out
}

// ParseDelimiter accepts a single-character delimiter. "\t" and "tab" both
// mean a tab.
func ParseDelimiter(value string) (rune, error) {
	switch value {
	case "":
		return DefaultDelimiter, nil
	case `\t`, "tab":
		return '\t', nil
	}
	if utf8.RuneCountInString(value) != 1 {
		return 0, errors.New(fmt.Sprintf("delimiter must be a single character, got %q", value), errors.CategoryValidation).
			WithTextCode("DELIMITER_INVALID")
	}
	r, _ := utf8.DecodeRuneInString(value)
	if r == '"' || r == utf8.RuneError {
		return 0, errors.New(fmt.Sprintf("delimiter %q is not allowed", value), errors.CategoryValidation).
			WithTextCode("DELIMITER_INVALID")
	}
	return r, nil
}

// RuleFile is the YAML layout of a standalone rules file.
type RuleFile struct {
	Delimiter string     `yaml:"delimiter,omitempty"`
	Rules     []RuleSpec `yaml:"rules"`
}

// LoadRuleFile decodes a rules file from r.
func LoadRuleFile(r io.Reader) (RuleFile, error) {
	var file RuleFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if err == io.EOF {
			return file, nil
		}
		return RuleFile{}, errors.Wrap(err, errors.CategoryBadInput, "decode rules file").
			WithTextCode("RULES_DECODE_FAILED")
	}
	return file, nil
}

// Build compiles the file into a Normalizer. A delimiter set in the file
// wins over fallback.
func (f RuleFile) Build(fallback rune) (*Normalizer, error) {
	delim := fallback
	if strings.TrimSpace(f.Delimiter) != "" {
		parsed, err := ParseDelimiter(f.Delimiter)
		if err != nil {
			return nil, err
		}
		delim = parsed
	}
	return FromSpecs(delim, f.Rules)
}
