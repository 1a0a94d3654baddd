// Package textnorm turns irregular log lines into delimited fields.
//
// A Normalizer applies an ordered, immutable list of rules to every line.
// The default list strips the outermost double quotes, collapses runs of
// whitespace and tabs into the delimiter, tightens spaced pipes and rewrites
// colons as equals signs:
//
//	n := textnorm.Default()
//	n.Normalize(`"a   b|c"`) // "a;b|c"
//	n.Fields(`a   b|c`)      // []string{"a", "b|c"}
//
// Rules can also be supplied as data (RuleSpec) and loaded from YAML, in
// which case the order of the list is the order of application.
package textnorm
