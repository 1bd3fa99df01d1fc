// Package classify maps free-text queries to tool intents using ordered
// rule tables.
package classify

import "strings"

type Intent string

// Help is returned when no rule matches.
const Help Intent = "help"

// Predicate tests a normalized query.
type Predicate func(q string) bool

type Rule struct {
	Intent Intent
	Match  Predicate
}

// Table is an ordered rule list. The first matching rule wins, so
// declaration order is part of the table's meaning.
type Table []Rule

func (t Table) Classify(raw string) Intent {
	q := Normalize(raw)
	for _, rule := range t {
		if rule.Match != nil && rule.Match(q) {
			return rule.Intent
		}
	}
	return Help
}

// Intents lists the table's intents in declaration order, without duplicates.
func (t Table) Intents() []Intent {
	seen := make(map[Intent]struct{}, len(t))
	out := make([]Intent, 0, len(t))
	for _, rule := range t {
		if _, ok := seen[rule.Intent]; ok {
			continue
		}
		seen[rule.Intent] = struct{}{}
		out = append(out, rule.Intent)
	}
	return out
}

func Normalize(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Any matches when the query contains at least one of words.
func Any(words ...string) Predicate {
	return func(q string) bool {
		for _, w := range words {
			if strings.Contains(q, w) {
				return true
			}
		}
		return false
	}
}

// All matches when the query contains every word.
func All(words ...string) Predicate {
	return func(q string) bool {
		for _, w := range words {
			if !strings.Contains(q, w) {
				return false
			}
		}
		return len(words) > 0
	}
}

func And(preds ...Predicate) Predicate {
	return func(q string) bool {
		for _, p := range preds {
			if !p(q) {
				return false
			}
		}
		return len(preds) > 0
	}
}

func Or(preds ...Predicate) Predicate {
	return func(q string) bool {
		for _, p := range preds {
			if p(q) {
				return true
			}
		}
		return false
	}
}

// TokensAfter returns the text following the first occurrence of trigger
// immediately followed by one of qualifiers, e.g. "protocol info aave v3"
// yields "aave v3". It returns "" when the phrase is absent or nothing
// follows it.
func TokensAfter(raw, trigger string, qualifiers ...string) string {
	words := strings.Fields(Normalize(raw))
	for i := 0; i+2 < len(words); i++ {
		if words[i] != trigger || !contains(qualifiers, words[i+1]) {
			continue
		}
		return strings.Join(words[i+2:], " ")
	}
	return ""
}

// FirstKnown returns the first id, in ids order, that occurs in the query.
func FirstKnown(raw string, ids []string) (string, bool) {
	q := Normalize(raw)
	for _, id := range ids {
		if id != "" && strings.Contains(q, strings.ToLower(id)) {
			return id, true
		}
	}
	return "", false
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
