package rules

import "strings"

// Evaluate decides whether a single rule matches a row.
//
// Equals/NotEquals compare the raw field value case-sensitively per term.
// Contains/NotContains do a case-insensitive substring test per term.
// Empty is true iff the field is missing or whitespace-only; NotEmpty is its
// exact negation. Per-term results are joined with the rule's combinator.
//
// A term comparator with zero terms never matches. Missing fields read as ""
// and are never an error.
func Evaluate(row Row, rule Rule) bool {
	value := row.Field(rule.SourceColumn)

	switch rule.Comparator {
	case Empty:
		return isEmpty(value)
	case NotEmpty:
		return !isEmpty(value)
	}

	if len(rule.Terms) == 0 {
		return false
	}

	match := func(term string) bool {
		switch rule.Comparator {
		case Equals:
			return value == term
		case NotEquals:
			return value != term
		case Contains:
			return containsFold(value, term)
		case NotContains:
			return !containsFold(value, term)
		}
		return false
	}

	if rule.Combinator == And {
		for _, term := range rule.Terms {
			if !match(term) {
				return false
			}
		}
		return true
	}

	// Or is the default join for term comparators.
	for _, term := range rule.Terms {
		if match(term) {
			return true
		}
	}
	return false
}

// MatchesAll reports whether a row satisfies every rule in the list.
// Rules within one rule-set act as independent AND-ed filters.
func MatchesAll(row Row, ruleList []Rule) bool {
	for _, rule := range ruleList {
		if !Evaluate(row, rule) {
			return false
		}
	}
	return true
}

func isEmpty(value string) bool {
	return strings.TrimSpace(value) == ""
}

func containsFold(value, term string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(term))
}
