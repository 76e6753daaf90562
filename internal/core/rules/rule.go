package rules

import "fmt"

// Comparator is the closed set of field comparison modes.
// The authoring UI stores comparators as loose strings; they are resolved
// into this enum once, at load time.
type Comparator string

const (
	Equals      Comparator = "equals"
	NotEquals   Comparator = "not_equals"
	Contains    Comparator = "contains"
	NotContains Comparator = "not_contains"
	Empty       Comparator = "empty"
	NotEmpty    Comparator = "not_empty"
)

// ParseComparator resolves a raw comparator string.
func ParseComparator(s string) (Comparator, error) {
	switch Comparator(s) {
	case Equals, NotEquals, Contains, NotContains, Empty, NotEmpty:
		return Comparator(s), nil
	}
	return "", fmt.Errorf("unknown comparator %q", s)
}

// NeedsTerms reports whether the comparator matches against term values.
// Empty and NotEmpty inspect only the field itself.
func (c Comparator) NeedsTerms() bool {
	return c != Empty && c != NotEmpty
}

// Combinator joins the per-term results of a single rule.
type Combinator string

const (
	And Combinator = "and"
	Or  Combinator = "or"

	// None is required for Empty/NotEmpty, where terms are meaningless.
	None Combinator = ""
)

// ParseCombinator resolves a raw combinator string.
func ParseCombinator(s string) (Combinator, error) {
	switch Combinator(s) {
	case And, Or, None:
		return Combinator(s), nil
	}
	return "", fmt.Errorf("unknown combinator %q", s)
}

// Row is one raw source row, as handed over by the data-access layer.
// Field access never fails: a missing field reads as the empty string.
type Row map[string]string

// Field returns the named field's value, or "" when absent.
func (r Row) Field(name string) string {
	if r == nil {
		return ""
	}
	return r[name]
}

// Rule is a single matching rule over one source column.
//
// Terms are matched individually and joined with Combinator. An And over
// multiple distinct terms on a scalar field can never be true unless the
// terms are duplicates; that degenerate case is legitimate authored input
// and evaluates literally.
type Rule struct {
	SourceColumn string
	Comparator   Comparator
	Terms        []string
	Combinator   Combinator
}

// Validate checks structural completeness of a single rule.
// An empty Terms list for a term comparator is tolerated at evaluation time
// (the rule never matches) but is rejected here so authored files are caught.
func (r Rule) Validate() error {
	if r.SourceColumn == "" {
		return fmt.Errorf("source_column must not be empty")
	}
	if r.Comparator.NeedsTerms() {
		if len(r.Terms) == 0 {
			return fmt.Errorf("comparator %q requires at least one term", r.Comparator)
		}
		if r.Combinator == None {
			return fmt.Errorf("comparator %q requires a combinator", r.Comparator)
		}
	} else if r.Combinator != None {
		return fmt.Errorf("comparator %q does not take a combinator", r.Comparator)
	}
	return nil
}

// GroupItem is one named sub-item of a grouped metric, e.g. one seller.
// Item order is display order and is preserved end to end.
type GroupItem struct {
	Name  string
	Rules []Rule
}

// MetricRuleSet is the immutable configuration of one computed column.
// Exactly one of Scalar or Grouped is populated.
type MetricRuleSet struct {
	// Column is the snapshot column this rule-set computes.
	Column string

	// SourceTable and DateColumn address the raw rows this metric reads.
	SourceTable string
	DateColumn  string

	// RestrictToToday limits attribution to rows whose DateColumn falls
	// within the target day window.
	RestrictToToday bool

	// Backfill enables seeding an empty grouped column from the most recent
	// prior day. It must stay off for columns whose entity lists are curated
	// by hand, so a refresh never clobbers them.
	Backfill bool

	// Scalar rules are AND-ed together as independent row filters.
	Scalar []Rule

	// Grouped items each carry their own rules and produce one entity count.
	Grouped []GroupItem

	// Fingerprint is the SHA-256 of the raw rule-set file, computed at load.
	Fingerprint string
}

// IsGrouped reports whether the rule-set produces an entity list.
func (rs MetricRuleSet) IsGrouped() bool { return rs.Grouped != nil }

// Item returns the group item with the given name, preserving authored order
// semantics (first match wins).
func (rs MetricRuleSet) Item(name string) (GroupItem, bool) {
	for _, item := range rs.Grouped {
		if item.Name == name {
			return item, true
		}
	}
	return GroupItem{}, false
}
