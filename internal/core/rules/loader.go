package rules

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// RuleSetRepository defines the interface for loading metric rule-sets.
type RuleSetRepository interface {
	// Get returns the rule-set computing the given column, or an error if not found.
	Get(ctx context.Context, column string) (*MetricRuleSet, error)

	// RuleSets returns all loaded rule-sets in deterministic (file name) order.
	RuleSets() []MetricRuleSet
}

// rawRule is the on-disk YAML shape of one matching rule.
type rawRule struct {
	SourceColumn string   `yaml:"source_column"`
	Comparator   string   `yaml:"comparator"`
	Combinator   string   `yaml:"combinator"`
	Terms        []string `yaml:"terms"`
}

// rawGroupItem is the on-disk YAML shape of one grouped sub-item.
type rawGroupItem struct {
	Name  string    `yaml:"name"`
	Rules []rawRule `yaml:"rules"`
}

// rawRuleSet is the on-disk YAML shape of one rule-set file.
// Exactly one of scalar / grouped must be present; the ambiguity is resolved
// here, once, into the typed MetricRuleSet.
type rawRuleSet struct {
	Column          string         `yaml:"column"`
	SourceTable     string         `yaml:"source_table"`
	DateColumn      string         `yaml:"date_column"`
	RestrictToToday bool           `yaml:"restrict_to_today"`
	Backfill        bool           `yaml:"backfill"`
	Scalar          []rawRule      `yaml:"scalar"`
	Grouped         []rawGroupItem `yaml:"grouped"`
}

// FileSystemRuleSetRepository loads metric rule-sets from *.yaml files in a
// directory. Each file contains exactly one rule-set. Rule-sets are loaded
// once at startup and cached in memory; changing a file requires a restart.
type FileSystemRuleSetRepository struct {
	dir      string
	byColumn map[string]MetricRuleSet
	ordered  []MetricRuleSet
}

// NewFileSystemRuleSetRepository creates a repository and eagerly loads all
// rule-sets from dir. Returns an error if any file is malformed.
func NewFileSystemRuleSetRepository(dir string) (*FileSystemRuleSetRepository, error) {
	repo := &FileSystemRuleSetRepository{
		dir:      dir,
		byColumn: make(map[string]MetricRuleSet),
	}
	if err := repo.load(); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *FileSystemRuleSetRepository) load() error {
	info, err := os.Stat(r.dir)
	if os.IsNotExist(err) {
		return nil // no rule dir — valid (zero metrics configured)
	}
	if err != nil {
		return fmt.Errorf("metric rule dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("metric rule path %q is not a directory", r.dir)
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("reading metric rule dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || (!strings.HasSuffix(e.Name(), ".yaml") && !strings.HasSuffix(e.Name(), ".yml")) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(r.dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading rule-set file %s: %w", path, err)
		}

		var raw rawRuleSet
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("parsing rule-set file %s: %w", path, err)
		}
		if raw.Column == "" {
			continue // skip empty / comment-only files
		}

		rs, err := raw.resolve()
		if err != nil {
			return fmt.Errorf("rule-set %q (%s): %w", raw.Column, path, err)
		}
		rs.Fingerprint = fmt.Sprintf("%x", sha256.Sum256(data))

		if _, exists := r.byColumn[rs.Column]; exists {
			return fmt.Errorf("rule-set %q: duplicate column (check multiple YAML files)", rs.Column)
		}
		r.byColumn[rs.Column] = rs
		r.ordered = append(r.ordered, rs)
	}
	return nil
}

// resolve turns the loose on-disk shape into the closed typed model,
// rejecting anything that does not fit.
func (raw rawRuleSet) resolve() (MetricRuleSet, error) {
	if raw.SourceTable == "" {
		return MetricRuleSet{}, fmt.Errorf("source_table must not be empty")
	}
	if raw.RestrictToToday && raw.DateColumn == "" {
		return MetricRuleSet{}, fmt.Errorf("date_column is required when restrict_to_today is set")
	}
	if len(raw.Scalar) > 0 && len(raw.Grouped) > 0 {
		return MetricRuleSet{}, fmt.Errorf("scalar and grouped are mutually exclusive")
	}
	if len(raw.Scalar) == 0 && len(raw.Grouped) == 0 {
		return MetricRuleSet{}, fmt.Errorf("one of scalar or grouped is required")
	}
	if raw.Backfill && len(raw.Grouped) == 0 {
		return MetricRuleSet{}, fmt.Errorf("backfill applies only to grouped rule-sets")
	}

	rs := MetricRuleSet{
		Column:          raw.Column,
		SourceTable:     raw.SourceTable,
		DateColumn:      raw.DateColumn,
		RestrictToToday: raw.RestrictToToday,
		Backfill:        raw.Backfill,
	}

	for i, rr := range raw.Scalar {
		rule, err := rr.resolve()
		if err != nil {
			return MetricRuleSet{}, fmt.Errorf("scalar rule %d: %w", i, err)
		}
		rs.Scalar = append(rs.Scalar, rule)
	}

	seen := make(map[string]struct{}, len(raw.Grouped))
	for _, item := range raw.Grouped {
		if item.Name == "" {
			return MetricRuleSet{}, fmt.Errorf("grouped item with empty name")
		}
		if _, dup := seen[item.Name]; dup {
			return MetricRuleSet{}, fmt.Errorf("grouped item %q: duplicate name", item.Name)
		}
		seen[item.Name] = struct{}{}

		gi := GroupItem{Name: item.Name}
		for i, rr := range item.Rules {
			rule, err := rr.resolve()
			if err != nil {
				return MetricRuleSet{}, fmt.Errorf("item %q rule %d: %w", item.Name, i, err)
			}
			gi.Rules = append(gi.Rules, rule)
		}
		rs.Grouped = append(rs.Grouped, gi)
	}
	return rs, nil
}

func (raw rawRule) resolve() (Rule, error) {
	cmp, err := ParseComparator(raw.Comparator)
	if err != nil {
		return Rule{}, err
	}
	comb, err := ParseCombinator(raw.Combinator)
	if err != nil {
		return Rule{}, err
	}
	rule := Rule{
		SourceColumn: raw.SourceColumn,
		Comparator:   cmp,
		Terms:        raw.Terms,
		Combinator:   comb,
	}
	if err := rule.Validate(); err != nil {
		return Rule{}, err
	}
	return rule, nil
}

// Get returns the rule-set computing the given column, or an error if not found.
func (r *FileSystemRuleSetRepository) Get(_ context.Context, column string) (*MetricRuleSet, error) {
	rs, ok := r.byColumn[column]
	if !ok {
		return nil, fmt.Errorf("metric rule-set for column %q not found", column)
	}
	return &rs, nil
}

// RuleSets returns all loaded rule-sets in deterministic (file name) order.
func (r *FileSystemRuleSetRepository) RuleSets() []MetricRuleSet {
	out := make([]MetricRuleSet, len(r.ordered))
	copy(out, r.ordered)
	return out
}
