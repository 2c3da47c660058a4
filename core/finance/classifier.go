package finance

import (
	"context"

	"github.com/pkg/errors"

	"github.com/daruliman/pondok/core"
)

// ErrMappingNotFound is returned by a MappingProvider when no mapping is
// configured for the given category or subcategory.
var ErrMappingNotFound = errors.New("category mapping not found")

// MappingKind is the configured allocation behavior of a category.
type MappingKind string

const (
	MappingNotAllocated MappingKind = "not_allocated"
	MappingAllResidents MappingKind = "all_residents"
	MappingSelect       MappingKind = "select_students"
)

// CategoryMapping is one configurable category→behavior row.
type CategoryMapping struct {
	Kind   MappingKind `json:"kind" db:"kind"`
	Pillar Pillar      `json:"pillar" db:"pillar"`
	Active bool        `json:"active" db:"active"`
}

// MappingProvider looks up configured category mappings. Implementations
// live in storage; the classifier treats lookups as best-effort.
type MappingProvider interface {
	SubcategoryMapping(ctx context.Context, subcategory string) (CategoryMapping, error)
	CategoryMapping(ctx context.Context, category string) (CategoryMapping, error)
}

// RuleSource records which lookup path produced a rule, so callers (and
// tests) can tell a configured mapping from the static fallback table.
type RuleSource string

const (
	RuleConfigured RuleSource = "configured"
	RuleFallback   RuleSource = "fallback"
)

// AllocationRule is the resolved allocation behavior for one expense.
type AllocationRule struct {
	Kind              AllocationKind `json:"kind"`
	Pillar            Pillar         `json:"pillar"`
	IsRealExpense     bool           `json:"is_real_expense"`
	RequiresSelection bool           `json:"requires_selection"`
	AutoGenerate      bool           `json:"auto_generate"`
	Source            RuleSource     `json:"source"`
}

// fallbackRules is the static table used when no mapping is configured or
// the mapping store is unreachable.
var fallbackRules = map[string]AllocationRule{
	"Internal Education": {
		Kind:          AllocationNone,
		Pillar:        PillarInternalEducation,
		IsRealExpense: true,
	},
	"Formal Education": {
		Kind:              AllocationDirect,
		Pillar:            PillarFormalEducation,
		IsRealExpense:     true,
		RequiresSelection: true,
	},
	"Student Operations & Meals": {
		Kind:          AllocationOverhead,
		Pillar:        PillarHousingMeals,
		IsRealExpense: true,
		AutoGenerate:  true,
	},
	"Direct Student Aid": {
		Kind:              AllocationDirect,
		Pillar:            PillarDirectAid,
		IsRealExpense:     true,
		RequiresSelection: true,
	},
	"Foundation Operations": {
		Kind:          AllocationNone,
		IsRealExpense: true,
	},
}

type Classifier struct {
	provider MappingProvider
	logger   core.Logger
}

func NewClassifier(provider MappingProvider, logger core.Logger) *Classifier {
	return &Classifier{provider: provider, logger: logger}
}

// Resolve maps a category/subcategory pair to an AllocationRule.
// Priority: subcategory mapping, category mapping, static fallback table,
// safe default. Lookup failures fall back instead of failing the caller:
// posting an expense must stay available even when the mapping store is
// down, at the cost of possibly using a stale rule.
func (c *Classifier) Resolve(ctx context.Context, category, subcategory string) AllocationRule {
	if c.provider != nil {
		if subcategory != "" {
			if m, err := c.provider.SubcategoryMapping(ctx, subcategory); err == nil {
				if m.Active {
					return ruleFromMapping(m)
				}
			} else if errors.Cause(err) != ErrMappingNotFound {
				c.logger.Warn("subcategory mapping lookup failed, using fallback table", err)
				return fallbackRule(category)
			}
		}
		if m, err := c.provider.CategoryMapping(ctx, category); err == nil {
			if m.Active {
				return ruleFromMapping(m)
			}
		} else if errors.Cause(err) != ErrMappingNotFound {
			c.logger.Warn("category mapping lookup failed, using fallback table", err)
		}
	}
	return fallbackRule(category)
}

func ruleFromMapping(m CategoryMapping) AllocationRule {
	rule := AllocationRule{IsRealExpense: true, Source: RuleConfigured}
	switch m.Kind {
	case MappingAllResidents:
		rule.Kind = AllocationOverhead
		rule.Pillar = m.Pillar
		rule.AutoGenerate = true
	case MappingSelect:
		rule.Kind = AllocationDirect
		rule.Pillar = m.Pillar
		rule.RequiresSelection = true
	default:
		rule.Kind = AllocationNone
	}
	return rule
}

func fallbackRule(category string) AllocationRule {
	if rule, ok := fallbackRules[category]; ok {
		rule.Source = RuleFallback
		return rule
	}
	return AllocationRule{Kind: AllocationNone, IsRealExpense: true, Source: RuleFallback}
}
