/*
Package rules implements the notified-category rule registry and matcher.

PURPOSE:
  Certain categories of goods and services are notified under the reverse
  charge mechanism: the recipient, not the supplier, is liable for the tax.
  This package holds those classification rules and answers one question:
  given a product/service code and a date, which notified rule (if any)
  applies, and at what rate?

INVARIANTS:
  1. IMMUTABLE: The registry is built once at load time. There is no
     runtime mutation - a rule change is a reload, never an edit.
  2. PARTITIONED: Service rules match only SAC codes, goods rules match
     only HSN codes. A code is never matched against the wrong vocabulary.
  3. APPLICABILITY: A rule applies only if it is active and the evaluation
     date falls within [EffectiveFrom, EffectiveTo).

MATCHING:
  Longest code prefix wins; among prefix ties, highest priority wins.
  Matching is deterministic: the same code and date always select the
  same rule. Classification is advisory - malformed codes yield no match,
  not an error.

SEE ALSO:
  - matcher.go: The matching algorithm
  - defaults.go: The seed rule set
*/
package rules

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/rcm-engine/gst"
)

// =============================================================================
// NOTIFIED RULE
// =============================================================================

// RuleType partitions rules by code vocabulary.
type RuleType string

const (
	RuleService RuleType = "SERVICE" // matched against SAC codes
	RuleGoods   RuleType = "GOODS"   // matched against HSN codes
)

// NotifiedRule is one reverse-charge notification entry. Immutable once
// loaded into a Registry.
type NotifiedRule struct {
	ID            string
	Type          RuleType
	CodePrefixes  []string
	Description   string
	GSTRate       decimal.Decimal // percent, non-negative
	EffectiveFrom time.Time
	EffectiveTo   *time.Time // nil = open-ended
	Priority      int        // higher wins among equal-length prefix ties
	Active        bool
}

// ApplicableOn reports whether the rule is in force on the given date:
// active, and asOf within [EffectiveFrom, EffectiveTo).
func (r NotifiedRule) ApplicableOn(asOf time.Time) bool {
	if !r.Active {
		return false
	}
	if asOf.Before(r.EffectiveFrom) {
		return false
	}
	if r.EffectiveTo != nil && !asOf.Before(*r.EffectiveTo) {
		return false
	}
	return true
}

// =============================================================================
// REGISTRY
// =============================================================================

// Registry holds the loaded rule set, partitioned by vocabulary.
// Read-only after construction; safe for concurrent use.
type Registry struct {
	services []NotifiedRule
	goods    []NotifiedRule
}

// NewRegistry validates and loads a rule set. Rules with a negative rate,
// no prefixes, or an effective window that ends before it starts are
// rejected: a bad rule silently not matching would be worse than failing
// the load.
func NewRegistry(ruleSet []NotifiedRule) (*Registry, error) {
	reg := &Registry{}
	for _, r := range ruleSet {
		if r.ID == "" {
			return nil, gst.Invalid("rule.id", "must not be empty")
		}
		if r.Type != RuleService && r.Type != RuleGoods {
			return nil, gst.Invalid("rule.type", "must be SERVICE or GOODS")
		}
		if len(r.CodePrefixes) == 0 {
			return nil, gst.Invalid("rule.codePrefixes", "at least one prefix required")
		}
		if r.GSTRate.IsNegative() {
			return nil, gst.Invalid("rule.gstRate", "must be non-negative")
		}
		if r.EffectiveTo != nil && r.EffectiveTo.Before(r.EffectiveFrom) {
			return nil, gst.Invalid("rule.effectiveTo", "must not precede effectiveFrom")
		}
		r.CodePrefixes = append([]string(nil), r.CodePrefixes...)
		switch r.Type {
		case RuleService:
			reg.services = append(reg.services, r)
		case RuleGoods:
			reg.goods = append(reg.goods, r)
		}
	}
	return reg, nil
}

// Rules returns a copy of all loaded rules.
func (reg *Registry) Rules() []NotifiedRule {
	out := make([]NotifiedRule, 0, len(reg.services)+len(reg.goods))
	out = append(out, reg.services...)
	out = append(out, reg.goods...)
	return out
}

// Len returns the number of loaded rules.
func (reg *Registry) Len() int {
	return len(reg.services) + len(reg.goods)
}
