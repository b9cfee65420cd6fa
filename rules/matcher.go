package rules

import (
	"strings"
	"time"
)

// =============================================================================
// RULE MATCHER
// =============================================================================

// RuleMatch is the result of a successful classification.
type RuleMatch struct {
	Rule          NotifiedRule
	MatchedPrefix string
	Code          string // normalized form of the input code
}

// Match classifies a product/service code against the notified rule set
// as of the given date.
//
// The vocabulary is inferred from the code's shape: a six-digit code
// beginning with "99" is a SAC (service) code; four, six or eight digit
// codes otherwise are HSN (goods) codes. Among rules whose prefix set
// contains a prefix of the code, the longest prefix wins, then the
// highest priority.
//
// Counterparty registration state does not gate a notified rule -
// notified-category RCM applies regardless of registration - so the
// GSTIN is accepted for interface symmetry with other classifiers but
// does not affect the outcome.
//
// Returns (nil, false) for malformed codes and for codes with no
// applicable rule: classification is advisory, not an error path.
func (reg *Registry) Match(code, counterpartyGSTIN string, asOf time.Time) (*RuleMatch, bool) {
	_ = counterpartyGSTIN

	normalized, ok := normalizeCode(code)
	if !ok {
		return nil, false
	}

	pool := reg.goods
	if isServiceCode(normalized) {
		pool = reg.services
	}

	var (
		best       *NotifiedRule
		bestPrefix string
	)
	for i := range pool {
		r := &pool[i]
		if !r.ApplicableOn(asOf) {
			continue
		}
		for _, prefix := range r.CodePrefixes {
			if !strings.HasPrefix(normalized, prefix) {
				continue
			}
			if best == nil ||
				len(prefix) > len(bestPrefix) ||
				(len(prefix) == len(bestPrefix) && r.Priority > best.Priority) {
				best = r
				bestPrefix = prefix
			}
		}
	}

	if best == nil {
		return nil, false
	}
	return &RuleMatch{Rule: *best, MatchedPrefix: bestPrefix, Code: normalized}, true
}

// =============================================================================
// CODE NORMALIZATION
// =============================================================================

// normalizeCode strips separators and checks the code against the HSN/SAC
// format: all digits, length 4, 6 or 8.
func normalizeCode(code string) (string, bool) {
	var b strings.Builder
	for _, c := range strings.TrimSpace(code) {
		switch {
		case c >= '0' && c <= '9':
			b.WriteRune(c)
		case c == ' ' || c == '.' || c == '-':
			// separators are tolerated
		default:
			return "", false
		}
	}
	normalized := b.String()
	switch len(normalized) {
	case 4, 6, 8:
		return normalized, true
	}
	return "", false
}

// isServiceCode reports whether a normalized code belongs to the SAC
// (service) vocabulary. All SAC codes are six digits in chapter 99.
func isServiceCode(code string) bool {
	return len(code) == 6 && strings.HasPrefix(code, "99")
}
