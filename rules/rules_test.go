package rules_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rcm-engine/rules"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newDefaultRegistry(t *testing.T) *rules.Registry {
	reg, err := rules.NewRegistry(rules.Defaults())
	require.NoError(t, err)
	return reg
}

var asOf2024 = time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)

// =============================================================================
// REGISTRY CONSTRUCTION
// =============================================================================

func TestNewRegistry_RejectsRuleWithoutPrefixes(t *testing.T) {
	// GIVEN: A rule with an empty prefix list
	// WHEN: Building the registry
	// THEN: Construction fails rather than loading a rule that can never match

	_, err := rules.NewRegistry([]rules.NotifiedRule{{
		ID:            "bad-rule",
		Type:          rules.RuleService,
		GSTRate:       decimal.NewFromInt(18),
		EffectiveFrom: asOf2024,
		Active:        true,
	}})
	assert.Error(t, err)
}

func TestNewRegistry_RejectsNegativeRate(t *testing.T) {
	_, err := rules.NewRegistry([]rules.NotifiedRule{{
		ID:            "bad-rate",
		Type:          rules.RuleGoods,
		CodePrefixes:  []string{"0801"},
		GSTRate:       decimal.NewFromInt(-5),
		EffectiveFrom: asOf2024,
		Active:        true,
	}})
	assert.Error(t, err)
}

func TestNewRegistry_RejectsInvertedEffectiveWindow(t *testing.T) {
	before := asOf2024.AddDate(-1, 0, 0)
	_, err := rules.NewRegistry([]rules.NotifiedRule{{
		ID:            "bad-window",
		Type:          rules.RuleService,
		CodePrefixes:  []string{"9982"},
		GSTRate:       decimal.NewFromInt(18),
		EffectiveFrom: asOf2024,
		EffectiveTo:   &before,
		Active:        true,
	}})
	assert.Error(t, err)
}

// =============================================================================
// CLASSIFICATION
// =============================================================================

func TestMatch_LegalServices(t *testing.T) {
	// GIVEN: The default rule set
	// WHEN: Classifying the legal services SAC code
	// THEN: The legal services rule matches at 18%

	reg := newDefaultRegistry(t)

	match, ok := reg.Match("998211", "29AAAAA0000A1Z5", asOf2024)
	require.True(t, ok)
	assert.Equal(t, "ntf-13-2017-legal", match.Rule.ID)
	assert.True(t, match.Rule.GSTRate.Equal(decimal.NewFromInt(18)))
	assert.Equal(t, "9982", match.MatchedPrefix)
}

func TestMatch_GoodsCode(t *testing.T) {
	// GIVEN: The default rule set
	// WHEN: Classifying a raw cotton HSN code (does not start with 99)
	// THEN: The goods rule matches, not any service rule

	reg := newDefaultRegistry(t)

	match, ok := reg.Match("52010020", "", asOf2024)
	require.True(t, ok)
	assert.Equal(t, "ntf-04-2017-cotton", match.Rule.ID)
}

func TestMatch_LongestPrefixWins(t *testing.T) {
	// GIVEN: Two service rules whose prefixes both cover the code
	// WHEN: Classifying
	// THEN: The rule with the longer prefix wins regardless of priority

	reg, err := rules.NewRegistry([]rules.NotifiedRule{
		{
			ID: "short", Type: rules.RuleService, CodePrefixes: []string{"9965"},
			GSTRate: decimal.NewFromInt(5), EffectiveFrom: asOf2024.AddDate(-1, 0, 0),
			Priority: 100, Active: true,
		},
		{
			ID: "long", Type: rules.RuleService, CodePrefixes: []string{"996512"},
			GSTRate: decimal.NewFromInt(12), EffectiveFrom: asOf2024.AddDate(-1, 0, 0),
			Priority: 1, Active: true,
		},
	})
	require.NoError(t, err)

	match, ok := reg.Match("996512", "", asOf2024)
	require.True(t, ok)
	assert.Equal(t, "long", match.Rule.ID)
}

func TestMatch_PriorityBreaksPrefixTies(t *testing.T) {
	// GIVEN: Two rules carrying the same prefix
	// WHEN: Classifying
	// THEN: The higher-priority rule wins, deterministically

	reg, err := rules.NewRegistry([]rules.NotifiedRule{
		{
			ID: "low", Type: rules.RuleService, CodePrefixes: []string{"9982"},
			GSTRate: decimal.NewFromInt(18), EffectiveFrom: asOf2024.AddDate(-1, 0, 0),
			Priority: 1, Active: true,
		},
		{
			ID: "high", Type: rules.RuleService, CodePrefixes: []string{"9982"},
			GSTRate: decimal.NewFromInt(18), EffectiveFrom: asOf2024.AddDate(-1, 0, 0),
			Priority: 50, Active: true,
		},
	})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		match, ok := reg.Match("998213", "", asOf2024)
		require.True(t, ok)
		assert.Equal(t, "high", match.Rule.ID)
	}
}

func TestMatch_FutureRuleNeverMatches(t *testing.T) {
	// GIVEN: A rule effective only from next year
	// WHEN: Classifying as of today
	// THEN: No match

	reg, err := rules.NewRegistry([]rules.NotifiedRule{{
		ID: "future", Type: rules.RuleService, CodePrefixes: []string{"9982"},
		GSTRate: decimal.NewFromInt(18), EffectiveFrom: asOf2024.AddDate(1, 0, 0),
		Active: true,
	}})
	require.NoError(t, err)

	_, ok := reg.Match("998213", "", asOf2024)
	assert.False(t, ok)
}

func TestMatch_ExpiredRuleNeverMatches(t *testing.T) {
	// GIVEN: A rule whose effective window closed last year
	// WHEN: Classifying as of today
	// THEN: No match; effectiveTo is exclusive

	ended := asOf2024.AddDate(0, -6, 0)
	reg, err := rules.NewRegistry([]rules.NotifiedRule{{
		ID: "expired", Type: rules.RuleService, CodePrefixes: []string{"9982"},
		GSTRate: decimal.NewFromInt(18), EffectiveFrom: asOf2024.AddDate(-2, 0, 0),
		EffectiveTo: &ended, Active: true,
	}})
	require.NoError(t, err)

	_, ok := reg.Match("998213", "", asOf2024)
	assert.False(t, ok)

	// On the boundary itself the rule no longer applies
	_, ok = reg.Match("998213", "", ended)
	assert.False(t, ok)
}

func TestMatch_InactiveRuleNeverMatches(t *testing.T) {
	reg, err := rules.NewRegistry([]rules.NotifiedRule{{
		ID: "inactive", Type: rules.RuleService, CodePrefixes: []string{"9982"},
		GSTRate: decimal.NewFromInt(18), EffectiveFrom: asOf2024.AddDate(-1, 0, 0),
		Active: false,
	}})
	require.NoError(t, err)

	_, ok := reg.Match("998213", "", asOf2024)
	assert.False(t, ok)
}

func TestMatch_VocabularyPartition(t *testing.T) {
	// GIVEN: A goods rule whose prefix happens to start with 99
	// WHEN: Classifying a six-digit 99-prefixed code
	// THEN: The code is read as SAC and never matched against goods rules

	reg, err := rules.NewRegistry([]rules.NotifiedRule{{
		ID: "goods-99", Type: rules.RuleGoods, CodePrefixes: []string{"99"},
		GSTRate: decimal.NewFromInt(5), EffectiveFrom: asOf2024.AddDate(-1, 0, 0),
		Active: true,
	}})
	require.NoError(t, err)

	_, ok := reg.Match("998213", "", asOf2024)
	assert.False(t, ok)
}

// =============================================================================
// CODE NORMALIZATION
// =============================================================================

func TestMatch_ToleratesSeparators(t *testing.T) {
	reg := newDefaultRegistry(t)

	for _, code := range []string{"9982 11", "9982.11", "9982-11"} {
		match, ok := reg.Match(code, "", asOf2024)
		require.True(t, ok, "code %q should classify", code)
		assert.Equal(t, "998211", match.Code)
	}
}

func TestMatch_MalformedCodesYieldNoMatch(t *testing.T) {
	// GIVEN: Codes of the wrong length or with non-digit content
	// WHEN: Classifying
	// THEN: No match, no error; classification is advisory

	reg := newDefaultRegistry(t)

	for _, code := range []string{"", "99", "99821", "998x11", "9982113", "123456789"} {
		_, ok := reg.Match(code, "", asOf2024)
		assert.False(t, ok, "code %q should not classify", code)
	}
}

func TestMatch_IgnoresCounterpartyRegistration(t *testing.T) {
	// GIVEN: The same code with and without a counterparty GSTIN
	// WHEN: Classifying
	// THEN: The result is identical; notified-category liability does not
	//       depend on the supplier's registration

	reg := newDefaultRegistry(t)

	withGSTIN, ok1 := reg.Match("998211", "29AAAAA0000A1Z5", asOf2024)
	without, ok2 := reg.Match("998211", "", asOf2024)
	require.True(t, ok1)
	require.True(t, ok2)
	assert.Equal(t, withGSTIN.Rule.ID, without.Rule.ID)
}
