package rules

import (
	"time"

	"github.com/shopspring/decimal"
)

// Defaults returns the seed rule set for the commonly notified
// reverse-charge categories. Used to populate an empty rule table on
// first start; production deployments replace it with the maintained
// notification list.
func Defaults() []NotifiedRule {
	gstEpoch := time.Date(2017, time.July, 1, 0, 0, 0, 0, time.UTC)

	return []NotifiedRule{
		{
			ID:            "ntf-13-2017-gta",
			Type:          RuleService,
			CodePrefixes:  []string{"9965", "996791"},
			Description:   "Goods transport agency services",
			GSTRate:       decimal.NewFromInt(5),
			EffectiveFrom: gstEpoch,
			Priority:      10,
			Active:        true,
		},
		{
			ID:            "ntf-13-2017-legal",
			Type:          RuleService,
			CodePrefixes:  []string{"9982"},
			Description:   "Legal services by advocate or firm of advocates",
			GSTRate:       decimal.NewFromInt(18),
			EffectiveFrom: gstEpoch,
			Priority:      10,
			Active:        true,
		},
		{
			ID:            "ntf-13-2017-sponsorship",
			Type:          RuleService,
			CodePrefixes:  []string{"998397"},
			Description:   "Sponsorship services to a body corporate or partnership firm",
			GSTRate:       decimal.NewFromInt(18),
			EffectiveFrom: gstEpoch,
			Priority:      10,
			Active:        true,
		},
		{
			ID:            "ntf-29-2018-security",
			Type:          RuleService,
			CodePrefixes:  []string{"998525"},
			Description:   "Security services supplied by a non body-corporate",
			GSTRate:       decimal.NewFromInt(18),
			EffectiveFrom: time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC),
			Priority:      10,
			Active:        true,
		},
		{
			ID:            "ntf-22-2019-renting-vehicle",
			Type:          RuleService,
			CodePrefixes:  []string{"996601"},
			Description:   "Renting of motor vehicle with operator to a body corporate",
			GSTRate:       decimal.NewFromInt(5),
			EffectiveFrom: time.Date(2019, time.October, 1, 0, 0, 0, 0, time.UTC),
			Priority:      10,
			Active:        true,
		},
		{
			ID:            "ntf-04-2017-cashew",
			Type:          RuleGoods,
			CodePrefixes:  []string{"0801"},
			Description:   "Cashew nuts, not shelled or peeled, from agriculturist",
			GSTRate:       decimal.NewFromInt(5),
			EffectiveFrom: gstEpoch,
			Priority:      10,
			Active:        true,
		},
		{
			ID:            "ntf-04-2017-cotton",
			Type:          RuleGoods,
			CodePrefixes:  []string{"5201"},
			Description:   "Raw cotton from agriculturist",
			GSTRate:       decimal.NewFromInt(5),
			EffectiveFrom: gstEpoch,
			Priority:      10,
			Active:        true,
		},
		{
			ID:            "ntf-04-2017-tobacco",
			Type:          RuleGoods,
			CodePrefixes:  []string{"2401"},
			Description:   "Tobacco leaves from agriculturist",
			GSTRate:       decimal.NewFromInt(5),
			EffectiveFrom: gstEpoch,
			Priority:      10,
			Active:        true,
		},
	}
}
