// Package coupling checks that narrative and price stay consistent: headline
// direction against realized moves, emitted expectations against applied
// prices, and phase transitions against each phenomenon's table.
package coupling

import (
	"regexp"
	"strings"
)

// Category is a headline direction class.
type Category struct {
	Name      string
	Direction int
	// MinMagnitude and MaxMagnitude bound the move a keyword implies.
	MinMagnitude float64
	MaxMagnitude float64
	// MaxWrong is the largest opposite move tolerated before flagging.
	MaxWrong float64
	Keywords []string
}

// Categories are checked in order; the first keyword match wins.
var Categories = []Category{
	{
		Name: "bearish_strong", Direction: -1, MinMagnitude: 0.03, MaxMagnitude: 0.35, MaxWrong: 0.02,
		Keywords: []string{"CRASHES", "PLUNGES", "COLLAPSES", "BREAKS DOWN", "BREAKDOWN",
			"CAPITULATES", "TANKS", "CRATERS", "DECIMATED", "HAMMERED",
			"PLUMMETS", "TUMBLES", "NOSEDIVES", "NEW LOWS", "FRAUD"},
	},
	{
		Name: "bearish_moderate", Direction: -1, MinMagnitude: 0.005, MaxMagnitude: 0.15, MaxWrong: 0.03,
		Keywords: []string{"FALLS", "DROPS", "DECLINES", "SLIPS", "WEAKENS", "FADES",
			"SELLS OFF", "UNDER PRESSURE", "LOSES", "RETREATS", "SLIDES",
			"LOWER", "FAILS", "TRAP", "DECLINE", "FIZZLES"},
	},
	{
		Name: "bullish_strong", Direction: 1, MinMagnitude: 0.03, MaxMagnitude: 0.35, MaxWrong: 0.02,
		Keywords: []string{"SURGES", "SOARS", "ROCKETS", "BREAKS OUT", "BREAKOUT",
			"EXPLODES", "SKYROCKETS", "MOONS", "BLASTS OFF", "SPIKES"},
	},
	{
		Name: "bullish_moderate", Direction: 1, MinMagnitude: 0.005, MaxMagnitude: 0.15, MaxWrong: 0.06,
		Keywords: []string{"RISES", "GAINS", "CLIMBS", "ADVANCES", "RALLIES",
			"RECOVERS", "BOUNCES", "REBOUNDS", "STRENGTHENS", "HIGHER",
			"CONFIRMATION", "HOLDS", "RECOVERY", "REVERSAL"},
	},
}

// Classification is the result of matching a headline.
type Classification struct {
	Category Category
	Keyword  string
}

var (
	bullishContext = []string{"PUT/CALL RATIO", "P/C RATIO", "PUT-CALL", "SHORT INTEREST SOARS", "SHORTS SOAR"}
	splitReversal  = []string{"T+3", "POST-SPLIT"}
	givingBack     = []string{"GIVES BACK", "HOLD BAGS", "HOLD THE BAG"}

	keywordPatterns = map[string]*regexp.Regexp{}
)

func init() {
	for _, c := range Categories {
		for _, kw := range c.Keywords {
			keywordPatterns[kw] = regexp.MustCompile(`\b` + regexp.QuoteMeta(kw) + `\b`)
		}
	}
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

func categoryByName(name string) Category {
	for _, c := range Categories {
		if c.Name == name {
			return c
		}
	}
	return Category{}
}

// Classify returns the implied direction of a headline, or false when no
// keyword matches. Keywords match whole words only.
func Classify(headline string) (Classification, bool) {
	upper := strings.ToUpper(headline)
	hasBullishContext := containsAny(upper, bullishContext)
	isSplitReversal := containsAny(upper, splitReversal)
	isGivingBack := containsAny(upper, givingBack)

	for _, c := range Categories {
		for _, kw := range c.Keywords {
			if !keywordPatterns[kw].MatchString(upper) {
				continue
			}
			if hasBullishContext && c.Direction < 0 {
				continue
			}
			bearish := categoryByName("bearish_moderate")
			switch {
			case kw == "SOARS" && strings.Contains(upper, "SHORT INTEREST"):
				return Classification{Category: bearish, Keyword: kw}, true
			case kw == "REVERSAL" && isSplitReversal:
				return Classification{Category: bearish, Keyword: kw}, true
			case (kw == "GAINS" || kw == "HOLDS") && isGivingBack:
				return Classification{Category: bearish, Keyword: kw}, true
			}
			return Classification{Category: c, Keyword: kw}, true
		}
	}
	return Classification{}, false
}
