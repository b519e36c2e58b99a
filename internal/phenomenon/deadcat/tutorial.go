package deadcat

import (
	"fmt"

	"phenomsim/internal/news"
	"phenomsim/internal/phenomenon"
)

// TutorialHint maps a news item's tags to trading guidance. It reads only the
// item and returns nil for items this engine did not produce.
func (e *Engine) TutorialHint(it news.Item) *phenomenon.Hint {
	return tutorialHint(it)
}

func tutorialHint(it news.Item) *phenomenon.Hint {
	if it.Source != string(Kind) {
		return nil
	}
	switch it.Kind {
	case NewsCrash:
		return &phenomenon.Hint{
			Type:        "CRASH - DO NOT BUY (~30% base probability)",
			Description: "A bounce is coming. Watch volume trend, retracement and 3+ up days.",
			Implication: "30% base reversal rate. Strong signals can lift it to 85%.",
			Action:      "Do not buy the dip. Wait for signals.",
			Timing:      "Next: bounce phase starts in 2-4 days",
			Catalyst:    "A reversal must break and hold above 61.8% Fibonacci on rising volume",
		}
	case NewsBounce:
		return bounceHint(it)
	case NewsReversalForming:
		return &phenomenon.Hint{
			Type:        "REVERSAL FORMING - PREPARE (~65% probability)",
			Description: "Base building. Watch for a breakout on high volume above 61.8%.",
			Implication: "~65% probability. Retracement held above 50% on steady volume.",
			Action:      "Prepare to buy on the breakout, not before.",
			Timing:      "Next: breakout is the entry signal",
			Catalyst:    "Needs a 61.8% break, a hold, and rising volume",
		}
	case NewsReversalConfirmed:
		return &phenomenon.Hint{
			Type:        "BREAKOUT - ENTRY SIGNAL (85% probability)",
			Description: "Target: 60-90% recovery of crash losses",
			Implication: "High-volume breakout above resistance.",
			Action:      "Consider buying. Set a stop below the breakout level.",
			Timing:      "Next: recovery phase. Take profits at target.",
			Catalyst:    "61.8% break, hold and rising volume all confirmed",
		}
	case NewsCrashResolution:
		return &phenomenon.Hint{
			Type:        "CAPITULATION - NEUTRAL (~40% probability)",
			Description: "The stock may stabilize here. No rush.",
			Implication: "~40% chance of a new setup forming. Selling is exhausted.",
			Action:      "Wait for a new setup. This cycle is over.",
			Timing:      "Lesson: patience beats FOMO",
			Catalyst:    "Only trade setups that meet the full reversal criteria",
		}
	case NewsRecovery, NewsRecoveryComplete:
		return &phenomenon.Hint{
			Type:        "RECOVERY - PROFIT TAKING (pattern confirmed)",
			Description: "Nearing target. Consider taking profits.",
			Implication: "The reversal played out as the signals indicated.",
			Action:      "If holding, take profits. If not, wait for the next setup.",
			Timing:      "Lesson: waiting for confirmation avoided the trap",
			Catalyst:    "61.8% retracement on rising volume predicted the recovery",
		}
	}
	return nil
}

func bounceHint(it news.Item) *phenomenon.Hint {
	switch it.Meta.BouncePhase {
	case BounceStarting:
		vol := it.Meta.VolumeIndicator
		if vol == "" {
			vol = "trend"
		}
		return &phenomenon.Hint{
			Type:        "BOUNCE STARTED - OBSERVE (~35% probability)",
			Description: "Volume " + vol + ". Needs >50% retracement and rising volume.",
			Implication: "Each confirming signal adds 10-15%.",
			Action:      "Wait. Do not buy yet.",
			Timing:      "Next: outcome is decided when the bounce ends",
			Catalyst:    "Break and hold above 61.8% on rising volume gives 85% odds",
		}
	case BounceWarning:
		return &phenomenon.Hint{
			Type:        "WARNING - TRAP LIKELY (~30% probability)",
			Description: "Declining volume below 50% retracement is the classic trap setup.",
			Implication: "~30% reversal chance. Declining volume is bearish.",
			Action:      "Do not buy. Exit if holding.",
			Timing:      "Next: likely failure, decline, then maybe another bounce",
			Catalyst:    "Missing: rising volume and a 61.8% break",
		}
	case BounceFailed:
		return &phenomenon.Hint{
			Type:        "TRAP CONFIRMED - STAY AWAY (<20% probability)",
			Description: "More downside coming. Each bounce gets weaker.",
			Implication: "<20% reversal now. The signals were weak.",
			Action:      "Do not average down.",
			Timing:      "Next: decline, then a weaker bounce or capitulation",
			Catalyst:    "Without 61.8% and rising volume, 70% of bounces are traps",
		}
	case BounceRepeatAttempt:
		n := it.Meta.BounceNumber
		if n < 1 {
			n = 1
		}
		odds := 30 - (n-1)*10
		if odds < 10 {
			odds = 10
		}
		return &phenomenon.Hint{
			Type:        fmt.Sprintf("BOUNCE #%d - VERY RISKY (~%d%% probability)", n, odds),
			Description: "Volume very thin. Smart money is gone.",
			Implication: fmt.Sprintf("~%d%% at best. Each failure cuts the odds by 10%%.", odds),
			Action:      "Do not buy. Wait for capitulation.",
			Timing:      "Next: likely another failure, then capitulation",
			Catalyst:    "Multiple bounces rule out a clean reversal",
		}
	}
	return nil
}
