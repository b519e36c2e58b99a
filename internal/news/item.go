package news

import (
	"fmt"

	"github.com/google/uuid"
)

// Sentiment tags the direction a news item implies.
type Sentiment string

// Sentiment values.
const (
	Positive Sentiment = "positive"
	Negative Sentiment = "negative"
	Neutral  Sentiment = "neutral"
)

// Sign returns +1, -1 or 0.
func (s Sentiment) Sign() int {
	switch s {
	case Positive:
		return 1
	case Negative:
		return -1
	default:
		return 0
	}
}

// Metadata is the structured payload consumed by the tutorial layer.
type Metadata struct {
	BouncePhase      string  `json:"bounce_phase,omitempty"`
	BounceNumber     int     `json:"bounce_number,omitempty"`
	Severity         float64 `json:"severity,omitempty"`
	VolumeIndicator  string  `json:"volume_indicator,omitempty"`
	RetracementLevel string  `json:"retracement_level,omitempty"`
	FibonacciNote    string  `json:"fibonacci_note,omitempty"`
	PatternNote      string  `json:"pattern_note,omitempty"`
	EducationalNote  string  `json:"educational_note,omitempty"`
}

// Item is a single narrative entry tied to one instrument and one simulated day.
type Item struct {
	ID          uuid.UUID `json:"id"`
	Day         int       `json:"day"`
	Symbol      string    `json:"symbol"`
	Source      string    `json:"source"`
	Kind        string    `json:"kind"`
	Phase       string    `json:"phase"`
	Headline    string    `json:"headline"`
	Description string    `json:"description"`
	Sentiment   Sentiment `json:"sentiment"`
	// Historical marks resolution commentary describing a past move rather than today's.
	Historical bool     `json:"historical"`
	Meta       Metadata `json:"meta"`
}

var itemNamespace = uuid.MustParse("6f1c2b1e-3d4a-4f7e-9a51-0c7d2e8b4a10")

// ItemID derives a stable identifier from the day, symbol and headline.
// Same-day headlines are unique per symbol, so the ID is unique within a run.
func ItemID(day int, symbol, headline string) uuid.UUID {
	return uuid.NewSHA1(itemNamespace, []byte(fmt.Sprintf("%d|%s|%s", day, symbol, headline)))
}
