package deadcat

// Catalyst is a crash-inducing event with its base severity.
type Catalyst struct {
	Headline string  `json:"headline"`
	Severity float64 `json:"severity"`
}

// Catalysts is the pool CheckEvents draws from.
var Catalysts = []Catalyst{
	{Headline: "accounting irregularities discovered - SEC investigating", Severity: 0.28},
	{Headline: "loses $200M client contract, revenue guidance slashed 40%", Severity: 0.22},
	{Headline: "fraud allegations surface - auditor resignation", Severity: 0.30},
	{Headline: "product recall: 2.5M units affected, liability exposure", Severity: 0.20},
	{Headline: "CEO sudden departure - board announces investigation", Severity: 0.18},
	{Headline: "misses earnings by 35%, cuts full-year guidance", Severity: 0.25},
	{Headline: "key patent invalidated - $500M revenue at risk", Severity: 0.22},
	{Headline: "DOJ files antitrust lawsuit seeking breakup", Severity: 0.20},
}

// closestCatalyst returns the catalyst whose severity is nearest to severity.
func closestCatalyst(severity float64) Catalyst {
	best := Catalysts[0]
	bestGap := 2.0
	for _, c := range Catalysts {
		gap := c.Severity - severity
		if gap < 0 {
			gap = -gap
		}
		if gap < bestGap {
			best, bestGap = c, gap
		}
	}
	return best
}
