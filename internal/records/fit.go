package records

type Chance string

const (
	ChanceLow    Chance = "low"
	ChanceMedium Chance = "medium"
	ChanceHigh   Chance = "high"
)

// Valid reports whether c is one of the known buckets.
func (c Chance) Valid() bool {
	switch c {
	case ChanceLow, ChanceMedium, ChanceHigh:
		return true
	default:
		return false
	}
}

// Style is the recommended tone of the application message.
type Style string

const (
	StyleBrief    Style = "brief"
	StyleDetailed Style = "detailed"
	StyleBulleted Style = "bulleted"
)

func (s Style) Valid() bool {
	switch s {
	case StyleBrief, StyleDetailed, StyleBulleted:
		return true
	default:
		return false
	}
}

// FitResult is the normalized evaluation of a candidate against a job.
type FitResult struct {
	Score            int      `json:"score"`
	Chance           Chance   `json:"chance"`
	Reason           string   `json:"reason"`
	MatchHighlights  []string `json:"match_highlights"`
	RecommendedStyle Style    `json:"recommended_email_style"`
	Raw              string   `json:"raw"`
}
