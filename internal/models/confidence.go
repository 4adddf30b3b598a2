// internal/models/confidence.go
package models

// Points is an achieved/possible pair for one breakdown category.
type Points struct {
	Achieved int `json:"achieved"`
	Possible int `json:"possible"`
}

// Full reports whether every possible point was achieved.
func (p Points) Full() bool {
	return p.Achieved == p.Possible
}

// ConfidenceBreakdown decomposes a confidence score into weighted categories.
type ConfidenceBreakdown struct {
	Base                Points `json:"base"`
	SpecificRegulations Points `json:"specific_regulations"`
	ExactArticles       Points `json:"exact_articles"`
	CompleteProcedures  Points `json:"complete_procedures"`
	RecentUpdates       Points `json:"recent_updates"`
}

// NamedPoints pairs a category key with its points.
type NamedPoints struct {
	Key    string
	Points Points
}

// Categories returns the categories in display order.
func (b ConfidenceBreakdown) Categories() []NamedPoints {
	return []NamedPoints{
		{Key: "base", Points: b.Base},
		{Key: "specific_regulations", Points: b.SpecificRegulations},
		{Key: "exact_articles", Points: b.ExactArticles},
		{Key: "complete_procedures", Points: b.CompleteProcedures},
		{Key: "recent_updates", Points: b.RecentUpdates},
	}
}

// Total sums every category.
func (b ConfidenceBreakdown) Total() Points {
	var total Points
	for _, c := range b.Categories() {
		total.Achieved += c.Points.Achieved
		total.Possible += c.Points.Possible
	}
	return total
}
