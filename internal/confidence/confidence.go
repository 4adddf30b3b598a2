// Package confidence derives point-based confidence breakdowns from the
// signals specialists report about their own answers.
package confidence

import (
	"math"
	"sort"

	"bureaucracy-oracle/internal/models"
)

// DefaultConfidence is used when a specialist reports no score.
const DefaultConfidence = 0.85

// Category is one weighted breakdown bucket.
type Category struct {
	Key      string
	Label    string
	Possible int
	// Aliases are the input keys accepted for this category, in priority
	// order. Only the first alias present is read.
	Aliases []string
}

// Categories are ordered as they are displayed; weights sum to 100.
var Categories = []Category{
	{
		Key:      "base",
		Label:    "Base",
		Possible: 50,
		Aliases:  []string{"base"},
	},
	{
		Key:      "specific_regulations",
		Label:    "Normativa específica",
		Possible: 20,
		Aliases: []string{
			"specific_regulations", "has_specific_regulations",
			"has_specific_communications", "has_specific_resolutions", "regulations",
		},
	},
	{
		Key:      "exact_articles",
		Label:    "Artículos exactos",
		Possible: 15,
		Aliases: []string{
			"exact_articles", "has_exact_articles", "has_exact_points", "articles",
		},
	},
	{
		Key:      "complete_procedures",
		Label:    "Procedimiento completo",
		Possible: 10,
		Aliases: []string{
			"complete_procedures", "has_complete_procedures",
			"has_complete_requirements", "procedures",
		},
	},
	{
		Key:      "recent_updates",
		Label:    "Actualizaciones recientes",
		Possible: 5,
		Aliases:  []string{"recent_updates", "has_recent_updates", "updates"},
	},
}

// LabelFor returns the display label of a category key.
func LabelFor(key string) string {
	for _, c := range Categories {
		if c.Key == key {
			return c.Label
		}
	}
	return key
}

func empty() models.ConfidenceBreakdown {
	var b models.ConfidenceBreakdown
	for _, c := range Categories {
		set(&b, c.Key, models.Points{Possible: c.Possible})
	}
	return b
}

func set(b *models.ConfidenceBreakdown, key string, p models.Points) {
	switch key {
	case "base":
		b.Base = p
	case "specific_regulations":
		b.SpecificRegulations = p
	case "exact_articles":
		b.ExactArticles = p
	case "complete_procedures":
		b.CompleteProcedures = p
	case "recent_updates":
		b.RecentUpdates = p
	}
}

// FromFactors awards full or zero points per boolean factor. Base is always
// awarded.
func FromFactors(factors map[string]bool) models.ConfidenceBreakdown {
	b := empty()
	for _, c := range Categories {
		if c.Key == "base" {
			set(&b, c.Key, models.Points{Achieved: c.Possible, Possible: c.Possible})
			continue
		}
		for _, alias := range c.Aliases {
			v, ok := factors[alias]
			if !ok {
				continue
			}
			if v {
				set(&b, c.Key, models.Points{Achieved: c.Possible, Possible: c.Possible})
			}
			break
		}
	}
	return b
}

// FromScalar spreads round(score*100) points over the categories: base
// first, then the rest proportionally to weight, with the largest
// remainders receiving the leftover points.
func FromScalar(score float64) models.ConfidenceBreakdown {
	b := empty()
	total := int(math.Round(clamp(score, 0, 1) * 100))

	base := Categories[0]
	baseAchieved := total
	if baseAchieved > base.Possible {
		baseAchieved = base.Possible
	}
	set(&b, base.Key, models.Points{Achieved: baseAchieved, Possible: base.Possible})

	rest := total - baseAchieved
	if rest <= 0 {
		return b
	}

	others := Categories[1:]
	weight := 0
	for _, c := range others {
		weight += c.Possible
	}

	type share struct {
		index    int
		achieved int
		frac     float64
	}
	shares := make([]share, len(others))
	assigned := 0
	for i, c := range others {
		exact := float64(rest) * float64(c.Possible) / float64(weight)
		floor := int(math.Floor(exact))
		shares[i] = share{index: i, achieved: floor, frac: exact - float64(floor)}
		assigned += floor
	}

	order := make([]int, len(shares))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return shares[order[a]].frac > shares[order[b]].frac
	})
	for _, i := range order {
		if assigned >= rest {
			break
		}
		if shares[i].achieved < others[i].Possible {
			shares[i].achieved++
			assigned++
		}
	}

	for i, c := range others {
		set(&b, c.Key, models.Points{Achieved: shares[i].achieved, Possible: c.Possible})
	}
	return b
}

// FromPoints reads an already computed breakdown. Each category value must
// be an object with achieved (and optionally possible). Achieved points are
// clamped to [0, possible]. ok is false when no category is point-shaped.
func FromPoints(raw map[string]interface{}) (models.ConfidenceBreakdown, bool) {
	b := empty()
	found := false
	for _, c := range Categories {
		for _, alias := range c.Aliases {
			v, present := raw[alias]
			if !present {
				continue
			}
			m, isObject := v.(map[string]interface{})
			if !isObject {
				break
			}
			achieved, okAchieved := number(m["achieved"])
			if !okAchieved {
				break
			}
			possible, okPossible := number(m["possible"])
			if !okPossible || possible <= 0 {
				possible = float64(c.Possible)
			}
			found = true
			set(&b, c.Key, models.Points{
				Achieved: int(math.Round(clamp(achieved, 0, possible))),
				Possible: int(math.Round(possible)),
			})
			break
		}
	}
	return b, found
}

// booleanShape extracts boolean values when raw is a factor map passed
// where a breakdown was expected.
func booleanShape(raw map[string]interface{}) (map[string]bool, bool) {
	out := make(map[string]bool)
	for k, v := range raw {
		if bv, ok := v.(bool); ok {
			out[k] = bv
		}
	}
	return out, len(out) > 0
}

// Calculator resolves breakdowns and optionally applies fixed point splits
// for specific scalar scores, kept for compatibility with older audit
// output. Presets are disabled when none are configured.
type Calculator struct {
	presets map[float64]models.ConfidenceBreakdown
}

// Preset pins the point split used for one exact score.
type Preset struct {
	Score  float64
	Points map[string]int
}

// NewCalculator builds a calculator with optional presets.
func NewCalculator(presets []Preset) *Calculator {
	c := &Calculator{presets: make(map[float64]models.ConfidenceBreakdown)}
	for _, p := range presets {
		b := empty()
		for _, cat := range Categories {
			set(&b, cat.Key, models.Points{
				Achieved: int(clamp(float64(p.Points[cat.Key]), 0, float64(cat.Possible))),
				Possible: cat.Possible,
			})
		}
		c.presets[roundScore(p.Score)] = b
	}
	return c
}

// Resolve picks the most specific information available: point-level
// detail, then boolean factors (from either argument), then a preset for
// the exact score, then the proportional formula.
func (c *Calculator) Resolve(raw map[string]interface{}, factors map[string]bool, score float64) models.ConfidenceBreakdown {
	if len(raw) > 0 {
		if b, ok := FromPoints(raw); ok {
			return b
		}
		if f, ok := booleanShape(raw); ok {
			return FromFactors(f)
		}
	}
	if len(factors) > 0 {
		return FromFactors(factors)
	}
	if c != nil {
		if b, ok := c.presets[roundScore(score)]; ok {
			return b
		}
	}
	return FromScalar(score)
}

func roundScore(score float64) float64 {
	return math.Round(score*100) / 100
}

func number(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	}
	return 0, false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
