package search

import "strings"

// A single global similarity cutoff under- or over-filters depending on how
// visually distinctive the query target is. Rare, small, easily-confused
// objects need a tight cutoff to suppress background scene matches; broad
// scene descriptors need a permissive one to surface enough candidates.
// Tiers are checked high -> medium -> low; the first match wins.

const (
	highPrecisionThreshold   float32 = 0.45
	mediumPrecisionThreshold float32 = 0.35
	lowPrecisionThreshold    float32 = 0.25
	defaultThreshold         float32 = 0.30

	// Requested thresholds below this are treated as an under-specified
	// client default and replaced by the adaptive value.
	overrideFloor float32 = 0.30
)

var highPrecisionTerms = []string{
	"bicycle", "motorcycle", "pedestrian", "traffic light", "stop sign",
	"accident", "construction", "cyclist", "crosswalk",
}

var mediumPrecisionTerms = []string{
	"car", "truck", "bus", "van", "intersection", "bridge", "tunnel",
	"highway", "parking",
}

var lowPrecisionTerms = []string{
	"road", "street", "traffic", "driving", "lane", "day", "night",
	"weather", "rain", "snow",
}

func containsAny(q string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(q, t) {
			return true
		}
	}
	return false
}

// AdaptiveThreshold maps a free-text query to the minimum cosine similarity a
// candidate must meet.
func AdaptiveThreshold(query string) float32 {
	q := strings.ToLower(query)
	switch {
	case containsAny(q, highPrecisionTerms):
		return highPrecisionThreshold
	case containsAny(q, mediumPrecisionTerms):
		return mediumPrecisionThreshold
	case containsAny(q, lowPrecisionTerms):
		return lowPrecisionThreshold
	default:
		return defaultThreshold
	}
}

// EffectiveThreshold resolves the cutoff for a text search. An explicit
// requested value at or above the override floor wins; anything below it
// (including zero for "unset") is replaced by the adaptive threshold, on the
// premise that very low values come from under-specified client defaults
// rather than deliberate intent.
func EffectiveThreshold(query string, requested float32) float32 {
	if requested >= overrideFloor {
		return requested
	}
	return AdaptiveThreshold(query)
}
