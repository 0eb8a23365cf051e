package embedder

import (
	"fmt"
	"strings"
)

// Raw queries like "bicycle" embed into vectors too diffuse to separate the
// actual object from general street scenery. Each known term is rewritten to
// a verbose visual description, optionally with exclusion clauses for the
// look-alikes that dominate false positives.
type queryTerm struct {
	term        string
	description string
	exclusions  string
}

// Ordered: more specific terms first, so substring matching resolves
// "motorcycle" before "car"-class terms when both could apply.
var objectTerms = []queryTerm{
	{
		term:        "bicycle",
		description: "VISIBLE bicycle with two wheels, frame, handlebars and pedals clearly seen on road, ridden or parked",
		exclusions:  ", NOT bike lanes, NOT bicycle symbols painted on pavement, NOT bicycle signs",
	},
	{
		term:        "motorcycle",
		description: "VISIBLE motorcycle with rider wearing helmet, two wheels and engine clearly seen on road",
		exclusions:  ", NOT bicycles, NOT scooters parked on sidewalk",
	},
	{
		term:        "pedestrian",
		description: "VISIBLE pedestrian person walking or crossing, full body clearly seen near or on road",
		exclusions:  ", NOT pedestrian crossing signs, NOT crosswalk markings without people",
	},
	{
		term:        "traffic light",
		description: "VISIBLE traffic light signal with red, yellow or green lamps clearly seen above or beside road",
	},
	{
		term:        "stop sign",
		description: "VISIBLE red octagonal stop sign with white lettering clearly seen at roadside",
	},
	{
		term:        "construction",
		description: "VISIBLE construction zone with cones, barriers, machinery or workers clearly seen on or beside road",
	},
	{
		term:        "accident",
		description: "VISIBLE vehicle collision or crash aftermath with damaged vehicles clearly seen on road",
	},
	{
		term:        "crosswalk",
		description: "VISIBLE zebra crosswalk stripes painted across road clearly seen in frame",
	},
	{
		term:        "truck",
		description: "VISIBLE truck with large cargo body and high cab clearly seen driving or parked on road",
	},
	{
		term:        "bus",
		description: "VISIBLE bus with long passenger body and large windows clearly seen on road",
	},
	{
		term:        "van",
		description: "VISIBLE van with enclosed cargo or passenger body clearly seen on road",
	},
	{
		term:        "car",
		description: "VISIBLE passenger car with four wheels and windshield clearly seen driving or parked on road",
	},
	{
		term:        "intersection",
		description: "VISIBLE road intersection with crossing lanes and traffic clearly seen in frame",
	},
	{
		term:        "bridge",
		description: "VISIBLE bridge structure spanning over road or water clearly seen in frame",
	},
	{
		term:        "tunnel",
		description: "VISIBLE tunnel entrance or interior with enclosed roadway clearly seen in frame",
	},
	{
		term:        "highway",
		description: "VISIBLE multi-lane highway with lane markings and traffic clearly seen in frame",
	},
	{
		term:        "rain",
		description: "VISIBLE rain with wet reflective road surface and water droplets clearly seen in frame",
	},
	{
		term:        "snow",
		description: "VISIBLE snow covering road or falling, white accumulation clearly seen in frame",
	},
	{
		term:        "night",
		description: "VISIBLE night scene with headlights, street lamps and dark sky clearly seen in frame",
	},
}

// Color + object compounds beat the bare object term so "red car" does not
// degrade to the generic car description.
var colorObjectTerms = []queryTerm{
	{
		term:        "red car",
		description: "VISIBLE red colored passenger car, red paint body clearly seen driving or parked on road",
		exclusions:  ", NOT red traffic lights, NOT red signs",
	},
	{
		term:        "white truck",
		description: "VISIBLE white colored truck with large white cargo body clearly seen on road",
	},
	{
		term:        "yellow bus",
		description: "VISIBLE yellow colored bus with yellow painted body clearly seen on road",
	},
	{
		term:        "black car",
		description: "VISIBLE black colored passenger car, black paint body clearly seen driving or parked on road",
	},
	{
		term:        "white van",
		description: "VISIBLE white colored van with white enclosed body clearly seen on road",
	},
	{
		term:        "police car",
		description: "VISIBLE police patrol car with light bar and livery clearly seen on road",
		exclusions:  ", NOT ordinary cars, NOT ambulances",
	},
}

func (t queryTerm) render() string {
	return t.description + t.exclusions
}

// EnhanceTrafficQuery rewrites a raw search query into the verbose visual
// description used for embedding. Matching order: exact object term, exact
// color-object compound, substring object term (keys longer than 3 chars, to
// avoid spurious short-token hits), substring compound, then a generic
// fallback template. Pure function, no I/O.
func EnhanceTrafficQuery(query string) string {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return q
	}

	for _, t := range objectTerms {
		if t.term == q {
			return t.render()
		}
	}
	for _, t := range colorObjectTerms {
		if t.term == q {
			return t.render()
		}
	}
	for _, t := range objectTerms {
		if len(t.term) > 3 && strings.Contains(q, t.term) {
			return t.render()
		}
	}
	for _, t := range colorObjectTerms {
		if strings.Contains(q, t.term) {
			return t.render()
		}
	}

	return fmt.Sprintf("VISIBLE %s clearly seen in traffic scene on road, actual object prominently displayed in frame", q)
}
