package embedder

// ModelRole says what a supported model is used for.
type ModelRole string

const (
	RoleVision    ModelRole = "vision"
	RoleEmbedding ModelRole = "embedding"
)

// ModelSpec describes one supported model: its role, its USD price per 1K
// tokens, and (for embedding models) its output dimensionality.
type ModelSpec struct {
	Name       string
	Role       ModelRole
	PricePer1K float64
	Dims       int
}

// The closed set of models the service knows how to call and price.
var (
	VisionGPT4oMini = ModelSpec{
		Name:       "gpt-4o-mini",
		Role:       RoleVision,
		PricePer1K: 0.00015,
	}
	TextEmbedding3Small = ModelSpec{
		Name:       "text-embedding-3-small",
		Role:       RoleEmbedding,
		PricePer1K: 0.00002,
		Dims:       1536,
	}
)

// DefaultPricePer1K is applied to any model missing from the table.
const DefaultPricePer1K = 0.002

var knownModels = []ModelSpec{VisionGPT4oMini, TextEmbedding3Small}

// LookupModel returns the spec for name, if it is a supported model.
func LookupModel(name string) (ModelSpec, bool) {
	for _, m := range knownModels {
		if m.Name == name {
			return m, true
		}
	}
	return ModelSpec{}, false
}

// Pricing builds the per-model price table the rate limiter consumes.
func Pricing() map[string]float64 {
	out := make(map[string]float64, len(knownModels))
	for _, m := range knownModels {
		out[m.Name] = m.PricePer1K
	}
	return out
}
