package search

// QueryType distinguishes how a search's query vector was produced.
type QueryType string

const (
	QueryTypeText  QueryType = "text"
	QueryTypeImage QueryType = "image"
)

// Record is the immutable audit entry written after every completed search.
// It is history/analytics only: persistence is best-effort and never alters
// the already-computed result.
type Record struct {
	UserID       int64
	Query        string
	QueryType    QueryType
	Embedding    []float32
	Filters      Filters
	ResultCount  int
	SearchTimeMS int64
}
