package domain

// MatchType says which retrieval path produced a result.
type MatchType string

// Match types, exact first in fused result lists.
const (
	MatchExact    MatchType = "exact"
	MatchSemantic MatchType = "semantic"
)

// RetrievalResult is one retrieved chunk with its scores. Distance is
// only meaningful for semantic matches; Occurrences only for exact ones.
type RetrievalResult struct {
	ID          string         `json:"id"`
	Content     string         `json:"content"`
	Metadata    map[string]any `json:"metadata"`
	Distance    float64        `json:"distance"`
	Similarity  float64        `json:"similarity"`
	Match       MatchType      `json:"match_type"`
	Occurrences int            `json:"occurrences,omitempty"`
}

// SimilarityFromDistance maps a squared L2 distance into (0, 1], with 1
// at distance zero. Negative distances clamp to 1.
func SimilarityFromDistance(d float64) float64 {
	if d < 0 {
		return 1
	}
	return 1 / (1 + d)
}
