package classifier

import (
	"math"
	"strings"
)

// Normalized is an Analysis coerced into the values the store accepts
type Normalized struct {
	Category       string
	RelevanceScore int
	AccessStatus   string
	Summary        string
}

// Normalize maps classifier output onto the fixed category list, the
// [0,10] score range and the access status set.
func Normalize(a Analysis) Normalized {
	return Normalized{
		Category:       NormalizeCategory(a.Category),
		RelevanceScore: ClampScore(a.RelevanceScore),
		AccessStatus:   NormalizeAccess(a.AccessStatus),
		Summary:        strings.TrimSpace(a.Summary),
	}
}

// ClampScore rounds half away from zero and clamps to [0,10]. NaN and
// infinities become 0.
func ClampScore(score float64) int {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0
	}
	rounded := math.Round(score)
	switch {
	case rounded < 0:
		return 0
	case rounded > 10:
		return 10
	}
	return int(rounded)
}

// NormalizeCategory returns the listed category matching raw, or DefaultCategory
func NormalizeCategory(raw string) string {
	if c, ok := MatchCategory(raw); ok {
		return c
	}
	return DefaultCategory
}

// NormalizeAccess lower-cases raw and falls back to AccessFree for unknown values
func NormalizeAccess(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	for _, v := range AccessStatuses {
		if s == v {
			return v
		}
	}
	return AccessFree
}
