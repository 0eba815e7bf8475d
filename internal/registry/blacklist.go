package registry

import "strings"

// Blacklist matches titles against a lower-cased keyword set.
// The zero value matches nothing.
type Blacklist struct {
	keywords []string
}

// NewBlacklist lower-cases and trims keywords once; empty ones are dropped.
func NewBlacklist(keywords []string) Blacklist {
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			out = append(out, kw)
		}
	}
	return Blacklist{keywords: out}
}

// Match reports whether the title contains any keyword, case-insensitively.
func (b Blacklist) Match(title string) bool {
	_, ok := b.Matching(title)
	return ok
}

// Matching returns the first keyword contained in title.
func (b Blacklist) Matching(title string) (string, bool) {
	if len(b.keywords) == 0 {
		return "", false
	}
	lower := strings.ToLower(title)
	for _, kw := range b.keywords {
		if strings.Contains(lower, kw) {
			return kw, true
		}
	}
	return "", false
}

// Len is the number of active keywords
func (b Blacklist) Len() int {
	return len(b.keywords)
}
