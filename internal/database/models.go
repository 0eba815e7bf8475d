package database

import "time"

// Article represents a curated article from a feed or the share intake
type Article struct {
	ID             int64     `db:"id" json:"id"`
	URL            string    `db:"url" json:"url"`
	Title          string    `db:"title" json:"title"`
	Source         string    `db:"source" json:"source"`
	IsRead         bool      `db:"is_read" json:"is_read"`
	Category       *string   `db:"category" json:"category"`
	RelevanceScore *int      `db:"relevance_score" json:"relevance_score"`
	AccessStatus   *string   `db:"access_status" json:"access_status"`
	Summary        *string   `db:"summary" json:"summary"`
	AnalysisJSON   *string   `db:"analysis_json" json:"analysis_json"`
	RawHTML        *string   `db:"raw_html" json:"-"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Analyzed reports whether the classifier has already written a result
func (a *Article) Analyzed() bool {
	return a.AnalysisJSON != nil
}

// Feed is a configured RSS/Atom source
type Feed struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	URL       string    `db:"url" json:"url"`
	Category  *string   `db:"category" json:"category"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// BlacklistKeyword rejects any article whose title contains it
type BlacklistKeyword struct {
	ID        int64     `db:"id" json:"id"`
	Keyword   string    `db:"keyword" json:"keyword"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// NewArticle is the input of UpsertArticle
type NewArticle struct {
	URL       string
	Title     string
	Source    string
	CreatedAt time.Time
}

// UpsertResult tells whether UpsertArticle inserted a row or found an existing one
type UpsertResult struct {
	ID       int64 `json:"id"`
	Inserted bool  `json:"inserted"`
}

// AnalysisUpdate carries the normalized classifier output for one article
type AnalysisUpdate struct {
	ID             int64
	Category       string
	RelevanceScore int
	AccessStatus   string
	Summary        string
	AnalysisJSON   string
	RawHTML        *string
}

// ArticleFilter narrows ListArticles. A nil MinScore disables score filtering;
// articles without a score always pass a score filter. ReadOnly wins over
// IncludeRead.
type ArticleFilter struct {
	MinScore     *int
	IncludeRead  bool
	ReadOnly     bool
	SortByScore  bool
	AnalyzedOnly bool
	Category     string
	IDs          []int64
	Since        time.Time
	Limit        int
}
