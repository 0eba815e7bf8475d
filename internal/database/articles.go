package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

var articleColumns = []string{
	"id", "url", "title", "source", "is_read", "category", "relevance_score",
	"access_status", "summary", "analysis_json", "raw_html", "created_at",
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (*Article, error) {
	var article Article
	err := row.Scan(
		&article.ID,
		&article.URL,
		&article.Title,
		&article.Source,
		&article.IsRead,
		&article.Category,
		&article.RelevanceScore,
		&article.AccessStatus,
		&article.Summary,
		&article.AnalysisJSON,
		&article.RawHTML,
		&article.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &article, nil
}

// UpsertArticle inserts an article keyed by URL. An existing URL is left
// untouched and reported with Inserted=false.
func (db *DB) UpsertArticle(ctx context.Context, article NewArticle) (UpsertResult, error) {
	createdAt := article.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query, args, err := db.sb.Insert("articles").
		Columns("url", "title", "source", "is_read", "created_at").
		Values(article.URL, article.Title, article.Source, false, createdAt.UTC()).
		Suffix("ON CONFLICT (url) DO NOTHING RETURNING id").
		ToSql()
	if err != nil {
		return UpsertResult{}, fmt.Errorf("failed to build article insert: %w", err)
	}

	var id int64
	err = db.conn.QueryRowContext(ctx, query, args...).Scan(&id)
	if err == nil {
		return UpsertResult{ID: id, Inserted: true}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return UpsertResult{}, fmt.Errorf("failed to upsert article: %w", err)
	}

	// Conflict: the URL is already stored.
	query, args, err = db.sb.Select("id").From("articles").Where(sq.Eq{"url": article.URL}).ToSql()
	if err != nil {
		return UpsertResult{}, fmt.Errorf("failed to build article lookup: %w", err)
	}
	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return UpsertResult{}, fmt.Errorf("failed to look up existing article: %w", err)
	}
	return UpsertResult{ID: id, Inserted: false}, nil
}

// GetArticleByID retrieves an article by its ID, or nil if it does not exist
func (db *DB) GetArticleByID(ctx context.Context, id int64) (*Article, error) {
	query, args, err := db.sb.Select(articleColumns...).From("articles").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build article query: %w", err)
	}

	article, err := scanArticle(db.conn.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article: %w", err)
	}
	return article, nil
}

// GetArticleByURL retrieves an article by its URL, or nil if it does not exist
func (db *DB) GetArticleByURL(ctx context.Context, url string) (*Article, error) {
	query, args, err := db.sb.Select(articleColumns...).From("articles").Where(sq.Eq{"url": url}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build article query: %w", err)
	}

	article, err := scanArticle(db.conn.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article by URL: %w", err)
	}
	return article, nil
}

// SelectUnanalyzedArticles returns up to limit articles without an analysis result
func (db *DB) SelectUnanalyzedArticles(ctx context.Context, limit int, newestFirst bool) ([]*Article, error) {
	order := "created_at ASC, id ASC"
	if newestFirst {
		order = "created_at DESC, id DESC"
	}

	builder := db.sb.Select(articleColumns...).
		From("articles").
		Where(sq.Eq{"analysis_json": nil}).
		OrderBy(order)
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	return db.queryArticles(ctx, builder)
}

// ListArticles returns articles matching the filter, newest first unless
// SortByScore is set
func (db *DB) ListArticles(ctx context.Context, filter ArticleFilter) ([]*Article, error) {
	builder := db.sb.Select(articleColumns...).From("articles")
	if filter.SortByScore {
		builder = builder.OrderBy("relevance_score DESC NULLS LAST")
	}
	builder = builder.OrderBy("created_at DESC", "id DESC")

	if filter.MinScore != nil {
		builder = builder.Where(sq.Or{
			sq.GtOrEq{"relevance_score": *filter.MinScore},
			sq.Eq{"relevance_score": nil},
		})
	}
	switch {
	case filter.ReadOnly:
		builder = builder.Where(sq.Eq{"is_read": true})
	case !filter.IncludeRead:
		builder = builder.Where(sq.Eq{"is_read": false})
	}
	if filter.AnalyzedOnly {
		builder = builder.Where(sq.NotEq{"analysis_json": nil})
	}
	if filter.Category != "" {
		builder = builder.Where(sq.Eq{"category": filter.Category})
	}
	if len(filter.IDs) > 0 {
		builder = builder.Where(sq.Eq{"id": filter.IDs})
	}
	if !filter.Since.IsZero() {
		builder = builder.Where(sq.GtOrEq{"created_at": filter.Since.UTC()})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}

	return db.queryArticles(ctx, builder)
}

func (db *DB) queryArticles(ctx context.Context, builder sq.SelectBuilder) ([]*Article, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build articles query: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	defer rows.Close()

	var articles []*Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		articles = append(articles, article)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating articles: %w", err)
	}

	return articles, nil
}

// UpdateArticleAnalysis stores the classifier result on an article. With
// onlyIfUnanalyzed set, an article that already has analysis_json is left
// alone and false is returned.
func (db *DB) UpdateArticleAnalysis(ctx context.Context, update AnalysisUpdate, onlyIfUnanalyzed bool) (bool, error) {
	builder := db.sb.Update("articles").
		Set("category", update.Category).
		Set("relevance_score", update.RelevanceScore).
		Set("access_status", update.AccessStatus).
		Set("summary", update.Summary).
		Set("analysis_json", update.AnalysisJSON).
		Where(sq.Eq{"id": update.ID})
	if update.RawHTML != nil {
		builder = builder.Set("raw_html", *update.RawHTML)
	}
	if onlyIfUnanalyzed {
		builder = builder.Where(sq.Eq{"analysis_json": nil})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build analysis update: %w", err)
	}

	res, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update article analysis: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// SetReadState marks the given articles read or unread and returns how many matched
func (db *DB) SetReadState(ctx context.Context, ids []int64, isRead bool) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query, args, err := db.sb.Update("articles").Set("is_read", isRead).Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build read state update: %w", err)
	}

	res, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to set read state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}

// UpdateArticleCategory overrides the category of one article
func (db *DB) UpdateArticleCategory(ctx context.Context, id int64, category string) error {
	query, args, err := db.sb.Update("articles").Set("category", category).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build category update: %w", err)
	}

	res, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update article category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("article %d: %w", id, ErrNotFound)
	}
	return nil
}
