package database

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// ListBlacklist returns every blacklist row, oldest first
func (db *DB) ListBlacklist(ctx context.Context) ([]*BlacklistKeyword, error) {
	query, args, err := db.sb.Select("id", "keyword", "created_at").
		From("blacklist").
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build blacklist query: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query blacklist: %w", err)
	}
	defer rows.Close()

	var keywords []*BlacklistKeyword
	for rows.Next() {
		var kw BlacklistKeyword
		if err := rows.Scan(&kw.ID, &kw.Keyword, &kw.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan blacklist keyword: %w", err)
		}
		keywords = append(keywords, &kw)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating blacklist: %w", err)
	}

	return keywords, nil
}

// ListBlacklistKeywords returns just the keyword strings
func (db *DB) ListBlacklistKeywords(ctx context.Context) ([]string, error) {
	rows, err := db.ListBlacklist(ctx)
	if err != nil {
		return nil, err
	}
	keywords := make([]string, 0, len(rows))
	for _, row := range rows {
		keywords = append(keywords, row.Keyword)
	}
	return keywords, nil
}

// AddBlacklistKeyword inserts a keyword. A keyword already present, ignoring
// case, fails with ErrConflict.
func (db *DB) AddBlacklistKeyword(ctx context.Context, keyword string) (*BlacklistKeyword, error) {
	kw := BlacklistKeyword{Keyword: keyword, CreatedAt: time.Now().UTC()}

	query, args, err := db.sb.Insert("blacklist").
		Columns("keyword", "created_at").
		Values(kw.Keyword, kw.CreatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build blacklist insert: %w", err)
	}

	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(&kw.ID); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("keyword %q: %w", keyword, ErrConflict)
		}
		return nil, fmt.Errorf("failed to insert blacklist keyword: %w", err)
	}
	return &kw, nil
}

// DeleteBlacklistKeyword removes a keyword by ID
func (db *DB) DeleteBlacklistKeyword(ctx context.Context, id int64) error {
	query, args, err := db.sb.Delete("blacklist").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build blacklist delete: %w", err)
	}

	res, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete blacklist keyword: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("blacklist keyword %d: %w", id, ErrNotFound)
	}
	return nil
}
