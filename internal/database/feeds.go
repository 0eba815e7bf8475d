package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
)

var feedColumns = []string{"id", "name", "url", "category", "active", "created_at"}

// ListActiveFeeds returns the feeds ingestion should poll, oldest first
func (db *DB) ListActiveFeeds(ctx context.Context) ([]*Feed, error) {
	return db.queryFeeds(ctx, db.sb.Select(feedColumns...).
		From("feeds").
		Where(sq.Eq{"active": true}).
		OrderBy("created_at ASC", "id ASC"))
}

// ListFeeds returns every feed, including deactivated ones
func (db *DB) ListFeeds(ctx context.Context) ([]*Feed, error) {
	return db.queryFeeds(ctx, db.sb.Select(feedColumns...).
		From("feeds").
		OrderBy("created_at ASC", "id ASC"))
}

// AddFeed creates a feed, or reactivates and renames the feed with the same URL
func (db *DB) AddFeed(ctx context.Context, name, url string, category *string) (*Feed, error) {
	query, args, err := db.sb.Insert("feeds").
		Columns("name", "url", "category", "active", "created_at").
		Values(name, url, category, true, time.Now().UTC()).
		Suffix("ON CONFLICT (url) DO UPDATE SET name = excluded.name, category = excluded.category, active = excluded.active RETURNING " + strings.Join(feedColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build feed insert: %w", err)
	}

	var feed Feed
	err = db.conn.QueryRowContext(ctx, query, args...).Scan(
		&feed.ID,
		&feed.Name,
		&feed.URL,
		&feed.Category,
		&feed.Active,
		&feed.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to add feed: %w", err)
	}
	return &feed, nil
}

// DeactivateFeed soft-deletes a feed so ingestion stops polling it
func (db *DB) DeactivateFeed(ctx context.Context, id int64) error {
	query, args, err := db.sb.Update("feeds").Set("active", false).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build feed update: %w", err)
	}

	res, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to deactivate feed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("feed %d: %w", id, ErrNotFound)
	}
	return nil
}

func (db *DB) queryFeeds(ctx context.Context, builder sq.SelectBuilder) ([]*Feed, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build feeds query: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query feeds: %w", err)
	}
	defer rows.Close()

	var feeds []*Feed
	for rows.Next() {
		var feed Feed
		if err := rows.Scan(
			&feed.ID,
			&feed.Name,
			&feed.URL,
			&feed.Category,
			&feed.Active,
			&feed.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan feed: %w", err)
		}
		feeds = append(feeds, &feed)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feeds: %w", err)
	}

	return feeds, nil
}
