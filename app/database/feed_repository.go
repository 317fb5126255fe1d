package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lysyi3m/feedkit/app/model"
)

// FeedRepository stores whole feed graphs keyed by configuration name.
type FeedRepository struct {
	db  *DB
	now func() time.Time
}

func NewFeedRepository(db *DB) *FeedRepository {
	return &FeedRepository{db: db, now: time.Now}
}

// SaveFeed replaces the stored feed and all of its entries in one transaction.
// Entry order is kept through the position column.
func (r *FeedRepository) SaveFeed(name string, f *model.Feed) error {
	if f == nil {
		return fmt.Errorf("feed is nil")
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM entries WHERE feed_name = ?`, name); err != nil {
		return fmt.Errorf("failed to clear entries: %w", err)
	}

	if err := r.upsertFeed(tx, name, f); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO entries (
			feed_name, position, entry_id, title, updated_at, published_at, summary, source, rights,
			link, content, authors, contributors, categories
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare entry insert: %w", err)
	}
	defer stmt.Close()

	for i, entry := range f.Entries {
		if err := r.insertEntry(stmt, name, i, entry); err != nil {
			return fmt.Errorf("failed to insert entry %s: %w", entry.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit feed: %w", err)
	}

	return nil
}

func (r *FeedRepository) upsertFeed(tx *sql.Tx, name string, f *model.Feed) error {
	link, err := jsonColumn(f.Link)
	if err != nil {
		return err
	}
	authors, err := jsonColumn(f.Authors)
	if err != nil {
		return err
	}
	contributors, err := jsonColumn(f.Contributors)
	if err != nil {
		return err
	}
	categories, err := jsonColumn(f.Categories)
	if err != nil {
		return err
	}
	generator, err := jsonColumn(f.Generator)
	if err != nil {
		return err
	}
	logo, err := jsonColumn(f.Logo)
	if err != nil {
		return err
	}

	var ttl sql.NullInt64
	if f.TTL != nil {
		ttl = sql.NullInt64{Int64: int64(*f.TTL), Valid: true}
	}

	_, err = tx.Exec(`
		INSERT INTO feeds (
			name, feed_id, title, updated_at, description, subtitle, language, icon, rights, ttl,
			pub_date, link, authors, contributors, categories, generator, logo, imported_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			feed_id = excluded.feed_id,
			title = excluded.title,
			updated_at = excluded.updated_at,
			description = excluded.description,
			subtitle = excluded.subtitle,
			language = excluded.language,
			icon = excluded.icon,
			rights = excluded.rights,
			ttl = excluded.ttl,
			pub_date = excluded.pub_date,
			link = excluded.link,
			authors = excluded.authors,
			contributors = excluded.contributors,
			categories = excluded.categories,
			generator = excluded.generator,
			logo = excluded.logo,
			imported_at = excluded.imported_at
	`, name, f.ID, f.Title, formatTime(f.Updated), nullString(f.Description), nullString(f.Subtitle),
		nullString(f.Language), nullString(f.Icon), nullString(f.Rights), ttl, formatNullTime(f.PubDate),
		link, authors, contributors, categories, generator, logo, formatTime(r.now()))
	if err != nil {
		return fmt.Errorf("failed to upsert feed: %w", err)
	}

	return nil
}

func (r *FeedRepository) insertEntry(stmt *sql.Stmt, name string, position int, e model.Entry) error {
	link, err := jsonColumn(e.Link)
	if err != nil {
		return err
	}
	content, err := jsonColumn(e.Content)
	if err != nil {
		return err
	}
	authors, err := jsonColumn(e.Authors)
	if err != nil {
		return err
	}
	contributors, err := jsonColumn(e.Contributors)
	if err != nil {
		return err
	}
	categories, err := jsonColumn(e.Categories)
	if err != nil {
		return err
	}

	_, err = stmt.Exec(name, position, e.ID, e.Title, formatTime(e.Updated), formatNullTime(e.Published),
		nullString(e.Summary), nullString(e.Source), nullString(e.Rights),
		link, content, authors, contributors, categories)
	return err
}

// GetFeed returns nil, nil when no feed is stored under name.
func (r *FeedRepository) GetFeed(name string) (*model.Feed, error) {
	var (
		f                                                        model.Feed
		updated                                                  string
		description, subtitle, language, icon, rights, pubDate   sql.NullString
		link, authors, contributors, categories, generator, logo sql.NullString
		ttl                                                      sql.NullInt64
	)

	err := r.db.QueryRow(`
		SELECT feed_id, title, updated_at, description, subtitle, language, icon, rights, ttl,
			pub_date, link, authors, contributors, categories, generator, logo
		FROM feeds
		WHERE name = ?
	`, name).Scan(&f.ID, &f.Title, &updated, &description, &subtitle, &language, &icon, &rights, &ttl,
		&pubDate, &link, &authors, &contributors, &categories, &generator, &logo)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed: %w", err)
	}

	if f.Updated, err = parseTime(updated); err != nil {
		return nil, err
	}
	if f.PubDate, err = parseNullTime(pubDate); err != nil {
		return nil, err
	}
	f.Description = stringPtr(description)
	f.Subtitle = stringPtr(subtitle)
	f.Language = stringPtr(language)
	f.Icon = stringPtr(icon)
	f.Rights = stringPtr(rights)
	if ttl.Valid {
		f.TTL = model.Ptr(uint32(ttl.Int64))
	}

	for _, column := range []struct {
		value sql.NullString
		dst   any
	}{
		{link, &f.Link},
		{authors, &f.Authors},
		{contributors, &f.Contributors},
		{categories, &f.Categories},
		{generator, &f.Generator},
		{logo, &f.Logo},
	} {
		if err := scanJSON(column.value, column.dst); err != nil {
			return nil, err
		}
	}

	entries, err := r.getEntries(name)
	if err != nil {
		return nil, err
	}
	f.Entries = entries

	return &f, nil
}

func (r *FeedRepository) getEntries(name string) ([]model.Entry, error) {
	rows, err := r.db.Query(`
		SELECT entry_id, title, updated_at, published_at, summary, source, rights,
			link, content, authors, contributors, categories
		FROM entries
		WHERE feed_name = ?
		ORDER BY position
	`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []model.Entry
	for rows.Next() {
		var (
			e                                                model.Entry
			updated                                          string
			published, summary, source, rights               sql.NullString
			link, content, authors, contributors, categories sql.NullString
		)

		if err := rows.Scan(&e.ID, &e.Title, &updated, &published, &summary, &source, &rights,
			&link, &content, &authors, &contributors, &categories); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}

		if e.Updated, err = parseTime(updated); err != nil {
			return nil, err
		}
		if e.Published, err = parseNullTime(published); err != nil {
			return nil, err
		}
		e.Summary = stringPtr(summary)
		e.Source = stringPtr(source)
		e.Rights = stringPtr(rights)

		for _, column := range []struct {
			value sql.NullString
			dst   any
		}{
			{link, &e.Link},
			{content, &e.Content},
			{authors, &e.Authors},
			{contributors, &e.Contributors},
			{categories, &e.Categories},
		} {
			if err := scanJSON(column.value, column.dst); err != nil {
				return nil, err
			}
		}

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entries: %w", err)
	}

	return entries, nil
}

func (r *FeedRepository) GetFeedCount() (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM feeds`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get feed count: %w", err)
	}
	return count, nil
}

func (r *FeedRepository) GetEntryCount(name string) (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM entries WHERE feed_name = ?`, name).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get entry count: %w", err)
	}
	return count, nil
}

func (r *FeedRepository) ListFeeds() ([]FeedSummary, error) {
	rows, err := r.db.Query(`
		SELECT f.name, f.title, f.updated_at, f.imported_at,
			(SELECT COUNT(*) FROM entries e WHERE e.feed_name = f.name)
		FROM feeds f
		ORDER BY f.name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list feeds: %w", err)
	}
	defer rows.Close()

	var feeds []FeedSummary
	for rows.Next() {
		var summary FeedSummary
		var updated, imported string
		if err := rows.Scan(&summary.Name, &summary.Title, &updated, &imported, &summary.EntryCount); err != nil {
			return nil, fmt.Errorf("failed to scan feed: %w", err)
		}
		if summary.Updated, err = parseTime(updated); err != nil {
			return nil, err
		}
		if summary.ImportedAt, err = parseTime(imported); err != nil {
			return nil, err
		}
		feeds = append(feeds, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate feeds: %w", err)
	}

	return feeds, nil
}
