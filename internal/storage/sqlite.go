package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/bilgisen/newsbyte/internal/models"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const itemColumns = `video_url, video_id, title, description, thumbnail, transcript,
	transcript_language, genre, word_count, channel_id, channel_title, published_at,
	cached_at, summary, summary_created_at, summary_status`

// SQLiteStore is the default Store, one table keyed by video_url.
type SQLiteStore struct {
	db   *sql.DB
	path string
	now  Clock
}

// OpenSQLite opens (creating if needed) the database at path and applies
// pending migrations. A nil clock uses time.Now.
func OpenSQLite(path string, clock Clock) (*SQLiteStore, error) {
	if clock == nil {
		clock = time.Now
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}

	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if _, err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, path: path, now: clock}, nil
}

// runMigrations applies the embedded migrations and returns the schema version.
func runMigrations(db *sql.DB) (uint, error) {
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return 0, fmt.Errorf("create sqlite migrate driver: %w", err)
	}

	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return 0, fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("get migration version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("migration %d left the schema dirty", version)
	}
	return version, nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, item *models.NewsItem) error {
	if err := prepare(item, s.now()); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO news_items (`+itemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(video_url) DO UPDATE SET
			video_id = excluded.video_id,
			title = excluded.title,
			description = excluded.description,
			thumbnail = excluded.thumbnail,
			transcript = excluded.transcript,
			transcript_language = excluded.transcript_language,
			genre = excluded.genre,
			word_count = excluded.word_count,
			channel_id = excluded.channel_id,
			channel_title = excluded.channel_title,
			published_at = excluded.published_at,
			cached_at = excluded.cached_at,
			summary = excluded.summary,
			summary_created_at = excluded.summary_created_at,
			summary_status = excluded.summary_status`,
		item.VideoURL,
		item.VideoID,
		item.Title,
		item.Description,
		item.Thumbnail,
		item.Transcript,
		item.TranscriptLanguage,
		string(item.Genre),
		item.WordCount,
		item.ChannelID,
		item.ChannelTitle,
		toNanos(item.PublishedAt),
		toNanos(item.CachedAt),
		item.Summary,
		nullableNanos(item.SummaryCreatedAt),
		string(item.SummaryStatus),
	)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", item.VideoURL, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, videoURL string) (*models.NewsItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM news_items WHERE video_url = ?`, videoURL)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", videoURL, err)
	}
	return item, nil
}

func (s *SQLiteStore) IsFresh(ctx context.Context, videoURL string, maxAge time.Duration) (bool, *models.NewsItem, error) {
	item, err := s.Get(ctx, videoURL)
	if errors.Is(err, ErrNotFound) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}
	return isFresh(item.CachedAt, s.now(), maxAge), item, nil
}

func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]models.NewsItem, error) {
	var (
		conds []string
		args  []any
	)
	if !q.MinCachedAt.IsZero() {
		conds = append(conds, "cached_at >= ?")
		args = append(args, toNanos(q.MinCachedAt))
	}
	if q.ChannelID != "" {
		conds = append(conds, "channel_id = ?")
		args = append(args, q.ChannelID)
	}
	if len(q.Genres) > 0 {
		marks := make([]string, len(q.Genres))
		for i, g := range q.Genres {
			marks[i] = "?"
			args = append(args, string(g))
		}
		conds = append(conds, "genre IN ("+strings.Join(marks, ", ")+")")
	}

	stmt := `SELECT ` + itemColumns + ` FROM news_items`
	if len(conds) > 0 {
		stmt += " WHERE " + strings.Join(conds, " AND ")
	}
	stmt += " ORDER BY cached_at DESC, video_url ASC LIMIT ?"
	args = append(args, sqlLimit(q.Limit))

	return s.queryItems(ctx, stmt, args...)
}

func (s *SQLiteStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.NewsItem, error) {
	return s.queryItems(ctx,
		`SELECT `+itemColumns+` FROM news_items WHERE cached_at < ? ORDER BY cached_at ASC, video_url ASC LIMIT ?`,
		toNanos(cutoff), sqlLimit(limit))
}

func (s *SQLiteStore) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := s.now().Add(-maxAge)
	res, err := s.db.ExecContext(ctx, `DELETE FROM news_items WHERE cached_at < ?`, toNanos(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune news items: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) DeleteChannel(ctx context.Context, channelID string) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if channelID == "" {
		res, err = s.db.ExecContext(ctx, `DELETE FROM news_items`)
	} else {
		res, err = s.db.ExecContext(ctx, `DELETE FROM news_items WHERE channel_id = ?`, channelID)
	}
	if err != nil {
		return 0, fmt.Errorf("delete channel %q: %w", channelID, err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Stats(ctx context.Context, since time.Time) (*Stats, error) {
	stats := &Stats{Genres: make(map[models.Genre]int)}

	err := s.db.QueryRowContext(ctx, `SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN cached_at >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN summary <> '' THEN 1 ELSE 0 END), 0)
		FROM news_items`, toNanos(since)).
		Scan(&stats.Total, &stats.Recent, &stats.WithSummary)
	if err != nil {
		return nil, fmt.Errorf("count news items: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT genre, COUNT(*) FROM news_items GROUP BY genre`)
	if err != nil {
		return nil, fmt.Errorf("genre distribution: %w", err)
	}
	for rows.Next() {
		var (
			genre string
			count int
		)
		if err := rows.Scan(&genre, &count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan genre row: %w", err)
		}
		stats.Genres[models.Genre(genre)] = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("genre distribution: %w", err)
	}

	// channel_title comes from the row holding MAX(cached_at)
	rows, err = s.db.QueryContext(ctx, `SELECT channel_id, channel_title, COUNT(*), MAX(cached_at)
		FROM news_items WHERE channel_id <> '' AND cached_at >= ?
		GROUP BY channel_id`, toNanos(since))
	if err != nil {
		return nil, fmt.Errorf("channel aggregates: %w", err)
	}
	defer rows.Close()

	stats.Channels = make([]ChannelStats, 0)
	for rows.Next() {
		var (
			cs     ChannelStats
			latest int64
		)
		if err := rows.Scan(&cs.ChannelID, &cs.ChannelTitle, &cs.VideoCount, &latest); err != nil {
			return nil, fmt.Errorf("scan channel row: %w", err)
		}
		cs.LatestCachedAt = fromNanos(latest)
		stats.Channels = append(stats.Channels, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("channel aggregates: %w", err)
	}
	sortChannels(stats.Channels)
	return stats, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) queryItems(ctx context.Context, stmt string, args ...any) ([]models.NewsItem, error) {
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query news items: %w", err)
	}
	defer rows.Close()

	items := make([]models.NewsItem, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan news item: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query news items: %w", err)
	}
	return items, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*models.NewsItem, error) {
	var (
		item             models.NewsItem
		genre, status    string
		published        int64
		cached           int64
		summaryCreatedAt sql.NullInt64
	)
	err := row.Scan(
		&item.VideoURL,
		&item.VideoID,
		&item.Title,
		&item.Description,
		&item.Thumbnail,
		&item.Transcript,
		&item.TranscriptLanguage,
		&genre,
		&item.WordCount,
		&item.ChannelID,
		&item.ChannelTitle,
		&published,
		&cached,
		&item.Summary,
		&summaryCreatedAt,
		&status,
	)
	if err != nil {
		return nil, err
	}

	item.Genre = models.Genre(genre)
	item.SummaryStatus = models.SummaryStatus(status)
	item.PublishedAt = fromNanos(published)
	item.CachedAt = fromNanos(cached)
	if summaryCreatedAt.Valid {
		t := fromNanos(summaryCreatedAt.Int64)
		item.SummaryCreatedAt = &t
	}
	return &item, nil
}

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func nullableNanos(t *time.Time) sql.NullInt64 {
	if t == nil || t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
