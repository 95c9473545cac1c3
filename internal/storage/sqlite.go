// Package storage provides data persistence functionality for the crawler.
// It implements SQLite-based storage for crawl runs, their page records and
// the set of URLs each run visited.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/masahif/linkharvest/internal/crawler"
	// SQLite database driver (CGO-free)
	_ "modernc.org/sqlite"
)

// MetaLastRunID is the crawl_meta key holding the id of the most recently saved run
const MetaLastRunID = "last_run_id"

// ErrRunNotFound is returned when a run id does not exist
var ErrRunNotFound = errors.New("crawl run not found")

// SQLiteStorage persists crawl results in SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool - single connection prevents lock conflicts
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	storage := &SQLiteStorage{db: db}

	// Initialize schema
	if err := storage.InitSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// InitSchema creates the database schema
func (s *SQLiteStorage) InitSchema() error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000", // 64MB cache
		"PRAGMA temp_store = MEMORY",
		"PRAGMA busy_timeout = 30000", // 30 second timeout for locks
	}

	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %s: %w", pragma, err)
		}
	}

	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// SaveRun stores a finished (or interrupted) crawl in a single transaction
// and returns the new run id
func (s *SQLiteStorage) SaveRun(result *crawler.Result) (int64, error) {
	if result == nil {
		return 0, fmt.Errorf("nil crawl result")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stats := result.Stats
	res, err := tx.Exec(`
		INSERT INTO crawl_runs (
			target_url, started_at, finished_at, urls_crawled, urls_found,
			entries_enqueued, data_extracted, errors, requests, interrupted
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		result.TargetURL,
		nullTime(stats.StartTime),
		nullTime(stats.EndTime),
		stats.URLsCrawled,
		stats.URLsFound,
		stats.EntriesEnqueued,
		stats.DataExtracted,
		stats.Errors,
		stats.Requests,
		result.Interrupted,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}

	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run id: %w", err)
	}

	for i := range result.Records {
		if err := savePage(tx, runID, &result.Records[i]); err != nil {
			return 0, err
		}
	}

	if err := saveVisited(tx, runID, result.Visited); err != nil {
		return 0, err
	}

	if _, err := tx.Exec(
		"INSERT OR REPLACE INTO crawl_meta (key, value) VALUES (?, ?)",
		MetaLastRunID, strconv.FormatInt(runID, 10),
	); err != nil {
		return 0, fmt.Errorf("failed to set meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}

	return runID, nil
}

func savePage(tx *sql.Tx, runID int64, record *crawler.PageRecord) error {
	res, err := tx.Exec(`
		INSERT INTO pages (run_id, url, depth, title, matched_pattern, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		runID,
		record.URL,
		record.Depth,
		nullString(record.Title),
		nullString(record.MatchedPattern),
		nullTime(record.FetchedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert page %s: %w", record.URL, err)
	}

	pageID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get page id: %w", err)
	}

	for i, h := range record.Headings {
		if _, err := tx.Exec("INSERT INTO headings (page_id, position, level, text) VALUES (?, ?, ?, ?)",
			pageID, i, h.Level, h.Text); err != nil {
			return fmt.Errorf("failed to insert heading: %w", err)
		}
	}

	for i, p := range record.Paragraphs {
		if _, err := tx.Exec("INSERT INTO paragraphs (page_id, position, text) VALUES (?, ?, ?)",
			pageID, i, p); err != nil {
			return fmt.Errorf("failed to insert paragraph: %w", err)
		}
	}

	if len(record.Links) > 0 {
		if err := saveLinks(tx, pageID, record.Links); err != nil {
			return err
		}
	}

	for i, img := range record.Images {
		if _, err := tx.Exec("INSERT INTO images (page_id, position, src, alt) VALUES (?, ?, ?, ?)",
			pageID, i, img.Src, img.Alt); err != nil {
			return fmt.Errorf("failed to insert image: %w", err)
		}
	}

	for i, f := range record.Forms {
		if _, err := tx.Exec("INSERT INTO forms (page_id, position, action, method) VALUES (?, ?, ?, ?)",
			pageID, i, f.Action, f.Method); err != nil {
			return fmt.Errorf("failed to insert form: %w", err)
		}
	}

	for i, src := range record.Scripts {
		if _, err := tx.Exec("INSERT INTO scripts (page_id, position, src) VALUES (?, ?, ?)",
			pageID, i, src); err != nil {
			return fmt.Errorf("failed to insert script: %w", err)
		}
	}

	for key, value := range record.Meta {
		if _, err := tx.Exec("INSERT INTO page_meta (page_id, key, value) VALUES (?, ?, ?)",
			pageID, key, value); err != nil {
			return fmt.Errorf("failed to insert meta: %w", err)
		}
	}

	return nil
}

// saveLinks inserts a page's links with one prepared statement
func saveLinks(tx *sql.Tx, pageID int64, links []crawler.Link) error {
	stmt, err := tx.Prepare("INSERT INTO links (page_id, position, anchor_text, href) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare link statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, link := range links {
		if _, err := stmt.Exec(pageID, i, link.Text, link.Href); err != nil {
			return fmt.Errorf("failed to insert link %s: %w", link.Href, err)
		}
	}
	return nil
}

func saveVisited(tx *sql.Tx, runID int64, urls []string) error {
	if len(urls) == 0 {
		return nil
	}

	stmt, err := tx.Prepare("INSERT OR IGNORE INTO visited_urls (run_id, url) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare visited statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, u := range urls {
		if _, err := stmt.Exec(runID, u); err != nil {
			return fmt.Errorf("failed to insert visited URL %s: %w", u, err)
		}
	}
	return nil
}

// CountPages returns the number of page records stored for a run
func (s *SQLiteStorage) CountPages(runID int64) (int, error) {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM pages WHERE run_id = ?", runID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}
	return count, nil
}

// VisitedURLs returns the URLs a run visited, sorted
func (s *SQLiteStorage) VisitedURLs(runID int64) ([]string, error) {
	rows, err := s.db.Query("SELECT url FROM visited_urls WHERE run_id = ? ORDER BY url", runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query visited URLs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("failed to scan visited URL: %w", err)
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// RunStats loads the statistics stored for a run
func (s *SQLiteStorage) RunStats(runID int64) (crawler.StatsSnapshot, error) {
	var (
		stats           crawler.StatsSnapshot
		started, finish sql.NullTime
	)

	err := s.db.QueryRow(`
		SELECT started_at, finished_at, urls_crawled, urls_found, entries_enqueued,
		       data_extracted, errors, requests
		FROM crawl_runs WHERE id = ?
	`, runID).Scan(
		&started, &finish,
		&stats.URLsCrawled, &stats.URLsFound, &stats.EntriesEnqueued,
		&stats.DataExtracted, &stats.Errors, &stats.Requests,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return stats, ErrRunNotFound
	}
	if err != nil {
		return stats, fmt.Errorf("failed to load run stats: %w", err)
	}

	stats.StartTime = started.Time
	stats.EndTime = finish.Time
	if started.Valid && finish.Valid {
		stats.Duration = finish.Time.Sub(started.Time)
	}
	return stats, nil
}

// GetMeta returns the value stored under key, or "" if unset
func (s *SQLiteStorage) GetMeta(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM crawl_meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get meta: %w", err)
	}
	return value, nil
}

// SetMeta stores value under key
func (s *SQLiteStorage) SetMeta(key, value string) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO crawl_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to set meta: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
