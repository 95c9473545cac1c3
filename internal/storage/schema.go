package storage

const schemaSQL = `
-- One row per crawl run, with its final statistics
CREATE TABLE IF NOT EXISTS crawl_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    target_url TEXT NOT NULL,
    started_at DATETIME,
    finished_at DATETIME,
    urls_crawled INTEGER NOT NULL DEFAULT 0,
    urls_found INTEGER NOT NULL DEFAULT 0,
    entries_enqueued INTEGER NOT NULL DEFAULT 0,
    data_extracted INTEGER NOT NULL DEFAULT 0,
    errors INTEGER NOT NULL DEFAULT 0,
    requests INTEGER NOT NULL DEFAULT 0,
    interrupted INTEGER NOT NULL DEFAULT 0,
    saved_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Pages holds one record per successfully fetched URL of a run
CREATE TABLE IF NOT EXISTS pages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id INTEGER NOT NULL REFERENCES crawl_runs(id) ON DELETE CASCADE,
    url TEXT NOT NULL,
    depth INTEGER NOT NULL,
    title TEXT,
    matched_pattern TEXT,
    fetched_at DATETIME,
    UNIQUE(run_id, url)
);

CREATE INDEX IF NOT EXISTS idx_pages_run ON pages(run_id);
CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(url);
CREATE INDEX IF NOT EXISTS idx_pages_matched ON pages(matched_pattern) WHERE matched_pattern IS NOT NULL;

-- Child tables keep document order in position
CREATE TABLE IF NOT EXISTS headings (
    page_id INTEGER NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    level INTEGER NOT NULL,
    text TEXT NOT NULL,
    PRIMARY KEY (page_id, position)
);

CREATE TABLE IF NOT EXISTS paragraphs (
    page_id INTEGER NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    text TEXT NOT NULL,
    PRIMARY KEY (page_id, position)
);

CREATE TABLE IF NOT EXISTS links (
    page_id INTEGER NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    anchor_text TEXT,
    href TEXT NOT NULL,
    PRIMARY KEY (page_id, position)
);

CREATE INDEX IF NOT EXISTS idx_links_href ON links(href);

CREATE TABLE IF NOT EXISTS images (
    page_id INTEGER NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    src TEXT,
    alt TEXT,
    PRIMARY KEY (page_id, position)
);

CREATE TABLE IF NOT EXISTS forms (
    page_id INTEGER NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    action TEXT,
    method TEXT NOT NULL DEFAULT 'get',
    PRIMARY KEY (page_id, position)
);

CREATE TABLE IF NOT EXISTS scripts (
    page_id INTEGER NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    src TEXT NOT NULL,
    PRIMARY KEY (page_id, position)
);

CREATE TABLE IF NOT EXISTS page_meta (
    page_id INTEGER NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
    key TEXT NOT NULL,
    value TEXT NOT NULL,
    PRIMARY KEY (page_id, key)
);

-- Every URL claimed during a run, fetched successfully or not
CREATE TABLE IF NOT EXISTS visited_urls (
    run_id INTEGER NOT NULL REFERENCES crawl_runs(id) ON DELETE CASCADE,
    url TEXT NOT NULL,
    PRIMARY KEY (run_id, url)
);

-- View joining pages with their run target (for analysis/reporting)
CREATE VIEW IF NOT EXISTS run_pages AS
SELECT
    r.id AS run_id, r.target_url, p.url, p.depth, p.title, p.matched_pattern, p.fetched_at
FROM pages p
JOIN crawl_runs r ON r.id = p.run_id;

-- Crawl meta table stores metadata as key-value pairs
CREATE TABLE IF NOT EXISTS crawl_meta (
    key TEXT PRIMARY KEY NOT NULL,
    value TEXT NOT NULL
);
`
