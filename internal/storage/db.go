package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"wikignome/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS pages (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  title TEXT NOT NULL UNIQUE,
  category TEXT NOT NULL,
  kind TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'fetched',
  hash TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_pages_category ON pages(category);
CREATE INDEX IF NOT EXISTS idx_pages_status ON pages(status);

CREATE TABLE IF NOT EXISTS edits (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  pageId INTEGER NOT NULL,
  summary TEXT NOT NULL,
  firedJson TEXT NOT NULL,
  oldHash TEXT NOT NULL,
  newHash TEXT NOT NULL,
  dryRun INTEGER NOT NULL DEFAULT 0,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(pageId) REFERENCES pages(id)
);
CREATE INDEX IF NOT EXISTS idx_edits_traceId ON edits(traceId);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  category TEXT NOT NULL,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) UpsertPage(title, category string, kind internal.PageKind, status internal.PageStatus, hash string) (internal.PageRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO pages (title, category, kind, status, hash)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(title) DO UPDATE SET
  category=excluded.category,
  kind=excluded.kind,
  status=excluded.status,
  hash=excluded.hash,
  updatedAt=CURRENT_TIMESTAMP
`, title, category, string(kind), string(status), hash)
	if err != nil {
		return internal.PageRow{}, err
	}

	row, err := d.GetPageByTitle(title)
	if err != nil {
		return internal.PageRow{}, err
	}
	if row == nil {
		return internal.PageRow{}, errors.New("failed to upsert page")
	}
	return *row, nil
}

func (d *DB) GetPageByTitle(title string) (*internal.PageRow, error) {
	var row internal.PageRow
	err := d.conn.QueryRow(`
SELECT id, title, category, kind, status, hash, updatedAt FROM pages WHERE title = ?
`, title).Scan(&row.ID, &row.Title, &row.Category, &row.Kind, &row.Status, &row.Hash, &row.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) ListPagesByStatus(status internal.PageStatus, limit int) ([]internal.PageRow, error) {
	rows, err := d.conn.Query(`
SELECT id, title, category, kind, status, hash, updatedAt FROM pages WHERE status = ? ORDER BY title ASC LIMIT ?
`, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.PageRow
	for rows.Next() {
		var row internal.PageRow
		if err := rows.Scan(&row.ID, &row.Title, &row.Category, &row.Kind, &row.Status, &row.Hash, &row.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) InsertEdit(traceID string, pageID int, summary string, fired []string, oldHash, newHash string, dryRun bool) (int64, error) {
	firedJSON, _ := json.Marshal(fired)
	dry := 0
	if dryRun {
		dry = 1
	}
	result, err := d.conn.Exec(`
INSERT INTO edits (traceId, pageId, summary, firedJson, oldHash, newHash, dryRun)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, traceID, pageID, summary, string(firedJSON), oldHash, newHash, dry)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (d *DB) InsertRun(traceID, category string, timings map[string]float64, counts map[string]int) error {
	timingsJSON, _ := json.Marshal(timings)
	countsJSON, _ := json.Marshal(counts)
	_, err := d.conn.Exec(`INSERT INTO runs (traceId, category, timingsJson, countsJson) VALUES (?, ?, ?, ?)`, traceID, category, string(timingsJSON), string(countsJSON))
	return err
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

// Cursor helpers back the resumable category walk. The cursor is the title of
// the last page fully handled for a category.
func (d *DB) SetCursor(category, title string) error {
	return d.SetMetadata("normalize.cursor."+category, title)
}

func (d *DB) GetCursor(category string) (string, error) {
	value, err := d.GetMetadata("normalize.cursor." + category)
	if err != nil {
		return "", err
	}
	if value == nil {
		return "", nil
	}
	return *value, nil
}

func (d *DB) ClearCursor(category string) error {
	_, err := d.conn.Exec(`DELETE FROM metadata WHERE key = ?`, "normalize.cursor."+category)
	return err
}

func (d *DB) GetEditReportRows(traceID string) ([]internal.EditReportRow, error) {
	rows, err := d.conn.Query(`
SELECT p.title, p.kind, e.summary, e.firedJson, e.oldHash, e.newHash, e.dryRun, e.createdAt
FROM edits e
JOIN pages p ON p.id = e.pageId
WHERE e.traceId = ?
ORDER BY e.id ASC
`, traceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.EditReportRow
	for rows.Next() {
		var row internal.EditReportRow
		var firedJSON string
		var dry int
		if err := rows.Scan(&row.Title, &row.Kind, &row.Summary, &firedJSON, &row.OldHash, &row.NewHash, &dry, &row.CreatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(firedJSON), &row.Fired)
		row.DryRun = dry != 0
		out = append(out, row)
	}

	return out, rows.Err()
}
