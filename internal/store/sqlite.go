package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/echosage/microlog/internal/models"
)

// SQLitePersister stores the document in SQLite, one table per collection
// plus singleton tables for meta, participant and baseline. Rows keep their
// document order through the seq column, so a load reproduces the exact
// document that was saved.
type SQLitePersister struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS meta (id INTEGER PRIMARY KEY CHECK (id = 1), payload TEXT NOT NULL);
CREATE TABLE IF NOT EXISTS participant (id INTEGER PRIMARY KEY CHECK (id = 1), payload TEXT NOT NULL);
CREATE TABLE IF NOT EXISTS baseline (id INTEGER PRIMARY KEY CHECK (id = 1), payload TEXT NOT NULL);
CREATE TABLE IF NOT EXISTS doses (seq INTEGER PRIMARY KEY AUTOINCREMENT, ts TEXT NOT NULL, payload TEXT NOT NULL);
CREATE TABLE IF NOT EXISTS daily (seq INTEGER PRIMARY KEY AUTOINCREMENT, date TEXT NOT NULL, payload TEXT NOT NULL);
CREATE TABLE IF NOT EXISTS weekly (seq INTEGER PRIMARY KEY AUTOINCREMENT, week_start TEXT NOT NULL, payload TEXT NOT NULL);
CREATE TABLE IF NOT EXISTS taptests (seq INTEGER PRIMARY KEY AUTOINCREMENT, date TEXT NOT NULL, payload TEXT NOT NULL);
CREATE TABLE IF NOT EXISTS pvt (seq INTEGER PRIMARY KEY AUTOINCREMENT, payload TEXT NOT NULL);
`

// OpenSQLite opens (or creates) the database file, applies pragmas and the
// schema, and returns a persister over it.
func OpenSQLite(path string) (*SQLitePersister, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	p, err := NewSQLitePersister(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

func NewSQLitePersister(db *sql.DB) (*SQLitePersister, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &SQLitePersister{db: db}, nil
}

func (p *SQLitePersister) Close() error {
	return p.db.Close()
}

func (p *SQLitePersister) Load() (*models.Document, error) {
	var doc models.Document
	found, err := p.loadSingleton("meta", &doc.Meta)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	if _, err := p.loadSingleton("participant", &doc.Participant); err != nil {
		return nil, err
	}
	var baseline models.Baseline
	hasBaseline, err := p.loadSingleton("baseline", &baseline)
	if err != nil {
		return nil, err
	}
	if hasBaseline {
		doc.Baseline = &baseline
	}
	if err := loadCollection(p.db, "doses", &doc.Doses); err != nil {
		return nil, err
	}
	if err := loadCollection(p.db, "daily", &doc.Daily); err != nil {
		return nil, err
	}
	if err := loadCollection(p.db, "weekly", &doc.Weekly); err != nil {
		return nil, err
	}
	if err := loadCollection(p.db, "taptests", &doc.FTT); err != nil {
		return nil, err
	}
	if err := loadCollection(p.db, "pvt", &doc.PVT); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (p *SQLitePersister) loadSingleton(table string, dst any) (bool, error) {
	var payload string
	err := p.db.QueryRow("SELECT payload FROM " + table + " WHERE id = 1").Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load %s: %w", table, err)
	}
	if err := json.Unmarshal([]byte(payload), dst); err != nil {
		return false, fmt.Errorf("parse %s: %w", table, err)
	}
	return true, nil
}

func loadCollection[T any](db *sql.DB, table string, dst *[]T) error {
	rows, err := db.Query("SELECT payload FROM " + table + " ORDER BY seq")
	if err != nil {
		return fmt.Errorf("load %s: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return fmt.Errorf("scan %s: %w", table, err)
		}
		var item T
		if err := json.Unmarshal([]byte(payload), &item); err != nil {
			return fmt.Errorf("parse %s row: %w", table, err)
		}
		*dst = append(*dst, item)
	}
	return rows.Err()
}

// Save rewrites the whole document in one transaction. The document is small
// by construction (a single participant's records), so full rewrites stay
// cheap and keep the persister trivially consistent with the in-memory copy.
func (p *SQLitePersister) Save(doc *models.Document) error {
	tx, err := p.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"meta", "participant", "baseline", "doses", "daily", "weekly", "taptests", "pvt"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	if err := saveSingleton(tx, "meta", doc.Meta); err != nil {
		return err
	}
	if err := saveSingleton(tx, "participant", doc.Participant); err != nil {
		return err
	}
	if doc.Baseline != nil {
		if err := saveSingleton(tx, "baseline", doc.Baseline); err != nil {
			return err
		}
	}
	for _, d := range doc.Doses {
		if err := insertRow(tx, "INSERT INTO doses (ts, payload) VALUES (?, ?)", d.TS, d); err != nil {
			return err
		}
	}
	for _, e := range doc.Daily {
		if err := insertRow(tx, "INSERT INTO daily (date, payload) VALUES (?, ?)", e.Date, e); err != nil {
			return err
		}
	}
	for _, w := range doc.Weekly {
		if err := insertRow(tx, "INSERT INTO weekly (week_start, payload) VALUES (?, ?)", w.WeekStart, w); err != nil {
			return err
		}
	}
	for _, r := range doc.FTT {
		if err := insertRow(tx, "INSERT INTO taptests (date, payload) VALUES (?, ?)", r.Date, r); err != nil {
			return err
		}
	}
	for _, raw := range doc.PVT {
		if _, err := tx.Exec("INSERT INTO pvt (payload) VALUES (?)", string(raw)); err != nil {
			return fmt.Errorf("insert pvt: %w", err)
		}
	}
	return tx.Commit()
}

func saveSingleton(tx *sql.Tx, table string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO "+table+" (id, payload) VALUES (1, ?)", string(payload)); err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

func insertRow(tx *sql.Tx, stmt, key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(stmt, key, string(payload)); err != nil {
		return fmt.Errorf("insert row: %w", err)
	}
	return nil
}
