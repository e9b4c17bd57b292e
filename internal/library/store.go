// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package library persists canonical bibliographic records in a local
// SQLite archive with a full-text index over titles and abstracts.
// Records entering the library are reconciled against what is already
// stored, so repeated imports of the same work merge rather than
// duplicate.
package library

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/refcheck/refcheck/internal/bib"
	"github.com/refcheck/refcheck/pkg/types"
)

const dbFile = "library.db"

// Store manages the record library SQLite database.
type Store struct {
	db         *sql.DB
	libraryDir string
	maxResults int
	policy     bib.Policy
}

// NewStore opens or creates the library database at
// libraryDir/library.db, creating the schema when missing.
func NewStore(cfg types.LibraryConfig, policy bib.Policy) (*Store, error) {
	if err := os.MkdirAll(cfg.LibraryDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating library directory: %w", err)
	}

	dbPath := filepath.Join(cfg.LibraryDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	s := &Store{
		db:         db,
		libraryDir: cfg.LibraryDir,
		maxResults: maxResults,
		policy:     policy,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS records (
			key TEXT NOT NULL UNIQUE,
			title TEXT,
			title_key TEXT,
			authors TEXT,
			year INTEGER,
			journal TEXT,
			volume TEXT,
			issue TEXT,
			pages TEXT,
			doi TEXT,
			pmid TEXT,
			source_id TEXT,
			abstract TEXT,
			citation_count INTEGER,
			origins TEXT,
			retracted INTEGER,
			updated_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_doi ON records(doi)`,
		`CREATE INDEX IF NOT EXISTS idx_records_pmid ON records(pmid)`,
		`CREATE INDEX IF NOT EXISTS idx_records_title_key ON records(title_key)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table with triggers for sync.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='records_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE records_fts USING fts5(title, abstract, content=records, content_rowid=rowid)`,
			`CREATE TRIGGER records_ai AFTER INSERT ON records BEGIN
				INSERT INTO records_fts(rowid, title, abstract) VALUES (new.rowid, new.title, new.abstract);
			END`,
			`CREATE TRIGGER records_ad AFTER DELETE ON records BEGIN
				INSERT INTO records_fts(records_fts, rowid, title, abstract) VALUES('delete', old.rowid, old.title, old.abstract);
			END`,
			`CREATE TRIGGER records_au AFTER UPDATE ON records BEGIN
				INSERT INTO records_fts(records_fts, rowid, title, abstract) VALUES('delete', old.rowid, old.title, old.abstract);
				INSERT INTO records_fts(rowid, title, abstract) VALUES (new.rowid, new.title, new.abstract);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}

	return nil
}

// StoreSummary holds counts from a library import run.
type StoreSummary struct {
	Added  int
	Merged int
	Failed int
}

// StoreRecords upserts a batch of records, merging each into any
// existing entry for the same work. Individual failures are counted
// and do not abort the batch.
func (s *Store) StoreRecords(ctx context.Context, records []types.Record) (StoreSummary, error) {
	var summary StoreSummary
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		merged, err := s.Upsert(ctx, rec)
		switch {
		case err != nil:
			summary.Failed++
		case merged:
			summary.Merged++
		default:
			summary.Added++
		}
	}
	return summary, nil
}

// Upsert stores one record. When an existing entry is the same work
// under the matching policy, the two are merged and the entry is
// rewritten under the merged record's identity key. Reports whether a
// merge happened.
func (s *Store) Upsert(ctx context.Context, rec types.Record) (bool, error) {
	key := rec.Key()
	if key == "" {
		return false, fmt.Errorf("record has no identity key")
	}

	existing, existingKey, err := s.findSameWork(ctx, rec)
	if err != nil {
		return false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	merged := rec
	if existing != nil {
		merged = s.policy.Merge(*existing, rec)
		if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE key = ?`, existingKey); err != nil {
			return false, fmt.Errorf("removing superseded entry: %w", err)
		}
	}

	authorsJSON, _ := json.Marshal(merged.Authors)
	originsJSON, _ := json.Marshal(merged.Origins)
	retracted := 0
	if merged.Retracted {
		retracted = 1
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO records (key, title, title_key, authors, year, journal, volume, issue, pages,
			doi, pmid, source_id, abstract, citation_count, origins, retracted, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			title=excluded.title, title_key=excluded.title_key, authors=excluded.authors,
			year=excluded.year, journal=excluded.journal, volume=excluded.volume,
			issue=excluded.issue, pages=excluded.pages, doi=excluded.doi, pmid=excluded.pmid,
			source_id=excluded.source_id, abstract=excluded.abstract,
			citation_count=excluded.citation_count, origins=excluded.origins,
			retracted=excluded.retracted, updated_at=excluded.updated_at`,
		merged.Key(), merged.Title, bib.TitleKey(merged.Title), string(authorsJSON),
		merged.Year, merged.Journal, merged.Volume, merged.Issue, merged.Pages,
		merged.DOI, merged.PMID, merged.SourceID, merged.Abstract,
		merged.CitationCount, string(originsJSON), retracted,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return false, fmt.Errorf("upserting record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing upsert: %w", err)
	}
	return existing != nil, nil
}

// findSameWork looks up candidate entries by identifier or title key
// and confirms identity with the matching policy before reporting one.
func (s *Store) findSameWork(ctx context.Context, rec types.Record) (*types.Record, string, error) {
	var clauses []string
	var args []any
	if rec.DOI != "" {
		clauses = append(clauses, `doi = ?`)
		args = append(args, rec.DOI)
	}
	if rec.PMID != "" {
		clauses = append(clauses, `pmid = ?`)
		args = append(args, rec.PMID)
	}
	if tk := bib.TitleKey(rec.Title); tk != "" {
		clauses = append(clauses, `title_key = ?`)
		args = append(args, tk)
	}
	if len(clauses) == 0 {
		return nil, "", nil
	}

	query := selectRecords + ` WHERE `
	for i, c := range clauses {
		if i > 0 {
			query += ` OR `
		}
		query += c
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("querying candidates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		candidate, key, err := scanRecord(rows)
		if err != nil {
			return nil, "", err
		}
		if s.policy.SameWork(candidate, rec) {
			return &candidate, key, nil
		}
	}
	return nil, "", rows.Err()
}

const selectRecords = `SELECT key, title, authors, year, journal, volume, issue, pages,
	doi, pmid, source_id, abstract, citation_count, origins, retracted FROM records`

func scanRecord(rows *sql.Rows) (types.Record, string, error) {
	var (
		rec         types.Record
		key         string
		authorsJSON sql.NullString
		originsJSON sql.NullString
		retracted   int
	)
	if err := rows.Scan(
		&key, &rec.Title, &authorsJSON, &rec.Year, &rec.Journal,
		&rec.Volume, &rec.Issue, &rec.Pages, &rec.DOI, &rec.PMID,
		&rec.SourceID, &rec.Abstract, &rec.CitationCount, &originsJSON, &retracted,
	); err != nil {
		return rec, "", fmt.Errorf("scanning record: %w", err)
	}
	if authorsJSON.Valid {
		json.Unmarshal([]byte(authorsJSON.String), &rec.Authors)
	}
	if originsJSON.Valid {
		json.Unmarshal([]byte(originsJSON.String), &rec.Origins)
	}
	rec.Retracted = retracted != 0
	return rec, key, nil
}

// QueryOptions holds parameters for library queries.
type QueryOptions struct {
	// Query is the FTS5 full-text search string over title and abstract.
	Query string

	// Year filters by exact publication year when non-zero.
	Year int

	// Source filters to records contributed by the named source tag.
	Source string

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// Retrieve queries the library. Full-text queries rank by FTS relevance;
// filter-only queries sort by citation count descending.
func (s *Store) Retrieve(ctx context.Context, opts QueryOptions) ([]types.Record, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var (
		query string
		args  []any
	)
	if opts.Query != "" {
		query = `SELECT r.key, r.title, r.authors, r.year, r.journal, r.volume, r.issue, r.pages,
			r.doi, r.pmid, r.source_id, r.abstract, r.citation_count, r.origins, r.retracted
			FROM records_fts
			JOIN records r ON r.rowid = records_fts.rowid
			WHERE records_fts MATCH ?`
		args = append(args, opts.Query)
	} else {
		query = selectRecords + ` WHERE 1=1`
	}

	if opts.Year != 0 {
		query += ` AND year = ?`
		args = append(args, opts.Year)
	}
	if opts.Source != "" {
		query += ` AND EXISTS (SELECT 1 FROM json_each(origins) WHERE value = ?)`
		args = append(args, opts.Source)
	}

	if opts.Query != "" {
		query += ` ORDER BY records_fts.rank`
	} else {
		query += ` ORDER BY citation_count DESC, title`
	}
	query += ` LIMIT ?`
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying library: %w", err)
	}
	defer rows.Close()

	var records []types.Record
	for rows.Next() {
		rec, _, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
