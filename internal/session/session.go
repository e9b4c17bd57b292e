// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package session persists research sessions as JSON files. A session
// accumulates the records found across searches, the search log, and
// the explored citation graph. Records entering a session are merged
// with what is already there, never blindly overwritten.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/refcheck/refcheck/internal/bib"
	"github.com/refcheck/refcheck/pkg/types"
)

const filePrefix = "research_session_"

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// SearchEntry logs one search performed during the session.
type SearchEntry struct {
	Source      string    `json:"source"`
	Query       string    `json:"query"`
	Timestamp   time.Time `json:"timestamp"`
	ResultCount int       `json:"result_count"`
}

// CitationEdges holds one paper's explored citation links, as record keys.
type CitationEdges struct {
	Cites   []string `json:"cites"`
	CitedBy []string `json:"cited_by"`
}

// Session is the unit of persistence for a research topic.
type Session struct {
	ID        string    `json:"session_id"`
	Topic     string    `json:"topic"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Filename is the file this session saves to, fixed at creation so
	// repeated saves update the same file.
	Filename string `json:"filename"`

	Searches []SearchEntry `json:"searches_performed"`

	// Papers is keyed by Record.Key (DOI, then PMID, then source id).
	Papers map[string]types.Record `json:"papers"`

	CitationGraph map[string]CitationEdges `json:"citation_graph"`
}

// New creates an empty session for a topic. The filename embeds a slug
// of the topic and the creation date.
func New(topic string) *Session {
	now := time.Now()
	slug := strings.Trim(slugPattern.ReplaceAllString(strings.ToLower(topic), "_"), "_")
	if slug == "" {
		slug = "untitled"
	}
	return &Session{
		ID:            newID(),
		Topic:         topic,
		CreatedAt:     now,
		UpdatedAt:     now,
		Filename:      fmt.Sprintf("%s%s_%s.json", filePrefix, slug, now.Format("2006-01-02")),
		Papers:        map[string]types.Record{},
		CitationGraph: map[string]CitationEdges{},
	}
}

func newID() string {
	var b [16]byte
	rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// Load reads a session file.
func Load(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing session %s: %w", path, err)
	}
	if s.Papers == nil {
		s.Papers = map[string]types.Record{}
	}
	if s.CitationGraph == nil {
		s.CitationGraph = map[string]CitationEdges{}
	}
	return &s, nil
}

// Save writes the session into dir atomically (temp file + rename) and
// returns the full path written.
func (s *Session) Save(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating session dir: %w", err)
	}

	s.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding session: %w", err)
	}

	destPath := filepath.Join(dir, s.Filename)
	tmpFile, err := os.CreateTemp(dir, ".session-*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, writeErr := tmpFile.Write(data)
	closeErr := tmpFile.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("writing session: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("renaming temp file: %w", err)
	}
	return destPath, nil
}

// AddRecords logs a search and folds its records into the session.
// A record matching an existing entry (per the policy) is merged into
// it; new works are inserted under their identity key.
func (s *Session) AddRecords(policy bib.Policy, records []types.Record, query, source string) {
	s.Searches = append(s.Searches, SearchEntry{
		Source:      source,
		Query:       query,
		Timestamp:   time.Now(),
		ResultCount: len(records),
	})

	for _, rec := range records {
		key := rec.Key()
		if key == "" {
			continue
		}

		if existing, ok := s.Papers[key]; ok {
			s.Papers[key] = policy.Merge(existing, rec)
			continue
		}

		// Scan existing entries in sorted key order so a record that
		// could match more than one always merges into the same entry.
		keys := make([]string, 0, len(s.Papers))
		for k := range s.Papers {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		merged := false
		for _, k := range keys {
			if policy.SameWork(s.Papers[k], rec) {
				s.Papers[k] = policy.Merge(s.Papers[k], rec)
				merged = true
				break
			}
		}
		if !merged {
			s.Papers[key] = rec
		}
	}
}

// AddCitations records explored citation edges for a paper. direction
// is "citedBy" or "cites"; the matching edge list is replaced.
func (s *Session) AddCitations(paperKey, direction string, neighborKeys []string) {
	edges := s.CitationGraph[paperKey]
	if direction == "citedBy" {
		edges.CitedBy = neighborKeys
	} else {
		edges.Cites = neighborKeys
	}
	s.CitationGraph[paperKey] = edges
}

// Records returns the session's papers sorted by citation count
// descending, ties by title.
func (s *Session) Records() []types.Record {
	records := make([]types.Record, 0, len(s.Papers))
	for _, rec := range s.Papers {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].CitationCount != records[j].CitationCount {
			return records[i].CitationCount > records[j].CitationCount
		}
		return records[i].Title < records[j].Title
	})
	return records
}

// Summary describes one saved session file.
type Summary struct {
	Path       string
	Topic      string
	PaperCount int
	UpdatedAt  time.Time
}

// List finds session files in dir, newest first. Unreadable files are
// skipped rather than failing the listing.
func List(dir string) ([]Summary, error) {
	if dir == "" {
		dir = "."
	}
	matches, err := filepath.Glob(filepath.Join(dir, filePrefix+"*.json"))
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}

	var summaries []Summary
	for _, path := range matches {
		s, err := Load(path)
		if err != nil {
			continue
		}
		summaries = append(summaries, Summary{
			Path:       path,
			Topic:      s.Topic,
			PaperCount: len(s.Papers),
			UpdatedAt:  s.UpdatedAt,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}
