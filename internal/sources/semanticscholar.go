// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/refcheck/refcheck/internal/bib"
	"github.com/refcheck/refcheck/internal/httputil"
	"github.com/refcheck/refcheck/pkg/types"
)

// Base URLs for the Semantic Scholar graph and recommendations APIs.
// Declared as vars so tests can substitute httptest servers.
var (
	semanticGraphBase = "https://api.semanticscholar.org/graph/v1"
	semanticRecBase   = "https://api.semanticscholar.org/recommendations/v1"
)

const semanticPaperFields = "paperId,externalIds,title,abstract,year,venue," +
	"publicationVenue,citationCount,authors,journal,publicationDate"

const semanticCitationFields = "paperId,externalIds,title,year,venue,citationCount,authors"

// semanticInterval is the minimum gap between unauthenticated requests;
// the public tier allows a little under one request per second.
const semanticInterval = 1100 * time.Millisecond

// SemanticScholar queries the Semantic Scholar graph API.
type SemanticScholar struct {
	Client  *http.Client
	APIKey  string
	cfg     types.SourcesConfig
	limiter *rate.Limiter
}

// NewSemanticScholar builds a paced Semantic Scholar client.
func NewSemanticScholar(cfg types.SourcesConfig) *SemanticScholar {
	return &SemanticScholar{
		Client:  &http.Client{Timeout: cfg.Timeout},
		APIKey:  cfg.SemanticScholarAPIKey,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(semanticInterval), 1),
	}
}

// Name returns the source tag.
func (s *SemanticScholar) Name() string { return types.SourceSemanticScholar }

// Search queries the paper search endpoint.
func (s *SemanticScholar) Search(ctx context.Context, query string, opts SearchOptions) ([]types.Record, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = s.cfg.MaxResults
	}
	if limit <= 0 {
		limit = 20
	}

	params := url.Values{
		"query":  {query},
		"limit":  {fmt.Sprintf("%d", limit)},
		"fields": {semanticPaperFields},
	}
	if opts.Year != "" {
		params.Set("year", opts.Year)
	}

	var resp semanticSearchResponse
	if err := s.getJSON(ctx, semanticGraphBase+"/paper/search?"+params.Encode(), &resp); err != nil {
		return nil, err
	}

	records := make([]types.Record, 0, len(resp.Data))
	for _, p := range resp.Data {
		records = append(records, p.toRecord())
	}
	return records, nil
}

// LookupDOI resolves a DOI through the graph API's DOI: prefix lookup.
func (s *SemanticScholar) LookupDOI(ctx context.Context, doi string) (*types.Record, error) {
	return s.LookupPaper(ctx, "DOI:"+doi)
}

// LookupPMID resolves a PMID through the graph API's PMID: prefix lookup.
func (s *SemanticScholar) LookupPMID(ctx context.Context, pmid string) (*types.Record, error) {
	return s.LookupPaper(ctx, "PMID:"+pmid)
}

// LookupPaper fetches one paper by any identifier the graph API accepts:
// a native paper id, "DOI:...", or "PMID:...".
func (s *SemanticScholar) LookupPaper(ctx context.Context, id string) (*types.Record, error) {
	params := url.Values{"fields": {semanticPaperFields}}
	reqURL := semanticGraphBase + "/paper/" + url.PathEscape(id) + "?" + params.Encode()

	var p semanticPaper
	if err := s.getJSON(ctx, reqURL, &p); err != nil {
		return nil, err
	}
	if p.PaperID == "" && p.Title == "" {
		return nil, ErrNotFound
	}
	rec := p.toRecord()
	return &rec, nil
}

// CheckRetracted is unsupported: retraction tracking belongs to PubMed.
func (s *SemanticScholar) CheckRetracted(context.Context, string) (bool, error) {
	return false, ErrUnsupported
}

// CitationDirection selects which side of the citation graph to walk.
type CitationDirection string

const (
	CitedBy    CitationDirection = "citedBy"
	References CitationDirection = "references"
)

// Citations returns the papers citing (CitedBy) or cited by (References)
// the given paper, ranked by citation count descending by the caller.
func (s *SemanticScholar) Citations(ctx context.Context, paperID string, direction CitationDirection, limit int) ([]types.Record, error) {
	var endpoint, key string
	switch direction {
	case CitedBy:
		endpoint, key = "citations", "citingPaper"
	case References:
		endpoint, key = "references", "citedPaper"
	default:
		return nil, fmt.Errorf("invalid direction %q: use citedBy or references", direction)
	}

	if limit <= 0 {
		limit = 50
	}
	params := url.Values{
		"fields": {semanticCitationFields},
		"limit":  {fmt.Sprintf("%d", limit)},
	}
	reqURL := fmt.Sprintf("%s/paper/%s/%s?%s",
		semanticGraphBase, url.PathEscape(paperID), endpoint, params.Encode())

	var resp semanticCitationResponse
	if err := s.getJSON(ctx, reqURL, &resp); err != nil {
		return nil, err
	}

	var records []types.Record
	for _, item := range resp.Data {
		p := item[key]
		if p == nil || p.PaperID == "" {
			continue
		}
		records = append(records, p.toRecord())
	}
	return records, nil
}

// Author is a graph-API author profile.
type Author struct {
	AuthorID      string `json:"authorId"`
	Name          string `json:"name"`
	PaperCount    int    `json:"paperCount"`
	CitationCount int    `json:"citationCount"`
	HIndex        int    `json:"hIndex"`
}

// SearchAuthors looks up author profiles by name.
func (s *SemanticScholar) SearchAuthors(ctx context.Context, name string, limit int) ([]Author, error) {
	if limit <= 0 {
		limit = 5
	}
	params := url.Values{
		"query":  {name},
		"limit":  {fmt.Sprintf("%d", limit)},
		"fields": {"authorId,name,paperCount,citationCount,hIndex"},
	}

	var resp struct {
		Data []Author `json:"data"`
	}
	if err := s.getJSON(ctx, semanticGraphBase+"/author/search?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// AuthorPapers fetches an author's papers, newest first by the API's order.
func (s *SemanticScholar) AuthorPapers(ctx context.Context, authorID string, limit int) ([]types.Record, error) {
	if limit <= 0 {
		limit = 100
	}
	params := url.Values{
		"fields": {semanticPaperFields},
		"limit":  {fmt.Sprintf("%d", limit)},
	}
	reqURL := fmt.Sprintf("%s/author/%s/papers?%s",
		semanticGraphBase, url.PathEscape(authorID), params.Encode())

	var resp semanticSearchResponse
	if err := s.getJSON(ctx, reqURL, &resp); err != nil {
		return nil, err
	}

	records := make([]types.Record, 0, len(resp.Data))
	for _, p := range resp.Data {
		records = append(records, p.toRecord())
	}
	return records, nil
}

// Recommend returns papers related to the given seed paper ids.
func (s *SemanticScholar) Recommend(ctx context.Context, seedIDs []string, limit int) ([]types.Record, error) {
	if limit <= 0 {
		limit = 20
	}
	params := url.Values{
		"fields": {semanticPaperFields},
		"limit":  {fmt.Sprintf("%d", limit)},
	}

	body, err := json.Marshal(map[string][]string{"positivePaperIds": seedIDs})
	if err != nil {
		return nil, fmt.Errorf("encoding recommendation request: %w", err)
	}

	reqURL := semanticRecBase + "/papers/?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp struct {
		RecommendedPapers []semanticPaper `json:"recommendedPapers"`
	}
	if err := s.do(ctx, req, &resp); err != nil {
		return nil, err
	}

	records := make([]types.Record, 0, len(resp.RecommendedPapers))
	for _, p := range resp.RecommendedPapers {
		records = append(records, p.toRecord())
	}
	return records, nil
}

func (s *SemanticScholar) getJSON(ctx context.Context, reqURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	return s.do(ctx, req, out)
}

func (s *SemanticScholar) do(ctx context.Context, req *http.Request, out any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	req.Header.Set("User-Agent", s.cfg.UserAgent)
	if s.APIKey != "" {
		req.Header.Set("x-api-key", s.APIKey)
	}

	resp, err := httputil.DoWithRetry(ctx, s.Client, req, 0)
	if err != nil {
		return fmt.Errorf("Semantic Scholar API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Semantic Scholar API returned HTTP %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parsing Semantic Scholar response: %w", err)
	}
	return nil
}

// Semantic Scholar API JSON structures.
type semanticSearchResponse struct {
	Total  int             `json:"total"`
	Offset int             `json:"offset"`
	Data   []semanticPaper `json:"data"`
}

type semanticCitationResponse struct {
	Data []map[string]*semanticPaper `json:"data"`
}

type semanticPaper struct {
	PaperID          string              `json:"paperId"`
	Title            string              `json:"title"`
	Abstract         string              `json:"abstract"`
	Year             int                 `json:"year"`
	Venue            string              `json:"venue"`
	PublicationDate  string              `json:"publicationDate"`
	CitationCount    int                 `json:"citationCount"`
	Authors          []semanticAuthor    `json:"authors"`
	ExternalIDs      semanticExternalIDs `json:"externalIds"`
	Journal          *semanticJournal    `json:"journal"`
	PublicationVenue *semanticVenue      `json:"publicationVenue"`
}

type semanticAuthor struct {
	AuthorID string `json:"authorId"`
	Name     string `json:"name"`
}

type semanticExternalIDs struct {
	DOI    string `json:"DOI"`
	PubMed string `json:"PubMed"`
}

type semanticJournal struct {
	Name   string `json:"name"`
	Volume string `json:"volume"`
	Pages  string `json:"pages"`
}

type semanticVenue struct {
	Name string `json:"name"`
}

// toRecord normalizes a graph-API paper into the canonical record shape.
// The venue name prefers publicationVenue, then journal, then the bare
// venue string.
func (p semanticPaper) toRecord() types.Record {
	r := types.Record{
		Title:         p.Title,
		Year:          p.Year,
		Abstract:      p.Abstract,
		CitationCount: p.CitationCount,
		SourceID:      p.PaperID,
		DOI:           bib.NormalizeDOI(p.ExternalIDs.DOI),
		PMID:          bib.NormalizePMID(p.ExternalIDs.PubMed),
		Journal:       p.Venue,
		Origins:       []string{types.SourceSemanticScholar},
	}

	if p.Journal != nil {
		if p.Journal.Name != "" {
			r.Journal = p.Journal.Name
		}
		r.Volume = p.Journal.Volume
		r.Pages = p.Journal.Pages
	}
	if p.PublicationVenue != nil && p.PublicationVenue.Name != "" {
		r.Journal = p.PublicationVenue.Name
	}

	for _, a := range p.Authors {
		r.Authors = append(r.Authors, a.Name)
	}
	return r
}
