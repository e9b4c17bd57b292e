// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/refcheck/refcheck/internal/bib"
	"github.com/refcheck/refcheck/internal/httputil"
	"github.com/refcheck/refcheck/pkg/types"
)

// pubmedBase is the NCBI E-utilities endpoint; a var so tests can point
// it at an httptest server.
var pubmedBase = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// NCBI allows 3 requests/second without an API key and 10 with one.
const (
	pubmedInterval    = 350 * time.Millisecond
	pubmedKeyInterval = 110 * time.Millisecond
)

// clinicalFilters maps filter names to PubMed clinical query hedges.
// These are the broad-sensitivity versions maintained by NCBI.
var clinicalFilters = map[string]string{
	"therapy":           "(Therapy/Broad[filter])",
	"diagnosis":         "(Diagnosis/Broad[filter])",
	"prognosis":         "(Prognosis/Broad[filter])",
	"etiology":          "(Etiology/Broad[filter])",
	"systematic_review": "systematic[sb]",
}

// ClinicalFilterNames lists the accepted --filter values.
func ClinicalFilterNames() []string {
	return []string{"therapy", "diagnosis", "prognosis", "etiology", "systematic_review"}
}

// PubMed queries the NCBI E-utilities (esearch + efetch).
type PubMed struct {
	Client  *http.Client
	APIKey  string
	cfg     types.SourcesConfig
	limiter *rate.Limiter
}

// NewPubMed builds a paced E-utilities client.
func NewPubMed(cfg types.SourcesConfig) *PubMed {
	interval := pubmedInterval
	if cfg.NCBIAPIKey != "" {
		interval = pubmedKeyInterval
	}
	return &PubMed{
		Client:  &http.Client{Timeout: cfg.Timeout},
		APIKey:  cfg.NCBIAPIKey,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Name returns the source tag.
func (p *PubMed) Name() string { return types.SourcePubMed }

// Search runs esearch for PMIDs, then efetch for the full records.
func (p *PubMed) Search(ctx context.Context, query string, opts SearchOptions) ([]types.Record, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = p.cfg.MaxResults
	}
	if limit <= 0 {
		limit = 20
	}

	term := query
	if opts.Filter != "" {
		hedge, ok := clinicalFilters[opts.Filter]
		if !ok {
			return nil, fmt.Errorf("unknown clinical filter %q (accepted: %s)",
				opts.Filter, strings.Join(ClinicalFilterNames(), ", "))
		}
		term = fmt.Sprintf("(%s) AND %s", query, hedge)
	}

	params := url.Values{
		"db":      {"pubmed"},
		"term":    {term},
		"retmax":  {strconv.Itoa(limit)},
		"retmode": {"json"},
		"sort":    {"relevance"},
	}
	if min, max := splitYearRange(opts.Year); min != "" || max != "" {
		params.Set("datetype", "pdat")
		if min != "" {
			params.Set("mindate", min)
		}
		if max != "" {
			params.Set("maxdate", max)
		}
	}

	pmids, err := p.esearch(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(pmids) == 0 {
		return nil, nil
	}
	return p.Fetch(ctx, pmids)
}

// LookupDOI finds the PubMed record for a DOI via a fielded esearch.
func (p *PubMed) LookupDOI(ctx context.Context, doi string) (*types.Record, error) {
	params := url.Values{
		"db":      {"pubmed"},
		"term":    {fmt.Sprintf("%s[doi]", doi)},
		"retmax":  {"1"},
		"retmode": {"json"},
	}
	pmids, err := p.esearch(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(pmids) == 0 {
		return nil, ErrNotFound
	}
	return p.LookupPMID(ctx, pmids[0])
}

// LookupPMID fetches one record by PMID.
func (p *PubMed) LookupPMID(ctx context.Context, pmid string) (*types.Record, error) {
	records, err := p.Fetch(ctx, []string{pmid})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return &records[0], nil
}

// Fetch retrieves full records for a batch of PMIDs in one efetch call.
func (p *PubMed) Fetch(ctx context.Context, pmids []string) ([]types.Record, error) {
	params := url.Values{
		"db":      {"pubmed"},
		"id":      {strings.Join(pmids, ",")},
		"retmode": {"xml"},
	}

	var set pubmedArticleSet
	if err := p.getXML(ctx, pubmedBase+"/efetch.fcgi?"+params.Encode(), &set); err != nil {
		return nil, err
	}

	records := make([]types.Record, 0, len(set.Articles))
	for _, art := range set.Articles {
		records = append(records, art.toRecord())
	}
	return records, nil
}

// CheckRetracted reports whether PubMed flags the article as retracted,
// either through its publication types or a retraction notice link.
func (p *PubMed) CheckRetracted(ctx context.Context, pmid string) (bool, error) {
	params := url.Values{
		"db":      {"pubmed"},
		"id":      {pmid},
		"retmode": {"xml"},
	}

	var set pubmedArticleSet
	if err := p.getXML(ctx, pubmedBase+"/efetch.fcgi?"+params.Encode(), &set); err != nil {
		return false, err
	}
	if len(set.Articles) == 0 {
		return false, ErrNotFound
	}
	return set.Articles[0].retracted(), nil
}

func (p *PubMed) esearch(ctx context.Context, params url.Values) ([]string, error) {
	body, err := p.get(ctx, pubmedBase+"/esearch.fcgi?"+params.Encode())
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var resp struct {
		ESearchResult struct {
			IDList []string `json:"idlist"`
		} `json:"esearchresult"`
	}
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("parsing esearch response: %w", err)
	}
	return resp.ESearchResult.IDList, nil
}

func (p *PubMed) getXML(ctx context.Context, reqURL string, out any) error {
	body, err := p.get(ctx, reqURL)
	if err != nil {
		return err
	}
	defer body.Close()

	if err := xml.NewDecoder(body).Decode(out); err != nil {
		return fmt.Errorf("parsing efetch response: %w", err)
	}
	return nil
}

func (p *PubMed) get(ctx context.Context, reqURL string) (io.ReadCloser, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u, err := url.Parse(reqURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("tool", "refcheck")
	if p.APIKey != "" {
		q.Set("api_key", p.APIKey)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, p.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("PubMed API request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("PubMed API returned HTTP %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// splitYearRange turns "2020-2023", "2020-", "-2023", or "2020" into
// esearch mindate/maxdate values.
func splitYearRange(yr string) (min, max string) {
	if yr == "" {
		return "", ""
	}
	if i := strings.IndexByte(yr, '-'); i >= 0 {
		return strings.TrimSpace(yr[:i]), strings.TrimSpace(yr[i+1:])
	}
	return yr, yr
}

// PubMed efetch XML structures. Only the fields the record shape needs
// are mapped; everything else is skipped by the decoder.
type pubmedArticleSet struct {
	XMLName  xml.Name        `xml:"PubmedArticleSet"`
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	PMID    string `xml:"MedlineCitation>PMID"`
	Article struct {
		Title   string `xml:"ArticleTitle"`
		Journal struct {
			Title string `xml:"Title"`
			Issue struct {
				Volume  string `xml:"Volume"`
				Issue   string `xml:"Issue"`
				PubDate struct {
					Year        string `xml:"Year"`
					MedlineDate string `xml:"MedlineDate"`
				} `xml:"PubDate"`
			} `xml:"JournalIssue"`
		} `xml:"Journal"`
		Pagination struct {
			MedlinePgn string `xml:"MedlinePgn"`
		} `xml:"Pagination"`
		Abstract struct {
			Sections []struct {
				Label string `xml:"Label,attr"`
				Text  string `xml:",chardata"`
			} `xml:"AbstractText"`
		} `xml:"Abstract"`
		Authors []struct {
			LastName       string `xml:"LastName"`
			Initials       string `xml:"Initials"`
			CollectiveName string `xml:"CollectiveName"`
		} `xml:"AuthorList>Author"`
		ELocationIDs []struct {
			EIdType string `xml:"EIdType,attr"`
			Value   string `xml:",chardata"`
		} `xml:"ELocationID"`
		PublicationTypes []string `xml:"PublicationTypeList>PublicationType"`
	} `xml:"MedlineCitation>Article"`
	CommentsCorrections []struct {
		RefType string `xml:"RefType,attr"`
	} `xml:"MedlineCitation>CommentsCorrectionsList>CommentsCorrections"`
	ArticleIDs []struct {
		IDType string `xml:"IdType,attr"`
		Value  string `xml:",chardata"`
	} `xml:"PubmedData>ArticleIdList>ArticleId"`
}

var medlineYearPattern = regexp.MustCompile(`\d{4}`)

func (a pubmedArticle) toRecord() types.Record {
	r := types.Record{
		Title:   strings.TrimSpace(a.Article.Title),
		Journal: a.Article.Journal.Title,
		Volume:  a.Article.Journal.Issue.Volume,
		Issue:   a.Article.Journal.Issue.Issue,
		Pages:   a.Article.Pagination.MedlinePgn,
		PMID:    bib.NormalizePMID(a.PMID),
		Origins: []string{types.SourcePubMed},
	}

	pd := a.Article.Journal.Issue.PubDate
	if pd.Year != "" {
		r.Year, _ = strconv.Atoi(pd.Year)
	} else if m := medlineYearPattern.FindString(pd.MedlineDate); m != "" {
		// MedlineDate covers irregular issues like "2020 Jan-Feb".
		r.Year, _ = strconv.Atoi(m)
	}

	for _, au := range a.Article.Authors {
		switch {
		case au.CollectiveName != "":
			r.Authors = append(r.Authors, au.CollectiveName)
		case au.LastName != "":
			name := au.LastName
			if au.Initials != "" {
				name += " " + au.Initials
			}
			r.Authors = append(r.Authors, name)
		}
	}

	var sections []string
	for _, s := range a.Article.Abstract.Sections {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		if s.Label != "" {
			text = s.Label + ": " + text
		}
		sections = append(sections, text)
	}
	r.Abstract = strings.Join(sections, " ")

	// DOI lives in the ArticleIdList for most records and only in
	// ELocationID for some older ones.
	for _, id := range a.ArticleIDs {
		if id.IDType == "doi" {
			r.DOI = bib.NormalizeDOI(id.Value)
			break
		}
	}
	if r.DOI == "" {
		for _, el := range a.Article.ELocationIDs {
			if el.EIdType == "doi" {
				r.DOI = bib.NormalizeDOI(el.Value)
				break
			}
		}
	}

	r.Retracted = a.retracted()
	return r
}

func (a pubmedArticle) retracted() bool {
	for _, pt := range a.Article.PublicationTypes {
		if strings.EqualFold(pt, "Retracted Publication") {
			return true
		}
	}
	for _, cc := range a.CommentsCorrections {
		if cc.RefType == "RetractionIn" {
			return true
		}
	}
	return false
}
