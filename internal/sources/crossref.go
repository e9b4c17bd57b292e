// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/refcheck/refcheck/internal/bib"
	"github.com/refcheck/refcheck/internal/httputil"
	"github.com/refcheck/refcheck/pkg/types"
)

// crossrefBase is the Crossref REST API endpoint; a var so tests can
// point it at an httptest server.
var crossrefBase = "https://api.crossref.org"

// The polite pool tolerates a much higher rate than the anonymous pool.
const crossrefInterval = 100 * time.Millisecond

// Crossref queries the Crossref DOI registry.
type Crossref struct {
	Client  *http.Client
	Mailto  string
	cfg     types.SourcesConfig
	limiter *rate.Limiter
}

// NewCrossref builds a paced Crossref client. When cfg.CrossrefMailto is
// set, requests join the polite pool via the mailto query parameter.
func NewCrossref(cfg types.SourcesConfig) *Crossref {
	return &Crossref{
		Client:  &http.Client{Timeout: cfg.Timeout},
		Mailto:  cfg.CrossrefMailto,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(crossrefInterval), 1),
	}
}

// Name returns the source tag.
func (c *Crossref) Name() string { return types.SourceCrossref }

// Search runs a bibliographic query against the works index.
func (c *Crossref) Search(ctx context.Context, query string, opts SearchOptions) ([]types.Record, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = c.cfg.MaxResults
	}
	if limit <= 0 {
		limit = 20
	}

	params := url.Values{
		"query.bibliographic": {query},
		"rows":                {strconv.Itoa(limit)},
	}
	if lo, hi := splitYearRange(opts.Year); lo != "" || hi != "" {
		var filters []string
		if lo != "" {
			filters = append(filters, "from-pub-date:"+lo+"-01-01")
		}
		if hi != "" {
			filters = append(filters, "until-pub-date:"+hi+"-12-31")
		}
		params.Set("filter", strings.Join(filters, ","))
	}

	var resp struct {
		Message struct {
			Items []crossrefWork `json:"items"`
		} `json:"message"`
	}
	if err := c.getJSON(ctx, crossrefBase+"/works?"+params.Encode(), &resp); err != nil {
		return nil, err
	}

	records := make([]types.Record, 0, len(resp.Message.Items))
	for _, w := range resp.Message.Items {
		records = append(records, w.toRecord())
	}
	return records, nil
}

// LookupDOI resolves a DOI against the registry. This is the
// authoritative existence check: a 404 here means the DOI is not
// registered, not merely unindexed.
func (c *Crossref) LookupDOI(ctx context.Context, doi string) (*types.Record, error) {
	var resp struct {
		Message crossrefWork `json:"message"`
	}
	reqURL := crossrefBase + "/works/" + url.PathEscape(doi)
	if err := c.getJSON(ctx, reqURL, &resp); err != nil {
		return nil, err
	}

	rec := resp.Message.toRecord()
	if rec.DOI == "" {
		return nil, ErrNotFound
	}
	return &rec, nil
}

// LookupPMID is unsupported: the registry indexes DOIs only.
func (c *Crossref) LookupPMID(context.Context, string) (*types.Record, error) {
	return nil, ErrUnsupported
}

// CheckRetracted is unsupported; retraction status comes from PubMed.
func (c *Crossref) CheckRetracted(context.Context, string) (bool, error) {
	return false, ErrUnsupported
}

func (c *Crossref) getJSON(ctx context.Context, reqURL string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	if c.Mailto != "" {
		sep := "?"
		if strings.Contains(reqURL, "?") {
			sep = "&"
		}
		reqURL += sep + "mailto=" + url.QueryEscape(c.Mailto)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	ua := c.cfg.UserAgent
	if c.Mailto != "" {
		ua = fmt.Sprintf("%s (mailto:%s)", ua, c.Mailto)
	}
	req.Header.Set("User-Agent", ua)

	resp, err := httputil.DoWithRetry(ctx, c.Client, req, 0)
	if err != nil {
		return fmt.Errorf("Crossref API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Crossref API returned HTTP %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parsing Crossref response: %w", err)
	}
	return nil
}

// crossrefWork is the subset of a works record the record shape needs.
type crossrefWork struct {
	DOI            string         `json:"DOI"`
	Title          []string       `json:"title"`
	ContainerTitle []string       `json:"container-title"`
	Volume         string         `json:"volume"`
	Issue          string         `json:"issue"`
	Page           string         `json:"page"`
	ReferencedBy   int            `json:"is-referenced-by-count"`
	Abstract       string         `json:"abstract"`
	Authors        []crossrefName `json:"author"`
	Published      crossrefDate   `json:"published"`
	PublishedPrint crossrefDate   `json:"published-print"`
	Issued         crossrefDate   `json:"issued"`
}

type crossrefName struct {
	Given  string `json:"given"`
	Family string `json:"family"`
	Name   string `json:"name"`
}

type crossrefDate struct {
	DateParts [][]int `json:"date-parts"`
}

func (d crossrefDate) year() int {
	if len(d.DateParts) > 0 && len(d.DateParts[0]) > 0 {
		return d.DateParts[0][0]
	}
	return 0
}

// toRecord normalizes a works record. Titles and container titles carry
// HTML entities ("&amp;") which are unescaped here.
func (w crossrefWork) toRecord() types.Record {
	r := types.Record{
		DOI:           bib.NormalizeDOI(w.DOI),
		Volume:        w.Volume,
		Issue:         w.Issue,
		Pages:         w.Page,
		CitationCount: w.ReferencedBy,
		Origins:       []string{types.SourceCrossref},
	}

	if len(w.Title) > 0 {
		r.Title = html.UnescapeString(strings.TrimSpace(w.Title[0]))
	}
	if len(w.ContainerTitle) > 0 {
		r.Journal = html.UnescapeString(w.ContainerTitle[0])
	}

	for _, d := range []crossrefDate{w.Published, w.PublishedPrint, w.Issued} {
		if y := d.year(); y != 0 {
			r.Year = y
			break
		}
	}

	for _, a := range w.Authors {
		switch {
		case a.Family != "" && a.Given != "":
			r.Authors = append(r.Authors, a.Given+" "+a.Family)
		case a.Family != "":
			r.Authors = append(r.Authors, a.Family)
		case a.Name != "":
			r.Authors = append(r.Authors, a.Name)
		}
	}

	// Crossref abstracts arrive as JATS XML; strip the tags rather than
	// carry markup into the record.
	if w.Abstract != "" {
		r.Abstract = stripJATS(w.Abstract)
	}
	return r
}

var jatsReplacer = strings.NewReplacer(
	"<jats:p>", "", "</jats:p>", " ",
	"<jats:title>", "", "</jats:title>", ": ",
	"<jats:sec>", "", "</jats:sec>", "",
	"<jats:italic>", "", "</jats:italic>", "",
	"<jats:bold>", "", "</jats:bold>", "",
)

func stripJATS(s string) string {
	s = jatsReplacer.Replace(s)
	return strings.TrimSpace(html.UnescapeString(strings.Join(strings.Fields(s), " ")))
}
