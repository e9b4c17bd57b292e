// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/time/rate"
)

func newTestPubMed(t *testing.T, handler http.Handler) *PubMed {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	old := pubmedBase
	pubmedBase = srv.URL
	t.Cleanup(func() { pubmedBase = old })

	p := NewPubMed(testSourcesConfig())
	p.limiter = rate.NewLimiter(rate.Inf, 1)
	return p
}

const pubmedEfetchFixture = `<?xml version="1.0" ?>
<PubmedArticleSet>
  <PubmedArticle>
    <MedlineCitation>
      <PMID Version="1">31881139</PMID>
      <Article>
        <Journal>
          <Title>The New England journal of medicine</Title>
          <JournalIssue>
            <Volume>381</Volume>
            <Issue>26</Issue>
            <PubDate>
              <Year>2019</Year>
            </PubDate>
          </JournalIssue>
        </Journal>
        <ArticleTitle>Effects of Intermittent Fasting on Health, Aging, and Disease.</ArticleTitle>
        <Pagination>
          <MedlinePgn>2541-2551</MedlinePgn>
        </Pagination>
        <ELocationID EIdType="doi" ValidYN="Y">10.1056/NEJMra1905136</ELocationID>
        <Abstract>
          <AbstractText Label="BACKGROUND">Fasting has been studied extensively.</AbstractText>
          <AbstractText Label="CONCLUSIONS">Intermittent fasting triggers adaptive responses.</AbstractText>
        </Abstract>
        <AuthorList>
          <Author><LastName>de Cabo</LastName><Initials>R</Initials></Author>
          <Author><LastName>Mattson</LastName><Initials>MP</Initials></Author>
          <Author><CollectiveName>NIA Study Group</CollectiveName></Author>
        </AuthorList>
        <PublicationTypeList>
          <PublicationType>Journal Article</PublicationType>
          <PublicationType>Review</PublicationType>
        </PublicationTypeList>
      </Article>
    </MedlineCitation>
    <PubmedData>
      <ArticleIdList>
        <ArticleId IdType="pubmed">31881139</ArticleId>
        <ArticleId IdType="doi">10.1056/NEJMra1905136</ArticleId>
      </ArticleIdList>
    </PubmedData>
  </PubmedArticle>
</PubmedArticleSet>`

const pubmedRetractedFixture = `<?xml version="1.0" ?>
<PubmedArticleSet>
  <PubmedArticle>
    <MedlineCitation>
      <PMID Version="1">9500320</PMID>
      <Article>
        <Journal>
          <Title>Lancet</Title>
          <JournalIssue>
            <PubDate><MedlineDate>1998 Feb 28</MedlineDate></PubDate>
          </JournalIssue>
        </Journal>
        <ArticleTitle>A retracted study.</ArticleTitle>
        <PublicationTypeList>
          <PublicationType>Journal Article</PublicationType>
          <PublicationType>Retracted Publication</PublicationType>
        </PublicationTypeList>
      </Article>
      <CommentsCorrectionsList>
        <CommentsCorrections RefType="RetractionIn">
          <RefSource>Lancet. 2010</RefSource>
        </CommentsCorrections>
      </CommentsCorrectionsList>
    </MedlineCitation>
  </PubmedArticle>
</PubmedArticleSet>`

func pubmedHandler(t *testing.T, efetchBody string, pmids ...string) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/esearch.fcgi"):
			ids := `"` + strings.Join(pmids, `", "`) + `"`
			w.Write([]byte(`{"esearchresult": {"idlist": [` + ids + `]}}`))
		case strings.HasSuffix(r.URL.Path, "/efetch.fcgi"):
			w.Write([]byte(efetchBody))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
			http.NotFound(w, r)
		}
	})
}

func TestPubMedSearch(t *testing.T) {
	p := newTestPubMed(t, pubmedHandler(t, pubmedEfetchFixture, "31881139"))

	records, err := p.Search(context.Background(), "intermittent fasting", SearchOptions{Limit: 5})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}

	rec := records[0]
	if rec.PMID != "31881139" {
		t.Errorf("PMID = %q", rec.PMID)
	}
	if rec.DOI != "10.1056/nejmra1905136" {
		t.Errorf("DOI = %q, should come from the ArticleIdList, normalized", rec.DOI)
	}
	if rec.Year != 2019 {
		t.Errorf("Year = %d", rec.Year)
	}
	if rec.Volume != "381" || rec.Issue != "26" || rec.Pages != "2541-2551" {
		t.Errorf("Volume/Issue/Pages = %q/%q/%q", rec.Volume, rec.Issue, rec.Pages)
	}
	wantAuthors := []string{"de Cabo R", "Mattson MP", "NIA Study Group"}
	if len(rec.Authors) != 3 {
		t.Fatalf("Authors = %v, want %v", rec.Authors, wantAuthors)
	}
	for i, want := range wantAuthors {
		if rec.Authors[i] != want {
			t.Errorf("Authors[%d] = %q, want %q", i, rec.Authors[i], want)
		}
	}
	if !strings.Contains(rec.Abstract, "BACKGROUND:") || !strings.Contains(rec.Abstract, "CONCLUSIONS:") {
		t.Errorf("Abstract = %q, labels should be preserved", rec.Abstract)
	}
	if rec.Retracted {
		t.Error("Retracted should be false for a plain journal article")
	}
}

func TestPubMedSearchClinicalFilter(t *testing.T) {
	var gotTerm string
	p := newTestPubMed(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/esearch.fcgi") {
			gotTerm = r.URL.Query().Get("term")
			w.Write([]byte(`{"esearchresult": {"idlist": []}}`))
			return
		}
		t.Errorf("unexpected path %q", r.URL.Path)
	}))

	_, err := p.Search(context.Background(), "stent outcomes", SearchOptions{Filter: "therapy"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !strings.Contains(gotTerm, "Therapy/Broad[filter]") {
		t.Errorf("term = %q, missing the therapy hedge", gotTerm)
	}

	if _, err := p.Search(context.Background(), "q", SearchOptions{Filter: "bogus"}); err == nil {
		t.Error("expected an error for an unknown filter")
	}
}

func TestPubMedMedlineDateYear(t *testing.T) {
	p := newTestPubMed(t, pubmedHandler(t, pubmedRetractedFixture, "9500320"))

	rec, err := p.LookupPMID(context.Background(), "9500320")
	if err != nil {
		t.Fatalf("LookupPMID: %v", err)
	}
	if rec.Year != 1998 {
		t.Errorf("Year = %d, want 1998 extracted from MedlineDate", rec.Year)
	}
	if !rec.Retracted {
		t.Error("Retracted should be set from the publication types")
	}
}

func TestPubMedCheckRetracted(t *testing.T) {
	p := newTestPubMed(t, pubmedHandler(t, pubmedRetractedFixture, "9500320"))
	retracted, err := p.CheckRetracted(context.Background(), "9500320")
	if err != nil {
		t.Fatalf("CheckRetracted: %v", err)
	}
	if !retracted {
		t.Error("CheckRetracted = false, want true")
	}

	p2 := newTestPubMed(t, pubmedHandler(t, pubmedEfetchFixture, "31881139"))
	retracted, err = p2.CheckRetracted(context.Background(), "31881139")
	if err != nil {
		t.Fatalf("CheckRetracted: %v", err)
	}
	if retracted {
		t.Error("CheckRetracted = true, want false")
	}
}

func TestPubMedLookupDOINotFound(t *testing.T) {
	p := newTestPubMed(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"esearchresult": {"idlist": []}}`))
	}))
	if _, err := p.LookupDOI(context.Background(), "10.9999/nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestPubMedAPIKeyParam(t *testing.T) {
	var gotKey string
	p := newTestPubMed(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("api_key")
		w.Write([]byte(`{"esearchresult": {"idlist": []}}`))
	}))
	p.APIKey = "ncbi-key"

	if _, err := p.Search(context.Background(), "q", SearchOptions{}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotKey != "ncbi-key" {
		t.Errorf("api_key = %q", gotKey)
	}
}

func TestSplitYearRange(t *testing.T) {
	tests := []struct {
		in       string
		min, max string
	}{
		{"", "", ""},
		{"2020", "2020", "2020"},
		{"2020-2023", "2020", "2023"},
		{"2020-", "2020", ""},
		{"-2023", "", "2023"},
	}
	for _, tt := range tests {
		if lo, hi := splitYearRange(tt.in); lo != tt.min || hi != tt.max {
			t.Errorf("splitYearRange(%q) = (%q, %q), want (%q, %q)", tt.in, lo, hi, tt.min, tt.max)
		}
	}
}
