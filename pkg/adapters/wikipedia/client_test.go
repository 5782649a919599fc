package wikipedia_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/director/pkg/adapters/wikipedia"
	"github.com/aretw0/director/pkg/ports"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/rest_v1/page/summary/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/rest_v1/page/summary/Marie_Curie":
			_, _ = w.Write([]byte(`{"type":"standard","title":"Marie Curie","extract":"Marie Curie was a physicist.",
				"content_urls":{"desktop":{"page":"https://en.wikipedia.org/wiki/Marie_Curie"}}}`))
		case "/api/rest_v1/page/summary/Mercury":
			_, _ = w.Write([]byte(`{"type":"disambiguation","title":"Mercury","extract":"Mercury may refer to:"}`))
		case "/api/rest_v1/page/summary/Broken":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"type":"https://mediawiki.org/wiki/HyperSwitch/errors/not_found"}`))
		}
	})
	mux.HandleFunc("/w/api.php", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "search", r.URL.Query().Get("list"))
		assert.Equal(t, "director/1.0 (conversation fact checking)", r.Header.Get("User-Agent"))
		if r.URL.Query().Get("srsearch") == "slow" {
			time.Sleep(200 * time.Millisecond)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"query":{"search":[
			{"title":"Canberra","snippet":"<span class=\"searchmatch\">Canberra</span> is the capital city of Australia."},
			{"title":"Sydney","snippet":"<span class=\"searchmatch\">Sydney</span> is the largest city &amp; port."},
			{"title":"Melbourne","snippet":"Second largest."}
		]}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchSummary(t *testing.T) {
	srv := newServer(t)
	c := wikipedia.New(wikipedia.WithBaseURL(srv.URL))
	ctx := context.Background()

	tests := []struct {
		title string
		kind  ports.SummaryKind
		url   string
	}{
		{"Marie Curie", ports.SummaryStandard, "https://en.wikipedia.org/wiki/Marie_Curie"},
		{"Mercury", ports.SummaryDisambiguation, ""},
		{"Nobody Atall", ports.SummaryMissing, ""},
		{"  ", ports.SummaryMissing, ""},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			s, err := c.FetchSummary(ctx, tt.title)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, s.Kind)
			assert.Equal(t, tt.url, s.URL)
		})
	}
}

func TestFetchSummary_ServerError(t *testing.T) {
	srv := newServer(t)
	_, err := wikipedia.New(wikipedia.WithBaseURL(srv.URL)).FetchSummary(context.Background(), "Broken")
	assert.ErrorContains(t, err, "HTTP 502")
}

func TestSearchSnippets(t *testing.T) {
	srv := newServer(t)
	c := wikipedia.New(wikipedia.WithBaseURL(srv.URL + "/"))

	snips, err := c.SearchSnippets(context.Background(), "capital of Australia", 2)
	require.NoError(t, err)
	require.Len(t, snips, 2)
	assert.Equal(t, "Canberra", snips[0].Title)
	assert.Equal(t, "Canberra is the capital city of Australia.", snips[0].Excerpt)
	assert.Equal(t, srv.URL+"/wiki/Canberra", snips[0].URL)
	assert.Equal(t, "Sydney is the largest city & port.", snips[1].Excerpt)

	none, err := c.SearchSnippets(context.Background(), "", 3)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSearchSnippets_HonoursContext(t *testing.T) {
	srv := newServer(t)
	c := wikipedia.New(wikipedia.WithBaseURL(srv.URL))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.SearchSnippets(ctx, "slow", 3)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNew_DefaultsToLanguageHost(t *testing.T) {
	var _ ports.EvidenceSource = wikipedia.New()
	hits := 0
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		hits++
		assert.Equal(t, "en.wikipedia.org", r.URL.Host)
		return &http.Response{StatusCode: http.StatusNotFound, Body: http.NoBody, Request: r}, nil
	})
	c := wikipedia.New(wikipedia.WithLanguage("en"), wikipedia.WithHTTPClient(&http.Client{Transport: rt}))

	s, err := c.FetchSummary(context.Background(), "Anything")
	require.NoError(t, err)
	assert.Equal(t, ports.SummaryMissing, s.Kind)
	assert.Equal(t, 1, hits)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
