package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWiki answers the three MediaWiki calls the tool makes.
type fakeWiki struct {
	search    string
	extract   string
	disambig  bool
	parseHTML string

	mu          sync.Mutex
	paths       []string
	exsentences string
}

func (f *fakeWiki) requested() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...)
}

func (f *fakeWiki) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.paths = append(f.paths, r.URL.Path)
	f.mu.Unlock()
	q := r.URL.Query()
	switch {
	case q.Get("list") == "search":
		hits := []map[string]string{}
		if f.search != "" {
			hits = append(hits, map[string]string{"title": f.search})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"query": map[string]any{"search": hits}})
	case q.Get("prop") == "extracts|pageprops":
		f.mu.Lock()
		f.exsentences = q.Get("exsentences")
		f.mu.Unlock()
		page := map[string]any{"title": q.Get("titles"), "extract": f.extract}
		if f.disambig {
			page["pageprops"] = map[string]string{"disambiguation": ""}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"query": map[string]any{"pages": []any{page}}})
	case q.Get("action") == "parse":
		_ = json.NewEncoder(w).Encode(map[string]any{"parse": map[string]any{"title": q.Get("page"), "text": f.parseHTML}})
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func newTestWikipedia(url string) *Wikipedia {
	return NewWikipedia(WikipediaConfig{APIURL: url + "/%s/api.php", Sentences: 5, Timeout: time.Second}, nil)
}

func TestWikipedia_Summary(t *testing.T) {
	extract := "Pi is approximately 3.14159 and is irrational. It was studied by the U.S. Army in 1946. " +
		"Mr. Smith computed it by hand. Its digits never repeat! Is it normal? Nobody knows."
	fake := &fakeWiki{search: "Pi", extract: "  " + extract + "\n"}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	out := newTestWikipedia(srv.URL).Execute(context.Background(), WikipediaCall{Query: "pi", Lang: "en"})
	assert.Equal(t, extract, out)
	assert.Contains(t, out, "3.14159")
	assert.Contains(t, out, "U.S. Army")
	for _, p := range fake.requested() {
		assert.Equal(t, "/en/api.php", p)
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, "5", fake.exsentences)
}

func TestWikipedia_Lang(t *testing.T) {
	fake := &fakeWiki{search: "Berlin", extract: "Berlin ist die Hauptstadt."}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	wp := newTestWikipedia(srv.URL)
	call, err := wp.Decode(json.RawMessage(`{"query": "Berlin", "lang": "DE"}`))
	require.NoError(t, err)
	assert.Equal(t, "Berlin ist die Hauptstadt.", wp.Execute(context.Background(), call))
	paths := fake.requested()
	require.NotEmpty(t, paths)
	assert.Equal(t, "/de/api.php", paths[0])
}

func TestWikipedia_NotFound(t *testing.T) {
	srv := httptest.NewServer(&fakeWiki{})
	defer srv.Close()

	out := newTestWikipedia(srv.URL).Execute(context.Background(), WikipediaCall{Query: "xyzzyq", Lang: "en"})
	assert.Equal(t, `Page id "xyzzyq" does not match any pages. Try another id!`, out)
}

func TestWikipedia_Disambiguation(t *testing.T) {
	fake := &fakeWiki{
		search:   "Mercury",
		disambig: true,
		parseHTML: `<div><ul>
<li><a href="/wiki/Mercury_(planet)" title="Mercury (planet)">Mercury</a>, the planet</li>
<li><a href="/wiki/Mercury_(element)" title="Mercury (element)">Mercury</a>, the element</li>
<li><a href="/wiki/Mercury_(mythology)" title="Mercury (mythology)">Mercury</a>, the god</li>
<li><a href="/wiki/Help:Disambiguation" title="Help:Disambiguation">help</a></li>
</ul></div>`,
	}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	out := newTestWikipedia(srv.URL).Execute(context.Background(), WikipediaCall{Query: "mercury", Lang: "en"})
	assert.Equal(t, `"Mercury" may refer to: Mercury (planet), Mercury (element), Mercury (mythology)`, out)
}

func TestWikipedia_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	out := newTestWikipedia(srv.URL).Execute(context.Background(), WikipediaCall{Query: "x", Lang: "en"})
	assert.True(t, strings.HasPrefix(out, "wikipedia search:"), out)
	assert.Contains(t, out, "503")
}

func TestWikipedia_Decode(t *testing.T) {
	wp := NewWikipedia(WikipediaConfig{}, nil)

	call, err := wp.Decode(json.RawMessage(`{"query": " Paris "}`))
	require.NoError(t, err)
	assert.Equal(t, WikipediaCall{Query: "Paris", Lang: "en"}, call)

	_, err = wp.Decode(json.RawMessage(`{"query": ""}`))
	assert.Error(t, err)
	_, err = wp.Decode(json.RawMessage(`{"query": "x", "lang": "en.evil.com/"}`))
	assert.Error(t, err)
}

func TestParseDisambiguation_Limit(t *testing.T) {
	var b strings.Builder
	b.WriteString("<ul>")
	for i := 0; i < 15; i++ {
		fmt.Fprintf(&b, `<li><a title="Option %d">o</a></li>`, i)
	}
	b.WriteString(`<li><a title="Option 0">dup</a></li></ul>`)

	options, err := ParseDisambiguation(b.String())
	require.NoError(t, err)
	require.Len(t, options, maxDisambiguationOptions)
	assert.Equal(t, "Option 0", options[0])
	assert.Equal(t, "Option 9", options[9])
}
