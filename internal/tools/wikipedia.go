package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sashabaranov/go-openai/jsonschema"
	"golang.org/x/time/rate"
)

const (
	WikipediaToolName = "wikipedia-tool"

	maxDisambiguationOptions = 10
)

var langPattern = regexp.MustCompile(`^[a-z]{2,3}(-[a-z]+)?$`)

// WikipediaCall looks up an encyclopedia summary.
type WikipediaCall struct {
	Query string
	Lang  string
}

func (WikipediaCall) tool() string { return WikipediaToolName }

// WikipediaConfig configures Wikipedia.
type WikipediaConfig struct {
	// APIURL is a MediaWiki api.php endpoint; a %s verb is replaced by the language.
	APIURL    string
	Lang      string
	Sentences int
	Timeout   time.Duration
}

// Wikipedia searches MediaWiki for the best matching page and returns the
// first sentences of its plain-text extract.
type Wikipedia struct {
	cfg   WikipediaConfig
	fetch *fetcher
}

func NewWikipedia(cfg WikipediaConfig, limiter *rate.Limiter) *Wikipedia {
	if cfg.APIURL == "" {
		cfg.APIURL = "https://%s.wikipedia.org/w/api.php"
	}
	if cfg.Lang == "" {
		cfg.Lang = "en"
	}
	if cfg.Sentences <= 0 {
		cfg.Sentences = 5
	}
	return &Wikipedia{cfg: cfg, fetch: newFetcher(cfg.Timeout, limiter)}
}

func (w *Wikipedia) Spec() Spec {
	return Spec{
		Name:        WikipediaToolName,
		Description: "Get the first paragraph of a Wikipedia page.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"query": {Type: jsonschema.String, Description: "search query for wikipedia"},
				"lang":  {Type: jsonschema.String, Description: "language of the search query in ISO 639-1 format"},
			},
			Required: []string{"query"},
		},
	}
}

func (w *Wikipedia) Decode(raw json.RawMessage) (Call, error) {
	var args struct {
		Query string `json:"query"`
		Lang  string `json:"lang"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}
	args.Query = strings.TrimSpace(args.Query)
	if args.Query == "" {
		return nil, errors.New("query is required")
	}
	lang := strings.ToLower(strings.TrimSpace(args.Lang))
	if lang == "" {
		lang = w.cfg.Lang
	}
	if !langPattern.MatchString(lang) {
		return nil, fmt.Errorf("invalid language code %q", args.Lang)
	}
	return WikipediaCall{Query: args.Query, Lang: lang}, nil
}

func (w *Wikipedia) Execute(ctx context.Context, call Call) string {
	c, ok := call.(WikipediaCall)
	if !ok {
		return "invalid call for " + WikipediaToolName
	}
	out, err := w.lookup(ctx, c)
	if err != nil {
		return err.Error()
	}
	return out
}

func notFound(query string) string {
	return fmt.Sprintf("Page id %q does not match any pages. Try another id!", query)
}

func (w *Wikipedia) endpoint(lang string, params url.Values) string {
	base := w.cfg.APIURL
	if strings.Contains(base, "%s") {
		base = fmt.Sprintf(base, lang)
	}
	params.Set("format", "json")
	params.Set("formatversion", "2")
	return base + "?" + params.Encode()
}

func (w *Wikipedia) lookup(ctx context.Context, c WikipediaCall) (string, error) {
	title, err := w.search(ctx, c)
	if err != nil {
		return "", err
	}
	if title == "" {
		return notFound(c.Query), nil
	}

	var resp struct {
		Query struct {
			Pages []struct {
				Title     string            `json:"title"`
				Missing   bool              `json:"missing"`
				Extract   string            `json:"extract"`
				PageProps map[string]string `json:"pageprops"`
			} `json:"pages"`
		} `json:"query"`
	}
	params := url.Values{}
	params.Set("action", "query")
	params.Set("prop", "extracts|pageprops")
	params.Set("exsentences", strconv.Itoa(w.cfg.Sentences))
	params.Set("explaintext", "1")
	params.Set("redirects", "1")
	params.Set("ppprop", "disambiguation")
	params.Set("titles", title)
	if err := w.fetch.getJSON(ctx, w.endpoint(c.Lang, params), &resp); err != nil {
		return "", fmt.Errorf("wikipedia extract: %w", err)
	}
	if len(resp.Query.Pages) == 0 || resp.Query.Pages[0].Missing {
		return notFound(c.Query), nil
	}
	page := resp.Query.Pages[0]
	if _, ok := page.PageProps["disambiguation"]; ok {
		options, err := w.disambiguation(ctx, c.Lang, page.Title)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%q may refer to: %s", page.Title, strings.Join(options, ", ")), nil
	}
	// exsentences already trimmed the extract server-side
	summary := strings.TrimSpace(page.Extract)
	if summary == "" {
		return notFound(c.Query), nil
	}
	return summary, nil
}

func (w *Wikipedia) search(ctx context.Context, c WikipediaCall) (string, error) {
	var resp struct {
		Query struct {
			Search []struct {
				Title string `json:"title"`
			} `json:"search"`
		} `json:"query"`
	}
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "search")
	params.Set("srsearch", c.Query)
	params.Set("srlimit", "1")
	if err := w.fetch.getJSON(ctx, w.endpoint(c.Lang, params), &resp); err != nil {
		return "", fmt.Errorf("wikipedia search: %w", err)
	}
	if len(resp.Query.Search) == 0 {
		return "", nil
	}
	return resp.Query.Search[0].Title, nil
}

// disambiguation lists the linked page titles of a disambiguation page.
func (w *Wikipedia) disambiguation(ctx context.Context, lang, title string) ([]string, error) {
	var resp struct {
		Parse struct {
			Text string `json:"text"`
		} `json:"parse"`
	}
	params := url.Values{}
	params.Set("action", "parse")
	params.Set("page", title)
	params.Set("prop", "text")
	if err := w.fetch.getJSON(ctx, w.endpoint(lang, params), &resp); err != nil {
		return nil, fmt.Errorf("wikipedia parse: %w", err)
	}
	return ParseDisambiguation(resp.Parse.Text)
}

// ParseDisambiguation extracts the first linked title of each list item.
func ParseDisambiguation(html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	var options []string
	seen := map[string]struct{}{}
	doc.Find("li").EachWithBreak(func(_ int, li *goquery.Selection) bool {
		a := li.Find("a").First()
		name, ok := a.Attr("title")
		if !ok {
			name = a.Text()
		}
		name = strings.TrimSpace(name)
		if name == "" || strings.Contains(name, ":") {
			return true
		}
		if _, dup := seen[name]; dup {
			return true
		}
		seen[name] = struct{}{}
		options = append(options, name)
		return len(options) < maxDisambiguationOptions
	})
	return options, nil
}
