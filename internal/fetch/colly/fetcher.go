// Package collyfetcher implements catalog.Fetcher with a local Colly
// collector, used when no remote scrape API is configured. It fetches
// static HTML only; sites needing JS rendering should go through the
// remote service.
package collyfetcher

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/Emmmmmmo/rivvy-create-llmstxt-sub000/internal/catalog"
	"github.com/Emmmmmmo/rivvy-create-llmstxt-sub000/internal/fetch"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetcher fetches a page with Colly and converts the body to markdown.
type Fetcher struct {
	cfg       Config
	converter *md.Converter
	logger    *zap.Logger
}

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "llmstxt-sync/1.0"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		cfg:       cfg,
		converter: md.NewConverter("", true, nil),
		logger:    logger,
	}
}

// Fetch executes a single HTTP GET and returns title plus markdown body.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (catalog.Page, error) {
	var (
		body       []byte
		statusCode int
		fetchErr   error
	)

	if err := ctx.Err(); err != nil {
		return catalog.Page{}, fmt.Errorf("fetch %s: %w", rawURL, err)
	}

	collector := colly.NewCollector()
	collector.UserAgent = f.cfg.UserAgent
	collector.SetRequestTimeout(f.cfg.Timeout)

	collector.OnResponse(func(r *colly.Response) {
		statusCode = r.StatusCode
		body = r.Body
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			fetchErr = &fetch.StatusError{URL: rawURL, StatusCode: r.StatusCode}
			return
		}
		fetchErr = fmt.Errorf("fetch %s: %w", rawURL, err)
	})

	visitErr := collector.Visit(rawURL)
	collector.Wait()

	// OnError carries the typed status error; prefer it over Visit's
	// generic wrapping.
	if fetchErr != nil {
		return catalog.Page{}, fetchErr
	}
	if visitErr != nil {
		return catalog.Page{}, fmt.Errorf("visit %s: %w", rawURL, visitErr)
	}
	if statusCode == 0 || len(body) == 0 {
		return catalog.Page{}, fmt.Errorf("fetch %s: empty response", rawURL)
	}

	return f.convert(rawURL, body)
}

func (f *Fetcher) convert(rawURL string, body []byte) (catalog.Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return catalog.Page{}, fmt.Errorf("parse html from %s: %w", rawURL, err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}

	// Strip navigation chrome before converting.
	doc.Find("script, style, nav, header, footer").Remove()
	html, err := doc.Find("body").Html()
	if err != nil || strings.TrimSpace(html) == "" {
		html = string(body)
	}
	markdown, err := f.converter.ConvertString(html)
	if err != nil {
		return catalog.Page{}, fmt.Errorf("convert %s to markdown: %w", rawURL, err)
	}

	return catalog.Page{
		URL:   rawURL,
		Title: title,
		Body:  strings.TrimSpace(markdown),
	}, nil
}
