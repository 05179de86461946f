// Package fetch retrieves one chapter from the source site and splits it into
// verses.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/jackzampolin/itihasa/internal/home"
	"github.com/jackzampolin/itihasa/internal/types"
)

// FetchError reports a failed chapter fetch. Nothing is written when it occurs.
type FetchError struct {
	Book       string
	Sarga      int
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s sarga %d from %s: status %d", e.Book, e.Sarga, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s sarga %d from %s: %v", e.Book, e.Sarga, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Config configures a Fetcher.
type Config struct {
	// BaseURL is scheme plus host, e.g. https://www.valmikiramayan.net.
	BaseURL   string
	Encoding  string
	EpicID    string
	Timeout   time.Duration
	Retries   int
	RetryWait time.Duration
	UserAgent string
	Logger    *slog.Logger
}

// Fetcher downloads chapters.
type Fetcher struct {
	client *resty.Client
	cfg    Config
	logger *slog.Logger
}

// New creates a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Encoding == "" {
		cfg.Encoding = "utf8"
	}
	if cfg.EpicID == "" {
		cfg.EpicID = types.DefaultEpicID
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(10 * cfg.RetryWait).
		SetLogger(discardLogger{}).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
		})
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}
	client.SetHeader("Accept-Charset", "utf-8")

	return &Fetcher{client: client, cfg: cfg, logger: cfg.Logger}
}

// ChapterURL builds the frame page URL of a chapter.
func ChapterURL(baseURL, encoding, book string, sarga int) (string, error) {
	b, ok := types.LookupBook(book)
	if !ok {
		return "", fmt.Errorf("unknown book %q", book)
	}
	if sarga < 1 {
		return "", fmt.Errorf("invalid sarga %d", sarga)
	}
	return fmt.Sprintf("%s/%s/%s/sarga%d/%s_%d_frame.htm",
		strings.TrimRight(baseURL, "/"), encoding, b.Slug, sarga, b.Short, sarga), nil
}

// Fetch downloads a chapter and extracts its verses. A chapter with zero
// verses is returned without error; callers decide whether that is fatal.
func (f *Fetcher) Fetch(ctx context.Context, book string, sarga int) (*types.ChapterSource, error) {
	pageURL, err := ChapterURL(f.cfg.BaseURL, f.cfg.Encoding, book, sarga)
	if err != nil {
		return nil, &FetchError{Book: book, Sarga: sarga, Err: err}
	}

	doc, err := f.get(ctx, book, sarga, pageURL)
	if err != nil {
		return nil, err
	}

	sourceURL := pageURL
	verses := ExtractVerses(PageText(doc))
	if len(verses) == 0 {
		if frameURL, ok := frameSource(doc, pageURL); ok {
			f.logger.Debug("following frame", "book", book, "sarga", sarga, "url", frameURL)
			if doc, err = f.get(ctx, book, sarga, frameURL); err != nil {
				return nil, err
			}
			sourceURL = frameURL
			verses = ExtractVerses(PageText(doc))
		}
	}
	if len(verses) == 0 {
		f.logger.Warn("no verses extracted", "book", book, "sarga", sarga, "url", sourceURL)
	}

	return &types.ChapterSource{
		EpicID:      f.cfg.EpicID,
		Book:        book,
		Sarga:       sarga,
		Verses:      verses,
		SourceURL:   sourceURL,
		ExtractedAt: time.Now().UTC(),
	}, nil
}

func (f *Fetcher) get(ctx context.Context, book string, sarga int, u string) (*goquery.Document, error) {
	resp, err := f.client.R().SetContext(ctx).Get(u)
	if err != nil {
		return nil, &FetchError{Book: book, Sarga: sarga, URL: u, Err: err}
	}
	if !resp.IsSuccess() {
		return nil, &FetchError{Book: book, Sarga: sarga, URL: u, StatusCode: resp.StatusCode()}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, &FetchError{Book: book, Sarga: sarga, URL: u, Err: fmt.Errorf("parse html: %w", err)}
	}
	return doc, nil
}

// frameSource returns the resolved src of the content frame of a frameset page.
func frameSource(doc *goquery.Document, pageURL string) (string, bool) {
	frames := doc.Find("frame[src], iframe[src]")
	if frames.Length() == 0 {
		return "", false
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return "", false
	}

	// Prefer the frame whose name marks it as the text pane.
	src := ""
	frames.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		name := strings.ToLower(s.AttrOr("name", ""))
		if src == "" || strings.Contains(name, "main") || strings.Contains(name, "text") {
			src = s.AttrOr("src", "")
		}
		return !(strings.Contains(name, "main") || strings.Contains(name, "text"))
	})

	ref, err := url.Parse(strings.TrimSpace(src))
	if err != nil || src == "" {
		return "", false
	}
	return base.ResolveReference(ref).String(), true
}

// Store writes the chapter to <dir>/<book>_sarga_<N>_verses.json, replacing
// any previous file.
func Store(dir string, src *types.ChapterSource) (string, error) {
	path := filepath.Join(dir, home.FileName(src.Book, src.Sarga, home.KindVerses))
	if err := home.WriteJSON(path, src); err != nil {
		return "", fmt.Errorf("failed to store chapter: %w", err)
	}
	return path, nil
}

// LoadChapter reads a stored chapter.
func LoadChapter(path string) (*types.ChapterSource, error) {
	var src types.ChapterSource
	if err := home.ReadJSON(path, &src); err != nil {
		return nil, fmt.Errorf("failed to load chapter: %w", err)
	}
	return &src, nil
}

type discardLogger struct{}

func (discardLogger) Errorf(string, ...interface{}) {}
func (discardLogger) Warnf(string, ...interface{})  {}
func (discardLogger) Debugf(string, ...interface{}) {}
