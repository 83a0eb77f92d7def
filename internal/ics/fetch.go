package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"journalcal/internal/config"
	appLog "journalcal/internal/log"
)

// maxFeedSize bounds a downloaded calendar.
const maxFeedSize = 16 << 20

// Feed is the outcome of downloading a remote calendar.
type Feed struct {
	URL       string
	Body      []byte
	FromCache bool // the body is the cached copy (304 or fetch failure)
}

type feedMeta struct {
	URL          string    `yaml:"url"`
	ETag         string    `yaml:"etag,omitempty"`
	LastModified string    `yaml:"last_modified,omitempty"`
	FetchedAt    time.Time `yaml:"fetched_at"`
}

// Fetcher downloads calendars for import, revalidating with ETag and
// Last-Modified against a disk cache. If cacheDir is empty nothing is
// cached.
type Fetcher struct {
	Client   *http.Client
	CacheDir string
}

func NewFetcher(cacheDir string) *Fetcher {
	return &Fetcher{
		Client:   &http.Client{Timeout: 15 * time.Second},
		CacheDir: cacheDir,
	}
}

// Fetch downloads rawURL. When the server answers 304, errors out or is
// unreachable, a previously cached body is returned instead if one exists.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Feed, error) {
	if rawURL == "" {
		return Feed{}, errors.New("ics: feed url is empty")
	}
	feed := Feed{URL: rawURL}

	dir := f.cacheDir(rawURL)
	var (
		meta   feedMeta
		cached []byte
	)
	if dir != "" {
		meta, cached = loadFeedCache(dir)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return feed, err
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	appLog.Info("ics fetch start", "url", redactURL(rawURL))

	resp, err := f.client().Do(req)
	if err != nil {
		return f.fallback(feed, cached, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
		if err != nil {
			return f.fallback(feed, cached, err)
		}
		if dir != "" {
			meta = feedMeta{
				URL:          rawURL,
				ETag:         resp.Header.Get("ETag"),
				LastModified: resp.Header.Get("Last-Modified"),
				FetchedAt:    time.Now().UTC(),
			}
			if err := saveFeedCache(dir, meta, body); err != nil {
				appLog.Error("ics cache save failed", err, "url", redactURL(rawURL))
			}
		}
		appLog.Info("ics fetch success", "url", redactURL(rawURL), "bytes", len(body))
		feed.Body = body
		return feed, nil

	case http.StatusNotModified:
		if len(cached) == 0 {
			return feed, errors.New("ics: 304 Not Modified without a cached body")
		}
		appLog.Info("ics fetch not modified; using cache", "url", redactURL(rawURL))
		feed.Body, feed.FromCache = cached, true
		return feed, nil

	default:
		return f.fallback(feed, cached, fmt.Errorf("ics: unexpected status %s", resp.Status))
	}
}

func (f *Fetcher) fallback(feed Feed, cached []byte, cause error) (Feed, error) {
	if len(cached) == 0 {
		return feed, cause
	}
	appLog.Error("ics fetch failed, using cached body", cause, "url", redactURL(feed.URL))
	feed.Body, feed.FromCache = cached, true
	return feed, nil
}

func (f *Fetcher) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	return http.DefaultClient
}

func (f *Fetcher) cacheDir(rawURL string) string {
	if f.CacheDir == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(rawURL))
	return filepath.Join(f.CacheDir, hex.EncodeToString(sum[:8]))
}

func loadFeedCache(dir string) (feedMeta, []byte) {
	var meta feedMeta
	body, err := os.ReadFile(filepath.Join(dir, "body.ics"))
	if err != nil {
		return meta, nil
	}
	if data, err := os.ReadFile(filepath.Join(dir, "meta.yaml")); err == nil {
		_ = yaml.Unmarshal(data, &meta)
	}
	return meta, body
}

// saveFeedCache writes the body before the metadata so the metadata never
// refers to a missing body.
func saveFeedCache(dir string, meta feedMeta, body []byte) error {
	if err := config.WriteFileAtomic(filepath.Join(dir, "body.ics"), body, ".body-*.tmp"); err != nil {
		return err
	}
	data, err := yaml.Marshal(&meta)
	if err != nil {
		return err
	}
	return config.WriteFileAtomic(filepath.Join(dir, "meta.yaml"), data, ".meta-*.tmp")
}

// redactURL keeps only scheme and host; calendar URLs often embed secrets.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "ics://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
