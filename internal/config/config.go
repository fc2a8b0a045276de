package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/lorecrawl/internal/crawler"
	"github.com/nao1215/lorecrawl/internal/export"
	"github.com/nao1215/lorecrawl/internal/fetch"
	"github.com/nao1215/lorecrawl/internal/source"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "lorecrawl"

	// DefaultCacheDir is the cache root, relative to the working directory.
	DefaultCacheDir = "crawled_data"

	// DefaultFormat is the article export format.
	DefaultFormat = string(export.FormatMarkdown)

	// DefaultDelay is the minimum spacing between network fetches.
	DefaultDelay = source.DefaultDelay

	// DefaultTimeout bounds one HTTP request.
	DefaultTimeout = fetch.DefaultTimeout

	// DefaultRetries is the number of retries after a failed fetch.
	DefaultRetries = crawler.DefaultRetries

	// DefaultMaxBodySize limits the size of one fetched document.
	DefaultMaxBodySize = fetch.DefaultMaxBodySize

	// DefaultMaxDepth is the deepest catalog nesting accepted.
	DefaultMaxDepth = crawler.DefaultMaxDepth
)

// DefaultExclude returns the category names left out of the export by
// default.
func DefaultExclude() []string {
	return []string{"명예의 전당", "스페셜", "아트던展"}
}

// Config holds all configuration options for a lorecrawl run.
// It is populated from defaults, the config file and CLI flags, in that
// order, and passed down explicitly.
type Config struct {
	// UseLocal replays the cache instead of fetching over the network.
	UseLocal bool

	// WalkTree makes replay walk the cached catalog tree instead of
	// enumerating every cached article.
	WalkTree bool

	// CacheDir is the cache root. Exports go to CacheDir/final.
	CacheDir string

	// Format is the article export format, "md" or "txt".
	Format string

	// Exclude lists category names left out of the export.
	Exclude []string

	// CatalogURL is the category tree document.
	CatalogURL string

	// StoryURL is the article endpoint prefix; the article id is appended.
	StoryURL string

	// Delay is the minimum spacing between network fetches. 0 disables it.
	Delay time.Duration

	// Timeout bounds one HTTP request.
	Timeout time.Duration

	// Retries is the number of retries after a transient fetch failure.
	Retries int

	// MaxAge reuses a cached document fetched within this window instead of
	// fetching it again. 0 always fetches.
	MaxAge time.Duration

	// Proxy is an optional SOCKS5 proxy, "host:port" or a socks5:// URL.
	Proxy string

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string

	// MaxBodySize limits the size of one fetched document. 0 means the
	// default.
	MaxBodySize int64

	// Concurrency bounds the cached articles decoded at once in replay.
	// 0 uses one worker per CPU.
	Concurrency int

	// MaxDepth is the deepest catalog nesting accepted before a run fails.
	MaxDepth int

	// Verbose enables debug logging.
	Verbose bool

	// Summary selects the Markdown run summary instead of plain text.
	Summary bool

	// ConfigFilePath is an explicit config file. When empty, the default
	// locations are searched.
	ConfigFilePath string

	// DBDir is the directory of the run ledger.
	DBDir string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		UseLocal:    true,
		CacheDir:    DefaultCacheDir,
		Format:      DefaultFormat,
		Exclude:     DefaultExclude(),
		CatalogURL:  source.DefaultCatalogURL,
		StoryURL:    source.DefaultStoryURL,
		Delay:       DefaultDelay,
		Timeout:     DefaultTimeout,
		Retries:     DefaultRetries,
		UserAgent:   fetch.DefaultUserAgent,
		MaxBodySize: DefaultMaxBodySize,
		MaxDepth:    DefaultMaxDepth,
		DBDir:       XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for lorecrawl, where the run
// ledger lives.
// On Linux: ~/.local/share/lorecrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for lorecrawl.
// On Linux: ~/.config/lorecrawl
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid and returns the first
// problem found.
func (c *Config) Validate() error {
	if c.CacheDir == "" {
		return ErrEmptyCacheDir
	}
	if _, err := export.ParseFormat(c.Format); err != nil {
		return err
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Delay < 0 {
		return ErrInvalidDelay
	}
	if c.Retries < 0 {
		return ErrInvalidRetries
	}
	if c.MaxAge < 0 {
		return ErrInvalidMaxAge
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.Concurrency < 0 {
		return ErrInvalidConcurrency
	}
	if c.MaxDepth < 1 {
		return ErrInvalidMaxDepth
	}
	for _, raw := range []string{c.CatalogURL, c.StoryURL} {
		if err := validateEndpoint(raw); err != nil {
			return err
		}
	}
	return nil
}

// validateEndpoint checks that raw is an absolute http(s) URL.
func validateEndpoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrInvalidEndpoint, raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidEndpoint, raw)
	}
	return nil
}

// ExportFormat returns the parsed export format.
// Call it after Validate.
func (c *Config) ExportFormat() export.Format {
	f, err := export.ParseFormat(c.Format)
	if err != nil {
		return export.FormatMarkdown
	}
	return f
}

// Endpoints returns the configured service endpoints.
func (c *Config) Endpoints() source.Endpoints {
	return source.Endpoints{
		CatalogURL: c.CatalogURL,
		StoryURL:   c.StoryURL,
	}
}
