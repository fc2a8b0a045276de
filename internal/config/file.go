package config

import "time"

// File represents the structure of the .lorecrawl configuration file.
// Every field is optional; unset fields keep the value already in Config.
type File struct {
	// CacheDir overrides the cache root.
	CacheDir string `yaml:"cacheDir,omitempty"`

	// Format is "md" or "txt".
	Format string `yaml:"format,omitempty"`

	// Exclude replaces the default exclusion list. An explicit empty list
	// disables exclusion.
	Exclude *[]string `yaml:"exclude,omitempty"`

	// CatalogURL and StoryURL override the service endpoints.
	CatalogURL string `yaml:"catalogURL,omitempty"`
	StoryURL   string `yaml:"storyURL,omitempty"`

	// Delay, Timeout and MaxAge are Go duration strings such as "1s".
	Delay   *time.Duration `yaml:"delay,omitempty"`
	Timeout *time.Duration `yaml:"timeout,omitempty"`
	MaxAge  *time.Duration `yaml:"maxAge,omitempty"`

	// Retries is the number of retries after a transient fetch failure.
	Retries *int `yaml:"retries,omitempty"`

	// Concurrency bounds replay decoding; 0 uses one worker per CPU.
	Concurrency *int `yaml:"concurrency,omitempty"`

	// MaxDepth is the catalog nesting limit.
	MaxDepth *int `yaml:"maxDepth,omitempty"`

	// Proxy is a SOCKS5 proxy address.
	Proxy string `yaml:"proxy,omitempty"`

	// UserAgent overrides the User-Agent header.
	UserAgent string `yaml:"userAgent,omitempty"`
}

// Apply copies every field set in the file onto cfg.
func (f *File) Apply(cfg *Config) {
	if f.CacheDir != "" {
		cfg.CacheDir = f.CacheDir
	}
	if f.Format != "" {
		cfg.Format = f.Format
	}
	if f.Exclude != nil {
		cfg.Exclude = append([]string{}, (*f.Exclude)...)
	}
	if f.CatalogURL != "" {
		cfg.CatalogURL = f.CatalogURL
	}
	if f.StoryURL != "" {
		cfg.StoryURL = f.StoryURL
	}
	if f.Delay != nil {
		cfg.Delay = *f.Delay
	}
	if f.Timeout != nil {
		cfg.Timeout = *f.Timeout
	}
	if f.MaxAge != nil {
		cfg.MaxAge = *f.MaxAge
	}
	if f.Retries != nil {
		cfg.Retries = *f.Retries
	}
	if f.Concurrency != nil {
		cfg.Concurrency = *f.Concurrency
	}
	if f.MaxDepth != nil {
		cfg.MaxDepth = *f.MaxDepth
	}
	if f.Proxy != "" {
		cfg.Proxy = f.Proxy
	}
	if f.UserAgent != "" {
		cfg.UserAgent = f.UserAgent
	}
}
