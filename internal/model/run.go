package model

import "time"

// Mode selects where a run reads its documents from.
type Mode string

const (
	// ModeLive fetches every document over the network and caches it.
	ModeLive Mode = "live"

	// ModeReplay reads previously cached documents only.
	ModeReplay Mode = "replay"
)

// String returns the mode name.
func (m Mode) String() string {
	return string(m)
}

// RunReport summarizes one crawl-and-export run.
// It is filled in by the pipeline steps and consumed by the report writers
// and the ledger.
type RunReport struct {
	// Mode is the source mode the run used.
	Mode Mode `json:"mode"`

	// CacheDir is the cache root the run read from or wrote to.
	CacheDir string `json:"cache_dir"`

	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// CategoryNames is the ordered list of collected category names
	// before exclusion filtering.
	CategoryNames []string `json:"-"`

	// Articles is the ordered list of collected articles before exclusion
	// filtering.
	Articles []*Article `json:"-"`

	// CategoryCount and ArticleCount are the sizes of the collected lists.
	CategoryCount int `json:"category_count"`
	ArticleCount  int `json:"article_count"`

	// ExportedCategories and ExportedArticles are the counts that survived
	// the exclusion filter.
	ExportedCategories int `json:"exported_categories"`
	ExportedArticles   int `json:"exported_articles"`

	// Fetches is the number of network fetches performed.
	Fetches int `json:"fetches"`

	// Outputs lists the files written by the export step.
	Outputs []string `json:"outputs,omitempty"`

	// PerformedSteps lists completed pipeline step names in order.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	// Error is the error that stopped the run, if any.
	Error        error  `json:"-"`
	ErrorMessage string `json:"error,omitempty"`
}

// NewRunReport creates a RunReport for the given mode and cache root.
func NewRunReport(mode Mode, cacheDir string) *RunReport {
	return &RunReport{
		Mode:      mode,
		CacheDir:  cacheDir,
		StartedAt: time.Now(),
	}
}

// Succeeded reports whether the run finished without error.
func (r *RunReport) Succeeded() bool {
	return r.Error == nil && r.ErrorMessage == ""
}

// Duration returns the elapsed run time. It is zero until FinishedAt is set.
func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// ArticlesByCategory counts collected articles per owning category title,
// preserving first-seen order of categories.
func (r *RunReport) ArticlesByCategory() ([]string, map[string]int) {
	order := make([]string, 0)
	counts := make(map[string]int)
	for _, a := range r.Articles {
		title := a.CategoryTitle()
		if _, ok := counts[title]; !ok {
			order = append(order, title)
		}
		counts[title]++
	}
	return order, counts
}
