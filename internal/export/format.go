package export

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"

	"github.com/nao1215/lorecrawl/internal/model"
)

// ErrUnknownFormat is returned for an unsupported output format.
var ErrUnknownFormat = errors.New("unknown export format")

// Format selects the article output layout.
type Format string

const (
	// FormatMarkdown wraps each title in a code span and keeps the body
	// markup as fetched.
	FormatMarkdown Format = "md"

	// FormatText writes a bracketed title line and the body as plain text.
	FormatText Format = "txt"
)

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatMarkdown, FormatText:
		return f, nil
	case "markdown":
		return FormatMarkdown, nil
	case "text":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: %q (expected md or txt)", ErrUnknownFormat, s)
	}
}

// Extension returns the article file extension for the format.
func (f Format) Extension() string {
	return string(f)
}

// Formatter filters and serializes collected lists.
type Formatter struct {
	format   Format
	excluded map[string]struct{}
}

// NewFormatter creates a Formatter that drops the excluded category names.
func NewFormatter(format Format, excluded []string) *Formatter {
	set := make(map[string]struct{}, len(excluded))
	for _, name := range excluded {
		set[normalize(name)] = struct{}{}
	}
	return &Formatter{format: format, excluded: set}
}

// Format returns the category text and the article text.
func (f *Formatter) Format(articles []*model.Article, categoryNames []string) (categoryText, articleText string) {
	names := f.Categories(categoryNames)
	kept := f.Articles(articles)

	blocks := make([]string, 0, len(kept))
	for _, a := range kept {
		blocks = append(blocks, f.block(a))
	}

	sep := "\n"
	if f.format == FormatText {
		sep = "\n\n"
	}
	return strings.Join(names, "\n"), strings.Join(blocks, sep)
}

// Categories returns the names that are not excluded, in input order.
func (f *Formatter) Categories(names []string) []string {
	kept := make([]string, 0, len(names))
	for _, name := range names {
		if !f.IsExcluded(name) {
			kept = append(kept, name)
		}
	}
	return kept
}

// Articles returns the articles whose category is not excluded, in input
// order.
func (f *Formatter) Articles(articles []*model.Article) []*model.Article {
	kept := make([]*model.Article, 0, len(articles))
	for _, a := range articles {
		if !f.IsExcluded(a.CategoryTitle()) {
			kept = append(kept, a)
		}
	}
	return kept
}

// IsExcluded reports whether name is in the exclusion set.
func (f *Formatter) IsExcluded(name string) bool {
	_, ok := f.excluded[normalize(name)]
	return ok
}

// block renders one article.
func (f *Formatter) block(a *model.Article) string {
	if f.format == FormatText {
		return "[" + a.Title() + "]\n" + PlainText(a.Body())
	}
	return "```[" + a.Title() + "]```\\\n" + a.Body() + "\n\n\n\n"
}

// normalize prepares a name for comparison.
func normalize(s string) string {
	return norm.NFC.String(s)
}

// PlainText flattens HTML markup into text. Block elements and <br> end a
// line, script and style content is dropped, runs of blank lines collapse
// to one and entities are decoded.
func PlainText(body string) string {
	z := html.NewTokenizer(strings.NewReader(body))

	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return tidy(b.String())
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style":
				skip++
			case "br":
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style":
				if skip > 0 {
					skip--
				}
			case "p", "div", "li", "tr", "h1", "h2", "h3", "h4", "h5", "h6", "blockquote":
				b.WriteByte('\n')
			}
		case html.CommentToken, html.DoctypeToken:
		}
	}
}

// tidy trims trailing space on every line and collapses blank line runs.
func tidy(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t\r\u00a0")
		if line == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	return strings.Trim(strings.Join(out, "\n"), "\n")
}
