package export

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"golang.org/x/text/unicode/norm"

	"github.com/nao1215/lorecrawl/internal/model"
)

func newArticle(category, title, body string) *model.Article {
	return &model.Article{
		CategoryTitles: model.LangText{model.LangKR: category},
		Titles:         model.LangText{model.LangKR: title, model.LangEN: "ignored"},
		Contents:       model.LangText{model.LangKR: body, model.LangEN: "ignored"},
	}
}

// TestParseFormat tests format name parsing.
func TestParseFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"md", FormatMarkdown, false},
		{"MD", FormatMarkdown, false},
		{"markdown", FormatMarkdown, false},
		{" txt ", FormatText, false},
		{"text", FormatText, false},
		{"pdf", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownFormat) {
					t.Errorf("expected ErrUnknownFormat, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, expected %q", got, tt.want)
			}
		})
	}
}

// TestFormatterFilter tests exclusion of categories and their articles.
func TestFormatterFilter(t *testing.T) {
	t.Parallel()

	t.Run("excluded name is dropped", func(t *testing.T) {
		t.Parallel()

		categoryText, _ := NewFormatter(FormatMarkdown, []string{"A"}).Format(nil, []string{"A", "B"})
		if categoryText != "B" {
			t.Errorf("got %q, expected %q", categoryText, "B")
		}
	})

	t.Run("articles of excluded categories are dropped", func(t *testing.T) {
		t.Parallel()

		articles := []*model.Article{
			newArticle("A", "one", "1"),
			newArticle("B", "two", "2"),
			newArticle("A", "three", "3"),
		}
		_, articleText := NewFormatter(FormatText, []string{"A"}).Format(articles, nil)
		if articleText != "[two]\n2" {
			t.Errorf("got %q", articleText)
		}
	})

	t.Run("no exclusions keep input order", func(t *testing.T) {
		t.Parallel()

		categoryText, _ := NewFormatter(FormatMarkdown, nil).Format(nil, []string{"c", "a", "b"})
		if categoryText != "c\na\nb" {
			t.Errorf("got %q", categoryText)
		}
	})

	t.Run("matching is normalization insensitive", func(t *testing.T) {
		t.Parallel()

		decomposed := norm.NFD.String("명예의 전당")
		f := NewFormatter(FormatMarkdown, []string{decomposed})
		if !f.IsExcluded("명예의 전당") {
			t.Error("expected composed name to match decomposed exclusion")
		}
		if f.IsExcluded("명예") {
			t.Error("expected partial name not to match")
		}
	})

	t.Run("empty inputs", func(t *testing.T) {
		t.Parallel()

		categoryText, articleText := NewFormatter(FormatMarkdown, []string{"A"}).Format(nil, nil)
		if categoryText != "" || articleText != "" {
			t.Errorf("expected empty output, got %q and %q", categoryText, articleText)
		}
	})
}

// TestFormatterLayout tests the article block layout of each format.
func TestFormatterLayout(t *testing.T) {
	t.Parallel()

	articles := []*model.Article{
		newArticle("c", "첫째", "<p>가</p>"),
		newArticle("c", "둘째", "<p>나&amp;다</p><p>라<br>마</p>"),
	}

	tests := []struct {
		name   string
		format Format
		want   string
	}{
		{
			name:   "markdown",
			format: FormatMarkdown,
			want: "```[첫째]```\\\n<p>가</p>\n\n\n\n" +
				"\n" +
				"```[둘째]```\\\n<p>나&amp;다</p><p>라<br>마</p>\n\n\n\n",
		},
		{
			name:   "text",
			format: FormatText,
			want:   "[첫째]\n가\n\n[둘째]\n나&다\n라\n마",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, got := NewFormatter(tt.format, nil).Format(articles, nil)
			if got != tt.want {
				t.Errorf("got %q\nexpected %q", got, tt.want)
			}
		})
	}
}

// TestPlainText tests HTML flattening.
func TestPlainText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "no markup", "no markup"},
		{"paragraphs", "<p>a</p><p>b</p>", "a\nb"},
		{"blank runs collapse", "<p>a</p><p></p><p></p><p>b</p>", "a\n\nb"},
		{"entities", "&lt;tag&gt; &quot;q&quot;", `<tag> "q"`},
		{"script dropped", "<p>x</p><script>alert(1)</script><style>p{}</style><p>y</p>", "x\ny"},
		{"trailing space trimmed", "<div>a   </div><div>b</div>", "a\nb"},
		{"inline tags", "<p><b>bold</b> and <i>it</i></p>", "bold and it"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := PlainText(tt.in); got != tt.want {
				t.Errorf("PlainText(%q) = %q, expected %q", tt.in, got, tt.want)
			}
		})
	}
}

// TestWriter tests artifact writing.
func TestWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes both files", func(t *testing.T) {
		t.Parallel()

		fsys := afero.NewMemMapFs()
		w := NewWriter(fsys, "crawled_data")

		paths, err := w.Write(FormatMarkdown, "B", "body")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{
			filepath.Join("crawled_data", "final", "category_names.txt"),
			filepath.Join("crawled_data", "final", "all_articles.md"),
		}
		if len(paths) != 2 || paths[0] != want[0] || paths[1] != want[1] {
			t.Fatalf("got paths %v, expected %v", paths, want)
		}

		got, err := afero.ReadFile(fsys, want[0])
		if err != nil || string(got) != "B" {
			t.Errorf("category file = %q, %v", got, err)
		}
		got, err = afero.ReadFile(fsys, want[1])
		if err != nil || string(got) != "body" {
			t.Errorf("article file = %q, %v", got, err)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		t.Parallel()

		articles := []*model.Article{newArticle("B", "t", "<p>b</p>")}
		names := []string{"A", "B"}
		f := NewFormatter(FormatText, []string{"A"})

		fsys := afero.NewMemMapFs()
		w := NewWriter(fsys, "crawled_data")

		var snapshots [2][2]string
		for i := range 2 {
			categoryText, articleText := f.Format(articles, names)
			paths, err := w.Write(FormatText, categoryText, articleText)
			if err != nil {
				t.Fatalf("write %d failed: %v", i, err)
			}
			for j, p := range paths {
				data, err := afero.ReadFile(fsys, p)
				if err != nil {
					t.Fatalf("read failed: %v", err)
				}
				snapshots[i][j] = string(data)
			}
		}
		if snapshots[0] != snapshots[1] {
			t.Errorf("outputs differ: %q vs %q", snapshots[0], snapshots[1])
		}
		if snapshots[0][0] != "B" {
			t.Errorf("unexpected category file %q", snapshots[0][0])
		}
	})

	t.Run("read-only filesystem", func(t *testing.T) {
		t.Parallel()

		w := NewWriter(afero.NewReadOnlyFs(afero.NewMemMapFs()), "crawled_data")
		if _, err := w.Write(FormatMarkdown, "a", "b"); !errors.Is(err, ErrExportWrite) {
			t.Fatalf("expected ErrExportWrite, got %v", err)
		}
	})
}
