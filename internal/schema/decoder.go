package schema

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/nao1215/lorecrawl/internal/model"
)

// ErrDecode is matched by every error returned from this package.
var ErrDecode = errors.New("decode failure")

// Document names used in DecodeError.
const (
	DocumentCategories = "categories"
	DocumentArticle    = "article"
)

// DecodeError describes a document that could not be decoded.
// It matches ErrDecode and the underlying cause with errors.Is.
type DecodeError struct {
	// Document is DocumentCategories or DocumentArticle.
	Document string

	// ID identifies the document when known (article id).
	ID string

	// Err is the underlying cause.
	Err error
}

// Error implements error.
func (e *DecodeError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("decode %s %s: %v", e.Document, e.ID, e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.Document, e.Err)
}

// Unwrap exposes both ErrDecode and the cause.
func (e *DecodeError) Unwrap() []error {
	return []error{ErrDecode, e.Err}
}

// Decoder parses raw catalog documents. Every consumed language mapping
// must carry model.PrimaryLang, the language the crawler reads titles and
// bodies in.
type Decoder struct{}

// NewDecoder creates a Decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Categories decodes a catalog root document and returns its top-level nodes.
func (d *Decoder) Categories(data []byte) ([]*model.CategoryNode, error) {
	var resp model.CategoryResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &DecodeError{Document: DocumentCategories, Err: err}
	}
	if resp.Data == nil {
		return nil, &DecodeError{Document: DocumentCategories, Err: errors.New("missing data field")}
	}
	if err := d.checkNodes(resp.Data); err != nil {
		return nil, &DecodeError{Document: DocumentCategories, Err: err}
	}
	return resp.Data, nil
}

// checkNodes validates language keys in the whole tree. Only CATEGORY nodes
// must carry the primary language since only their titles are consumed.
func (d *Decoder) checkNodes(nodes []*model.CategoryNode) error {
	for _, n := range nodes {
		if n == nil {
			return errors.New("null node")
		}
		if err := checkLangs(n.Titles); err != nil {
			return fmt.Errorf("node %d titles: %w", n.ID, err)
		}
		if n.IsCategory() {
			if _, err := n.Titles.Get(model.PrimaryLang); err != nil {
				return fmt.Errorf("node %d titles: %w", n.ID, err)
			}
		}
		if err := d.checkNodes(n.Children); err != nil {
			return err
		}
	}
	return nil
}

// Article decodes an article document. id is used for error context only
// and may be zero when unknown.
func (d *Decoder) Article(data []byte, id int) (*model.Article, error) {
	docID := ""
	if id != 0 {
		docID = strconv.Itoa(id)
	}

	var resp model.ArticleResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &DecodeError{Document: DocumentArticle, ID: docID, Err: err}
	}
	if resp.Data == nil {
		return nil, &DecodeError{Document: DocumentArticle, ID: docID, Err: errors.New("missing data field")}
	}
	if err := d.checkArticle(resp.Data); err != nil {
		if docID == "" {
			docID = strconv.Itoa(resp.Data.ID)
		}
		return nil, &DecodeError{Document: DocumentArticle, ID: docID, Err: err}
	}
	return resp.Data, nil
}

// checkArticle validates every language-keyed mapping of an article.
func (d *Decoder) checkArticle(a *model.Article) error {
	fields := []struct {
		name     string
		text     model.LangText
		required bool
	}{
		{"category_titles", a.CategoryTitles, true},
		{"titles", a.Titles, true},
		{"subtitles", a.Subtitles, false},
		{"contents", a.Contents, true},
	}

	for _, f := range fields {
		if err := checkLangs(f.text); err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
		if !f.required {
			continue
		}
		if _, err := f.text.Get(model.PrimaryLang); err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
	}
	return nil
}

// checkLangs rejects language codes outside the enumerated set.
func checkLangs(text model.LangText) error {
	for lang := range text {
		if _, err := model.ParseLang(string(lang)); err != nil {
			return err
		}
	}
	return nil
}
