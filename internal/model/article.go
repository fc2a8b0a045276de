package model

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Attachment is a media item attached to an article.
type Attachment struct {
	ID           int    `json:"id"`
	Type         string `json:"type"`
	Position     int    `json:"position"`
	SourceURL    string `json:"source_url"`
	ThumbnailURL string `json:"thumbnail_url"`
	Modified     bool   `json:"modified"`
	Status       string `json:"status"`
}

// AttachmentKeying tells how an Attachments mapping is keyed.
type AttachmentKeying int

const (
	// KeyedByLanguage groups attachments per language code (KR, EN, CN).
	KeyedByLanguage AttachmentKeying = iota

	// KeyedByType groups attachments per media type (IMAGE, VIDEO, ...).
	KeyedByType
)

// String returns the keying name.
func (k AttachmentKeying) String() string {
	switch k {
	case KeyedByLanguage:
		return "language"
	case KeyedByType:
		return "type"
	default:
		return "unknown"
	}
}

// Attachments holds an article's attachment groups. Older payloads key the
// groups by language and newer ones by attachment type; both shapes decode
// into this one type and Keying records which one was seen.
type Attachments struct {
	Keying AttachmentKeying
	Groups map[string][]Attachment
}

// UnmarshalJSON decodes either attachment shape. A mapping whose keys are all
// language codes is language-keyed; anything else is type-keyed.
func (a *Attachments) UnmarshalJSON(data []byte) error {
	var groups map[string][]Attachment
	if err := json.Unmarshal(data, &groups); err != nil {
		return fmt.Errorf("attachments: %w", err)
	}

	a.Keying = KeyedByLanguage
	a.Groups = groups
	if a.Groups == nil {
		a.Groups = make(map[string][]Attachment)
	}
	for key := range a.Groups {
		if !Lang(key).IsValid() {
			a.Keying = KeyedByType
			break
		}
	}
	return nil
}

// MarshalJSON encodes the groups in their original mapping shape.
func (a Attachments) MarshalJSON() ([]byte, error) {
	if a.Groups == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(a.Groups)
}

// Article is one fetched story record.
type Article struct {
	ID             int         `json:"id"`
	CategoryID     int         `json:"category_id"`
	CategoryTitles LangText    `json:"category_titles"`
	Status         string      `json:"status"`
	Titles         LangText    `json:"titles"`
	Subtitles      LangText    `json:"subtitles"`
	ImageURL       *string     `json:"image_url"`
	Attachments    Attachments `json:"attachments"`
	Contents       LangText    `json:"contents"`
}

// ArticleResponse is the envelope of an article document.
type ArticleResponse struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Data    *Article `json:"data"`
}

// Title returns the primary-language title.
func (a *Article) Title() string {
	return a.Titles.Primary()
}

// CategoryTitle returns the owning category's primary-language title.
func (a *Article) CategoryTitle() string {
	return a.CategoryTitles.Primary()
}

// Body returns the primary-language body text.
func (a *Article) Body() string {
	return a.Contents.Primary()
}
