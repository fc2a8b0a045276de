package model

// Kind classifies a catalog node. It alone decides how the crawler treats
// the node.
type Kind string

const (
	// KindCategory nodes only organize children and contribute a name.
	KindCategory Kind = "CATEGORY"

	// KindArticle nodes are leaves whose content is fetched individually.
	KindArticle Kind = "ARTICLE"
)

// CategoryNode is one entry of the catalog tree.
type CategoryNode struct {
	// ID identifies the node. For ARTICLE nodes it is also the story id
	// used to fetch the article document.
	ID int `json:"id"`

	// ParentID is nil for top-level nodes.
	ParentID *int `json:"parent_id"`

	// Position is the sibling display order reported by the catalog.
	// The crawler preserves payload order and does not re-sort by it.
	Position int `json:"position"`

	// Kind is CATEGORY or ARTICLE. Other values are kept verbatim.
	Kind Kind `json:"type"`

	// Status is the catalog's lifecycle tag, treated opaquely.
	Status string `json:"status"`

	// Titles holds the display title per language.
	Titles LangText `json:"titles"`

	// Children is the ordered list of child nodes. It may be non-empty
	// even for ARTICLE nodes.
	Children []*CategoryNode `json:"children"`

	// Modified is passed through unchanged.
	Modified bool `json:"modified"`
}

// IsCategory reports whether n is a container node.
func (n *CategoryNode) IsCategory() bool {
	return n.Kind == KindCategory
}

// IsArticle reports whether n is a leaf content node.
func (n *CategoryNode) IsArticle() bool {
	return n.Kind == KindArticle
}

// CategoryResponse is the envelope of the catalog root document.
type CategoryResponse struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    []*CategoryNode `json:"data"`
}

// CountKinds returns the number of CATEGORY and ARTICLE nodes reachable from
// nodes by depth-first traversal.
func CountKinds(nodes []*CategoryNode) (categories, articles int) {
	for _, n := range nodes {
		switch n.Kind {
		case KindCategory:
			categories++
		case KindArticle:
			articles++
		}
		c, a := CountKinds(n.Children)
		categories += c
		articles += a
	}
	return categories, articles
}
