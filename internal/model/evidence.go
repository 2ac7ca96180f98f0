package model

// SourceRecord is one deduplicated bibliographic identity cited by the document
type SourceRecord struct {
	SourceID        string               `json:"source_id"`
	IdentityKey     string               `json:"identity_key"` // url:..., doi:..., title:..., fn:...
	URL             string               `json:"url,omitempty"`
	DOI             string               `json:"doi,omitempty"`
	Title           string               `json:"title,omitempty"`
	Year            string               `json:"year,omitempty"`
	Authors         []string             `json:"authors,omitempty"`
	Publisher       string               `json:"publisher,omitempty"`
	Domain          string               `json:"domain,omitempty"`
	FootnoteNumbers []int                `json:"footnote_numbers"`
	Classification  SourceClassification `json:"classification"`
	SearchResults   []SearchResult       `json:"search_results,omitempty"`
}

// SourceClassification is the enrichment verdict for a source
type SourceClassification struct {
	SourceType       string        `json:"source_type"`       // academic, government, news, ngo, corporate, blog, unknown
	InstitutionClass string        `json:"institution_class"` // institution type behind the source
	IsSelfReference  bool          `json:"is_self_reference"`
	Confidence       float64       `json:"confidence"`
	Authority        AuthorityTier `json:"authority"`
	Method           string        `json:"method"` // oracle, authority_rules, neutral
}

// SearchResult is one ranked web result returned by the search collaborator
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Stance is a (claim, snippet) judgement
type Stance string

const (
	StanceSupport    Stance = "support"
	StanceContradict Stance = "contradict"
	StanceUnknown    Stance = "unknown"
)

// AuthorityTier represents the classification of source authority
type AuthorityTier int

const (
	TierUnknown   AuthorityTier = 0 // Not yet classified
	TierPrimary   AuthorityTier = 1 // Statutes, academic papers, official documents
	TierSecondary AuthorityTier = 2 // Encyclopedias, major publishers, reputable media
	TierTertiary  AuthorityTier = 3 // Blogs, personal websites
)

func (t AuthorityTier) String() string {
	switch t {
	case TierPrimary:
		return "primary"
	case TierSecondary:
		return "secondary"
	case TierTertiary:
		return "tertiary"
	default:
		return "unknown"
	}
}
