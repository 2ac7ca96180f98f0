package model

// Claim represents an attribution-style assertion extracted from a document section
type Claim struct {
	ClaimID        string       `json:"claim_id"`
	Entity         string       `json:"entity"`  // Who the claim is attributed to ("" when unset)
	Country        string       `json:"country"` // "" when unset
	ClaimStatement string       `json:"claim_statement"`
	DirectQuote    string       `json:"direct_quote"`
	PageIndex      int          `json:"page_index"`
	Section        string       `json:"section,omitempty"`
	Heuristic      string       `json:"heuristic,omitempty"` // Which extraction path produced it (e.g., "oracle", "keyword:according to")
	Supported      bool         `json:"supported"`
	Support        ClaimSupport `json:"support"`
}

// ClaimSupport lists the footnotes selected as substantive support for a claim
type ClaimSupport struct {
	Footnotes []int  `json:"footnotes"`
	Reasoning string `json:"reasoning"`
}

// Section is a heading-delimited slice of the document body
type Section struct {
	Title     string `json:"title"`
	StartPage int    `json:"start_page"`
	EndPage   int    `json:"end_page"`
	Text      string `json:"-"`
}

// ClaimExtraction is the claim_extraction block of the artifact
type ClaimExtraction struct {
	Sections []Section `json:"sections"`
	Claims   []Claim   `json:"claims"`
}
