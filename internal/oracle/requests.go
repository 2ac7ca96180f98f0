package oracle

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ppiankov/sixc/internal/model"
)

// PageExcerpt is page text handed to the oracle as context
type PageExcerpt struct {
	PageIndex int    `json:"page_index"`
	Text      string `json:"text"`
}

func writeExcerpts(b *strings.Builder, excerpts []PageExcerpt) {
	for _, ex := range excerpts {
		fmt.Fprintf(b, "\n--- page_index %d ---\n%s\n", ex.PageIndex, ex.Text)
	}
}

// ResolveFootnoteRequest asks where a missing footnote definition lives
type ResolveFootnoteRequest struct {
	Index      int
	Candidates []model.CandidatePage
	Excerpts   []PageExcerpt
	PrevText   string // Text of footnote Index-1, if known
	NextText   string // Text of footnote Index+1, if known
}

// ResolveFootnoteResponse is the oracle's answer for one missing footnote
type ResolveFootnoteResponse struct {
	Found             bool    `json:"found"`
	InferredPageIndex int     `json:"inferred_page_index"`
	FootnoteText      string  `json:"footnote_text"`
	Evidence          string  `json:"evidence"`
	Confidence        float64 `json:"confidence"`
}

func (r *ResolveFootnoteRequest) Kind() Kind { return KindResolveFootnote }

func (r *ResolveFootnoteRequest) NewResponse() Response { return &ResolveFootnoteResponse{} }

func (r *ResolveFootnoteRequest) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{` +
		`"found":{"type":"boolean"},` +
		`"inferred_page_index":{"type":"integer"},` +
		`"footnote_text":{"type":"string"},` +
		`"evidence":{"type":"string"},` +
		`"confidence":{"type":"number","minimum":0,"maximum":1}},` +
		`"required":["found","inferred_page_index","footnote_text","evidence","confidence"],"additionalProperties":false}`)
}

func (r *ResolveFootnoteRequest) Prompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Footnote %d is cited in the body text but its definition was not found by the page scanner.\n", r.Index)
	b.WriteString("Find the definition of this footnote in the OCR page text below.\n\n")
	b.WriteString("RULES:\n")
	b.WriteString("1. footnote_text must be copied verbatim from the page text. Do not paraphrase or complete it.\n")
	b.WriteString("2. If the definition is not present, set found=false and leave footnote_text empty.\n")
	b.WriteString("3. evidence quotes the line that starts the definition.\n\n")
	b.WriteString("Ranked candidate pages:\n")
	for _, c := range r.Candidates {
		fmt.Fprintf(&b, "- page_index %d (score %.2f, %s)\n", c.PageIndex, c.Score, c.Reason)
	}
	if r.PrevText != "" {
		fmt.Fprintf(&b, "\nFootnote %d reads: %s\n", r.Index-1, r.PrevText)
	}
	if r.NextText != "" {
		fmt.Fprintf(&b, "Footnote %d reads: %s\n", r.Index+1, r.NextText)
	}
	writeExcerpts(&b, r.Excerpts)
	return b.String()
}

func (r *ResolveFootnoteResponse) Validate() error {
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0,1]", r.Confidence)
	}
	if r.Found && r.InferredPageIndex < 0 {
		return fmt.Errorf("found without a page index")
	}
	return nil
}

// ValidateFootnoteRequest double-checks an accepted footnote against its page window
type ValidateFootnoteRequest struct {
	Index  int
	Text   string
	Window []PageExcerpt
}

// ValidateFootnoteResponse is the validation verdict
type ValidateFootnoteResponse struct {
	Valid         bool   `json:"valid"`
	CorrectedText string `json:"corrected_text"`
	Reason        string `json:"reason"`
}

func (r *ValidateFootnoteRequest) Kind() Kind { return KindValidateFootnote }

func (r *ValidateFootnoteRequest) NewResponse() Response { return &ValidateFootnoteResponse{} }

func (r *ValidateFootnoteRequest) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{` +
		`"valid":{"type":"boolean"},` +
		`"corrected_text":{"type":"string"},` +
		`"reason":{"type":"string"}},` +
		`"required":["valid","corrected_text","reason"],"additionalProperties":false}`)
}

func (r *ValidateFootnoteRequest) Prompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Check whether the following text is the complete definition of footnote %d.\n\n", r.Index)
	fmt.Fprintf(&b, "Candidate text: %s\n\n", r.Text)
	b.WriteString("RULES:\n")
	b.WriteString("1. valid=true only if the page text contains this definition under the same footnote number.\n")
	b.WriteString("2. corrected_text may fix truncation or OCR joins, but only with text present on the pages. Otherwise leave it empty.\n")
	writeExcerpts(&b, r.Window)
	return b.String()
}

func (r *ValidateFootnoteResponse) Validate() error {
	return nil
}

// ExtractBibliographyRequest asks for structured references inside one footnote
type ExtractBibliographyRequest struct {
	FootnoteNumber int
	Text           string
	Context        string // Text of the surrounding pages
}

// ExtractBibliographyResponse lists the references found
type ExtractBibliographyResponse struct {
	References []model.BibliographicReference `json:"references"`
}

func (r *ExtractBibliographyRequest) Kind() Kind { return KindExtractBibliography }

func (r *ExtractBibliographyRequest) NewResponse() Response { return &ExtractBibliographyResponse{} }

func (r *ExtractBibliographyRequest) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"references":{"type":"array","items":{"type":"object","properties":{` +
		`"authors":{"type":"array","items":{"type":"string"}},` +
		`"year":{"type":"string"},` +
		`"title":{"type":"string"},` +
		`"url":{"type":"string"},` +
		`"doi":{"type":"string"},` +
		`"publisher_or_source":{"type":"string"},` +
		`"raw_reference":{"type":"string"}},` +
		`"required":["authors","year","title","url","doi","publisher_or_source","raw_reference"],"additionalProperties":false}}},` +
		`"required":["references"],"additionalProperties":false}`)
}

func (r *ExtractBibliographyRequest) Prompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Extract every bibliographic reference cited in footnote %d.\n\n", r.FootnoteNumber)
	fmt.Fprintf(&b, "Footnote text: %s\n\n", r.Text)
	b.WriteString("RULES:\n")
	b.WriteString("1. Every field must be copied from the footnote text. Use an empty string when a field is absent.\n")
	b.WriteString("2. raw_reference is the exact span of the footnote that holds the reference.\n")
	b.WriteString("3. Commentary without a citable source yields no reference.\n")
	if r.Context != "" {
		fmt.Fprintf(&b, "\nSurrounding page text (context only, do not extract from it):\n%s\n", r.Context)
	}
	return b.String()
}

func (r *ExtractBibliographyResponse) Validate() error {
	return nil
}

// ExtractArtifactsRequest asks for tables and figures on one page
type ExtractArtifactsRequest struct {
	PageIndex int
	Captions  []string
	PageText  string
}

// ArtifactItem is one table or figure
type ArtifactItem struct {
	Kind         string `json:"kind"`
	Label        string `json:"label"`
	Caption      string `json:"caption"`
	FootnoteRefs []int  `json:"footnote_refs"`
}

// ExtractArtifactsResponse lists the artifacts found
type ExtractArtifactsResponse struct {
	Artifacts []ArtifactItem `json:"artifacts"`
}

func (r *ExtractArtifactsRequest) Kind() Kind { return KindExtractArtifacts }

func (r *ExtractArtifactsRequest) NewResponse() Response { return &ExtractArtifactsResponse{} }

func (r *ExtractArtifactsRequest) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"artifacts":{"type":"array","items":{"type":"object","properties":{` +
		`"kind":{"type":"string","enum":["table","figure","exhibit","other"]},` +
		`"label":{"type":"string"},` +
		`"caption":{"type":"string"},` +
		`"footnote_refs":{"type":"array","items":{"type":"integer"}}},` +
		`"required":["kind","label","caption","footnote_refs"],"additionalProperties":false}}},` +
		`"required":["artifacts"],"additionalProperties":false}`)
}

func (r *ExtractArtifactsRequest) Prompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "List the tables and figures on page_index %d.\n\n", r.PageIndex)
	b.WriteString("Caption lines detected:\n")
	for _, c := range r.Captions {
		fmt.Fprintf(&b, "- %s\n", c)
	}
	b.WriteString("\nRULES:\n")
	b.WriteString("1. caption is copied from the page. footnote_refs lists footnote numbers cited inside the caption or the table body.\n")
	b.WriteString("2. Do not describe artifacts that are not on this page.\n")
	writeExcerpts(&b, []PageExcerpt{{PageIndex: r.PageIndex, Text: r.PageText}})
	return b.String()
}

func (r *ExtractArtifactsResponse) Validate() error {
	for i, a := range r.Artifacts {
		switch a.Kind {
		case "table", "figure", "exhibit", "other":
		default:
			return fmt.Errorf("artifact %d: unknown kind %q", i, a.Kind)
		}
	}
	return nil
}

// ExtractClaimsRequest asks for attribution claims in one section
type ExtractClaimsRequest struct {
	SectionTitle string
	Text         string // Section text with [[page N]] markers
	MaxClaims    int
}

// ClaimItem is one claim as the oracle reports it
type ClaimItem struct {
	Entity         string `json:"entity"`
	Country        string `json:"country"`
	ClaimStatement string `json:"claim_statement"`
	DirectQuote    string `json:"direct_quote"`
	PageNumber     int    `json:"page_number"`
}

// ExtractClaimsResponse lists the claims found
type ExtractClaimsResponse struct {
	Claims []ClaimItem `json:"claims"`
}

func (r *ExtractClaimsRequest) Kind() Kind { return KindExtractClaims }

func (r *ExtractClaimsRequest) NewResponse() Response { return &ExtractClaimsResponse{} }

func (r *ExtractClaimsRequest) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"claims":{"type":"array","items":{"type":"object","properties":{` +
		`"entity":{"type":"string"},` +
		`"country":{"type":"string"},` +
		`"claim_statement":{"type":"string"},` +
		`"direct_quote":{"type":"string"},` +
		`"page_number":{"type":"integer"}},` +
		`"required":["entity","country","claim_statement","direct_quote","page_number"],"additionalProperties":false}}},` +
		`"required":["claims"],"additionalProperties":false}`)
}

func (r *ExtractClaimsRequest) Prompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Extract attribution claims from the section %q.\n\n", r.SectionTitle)
	b.WriteString("An attribution claim states that a named actor did, said, holds or caused something.\n\n")
	b.WriteString("RULES:\n")
	b.WriteString("1. claim_statement is a one-sentence neutral restatement.\n")
	b.WriteString("2. direct_quote is a verbatim span of the section text that carries the claim.\n")
	b.WriteString("3. entity and country are empty strings when the text does not name them.\n")
	b.WriteString("4. page_number is the N of the nearest preceding [[page N]] marker.\n")
	if r.MaxClaims > 0 {
		fmt.Fprintf(&b, "5. Return at most %d claims, the most consequential first.\n", r.MaxClaims)
	}
	fmt.Fprintf(&b, "\nSection text:\n%s\n", r.Text)
	return b.String()
}

func (r *ExtractClaimsResponse) Validate() error {
	for i, c := range r.Claims {
		if strings.TrimSpace(c.ClaimStatement) == "" {
			return fmt.Errorf("claim %d has no statement", i)
		}
	}
	return nil
}

// PoolItem is one candidate support footnote
type PoolItem struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// SelectSupportRequest asks which pool footnotes substantively support a claim
type SelectSupportRequest struct {
	ClaimStatement string
	DirectQuote    string
	Pool           []PoolItem
	MaxSupport     int
}

// SelectSupportResponse is the support selection
type SelectSupportResponse struct {
	Footnotes []int  `json:"footnotes"`
	Supported bool   `json:"supported"`
	Reasoning string `json:"reasoning"`
}

func (r *SelectSupportRequest) Kind() Kind { return KindSelectSupport }

func (r *SelectSupportRequest) NewResponse() Response { return &SelectSupportResponse{} }

func (r *SelectSupportRequest) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{` +
		`"footnotes":{"type":"array","items":{"type":"integer"}},` +
		`"supported":{"type":"boolean"},` +
		`"reasoning":{"type":"string"}},` +
		`"required":["footnotes","supported","reasoning"],"additionalProperties":false}`)
}

func (r *SelectSupportRequest) Prompt() string {
	max := r.MaxSupport
	if max <= 0 {
		max = 3
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Claim: %s\n", r.ClaimStatement)
	if r.DirectQuote != "" {
		fmt.Fprintf(&b, "Quote: %s\n", r.DirectQuote)
	}
	fmt.Fprintf(&b, "\nSelect at most %d footnotes from the pool that substantively support this claim.\n", max)
	b.WriteString("A footnote supports the claim when its source would let a reader verify it, not merely when it shares words.\n")
	b.WriteString("supported=false when no footnote qualifies. reasoning explains the choice in one or two sentences.\n\n")
	b.WriteString("Pool:\n")
	for _, p := range r.Pool {
		fmt.Fprintf(&b, "[%d] %s\n", p.Number, p.Text)
	}
	return b.String()
}

func (r *SelectSupportResponse) Validate() error {
	for _, n := range r.Footnotes {
		if n <= 0 {
			return fmt.Errorf("footnote number %d is not positive", n)
		}
	}
	return nil
}

// ClassifyStanceRequest judges a web snippet against a claim
type ClassifyStanceRequest struct {
	Claim   string
	Title   string
	URL     string
	Snippet string
}

// ClassifyStanceResponse is the stance judgement
type ClassifyStanceResponse struct {
	Stance       model.Stance `json:"stance"`
	EvidenceSpan string       `json:"evidence_span"`
	Confidence   float64      `json:"confidence"`
}

func (r *ClassifyStanceRequest) Kind() Kind { return KindClassifyStance }

func (r *ClassifyStanceRequest) NewResponse() Response { return &ClassifyStanceResponse{} }

func (r *ClassifyStanceRequest) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{` +
		`"stance":{"type":"string","enum":["support","contradict","unknown"]},` +
		`"evidence_span":{"type":"string"},` +
		`"confidence":{"type":"number","minimum":0,"maximum":1}},` +
		`"required":["stance","evidence_span","confidence"],"additionalProperties":false}`)
}

func (r *ClassifyStanceRequest) Prompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Claim: %s\n\n", r.Claim)
	fmt.Fprintf(&b, "Search result: %s (%s)\n%s\n\n", r.Title, r.URL, r.Snippet)
	b.WriteString("Does the search result support or contradict the claim?\n")
	b.WriteString("evidence_span must be copied verbatim from the snippet. Use stance=unknown when the snippet does not address the claim.\n")
	return b.String()
}

func (r *ClassifyStanceResponse) Validate() error {
	switch r.Stance {
	case model.StanceSupport, model.StanceContradict, model.StanceUnknown:
	default:
		return fmt.Errorf("unknown stance %q", r.Stance)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0,1]", r.Confidence)
	}
	return nil
}

// ClassifySourceRequest asks what kind of institution stands behind a source
type ClassifySourceRequest struct {
	Subject   string // Document title, used to detect self-reference
	Title     string
	URL       string
	Domain    string
	Publisher string
	Authors   []string
	Results   []model.SearchResult
}

// ClassifySourceResponse is the source classification
type ClassifySourceResponse struct {
	SourceType       string  `json:"source_type"`
	InstitutionClass string  `json:"institution_class"`
	IsSelfReference  bool    `json:"is_self_reference"`
	Confidence       float64 `json:"confidence"`
}

// SourceTypes enumerates the accepted source_type values
var SourceTypes = []string{"academic", "government", "intergovernmental", "news", "ngo", "corporate", "think_tank", "blog", "unknown"}

func (r *ClassifySourceRequest) Kind() Kind { return KindClassifySource }

func (r *ClassifySourceRequest) NewResponse() Response { return &ClassifySourceResponse{} }

func (r *ClassifySourceRequest) Schema() json.RawMessage {
	enum, _ := json.Marshal(SourceTypes)
	return json.RawMessage(`{"type":"object","properties":{` +
		`"source_type":{"type":"string","enum":` + string(enum) + `},` +
		`"institution_class":{"type":"string"},` +
		`"is_self_reference":{"type":"boolean"},` +
		`"confidence":{"type":"number","minimum":0,"maximum":1}},` +
		`"required":["source_type","institution_class","is_self_reference","confidence"],"additionalProperties":false}`)
}

func (r *ClassifySourceRequest) Prompt() string {
	var b strings.Builder
	b.WriteString("Classify the source below.\n\n")
	fmt.Fprintf(&b, "Title: %s\nURL: %s\nDomain: %s\nPublisher: %s\n", r.Title, r.URL, r.Domain, r.Publisher)
	if len(r.Authors) > 0 {
		fmt.Fprintf(&b, "Authors: %s\n", strings.Join(r.Authors, "; "))
	}
	if r.Subject != "" {
		fmt.Fprintf(&b, "\nThe citing document is %q. is_self_reference=true when the source was published by the same organisation as the citing document.\n", r.Subject)
	}
	if len(r.Results) > 0 {
		b.WriteString("\nWeb search results about the source:\n")
		for i, res := range r.Results {
			fmt.Fprintf(&b, "%d. %s (%s) %s\n", i+1, res.Title, res.URL, res.Snippet)
		}
	}
	b.WriteString("\nconfidence reflects how credible the source is as evidence, from 0 (unknown or unreliable) to 1 (authoritative primary source).\n")
	return b.String()
}

func (r *ClassifySourceResponse) Validate() error {
	known := false
	for _, t := range SourceTypes {
		if r.SourceType == t {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown source_type %q", r.SourceType)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0,1]", r.Confidence)
	}
	return nil
}
