package extract

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/sixc/internal/model"
	"github.com/ppiankov/sixc/internal/oracle"
)

const (
	poolTextChars = 400
	// lexical fallback needs this many shared content tokens to call a footnote support
	minSupportOverlap = 2
)

var (
	claimNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/ppiankov/sixc/claims"))

	accordingToRe = regexp.MustCompile(`(?i:according to)\s+((?:the\s+)?\p{Lu}[\p{L}.&'-]*(?:\s+(?:of\s+)?\p{Lu}[\p{L}.&'-]*)*)`)
	// OCR flattens superscripts into digits glued to the preceding word or punctuation
	bareMarkerRe = regexp.MustCompile(`[\p{Ll}.,;:)”"’](\d{1,3})(?:\s|$)`)
)

// ClaimExtractor extracts attribution claims and links them to support footnotes
type ClaimExtractor struct {
	keywords []string
	oracle   oracle.Oracle
	config   model.ClaimsConfig
	logger   *zap.Logger
}

// NewClaimExtractor creates a new claim extractor; a nil oracle selects the keyword heuristic
func NewClaimExtractor(o oracle.Oracle, config model.ClaimsConfig, logger *zap.Logger) *ClaimExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClaimExtractor{
		keywords: []string{
			"according to", "originated", "introduced", "invented", "first",
			"is defined as", "is legally", "under the law", "under this act",
			"established", "founded", "created", "discovered", "developed",
			"reported", "stated", "announced", "claimed", "found that", "concluded",
			"shall", "must", "is required",
		},
		oracle: o,
		config: config,
		logger: logger,
	}
}

// Extract extracts claims from one section
// Oracle failures fall back to keyword matching; the section is never skipped.
func (e *ClaimExtractor) Extract(ctx context.Context, section model.Section) []model.Claim {
	var claims []model.Claim
	if e.oracle != nil {
		var err error
		claims, err = e.extractWithOracle(ctx, section)
		if err != nil {
			e.logger.Warn("claim oracle failed, using keyword heuristic",
				zap.String("section", section.Title), zap.Error(err))
			claims = e.extractByKeyword(section)
		}
	} else {
		claims = e.extractByKeyword(section)
	}

	claims = dedupeClaims(claims)
	if e.config.MaxClaims > 0 && len(claims) > e.config.MaxClaims {
		claims = claims[:e.config.MaxClaims]
	}
	return claims
}

func (e *ClaimExtractor) extractWithOracle(ctx context.Context, section model.Section) ([]model.Claim, error) {
	resp, err := oracle.Call[*oracle.ExtractClaimsResponse](ctx, e.oracle, &oracle.ExtractClaimsRequest{
		SectionTitle: section.Title,
		Text:         section.Text,
		MaxClaims:    e.config.MaxClaims,
	})
	if err != nil {
		return nil, err
	}

	body := Normalize(StripPageMarkers(section.Text))
	claims := make([]model.Claim, 0, len(resp.Claims))
	for _, item := range resp.Claims {
		quote := strings.TrimSpace(item.DirectQuote)
		// a quote that is not verbatim section text is not a quote
		if quote != "" && !strings.Contains(body, Normalize(quote)) {
			quote = ""
		}
		claims = append(claims, newClaim(section, model.Claim{
			Entity:         strings.TrimSpace(item.Entity),
			Country:        strings.TrimSpace(item.Country),
			ClaimStatement: strings.TrimSpace(item.ClaimStatement),
			DirectQuote:    quote,
			PageIndex:      claimPage(section, item.PageNumber, quote),
			Heuristic:      ExtractorOracle,
		}))
	}
	return claims, nil
}

// claimPage trusts the reported 1-based page when it falls inside the section
func claimPage(section model.Section, pageNumber int, quote string) int {
	if p := pageNumber - 1; p >= section.StartPage && p <= section.EndPage {
		return p
	}
	if p := PageOfQuote(section.Text, quote); p >= 0 {
		return p
	}
	return section.StartPage
}

// extractByKeyword matches attribution keywords sentence by sentence
func (e *ClaimExtractor) extractByKeyword(section model.Section) []model.Claim {
	var claims []model.Claim
	for _, chunk := range pageChunks(section) {
		for _, sentence := range splitSentences(chunk.text) {
			lower := strings.ToLower(sentence)
			for _, keyword := range e.keywords {
				if !containsWord(lower, keyword) {
					continue
				}
				claims = append(claims, newClaim(section, model.Claim{
					Entity:         entityOf(sentence),
					ClaimStatement: sentence,
					DirectQuote:    sentence,
					PageIndex:      chunk.page,
					Heuristic:      "keyword:" + keyword,
				}))
				break // Only match once per sentence
			}
		}
	}
	return claims
}

type pageChunk struct {
	page int
	text string
}

// pageChunks splits section text on its page markers
func pageChunks(section model.Section) []pageChunk {
	var chunks []pageChunk
	current := pageChunk{page: section.StartPage}
	var buf strings.Builder
	for _, line := range strings.Split(section.Text, "\n") {
		if m := pageMarkerRe.FindStringSubmatch(line); m != nil {
			if buf.Len() > 0 {
				current.text = buf.String()
				chunks = append(chunks, current)
				buf.Reset()
			}
			current = pageChunk{page: atoi(m[1]) - 1}
			continue
		}
		buf.WriteString(line)
		buf.WriteByte(' ')
	}
	if buf.Len() > 0 {
		current.text = buf.String()
		chunks = append(chunks, current)
	}
	return chunks
}

func containsWord(lower, keyword string) bool {
	for from := 0; ; {
		i := strings.Index(lower[from:], keyword)
		if i < 0 {
			return false
		}
		start, end := from+i, from+i+len(keyword)
		if (start == 0 || !isWordByte(lower[start-1])) && (end == len(lower) || !isWordByte(lower[end])) {
			return true
		}
		from = end
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}

func entityOf(sentence string) string {
	if m := accordingToRe.FindStringSubmatch(sentence); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func newClaim(section model.Section, c model.Claim) model.Claim {
	c.Section = section.Title
	key := fmt.Sprintf("%s|%d|%s", section.Title, c.PageIndex, Normalize(c.ClaimStatement))
	c.ClaimID = uuid.NewSHA1(claimNamespace, []byte(key)).String()
	c.Support.Footnotes = []int{}
	return c
}

// splitSentences splits text into sentences (simple heuristic)
func splitSentences(text string) []string {
	text = strings.Join(strings.Fields(text), " ")

	var sentences []string
	var current strings.Builder

	for i, r := range text {
		current.WriteRune(r)

		if r == '.' || r == '!' || r == '?' {
			// Look ahead to avoid splitting on abbreviations
			if i+1 < len(text) && text[i+1] == ' ' && !isAbbreviation(current.String()) {
				sentence := strings.TrimSpace(current.String())
				if len(sentence) >= 30 && len(sentence) <= 500 {
					sentences = append(sentences, sentence)
				}
				current.Reset()
			}
		}
	}

	if current.Len() > 0 {
		sentence := strings.TrimSpace(current.String())
		if len(sentence) >= 30 && len(sentence) <= 500 {
			sentences = append(sentences, sentence)
		}
	}

	return sentences
}

// isAbbreviation reports whether the buffer ends in a short token such as "Dr." or "U.S."
func isAbbreviation(buf string) bool {
	word := lastField(buf)
	word = strings.TrimSuffix(word, ".")
	if word == "" {
		return false
	}
	if strings.Contains(word, ".") {
		return true
	}
	switch strings.ToLower(word) {
	case "dr", "mr", "mrs", "ms", "prof", "st", "no", "vol", "pp", "p", "al", "fig", "e.g", "i.e", "cf", "inc", "ltd", "co", "jr", "sr":
		return true
	}
	return len(word) == 1 && word[0] >= 'A' && word[0] <= 'Z'
}

// dedupeClaims removes duplicate claims
func dedupeClaims(claims []model.Claim) []model.Claim {
	seen := make(map[string]bool)
	var unique []model.Claim

	for _, claim := range claims {
		key := Normalize(claim.ClaimStatement)
		if key != "" && !seen[key] {
			seen[key] = true
			unique = append(unique, claim)
		}
	}

	return unique
}

// SupportPool ranks known footnotes for one claim
// It keeps the PoolSize best by token overlap plus every footnote marked inside the section.
func SupportPool(claim model.Claim, sectionText string, footnotes map[int]model.MergedFootnote, poolSize int) []oracle.PoolItem {
	claimText := claim.ClaimStatement + " " + claim.DirectQuote

	type ranked struct {
		number  int
		overlap int
	}
	var candidates []ranked
	for n, fn := range footnotes {
		if ov := SharedTokens(claimText, fn.Text); ov > 0 {
			candidates = append(candidates, ranked{n, ov})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].overlap != candidates[j].overlap {
			return candidates[i].overlap > candidates[j].overlap
		}
		return candidates[i].number < candidates[j].number
	})
	if poolSize > 0 && len(candidates) > poolSize {
		candidates = candidates[:poolSize]
	}

	in := make(map[int]bool)
	var pool []oracle.PoolItem
	add := func(n int) {
		fn, ok := footnotes[n]
		if !ok || in[n] {
			return
		}
		in[n] = true
		pool = append(pool, oracle.PoolItem{Number: n, Text: truncate(fn.Text, poolTextChars)})
	}
	for _, c := range candidates {
		add(c.number)
	}
	for _, n := range model.SortedKeys(SectionMarkers(sectionText)) {
		add(n)
	}
	return pool
}

// SectionMarkers returns footnote numbers marked in text by brackets, superscripts or glued digits
func SectionMarkers(text string) map[int]bool {
	numbers := MarkedNumbers(text)
	for _, m := range bareMarkerRe.FindAllStringSubmatch(text, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			numbers[n] = true
		}
	}
	return numbers
}

// SelectSupport fills claim.Supported and claim.Support from the pool
func (e *ClaimExtractor) SelectSupport(ctx context.Context, claim *model.Claim, pool []oracle.PoolItem) {
	maxSupport := e.config.MaxSupport
	if maxSupport <= 0 {
		maxSupport = 3
	}
	if len(pool) == 0 {
		claim.Supported = false
		claim.Support = model.ClaimSupport{Footnotes: []int{}, Reasoning: "no candidate footnotes"}
		return
	}

	if e.oracle != nil {
		resp, err := oracle.Call[*oracle.SelectSupportResponse](ctx, e.oracle, &oracle.SelectSupportRequest{
			ClaimStatement: claim.ClaimStatement,
			DirectQuote:    claim.DirectQuote,
			Pool:           pool,
			MaxSupport:     maxSupport,
		})
		if err == nil {
			selected := filterPool(resp.Footnotes, pool, maxSupport)
			claim.Supported = resp.Supported && len(selected) > 0
			claim.Support = model.ClaimSupport{Footnotes: selected, Reasoning: strings.TrimSpace(resp.Reasoning)}
			return
		}
		e.logger.Warn("support oracle failed, using lexical selection",
			zap.String("claim_id", claim.ClaimID), zap.Error(err))
	}

	selected, reasoning := lexicalSupport(*claim, pool, maxSupport)
	claim.Supported = len(selected) > 0
	claim.Support = model.ClaimSupport{Footnotes: selected, Reasoning: reasoning}
}

// filterPool keeps selected numbers that are in the pool, deduplicated and capped
func filterPool(numbers []int, pool []oracle.PoolItem, limit int) []int {
	in := make(map[int]bool, len(pool))
	for _, p := range pool {
		in[p.Number] = true
	}
	out := []int{}
	seen := make(map[int]bool)
	for _, n := range numbers {
		if in[n] && !seen[n] && len(out) < limit {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

// lexicalSupport prefers footnotes marked inside the quote, then high token overlap
func lexicalSupport(claim model.Claim, pool []oracle.PoolItem, limit int) ([]int, string) {
	marked := SectionMarkers(claim.DirectQuote)
	claimText := claim.ClaimStatement + " " + claim.DirectQuote

	type scored struct {
		number  int
		marked  bool
		overlap int
	}
	var picks []scored
	for _, p := range pool {
		s := scored{number: p.Number, marked: marked[p.Number], overlap: SharedTokens(claimText, p.Text)}
		if s.marked || s.overlap >= minSupportOverlap {
			picks = append(picks, s)
		}
	}
	sort.Slice(picks, func(i, j int) bool {
		if picks[i].marked != picks[j].marked {
			return picks[i].marked
		}
		if picks[i].overlap != picks[j].overlap {
			return picks[i].overlap > picks[j].overlap
		}
		return picks[i].number < picks[j].number
	})
	if len(picks) > limit {
		picks = picks[:limit]
	}

	if len(picks) == 0 {
		return []int{}, "no footnote shares enough terms with the claim"
	}
	out := make([]int, len(picks))
	parts := make([]string, len(picks))
	for i, p := range picks {
		out[i] = p.number
		if p.marked {
			parts[i] = fmt.Sprintf("%d (marked in quote)", p.number)
		} else {
			parts[i] = fmt.Sprintf("%d (%d shared terms)", p.number, p.overlap)
		}
	}
	return out, "lexical selection: " + strings.Join(parts, ", ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
