package resolve

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/sixc/internal/extract"
	"github.com/ppiankov/sixc/internal/metrics"
	"github.com/ppiankov/sixc/internal/model"
	"github.com/ppiankov/sixc/internal/oracle"
	"github.com/ppiankov/sixc/internal/worker"
)

// State is one node of the resolution state machine
type State string

const (
	StateStart              State = "start"
	StateDirectMatch        State = "direct_match"
	StateWindowSearch       State = "window_search"
	StateOracleFallback     State = "oracle_fallback"
	StateHardValidation     State = "hard_validation"
	StateNeighborValidation State = "neighbor_validation"
	StateAccepted           State = "accepted"
	StateRejected           State = "rejected"
	stateDone               State = "done"
)

// Flags attached to resolution records
const (
	FlagLLMRejectedMismatch  = "llm_rejected_mismatch"
	FlagOracleUnavailable    = "oracle_unavailable"
	FlagOracleFailed         = "oracle_failed"
	FlagOracleNotFound       = "oracle_not_found"
	FlagLowQuality           = "low_quality_text"
	FlagWindowRetry          = "window_retry"
	FlagValidatorCorrected   = "validator_corrected"
	FlagValidatorRejected    = "validator_rejected"
	FlagValidatorUnavailable = "validator_unavailable"
	FlagForceInvalidated     = "force_invalidated"
)

// Neighbor check reasons
const (
	NeighborNoData       = "no_neighbor_data"
	NeighborWithinOne    = "neighbor_within_one_page"
	NeighborSingleFar    = "single_neighbor_far_section_boundary"
	NeighborBothFar      = "both_neighbors_far"
	proofNumberedLine    = "numbered_line_on_page"
	proofLineMismatch    = "numbered_line_text_mismatch"
	proofAnchorText      = "anchor_text_on_page"
	proofNoEvidence      = "no_evidence_on_page"
	proofPageOutOfRange  = "page_out_of_range"
	directMatchConfBoost = 0.08
	windowConfidence     = 0.6
)

// Resolver runs the state machine for every missing footnote index of one document
type Resolver struct {
	pages   model.Pages
	index   *model.PageIndex
	sets    [][]int
	seen    map[int][]int
	known   map[int]string
	oracle  oracle.Oracle
	bib     *extract.BibliographyExtractor
	config  model.ResolverConfig
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// Options carries the optional collaborators of a Resolver
type Options struct {
	// Known maps already-defined footnote indices to their text (oracle context)
	Known map[int]string

	Oracle oracle.Oracle

	// Bibliography, when set with ExtractReferences, fills ResolutionRecord.References
	Bibliography *extract.BibliographyExtractor

	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// NewResolver creates a resolver over one document's pages and page index
func NewResolver(pages model.Pages, index *model.PageIndex, config model.ResolverConfig, opts Options) *Resolver {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	known := opts.Known
	if known == nil {
		known = make(map[int]string)
		for _, defs := range index.Definitions {
			for idx, def := range defs {
				if _, ok := known[idx]; !ok {
					known[idx] = def.BodyText
				}
			}
		}
	}
	return &Resolver{
		pages:   pages,
		index:   index,
		sets:    index.IndexSets(),
		seen:    index.SeenPages(),
		known:   known,
		oracle:  opts.Oracle,
		bib:     opts.Bibliography,
		config:  config,
		logger:  logger,
		metrics: opts.Metrics,
	}
}

// ResolveAll resolves every index on a worker pool and returns records in input order
func (r *Resolver) ResolveAll(ctx context.Context, missing []int, workers int) []model.ResolutionRecord {
	return worker.Map(ctx, workers, missing, func(ctx context.Context, _ int, m int) model.ResolutionRecord {
		return r.Resolve(ctx, m)
	})
}

// result is a footnote location proposed by one stage
type result struct {
	page       int
	text       string
	evidence   string
	confidence float64
}

// run is the mutable state of one resolution
type run struct {
	m          int
	rec        model.ResolutionRecord
	cands      []model.CandidatePage
	current    *result
	center     int
	oracleUsed bool
	oraclePage int
	retried    bool
}

type transition func(r *Resolver, ctx context.Context, st *run) State

var transitions = map[State]transition{
	StateStart:              (*Resolver).start,
	StateDirectMatch:        (*Resolver).directMatch,
	StateWindowSearch:       (*Resolver).windowSearch,
	StateOracleFallback:     (*Resolver).oracleFallback,
	StateHardValidation:     (*Resolver).hardValidation,
	StateNeighborValidation: (*Resolver).neighborValidation,
	StateAccepted:           (*Resolver).accepted,
	StateRejected:           (*Resolver).rejected,
}

// maxTransitions bounds a run; the longest legal path is well under it
const maxTransitions = 32

// Resolve runs the state machine for one missing index
// The returned record is validated only if the text was found, proven on its page
// and consistent with its neighbors.
func (r *Resolver) Resolve(ctx context.Context, m int) model.ResolutionRecord {
	st := &run{
		m:          m,
		rec:        model.ResolutionRecord{Index: m, InferredPageIndex: -1, HardProof: model.HardProof{PageIndex: -1}},
		oraclePage: -1,
	}

	state := StateStart
	for steps := 0; state != stateDone; steps++ {
		if steps >= maxTransitions || ctx.Err() != nil {
			st.rec.Validated = false
			st.rec.Trace = append(st.rec.Trace, "aborted")
			break
		}
		next := transitions[state](r, ctx, st)
		st.rec.Trace = append(st.rec.Trace, fmt.Sprintf("%s->%s", state, next))
		state = next
	}

	r.metrics.Resolution(st.rec.Validated)
	r.logger.Debug("footnote resolution finished",
		zap.Int("index", m),
		zap.Bool("validated", st.rec.Validated),
		zap.Int("page", st.rec.InferredPageIndex),
		zap.Strings("flags", st.rec.Flags))
	return st.rec
}

func (r *Resolver) start(_ context.Context, st *run) State {
	st.cands = InferCandidates(st.m, r.sets, r.seen)
	st.rec.Candidates = st.cands
	if len(st.cands) > 0 {
		st.center = st.cands[0].PageIndex
	} else {
		st.center = -1
	}
	return StateDirectMatch
}

func (r *Resolver) directMatch(_ context.Context, st *run) State {
	for _, c := range st.cands {
		def, ok := r.index.Definitions[c.PageIndex][st.m]
		if !ok {
			continue
		}
		st.current = &result{
			page:       c.PageIndex,
			text:       def.BodyText,
			evidence:   def.FirstLine,
			confidence: min(1, c.Score+directMatchConfBoost),
		}
		return r.afterDeterministic(st)
	}
	return StateWindowSearch
}

// windowPages orders the pages within the window radius by distance from center
func (r *Resolver) windowPages(center int) []int {
	if center < 0 {
		return nil
	}
	pages := []int{center}
	for d := 1; d <= r.config.WindowRadius; d++ {
		for _, p := range []int{center - d, center + d} {
			if p >= 0 && p < len(r.pages) {
				pages = append(pages, p)
			}
		}
	}
	return pages
}

func (r *Resolver) windowSearch(_ context.Context, st *run) State {
	for _, p := range r.windowPages(st.center) {
		if p >= len(r.pages) {
			continue
		}
		text, ok := extract.FindNumberedLine(r.pages[p], st.m)
		if !ok {
			continue
		}
		st.current = &result{
			page:       p,
			text:       text,
			evidence:   fmt.Sprintf("numbered line on page %d within window of page %d", p, st.center),
			confidence: windowConfidence,
		}
		return r.afterDeterministic(st)
	}

	if st.oracleUsed {
		return StateRejected
	}
	return StateOracleFallback
}

// afterDeterministic escalates low-quality deterministic text to the oracle
func (r *Resolver) afterDeterministic(st *run) State {
	if r.lowQuality(st.current.text) && !st.oracleUsed {
		st.rec.Flags = appendFlag(st.rec.Flags, FlagLowQuality)
		return StateOracleFallback
	}
	return StateHardValidation
}

// lowQuality flags short or visibly truncated OCR text
func (r *Resolver) lowQuality(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return true
	}
	if extract.WordCount(text) < r.config.MinWords || len([]rune(text)) < r.config.MinChars {
		return true
	}
	switch text[len(text)-1] {
	case ',', ';', ':':
		return true
	}
	return false
}

// compatible reports whether two texts describe the same footnote
func (r *Resolver) compatible(a, b string) bool {
	return extract.SharesRun(a, b, r.config.AnchorTokens) || extract.SharedTokens(a, b) >= r.config.OverlapTokens
}

func (r *Resolver) oracleFallback(ctx context.Context, st *run) State {
	st.oracleUsed = true
	prior := st.current

	if r.oracle == nil {
		st.rec.Flags = appendFlag(st.rec.Flags, FlagOracleUnavailable)
		return r.withPrior(prior)
	}

	cands := st.cands
	if n := r.config.MaxOracleCandidates; n > 0 && len(cands) > n {
		cands = cands[:n]
	}
	excerpts := make([]oracle.PageExcerpt, 0, len(cands))
	for _, c := range cands {
		excerpts = append(excerpts, oracle.PageExcerpt{PageIndex: c.PageIndex, Text: r.pages[c.PageIndex]})
	}

	resp, err := oracle.Call[*oracle.ResolveFootnoteResponse](ctx, r.oracle, &oracle.ResolveFootnoteRequest{
		Index:      st.m,
		Candidates: cands,
		Excerpts:   excerpts,
		PrevText:   r.known[st.m-1],
		NextText:   r.known[st.m+1],
	})
	if err != nil {
		r.logger.Warn("resolve oracle failed", zap.Int("index", st.m), zap.Error(err))
		st.rec.Flags = appendFlag(st.rec.Flags, FlagOracleFailed)
		return r.withPrior(prior)
	}
	if !resp.Found || strings.TrimSpace(resp.FootnoteText) == "" {
		st.rec.Flags = appendFlag(st.rec.Flags, FlagOracleNotFound)
		return r.withPrior(prior)
	}

	if resp.InferredPageIndex >= 0 && resp.InferredPageIndex < len(r.pages) {
		st.oraclePage = resp.InferredPageIndex
	}
	proposed := &result{
		page:       resp.InferredPageIndex,
		text:       strings.TrimSpace(resp.FootnoteText),
		evidence:   resp.Evidence,
		confidence: model.Clamp01(resp.Confidence),
	}

	if prior != nil && !r.compatible(prior.text, proposed.text) {
		st.rec.Flags = appendFlag(st.rec.Flags, FlagLLMRejectedMismatch)
		return StateHardValidation
	}
	st.current = proposed
	return StateHardValidation
}

func (r *Resolver) withPrior(prior *result) State {
	if prior != nil {
		return StateHardValidation
	}
	return StateRejected
}

func (r *Resolver) hardValidation(_ context.Context, st *run) State {
	cur := st.current
	st.rec.Found = true
	st.rec.InferredPageIndex = cur.page
	st.rec.FootnoteText = cur.text
	st.rec.Evidence = cur.evidence
	st.rec.Confidence = cur.confidence
	st.rec.HardProof = r.proveOnPage(st.m, cur.page, cur.text)
	return StateNeighborValidation
}

// proveOnPage re-scans the claimed page for the numbered line carrying the text
// With hard_proof_anchor_words set, a long enough run of the text on the page also counts.
func (r *Resolver) proveOnPage(m, page int, text string) model.HardProof {
	if page < 0 || page >= len(r.pages) {
		return model.HardProof{Found: false, PageIndex: page, Reason: proofPageOutOfRange}
	}
	reason := proofNoEvidence
	if line, ok := extract.FindNumberedLine(r.pages[page], m); ok {
		if r.matchesLine(text, line) {
			return model.HardProof{Found: true, PageIndex: page, Reason: proofNumberedLine}
		}
		reason = proofLineMismatch
	}

	words := strings.Fields(text)
	if n := r.config.HardProofAnchor; n > 0 && len(words) >= n {
		anchor := extract.Normalize(strings.Join(words[:n], " "))
		if strings.Contains(extract.Normalize(r.pages[page]), anchor) {
			return model.HardProof{Found: true, PageIndex: page, Reason: proofAnchorText}
		}
	}
	return model.HardProof{Found: false, PageIndex: page, Reason: reason}
}

// matchesLine reports whether text and the numbered line body describe the same note
func (r *Resolver) matchesLine(text, line string) bool {
	a, b := extract.Normalize(text), extract.Normalize(line)
	if a == "" || b == "" {
		return false
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}
	return r.compatible(text, line)
}

func (r *Resolver) neighborValidation(_ context.Context, st *run) State {
	st.rec.NeighborCheck = CheckNeighbors(st.m, st.rec.InferredPageIndex, r.seen)

	if st.rec.Found && st.rec.HardProof.Found && st.rec.NeighborCheck.OK && strings.TrimSpace(st.rec.FootnoteText) != "" {
		return StateAccepted
	}
	return StateRejected
}

// CheckNeighbors requires footnote m-1 or m+1, when known, to sit within one page of page
// A single far neighbor is tolerated as a section boundary.
func CheckNeighbors(m, page int, seen map[int][]int) model.NeighborCheck {
	known, near := 0, 0
	for _, n := range []int{m - 1, m + 1} {
		pages, ok := seen[n]
		if !ok || len(pages) == 0 {
			continue
		}
		known++
		for _, p := range pages {
			if p-page <= 1 && page-p <= 1 {
				near++
				break
			}
		}
	}

	switch {
	case known == 0:
		return model.NeighborCheck{OK: true, Reason: NeighborNoData}
	case near > 0:
		return model.NeighborCheck{OK: true, Reason: NeighborWithinOne}
	case known == 1:
		return model.NeighborCheck{OK: true, Reason: NeighborSingleFar}
	default:
		return model.NeighborCheck{OK: false, Reason: NeighborBothFar}
	}
}

func (r *Resolver) accepted(ctx context.Context, st *run) State {
	st.rec.Validated = true

	if r.config.Validate && r.oracle != nil {
		r.validateWithOracle(ctx, st)
	}

	if st.rec.Validated && r.config.ExtractReferences && r.bib != nil {
		refs, _ := r.bib.Extract(ctx, st.m, st.rec.FootnoteText, r.window(st.rec.InferredPageIndex, 1))
		st.rec.References = refs
	}
	return stateDone
}

// validateWithOracle asks for an independent check of accepted text
func (r *Resolver) validateWithOracle(ctx context.Context, st *run) {
	var excerpts []oracle.PageExcerpt
	for _, p := range r.windowPages(st.rec.InferredPageIndex) {
		excerpts = append(excerpts, oracle.PageExcerpt{PageIndex: p, Text: r.pages[p]})
	}

	resp, err := oracle.Call[*oracle.ValidateFootnoteResponse](ctx, r.oracle, &oracle.ValidateFootnoteRequest{
		Index:  st.m,
		Text:   st.rec.FootnoteText,
		Window: excerpts,
	})
	if err != nil {
		st.rec.Flags = appendFlag(st.rec.Flags, FlagValidatorUnavailable)
		return
	}

	if !resp.Valid {
		st.rec.Flags = appendFlag(st.rec.Flags, FlagValidatorRejected)
		if r.config.ForceInvalidate {
			st.rec.Validated = false
			st.rec.Flags = appendFlag(st.rec.Flags, FlagForceInvalidated)
		}
		return
	}

	corrected := strings.TrimSpace(resp.CorrectedText)
	if corrected != "" && corrected != st.rec.FootnoteText && r.compatible(st.rec.FootnoteText, corrected) &&
		strings.Contains(extract.Normalize(r.window(st.rec.InferredPageIndex, r.config.WindowRadius)), extract.Normalize(corrected)) {
		st.rec.FootnoteText = corrected
		st.rec.Flags = appendFlag(st.rec.Flags, FlagValidatorCorrected)
	}
}

// window joins the page texts within radius of page
func (r *Resolver) window(page, radius int) string {
	var parts []string
	for p := page - radius; p <= page+radius; p++ {
		if p >= 0 && p < len(r.pages) {
			parts = append(parts, r.pages[p])
		}
	}
	return strings.Join(parts, "\n")
}

func (r *Resolver) rejected(_ context.Context, st *run) State {
	if !st.retried && st.oraclePage >= 0 {
		st.retried = true
		st.center = st.oraclePage
		st.current = nil
		st.rec.Flags = appendFlag(st.rec.Flags, FlagWindowRetry)
		return StateWindowSearch
	}
	st.rec.Validated = false
	return stateDone
}

func appendFlag(flags []string, flag string) []string {
	for _, f := range flags {
		if f == flag {
			return flags
		}
	}
	return append(flags, flag)
}
