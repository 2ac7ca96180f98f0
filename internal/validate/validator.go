package validate

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/sixc/internal/extract"
	"github.com/ppiankov/sixc/internal/model"
	"github.com/ppiankov/sixc/internal/oracle"
	"github.com/ppiankov/sixc/internal/resolve"
)

const (
	repairMaxRetries    = 2
	maxOracleCandidates = 4
	groundingRun        = 6
)

// repairSleepFunc is the sleep function used between retries (injectable for tests)
var repairSleepFunc = time.Sleep

// Validator enforces canonical 1..N footnote numbering on a merged footnote map
type Validator struct {
	pages      model.Pages
	hits       []model.InTextCitationHit
	oracle     oracle.Oracle
	config     model.CanonicalConfig
	maxWorkers int
	logger     *zap.Logger
}

// NewValidator creates a new validator
// hits are every in-text citation known for the document; they decide which
// indices above the canonical maximum are real.
func NewValidator(pages model.Pages, hits []model.InTextCitationHit, o oracle.Oracle, config model.CanonicalConfig, maxWorkers int, logger *zap.Logger) *Validator {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{
		pages:      pages,
		hits:       hits,
		oracle:     o,
		config:     config,
		maxWorkers: maxWorkers,
		logger:     logger,
	}
}

// CanonicalMax returns K+1 for the largest K whose run 1..K is present with at
// least the given density, provided K >= minRun; otherwise 0
func CanonicalMax(indices []int, density float64, minRun int) int {
	present := make(map[int]bool, len(indices))
	for _, idx := range indices {
		if idx > 0 {
			present[idx] = true
		}
	}
	keys := model.SortedKeys(present)
	for i := len(keys) - 1; i >= 0; i-- {
		k := keys[i]
		// i+1 keys are <= k
		if float64(i+1)/float64(k) >= density {
			if k >= minRun {
				return k + 1
			}
			return 0
		}
	}
	return 0
}

// Validate repairs a copy of merged and returns it with the repair log
func (v *Validator) Validate(ctx context.Context, merged map[int]model.MergedFootnote) (map[int]model.MergedFootnote, model.CanonicalRepairLog) {
	out := make(map[int]model.MergedFootnote, len(merged))
	for idx, fn := range merged {
		out[idx] = fn
	}
	log := model.CanonicalRepairLog{
		RepairedIndices: []model.RepairedIndex{},
		DroppedOutliers: []int{},
	}

	log.CanonicalMax = CanonicalMax(model.SortedKeys(out), v.config.Density, v.config.MinRun)
	if log.CanonicalMax > 0 {
		var missing []int
		for idx := 1; idx <= log.CanonicalMax; idx++ {
			if _, ok := out[idx]; !ok {
				missing = append(missing, idx)
			}
		}

		for _, fn := range v.repair(ctx, missing, out) {
			out[fn.Index] = fn
			log.RepairedIndices = append(log.RepairedIndices, model.RepairedIndex{
				Index:     fn.Index,
				Source:    fn.Source,
				PageIndex: fn.PageIndex,
			})
		}
		for _, idx := range missing {
			if _, ok := out[idx]; !ok {
				log.StillMissing = append(log.StillMissing, idx)
			}
		}

		if v.config.DropOutliers {
			log.DroppedOutliers = v.dropOutliers(out, log.CanonicalMax)
		}
	}

	log.StitchedIndices = v.stitch(out)
	return out, log
}

// repair looks up every missing index concurrently; the footnote map is only read
func (v *Validator) repair(ctx context.Context, missing []int, footnotes map[int]model.MergedFootnote) []model.MergedFootnote {
	if len(missing) == 0 {
		return nil
	}

	sets, seen := placement(footnotes, len(v.pages))
	found := make([]*model.MergedFootnote, len(missing))
	var wg sync.WaitGroup

	// Create semaphore to limit concurrent lookups
	semaphore := make(chan struct{}, v.maxWorkers)

	for i, idx := range missing {
		wg.Add(1)
		go func(slot, index int) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				return
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			cands := resolve.InferCandidates(index, sets, seen)
			if fn, ok := v.rescan(index, cands); ok {
				found[slot] = &fn
				return
			}
			if fn, ok := v.repairWithRetry(ctx, index, cands, footnotes); ok {
				found[slot] = &fn
			}
		}(i, idx)
	}

	wg.Wait()

	var out []model.MergedFootnote
	for _, fn := range found {
		if fn != nil {
			out = append(out, *fn)
		}
	}
	return out
}

// rescan looks for the numbered line on candidate pages first, then on every page
func (v *Validator) rescan(index int, cands []model.CandidatePage) (model.MergedFootnote, bool) {
	order := make([]int, 0, len(v.pages))
	tried := make(map[int]bool)
	for _, c := range cands {
		order = append(order, c.PageIndex)
		tried[c.PageIndex] = true
	}
	for p := range v.pages {
		if !tried[p] {
			order = append(order, p)
		}
	}

	for _, p := range order {
		text, ok := extract.FindNumberedLine(v.pages[p], index)
		if ok && strings.TrimSpace(text) != "" {
			return model.MergedFootnote{
				Index:     index,
				Text:      strings.TrimSpace(text),
				PageIndex: p,
				Source:    model.SourceRescan,
			}, true
		}
	}
	return model.MergedFootnote{}, false
}

// repairWithRetry asks the oracle, retrying timeouts with exponential backoff
func (v *Validator) repairWithRetry(ctx context.Context, index int, cands []model.CandidatePage, footnotes map[int]model.MergedFootnote) (model.MergedFootnote, bool) {
	if !v.config.UseOracle || v.oracle == nil || len(cands) == 0 {
		return model.MergedFootnote{}, false
	}
	if len(cands) > maxOracleCandidates {
		cands = cands[:maxOracleCandidates]
	}

	req := &oracle.ResolveFootnoteRequest{
		Index:      index,
		Candidates: cands,
		PrevText:   footnotes[index-1].Text,
		NextText:   footnotes[index+1].Text,
	}
	for _, c := range cands {
		req.Excerpts = append(req.Excerpts, oracle.PageExcerpt{PageIndex: c.PageIndex, Text: v.pages[c.PageIndex]})
	}

	var (
		resp *oracle.ResolveFootnoteResponse
		err  error
	)
	for attempt := 0; attempt < repairMaxRetries; attempt++ {
		resp, err = oracle.Call[*oracle.ResolveFootnoteResponse](ctx, v.oracle, req)
		if err == nil || !errors.Is(err, oracle.ErrTimeout) {
			break
		}
		if attempt < repairMaxRetries-1 {
			repairSleepFunc(time.Duration(1<<uint(attempt)) * time.Second)
		}
	}
	if err != nil {
		v.logger.Warn("canonical oracle repair failed",
			zap.String("kind", string(oracle.KindResolveFootnote)),
			zap.Int("index", index),
			zap.Error(err))
		return model.MergedFootnote{}, false
	}

	text := strings.TrimSpace(resp.FootnoteText)
	if !resp.Found || text == "" || resp.InferredPageIndex < 0 || resp.InferredPageIndex >= len(v.pages) {
		return model.MergedFootnote{}, false
	}
	if !groundedOnPage(text, v.pages[resp.InferredPageIndex]) {
		v.logger.Debug("canonical oracle text not on page",
			zap.Int("index", index),
			zap.Int("page", resp.InferredPageIndex))
		return model.MergedFootnote{}, false
	}

	return model.MergedFootnote{
		Index:     index,
		Text:      text,
		PageIndex: resp.InferredPageIndex,
		Source:    model.SourceOracle,
	}, true
}

// groundedOnPage requires a verbatim token run of the text on the page
func groundedOnPage(text, page string) bool {
	n := min(groundingRun, len(extract.Tokens(text)))
	if n == 0 {
		return false
	}
	return extract.SharesRun(text, page, n)
}

// dropOutliers removes indices above canonicalMax that no in-text marker points at
func (v *Validator) dropOutliers(footnotes map[int]model.MergedFootnote, canonicalMax int) []int {
	cited := make(map[int]bool)
	for _, h := range v.hits {
		if h.Number > 0 {
			cited[h.Number] = true
		}
	}

	dropped := []int{}
	for _, idx := range model.SortedKeys(footnotes) {
		if idx > canonicalMax && !cited[idx] {
			delete(footnotes, idx)
			dropped = append(dropped, idx)
		}
	}
	return dropped
}

// stitch appends the leading lines of the next page to truncated footnotes
func (v *Validator) stitch(footnotes map[int]model.MergedFootnote) []int {
	var stitched []int
	maxLines := v.config.MaxStitchLines
	if maxLines <= 0 {
		return nil
	}
	for _, idx := range model.SortedKeys(footnotes) {
		fn := footnotes[idx]
		next := fn.PageIndex + 1
		if fn.PageIndex < 0 || next >= len(v.pages) || !model.IsTruncated(fn.Text) {
			continue
		}
		lines := extract.LeadingLines(v.pages[next], maxLines)
		if len(lines) == 0 {
			continue
		}
		fn.Text = fn.Text + " " + strings.Join(lines, " ")
		fn.Stitched = true
		footnotes[idx] = fn
		stitched = append(stitched, idx)
	}
	return stitched
}

// placement derives per-page index sets and index -> pages from a footnote map
func placement(footnotes map[int]model.MergedFootnote, pageCount int) ([][]int, map[int][]int) {
	sets := make([][]int, pageCount)
	seen := make(map[int][]int)
	for idx, fn := range footnotes {
		if fn.PageIndex < 0 || fn.PageIndex >= pageCount {
			continue
		}
		sets[fn.PageIndex] = append(sets[fn.PageIndex], idx)
		seen[idx] = append(seen[idx], fn.PageIndex)
	}
	for _, set := range sets {
		sort.Ints(set)
	}
	return sets, seen
}
