package validate

import (
	"sort"
	"strings"

	"github.com/ppiankov/sixc/internal/model"
)

// Merge builds the document-wide footnote map from page definitions,
// externally parsed items and resolver recoveries
// The longest text wins; equal lengths go to the higher-priority tier.
func Merge(index *model.PageIndex, external map[int]string, recovered []model.ResolutionRecord) map[int]model.MergedFootnote {
	merged := make(map[int]model.MergedFootnote)

	if index != nil {
		for p, defs := range index.Definitions {
			for _, idx := range model.SortedKeys(defs) {
				offer(merged, model.MergedFootnote{
					Index:     idx,
					Text:      defs[idx].BodyText,
					PageIndex: p,
					Source:    model.SourcePageScan,
				})
			}
		}
	}

	for _, idx := range model.SortedKeys(external) {
		offer(merged, model.MergedFootnote{
			Index:     idx,
			Text:      external[idx],
			PageIndex: -1,
			Source:    model.SourceExternal,
		})
	}

	for _, rec := range recovered {
		if !rec.Found || !rec.Validated {
			continue
		}
		offer(merged, model.MergedFootnote{
			Index:     rec.Index,
			Text:      rec.FootnoteText,
			PageIndex: rec.InferredPageIndex,
			Source:    model.SourceRecovered,
		})
	}

	return merged
}

// offer stores candidate when it beats the current entry for its index
func offer(merged map[int]model.MergedFootnote, candidate model.MergedFootnote) {
	candidate.Text = strings.TrimSpace(candidate.Text)
	if candidate.Index <= 0 || candidate.Text == "" {
		return
	}
	current, ok := merged[candidate.Index]
	if !ok || richer(candidate, current) {
		if ok && candidate.PageIndex < 0 {
			candidate.PageIndex = current.PageIndex
		}
		merged[candidate.Index] = candidate
	}
}

func richer(a, b model.MergedFootnote) bool {
	la, lb := len([]rune(a.Text)), len([]rune(b.Text))
	if la != lb {
		return la > lb
	}
	return a.Source.Priority() > b.Source.Priority()
}

// Texts flattens a footnote map to index -> text
func Texts(footnotes map[int]model.MergedFootnote) map[int]string {
	out := make(map[int]string, len(footnotes))
	for idx, fn := range footnotes {
		out[idx] = fn.Text
	}
	return out
}

// RecoveredItems returns index -> text for every accepted resolution record
func RecoveredItems(records []model.ResolutionRecord) map[int]string {
	out := make(map[int]string)
	for _, rec := range records {
		if rec.Found && rec.Validated && rec.FootnoteText != "" {
			out[rec.Index] = rec.FootnoteText
		}
	}
	return out
}

// CheckSequence reports numbering anomalies
// Gaps come from the merged map; out-of-order and duplicate indices come from
// the page scan, where page placement is known.
func CheckSequence(index *model.PageIndex, merged map[int]model.MergedFootnote) model.SequenceChecks {
	checks := model.SequenceChecks{
		Count:      len(merged),
		Gaps:       []int{},
		OutOfOrder: []int{},
		Duplicates: []int{},
	}

	keys := model.SortedKeys(merged)
	if len(keys) > 0 {
		checks.MaxIndex = keys[len(keys)-1]
	}
	for i := 1; i <= checks.MaxIndex; i++ {
		if _, ok := merged[i]; !ok {
			checks.Gaps = append(checks.Gaps, i)
		}
	}

	if index != nil {
		seen := index.SeenPages()
		maxPage := -1
		for _, idx := range model.SortedKeys(seen) {
			pages := seen[idx]
			sort.Ints(pages)
			if len(pages) > 1 {
				checks.Duplicates = append(checks.Duplicates, idx)
			}
			if pages[0] < maxPage {
				checks.OutOfOrder = append(checks.OutOfOrder, idx)
				continue
			}
			maxPage = pages[0]
		}
	}

	checks.Contiguous = checks.MaxIndex > 0 && len(checks.Gaps) == 0
	return checks
}
