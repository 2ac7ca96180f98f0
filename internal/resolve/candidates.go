// Package resolve locates the definitions of footnotes that are cited in the
// body text but were not found by the page scanner.
package resolve

import (
	"sort"

	"github.com/ppiankov/sixc/internal/model"
)

const (
	ReasonExact        = "exact_index_on_page"
	ReasonInRange      = "in_range_of_page_indices"
	ReasonEdgeBefore   = "edge_before_page_min"
	ReasonEdgeAfter    = "edge_after_page_max"
	ReasonEdgePrevPage = "edge_gap_previous_page"
	ReasonEdgeNextPage = "edge_gap_next_page"
	ReasonNeighbor     = "neighbor_index_on_page"
	ReasonNeighborNear = "neighbor_index_adjacent_page"
)

const (
	scoreExact        = 1.0
	scoreInRangeBase  = 0.82
	scoreInRangeSpan  = 0.2
	scoreEdgeOnPage   = 0.65
	scoreEdgeAdjacent = 0.72
	scoreNeighborOn   = 0.86
	scoreNeighborNear = 0.67
	neighborDecay     = 0.12
	neighborDistance  = 2
)

// InferCandidates ranks the pages most likely to hold the definition of missing index m
// indexSets holds the sorted known indices of every page; seen maps an index to its pages.
// The result is sorted by score descending, then page ascending.
func InferCandidates(m int, indexSets [][]int, seen map[int][]int) []model.CandidatePage {
	table := make(map[int]model.CandidatePage)
	offer := func(page int, score float64, reason string) {
		if page < 0 || page >= len(indexSets) {
			return
		}
		if cur, ok := table[page]; ok && cur.Score >= score {
			return
		}
		table[page] = model.CandidatePage{PageIndex: page, Score: model.Clamp01(score), Reason: reason}
	}

	for p, set := range indexSets {
		if len(set) == 0 {
			continue
		}
		lo, hi := set[0], set[len(set)-1]

		if contains(set, m) {
			offer(p, scoreExact, ReasonExact)
			continue
		}
		if lo <= m && m <= hi {
			width := float64(hi - lo)
			center := float64(lo+hi) / 2
			dist := float64(m) - center
			if dist < 0 {
				dist = -dist
			}
			offer(p, scoreInRangeBase-(dist/width)*scoreInRangeSpan, ReasonInRange)
		}
		if m == lo-1 {
			offer(p, scoreEdgeOnPage, ReasonEdgeBefore)
			offer(p-1, scoreEdgeAdjacent, ReasonEdgePrevPage)
		}
		if m == hi+1 {
			offer(p, scoreEdgeOnPage, ReasonEdgeAfter)
			offer(p+1, scoreEdgeAdjacent, ReasonEdgeNextPage)
		}
	}

	for d := 1; d <= neighborDistance; d++ {
		decay := float64(d-1) * neighborDecay
		for _, idx := range []int{m - d, m + d} {
			for _, p := range seen[idx] {
				offer(p, scoreNeighborOn-decay, ReasonNeighbor)
				offer(p-1, scoreNeighborNear-decay, ReasonNeighborNear)
				offer(p+1, scoreNeighborNear-decay, ReasonNeighborNear)
			}
		}
	}

	out := make([]model.CandidatePage, 0, len(table))
	for _, c := range table {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].PageIndex < out[j].PageIndex
	})
	return out
}

func contains(sorted []int, v int) bool {
	i := sort.SearchInts(sorted, v)
	return i < len(sorted) && sorted[i] == v
}
