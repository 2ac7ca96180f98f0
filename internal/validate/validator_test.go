package validate

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/sixc/internal/model"
	"github.com/ppiankov/sixc/internal/oracle"
)

func init() {
	// Disable retry sleep in all tests for fast execution
	repairSleepFunc = func(d time.Duration) {}
}

func canonicalConfig() model.CanonicalConfig {
	return model.DefaultConfig().Canonical
}

// footnoteMap places indices on a page with generated text
func footnoteMap(page int, indices ...int) map[int]model.MergedFootnote {
	out := make(map[int]model.MergedFootnote)
	for _, idx := range indices {
		out[idx] = model.MergedFootnote{
			Index:     idx,
			Text:      fmt.Sprintf("Source number %d on trade policy.", idx),
			PageIndex: page,
			Source:    model.SourcePageScan,
		}
	}
	return out
}

func union(maps ...map[int]model.MergedFootnote) map[int]model.MergedFootnote {
	out := make(map[int]model.MergedFootnote)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

func TestCanonicalMax(t *testing.T) {
	run := func(n int, skip ...int) []int {
		var out []int
		for i := 1; i <= n; i++ {
			skipped := false
			for _, s := range skip {
				skipped = skipped || s == i
			}
			if !skipped {
				out = append(out, i)
			}
		}
		return out
	}

	tests := []struct {
		name    string
		indices []int
		want    int
	}{
		{name: "contiguous run", indices: run(12), want: 13},
		{name: "one gap within density", indices: run(12, 7), want: 13},
		{name: "too sparse", indices: run(12, 3, 7), want: 0},
		{name: "short run", indices: run(8), want: 0},
		{name: "outliers ignored", indices: append(run(12, 7), 40, 41), want: 13},
		{name: "empty", indices: nil, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CanonicalMax(tt.indices, 0.9, 10)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanonicalMax_NeverBeyondMaxKnownPlusOne(t *testing.T) {
	for n := 1; n <= 40; n++ {
		indices := make([]int, 0, n)
		for i := 1; i <= n; i++ {
			indices = append(indices, i)
		}
		got := CanonicalMax(indices, 0.9, 10)
		assert.LessOrEqual(t, got, n+1)
	}
}

func TestValidator_RescanDropAndStitch(t *testing.T) {
	pages := model.Pages{
		"Body text.\n\n1 a\n2 b\n3 c\n4 d\n5 e\n6 f",
		"More body.\n\n7 see the annual report on imports.\n8 h\n9 i\n10 j\n11 k\n12 Report on trade,",
		"continued in the national archive.\n\nNext chapter body.",
	}
	merged := union(footnoteMap(0, 1, 2, 3, 4, 5, 6), footnoteMap(1, 8, 9, 10, 11, 40, 41))
	merged[12] = model.MergedFootnote{Index: 12, Text: "Report on trade,", PageIndex: 1, Source: model.SourcePageScan}

	hits := []model.InTextCitationHit{{Index: "41", Number: 41, PageIndex: 0}}
	v := NewValidator(pages, hits, nil, canonicalConfig(), 2, nil)

	out, log := v.Validate(context.Background(), merged)

	assert.Equal(t, 13, log.CanonicalMax)
	require.Len(t, log.RepairedIndices, 1)
	assert.Equal(t, model.RepairedIndex{Index: 7, Source: model.SourceRescan, PageIndex: 1}, log.RepairedIndices[0])
	assert.Equal(t, "see the annual report on imports.", out[7].Text)
	assert.Equal(t, []int{13}, log.StillMissing)

	assert.Equal(t, []int{40}, log.DroppedOutliers)
	assert.NotContains(t, out, 40)
	assert.Contains(t, out, 41)

	assert.Equal(t, []int{12}, log.StitchedIndices)
	assert.Equal(t, "Report on trade, continued in the national archive.", out[12].Text)
	assert.True(t, out[12].Stitched)

	// input map is untouched
	assert.Contains(t, merged, 40)
	assert.Equal(t, "Report on trade,", merged[12].Text)
}

func TestValidator_NoCanonicalEnforcement(t *testing.T) {
	merged := footnoteMap(0, 1, 2, 3, 50)
	v := NewValidator(model.Pages{"text"}, nil, nil, canonicalConfig(), 2, nil)

	out, log := v.Validate(context.Background(), merged)

	assert.Equal(t, 0, log.CanonicalMax)
	assert.Empty(t, log.RepairedIndices)
	assert.Empty(t, log.DroppedOutliers)
	assert.Len(t, out, 4)
}

func oracleFixture() (model.Pages, map[int]model.MergedFootnote) {
	pages := model.Pages{
		"1 a\n2 b\n3 c\n4 d\n5 e\n6 f",
		"T Smith report on steel imports 2019.\n8 h\n9 i\n10 j\n11 k\n12 l",
	}
	return pages, union(footnoteMap(0, 1, 2, 3, 4, 5, 6), footnoteMap(1, 8, 9, 10, 11, 12))
}

func TestValidator_OracleRepair(t *testing.T) {
	pages, merged := oracleFixture()

	var requests []*oracle.ResolveFootnoteRequest
	o := oracle.Func(func(ctx context.Context, req oracle.Request) (json.RawMessage, error) {
		r := req.(*oracle.ResolveFootnoteRequest)
		requests = append(requests, r)
		if r.Index != 7 {
			return json.RawMessage(`{"found":false,"inferred_page_index":0,"footnote_text":"","evidence":"","confidence":0}`), nil
		}
		return json.RawMessage(`{"found":true,"inferred_page_index":1,"footnote_text":"Smith report on steel imports 2019.","evidence":"T Smith report","confidence":0.8}`), nil
	})

	config := canonicalConfig()
	v := NewValidator(pages, nil, o, config, 1, nil)
	out, log := v.Validate(context.Background(), merged)

	require.Contains(t, out, 7)
	assert.Equal(t, model.SourceOracle, out[7].Source)
	assert.Equal(t, 1, out[7].PageIndex)
	assert.Equal(t, []int{13}, log.StillMissing)

	require.NotEmpty(t, requests)
	for _, r := range requests {
		if r.Index == 7 {
			assert.Equal(t, "Source number 6 on trade policy.", r.PrevText)
			assert.Equal(t, "Source number 8 on trade policy.", r.NextText)
			assert.LessOrEqual(t, len(r.Candidates), maxOracleCandidates)
			assert.Len(t, r.Excerpts, len(r.Candidates))
		}
	}
}

func TestValidator_OracleTextMustBeOnPage(t *testing.T) {
	pages, merged := oracleFixture()
	o := oracle.Func(func(ctx context.Context, req oracle.Request) (json.RawMessage, error) {
		return json.RawMessage(`{"found":true,"inferred_page_index":1,"footnote_text":"Invented citation of a report nobody wrote.","evidence":"","confidence":0.9}`), nil
	})

	v := NewValidator(pages, nil, o, canonicalConfig(), 1, nil)
	out, log := v.Validate(context.Background(), merged)

	assert.NotContains(t, out, 7)
	assert.Equal(t, []int{7, 13}, log.StillMissing)
}

func TestValidator_OracleDisabled(t *testing.T) {
	pages, merged := oracleFixture()
	var calls int32
	o := oracle.Func(func(ctx context.Context, req oracle.Request) (json.RawMessage, error) {
		atomic.AddInt32(&calls, 1)
		return nil, oracle.ErrUnavailable
	})

	config := canonicalConfig()
	config.UseOracle = false
	v := NewValidator(pages, nil, o, config, 1, nil)
	_, log := v.Validate(context.Background(), merged)

	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
	assert.Equal(t, []int{7, 13}, log.StillMissing)
}

func TestValidator_RetriesTimeouts(t *testing.T) {
	pages, merged := oracleFixture()
	var calls int32
	o := oracle.Func(func(ctx context.Context, req oracle.Request) (json.RawMessage, error) {
		if req.(*oracle.ResolveFootnoteRequest).Index != 7 {
			return nil, oracle.ErrMalformed
		}
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, oracle.ErrTimeout
		}
		return json.RawMessage(`{"found":true,"inferred_page_index":1,"footnote_text":"Smith report on steel imports 2019.","evidence":"","confidence":0.7}`), nil
	})

	v := NewValidator(pages, nil, o, canonicalConfig(), 1, nil)
	out, _ := v.Validate(context.Background(), merged)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Contains(t, out, 7)
}

func TestValidator_StitchNeedsNextPage(t *testing.T) {
	merged := map[int]model.MergedFootnote{
		1: {Index: 1, Text: "See https://example.org/report", PageIndex: 0, Source: model.SourcePageScan},
		2: {Index: 2, Text: "Unplaced text;", PageIndex: -1, Source: model.SourceExternal},
	}
	v := NewValidator(model.Pages{"1 See https://example.org/report"}, nil, nil, canonicalConfig(), 1, nil)

	out, log := v.Validate(context.Background(), merged)

	assert.Empty(t, log.StitchedIndices)
	assert.Equal(t, "See https://example.org/report", out[1].Text)
	assert.Equal(t, "Unplaced text;", out[2].Text)
}
