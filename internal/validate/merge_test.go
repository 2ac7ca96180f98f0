package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ppiankov/sixc/internal/model"
)

func definitions(pages ...map[int]string) *model.PageIndex {
	index := &model.PageIndex{}
	for p, defs := range pages {
		page := make(map[int]model.FootnoteDefinition)
		for idx, text := range defs {
			page[idx] = model.FootnoteDefinition{Index: idx, BodyText: text, PageIndex: p}
		}
		index.Definitions = append(index.Definitions, page)
	}
	return index
}

func TestMerge_RichestWins(t *testing.T) {
	index := definitions(
		map[int]string{1: "Smith, Trade.", 2: "Jones, Steel imports in 2019, p. 4."},
		map[int]string{3: "OECD,"},
	)
	external := map[int]string{
		1: "Smith, J. Trade policy review. 2020.",
		2: "Jones, Steel.",
		4: "World Bank data.",
	}
	recovered := []model.ResolutionRecord{
		{Index: 3, Found: true, Validated: true, FootnoteText: "OECD, Economic Outlook 2021.", InferredPageIndex: 1},
		{Index: 5, Found: false, FootnoteText: "ignored"},
	}

	merged := Merge(index, external, recovered)

	assert.Len(t, merged, 4)
	assert.Equal(t, model.SourceExternal, merged[1].Source)
	assert.Equal(t, 0, merged[1].PageIndex, "external text keeps the scanned page")
	assert.Equal(t, model.SourcePageScan, merged[2].Source)
	assert.Equal(t, model.SourceRecovered, merged[3].Source)
	assert.Equal(t, 1, merged[3].PageIndex)
	assert.Equal(t, -1, merged[4].PageIndex)
	assert.NotContains(t, merged, 5)
}

func TestMerge_TieGoesToPriority(t *testing.T) {
	index := definitions(map[int]string{7: "Same length text"})
	recovered := []model.ResolutionRecord{{Index: 7, Found: true, Validated: true, FootnoteText: "Same length TEXT", InferredPageIndex: 0}}

	merged := Merge(index, nil, recovered)
	assert.Equal(t, model.SourceRecovered, merged[7].Source)
	assert.Equal(t, "Same length TEXT", merged[7].Text)
}

func TestMerge_IgnoresEmptyAndInvalid(t *testing.T) {
	merged := Merge(nil, map[int]string{0: "zero", 2: "   "}, nil)
	assert.Empty(t, merged)
}

func TestRecoveredItemsAndTexts(t *testing.T) {
	records := []model.ResolutionRecord{
		{Index: 4, Found: true, Validated: true, FootnoteText: "Recovered."},
		{Index: 5, Found: false},
		{Index: 6, Found: true, FootnoteText: "Found but not proven."},
	}
	assert.Equal(t, map[int]string{4: "Recovered."}, RecoveredItems(records))

	merged := map[int]model.MergedFootnote{4: {Index: 4, Text: "Recovered."}}
	assert.Equal(t, map[int]string{4: "Recovered."}, Texts(merged))
}

func TestCheckSequence(t *testing.T) {
	index := definitions(
		map[int]string{1: "a", 2: "b", 5: "e"},
		map[int]string{3: "c", 5: "e again"},
		map[int]string{4: "d", 7: "g"},
	)
	merged := Merge(index, nil, nil)

	checks := CheckSequence(index, merged)

	assert.Equal(t, 7, checks.MaxIndex)
	assert.Equal(t, 6, checks.Count)
	assert.Equal(t, []int{6}, checks.Gaps)
	assert.Equal(t, []int{5}, checks.Duplicates)
	assert.Equal(t, []int{5}, checks.OutOfOrder, "5 is first defined before 3 and 4")
	assert.False(t, checks.Contiguous)
}

func TestCheckSequence_OutOfOrder(t *testing.T) {
	index := definitions(
		map[int]string{1: "a", 3: "c"},
		map[int]string{2: "b"},
	)
	checks := CheckSequence(index, Merge(index, nil, nil))

	assert.Equal(t, []int{3}, checks.OutOfOrder)
	assert.True(t, checks.Contiguous)
	assert.Empty(t, checks.Gaps)
}
