package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/sixc/internal/model"
)

func TestBuildPageIndex_SuperscriptMarkerAndDefinition(t *testing.T) {
	pages := model.Pages{
		"Text with marker ¹.",
		"1 Smith, J. (2020). A Study. https://x.test",
	}

	pi := BuildPageIndex(pages, DefaultIndexOptions())

	require.Len(t, pi.Definitions, 2)
	assert.Empty(t, pi.Definitions[0])
	def, ok := pi.Definitions[1][1]
	require.True(t, ok)
	assert.Equal(t, "Smith, J. (2020). A Study. https://x.test", def.BodyText)
	assert.Equal(t, 1, def.PageIndex)

	require.Len(t, pi.Hits, 1)
	hit := pi.Hits[0]
	assert.Equal(t, "1", hit.Index)
	assert.Equal(t, 1, hit.Number)
	assert.Equal(t, 0, hit.PageIndex)
	assert.Equal(t, model.StyleFootnote, hit.Style)
	assert.Equal(t, "marker", hit.AnchorText)
}

func TestBuildPageIndex_Idempotent(t *testing.T) {
	pages := model.Pages{
		"Body text cites [1] and later ^{2} here.\n\n1. First note, Oxford 2019.\n2. Second note.",
		"More text (Smith, 2020) and [iv].\n3 Third note https://example.org/a",
	}

	a := BuildPageIndex(pages, DefaultIndexOptions())
	b := BuildPageIndex(pages, DefaultIndexOptions())
	assert.Equal(t, a, b)
}

func TestBuildPageIndex_MergesContinuations(t *testing.T) {
	page := "Body paragraph.\n\n4 Ministry of Finance, Annual Report,\ncontinued on the next line.\n5 Second note."

	pi := BuildPageIndex(model.Pages{page}, DefaultIndexOptions())

	defs := pi.Definitions[0]
	require.Contains(t, defs, 4)
	require.Contains(t, defs, 5)
	assert.Equal(t, "Ministry of Finance, Annual Report, continued on the next line.", defs[4].BodyText)
	assert.True(t, pi.FootnoteLines[0][2])
	assert.True(t, pi.FootnoteLines[0][3])
	assert.False(t, pi.FootnoteLines[0][0])
}

func TestBuildPageIndex_RejectsNoise(t *testing.T) {
	tests := []struct {
		name string
		page string
		want []int
	}{
		{"lower case start", "1 First note.\n2 of the committee met.", []int{1}},
		{"of the fragment", "1 First note.\n2 Of the members present", []int{1}},
		{"part of fragment", "1 First note.\n2 Part of the report", []int{1}},
		{"jump too large", "1 First note.\n90 Ninety.", []int{1}},
		{"not increasing", "3 Third.\n2 Second.", []int{3}},
		{"url artifact", "1 See https://example.org/reports/\n2 Annual-Report.pdf", []int{1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pi := BuildPageIndex(model.Pages{tt.page}, DefaultIndexOptions())
			assert.Equal(t, tt.want, model.SortedKeys(pi.Definitions[0]))
		})
	}
}

func TestBuildPageIndex_JumpMeasuredAcrossPages(t *testing.T) {
	pages := model.Pages{
		"3 Note three.",
		"20 Note twenty.",
		"4 Note four.",
	}

	pi := BuildPageIndex(pages, DefaultIndexOptions())
	assert.Equal(t, [][]int{{3}, {20}, {4}}, pi.IndexSets())

	strict := BuildPageIndex(pages, IndexOptions{MaxIndexJump: 5})
	assert.Equal(t, [][]int{{3}, {}, {4}}, strict.IndexSets())
}

func TestBuildPageIndex_ExcerptStartingMidSequence(t *testing.T) {
	pages := model.Pages{
		"Body cites the survey ⁴⁰ and the census ⁴¹.\n40 Smith, J. (2020). Survey.\n41 Jones, K. (2019). Census.",
		"Closing remark ⁴².\n42 Brown, L. (2021). Audit.\n90 Ninety.",
	}

	pi := BuildPageIndex(pages, DefaultIndexOptions())
	assert.Equal(t, [][]int{{40, 41}, {42}}, pi.IndexSets())
}

func TestBuildPageIndex_EmptyPages(t *testing.T) {
	pi := BuildPageIndex(model.Pages{"", "no markers at all"}, DefaultIndexOptions())
	assert.Len(t, pi.Definitions, 2)
	assert.Empty(t, pi.Definitions[0])
	assert.Empty(t, pi.Definitions[1])
	assert.Empty(t, pi.Hits)
}

func TestFindNumberedLine(t *testing.T) {
	page := "Body.\n7 see the 2019 review,\ncontinued here\n8 Next."

	text, ok := FindNumberedLine(page, 7)
	require.True(t, ok)
	assert.Equal(t, "see the 2019 review, continued here", text)

	_, ok = FindNumberedLine(page, 9)
	assert.False(t, ok)
}

func TestLeadingLines(t *testing.T) {
	page := "\ncontinued text from before\nand more\n12 New note\n"
	assert.Equal(t, []string{"continued text from before", "and more"}, LeadingLines(page, 6))
	assert.Equal(t, []string{"continued text from before"}, LeadingLines(page, 1))
	assert.Empty(t, LeadingLines("1 Starts with a note", 6))
}
