package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/sixc/internal/model"
)

func TestIsHeading(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"1. Introduction", true},
		{"2.3 Trade Policy", true},
		{"CHAPTER ONE", true},
		{"Chapter 4: Results", true},
		{"## Background", true},
		{"EXECUTIVE SUMMARY", true},
		{"The ministry said the tariff would rise.", false},
		{"A short line,", false},
		{"EU", false},
		{"Table 2 shows the rise", false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, IsHeading(tt.line))
		})
	}
}

func TestSplitSections(t *testing.T) {
	pages := model.Pages{
		"Preface line one.\n1. Introduction\nThe ministry announced a plan.\n1 Footnote text.",
		"The plan continued.\n2. Findings\nResults were mixed.",
	}
	footnoteLines := []map[int]bool{{3: true}, {}}

	sections := SplitSections(pages, footnoteLines, 0)

	require.Len(t, sections, 3)
	assert.Equal(t, untitledSection, sections[0].Title)
	assert.Equal(t, "1. Introduction", sections[1].Title)
	assert.Equal(t, 0, sections[1].StartPage)
	assert.Equal(t, 1, sections[1].EndPage)
	assert.Equal(t, "[[page 1]]\nThe ministry announced a plan.\n\n[[page 2]]\nThe plan continued.", sections[1].Text)
	assert.NotContains(t, sections[1].Text, "Footnote text")
	assert.Equal(t, "2. Findings", sections[2].Title)
	assert.Equal(t, 1, sections[2].StartPage)
}

func TestSplitSections_SplitsLongSections(t *testing.T) {
	line := strings.Repeat("word ", 20)
	pages := model.Pages{line + "\n" + line, line}

	sections := SplitSections(pages, nil, 150)

	require.Greater(t, len(sections), 1)
	assert.Equal(t, untitledSection, sections[0].Title)
	assert.Contains(t, sections[1].Title, "(part 2)")
	for _, s := range sections {
		assert.True(t, strings.HasPrefix(s.Text, "[[page "), s.Text)
	}
	assert.Equal(t, 1, sections[len(sections)-1].EndPage)
}

func TestPageOfQuote(t *testing.T) {
	text := "[[page 3]]\nalpha beta\n[[page 4]]\ngamma delta epsilon"
	assert.Equal(t, 3, PageOfQuote(text, "gamma  delta"))
	assert.Equal(t, 2, PageOfQuote(text, "alpha"))
	assert.Equal(t, -1, PageOfQuote(text, "zeta"))
	assert.Equal(t, -1, PageOfQuote(text, ""))
}

func TestStripPageMarkers(t *testing.T) {
	assert.Equal(t, "alpha beta gamma", StripPageMarkers("[[page 1]]\nalpha beta\n[[page 2]]\ngamma"))
}
