package ircbook

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSectionIDDepth(t *testing.T) {
	require.Equal(t, 1, SectionIDDepth("R301"))
	require.Equal(t, 4, SectionIDDepth("R301.2.1.3"))
	require.Equal(t, 1, SectionIDDepth("APPENDIX A"))
}

func TestParseTrueSectionHeadingProseTitle(t *testing.T) {
	m, ok := parseTrueSectionHeading(OrderedLine{Text: "R301.1 Application."})
	require.True(t, ok)
	require.Equal(t, "R301.1", m.ID)
	require.Equal(t, "Application.", m.Title)
}

func TestParseTrueSectionHeadingSectionKeyword(t *testing.T) {
	m, ok := parseTrueSectionHeading(OrderedLine{Text: "SECTION R301 DESIGN CRITERIA"})
	require.True(t, ok)
	require.Equal(t, "R301", m.ID)
	require.Equal(t, "DESIGN CRITERIA", m.Title)
}

func TestParseTrueSectionHeadingAppendix(t *testing.T) {
	m, ok := parseTrueSectionHeading(OrderedLine{Text: "APPENDIX AF Radon Control Methods"})
	require.True(t, ok)
	require.Equal(t, "APPENDIX AF", m.ID)
	require.Equal(t, "Radon Control Methods", m.Title)
}

func TestParseTrueSectionHeadingRejectsDotLeaders(t *testing.T) {
	_, ok := parseTrueSectionHeading(OrderedLine{Text: "R301 General ............. 45"})
	require.False(t, ok)
}

func TestDetectSectionStartOneLineHeading(t *testing.T) {
	cfg := DefaultConfig()
	lines := []OrderedLine{
		{Text: "R301.1 Application.", X0: 60, Top: 100, Bottom: 110, FontSize: 10, IsBold: true, Column: ColumnLeft},
		{Text: "Buildings and structures shall comply with this code.", X0: 60, Top: 112, Bottom: 122, FontSize: 10, Column: ColumnLeft},
	}
	m, consumed, ok := DetectSectionStart(lines, 0, 10, 60, 5, cfg)
	require.True(t, ok)
	require.Equal(t, 1, consumed)
	require.Equal(t, "R301.1", m.ID)
}

func TestDetectSectionStartMarkerThenTitle(t *testing.T) {
	cfg := DefaultConfig()
	lines := []OrderedLine{
		{Text: "SECTION R301", X0: 60, Top: 100, Bottom: 110, FontSize: 10, IsBold: true, Column: ColumnLeft},
		{Text: "Design Criteria", X0: 60, Top: 112, Bottom: 122, FontSize: 10, IsBold: true, Column: ColumnLeft},
	}
	m, consumed, ok := DetectSectionStart(lines, 0, 10, 60, 5, cfg)
	require.True(t, ok)
	require.Equal(t, 2, consumed)
	require.Equal(t, "R301", m.ID)
	require.Equal(t, "Design Criteria", m.Title)
}

func TestDetectSectionStartRequiresHeaderStyle(t *testing.T) {
	cfg := DefaultConfig()
	lines := []OrderedLine{
		{Text: "R301.1 Application.", X0: 60, Top: 100, Bottom: 110, FontSize: 10, Column: ColumnLeft},
	}
	_, _, ok := DetectSectionStart(lines, 0, 10, 60, 5, cfg)
	require.False(t, ok)
}

func TestDetectSectionStartRequiresHeaderPosition(t *testing.T) {
	cfg := DefaultConfig()
	lines := []OrderedLine{
		{Text: "R301.1 Application.", X0: 120, Top: 100, Bottom: 110, FontSize: 10, IsBold: true, Column: ColumnLeft},
	}
	_, _, ok := DetectSectionStart(lines, 0, 10, 60, 5, cfg)
	require.False(t, ok)
}

func TestDetectSectionStartRejectsTOCEntryPair(t *testing.T) {
	cfg := DefaultConfig()
	lines := []OrderedLine{
		{Text: "General Requirements", X0: 60, Top: 100, Bottom: 110, FontSize: 10, IsBold: true, Column: ColumnLeft},
		{Text: "R301 Design Criteria ............. 45", X0: 60, Top: 112, Bottom: 122, FontSize: 10, Column: ColumnLeft},
	}
	_, _, ok := DetectSectionStart(lines, 0, 10, 60, 5, cfg)
	require.False(t, ok)
}

func TestIsTOCPage(t *testing.T) {
	require.True(t, IsTOCPage([]OrderedLine{{Text: "2021 IRC   TABLE  OF  CONTENTS"}}))
	require.False(t, IsTOCPage([]OrderedLine{{Text: "CHAPTER 3 BUILDING PLANNING"}}))
}

func TestSectionStackFlushesDeeperOpenEntriesOnSiblingHeading(t *testing.T) {
	stack := NewSectionStack()

	_, err := stack.Open(SectionHeadingMatch{ID: "R301", Title: "Design Criteria"}, 1)
	require.NoError(t, err)
	_, err = stack.Open(SectionHeadingMatch{ID: "R301.1", Title: "Application."}, 1)
	require.NoError(t, err)

	flushed, err := stack.Open(SectionHeadingMatch{ID: "R301.2", Title: "Climatic design criteria."}, 2)
	require.NoError(t, err)
	require.Len(t, flushed, 1)
	require.Equal(t, "R301.1", flushed[0].ID)

	top, ok := stack.Top()
	require.True(t, ok)
	require.Equal(t, "R301.2", top.ID)
}

func TestSectionStackDepthsStrictlyIncrease(t *testing.T) {
	stack := NewSectionStack()
	_, err := stack.Open(SectionHeadingMatch{ID: "R301", Title: "Design Criteria"}, 1)
	require.NoError(t, err)
	_, err = stack.Open(SectionHeadingMatch{ID: "R301.2.1", Title: "Protection of openings."}, 1)
	require.NoError(t, err)

	// A sibling at depth 1 pops everything at depth >= 1.
	flushed, err := stack.Open(SectionHeadingMatch{ID: "R302", Title: "Fire-resistant construction."}, 2)
	require.NoError(t, err)
	require.Len(t, flushed, 2)
	require.Equal(t, "R301.2.1", flushed[0].ID)
	require.Equal(t, "R301", flushed[1].ID)
}

func TestSectionStackRejectsDuplicateID(t *testing.T) {
	stack := NewSectionStack()
	_, err := stack.Open(SectionHeadingMatch{ID: "R301.1", Title: "Application."}, 1)
	require.NoError(t, err)
	stack.FlushAll()

	_, err = stack.Open(SectionHeadingMatch{ID: "R301.1", Title: "Application."}, 9)
	require.Error(t, err)
	var pe *PipelineError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, RuleSectionDuplicate, pe.RuleName)
}

func TestSectionStackRejectsRepeatedOpenHeading(t *testing.T) {
	stack := NewSectionStack()
	_, err := stack.Open(SectionHeadingMatch{ID: "R301.1", Title: "Application."}, 1)
	require.NoError(t, err)

	_, err = stack.Open(SectionHeadingMatch{ID: "R301.1", Title: "Application."}, 1)
	require.Error(t, err)
	var pe *PipelineError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, RuleSectionAppendViolation, pe.RuleName)
}

func TestSectionStackPopTop(t *testing.T) {
	stack := NewSectionStack()
	_, err := stack.Open(SectionHeadingMatch{ID: "R301", Title: "Design Criteria"}, 1)
	require.NoError(t, err)

	popped, ok := stack.PopTop()
	require.True(t, ok)
	require.Equal(t, "R301", popped.ID)

	_, ok = stack.PopTop()
	require.False(t, ok)
}

func TestSectionStackAppendGoesToTopEntry(t *testing.T) {
	stack := NewSectionStack()
	_, err := stack.Open(SectionHeadingMatch{ID: "R301", Title: "Design Criteria"}, 1)
	require.NoError(t, err)
	stack.Append("Buildings shall comply.", 2)

	top, _ := stack.Top()
	require.Equal(t, []string{"R301 Design Criteria", "Buildings shall comply."}, top.Lines)
	require.Equal(t, 2, top.EndPage)
}

func TestMatchesChapterLine(t *testing.T) {
	name, ok := matchesChapterLine("CHAPTER 3 BUILDING PLANNING")
	require.True(t, ok)
	require.Equal(t, "BUILDING PLANNING", name)

	_, ok = matchesChapterLine("R301.1 Application.")
	require.False(t, ok)
}
