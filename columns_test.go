package ircbook

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func wordAt(text string, x0, y0, x1, y1 float64) Word {
	return Word{Text: text, Box: Rect{X0: x0, Y0: y0, X1: x1, Y1: y1}, FontSize: 10}
}

// twoColumnBody manufactures a page of body words laid out in two columns
// with a 50pt gutter centered near x=305 on a 612pt-wide page.
func twoColumnBody() []Word {
	var words []Word
	for y := 100.0; y <= 680; y += 20 {
		words = append(words,
			wordAt("The", 60, y, 120, y+10),
			wordAt("prescriptive", 125, y, 280, y+10),
			wordAt("provisions", 330, y, 420, y+10),
			wordAt("apply", 425, y, 550, y+10),
		)
	}
	return words
}

func TestGroupWordsIntoLinesClustersByY(t *testing.T) {
	cfg := DefaultConfig()
	words := []Word{
		wordAt("Beams", 10, 100, 50, 110),
		wordAt("shall", 55, 101, 90, 111),
		wordAt("Columns", 10, 200, 60, 210),
	}
	lines := groupWordsIntoLines(words, 5, cfg)
	require.Len(t, lines, 2)
	require.Equal(t, "Beams shall", lines[0].Text)
	require.Equal(t, "Columns", lines[1].Text)
}

func TestGroupWordsIntoLinesDerivesSpacingFromGaps(t *testing.T) {
	cfg := DefaultConfig()
	words := []Word{
		wordAt("Span", 60, 100, 80, 110),
		wordAt("26'", 110, 100, 130, 110),
	}
	lines := groupWordsIntoLines(words, 5, cfg)
	require.Len(t, lines, 1)
	// 30pt gap at a 5pt median char width reads as six spaces.
	require.Equal(t, "Span      26'", lines[0].Text)
}

func TestDetectColumnSplitFindsGutter(t *testing.T) {
	cfg := DefaultConfig()
	bounds, ok, fail := detectColumnSplit(twoColumnBody(), 612, cfg)
	require.Nil(t, fail)
	require.True(t, ok)
	require.InDelta(t, 305, bounds.SplitX, 2)
	require.InDelta(t, 280, bounds.GutterLeft, 1)
	require.InDelta(t, 330, bounds.GutterRight, 1)
}

func TestDetectColumnSplitNoneForSingleColumn(t *testing.T) {
	cfg := DefaultConfig()
	var words []Word
	for y := 100.0; y <= 680; y += 20 {
		words = append(words, wordAt("Unbroken", 60, y, 540, y+10))
	}
	_, ok, fail := detectColumnSplit(words, 612, cfg)
	require.Nil(t, fail)
	require.False(t, ok)
}

func TestDetectColumnSplitCompetingGapsIsFatal(t *testing.T) {
	cfg := DefaultConfig()
	var words []Word
	for y := 100.0; y <= 300; y += 20 {
		words = append(words,
			wordAt("one", 40, y, 140, y+10),
			wordAt("two", 190, y, 290, y+10),
			wordAt("three", 340, y, 440, y+10),
		)
	}
	_, _, fail := detectColumnSplit(words, 612, cfg)
	require.NotNil(t, fail)
	require.Equal(t, RuleColumnSplitCompeting, fail.RuleName)
}

func TestDetectColumnSplitOffcenterIsFatal(t *testing.T) {
	cfg := DefaultConfig()
	var words []Word
	for y := 100.0; y <= 300; y += 20 {
		words = append(words,
			wordAt("near", 20, y, 100, y+10),
			wordAt("left", 120, y, 200, y+10),
		)
	}
	_, _, fail := detectColumnSplit(words, 612, cfg)
	require.NotNil(t, fail)
	require.Equal(t, RuleColumnSplitOffcenter, fail.RuleName)
}

func TestBuildOrderedLinesAssignsColumnsAndOrder(t *testing.T) {
	cfg := DefaultConfig()
	ordered, err := buildOrderedLines(twoColumnBody(), 612, 792, 1, 5, cfg)
	require.NoError(t, err)
	require.NotEmpty(t, ordered)

	var sawRight bool
	for _, ln := range ordered {
		switch ln.Column {
		case ColumnLeft:
			require.False(t, sawRight, "left-column line after the right column began")
			require.Less(t, (ln.X0+ln.X1)/2, 305.0)
		case ColumnRight:
			sawRight = true
			require.Greater(t, (ln.X0+ln.X1)/2, 305.0)
		default:
			t.Fatalf("unexpected column class %q for %q", ln.Column, ln.Text)
		}
	}
	require.True(t, sawRight)
}

func TestBuildOrderedLinesAcceptsGutterIndexLetter(t *testing.T) {
	cfg := DefaultConfig()
	words := append(twoColumnBody(), Word{
		Text: "A", Box: Rect{X0: 301, Y0: 310, X1: 309, Y1: 322}, FontSize: 14,
	})
	ordered, err := buildOrderedLines(words, 612, 792, 1, 5, cfg)
	require.NoError(t, err)

	var found *OrderedLine
	for i := range ordered {
		if ordered[i].Text == "A" {
			found = &ordered[i]
		}
	}
	require.NotNil(t, found, "index letter line was lost")
	require.Equal(t, ColumnSpanning, found.Column)
}

func TestBuildOrderedLinesAmbiguousGutterLineIsFatal(t *testing.T) {
	cfg := DefaultConfig()
	// Straddles the split with its center on it (so it is not a cross),
	// but the assembled gutter line matches no accepted spanning shape.
	words := append(twoColumnBody(),
		wordAt("Exceptions", 285, 400, 325, 410),
	)
	_, err := buildOrderedLines(words, 612, 792, 7, 5, cfg)
	require.Error(t, err)
	var pe *PipelineError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, RuleGutterLineAmbiguous, pe.RuleName)
	require.Equal(t, 7, pe.Page)
}

func TestBuildOrderedLinesWordAcrossSplitIsFatal(t *testing.T) {
	cfg := DefaultConfig()
	// Sits on an existing body row so its line is not centered-structural,
	// straddles the split by more than the gutter tolerance, and is not a
	// single uppercase token: an unambiguous cross.
	words := append(twoColumnBody(),
		wordAt("of", 302, 400, 313, 410),
	)
	_, err := buildOrderedLines(words, 612, 792, 3, 5, cfg)
	require.Error(t, err)
	var pe *PipelineError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, RuleColumnSplitCross, pe.RuleName)
}

func TestIsCenteredRequiresWholeBBoxInsideBand(t *testing.T) {
	require.True(t, isCentered(OrderedLine{X0: 260, X1: 350}, 612))
	require.False(t, isCentered(OrderedLine{X0: 200, X1: 420}, 612))
}

func TestExtractTopHeadersPeelsContiguousCenteredRun(t *testing.T) {
	lines := []OrderedLine{
		{Text: "CHAPTER 3", X0: 270, X1: 340, Top: 90, Bottom: 100},
		{Text: "BUILDING PLANNING", X0: 250, X1: 360, Top: 102, Bottom: 112},
		{Text: "R301.1 Application.", X0: 60, X1: 200, Top: 130, Bottom: 140},
	}
	headers, rest := extractTopHeaders(lines, 612)
	require.Len(t, headers, 2)
	require.Len(t, rest, 1)
}
