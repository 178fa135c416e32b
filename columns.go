package ircbook

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// groupWordsIntoLines sorts words by (top, x0) and walks them against a
// running line anchor: a word opens a new line when its top moves more
// than cfg.LineYTolerance from the current line's anchor top. Grounded on
// the teacher's groupWordsIntoLines anchor-walk technique, with the sort
// key fixed to (top, x0) so ordering is total and deterministic.
// charWidth is the page's median character width, used to derive
// inter-word spacing; pass 0 to join with single spaces.
func groupWordsIntoLines(words []Word, charWidth float64, cfg Config) []OrderedLine {
	if len(words) == 0 {
		return nil
	}
	sorted := make([]Word, len(words))
	copy(sorted, words)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Box.Y0 != sorted[j].Box.Y0 {
			return sorted[i].Box.Y0 < sorted[j].Box.Y0
		}
		return sorted[i].Box.X0 < sorted[j].Box.X0
	})

	var lines []OrderedLine
	var bucket []Word
	var bucketY float64

	flush := func() {
		if len(bucket) == 0 {
			return
		}
		sort.Slice(bucket, func(i, j int) bool { return bucket[i].Box.X0 < bucket[j].Box.X0 })
		lines = append(lines, lineFromWords(bucket, charWidth))
		bucket = nil
	}

	for _, w := range sorted {
		top := w.Box.Y0
		if len(bucket) == 0 {
			bucketY = top
		} else if abs(top-bucketY) > cfg.LineYTolerance {
			flush()
			bucketY = top
		}
		bucket = append(bucket, w)
	}
	flush()

	return lines
}

// lineFromWords joins a line's words left-to-right with geometry-derived
// spacing: when the gap to the previous word exceeds half the median
// character width, round(gap / charWidth) spaces are emitted (at least
// one), so intentional column-ish whitespace inside a line survives into
// the text.
func lineFromWords(words []Word, charWidth float64) OrderedLine {
	var text strings.Builder
	line := OrderedLine{Words: words}
	line.X0, line.Top = 1e18, 1e18
	var boldCount int
	var sizeSum float64
	for i, w := range words {
		if i > 0 {
			spaces := 1
			if charWidth > 0 {
				gap := w.Box.X0 - words[i-1].Box.X1
				if gap > 0.5*charWidth {
					if n := int(math.Round(gap / charWidth)); n > 1 {
						spaces = n
					}
				}
			}
			text.WriteString(strings.Repeat(" ", spaces))
		}
		text.WriteString(w.Text)
		if w.Box.X0 < line.X0 {
			line.X0 = w.Box.X0
		}
		if w.Box.X1 > line.X1 {
			line.X1 = w.Box.X1
		}
		if w.Box.Y0 < line.Top {
			line.Top = w.Box.Y0
		}
		if w.Box.Y1 > line.Bottom {
			line.Bottom = w.Box.Y1
		}
		sizeSum += w.FontSize
		if w.IsBold {
			boldCount++
		}
	}
	line.Text = text.String()
	line.FontSize = sizeSum / float64(len(words))
	line.IsBold = boldCount*2 >= len(words)
	return line
}

// wordSpan is a word's horizontal extent, the unit detectColumnSplit sweeps.
type wordSpan struct{ x0, x1 float64 }

// columnBounds captures the detected two-column geometry: the split point
// and the gutter band's edges.
type columnBounds struct {
	SplitX      float64
	GutterLeft  float64
	GutterRight float64
}

// detectColumnSplit finds the page's two-column gutter as the midpoint of
// the single largest gap in the running right-edge (max_x1) sweep of the
// page's body words, sorted by x0. Words straddling the page's own
// vertical centerline within cfg.GutterTolerance are excluded from the
// sweep, since they cannot inform where the gutter sits. Grounded on
// §4.3.5's column-split algorithm.
func detectColumnSplit(words []Word, pageWidth float64, cfg Config) (bounds columnBounds, ok bool, fail *PipelineError) {
	center := pageWidth / 2

	var spans []wordSpan
	for _, w := range words {
		// A word straddling the page's own centerline (within the gutter
		// tolerance) cannot inform where the gutter sits.
		if w.Box.X0 <= center+cfg.GutterTolerance && w.Box.X1 >= center-cfg.GutterTolerance {
			continue
		}
		spans = append(spans, wordSpan{w.Box.X0, w.Box.X1})
	}
	if len(spans) == 0 {
		return columnBounds{}, false, nil
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].x0 < spans[j].x0 })

	type gap struct{ start, end float64 }
	var gaps []gap
	maxX1 := spans[0].x1
	for i := 1; i < len(spans); i++ {
		if spans[i].x0 > maxX1 {
			gaps = append(gaps, gap{maxX1, spans[i].x0})
		}
		if spans[i].x1 > maxX1 {
			maxX1 = spans[i].x1
		}
	}
	if len(gaps) == 0 {
		return columnBounds{}, false, nil
	}

	widest := func(g gap) float64 { return g.end - g.start }
	sort.Slice(gaps, func(i, j int) bool { return widest(gaps[i]) > widest(gaps[j]) })

	if widest(gaps[0]) < cfg.MinGutterWidth {
		return columnBounds{}, false, nil
	}
	if len(gaps) > 1 && abs(widest(gaps[0])-widest(gaps[1])) < 1.0 {
		return columnBounds{}, false, NewPipelineError(RuleColumnSplitCompeting, 0,
			"two equal-width gutter candidates; cannot disambiguate the true gutter", nil)
	}

	bounds = columnBounds{
		SplitX:      (gaps[0].start + gaps[0].end) / 2,
		GutterLeft:  gaps[0].start,
		GutterRight: gaps[0].end,
	}
	if abs(bounds.SplitX-center) > 0.15*pageWidth {
		var leftEdges, rightEdges []float64
		for _, s := range spans {
			mid := (s.x0 + s.x1) / 2
			if mid < center {
				leftEdges = append(leftEdges, s.x1)
			} else {
				rightEdges = append(rightEdges, s.x0)
			}
		}
		if len(leftEdges) == 0 || len(rightEdges) == 0 {
			return columnBounds{}, false, NewPipelineError(RuleColumnSplitOffcenter, 0,
				"gutter clustering found no words on one side of the page center", nil)
		}
		gl, gr := percentile(leftEdges, 95), percentile(rightEdges, 5)
		recomputed := (gl + gr) / 2
		if abs(recomputed-center) > 0.15*pageWidth {
			return columnBounds{}, false, NewPipelineError(RuleColumnSplitOffcenter, 0,
				"recomputed gutter still deviates more than 15% of page width from center", nil)
		}
		bounds = columnBounds{SplitX: recomputed, GutterLeft: gl, GutterRight: gr}
	}

	return bounds, true, nil
}

var (
	indexLetterRE = regexp.MustCompile(`^[A-Z]$`)
	indexDigitRE  = regexp.MustCompile(`^[0-9]+$`)
	tocDotLeaders = regexp.MustCompile(`\.{3,}\s*\d+\s*$`)
	allUpperRE    = regexp.MustCompile(`^[A-Z0-9 ,.\-/&']+$`)
)

// isCenterSpanningToken recognizes the narrow class of spanning lines that
// are structural rather than prose: a bare index letter or digit group, or
// an isolated symbol, that happens to sit centered across the gutter.
// Grounded on is_index_letter_line / is_index_digit_line / is_spanning_symbol_line.
func isCenterSpanningToken(text string) bool {
	t := strings.TrimSpace(text)
	if indexLetterRE.MatchString(t) || indexDigitRE.MatchString(t) {
		return true
	}
	if len(t) <= 2 && t != "" && !hasAlnum(t) {
		return true
	}
	return false
}

func hasAlnum(s string) bool {
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return true
		}
	}
	return false
}

// isTOCReferenceLine recognizes a line ending in dot leaders followed by a
// page number, the hallmark of a table-of-contents entry. Grounded on
// is_toc_reference_line / has_dot_leaders.
func isTOCReferenceLine(text string) bool {
	return tocDotLeaders.MatchString(text)
}

// isCentered reports whether a line's bbox sits horizontally inside the
// page's middle 20% band (center ± 10% of page width): the single
// "centered" definition shared by top headers, structural lines, and index
// letter classification.
func isCentered(line OrderedLine, pageWidth float64) bool {
	return line.X0 >= pageWidth*0.4 && line.X1 <= pageWidth*0.6
}

// looksLikeSectionOrTableLabel reports whether a centered line is actually
// a section heading or table caption rather than structural front matter,
// so it is not mistaken for centered-structural content that gets dropped.
func looksLikeSectionOrTableLabel(text string) bool {
	return sectionHeaderRE.MatchString(text) || sectionTextRE.MatchString(text) ||
		tableLabelRE.MatchString(text) || appendixRE.MatchString(text)
}

// isSpanningNote reports whether a line is wide enough and small enough to
// be a spanning footnote/reference note per §4.3.4.
func isSpanningNote(line OrderedLine, bodyMedianSize, pageWidth float64) bool {
	return line.X1-line.X0 >= 0.70*pageWidth && line.FontSize <= bodyMedianSize-1
}

// isSpanningHeading reports whether a centered line is an all-uppercase
// spanning heading of at least 4 letters.
func isSpanningHeading(line OrderedLine, pageWidth float64) bool {
	t := strings.TrimSpace(line.Text)
	if !isCentered(line, pageWidth) || !allUpperRE.MatchString(t) {
		return false
	}
	var letters int
	for _, r := range t {
		if r >= 'A' && r <= 'Z' {
			letters++
		}
	}
	return letters >= 4
}

// extractTopHeaders peels the contiguous run of centered lines starting
// from the top of the page (lines must already be sorted by Top), breaking
// at the first non-centered line or a vertical gap exceeding 12pt. Grounded
// on §4.3.4's "top headers" spanning class.
func extractTopHeaders(lines []OrderedLine, pageWidth float64) (headers, rest []OrderedLine) {
	i := 0
	for i < len(lines) {
		if !isCentered(lines[i], pageWidth) {
			break
		}
		if i > 0 && lines[i].Top-lines[i-1].Bottom > 12 {
			break
		}
		i++
	}
	return lines[:i], lines[i:]
}

// gutterLineAccepted reports whether a gutter-straddling line matches one
// of §4.3.7's accepted spanning-reference shapes. Any straddling line that
// matches none of these fails GUTTER_LINE_AMBIGUOUS.
func gutterLineAccepted(line OrderedLine, bodyMedianSize, pageWidth, charWidth float64, bounds columnBounds) bool {
	t := strings.TrimSpace(line.Text)
	if isTOCReferenceLine(t) || appendixRE.MatchString(t) || sectionHeaderRE.MatchString(t) {
		return true
	}
	if isSpanningNote(line, bodyMedianSize, pageWidth) {
		return true
	}
	if isCenterSpanningToken(t) {
		return true
	}
	width := line.X1 - line.X0
	if len(t) <= 3 && hasAlnum(t) && width <= 3*charWidth {
		return true
	}
	if !hasAlnum(t) && width <= 3*charWidth {
		return true
	}
	if line.X0 >= bounds.GutterLeft && line.X1 <= bounds.GutterRight && width <= 3*charWidth {
		return true
	}
	return false
}

// classifyLineRole assigns the acceptance reason for a line already routed
// into the spanning group: a running page header/footer band, or genuine
// spanning reference content otherwise. Grounded on §4.3.4/§4.3.7.
func classifyLineRole(line OrderedLine, pageHeight float64, cfg Config) LineRole {
	headerBand := pageHeight * cfg.HeaderRegionRatio
	footerBand := pageHeight * (1 - cfg.FooterRegionRatio)
	if line.Top <= headerBand || line.Bottom >= footerBand {
		return RoleSpanningHeader
	}
	return RoleSpanningReference
}

func medianWordHeight(words []Word) float64 {
	heights := make([]float64, 0, len(words))
	for _, w := range words {
		heights = append(heights, w.Box.Height())
	}
	return calculateMedian(heights)
}

// isCenterTokenWord recognizes the §4.3.6(b) exception to the cross-split
// check: a single uppercase character, at least 0.9× the median word
// height, sitting fully inside the gutter band: an index letter heading.
func isCenterTokenWord(w Word, bounds columnBounds, medianHeight float64) bool {
	return indexLetterRE.MatchString(strings.TrimSpace(w.Text)) &&
		w.Box.Height() >= 0.9*medianHeight &&
		w.Box.X0 >= bounds.GutterLeft && w.Box.X1 <= bounds.GutterRight
}

// buildOrderedLines reconstructs a page's reading-order line sequence per
// §4.3: header/footer-excluded body words are grouped into lines, spanning
// content (top headers, centered-structural, spanning notes/headings) is
// routed out of the two-column flow, the gutter is located among what
// remains, and gutter-straddling lines are either accepted as spanning
// references or fail GUTTER_LINE_AMBIGUOUS. Output order is spanning lines,
// then left column, then right column, each top-down. Grounded on
// build_ordered_lines.
func buildOrderedLines(words []Word, pageWidth, pageHeight float64, pageNum int, charWidth float64, cfg Config) ([]OrderedLine, error) {
	headerBand := pageHeight * cfg.HeaderRegionRatio
	footerBand := pageHeight * (1 - cfg.FooterRegionRatio)
	body := make([]Word, 0, len(words))
	for _, w := range words {
		if w.Box.Y0 <= headerBand || w.Box.Y1 >= footerBand {
			continue
		}
		body = append(body, w)
	}

	lines := groupWordsIntoLines(body, charWidth, cfg)
	if len(lines) == 0 {
		return nil, NewPipelineError(RuleColumnBoundsMissing, pageNum, "no body lines available to establish column bounds", nil)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Top < lines[j].Top })

	topHeaders, rest := extractTopHeaders(lines, pageWidth)
	for i := range topHeaders {
		topHeaders[i].Column = ColumnSpanning
		topHeaders[i].Role = RoleSpanningHeader
	}

	var bodyMedianSize float64
	if len(rest) > 0 {
		bodySizes := make([]float64, 0, len(rest))
		for _, ln := range rest {
			bodySizes = append(bodySizes, ln.FontSize)
		}
		bodyMedianSize = percentile(bodySizes, 50)
	}

	var centeredStructural, spanningExtracted, remaining []OrderedLine
	for _, ln := range rest {
		switch {
		case isCentered(ln, pageWidth) && isCenterSpanningToken(ln.Text):
			// An index letter or digit heading sitting on the page's
			// centerline spans the columns rather than structuring them.
			ln.Column = ColumnSpanning
			ln.Role = RoleSpanningReference
			spanningExtracted = append(spanningExtracted, ln)
		case isCentered(ln, pageWidth) && !looksLikeSectionOrTableLabel(ln.Text):
			ln.Column = ColumnCenterStructural
			ln.Role = RoleCenterStructural
			centeredStructural = append(centeredStructural, ln)
		case isSpanningNote(ln, bodyMedianSize, pageWidth):
			ln.Column = ColumnSpanning
			ln.Role = RoleSpanningReference
			spanningExtracted = append(spanningExtracted, ln)
		case isSpanningHeading(ln, pageWidth):
			ln.Column = ColumnSpanning
			ln.Role = RoleSpanningHeader
			spanningExtracted = append(spanningExtracted, ln)
		default:
			remaining = append(remaining, ln)
		}
	}
	// Centered-structural lines stay in the ordered output so their class
	// is inspectable downstream, but the section recognizer never appends
	// them as body text.
	spanningExtracted = append(spanningExtracted, centeredStructural...)

	if len(remaining) == 0 {
		ordered := make([]OrderedLine, 0, len(topHeaders)+len(spanningExtracted))
		ordered = append(ordered, topHeaders...)
		ordered = append(ordered, spanningExtracted...)
		sort.Slice(ordered, func(i, j int) bool { return ordered[i].Top < ordered[j].Top })
		return ordered, nil
	}

	var remainingWords []Word
	for _, ln := range remaining {
		remainingWords = append(remainingWords, ln.Words...)
	}
	bounds, hasGutter, fail := detectColumnSplit(remainingWords, pageWidth, cfg)
	if fail != nil {
		fail.Page = pageNum
		return nil, fail
	}

	if !hasGutter {
		for i := range remaining {
			remaining[i].Column = ColumnSingle
		}
		ordered := make([]OrderedLine, 0, len(lines))
		ordered = append(ordered, topHeaders...)
		ordered = append(ordered, spanningExtracted...)
		ordered = append(ordered, remaining...)
		sort.Slice(ordered, func(i, j int) bool { return ordered[i].Top < ordered[j].Top })
		return ordered, nil
	}

	// Column assignment happens per word: a reconstructed row often holds
	// words from both columns, so lines are regrouped per side afterward.
	medianHeight := medianWordHeight(remainingWords)
	var leftWords, rightWords, gutterWords []Word
	for _, w := range remainingWords {
		if w.Box.X0 < bounds.SplitX && w.Box.X1 > bounds.SplitX {
			centerNear := abs(w.Box.CenterX()-bounds.SplitX) <= cfg.GutterTolerance
			if !centerNear && !isCenterTokenWord(w, bounds, medianHeight) {
				return nil, NewPipelineError(RuleColumnSplitCross, pageNum,
					"word bbox straddles the detected gutter", map[string]any{"word": w.Text})
			}
			gutterWords = append(gutterWords, w)
			continue
		}
		if w.Box.CenterX() < bounds.SplitX {
			leftWords = append(leftWords, w)
		} else {
			rightWords = append(rightWords, w)
		}
	}

	for _, ln := range groupWordsIntoLines(gutterWords, charWidth, cfg) {
		if !gutterLineAccepted(ln, bodyMedianSize, pageWidth, charWidth, bounds) {
			return nil, NewPipelineError(RuleGutterLineAmbiguous, pageNum,
				"gutter-straddling line matches no accepted spanning shape", map[string]any{"text": ln.Text})
		}
		ln.Column = ColumnSpanning
		ln.Role = classifyLineRole(ln, pageHeight, cfg)
		spanningExtracted = append(spanningExtracted, ln)
	}

	left := groupWordsIntoLines(leftWords, charWidth, cfg)
	for i := range left {
		left[i].Column = ColumnLeft
	}
	right := groupWordsIntoLines(rightWords, charWidth, cfg)
	for i := range right {
		right[i].Column = ColumnRight
	}

	sort.Slice(spanningExtracted, func(i, j int) bool { return spanningExtracted[i].Top < spanningExtracted[j].Top })
	sort.Slice(left, func(i, j int) bool { return left[i].Top < left[j].Top })
	sort.Slice(right, func(i, j int) bool { return right[i].Top < right[j].Top })

	ordered := make([]OrderedLine, 0, len(lines))
	ordered = append(ordered, topHeaders...)
	ordered = append(ordered, spanningExtracted...)
	ordered = append(ordered, left...)
	ordered = append(ordered, right...)
	return ordered, nil
}
