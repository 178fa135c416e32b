package ircbook

import (
	"regexp"
	"strings"
)

// ircSectionID is the canonical IRC section id shape: 1-3 letters, 3-4
// digits, then zero or more ".digits" groups: e.g. "R301", "E3401.2",
// "AF103.1.2". Grounded on §4.4's canonical id shape.
const ircSectionID = `[A-Za-z]{1,3}[0-9]{3,4}(?:\.[0-9]+)*`

// sectionTextRE matches a full one-line heading: an id (optionally preceded
// by the SECTION keyword) followed by a title that reads as prose: ending
// with a sentence period, or an en/em dash followed by further prose.
// Grounded on SECTION_TEXT_RE.
var sectionTextRE = regexp.MustCompile(`(?i)^\s*(?:SECTION\s+)?(` + ircSectionID + `)\s+([A-Z0-9].*(?:\.|[—–-]\s+\S.*))\s*$`)

// sectionHeaderRE is the fallback header-style match: an id followed by a
// title with no punctuation requirement. It only fires on lines already in
// header position and style. Grounded on SECTION_HEADER_RE.
var sectionHeaderRE = regexp.MustCompile(`(?i)^\s*(?:SECTION\s+)?(` + ircSectionID + `)\s+([A-Z0-9][A-Za-z0-9 ,.\-/&'()]*)\s*$`)

// sectionMarkerLineRE matches a line containing nothing but an id, with an
// optional SECTION keyword: e.g. "R301" or "SECTION R301". Grounded on
// parse_section_marker_line / the "bare marker line" form in §4.4.
var sectionMarkerLineRE = regexp.MustCompile(`(?i)^\s*(SECTION\s+)?(` + ircSectionID + `)\s*$`)

// appendixRE matches an appendix heading such as "APPENDIX A" or
// "APPENDIX AF Radon Control Methods".
var appendixRE = regexp.MustCompile(`(?i)^\s*APPENDIX\s+([A-Z]{1,3})\b\s*(.*)$`)

// chapterRE matches a chapter banner line, updating the chapter name
// attached to every section opened afterward.
var chapterRE = regexp.MustCompile(`(?i)^\s*CHAPTER\s+(\d+)\s*[:\-]?\s*(.*)$`)

// dotLeadersRE finds a run of 3+ dots: the TOC giveaway. Any heading
// candidate containing one is rejected outright.
var dotLeadersRE = regexp.MustCompile(`\.{3,}`)

// tocPageHeaderRE recognizes a "TABLE OF CONTENTS" page header, matched
// against whitespace-collapsed text.
var tocPageHeaderRE = regexp.MustCompile(`(?i)TABLE OF CONTENTS`)

// idTokenRE finds embedded id-like tokens inside a title, which are
// stripped before the title's has-alphanumeric test.
var idTokenRE = regexp.MustCompile(`(?i)\b` + ircSectionID + `\b`)

// IsTOCPage reports whether any header-band line on the page is a
// "TABLE OF CONTENTS" banner, in which case the whole page is skipped for
// section recognition. Grounded on §4.4's TOC rejection / scenario S6.
func IsTOCPage(lines []OrderedLine) bool {
	for _, ln := range lines {
		collapsed := strings.Join(strings.Fields(ln.Text), " ")
		if tocPageHeaderRE.MatchString(collapsed) {
			return true
		}
	}
	return false
}

// SectionIDDepth returns the number of decimal groups in a section id
// ("R301.2.1" -> 3), the stack's nesting key.
func SectionIDDepth(id string) int {
	return strings.Count(id, ".") + 1
}

// SectionHeadingMatch is a parsed candidate section heading.
type SectionHeadingMatch struct {
	ID    string
	Title string
}

// parseTrueSectionHeading recognizes a one-line heading: an appendix
// banner, a prose-titled SECTION_TEXT_RE heading, or the fallback
// SECTION_HEADER_RE form. Grounded on parse_true_section_heading.
func parseTrueSectionHeading(line OrderedLine) (SectionHeadingMatch, bool) {
	if dotLeadersRE.MatchString(line.Text) {
		return SectionHeadingMatch{}, false
	}
	if m := appendixRE.FindStringSubmatch(line.Text); m != nil {
		title := strings.TrimSpace(m[2])
		if title == "" || titleAcceptable(title, true) {
			return SectionHeadingMatch{ID: "APPENDIX " + strings.ToUpper(m[1]), Title: title}, true
		}
		return SectionHeadingMatch{}, false
	}
	if m := sectionTextRE.FindStringSubmatch(line.Text); m != nil {
		if title := strings.TrimSpace(m[2]); titleAcceptable(title, false) {
			return SectionHeadingMatch{ID: strings.ToUpper(m[1]), Title: title}, true
		}
	}
	if m := sectionHeaderRE.FindStringSubmatch(line.Text); m != nil {
		if title := strings.TrimSpace(m[2]); titleAcceptable(title, false) {
			return SectionHeadingMatch{ID: strings.ToUpper(m[1]), Title: title}, true
		}
	}
	return SectionHeadingMatch{}, false
}

// parseSectionMarkerLine recognizes a line holding only an id, reporting
// whether the SECTION keyword was present. Grounded on
// parse_section_marker_line.
func parseSectionMarkerLine(line OrderedLine) (id string, keyword bool, ok bool) {
	if m := sectionMarkerLineRE.FindStringSubmatch(line.Text); m != nil {
		return strings.ToUpper(m[2]), m[1] != "", true
	}
	return "", false, false
}

// titleAcceptable applies §4.4's title acceptance rules: starts with an
// uppercase letter or digit; after stripping embedded id-like tokens still
// carries at least one alphanumeric; and is not a spaceless all-caps run
// longer than 4 characters (unless it titles an appendix).
func titleAcceptable(title string, isAppendix bool) bool {
	t := strings.TrimSpace(title)
	if t == "" || dotLeadersRE.MatchString(t) {
		return false
	}
	r := []rune(t)[0]
	if !((r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
		return false
	}
	if !hasAlnum(idTokenRE.ReplaceAllString(t, "")) {
		return false
	}
	if !isAppendix && len(t) > 4 && !strings.Contains(t, " ") && t == strings.ToUpper(t) {
		return false
	}
	return true
}

// isHeaderStyle reports whether a line's visual style marks it as a
// heading: bold, or at least cfg.HeaderSizeDelta points larger than the
// page's body median font size. Grounded on is_header_style.
func isHeaderStyle(line OrderedLine, bodyMedianSize float64, cfg Config) bool {
	return line.IsBold || line.FontSize >= bodyMedianSize+cfg.HeaderSizeDelta
}

// isHeaderPosition reports whether a line starts within tolerance of its
// column's canonical left margin (the 5th-percentile x0 of that column);
// the tolerance is the larger of COLUMN_MARGIN_TOLERANCE and three median
// character widths. Grounded on is_header_position.
func isHeaderPosition(line OrderedLine, columnLeft, charWidth float64, cfg Config) bool {
	tol := cfg.ColumnMarginTolerance
	if 3*charWidth > tol {
		tol = 3 * charWidth
	}
	return abs(line.X0-columnLeft) <= tol
}

// DetectSectionStart decides whether an ordered line (optionally combined
// with the next one in the same column) begins a new section, returning the
// matched heading and the number of lines consumed. A bare marker or id
// line is only accepted when the following line reads as a title within
// cfg.MaxHeaderLineGap of it. A heading candidate whose next line is a
// TOC-style dot-leader reference is rejected. Grounded on
// detect_section_start.
func DetectSectionStart(lines []OrderedLine, i int, bodyMedianSize, columnLeft, charWidth float64, cfg Config) (SectionHeadingMatch, int, bool) {
	line := lines[i]
	if dotLeadersRE.MatchString(line.Text) || isTOCReferenceLine(line.Text) {
		return SectionHeadingMatch{}, 0, false
	}
	if i+1 < len(lines) && followedByTOCReference(lines[i+1]) {
		return SectionHeadingMatch{}, 0, false
	}
	if !isHeaderPosition(line, columnLeft, charWidth, cfg) || !isHeaderStyle(line, bodyMedianSize, cfg) {
		return SectionHeadingMatch{}, 0, false
	}

	if m, ok := parseTrueSectionHeading(line); ok {
		return m, 1, true
	}

	if id, _, ok := parseSectionMarkerLine(line); ok && i+1 < len(lines) {
		next := lines[i+1]
		if next.Column == line.Column && next.Top-line.Bottom <= cfg.MaxHeaderLineGap && titleAcceptable(next.Text, false) {
			return SectionHeadingMatch{ID: id, Title: strings.TrimSpace(next.Text)}, 2, true
		}
	}

	return SectionHeadingMatch{}, 0, false
}

// tocEntryStartRE matches a dot-leader line that begins with an (optionally
// SECTION-prefixed) id or an appendix banner: the TOC entry shape.
var tocEntryStartRE = regexp.MustCompile(`(?i)^(?:SECTION\s+)?` + ircSectionID + `\b|^APPENDIX\s+[A-Z]{1,3}\b`)

// followedByTOCReference reports whether a candidate heading line is
// shadowed by a dot-leader page-reference line beginning with a section id
// or appendix banner: the two-line TOC entry shape §4.4 rejects.
func followedByTOCReference(next OrderedLine) bool {
	t := strings.TrimSpace(next.Text)
	return isTOCReferenceLine(t) && tocEntryStartRE.MatchString(t)
}

// isSpanningReferenceLine recognizes the spanning-content classes that must
// never be mistaken for a section heading or appended to a section body:
// TOC entries, index letters/digits, and isolated symbols.
func isSpanningReferenceLine(line OrderedLine) bool {
	return line.Column == ColumnSpanning && (line.Role == RoleSpanningReference || isTOCReferenceLine(line.Text) || isCenterSpanningToken(line.Text))
}

// matchesChapterLine extracts a chapter name from a line, if it is a
// chapter banner.
func matchesChapterLine(text string) (string, bool) {
	m := chapterRE.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	name := strings.TrimSpace(m[2])
	if name == "" {
		name = "Chapter " + m[1]
	}
	return name, true
}

// SectionStack owns the currently-open section entries, deepest last, plus
// the set of ids ever accepted on this document (duplicate detection).
// Depths are strictly increasing bottom-to-top at every moment.
type SectionStack struct {
	entries        []SectionStackEntry
	seenIDs        map[string]bool
	currentChapter string
}

func NewSectionStack() *SectionStack {
	return &SectionStack{seenIDs: map[string]bool{}}
}

func (s *SectionStack) Top() (*SectionStackEntry, bool) {
	if len(s.entries) == 0 {
		return nil, false
	}
	return &s.entries[len(s.entries)-1], true
}

// Open validates and pushes a new section, flushing (returning for write)
// any currently-open entries at the same or deeper nesting depth. Mirrors
// the reference implementation's depth-based flush-then-push and
// SECTION_APPEND_VIOLATION / SECTION_DUPLICATE checks.
func (s *SectionStack) Open(heading SectionHeadingMatch, page int) ([]SectionStackEntry, error) {
	if top, ok := s.Top(); ok && top.ID == heading.ID {
		return nil, NewPipelineError(RuleSectionAppendViolation, page,
			"heading "+heading.ID+" repeats the currently open section", nil)
	}

	if s.seenIDs[heading.ID] {
		return nil, NewPipelineError(RuleSectionDuplicate, page,
			"section id "+heading.ID+" was already extracted earlier in the document", nil)
	}

	depth := SectionIDDepth(heading.ID)
	var flushed []SectionStackEntry
	for len(s.entries) > 0 {
		top := s.entries[len(s.entries)-1]
		if top.Depth < depth {
			break
		}
		flushed = append(flushed, top)
		s.entries = s.entries[:len(s.entries)-1]
	}

	s.seenIDs[heading.ID] = true
	lines := []string{}
	if heading.Title != "" {
		lines = append(lines, heading.ID+" "+heading.Title)
	}
	s.entries = append(s.entries, SectionStackEntry{
		ID:        heading.ID,
		Depth:     depth,
		Lines:     lines,
		StartPage: page,
		EndPage:   page,
		Chapter:   s.currentChapter,
	})

	return flushed, nil
}

// PopTop flushes the top entry, if any: the implicit pop a bare SECTION
// marker line performs when no title follows it.
func (s *SectionStack) PopTop() (SectionStackEntry, bool) {
	if len(s.entries) == 0 {
		return SectionStackEntry{}, false
	}
	top := s.entries[len(s.entries)-1]
	s.entries = s.entries[:len(s.entries)-1]
	return top, true
}

// Append adds a body line to the currently open section.
func (s *SectionStack) Append(text string, page int) {
	if top, ok := s.Top(); ok {
		top.Lines = append(top.Lines, text)
		top.EndPage = page
	}
}

// FlushAll pops every remaining entry, deepest first, for final write-out
// at document end.
func (s *SectionStack) FlushAll() []SectionStackEntry {
	flushed := append([]SectionStackEntry{}, s.entries...)
	for i, j := 0, len(flushed)-1; i < j; i, j = i+1, j-1 {
		flushed[i], flushed[j] = flushed[j], flushed[i]
	}
	s.entries = nil
	return flushed
}

func (s *SectionStack) SetChapter(name string) { s.currentChapter = name }

func (s *SectionStack) AcceptedIDs() []string {
	ids := make([]string, 0, len(s.seenIDs))
	for id := range s.seenIDs {
		ids = append(ids, id)
	}
	return ids
}
