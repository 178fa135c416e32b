package ircbook

import (
	"strings"

	"github.com/ivanvanderbyl/markdown"
)

// RenderSectionMarkdown produces a companion .md rendering of one section's
// body lines, using the builder API the teacher used for whole-document
// conversion, narrowed here to a
// single section's heading plus body paragraphs. Only emitted when
// Config.RenderMarkdownCompanions is set: it is not part of the section's
// canonical .txt output and never participates in the integrity check.
func RenderSectionMarkdown(entry SectionStackEntry) string {
	var buf strings.Builder
	md := markdown.NewMarkdown(&buf)
	title := entry.ID
	if len(entry.Lines) > 0 {
		title = entry.Lines[0]
	}
	md.H2(title)

	for _, line := range entry.Lines[minInt(1, len(entry.Lines)):] {
		md.PlainText(applyInlineEmphasis(line))
	}

	if err := md.Build(); err != nil {
		return strings.Join(entry.Lines, "\n")
	}
	return buf.String()
}

// applyInlineEmphasis renders a whole body line as bold when it is written
// in ALL CAPS (and contains at least one letter or digit); every other line
// is returned unchanged. No italic detection is done, and font metadata is
// not consulted: the decision is made on the line's text alone.
func applyInlineEmphasis(line string) string {
	if line == strings.ToUpper(line) && hasAlnum(line) {
		return markdown.Bold(line)
	}
	return line
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
