package ircbook

import (
	"regexp"
	"strings"
)

// tableLabelRE matches a table caption such as "TABLE R302.1 WALL ASSEMBLIES"
// or "TABLE R302.1(1) (CONTINUED)": the TABLE keyword, an IRC-shaped id, an
// optional "(variant)" suffix, and an optional trailing title. Grounded on
// TABLE_LABEL_RE.
var tableLabelRE = regexp.MustCompile(`(?i)^\s*TABLE\s+(` + ircSectionID + `)\s*(\([0-9]+\))?\s*(.*)$`)

// FindTableLabel searches label lines for a caption that binds to a table
// candidate's bbox: a line whose x-extent overlaps the bbox, sitting above it
// within the search window (the closest above wins: greatest bottom), or
// failing that a line inside the top band of the bbox (the highest one wins).
// Mirrors find_table_label_for_bbox.
func FindTableLabel(bbox Rect, labelLines []OrderedLine, cfg Config) TableLabelBinding {
	var bestAbove *OrderedLine
	for i := range labelLines {
		line := &labelLines[i]
		if !tableLabelRE.MatchString(line.Text) {
			continue
		}
		if line.X1 < bbox.X0 || line.X0 > bbox.X1 {
			continue
		}
		if line.Bottom <= bbox.Y0 && bbox.Y0-line.Bottom <= cfg.TableLabelSearchWindow {
			if bestAbove == nil || line.Bottom > bestAbove.Bottom {
				bestAbove = line
			}
		}
	}
	if bestAbove != nil {
		return bindingFromLine(*bestAbove)
	}

	bandHeight := bbox.Height() * cfg.TableLabelTopBandRatio
	var bestInside *OrderedLine
	for i := range labelLines {
		line := &labelLines[i]
		if !tableLabelRE.MatchString(line.Text) {
			continue
		}
		if line.X1 < bbox.X0 || line.X0 > bbox.X1 {
			continue
		}
		if line.Top >= bbox.Y0 && line.Top <= bbox.Y0+bandHeight {
			if bestInside == nil || line.Top < bestInside.Top {
				bestInside = line
			}
		}
	}
	if bestInside != nil {
		return bindingFromLine(*bestInside)
	}

	return TableLabelBinding{Unlabeled: true}
}

func bindingFromLine(line OrderedLine) TableLabelBinding {
	m := tableLabelRE.FindStringSubmatch(line.Text)
	id := strings.ToUpper(m[1])
	if m[2] != "" {
		id += strings.ToUpper(m[2]) // keep the "(1)" variant on the emitted id
	}
	title := strings.TrimSpace(m[3])
	continued := HasContinuedMarker(line.Text, BaseTableID(id))
	if continued {
		title = strings.TrimSpace(continuedMarkerRE.ReplaceAllString(title, ""))
	}
	return TableLabelBinding{
		TableID:   id,
		Title:     title,
		LabelText: strings.TrimSpace(line.Text),
		Continued: continued,
	}
}

var continuedMarkerRE = regexp.MustCompile(`(?i)[-—–]?\s*\(?\s*CONTINUED\s*\)?`)

// HasContinuedMarker reports whether a label line marks its table as the
// continuation of an earlier one. Mirrors has_continued_marker: the label
// must mention "TABLE", the target id, and "CONTINUED".
func HasContinuedMarker(text, targetID string) bool {
	upper := strings.ToUpper(text)
	return strings.Contains(upper, "TABLE") &&
		(targetID == "" || strings.Contains(upper, strings.ToUpper(targetID))) &&
		strings.Contains(upper, "CONTINUED")
}

// BaseTableID strips a trailing "(…)" variant from a table id so
// continuations can be matched against their base id.
func BaseTableID(id string) string {
	if i := strings.Index(id, "("); i >= 0 {
		return strings.TrimSpace(id[:i])
	}
	return id
}

// isTableLabelLine reports whether a line is a table caption at all,
// independent of any candidate binding. The section recognizer uses this to
// keep captions and their CONTINUED markers out of section bodies.
func isTableLabelLine(text string) bool {
	return tableLabelRE.MatchString(text)
}
