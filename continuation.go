package ircbook

import "fmt"

// PageTableInput is one accepted table candidate with everything the
// continuation controller needs to resolve it: its binding, collected
// footnote lines, and whether its grid touches the page's bottom band.
type PageTableInput struct {
	Candidate     TableCandidate
	Binding       TableLabelBinding
	Footnotes     []string
	TouchesBottom bool
}

// ContinuationController owns the single in-flight PendingTable (if any)
// and the last-seen table id per base id, reproducing the reference
// implementation's multi-page table continuation state machine from its
// per-page driver loop.
type ContinuationController struct {
	pending      *PendingTable
	lastIDByBase map[string]string
}

func NewContinuationController() *ContinuationController {
	return &ContinuationController{lastIDByBase: map[string]string{}}
}

// PendingBaseID exposes the base id of the in-flight pending table, so the
// driver can scan a page's label lines for carryover labels and CONTINUED
// markers that reference it.
func (c *ContinuationController) PendingBaseID() (string, bool) {
	if c.pending == nil {
		return "", false
	}
	return BaseTableID(c.pending.TableID), true
}

// FinishedTable is a table ready to be written to disk.
type FinishedTable struct {
	TableID   string
	Title     string
	Columns   []string
	Rows      [][]string
	Footnotes []string
	PDFPages  []int
	Rotation  PageRotation
	BBoxes    []Rect
}

func (c *ContinuationController) flushPending() FinishedTable {
	p := c.pending
	c.pending = nil
	return FinishedTable{
		TableID: p.TableID, Title: p.Title, Columns: p.Columns, Rows: p.Rows,
		Footnotes: p.Footnotes, PDFPages: p.PDFPages, Rotation: p.Rotation, BBoxes: p.BBoxes,
	}
}

// ProcessPage resolves continuation for one page's accepted tables,
// returning any tables now complete and ready to write, plus non-fatal
// warnings. continuedMarker and carryoverLabel report whether any label
// line on this page references the pending table's base id (with and
// without a CONTINUED marker respectively); they matter even on pages with
// no grids, where either one proves a continuation the detector failed to
// find.
func (c *ContinuationController) ProcessPage(page int, inputs []PageTableInput, continuedMarker, carryoverLabel bool) ([]FinishedTable, []string, error) {
	var finished []FinishedTable
	var warnings []string

	if c.pending != nil && len(inputs) == 0 {
		if continuedMarker || carryoverLabel {
			return nil, nil, NewPipelineError(RuleTableContinuation, page,
				"page carries a continuation label for "+c.pending.TableID+" but no table grid", nil)
		}
		finished = append(finished, c.flushPending())
	}

	type entry struct {
		input  PageTableInput
		id     string
		baseID string
	}
	entries := make([]entry, len(inputs))
	unlabeledIdx := 0
	for i, in := range inputs {
		id := in.Binding.TableID
		if in.Binding.Unlabeled {
			unlabeledIdx++
			id = fmt.Sprintf("UNLABELED_P%d_T%d", page, unlabeledIdx)
			warnings = append(warnings, "unlabeled table emitted as "+id)
		}
		entries[i] = entry{input: in, id: id, baseID: BaseTableID(id)}
	}

	remaining := entries
	if c.pending != nil && len(entries) > 0 {
		pendingBase := BaseTableID(c.pending.TableID)
		matched := -1
		for i, e := range entries {
			if e.baseID != pendingBase {
				continue
			}
			proven := e.input.Binding.Continued ||
				(!e.input.Binding.Unlabeled && columnsEqual(e.input.Candidate.Extraction.Columns, c.pending.Columns))
			if !proven {
				return nil, nil, NewPipelineError(RuleTableContinuation, page,
					"table grid reuses pending id "+c.pending.TableID+" without a proven continuation", nil)
			}
			if matched >= 0 {
				return nil, nil, NewPipelineError(RuleTableContinuation, page,
					"multiple candidate continuations found for pending table "+c.pending.TableID, nil)
			}
			matched = i
		}
		if matched < 0 && continuedMarker {
			return nil, nil, NewPipelineError(RuleTableContinuation, page,
				"CONTINUED marker for "+c.pending.TableID+" has no matching table grid", nil)
		}
		if matched >= 0 {
			e := entries[matched]
			if e.input.Candidate.Rotation != c.pending.Rotation {
				return nil, nil, NewPipelineError(RuleTableContinuation, page,
					"continuation of "+c.pending.TableID+" changed rotation mid-table", map[string]any{
						"pending_rotation": int(c.pending.Rotation), "match_rotation": int(e.input.Candidate.Rotation),
					})
			}
			c.pending.Rows = append(c.pending.Rows, e.input.Candidate.Extraction.Rows...)
			c.pending.Footnotes = append(c.pending.Footnotes, e.input.Footnotes...)
			c.pending.PDFPages = append(c.pending.PDFPages, page)
			c.pending.BBoxes = append(c.pending.BBoxes, e.input.Candidate.BBox)
			if !e.input.TouchesBottom {
				finished = append(finished, c.flushPending())
			}
			remaining = append(entries[:matched:matched], entries[matched+1:]...)
		}
	}

	for _, e := range remaining {
		if e.input.Binding.Continued && (c.pending == nil || BaseTableID(c.pending.TableID) != e.baseID) {
			if _, seen := c.lastIDByBase[e.baseID]; !seen {
				warnings = append(warnings, "table "+e.id+" is marked CONTINUED but no prior table shares its base id")
			}
		}
		c.lastIDByBase[e.baseID] = e.id
		if e.input.TouchesBottom {
			if c.pending != nil {
				return nil, nil, NewPipelineError(RuleTableContinuation, page,
					"more than one table touches the page's bottom band", nil)
			}
			c.pending = &PendingTable{
				TableID: e.id, Title: e.input.Binding.Title, Columns: e.input.Candidate.Extraction.Columns,
				Rows: e.input.Candidate.Extraction.Rows, Footnotes: e.input.Footnotes,
				PDFPages: []int{page}, Rotation: e.input.Candidate.Rotation,
				BBoxes: []Rect{e.input.Candidate.BBox},
			}
			continue
		}
		finished = append(finished, FinishedTable{
			TableID: e.id, Title: e.input.Binding.Title, Columns: e.input.Candidate.Extraction.Columns,
			Rows: e.input.Candidate.Extraction.Rows, Footnotes: e.input.Footnotes,
			PDFPages: []int{page}, Rotation: e.input.Candidate.Rotation,
			BBoxes: []Rect{e.input.Candidate.BBox},
		})
	}

	return finished, warnings, nil
}

// Finalize must be called at document end: any still-pending table is an
// error, since a table can only remain open while more pages follow.
func (c *ContinuationController) Finalize() error {
	if c.pending != nil {
		return NewPipelineError(RuleTableContinuation, 0,
			"unterminated table "+c.pending.TableID+" at end of document", nil)
	}
	return nil
}

func columnsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// TouchesBottom reports whether a table candidate's bbox reaches within
// cfg.TableBottomTouchTolerance of the page's bottom margin, the signal
// that it may continue onto the next page.
func TouchesBottom(bbox Rect, pageHeight float64, cfg Config) bool {
	return pageHeight-bbox.Y1 <= cfg.TableBottomTouchTolerance
}
