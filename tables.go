package ircbook

import (
	"math"
	"sort"
	"strings"
)

// snapHalfPoint rounds a coordinate to the nearest 0.5pt, the grid the
// ruling detector works on.
func snapHalfPoint(v float64) float64 { return math.Round(v*2) / 2 }

// normalizeRulings snaps every ruling to the 0.5pt grid, drops segments
// shorter than cfg.MinRulingLength, and merges collinear segments whose
// endpoints lie within cfg.RulingMergeTolerance. Grounded on §4.2.1.
func normalizeRulings(rulings []Ruling, cfg Config) []Ruling {
	var hs, vs []Ruling
	for _, r := range rulings {
		r.X0, r.X1 = snapHalfPoint(r.X0), snapHalfPoint(r.X1)
		r.Top, r.Bottom = snapHalfPoint(r.Top), snapHalfPoint(r.Bottom)
		if r.Length() < cfg.MinRulingLength {
			continue
		}
		if r.Orientation == OrientationHorizontal {
			hs = append(hs, r)
		} else {
			vs = append(vs, r)
		}
	}

	mergeTol := cfg.RulingMergeTolerance
	posTol := cfg.RulingPositionTolerance

	sort.Slice(hs, func(i, j int) bool {
		if hs[i].Top != hs[j].Top {
			return hs[i].Top < hs[j].Top
		}
		return hs[i].X0 < hs[j].X0
	})
	var mergedH []Ruling
	for _, r := range hs {
		if n := len(mergedH); n > 0 {
			last := &mergedH[n-1]
			if abs(last.Top-r.Top) <= posTol && r.X0 <= last.X1+mergeTol {
				if r.X1 > last.X1 {
					last.X1 = r.X1
				}
				continue
			}
		}
		mergedH = append(mergedH, r)
	}

	sort.Slice(vs, func(i, j int) bool {
		if vs[i].X0 != vs[j].X0 {
			return vs[i].X0 < vs[j].X0
		}
		return vs[i].Top < vs[j].Top
	})
	var mergedV []Ruling
	for _, r := range vs {
		if n := len(mergedV); n > 0 {
			last := &mergedV[n-1]
			if abs(last.X0-r.X0) <= posTol && r.Top <= last.Bottom+mergeTol {
				if r.Bottom > last.Bottom {
					last.Bottom = r.Bottom
				}
				continue
			}
		}
		mergedV = append(mergedV, r)
	}

	return append(mergedH, mergedV...)
}

// buildRulingGraph partitions a page's rulings into connected components:
// two rulings are adjacent if they touch within TableEdgeTolerance. Every
// component is returned; DetectTableCandidates keeps only those that
// isRealRuledTable accepts.
// Grounded on detect_ruled_tables's bipartite connected-components graph.
func buildRulingGraph(rulings []Ruling, cfg Config) [][]Ruling {
	n := len(rulings)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	tol := cfg.TableEdgeTolerance
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if rulingsTouch(rulings[i], rulings[j], tol) {
				union(i, j)
			}
		}
	}

	groups := map[int][]Ruling{}
	for i, r := range rulings {
		root := find(i)
		groups[root] = append(groups[root], r)
	}

	var out [][]Ruling
	for _, g := range groups {
		out = append(out, g)
	}
	return out
}

func rulingsTouch(a, b Ruling, tol float64) bool {
	if a.Orientation == b.Orientation {
		return false
	}
	h, v := a, b
	if a.Orientation == OrientationVertical {
		h, v = b, a
	}
	withinX := v.X0 >= h.X0-tol && v.X0 <= h.X1+tol
	withinY := h.Top >= v.Top-tol && h.Top <= v.Bottom+tol
	return withinX && withinY
}

// componentBBox returns the bounding box of a connected component's
// rulings.
func componentBBox(rulings []Ruling) Rect {
	r := Rect{X0: 1e18, Y0: 1e18, X1: -1e18, Y1: -1e18}
	for _, ln := range rulings {
		var x0, x1, y0, y1 float64
		if ln.Orientation == OrientationHorizontal {
			x0, x1, y0, y1 = ln.X0, ln.X1, ln.Top, ln.Top
		} else {
			x0, x1, y0, y1 = ln.X0, ln.X0, ln.Top, ln.Bottom
		}
		if x0 < r.X0 {
			r.X0 = x0
		}
		if x1 > r.X1 {
			r.X1 = x1
		}
		if y0 < r.Y0 {
			r.Y0 = y0
		}
		if y1 > r.Y1 {
			r.Y1 = y1
		}
	}
	return r
}

func countIntersections(rulings []Ruling, tol float64) int {
	var count int
	for _, a := range rulings {
		if a.Orientation != OrientationHorizontal {
			continue
		}
		for _, b := range rulings {
			if b.Orientation != OrientationVertical {
				continue
			}
			if rulingsTouch(a, b, tol) {
				count++
			}
		}
	}
	return count
}

// isRealRuledTable filters out connected components that are visually
// grid-like but structurally too sparse to be a genuine table: at least 2
// distinct rows and 2 distinct columns of rulings, and a minimum
// intersection count. Grounded on is_real_ruled_table.
func isRealRuledTable(hRulings, vRulings []Ruling, cfg Config) bool {
	if len(hRulings) < 2 || len(vRulings) < 2 {
		return false
	}
	rowPositions := uniquePositions(hRulings, func(r Ruling) float64 { return r.Top }, cfg.RulingPositionTolerance)
	colPositions := uniquePositions(vRulings, func(r Ruling) float64 { return r.X0 }, cfg.RulingPositionTolerance)
	if len(rowPositions) < 2 || len(colPositions) < 2 {
		return false
	}
	return countIntersections(append(append([]Ruling{}, hRulings...), vRulings...), cfg.TableEdgeTolerance) >= cfg.TableMinIntersections
}

func uniquePositions(rulings []Ruling, key func(Ruling) float64, tol float64) []float64 {
	var positions []float64
	for _, r := range rulings {
		v := key(r)
		placed := false
		for i, p := range positions {
			if abs(p-v) <= tol {
				positions[i] = (p + v) / 2
				placed = true
				break
			}
		}
		if !placed {
			positions = append(positions, v)
		}
	}
	sort.Float64s(positions)
	return positions
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// extractTableCellsFromGrid maps words falling inside each grid cell's bbox
// to that cell's text, producing the table's column headers (first row)
// and body rows. Grounded on extract_table_cells_from_grid.
func extractTableCellsFromGrid(rowPositions, colPositions []float64, words []Word) TableExtraction {
	if len(rowPositions) < 2 || len(colPositions) < 2 {
		return TableExtraction{OK: false, Reason: "insufficient grid lines"}
	}

	rows := len(rowPositions) - 1
	cols := len(colPositions) - 1
	cells := make([][]string, rows)
	for r := range cells {
		cells[r] = make([]string, cols)
	}

	for _, w := range words {
		cx, cy := w.Box.CenterX(), w.Box.CenterY()
		ri := locateBand(cy, rowPositions)
		ci := locateBand(cx, colPositions)
		if ri < 0 || ci < 0 {
			continue
		}
		if cells[ri][ci] != "" {
			cells[ri][ci] += " "
		}
		cells[ri][ci] += w.Text
	}

	var empty int
	total := rows * cols
	for _, row := range cells {
		for _, cell := range row {
			if strings.TrimSpace(cell) == "" {
				empty++
			}
		}
	}

	header := cells[0]
	body := cells[1:]

	return TableExtraction{
		OK:         true,
		Columns:    header,
		Rows:       body,
		RowCount:   len(body),
		ColCount:   cols,
		EmptyRatio: float64(empty) / float64(max1(total)),
	}
}

func locateBand(v float64, bounds []float64) int {
	for i := 0; i < len(bounds)-1; i++ {
		if v >= bounds[i] && v < bounds[i+1] {
			return i
		}
	}
	return -1
}

func max1(v int) int {
	if v < 1 {
		return 1
	}
	return v
}

// rotateRulingForCandidate maps a ruling into a candidate rotation's frame;
// a quarter-turn swaps its orientation.
func rotateRulingForCandidate(r Ruling, pageWidth, pageHeight float64, rotation PageRotation) Ruling {
	if rotation == Rotation0 {
		return r
	}
	rr := rotateRectForCandidate(Rect{X0: r.X0, Y0: r.Top, X1: r.X1, Y1: r.Bottom}, pageWidth, pageHeight, rotation)
	if r.Orientation == OrientationHorizontal {
		return Ruling{X0: rr.X0, X1: rr.X0, Top: rr.Y0, Bottom: rr.Y1, Orientation: OrientationVertical}
	}
	return Ruling{X0: rr.X0, X1: rr.X1, Top: rr.Y0, Bottom: rr.Y0, Orientation: OrientationHorizontal}
}

// DetectTableCandidates finds every connected ruling component on a page,
// scores the three candidate rotations over all of them combined, and
// extracts each real ruled table in the single winning frame. Rotation is
// a page-level decision: char votes, intersection counts, and bbox areas
// are totals across every candidate under each hypothesis, and one best
// rotation (or one ambiguity failure, or one zero-vote tie default) holds
// for the whole page. Returns one TableCandidate per real ruled table, in
// reading order (top to bottom, left to right at 0°).
func DetectTableCandidates(geom *PageGeometry, cfg Config) ([]TableCandidate, error) {
	components := buildRulingGraph(normalizeRulings(geom.Rulings, cfg), cfg)

	type realComponent struct {
		rulings       []Ruling
		hRulings      []Ruling
		vRulings      []Ruling
		bbox          Rect
		intersections int
	}
	var grids []realComponent
	for _, component := range components {
		var hRulings, vRulings []Ruling
		for _, r := range component {
			if r.Orientation == OrientationHorizontal {
				hRulings = append(hRulings, r)
			} else {
				vRulings = append(vRulings, r)
			}
		}
		if !isRealRuledTable(hRulings, vRulings, cfg) {
			continue
		}
		grids = append(grids, realComponent{
			rulings:       component,
			hRulings:      hRulings,
			vRulings:      vRulings,
			bbox:          componentBBox(component),
			intersections: countIntersections(component, cfg.TableEdgeTolerance),
		})
	}
	if len(grids) == 0 {
		return nil, nil
	}

	bboxes := make([]Rect, len(grids))
	for i, rc := range grids {
		bboxes[i] = rc.bbox
	}

	var scores []orientationScore
	for _, rot := range []PageRotation{Rotation0, Rotation90, Rotation270} {
		var totalIntersections int
		var totalArea float64
		for _, rc := range grids {
			totalIntersections += rc.intersections
			rb := rotateRectForCandidate(rc.bbox, geom.Width, geom.Height, rot)
			totalArea += rb.Width() * rb.Height()
		}
		scores = append(scores, orientationScore{
			Rotation:      rot,
			CharVotes:     countCharsInRotatedBBoxes(geom.Chars, bboxes, rot),
			Intersections: totalIntersections,
			Area:          totalArea,
		})
	}

	best, tieDefault, ambiguous := pickBestRotation(scores)
	if ambiguous {
		return nil, NewPipelineError(RuleTableRotationAmbiguous, geom.PageNumber,
			"page table rotation could not be disambiguated", map[string]any{"candidate_count": len(grids)})
	}

	var candidates []TableCandidate
	for idx, rc := range grids {
		// Extract cells in the page's winning frame: rulings and words are
		// mapped into it so every header row reads upright.
		var rotH, rotV []Ruling
		for _, r := range rc.rulings {
			rr := rotateRulingForCandidate(r, geom.Width, geom.Height, best.Rotation)
			if rr.Orientation == OrientationHorizontal {
				rotH = append(rotH, rr)
			} else {
				rotV = append(rotV, rr)
			}
		}
		rowPositions := uniquePositions(rotH, func(r Ruling) float64 { return r.Top }, cfg.RulingPositionTolerance)
		colPositions := uniquePositions(rotV, func(r Ruling) float64 { return r.X0 }, cfg.RulingPositionTolerance)

		var cellWords []Word
		for _, w := range geom.Words {
			if rectsOverlap(w.Box, rc.bbox) {
				rw := w
				rw.Box = rotateRectForCandidate(w.Box, geom.Width, geom.Height, best.Rotation)
				cellWords = append(cellWords, rw)
			}
		}

		extraction := extractTableCellsFromGrid(rowPositions, colPositions, cellWords)

		candidate := TableCandidate{
			TableIndex:        idx,
			Rotation:          best.Rotation,
			BBox:              rc.bbox,
			BBoxRotated:       rotateRectForCandidate(rc.bbox, geom.Width, geom.Height, best.Rotation),
			HRulings:          rc.hRulings,
			VRulings:          rc.vRulings,
			IntersectionCount: rc.intersections,
			IsRealRuled:       true,
			Extraction:        extraction,
		}
		if tieDefault {
			candidate.ConfidenceReason = "page rotation tie with zero orientation votes; defaulted to 0"
		}

		// §4.2.3: a grid that is structurally ruled but too sparse to trust
		// as table data is warned-and-skipped, not emitted: its bbox still
		// excludes body words, so the sparse grid doesn't leak into the
		// section reconstructor as prose.
		if extraction.RowCount < 2 || extraction.ColCount < 2 || extraction.EmptyRatio > 0.80 {
			candidate.Rejected = true
			candidate.RejectReason = "degenerate table grid (fewer than 2 rows or columns, or empty-cell ratio above 0.80)"
		}

		candidates = append(candidates, candidate)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].BBox.Y0 != candidates[j].BBox.Y0 {
			return candidates[i].BBox.Y0 < candidates[j].BBox.Y0
		}
		return candidates[i].BBox.X0 < candidates[j].BBox.X0
	})
	for i := range candidates {
		candidates[i].TableIndex = i
	}

	return candidates, nil
}
