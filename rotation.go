package ircbook

import "math"

// classifyCharRotation buckets a character's render angle into one of the
// four cardinal rotations the table detector disambiguates against,
// mirroring classify_char_rotation in the reference implementation: each
// angle snaps to the nearest multiple of 90.
func classifyCharRotation(angle float64) PageRotation {
	snapped := int(quantizeAngle(normalizeAngle(angle), 90)) % 360
	switch snapped {
	case 90:
		return Rotation90
	case 270:
		return Rotation270
	case 180:
		// A character rendered upside-down reads the same as 0° for the
		// purpose of column/table orientation; fold it back to 0.
		return Rotation0
	default:
		return Rotation0
	}
}

// countCharsInRotatedBBoxes counts characters whose rotation matches the
// hypothesis's target angle and whose center falls inside any of the
// page's candidate bboxes; a character inside several bboxes is counted
// once. This is the page-level orientation_score: the vote is taken over
// every candidate on the page combined, so one rotation wins for the
// whole page (extract_tables_with_rotation's count_points_in_bboxes).
func countCharsInRotatedBBoxes(chars []Char, bboxes []Rect, rotation PageRotation) int {
	target := requiredCharRotationFor(rotation)
	var count int
	for _, c := range chars {
		if classifyCharRotation(c.Angle) != target {
			continue
		}
		cx, cy := c.Box.CenterX(), c.Box.CenterY()
		for _, b := range bboxes {
			if cx >= b.X0 && cx <= b.X1 && cy >= b.Y0 && cy <= b.Y1 {
				count++
				break
			}
		}
	}
	return count
}

// countCharsInRotatedBBox is the single-bbox form of the vote.
func countCharsInRotatedBBox(chars []Char, bbox Rect, rotation PageRotation) int {
	return countCharsInRotatedBBoxes(chars, []Rect{bbox}, rotation)
}

// requiredCharRotationFor returns the char rotation that reads upright once
// the page is rotated by r: target_angle = (360 - r) mod 360, as in the
// reference implementation.
func requiredCharRotationFor(r PageRotation) PageRotation {
	target := int(normalizeAngle(float64(360 - int(r))))
	switch target {
	case 90:
		return Rotation90
	case 270:
		return Rotation270
	default:
		return Rotation0
	}
}

// rotateRectForCandidate maps a bbox from the page's native (0°) frame into
// the coordinate frame implied by rotating the page by r, so rulings and
// words captured at 0° can be evaluated as if the table were upright.
func rotateRectForCandidate(r Rect, pageWidth, pageHeight float64, rotation PageRotation) Rect {
	switch rotation {
	case Rotation90:
		return Rect{X0: r.Y0, Y0: pageWidth - r.X1, X1: r.Y1, Y1: pageWidth - r.X0}
	case Rotation270:
		return Rect{X0: pageHeight - r.Y1, Y0: r.X0, X1: pageHeight - r.Y0, Y1: r.X1}
	default:
		return r
	}
}

// orientationScore ranks a candidate rotation by (charVotes, intersections,
// area), the same three-key comparison the reference implementation sorts
// rotation_results by before picking the best (and detecting a tie).
type orientationScore struct {
	Rotation      PageRotation
	CharVotes     int
	Intersections int
	Area          float64
}

func (s orientationScore) less(o orientationScore) bool {
	if s.CharVotes != o.CharVotes {
		return s.CharVotes < o.CharVotes
	}
	if s.Intersections != o.Intersections {
		return s.Intersections < o.Intersections
	}
	if s.Area != o.Area {
		return s.Area < o.Area
	}
	return s.Rotation > o.Rotation // lower rotation wins ties, mirrors "-rotation" sort key
}

// pickBestRotation selects the winning candidate rotation or reports an
// ambiguous tie. Mirrors the reference implementation's tie-breaking rule:
// a true three-way tie on all scoring keys, with every candidate scoring
// zero char votes, silently defaults to rotation 0; any other tie is fatal.
func pickBestRotation(scores []orientationScore) (best orientationScore, tieBreakerDefault bool, ambiguous bool) {
	if len(scores) == 0 {
		return orientationScore{}, false, false
	}
	best = scores[0]
	for _, s := range scores[1:] {
		if best.less(s) {
			best = s
		}
	}

	var tiedWithBest []orientationScore
	for _, s := range scores {
		if s.CharVotes == best.CharVotes && s.Intersections == best.Intersections && s.Area == best.Area {
			tiedWithBest = append(tiedWithBest, s)
		}
	}
	if len(tiedWithBest) <= 1 {
		return best, false, false
	}
	if best.CharVotes == 0 {
		for _, s := range tiedWithBest {
			if s.Rotation == Rotation0 {
				return s, true, false
			}
		}
	}
	return best, false, true
}

// angleClose reports whether two angles (degrees) are within tol of each
// other, accounting for wraparound at 360.
func angleClose(a, b, tol float64) bool {
	d := math.Abs(normalizeAngle(a) - normalizeAngle(b))
	if d > 180 {
		d = 360 - d
	}
	return d <= tol
}
