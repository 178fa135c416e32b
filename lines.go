package ircbook

import (
	"math"

	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/enums"
	"github.com/klippa-app/go-pdfium/references"
	"github.com/klippa-app/go-pdfium/requests"
)

const rulingAxisTolerance = 1.0 // points; a segment within this of perfectly horizontal/vertical counts as a ruling

// extractRulingsFromPage walks every path object on the page and keeps the
// axis-aligned horizontal and vertical segments: the rulings the table
// detector later assembles into a bipartite grid. Adapted from the
// teacher's line-object walk: same pdfium object/segment API, narrowed to
// emit Ruling rather than markdown-oriented Edge values.
func extractRulingsFromPage(instance pdfium.Pdfium, page references.FPDF_PAGE, pageWidth, pageHeight float64) ([]Ruling, error) {
	count, err := instance.FPDFPage_CountObjects(&requests.FPDFPage_CountObjects{
		Page: requests.Page{ByReference: &page},
	})
	if err != nil {
		return nil, err
	}

	var rulings []Ruling
	for i := 0; i < count.Count; i++ {
		obj, err := instance.FPDFPage_GetObject(&requests.FPDFPage_GetObject{
			Page:  requests.Page{ByReference: &page},
			Index: i,
		})
		if err != nil {
			continue
		}

		objType, err := instance.FPDFPageObj_GetType(&requests.FPDFPageObj_GetType{
			PageObject: obj.PageObject,
		})
		if err != nil {
			continue
		}
		if objType.Type != enums.FPDF_PAGEOBJ_PATH {
			continue
		}

		bounds, err := instance.FPDFPageObj_GetBounds(&requests.FPDFPageObj_GetBounds{
			PageObject: obj.PageObject,
		})
		if err != nil {
			continue
		}

		rect := Rect{
			X0: float64(bounds.Left),
			Y0: pageHeight - float64(bounds.Top),
			X1: float64(bounds.Right),
			Y1: pageHeight - float64(bounds.Bottom),
		}

		rulings = append(rulings, boundsToRulings(rect)...)
	}

	return filterPageBorderRulings(rulings, pageWidth, pageHeight), nil
}

// boundsToRulings classifies a path object's bounding box as a horizontal
// ruling or a vertical ruling (a thin filled rectangle, which a table border
// is often rendered as, counts as one such line), never both. A bounding box
// with substantial extent on both axes yields no ruling at all: its sides
// are not split out, so a stroked rectangle contributes nothing.
func boundsToRulings(r Rect) []Ruling {
	w, h := r.Width(), r.Height()
	var out []Ruling
	if h <= rulingAxisTolerance && w > h {
		out = append(out, Ruling{X0: r.X0, X1: r.X1, Top: r.Y0, Bottom: r.Y0, Orientation: OrientationHorizontal})
	}
	if w <= rulingAxisTolerance && h > w {
		out = append(out, Ruling{X0: r.X0, X1: r.X0, Top: r.Y0, Bottom: r.Y1, Orientation: OrientationVertical})
	}
	return out
}

// isPageBorderRuling reports whether a ruling merely traces the page's own
// edge (a decorative border, not a table grid line): within 20pt of an
// edge and spanning at least 90% of that edge. filterPageBorderRulings
// drops such rulings.
func isPageBorderRuling(r Ruling, pageWidth, pageHeight float64) bool {
	const tolerance = 20.0
	const spanRatio = 0.9

	if r.Orientation == OrientationHorizontal {
		nearTopOrBottom := r.Top <= tolerance || math.Abs(r.Top-pageHeight) <= tolerance
		return nearTopOrBottom && r.Length() >= pageWidth*spanRatio
	}
	nearLeftOrRight := r.X0 <= tolerance || math.Abs(r.X0-pageWidth) <= tolerance
	return nearLeftOrRight && r.Length() >= pageHeight*spanRatio
}

func filterPageBorderRulings(rulings []Ruling, pageWidth, pageHeight float64) []Ruling {
	out := rulings[:0]
	for _, r := range rulings {
		if !isPageBorderRuling(r, pageWidth, pageHeight) {
			out = append(out, r)
		}
	}
	return out
}
