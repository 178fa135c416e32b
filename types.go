package ircbook

// Rect is an axis-aligned bounding box in page coordinates, origin top-left.
type Rect struct {
	X0 float64
	Y0 float64
	X1 float64
	Y1 float64
}

func (r Rect) Width() float64    { return r.X1 - r.X0 }
func (r Rect) Height() float64   { return r.Y1 - r.Y0 }
func (r Rect) CenterX() float64  { return (r.X0 + r.X1) / 2 }
func (r Rect) CenterY() float64  { return (r.Y0 + r.Y1) / 2 }

// RGBA is a fill color sampled from a character's render state.
type RGBA struct {
	R, G, B, A uint
}

// Char is a single glyph with the geometry and font metadata the pipeline
// needs to classify header/footer bands, measure character width, and
// disambiguate table rotation.
type Char struct {
	Text       rune
	Box        Rect
	FontSize   float64
	FontName   string
	IsBold     bool
	Angle      float64 // degrees, from the character's render matrix
	FillColor  RGBA
}

// Word is a run of characters joined without intervening whitespace.
type Word struct {
	Text     string
	Box      Rect
	FontSize float64
	FontName string
	IsBold   bool
	IsItalic bool
}

// RulingOrientation distinguishes horizontal from vertical rulings.
type RulingOrientation string

const (
	OrientationHorizontal RulingOrientation = "h"
	OrientationVertical   RulingOrientation = "v"
)

// Ruling is an axis-aligned vector segment contributed by a page path object
// whose bounding box is thin on one axis, such as a line or a thin filled
// rectangle; the sides of a larger rectangle are not split out as rulings
// (§3 GLOSSARY "Ruling").
type Ruling struct {
	X0, X1, Top, Bottom float64
	Orientation          RulingOrientation
}

func (r Ruling) Length() float64 {
	if r.Orientation == OrientationHorizontal {
		return r.X1 - r.X0
	}
	return r.Bottom - r.Top
}

// ColumnClass is the assigned reading-order class of a reconstructed line.
type ColumnClass string

const (
	ColumnLeft               ColumnClass = "left"
	ColumnRight              ColumnClass = "right"
	ColumnSpanning           ColumnClass = "spanning"
	ColumnCenterStructural   ColumnClass = "center_structural"
	ColumnSingle             ColumnClass = "single"
)

// LineRole refines why a spanning line was accepted.
type LineRole string

const (
	RoleSpanningHeader    LineRole = "spanning_header"
	RoleSpanningReference LineRole = "spanning_reference"
	RoleCenterStructural  LineRole = "center_structural"
)

// OrderedLine is a reconstructed line of body text, positioned and
// classified per §4.3.
type OrderedLine struct {
	Text     string
	X0, X1   float64
	Top      float64
	Bottom   float64
	FontSize float64
	IsBold   bool
	Column   ColumnClass
	Role     LineRole
	Words    []Word
}

// PageRotation is one of the three rotations the table detector considers.
type PageRotation int

const (
	Rotation0   PageRotation = 0
	Rotation90  PageRotation = 90
	Rotation270 PageRotation = 270
)

// TableExtraction is the result of mapping a candidate's ruling grid onto
// the words inside its bbox.
type TableExtraction struct {
	OK         bool
	Columns    []string
	Rows       [][]string
	RowCount   int
	ColCount   int
	EmptyRatio float64
	Reason     string
}

// TableCandidate is a bipartite-graph connected component of rulings that
// may be a real ruled table, in one candidate rotation's frame (§4.2).
type TableCandidate struct {
	TableIndex        int
	Rotation          PageRotation
	BBox              Rect // in original (0°) page coordinates
	BBoxRotated       Rect // in the candidate rotation's frame
	HRulings          []Ruling
	VRulings          []Ruling
	IntersectionCount int
	ConfidenceReason  string
	IsRealRuled       bool
	Extraction        TableExtraction
	// Rejected marks a candidate whose grid was too sparse to trust as table
	// data (§4.2.3's empty_cell_ratio/row/col rejection). Its bbox still
	// excludes body words from the section reconstructor, but it is not
	// bound to a label, carried through continuation, or written to disk.
	Rejected       bool
	RejectReason   string
}

// TableLabelBinding records which caption line, if any, was bound to a
// table candidate (§4.5).
type TableLabelBinding struct {
	TableID   string
	Title     string
	LabelText string
	Unlabeled bool
	Continued bool
}

// PendingTable is a table whose grid touched the page's bottom band on its
// most recent contributing page and so may continue onto the next (§4.6).
type PendingTable struct {
	TableID    string
	Title      string
	Columns    []string
	Rows       [][]string
	Footnotes  []string
	PDFPages   []int
	Rotation   PageRotation
	BBoxes     []Rect
}

// SectionStackEntry is an open, not-yet-written section (§3, §4.4).
type SectionStackEntry struct {
	ID        string
	Depth     int
	Lines     []string
	StartPage int
	EndPage   int
	Chapter   string
}

// PageGeometry is everything the primitive-intake stage produced for one
// page, before the pipeline removes table interiors or splits columns.
type PageGeometry struct {
	PageNumber          int
	Width               float64
	Height              float64
	Chars               []Char
	Words               []Word
	Rulings             []Ruling
	BodyMedianCharWidth float64 // median width of a body (non-header/footer) character, §4.3 w̄
}
