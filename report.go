package ircbook

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"golang.org/x/image/draw"
)

// PageReportEntry records one page's outcome for the run-level parse
// report.
type PageReportEntry struct {
	Page          int      `json:"page"`
	SectionsOpened []string `json:"sections_opened,omitempty"`
	TablesWritten []string `json:"tables_written,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
	Errors        []string `json:"errors,omitempty"`
}

// ParseReport accumulates per-page outcomes across the whole run and is
// serialized to _parse_report.json. Its RunID (a fresh UUID per
// invocation) never appears in any section or table output file, so the
// determinism property over those files is unaffected by it.
type ParseReport struct {
	RunID           string            `json:"run_id"`
	SourcePDF       string            `json:"source_pdf"`
	SHA256          string            `json:"sha256"`
	SectionsExtracted int             `json:"sections_extracted"`
	TablesExtracted   int             `json:"tables_extracted"`
	FallbackMode      bool            `json:"fallback_mode"`
	Warnings          []string        `json:"warnings,omitempty"`
	Pages             []PageReportEntry `json:"pages"`
}

// NewParseReport stamps a fresh report with a run id. Timestamps are
// deliberately not recorded here; the caller may add one from outside the
// pipeline if needed.
func NewParseReport(sourcePDF, sha256 string) *ParseReport {
	return &ParseReport{
		RunID:     uuid.NewString(),
		SourcePDF: sourcePDF,
		SHA256:    sha256,
	}
}

func (r *ParseReport) AddWarning(w string) { r.Warnings = append(r.Warnings, w) }

func (r *ParseReport) AddPage(entry PageReportEntry) { r.Pages = append(r.Pages, entry) }

// WriteReport serializes the report with sonic, matching the domain
// stack's JSON encoder for every other pipeline artifact.
func WriteReport(report *ParseReport, outDir string) error {
	data, err := sonic.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outDir, "_parse_report.json"), data, 0o644)
}

// DebugPageDump is the per-page structured snapshot written when
// Config.DebugDump is set: word/line/table geometry, useful for
// diagnosing a misclassified column split or an ambiguous table rotation.
type DebugPageDump struct {
	Page    int            `json:"page"`
	Lines   []OrderedLine  `json:"lines"`
	Tables  []TableCandidate `json:"tables"`
}

func WriteDebugDumpJSON(dump DebugPageDump, path string) error {
	data, err := sonic.MarshalIndent(dump, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// WriteDebugOverlayPNG renders the page's table candidate bboxes as
// one-pixel red rectangle outlines over a white canvas sized to the page,
// mirroring the reference implementation's img.draw_rects(..., stroke="red")
// debug overlay. Rulings are not drawn and the page itself is not rendered.
// x/image/draw fills the white background; strokeRect sets the outline
// pixels one by one.
func WriteDebugOverlayPNG(geom *PageGeometry, candidates []TableCandidate, outPath string) error {
	img := image.NewRGBA(image.Rect(0, 0, int(geom.Width), int(geom.Height)))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	red := color.RGBA{R: 220, A: 255}
	for _, c := range candidates {
		strokeRect(img, c.BBox, red)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

func strokeRect(img *image.RGBA, r Rect, c color.Color) {
	x0, y0, x1, y1 := int(r.X0), int(r.Y0), int(r.X1), int(r.Y1)
	for x := x0; x <= x1; x++ {
		img.Set(x, y0, c)
		img.Set(x, y1, c)
	}
	for y := y0; y <= y1; y++ {
		img.Set(x0, y, c)
		img.Set(x1, y, c)
	}
}
