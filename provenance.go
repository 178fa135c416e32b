package ircbook

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"strings"

	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/references"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pkg/errors"
)

// ComputePDFSHA256 streams the file in 1MB chunks and returns its hex
// digest, matching compute_pdf_sha256 in the reference implementation.
func ComputePDFSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, "open pdf for hashing")
	}
	defer f.Close()

	h := sha256.New()
	buf := bufio.NewReaderSize(f, 1<<20)
	if _, err := io.Copy(h, buf); err != nil {
		return "", errors.Wrap(err, "hash pdf")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// CheckAllowlist enforces the provenance guard: if the allowlist file
// exists, the hash must be a member or the run fails RulePDFHashNotAllowed.
// If it does not exist, it is auto-seeded with the current hash and a
// warning is returned for the caller to record on the parse report.
func CheckAllowlist(path, hash string) (warning string, err error) {
	data, readErr := os.ReadFile(path)
	if readErr != nil {
		if !os.IsNotExist(readErr) {
			return "", errors.Wrap(readErr, "read allowlist")
		}
		if writeErr := os.WriteFile(path, []byte(hash+"\n"), 0o644); writeErr != nil {
			return "", errors.Wrap(writeErr, "seed allowlist")
		}
		return "allowlist did not exist; seeded with current PDF hash " + hash, nil
	}

	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == hash {
			return "", nil
		}
	}
	return "", NewPipelineError(RulePDFHashNotAllowed, 0, "pdf hash "+hash+" not present in "+path, nil)
}

// VerifyProvenance runs the independent structural check ahead of pdfium:
// pdfcpu parses the file's cross-reference table and reports encryption,
// catching malformed or unexpectedly-encrypted input before the heavier
// pdfium pipeline touches it.
func VerifyProvenance(path string) error {
	ctx, err := api.ReadContextFile(path)
	if err != nil {
		return NewPipelineError(RulePDFInputMissing, 0, "pdfcpu failed to parse cross-reference table: "+err.Error(), nil)
	}
	if ctx.Encrypt != nil {
		return NewPipelineError(RulePDFInputMissing, 0, "document is encrypted", nil)
	}
	return nil
}

// ExtractPage pulls every char, word, and ruling off one pdfium page and
// returns the raw geometry the rest of the pipeline consumes. It is the
// direct descendant of the teacher's char/word extraction loop, retargeted
// onto the Char/Word/Ruling primitives this pipeline classifies against.
// Enforces the primitive-sufficiency guards from §4.1: every character must
// carry font size and font name, the header and footer bands cannot both be
// empty, and the body must yield a computable median character width. A
// page with no characters at all is returned with only its dimensions, and
// none of these guards is applied to it.
func ExtractPage(instance pdfium.Pdfium, page references.FPDF_PAGE, pageNumber int, cfg Config) (*PageGeometry, error) {
	width, err := instance.FPDF_GetPageWidthF(&requests.FPDF_GetPageWidthF{Page: requests.Page{ByReference: &page}})
	if err != nil {
		return nil, errors.Wrap(err, "get page width")
	}
	height, err := instance.FPDF_GetPageHeightF(&requests.FPDF_GetPageHeightF{Page: requests.Page{ByReference: &page}})
	if err != nil {
		return nil, errors.Wrap(err, "get page height")
	}

	textPage, err := instance.FPDFText_LoadPage(&requests.FPDFText_LoadPage{Page: requests.Page{ByReference: &page}})
	if err != nil {
		return nil, errors.Wrap(err, "load text page")
	}
	defer instance.FPDFText_ClosePage(&requests.FPDFText_ClosePage{TextPage: textPage.TextPage})

	count, err := instance.FPDFText_CountChars(&requests.FPDFText_CountChars{TextPage: textPage.TextPage})
	if err != nil {
		return nil, errors.Wrap(err, "count chars")
	}

	geom := &PageGeometry{PageNumber: pageNumber, Width: float64(width.PageWidth), Height: float64(height.PageHeight)}
	if count.Count == 0 {
		return geom, nil
	}

	chars, err := extractChars(instance, textPage.TextPage, count.Count, geom.Height)
	if err != nil {
		return nil, errors.Wrap(err, "extract chars")
	}
	if missing := countMissingFontMetadata(chars); missing > 0 {
		return nil, NewPipelineError(RuleFontMetadataMissing, pageNumber,
			"character lacks font size or font name", map[string]any{"missing_count": missing})
	}
	geom.Chars = chars
	geom.Words = groupCharsIntoWords(chars)

	headerBand := geom.Height * cfg.HeaderRegionRatio
	footerBand := geom.Height * (1 - cfg.FooterRegionRatio)
	var headerChars, footerChars, bodyChars []Char
	for _, c := range chars {
		switch {
		case c.Box.Y0 <= headerBand:
			headerChars = append(headerChars, c)
		case c.Box.Y1 >= footerBand:
			footerChars = append(footerChars, c)
		default:
			bodyChars = append(bodyChars, c)
		}
	}
	if len(headerChars) == 0 && len(footerChars) == 0 {
		return nil, NewPipelineError(RuleHeaderFooterMissing, pageNumber,
			"both header and footer bands are empty", nil)
	}

	if len(bodyChars) == 0 {
		return nil, NewPipelineError(RuleBodyCharMissing, pageNumber,
			"page has header/footer content but no body characters", nil)
	}
	widths := make([]float64, 0, len(bodyChars))
	for _, c := range bodyChars {
		widths = append(widths, c.Box.Width())
	}
	if len(widths) == 0 {
		return nil, NewPipelineError(RuleCharWidthMissing, pageNumber,
			"body median character width is uncomputable", nil)
	}
	geom.BodyMedianCharWidth = percentile(widths, 50)

	rulings, err := extractRulingsFromPage(instance, page, geom.Width, geom.Height)
	if err != nil {
		rulings = nil // non-fatal: a page may legitimately have no vector rulings
	}
	geom.Rulings = rulings

	return geom, nil
}

// countMissingFontMetadata counts characters whose font size or font name
// could not be retrieved. Grounded on §4.1's FONT_METADATA_MISSING guard:
// the pipeline must fail rather than silently substitute a default.
func countMissingFontMetadata(chars []Char) int {
	var missing int
	for _, c := range chars {
		if c.FontSize <= 0 || c.FontName == "" {
			missing++
		}
	}
	return missing
}

func extractChars(instance pdfium.Pdfium, textPage references.FPDF_TEXTPAGE, count int, pageHeight float64) ([]Char, error) {
	chars := make([]Char, 0, count)
	for i := range count {
		uni, err := instance.FPDFText_GetUnicode(&requests.FPDFText_GetUnicode{TextPage: textPage, Index: i})
		if err != nil || uni.Unicode == 0 {
			continue
		}
		box, err := instance.FPDFText_GetCharBox(&requests.FPDFText_GetCharBox{TextPage: textPage, Index: i})
		if err != nil {
			continue
		}
		rect := Rect{
			X0: box.Left,
			Y0: pageHeight - box.Top,
			X1: box.Right,
			Y1: pageHeight - box.Bottom,
		}

		var fontSize float64
		if fs, fsErr := instance.FPDFText_GetFontSize(&requests.FPDFText_GetFontSize{TextPage: textPage, Index: i}); fsErr == nil {
			fontSize = fs.FontSize
		}
		weight := 400
		if w, err := instance.FPDFText_GetFontWeight(&requests.FPDFText_GetFontWeight{TextPage: textPage, Index: i}); err == nil {
			weight = w.FontWeight
		}
		var fontName string
		if fi, fiErr := instance.FPDFText_GetFontInfo(&requests.FPDFText_GetFontInfo{TextPage: textPage, Index: i}); fiErr == nil {
			fontName = fi.FontName
		}
		fill := RGBA{A: 255}
		if fc, err := instance.FPDFText_GetFillColor(&requests.FPDFText_GetFillColor{TextPage: textPage, Index: i}); err == nil {
			fill = RGBA{R: fc.R, G: fc.G, B: fc.B, A: fc.A}
		}
		angle := float32(0)
		if a, err := instance.FPDFText_GetCharAngle(&requests.FPDFText_GetCharAngle{TextPage: textPage, Index: i}); err == nil {
			angle = a.CharAngle
		}

		chars = append(chars, Char{
			Text:      rune(uni.Unicode),
			Box:       rect,
			FontSize:  fontSize,
			FontName:  fontName,
			IsBold:    weight >= 700,
			Angle:     normalizeAngle(float64(angle) * 180 / 3.14159265358979),
			FillColor: fill,
		})
	}
	return chars, nil
}

func groupCharsIntoWords(chars []Char) []Word {
	if len(chars) == 0 {
		return nil
	}
	var words []Word
	var run []Char
	var box Rect
	started := false

	flush := func() {
		if len(run) == 0 {
			return
		}
		var text strings.Builder
		var boldCount int
		for _, c := range run {
			text.WriteRune(c.Text)
			if c.IsBold {
				boldCount++
			}
		}
		words = append(words, Word{
			Text:     text.String(),
			Box:      box,
			FontSize: run[0].FontSize,
			FontName: run[0].FontName,
			IsBold:   boldCount*2 >= len(run),
		})
		run = nil
		started = false
	}

	for i, c := range chars {
		isSpace := c.Text == ' ' || c.Text == '\t' || c.Text == '\n' || c.Text == '\r'
		if !isSpace {
			if !started {
				box = c.Box
				started = true
			} else {
				box = mergeRects(box, c.Box)
			}
			run = append(run, c)
		}
		if (isSpace || i == len(chars)-1) && len(run) > 0 {
			flush()
		}
	}
	return words
}
