package ircbook

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
)

// WriteSection writes section_<id>.txt with its PDF_PAGE/SECTION_ID/SECTION
// header lines followed by the accumulated body text. Grounded on
// write_section.
func WriteSection(entry SectionStackEntry, outDir string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "PDF_PAGE: %s\n", formatPageRange(entry.StartPage, entry.EndPage))
	fmt.Fprintf(&b, "SECTION_ID: %s\n", entry.ID)
	chapter := entry.Chapter
	if chapter == "" {
		chapter = "UNKNOWN"
	}
	fmt.Fprintf(&b, "SECTION: IRC 2021 | %s | Section %s\n\n", chapter, entry.ID)
	for _, line := range entry.Lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}

	path := filepath.Join(outDir, "section_"+sanitizeID(entry.ID)+".txt")
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// WriteTable writes the .txt/.csv/.json triple for a finished table.
// Grounded on write_table; a gap in the table's contributing page list is
// fatal here, at emission, since it means a continuation was silently
// skipped upstream.
func WriteTable(t FinishedTable, outDir string) error {
	pages, err := contiguousPageRange(t.PDFPages, t.TableID)
	if err != nil {
		return err
	}
	id := sanitizeID(t.TableID)

	var txt strings.Builder
	fmt.Fprintf(&txt, "PDF_PAGE: %s\n", pages)
	fmt.Fprintf(&txt, "TABLE_ID: %s\n", t.TableID)
	fmt.Fprintf(&txt, "TITLE: %s\n", t.Title)
	txt.WriteString("COLUMNS:\n")
	for _, c := range t.Columns {
		fmt.Fprintf(&txt, "  %s\n", c)
	}
	txt.WriteString("ROWS:\n")
	for _, row := range t.Rows {
		fmt.Fprintf(&txt, "  %s\n", strings.Join(row, " | "))
	}
	txt.WriteString("FOOTNOTES:\n")
	for _, fn := range t.Footnotes {
		fmt.Fprintf(&txt, "  %s\n", fn)
	}
	if err := os.WriteFile(filepath.Join(outDir, "table_"+id+".txt"), []byte(txt.String()), 0o644); err != nil {
		return err
	}

	csvFile, err := os.Create(filepath.Join(outDir, "table_"+id+".csv"))
	if err != nil {
		return err
	}
	defer csvFile.Close()
	w := csv.NewWriter(csvFile)
	if len(t.Columns) > 0 {
		_ = w.Write(t.Columns)
	}
	for _, row := range t.Rows {
		_ = w.Write(row)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	doc := map[string]any{
		"table_id":  t.TableID,
		"title":     t.Title,
		"columns":   t.Columns,
		"rows":      t.Rows,
		"footnotes": t.Footnotes,
		"pdf_pages": t.PDFPages,
		"rotation":  int(t.Rotation),
		"bboxes":    t.BBoxes,
	}
	if err := ValidateTableJSON(doc); err != nil {
		return NewPipelineError(RuleUnhandledException, 0, "table_"+id+".json failed schema validation: "+err.Error(), nil)
	}
	data, err := sonic.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outDir, "table_"+id+".json"), data, 0o644)
}

// WriteFallbackPage writes fallback_text/page_<NNNN>.txt when the document
// produced zero sections overall. Grounded on write_fallback_page.
func WriteFallbackPage(page int, lines []OrderedLine, outDir string) error {
	dir := filepath.Join(outDir, "fallback_text")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "PDF_PAGE: %d\n", page)
	b.WriteString("MODE: UNSECTIONED_FALLBACK\n\n")
	for _, ln := range lines {
		b.WriteString(ln.Text)
		b.WriteByte('\n')
	}
	return os.WriteFile(filepath.Join(dir, fmt.Sprintf("page_%04d.txt", page)), []byte(b.String()), 0o644)
}

// formatPageRange renders a page span as "12" or "12–14" (en dash).
func formatPageRange(start, end int) string {
	if start == end {
		return fmt.Sprintf("%d", start)
	}
	return fmt.Sprintf("%d–%d", start, end)
}

// contiguousPageRange renders a table's contributing page list as a page
// range, failing if the list has a gap: a table cannot skip a page.
func contiguousPageRange(pages []int, tableID string) (string, error) {
	if len(pages) == 0 {
		return "", NewPipelineError(RuleTableContinuation, 0, "table "+tableID+" has no contributing pages", nil)
	}
	for i := 1; i < len(pages); i++ {
		if pages[i] != pages[i-1]+1 {
			return "", NewPipelineError(RuleTableContinuation, pages[i],
				"table "+tableID+" has a gap in its contributing page list", map[string]any{
					"pages": fmt.Sprintf("%v", pages),
				})
		}
	}
	return formatPageRange(pages[0], pages[len(pages)-1]), nil
}

func sanitizeID(id string) string {
	return strings.NewReplacer("/", "_", " ", "_", "(", "_", ")", "").Replace(id)
}
