package ircbook

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteSectionProducesHeaderAndBody(t *testing.T) {
	dir := t.TempDir()
	entry := SectionStackEntry{
		ID: "R301.2", Chapter: "BUILDING PLANNING", StartPage: 10, EndPage: 11,
		Lines: []string{"R301.2 Climatic and geographic design criteria.", "Buildings shall be constructed per Table R301.2."},
	}
	require.NoError(t, WriteSection(entry, dir))

	data, err := os.ReadFile(filepath.Join(dir, "section_R301.2.txt"))
	require.NoError(t, err)
	require.Contains(t, string(data), "PDF_PAGE: 10–11")
	require.Contains(t, string(data), "SECTION_ID: R301.2")
	require.Contains(t, string(data), "SECTION: IRC 2021 | BUILDING PLANNING | Section R301.2")
	require.Contains(t, string(data), "Buildings shall be constructed")
}

func TestWriteSectionSinglePageRange(t *testing.T) {
	dir := t.TempDir()
	entry := SectionStackEntry{ID: "R301", StartPage: 12, EndPage: 12, Lines: []string{"R301 Design Criteria"}}
	require.NoError(t, WriteSection(entry, dir))

	data, err := os.ReadFile(filepath.Join(dir, "section_R301.txt"))
	require.NoError(t, err)
	require.Contains(t, string(data), "PDF_PAGE: 12\n")
}

func TestWriteTableProducesTxtCsvJSON(t *testing.T) {
	dir := t.TempDir()
	table := FinishedTable{
		TableID: "R302.1(1)", Title: "FIRE-RESISTANCE-RATED WALL ASSEMBLIES", PDFPages: []int{12, 13},
		Columns:   []string{"Material", "Rating"},
		Rows:      [][]string{{"Gypsum", "1 hr"}, {"Masonry", "2 hr"}},
		Footnotes: []string{"a. Applies to exterior walls only."},
	}
	require.NoError(t, WriteTable(table, dir))

	for _, ext := range []string{"txt", "csv", "json"} {
		_, err := os.Stat(filepath.Join(dir, "table_R302.1_1."+ext))
		require.NoError(t, err)
	}

	txt, err := os.ReadFile(filepath.Join(dir, "table_R302.1_1.txt"))
	require.NoError(t, err)
	require.Contains(t, string(txt), "PDF_PAGE: 12–13")
	require.Contains(t, string(txt), "TABLE_ID: R302.1(1)")
	require.Contains(t, string(txt), "TITLE: FIRE-RESISTANCE-RATED WALL ASSEMBLIES")
	require.Contains(t, string(txt), "Gypsum | 1 hr")
	require.Contains(t, string(txt), "FOOTNOTES:")
	require.Contains(t, string(txt), "a. Applies to exterior walls only.")

	jsonData, err := os.ReadFile(filepath.Join(dir, "table_R302.1_1.json"))
	require.NoError(t, err)
	require.Contains(t, string(jsonData), `"table_id"`)
	require.Contains(t, string(jsonData), `"footnotes"`)
}

func TestWriteTableRejectsPageGap(t *testing.T) {
	dir := t.TempDir()
	table := FinishedTable{
		TableID: "R602.3", PDFPages: []int{12, 14},
		Columns: []string{"Item"}, Rows: [][]string{{"Nail"}},
	}
	err := WriteTable(table, dir)
	require.Error(t, err)
	var pe *PipelineError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, RuleTableContinuation, pe.RuleName)
}

func TestWriteFallbackPage(t *testing.T) {
	dir := t.TempDir()
	lines := []OrderedLine{{Text: "Unsectioned prose."}}
	require.NoError(t, WriteFallbackPage(3, lines, dir))

	data, err := os.ReadFile(filepath.Join(dir, "fallback_text", "page_0003.txt"))
	require.NoError(t, err)
	require.Contains(t, string(data), "MODE: UNSECTIONED_FALLBACK")
	require.Contains(t, string(data), "Unsectioned prose.")
}

func TestFormatPageRange(t *testing.T) {
	require.Equal(t, "7", formatPageRange(7, 7))
	require.Equal(t, "7–9", formatPageRange(7, 9))
}

func TestContiguousPageRange(t *testing.T) {
	s, err := contiguousPageRange([]int{4, 5, 6}, "R302.1")
	require.NoError(t, err)
	require.Equal(t, "4–6", s)

	_, err = contiguousPageRange([]int{4, 6}, "R302.1")
	require.Error(t, err)
}
