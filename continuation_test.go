package ircbook

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func tableInput(id, title string, columns []string, rows [][]string, continued, touches bool) PageTableInput {
	return PageTableInput{
		Candidate: TableCandidate{
			BBox:       Rect{X0: 50, Y0: 200, X1: 400, Y1: 700},
			Extraction: TableExtraction{OK: true, Columns: columns, Rows: rows},
		},
		Binding:       TableLabelBinding{TableID: id, Title: title, Continued: continued},
		TouchesBottom: touches,
	}
}

func TestContinuationFinishesNonTouchingTableImmediately(t *testing.T) {
	c := NewContinuationController()
	in := tableInput("R602.3", "FASTENING SCHEDULE", []string{"Item", "Spacing"}, [][]string{{"Nail", "12 in."}}, false, false)

	finished, warnings, err := c.ProcessPage(1, []PageTableInput{in}, false, false)
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Len(t, finished, 1)
	require.Equal(t, "R602.3", finished[0].TableID)
	require.NoError(t, c.Finalize())
}

func TestContinuationMergesContinuedTable(t *testing.T) {
	c := NewContinuationController()
	cols := []string{"Material", "Rating"}
	first := tableInput("R302.1(1)", "FIRE-RESISTANCE RATED", cols,
		[][]string{{"a", "1"}, {"b", "2"}, {"c", "3"}, {"d", "4"}, {"e", "5"}}, false, true)

	finished, _, err := c.ProcessPage(4, []PageTableInput{first}, false, false)
	require.NoError(t, err)
	require.Empty(t, finished)

	second := tableInput("R302.1(1)", "", cols, [][]string{{"f", "6"}, {"g", "7"}, {"h", "8"}, {"i", "9"}}, true, false)
	finished, _, err = c.ProcessPage(5, []PageTableInput{second}, true, false)
	require.NoError(t, err)
	require.Len(t, finished, 1)
	require.Len(t, finished[0].Rows, 9)
	require.Equal(t, []int{4, 5}, finished[0].PDFPages)
	require.Equal(t, "R302.1(1)", finished[0].TableID)
}

func TestContinuationAcceptsCarryoverLabelWithEqualColumns(t *testing.T) {
	c := NewContinuationController()
	cols := []string{"Material", "Rating"}
	first := tableInput("R302.1", "EXTERIOR WALLS", cols, [][]string{{"a", "1"}}, false, true)
	_, _, err := c.ProcessPage(1, []PageTableInput{first}, false, false)
	require.NoError(t, err)

	second := tableInput("R302.1", "EXTERIOR WALLS", cols, [][]string{{"b", "2"}}, false, false)
	finished, _, err := c.ProcessPage(2, []PageTableInput{second}, false, true)
	require.NoError(t, err)
	require.Len(t, finished, 1)
	require.Len(t, finished[0].Rows, 2)
}

func TestContinuationRejectsIDReuseWithoutProof(t *testing.T) {
	c := NewContinuationController()
	first := tableInput("R302.1", "EXTERIOR WALLS", []string{"Material", "Rating"}, [][]string{{"a", "1"}}, false, true)
	_, _, err := c.ProcessPage(1, []PageTableInput{first}, false, false)
	require.NoError(t, err)

	reuse := tableInput("R302.1", "EXTERIOR WALLS", []string{"Different", "Headers"}, [][]string{{"b", "2"}}, false, false)
	_, _, err = c.ProcessPage(2, []PageTableInput{reuse}, false, true)
	require.Error(t, err)
	var pe *PipelineError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, RuleTableContinuation, pe.RuleName)
}

func TestContinuationGridlessPageWithMarkerIsFatal(t *testing.T) {
	c := NewContinuationController()
	first := tableInput("R302.1", "EXTERIOR WALLS", []string{"A"}, [][]string{{"x"}}, false, true)
	_, _, err := c.ProcessPage(1, []PageTableInput{first}, false, false)
	require.NoError(t, err)

	_, _, err = c.ProcessPage(2, nil, true, false)
	require.Error(t, err)
	var pe *PipelineError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, RuleTableContinuation, pe.RuleName)
}

func TestContinuationGridlessCleanPageFlushesPending(t *testing.T) {
	c := NewContinuationController()
	first := tableInput("R302.1", "EXTERIOR WALLS", []string{"A"}, [][]string{{"x"}}, false, true)
	_, _, err := c.ProcessPage(1, []PageTableInput{first}, false, false)
	require.NoError(t, err)

	finished, _, err := c.ProcessPage(2, nil, false, false)
	require.NoError(t, err)
	require.Len(t, finished, 1)
	require.Equal(t, []int{1}, finished[0].PDFPages)
	require.NoError(t, c.Finalize())
}

func TestContinuationRotationMismatchIsFatal(t *testing.T) {
	c := NewContinuationController()
	first := tableInput("R302.1", "EXTERIOR WALLS", []string{"A"}, [][]string{{"x"}}, false, true)
	_, _, err := c.ProcessPage(1, []PageTableInput{first}, false, false)
	require.NoError(t, err)

	second := tableInput("R302.1", "", []string{"A"}, [][]string{{"y"}}, true, false)
	second.Candidate.Rotation = Rotation90
	_, _, err = c.ProcessPage(2, []PageTableInput{second}, true, false)
	require.Error(t, err)
	var pe *PipelineError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, RuleTableContinuation, pe.RuleName)
}

func TestContinuationNamesUnlabeledTables(t *testing.T) {
	c := NewContinuationController()
	in := tableInput("", "", []string{"A"}, [][]string{{"x"}}, false, false)
	in.Binding = TableLabelBinding{Unlabeled: true}

	finished, warnings, err := c.ProcessPage(3, []PageTableInput{in}, false, false)
	require.NoError(t, err)
	require.Len(t, finished, 1)
	require.Equal(t, "UNLABELED_P3_T1", finished[0].TableID)
	require.NotEmpty(t, warnings)
}

func TestContinuationFatalWhenUnterminatedAtDocumentEnd(t *testing.T) {
	c := NewContinuationController()
	first := tableInput("R302.1", "EXTERIOR WALLS", []string{"A"}, [][]string{{"x"}}, false, true)
	_, _, err := c.ProcessPage(1, []PageTableInput{first}, false, false)
	require.NoError(t, err)

	err = c.Finalize()
	require.Error(t, err)
	var pe *PipelineError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, RuleTableContinuation, pe.RuleName)
}
