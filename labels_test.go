package ircbook

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFindTableLabelPrefersClosestLineAbove(t *testing.T) {
	cfg := DefaultConfig()
	bbox := Rect{X0: 50, Y0: 200, X1: 400, Y1: 400}
	labels := []OrderedLine{
		{Text: "TABLE R602.3 FASTENING SCHEDULE", X0: 50, X1: 300, Top: 130, Bottom: 145},
		{Text: "TABLE R302.1 EXTERIOR WALLS", X0: 50, X1: 300, Top: 170, Bottom: 185},
	}
	binding := FindTableLabel(bbox, labels, cfg)
	require.False(t, binding.Unlabeled)
	require.Equal(t, "R302.1", binding.TableID)
	require.Equal(t, "EXTERIOR WALLS", binding.Title)
}

func TestFindTableLabelFallsBackToTopBand(t *testing.T) {
	cfg := DefaultConfig()
	bbox := Rect{X0: 50, Y0: 200, X1: 400, Y1: 400}
	labels := []OrderedLine{
		{Text: "TABLE R302.1 EXTERIOR WALLS", X0: 50, X1: 300, Top: 205, Bottom: 215},
	}
	binding := FindTableLabel(bbox, labels, cfg)
	require.False(t, binding.Unlabeled)
	require.Equal(t, "R302.1", binding.TableID)
}

func TestFindTableLabelIgnoresCaptionOutsideSearchWindow(t *testing.T) {
	cfg := DefaultConfig()
	bbox := Rect{X0: 50, Y0: 300, X1: 400, Y1: 500}
	labels := []OrderedLine{
		{Text: "TABLE R302.1 EXTERIOR WALLS", X0: 50, X1: 300, Top: 100, Bottom: 110},
	}
	binding := FindTableLabel(bbox, labels, cfg)
	require.True(t, binding.Unlabeled)
}

func TestFindTableLabelUnlabeledWhenNoCaption(t *testing.T) {
	cfg := DefaultConfig()
	bbox := Rect{X0: 50, Y0: 200, X1: 400, Y1: 400}
	binding := FindTableLabel(bbox, nil, cfg)
	require.True(t, binding.Unlabeled)
}

func TestFindTableLabelPreservesVariant(t *testing.T) {
	cfg := DefaultConfig()
	bbox := Rect{X0: 50, Y0: 200, X1: 400, Y1: 400}
	labels := []OrderedLine{
		{Text: "TABLE R302.1(1) FIRE-RESISTANCE-RATED WALL ASSEMBLIES", X0: 50, X1: 360, Top: 170, Bottom: 185},
	}
	binding := FindTableLabel(bbox, labels, cfg)
	require.Equal(t, "R302.1(1)", binding.TableID)
	require.False(t, binding.Continued)
}

func TestFindTableLabelDetectsContinuedMarker(t *testing.T) {
	cfg := DefaultConfig()
	bbox := Rect{X0: 50, Y0: 200, X1: 400, Y1: 400}
	labels := []OrderedLine{
		{Text: "TABLE R302.1(1) (CONTINUED)", X0: 50, X1: 300, Top: 170, Bottom: 185},
	}
	binding := FindTableLabel(bbox, labels, cfg)
	require.Equal(t, "R302.1(1)", binding.TableID)
	require.True(t, binding.Continued)
}

func TestHasContinuedMarker(t *testing.T) {
	require.True(t, HasContinuedMarker("TABLE R302.1(1) (CONTINUED)", "R302.1"))
	require.False(t, HasContinuedMarker("TABLE R602.3 FASTENING SCHEDULE", "R302.1"))
}

func TestBaseTableID(t *testing.T) {
	require.Equal(t, "R302.1", BaseTableID("R302.1(1)"))
	require.Equal(t, "R602.3", BaseTableID("R602.3"))
}
