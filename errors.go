package ircbook

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Rule is a fatal-error tag from the pipeline's error taxonomy.
type Rule string

const (
	// Input / provenance.
	RulePDFInputMissing  Rule = "PDF_INPUT_MISSING"
	RulePDFHashNotAllowed Rule = "PDF_HASH_NOT_ALLOWED"
	RuleAmendmentScan    Rule = "AMENDMENT_SCAN"
	RulePageRangeInvalid Rule = "PAGE_RANGE_INVALID"

	// Primitive sufficiency.
	RuleCharDataMissing     Rule = "CHAR_DATA_MISSING"
	RuleFontMetadataMissing Rule = "FONT_METADATA_MISSING"
	RuleHeaderFooterMissing Rule = "HEADER_FOOTER_MISSING"
	RuleCharWidthMissing    Rule = "CHAR_WIDTH_MISSING"
	RuleBodyCharMissing     Rule = "BODY_CHAR_MISSING"
	RuleLineDataMissing     Rule = "LINE_DATA_MISSING"

	// Column split.
	RuleColumnSplitMissing        Rule = "COLUMN_SPLIT_MISSING"
	RuleColumnSplitCompeting      Rule = "COLUMN_SPLIT_COMPETING"
	RuleColumnSplitOffcenter      Rule = "COLUMN_SPLIT_OFFCENTER"
	RuleColumnSplitClusterMissing Rule = "COLUMN_SPLIT_CLUSTER_MISSING"
	RuleColumnSplitOverlap        Rule = "COLUMN_SPLIT_OVERLAP"
	RuleColumnSplitCross          Rule = "COLUMN_SPLIT_CROSS"
	RuleGutterLineAmbiguous       Rule = "GUTTER_LINE_AMBIGUOUS"
	RuleColumnBodyMissing         Rule = "COLUMN_BODY_MISSING"
	RuleColumnBoundsMissing       Rule = "COLUMN_BOUNDS_MISSING"

	// Tables.
	RuleTableRotationAmbiguous Rule = "TABLE_ROTATION_AMBIGUOUS"
	RuleTableContinuation      Rule = "TABLE_CONTINUATION"

	// Sections.
	RuleSectionDuplicate       Rule = "SECTION_DUPLICATE"
	RuleSectionHeaderSkipped   Rule = "SECTION_HEADER_SKIPPED"
	RuleSectionAppendViolation Rule = "SECTION_APPEND_VIOLATION"
	RuleSectionIntegrity       Rule = "SECTION_INTEGRITY_VIOLATION"

	// Geometry / catch-all.
	RuleRotationInvalid Rule = "ROTATION_INVALID"
	RulePDFPageRange    Rule = "PDF_PAGE_RANGE"
	RuleMedianEmpty     Rule = "MEDIAN_EMPTY"
	RulePercentileEmpty Rule = "PERCENTILE_EMPTY"
	RuleUnhandledException Rule = "UNHANDLED_EXCEPTION"
)

// PipelineError is the single fatal-error shape the driver can surface.
// Its Error() string renders as RULE=<KIND> PDF_PAGE=<n> detail=<…> [stats={…}].
type PipelineError struct {
	RuleName Rule
	Page     int
	Detail   string
	Stats    map[string]any
	cause    error
}

func (e *PipelineError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "RULE=%s PDF_PAGE=%d detail=%s", e.RuleName, e.Page, e.Detail)
	if len(e.Stats) > 0 {
		keys := make([]string, 0, len(e.Stats))
		for k := range e.Stats {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, e.Stats[k]))
		}
		fmt.Fprintf(&b, " stats={%s}", strings.Join(parts, ", "))
	}
	return b.String()
}

func (e *PipelineError) Unwrap() error { return e.cause }

// NewPipelineError constructs a fatal, tagged error for the given rule.
func NewPipelineError(rule Rule, page int, detail string, stats map[string]any) *PipelineError {
	return &PipelineError{RuleName: rule, Page: page, Detail: detail, Stats: stats}
}

// wrapPipelineError ensures err carries page context, tagging it as the
// given rule if it isn't already a *PipelineError. Mirrors the original
// implementation's practice of re-tagging any exception that escapes a
// page's processing with the page number before it is recorded and
// re-raised.
func wrapPipelineError(err error, page int, rule Rule) *PipelineError {
	if err == nil {
		return nil
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		if pe.Page == 0 {
			pe.Page = page
		}
		return pe
	}
	return &PipelineError{RuleName: rule, Page: page, Detail: err.Error(), cause: err}
}
