package ircbook

import "github.com/spf13/viper"

// Config carries every geometric and statistical threshold the pipeline
// uses, plus the ambient switches for logging and optional companion
// output. Values are compiled defaults; LoadConfig (config layered on top
// in cmd/ircextract) may override them from a file or CLI flags.
type Config struct {
	// Layout geometry (§4.3).
	LineYTolerance         float64
	ColumnMarginTolerance  float64
	GutterTolerance        float64
	HeaderRegionRatio      float64
	FooterRegionRatio      float64
	MinGutterWidth         float64
	MaxHeaderLineGap       float64
	HeaderSizeDelta        float64

	// Table detection (§4.2).
	TableEdgeTolerance     float64 // intersection tolerance between rulings
	RulingPositionTolerance float64 // unique row/column position clustering
	RulingMergeTolerance   float64 // collinear segment endpoint merging
	MinRulingLength        float64
	TableMinIntersections  int
	TableLabelSearchWindow float64
	TableLabelTopBandRatio float64
	TableBottomTouchTolerance float64

	// Section recognition thresholds (§4.4).
	SectionHeadingMaxLines int

	// Provenance (§4.1).
	AllowlistPath string

	// Ambient stack.
	EnableMetricsLogging     bool
	RenderMarkdownCompanions bool
	DebugDump                bool
	DebugDumpDir             string
}

// DefaultConfig returns the compiled defaults, grounded on the thresholds
// named throughout the original implementation (LINE_Y_TOLERANCE=3,
// COLUMN_MARGIN_TOLERANCE=3, GUTTER_TOLERANCE=2, header/footer region
// ratios of 0.10, table label search window of 60pt, top-band ratio of
// 0.15, bottom-touch tolerance of 15pt).
func DefaultConfig() Config {
	return Config{
		LineYTolerance:            3.0,
		ColumnMarginTolerance:     3.0,
		GutterTolerance:           2.0,
		HeaderRegionRatio:         0.10,
		FooterRegionRatio:         0.10,
		MinGutterWidth:            20.0,
		MaxHeaderLineGap:          12.0,
		HeaderSizeDelta:           1.0,
		TableEdgeTolerance:        1.5,
		RulingPositionTolerance:   0.5,
		RulingMergeTolerance:      2.0,
		MinRulingLength:           6.0,
		TableMinIntersections:     4,
		TableLabelSearchWindow:    60.0,
		TableLabelTopBandRatio:    0.15,
		TableBottomTouchTolerance: 15.0,
		SectionHeadingMaxLines:    2,
		AllowlistPath:             "_allowed_pdf_hashes.txt",
		EnableMetricsLogging:      true,
		RenderMarkdownCompanions: false,
		DebugDump:                 false,
		DebugDumpDir:              "debug_dump",
	}
}

// LoadConfig layers an optional TOML/YAML file on top of the compiled
// defaults via viper. An empty path returns the defaults unchanged; CLI
// flags are applied by the caller afterward, so they remain the final
// override regardless of what the file sets.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return cfg, err
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
