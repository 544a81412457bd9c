package ui

// Config contains TUI-specific configuration.
type Config struct {
	// Book directory or chapter file
	Path string

	// Maximum wrap width, 0 wraps at the terminal width
	MaxWidth    uint
	EnableMouse bool

	// Initial preferences, both can be toggled at runtime
	AutoAdvance  bool
	Presentation bool

	// For debugging the UI
	HighlightColor string `env:"LECTOR_HIGHLIGHT_COLOR" envDefault:"#F1FA8C"`
	Centered       bool   `env:"LECTOR_PRESENTATION_CENTERED" envDefault:"true"`
}
