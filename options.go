package prettymd

// Option configures a Printer.
type Option func(*config)

// SoftBreakMode selects how soft line breaks are written.
type SoftBreakMode uint8

const (
	// SoftBreakSpace joins soft-broken lines with a single space. This is the default.
	SoftBreakSpace SoftBreakMode = iota
	// SoftBreakNewline keeps soft breaks as line breaks.
	SoftBreakNewline
)

// HardBreakMode selects how hard line breaks are written.
type HardBreakMode uint8

const (
	// HardBreakSpaces writes two trailing spaces before the newline. This is the default.
	HardBreakSpaces HardBreakMode = iota
	// HardBreakBackslash writes a backslash before the newline.
	HardBreakBackslash
)

type config struct {
	emphasis  byte
	softBreak SoftBreakMode
	hardBreak HardBreakMode
	prefix    string
}

func defaultConfig() config {
	return config{emphasis: '*'}
}

func (c config) alternate() byte {
	if c.emphasis == '_' {
		return '*'
	}
	return '_'
}

// WithEmphasis sets the primary emphasis delimiter, '*' (default) or '_'.
// Nested emphasis uses the other one. Any other byte is ignored.
func WithEmphasis(delim byte) Option {
	return func(cfg *config) {
		if delim == '*' || delim == '_' {
			cfg.emphasis = delim
		}
	}
}

// WithSoftBreak sets the soft break rendering.
func WithSoftBreak(mode SoftBreakMode) Option {
	return func(cfg *config) {
		cfg.softBreak = mode
	}
}

// WithHardBreak sets the hard break rendering.
func WithHardBreak(mode HardBreakMode) Option {
	return func(cfg *config) {
		cfg.hardBreak = mode
	}
}

// WithPrefix prepends prefix to every output line, e.g. "/// " for doc comments.
func WithPrefix(prefix string) Option {
	return func(cfg *config) {
		cfg.prefix = prefix
	}
}
