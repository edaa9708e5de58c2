package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"pkt.systems/prettymd"
)

// Config holds the CLI defaults read from the TOML config file.
type Config struct {
	Emphasis  string `toml:"emphasis"`
	SoftBreak string `toml:"soft_break"`
	HardBreak string `toml:"hard_break"`
	Jobs      int    `toml:"jobs"`
	Source    string `toml:"-"`
}

func Default() Config {
	return Config{
		Emphasis:  "*",
		SoftBreak: "space",
		HardBreak: "spaces",
	}
}

func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "prettymd", "config.toml")
}

// Load reads path, or DefaultPath when path is empty. A missing default file
// (or no home directory) yields the defaults; a missing explicit path is an
// error. PRETTYMD_EMPHASIS, PRETTYMD_SOFT_BREAK and PRETTYMD_HARD_BREAK
// override the file.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	cfg.Source = path
	if path != "" {
		content, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(content, &cfg); err != nil {
				return cfg, fmt.Errorf("config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist) && !explicit:
		default:
			return cfg, fmt.Errorf("config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if env := strings.TrimSpace(os.Getenv("PRETTYMD_EMPHASIS")); env != "" {
		cfg.Emphasis = env
	}
	if env := strings.TrimSpace(os.Getenv("PRETTYMD_SOFT_BREAK")); env != "" {
		cfg.SoftBreak = env
	}
	if env := strings.TrimSpace(os.Getenv("PRETTYMD_HARD_BREAK")); env != "" {
		cfg.HardBreak = env
	}
}

// Options converts cfg into printer options.
func (c Config) Options() ([]prettymd.Option, error) {
	var opts []prettymd.Option
	switch strings.TrimSpace(c.Emphasis) {
	case "", "*":
		opts = append(opts, prettymd.WithEmphasis('*'))
	case "_":
		opts = append(opts, prettymd.WithEmphasis('_'))
	default:
		return nil, fmt.Errorf("emphasis %q: expected * or _", c.Emphasis)
	}
	switch strings.ToLower(strings.TrimSpace(c.SoftBreak)) {
	case "", "space":
		opts = append(opts, prettymd.WithSoftBreak(prettymd.SoftBreakSpace))
	case "newline":
		opts = append(opts, prettymd.WithSoftBreak(prettymd.SoftBreakNewline))
	default:
		return nil, fmt.Errorf("soft_break %q: expected space or newline", c.SoftBreak)
	}
	switch strings.ToLower(strings.TrimSpace(c.HardBreak)) {
	case "", "spaces":
		opts = append(opts, prettymd.WithHardBreak(prettymd.HardBreakSpaces))
	case "backslash":
		opts = append(opts, prettymd.WithHardBreak(prettymd.HardBreakBackslash))
	default:
		return nil, fmt.Errorf("hard_break %q: expected spaces or backslash", c.HardBreak)
	}
	return opts, nil
}
