package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"pkt.systems/prettymd"
)

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PRETTYMD_EMPHASIS", "")
	t.Setenv("PRETTYMD_SOFT_BREAK", "")
	t.Setenv("PRETTYMD_HARD_BREAK", "")
}

func TestLoad_MissingDefaultFile_UsesDefaults(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := filepath.Join(home, ".config", "prettymd", "config.toml")
	if cfg.Source != want {
		t.Fatalf("cfg.Source = %q, want %q", cfg.Source, want)
	}
	if cfg.Emphasis != "*" || cfg.SoftBreak != "space" || cfg.HardBreak != "spaces" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoad_NoHome_UsesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", "")
	t.Setenv("PRETTYMD_EMPHASIS", "_")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Source != "" {
		t.Fatalf("cfg.Source = %q, want empty", cfg.Source)
	}
	if cfg.Emphasis != "_" {
		t.Fatalf("cfg.Emphasis = %q, want env override", cfg.Emphasis)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")

	_, err := Load(path)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
}

func TestLoad_FromTOML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`
emphasis = "_"
soft_break = "newline"
hard_break = "backslash"
jobs = 3
`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Emphasis != "_" || cfg.SoftBreak != "newline" || cfg.HardBreak != "backslash" || cfg.Jobs != 3 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("emphasis = \"_\"\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv("PRETTYMD_EMPHASIS", "*")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Emphasis != "*" {
		t.Fatalf("cfg.Emphasis = %q, want %q", cfg.Emphasis, "*")
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("emphasis = \n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for invalid TOML")
	}
}

func TestOptionsApplyToPrinter(t *testing.T) {
	cfg := Default()
	cfg.Emphasis = "_"
	opts, err := cfg.Options()
	if err != nil {
		t.Fatalf("Options: %v", err)
	}
	out, err := prettymd.Print([]prettymd.Event{
		prettymd.Start(prettymd.Paragraph()),
		prettymd.Start(prettymd.Emphasis()),
		prettymd.Text("x"),
		prettymd.End(prettymd.Emphasis()),
		prettymd.End(prettymd.Paragraph()),
	}, opts...)
	if err != nil {
		t.Fatalf("Print: %v", err)
	}
	if out != "_x_" {
		t.Fatalf("expected %q, got %q", "_x_", out)
	}
}

func TestOptionsRejectsUnknownValues(t *testing.T) {
	for _, cfg := range []Config{
		{Emphasis: "~"},
		{SoftBreak: "tab"},
		{HardBreak: "html"},
	} {
		if _, err := cfg.Options(); err == nil {
			t.Fatalf("expected error for %+v", cfg)
		}
	}
}
