package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, dir, name, data string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	if !cfg.AutoRelease {
		t.Fatalf("expected auto_release on by default")
	}
	if cfg.Screen != -1 {
		t.Fatalf("expected screen -1 by default, got %d", cfg.Screen)
	}
}

func TestLoadFromPath_MissingFileUsesDefaults(t *testing.T) {
	res, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(res.Files) != 0 {
		t.Fatalf("expected no files loaded, got %v", res.Files)
	}
	if res.Config.Logging.Level != "info" {
		t.Fatalf("expected default level info, got %q", res.Config.Logging.Level)
	}
}

func TestLoadFromPath_EmptyFileUsesDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", "# empty\n")

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.Demo.Width != 320 || res.Config.Demo.Height != 240 {
		t.Fatalf("expected default demo size, got %+v", res.Config.Demo)
	}
	if len(res.Files) != 1 {
		t.Fatalf("expected one loaded file, got %v", res.Files)
	}
}

func TestLoadFromPath_DisplayAndXAuthority(t *testing.T) {
	data := strings.Join([]string{
		"display: \":1\"",
		"xauthority: \"/tmp/test-xauth\"",
		"",
	}, "\n")
	path := writeConfig(t, t.TempDir(), "config.yaml", data)

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.Display != ":1" {
		t.Fatalf("expected display :1, got %q", res.Config.Display)
	}
	if res.Config.XAuthority != "/tmp/test-xauth" {
		t.Fatalf("expected xauthority /tmp/test-xauth, got %q", res.Config.XAuthority)
	}

	val, src, err := Explain(res, "display")
	if err != nil {
		t.Fatalf("explain display: %v", err)
	}
	if val != ":1" {
		t.Fatalf("expected explain display :1, got %#v", val)
	}
	if src.Kind != SourceFile || src.Line != 1 {
		t.Fatalf("expected display from file line 1, got %#v", src)
	}
}

func TestLoadFromPath_NestedKeys(t *testing.T) {
	data := `
screen: 0
auto_release: false
logging:
  level: debug
  format: json
  file: ~/xsafe.log
  max_files: 5
demo:
  title: hello
`
	path := writeConfig(t, t.TempDir(), "config.yaml", strings.TrimSpace(data)+"\n")

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := res.Config
	if cfg.Screen != 0 || cfg.AutoRelease {
		t.Fatalf("unexpected top-level values: %+v", cfg)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" || cfg.Logging.MaxFiles != 5 {
		t.Fatalf("unexpected logging: %+v", cfg.Logging)
	}
	if cfg.Logging.MaxSizeMB != 10 {
		t.Fatalf("expected unset max_size_mb to keep default, got %d", cfg.Logging.MaxSizeMB)
	}
	if cfg.Demo.Title != "hello" || cfg.Demo.Width != 320 {
		t.Fatalf("unexpected demo: %+v", cfg.Demo)
	}

	opts := cfg.LoggingOptions()
	if strings.HasPrefix(opts.File, "~") {
		t.Fatalf("expected ~ to be expanded, got %q", opts.File)
	}
	if filepath.Base(opts.File) != "xsafe.log" {
		t.Fatalf("unexpected log file %q", opts.File)
	}
}

func TestLoadFromPath_StrictUnknownKeyErrors(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", "unknown_key: 1\n")

	_, err := LoadFromPath(path)
	if err == nil {
		t.Fatalf("expected error for unknown key")
	}
	if !strings.Contains(err.Error(), "unknown_key") && !strings.Contains(err.Error(), "field") {
		t.Fatalf("expected unknown field error, got %v", err)
	}
	if !strings.Contains(err.Error(), path) {
		t.Fatalf("expected error to include file path, got %v", err)
	}
}

func TestLoadFromPath_ValidationErrorHasSourceContext(t *testing.T) {
	data := "logging:\n  level: loud\n"
	path := writeConfig(t, t.TempDir(), "config.yaml", data)

	_, err := LoadFromPath(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T: %v", err, err)
	}
	if verr.Path != "logging.level" {
		t.Fatalf("expected path logging.level, got %q", verr.Path)
	}
	if !strings.Contains(err.Error(), ":2:10:") {
		t.Fatalf("expected file:line:col prefix, got %v", err)
	}
}

func TestLoadFromPath_InvalidValues(t *testing.T) {
	cases := map[string]string{
		"display: \"nohost\"\n":       "display",
		"screen: -2\n":                "screen",
		"logging:\n  format: xml\n":   "logging.format",
		"logging:\n  max_files: -1\n": "logging.max_files",
		"demo:\n  width: 0\n":         "demo.width",
		"demo:\n  height: 70000\n":    "demo.height",
	}
	for data, want := range cases {
		path := writeConfig(t, t.TempDir(), "config.yaml", data)
		_, err := LoadFromPath(path)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("%q: expected *ValidationError, got %v", data, err)
		}
		if verr.Path != want {
			t.Fatalf("%q: expected path %q, got %q", data, want, verr.Path)
		}
	}
}

func TestLoadFromPath_IncludeDirectoryOrderAndMainOverrides(t *testing.T) {
	dir := t.TempDir()

	// config.d loaded first, in sorted order.
	writeConfig(t, dir, "config.d/10-base.yaml", "demo:\n  width: 100\n  height: 50\n")
	writeConfig(t, dir, "config.d/20-override.yaml", "demo:\n  width: 200\n")
	writeConfig(t, dir, "config.d/README.md", "not yaml")

	// Main file overrides includes.
	main := strings.Join([]string{
		"include:",
		"  - config.d",
		"demo:",
		"  title: main",
		"",
	}, "\n")
	path := writeConfig(t, dir, "config.yaml", main)

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	demo := res.Config.Demo
	if demo.Width != 200 || demo.Height != 50 || demo.Title != "main" {
		t.Fatalf("unexpected merged demo: %+v", demo)
	}
	if len(res.Files) != 3 {
		t.Fatalf("expected three loaded files, got %v", res.Files)
	}

	_, src, err := Explain(res, "demo.width")
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	if filepath.Base(src.File) != "20-override.yaml" {
		t.Fatalf("expected demo.width from 20-override.yaml, got %#v", src)
	}
}

func TestLoadFromPath_IncludeMissingPathHasContext(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", "include:\n  - missing.yaml\n")

	_, err := LoadFromPath(path)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "include") || !strings.Contains(err.Error(), "missing.yaml") {
		t.Fatalf("expected include error, got %v", err)
	}
	if !strings.Contains(err.Error(), path+":") {
		t.Fatalf("expected error to include file:line:col prefix, got %v", err)
	}
}

func TestLoadFromPath_IncludeCycleDetection(t *testing.T) {
	dir := t.TempDir()
	a := writeConfig(t, dir, "a.yaml", "include: b.yaml\n")
	writeConfig(t, dir, "b.yaml", "include: a.yaml\n")

	_, err := LoadFromPath(a)
	if err == nil {
		t.Fatalf("expected cycle error")
	}
	if !strings.Contains(err.Error(), "include cycle") {
		t.Fatalf("expected cycle error, got %v", err)
	}
}

func TestExplain_DefaultsAndUnknownPaths(t *testing.T) {
	res, err := LoadFromPath(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for _, p := range Paths() {
		if _, src, err := Explain(res, p); err != nil {
			t.Fatalf("explain %s: %v", p, err)
		} else if src.Kind != SourceDefault {
			t.Fatalf("expected %s from defaults, got %#v", p, src)
		}
	}

	val, _, err := Explain(res, "auto_release")
	if err != nil || val != true {
		t.Fatalf("expected auto_release true, got %#v (%v)", val, err)
	}

	for _, p := range []string{"", "layouts", "logging.colour", "demo.width.x", "display.name"} {
		if _, _, err := Explain(res, p); err == nil {
			t.Fatalf("expected error for path %q", p)
		}
	}
	if _, _, err := Explain(nil, "display"); err == nil {
		t.Fatalf("expected error for nil result")
	}
}

func TestDefaultConfigPath_EnvOverrides(t *testing.T) {
	t.Setenv(EnvConfigPath, "/etc/xsafe.yaml")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	p, err := DefaultConfigPath()
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	if p != "/etc/xsafe.yaml" {
		t.Fatalf("expected env path, got %q", p)
	}

	t.Setenv(EnvConfigPath, "")
	p, err = DefaultConfigPath()
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	if p != filepath.Join("/xdg", "xsafe", "config.yaml") {
		t.Fatalf("expected XDG path, got %q", p)
	}
}

func TestLoad_UsesEnvPath(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "custom.yaml", "screen: 1\n")
	t.Setenv(EnvConfigPath, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Screen != 1 {
		t.Fatalf("expected screen 1, got %d", cfg.Screen)
	}
}

func TestSave_RoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Display = ":3"
	cfg.Logging.Format = "json"
	cfg.Demo.Title = "round trip"

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if *res.Config != *cfg {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", *res.Config, *cfg)
	}
}

func TestSave_RejectsInvalid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = "chatty"
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := cfg.Save(path); err == nil {
		t.Fatalf("expected validation error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected nothing written, got %v", err)
	}
}
