package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

// fakeBinder wraps a pflag.FlagSet to satisfy the flagBinder interface.
type fakeBinder struct {
	fs *pflag.FlagSet
}

func (f *fakeBinder) Flags() *pflag.FlagSet { return f.fs }

func newFlagSet(t *testing.T, defaults Config, args ...string) *fakeBinder {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return &fakeBinder{fs: fs}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Codec.Backend != BackendRange {
		t.Errorf("Codec.Backend = %q; want %q", cfg.Codec.Backend, BackendRange)
	}
	if cfg.Codec.Precision != 16 {
		t.Errorf("Codec.Precision = %d; want 16", cfg.Codec.Precision)
	}
	if cfg.Codec.VocabMode != VocabModeAbsent {
		t.Errorf("Codec.VocabMode = %q; want %q", cfg.Codec.VocabMode, VocabModeAbsent)
	}
	if cfg.Vocab.Path != "models/vocab.json" {
		t.Errorf("Vocab.Path = %q; want %q", cfg.Vocab.Path, "models/vocab.json")
	}
	if cfg.Batch.Workers != 4 {
		t.Errorf("Batch.Workers = %d; want 4", cfg.Batch.Workers)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "info")
	}
}

func TestRegisterFlags(t *testing.T) {
	defaults := DefaultConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)

	checks := []struct {
		flag string
		want string
	}{
		{"backend", "range"},
		{"model", "static"},
		{"vocab", "models/vocab.json"},
		{"max-size", "16384"},
		{"workers", "4"},
		{"log-level", "info"},
	}
	for _, c := range checks {
		f := fs.Lookup(c.flag)
		if f == nil {
			t.Errorf("flag %q not registered", c.flag)
			continue
		}
		if f.DefValue != c.want {
			t.Errorf("flag %q default = %q; want %q", c.flag, f.DefValue, c.want)
		}
	}

	// Every flag is bound to a key.
	fs.VisitAll(func(f *pflag.Flag) {
		if _, ok := flagKeys[f.Name]; !ok {
			t.Errorf("flag %q has no config key", f.Name)
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	defaults := DefaultConfig()
	cfg, err := Load(LoadOptions{
		Cmd:      newFlagSet(t, defaults),
		Defaults: defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg != defaults {
		t.Errorf("Load() = %+v; want %+v", cfg, defaults)
	}
}

func TestLoad_FlagOverride(t *testing.T) {
	defaults := DefaultConfig()
	cfg, err := Load(LoadOptions{
		Cmd:      newFlagSet(t, defaults, "--backend=prefix", "--workers=8", "--log-level=debug", "--alpha=0.25", "--nfc"),
		Defaults: defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Codec.Backend != "prefix" {
		t.Errorf("Codec.Backend = %q; want %q", cfg.Codec.Backend, "prefix")
	}
	if cfg.Batch.Workers != 8 {
		t.Errorf("Batch.Workers = %d; want 8", cfg.Batch.Workers)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "debug")
	}
	if cfg.Predictor.Alpha != 0.25 {
		t.Errorf("Predictor.Alpha = %v; want 0.25", cfg.Predictor.Alpha)
	}
	if !cfg.Codec.NFC {
		t.Error("Codec.NFC = false; want true")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("TOKCODEC_LOG_LEVEL", "warn")
	t.Setenv("TOKCODEC_CODEC_VOCAB_MODE", "compressed")

	cfg, err := Load(LoadOptions{Defaults: DefaultConfig()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "warn")
	}
	if cfg.Codec.VocabMode != "compressed" {
		t.Errorf("Codec.VocabMode = %q; want %q", cfg.Codec.VocabMode, "compressed")
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "tokcodec.yaml")
	content := `
log_level: error
codec:
  backend: prefix
  case: lowercase
vocab:
  max_size: 100
batch:
  workers: 16
`
	if err := os.WriteFile(cfgFile, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	defaults := DefaultConfig()
	cfg, err := Load(LoadOptions{
		Cmd:        newFlagSet(t, defaults, "--workers=2"),
		ConfigFile: cfgFile,
		Defaults:   defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "error")
	}
	if cfg.Codec.Backend != "prefix" || cfg.Codec.Case != "lowercase" {
		t.Errorf("Codec = %+v", cfg.Codec)
	}
	if cfg.Vocab.MaxSize != 100 {
		t.Errorf("Vocab.MaxSize = %d; want 100", cfg.Vocab.MaxSize)
	}
	// Flags set on the command line win over the file.
	if cfg.Batch.Workers != 2 {
		t.Errorf("Batch.Workers = %d; want 2", cfg.Batch.Workers)
	}
	if cfg.Vocab.Path != defaults.Vocab.Path {
		t.Errorf("Vocab.Path = %q; want %q", cfg.Vocab.Path, defaults.Vocab.Path)
	}
}

func TestLoad_InvalidConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(cfgFile, []byte(":\t:bad yaml:::"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err := Load(LoadOptions{ConfigFile: cfgFile, Defaults: DefaultConfig()})
	if err == nil {
		t.Error("Load() = nil; want error for invalid config file")
	}
}

func TestLoad_MissingExplicitConfigFile(t *testing.T) {
	_, err := Load(LoadOptions{
		ConfigFile: "/nonexistent/path/tokcodec.yaml",
		Defaults:   DefaultConfig(),
	})
	if err == nil {
		t.Error("Load() = nil; want error for missing explicit config file")
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		fn      func(string) (string, error)
		input   string
		want    string
		wantErr bool
	}{
		{"backend default", NormalizeBackend, "", "range", false},
		{"backend huffman alias", NormalizeBackend, " Huffman ", "prefix", false},
		{"backend arithmetic alias", NormalizeBackend, "ARITHMETIC", "range", false},
		{"backend invalid", NormalizeBackend, "lz77", "", true},
		{"model default", NormalizeModel, "", "static", false},
		{"model markov alias", NormalizeModel, "markov", "adaptive", false},
		{"model ctw", NormalizeModel, " CTW ", "ctw", false},
		{"model invalid", NormalizeModel, "neural", "", true},
		{"vocab mode zstd alias", NormalizeVocabMode, "zstd", "compressed", false},
		{"vocab mode raw alias", NormalizeVocabMode, "raw", "embedded", false},
		{"vocab mode invalid", NormalizeVocabMode, "gzip", "", true},
		{"case lower alias", NormalizeCase, "lower", "lowercase", false},
		{"case default", NormalizeCase, "  ", "preserve", false},
		{"case invalid", NormalizeCase, "upper", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("(%q) = %q, nil; want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Errorf("(%q) unexpected error: %v", tt.input, err)
				return
			}
			if got != tt.want {
				t.Errorf("(%q) = %q; want %q", tt.input, got, tt.want)
			}
		})
	}
}
