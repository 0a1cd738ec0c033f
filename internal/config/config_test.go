package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TimeRangeHours != 48 {
		t.Fatalf("expected 48 hours, got %d", cfg.TimeRangeHours)
	}
	if cfg.Concurrency != 10 {
		t.Fatalf("expected concurrency 10, got %d", cfg.Concurrency)
	}
	if cfg.FetchTimeout != 15*time.Second {
		t.Fatalf("expected 15s timeout, got %v", cfg.FetchTimeout)
	}
	if cfg.UserAgent != DefaultUserAgent || cfg.Accept != DefaultAccept {
		t.Fatalf("unexpected headers %q / %q", cfg.UserAgent, cfg.Accept)
	}
	if cfg.Parser != "tolerant" {
		t.Fatalf("expected tolerant parser, got %q", cfg.Parser)
	}
}

func TestLoadFlagsOverrideDefaults(t *testing.T) {
	flags := pflag.NewFlagSet("digest", pflag.ContinueOnError)
	flags.Int("hours", 48, "")
	flags.String("output", "", "")
	flags.Int("concurrency", 10, "")
	if err := flags.Parse([]string{"--hours", "24", "--output", "out/articles.json"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load(flags)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TimeRangeHours != 24 {
		t.Fatalf("expected 24 hours, got %d", cfg.TimeRangeHours)
	}
	if cfg.OutputPath != "out/articles.json" {
		t.Fatalf("unexpected output path %q", cfg.OutputPath)
	}
	if cfg.Concurrency != 10 {
		t.Fatalf("unset flag should keep default, got %d", cfg.Concurrency)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("CONCURRENCY", "0")
	if _, err := Load(nil); err == nil {
		t.Fatalf("expected error for zero concurrency")
	}
}

func TestLoadRejectsUnknownParser(t *testing.T) {
	t.Setenv("PARSER", "xpath")
	if _, err := Load(nil); err == nil {
		t.Fatalf("expected error for unknown parser")
	}
}
