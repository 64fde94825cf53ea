package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadSourcesMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadSources(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadSources: %v", err)
	}
	if len(cfg.Universities) == 0 {
		t.Fatal("Built-in configuration should have universities")
	}
	if cfg.FallbackCategory != "ogólne" {
		t.Errorf("FallbackCategory = %q", cfg.FallbackCategory)
	}
}

func TestLoadSourcesFillsEmptySections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	content := `
universities:
  - name: Uczelnia Testowa
    keywords: [test]
    sources:
      - kind: syndication
        url: https://example.edu/rss
title_overlap: 0.9
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Writing fixture: %v", err)
	}

	cfg, err := LoadSources(path)
	if err != nil {
		t.Fatalf("LoadSources: %v", err)
	}

	if len(cfg.Universities) != 1 || cfg.Universities[0].Name != "Uczelnia Testowa" {
		t.Fatalf("Universities = %+v", cfg.Universities)
	}
	if cfg.Universities[0].Sources[0].Kind != SourceSyndication {
		t.Errorf("Kind = %q", cfg.Universities[0].Sources[0].Kind)
	}
	if cfg.TitleOverlap != 0.9 {
		t.Errorf("TitleOverlap = %v, want the configured 0.9", cfg.TitleOverlap)
	}
	// Sections the file omits come from the defaults.
	if len(cfg.CrosscutKeywords) == 0 || len(cfg.CulturalKeywords) == 0 {
		t.Error("Omitted keyword sections should fall back to defaults")
	}
	if cfg.NearDuplicateWindow() != time.Hour {
		t.Errorf("NearDuplicateWindow = %v, want 1h default", cfg.NearDuplicateWindow())
	}
}

func TestLoadSourcesBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	if err := os.WriteFile(path, []byte(":\n  - ]["), 0644); err != nil {
		t.Fatalf("Writing fixture: %v", err)
	}
	if _, err := LoadSources(path); err == nil {
		t.Fatal("Expected parse error")
	}
}

func TestUniversityByName(t *testing.T) {
	cfg := DefaultSources()
	if cfg.UniversityByName("Uniwersytet Jagielloński") == nil {
		t.Error("Expected configured university to resolve")
	}
	if cfg.UniversityByName("Nieznana") != nil {
		t.Error("Unknown name should return nil")
	}
	if got := len(cfg.UniversityNames()); got != len(cfg.Universities) {
		t.Errorf("UniversityNames returned %d names", got)
	}
}
