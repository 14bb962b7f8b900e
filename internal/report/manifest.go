package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Manifest is the machine-readable record of one run, written next to its
// artifacts.
type Manifest struct {
	Tool      string          `json:"tool"`
	Version   string          `json:"version"`
	RunID     string          `json:"run_id"`
	Timestamp time.Time       `json:"timestamp"`
	Target    Target          `json:"target"`
	Scopes    []ManifestScope `json:"scopes"`
	Types     []string        `json:"types"`
	Totals    []KindTotal     `json:"totals"`
	Artifacts []string        `json:"artifacts"`
	Skipped   []string        `json:"skipped_scopes,omitempty"`
	Errors    []string        `json:"errors,omitempty"`
}

// Target identifies what was inventoried without exposing account ids.
type Target struct {
	Type    string `json:"type"`
	URIHash string `json:"uri_hash"`
}

// ManifestScope is one collected scope.
type ManifestScope struct {
	ID      string   `json:"id"`
	Alias   string   `json:"alias,omitempty"`
	Source  string   `json:"source"`
	Regions []string `json:"regions"`
}

// KindTotal is the global total of one kind.
type KindTotal struct {
	Type    string  `json:"type"`
	Count   int     `json:"count"`
	SizeGiB float64 `json:"size_gib"`
	SizeTiB float64 `json:"size_tib"`
}

// WriteManifest writes the manifest as indented JSON.
func WriteManifest(path string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
