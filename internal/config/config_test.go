package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_NoFile(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Profiles) != 0 {
		t.Fatalf("expected no profiles, got %v", cfg.Profiles)
	}
	if cfg.Archive != nil {
		t.Fatal("expected archive to be unset")
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	dir := t.TempDir()
	content := `profiles:
  - prod
  - staging
regions:
  - us-east-1
  - eu-west-1
types: [ec2, s3]
output_dir: reports
formats: [csv, xlsx]
concurrency: 8
timeout: 30m
call_timeout: 90s
archive: false
metrics_file: /var/lib/node_exporter/awsinventory.prom
metrics:
  s3:
    stat: Maximum
    window: 72h
  rds:
    period: 5m
`
	if err := os.WriteFile(filepath.Join(dir, ".awsinventory.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Profiles) != 2 || cfg.Profiles[0] != "prod" {
		t.Fatalf("unexpected profiles %v", cfg.Profiles)
	}
	if len(cfg.Regions) != 2 {
		t.Fatalf("expected 2 regions, got %d", len(cfg.Regions))
	}
	if len(cfg.Types) != 2 || cfg.Types[1] != "s3" {
		t.Fatalf("unexpected types %v", cfg.Types)
	}
	if cfg.OutputDir != "reports" {
		t.Fatalf("expected output_dir reports, got %q", cfg.OutputDir)
	}
	if cfg.Concurrency != 8 {
		t.Fatalf("expected concurrency 8, got %d", cfg.Concurrency)
	}
	if cfg.TimeoutDuration() != 30*time.Minute {
		t.Fatalf("expected 30m timeout, got %s", cfg.TimeoutDuration())
	}
	if cfg.CallTimeoutDuration() != 90*time.Second {
		t.Fatalf("expected 90s call timeout, got %s", cfg.CallTimeoutDuration())
	}
	if cfg.Archive == nil || *cfg.Archive {
		t.Fatal("expected archive false")
	}
	if cfg.Metrics["s3"].Stat != "Maximum" {
		t.Fatalf("expected s3 stat Maximum, got %q", cfg.Metrics["s3"].Stat)
	}
	period, window, err := cfg.Metrics["rds"].Durations()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if period != 5*time.Minute || window != 0 {
		t.Fatalf("unexpected rds durations %s %s", period, window)
	}
}

func TestLoad_RoleMode(t *testing.T) {
	dir := t.TempDir()
	content := `accounts:
  - "111111111111"
accounts_file: accounts.txt
role_name: InventoryRead
external_id: secret
base_profile: org-admin
`
	if err := os.WriteFile(filepath.Join(dir, ".awsinventory.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RoleName != "InventoryRead" || cfg.ExternalID != "secret" || cfg.BaseProfile != "org-admin" {
		t.Fatalf("unexpected role settings %+v", cfg)
	}
	if len(cfg.Accounts) != 1 || cfg.Accounts[0] != "111111111111" {
		t.Fatalf("unexpected accounts %v", cfg.Accounts)
	}
}

func TestLoad_YMLExtension(t *testing.T) {
	dir := t.TempDir()
	content := `all_profiles: true
`
	if err := os.WriteFile(filepath.Join(dir, ".awsinventory.yml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.AllProfiles {
		t.Fatal("expected all_profiles true")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	content := `[invalid yaml content`
	if err := os.WriteFile(filepath.Join(dir, ".awsinventory.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	_, err := Load(dir)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoad_InvalidMetricWindow(t *testing.T) {
	dir := t.TempDir()
	content := `metrics:
  s3:
    window: two-days
`
	if err := os.WriteFile(filepath.Join(dir, ".awsinventory.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for invalid metric window")
	}
}

func TestLoad_InvalidTimeouts(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"timeout without unit", "timeout: \"30\"\n"},
		{"call_timeout without unit", "call_timeout: \"120\"\n"},
		{"unparsable timeout", "timeout: soon\n"},
		{"negative call_timeout", "call_timeout: -1m\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, ".awsinventory.yaml"), []byte(tt.content), 0o644); err != nil {
				t.Fatalf("write file: %v", err)
			}
			if _, err := Load(dir); err == nil {
				t.Fatalf("expected error for %s", tt.content)
			}
		})
	}
}

func TestValidate_Timeouts(t *testing.T) {
	if err := (Config{Timeout: "45m", CallTimeout: "90s"}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := (Config{}).Validate(); err != nil {
		t.Fatalf("expected unset timeouts to be valid, got %v", err)
	}
	err := (Config{CallTimeout: "30"}).Validate()
	if err == nil || !strings.Contains(err.Error(), "call_timeout") {
		t.Fatalf("expected call_timeout error, got %v", err)
	}
}

func TestLoad_YAMLPriority(t *testing.T) {
	dir := t.TempDir()
	yamlContent := `output_dir: from-yaml`
	ymlContent := `output_dir: from-yml`
	if err := os.WriteFile(filepath.Join(dir, ".awsinventory.yaml"), []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".awsinventory.yml"), []byte(ymlContent), 0o644); err != nil {
		t.Fatalf("write yml: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// .yaml should take priority over .yml
	if cfg.OutputDir != "from-yaml" {
		t.Fatalf("expected output_dir from-yaml (priority), got %q", cfg.OutputDir)
	}
}

func TestTimeoutDuration_Invalid(t *testing.T) {
	cfg := Config{Timeout: "soon"}
	if cfg.TimeoutDuration() != 0 {
		t.Fatal("expected zero for an unparsable timeout")
	}
}
