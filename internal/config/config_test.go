package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/forPelevin/reelcut/internal/types"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	cfg, err := Load("", envMap(nil))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.WorkDir != ".cache" || cfg.Workers != 2 || cfg.Encode.Preset != "slow" || cfg.Captions.Name != "Reel" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "custom.yaml")
	yml := `
work_dir: /var/reelcut
workers: 6
encode:
  crf: 20
captions:
  font_size: 96
openrouter:
  model: file-model
  allowed_hosts: [proxy.internal]
`
	if err := os.WriteFile(p, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(p, envMap(map[string]string{
		"REELCUT_WORKERS":    "3",
		"OPENROUTER_API_KEY": " sk-test ",
		"OPENROUTER_MODEL":   "env-model",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.WorkDir != "/var/reelcut" {
		t.Fatalf("file value lost: %s", cfg.WorkDir)
	}
	if cfg.Workers != 3 || cfg.OpenRouter.Model != "env-model" {
		t.Fatalf("env should beat file: %+v", cfg)
	}
	if cfg.OpenRouter.APIKey != "sk-test" {
		t.Fatalf("unexpected api key %q", cfg.OpenRouter.APIKey)
	}
	if cfg.Encode.CRF != 20 || cfg.Encode.Preset != "slow" {
		t.Fatalf("partial encode section should keep defaults: %+v", cfg.Encode)
	}
	if cfg.Captions.Fontsize != 96 || cfg.Captions.Fontname != "Arial" || cfg.Captions.Name != "Reel" {
		t.Fatalf("partial captions section should keep defaults: %+v", cfg.Captions)
	}
	if len(cfg.OpenRouter.AllowedHosts) != 1 || cfg.OpenRouter.AllowedHosts[0] != "proxy.internal" {
		t.Fatalf("unexpected hosts: %v", cfg.OpenRouter.AllowedHosts)
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("workers: [1"), 0o644); err != nil {
		t.Fatal(err)
	}
	neg := filepath.Join(dir, "neg.yaml")
	if err := os.WriteFile(neg, []byte("workers: -1"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		env  map[string]string
		want error
	}{
		{"missing explicit file", filepath.Join(dir, "nope.yaml"), nil, types.ErrMissingSource},
		{"bad yaml", bad, nil, types.ErrInputValidation},
		{"negative workers", neg, nil, types.ErrInputValidation},
		{"workers env not a number", neg, map[string]string{"REELCUT_WORKERS": "many"}, types.ErrInputValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(tt.path, envMap(tt.env)); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestApplyEnv_AllowedHostsSplit(t *testing.T) {
	cfg := Default()
	if err := cfg.applyEnv(envMap(map[string]string{"OPENROUTER_ALLOWED_HOSTS": "a.example, b.example"})); err != nil {
		t.Fatal(err)
	}
	if len(cfg.OpenRouter.AllowedHosts) != 2 {
		t.Fatalf("unexpected hosts: %v", cfg.OpenRouter.AllowedHosts)
	}
}
