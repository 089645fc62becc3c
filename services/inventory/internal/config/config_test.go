package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		env     map[string]string
		check   func(t *testing.T, cfg Config)
		wantErr bool
	}{
		{
			name: "defaults when file is missing",
			check: func(t *testing.T, cfg Config) {
				if cfg.Bind != "0.0.0.0:8443" {
					t.Fatalf("Bind = %q", cfg.Bind)
				}
				if cfg.MaxBodyBytes != 64<<10 || cfg.RatePerSecond != 5 || cfg.RateBurst != 20 {
					t.Fatalf("unexpected admission defaults: %+v", cfg)
				}
			},
		},
		{
			name: "file overrides defaults",
			file: "bind = \"127.0.0.1:9000\"\nrate_burst = 50\nlimiter_idle_ttl = \"30m\"\ncors_allowed_origins = [\"https://a.example\"]\n",
			check: func(t *testing.T, cfg Config) {
				if cfg.Bind != "127.0.0.1:9000" {
					t.Fatalf("Bind = %q", cfg.Bind)
				}
				if cfg.RateBurst != 50 {
					t.Fatalf("RateBurst = %d", cfg.RateBurst)
				}
				if cfg.LimiterIdleTTL != 30*time.Minute {
					t.Fatalf("LimiterIdleTTL = %s", cfg.LimiterIdleTTL)
				}
				if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "https://a.example" {
					t.Fatalf("CORSAllowedOrigins = %v", cfg.CORSAllowedOrigins)
				}
				if cfg.RatePerSecond != 5 {
					t.Fatalf("unset key lost its default: %v", cfg.RatePerSecond)
				}
			},
		},
		{
			name: "environment overrides file",
			file: "bind = \"127.0.0.1:9000\"\n",
			env: map[string]string{
				"INVENTORY_BIND":     "0.0.0.0:7000",
				"INVENTORY_DB_PATH":  "/data/inv.db",
				"INVENTORY_DEBUG":    "1",
				"INVENTORY_TLS_CERT": "/c.pem",
				"INVENTORY_TLS_KEY":  "/k.pem",
			},
			check: func(t *testing.T, cfg Config) {
				if cfg.Bind != "0.0.0.0:7000" {
					t.Fatalf("Bind = %q", cfg.Bind)
				}
				if cfg.DBPath != "/data/inv.db" {
					t.Fatalf("DBPath = %q", cfg.DBPath)
				}
				if !cfg.Debug {
					t.Fatalf("Debug not set from INVENTORY_DEBUG=1")
				}
				if !cfg.TLSEnabled() {
					t.Fatalf("TLS should be enabled")
				}
			},
		},
		{
			name:    "half configured tls",
			env:     map[string]string{"INVENTORY_TLS_CERT": "/c.pem"},
			wantErr: true,
		},
		{
			name:    "zero burst",
			file:    "rate_burst = 0\n",
			wantErr: true,
		},
		{
			name:    "bad log format",
			env:     map[string]string{"INVENTORY_LOG_FORMAT": "xml"},
			wantErr: true,
		},
		{
			name:    "malformed toml",
			file:    "bind = \n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.file != "" {
				if err := os.WriteFile(filepath.Join(dir, FileName), []byte(tt.file), 0o644); err != nil {
					t.Fatalf("write config: %v", err)
				}
			}
			env := tt.env
			if env == nil {
				env = map[string]string{}
			}

			cfg, err := Load(context.Background(), Options{ExeDir: dir, Lookuper: envconfig.MapLookuper(env)})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			tt.check(t, cfg)
		})
	}
}

func TestLoadWritesTemplateAndDefaultsDBNextToExecutable(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(context.Background(), Options{ExeDir: dir, Lookuper: envconfig.MapLookuper(map[string]string{})})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if want := filepath.Join(dir, "inventory.db"); cfg.DBPath != want {
		t.Fatalf("DBPath = %q, want %q", cfg.DBPath, want)
	}

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("template not written: %v", err)
	}
	if string(data) != Template {
		t.Fatalf("template content mismatch")
	}

	again, err := Load(context.Background(), Options{ExeDir: dir, Lookuper: envconfig.MapLookuper(map[string]string{})})
	if err != nil {
		t.Fatalf("reloading generated template: %v", err)
	}
	if again.Bind != cfg.Bind {
		t.Fatalf("generated template changed defaults: %q vs %q", again.Bind, cfg.Bind)
	}
}

func TestLoadExplicitPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.toml")
	if err := os.WriteFile(path, []byte("ui_requests_per_minute = 10\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(context.Background(), Options{Path: path, ExeDir: dir, Lookuper: envconfig.MapLookuper(map[string]string{})})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.UIRequestsPerMinute != 10 {
		t.Fatalf("UIRequestsPerMinute = %d", cfg.UIRequestsPerMinute)
	}
}
