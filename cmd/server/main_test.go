package main

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/p-n-ai/halaqah/internal/platform/config"
)

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Log:   config.LogConfig{Level: "info", Format: "json"},
		Store: "memory",
		Lock:  config.LockConfig{Backend: "memory"},
		Scoring: config.ScoringConfig{
			DeductionRate:          1,
			GatekeeperThreshold:    75,
			PassingThreshold:       70,
			QuestionsPerPart:       3,
			ReviewQuestionsPerUnit: 1,
		},
		Points: config.PointsConfig{ManualBudgetCap: 20, HistoryLimit: 50},
	}
}

func TestBuild_HealthEndpoints(t *testing.T) {
	a, err := build(t.Context(), memoryConfig(t))
	if err != nil {
		t.Fatalf("build() error = %v", err)
	}
	defer a.close()

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   string
	}{
		{"healthz returns 200", "/healthz", http.StatusOK, `{"status":"ok"}`},
		{"readyz returns 200", "/readyz", http.StatusOK, `{"status":"ready"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()

			a.handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := strings.TrimSpace(rec.Body.String()); got != tt.wantBody {
				t.Errorf("body = %q, want %q", got, tt.wantBody)
			}
		})
	}
}

func TestBuild_TokenFile(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashing token: %v", err)
	}
	path := filepath.Join(t.TempDir(), "tokens.yaml")
	content := "tokens:\n  - hash: " + string(hash) + "\n    id: ustadh-ali\n    role: examiner\n    tenant_id: masjid-1\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing tokens: %v", err)
	}

	cfg := memoryConfig(t)
	cfg.Auth.TokensPath = path
	a, err := build(t.Context(), cfg)
	if err != nil {
		t.Fatalf("build() error = %v", err)
	}
	defer a.close()

	req := httptest.NewRequest(http.MethodGet, "/curriculum/units", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestBuild_InvalidInputs(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Config)
	}{
		{"missing rules file", func(c *config.Config) { c.Points.RulesPath = "/nonexistent/rules.yaml" }},
		{"missing curriculum file", func(c *config.Config) { c.Curriculum.Path = "/nonexistent/units.yaml" }},
		{"missing token file", func(c *config.Config) { c.Auth.TokensPath = "/nonexistent/tokens.yaml" }},
		{"bad policy", func(c *config.Config) { c.Scoring.QuestionsPerPart = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := memoryConfig(t)
			tt.modify(cfg)
			if _, err := build(t.Context(), cfg); err == nil {
				t.Fatal("build() should fail")
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.LogConfig
		logDebug bool
		wantJSON bool
	}{
		{"json info", config.LogConfig{Level: "info", Format: "json"}, false, true},
		{"text debug", config.LogConfig{Level: "debug", Format: "text"}, true, false},
		{"unknown level is info", config.LogConfig{Level: "loud", Format: "json"}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := newLogger(&buf, tt.cfg)
			if got := l.Enabled(t.Context(), slog.LevelDebug); got != tt.logDebug {
				t.Errorf("debug enabled = %v, want %v", got, tt.logDebug)
			}
			l.Info("hello")
			if got := strings.HasPrefix(buf.String(), "{"); got != tt.wantJSON {
				t.Errorf("output %q, want JSON = %v", buf.String(), tt.wantJSON)
			}
		})
	}
}
