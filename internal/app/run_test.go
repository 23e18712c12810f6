package app

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/hitoshi/campaignhub/internal/identity"
)

func restoreDefaultLogger(t *testing.T) {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
}

// TestRun_ServeCommand_FailsWithoutDatabase はserveコマンドがDB接続を試み、失敗時にエラーを返すことを検証する。
func TestRun_ServeCommand_FailsWithoutDatabase(t *testing.T) {
	setTestEnv(t)
	restoreDefaultLogger(t)

	var buf bytes.Buffer
	err := Run(&buf, []string{"serve"})
	if err == nil {
		t.Fatal("Run(serve) should fail when the database is unreachable")
	}
	if !strings.Contains(err.Error(), "database") {
		t.Errorf("error = %q, want it to mention database", err.Error())
	}
}

// TestRun_DefaultCommand_FailsWithoutDatabase はデフォルトコマンド（serve）がDB接続を試みることを検証する。
func TestRun_DefaultCommand_FailsWithoutDatabase(t *testing.T) {
	setTestEnv(t)
	restoreDefaultLogger(t)

	var buf bytes.Buffer
	if err := Run(&buf, []string{}); err == nil {
		t.Fatal("Run([]) should fail when the database is unreachable")
	}
}

func TestRun_WithMissingEnv_ReturnsError(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	restoreDefaultLogger(t)

	var buf bytes.Buffer
	err := Run(&buf, []string{"serve"})
	if err == nil {
		t.Fatal("Run with missing env should return error")
	}
}

func TestRun_Healthcheck(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"healthy", http.StatusOK, false},
		{"unhealthy", http.StatusServiceUnavailable, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/health" {
					t.Errorf("path = %q, want /health", r.URL.Path)
				}
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			u, err := url.Parse(srv.URL)
			if err != nil {
				t.Fatalf("failed to parse server url: %v", err)
			}
			t.Setenv("SERVER_PORT", u.Port())

			err = Run(&bytes.Buffer{}, []string{"healthcheck"})
			if (err != nil) != tt.wantErr {
				t.Errorf("Run(healthcheck) error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewIdentityProvider_SelectsByConfig(t *testing.T) {
	tests := []struct {
		provider string
		check    func(p identity.Provider) bool
	}{
		{"local", func(p identity.Provider) bool { _, ok := p.(*identity.LocalProvider); return ok }},
		{"gotrue", func(p identity.Provider) bool { _, ok := p.(*identity.GoTrueClient); return ok }},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			setTestEnv(t)
			t.Setenv("IDENTITY_PROVIDER", tt.provider)
			restoreDefaultLogger(t)

			cfg, err := Init(&bytes.Buffer{})
			if err != nil {
				t.Fatalf("Init() error = %v", err)
			}

			p, err := newIdentityProvider(cfg, nil)
			if err != nil {
				t.Fatalf("newIdentityProvider() error = %v", err)
			}
			if !tt.check(p) {
				t.Errorf("newIdentityProvider() = %T, want %s provider", p, tt.provider)
			}
		})
	}
}
