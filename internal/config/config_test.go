package config

import (
	"strings"
	"testing"
	"time"

	"bff-service/internal/auth/credential"
)

func baseEnv() map[string]string {
	return map[string]string{
		"GOOGLE_CLIENT_ID":     "client-id",
		"GOOGLE_CLIENT_SECRET": "client-secret",
		"CREDENTIAL_SECRET":    "a-long-enough-credential-secret",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(baseEnv())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.AppPort != "8080" {
		t.Errorf("port %q", cfg.AppPort)
	}
	if cfg.Mode() != credential.ModeToken {
		t.Errorf("mode %q", cfg.Mode())
	}
	if cfg.TTL() != 7*24*time.Hour {
		t.Errorf("ttl %v", cfg.TTL())
	}
	if cfg.OAuthTimeout != 10*time.Second {
		t.Errorf("oauth timeout %v", cfg.OAuthTimeout)
	}
	if cfg.CookieName != "authToken" {
		t.Errorf("cookie %q", cfg.CookieName)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "http://localhost:3000" {
		t.Errorf("cors %v", cfg.CORSOrigins)
	}
	if cfg.IsProduction() || cfg.NeedsRedis() {
		t.Error("defaults should be development with memory stores")
	}
}

func TestLoadOverrides(t *testing.T) {
	environ := baseEnv()
	environ["APP_ENV"] = "production"
	environ["CREDENTIAL_MODE"] = "session"
	environ["CREDENTIAL_TTL"] = "12h"
	environ["SESSION_STORE"] = "redis"
	environ["REDIS_DB"] = "3"
	environ["CORS_ORIGINS"] = "https://app.example.com,https://admin.example.com"
	environ["OAUTH_TIMEOUT"] = "3s"

	cfg, err := LoadFrom(environ)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !cfg.IsProduction() || !cfg.NeedsRedis() {
		t.Error("expected production with redis")
	}
	if cfg.Mode() != credential.ModeSession || cfg.TTL() != 12*time.Hour {
		t.Errorf("mode %q ttl %v", cfg.Mode(), cfg.TTL())
	}
	if cfg.RedisDB != 3 || cfg.OAuthTimeout != 3*time.Second {
		t.Errorf("redis db %d timeout %v", cfg.RedisDB, cfg.OAuthTimeout)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Errorf("cors %v", cfg.CORSOrigins)
	}
}

func TestSessionModeNeedsNoSecret(t *testing.T) {
	environ := baseEnv()
	delete(environ, "CREDENTIAL_SECRET")
	environ["CREDENTIAL_MODE"] = "session"

	if _, err := LoadFrom(environ); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		set  map[string]string
		drop []string
		want string
	}{
		{"missing client id", nil, []string{"GOOGLE_CLIENT_ID"}, "GOOGLE_CLIENT_ID"},
		{"missing token secret", nil, []string{"CREDENTIAL_SECRET"}, "CREDENTIAL_SECRET"},
		{"bad mode", map[string]string{"CREDENTIAL_MODE": "cookie"}, nil, "unknown mode"},
		{"bad store", map[string]string{"SESSION_STORE": "etcd"}, nil, "SESSION_STORE"},
		{"bad policy", map[string]string{"STORE_FAILURE_POLICY": "maybe"}, nil, "store failure policy"},
		{"bad fallback", map[string]string{"PROFILE_FALLBACK": "guess"}, nil, "profile fallback"},
		{"relative frontend", map[string]string{"FRONTEND_BASE_URL": "/app"}, nil, "FRONTEND_BASE_URL"},
		{"bad env", map[string]string{"APP_ENV": "staging"}, nil, "APP_ENV"},
		{"negative rate", map[string]string{"LOGIN_RATE_LIMIT": "-1"}, nil, "LOGIN_RATE_LIMIT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			environ := baseEnv()
			for k, v := range tt.set {
				environ[k] = v
			}
			for _, k := range tt.drop {
				delete(environ, k)
			}

			_, err := LoadFrom(environ)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected %q in %v", tt.want, err)
			}
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	_, err := LoadFrom(map[string]string{})
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET", "CREDENTIAL_SECRET"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}

func TestMalformedDuration(t *testing.T) {
	environ := baseEnv()
	environ["OAUTH_TIMEOUT"] = "soon"

	if _, err := LoadFrom(environ); err == nil || !strings.Contains(err.Error(), "parse env") {
		t.Fatalf("expected parse error, got %v", err)
	}
}
