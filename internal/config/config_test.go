package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" || cfg.StoreBackend != "mongo" || cfg.MongoDatabase != "tabib" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if !cfg.DevSecret || cfg.JWTSecret == "" {
		t.Error("expected development secret fallback")
	}
	if cfg.LogFormat != "console" {
		t.Errorf("expected console log format in development, got %q", cfg.LogFormat)
	}
	if got := cfg.AdminEmailList(); len(got) != 1 || got[0] != "admin@tabib.com" {
		t.Errorf("unexpected admin list %v", got)
	}
	if cfg.SessionTTL() != 24*time.Hour {
		t.Errorf("unexpected session ttl %v", cfg.SessionTTL())
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("ADMIN_EMAILS", " a@tabib.com, b@tabib.com ,")
	t.Setenv("MAX_LOGIN_ATTEMPTS", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StoreBackend != "memory" || cfg.MaxLoginTries != 3 || cfg.DevSecret {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("expected json log format, got %q", cfg.LogFormat)
	}
	if got := cfg.AdminEmailList(); len(got) != 2 || got[1] != "b@tabib.com" {
		t.Errorf("unexpected admin list %v", got)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing secret", map[string]string{"ENV": "production", "JWT_SECRET": ""}, "JWT_SECRET"},
		{"bad backend", map[string]string{"STORE_BACKEND": "sqlite"}, "STORE_BACKEND"},
		{"bad feed", map[string]string{"CHANGE_FEED": "kafka"}, "CHANGE_FEED"},
		{"redis feed without addr", map[string]string{"CHANGE_FEED": "redis", "REDIS_ADDR": ""}, "REDIS_ADDR"},
		{"mongo feed on memory", map[string]string{"CHANGE_FEED": "mongo", "STORE_BACKEND": "memory"}, "STORE_BACKEND=mongo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ENV", "development")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %s, got %v", tt.want, err)
			}
		})
	}
}
