package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
)

func TestProcessAppliesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Process(context.Background(), envconfig.MapLookuper(map[string]string{
		"NG_TOKEN":    "123:abc",
		"NG_DOT_PATH": "/tmp/warden",
	}))
	if err != nil {
		t.Fatalf("process config: %v", err)
	}

	if cfg.DefaultLanguage != "fa" {
		t.Fatalf("unexpected default language: %q", cfg.DefaultLanguage)
	}
	if cfg.Moderation.WarnThreshold != 3 {
		t.Fatalf("unexpected warn threshold: %d", cfg.Moderation.WarnThreshold)
	}
	if cfg.Moderation.NoticeTTL != 5*time.Second {
		t.Fatalf("unexpected notice ttl: %s", cfg.Moderation.NoticeTTL)
	}
	if cfg.Review.PendingBackend != PendingBackendMemory {
		t.Fatalf("unexpected pending backend: %q", cfg.Review.PendingBackend)
	}
	if cfg.Review.ClassifyTimeout != 8*time.Second {
		t.Fatalf("unexpected classifier timeout: %s", cfg.Review.ClassifyTimeout)
	}
	if cfg.DotPath != "/tmp/warden" {
		t.Fatalf("unexpected dot path: %q", cfg.DotPath)
	}
}

func TestProcessRejectsInvalidValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "missing-token",
			env:  map[string]string{},
		},
		{
			name: "zero-threshold",
			env:  map[string]string{"NG_TOKEN": "t", "NG_WARN_THRESHOLD": "0"},
		},
		{
			name: "unknown-punish-mode",
			env:  map[string]string{"NG_TOKEN": "t", "NG_PUNISH_MODE": "kick"},
		},
		{
			name: "redis-without-url",
			env:  map[string]string{"NG_TOKEN": "t", "NG_PENDING_BACKEND": "redis"},
		},
		{
			name: "unknown-backend",
			env:  map[string]string{"NG_TOKEN": "t", "NG_PENDING_BACKEND": "etcd"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := Process(context.Background(), envconfig.MapLookuper(tt.env)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
