package push

import (
	"encoding/base64"
	"testing"
)

func TestGenerateVAPIDKeys(t *testing.T) {
	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}

	if pub == "" {
		t.Error("expected non-empty public key")
	}
	if priv == "" {
		t.Error("expected non-empty private key")
	}

	// Public key should be base64url-encoded, 65 bytes uncompressed P-256 point
	pubBytes, err := base64.RawURLEncoding.DecodeString(pub)
	if err != nil {
		t.Fatalf("decode public key: %v", err)
	}
	if len(pubBytes) != 65 {
		t.Errorf("public key length = %d, want 65", len(pubBytes))
	}

	// Private key should be base64url-encoded, 32 bytes P-256 scalar
	privBytes, err := base64.RawURLEncoding.DecodeString(priv)
	if err != nil {
		t.Fatalf("decode private key: %v", err)
	}
	if len(privBytes) != 32 {
		t.Errorf("private key length = %d, want 32", len(privBytes))
	}

	// Generate again, should be different
	pub2, _, _ := GenerateVAPIDKeys()
	if pub == pub2 {
		t.Error("expected different keys on second generation")
	}
}

func TestTopic(t *testing.T) {
	tests := []struct {
		tag  string
		want string
	}{
		{"", ""},
		{"ev-1", "ev-1"},
		{"6f1c2a9e-44b1-4b8e-9d1a-2c3e4f5a6b7c", "6f1c2a9e-44b1-4b8e-9d1a-2c3e4f5a"},
		{"a b/c", "abc"},
	}
	for _, tt := range tests {
		if got := topic(tt.tag); got != tt.want {
			t.Errorf("topic(%q) = %q, want %q", tt.tag, got, tt.want)
		}
	}
}

func TestServiceConfigured(t *testing.T) {
	if NewService("", "", "").Configured() {
		t.Error("expected unconfigured service without keys")
	}
	svc := NewService("pub", "priv", "")
	if !svc.Configured() {
		t.Error("expected configured service")
	}
	if svc.subscriber != defaultSubscriber {
		t.Errorf("subscriber = %q, want default", svc.subscriber)
	}
}
