package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestCredential_Resolve(t *testing.T) {
	t.Setenv("TEST_RADREPORT_KEY", "  sk-env  ")
	t.Setenv("TEST_RADREPORT_EMPTY", "")

	dir := t.TempDir()
	keyFile := filepath.Join(dir, "key.txt")
	if err := os.WriteFile(keyFile, []byte("sk-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		cred    Credential
		want    string
		wantErr error
	}{
		{name: "literal", cred: Credential{Value: "sk-literal"}, want: "sk-literal"},
		{name: "literal with expansion", cred: Credential{Value: "${TEST_RADREPORT_KEY}"}, want: "sk-env"},
		{name: "env", cred: Credential{Env: "TEST_RADREPORT_KEY"}, want: "sk-env"},
		{name: "file", cred: Credential{File: keyFile}, want: "sk-file"},
		{name: "path-like literal stays literal", cred: Credential{Value: keyFile}, want: keyFile},
		{name: "none", cred: Credential{}, wantErr: ErrNoCredential},
		{name: "two sources", cred: Credential{Value: "a", Env: "TEST_RADREPORT_KEY"}, wantErr: ErrAmbiguousCredential},
		{name: "three sources", cred: Credential{Value: "a", Env: "B", File: keyFile}, wantErr: ErrAmbiguousCredential},
		{name: "empty env", cred: Credential{Env: "TEST_RADREPORT_EMPTY"}, wantErr: ErrNoCredential},
		{name: "literal expanding to nothing", cred: Credential{Value: "${TEST_RADREPORT_UNSET_42}"}, wantErr: ErrNoCredential},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.cred.Resolve()
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Errorf("Resolve() error = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got != tc.want {
				t.Errorf("Resolve() = %q, want %q", got, tc.want)
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := Credential{File: filepath.Join(dir, "nope")}.Resolve()
		if err == nil {
			t.Error("expected error")
		}
	})
}

func TestEntries(t *testing.T) {
	for _, e := range DefaultEntries() {
		if err := ValidateKey(e.Key); err != nil {
			t.Errorf("default key %q invalid: %v", e.Key, err)
		}
		if e.Description == "" {
			t.Errorf("default key %q has no description", e.Key)
		}
	}

	if GetDefault("server.port") == nil {
		t.Error("expected default for server.port")
	}
	if _, err := RequireDefault("does.not.exist"); !errors.Is(err, ErrNoDefault) {
		t.Errorf("expected ErrNoDefault, got %v", err)
	}
}

func TestValidateKey(t *testing.T) {
	valid := []string{"server.port", "llm_providers.open-router.model", "a"}
	for _, k := range valid {
		if err := ValidateKey(k); err != nil {
			t.Errorf("ValidateKey(%q) = %v", k, err)
		}
	}
	invalid := []string{"", ".server", "server.", "server port", "key$"}
	for _, k := range invalid {
		if err := ValidateKey(k); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("ValidateKey(%q) = %v, want ErrInvalidKey", k, err)
		}
	}
}
