package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetEnvOrFile(t *testing.T) {
	const directKey = "TEST_NBDNS_TOKEN"
	const fileKey = "TEST_NBDNS_TOKEN_FILE"

	secretFile := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(secretFile, []byte("  from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		direct string
		file   string
		want   string
	}{
		{"direct only", "direct-value", "", "direct-value"},
		{"file wins", "direct-value", secretFile, "from-file"},
		{"file only", "", secretFile, "from-file"},
		{"missing file falls back", "direct-value", "/nonexistent/path/to/secret", "direct-value"},
		{"nothing set", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(directKey, tt.direct)
			t.Setenv(fileKey, tt.file)

			if got := getEnvOrFile(directKey, fileKey); got != tt.want {
				t.Errorf("getEnvOrFile() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetEnvWithFileFallback(t *testing.T) {
	secretFile := filepath.Join(t.TempDir(), "secret")
	if err := os.WriteFile(secretFile, []byte("my-secret"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("NBDNS_TEST_SECRET_FILE", secretFile)

	if got := getEnvWithFileFallback("NBDNS_TEST_", "SECRET"); got != "my-secret" {
		t.Errorf("getEnvWithFileFallback() = %q, want %q", got, "my-secret")
	}
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		input    string
		defVal   bool
		expected bool
	}{
		{"true", false, true},
		{"TRUE", false, true},
		{"1", false, true},
		{"yes", false, true},
		{"on", false, true},
		{"false", true, false},
		{"0", true, false},
		{"no", true, false},
		{"off", true, false},
		{"", false, false},
		{"", true, true},
		{"invalid", false, false},
		{"invalid", true, true},
		{"  true  ", false, true},
	}

	for _, tc := range tests {
		got := parseBool(tc.input, tc.defVal)
		if got != tc.expected {
			t.Errorf("parseBool(%q, %v) = %v, want %v", tc.input, tc.defVal, got, tc.expected)
		}
	}
}
