package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSanitizeName_ControlChars(t *testing.T) {
	got := SanitizeName(" A\nB\rC\tD\x00 ", 100)
	if strings.ContainsAny(got, "\n\r\t\x00") {
		t.Fatalf("sanitize output contains control chars: %q", got)
	}
	if got != "ABCD" {
		t.Fatalf("SanitizeName control char behavior mismatch, got %q", got)
	}
}

func TestSanitizeName_MaxLength(t *testing.T) {
	got := SanitizeName("abcdefghijklmnopqrstuvwxyz", 10)
	if len([]rune(got)) != 10 {
		t.Fatalf("expected length 10, got %d (%q)", len([]rune(got)), got)
	}
}

func TestSanitizeName_AllowedChars(t *testing.T) {
	input := "Az09 -_.,()"
	got := SanitizeName(input, 100)
	if got != input {
		t.Fatalf("SanitizeName changed allowed chars: got %q want %q", got, input)
	}
}

func TestSanitizeName_ReplacesDisallowed(t *testing.T) {
	got := SanitizeName("bad<>|\"name", 100)
	if got != "bad____name" {
		t.Fatalf("SanitizeName disallowed replacement mismatch: got %q", got)
	}
}

func TestValidateOutputPath_Valid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cut.edl")
	if err := ValidateOutputPath(path); err != nil {
		t.Fatalf("ValidateOutputPath(%q) error = %v, want nil", path, err)
	}
}

func TestValidateOutputPath_MissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "cut.edl")
	if err := ValidateOutputPath(path); err == nil {
		t.Fatalf("ValidateOutputPath(%q) expected error for missing directory", path)
	}
}

func TestValidateOutputPath_PathTraversal(t *testing.T) {
	path := "/tmp/../etc/cut.edl"
	if err := ValidateOutputPath(path); err == nil {
		t.Fatalf("ValidateOutputPath(%q) expected traversal error", path)
	}
}

func TestValidateOutputPath_ParentIsFile(t *testing.T) {
	tmp := t.TempDir()
	filePath := filepath.Join(tmp, "file.txt")
	if err := os.WriteFile(filePath, []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to create file: %v", err)
	}

	path := filepath.Join(filePath, "cut.edl")
	if err := ValidateOutputPath(path); err == nil {
		t.Fatalf("ValidateOutputPath(%q) expected non-directory error", path)
	}
}
