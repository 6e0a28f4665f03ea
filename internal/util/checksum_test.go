package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// sha256("hello world")
const helloSum = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "f")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestSHA256File(t *testing.T) {
	p := writeTemp(t, "hello world")

	sum, size, err := SHA256File(p)
	if err != nil {
		t.Fatalf("SHA256File: %v", err)
	}
	if sum != helloSum {
		t.Fatalf("sum = %s, want %s", sum, helloSum)
	}
	if size != int64(len("hello world")) {
		t.Fatalf("size = %d, want %d", size, len("hello world"))
	}
}

func TestVerifySHA256File(t *testing.T) {
	p := writeTemp(t, "hello world")

	if err := VerifySHA256File(p, helloSum); err != nil {
		t.Fatalf("matching checksum rejected: %v", err)
	}
	if err := VerifySHA256File(p, strings.ToUpper(helloSum)); err != nil {
		t.Fatalf("uppercase checksum rejected: %v", err)
	}
	if err := VerifySHA256File(p, strings.Repeat("0", 64)); err == nil {
		t.Fatal("mismatching checksum accepted")
	}
	if err := VerifySHA256File(p, ""); err == nil {
		t.Fatal("empty expected checksum accepted")
	}
}
