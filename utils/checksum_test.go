package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCalculateFileSHA256(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "hello.txt")
	if err := os.WriteFile(tmpFile, []byte("hello"), 0o600); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}

	sum, err := CalculateFileSHA256(tmpFile)
	if err != nil {
		t.Fatalf("CalculateFileSHA256 failed: %v", err)
	}
	want := "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if sum != want {
		t.Errorf("checksum = %s, want %s", sum, want)
	}

	ok, err := VerifyFileSHA256(tmpFile, want)
	if err != nil || !ok {
		t.Errorf("VerifyFileSHA256 = %v, %v; want true, nil", ok, err)
	}

	if _, err := CalculateFileSHA256(tmpFile + ".missing"); err == nil {
		t.Error("expected error for missing file")
	}
}
