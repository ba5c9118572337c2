package dotenv

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_SkipsMissingAndKeepsExisting(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.env")
	second := filepath.Join(dir, "second.env")
	if err := os.WriteFile(first, []byte("DOTENV_TEST_A=from-first\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(second, []byte("DOTENV_TEST_A=from-second\nDOTENV_TEST_B=b\nDOTENV_TEST_C=file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DOTENV_TEST_C", "process")
	t.Cleanup(func() {
		os.Unsetenv("DOTENV_TEST_A")
		os.Unsetenv("DOTENV_TEST_B")
	})

	if err := Load(filepath.Join(dir, "missing.env"), first, second); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := os.Getenv("DOTENV_TEST_A"); got != "from-first" {
		t.Fatalf("DOTENV_TEST_A=%q, want from-first", got)
	}
	if got := os.Getenv("DOTENV_TEST_B"); got != "b" {
		t.Fatalf("DOTENV_TEST_B=%q, want b", got)
	}
	if got := os.Getenv("DOTENV_TEST_C"); got != "process" {
		t.Fatalf("DOTENV_TEST_C=%q, want process", got)
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList(" a.env, ,b.env ")
	if len(got) != 2 || got[0] != "a.env" || got[1] != "b.env" {
		t.Fatalf("SplitList = %v", got)
	}
	if SplitList("  ") != nil {
		t.Fatalf("expected nil for blank input")
	}
}
