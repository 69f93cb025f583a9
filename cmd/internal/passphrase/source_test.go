package passphrase

import (
	"os"
	"strings"
	"testing"
)

func TestSourceReadsEnvironment(t *testing.T) {
	t.Setenv("PASS_TEST_VALUE", "  hunter2 ")
	src := NewSource("PASS_TEST_VALUE", "operator")
	got, err := src.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "  hunter2 " {
		t.Fatalf("expected exact env value, got %q", got)
	}
	t.Setenv("PASS_TEST_VALUE", "changed")
	if again, _ := src.Get(); again != got {
		t.Fatalf("expected cached value, got %q", again)
	}
}

func TestSourceRejectsBlankEnvironment(t *testing.T) {
	t.Setenv("PASS_TEST_BLANK", "   ")
	if _, err := NewSource("PASS_TEST_BLANK", "").Get(); err == nil || !strings.Contains(err.Error(), "set but empty") {
		t.Fatalf("expected blank rejection, got %v", err)
	}
}

func TestSourceWithoutTerminal(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "stdin")
	if err != nil {
		t.Fatalf("temp: %v", err)
	}
	defer f.Close()
	src := NewSource("PASS_TEST_UNSET_VARIABLE", "operator")
	src.stdin = f
	_, err = src.Get()
	if err == nil || !strings.Contains(err.Error(), "PASS_TEST_UNSET_VARIABLE") {
		t.Fatalf("expected non-interactive error, got %v", err)
	}
}
