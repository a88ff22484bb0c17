package version

import (
	"strings"
	"testing"
)

func TestString_Dirty(t *testing.T) {
	oldV, oldD := Version, Dirty
	t.Cleanup(func() { Version, Dirty = oldV, oldD })

	Version, Dirty = "1.2.0", "false"
	if got := String(); got != "1.2.0" {
		t.Errorf("String() = %q, want 1.2.0", got)
	}
	Dirty = "true"
	if got := String(); got != "1.2.0-dirty" {
		t.Errorf("String() = %q, want 1.2.0-dirty", got)
	}
	if got := UserAgent(); got != "hfinfer/1.2.0-dirty" {
		t.Errorf("UserAgent() = %q", got)
	}
	if !Get().Dirty {
		t.Error("Get().Dirty = false, want true")
	}
}

func TestFull(t *testing.T) {
	out := Full()
	if !strings.HasPrefix(out, "hfinfer ") {
		t.Errorf("Full() should start with the program name, got %q", out)
	}
	for _, label := range []string{"Commit:", "Built:", "Go:", "Platform:"} {
		if !strings.Contains(out, label) {
			t.Errorf("Full() missing %s", label)
		}
	}
}
