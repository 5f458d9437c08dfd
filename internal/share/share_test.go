package share

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDirPrefersEarlierPrefix(t *testing.T) {
	overlay := t.TempDir()
	underlay := t.TempDir()
	for _, p := range []string{overlay, underlay} {
		if err := os.MkdirAll(filepath.Join(p, "share", "state_estimation"), 0755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.MkdirAll(filepath.Join(underlay, "share", "fake_range"), 0755); err != nil {
		t.Fatal(err)
	}

	idx := NewIndex(filepath.SplitList(overlay + string(os.PathListSeparator) + underlay))
	dir, err := idx.Dir("state_estimation")
	if err != nil {
		t.Fatalf("dir: %v", err)
	}
	if dir != filepath.Join(overlay, "share", "state_estimation") {
		t.Fatalf("expected overlay dir, got %s", dir)
	}
	dir, err = idx.Dir("fake_range")
	if err != nil {
		t.Fatalf("dir: %v", err)
	}
	if dir != filepath.Join(underlay, "share", "fake_range") {
		t.Fatalf("expected underlay dir, got %s", dir)
	}
}

func TestPathUnknownPackage(t *testing.T) {
	idx := NewIndex([]string{t.TempDir(), ""})
	if len(idx.prefixes) != 1 {
		t.Fatalf("expected empty prefix to be dropped")
	}
	_, err := idx.Path("goal_provider", "params", "x.yaml")
	if !errors.Is(err, ErrPackageNotFound) {
		t.Fatalf("expected ErrPackageNotFound, got %v", err)
	}
}
