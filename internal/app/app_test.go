package app

import (
	"path/filepath"
	"testing"
)

func TestImportFileNameKeepsNamespaceDirectories(t *testing.T) {
	t.Parallel()

	base := filepath.Join("testdata", "i18n")
	cases := map[string]string{
		filepath.Join(base, "homepage", "en.json"): "homepage/en.json",
		filepath.Join(base, "de.po"):               "de.po",
		filepath.Join("elsewhere", "fr.yaml"):      "fr.yaml",
	}
	for path, want := range cases {
		if got := importFileName(base, path); got != want {
			t.Fatalf("importFileName(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestParsePositiveID(t *testing.T) {
	t.Parallel()

	if id, err := parsePositiveID("project", " 12 "); err != nil || id != 12 {
		t.Fatalf("parsePositiveID() = %d, %v", id, err)
	}
	for _, raw := range []string{"", "0", "-3", "12abc"} {
		if _, err := parsePositiveID("project", raw); err == nil {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}
}

func TestRunRejectsUnknownCommands(t *testing.T) {
	t.Parallel()

	if code := Run(nil); code != 2 {
		t.Fatalf("Run(nil) = %d, want 2", code)
	}
	if code := Run([]string{"translate"}); code != 2 {
		t.Fatalf("Run(translate) = %d, want 2", code)
	}
	if code := Run([]string{"delete", "stories"}); code != 2 {
		t.Fatalf("Run(delete stories) = %d, want 2", code)
	}
	if code := Run([]string{"import", "1"}); code != 2 {
		t.Fatalf("Run(import 1) = %d, want 2", code)
	}
}
