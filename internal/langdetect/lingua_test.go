package langdetect

import "testing"

func TestDetectISO6391_ShortSampleIsUnknown(t *testing.T) {
	t.Parallel()

	if got := DetectISO6391("  ok  "); got != "" {
		t.Fatalf("expected short sample to be undetected, got %q", got)
	}
	if got := DetectValues([]string{"", " ", "hi"}, 100); got != "" {
		t.Fatalf("expected blank values to be undetected, got %q", got)
	}
}

func TestCountLetters(t *testing.T) {
	t.Parallel()

	if got := countLetters("a1 b2 ü!"); got != 3 {
		t.Fatalf("unexpected letter count: got %d want 3", got)
	}
}
