package cmd

import "testing"

func TestPreviewCollapsesWhitespace(t *testing.T) {
	if got := preview("  Owns\n\tdelivery  "); got != "Owns delivery" {
		t.Fatalf("preview = %q", got)
	}
	if got := preview(""); got != "-" {
		t.Fatalf("preview of empty = %q", got)
	}

	long := ""
	for i := 0; i < 70; i++ {
		long += "x"
	}
	if got := []rune(preview(long)); len(got) != 61 {
		t.Fatalf("preview length = %d, want 61", len(got))
	}
}
