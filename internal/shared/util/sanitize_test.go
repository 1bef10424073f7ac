package util

import (
	"strings"
	"testing"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "site-plan.pdf", want: "site-plan.pdf"},
		{in: "  roof/layout.png ", want: "roof_layout.png"},
		{in: `c:\plans\a.png`, want: "c:_plans_a.png"},
		{in: "bad\x00name.png", want: "badname.png"},
		{in: "../etc/passwd", wantErr: true},
		{in: "   ", wantErr: true},
	}
	for _, tt := range tests {
		got, err := SanitizeFileName(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("SanitizeFileName(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("SanitizeFileName(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("SanitizeFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeFileNameTruncatesKeepingExtension(t *testing.T) {
	got, err := SanitizeFileName(strings.Repeat("a", 300) + ".pdf")
	if err != nil {
		t.Fatalf("SanitizeFileName: %v", err)
	}
	if len(got) != maxFileNameLength {
		t.Fatalf("expected length %d, got %d", maxFileNameLength, len(got))
	}
	if !strings.HasSuffix(got, ".pdf") {
		t.Fatalf("expected .pdf suffix, got %q", got)
	}
}
