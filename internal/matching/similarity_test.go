package matching

import "testing"

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Hotel Atlas", "atlas"},
		{"The Atlas Hotel", "atlas"},
		{"Hôtel Le Méridien", "le meridien"},
		{"Riad Sunset & Spa", "riad spa sunset"},
		{"Hotel", "hotel"},
		{"  ", ""},
	}
	for _, tt := range tests {
		if got := NormalizeName(tt.in); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNameSimilarity(t *testing.T) {
	if s := NameSimilarity("Atlas Hotel", "HOTEL ATLAS"); s != 1 {
		t.Fatalf("expected identical names after normalisation, got %f", s)
	}
	if s := NameSimilarity("", "Atlas"); s != 0 {
		t.Fatalf("expected 0 for empty name, got %f", s)
	}
	close := NameSimilarity("Grand Plaza", "Grand Plaza Resort")
	far := NameSimilarity("Grand Plaza", "Kasbah Pearl")
	if close <= far {
		t.Fatalf("expected related names to score higher: close=%f far=%f", close, far)
	}
	if far >= 0.85 {
		t.Fatalf("unrelated names must stay below the match threshold, got %f", far)
	}
}
