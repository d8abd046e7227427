package matcher

import (
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	tc := []struct {
		name string
		in   string
		want string
	}{
		{"case folding", "SoNg TiTlE", "song title"},
		{"whitespace collapse", "  Song   Title  ", "song title"},
		{"punctuation", "Don't Stop... Now!", "dont stop now"},
		{"accents", "Beyoncé", "beyonce"},
		{"empty", "", ""},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestStripSuffixes(t *testing.T) {
	tc := []struct {
		in   string
		want string
	}{
		{"Song (Original Mix)", "Song"},
		{"Song [Extended Mix]", "Song"},
		{"Song (Radio Edit)", "Song"},
		{"Song (Bootleg)", "Song"},
		{"Song", "Song"},
	}

	for _, tt := range tc {
		if got := StripSuffixes(tt.in); got != tt.want {
			t.Errorf("StripSuffixes(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStripFeaturing(t *testing.T) {
	tc := []struct {
		in   string
		want string
	}{
		{"Song (feat. Someone)", "Song"},
		{"Song ft. Someone", "Song"},
		{"Song featuring Someone Else", "Song"},
		{"Song", "Song"},
	}

	for _, tt := range tc {
		if got := StripFeaturing(tt.in); got != tt.want {
			t.Errorf("StripFeaturing(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTitleVariants(t *testing.T) {
	got := TitleVariants("Song (Extended Mix)")
	want := []string{"song extended mix", "song"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TitleVariants() = %v, want %v", got, want)
	}

	// identical variants collapse
	if got := TitleVariants("Song"); len(got) != 1 {
		t.Errorf("expected a single variant, got %v", got)
	}
}

func TestSplitArtists(t *testing.T) {
	tc := []struct {
		in   string
		want []string
	}{
		{"Artist A, Artist B", []string{"artist a", "artist b"}},
		{"Artist A & Artist B", []string{"artist a", "artist b"}},
		{"Artist A feat. Artist B", []string{"artist a", "artist b"}},
		{"Artist A vs. Artist B", []string{"artist a", "artist b"}},
		{"Solo Artist", []string{"solo artist"}},
	}

	for _, tt := range tc {
		if got := SplitArtists(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SplitArtists(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestQueryKey(t *testing.T) {
	a := QueryKey("Song Title", "Artist")
	b := QueryKey("  song   TITLE ", "artist")
	if a != b {
		t.Errorf("equivalent queries got different keys: %q vs %q", a, b)
	}
	if a == QueryKey("Other", "Artist") {
		t.Error("distinct titles share a cache key")
	}
}
