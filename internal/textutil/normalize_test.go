package textutil

import "testing"

func TestStripInvisible(t *testing.T) {
	// Zero width space and word joiner vanish, no-break space becomes plain.
	input := "Bosch​⁠ Pro fessional"
	if got := StripInvisible(input); got != "Bosch Pro fessional" {
		t.Fatalf("StripInvisible = %q", got)
	}
}

func TestFoldAccents(t *testing.T) {
	cases := map[string]string{
		"Bébé-Confort": "Bebe-Confort",
		"Würth":        "Wurth",
		"Škoda":        "Skoda",
		"plain":        "plain",
	}
	for input, want := range cases {
		if got := FoldAccents(input); got != want {
			t.Fatalf("FoldAccents(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestNormalizeLabelEquivalence(t *testing.T) {
	variants := []string{
		"Bébé-Confort",
		"  bebe-confort  ",
		"BEBE-CONFORT",
		"Bébé​-Confort",
	}
	want := "bebe-confort"
	for _, v := range variants {
		if got := NormalizeLabel(v); got != want {
			t.Fatalf("NormalizeLabel(%q) = %q, want %q", v, got, want)
		}
	}
}

func TestNormalizeLabelEmpty(t *testing.T) {
	if got := NormalizeLabel("​   "); got != "" {
		t.Fatalf("NormalizeLabel of invisible-only input = %q, want empty", got)
	}
}
