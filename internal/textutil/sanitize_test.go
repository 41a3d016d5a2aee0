package textutil

import "testing"

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"  episode 1.mp3 ":     "episode 1.mp3",
		"a/b\\c:d*e.wav":       "a-b-c-d-e.wav",
		"what?<now>|\"x\".m4a": "whatnowx.m4a",
		".hidden.mp3":          "hidden.mp3",
		"..":                   "",
		"tab\tname.ogg":        "tabname.ogg",
		"":                     "",
	}
	for in, want := range cases {
		if got := SanitizeFileName(in); got != want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", in, got, want)
		}
	}
}
