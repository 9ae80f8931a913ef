package textutil_test

import (
	"testing"

	"gazetteer/internal/textutil"
)

func TestSlug(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Historic Site", "historic-site"},
		{"  War  Memorial ", "war-memorial"},
		{"museum", "museum"},
		{"US-CA", "us-ca"},
		{"Parks & Gardens", "parks-gardens"},
		{"___", ""},
		{"", ""},
		{"Route 66", "route-66"},
	}
	for _, tc := range cases {
		if got := textutil.Slug(tc.in); got != tc.want {
			t.Errorf("Slug(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTitleCase(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"war-memorial", "War Memorial"},
		{"historic_site", "Historic Site"},
		{"", ""},
		{"museum", "Museum"},
	}
	for _, tc := range cases {
		if got := textutil.TitleCase(tc.in); got != tc.want {
			t.Errorf("TitleCase(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
