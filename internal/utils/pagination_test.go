package utils

import "testing"

func TestAtoiDefault(t *testing.T) {
	cases := []struct {
		s    string
		def  int
		want int
	}{
		// empty -> default
		{"", 10, 10},
		// valid ints
		{"42", 0, 42},
		{"-13", 1, -13},
		{"0012", 99, 12},
		// invalid -> default (no trim)
		{"x", 5, 5},
		{" 42", 7, 7},
		// overflow -> default
		{"999999999999999999999999", -1, -1},
	}

	for _, tc := range cases {
		if got := AtoiDefault(tc.s, tc.def); got != tc.want {
			t.Fatalf("AtoiDefault(%q, %d) = %d; want %d", tc.s, tc.def, got, tc.want)
		}
	}
}

func TestPageLimit(t *testing.T) {
	cases := []struct {
		raw  string
		want int
	}{
		// missing/malformed -> default
		{"", 50},
		{"abc", 50},
		// in range
		{"25", 25},
		// clamped to [1, max]
		{"9999", 200},
		{"0", 1},
		{"-3", 1},
	}

	for _, tc := range cases {
		if got := PageLimit(tc.raw, 50, 200); got != tc.want {
			t.Fatalf("PageLimit(%q, 50, 200) = %d; want %d", tc.raw, got, tc.want)
		}
	}
}
