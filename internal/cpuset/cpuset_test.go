package cpuset

import (
	"reflect"
	"testing"
)

func TestParseRanges(t *testing.T) {
	cases := []struct {
		in   string
		want []int
	}{
		{"0", []int{0}},
		{"0-3", []int{0, 1, 2, 3}},
		{"0-1,4-5", []int{0, 1, 4, 5}},
		{"0,2,4", []int{0, 2, 4}},
	}
	for _, c := range cases {
		got, err := parseRanges(c.in)
		if err != nil {
			t.Fatalf("parseRanges(%q): %v", c.in, err)
		}
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("parseRanges(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestParseRangesEmpty(t *testing.T) {
	if _, err := parseRanges(""); err == nil {
		t.Error("expected error for empty range")
	}
}
