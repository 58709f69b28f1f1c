package domain

import "testing"

func TestFormatNodeID(t *testing.T) {
	if got := FormatNodeID(0x1234abcd); got != "!1234abcd" {
		t.Fatalf("unexpected format: %s", got)
	}
	if got := FormatNodeID(7); got != "!00000007" {
		t.Fatalf("unexpected zero padding: %s", got)
	}
}

func TestParseNodeID(t *testing.T) {
	cases := []struct {
		raw  string
		want uint32
		ok   bool
	}{
		{"!1234abcd", 0x1234abcd, true},
		{" !0000000a ", 10, true},
		{"305441741", 305441741, true},
		{"deadbeef", 0xdeadbeef, true},
		{"", 0, false},
		{"!xyz", 0, false},
		{"!123456789", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseNodeID(tc.raw)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("parse %q: expected (%d,%v), got (%d,%v)", tc.raw, tc.want, tc.ok, got, ok)
		}
	}
}

func TestNodePositionAccessors(t *testing.T) {
	lat := int32(377749000)
	n := Node{LatitudeI: &lat}
	got, ok := n.Latitude()
	if !ok || got < 37.77 || got > 37.78 {
		t.Fatalf("expected latitude around 37.7749, got %v ok=%v", got, ok)
	}
	if _, ok := n.Longitude(); ok {
		t.Fatal("expected missing longitude to report not ok")
	}
}
