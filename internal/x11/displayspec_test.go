package x11

import (
	"strings"
	"testing"
)

func TestParseDisplayName(t *testing.T) {
	tests := []struct {
		in   string
		want DisplayName
	}{
		{":0", DisplayName{Display: 0}},
		{":1.2", DisplayName{Display: 1, Screen: 2}},
		{"localhost:10.0", DisplayName{Host: "localhost", Display: 10}},
		{"tcp/example.org:3", DisplayName{Protocol: "tcp", Host: "example.org", Display: 3}},
		{"/tmp/.X11-unix/X7", DisplayName{Protocol: "unix", Display: 7}},
	}
	for _, tt := range tests {
		got, err := ParseDisplayName(tt.in)
		if err != nil {
			t.Fatalf("ParseDisplayName(%q) error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseDisplayName(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestParseDisplayName_Malformed(t *testing.T) {
	for _, in := range []string{"", "localhost", ":", ":x", ":0.y", ":-1", "/tmp/.X11-unix/Y0"} {
		if _, err := ParseDisplayName(in); err == nil {
			t.Fatalf("ParseDisplayName(%q) expected error", in)
		}
	}
}

func TestDisplayName_String(t *testing.T) {
	name, err := ParseDisplayName("tcp/host:2.1")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := name.String(); got != "tcp/host:2.1" {
		t.Fatalf("String() = %q", got)
	}
	name, _ = ParseDisplayName(":0")
	if got := name.String(); got != ":0" {
		t.Fatalf("String() = %q", got)
	}
}

func TestDial_RejectsMalformedName(t *testing.T) {
	_, err := Dial("no-colon-here", DialOptions{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "missing ':'") {
		t.Fatalf("unexpected error: %v", err)
	}
}
